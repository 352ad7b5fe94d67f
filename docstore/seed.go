package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/benjaminabbitt/gainlabz/order"
	"github.com/benjaminabbitt/gainlabz/product"
)

// Seed is the initial content of a store.
type Seed struct {
	Products []product.Product `json:"products"`
	Users    []order.User      `json:"users"`
}

// DecodeSeed reads a JSON seed document.
func DecodeSeed(r io.Reader) (Seed, error) {
	var seed Seed
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&seed); err != nil {
		return Seed{}, fmt.Errorf("failed to decode seed: %w", err)
	}
	return seed, nil
}

// LoadSeedFile reads a JSON seed document from path.
func LoadSeedFile(path string) (Seed, error) {
	f, err := os.Open(path)
	if err != nil {
		return Seed{}, fmt.Errorf("failed to open seed %s: %w", path, err)
	}
	defer f.Close()
	return DecodeSeed(f)
}

// Apply writes every seeded record into the store.
func (s *Store) Apply(seed Seed) error {
	for _, p := range seed.Products {
		if _, err := s.PutProduct(p); err != nil {
			return fmt.Errorf("seed product %q: %w", p.ID, err)
		}
	}
	for _, u := range seed.Users {
		if _, err := s.PutUser(u); err != nil {
			return fmt.Errorf("seed user %q: %w", u.ID, err)
		}
	}
	return nil
}

// Writer is a remote store a seed can be written into.
type Writer interface {
	PutProduct(ctx context.Context, p product.Product) error
	PutUser(ctx context.Context, u order.User) error
}

// WriteTo writes every seeded record through w.
func (seed Seed) WriteTo(ctx context.Context, w Writer) error {
	for _, p := range seed.Products {
		if err := w.PutProduct(ctx, p); err != nil {
			return fmt.Errorf("seed product %q: %w", p.ID, err)
		}
	}
	for _, u := range seed.Users {
		if err := w.PutUser(ctx, u); err != nil {
			return fmt.Errorf("seed user %q: %w", u.ID, err)
		}
	}
	return nil
}
