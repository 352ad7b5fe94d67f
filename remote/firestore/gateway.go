// Package firestore is the Remote Sync Gateway over Cloud Firestore.
// Products and users live in the "products" and "users" collections; stock
// and user writes run in transactions that compare the stored version.
package firestore

import (
	"context"
	"errors"
	"strings"

	"cloud.google.com/go/firestore"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/benjaminabbitt/gainlabz/order"
	"github.com/benjaminabbitt/gainlabz/product"
	"github.com/benjaminabbitt/gainlabz/remote"
	"github.com/benjaminabbitt/gainlabz/remote/internal/record"
	"github.com/benjaminabbitt/gainlabz/storefront"
)

// Collection names.
const (
	CollectionProducts = "products"
	CollectionUsers    = "users"
)

var _ remote.Gateway = (*Gateway)(nil)

// Gateway implements remote.Gateway on Firestore.
type Gateway struct {
	Client *firestore.Client
	logger *zap.Logger
}

// New creates a gateway over client.
func New(client *firestore.Client, logger *zap.Logger) *Gateway {
	return &Gateway{Client: client, logger: storefront.OrNop(logger)}
}

// Dial opens a Firestore client for projectID.
func Dial(ctx context.Context, projectID string, logger *zap.Logger) (*Gateway, error) {
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, storefront.RemoteIOError("firestore dial", err)
	}
	return New(client, logger), nil
}

// Close releases the client.
func (g *Gateway) Close() error {
	return g.Client.Close()
}

func (g *Gateway) products() *firestore.CollectionRef {
	return g.Client.Collection(CollectionProducts)
}

func (g *Gateway) users() *firestore.CollectionRef {
	return g.Client.Collection(CollectionUsers)
}

func (g *Gateway) ListProducts(ctx context.Context) ([]product.Product, error) {
	it := g.products().Documents(ctx)
	defer it.Stop()

	var out []product.Product
	for {
		doc, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, storefront.RemoteIOError("firestore list products", err)
		}
		p, err := docToProduct(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (g *Gateway) GetProduct(ctx context.Context, id string) (product.Product, error) {
	doc, err := g.products().Doc(strings.TrimSpace(id)).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return product.Product{}, storefront.NewErrorf(storefront.ReasonProductNotFound, "product %s not found", id)
	}
	if err != nil {
		return product.Product{}, storefront.RemoteIOError("firestore get product", err)
	}
	return docToProduct(doc)
}

// SetStock writes stock inside a transaction that first checks the stored
// version against ifVersion.
func (g *Gateway) SetStock(ctx context.Context, id string, stock int, ifVersion int64) (product.Product, error) {
	ref := g.products().Doc(strings.TrimSpace(id))
	var updated product.Product

	err := g.Client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(ref)
		if status.Code(err) == codes.NotFound {
			return storefront.NewErrorf(storefront.ReasonProductNotFound, "product %s not found", id)
		}
		if err != nil {
			return err
		}
		current, err := docToProduct(doc)
		if err != nil {
			return err
		}
		if current.Version != ifVersion {
			return storefront.NewErrorf(storefront.ReasonVersionConflict,
				"product %s is at version %d, not %d", id, current.Version, ifVersion)
		}

		updated = current
		updated.Stock = stock
		updated.Version = current.Version + 1
		return tx.Update(ref, []firestore.Update{
			{Path: "stock", Value: int64(stock)},
			{Path: "version", Value: updated.Version},
		})
	})
	if err != nil {
		return product.Product{}, wrap("firestore set stock", err)
	}
	return updated, nil
}

func (g *Gateway) GetUser(ctx context.Context, id string) (order.User, error) {
	doc, err := g.users().Doc(strings.TrimSpace(id)).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return order.User{}, storefront.NewErrorf(storefront.ReasonUserNotFound, "user %s not found", id)
	}
	if err != nil {
		return order.User{}, storefront.RemoteIOError("firestore get user", err)
	}
	return docToUser(doc)
}

// PatchUser merges the non-nil fields of patch, conditioned on
// patch.IfVersion when set.
func (g *Gateway) PatchUser(ctx context.Context, id string, patch order.UserPatch) (order.User, error) {
	ref := g.users().Doc(strings.TrimSpace(id))
	var updated order.User

	err := g.Client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(ref)
		if status.Code(err) == codes.NotFound {
			return storefront.NewErrorf(storefront.ReasonUserNotFound, "user %s not found", id)
		}
		if err != nil {
			return err
		}
		current, err := docToUser(doc)
		if err != nil {
			return err
		}
		if patch.IfVersion != nil && *patch.IfVersion != current.Version {
			return storefront.NewErrorf(storefront.ReasonVersionConflict,
				"user %s is at version %d, not %d", id, current.Version, *patch.IfVersion)
		}

		updated = current
		updated.Version = current.Version + 1
		updates := []firestore.Update{{Path: "version", Value: updated.Version}}
		if patch.Cart != nil {
			updated.Cart = patch.Cart.Clone()
			updates = append(updates, firestore.Update{Path: "cart", Value: record.FromCart(*patch.Cart)})
		}
		if patch.Orders != nil {
			updated.Orders = append([]order.Order(nil), (*patch.Orders)...)
			updates = append(updates, firestore.Update{Path: "orders", Value: record.FromOrders(*patch.Orders)})
		}
		if patch.DefaultAddress != nil {
			addr := *patch.DefaultAddress
			updated.DefaultAddress = &addr
			updates = append(updates, firestore.Update{Path: "defaultAddress", Value: record.FromAddress(addr)})
		}
		return tx.Update(ref, updates)
	})
	if err != nil {
		return order.User{}, wrap("firestore patch user", err)
	}
	return updated, nil
}

func (g *Gateway) ListUsers(ctx context.Context) ([]order.User, error) {
	it := g.users().Documents(ctx)
	defer it.Stop()

	var out []order.User
	for {
		doc, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, storefront.RemoteIOError("firestore list users", err)
		}
		u, err := docToUser(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, nil
}

// PutProduct creates or overwrites a product document. Used for seeding.
func (g *Gateway) PutProduct(ctx context.Context, p product.Product) error {
	rec := record.FromProduct(p.Normalize())
	if _, err := g.products().Doc(rec.ID).Set(ctx, rec); err != nil {
		return storefront.RemoteIOError("firestore put product", err)
	}
	return nil
}

// PutUser creates or overwrites a user document. Used for seeding.
func (g *Gateway) PutUser(ctx context.Context, u order.User) error {
	rec := record.FromUser(u)
	if _, err := g.users().Doc(rec.ID).Set(ctx, rec); err != nil {
		return storefront.RemoteIOError("firestore put user", err)
	}
	return nil
}

func docToProduct(doc *firestore.DocumentSnapshot) (product.Product, error) {
	var rec record.Product
	if err := doc.DataTo(&rec); err != nil {
		return product.Product{}, storefront.RemoteIOError("firestore decode product", err)
	}
	rec.ID = doc.Ref.ID
	p, err := rec.ToProduct()
	if err != nil {
		return product.Product{}, storefront.RemoteIOError("firestore decode product", err)
	}
	return p, nil
}

func docToUser(doc *firestore.DocumentSnapshot) (order.User, error) {
	var rec record.User
	if err := doc.DataTo(&rec); err != nil {
		return order.User{}, storefront.RemoteIOError("firestore decode user", err)
	}
	rec.ID = doc.Ref.ID
	u, err := rec.ToUser()
	if err != nil {
		return order.User{}, storefront.RemoteIOError("firestore decode user", err)
	}
	return u, nil
}

// wrap keeps CommandErrors from inside a transaction and reports anything
// else as a remote failure. Firestore's own contention abort counts as a
// version conflict.
func wrap(op string, err error) error {
	if storefront.AsCommandError(err) != nil {
		return err
	}
	if status.Code(err) == codes.Aborted {
		return &storefront.CommandError{
			Code:    storefront.StatusAborted,
			Reason:  storefront.ReasonVersionConflict,
			Message: op,
			Cause:   err,
		}
	}
	return storefront.RemoteIOError(op, err)
}
