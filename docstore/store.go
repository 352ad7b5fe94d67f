// Package docstore is a small in-memory document store serving the
// /products and /users resources the storefront gateway consumes. Product
// and user writes can be made conditional on the record version.
package docstore

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-memdb"

	"github.com/benjaminabbitt/gainlabz/cart"
	"github.com/benjaminabbitt/gainlabz/order"
	"github.com/benjaminabbitt/gainlabz/product"
	"github.com/benjaminabbitt/gainlabz/storefront"
)

const (
	tableProducts = "products"
	tableUsers    = "users"
	indexID       = "id"
)

func schema() *memdb.DBSchema {
	byID := func(table string) *memdb.TableSchema {
		return &memdb.TableSchema{
			Name: table,
			Indexes: map[string]*memdb.IndexSchema{
				indexID: {
					Name:    indexID,
					Unique:  true,
					Indexer: &memdb.StringFieldIndex{Field: "ID"},
				},
			},
		}
	}
	return &memdb.DBSchema{
		Tables: map[string]*memdb.TableSchema{
			tableProducts: byID(tableProducts),
			tableUsers:    byID(tableUsers),
		},
	}
}

// Store holds products and users. Writes run in memdb write transactions,
// which are serialized, so a version check and the write it guards are atomic.
type Store struct {
	db *memdb.MemDB
}

// NewStore creates an empty store.
func NewStore() (*Store, error) {
	db, err := memdb.NewMemDB(schema())
	if err != nil {
		return nil, fmt.Errorf("failed to create document store: %w", err)
	}
	return &Store{db: db}, nil
}

// ListProducts returns all products ordered by id.
func (s *Store) ListProducts() ([]product.Product, error) {
	txn := s.db.Txn(false)
	defer txn.Abort()

	it, err := txn.Get(tableProducts, indexID)
	if err != nil {
		return nil, err
	}
	out := []product.Product{}
	for obj := it.Next(); obj != nil; obj = it.Next() {
		out = append(out, obj.(*product.Product).Clone())
	}
	return out, nil
}

// GetProduct returns one product.
func (s *Store) GetProduct(id string) (product.Product, error) {
	txn := s.db.Txn(false)
	defer txn.Abort()

	p, err := getProduct(txn, id)
	if err != nil {
		return product.Product{}, err
	}
	return p.Clone(), nil
}

// PutProduct creates or replaces a product. The stored version continues
// from the previous record so outstanding tokens go stale.
func (s *Store) PutProduct(p product.Product) (product.Product, error) {
	p = p.Normalize()
	if p.ID == "" {
		return product.Product{}, storefront.NewInvalidArgument(ErrMsgIDRequired)
	}
	txn := s.db.Txn(true)
	defer txn.Abort()

	if prev, err := getProduct(txn, p.ID); err == nil {
		p.Version = prev.Version + 1
	} else if p.Version <= 0 {
		p.Version = 1
	}
	stored := p.Clone()
	if err := txn.Insert(tableProducts, &stored); err != nil {
		return product.Product{}, err
	}
	txn.Commit()
	return stored.Clone(), nil
}

// SetStock writes a product's stock. When ifVersion is non-nil the write
// only happens if the stored version still matches.
func (s *Store) SetStock(id string, stock int, ifVersion *int64) (product.Product, error) {
	if stock < 0 {
		return product.Product{}, storefront.NewInvalidArgument(ErrMsgNegativeStock)
	}
	txn := s.db.Txn(true)
	defer txn.Abort()

	current, err := getProduct(txn, id)
	if err != nil {
		return product.Product{}, err
	}
	if ifVersion != nil && *ifVersion != current.Version {
		return product.Product{}, storefront.NewErrorf(storefront.ReasonVersionConflict,
			ErrMsgStaleProduct, id, current.Version, *ifVersion)
	}

	next := current.Clone()
	next.Stock = stock
	next.Version++
	if err := txn.Insert(tableProducts, &next); err != nil {
		return product.Product{}, err
	}
	txn.Commit()
	return next.Clone(), nil
}

// ListUsers returns all users ordered by id.
func (s *Store) ListUsers() ([]order.User, error) {
	txn := s.db.Txn(false)
	defer txn.Abort()

	it, err := txn.Get(tableUsers, indexID)
	if err != nil {
		return nil, err
	}
	out := []order.User{}
	for obj := it.Next(); obj != nil; obj = it.Next() {
		out = append(out, cloneUser(*obj.(*order.User)))
	}
	return out, nil
}

// GetUser returns one user.
func (s *Store) GetUser(id string) (order.User, error) {
	txn := s.db.Txn(false)
	defer txn.Abort()

	u, err := getUser(txn, id)
	if err != nil {
		return order.User{}, err
	}
	return cloneUser(u), nil
}

// PutUser creates or replaces a user record.
func (s *Store) PutUser(u order.User) (order.User, error) {
	u.ID = strings.TrimSpace(u.ID)
	if u.ID == "" {
		return order.User{}, storefront.NewInvalidArgument(ErrMsgIDRequired)
	}
	txn := s.db.Txn(true)
	defer txn.Abort()

	if prev, err := getUser(txn, u.ID); err == nil {
		u.Version = prev.Version + 1
	} else if u.Version <= 0 {
		u.Version = 1
	}
	stored := cloneUser(u)
	if err := txn.Insert(tableUsers, &stored); err != nil {
		return order.User{}, err
	}
	txn.Commit()
	return cloneUser(stored), nil
}

// PatchUser merges the non-nil fields of patch into the user record. When
// ifVersion is non-nil the merge only happens if the version still matches.
func (s *Store) PatchUser(id string, patch order.UserPatch, ifVersion *int64) (order.User, error) {
	txn := s.db.Txn(true)
	defer txn.Abort()

	current, err := getUser(txn, id)
	if err != nil {
		return order.User{}, err
	}
	if ifVersion != nil && *ifVersion != current.Version {
		return order.User{}, storefront.NewErrorf(storefront.ReasonVersionConflict,
			ErrMsgStaleUser, id, current.Version, *ifVersion)
	}

	next := cloneUser(current)
	if patch.Cart != nil {
		next.Cart = patch.Cart.Clone()
	}
	if patch.Orders != nil {
		next.Orders = cloneOrders(*patch.Orders)
	}
	if patch.DefaultAddress != nil {
		addr := *patch.DefaultAddress
		next.DefaultAddress = &addr
	}
	next.Version++
	if err := txn.Insert(tableUsers, &next); err != nil {
		return order.User{}, err
	}
	txn.Commit()
	return cloneUser(next), nil
}

func getProduct(txn *memdb.Txn, id string) (product.Product, error) {
	obj, err := txn.First(tableProducts, indexID, id)
	if err != nil {
		return product.Product{}, err
	}
	if obj == nil {
		return product.Product{}, storefront.NewErrorf(storefront.ReasonProductNotFound, ErrMsgProductNotFound, id)
	}
	return *obj.(*product.Product), nil
}

func getUser(txn *memdb.Txn, id string) (order.User, error) {
	obj, err := txn.First(tableUsers, indexID, id)
	if err != nil {
		return order.User{}, err
	}
	if obj == nil {
		return order.User{}, storefront.NewErrorf(storefront.ReasonUserNotFound, ErrMsgUserNotFound, id)
	}
	return *obj.(*order.User), nil
}

func cloneUser(u order.User) order.User {
	if u.Cart == nil {
		u.Cart = cart.Items{}
	} else {
		u.Cart = u.Cart.Clone()
	}
	u.Orders = cloneOrders(u.Orders)
	if u.DefaultAddress != nil {
		addr := *u.DefaultAddress
		u.DefaultAddress = &addr
	}
	return u
}

func cloneOrders(in []order.Order) []order.Order {
	out := make([]order.Order, len(in))
	for i, o := range in {
		out[i] = o.Clone()
	}
	return out
}
