package remote

import (
	"github.com/benjaminabbitt/gainlabz/inventory"
	"github.com/benjaminabbitt/gainlabz/order"
	"github.com/benjaminabbitt/gainlabz/product"
)

// Gateway is everything the core reads from and writes to the remote store.
// Implementations: Client (HTTP), firestore.Gateway, dynamo.Gateway.
type Gateway interface {
	product.Source
	inventory.Store
	order.UserStore
}

var _ Gateway = (*Client)(nil)
