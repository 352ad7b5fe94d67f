package remote

import (
	"context"

	"github.com/benjaminabbitt/gainlabz/order"
	"github.com/benjaminabbitt/gainlabz/storefront"
)

// GetUser fetches a user record (GET /users/{id}).
func (c *Client) GetUser(ctx context.Context, id string) (order.User, error) {
	var out order.User
	err := c.do(ctx, "GET", "/users/"+escape(id), nil, nil, notFound(storefront.ReasonUserNotFound), &out)
	return out, err
}

// PatchUser merges patch into the user record (PATCH /users/{id}). When
// patch.IfVersion is set the write is conditional.
func (c *Client) PatchUser(ctx context.Context, id string, patch order.UserPatch) (order.User, error) {
	var out order.User
	err := c.do(ctx, "PATCH", "/users/"+escape(id), patch, patch.IfVersion,
		notFound(storefront.ReasonUserNotFound), &out)
	return out, err
}

// ListUsers fetches every user record (GET /users).
func (c *Client) ListUsers(ctx context.Context) ([]order.User, error) {
	var out []order.User
	if err := c.do(ctx, "GET", "/users", nil, nil, notFound(storefront.ReasonUserNotFound), &out); err != nil {
		return nil, err
	}
	return out, nil
}
