// Package dynamo is the Remote Sync Gateway over DynamoDB. Both tables are
// keyed by a string "id"; writes are conditional updates on "version".
package dynamo

import (
	"context"
	"errors"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"github.com/benjaminabbitt/gainlabz/order"
	"github.com/benjaminabbitt/gainlabz/product"
	"github.com/benjaminabbitt/gainlabz/remote"
	"github.com/benjaminabbitt/gainlabz/remote/internal/record"
	"github.com/benjaminabbitt/gainlabz/storefront"
)

// Default table names.
const (
	DefaultProductsTable = "products"
	DefaultUsersTable    = "users"
)

var _ remote.Gateway = (*Gateway)(nil)

// API is the subset of *dynamodb.Client the gateway calls.
type API interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// Gateway implements remote.Gateway on two DynamoDB tables.
type Gateway struct {
	api           API
	productsTable string
	usersTable    string
	logger        *zap.Logger
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithTables overrides the table names.
func WithTables(products, users string) Option {
	return func(g *Gateway) {
		if products != "" {
			g.productsTable = products
		}
		if users != "" {
			g.usersTable = users
		}
	}
}

// New creates a gateway over api.
func New(api API, logger *zap.Logger, opts ...Option) *Gateway {
	g := &Gateway{
		api:           api,
		productsTable: DefaultProductsTable,
		usersTable:    DefaultUsersTable,
		logger:        storefront.OrNop(logger),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Dial loads the default AWS configuration for region and creates a gateway.
func Dial(ctx context.Context, region string, logger *zap.Logger, opts ...Option) (*Gateway, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, storefront.RemoteIOError("load aws config", err)
	}
	return New(dynamodb.NewFromConfig(cfg), logger, opts...), nil
}

func key(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: id}}
}

func (g *Gateway) ListProducts(ctx context.Context) ([]product.Product, error) {
	var out []product.Product
	p := dynamodb.NewScanPaginator(g.api, &dynamodb.ScanInput{TableName: aws.String(g.productsTable)})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, storefront.RemoteIOError("dynamodb scan products", err)
		}
		var recs []record.Product
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &recs); err != nil {
			return nil, storefront.RemoteIOError("dynamodb decode products", err)
		}
		for _, rec := range recs {
			prod, err := rec.ToProduct()
			if err != nil {
				return nil, storefront.RemoteIOError("dynamodb decode products", err)
			}
			out = append(out, prod)
		}
	}
	return out, nil
}

func (g *Gateway) GetProduct(ctx context.Context, id string) (product.Product, error) {
	id = strings.TrimSpace(id)
	item, err := g.get(ctx, g.productsTable, id)
	if err != nil {
		return product.Product{}, storefront.RemoteIOError("dynamodb get product", err)
	}
	if item == nil {
		return product.Product{}, storefront.NewErrorf(storefront.ReasonProductNotFound, "product %s not found", id)
	}
	return decodeProduct(item)
}

// SetStock writes stock and bumps version only if the stored version still
// equals ifVersion.
func (g *Gateway) SetStock(ctx context.Context, id string, stock int, ifVersion int64) (product.Product, error) {
	id = strings.TrimSpace(id)
	if stock < 0 {
		return product.Product{}, storefront.NewInvalidArgument("stock cannot be negative")
	}
	values, err := attributevalue.MarshalMap(map[string]int64{
		":stock": int64(stock),
		":v":     ifVersion,
		":next":  ifVersion + 1,
	})
	if err != nil {
		return product.Product{}, storefront.RemoteIOError("dynamodb encode stock", err)
	}

	out, err := g.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(g.productsTable),
		Key:                       key(id),
		UpdateExpression:          aws.String("SET stock = :stock, version = :next"),
		ConditionExpression:       aws.String("attribute_exists(id) AND version = :v"),
		ExpressionAttributeValues: values,
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		return product.Product{}, g.conditionFailure(ctx, err, g.productsTable, id,
			storefront.ReasonProductNotFound, "product", ifVersion)
	}
	return decodeProduct(out.Attributes)
}

func (g *Gateway) GetUser(ctx context.Context, id string) (order.User, error) {
	id = strings.TrimSpace(id)
	item, err := g.get(ctx, g.usersTable, id)
	if err != nil {
		return order.User{}, storefront.RemoteIOError("dynamodb get user", err)
	}
	if item == nil {
		return order.User{}, storefront.NewErrorf(storefront.ReasonUserNotFound, "user %s not found", id)
	}
	return decodeUser(item)
}

// PatchUser sets the non-nil fields of patch and bumps version. With
// patch.IfVersion set the update is conditional on it.
func (g *Gateway) PatchUser(ctx context.Context, id string, patch order.UserPatch) (order.User, error) {
	id = strings.TrimSpace(id)
	sets := []string{"version = if_not_exists(version, :zero) + :one"}
	values := map[string]interface{}{":zero": 0, ":one": 1}
	names := map[string]string{}

	if patch.Cart != nil {
		sets = append(sets, "#cart = :cart")
		names["#cart"] = "cart"
		values[":cart"] = record.FromCart(*patch.Cart)
	}
	if patch.Orders != nil {
		sets = append(sets, "#orders = :orders")
		names["#orders"] = "orders"
		values[":orders"] = record.FromOrders(*patch.Orders)
	}
	if patch.DefaultAddress != nil {
		sets = append(sets, "defaultAddress = :addr")
		values[":addr"] = record.FromAddress(*patch.DefaultAddress)
	}

	condition := "attribute_exists(id)"
	if patch.IfVersion != nil {
		condition += " AND version = :v"
		values[":v"] = *patch.IfVersion
	}

	av, err := attributevalue.MarshalMap(values)
	if err != nil {
		return order.User{}, storefront.RemoteIOError("dynamodb encode user patch", err)
	}
	in := &dynamodb.UpdateItemInput{
		TableName:                 aws.String(g.usersTable),
		Key:                       key(id),
		UpdateExpression:          aws.String("SET " + strings.Join(sets, ", ")),
		ConditionExpression:       aws.String(condition),
		ExpressionAttributeValues: av,
		ReturnValues:              types.ReturnValueAllNew,
	}
	if len(names) > 0 {
		in.ExpressionAttributeNames = names
	}

	out, err := g.api.UpdateItem(ctx, in)
	if err != nil {
		var expected int64 = -1
		if patch.IfVersion != nil {
			expected = *patch.IfVersion
		}
		return order.User{}, g.conditionFailure(ctx, err, g.usersTable, id,
			storefront.ReasonUserNotFound, "user", expected)
	}
	return decodeUser(out.Attributes)
}

func (g *Gateway) ListUsers(ctx context.Context) ([]order.User, error) {
	var out []order.User
	p := dynamodb.NewScanPaginator(g.api, &dynamodb.ScanInput{TableName: aws.String(g.usersTable)})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, storefront.RemoteIOError("dynamodb scan users", err)
		}
		for _, item := range page.Items {
			u, err := decodeUser(item)
			if err != nil {
				return nil, err
			}
			out = append(out, u)
		}
	}
	return out, nil
}

// PutProduct writes a whole product item. Used for seeding.
func (g *Gateway) PutProduct(ctx context.Context, p product.Product) error {
	item, err := attributevalue.MarshalMap(record.FromProduct(p.Normalize()))
	if err != nil {
		return storefront.RemoteIOError("dynamodb encode product", err)
	}
	_, err = g.api.PutItem(ctx, &dynamodb.PutItemInput{TableName: aws.String(g.productsTable), Item: item})
	if err != nil {
		return storefront.RemoteIOError("dynamodb put product", err)
	}
	return nil
}

// PutUser writes a whole user item. Used for seeding.
func (g *Gateway) PutUser(ctx context.Context, u order.User) error {
	item, err := attributevalue.MarshalMap(record.FromUser(u))
	if err != nil {
		return storefront.RemoteIOError("dynamodb encode user", err)
	}
	_, err = g.api.PutItem(ctx, &dynamodb.PutItemInput{TableName: aws.String(g.usersTable), Item: item})
	if err != nil {
		return storefront.RemoteIOError("dynamodb put user", err)
	}
	return nil
}

func (g *Gateway) get(ctx context.Context, table, id string) (map[string]types.AttributeValue, error) {
	out, err := g.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(table),
		Key:            key(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	return out.Item, nil
}

// conditionFailure tells a missing item apart from a stale version after a
// conditional update was rejected.
func (g *Gateway) conditionFailure(ctx context.Context, err error, table, id string, missing storefront.Reason, kind string, expected int64) error {
	var ccf *types.ConditionalCheckFailedException
	if !errors.As(err, &ccf) {
		return storefront.RemoteIOError("dynamodb update "+kind, err)
	}
	item, getErr := g.get(ctx, table, id)
	if getErr != nil {
		return storefront.RemoteIOError("dynamodb update "+kind, errors.Join(err, getErr))
	}
	if item == nil {
		return storefront.NewErrorf(missing, "%s %s not found", kind, id)
	}
	g.logger.Debug("conditional update rejected",
		zap.String("table", table),
		zap.String("id", id),
		zap.Int64("expected_version", expected),
	)
	return &storefront.CommandError{
		Code:    storefront.StatusAborted,
		Reason:  storefront.ReasonVersionConflict,
		Message: kind + " " + id + " changed since it was read",
		Cause:   err,
	}
}

func decodeProduct(item map[string]types.AttributeValue) (product.Product, error) {
	var rec record.Product
	if err := attributevalue.UnmarshalMap(item, &rec); err != nil {
		return product.Product{}, storefront.RemoteIOError("dynamodb decode product", err)
	}
	p, err := rec.ToProduct()
	if err != nil {
		return product.Product{}, storefront.RemoteIOError("dynamodb decode product", err)
	}
	return p, nil
}

func decodeUser(item map[string]types.AttributeValue) (order.User, error) {
	var rec record.User
	if err := attributevalue.UnmarshalMap(item, &rec); err != nil {
		return order.User{}, storefront.RemoteIOError("dynamodb decode user", err)
	}
	u, err := rec.ToUser()
	if err != nil {
		return order.User{}, storefront.RemoteIOError("dynamodb decode user", err)
	}
	return u, nil
}
