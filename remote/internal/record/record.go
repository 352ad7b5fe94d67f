// Package record holds the stored document shapes shared by the Firestore
// and DynamoDB gateways. Money is stored as decimal strings so no precision
// is lost in either store.
package record

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/benjaminabbitt/gainlabz/cart"
	"github.com/benjaminabbitt/gainlabz/order"
	"github.com/benjaminabbitt/gainlabz/product"
)

// Product is a stored product.
type Product struct {
	ID         string   `firestore:"-" dynamodbav:"id"`
	Name       string   `firestore:"name" dynamodbav:"name"`
	Price      string   `firestore:"price" dynamodbav:"price"`
	OnSale     bool     `firestore:"onSale" dynamodbav:"onSale"`
	OfferPrice *string  `firestore:"offerPrice" dynamodbav:"offerPrice,omitempty"`
	Stock      int64    `firestore:"stock" dynamodbav:"stock"`
	Variants   []string `firestore:"variants" dynamodbav:"variants"`
	Version    int64    `firestore:"version" dynamodbav:"version"`
}

// Address is a stored address.
type Address struct {
	FirstName string `firestore:"firstName" dynamodbav:"firstName"`
	LastName  string `firestore:"lastName" dynamodbav:"lastName"`
	Email     string `firestore:"email" dynamodbav:"email"`
	Street    string `firestore:"street" dynamodbav:"street"`
	City      string `firestore:"city" dynamodbav:"city"`
	Zip       string `firestore:"zip" dynamodbav:"zip"`
	Country   string `firestore:"country" dynamodbav:"country"`
	Phone     string `firestore:"phone" dynamodbav:"phone"`
}

// Line is a stored order line.
type Line struct {
	ProductID string `firestore:"productId" dynamodbav:"productId"`
	Name      string `firestore:"name" dynamodbav:"name"`
	Variant   string `firestore:"variant" dynamodbav:"variant"`
	UnitPrice string `firestore:"unitPrice" dynamodbav:"unitPrice"`
	Quantity  int64  `firestore:"quantity" dynamodbav:"quantity"`
}

// Order is a stored order.
type Order struct {
	ID            string    `firestore:"id" dynamodbav:"id"`
	UserID        string    `firestore:"userId" dynamodbav:"userId"`
	Items         []Line    `firestore:"items" dynamodbav:"items"`
	Amount        string    `firestore:"amount" dynamodbav:"amount"`
	DeliveryFee   string    `firestore:"deliveryFee" dynamodbav:"deliveryFee"`
	Status        string    `firestore:"status" dynamodbav:"status"`
	Date          time.Time `firestore:"date" dynamodbav:"date"`
	PaymentMethod string    `firestore:"paymentMethod" dynamodbav:"paymentMethod"`
	UPIID         string    `firestore:"upiId" dynamodbav:"upiId,omitempty"`
	Address       Address   `firestore:"address" dynamodbav:"address"`
}

// Cart is a stored cart.
type Cart map[string]map[string]int64

// User is a stored user.
type User struct {
	ID             string   `firestore:"-" dynamodbav:"id"`
	Email          string   `firestore:"email" dynamodbav:"email"`
	Name           string   `firestore:"name" dynamodbav:"name"`
	Role           string   `firestore:"role" dynamodbav:"role"`
	Cart           Cart     `firestore:"cart" dynamodbav:"cart"`
	Orders         []Order  `firestore:"orders" dynamodbav:"orders"`
	DefaultAddress *Address `firestore:"defaultAddress" dynamodbav:"defaultAddress,omitempty"`
	Version        int64    `firestore:"version" dynamodbav:"version"`
}

// FromProduct converts a domain product for storage.
func FromProduct(p product.Product) Product {
	out := Product{
		ID:       p.ID,
		Name:     p.Name,
		Price:    p.Price.String(),
		OnSale:   p.OnSale,
		Stock:    int64(p.Stock),
		Variants: append([]string(nil), p.Variants...),
		Version:  p.Version,
	}
	if p.OfferPrice != nil {
		s := p.OfferPrice.String()
		out.OfferPrice = &s
	}
	return out
}

// ToProduct converts a stored product back.
func (r Product) ToProduct() (product.Product, error) {
	price, err := parseMoney(r.Price)
	if err != nil {
		return product.Product{}, fmt.Errorf("product %s price: %w", r.ID, err)
	}
	out := product.Product{
		ID:       r.ID,
		Name:     r.Name,
		Price:    price,
		OnSale:   r.OnSale,
		Stock:    int(r.Stock),
		Variants: append([]string(nil), r.Variants...),
		Version:  r.Version,
	}
	if r.OfferPrice != nil && *r.OfferPrice != "" {
		offer, err := parseMoney(*r.OfferPrice)
		if err != nil {
			return product.Product{}, fmt.Errorf("product %s offer price: %w", r.ID, err)
		}
		out.OfferPrice = &offer
	}
	return out.Normalize(), nil
}

// FromCart converts a domain cart for storage.
func FromCart(items cart.Items) Cart {
	out := make(Cart, len(items))
	for pid, variants := range items.Clone() {
		out[pid] = make(map[string]int64, len(variants))
		for v, qty := range variants {
			out[pid][v] = int64(qty)
		}
	}
	return out
}

// ToCart converts a stored cart back, dropping non-positive entries.
func (c Cart) ToCart() cart.Items {
	out := make(cart.Items, len(c))
	for pid, variants := range c {
		for v, qty := range variants {
			if qty <= 0 {
				continue
			}
			if out[pid] == nil {
				out[pid] = make(map[string]int)
			}
			out[pid][v] = int(qty)
		}
	}
	return out
}

// FromAddress converts a domain address for storage.
func FromAddress(a order.Address) Address {
	return Address(a)
}

// ToAddress converts a stored address back.
func (a Address) ToAddress() order.Address {
	return order.Address(a)
}

// FromOrders converts domain orders for storage.
func FromOrders(orders []order.Order) []Order {
	out := make([]Order, 0, len(orders))
	for _, o := range orders {
		rec := Order{
			ID:            o.ID,
			UserID:        o.UserID,
			Amount:        o.Amount.String(),
			DeliveryFee:   o.DeliveryFee.String(),
			Status:        string(o.Status),
			Date:          o.Date.UTC(),
			PaymentMethod: string(o.PaymentMethod),
			UPIID:         o.UPIID,
			Address:       FromAddress(o.Address),
		}
		for _, l := range o.Items {
			rec.Items = append(rec.Items, Line{
				ProductID: l.ProductID,
				Name:      l.Name,
				Variant:   l.Variant,
				UnitPrice: l.UnitPrice.String(),
				Quantity:  int64(l.Quantity),
			})
		}
		out = append(out, rec)
	}
	return out
}

// ToOrders converts stored orders back.
func ToOrders(recs []Order) ([]order.Order, error) {
	out := make([]order.Order, 0, len(recs))
	for _, r := range recs {
		amount, err := parseMoney(r.Amount)
		if err != nil {
			return nil, fmt.Errorf("order %s amount: %w", r.ID, err)
		}
		fee, err := parseMoney(r.DeliveryFee)
		if err != nil {
			return nil, fmt.Errorf("order %s delivery fee: %w", r.ID, err)
		}
		o := order.Order{
			ID:            r.ID,
			UserID:        r.UserID,
			Amount:        amount,
			DeliveryFee:   fee,
			Status:        order.Status(r.Status),
			Date:          r.Date,
			PaymentMethod: order.PaymentMethod(r.PaymentMethod),
			UPIID:         r.UPIID,
			Address:       r.Address.ToAddress(),
		}
		for _, l := range r.Items {
			price, err := parseMoney(l.UnitPrice)
			if err != nil {
				return nil, fmt.Errorf("order %s line %s: %w", r.ID, l.ProductID, err)
			}
			o.Items = append(o.Items, order.Line{
				ProductID: l.ProductID,
				Name:      l.Name,
				Variant:   l.Variant,
				UnitPrice: price,
				Quantity:  int(l.Quantity),
			})
		}
		out = append(out, o)
	}
	return out, nil
}

// FromUser converts a domain user for storage.
func FromUser(u order.User) User {
	out := User{
		ID:      u.ID,
		Email:   u.Email,
		Name:    u.Name,
		Role:    u.Role,
		Cart:    FromCart(u.Cart),
		Orders:  FromOrders(u.Orders),
		Version: u.Version,
	}
	if u.DefaultAddress != nil {
		addr := FromAddress(*u.DefaultAddress)
		out.DefaultAddress = &addr
	}
	return out
}

// ToUser converts a stored user back.
func (r User) ToUser() (order.User, error) {
	orders, err := ToOrders(r.Orders)
	if err != nil {
		return order.User{}, fmt.Errorf("user %s: %w", r.ID, err)
	}
	out := order.User{
		ID:      r.ID,
		Email:   r.Email,
		Name:    r.Name,
		Role:    r.Role,
		Cart:    r.Cart.ToCart(),
		Orders:  orders,
		Version: r.Version,
	}
	if r.DefaultAddress != nil {
		addr := r.DefaultAddress.ToAddress()
		out.DefaultAddress = &addr
	}
	return out, nil
}

func parseMoney(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}
