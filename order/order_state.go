package order

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/benjaminabbitt/gainlabz/cart"
)

// Line is one order line, priced at placement time.
type Line struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	Variant   string          `json:"variant"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Quantity  int             `json:"quantity"`
}

// Total is UnitPrice x Quantity.
func (l Line) Total() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Address is a delivery address. Every field is required at checkout.
type Address struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Street    string `json:"street"`
	City      string `json:"city"`
	Zip       string `json:"zip"`
	Country   string `json:"country"`
	Phone     string `json:"phone"`
}

// PaymentMethod is how the buyer intends to pay. Payment processing itself
// happens elsewhere.
type PaymentMethod string

const (
	PaymentCOD  PaymentMethod = "cod"
	PaymentCard PaymentMethod = "card"
	PaymentUPI  PaymentMethod = "upi"
)

// Valid reports whether m is a supported method.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCOD, PaymentCard, PaymentUPI:
		return true
	}
	return false
}

// Order is a placed order as persisted on the user record.
type Order struct {
	ID            string          `json:"id"`
	UserID        string          `json:"userId"`
	Items         []Line          `json:"items"`
	Amount        decimal.Decimal `json:"amount"`
	DeliveryFee   decimal.Decimal `json:"deliveryFee"`
	Status        Status          `json:"status"`
	Date          time.Time       `json:"date"`
	PaymentMethod PaymentMethod   `json:"paymentMethod"`
	UPIID         string          `json:"upiId,omitempty"`
	Address       Address         `json:"address"`
}

// Quantities sums line quantities per product.
func (o Order) Quantities() map[string]int {
	out := make(map[string]int, len(o.Items))
	for _, l := range o.Items {
		out[l.ProductID] += l.Quantity
	}
	return out
}

// Clone returns a copy with its own Items slice.
func (o Order) Clone() Order {
	cp := o
	cp.Items = append([]Line(nil), o.Items...)
	return cp
}

// User is the remote user record the core reads and patches.
type User struct {
	ID             string     `json:"id"`
	Email          string     `json:"email"`
	Name           string     `json:"name"`
	Role           string     `json:"role"`
	Cart           cart.Items `json:"cart"`
	Orders         []Order    `json:"orders"`
	DefaultAddress *Address   `json:"defaultAddress,omitempty"`
	Version        int64      `json:"version"`
}

// FindOrder returns the index of orderID in u.Orders, or -1.
func (u User) FindOrder(orderID string) int {
	for i := range u.Orders {
		if u.Orders[i].ID == orderID {
			return i
		}
	}
	return -1
}

// UserPatch is a partial update; nil fields are left untouched.
// IfVersion, when set, makes the write conditional on the stored version.
type UserPatch struct {
	Cart           *cart.Items `json:"cart,omitempty"`
	Orders         *[]Order    `json:"orders,omitempty"`
	DefaultAddress *Address    `json:"defaultAddress,omitempty"`
	IfVersion      *int64      `json:"-"`
}

// Checkout is the buyer's input to PlaceOrder.
type Checkout struct {
	Address       Address       `json:"address"`
	PaymentMethod PaymentMethod `json:"paymentMethod"`
	UPIID         string        `json:"upiId,omitempty"`
}

// View is an order together with its owner, used by the admin aggregate read.
type View struct {
	UserID    string `json:"userId"`
	UserEmail string `json:"userEmail"`
	Order     Order  `json:"order"`
}
