package entity

import "time"

// Product is a catalog entry as served by the remote commerce API.
// Immutable from the gateway's point of view; replaced wholesale on refresh.
type Product struct {
	ID            int     `json:"id"`
	Name          string  `json:"name"`
	Description   string  `json:"description"`
	Price         float64 `json:"price"`
	PhotoURL      string  `json:"photoUrl"`
	PhotoFileName string  `json:"photoFileName,omitempty"`
}

// CartLine is one product-and-quantity pair in the cart. Display fields are
// copied from the Product at add time so the cart renders without the catalog.
type CartLine struct {
	ProductID int     `json:"productId"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	PhotoURL  string  `json:"photoUrl"`
	Quantity  int     `json:"quantity"`
}

// Totals are the derived cart aggregates. Never stored, always recomputed.
type Totals struct {
	LineCount  int     `json:"lineCount"`
	ItemCount  int     `json:"itemCount"`
	TotalPrice float64 `json:"totalPrice"`
}

// User is the authenticated identity returned by login/register.
type User struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Address string `json:"address"`
}

// OrderItem references a product by identifier only; display data is
// resolved separately through the catalog.
type OrderItem struct {
	ProductID int `json:"productId"`
	Quantity  int `json:"quantity"`
}

// Order is a server-accepted order record.
type Order struct {
	ID         int         `json:"id"`
	OrderDate  time.Time   `json:"orderDate"`
	Email      string      `json:"email"`
	Address    string      `json:"address"`
	TotalPrice float64     `json:"totalPrice"`
	Status     string      `json:"status"`
	OrderItems []OrderItem `json:"orderItems"`
}

// OrderDraft is the submission payload for POST /orders. The total is
// recomputed from the cart at submission time; the server re-validates it.
type OrderDraft struct {
	Email      string      `json:"email"`
	Address    string      `json:"address"`
	TotalPrice float64     `json:"totalPrice"`
	OrderItems []OrderItem `json:"orderItems"`
	Status     string      `json:"status"`
}
