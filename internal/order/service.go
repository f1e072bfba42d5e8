package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/Agroly/store/internal/cart"
	"github.com/Agroly/store/internal/catalog"
	"github.com/Agroly/store/internal/entity"
	"github.com/Agroly/store/internal/metrics"
	"github.com/Agroly/store/internal/session"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

// initialStatus is the status a freshly submitted order carries.
const initialStatus = "created"

var (
	// ErrNotLoggedIn short-circuits checkout before any network call; the UI
	// turns it into a prompt to log in or register.
	ErrNotLoggedIn = errors.New("not logged in")
	// ErrEmptyCart short-circuits checkout for an empty cart. Surfaced as an
	// error rather than a silent no-op so a UI that failed to disable the
	// button still explains itself.
	ErrEmptyCart = errors.New("cart is empty")
)

// API is the slice of the commerce client the order service needs.
type API interface {
	CreateOrder(ctx context.Context, draft entity.OrderDraft) (*entity.Order, error)
	OrdersByEmail(ctx context.Context, email string) ([]entity.Order, error)
}

// EventWriter is satisfied by *kafka.Writer.
type EventWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Service builds orders from the current cart and session, submits them,
// and projects the order history with resolved product data.
type Service struct {
	cart    *cart.Store
	session *session.Session
	catalog *catalog.Cache
	api     API
	writer  EventWriter
	metrics *metrics.Registry
}

// NewService wires the order builder. writer may be nil; event publishing
// is then skipped.
func NewService(c *cart.Store, s *session.Session, cat *catalog.Cache, api API, writer EventWriter, m *metrics.Registry) *Service {
	return &Service{cart: c, session: s, catalog: cat, api: api, writer: writer, metrics: m}
}

// Submit builds an order snapshot from the cart as it is right now and
// sends it. Preconditions are checked before any network call. On success
// the cart is cleared; on any failure it is left untouched and the caller
// decides how to surface the error. Submission is never retried here: the
// server creates a new order per call.
func (s *Service) Submit(ctx context.Context) (*entity.Order, error) {
	user, ok := s.session.Current()
	if !ok {
		return nil, ErrNotLoggedIn
	}

	// One consistent view of the cart: the total is recomputed from the
	// same lines that go into the draft, so neither a stale displayed
	// total nor a concurrent mutation can make them disagree.
	lines, totals := s.cart.Snapshot()
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}

	items := make([]entity.OrderItem, 0, len(lines))
	for _, l := range lines {
		items = append(items, entity.OrderItem{ProductID: l.ProductID, Quantity: l.Quantity})
	}

	draft := entity.OrderDraft{
		Email:      user.Email,
		Address:    user.Address,
		TotalPrice: totals.TotalPrice,
		OrderItems: items,
		Status:     initialStatus,
	}

	start := time.Now()
	created, err := s.api.CreateOrder(ctx, draft)
	if err != nil {
		s.metrics.OrdersFailed.Inc()
		logger.Error().Err(err).Msg("Error submitting order")
		return nil, err
	}
	s.metrics.OrdersSubmitted.Inc()
	s.metrics.CheckoutLatencySec.Observe(time.Since(start).Seconds())

	if err := s.cart.Clear(); err != nil {
		// The order exists server-side; a stale local cart is the lesser
		// problem and the next mutation will rewrite it.
		logger.Error().Err(err).Msg("Error clearing cart after checkout")
	}

	s.publish(ctx, created)
	return created, nil
}

// ItemView is an order line enriched with resolved product data. Resolved
// is false when the product lookup failed or the record is gone; the line
// still renders with its identifier and quantity.
type ItemView struct {
	ProductID int     `json:"productId"`
	Quantity  int     `json:"quantity"`
	Name      string  `json:"name,omitempty"`
	Price     float64 `json:"price,omitempty"`
	PhotoURL  string  `json:"photoUrl,omitempty"`
	Resolved  bool    `json:"resolved"`
}

// View is one historical order as shown on the account page.
type View struct {
	ID         int        `json:"id"`
	OrderDate  time.Time  `json:"orderDate"`
	Address    string     `json:"address"`
	TotalPrice float64    `json:"totalPrice"`
	Status     string     `json:"status"`
	Items      []ItemView `json:"items"`
}

// History fetches the session user's orders and enriches each line through
// the catalog. Product lookups fan out concurrently; a failed lookup
// degrades its line, never the batch.
func (s *Service) History(ctx context.Context) ([]View, error) {
	user, ok := s.session.Current()
	if !ok {
		return nil, ErrNotLoggedIn
	}

	orders, err := s.api.OrdersByEmail(ctx, user.Email)
	if err != nil {
		logger.Error().Err(err).Msg("Error fetching order history")
		return nil, err
	}

	var ids []int
	for _, o := range orders {
		for _, item := range o.OrderItems {
			ids = append(ids, item.ProductID)
		}
	}
	resolved := s.catalog.ResolveBatch(ctx, ids)

	views := make([]View, 0, len(orders))
	for _, o := range orders {
		v := View{
			ID:         o.ID,
			OrderDate:  o.OrderDate,
			Address:    o.Address,
			TotalPrice: o.TotalPrice,
			Status:     o.Status,
			Items:      make([]ItemView, 0, len(o.OrderItems)),
		}
		for _, item := range o.OrderItems {
			iv := ItemView{ProductID: item.ProductID, Quantity: item.Quantity}
			if r, ok := resolved[item.ProductID]; ok && r.Err == nil {
				iv.Name = r.Product.Name
				iv.Price = r.Product.Price
				iv.PhotoURL = r.Product.PhotoURL
				iv.Resolved = true
			}
			v.Items = append(v.Items, iv)
		}
		views = append(views, v)
	}
	return views, nil
}

// publish emits an order-submitted event for downstream consumers. Failures
// are logged and never fail the checkout.
func (s *Service) publish(ctx context.Context, o *entity.Order) {
	if s.writer == nil {
		return
	}

	payload, err := json.Marshal(o)
	if err != nil {
		logger.Error().Err(err).Msg("Error marshalling order event")
		return
	}
	msg := kafka.Message{
		Key:   []byte(fmt.Sprintf("order-submitted-%d", o.ID)),
		Value: payload,
	}
	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		logger.Error().Err(err).Msgf("Error publishing event for order %d", o.ID)
	}
}
