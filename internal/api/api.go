package api

import (
	"errors"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/Agroly/store/internal/cart"
	"github.com/Agroly/store/internal/catalog"
	"github.com/Agroly/store/internal/commerce"
	"github.com/Agroly/store/internal/entity"
	"github.com/Agroly/store/internal/metrics"
	"github.com/Agroly/store/internal/order"
	"github.com/Agroly/store/internal/session"
)

// Handler exposes the storefront state to the UI.
type Handler struct {
	catalog *catalog.Cache
	cart    *cart.Store
	session *session.Session
	orders  *order.Service
	metrics *metrics.Registry
}

func NewHandler(cat *catalog.Cache, c *cart.Store, s *session.Session, o *order.Service, m *metrics.Registry) *Handler {
	return &Handler{catalog: cat, cart: c, session: s, orders: o, metrics: m}
}

// Routes attaches the handlers to the echo instance.
func (h *Handler) Routes(e *echo.Echo) {
	e.GET("/products", h.Products)

	e.GET("/cart", h.Cart)
	e.POST("/cart/items", h.AddToCart)
	e.POST("/cart/items/:id/increment", h.IncrementLine)
	e.POST("/cart/items/:id/decrement", h.DecrementLine)
	e.DELETE("/cart/items/:id", h.RemoveLine)

	e.POST("/login", h.Login)
	e.POST("/register", h.Register)
	e.POST("/logout", h.Logout)

	e.POST("/checkout", h.Checkout)
	e.GET("/account", h.Account)
}

// Products refreshes the catalog and returns it. When the refresh fails the
// last-known-good cache is served instead; only an empty cache is an error.
func (h *Handler) Products(c echo.Context) error {
	ctx := c.Request().Context()

	products, err := h.catalog.FetchAll(ctx)
	if err != nil {
		cached, cerr := h.catalog.All(ctx)
		if cerr != nil || len(cached) == 0 {
			return c.JSON(502, map[string]string{"error": "catalog unavailable"})
		}
		return c.JSON(200, cached)
	}
	return c.JSON(200, products)
}

type cartView struct {
	Lines  []entity.CartLine `json:"lines"`
	Totals entity.Totals     `json:"totals"`
}

func (h *Handler) cartView() cartView {
	lines := h.cart.Lines()
	if lines == nil {
		lines = []entity.CartLine{}
	}
	return cartView{Lines: lines, Totals: h.cart.Totals()}
}

// Cart returns the lines plus derived totals so the UI renders the badge
// and steppers without recomputing.
func (h *Handler) Cart(c echo.Context) error {
	return c.JSON(200, h.cartView())
}

// AddToCart resolves the product and merges it into the cart.
func (h *Handler) AddToCart(c echo.Context) error {
	ctx := c.Request().Context()

	body := struct {
		ProductID int `json:"productId"`
	}{}
	if err := c.Bind(&body); err != nil {
		return c.JSON(400, map[string]string{"error": "Invalid request payload"})
	}

	product, ok := h.catalog.Resolve(ctx, body.ProductID)
	if !ok {
		fetched, err := h.catalog.FetchOne(ctx, body.ProductID)
		if err != nil {
			return c.JSON(404, map[string]string{"error": "product not found"})
		}
		product = fetched
	}

	if err := h.cart.Add(product); err != nil {
		return c.JSON(500, map[string]string{"error": err.Error()})
	}
	h.metrics.CartMutations.Inc()
	return c.JSON(200, h.cartView())
}

func (h *Handler) IncrementLine(c echo.Context) error {
	return h.mutateLine(c, h.cart.Increment)
}

func (h *Handler) DecrementLine(c echo.Context) error {
	return h.mutateLine(c, h.cart.Decrement)
}

func (h *Handler) RemoveLine(c echo.Context) error {
	return h.mutateLine(c, h.cart.Remove)
}

func (h *Handler) mutateLine(c echo.Context, op func(int) error) error {
	id := c.Param("id")
	idInt, err := strconv.Atoi(id)
	if err != nil {
		return c.JSON(400, map[string]string{"error": "Invalid ID"})
	}

	if err := op(idInt); err != nil {
		return c.JSON(500, map[string]string{"error": err.Error()})
	}
	h.metrics.CartMutations.Inc()
	return c.JSON(200, h.cartView())
}

// Login authenticates against the remote API and installs the session.
func (h *Handler) Login(c echo.Context) error {
	ctx := c.Request().Context()

	body := struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}{}
	if err := c.Bind(&body); err != nil {
		return c.JSON(400, map[string]string{"error": "Invalid request payload"})
	}

	user, err := h.session.Login(ctx, body.Email, body.Password)
	if err != nil {
		if errors.Is(err, session.ErrInvalidEmail) {
			return c.JSON(400, map[string]string{"error": err.Error()})
		}
		return c.JSON(401, map[string]string{"error": "invalid email or password"})
	}
	return c.JSON(200, map[string]interface{}{"user": user})
}

// Register creates an account and logs it in.
func (h *Handler) Register(c echo.Context) error {
	ctx := c.Request().Context()

	reg := commerce.Registration{}
	if err := c.Bind(&reg); err != nil {
		return c.JSON(400, map[string]string{"error": "Invalid request payload"})
	}

	user, err := h.session.Register(ctx, reg)
	if err != nil {
		if errors.Is(err, session.ErrInvalidEmail) || errors.Is(err, session.ErrShortPassword) {
			return c.JSON(400, map[string]string{"error": err.Error()})
		}
		return c.JSON(409, map[string]string{"error": "registration failed"})
	}
	return c.JSON(200, map[string]interface{}{"user": user})
}

func (h *Handler) Logout(c echo.Context) error {
	h.session.Logout()
	return c.JSON(200, map[string]string{"message": "logged out"})
}

// Checkout submits the current cart as an order.
func (h *Handler) Checkout(c echo.Context) error {
	created, err := h.orders.Submit(c.Request().Context())
	if err != nil {
		switch {
		case errors.Is(err, order.ErrNotLoggedIn):
			return c.JSON(401, map[string]string{"error": "log in to place an order"})
		case errors.Is(err, order.ErrEmptyCart):
			return c.JSON(422, map[string]string{"error": "cart is empty"})
		default:
			return c.JSON(502, map[string]string{"error": err.Error()})
		}
	}
	return c.JSON(200, created)
}

// Account returns the profile plus the enriched order history.
func (h *Handler) Account(c echo.Context) error {
	user, ok := h.session.Current()
	if !ok {
		return c.JSON(401, map[string]string{"error": "not logged in"})
	}

	views, err := h.orders.History(c.Request().Context())
	if err != nil {
		if errors.Is(err, order.ErrNotLoggedIn) {
			return c.JSON(401, map[string]string{"error": "not logged in"})
		}
		return c.JSON(502, map[string]string{"error": err.Error()})
	}
	if views == nil {
		views = []order.View{}
	}
	return c.JSON(200, map[string]interface{}{"user": user, "orders": views})
}
