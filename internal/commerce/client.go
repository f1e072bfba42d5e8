package commerce

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/Agroly/store/internal/entity"
)

// Client talks to the remote commerce API. It is a thin transport layer:
// no caching, no retries, every failure is returned to the caller as-is.
type Client struct {
	baseURL string
	httpc   *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   http.DefaultClient,
	}
}

// BaseURL is exposed so the catalog can rewrite relative image paths
// against the same host the records came from.
func (c *Client) BaseURL() string { return c.baseURL }

// AuthResponse is the body of a successful login or registration.
type AuthResponse struct {
	Token string      `json:"token"`
	User  entity.User `json:"user"`
}

// Registration is the POST /register payload.
type Registration struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Address  string `json:"address"`
	Password string `json:"password"`
}

// Products retrieves the full catalog.
func (c *Client) Products(ctx context.Context) ([]entity.Product, error) {
	var products []entity.Product
	if err := c.get(ctx, "/products", &products); err != nil {
		return nil, err
	}
	return products, nil
}

// Product retrieves a single catalog entry by identifier.
func (c *Client) Product(ctx context.Context, id int) (*entity.Product, error) {
	var product entity.Product
	if err := c.get(ctx, fmt.Sprintf("/products/%d", id), &product); err != nil {
		return nil, err
	}
	return &product, nil
}

// OrdersByEmail retrieves the order history for a user.
func (c *Client) OrdersByEmail(ctx context.Context, email string) ([]entity.Order, error) {
	var orders []entity.Order
	path := "/orders?email=" + url.QueryEscape(email)
	if err := c.get(ctx, path, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// CreateOrder submits an order draft. Each successful call creates a new
// order server-side; the client never retries on its own.
func (c *Client) CreateOrder(ctx context.Context, draft entity.OrderDraft) (*entity.Order, error) {
	var order entity.Order
	if err := c.post(ctx, "/orders", draft, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// Login exchanges credentials for a token and user record.
func (c *Client) Login(ctx context.Context, email, password string) (*AuthResponse, error) {
	body := struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}{Email: email, Password: password}

	var auth AuthResponse
	if err := c.post(ctx, "/login", body, &auth); err != nil {
		return nil, err
	}
	return &auth, nil
}

// Register creates an account and logs it in.
func (c *Client) Register(ctx context.Context, reg Registration) (*AuthResponse, error) {
	var auth AuthResponse
	if err := c.post(ctx, "/register", reg, &auth); err != nil {
		return nil, err
	}
	return &auth, nil
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return responseError(resp)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return responseError(resp)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// responseError surfaces the server's "error" field when the body carries
// one, otherwise the bare status.
func responseError(resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil && body.Error != "" {
		return fmt.Errorf("%s %s: %s", resp.Request.Method, resp.Request.URL.Path, body.Error)
	}
	return fmt.Errorf("%s %s: unexpected status %d", resp.Request.Method, resp.Request.URL.Path, resp.StatusCode)
}
