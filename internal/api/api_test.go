package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/Agroly/store/internal/cart"
	"github.com/Agroly/store/internal/catalog"
	"github.com/Agroly/store/internal/commerce"
	"github.com/Agroly/store/internal/entity"
	"github.com/Agroly/store/internal/localstate"
	"github.com/Agroly/store/internal/metrics"
	"github.com/Agroly/store/internal/order"
	"github.com/Agroly/store/internal/session"
)

type stubFetcher struct {
	products func(ctx context.Context) ([]entity.Product, error)
	product  func(ctx context.Context, id int) (*entity.Product, error)
}

func (s *stubFetcher) Products(ctx context.Context) ([]entity.Product, error) {
	if s.products == nil {
		return nil, errors.New("not stubbed")
	}
	return s.products(ctx)
}

func (s *stubFetcher) Product(ctx context.Context, id int) (*entity.Product, error) {
	if s.product == nil {
		return nil, errors.New("not found")
	}
	return s.product(ctx, id)
}

type stubOrderAPI struct {
	createCalls int
	created     *entity.Order
	createErr   error
}

func (s *stubOrderAPI) CreateOrder(context.Context, entity.OrderDraft) (*entity.Order, error) {
	s.createCalls++
	return s.created, s.createErr
}

func (s *stubOrderAPI) OrdersByEmail(context.Context, string) ([]entity.Order, error) {
	return nil, nil
}

type stubAuth struct{ err error }

func (s *stubAuth) Login(context.Context, string, string) (*commerce.AuthResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &commerce.AuthResponse{Token: "tok", User: entity.User{Name: "A", Email: "a@b.com", Address: "X"}}, nil
}

func (s *stubAuth) Register(context.Context, commerce.Registration) (*commerce.AuthResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &commerce.AuthResponse{Token: "tok", User: entity.User{Name: "A", Email: "a@b.com", Address: "X"}}, nil
}

type testEnv struct {
	handler  *Handler
	cart     *cart.Store
	session  *session.Session
	orderAPI *stubOrderAPI
	echo     *echo.Echo
}

func newEnv(t *testing.T, fetcher catalog.Fetcher, auth session.Authenticator) *testEnv {
	t.Helper()
	state := localstate.NewInMemoryStore()
	reg := metrics.NewRegistry()
	if fetcher == nil {
		fetcher = &stubFetcher{}
	}
	if auth == nil {
		auth = &stubAuth{}
	}
	cache := catalog.NewCache(fetcher, "http://commerce.local", catalog.NewMemoryBackend(), reg)
	cartStore := cart.NewStore(state)
	sess := session.New(state, auth)
	orderAPI := &stubOrderAPI{created: &entity.Order{ID: 12, Status: "created"}}
	orders := order.NewService(cartStore, sess, cache, orderAPI, nil, reg)
	return &testEnv{
		handler:  NewHandler(cache, cartStore, sess, orders, reg),
		cart:     cartStore,
		session:  sess,
		orderAPI: orderAPI,
		echo:     echo.New(),
	}
}

func (env *testEnv) request(method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	return env.echo.NewContext(req, rec), rec
}

func (env *testEnv) login(t *testing.T) {
	t.Helper()
	_, err := env.session.Login(context.Background(), "a@b.com", "secret")
	require.NoError(t, err)
}

func TestCheckoutUnauthenticated(t *testing.T) {
	env := newEnv(t, nil, nil)
	require.NoError(t, env.cart.Add(entity.Product{ID: 1, Price: 100}))

	c, rec := env.request(http.MethodPost, "/checkout", "")
	require.NoError(t, env.handler.Checkout(c))
	require.Equal(t, 401, rec.Code)
	require.Contains(t, rec.Body.String(), "log in")
	require.Zero(t, env.orderAPI.createCalls)
}

func TestCheckoutEmptyCart(t *testing.T) {
	env := newEnv(t, nil, nil)
	env.login(t)

	c, rec := env.request(http.MethodPost, "/checkout", "")
	require.NoError(t, env.handler.Checkout(c))
	require.Equal(t, 422, rec.Code)
	require.Zero(t, env.orderAPI.createCalls)
}

func TestCheckoutSuccess(t *testing.T) {
	env := newEnv(t, nil, nil)
	env.login(t)
	require.NoError(t, env.cart.Add(entity.Product{ID: 1, Price: 100}))

	c, rec := env.request(http.MethodPost, "/checkout", "")
	require.NoError(t, env.handler.Checkout(c))
	require.Equal(t, 200, rec.Code)

	var created entity.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.Equal(t, 12, created.ID)
	require.Zero(t, env.cart.Totals().ItemCount)
}

func TestCheckoutRemoteFailure(t *testing.T) {
	env := newEnv(t, nil, nil)
	env.login(t)
	require.NoError(t, env.cart.Add(entity.Product{ID: 1, Price: 100}))
	env.orderAPI.createErr = errors.New("connection refused")

	c, rec := env.request(http.MethodPost, "/checkout", "")
	require.NoError(t, env.handler.Checkout(c))
	require.Equal(t, 502, rec.Code)
	require.Equal(t, 1, env.cart.Totals().ItemCount, "failure leaves the cart intact")
}

func TestProductsServesLastKnownGoodOnRefreshFailure(t *testing.T) {
	fail := false
	fetcher := &stubFetcher{products: func(context.Context) ([]entity.Product, error) {
		if fail {
			return nil, errors.New("connection refused")
		}
		return []entity.Product{{ID: 1, Name: "Chair", Price: 100}}, nil
	}}
	env := newEnv(t, fetcher, nil)

	c, rec := env.request(http.MethodGet, "/products", "")
	require.NoError(t, env.handler.Products(c))
	require.Equal(t, 200, rec.Code)

	fail = true
	c, rec = env.request(http.MethodGet, "/products", "")
	require.NoError(t, env.handler.Products(c))
	require.Equal(t, 200, rec.Code, "a failed refresh serves the warm cache")

	var products []entity.Product
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &products))
	require.Len(t, products, 1)
	require.Equal(t, "Chair", products[0].Name)
}

func TestProductsFailsOnlyWithEmptyCache(t *testing.T) {
	env := newEnv(t, &stubFetcher{}, nil)

	c, rec := env.request(http.MethodGet, "/products", "")
	require.NoError(t, env.handler.Products(c))
	require.Equal(t, 502, rec.Code)
	require.Contains(t, rec.Body.String(), "catalog unavailable")
}

func TestAddToCartResolvesProduct(t *testing.T) {
	fetcher := &stubFetcher{product: func(_ context.Context, id int) (*entity.Product, error) {
		return &entity.Product{ID: id, Name: "Chair", Price: 100, PhotoFileName: "chair.jpg"}, nil
	}}
	env := newEnv(t, fetcher, nil)

	for i := 0; i < 2; i++ {
		c, rec := env.request(http.MethodPost, "/cart/items", `{"productId":1}`)
		require.NoError(t, env.handler.AddToCart(c))
		require.Equal(t, 200, rec.Code)
	}

	var view struct {
		Lines  []entity.CartLine `json:"lines"`
		Totals entity.Totals     `json:"totals"`
	}
	c, rec := env.request(http.MethodGet, "/cart", "")
	require.NoError(t, env.handler.Cart(c))
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	require.Len(t, view.Lines, 1)
	require.Equal(t, 2, view.Totals.ItemCount)
	require.Equal(t, 200.0, view.Totals.TotalPrice)
}

func TestAddToCartUnknownProduct(t *testing.T) {
	env := newEnv(t, nil, nil)

	c, rec := env.request(http.MethodPost, "/cart/items", `{"productId":99}`)
	require.NoError(t, env.handler.AddToCart(c))
	require.Equal(t, 404, rec.Code)
	require.Empty(t, env.cart.Lines())
}

func TestMutateLineRejectsBadID(t *testing.T) {
	env := newEnv(t, nil, nil)

	c, rec := env.request(http.MethodPost, "/cart/items/abc/increment", "")
	c.SetParamNames("id")
	c.SetParamValues("abc")
	require.NoError(t, env.handler.IncrementLine(c))
	require.Equal(t, 400, rec.Code)
}

func TestDecrementThroughHandlerRemovesLine(t *testing.T) {
	env := newEnv(t, nil, nil)
	require.NoError(t, env.cart.Add(entity.Product{ID: 2, Price: 50}))

	c, rec := env.request(http.MethodPost, "/cart/items/2/decrement", "")
	c.SetParamNames("id")
	c.SetParamValues("2")
	require.NoError(t, env.handler.DecrementLine(c))
	require.Equal(t, 200, rec.Code)
	require.Empty(t, env.cart.Lines())
}

func TestLoginRejectsBadEmailLocally(t *testing.T) {
	env := newEnv(t, nil, nil)

	c, rec := env.request(http.MethodPost, "/login", `{"email":"nope","password":"secret"}`)
	require.NoError(t, env.handler.Login(c))
	require.Equal(t, 400, rec.Code)
}

func TestLoginBadCredentials(t *testing.T) {
	env := newEnv(t, nil, &stubAuth{err: errors.New("bad credentials")})

	c, rec := env.request(http.MethodPost, "/login", `{"email":"a@b.com","password":"wrong"}`)
	require.NoError(t, env.handler.Login(c))
	require.Equal(t, 401, rec.Code)
	require.Contains(t, rec.Body.String(), "invalid email or password")
}

func TestRegisterShortPassword(t *testing.T) {
	env := newEnv(t, nil, nil)

	c, rec := env.request(http.MethodPost, "/register", `{"email":"a@b.com","name":"A","address":"X","password":"1234"}`)
	require.NoError(t, env.handler.Register(c))
	require.Equal(t, 400, rec.Code)
	require.Contains(t, rec.Body.String(), "at least 5 characters")
}

func TestAccountRequiresLogin(t *testing.T) {
	env := newEnv(t, nil, nil)

	c, rec := env.request(http.MethodGet, "/account", "")
	require.NoError(t, env.handler.Account(c))
	require.Equal(t, 401, rec.Code)
}

func TestLogoutKeepsCart(t *testing.T) {
	env := newEnv(t, nil, nil)
	env.login(t)
	require.NoError(t, env.cart.Add(entity.Product{ID: 1, Price: 100}))

	c, rec := env.request(http.MethodPost, "/logout", "")
	require.NoError(t, env.handler.Logout(c))
	require.Equal(t, 200, rec.Code)

	_, ok := env.session.Current()
	require.False(t, ok)
	require.Equal(t, 1, env.cart.Totals().ItemCount, "cart persists across login state changes")
}
