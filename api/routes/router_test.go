package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kestrelcommerce/storefront-backend/internal/cart"
	"github.com/kestrelcommerce/storefront-backend/internal/checkout"
	"github.com/kestrelcommerce/storefront-backend/internal/identity"
	"github.com/kestrelcommerce/storefront-backend/pkg/config"
)

type noopCart struct{}

func (noopCart) Snapshot(context.Context, identity.Identity) (cart.Snapshot, error) {
	return cart.Snapshot{}, nil
}
func (noopCart) Add(context.Context, identity.Identity, uuid.UUID, int) (cart.Snapshot, error) {
	return cart.Snapshot{}, nil
}
func (noopCart) Update(context.Context, identity.Identity, uuid.UUID, int) (cart.Snapshot, error) {
	return cart.Snapshot{}, nil
}
func (noopCart) Remove(context.Context, identity.Identity, uuid.UUID) (cart.Snapshot, error) {
	return cart.Snapshot{}, nil
}
func (noopCart) Clear(context.Context, identity.Identity) (cart.Snapshot, error) {
	return cart.Snapshot{}, nil
}
func (noopCart) Refresh(context.Context, identity.Identity) (cart.Snapshot, error) {
	return cart.Snapshot{}, nil
}
func (noopCart) Has(context.Context, identity.Identity, uuid.UUID) (bool, error) {
	return false, nil
}

type noopCheckout struct{}

func (noopCheckout) PlaceOrder(context.Context, identity.Identity) (*checkout.Receipt, error) {
	return &checkout.Receipt{}, nil
}

func newTestRouter() http.Handler {
	cfg := &config.Config{
		App: config.AppConfig{Env: "dev", Port: "8080"},
		JWT: config.JWTConfig{Secret: "test-secret", Issuer: "storefront-test", ExpirationMinutes: 15},
	}
	return NewRouter(cfg, nil, nil, nil, prometheus.NewRegistry(), noopCart{}, noopCheckout{})
}

func TestRouterHealthLive(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	newTestRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Storefront-Env") != "dev" {
		t.Fatalf("missing env header, got %q", rec.Header().Get("X-Storefront-Env"))
	}
}

func TestRouterMetricsExposed(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	newTestRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
}

func TestRouterCartRequiresIdentity(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	newTestRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without credentials, got %d", rec.Code)
	}
}

func TestRouterCartGuestSession(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	req.Header.Set("X-Guest-Session", "sess-1")
	rec := httptest.NewRecorder()
	newTestRouter().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
}

func TestRouterCartVerifiedToken(t *testing.T) {
	t.Parallel()

	cfg := config.JWTConfig{Secret: "test-secret", Issuer: "storefront-test", ExpirationMinutes: 15}
	token, err := identity.MintAccessToken(cfg, time.Now(), uuid.New(), true)
	if err != nil {
		t.Fatalf("MintAccessToken: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	newTestRouter().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
}
