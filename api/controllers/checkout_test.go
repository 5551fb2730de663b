package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/kestrelcommerce/storefront-backend/api/middleware"
	"github.com/kestrelcommerce/storefront-backend/internal/checkout"
	"github.com/kestrelcommerce/storefront-backend/internal/identity"
	pkgerrors "github.com/kestrelcommerce/storefront-backend/pkg/errors"
)

type stubCheckout struct {
	receipt *checkout.Receipt
	err     error
}

func (s *stubCheckout) PlaceOrder(context.Context, identity.Identity) (*checkout.Receipt, error) {
	return s.receipt, s.err
}

func TestCheckoutCreated(t *testing.T) {
	t.Parallel()

	svc := &stubCheckout{receipt: &checkout.Receipt{OrderIDs: []uuid.UUID{uuid.New()}, Lines: 1}}
	handler := Checkout(svc, nil)

	req := httptest.NewRequest(http.MethodPost, "/checkout", nil)
	req = req.WithContext(middleware.WithIdentity(req.Context(), identity.Authenticated(uuid.New(), "sess-1", true)))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
}

func TestCheckoutForbidden(t *testing.T) {
	t.Parallel()

	svc := &stubCheckout{err: pkgerrors.New(pkgerrors.CodeForbidden, "checkout requires a verified account")}
	handler := Checkout(svc, nil)

	req := httptest.NewRequest(http.MethodPost, "/checkout", nil)
	req = req.WithContext(middleware.WithIdentity(req.Context(), identity.Anonymous("sess-1")))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}
