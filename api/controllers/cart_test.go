package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kestrelcommerce/storefront-backend/api/middleware"
	"github.com/kestrelcommerce/storefront-backend/internal/cart"
	"github.com/kestrelcommerce/storefront-backend/internal/identity"
	pkgerrors "github.com/kestrelcommerce/storefront-backend/pkg/errors"
)

type stubCartService struct {
	snap    cart.Snapshot
	err     error
	lastOp  string
	lastID  uuid.UUID
	lastQty int
}

func (s *stubCartService) Snapshot(context.Context, identity.Identity) (cart.Snapshot, error) {
	s.lastOp = "snapshot"
	return s.snap, s.err
}

func (s *stubCartService) Add(_ context.Context, _ identity.Identity, productID uuid.UUID, qty int) (cart.Snapshot, error) {
	s.lastOp, s.lastID, s.lastQty = "add", productID, qty
	return s.snap, s.err
}

func (s *stubCartService) Update(_ context.Context, _ identity.Identity, productID uuid.UUID, qty int) (cart.Snapshot, error) {
	s.lastOp, s.lastID, s.lastQty = "update", productID, qty
	return s.snap, s.err
}

func (s *stubCartService) Remove(_ context.Context, _ identity.Identity, productID uuid.UUID) (cart.Snapshot, error) {
	s.lastOp, s.lastID = "remove", productID
	return s.snap, s.err
}

func (s *stubCartService) Clear(context.Context, identity.Identity) (cart.Snapshot, error) {
	s.lastOp = "clear"
	return s.snap, s.err
}

func (s *stubCartService) Refresh(context.Context, identity.Identity) (cart.Snapshot, error) {
	s.lastOp = "refresh"
	return s.snap, s.err
}

func (s *stubCartService) Has(context.Context, identity.Identity, uuid.UUID) (bool, error) {
	return false, nil
}

func cartRouter(svc cart.Service) http.Handler {
	r := chi.NewRouter()
	r.Get("/cart", CartFetch(svc, nil))
	r.Delete("/cart", CartClear(svc, nil))
	r.Post("/cart/refresh", CartRefresh(svc, nil))
	r.Post("/cart/items", CartAddItem(svc, nil))
	r.Patch("/cart/items/{productID}", CartUpdateItem(svc, nil))
	r.Delete("/cart/items/{productID}", CartRemoveItem(svc, nil))
	return r
}

func doCartRequest(t *testing.T, handler http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	req = req.WithContext(middleware.WithIdentity(req.Context(), identity.Anonymous("sess-1")))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestCartFetchReturnsSnapshot(t *testing.T) {
	t.Parallel()

	productID := uuid.New()
	svc := &stubCartService{snap: cart.Snapshot{Lines: []cart.EnrichedLine{{
		Line: cart.Line{ProductID: productID, Quantity: 2},
	}}}}

	rec := doCartRequest(t, cartRouter(svc), http.MethodGet, "/cart", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}

	var envelope struct {
		Data cartResponse `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.LineCount != 1 || envelope.Data.TotalQuantity != 2 {
		t.Fatalf("unexpected payload: %+v", envelope.Data)
	}
	if envelope.Data.Total != "0.00" {
		t.Fatalf("degraded line should total 0.00, got %s", envelope.Data.Total)
	}
}

func TestCartAddItem(t *testing.T) {
	t.Parallel()

	svc := &stubCartService{}
	productID := uuid.New()
	body := `{"product_id":"` + productID.String() + `","quantity":3}`

	rec := doCartRequest(t, cartRouter(svc), http.MethodPost, "/cart/items", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
	if svc.lastOp != "add" || svc.lastID != productID || svc.lastQty != 3 {
		t.Fatalf("service not invoked as expected: %+v", svc)
	}
}

func TestCartAddItemRejectsBadBody(t *testing.T) {
	t.Parallel()

	cases := []string{
		`{}`,
		`{"product_id":"not-a-uuid","quantity":1}`,
		`{"product_id":"` + uuid.NewString() + `","quantity":0}`,
		`{"product_id":"` + uuid.NewString() + `","quantity":1,"extra":true}`,
	}
	for _, body := range cases {
		svc := &stubCartService{}
		rec := doCartRequest(t, cartRouter(svc), http.MethodPost, "/cart/items", body)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("body %s: expected 400, got %d", body, rec.Code)
		}
		if svc.lastOp != "" {
			t.Fatalf("body %s: service should not be called", body)
		}
	}
}

func TestCartUpdateItemAllowsZero(t *testing.T) {
	t.Parallel()

	svc := &stubCartService{}
	productID := uuid.New()

	rec := doCartRequest(t, cartRouter(svc), http.MethodPatch, "/cart/items/"+productID.String(), `{"quantity":0}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
	if svc.lastOp != "update" || svc.lastID != productID || svc.lastQty != 0 {
		t.Fatalf("service not invoked as expected: %+v", svc)
	}
}

func TestCartRemoveItem(t *testing.T) {
	t.Parallel()

	svc := &stubCartService{}
	productID := uuid.New()

	rec := doCartRequest(t, cartRouter(svc), http.MethodDelete, "/cart/items/"+productID.String(), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
	if svc.lastOp != "remove" || svc.lastID != productID {
		t.Fatalf("service not invoked as expected: %+v", svc)
	}
}

func TestCartErrorsMapToTaxonomy(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err    error
		status int
	}{
		{pkgerrors.New(pkgerrors.CodeForbidden, "account not verified"), http.StatusForbidden},
		{pkgerrors.New(pkgerrors.CodeConflict, "cart mutation already in progress"), http.StatusConflict},
		{pkgerrors.New(pkgerrors.CodeDependency, "cart store write failed"), http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		svc := &stubCartService{err: tc.err}
		body := `{"product_id":"` + uuid.NewString() + `","quantity":1}`
		rec := doCartRequest(t, cartRouter(svc), http.MethodPost, "/cart/items", body)
		if rec.Code != tc.status {
			t.Fatalf("error %v: expected %d, got %d", tc.err, tc.status, rec.Code)
		}
	}
}

func TestCartMissingIdentityIsUnauthorized(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/cart", nil)
	rec := httptest.NewRecorder()
	cartRouter(&stubCartService{}).ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}
