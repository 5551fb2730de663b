package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kestrelcommerce/storefront-backend/api/middleware"
	"github.com/kestrelcommerce/storefront-backend/api/responses"
	"github.com/kestrelcommerce/storefront-backend/api/validators"
	"github.com/kestrelcommerce/storefront-backend/internal/cart"
	"github.com/kestrelcommerce/storefront-backend/internal/identity"
	pkgerrors "github.com/kestrelcommerce/storefront-backend/pkg/errors"
	"github.com/kestrelcommerce/storefront-backend/pkg/logger"
)

type cartAddRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"required,min=1"`
}

type cartUpdateRequest struct {
	Quantity *int `json:"quantity" validate:"required,min=0"`
}

type cartResponse struct {
	Lines         []cart.EnrichedLine `json:"lines"`
	IsLoading     bool                `json:"is_loading"`
	IsMutating    bool                `json:"is_mutating"`
	LineCount     int                 `json:"line_count"`
	TotalQuantity int                 `json:"total_quantity"`
	Total         string              `json:"total"`
}

func toCartResponse(snap cart.Snapshot) cartResponse {
	return cartResponse{
		Lines:         snap.Lines,
		IsLoading:     snap.Loading,
		IsMutating:    snap.Mutating,
		LineCount:     snap.Count(),
		TotalQuantity: snap.TotalQuantity(),
		Total:         snap.Total().StringFixed(2),
	}
}

func callerIdentity(r *http.Request) (identity.Identity, error) {
	ident := middleware.IdentityFromContext(r.Context())
	if !ident.State.IsValid() {
		return identity.Identity{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "caller identity not resolved")
	}
	return ident, nil
}

func CartFetch(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ident, err := callerIdentity(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		snap, err := svc.Snapshot(r.Context(), ident)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toCartResponse(snap))
	}
}

func CartAddItem(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ident, err := callerIdentity(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req cartAddRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		productID, err := uuid.Parse(req.ProductID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid product id"))
			return
		}

		snap, err := svc.Add(r.Context(), ident, productID, req.Quantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toCartResponse(snap))
	}
}

func CartUpdateItem(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ident, err := callerIdentity(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		productID, err := uuid.Parse(chi.URLParam(r, "productID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid product id"))
			return
		}

		var req cartUpdateRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		snap, err := svc.Update(r.Context(), ident, productID, *req.Quantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toCartResponse(snap))
	}
}

func CartRemoveItem(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ident, err := callerIdentity(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		productID, err := uuid.Parse(chi.URLParam(r, "productID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid product id"))
			return
		}

		snap, err := svc.Remove(r.Context(), ident, productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toCartResponse(snap))
	}
}

func CartClear(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ident, err := callerIdentity(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		snap, err := svc.Clear(r.Context(), ident)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toCartResponse(snap))
	}
}

func CartRefresh(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ident, err := callerIdentity(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		snap, err := svc.Refresh(r.Context(), ident)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toCartResponse(snap))
	}
}
