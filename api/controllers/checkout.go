package controllers

import (
	"net/http"

	"github.com/kestrelcommerce/storefront-backend/api/responses"
	"github.com/kestrelcommerce/storefront-backend/internal/checkout"
	"github.com/kestrelcommerce/storefront-backend/pkg/logger"
)

func Checkout(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ident, err := callerIdentity(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		receipt, err := svc.PlaceOrder(r.Context(), ident)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, receipt)
	}
}
