package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kestrelcommerce/storefront-backend/api/controllers"
	"github.com/kestrelcommerce/storefront-backend/api/middleware"
	"github.com/kestrelcommerce/storefront-backend/internal/cart"
	checkoutsvc "github.com/kestrelcommerce/storefront-backend/internal/checkout"
	"github.com/kestrelcommerce/storefront-backend/pkg/config"
	"github.com/kestrelcommerce/storefront-backend/pkg/db"
	"github.com/kestrelcommerce/storefront-backend/pkg/logger"
	"github.com/kestrelcommerce/storefront-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	registry *prometheus.Registry,
	cartService cart.Service,
	checkoutService checkoutsvc.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	var cacheP db.Pinger
	if redisClient != nil {
		cacheP = redisClient
	}
	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, cacheP))
	})

	if registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Identity(cfg.JWT, logg))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.CartFetch(cartService, logg))
			r.Delete("/", controllers.CartClear(cartService, logg))
			r.Post("/refresh", controllers.CartRefresh(cartService, logg))
			r.Post("/items", controllers.CartAddItem(cartService, logg))
			r.Patch("/items/{productID}", controllers.CartUpdateItem(cartService, logg))
			r.Delete("/items/{productID}", controllers.CartRemoveItem(cartService, logg))
		})

		r.Post("/checkout", controllers.Checkout(checkoutService, logg))
	})

	return r
}
