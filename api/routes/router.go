package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gpuforge/gpuforge-backend/api/controllers"
	"github.com/gpuforge/gpuforge-backend/api/middleware"
	authsvc "github.com/gpuforge/gpuforge-backend/internal/auth"
	catalogsvc "github.com/gpuforge/gpuforge-backend/internal/catalog"
	mediasvc "github.com/gpuforge/gpuforge-backend/internal/media"
	ordersvc "github.com/gpuforge/gpuforge-backend/internal/orders"
	"github.com/gpuforge/gpuforge-backend/pkg/config"
	"github.com/gpuforge/gpuforge-backend/pkg/enums"
	"github.com/gpuforge/gpuforge-backend/pkg/logger"
	"github.com/gpuforge/gpuforge-backend/pkg/metrics"
	"github.com/gpuforge/gpuforge-backend/pkg/redis"
)

type RouterParams struct {
	Config      *config.Config
	Logger      *logger.Logger
	DB          controllers.Pinger
	Redis       *redis.Client
	HTTPMetrics *metrics.HTTPMetrics
	Gatherer    prometheus.Gatherer
	Auth        authsvc.Service
	Catalog     catalogsvc.Service
	Media       *mediasvc.Service
	Orders      ordersvc.Service
}

// NewRouter wires every HTTP endpoint with its middleware chain.
func NewRouter(p RouterParams) http.Handler {
	cfg := p.Config
	logg := p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(p.HTTPMetrics),
		middleware.CORS(),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive())
		r.Get("/ready", controllers.HealthReady(p.DB, p.Redis, logg))
	})
	if p.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(p.Gatherer, promhttp.HandlerOpts{}))
	}

	uploadsDir := http.Dir(cfg.Media.UploadDir)
	r.Handle("/uploads/*", http.StripPrefix("/uploads/", http.FileServer(uploadsDir)))

	r.Route("/api", func(r chi.Router) {
		r.With(
			middleware.AuthRateLimit(registerPolicy, p.Redis, logg),
			middleware.Idempotency(p.Redis, logg),
		).Post("/register", controllers.Register(p.Auth, logg))
		r.With(middleware.AuthRateLimit(loginPolicy, p.Redis, logg)).
			Post("/login", controllers.Login(p.Auth, logg))

		// catalog reads are public
		r.Get("/manufacturers", controllers.ListManufacturers(p.Catalog, logg))
		r.Get("/manufacturers/{id}", controllers.GetManufacturer(p.Catalog, logg))
		r.Get("/brands", controllers.ListBrands(p.Catalog, logg))
		r.Get("/brands/{id}", controllers.GetBrand(p.Catalog, logg))
		r.Get("/graphic-cards", controllers.ListCards(p.Catalog, logg))
		r.Get("/graphic-cards/{id}", controllers.GetCard(p.Catalog, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))

			r.Get("/user/profile", controllers.Profile(p.Auth, logg))

			r.Group(func(r chi.Router) {
				r.Use(middleware.Idempotency(p.Redis, logg))

				r.Post("/orders", controllers.PlaceOrder(p.Orders, logg))
				r.With(middleware.RequireRole(enums.UserRoleAdmin.String(), logg)).
					Put("/orders/{id}", controllers.UpdateOrderStatus(p.Orders, logg))
			})
			r.Get("/orders", controllers.ListOrders(p.Orders, logg))
			r.Get("/orders/{id}", controllers.GetOrder(p.Orders, logg))

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(enums.UserRoleAdmin.String(), logg))

				r.Post("/manufacturers", controllers.CreateManufacturer(p.Catalog, logg))
				r.Put("/manufacturers/{id}", controllers.UpdateManufacturer(p.Catalog, logg))
				r.Delete("/manufacturers/{id}", controllers.DeleteManufacturer(p.Catalog, logg))

				r.Post("/brands", controllers.CreateBrand(p.Catalog, logg))
				r.Put("/brands/{id}", controllers.UpdateBrand(p.Catalog, logg))
				r.Delete("/brands/{id}", controllers.DeleteBrand(p.Catalog, logg))

				r.Post("/graphic-cards", controllers.CreateCard(p.Catalog, logg))
				r.Put("/graphic-cards/{id}", controllers.UpdateCard(p.Catalog, logg))
				r.Delete("/graphic-cards/{id}", controllers.DeleteCard(p.Catalog, logg))
				r.Post("/graphic-cards/{id}/image", controllers.UploadCardImage(p.Catalog, p.Media, logg))

				r.Delete("/orders/{id}", controllers.DeleteOrder(p.Orders, logg))
			})
		})
	})

	return r
}
