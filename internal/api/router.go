package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/CaioWing/Arcade/internal/api/docs"
	"github.com/CaioWing/Arcade/internal/api/management"
	"github.com/CaioWing/Arcade/internal/api/middleware"
	"github.com/CaioWing/Arcade/internal/api/response"
	"github.com/CaioWing/Arcade/internal/api/storefront"
	"github.com/CaioWing/Arcade/internal/auth"
	"github.com/CaioWing/Arcade/internal/metrics"
	"github.com/CaioWing/Arcade/internal/service"
)

type RouterDeps struct {
	DeviceSvc      *service.DeviceService
	WorkOrderSvc   *service.WorkOrderService
	PolicySvc      *service.PolicyService
	MaintenanceSvc *service.MaintenanceService
	EligibilitySvc *service.EligibilityService
	StockSvc       *service.StockService
	AuditSvc       *service.AuditService
	StockHub       *storefront.Hub
	JWTManager     *auth.JWTManager
	AdminEmail     string
	AdminPassword  string
	Metrics        *metrics.Metrics
	CORSOrigins    []string
	Logger         *zap.Logger
	// Done stops background housekeeping such as rate limiter cleanup.
	Done <-chan struct{}
}

func NewRouter(deps RouterDeps) (http.Handler, error) {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.Logger(deps.Logger))
	r.Use(deps.Metrics.Middleware())

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{storefront.SourceHeader, "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Prometheus metrics
	r.Get("/metrics", deps.Metrics.Handler())

	// OpenAPI docs
	r.Handle("/docs/*", http.StripPrefix("/docs/", docs.Handler()))

	// Storefront API: public, read-only
	storefrontStock := storefront.NewStockHandler(deps.StockSvc, deps.EligibilitySvc)

	r.Route("/api/v1/storefront", func(r chi.Router) {
		// 20 req/s with burst of 40 per client
		r.Use(middleware.RateLimit(middleware.NewRateLimiter(20, 40, deps.Done), deps.Logger))
		r.Use(chimiddleware.Timeout(15 * time.Second))

		r.Get("/stock", storefrontStock.Stock)
		r.Get("/devices/{id}/eligibility", storefrontStock.Eligibility)
	})
	// The stream is long-lived, so it sits outside the request timeout.
	r.With(middleware.RateLimit(middleware.NewRateLimiter(1, 5, deps.Done), deps.Logger)).
		Get("/api/v1/storefront/stock/stream", deps.StockHub.ServeHTTP)

	// Management API: operators
	mgmtAuthHandler, err := management.NewAuthHandler(deps.JWTManager, deps.AdminEmail, deps.AdminPassword, deps.Logger)
	if err != nil {
		return nil, err
	}
	mgmtDeviceHandler := management.NewDeviceHandler(deps.DeviceSvc)
	mgmtWorkOrderHandler := management.NewWorkOrderHandler(deps.WorkOrderSvc)
	mgmtPolicyHandler := management.NewPolicyHandler(deps.PolicySvc)
	mgmtEvaluationHandler := management.NewEvaluationHandler(deps.MaintenanceSvc)
	mgmtStockHandler := management.NewStockHandler(deps.StockSvc, deps.Logger)
	mgmtAuditHandler := management.NewAuditHandler(deps.AuditSvc)

	r.Route("/api/v1/management", func(r chi.Router) {
		// 30 req/s with burst of 60 per client
		r.Use(middleware.RateLimit(middleware.NewRateLimiter(30, 60, deps.Done), deps.Logger))

		// Login (no auth required)
		r.Post("/auth/login", mgmtAuthHandler.Login)

		// Authenticated management endpoints
		r.Group(func(r chi.Router) {
			r.Use(middleware.ManagementAuth(deps.JWTManager))
			r.Use(middleware.AuditLog(deps.AuditSvc))

			r.Post("/auth/refresh", mgmtAuthHandler.Refresh)

			// Devices
			r.Get("/devices", mgmtDeviceHandler.List)
			r.Post("/devices", mgmtDeviceHandler.Intake)
			r.Get("/devices/count", mgmtDeviceHandler.Count)
			r.Get("/devices/{id}", mgmtDeviceHandler.Get)
			r.Post("/devices/{id}/rent", mgmtDeviceHandler.Rent)
			r.Post("/devices/{id}/return", mgmtDeviceHandler.Return)
			r.Post("/devices/{id}/retire", mgmtDeviceHandler.Retire)
			r.Put("/devices/{id}/maintenance", mgmtDeviceHandler.SetMaintenance)
			r.Put("/devices/{id}/health", mgmtDeviceHandler.SetHealth)
			r.Get("/devices/{id}/audit", mgmtAuditHandler.DeviceTrail)

			// Work orders
			r.Get("/work-orders", mgmtWorkOrderHandler.List)
			r.Post("/work-orders", mgmtWorkOrderHandler.Create)
			r.Get("/work-orders/{id}", mgmtWorkOrderHandler.Get)
			r.Post("/work-orders/{id}/start", mgmtWorkOrderHandler.Start)
			r.Post("/work-orders/{id}/wait", mgmtWorkOrderHandler.Wait)
			r.Post("/work-orders/{id}/complete", mgmtWorkOrderHandler.Complete)
			r.Post("/work-orders/{id}/cancel", mgmtWorkOrderHandler.Cancel)

			// Maintenance policies
			r.Get("/policies", mgmtPolicyHandler.List)
			r.Post("/policies", mgmtPolicyHandler.Create)
			r.Post("/policies/{id}/activate", mgmtPolicyHandler.Activate)
			r.Post("/policies/{id}/deactivate", mgmtPolicyHandler.Deactivate)

			// Evaluator
			r.Post("/evaluations", mgmtEvaluationHandler.Run)

			// Stock
			r.Post("/stock/invalidate", mgmtStockHandler.Invalidate)
			r.Get("/stock/export", mgmtStockHandler.Export)

			// Audit Log
			r.Get("/audit", mgmtAuditHandler.List)
		})
	})

	return r, nil
}
