package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mesaqr/api/internal/config"
	"github.com/mesaqr/api/internal/database"
	"github.com/mesaqr/api/internal/events"
	"github.com/mesaqr/api/internal/handler"
	mw "github.com/mesaqr/api/internal/middleware"
	"github.com/mesaqr/api/internal/permission"
	"github.com/mesaqr/api/internal/ratelimit"
	"github.com/mesaqr/api/internal/service"
	"github.com/mesaqr/api/internal/ws"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Deps are the long-lived collaborators shared by every route.
type Deps struct {
	Config    *config.Config
	Logger    *zap.Logger
	Pool      *pgxpool.Pool
	Hub       *ws.Hub
	Limiter   ratelimit.Limiter
	Publisher events.Publisher
}

var (
	_ service.OrderStore   = (*database.Scoped)(nil)
	_ service.ItemStore    = (*database.Scoped)(nil)
	_ service.ConsoleStore = (*database.Scoped)(nil)
	_ service.ClosureStore = (*database.Scoped)(nil)
)

// New creates a Chi router with all application routes wired up.
// Public QR routes are unauthenticated; staff routes require a token and
// the permission named next to each route.
func New(d Deps) chi.Router {
	cfg, logger := d.Config, d.Logger
	queries := database.New(d.Pool)
	perms := permission.Default()

	vatRate, err := decimal.NewFromString(cfg.DefaultVATRate)
	if err != nil {
		logger.Warn("invalid DEFAULT_VAT_RATE, using 10", zap.String("value", cfg.DefaultVATRate))
		vatRate = decimal.NewFromInt(10)
	}

	orderService := service.NewOrderService(d.Pool, queries,
		func(db database.DBTX, tenantID uuid.UUID) service.OrderStore { return database.NewScoped(db, tenantID) },
		d.Limiter, d.Publisher,
		service.OrderDefaults{VATRate: vatRate, Timezone: cfg.DefaultTimezone},
		logger.Named("orders"))
	itemService := service.NewItemService(d.Pool,
		func(db database.DBTX, tenantID uuid.UUID) service.ItemStore { return database.NewScoped(db, tenantID) },
		d.Publisher, logger.Named("items"))
	consoleService := service.NewConsoleService(d.Pool,
		func(db database.DBTX, tenantID uuid.UUID) service.ConsoleStore {
			return database.NewScoped(db, tenantID)
		})
	closureService := service.NewClosureService(d.Pool,
		func(db database.DBTX, tenantID uuid.UUID) service.ClosureStore {
			return database.NewScoped(db, tenantID)
		},
		d.Publisher, logger.Named("closure"))

	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(mw.RequestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","version":"1.0.0"}`))
	})

	// Auth routes (public)
	handler.NewAuthHandler(queries, cfg.JWTSecret, logger).RegisterRoutes(r)

	// Customer QR routes (public, rate limited in the service)
	publicHandler := handler.NewPublicHandler(orderService, logger)
	r.Route("/public/{slug}/tables/{qr}", func(r chi.Router) {
		r.Use(middleware.Timeout(15 * time.Second))
		publicHandler.RegisterRoutes(r)
	})

	// WebSocket route (handles auth internally via query param)
	r.Get("/ws/tenants/me/events", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(d.Hub, cfg.JWTSecret, logger.Named("ws"), w, r)
	})

	// Protected routes (require authentication)
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		sectorHandler := handler.NewSectorHandler(consoleService, logger)
		r.Route("/sectors", func(r chi.Router) {
			r.Use(mw.RequirePermission(perms, permission.ResourceOrders, permission.ActionRead))
			sectorHandler.RegisterRoutes(r)
		})

		itemHandler := handler.NewItemHandler(itemService, logger)
		r.Route("/order-items", func(r chi.Router) {
			r.Use(mw.RequirePermission(perms, permission.ResourceOrderItems, permission.ActionUpdate))
			itemHandler.RegisterRoutes(r)
		})

		orderHandler := handler.NewOrderHandler(orderService, logger)
		r.Route("/orders", func(r chi.Router) {
			r.Use(mw.RequirePermission(perms, permission.ResourceOrders, permission.ActionUpdate))
			orderHandler.RegisterRoutes(r)
		})

		tableHandler := handler.NewTableHandler(closureService, logger)
		r.Route("/tables", func(r chi.Router) {
			r.Use(mw.RequirePermission(perms, permission.ResourcePayments, permission.ActionProcess))
			tableHandler.RegisterRoutes(r)
		})
	})

	logger.Info("router initialized")
	return r
}
