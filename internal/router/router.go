package router

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/noq-app/api/internal/config"
	"github.com/noq-app/api/internal/database"
	"github.com/noq-app/api/internal/gateway"
	"github.com/noq-app/api/internal/handler"
	mw "github.com/noq-app/api/internal/middleware"
	"github.com/noq-app/api/internal/service"
	"github.com/noq-app/api/internal/ws"
)

// New creates a Chi router with all application routes wired up.
// Applies authentication, canteen scoping, and role-based middleware as needed.
func New(cfg *config.Config, queries *database.Queries, pool *pgxpool.Pool, hub *ws.Hub) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{
			"http://localhost:5173", // SvelteKit dev server
			"https://app.noq.college",
			"https://staff.noq.college",
		},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","version":"1.0.0"}`))
	})

	// Auth routes (public)
	authHandler := handler.NewAuthHandler(queries, cfg.JWTSecret)
	authHandler.RegisterRoutes(r)

	// Payment gateway webhook (public; the HMAC signature is the auth)
	webhookService := service.NewWebhookService(cfg.RazorpayWebhookSecret, queries, hub)
	webhookHandler := handler.NewWebhookHandler(webhookService)
	webhookHandler.RegisterRoutes(r)

	// WebSocket route (handles auth internally via query param)
	r.Get("/ws/canteens/{cid}/orders", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(hub, cfg.JWTSecret, w, r)
	})

	// Protected routes (require authentication)
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		// Checkout
		gw := gateway.NewClient(cfg.RazorpayKeyID, cfg.RazorpayKeySecret)
		checkoutService := service.NewCheckoutService(
			queries,
			pool,
			func(db database.DBTX) service.CheckoutStore {
				return database.New(db)
			},
			gw,
		)
		checkoutHandler := handler.NewCheckoutHandler(checkoutService, cfg.RazorpayKeyID)
		checkoutHandler.RegisterRoutes(r)

		// Customer orders
		orderHandler := handler.NewOrderHandler(queries, hub)
		r.Route("/orders", orderHandler.RegisterCustomerRoutes)

		// Canteens
		canteenHandler := handler.NewCanteenHandler(queries)
		r.Route("/canteens", func(r chi.Router) {
			canteenHandler.RegisterRoutes(r)

			// Admin-only canteen management
			r.Group(func(r chi.Router) {
				r.Use(mw.RequireRole("ADMIN"))
				canteenHandler.RegisterAdminRoutes(r)
			})

			// Staff fulfillment (canteen-scoped)
			r.Route("/{cid}/orders", func(r chi.Router) {
				r.Use(mw.RequireCanteen)
				orderHandler.RegisterCanteenRoutes(r)
			})
		})
	})

	log.Println("Router initialized with all handlers")
	return r
}
