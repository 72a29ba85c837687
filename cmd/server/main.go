package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/raffletime/miniapp-engine/internal/api"
	"github.com/raffletime/miniapp-engine/internal/config"
	"github.com/raffletime/miniapp-engine/internal/metrics"
	"github.com/raffletime/miniapp-engine/internal/minikit"
	"github.com/raffletime/miniapp-engine/internal/minikit/mock"
	"github.com/raffletime/miniapp-engine/internal/raffle"
	"github.com/raffletime/miniapp-engine/internal/session"
	"github.com/raffletime/miniapp-engine/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	env := config.FromOS()
	env.ValidateProductionSafety(logger)
	mockCfg := env.MockConfig()

	// --- Initialize store ---
	var st store.Store
	var rdb *redis.Client
	var cleanup []func()

	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		pool, err := pgxpool.New(context.Background(), dbURL)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pool.Close)
		st = store.NewPostgresStore(pool)
		slog.Info("connected to PostgreSQL")
	} else {
		slog.Warn("DATABASE_URL not set, using in-memory store (data will not persist)")
		st = store.NewMemoryStore()
	}

	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			slog.Error("invalid REDIS_URL", "err", err)
			os.Exit(1)
		}
		rdb = redis.NewClient(opt)
		cleanup = append(cleanup, func() { rdb.Close() })
		st = store.NewCachedStore(st, rdb, 30*time.Second)
		slog.Info("Redis cache enabled")
	}

	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	// --- Development fixtures ---
	if mockCfg.IsMockEnabled {
		ctx := context.Background()
		if err := st.SeedBeneficiaries(ctx, raffle.SeedBeneficiaries()); err != nil {
			slog.Warn("beneficiary seeding failed", "err", err)
		}
		for _, rf := range raffle.SeedRaffles() {
			rf := rf
			if err := st.CreateRaffle(ctx, &rf); err != nil {
				slog.Warn("raffle seeding skipped", "id", rf.ID, "err", err)
			}
		}
		slog.Info("development fixtures seeded")
	}

	// --- Ticket limits ---
	limiter := raffle.NewTicketLimiter(100, 250)

	// --- WebSocket hub ---
	hub := api.NewHub()
	go hub.Run()

	// --- SDK client selection ---
	// Mock mode wires the simulator plus the session controller; otherwise
	// commands go through the HTTP bridge to the host app.
	var client minikit.Client
	var ctrl *session.Controller

	if mockCfg.IsMockEnabled {
		sim := mock.NewSimulator()

		var kv session.KV
		if rdb != nil {
			kv = session.NewRedisKV(rdb, 24*time.Hour)
		} else {
			kv = session.NewMemoryKV()
		}

		ctrl = session.NewController(mockCfg, sim, kv, hub)
		ctrl.Activate(context.Background())
		client = sim
		slog.Info("mock mode active", "level", mockCfg.MockLevel,
			"visual_indicators", mockCfg.ShowVisualIndicators)
	} else {
		bridgeURL := os.Getenv("HOST_BRIDGE_URL")
		client = minikit.NewBridge(bridgeURL, nil)
	}

	// --- Services ---
	svc := api.NewService(st, limiter, hub)

	// --- HTTP router ---
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)

	// CORS middleware for frontend cross-origin requests.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"miniapp-engine"}`))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	// Backend endpoints the mini app consumes.
	r.Get("/api/nonce", svc.GetNonce)
	r.Post("/api/complete-siwe", svc.CompleteSIWE)
	r.Post("/api/initiate-payment", svc.InitiatePayment)
	r.Post("/api/confirm-payment", svc.ConfirmPayment)
	r.Post("/api/verify", svc.VerifyProof)

	r.Route("/api/v1", func(r chi.Router) {
		// WebSocket endpoint for the real-time event feed.
		r.Get("/ws", hub.HandleWS)

		r.Get("/raffles", svc.ListRaffles)
		r.Post("/raffles", svc.CreateRaffle)
		r.Get("/raffles/{raffleID}", svc.GetRaffle)
		r.Post("/raffles/{raffleID}/tickets", svc.PurchaseTickets)

		r.Get("/beneficiaries", svc.ListBeneficiaries)
	})

	// Dev harness routes exist only when mock mode is enabled.
	if mockCfg.IsMockEnabled {
		dev := api.NewDevService(ctrl, client, hub)
		r.Route("/api/dev", func(r chi.Router) {
			r.Get("/session", dev.GetSession)
			r.Post("/session/activate", dev.ActivateSession)
			r.Post("/session/deactivate", dev.DeactivateSession)
			r.Post("/session/switch-user", dev.SwitchUser)
			r.Post("/session/reset", dev.ResetSession)
			r.Post("/session/simulate-error", dev.SimulateError)
			r.Post("/session/preferences", dev.SetPreferences)

			r.Get("/personas", dev.ListPersonas)

			r.Post("/command/wallet-auth", dev.CommandWalletAuth)
			r.Post("/command/pay", dev.CommandPay)
			r.Post("/command/verify", dev.CommandVerify)

			r.Get("/game", dev.GameState)
			r.Post("/game/start", dev.StartGame)
			r.Post("/game/tap", dev.TapGame)
			r.Post("/game/stop", dev.StopGame)
		})
	}

	// --- Server ---
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("miniapp-engine listening", "port", port, "mock_mode", mockCfg.IsMockEnabled)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	slog.Info("shutting down miniapp-engine...")
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	fmt.Println("miniapp-engine stopped")
}
