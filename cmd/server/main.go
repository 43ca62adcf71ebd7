// Command server wires the findmyid platform: declarations, matching,
// verification, notifications, and the action trail behind one HTTP server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	cataloghandler "findmyid/internal/catalog/handler"
	catalogservice "findmyid/internal/catalog/service"
	catalogstore "findmyid/internal/catalog/store"
	"findmyid/internal/history"
	historyhandler "findmyid/internal/history/handler"
	historymodels "findmyid/internal/history/models"
	historystore "findmyid/internal/history/store"
	identityhandler "findmyid/internal/identity/handler"
	identityservice "findmyid/internal/identity/service"
	identitystore "findmyid/internal/identity/store"
	"findmyid/internal/identity/token"
	itemshandler "findmyid/internal/items/handler"
	itemsservice "findmyid/internal/items/service"
	foundstore "findmyid/internal/items/store/found"
	loststore "findmyid/internal/items/store/lost"
	matchhandler "findmyid/internal/match/handler"
	matchmetrics "findmyid/internal/match/metrics"
	matchservice "findmyid/internal/match/service"
	matchstore "findmyid/internal/match/store"
	notifcache "findmyid/internal/notification/cache"
	notifhandler "findmyid/internal/notification/handler"
	notifmetrics "findmyid/internal/notification/metrics"
	notifservice "findmyid/internal/notification/service"
	notifstore "findmyid/internal/notification/store"
	"findmyid/internal/ocr"
	"findmyid/internal/platform/config"
	"findmyid/internal/platform/httpserver"
	"findmyid/internal/platform/logger"
	platformmetrics "findmyid/internal/platform/metrics"
	"findmyid/internal/platform/middleware"
	"findmyid/internal/platform/postgres"
	"findmyid/internal/platform/redis"
	verifhandler "findmyid/internal/verification/handler"
	verifmetrics "findmyid/internal/verification/metrics"
	verifservice "findmyid/internal/verification/service"
	verifstore "findmyid/internal/verification/store"
)

const historyInboxSize = 256

// lostItemsStore is the union of what the declaration service and the match
// registry need from lost item persistence. Both store implementations
// satisfy it.
type lostItemsStore interface {
	itemsservice.LostStore
	matchservice.LostItems
}

type foundItemsStore interface {
	itemsservice.FoundStore
	matchservice.FoundItems
}

func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Persistence. An empty DATABASE_URL selects the in-memory stores, which
	// is enough for local development and demos.
	var (
		lostItems     lostItemsStore
		foundItems    foundItemsStore
		matches       matchservice.Store
		verifications verifservice.Store
		notifications notifservice.Store
		users         identityservice.Store
		catalogStore  catalogservice.Store
		historyStore  history.Store
	)
	if cfg.DatabaseURL != "" {
		db, err := postgres.Open(cfg.DatabaseURL)
		if err != nil {
			log.Error("failed to open postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		lostItems = loststore.NewPostgres(db)
		foundItems = foundstore.NewPostgres(db)
		matches = matchstore.NewPostgres(db)
		verifications = verifstore.NewPostgres(db)
		notifications = notifstore.NewPostgres(db)
		users = identitystore.NewPostgres(db)
		catalogStore = catalogstore.NewPostgres(db)
		historyStore = historystore.NewPostgres(db)
	} else {
		log.Warn("DATABASE_URL not set, using in-memory stores")
		lostItems = loststore.NewMemory()
		foundItems = foundstore.NewMemory()
		matches = matchstore.NewMemory()
		verifications = verifstore.NewMemory()
		notifications = notifstore.NewMemory()
		users = identitystore.NewMemory()
		catalogStore = catalogstore.NewMemory()
		historyStore = historystore.NewMemory()
	}

	// Optional Redis for the unread-count cache.
	redisClient, err := redis.New(cfg.Redis)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	// History trail: channel-fed worker so transitions never block on the
	// trail.
	inbox := make(chan historymodels.Event, historyInboxSize)
	recorder := history.NewPublisher(inbox, log)
	worker := history.NewWorker(historyStore, inbox, log)
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		_ = worker.Run(ctx)
	}()

	catalog := catalogservice.New(catalogStore)
	if err := catalog.Seed(ctx); err != nil {
		log.Error("failed to seed document types", "error", err)
		os.Exit(1)
	}

	notifier := notifservice.NewService(
		notifications,
		notifcache.NewUnreadCounter(redisClient, log),
		log,
		notifmetrics.New(),
	)

	registry := matchservice.NewService(matchservice.Config{
		Store:      matches,
		LostItems:  lostItems,
		FoundItems: foundItems,
		Notifier:   notifier,
		Recorder:   recorder,
		Threshold:  cfg.MatchThreshold,
		Logger:     log,
		Metrics:    matchmetrics.New(),
	})

	tokens := token.NewService(cfg.JWTSigningKey, "findmyid", cfg.TokenTTL)
	identity := identityservice.NewService(identityservice.Config{
		Store:          users,
		Tokens:         tokens,
		Recorder:       recorder,
		Logger:         log,
		Metrics:        platformmetrics.New(),
		BootstrapToken: cfg.AdminBootstrapToken,
	})

	workflow := verifservice.NewService(verifservice.Config{
		Store:     verifications,
		Registry:  registry,
		Notifier:  notifier,
		Recorder:  recorder,
		Reviewers: identity,
		Logger:    log,
		Metrics:   verifmetrics.New(),
	})

	items := itemsservice.NewService(itemsservice.Config{
		Lost:      lostItems,
		Found:     foundItems,
		Catalog:   catalog,
		Extractor: &ocr.Stub{},
		Evaluator: registry,
		Recorder:  recorder,
		Logger:    log,
	})

	trail := history.NewService(historyStore)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recovery(log))
	router.Use(middleware.Logger(log))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	router.Method(http.MethodGet, "/metrics", promhttp.Handler())

	identityHandler := identityhandler.New(identity, log)
	loginLimiter := middleware.NewLoginLimiter(redisClient, cfg.AuthRateLimit, time.Minute, log)
	router.Group(func(r chi.Router) {
		r.Use(loginLimiter.Limit)
		identityHandler.RegisterPublic(r)
	})

	router.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(token.NewMiddlewareAdapter(tokens), log))
		identityHandler.Register(r)
		cataloghandler.New(catalog, log).Register(r)
		itemshandler.New(items, log).Register(r)
		matchhandler.New(registry, log).Register(r)
		verifhandler.New(workflow, log).Register(r)
		notifhandler.New(notifier, log).Register(r)
		historyhandler.New(trail, log).Register(r)
	})

	srv := httpserver.New(cfg.Addr, router)

	go func() {
		log.Info("starting findmyid server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
	<-workerDone
}
