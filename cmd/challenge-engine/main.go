package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/quickbites/challenge-engine/internal/catalog"
	appcfg "github.com/quickbites/challenge-engine/internal/config"
	"github.com/quickbites/challenge-engine/internal/httpapi"
	"github.com/quickbites/challenge-engine/internal/obslog"
	"github.com/quickbites/challenge-engine/internal/order"
	"github.com/quickbites/challenge-engine/internal/performance"
	"github.com/quickbites/challenge-engine/internal/reward"
	"github.com/quickbites/challenge-engine/internal/session"
	"github.com/quickbites/challenge-engine/internal/token"
	"github.com/quickbites/challenge-engine/internal/verifier"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	logger := obslog.L()

	store, err := session.NewStoreFromURL(cfg.RedisURL)
	if err != nil {
		log.Fatalf("session store init error: %v", err)
	}

	cat, mongoClient, err := buildCatalog(cfg, logger)
	if err != nil {
		log.Fatalf("catalog init error: %v", err)
	}

	var (
		perfRepo performance.Repository
		coupons  reward.CouponRepository
		db       *sql.DB
	)
	if cfg.DatabaseURL != "" {
		db, err = sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("postgres open error: %v", err)
		}
		if err := db.Ping(); err != nil {
			log.Fatalf("postgres ping error: %v", err)
		}
		perfRepo = performance.NewRepository(db)
		coupons = reward.NewRepository(db)
	} else {
		logger.Warn("database_url_missing_using_memory")
		perfRepo = performance.NewMemoryRepository()
		coupons = reward.NewMemoryCouponRepository()
	}

	orders := order.NewHTTPGateway(cfg.OrderServiceURL,
		order.WithTimeout(5*time.Second), order.WithRetry(2))

	tracker, err := performance.NewTracker(perfRepo, orders, store, cfg.HistoryWindow, logger)
	if err != nil {
		log.Fatalf("tracker init error: %v", err)
	}
	issuer, err := reward.NewIssuer(coupons, tracker, logger)
	if err != nil {
		log.Fatalf("reward issuer init error: %v", err)
	}
	tokens, err := token.NewCodec(cfg.TokenSecret)
	if err != nil {
		log.Fatalf("token codec init error: %v", err)
	}

	mgr, err := session.NewManager(store, cat, orders, tracker, issuer, tokens, session.Config{
		SessionTTL:      cfg.SessionTTL,
		GraceWindow:     cfg.GraceWindow,
		ExposeSolutions: cfg.ExposeSolutions,
		PlayURL:         cfg.PlayURL,
	}, logger)
	if err != nil {
		log.Fatalf("session manager init error: %v", err)
	}

	srv := httpapi.NewServer(mgr, cat, verifier.New(), cfg.ExposeSolutions, logger)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.ListenAddr))
		if err := srv.Listen(cfg.ListenAddr); err != nil {
			logger.Fatal("server_stopped", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	_ = srv.Shutdown()
	_ = store.Close()
	if db != nil {
		_ = db.Close()
	}
	if mongoClient != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = mongoClient.Disconnect(ctx)
		cancel()
	}
}

// buildCatalog prefers the MongoDB collection and falls back to the embedded
// seed set when no MONGODB_URL is configured.
func buildCatalog(cfg *appcfg.AppConfig, logger *zap.Logger) (catalog.Catalog, *mongo.Client, error) {
	if cfg.MongoURL == "" {
		logger.Info("catalog_seed_embedded")
		cat, err := catalog.NewSeededMemoryCatalog()
		return cat, nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURL))
	if err != nil {
		return nil, nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, nil, err
	}
	logger.Info("catalog_mongo_connected")
	return catalog.NewMongoCatalog(client, "quickbites"), client, nil
}
