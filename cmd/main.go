/**
 * @description
 * This is the main entry point for the redemption service. It is responsible
 * for initializing all components of the service, including configuration,
 * database connections, external API clients, the message broker producer,
 * the session pool, the redemption driver and orchestrator, the discovery
 * trigger, and the HTTP server. It wires everything together and starts the
 * service.
 *
 * @dependencies
 * - log, net/http: Standard Go libraries for logging and HTTP server functionality.
 * - github.com/jackc/pgx/v5: PostgreSQL driver.
 * - internal/api, internal/app, internal/config, internal/store: Internal packages for the service.
 * - pkg/wosclient, pkg/solverclient, pkg/codefeed: Clients for the game API, captcha solver, and code feed.
 * - pkg/rabbitmq: Client for RabbitMQ.
 */

package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/storage3mohitraj444362-commits/wos-redemption-service/internal/api"
	"github.com/storage3mohitraj444362-commits/wos-redemption-service/internal/app"
	"github.com/storage3mohitraj444362-commits/wos-redemption-service/internal/config"
	"github.com/storage3mohitraj444362-commits/wos-redemption-service/internal/store"
	"github.com/storage3mohitraj444362-commits/wos-redemption-service/pkg/codefeed"
	"github.com/storage3mohitraj444362-commits/wos-redemption-service/pkg/rabbitmq"
	"github.com/storage3mohitraj444362-commits/wos-redemption-service/pkg/solverclient"
	"github.com/storage3mohitraj444362-commits/wos-redemption-service/pkg/wosclient"
)

func main() {
	// Load application configuration from environment variables.
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"config load failed\" err=%v", err)
	}
	if strings.TrimSpace(cfg.InternalAPIKey) == "" {
		log.Fatalf("level=fatal component=bootstrap msg=\"internal api key must be configured\" env=INTERNAL_API_KEY")
	}

	log.Printf("level=info component=bootstrap msg=\"starting redemption-service\" port=%s", cfg.ServerPort)

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	// Establish a connection pool to the PostgreSQL database.
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database url parse failed\" err=%v", err)
	}

	// Redemption traffic is low-volume; a modest pool is plenty.
	poolConfig.MaxConns = 20
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute

	// Disable prepared statement caching to prevent conflicts
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	dbpool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database connection failed\" err=%v", err)
	}
	defer dbpool.Close()
	log.Println("level=info component=bootstrap msg=\"database connected\"")

	repository := store.NewPostgresRepository(dbpool)

	// Open the local fallback ledger. The service keeps redeeming when the
	// primary database becomes unreachable mid-run.
	sqliteLedger, err := store.OpenSQLiteLedger(cfg.SQLiteLedger)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"sqlite ledger open failed\" path=%s err=%v", cfg.SQLiteLedger, err)
	}
	defer sqliteLedger.Close()
	log.Printf("level=info component=bootstrap msg=\"fallback ledger opened\" path=%s", cfg.SQLiteLedger)

	ledger := store.NewFallbackLedger(repository, sqliteLedger, logger)

	// Initialize the RabbitMQ producer to publish progress events. This
	// service only needs to publish, so we use a producer; when the broker is
	// unavailable at startup we degrade to the no-op fallback.
	var publisher rabbitmq.Publisher
	rabbitProducer, err := rabbitmq.NewEventProducer(cfg.RabbitMQURL)
	if err != nil {
		log.Printf("level=warn component=bootstrap msg=\"rabbitmq producer unavailable; using fallback\" err=%v", err)
		publisher = &rabbitmq.EventProducerFallback{}
	} else {
		defer rabbitProducer.Close()
		publisher = rabbitProducer
		log.Println("level=info component=bootstrap msg=\"rabbitmq producer connected\"")
	}
	reporter := app.NewEventReporter(publisher, cfg.EventExchange, logger)

	// Initialize the client for the gift-code API.
	gameClient := wosclient.NewClient(cfg.GiftAPIPlayerURL, cfg.GiftAPICaptchaURL, cfg.GiftAPIRedeemURL, cfg.GiftAPISecret)

	// Missing solver config should not prevent the service from booting;
	// redemption runs will record solver_unavailable until it is configured.
	var solver app.CaptchaSolver
	if strings.TrimSpace(cfg.SolverURL) == "" {
		log.Println("level=warn component=bootstrap msg=\"captcha solver not configured; redemption disabled\" env=CAPTCHA_SOLVER_URL")
	} else {
		solver = solverclient.NewClient(cfg.SolverURL, cfg.SolverAPIKey)
	}

	sessionPool := app.NewSessionPool(cfg.SessionSlots, cfg.SessionMinSpacing, cfg.SessionBackoff, cfg.SessionMaxBackoff)

	redeemerCfg := app.DefaultRedeemerConfig()
	redeemerCfg.MaxLoginAttempts = cfg.MaxLoginAttempts
	redeemerCfg.MaxRedeemAttempts = cfg.MaxRedeemAttempts
	redeemerCfg.CaptchaAttempts = cfg.CaptchaAttempts
	redeemer := app.NewRedeemer(sessionPool, gameClient, solver, ledger, logger, redeemerCfg)

	inflight := app.NewInflightRegistry()
	stops := app.NewStopRegistry()
	orchestrator := app.NewOrchestrator(repository, ledger, redeemer, reporter, inflight, stops, logger, cfg.RedemptionWorkers)

	// Initialize the discovery trigger. Startup reconciliation runs either
	// way; the poll loop only starts when a feed is configured.
	feedClient := codefeed.NewClient(cfg.CodeFeedURL, cfg.CodeFeedAPIKey)
	trigger := app.NewTrigger(feedClient, repository, repository, orchestrator, reporter, logger, cfg.DiscoveryPollInterval)

	triggerCtx, cancelTrigger := context.WithCancel(context.Background())
	defer cancelTrigger()
	if strings.TrimSpace(cfg.CodeFeedURL) == "" {
		log.Println("level=warn component=bootstrap msg=\"code feed not configured; discovery polling disabled\" env=CODE_FEED_URL")
		if err := trigger.ReconcileStartup(triggerCtx); err != nil {
			log.Fatalf("level=fatal component=bootstrap msg=\"startup reconciliation failed\" err=%v", err)
		}
	} else {
		if err := trigger.Start(triggerCtx); err != nil {
			log.Fatalf("level=fatal component=bootstrap msg=\"discovery trigger start failed\" err=%v", err)
		}
		defer trigger.Stop()
	}

	// Initialize the API handlers and router.
	handlers := &api.Handlers{
		Orchestrator: orchestrator,
		Trigger:      trigger,
		Codes:        repository,
		Roster:       repository,
		Stops:        stops,
		Logger:       logger,
	}
	router := api.Routes(handlers, cfg.InternalAPIKey)

	serverAddr := fmt.Sprintf(":%s", cfg.ServerPort)
	log.Printf("level=info component=http msg=\"server listening\" addr=%s", serverAddr)

	server := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("level=fatal component=http msg=\"server stopped unexpectedly\" err=%v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Println("level=info component=http msg=\"shutdown started\"")

	cancelTrigger()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("level=error component=http msg=\"shutdown failed\" err=%v", err)
	}

	log.Println("level=info component=http msg=\"shutdown complete\"")
}
