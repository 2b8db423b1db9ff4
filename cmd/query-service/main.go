package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/codemonkeychris/sysmcp-sub003/pkg/anonymizer"
	"github.com/codemonkeychris/sysmcp-sub003/pkg/audit"
	"github.com/codemonkeychris/sysmcp-sub003/pkg/common/config"
	"github.com/codemonkeychris/sysmcp-sub003/pkg/common/database"
	"github.com/codemonkeychris/sysmcp-sub003/pkg/common/kafka"
	"github.com/codemonkeychris/sysmcp-sub003/pkg/common/logger"
	"github.com/codemonkeychris/sysmcp-sub003/pkg/common/models"
	"github.com/codemonkeychris/sysmcp-sub003/pkg/eventlog"
	"github.com/codemonkeychris/sysmcp-sub003/pkg/fileindex"
	"github.com/codemonkeychris/sysmcp-sub003/pkg/gateway/auth"
	"github.com/codemonkeychris/sysmcp-sub003/pkg/gateway/middleware"
	"github.com/codemonkeychris/sysmcp-sub003/pkg/gateway/routes"
	"github.com/codemonkeychris/sysmcp-sub003/pkg/observability/metrics"
	"github.com/codemonkeychris/sysmcp-sub003/pkg/policy"
	"github.com/codemonkeychris/sysmcp-sub003/pkg/rpc"
)

func main() {
	stdio := flag.Bool("stdio", false, "serve JSON-RPC over stdin/stdout instead of HTTP")
	flag.Parse()

	if *stdio {
		logger.InitStdio()
	} else {
		logger.Init()
	}
	cfg := config.Load()

	detectorPolicy, err := anonymizer.LoadPolicy(cfg.DetectorPolicyPath)
	if err != nil {
		logger.Log.WithError(err).Warn("falling back to default detector policy")
		detectorPolicy = anonymizer.DefaultPolicy()
	}

	store := anonymizer.NewStore(cfg.MappingFilePath, true)
	seed, err := store.Load()
	if err != nil {
		if errors.Is(err, anonymizer.ErrNotFound) {
			logger.Log.WithField("path", store.Path()).Info("no mapping file yet, starting empty")
			seed = nil
		} else {
			// A malformed mapping must not silently reset token identities.
			logger.Log.WithError(err).Fatal("failed to load anonymization mapping")
		}
	}

	engine := anonymizer.NewEngine(seed, detectorPolicy)
	pathAnonymizer := anonymizer.NewPathAnonymizer(engine)
	logger.Log.WithField("local_identity", engine.LocalIdentity()).Info("anonymization engine ready")

	rules, err := policy.LoadRules(cfg.PolicyRulesPath)
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to load policy rules")
	}
	checker := policy.NewChecker(rules)

	eventService := eventlog.NewService(eventlog.NewJSONLProvider(cfg.EventLogSourcePath), engine, cfg.AnonymizeEventLog)
	if cfg.CacheEnabled {
		if redisClient, err := database.NewRedis(cfg); err != nil {
			logger.Log.WithError(err).Warn("query cache disabled")
		} else {
			defer redisClient.Close()
			eventService.WithCache(redisClient, cfg.EventLogCacheTTL)
		}
	}

	fileService := fileindex.NewService(fileindex.NewJSONLProvider(cfg.FileIndexSourcePath), pathAnonymizer, cfg.AnonymizeFileIndex)

	var auditRepo *audit.Repository
	if cfg.AuditEnabled {
		db, err := database.NewPostgres(cfg)
		if err != nil {
			logger.Log.WithError(err).Fatal("failed to connect to postgres")
		}
		defer database.ClosePostgres(db)

		auditRepo = audit.NewRepository(db)
		if err := auditRepo.AutoMigrate(); err != nil {
			logger.Log.WithError(err).Fatal("failed to migrate audit tables")
		}
	}

	var auditProducer *kafka.Producer
	if cfg.AuditEventEnabled {
		auditProducer = kafka.NewProducer(cfg.KafkaBrokers, cfg.AuditEventTopic)
		defer auditProducer.Close()
	}
	auditor := audit.NewService(auditRepo, auditProducer, "query-service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go saveLoop(ctx, store, engine, cfg.MappingSaveInterval)

	if cfg.RelayEnabled {
		consumer := kafka.NewConsumer(cfg.KafkaBrokers, cfg.RelayInputTopic, cfg.KafkaGroupID)
		defer consumer.Close()
		relayProducer := kafka.NewProducer(cfg.KafkaBrokers, cfg.RelayOutputTopic)
		defer relayProducer.Close()

		go func() {
			if err := consumer.Consume(ctx, relayHandler(engine, relayProducer)); err != nil && !errors.Is(err, context.Canceled) {
				logger.Log.WithError(err).Error("relay consumer stopped")
			}
		}()
	}

	if *stdio {
		server := rpc.NewServer(eventService, fileService, engine, checker, auditor, os.Stdin, os.Stdout)
		if err := server.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Log.WithError(err).Error("stdio server stopped")
		}
		saveMapping(store, engine)
		return
	}

	router := mux.NewRouter()
	router.Use(middleware.Recovery)
	router.Use(middleware.Logging)
	router.Use(middleware.RateLimit(cfg.GatewayRateLimitRPS, cfg.GatewayRateLimitBurst))

	if cfg.OIDCIssuer != "" {
		authenticator, err := auth.NewOIDCAuthenticator(cfg.OIDCIssuer, cfg.OIDCClientID, cfg.OIDCClientSecret)
		if err != nil {
			logger.Log.WithError(err).Fatal("failed to configure OIDC")
		}
		router.Use(middleware.Authenticate(authenticator, cfg.AuthRequired))
	} else if cfg.AuthRequired {
		logger.Log.Fatal("AUTH_REQUIRED is set but OIDC_ISSUER is empty")
	}

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	}).Methods(http.MethodGet)

	router.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ready"}`))
	}).Methods(http.MethodGet)

	router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1").Subrouter()
	routes.NewQueryHandler(eventService, fileService, engine, checker, auditor).Register(api)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host": cfg.ServerHost,
			"port": cfg.ServerPort,
		}).Info("Query Service started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down Query Service...")
	cancel()

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		logger.Log.WithError(err).Error("server forced to shutdown")
	}

	saveMapping(store, engine)
	logger.Log.Info("Query Service stopped")
}

func saveLoop(ctx context.Context, store *anonymizer.Store, engine *anonymizer.Engine, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			saveMapping(store, engine)
		}
	}
}

func saveMapping(store *anonymizer.Store, engine *anonymizer.Engine) {
	err := store.Save(engine.Mapping())
	metrics.ObserveMappingSave(err)
	if err != nil {
		logger.Log.WithError(err).Error("failed to persist anonymization mapping")
		return
	}
	stats := engine.Stats()
	metrics.ObserveMappingSize(stats.Usernames + stats.ComputerNames + stats.IPAddresses + stats.Emails + stats.Paths)
}

// relayHandler redacts records consumed from the raw topic before they are
// republished for downstream consumers.
func relayHandler(engine *anonymizer.Engine, producer *kafka.Producer) kafka.EventHandler {
	return func(ctx context.Context, event models.Event) error {
		data, err := json.Marshal(event.Data)
		if err != nil {
			return err
		}
		var rec models.EventLogRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			logger.Log.WithError(err).Error("relay event is not an event log record")
			return nil // malformed payloads are dropped, not retried
		}

		redacted := engine.RedactRecord(rec)
		redactedBytes, err := json.Marshal(redacted)
		if err != nil {
			return err
		}
		var payload map[string]interface{}
		if err := json.Unmarshal(redactedBytes, &payload); err != nil {
			return err
		}

		metrics.ObserveRelay(1, 1)
		return producer.PublishEvent(ctx, "anonymized-record", "query-service", payload)
	}
}
