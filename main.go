package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/agencydesk/report-engine/pkg/audit"
	"github.com/agencydesk/report-engine/pkg/config"
	"github.com/agencydesk/report-engine/pkg/database"
	"github.com/agencydesk/report-engine/pkg/handlers"
	"github.com/agencydesk/report-engine/pkg/logging"
	"github.com/agencydesk/report-engine/pkg/reportquery"
	"github.com/agencydesk/report-engine/pkg/schema"
	"github.com/agencydesk/report-engine/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.NewLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	pools := database.NewTenantPools(database.PoolsConfig{
		DSNTemplate:  cfg.TenantDB.DSNTemplate,
		Password:     cfg.TenantDB.Password,
		TTLMinutes:   cfg.TenantDB.PoolTTLMinutes,
		MaxPools:     cfg.TenantDB.MaxPools,
		PoolMaxConns: cfg.TenantDB.PoolMaxConns,
		PoolMinConns: cfg.TenantDB.PoolMinConns,
	}, logger)
	defer func() { _ = pools.Close() }()

	registry := reportquery.NewRegistry(logger)
	builder := reportquery.NewBuilder(registry, cfg.Reports.MaxRowLimit, logger)
	timeout := time.Duration(cfg.Reports.StatementTimeoutSeconds) * time.Second
	executor := database.NewExecutor(pools, timeout, logger)
	schemaProvider := schema.NewIntrospectingProvider(pools, logger)
	auditor := audit.NewSecurityAuditor(logger)
	reportService := services.NewReportService(builder, executor, schemaProvider, auditor, logger)

	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, pools, logger).RegisterRoutes(mux)
	handlers.NewReportsHandler(reportService, cfg, logger).RegisterRoutes(mux)

	server := &http.Server{
		Addr:         cfg.BindAddr + ":" + cfg.Port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: timeout + 15*time.Second,
	}

	go func() {
		logger.Sugar().Infof("Starting report-engine on %s (version: %s)", server.Addr, cfg.Version)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Sugar().Errorf("Shutdown error: %v", err)
	}
}
