// Package main provides the entry point for the QueryPilot server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/querypilot/querypilot/cmd/server/config"
	"github.com/querypilot/querypilot/cmd/server/middleware"
	"github.com/querypilot/querypilot/pkg/handlers"
	"github.com/querypilot/querypilot/pkg/infrastructure/metrics"
	"github.com/querypilot/querypilot/pkg/repositories/mysql"
	"github.com/querypilot/querypilot/pkg/repositories/sqlite"
	"github.com/querypilot/querypilot/pkg/services"
)

var (
	// Version information (set by build flags)
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "querypilot",
	Short: "QueryPilot SQL execution service",
	Long: `QueryPilot executes, validates, and audits SQL against MySQL targets.

Every statement is recorded; DDL statements additionally version the affected
table's schema so changes can be reviewed, diffed, and rolled back.`,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the QueryPilot server",
	Long: `Start the QueryPilot server with the specified configuration.

Example:
  querypilot serve --config ./config.yaml
  querypilot serve --address 0.0.0.0:8080 --metastore ./querypilot.db`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("config", "c", "", "config file path")
	serveCmd.Flags().String("address", "0.0.0.0:8080", "server listen address")
	serveCmd.Flags().String("metastore", "querypilot.db", "SQLite metastore path")
	serveCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	serveCmd.Flags().Int("max-result-rows", 1000, "maximum rows fetched per SELECT")
	serveCmd.Flags().Int("stored-row-cap", 100, "maximum rows stored per execution record")
	serveCmd.Flags().Duration("connect-timeout", 10*time.Second, "target database dial timeout")
	serveCmd.Flags().Duration("read-timeout", 5*time.Minute, "target database read timeout")
	serveCmd.Flags().Duration("write-timeout", 5*time.Minute, "target database write timeout")
	serveCmd.Flags().Bool("metrics", true, "enable Prometheus metrics")
	serveCmd.Flags().String("metrics-address", ":9090", "metrics server address")
	serveCmd.Flags().Duration("shutdown-timeout", 30*time.Second, "graceful shutdown timeout")

	if err := viper.BindPFlags(serveCmd.Flags()); err != nil {
		panic(fmt.Errorf("failed to bind flags: %w", err))
	}
	viper.SetEnvPrefix("QUERYPILOT")
	viper.AutomaticEnv()

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("QueryPilot\n")
			fmt.Printf("Version:    %s\n", version)
			fmt.Printf("Commit:     %s\n", commit)
			fmt.Printf("Build Date: %s\n", buildDate)
		},
	})
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := setupLogging(cfg.LogLevel)
	logger.Info().
		Str("version", version).
		Str("commit", commit).
		Str("build_date", buildDate).
		Msg("Starting QueryPilot server")

	var metricsCollector metrics.Collector
	var metricsServer *metrics.MetricsServer
	if cfg.Metrics.Enabled {
		metricsCollector = metrics.NewPrometheusCollector()
		metricsServer = metrics.NewMetricsServer(cfg.Metrics.Address)
		go func() {
			logger.Info().Str("address", cfg.Metrics.Address).Msg("Starting metrics server")
			if err := metricsServer.Start(); err != nil && err != http.ErrServerClosed {
				logger.Error().Err(err).Msg("Failed to start metrics server")
			}
		}()
	} else {
		metricsCollector = metrics.NewNoOpCollector()
	}

	metaDB, err := sqlite.Open(cfg.MetastorePath)
	if err != nil {
		return fmt.Errorf("failed to open metastore: %w", err)
	}
	defer metaDB.Close()
	logger.Info().Str("path", cfg.MetastorePath).Msg("Metastore ready")

	// Repositories
	connectionRepo := sqlite.NewConnectionRepository(metaDB)
	executionRepo := sqlite.NewExecutionRepository(metaDB)
	versionRepo := sqlite.NewSchemaVersionRepository(metaDB)
	tagRepo := sqlite.NewTagRepository(metaDB)
	progressRepo := sqlite.NewProgressRepository(metaDB)

	connector := mysql.NewConnector(mysql.ConnectorConfig{
		ConnectTimeout: cfg.ConnectTimeout,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
	})

	// Services
	serviceMetrics := &serviceMetricsAdapter{collector: metricsCollector}
	classifier := services.NewStatementClassifier()

	schemaService := services.NewSchemaService(
		versionRepo,
		tagRepo,
		&serviceLoggerAdapter{logger: logger.With().Str("component", "schema_service").Logger()},
		serviceMetrics,
	)
	progressService := services.NewProgressService(
		progressRepo,
		&serviceLoggerAdapter{logger: logger.With().Str("component", "progress_service").Logger()},
	)
	executionService := services.NewExecutionService(
		connectionRepo,
		executionRepo,
		connector,
		schemaService,
		progressService,
		classifier,
		&serviceLoggerAdapter{logger: logger.With().Str("component", "execution_service").Logger()},
		serviceMetrics,
		services.ExecutionConfig{
			MaxResultRows: cfg.MaxResultRows,
			StoredRowCap:  cfg.StoredRowCap,
		},
	)
	validationService := services.NewValidationService(
		connectionRepo,
		connector,
		classifier,
		&serviceLoggerAdapter{logger: logger.With().Str("component", "validation_service").Logger()},
		serviceMetrics,
	)
	advisor := services.NewAlterAdvisor(
		classifier,
		&serviceLoggerAdapter{logger: logger.With().Str("component", "alter_advisor").Logger()},
	)

	// HTTP surface
	handler := handlers.NewHandler(
		executionService,
		schemaService,
		validationService,
		advisor,
		progressService,
		connectionRepo,
		&serviceLoggerAdapter{logger: logger.With().Str("component", "handlers").Logger()},
	)

	router := chi.NewRouter()
	router.Use(middleware.NewRecoveryMiddleware(logger.With().Str("component", "recovery").Logger()).Handler)
	router.Use(middleware.NewLoggingMiddleware(logger.With().Str("component", "http").Logger()).Handler)
	router.Use(middleware.NewMetricsMiddleware(metricsCollector).Handler)
	handler.Routes(router)

	server := &http.Server{
		Addr:              cfg.Address,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrCh := make(chan error, 1)
	go func() {
		logger.Info().Str("address", cfg.Address).Msg("Server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("server error: %w", err)
		}
	}()

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-shutdownCh:
		logger.Info().Msg("Received shutdown signal")
	case err := <-serverErrCh:
		return err
	}

	logger.Info().Dur("timeout", cfg.ShutdownTimeout).Msg("Starting graceful shutdown")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("Error during server shutdown")
	}
	if metricsServer != nil {
		if err := metricsServer.Stop(ctx); err != nil {
			logger.Error().Err(err).Msg("Error stopping metrics server")
		}
	}

	logger.Info().Msg("Server shutdown complete")
	return nil
}

func loadConfig() (*config.Config, error) {
	if configFile := viper.GetString("config"); configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &config.Config{
		Address:         viper.GetString("address"),
		MetastorePath:   viper.GetString("metastore"),
		LogLevel:        viper.GetString("log-level"),
		MaxResultRows:   viper.GetInt("max-result-rows"),
		StoredRowCap:    viper.GetInt("stored-row-cap"),
		ConnectTimeout:  viper.GetDuration("connect-timeout"),
		ReadTimeout:     viper.GetDuration("read-timeout"),
		WriteTimeout:    viper.GetDuration("write-timeout"),
		ShutdownTimeout: viper.GetDuration("shutdown-timeout"),
		Metrics: config.MetricsConfig{
			Enabled: viper.GetBool("metrics"),
			Address: viper.GetString("metrics-address"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func setupLogging(level string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.DurationFieldUnit = time.Millisecond

	var logLevel zerolog.Level
	switch level {
	case "debug":
		logLevel = zerolog.DebugLevel
	case "info":
		logLevel = zerolog.InfoLevel
	case "warn":
		logLevel = zerolog.WarnLevel
	case "error":
		logLevel = zerolog.ErrorLevel
	default:
		logLevel = zerolog.InfoLevel
	}

	logger := zerolog.New(os.Stdout).
		Level(logLevel).
		With().
		Timestamp().
		Str("service", "querypilot")

	if logLevel == zerolog.DebugLevel {
		logger = logger.Caller()
	}

	return logger.Logger()
}
