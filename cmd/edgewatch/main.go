package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/HerbHall/edgewatch/internal/auth"
	"github.com/HerbHall/edgewatch/internal/command"
	"github.com/HerbHall/edgewatch/internal/config"
	"github.com/HerbHall/edgewatch/internal/event"
	"github.com/HerbHall/edgewatch/internal/modelmgr"
	"github.com/HerbHall/edgewatch/internal/mqtt"
	"github.com/HerbHall/edgewatch/internal/registry"
	"github.com/HerbHall/edgewatch/internal/server"
	"github.com/HerbHall/edgewatch/internal/store"
	"github.com/HerbHall/edgewatch/internal/telemetry"
	"github.com/HerbHall/edgewatch/internal/version"
	"github.com/HerbHall/edgewatch/internal/webhook"
	"github.com/HerbHall/edgewatch/internal/ws"
	"github.com/HerbHall/edgewatch/pkg/plugin"
	"go.uber.org/zap"
)

func main() {
	// Subcommand dispatch (before flag.Parse).
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "token":
			runToken(os.Args[2:])
			return
		case "version":
			fmt.Println(version.Info())
			return
		}
	}

	configPath := flag.String("config", "", "path to configuration file")
	showVersion := flag.Bool("version", false, "print version information and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Info())
		os.Exit(0)
	}

	// Load configuration (before logger, so log level/format can be configured).
	viperCfg, err := server.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	cfg := config.New(viperCfg)

	// Initialize logger from configuration.
	logger, err := config.NewLogger(viperCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("EdgeWatch server starting", zap.String("version", version.Short()))

	if f := viperCfg.ConfigFileUsed(); f != "" {
		logger.Info("configuration loaded",
			zap.String("component", "config"),
			zap.String("source", f),
		)
	} else {
		logger.Warn("no configuration file found, using defaults",
			zap.String("component", "config"),
		)
	}

	// Open database.
	dbPath := viperCfg.GetString("database.dsn")
	if dbPath == "" {
		dbPath = "edgewatch.db"
	}
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logger.Fatal("failed to create data directory", zap.Error(err))
		}
	}
	db, err := store.New(dbPath)
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Refuse to open a database written by a newer binary.
	if err := db.CheckVersion(ctx, version.Short()); err != nil {
		logger.Fatal("database version check failed", zap.Error(err))
	}

	logger.Info("database initialized",
		zap.String("component", "database"),
		zap.String("path", dbPath),
	)

	// Create shared services.
	bus := event.NewBus(logger.Named("event"))
	reg := registry.New(logger.Named("registry"))

	// Register plugins (compile-time composition). The telemetry module
	// is the core; everything else is gated by config.
	wsMod := ws.New()
	modules := []plugin.Plugin{telemetry.New()}
	if viperCfg.GetBool("plugins.command.enabled") {
		modules = append(modules, command.New())
	}
	if viperCfg.GetBool("plugins.modelmgr.enabled") {
		modules = append(modules, modelmgr.New())
	}
	if viperCfg.GetBool("plugins.ws.enabled") {
		modules = append(modules, wsMod)
	}
	if viperCfg.GetBool("plugins.mqtt.enabled") {
		modules = append(modules, mqtt.New())
	}
	if viperCfg.GetBool("plugins.webhook.enabled") {
		modules = append(modules, webhook.New())
	}
	for _, m := range modules {
		if err := reg.Register(m); err != nil {
			logger.Fatal("failed to register plugin", zap.Error(err))
		}
	}

	// Validate dependency graph and API versions.
	if err := reg.Validate(); err != nil {
		logger.Fatal("plugin validation failed", zap.Error(err))
	}

	// Initialize all plugins with dependencies.
	if err := reg.InitAll(ctx, func(name string) plugin.Dependencies {
		return plugin.Dependencies{
			Config:  cfg.Sub("plugins." + name),
			Logger:  logger.Named(name),
			Store:   db,
			Bus:     bus,
			Plugins: reg,
		}
	}); err != nil {
		logger.Fatal("failed to initialize plugins", zap.Error(err))
	}

	if err := reg.StartAll(ctx); err != nil {
		logger.Fatal("failed to start plugins", zap.Error(err))
	}

	// Auth is optional: edge fleets on a trusted network often run open.
	var tokens *auth.TokenService
	var authHandler server.RouteRegistrar
	if viperCfg.GetBool("auth.enabled") {
		jwtSecret := viperCfg.GetString("auth.jwt_secret")
		if jwtSecret == "" {
			// Generate an ephemeral secret -- tokens won't survive restarts.
			b := make([]byte, 32)
			if _, err := rand.Read(b); err != nil {
				logger.Fatal("failed to generate JWT secret", zap.Error(err))
			}
			jwtSecret = hex.EncodeToString(b)
			logger.Info("using auto-generated JWT secret (set auth.jwt_secret in config to persist tokens across restarts)",
				zap.String("component", "auth"),
			)
		}

		accessTTL := viperCfg.GetDuration("auth.access_token_ttl")
		if accessTTL == 0 {
			accessTTL = 15 * time.Minute
		}

		tokens = auth.NewTokenService([]byte(jwtSecret), accessTTL)
		authHandler = auth.NewHandler(tokens)
		logger.Info("auth enabled",
			zap.String("component", "auth"),
			zap.Duration("access_token_ttl", accessTTL),
		)
	}

	// Create and start HTTP server.
	addr := viperCfg.GetString("server.host") + ":" + viperCfg.GetString("server.port")
	if addr == ":" {
		addr = "0.0.0.0:8080"
	}
	readyCheck := server.ReadinessChecker(func(ctx context.Context) error {
		return db.DB().PingContext(ctx)
	})

	var extraRoutes []server.SimpleRouteRegistrar
	if viperCfg.GetBool("plugins.ws.enabled") {
		extraRoutes = append(extraRoutes, wsMod.Handler(tokens))
	}
	srv := server.New(addr, reg, logger, readyCheck, authHandler, extraRoutes...)

	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	logger.Info("EdgeWatch server ready", zap.String("addr", addr))

	// Wait for shutdown signal.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	logger.Info("received shutdown signal", zap.String("signal", sig.String()))

	// Graceful shutdown.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	reg.StopAll(shutdownCtx)

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}

	logger.Info("EdgeWatch server stopped")
}

// runToken issues an access token using the configured signing secret.
// Useful for wiring up dashboards and scripts without a user store.
func runToken(args []string) {
	fs := flag.NewFlagSet("token", flag.ExitOnError)
	configPath := fs.String("config", "", "path to configuration file")
	subject := fs.String("subject", "operator", "token subject")
	role := fs.String("role", "admin", "token role")
	ttl := fs.Duration("ttl", 15*time.Minute, "token lifetime")
	_ = fs.Parse(args)

	viperCfg, err := server.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	secret := viperCfg.GetString("auth.jwt_secret")
	if secret == "" {
		fmt.Fprintln(os.Stderr, "auth.jwt_secret is not configured; tokens issued here could not be validated")
		os.Exit(1)
	}

	tokens := auth.NewTokenService([]byte(secret), *ttl)
	token, err := tokens.IssueAccessToken(*subject, *role)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to issue token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
