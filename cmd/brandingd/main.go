package main

//	@title						NextMove Cargo Branding API
//	@version					1.0.0
//	@description				White-label branding for the NextMove Cargo marketplace.
//	@BasePath					/api/v1
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Supabase JWT. Format: "Bearer {token}"

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	_ "github.com/nextmovecargo/branding/api/swagger"
	"github.com/nextmovecargo/branding/internal/auth"
	"github.com/nextmovecargo/branding/internal/branding"
	"github.com/nextmovecargo/branding/internal/config"
	"github.com/nextmovecargo/branding/internal/dashboard"
	"github.com/nextmovecargo/branding/internal/event"
	"github.com/nextmovecargo/branding/internal/projector"
	"github.com/nextmovecargo/branding/internal/server"
	"github.com/nextmovecargo/branding/internal/settings"
	"github.com/nextmovecargo/branding/internal/version"
	"github.com/nextmovecargo/branding/internal/webhook"
	"github.com/nextmovecargo/branding/internal/ws"
)

func main() {
	// Subcommand dispatch (before flag.Parse).
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "serve":
			os.Args = append(os.Args[:1], os.Args[2:]...)
		case "export":
			runExport(os.Args[2:])
			return
		case "import":
			runImport(os.Args[2:])
			return
		case "reset":
			runReset(os.Args[2:])
			return
		case "hash-key":
			runHashKey(os.Args[2:])
			return
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

	logger, level, err := config.NewLogger(viperCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("brandingd starting", zap.String("version", version.Short()))

	if f := viperCfg.ConfigFileUsed(); f != "" {
		logger.Info("configuration loaded",
			zap.String("component", "config"),
			zap.String("source", f),
		)
		config.WatchLogLevel(viperCfg, level, logger.Named("config"))
	} else {
		logger.Warn("no configuration file found, using defaults",
			zap.String("component", "config"),
		)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	be, err := openBackend(ctx, viperCfg, logger)
	if err != nil {
		logger.Fatal("failed to open settings store", zap.Error(err))
	}
	defer be.close()

	// Create shared services
	bus := event.NewBus(logger.Named("event"))
	logger.Info("event bus created", zap.String("component", "event"))

	svc, err := branding.NewService(be.repo, bus, logger.Named("branding"))
	if err != nil {
		logger.Fatal("failed to create branding service", zap.Error(err))
	}

	var bridge *event.Bridge
	if viperCfg.GetBool("nats.enabled") {
		var natsCfg event.NATSConfig
		if err := viperCfg.UnmarshalKey("nats", &natsCfg); err != nil {
			logger.Fatal("invalid nats configuration", zap.Error(err))
		}
		conn, err := event.Connect(natsCfg, logger.Named("nats"))
		if err != nil {
			logger.Fatal("failed to connect to nats", zap.Error(err))
		}
		defer func() { _ = conn.Drain() }()
		bridge = event.NewBridge(conn, bus, natsCfg.Subject, "branding.", logger.Named("nats"))
		if err := bridge.Start(ctx); err != nil {
			logger.Fatal("failed to start nats bridge", zap.Error(err))
		}
	}

	// Presentation: head document, blob URLs and the refresher that keeps
	// them in step with the store.
	webRoot := dashboard.WebRoot(viperCfg.GetString("server.web_root"), logger.Named("dashboard"))
	head := projector.NewHeadDocument(viperCfg.GetString("branding.manifest_href"))
	blobs := projector.NewBlobRegistry(projector.DefaultBlobPrefix)
	sources := &projector.Sources{
		Blobs:   blobs,
		WebRoot: webRoot,
		Client:  &http.Client{Timeout: 5 * time.Second},
	}
	proj := projector.New(head, sources, blobs, logger.Named("projector"))
	refresher := projector.NewRefresher(svc, proj, viperCfg.GetDuration("branding.refresh_interval"), logger.Named("projector"))
	unsubRefresh := bus.SubscribePrefix("branding.", refresher.HandleEvent)
	refresher.Start(ctx)

	notifier := webhook.New(cfg.Sub("webhook"), logger.Named("webhook"))
	unsubWebhook := notifier.Subscribe(bus)

	settingsHandler := settings.NewHandler(svc, head, blobs, logger.Named("settings"))
	wsHandler := ws.NewHandler(svc, bus, viperCfg.GetStringSlice("server.allowed_origins"), logger.Named("ws"))
	logger.Info("branding handlers initialized", zap.String("component", "settings"))

	authMW := authMiddleware(viperCfg, logger.Named("auth"))

	addr := (&server.Config{
		Host: viperCfg.GetString("server.host"),
		Port: viperCfg.GetInt("server.port"),
	}).Addr()
	srv := server.New(addr, logger, be.ready, dashboard.Handler(webRoot, head, logger.Named("dashboard")), server.Options{
		Auth:           authMW,
		DevMode:        viperCfg.GetBool("server.dev_mode"),
		ReadOnly:       viperCfg.GetBool("server.read_only"),
		RateLimitRPS:   viperCfg.GetFloat64("server.rate_limit.rps"),
		RateLimitBurst: viperCfg.GetInt("server.rate_limit.burst"),
	}, settingsHandler, wsHandler)

	// Start server in background
	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	logger.Info("brandingd ready", zap.String("addr", addr))

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	logger.Info("received shutdown signal", zap.String("signal", sig.String()))

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	wsHandler.Close()
	if bridge != nil {
		bridge.Stop()
	}
	unsubRefresh()
	refresher.Stop()
	unsubWebhook()
	bus.Drain()
	notifier.Close()

	logger.Info("brandingd stopped")
}

// authMiddleware builds the API auth layer from auth.* settings.
func authMiddleware(v *viper.Viper, logger *zap.Logger) server.Middleware {
	if v.GetString("auth.mode") == "dev" {
		logger.Warn("dev auth mode: every API caller is treated as admin")
		return auth.DevAuthMiddleware()
	}

	secret := v.GetString("auth.jwt_secret")
	if secret == "" {
		// Generate an ephemeral secret -- only tokens from `brandingd token` work.
		b := make([]byte, 32)
		if _, err := rand.Read(b); err != nil {
			logger.Fatal("failed to generate JWT secret", zap.Error(err))
		}
		secret = hex.EncodeToString(b)
		logger.Warn("auth.jwt_secret not set; using an ephemeral secret, Supabase tokens will be rejected")
	}

	apiKeyHash := v.GetString("auth.api_key_hash")
	logger.Info("auth configured",
		zap.String("issuer", v.GetString("auth.issuer")),
		zap.Bool("api_key", apiKeyHash != ""),
	)
	tokens := auth.NewTokenService([]byte(secret), v.GetString("auth.issuer"), v.GetDuration("auth.token_ttl"))
	return auth.AuthMiddleware(tokens, apiKeyHash, logger)
}
