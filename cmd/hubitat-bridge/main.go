package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"hubitatbridge/internal/api"
	"hubitatbridge/internal/auth"
	"hubitatbridge/internal/config"
	"hubitatbridge/internal/events"
	"hubitatbridge/internal/hubitat"
	"hubitatbridge/internal/mcp"
	"hubitatbridge/internal/mqtt"
	"hubitatbridge/internal/platform"
	"hubitatbridge/internal/storage"
)

// Version is set at build time via -ldflags "-X main.Version=vX.Y.Z"
var Version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "Path to YAML configuration file")
	mcpMode := flag.Bool("mcp", false, "Serve MCP tools on stdio instead of the HTTP API")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(Version)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hubitat-bridge: %v\n", err)
		os.Exit(1)
	}

	log.Logger = newLogger(cfg.Log, os.Stderr)
	log.Info().Str("version", Version).Stringer("config", cfg).Msg("Configuration loaded")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *mcpMode); err != nil {
		log.Fatal().Err(err).Msg("Bridge failed")
	}
}

func newLogger(cfg config.LogConfig, out io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

func run(ctx context.Context, cfg *config.Config, mcpMode bool) error {
	logger := log.Logger

	store, err := storage.NewBoltStorage(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close storage")
		}
	}()

	eventStore := events.NewStore(cfg.Events.MaxSize)
	plat := platform.New(eventStore, store, logger)

	// Discovery runs for every gateway; offline hubs contribute nothing
	controllers := make([]*hubitat.Controller, 0, len(cfg.Gateways))
	for _, g := range cfg.Gateways {
		c := hubitat.NewController(hubitat.GatewayConfig{
			Name:           g.Name,
			BaseURL:        g.URL,
			AccessToken:    g.AccessToken,
			ScanInterval:   g.ScanIntervalDuration(),
			EntityIDs:      g.EntityIDs,
			DebounceWindow: cfg.Hubitat.DebounceWindow,
			RepollInterval: cfg.Hubitat.RepollInterval,
			RequestTimeout: cfg.Hubitat.RequestTimeout,
		}, logger)

		c.Connect(ctx)
		plat.AddController(c)
		controllers = append(controllers, c)
	}

	if cfg.MQTT.Enabled() {
		client, err := startMQTT(cfg.MQTT, store, plat, logger)
		if err != nil {
			// The REST API keeps working without a broker
			logger.Error().Err(err).Msg("MQTT unavailable")
		} else {
			defer client.Disconnect()
		}
	}

	for _, c := range controllers {
		if c.Connected() {
			c.Start(ctx)
		}
	}
	defer func() {
		for _, c := range controllers {
			c.Stop()
		}
	}()

	// Stdout is the MCP transport; logs already go to stderr
	if mcpMode {
		return serveMCP(ctx, mcp.NewServer(plat, controllers, eventStore, Version, logger))
	}

	server, err := newAPIServer(cfg, plat, controllers, eventStore, store, logger)
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		server.rateLimiter.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		server.wsTokens.Run(ctx)
	}()
	defer wg.Wait()

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           server.api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("address", cfg.Server.Addr).Msg("Starting API server")
		if cfg.Server.NoAuth {
			logger.Warn().Msg("Authentication is DISABLED")
		}
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api server: %w", err)
		}
	case <-ctx.Done():
		logger.Info().Msg("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("API server shutdown failed")
		}
	}

	return nil
}

func serveMCP(ctx context.Context, srv *mcp.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ServeStdio()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return nil
	}
}

func startMQTT(cfg config.MQTTConfig, store storage.Storage, plat *platform.Platform, logger zerolog.Logger) (*mqtt.Client, error) {
	client, err := mqtt.New(mqtt.Config{
		Broker:          cfg.Broker,
		ClientID:        cfg.ClientID,
		Username:        cfg.Username,
		Password:        cfg.Password,
		Prefix:          cfg.Prefix,
		DiscoveryPrefix: cfg.DiscoveryPrefix,
		UseTLS:          cfg.UseTLS,
	}, logger)
	if err != nil {
		return nil, err
	}

	if err := client.Connect(); err != nil {
		return nil, err
	}

	publisher := mqtt.NewPublisher(client, logger)
	discovery := mqtt.NewDiscoveryManager(client, logger, store, "mqtt")
	bridge := mqtt.NewBridge(client, discovery, publisher, plat, logger)

	if err := bridge.Start(plat.Entities()); err != nil {
		client.Disconnect()
		return nil, err
	}
	plat.AddSink(publisher)

	return client, nil
}

type apiServer struct {
	api         *api.Server
	rateLimiter *auth.LoginRateLimiter
	wsTokens    *auth.WSTokenStore
}

func newAPIServer(cfg *config.Config, plat *platform.Platform, controllers []*hubitat.Controller, eventStore *events.Store, store storage.Storage, logger zerolog.Logger) (*apiServer, error) {
	accounts := make([]auth.Account, 0, len(cfg.Server.Users))
	for _, u := range cfg.Server.Users {
		accounts = append(accounts, auth.Account{
			Username:     u.Username,
			Password:     u.Password,
			PasswordHash: u.PasswordHash,
			Role:         auth.Role(u.Role),
		})
	}

	authenticator, err := auth.NewAuthenticator(accounts)
	if err != nil {
		return nil, fmt.Errorf("configure users: %w", err)
	}

	rateLimiter := auth.NewLoginRateLimiter(0, 0, 0)
	wsTokens := auth.NewWSTokenStore()

	server := api.NewServer(api.Options{
		Platform:      plat,
		Controllers:   controllers,
		Events:        eventStore,
		History:       store,
		JWT:           auth.NewJWTManager(cfg.Server.JWTSecret, cfg.Server.JWTExpiration),
		Authenticator: authenticator,
		RateLimiter:   rateLimiter,
		WSTokens:      wsTokens,
		NoAuth:        cfg.Server.NoAuth,
		Version:       Version,
		Logger:        logger,
	})

	return &apiServer{api: server, rateLimiter: rateLimiter, wsTokens: wsTokens}, nil
}
