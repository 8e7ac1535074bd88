// Package main implements the entry point for the Threadit server, the
// backend behind Threadit's chats, posts, and real-time subscription
// delivery.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/AmrMohamed27/threadit-server-sub001/auth"
	"github.com/AmrMohamed27/threadit-server-sub001/broker"
	"github.com/AmrMohamed27/threadit-server-sub001/cache"
	"github.com/AmrMohamed27/threadit-server-sub001/gateway/graphql"
	"github.com/AmrMohamed27/threadit-server-sub001/natsclient"
	"github.com/AmrMohamed27/threadit-server-sub001/service"
	"github.com/AmrMohamed27/threadit-server-sub001/storage"
	"github.com/AmrMohamed27/threadit-server-sub001/storage/memory"
	"github.com/AmrMohamed27/threadit-server-sub001/storage/postgres"
)

// Build information constants
const (
	Version = "0.1.0"
	appName = "threadit"
)

const (
	sessionBucket = "threadit-sessions"
	wsAuthBucket  = "threadit-wsauth"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run() error {
	cfg := parseFlags()
	if err := validateFlags(cfg); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	if cfg.ShowVersion {
		fmt.Printf("%s %s\n", appName, Version)
		return nil
	}
	if cfg.ShowHelp {
		fmt.Printf("Usage: %s [flags]\n\n", appName)
		return nil
	}
	if cfg.ValidateOnly {
		fmt.Println("configuration valid")
		return nil
	}

	logger := setupLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("starting",
		"bind", cfg.BindAddress,
		"nats_url", cfg.NATSURL,
		"storage", cfg.Storage)

	// The broker holds the publish and subscribe connections. A third
	// connection carries the JetStream KV buckets backing sessions and
	// streaming tokens. Both dials proceed in parallel.
	var (
		events   *broker.Client
		kvClient *natsclient.Client
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		events, err = broker.Connect(gctx, cfg.NATSURL, logger)
		if err != nil {
			return fmt.Errorf("connect broker: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		client, err := natsclient.NewClient(cfg.NATSURL,
			natsclient.WithName("threadit-cache"),
			natsclient.WithLogger(logger))
		if err != nil {
			return fmt.Errorf("create cache client: %w", err)
		}
		if err := client.Connect(gctx); err != nil {
			return fmt.Errorf("connect cache client: %w", err)
		}
		kvClient = client
		return nil
	})
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if events != nil {
			_ = events.Close(closeCtx)
		}
		if kvClient != nil {
			_ = kvClient.Close(closeCtx)
		}
	}()
	if err := g.Wait(); err != nil {
		return err
	}

	sessionStore, err := cache.NewKVStore(ctx, kvClient, sessionBucket, cfg.SessionTTL)
	if err != nil {
		return fmt.Errorf("create session store: %w", err)
	}
	tokenStore, err := cache.NewKVStore(ctx, kvClient, wsAuthBucket, auth.TokenTTLSeconds*time.Second)
	if err != nil {
		return fmt.Errorf("create token store: %w", err)
	}

	backend, cleanup, err := openStorage(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer cleanup()

	sessions, err := auth.NewSessionManager(sessionStore, []byte(cfg.CookieSecret),
		cfg.SessionTTL, logger, auth.WithSecureCookies(cfg.SecureCookies))
	if err != nil {
		return fmt.Errorf("create session manager: %w", err)
	}
	tokens := auth.NewTokenBridge(tokenStore, logger)
	publisher := service.NewPublisher(events, logger)

	resolver := graphql.NewResolver(
		service.NewUserService(backend, logger),
		service.NewChatService(backend, publisher, logger),
		service.NewMessageService(backend, backend, publisher, logger),
		service.NewForumService(backend, publisher, logger),
		sessions, tokens, logger,
	)

	server, err := graphql.NewServer(graphql.Config{
		BindAddress:      cfg.BindAddress,
		EnablePlayground: cfg.Playground,
		EnableCORS:       true,
	}, graphql.Deps{
		Resolver:   resolver,
		Subscriber: events,
		Chats:      backend,
		Sessions:   sessions,
		Tokens:     tokens,
		Publisher:  publisher,
	}, logger)
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}

	if err := server.Setup(); err != nil {
		return fmt.Errorf("setup server: %w", err)
	}

	ready := make(chan struct{})
	if err := server.Start(ctx, ready); err != nil {
		return fmt.Errorf("run server: %w", err)
	}

	logger.Info("shutdown complete")
	return nil
}

// openStorage builds the configured storage backend and its cleanup.
func openStorage(ctx context.Context, cfg *CLIConfig) (storage.Backend, func(), error) {
	switch cfg.Storage {
	case "memory":
		return memory.New(), func() {}, nil
	default:
		pg, err := postgres.New(ctx, postgres.Config{URI: cfg.PostgresURI})
		if err != nil {
			return nil, nil, err
		}
		return pg, pg.Close, nil
	}
}
