package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/deskrelay/deskrelay/internal/config"
	"github.com/deskrelay/deskrelay/internal/graph"
	"github.com/deskrelay/deskrelay/internal/handlers"
	"github.com/deskrelay/deskrelay/internal/hub"
	"github.com/deskrelay/deskrelay/internal/logger"
	"github.com/deskrelay/deskrelay/internal/relay"
	"github.com/deskrelay/deskrelay/internal/request"
	"github.com/deskrelay/deskrelay/internal/server"
	"github.com/deskrelay/deskrelay/internal/subscription"
)

func runServe() {
	fx.New(
		fx.Provide(
			provideConfig,
			provideLogger,
			request.NewStore,
			provideHub,
			provideGraphClient,
			provideGateway,
			provideResponder,
			provideService,
			provideRouter,
			provideRenewer,
			handlers.NewPingHandler,
			handlers.NewSupportHandler,
			handlers.NewNotificationsHandler,
			handlers.NewWSHandler,
			provideServer,
		),
		fx.Invoke(
			startRenewer,
			startServer,
		),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
		}),
	).Run()
}

func provideConfig() (config.Config, error) {
	cfgPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func provideHub(log *slog.Logger, store *request.Store) *hub.Hub {
	return hub.NewHub(log, store)
}

func provideGraphClient(log *slog.Logger, cfg config.Config) *graph.Client {
	if cfg.Graph.Disabled() {
		log.Warn("Graph credentials not configured, running in fallback mode")
		return nil
	}
	return graph.NewClient(log, cfg.Graph)
}

// provideGateway keeps the nil check on the concrete type so a disabled
// client surfaces as a nil interface, not a typed nil.
func provideGateway(client *graph.Client) relay.Gateway {
	if client == nil {
		return nil
	}
	return client
}

func provideResponder(log *slog.Logger, h *hub.Hub, store *request.Store, cfg config.Config) *relay.Responder {
	return relay.NewResponder(log, h, store, cfg.Fallback.DelayDuration(), cfg.Fallback.ResponderName)
}

func provideService(log *slog.Logger, store *request.Store, client *graph.Client, gateway relay.Gateway, fallback *relay.Responder, cfg config.Config) *relay.Service {
	members := resolveTeamMembers(log, client, cfg.Support)
	return relay.NewService(log, store, gateway, fallback, members, cfg.Support.NotificationURL, cfg.Subscription.TTLDuration())
}

func provideRouter(log *slog.Logger, store *request.Store, gateway relay.Gateway, h *hub.Hub, fallback *relay.Responder) *relay.Router {
	return relay.NewRouter(log, store, gateway, h, fallback)
}

func provideRenewer(log *slog.Logger, store *request.Store, client *graph.Client, cfg config.Config) *subscription.Renewer {
	if !cfg.Subscription.Renew || client == nil {
		return nil
	}
	return subscription.NewRenewer(log, store, client, cfg.Subscription.TTLDuration(), cfg.Subscription.RenewIntervalDuration())
}

func provideServer(cfg config.Config, pingHandler *handlers.PingHandler, supportHandler *handlers.SupportHandler, notificationsHandler *handlers.NotificationsHandler, wsHandler *handlers.WSHandler) *server.Server {
	return server.NewServer(cfg.Server.Addr, pingHandler, supportHandler, notificationsHandler, wsHandler)
}

// resolveTeamMembers turns configured emails into directory user IDs.
// Failures are tolerated: an unresolvable member just isn't added to chats.
func resolveTeamMembers(log *slog.Logger, client *graph.Client, cfg config.SupportConfig) []string {
	ids := append([]string(nil), cfg.TeamMemberIDs...)
	if client == nil || len(cfg.TeamMemberEmails) == 0 {
		return ids
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, email := range cfg.TeamMemberEmails {
		id, err := client.ResolveUserID(ctx, email)
		if err != nil {
			log.Warn("could not resolve team member", slog.String("email", email), slog.Any("error", err))
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

func startRenewer(lc fx.Lifecycle, renewer *subscription.Renewer) {
	if renewer == nil {
		return
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error { return renewer.Start() },
		OnStop:  func(ctx context.Context) error { renewer.Stop(); return nil },
	})
}

func startServer(lc fx.Lifecycle, logger *slog.Logger, srv *server.Server, shutdowner fx.Shutdowner) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server stop: %w", err)
			}
			return nil
		},
	})
}
