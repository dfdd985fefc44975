package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/veriops/contactsync/internal/boot"
	"github.com/veriops/contactsync/internal/config"
	"github.com/veriops/contactsync/internal/contacts"
	"github.com/veriops/contactsync/internal/crm"
	"github.com/veriops/contactsync/internal/db"
	dbsqlc "github.com/veriops/contactsync/internal/db/sqlc"
	"github.com/veriops/contactsync/internal/handlers"
	"github.com/veriops/contactsync/internal/helpdesk"
	"github.com/veriops/contactsync/internal/logger"
	"github.com/veriops/contactsync/internal/payload"
	"github.com/veriops/contactsync/internal/reconcile"
	"github.com/veriops/contactsync/internal/server"
	"github.com/veriops/contactsync/internal/tenants"
	"github.com/veriops/contactsync/internal/version"
)

// NewServeCommand creates the serve command, which runs the webhook receiver.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook receiver",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fx.New(
				serveOptions(rootOpts),
				fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
					return &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
				}),
			)
			if err := app.Err(); err != nil {
				return err
			}
			app.Run()
			return nil
		},
	}
}

func serveOptions(rootOpts *RootOptions) fx.Option {
	return fx.Options(
		fx.Provide(
			rootOpts.loadConfig,
			boot.ProvideRuntimeConfig,
			provideLogger,

			provideDBConn,
			provideDBQueries,

			provideContactsService,
			provideTenantsService,
			provideTenantLookup,
			provideOrchestrator,

			provideServerHandler(handlers.NewPingHandler),
			provideServerHandler(provideHelpdeskWebhookHandler),
			provideServerHandler(provideCRMWebhookHandler),

			provideServer,
		),
		fx.Invoke(startServer),
	)
}

func provideServerHandler(fn any) any {
	return fx.Annotate(
		fn,
		fx.As(new(server.Handler)),
		fx.ResultTags(`group:"server_handlers"`),
	)
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func provideDBConn(lc fx.Lifecycle, rc *boot.RuntimeConfig) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	conn, err := db.Open(ctx, rc.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			conn.Close()
			return nil
		},
	})
	return conn, nil
}

func provideDBQueries(conn *pgxpool.Pool) *dbsqlc.Queries {
	return dbsqlc.New(conn)
}

func provideContactsService(log *slog.Logger, queries *dbsqlc.Queries) *contacts.Service {
	return contacts.NewService(log, queries)
}

func provideTenantsService(log *slog.Logger, queries *dbsqlc.Queries) *tenants.Service {
	return tenants.NewService(log, queries)
}

func provideTenantLookup(log *slog.Logger, svc *tenants.Service, rc *boot.RuntimeConfig) tenants.Lookup {
	return tenants.NewCache(log, svc, rc.TenantTTL)
}

func provideOrchestrator(log *slog.Logger, store *contacts.Service, cfg config.Config, rc *boot.RuntimeConfig) *reconcile.Orchestrator {
	crmFactory := crm.Factory{
		Logger:  log,
		Options: crm.Options{Timeout: rc.CRMTimeout, SearchOrder: cfg.CRM.SearchOrder},
	}
	helpdeskFactory := helpdesk.Factory{Logger: log, Timeout: rc.HelpdeskTimeout}

	crmFor := func(t tenants.Tenant) (reconcile.CRM, error) {
		c, err := crmFactory.New(t.CRMBaseURL, t.CRMAPIKey)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
	notifierFor := func(t tenants.Tenant) (reconcile.Notifier, error) {
		c, err := helpdeskFactory.New(t.HelpdeskAPIURL, t.HelpdeskBotToken)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
	return reconcile.NewOrchestrator(log, store, crmFor, notifierFor, reconcile.Config{
		Payload: payload.Options{
			FallbackName: cfg.Sync.FallbackName,
			Provenance:   cfg.Sync.ProvenanceSource,
		},
		LinkAttribute: cfg.Helpdesk.LinkAttribute,
	})
}

func provideHelpdeskWebhookHandler(log *slog.Logger, cfg config.Config, lookup tenants.Lookup, orch *reconcile.Orchestrator, rc *boot.RuntimeConfig) *handlers.HelpdeskWebhookHandler {
	parser := helpdesk.Parser{LinkAttribute: cfg.Helpdesk.LinkAttribute}
	return handlers.NewHelpdeskWebhookHandler(log, parser, lookup, orch, rc.EventTimeout)
}

func provideCRMWebhookHandler(log *slog.Logger, lookup tenants.Lookup, store *contacts.Service) *handlers.CRMWebhookHandler {
	return handlers.NewCRMWebhookHandler(log, lookup, store)
}

type serverParams struct {
	fx.In

	Logger         *slog.Logger
	RuntimeConfig  *boot.RuntimeConfig
	ServerHandlers []server.Handler `group:"server_handlers"`
}

func provideServer(params serverParams) *server.Server {
	return server.NewServer(params.Logger, params.RuntimeConfig.ServerAddr, params.ServerHandlers...)
}

func startServer(lc fx.Lifecycle, logger *slog.Logger, srv *server.Server, shutdowner fx.Shutdowner) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("starting contactsync", slog.String("version", version.GetInfo()))
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Stop(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server stop: %w", err)
			}
			return nil
		},
	})
}
