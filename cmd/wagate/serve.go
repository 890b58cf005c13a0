package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/talkincode/wagate/config"
	"github.com/talkincode/wagate/internal/adminapi"
	"github.com/talkincode/wagate/internal/app"
	"github.com/talkincode/wagate/internal/ingest"
	"github.com/talkincode/wagate/internal/pairing"
	"github.com/talkincode/wagate/internal/session"
	"github.com/talkincode/wagate/internal/store"
	"github.com/talkincode/wagate/internal/webhook"
	"github.com/talkincode/wagate/internal/webserver"
	"github.com/talkincode/wagate/internal/whatsapp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the gateway (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	}
}

func newMigrateCommand() *cobra.Command {
	var drop bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the database schema and exit",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := config.LoadConfig(configFile)
			if err != nil {
				return err
			}
			application := app.NewApplication(cfg)
			if err := application.Init(cfg); err != nil {
				return err
			}
			defer application.Release()
			if drop {
				application.DropAll()
				if err := application.MigrateDB(true); err != nil {
					return err
				}
			}
			// whatsmeow keeps its own tables
			if _, err := whatsapp.New(application); err != nil {
				return err
			}
			zap.L().Info("main: schema is up to date")
			return nil
		},
	}
	cmd.Flags().BoolVar(&drop, "drop", false, "drop gateway tables before migrating")
	return cmd
}

// dispatcherCloser is implemented by sinks that own delivery workers.
type dispatcherCloser interface {
	Close(timeout time.Duration) error
}

func serve(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return err
	}
	application := app.NewApplication(cfg)
	if err := application.Init(cfg); err != nil {
		return errors.Wrap(err, "init application")
	}
	defer application.Release()

	db := application.DB()
	instances := store.NewGormInstanceRepository(db)
	messages := store.NewGormMessageRepository(db)

	sink, err := webhook.New(cfg.Webhook)
	if err != nil {
		return err
	}
	client, err := whatsapp.New(application)
	if err != nil {
		return errors.Wrap(err, "init whatsapp client")
	}

	ctrl := session.NewController(session.Options{
		RestartDelay:     cfg.Whatsapp.RestartDelay,
		ReconnectDelay:   cfg.Whatsapp.ReconnectDelay,
		LogoutOnShutdown: cfg.Whatsapp.LogoutOnShutdown,
	}, session.Deps{
		Registry:  session.NewRegistry(cfg.Whatsapp.MaxInstances),
		Client:    client,
		Auth:      store.NewGormAuthStateStore(db),
		Instances: instances,
		Pipeline:  ingest.NewPipeline(messages, sink),
		Sink:      sink,
		Encoder:   pairing.NewQREncoder(),
		Bus:       application.Bus(),
	})

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	restore(ctx, ctrl, instances)

	if err := application.ScheduleHousekeeping(ctrl.Registry(), messages); err != nil {
		return errors.Wrap(err, "schedule housekeeping")
	}

	webserver.Init(application)
	if err := adminapi.Init(ctrl, messages); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(webserver.Start)
	g.Go(func() error {
		<-gctx.Done()
		zap.L().Info("main: shutting down")

		sctx, cancel := context.WithTimeout(context.Background(), cfg.Whatsapp.ShutdownTimeout)
		defer cancel()
		if err := webserver.Shutdown(sctx); err != nil {
			zap.L().Warn("main: web server shutdown", zap.Error(err))
		}
		if err := ctrl.Shutdown(sctx); err != nil {
			zap.L().Warn("main: session shutdown incomplete", zap.Error(err))
		}
		if d, ok := sink.(dispatcherCloser); ok {
			if err := d.Close(cfg.Webhook.Timeout); err != nil {
				zap.L().Warn("main: webhook drain incomplete", zap.Error(err))
			}
		}
		return nil
	})
	return g.Wait()
}

// restore brings every persisted instance back. A failing instance is left
// to its reconnect schedule.
func restore(ctx context.Context, ctrl *session.Controller, instances store.InstanceRepository) {
	rows, err := instances.List(ctx)
	if err != nil {
		zap.L().Error("main: unable to list persisted instances", zap.Error(err))
		return
	}
	for _, inst := range rows {
		if err := ctrl.Restore(ctx, inst); err != nil {
			zap.L().Warn("main: instance restore failed",
				zap.String("instance_id", inst.ID), zap.Error(err))
		}
	}
	zap.L().Info("main: instances restored", zap.Int("count", len(rows)))
}
