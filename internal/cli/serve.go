package cli

import (
	"context"
	"time"

	"tourbook/internal/bookings/handler"
	bookings "tourbook/internal/bookings/service"
	"tourbook/pkg/app"
	"tourbook/pkg/config"
	"tourbook/pkg/logger"

	"github.com/spf13/cobra"
)

func NewServeCommand(_ *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	}
}

func serve() error {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()
	cfg.SetRedis()

	container, err := NewContainer(cfg)
	if err != nil {
		cfg.GracefulShutdown()
		return err
	}
	container.Start(cfg)

	api := handler.NewRouter(
		handler.NewBookingHandler(container.Bookings, cfg.Log),
		handler.NewAvailabilityHandler(container.Store, container.Preferences, cfg.Log),
		handler.NewAssignmentHandler(container.Resolver, cfg.Log),
		handler.NewToolHandler(container.Bookings, cfg.Log),
	)

	application := app.NewApplication()
	application.SetApp(cfg, handler.NewHealthHandler(cfg.Client.Mongo, cfg.Log), api)
	if cfg.HygieneInterval > 0 {
		application.Background(hygieneWorker(container.Bookings, cfg.HygieneInterval, cfg.Log))
	}
	application.OnShutdown(func(ctx context.Context) {
		if err := container.Dispatcher.Stop(ctx); err != nil {
			cfg.Log.Warn("Notification queue not fully drained", "error", err)
		}
		if err := container.Close(); err != nil {
			cfg.Log.Error("Failed to close services", "error", err)
		}
	})

	application.Run()
	return nil
}

// hygieneWorker runs slot hygiene every interval until ctx is done.
func hygieneWorker(svc bookings.BookingService, interval time.Duration, log *logger.Logger) app.Worker {
	return func(ctx context.Context) {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				report, err := svc.Hygiene(ctx)
				if err != nil {
					log.Error("Slot hygiene failed", "error", err)
					continue
				}
				if report.OrphanSlotsRemoved > 0 || report.ExpiredSlotsPurged > 0 {
					log.Info("Slot hygiene completed",
						"orphan_slots_removed", report.OrphanSlotsRemoved,
						"expired_slots_purged", report.ExpiredSlotsPurged,
					)
				}
			}
		}
	}
}
