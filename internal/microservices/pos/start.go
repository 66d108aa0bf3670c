package pos

import (
	"context"
	"fmt"
	"strconv"

	"golang.org/x/sync/errgroup"

	"restaurant-pos/internal/common/config"
	"restaurant-pos/internal/common/db"
	"restaurant-pos/internal/common/httpx"
	"restaurant-pos/internal/common/logger"
	"restaurant-pos/internal/domain"
	"restaurant-pos/internal/microservices/notificator"
	"restaurant-pos/internal/microservices/notificator/hub"
	notify "restaurant-pos/internal/microservices/notificator/service"
	"restaurant-pos/internal/microservices/pos/handlers"
	"restaurant-pos/internal/microservices/pos/repository"
	"restaurant-pos/internal/microservices/pos/seed"
	"restaurant-pos/internal/microservices/pos/service"
)

// Run serves the POS API and its WebSocket feeds until ctx is cancelled.
//
// Without a broker, services notify the local hub directly. With one, they
// publish to the bus and a relay feeds every replica's hub from it.
func Run(ctx context.Context, cfg config.App, lg *logger.Logger) error {
	conn, err := db.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer conn.Close()
	lg.Info("db_connected", map[string]any{"driver": cfg.Database.Driver})

	h := hub.New(lg.Named("hub"))

	broker, err := notificator.OpenBroker(cfg.Broker, notificator.InstanceID("pos"))
	if err != nil {
		return fmt.Errorf("connect broker: %w", err)
	}

	var notifier domain.Notifier = h
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		h.Run(ctx)
		return nil
	})
	if broker != nil {
		defer broker.Close()
		lg.Info("broker_connected", map[string]any{"kind": cfg.Broker.Kind})
		publisher := notify.NewBrokerNotifier(broker, lg.Named("publisher"))
		notifier = publisher
		g.Go(func() error {
			publisher.Run(ctx)
			return nil
		})
		relay := notify.NewRelay(broker, h, lg.Named("relay"))
		g.Go(func() error {
			// Losing the relay degrades live updates only; keep serving.
			if err := relay.Run(ctx); err != nil {
				lg.Error("relay_stopped", err, nil)
			}
			return nil
		})
	}

	svc := service.New(repository.New(conn), notifier, lg)
	router := handlers.Router(handlers.New(svc, h, conn, lg.Named("http")))

	srv := httpx.New(":"+strconv.Itoa(cfg.Service.Port), router)
	g.Go(func() error {
		lg.Info("service_started", map[string]any{"port": cfg.Service.Port})
		return srv.Run(ctx)
	})
	return g.Wait()
}

// Seed loads the demo catalog into the configured database and exits.
func Seed(ctx context.Context, cfg config.App, lg *logger.Logger) error {
	conn, err := db.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer conn.Close()
	return seed.Run(ctx, repository.New(conn), lg)
}
