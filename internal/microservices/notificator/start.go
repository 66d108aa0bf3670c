package notificator

import (
	"context"
	"errors"
	"fmt"
	"os"

	"restaurant-pos/internal/common/config"
	"restaurant-pos/internal/common/id"
	"restaurant-pos/internal/common/kafkabus"
	"restaurant-pos/internal/common/logger"
	"restaurant-pos/internal/common/mq"
	"restaurant-pos/internal/microservices/notificator/service"
)

// OpenBroker connects the configured event bus. It returns nil, nil when
// the kind is "none".
func OpenBroker(cfg config.Broker, instance string) (service.Broker, error) {
	switch cfg.Kind {
	case config.BrokerNone, "":
		return nil, nil
	case config.BrokerRabbitMQ:
		c, err := mq.Dial(cfg.Rabbit)
		if err != nil {
			return nil, err
		}
		return c, nil
	case config.BrokerKafka:
		b, err := kafkabus.New(cfg.Kafka, instance)
		if err != nil {
			return nil, err
		}
		return b, nil
	default:
		return nil, fmt.Errorf("unknown broker kind %q", cfg.Kind)
	}
}

// InstanceID names this process on the bus. Each instance needs its own
// consumer group or queue to see every event.
func InstanceID(role string) string {
	host, _ := os.Hostname()
	return fmt.Sprintf("restaurant-pos-%s-%s-%s", role, host, id.New(id.PrefixInstance))
}

// Start runs the audit subscriber until ctx is cancelled.
func Start(ctx context.Context, cfg config.App, lg *logger.Logger) error {
	broker, err := OpenBroker(cfg.Broker, InstanceID("audit"))
	if err != nil {
		return fmt.Errorf("connect broker: %w", err)
	}
	if broker == nil {
		return errors.New("notification-subscriber needs a broker; set broker.kind to rabbitmq or kafka")
	}
	defer broker.Close()

	lg.Info("broker_connected", map[string]any{"kind": cfg.Broker.Kind})
	return service.NewAuditor(broker, lg).Run(ctx)
}
