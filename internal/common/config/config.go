package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Service struct {
	Port int `yaml:"port" env:"PORT"`
}

type DB struct {
	Driver       string `yaml:"driver" env:"DRIVER"` // postgres | sqlite
	Host         string `yaml:"host" env:"HOST"`
	Port         int    `yaml:"port" env:"PORT"`
	User         string `yaml:"user" env:"USER"`
	Pass         string `yaml:"password" env:"PASSWORD"`
	Name         string `yaml:"database" env:"NAME"`
	SSLMode      string `yaml:"sslmode" env:"SSLMODE"`
	Path         string `yaml:"path" env:"PATH"` // sqlite file
	MaxOpenConns int    `yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`
}

type MQ struct {
	Host     string `yaml:"host" env:"HOST"`
	Port     int    `yaml:"port" env:"PORT"`
	User     string `yaml:"user" env:"USER"`
	Pass     string `yaml:"password" env:"PASSWORD"`
	VHost    string `yaml:"vhost" env:"VHOST"`
	Exchange string `yaml:"exchange" env:"EXCHANGE"`
	UseTLS   bool   `yaml:"tls" env:"TLS"`
}

type Kafka struct {
	Brokers []string `yaml:"brokers" env:"BROKERS" envSeparator:","`
	Topic   string   `yaml:"topic" env:"TOPIC"`
}

type Broker struct {
	Kind   string `yaml:"kind" env:"KIND"` // none | rabbitmq | kafka
	Rabbit MQ     `yaml:"rabbitmq" envPrefix:"RABBITMQ_"`
	Kafka  Kafka  `yaml:"kafka" envPrefix:"KAFKA_"`
}

type Tracing struct {
	Endpoint    string `yaml:"endpoint" env:"ENDPOINT"`
	Insecure    bool   `yaml:"insecure" env:"INSECURE"`
	ServiceName string `yaml:"service_name" env:"SERVICE_NAME"`
	ExportLogs  bool   `yaml:"export_logs" env:"EXPORT_LOGS"` // also ship logs to Endpoint
}

type App struct {
	Service  Service `yaml:"service" envPrefix:"SERVICE_"`
	Database DB      `yaml:"database" envPrefix:"DB_"`
	Broker   Broker  `yaml:"broker" envPrefix:"BROKER_"`
	Tracing  Tracing `yaml:"tracing" envPrefix:"TRACING_"`
}

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	BrokerNone     = "none"
	BrokerRabbitMQ = "rabbitmq"
	BrokerKafka    = "kafka"
)

// Load reads the YAML file at path (a missing file is not an error), then
// .env, then POS_* environment variables, in increasing precedence.
func Load(path string) (App, error) {
	var a App
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return App{}, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(b, &a); err != nil {
				return App{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return App{}, fmt.Errorf("load .env: %w", err)
	}
	if err := env.ParseWithOptions(&a, env.Options{Prefix: "POS_"}); err != nil {
		return App{}, fmt.Errorf("parse env: %w", err)
	}

	a.applyDefaults()
	if err := a.Validate(); err != nil {
		return App{}, err
	}
	return a, nil
}

func (a *App) applyDefaults() {
	if a.Service.Port == 0 {
		a.Service.Port = 3000
	}
	a.Database.Driver = strings.ToLower(a.Database.Driver)
	if a.Database.Driver == "" {
		a.Database.Driver = DriverPostgres
	}
	if a.Database.Driver == DriverPostgres {
		if a.Database.Port == 0 {
			a.Database.Port = 5432
		}
		if a.Database.SSLMode == "" {
			a.Database.SSLMode = "disable"
		}
	}
	if a.Database.Driver == DriverSQLite && a.Database.Path == "" {
		a.Database.Path = "restaurant-pos.db"
	}
	a.Broker.Kind = strings.ToLower(a.Broker.Kind)
	if a.Broker.Kind == "" {
		a.Broker.Kind = BrokerNone
	}
	if a.Broker.Rabbit.Port == 0 {
		a.Broker.Rabbit.Port = 5672
	}
	if a.Broker.Rabbit.Exchange == "" {
		a.Broker.Rabbit.Exchange = "pos_events"
	}
	if a.Broker.Kafka.Topic == "" {
		a.Broker.Kafka.Topic = "pos-events"
	}
	if a.Tracing.ServiceName == "" {
		a.Tracing.ServiceName = "restaurant-pos"
	}
}

func (a App) Validate() error {
	switch a.Database.Driver {
	case DriverPostgres:
		if a.Database.Host == "" || a.Database.Name == "" {
			return errors.New("config: database.host and database.database are required for postgres")
		}
	case DriverSQLite:
	default:
		return fmt.Errorf("config: unknown database.driver %q", a.Database.Driver)
	}
	switch a.Broker.Kind {
	case BrokerNone:
	case BrokerRabbitMQ:
		if a.Broker.Rabbit.Host == "" {
			return errors.New("config: broker.rabbitmq.host is required")
		}
	case BrokerKafka:
		if len(a.Broker.Kafka.Brokers) == 0 {
			return errors.New("config: broker.kafka.brokers is required")
		}
	default:
		return fmt.Errorf("config: unknown broker.kind %q", a.Broker.Kind)
	}
	return nil
}
