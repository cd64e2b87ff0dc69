package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/slackmgr/widget-consumer/pubsub"
	"github.com/slackmgr/widget-consumer/sqs"
	"github.com/slackmgr/widget-consumer/types"
	"github.com/urfave/cli/v2"
	"gopkg.in/go-playground/validator.v9"
)

const (
	backendDynamoDB = "dynamodb"
	backendPostgres = "postgres"
)

type config struct {
	Region       string        `validate:"required"`
	QueueURL     string        `validate:"required,url"`
	Table        string        `validate:"required"`
	TableBackend string        `validate:"oneof=dynamodb postgres"`
	DynamoDBTTL  time.Duration `validate:"min=0"`

	PostgresHost     string
	PostgresPort     int `validate:"min=1,max=65535"`
	PostgresUser     string
	PostgresPassword string
	PostgresDatabase string
	PostgresSSLMode  string

	DeadLetterTarget string
	ArchiveBucket    string
	ArchivePrefix    string

	Workers           int           `validate:"min=1,max=1000"`
	BatchSize         int           `validate:"min=1,max=10"`
	WaitSeconds       int           `validate:"min=0,max=20"`
	VisibilityTimeout time.Duration `validate:"min=10000000000,max=43200000000000"`
	MaxLeaseExtension time.Duration
	MaxReceiveCount   int `validate:"min=0"`
	RetryBackOff      bool
	ShutdownGrace     time.Duration `validate:"min=0"`

	SkipSchemaValidation bool
	MetricsAddr          string
	LogLevel             string `validate:"oneof=debug info warn error"`
	LogFormat            string `validate:"oneof=json console"`
}

func flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "region", Usage: "AWS region", Required: true, EnvVars: []string{"AWS_REGION"}},
		&cli.StringFlag{Name: "queue-url", Usage: "URL of the SQS queue with widget requests", Required: true, EnvVars: []string{"QUEUE_URL"}},
		&cli.StringFlag{Name: "table", Usage: "Name of the widgets table", Required: true, EnvVars: []string{"TABLE_NAME"}},
		&cli.StringFlag{Name: "table-backend", Usage: "Table backend (dynamodb, postgres)", Value: backendDynamoDB, EnvVars: []string{"TABLE_BACKEND"}},
		&cli.DurationFlag{Name: "dynamodb-ttl", Usage: "Expire DynamoDB widget records after this long (0 disables)", EnvVars: []string{"DYNAMODB_TTL"}},
		&cli.StringFlag{Name: "postgres-host", Usage: "Postgres host", Value: "localhost", EnvVars: []string{"POSTGRES_HOST"}},
		&cli.IntFlag{Name: "postgres-port", Usage: "Postgres port", Value: 5432, EnvVars: []string{"POSTGRES_PORT"}},
		&cli.StringFlag{Name: "postgres-user", Usage: "Postgres user", EnvVars: []string{"POSTGRES_USER"}},
		&cli.StringFlag{Name: "postgres-password", Usage: "Postgres password", EnvVars: []string{"POSTGRES_PASSWORD"}},
		&cli.StringFlag{Name: "postgres-database", Usage: "Postgres database", EnvVars: []string{"POSTGRES_DATABASE"}},
		&cli.StringFlag{Name: "postgres-sslmode", Usage: "Postgres SSL mode", Value: "prefer", EnvVars: []string{"POSTGRES_SSLMODE"}},
		&cli.StringFlag{Name: "dead-letter-target", Usage: "SQS queue URL or pubsub://<project>/<topic> receiving unprocessable messages", EnvVars: []string{"DEAD_LETTER_TARGET"}},
		&cli.StringFlag{Name: "archive-bucket", Usage: "S3 bucket receiving a copy of every stored widget", EnvVars: []string{"ARCHIVE_BUCKET"}},
		&cli.StringFlag{Name: "archive-prefix", Usage: "Key prefix inside the archive bucket", Value: "widgets", EnvVars: []string{"ARCHIVE_PREFIX"}},
		&cli.IntFlag{Name: "workers", Usage: "Messages processed concurrently", Value: 10, EnvVars: []string{"WORKERS"}},
		&cli.IntFlag{Name: "batch-size", Usage: "Messages requested per receive (1-10)", Value: 10, EnvVars: []string{"BATCH_SIZE"}},
		&cli.IntFlag{Name: "wait-seconds", Usage: "Long-poll wait per receive (0-20)", Value: 20, EnvVars: []string{"WAIT_SECONDS"}},
		&cli.DurationFlag{Name: "visibility-timeout", Usage: "Lease duration of a received message", Value: 30 * time.Second, EnvVars: []string{"VISIBILITY_TIMEOUT"}},
		&cli.DurationFlag{Name: "max-lease-extension", Usage: "Stop extending a lease after this long", Value: 10 * time.Minute, EnvVars: []string{"MAX_LEASE_EXTENSION"}},
		&cli.IntFlag{Name: "max-receive-count", Usage: "Dead-letter a failing message after this many receives (0 disables)", EnvVars: []string{"MAX_RECEIVE_COUNT"}},
		&cli.BoolFlag{Name: "retry-backoff", Usage: "Back off redelivery of failed messages exponentially", EnvVars: []string{"RETRY_BACKOFF"}},
		&cli.DurationFlag{Name: "shutdown-grace", Usage: "How long in-flight messages may finish after a shutdown signal", Value: 30 * time.Second, EnvVars: []string{"SHUTDOWN_GRACE"}},
		&cli.BoolFlag{Name: "skip-schema-validation", Usage: "Do not verify the table layout at startup", EnvVars: []string{"SKIP_SCHEMA_VALIDATION"}},
		&cli.StringFlag{Name: "metrics-addr", Usage: "Listen address of the /metrics endpoint (empty disables)", Value: ":9090", EnvVars: []string{"METRICS_ADDR"}},
		&cli.StringFlag{Name: "log-level", Usage: "Log level (debug, info, warn, error)", Value: "info", EnvVars: []string{"LOG_LEVEL"}},
		&cli.StringFlag{Name: "log-format", Usage: "Log format (json, console)", Value: "json", EnvVars: []string{"LOG_FORMAT"}},
	}
}

func configFromContext(c *cli.Context) (*config, error) {
	cfg := &config{
		Region:               c.String("region"),
		QueueURL:             c.String("queue-url"),
		Table:                c.String("table"),
		TableBackend:         c.String("table-backend"),
		DynamoDBTTL:          c.Duration("dynamodb-ttl"),
		PostgresHost:         c.String("postgres-host"),
		PostgresPort:         c.Int("postgres-port"),
		PostgresUser:         c.String("postgres-user"),
		PostgresPassword:     c.String("postgres-password"),
		PostgresDatabase:     c.String("postgres-database"),
		PostgresSSLMode:      c.String("postgres-sslmode"),
		DeadLetterTarget:     c.String("dead-letter-target"),
		ArchiveBucket:        c.String("archive-bucket"),
		ArchivePrefix:        c.String("archive-prefix"),
		Workers:              c.Int("workers"),
		BatchSize:            c.Int("batch-size"),
		WaitSeconds:          c.Int("wait-seconds"),
		VisibilityTimeout:    c.Duration("visibility-timeout"),
		MaxLeaseExtension:    c.Duration("max-lease-extension"),
		MaxReceiveCount:      c.Int("max-receive-count"),
		RetryBackOff:         c.Bool("retry-backoff"),
		ShutdownGrace:        c.Duration("shutdown-grace"),
		SkipSchemaValidation: c.Bool("skip-schema-validation"),
		MetricsAddr:          c.String("metrics-addr"),
		LogLevel:             c.String("log-level"),
		LogFormat:            c.String("log-format"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrFatalConfig, err)
	}

	return cfg, nil
}

func (c *config) validate() error {
	if err := validator.New().Struct(c); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
			fe := validationErrors[0]
			return fmt.Errorf("invalid value %v for %s (%s %s)", fe.Value(), fe.Field(), fe.Tag(), fe.Param())
		}

		return err
	}

	if c.VisibilityTimeout%time.Second != 0 {
		return errors.New("visibility timeout must be a whole number of seconds")
	}

	if c.MaxLeaseExtension < c.VisibilityTimeout {
		return errors.New("max lease extension must not be shorter than the visibility timeout")
	}

	if c.TableBackend == backendPostgres && (c.PostgresUser == "" || c.PostgresDatabase == "") {
		return errors.New("postgres backend requires --postgres-user and --postgres-database")
	}

	if c.DeadLetterTarget != "" {
		if _, err := deadLetterKind(c.DeadLetterTarget); err != nil {
			return err
		}
	}

	if c.ArchivePrefix != strings.Trim(c.ArchivePrefix, "/") {
		return errors.New("archive prefix must not start or end with a slash")
	}

	return nil
}

// deadLetterKind selects the sink implementation for a target.
func deadLetterKind(target string) (string, error) {
	switch {
	case sqs.ShouldHandleTarget(target):
		return "sqs", nil
	case pubsub.ShouldHandleTarget(target):
		if _, _, err := pubsub.ParseTarget(target); err != nil {
			return "", err
		}

		return "pubsub", nil
	default:
		return "", fmt.Errorf("unsupported dead-letter target %q: expected an SQS queue URL or pubsub://<project>/<topic>", target)
	}
}
