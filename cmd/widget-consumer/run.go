package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/slackmgr/widget-consumer/consumer"
	"github.com/slackmgr/widget-consumer/dynamodb"
	"github.com/slackmgr/widget-consumer/logging"
	"github.com/slackmgr/widget-consumer/metrics"
	"github.com/slackmgr/widget-consumer/postgres"
	"github.com/slackmgr/widget-consumer/pubsub"
	"github.com/slackmgr/widget-consumer/s3"
	"github.com/slackmgr/widget-consumer/sqs"
	"github.com/slackmgr/widget-consumer/types"
)

func run(ctx context.Context, cfg *config) error {
	baseLogger, err := logging.New(os.Stderr, cfg.LogLevel, logging.Format(cfg.LogFormat))
	if err != nil {
		return fmt.Errorf("%w: %w", types.ErrFatalConfig, err)
	}

	logger := baseLogger.WithField("instance_id", uuid.NewString())

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return fmt.Errorf("%w: failed to load AWS config: %w", types.ErrFatalConfig, err)
	}

	queue, err := sqs.New(&awsCfg, cfg.QueueURL, logger,
		sqs.WithSqsVisibilityTimeout(int32(cfg.VisibilityTimeout/time.Second)),
	).Init(ctx)
	if err != nil {
		return err
	}

	widgets, closeTable, err := openTable(ctx, &awsCfg, cfg)
	if err != nil {
		return err
	}
	defer closeTable()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	recorder := metrics.New(registry)

	opts := []consumer.Option{
		consumer.WithWorkers(cfg.Workers),
		consumer.WithBatchSize(int32(cfg.BatchSize)),
		consumer.WithWaitSeconds(int32(cfg.WaitSeconds)),
		consumer.WithVisibilityTimeout(cfg.VisibilityTimeout),
		consumer.WithMaxLeaseExtension(cfg.MaxLeaseExtension),
		consumer.WithShutdownGrace(cfg.ShutdownGrace),
		consumer.WithMaxReceiveCount(cfg.MaxReceiveCount),
		consumer.WithMetrics(recorder),
	}

	if cfg.RetryBackOff {
		opts = append(opts, consumer.WithRetryBackOff(consumer.NewBackOff()))
	}

	if cfg.DeadLetterTarget != "" {
		sink, closeSink, err := openDeadLetterSink(ctx, &awsCfg, cfg.DeadLetterTarget, logger)
		if err != nil {
			return err
		}
		defer closeSink()

		opts = append(opts, consumer.WithDeadLetterSink(sink))
	}

	if cfg.ArchiveBucket != "" {
		archive, err := s3.New(&awsCfg, cfg.ArchiveBucket, logger, s3.WithPrefix(cfg.ArchivePrefix)).Init(ctx)
		if err != nil {
			return err
		}

		opts = append(opts, consumer.WithArchive(archive))
	}

	c, err := consumer.New(queue, widgets, logger, opts...)
	if err != nil {
		return err
	}

	if cfg.MetricsAddr != "" {
		go serveMetrics(ctx, cfg.MetricsAddr, newRouter(recorder.Handler()), logger)
	}

	go monitorQueueStats(ctx, queue, recorder, logger.WithField("component", "queue_monitor"), queueStatsInterval)

	return c.Run(ctx)
}

// openTable connects the configured table backend and validates its schema.
func openTable(ctx context.Context, awsCfg *aws.Config, cfg *config) (types.Table, func(), error) {
	switch cfg.TableBackend {
	case backendPostgres:
		client := postgres.New(
			postgres.WithHost(cfg.PostgresHost),
			postgres.WithPort(cfg.PostgresPort),
			postgres.WithUser(cfg.PostgresUser),
			postgres.WithPassword(cfg.PostgresPassword),
			postgres.WithDatabase(cfg.PostgresDatabase),
			postgres.WithSSLMode(postgres.SSLMode(cfg.PostgresSSLMode)),
			postgres.WithTable(cfg.Table),
		)

		if err := client.Connect(ctx); err != nil {
			return nil, nil, err
		}

		closeFunc := func() { _ = client.Close(context.Background()) }

		if err := client.Init(ctx, cfg.SkipSchemaValidation); err != nil {
			closeFunc()
			return nil, nil, err
		}

		return client, closeFunc, nil
	default:
		var opts []dynamodb.Option
		if cfg.DynamoDBTTL > 0 {
			opts = append(opts, dynamodb.WithTimeToLive(cfg.DynamoDBTTL))
		}

		client := dynamodb.New(awsCfg, cfg.Table, opts...)

		if err := client.Connect(); err != nil {
			return nil, nil, asFatalConfig(err)
		}

		if err := client.Init(ctx, cfg.SkipSchemaValidation); err != nil {
			return nil, nil, asFatalConfig(err)
		}

		return client, func() {}, nil
	}
}

// openDeadLetterSink builds the sink matching the target's scheme.
func openDeadLetterSink(ctx context.Context, awsCfg *aws.Config, target string, logger types.Logger) (types.DeadLetterSink, func(), error) {
	kind, err := deadLetterKind(target)
	if err != nil {
		return nil, nil, asFatalConfig(err)
	}

	if kind == "sqs" {
		dlq, err := sqs.NewDeadLetterQueue(awsCfg, target, logger).Init(ctx)
		if err != nil {
			return nil, nil, err
		}

		return dlq, func() {}, nil
	}

	project, topic, err := pubsub.ParseTarget(target)
	if err != nil {
		return nil, nil, asFatalConfig(err)
	}

	gcpClient, err := gcppubsub.NewClient(ctx, project)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: failed to create pub/sub client for project %s: %w", types.ErrFatalConfig, project, err)
	}

	dlt, err := pubsub.NewDeadLetterTopic(gcpClient, topic, logger)
	if err == nil {
		dlt, err = dlt.Init()
	}

	if err != nil {
		_ = gcpClient.Close()
		return nil, nil, asFatalConfig(err)
	}

	return dlt, func() {
		dlt.Close()
		_ = gcpClient.Close()
	}, nil
}

func asFatalConfig(err error) error {
	if errors.Is(err, types.ErrFatalConfig) {
		return err
	}

	return fmt.Errorf("%w: %w", types.ErrFatalConfig, err)
}
