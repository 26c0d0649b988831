package factory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dsql/auth"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lychee-technology/dataeditor"
	"github.com/lychee-technology/dataeditor/internal"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/duckdb/duckdb-go/v2"
	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"
)

// Options customise NewEditorWithConfig.
type Options struct {
	// Registry replaces the file registry built from Config.SchemaDirectory.
	Registry dataeditor.SchemaRegistry
	// Metrics receives the adapter collectors when metrics are enabled.
	// Nil falls back to prometheus.DefaultRegisterer.
	Metrics prometheus.Registerer
	// Publisher replaces the Kafka publisher built from Config.Events.
	Publisher dataeditor.ChangePublisher
}

// Editor is the set of data models served by one process.
type Editor struct {
	Registry dataeditor.SchemaRegistry
	Models   []dataeditor.DataModel

	closers []func() error
}

// Model returns the model registered under id, or nil.
func (e *Editor) Model(id string) dataeditor.DataModel {
	return internal.FindModel(e.Models, id)
}

// Close releases every connection and publisher opened for the models.
func (e *Editor) Close() error {
	var errs []error
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	e.closers = nil
	return errors.Join(errs...)
}

// NewEditorWithConfig builds one DataModel per registered schema, each backed by
// the adapter its ModelConfig selects. Backend connections are opened lazily and
// shared between the models that use them.
//
// Usage:
//
//	import (
//	    "github.com/lychee-technology/dataeditor"
//	    "github.com/lychee-technology/dataeditor/factory"
//	)
//
//	config, err := dataeditor.LoadConfig("dataeditor.yaml")
//	if err != nil {
//	    // handle error
//	}
//	editor, err := factory.NewEditorWithConfig(ctx, config, factory.Options{})
//	if err != nil {
//	    // handle error
//	}
//	defer editor.Close()
//
// With custom SchemaRegistry:
//
//	editor, err := factory.NewEditorWithConfig(ctx, config, factory.Options{Registry: myRegistry})
func NewEditorWithConfig(ctx context.Context, config *dataeditor.Config, opts Options) (*Editor, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}

	registry := opts.Registry
	if registry == nil {
		var err error
		registry, err = internal.NewFileSchemaRegistry(config.SchemaDirectory)
		if err != nil {
			return nil, fmt.Errorf("failed to load schemas: %w", err)
		}
	}

	b := &builder{config: config, editor: &Editor{Registry: registry}}

	if config.Metrics.Enabled {
		registerer := opts.Metrics
		if registerer == nil {
			registerer = prometheus.DefaultRegisterer
		}
		b.metrics = internal.NewAdapterMetrics(registerer, config.Metrics.Namespace)
	}

	b.publisher = opts.Publisher
	if b.publisher == nil && config.Events.Enabled {
		publisher, err := internal.NewKafkaPublisher(internal.KafkaPublisherConfig{
			Brokers:      config.Events.Brokers,
			Topic:        config.Events.Topic,
			BatchTimeout: config.Events.BatchTimeout,
		})
		if err != nil {
			return nil, err
		}
		b.publisher = publisher
		b.editor.closers = append(b.editor.closers, publisher.Close)
	}

	for _, id := range registry.ListSchemas() {
		model, err := b.buildModel(ctx, id)
		if err != nil {
			_ = b.editor.Close()
			return nil, err
		}
		b.editor.Models = append(b.editor.Models, model)
	}

	zap.S().Infow("Data models ready", "models", registry.ListSchemas())
	return b.editor, nil
}

// builder caches the backend clients shared by several models.
type builder struct {
	config    *dataeditor.Config
	editor    *Editor
	metrics   *internal.AdapterMetrics
	publisher dataeditor.ChangePublisher

	pgPool     *pgxpool.Pool
	sqlDB      *sql.DB
	sqlDialect internal.SQLDialect
	redis      *redis.Client
	s3         *s3.Client
	dynamodb   *dynamodb.Client
}

func (b *builder) buildModel(ctx context.Context, id string) (dataeditor.DataModel, error) {
	schema, err := b.editor.Registry.GetSchema(id)
	if err != nil {
		return nil, err
	}
	modelConfig := b.config.ModelConfig(id)

	options := internal.AdapterOptions{PrimaryKey: schema.PrimaryKey}
	autoIncrement := modelConfig.AutoIncrement
	if pk, ok := schema.Property(schema.PrimaryKey); ok && pk.AutoIncrement {
		autoIncrement = true
	}
	if autoIncrement {
		options.KeyGenerator, err = internal.NewKeyGenerator(modelConfig.KeyGenerator)
		if err != nil {
			return nil, dataeditor.NewSchemaError(err.Error()).WithModel(id)
		}
	}

	adapter, err := b.buildAdapter(ctx, modelConfig, options)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s adapter for model %s: %w", modelConfig.Adapter, id, err)
	}
	adapter = internal.NewInstrumentedAdapter(adapter, id, b.metrics)
	adapter = internal.NewPublishingAdapter(adapter, id, schema.PrimaryKey, b.publisher)

	zap.S().Debugw("Building data model", "model", id, "adapter", modelConfig.Adapter, "autoIncrement", autoIncrement)
	return internal.NewDataModel(*schema, adapter)
}

func (b *builder) buildAdapter(ctx context.Context, m dataeditor.ModelConfig, options internal.AdapterOptions) (dataeditor.Adapter, error) {
	seed := b.editor.Registry.SeedData(m.ID)
	storage := b.config.Storage

	switch m.Adapter {
	case dataeditor.AdapterMemory, "":
		return internal.NewMemoryAdapter(seed, options), nil

	case dataeditor.AdapterFile:
		return internal.NewFileAdapter(m.Path, seed, options), nil

	case dataeditor.AdapterREST:
		return internal.NewRESTAdapter(internal.RESTAdapterConfig{
			Address:           m.Address,
			Credentials:       m.Credentials,
			Timeout:           m.Timeout,
			RequestsPerSecond: m.RequestsPerSecond,
			Breaker:           internal.NewCircuitBreaker(5, 30*time.Second, 15*time.Second),
		}), nil

	case dataeditor.AdapterS3:
		client, err := b.s3Client(ctx)
		if err != nil {
			return nil, err
		}
		return internal.NewS3Adapter(client, storage.S3.Bucket, storage.S3.Prefix, m.ID, seed, options), nil

	case dataeditor.AdapterSQL:
		db, dialect, err := b.sqlDatabase(ctx)
		if err != nil {
			return nil, err
		}
		return internal.NewSQLAdapter(db, dialect, storage.SQL.Table, m.ID, options), nil

	case dataeditor.AdapterPostgres:
		pool, err := b.postgresPool(ctx)
		if err != nil {
			return nil, err
		}
		return internal.NewPostgresAdapter(pool, storage.Postgres.Table, m.ID, options), nil

	case dataeditor.AdapterRedis:
		client, err := b.redisClient(ctx)
		if err != nil {
			return nil, err
		}
		return internal.NewRedisAdapter(client, storage.Redis.KeyPrefix, m.ID, options), nil

	case dataeditor.AdapterDynamoDB:
		client, err := b.dynamoDBClient(ctx)
		if err != nil {
			return nil, err
		}
		return internal.NewDynamoDBAdapter(client, storage.DynamoDB.Table, m.ID, options), nil

	default:
		return nil, fmt.Errorf("unknown adapter %q", m.Adapter)
	}
}

func (b *builder) postgresPool(ctx context.Context) (*pgxpool.Pool, error) {
	if b.pgPool != nil {
		return b.pgPool, nil
	}
	cfg := b.config.Storage.Postgres

	password := cfg.Password
	if cfg.UseIAM {
		awsCfg, err := LoadAWSConfig(ctx, dataeditor.AWSConfig{Region: cfg.Region})
		if err != nil {
			return nil, err
		}
		endpoint := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
		token, err := auth.GenerateDbConnectAuthToken(ctx, endpoint, awsCfg.Region, awsCfg.Credentials)
		if err != nil {
			return nil, fmt.Errorf("failed to generate IAM auth token: %w", err)
		}
		zap.S().Infow("Generated IAM auth token for Postgres connection", "host", cfg.Host)
		password = token
	}

	pool, err := NewPostgresPool(ctx, cfg, password)
	if err != nil {
		return nil, err
	}
	if err := internal.EnsurePostgresTable(ctx, pool, cfg.Table); err != nil {
		pool.Close()
		return nil, err
	}
	b.pgPool = pool
	b.editor.closers = append(b.editor.closers, func() error { pool.Close(); return nil })
	return pool, nil
}

// NewPostgresPool creates a PostgreSQL connection pool from config and pings it.
func NewPostgresPool(ctx context.Context, cfg dataeditor.DatabaseConfig, password string) (*pgxpool.Pool, error) {
	connString := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.Username,
		password,
		cfg.Host,
		cfg.Port,
		cfg.Database,
		cfg.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConnections)
	poolConfig.MinConns = int32(cfg.MinConnections)
	poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	poolConfig.MaxConnIdleTime = cfg.ConnMaxIdleTime
	poolConfig.ConnConfig.ConnectTimeout = cfg.Timeout

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}

func (b *builder) sqlDatabase(ctx context.Context) (*sql.DB, internal.SQLDialect, error) {
	if b.sqlDB != nil {
		return b.sqlDB, b.sqlDialect, nil
	}
	db, dialect, err := OpenSQL(ctx, b.config.Storage.SQL)
	if err != nil {
		return nil, internal.SQLDialect{}, err
	}
	b.sqlDB, b.sqlDialect = db, dialect
	b.editor.closers = append(b.editor.closers, db.Close)
	return db, dialect, nil
}

// OpenSQL opens the configured database/sql backend and creates its records table.
func OpenSQL(ctx context.Context, cfg dataeditor.SQLConfig) (*sql.DB, internal.SQLDialect, error) {
	dialect, err := internal.DialectFor(cfg.Driver)
	if err != nil {
		return nil, internal.SQLDialect{}, err
	}
	db, err := sql.Open(dialect.Driver, cfg.DSN)
	if err != nil {
		return nil, internal.SQLDialect{}, fmt.Errorf("failed to open %s database: %w", cfg.Driver, err)
	}
	if dialect.Driver != "mysql" {
		// embedded engines serialize writers
		db.SetMaxOpenConns(1)
	}
	if err := internal.EnsureSQLTable(ctx, db, dialect, cfg.Table); err != nil {
		_ = db.Close()
		return nil, internal.SQLDialect{}, err
	}
	zap.S().Infow("Opened sql storage", "driver", cfg.Driver, "table", cfg.Table)
	return db, dialect, nil
}

func (b *builder) redisClient(ctx context.Context) (*redis.Client, error) {
	if b.redis != nil {
		return b.redis, nil
	}
	cfg := b.config.Storage.Redis
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Address, err)
	}
	b.redis = client
	b.editor.closers = append(b.editor.closers, client.Close)
	return client, nil
}

func (b *builder) s3Client(ctx context.Context) (*s3.Client, error) {
	if b.s3 != nil {
		return b.s3, nil
	}
	client, err := NewS3Client(ctx, b.config.Storage.S3)
	if err != nil {
		return nil, err
	}
	b.s3 = client
	return client, nil
}

// NewS3Client builds an S3 client, honouring custom endpoints such as MinIO.
func NewS3Client(ctx context.Context, cfg dataeditor.S3Config) (*s3.Client, error) {
	awsCfg, err := LoadAWSConfig(ctx, cfg.AWSConfig)
	if err != nil {
		return nil, err
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	}), nil
}

func (b *builder) dynamoDBClient(ctx context.Context) (*dynamodb.Client, error) {
	if b.dynamodb != nil {
		return b.dynamodb, nil
	}
	cfg := b.config.Storage.DynamoDB
	awsCfg, err := LoadAWSConfig(ctx, cfg.AWSConfig)
	if err != nil {
		return nil, err
	}
	b.dynamodb = dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return b.dynamodb, nil
}

// LoadAWSConfig loads the default AWS configuration with optional region and static keys.
func LoadAWSConfig(ctx context.Context, cfg dataeditor.AWSConfig) (aws.Config, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	return awsCfg, nil
}
