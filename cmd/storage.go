package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-gocardless-payments/app/entity"
	"github.com/vibast-solutions/ms-go-gocardless-payments/app/gocardless"
	"github.com/vibast-solutions/ms-go-gocardless-payments/app/lock"
	"github.com/vibast-solutions/ms-go-gocardless-payments/app/repository"
	"github.com/vibast-solutions/ms-go-gocardless-payments/app/service"
	"github.com/vibast-solutions/ms-go-gocardless-payments/app/signature"
	"github.com/vibast-solutions/ms-go-gocardless-payments/config"

	_ "github.com/go-sql-driver/mysql"
)

type paymentStore interface {
	Save(ctx context.Context, payment *entity.Payment) error
	Load(ctx context.Context, id int64) (*entity.Payment, error)
	Delete(ctx context.Context, id int64) error
	ListStale(ctx context.Context, status entity.PaymentStatus, cutoff time.Time) ([]*entity.Payment, error)
}

type paymentLocker interface {
	Acquire(ctx context.Context, paymentID int64) (func(), error)
}

type dependencies struct {
	cfg     *config.Config
	service *service.RedirectFlowService
	signer  *signature.Signer
	cleanup func()
}

func mustCreateRedirectFlowService() *dependencies {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	if err := configureLogging(cfg); err != nil {
		logrus.WithError(err).Fatal("Failed to configure logging")
	}
	flushReporting := configureErrorReporting(cfg)

	ctx := context.Background()
	cleanups := []func(){flushReporting}
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	repo, closeRepo, err := openPaymentStore(ctx, cfg)
	if err != nil {
		cleanup()
		logrus.WithError(err).Fatal("Failed to initialize payment storage")
	}
	cleanups = append(cleanups, closeRepo)

	locker, closeLocker, err := openPaymentLocker(ctx, cfg)
	if err != nil {
		cleanup()
		logrus.WithError(err).Fatal("Failed to initialize payment lock")
	}
	cleanups = append(cleanups, closeLocker)

	method := methodConfig(cfg)
	client := gocardless.NewClientFromConfig(method, cfg.GoCardless.Timeout)
	signer := signature.NewSigner(cfg.Payments.SignatureSecret)
	redirectFlowService := service.NewRedirectFlowService(repo, client, locker, signer, method, cfg.Payments)

	return &dependencies{
		cfg:     cfg,
		service: redirectFlowService,
		signer:  signer,
		cleanup: cleanup,
	}
}

func methodConfig(cfg *config.Config) entity.MethodConfig {
	return entity.MethodConfig{
		TestMode:            cfg.GoCardless.TestMode,
		AccessToken:         cfg.GoCardless.AccessToken,
		CreditorID:          cfg.GoCardless.CreditorID,
		AllowOneOffPayments: cfg.GoCardless.AllowOneOffPayments,
		EndpointOverride:    cfg.GoCardless.Endpoint,
		InputSettings:       entity.DefaultInputSettings(),
	}
}

func openPaymentStore(ctx context.Context, cfg *config.Config) (paymentStore, func(), error) {
	switch cfg.Storage.Driver {
	case config.StorageDriverDynamoDB:
		awsCfg, err := newDynamoDBConfig(ctx, cfg.DynamoDB)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create dynamodb config: %w", err)
		}
		logrus.WithField("table", cfg.DynamoDB.PaymentsTable).Info("Using DynamoDB payment storage")
		return repository.NewPaymentDynamoRepository(dynamodb.NewFromConfig(awsCfg), cfg.DynamoDB.PaymentsTable), func() {}, nil
	default:
		db, err := sql.Open("mysql", cfg.MySQL.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}

		db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)

		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("failed to ping database: %w", err)
		}

		closeDB := func() {
			if err := db.Close(); err != nil {
				logrus.WithError(err).Warn("Failed to close database")
			}
		}
		return repository.NewPaymentRepository(db), closeDB, nil
	}
}

// newDynamoDBConfig uses static credentials so a local DynamoDB works without
// an AWS profile.
func newDynamoDBConfig(ctx context.Context, cfg config.DynamoDBConfig) (aws.Config, error) {
	creds := credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(creds),
	}

	if cfg.Endpoint != "" {
		resolver := aws.EndpointResolverWithOptionsFunc(func(serviceID, region string, _ ...interface{}) (aws.Endpoint, error) {
			if serviceID == dynamodb.ServiceID {
				return aws.Endpoint{URL: cfg.Endpoint, SigningRegion: region, HostnameImmutable: true}, nil
			}
			return aws.Endpoint{}, &aws.EndpointNotFoundError{}
		})
		loadOpts = append(loadOpts, awsconfig.WithEndpointResolverWithOptions(resolver))
	}

	return awsconfig.LoadDefaultConfig(ctx, loadOpts...)
}

func openPaymentLocker(ctx context.Context, cfg *config.Config) (paymentLocker, func(), error) {
	if cfg.Redis.Addr == "" {
		logrus.Warn("REDIS_ADDR not set, payment returns are not serialized across instances")
		return lock.NoopLock{}, func() {}, nil
	}

	client, err := lock.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, nil, err
	}

	closeRedis := func() {
		if err := client.Close(); err != nil {
			logrus.WithError(err).Warn("Failed to close redis client")
		}
	}
	return lock.NewPaymentLock(client, cfg.Payments.LockTTL), closeRedis, nil
}
