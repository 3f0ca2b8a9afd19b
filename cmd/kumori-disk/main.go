// Command kumori-disk runs the cloud-storage backend.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	gormdb "gorm.io/gorm"

	kd "github.com/kumori-disk/kumori-disk"
	"github.com/kumori-disk/kumori-disk/auth"
	"github.com/kumori-disk/kumori-disk/cache"
	"github.com/kumori-disk/kumori-disk/config"
	"github.com/kumori-disk/kumori-disk/cryptox"
	"github.com/kumori-disk/kumori-disk/file"
	"github.com/kumori-disk/kumori-disk/github"
	"github.com/kumori-disk/kumori-disk/jwt"
	"github.com/kumori-disk/kumori-disk/mail"
	"github.com/kumori-disk/kumori-disk/payment"
	"github.com/kumori-disk/kumori-disk/stores/gorm"
	"github.com/kumori-disk/kumori-disk/tx"
	"github.com/kumori-disk/kumori-disk/web"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := run(context.Background(), logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	db, err := gormdb.Open(postgres.Open(cfg.DatabaseDSN()), &gormdb.Config{})
	if err != nil {
		return err
	}
	if err := gorm.AutoMigrate(db); err != nil {
		return err
	}
	if err := gorm.EnsureProvider(ctx, db, kd.ProviderGithub); err != nil {
		return err
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return err
	}
	tokenCache := cache.NewRedisCache(redisClient)

	users := gorm.NewUserStore(db)
	links := gorm.NewProviderLinkStore(db)
	files := gorm.NewFileStore(db)
	plans := gorm.NewPaymentPlanStore(db)
	coordinator := tx.NewGormCoordinator(db)

	hasher := cryptox.NewBcryptHasher()
	issuer := jwt.NewIssuer(cfg.JWTSecret, cfg.JWTIssuer)
	confirmations := kd.NewConfirmationStore(tokenCache)

	var mailer kd.Mailer
	if cfg.MailConfigured() {
		mailer, err = mail.NewSMTPMailer(mail.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		})
		if err != nil {
			return err
		}
	} else {
		logger.Warn("no smtp relay configured, logging outbound mail")
		mailer = &mail.ConsoleMailer{Logger: logger}
	}

	githubClient := github.NewClient(cfg.GithubClientID, cfg.GithubClientSecret)
	githubClient.APIBaseURL = cfg.GithubAPIBaseURL
	githubClient.AuthBaseURL = cfg.GithubAuthBaseURL

	localAuth := auth.NewLocal(auth.LocalConfig{
		Users:         users,
		Confirmations: confirmations,
		Hasher:        hasher,
		Tokens:        issuer,
		Mailer:        mailer,
		Logger:        logger,
		AppProtocol:   cfg.AppProtocol,
		AppDomain:     cfg.AppDomain,
	})
	githubAuth := auth.NewGithub(auth.GithubConfig{
		Users:       users,
		Links:       links,
		Client:      githubClient,
		Tokens:      issuer,
		Hasher:      hasher,
		Mailer:      mailer,
		Tx:          coordinator,
		Logger:      logger,
		AppProtocol: cfg.AppProtocol,
		AppDomain:   cfg.AppDomain,
	})

	storage, err := file.NewS3Storage(ctx, file.S3Config{
		Region:          cfg.S3Region,
		Bucket:          cfg.S3Bucket,
		AccessKeyID:     cfg.S3AccessKeyID,
		SecretAccessKey: cfg.S3SecretAccessKey,
		BaseEndpoint:    cfg.S3BaseEndpoint,
	})
	if err != nil {
		return err
	}
	fileService := file.NewService(file.ServiceConfig{
		Files:   files,
		Users:   users,
		Storage: storage,
		Tx:      coordinator,
		Logger:  logger,
	})

	paypal, err := payment.NewPayPalClient(payment.PayPalConfig{
		Environment:  payment.Environment(cfg.PayPalEnv),
		ClientID:     cfg.PayPalClientID,
		ClientSecret: cfg.PayPalClientSecret,
		Cache:        tokenCache,
	})
	if err != nil {
		return err
	}

	server := web.NewServer(web.ServerConfig{
		Local:    localAuth,
		Github:   githubAuth,
		Users:    users,
		Files:    fileService,
		Plans:    plans,
		PayPal:   paypal,
		Sessions: web.NewSessionManager(cfg.SessionSecure),
		Logger:   logger,
	})

	logger.Info("listening", "addr", cfg.ListenAddr)
	return http.ListenAndServe(cfg.ListenAddr, server.Handler())
}
