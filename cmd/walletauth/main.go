package main

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/golang-jwt/jwt/v5"
	"github.com/layer-3/walletauth/adapters/events"
	"github.com/layer-3/walletauth/adapters/store"
	"github.com/layer-3/walletauth/adapters/tokenizer"
	"github.com/layer-3/walletauth/internal/clock"
	"github.com/layer-3/walletauth/internal/config"
	"github.com/layer-3/walletauth/internal/logging"
	"github.com/layer-3/walletauth/internal/metrics"
	"github.com/layer-3/walletauth/ports"
	"github.com/layer-3/walletauth/service"
	httptransport "github.com/layer-3/walletauth/transport/http"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// rateLimiterIdle is how long a quiet client keeps its rate limiter state
const rateLimiterIdle = 10 * time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Fatal("walletauth stopped")
	}
}

type backend struct {
	challenges ports.ChallengeStore
	tokens     ports.TokenStore
	publisher  message.Publisher
	close      func() error
}

func run(cfg config.Config, logger *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	signKey, err := loadSigningKey(cfg.SigningKeyFile)
	if err != nil {
		return err
	}
	if cfg.SigningKeyFile == "" {
		logger.Warn("no signing key configured, sessions will not survive a restart")
	}

	clk := clock.Real()

	b, err := newBackend(ctx, cfg, clk)
	if err != nil {
		return err
	}
	defer func() {
		if err := b.close(); err != nil {
			logger.WithError(err).Warn("failed to close backend")
		}
	}()

	challenger := service.NewChallenger(b.challenges, cfg.AppName,
		service.WithChallengeTTL(cfg.ChallengeTTL),
		service.WithClock(clk),
		service.WithLogger(logger.WithField("component", "challenger")),
	)

	authService := service.NewAuthService(
		challenger,
		tokenizer.NewJWTTokenizer(signKey, clk),
		b.tokens,
		events.NewWatermillPublisher(b.publisher),
		service.AuthConfig{
			AccessTTL:  cfg.AccessTTL,
			RefreshTTL: cfg.RefreshTTL,
			Clock:      clk,
			Logger:     logger.WithField("component", "auth"),
		},
	)

	limiter := httptransport.NewRateLimiter(cfg.RateLimit, cfg.RateBurst, rateLimiterIdle, clk)

	if err := metrics.RegisterActiveChallenges(func() int {
		return challenger.ActiveChallengeCount(context.Background())
	}); err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	sweeper := service.NewSweeper(cfg.SweepInterval, logger.WithField("component", "sweeper"))
	for name, sweep := range map[string]service.SweepFunc{
		"challenges":   b.challenges.SweepExpired,
		"tokens":       b.tokens.SweepExpired,
		"rate_limiter": limiter.SweepExpired,
	} {
		if err := sweeper.Add(name, sweep); err != nil {
			return err
		}
	}
	sweeper.Start()

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httptransport.SetupRouter(challenger, authService, limiter, logger.WithField("component", "http")),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.WithFields(logrus.Fields{"addr": cfg.HTTPAddr, "store": cfg.Store}).Info("walletauth listening")
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("http shutdown incomplete")
	}
	if err := sweeper.Stop(shutdownCtx); err != nil {
		logger.WithError(err).Warn("sweeper shutdown incomplete")
	}

	return nil
}

func newBackend(ctx context.Context, cfg config.Config, clk clock.Clock) (*backend, error) {
	wmLogger := watermill.NewStdLogger(false, false)

	if cfg.Store == config.StoreMemory {
		pubSub := gochannel.NewGoChannel(gochannel.Config{}, wmLogger)
		return &backend{
			challenges: store.NewMemoryChallengeStore(clk),
			tokens:     store.NewMemoryStore(clk),
			publisher:  pubSub,
			close:      pubSub.Close,
		}, nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	redisClient := redis.NewClient(opts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		redisClient.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	publisher, err := redisstream.NewPublisher(
		redisstream.PublisherConfig{
			Client: redisClient,
		},
		wmLogger,
	)
	if err != nil {
		redisClient.Close()
		return nil, fmt.Errorf("failed to create Redis publisher: %w", err)
	}

	return &backend{
		challenges: store.NewRedisChallengeStore(redisClient, clk),
		tokens:     store.NewRedisStore(redisClient),
		publisher:  publisher,
		close: func() error {
			return errors.Join(publisher.Close(), redisClient.Close())
		},
	}, nil
}

// loadSigningKey reads a PEM encoded P-256 key, or generates an ephemeral
// one when path is empty.
func loadSigningKey(path string) (*ecdsa.PrivateKey, error) {
	if path == "" {
		return ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	}

	pemBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read signing key: %w", err)
	}

	key, err := jwt.ParseECPrivateKeyFromPEM(pemBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse signing key: %w", err)
	}

	return key, nil
}
