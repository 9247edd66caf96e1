package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/config"
	"live-quiz-service/internal/infra/memory"
	"live-quiz-service/internal/infra/postgres"
	"live-quiz-service/internal/infra/qrcode"
	redisstore "live-quiz-service/internal/infra/redis"
	transport "live-quiz-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := cfg.Logger()

	store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}

	service := app.NewQuizService(store, app.Options{
		PublicHost:             cfg.Server.PublicHost,
		DefaultTimePerQuestion: cfg.Quiz.DefaultTimePerQuestion,
		QR:                     qrcode.NewGenerator(qrcode.DefaultSize),
		Logger:                 log,
	})

	accessLog := log.Writer()
	defer accessLog.Close()

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      transport.WithAccessLog(accessLog, transport.NewRouter(service, log)),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.WithFields(logrus.Fields{"port": finalPort, "store": cfg.Store.Driver}).Info("starting quiz service")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	select {
	case err := <-serveErr:
		log.WithError(err).Error("failed to start server")
		return errors.Wrap(err, "serve http")
	case <-stop:
		log.Info("shutting down server...")
	case <-ctx.Done():
		log.Info("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// openStore builds the entity store selected by store.driver. The returned func
// releases its connections.
func openStore(ctx context.Context, cfg config.Config, log logrus.FieldLogger) (app.Store, func(), error) {
	switch cfg.Store.Driver {
	case config.DriverRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, errors.Wrap(err, "ping redis")
		}
		return redisstore.NewStore(client), func() { _ = client.Close() }, nil

	case config.DriverPostgres:
		if err := RunMigrations(ctx, cfg.Postgres.URL, log); err != nil {
			return nil, nil, err
		}
		pool, err := postgres.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, nil, err
		}
		return postgres.NewStore(pool), pool.Close, nil

	default:
		return memory.NewStore(), func() {}, nil
	}
}
