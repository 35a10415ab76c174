package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/matrimonyai/backend/assistant"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, _ []string) error {
		config, err := setup()
		if err != nil {
			return err
		}
		defer logger.Sync()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return serve(ctx, config, viper.GetBool("in-memory"))
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "listen address (default :8080, PORT wins when set)")
	serveCmd.Flags().Bool("in-memory", false, "keep all data in memory instead of PostgreSQL")
	serveCmd.Flags().Bool("migrate", true, "apply the schema before serving")

	viper.BindPFlag("addr", serveCmd.Flags().Lookup("addr"))
	viper.BindPFlag("in-memory", serveCmd.Flags().Lookup("in-memory"))
	viper.BindPFlag("migrate", serveCmd.Flags().Lookup("migrate"))
}

// serve wires the configured integrations and runs until ctx is cancelled.
func serve(ctx context.Context, config *Config, inMemory bool) error {
	var (
		store Store
		deps  serverDeps
	)

	if inMemory {
		logger.Warn("using the in-memory store, data is lost on exit")
		store = newMemoryStore()
	} else {
		db, err := openDB(ctx, config.Database.URL)
		if err != nil {
			return err
		}
		defer db.Close()
		if viper.GetBool("migrate") {
			if err := migrate(ctx, db); err != nil {
				return err
			}
		}
		store = newPGStore(db)
	}

	if config.Redis.URL != "" {
		client, err := newRedisClient(ctx, config.Redis.URL)
		if err != nil {
			return err
		}
		defer client.Close()
		deps.limiterStorage = newRedisLimiterStorage(client, config.Redis.Prefix)
		logger.Info("rate limits stored in redis")
	}

	if config.AMQP.URL != "" {
		conn, err := amqp.Dial(config.AMQP.URL)
		if err != nil {
			return fmt.Errorf("connect to rabbitmq: %w", err)
		}
		defer conn.Close()
		emitter, err := NewEmitter(conn, config.AMQP.Exchange)
		if err != nil {
			return err
		}
		deps.publisher = emitter
	}

	if config.Gemini.APIKey != "" {
		gen, err := assistant.NewGeminiGenerator(ctx, config.Gemini.APIKey, config.Gemini.Model)
		if err != nil {
			return err
		}
		deps.generator = gen
		logger.Info("assistant replies generated by gemini", zap.String("model", gen.Model()))
	} else {
		logger.Info("no gemini api key, assistant uses scripted replies")
	}

	srv := &http.Server{
		Addr:              config.ListenAddr(),
		Handler:           newRouter(newServer(*config, store, deps)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting the matrimony backend", zap.String("addr", srv.Addr), zap.String("env", config.Env))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
