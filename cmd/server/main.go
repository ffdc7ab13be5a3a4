package main

import (
	"context"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/JoseManaure/portfolio-server/internal/ai"
	"github.com/JoseManaure/portfolio-server/internal/config"
	"github.com/JoseManaure/portfolio-server/internal/contact"
	"github.com/JoseManaure/portfolio-server/internal/dictionary"
	"github.com/JoseManaure/portfolio-server/internal/geo"
	"github.com/JoseManaure/portfolio-server/internal/httpapi"
	"github.com/JoseManaure/portfolio-server/internal/notify"
	"github.com/JoseManaure/portfolio-server/internal/relay"
	"github.com/JoseManaure/portfolio-server/internal/retry"
	"github.com/JoseManaure/portfolio-server/internal/session"
	"github.com/JoseManaure/portfolio-server/internal/store"
	"github.com/JoseManaure/portfolio-server/internal/store/gormstore"
	"github.com/JoseManaure/portfolio-server/internal/store/mongostore"
)

func main() {
	_ = godotenv.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()
	log := logger.Sugar()

	cfg := config.Load()

	st, err := openStore(cfg)
	if err != nil {
		log.Fatalw("store open failed", "driver", cfg.StoreDriver, "error", err)
	}
	defer st.Close(context.Background())

	sessions, err := openSessions(cfg)
	if err != nil {
		log.Fatalw("session store open failed", "error", err)
	}
	defer sessions.Close()

	notifier, err := buildNotifier(cfg, log)
	if err != nil {
		log.Fatalw("notifier setup failed", "error", err)
	}

	provider, err := buildProvider(cfg)
	if err != nil {
		log.Fatalw("model backend setup failed", "backend", cfg.ModelBackend, "error", err)
	}

	flow := contact.New(sessions, st, notifier, nil, log)
	engine := relay.NewEngine(provider, dictionary.New(nil), flow, st, notifier, log,
		relay.Options{HistoryWindow: cfg.ChatHistoryWindow})

	router := httpapi.NewRouter(engine, st, geo.NewClient(), cfg, log)

	log.Infow("server starting", "port", cfg.Port, "store", cfg.StoreDriver, "backend", cfg.ModelBackend)
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalw("server stopped", "error", err)
	}
}

func openStore(cfg config.Config) (store.Store, error) {
	switch cfg.StoreDriver {
	case "mongo":
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		ms, err := mongostore.Connect(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return nil, err
		}
		return ms, nil
	case "", "gorm":
		gs, err := gormstore.Open(cfg.DBDSN)
		if err != nil {
			return nil, err
		}
		return gs, nil
	default:
		return nil, fmt.Errorf("unsupported STORE_DRIVER=%q", cfg.StoreDriver)
	}
}

func openSessions(cfg config.Config) (session.Store, error) {
	if cfg.RedisAddr == "" {
		return session.NewMemoryStore(cfg.SessionTTL), nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	rs, err := session.NewRedisStore(client, cfg.SessionTTL)
	if err != nil {
		return nil, err
	}
	return rs, nil
}

func buildNotifier(cfg config.Config, log *zap.SugaredLogger) (notify.Notifier, error) {
	if cfg.RabbitURL != "" {
		pub, err := notify.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
		if err != nil {
			return nil, err
		}
		return pub, nil
	}
	if cfg.N8NWebhookURL != "" {
		return notify.NewWebhook(cfg.N8NWebhookURL), nil
	}
	log.Warnw("no notification sink configured, events will be dropped")
	return notify.Noop{}, nil
}

func buildProvider(cfg config.Config) (ai.Provider, error) {
	policy := retry.Policy{
		MaxAttempts:       cfg.ModelRetryAttempts,
		PerAttemptTimeout: cfg.ModelRetryTimeout,
		Backoff:           cfg.ModelRetryBackoff,
	}

	reg := ai.NewRegistry()
	reg.Register("llama-server", func() (ai.Provider, error) {
		return ai.NewLlamaServerProvider(cfg.LocalModelURL, policy), nil
	})
	reg.Register("llama-cli", func() (ai.Provider, error) {
		if cfg.LlamaBinary == "" || cfg.ModelPath == "" {
			return nil, fmt.Errorf("llama-cli backend requires LLAMA_BINARY and MODEL_PATH")
		}
		return ai.NewLlamaCLIProvider(cfg.LlamaBinary, cfg.ModelPath), nil
	})
	reg.Register("openai", func() (ai.Provider, error) {
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("openai backend requires OPENAI_API_KEY")
		}
		return ai.NewOpenAIProvider(cfg.OpenAIAPIKey, cfg.OpenAIModel), nil
	})

	return reg.Get(cfg.ModelBackend)
}
