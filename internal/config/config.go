package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port string

	// persistence
	StoreDriver string // gorm | mongo
	DBDSN       string
	MongoURI    string
	MongoDB     string

	// contact sessions
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	SessionTTL    time.Duration

	// model backend
	ModelBackend  string // llama-server | llama-cli | openai
	LocalModelURL string
	LlamaBinary   string
	ModelPath     string
	OpenAIAPIKey  string
	OpenAIModel   string

	// model retry policy
	ModelRetryAttempts int
	ModelRetryTimeout  time.Duration
	ModelRetryBackoff  time.Duration

	ChatHistoryWindow int

	// notification sink
	N8NWebhookURL string
	RabbitURL     string
	RabbitQueue   string

	JWTSecret      string
	AllowedOrigins []string
}

func Load() Config {
	port := os.Getenv("PORT")
	if port == "" {
		port = "4000"
	}

	storeDriver := os.Getenv("STORE_DRIVER")
	if storeDriver == "" {
		storeDriver = "gorm"
	}

	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		dsn = "file:portfolio.db?cache=shared"
	}

	mongoDB := os.Getenv("MONGO_DB")
	if mongoDB == "" {
		mongoDB = "chatdb"
	}

	redisAddr := os.Getenv("REDIS_ADDR")

	redisDB := 0
	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			redisDB = n
		}
	}

	sessionTTL := 30 * time.Minute
	if v := os.Getenv("SESSION_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			sessionTTL = d
		}
	}

	backend := os.Getenv("MODEL_BACKEND")
	if backend == "" {
		backend = "llama-server"
	}

	localModelURL := os.Getenv("LOCAL_MODEL_URL")
	if localModelURL == "" {
		localModelURL = "http://localhost:8080"
	}

	openAIModel := os.Getenv("OPENAI_MODEL")

	retryAttempts := 3
	if v := os.Getenv("MODEL_RETRY_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			retryAttempts = n
		}
	}
	retryTimeout := 90 * time.Second
	if v := os.Getenv("MODEL_RETRY_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			retryTimeout = d
		}
	}
	retryBackoff := time.Duration(0)
	if v := os.Getenv("MODEL_RETRY_BACKOFF"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			retryBackoff = d
		}
	}

	historyWindow := 10
	if v := os.Getenv("CHAT_HISTORY_WINDOW"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			historyWindow = n
		}
	}

	rabbitQueue := os.Getenv("RABBIT_QUEUE")
	if rabbitQueue == "" {
		rabbitQueue = "portfolio_notifications"
	}

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		secret = "dev-secret-change-me"
	}

	origins := []string{
		"http://localhost:3000",
		"https://pfweb-nu.vercel.app",
	}
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		origins = origins[:0]
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
	}

	return Config{
		Port: port,

		StoreDriver: storeDriver,
		DBDSN:       dsn,
		MongoURI:    os.Getenv("MONGO_URI"),
		MongoDB:     mongoDB,

		RedisAddr:     redisAddr,
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       redisDB,
		SessionTTL:    sessionTTL,

		ModelBackend:  backend,
		LocalModelURL: localModelURL,
		LlamaBinary:   os.Getenv("LLAMA_BINARY"),
		ModelPath:     os.Getenv("MODEL_PATH"),
		OpenAIAPIKey:  os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:   openAIModel,

		ModelRetryAttempts: retryAttempts,
		ModelRetryTimeout:  retryTimeout,
		ModelRetryBackoff:  retryBackoff,

		ChatHistoryWindow: historyWindow,

		N8NWebhookURL: os.Getenv("N8N_WEBHOOK_URL"),
		RabbitURL:     os.Getenv("RABBIT_URL"),
		RabbitQueue:   rabbitQueue,

		JWTSecret:      secret,
		AllowedOrigins: origins,
	}
}
