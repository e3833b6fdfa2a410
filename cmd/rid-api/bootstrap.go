package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BearBump/RIDBox/config"
	"github.com/BearBump/RIDBox/internal/broker/kafka"
	"github.com/BearBump/RIDBox/internal/cache/rediscache"
	"github.com/BearBump/RIDBox/internal/integrations/faa/faasource"
	"github.com/BearBump/RIDBox/internal/services/lookup"
	"github.com/BearBump/RIDBox/internal/services/resolver"
	"github.com/BearBump/RIDBox/internal/storage"
	"github.com/redis/go-redis/v9"
)

type ridAPIApp struct {
	ctx      context.Context
	cancel   context.CancelFunc
	opts     ridAPIOpts
	svc      *lookup.Service
	consumer *kafka.Consumer
	redis    *redis.Client
	closeDB  func()
}

func mustBootstrapRIDAPI() *ridAPIApp {
	cfgPath := os.Getenv("configPath")
	if cfgPath == "" {
		panic("configPath env var is required")
	}
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		panic(fmt.Sprintf("ошибка парсинга конфига, %v", err))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	app, err := bootstrapRIDAPI(ctx, cfg, os.Getenv("swaggerPath"))
	if err != nil {
		cancel()
		panic(err)
	}
	app.ctx = ctx
	app.cancel = cancel
	return app
}

func bootstrapRIDAPI(ctx context.Context, cfg *config.Config, swaggerPath string) (*ridAPIApp, error) {
	httpAddr := cfg.RIDBox.HTTPAddr
	if httpAddr == "" {
		httpAddr = ":8080"
	}
	consumerGroup := cfg.RIDBox.KafkaConsumerGroup
	if consumerGroup == "" {
		consumerGroup = "rid-api"
	}
	topic := cfg.Kafka.SerialsSyncedTopicName
	if topic == "" {
		topic = kafka.DefaultSerialsSyncedTopic
	}
	cacheTTL := time.Duration(cfg.RIDBox.LookupCacheTTLSeconds) * time.Second
	if cacheTTL <= 0 {
		cacheTTL = 10 * time.Minute
	}

	// лукапы без базы бессмысленны: sqlite должен быть уже собран build'ом
	st, err := storage.OpenWithRetry(ctx, cfg, storage.MustExist, 60*time.Second)
	if err != nil {
		return nil, err
	}

	app := &ridAPIApp{
		opts: ridAPIOpts{
			httpAddr:      httpAddr,
			swaggerPath:   swaggerPath,
			topic:         topic,
			consumerGroup: consumerGroup,
		},
		closeDB: st.Close,
	}

	res := resolver.New(st, faasource.FromConfig(cfg))
	if addr := cfg.RedisAddr(); addr != "" {
		app.redis = rediscache.NewClient(rediscache.Options{
			Addr:     addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		rc := rediscache.New(app.redis, cfg.Redis.KeyPrefix)
		app.svc = lookup.New(res, st, rc, cacheTTL).
			WithFallbackLimit(rediscache.NewRateLimiter(app.redis), int64(cfg.RIDBox.FallbackRateLimitPerMinute))
	} else {
		app.svc = lookup.New(res, st, nil, 0)
	}

	if brokers := cfg.KafkaBrokers(); brokers != nil && app.redis != nil {
		app.consumer = kafka.NewConsumer(brokers, topic, consumerGroup)
	}
	return app, nil
}

func (a *ridAPIApp) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	if a.consumer != nil {
		_ = a.consumer.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.closeDB != nil {
		a.closeDB()
	}
}

func (a *ridAPIApp) Run() error {
	var consumer syncedConsumer
	if a.consumer != nil {
		consumer = a.consumer
	}
	return runRIDAPI(a.ctx, a.opts, a.svc, consumer)
}
