// Command photo-worker consumes upload triggers over HTTP push, Kafka or a
// Redis Stream and processes them.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/Skryldev/photo-processor/adapters/trigger"
	"github.com/Skryldev/photo-processor/config"
	"github.com/Skryldev/photo-processor/internal/app"
)

func main() {
	configPath := flag.String("config", os.Getenv("PHOTO_CONFIG"), "path to a YAML config file")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("godotenv: %v", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer a.Close()

	if err := run(ctx, a); err != nil {
		a.Logger.Error("worker.exit", "error", err.Error())
		a.Close()
		os.Exit(1)
	}
}

func run(ctx context.Context, a *app.App) error {
	cfg := a.Config
	switch cfg.Trigger.Mode {
	case config.TriggerKafka:
		return trigger.NewKafka(cfg.Trigger.Kafka, a.Processor, a.Logger).Run(ctx)

	case config.TriggerRedis:
		rc := redis.NewClient(&redis.Options{
			Addr:     cfg.Trigger.Redis.Addr,
			Password: cfg.Trigger.Redis.Password,
			DB:       cfg.Trigger.Redis.DB,
		})
		defer rc.Close()
		if err := rc.Ping(ctx).Err(); err != nil {
			return err
		}
		a.Processor.Start()
		defer a.Processor.Stop()
		return trigger.NewRedisStream(rc, cfg.Trigger.Redis, a.Processor, a.Logger).Run(ctx)

	default:
		return trigger.NewHTTP(a.Processor, a.Logger, a.Snapshot).Run(ctx, cfg.Trigger.HTTPAddr)
	}
}
