package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v2"
)

// Load builds a Config from Default(), an optional YAML file and PHOTO_*
// environment overrides, then validates it.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(c *Config) error {
	setString(&c.LogLevel, "PHOTO_LOG_LEVEL")
	setString(&c.PublicBaseURL, "PHOTO_PUBLIC_BASE_URL")
	setString((*string)(&c.Storage), "PHOTO_STORAGE")
	setString(&c.Local.RootDir, "PHOTO_LOCAL_ROOT")
	setString(&c.S3.Region, "AWS_REGION")
	setString(&c.S3.Endpoint, "PHOTO_S3_ENDPOINT")
	setString(&c.S3.AccessKeyID, "AWS_ACCESS_KEY_ID")
	setString(&c.S3.SecretAccessKey, "AWS_SECRET_ACCESS_KEY")
	setString((*string)(&c.Records), "PHOTO_RECORDS")
	setString(&c.Postgres.DSN, "DATABASE_URL")
	setString((*string)(&c.Trigger.Mode), "PHOTO_TRIGGER")
	setString(&c.Trigger.HTTPAddr, "PHOTO_HTTP_ADDR")
	setString(&c.Trigger.Kafka.Topic, "PHOTO_KAFKA_TOPIC")
	setString(&c.Trigger.Redis.Addr, "PHOTO_REDIS_ADDR")
	setString(&c.Trigger.Redis.Consumer, "PHOTO_REDIS_CONSUMER")
	setString(&c.Sentry.DSN, "SENTRY_DSN")
	setString(&c.Sentry.Environment, "SENTRY_ENVIRONMENT")
	if v := os.Getenv("PHOTO_KAFKA_BROKERS"); v != "" {
		c.Trigger.Kafka.Brokers = strings.Split(v, ",")
	}

	ints := map[string]*int{
		"PHOTO_WORKER_COUNT":       &c.WorkerCount,
		"PHOTO_ENCODE_WORKERS":     &c.EncodeWorkers,
		"PHOTO_UPLOAD_CONCURRENCY": &c.UploadConcurrency,
	}
	for key, dst := range ints {
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: %s: %w", key, err)
		}
		*dst = n
	}
	if v := os.Getenv("PHOTO_S3_PATH_STYLE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: PHOTO_S3_PATH_STYLE: %w", err)
		}
		c.S3.UsePathStyle = b
	}
	return nil
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}
