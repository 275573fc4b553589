// Command photo-lambda processes S3 ObjectCreated events on AWS Lambda.
package main

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/joho/godotenv"

	"github.com/Skryldev/photo-processor/config"
	"github.com/Skryldev/photo-processor/core"
	"github.com/Skryldev/photo-processor/internal/app"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("PHOTO_CONFIG"))
	if err != nil {
		log.Fatal(err)
	}
	a, err := app.New(context.Background(), cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer a.Close()

	lambda.Start(handler(a))
}

// handler returns an error only when an outcome could not be recorded, so
// Lambda's async retry redelivers the event.
func handler(a *app.App) func(context.Context, events.S3Event) error {
	return func(ctx context.Context, ev events.S3Event) error {
		for _, rec := range ev.Records {
			// Event keys are form-encoded.
			key, err := url.QueryUnescape(rec.S3.Object.Key)
			if err != nil {
				a.Logger.Warn("lambda.key.invalid", "key", rec.S3.Object.Key, "error", err.Error())
				continue
			}
			trig := core.Trigger{Bucket: rec.S3.Bucket.Name, ObjectPath: key}

			// S3 events carry no content type; take the hint from the object.
			if _, ok := core.ParseUploadPath(key); ok {
				attrs, err := a.Objects.Stat(ctx, core.StorageKey{Bucket: trig.Bucket, Path: key})
				if err == nil {
					trig.ContentType = attrs.ContentType
				}
			}

			if _, err := a.Processor.Handle(ctx, trig); err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
		}
		return nil
	}
}
