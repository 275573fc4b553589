// Package trigger delivers upload events to the processor from HTTP push,
// Kafka and Redis Streams.
package trigger

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/Skryldev/photo-processor/core"
	apperrors "github.com/Skryldev/photo-processor/errors"
)

// Handler processes one trigger synchronously.
type Handler interface {
	Handle(ctx context.Context, trig core.Trigger) (core.Result, error)
}

// Submitter enqueues triggers on a worker pool.
type Submitter interface {
	Submit(job core.Job) error
}

// notification accepts both the native trigger shape and a storage
// object-finalize notification, which names the object "name".
type notification struct {
	Bucket      string `json:"bucket"`
	ObjectPath  string `json:"objectPath"`
	Name        string `json:"name"`
	ContentType string `json:"contentType"`

	// Pub/Sub push envelope.
	Message *struct {
		Data string `json:"data"`
	} `json:"message"`
}

// DecodeTrigger parses a trigger payload. Pub/Sub push envelopes are
// unwrapped once.
func DecodeTrigger(raw []byte) (core.Trigger, error) {
	var n notification
	if err := json.Unmarshal(raw, &n); err != nil {
		return core.Trigger{}, apperrors.New(apperrors.CategoryTrigger, "decode", err)
	}
	if n.Message != nil && n.Message.Data != "" {
		inner, err := base64.StdEncoding.DecodeString(n.Message.Data)
		if err != nil {
			return core.Trigger{}, apperrors.New(apperrors.CategoryTrigger, "decode.envelope", err)
		}
		if err := json.Unmarshal(inner, &n); err != nil {
			return core.Trigger{}, apperrors.New(apperrors.CategoryTrigger, "decode.envelope", err)
		}
	}

	path := n.ObjectPath
	if path == "" {
		path = n.Name
	}
	if n.Bucket == "" || path == "" {
		return core.Trigger{}, apperrors.New(apperrors.CategoryTrigger, "decode",
			fmt.Errorf("%w: bucket and object path are required", apperrors.ErrMalformedTrigger))
	}
	return core.Trigger{Bucket: n.Bucket, ObjectPath: path, ContentType: n.ContentType}, nil
}
