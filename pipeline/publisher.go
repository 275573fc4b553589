package pipeline

import (
	"bytes"
	"context"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/Skryldev/photo-processor/core"
	apperrors "github.com/Skryldev/photo-processor/errors"
)

// TokenMetadataKey is the object metadata entry holding the download token.
const TokenMetadataKey = "firebaseStorageDownloadTokens"

// Publisher uploads variants with long-lived cache headers and a fresh
// download token, and returns the tokenized public URL.
type Publisher struct {
	objects      core.ObjectStore
	baseURL      string
	cacheControl string
	newToken     func() string
}

// NewPublisher creates a Publisher. baseURL may contain {bucket}.
func NewPublisher(objects core.ObjectStore, baseURL, cacheControl string) *Publisher {
	return &Publisher{
		objects:      objects,
		baseURL:      baseURL,
		cacheControl: cacheControl,
		newToken:     uuid.NewString,
	}
}

// Publish overwrites any object at path; the previous token stops appearing
// in new URLs.
func (p *Publisher) Publish(ctx context.Context, bucket, path string, data []byte, contentType string) (string, error) {
	token := p.newToken()
	err := p.objects.Put(ctx, core.StorageKey{Bucket: bucket, Path: path}, bytes.NewReader(data), core.PutOptions{
		ContentType:  contentType,
		CacheControl: p.cacheControl,
		Metadata:     map[string]string{TokenMetadataKey: token},
	})
	if err != nil {
		return "", apperrors.Wrap(apperrors.CategoryTransfer, "publish", err)
	}
	return PublicURL(p.baseURL, bucket, path, token), nil
}

// PublicURL returns {base}/o/{escaped path}?alt=media&token={token}.
func PublicURL(baseURL, bucket, path, token string) string {
	base := strings.TrimRight(strings.ReplaceAll(baseURL, "{bucket}", bucket), "/")
	return base + "/o/" + url.PathEscape(path) + "?alt=media&token=" + url.QueryEscape(token)
}
