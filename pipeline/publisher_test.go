package pipeline_test

import (
	"context"
	"errors"
	"io"
	"net/url"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/Skryldev/photo-processor/adapters/storage"
	"github.com/Skryldev/photo-processor/core"
	apperrors "github.com/Skryldev/photo-processor/errors"
	"github.com/Skryldev/photo-processor/pipeline"
)

const defaultBase = "https://firebasestorage.googleapis.com/v0/b/{bucket}"

func TestPublicURL(t *testing.T) {
	got := pipeline.PublicURL(defaultBase, "demo", "public/parks/p1/photos/ph1/sm.webp", "tok")
	want := "https://firebasestorage.googleapis.com/v0/b/demo/o/public%2Fparks%2Fp1%2Fphotos%2Fph1%2Fsm.webp?alt=media&token=tok"
	if got != want {
		t.Errorf("PublicURL =\n  %s\nwant\n  %s", got, want)
	}
}

func TestPublicURL_TrailingSlashAndEscaping(t *testing.T) {
	got := pipeline.PublicURL("http://localhost:9199/v0/b/{bucket}/", "b", "a b/c.jpg", "x+y")
	want := "http://localhost:9199/v0/b/b/o/a%20b%2Fc.jpg?alt=media&token=x%2By"
	if got != want {
		t.Errorf("PublicURL = %s, want %s", got, want)
	}
}

func TestPublish_WritesAttributesAndToken(t *testing.T) {
	local, err := storage.NewLocal(t.TempDir(), 0)
	if err != nil {
		t.Fatal(err)
	}
	pub := pipeline.NewPublisher(local, defaultBase, "public, max-age=31536000, immutable")
	path := "public/parks/p1/photos/ph1/md.jpg"

	u, err := pub.Publish(context.Background(), "demo", path, []byte("jpeg-bytes"), "image/jpeg")
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}

	attrs, err := local.Stat(context.Background(), core.StorageKey{Bucket: "demo", Path: path})
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if attrs.ContentType != "image/jpeg" {
		t.Errorf("content type = %q", attrs.ContentType)
	}
	if attrs.CacheControl != "public, max-age=31536000, immutable" {
		t.Errorf("cache control = %q", attrs.CacheControl)
	}
	token := attrs.Metadata[pipeline.TokenMetadataKey]
	if _, err := uuid.Parse(token); err != nil {
		t.Errorf("token %q is not a uuid: %v", token, err)
	}

	parsed, err := url.Parse(u)
	if err != nil {
		t.Fatalf("url.Parse: %v", err)
	}
	if parsed.Query().Get("token") != token || parsed.Query().Get("alt") != "media" {
		t.Errorf("query = %s", parsed.RawQuery)
	}
	if !strings.HasSuffix(parsed.EscapedPath(), "/o/"+url.PathEscape(path)) {
		t.Errorf("path = %s", parsed.EscapedPath())
	}
}

func TestPublish_OverwriteRotatesToken(t *testing.T) {
	local, err := storage.NewLocal(t.TempDir(), 0)
	if err != nil {
		t.Fatal(err)
	}
	pub := pipeline.NewPublisher(local, defaultBase, "")
	path := "public/parks/p1/photos/ph1/lg.webp"

	first, err := pub.Publish(context.Background(), "demo", path, []byte("one"), "image/webp")
	if err != nil {
		t.Fatal(err)
	}
	second, err := pub.Publish(context.Background(), "demo", path, []byte("two"), "image/webp")
	if err != nil {
		t.Fatal(err)
	}
	if first == second {
		t.Error("republish reused the previous token")
	}
}

var errQuota = errors.New("quota exceeded")

type putFails struct{ core.ObjectStore }

func (putFails) Put(context.Context, core.StorageKey, io.Reader, core.PutOptions) error {
	return errQuota
}

func TestPublish_UploadFailure(t *testing.T) {
	pub := pipeline.NewPublisher(putFails{}, defaultBase, "")
	u, err := pub.Publish(context.Background(), "demo", "public/x.jpg", []byte("x"), "image/jpeg")
	if err == nil {
		t.Fatal("expected error")
	}
	if u != "" {
		t.Errorf("url = %q on failure", u)
	}
	if !apperrors.IsCategory(err, apperrors.CategoryTransfer) || !errors.Is(err, errQuota) {
		t.Errorf("err = %v", err)
	}
}
