package core_test

import (
	"testing"

	"github.com/Skryldev/photo-processor/core"
)

func TestParseUploadPath(t *testing.T) {
	tests := []struct {
		path   string
		want   core.UploadRef
		wantOK bool
	}{
		{"uploads/u1/p1/original", core.UploadRef{OwnerID: "u1", PhotoID: "p1"}, true},
		{"uploads/owner-42/photo_9/original", core.UploadRef{OwnerID: "owner-42", PhotoID: "photo_9"}, true},
		{"random/file.png", core.UploadRef{}, false},
		{"uploads/u1/p1/thumb", core.UploadRef{}, false},
		{"uploads/u1/p1/original/x", core.UploadRef{}, false},
		{"uploads/u1/original", core.UploadRef{}, false},
		{"uploads//p1/original", core.UploadRef{}, false},
		{"uploads/u1//original", core.UploadRef{}, false},
		{"/uploads/u1/p1/original", core.UploadRef{}, false},
		{"public/parks/x/photos/p1/sm.jpg", core.UploadRef{}, false},
		{"", core.UploadRef{}, false},
	}
	for _, tt := range tests {
		got, ok := core.ParseUploadPath(tt.path)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("ParseUploadPath(%q) = %+v, %v; want %+v, %v", tt.path, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestVariantPath(t *testing.T) {
	got := core.VariantPath("yosemite", "p1", "md", core.FormatWebP)
	if want := "public/parks/yosemite/photos/p1/md.webp"; got != want {
		t.Errorf("VariantPath = %q, want %q", got, want)
	}
	if got := core.VariantPath("y", "p", "sm", core.FormatJPEG); got != "public/parks/y/photos/p/sm.jpg" {
		t.Errorf("VariantPath jpeg = %q", got)
	}
}
