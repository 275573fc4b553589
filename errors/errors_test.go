package errors_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	apperrors "github.com/Skryldev/photo-processor/errors"
)

func TestCategory(t *testing.T) {
	err := fmt.Errorf("outer: %w", apperrors.New(apperrors.CategoryTransfer, "publish", apperrors.ErrObjectNotFound))
	if !apperrors.IsCategory(err, apperrors.CategoryTransfer) {
		t.Error("IsCategory(transfer) = false")
	}
	if apperrors.CategoryOf(err) != apperrors.CategoryTransfer {
		t.Errorf("CategoryOf = %s", apperrors.CategoryOf(err))
	}
	if !errors.Is(err, apperrors.ErrObjectNotFound) {
		t.Error("sentinel lost through wrapping")
	}
	if apperrors.CategoryOf(errors.New("plain")) != apperrors.CategoryPipeline {
		t.Error("unclassified errors should report pipeline")
	}
}

func TestWrapNil(t *testing.T) {
	if apperrors.Wrap(apperrors.CategoryCommit, "op", nil) != nil {
		t.Error("Wrap(nil) != nil")
	}
}

func TestErrorString(t *testing.T) {
	err := apperrors.New(apperrors.CategoryDecode, "codec.decode", errors.New("bad header"))
	if got, want := err.Error(), "[decode] codec.decode: bad header"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestMessage(t *testing.T) {
	if apperrors.Message(nil, 10) != "" {
		t.Error("Message(nil) not empty")
	}
	if got := apperrors.Message(errors.New("short"), 10); got != "short" {
		t.Errorf("short = %q", got)
	}
	if got := apperrors.Message(errors.New("abcdefghij"), 4); got != "abcd" {
		t.Errorf("ascii = %q", got)
	}
	long := apperrors.Message(errors.New(strings.Repeat("日本", 400)), 500)
	if utf8.RuneCountInString(long) != 500 || !utf8.ValidString(long) {
		t.Errorf("multibyte truncation: %d runes, valid=%v", utf8.RuneCountInString(long), utf8.ValidString(long))
	}
	if got := apperrors.Message(errors.New("unbounded"), 0); got != "unbounded" {
		t.Errorf("max=0 = %q", got)
	}
}
