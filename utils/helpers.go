package utils

import (
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// DetectFormat sniffs data and returns its MIME type without parameters.
func DetectFormat(data []byte) string {
	return mimetype.Detect(data).String()
}

// IsHEIC reports whether a MIME type (hint or sniffed) names HEIC/HEIF,
// including vendor variants such as image/x-heic.
func IsHEIC(mime string) bool {
	mime = strings.ToLower(mime)
	return strings.Contains(mime, "heic") || strings.Contains(mime, "heif")
}

// IsStandardRaster reports whether the registered Go decoders handle mime.
func IsStandardRaster(mime string) bool {
	switch mime {
	case "image/jpeg", "image/png", "image/gif", "image/webp", "image/bmp", "image/tiff":
		return true
	}
	return false
}

// FitWidth scales (srcW, srcH) down to at most maxW wide, preserving aspect
// ratio. Images already within maxW are returned unchanged.
func FitWidth(srcW, srcH, maxW int) (int, int) {
	if maxW <= 0 || srcW <= maxW {
		return srcW, srcH
	}
	h := int(float64(srcH)*float64(maxW)/float64(srcW) + 0.5)
	if h < 1 {
		h = 1
	}
	return maxW, h
}

// CloneBytes returns a copy of b (safe for use after the source buffer is released).
func CloneBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
