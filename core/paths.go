package core

import (
	"fmt"
	"strings"
)

const (
	uploadsPrefix  = "uploads/"
	originalObject = "original"
)

// ParseUploadPath extracts owner and photo identifiers from
// uploads/{ownerId}/{photoId}/original. Anything else reports false.
func ParseUploadPath(objectPath string) (UploadRef, bool) {
	rest, ok := strings.CutPrefix(objectPath, uploadsPrefix)
	if !ok {
		return UploadRef{}, false
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 3 || parts[2] != originalObject {
		return UploadRef{}, false
	}
	if parts[0] == "" || parts[1] == "" {
		return UploadRef{}, false
	}
	return UploadRef{OwnerID: parts[0], PhotoID: parts[1]}, true
}

// VariantPath returns public/parks/{parkId}/photos/{photoId}/{key}.{ext}.
func VariantPath(parkID, photoID, key string, f Format) string {
	return fmt.Sprintf("public/parks/%s/photos/%s/%s.%s", parkID, photoID, key, f)
}
