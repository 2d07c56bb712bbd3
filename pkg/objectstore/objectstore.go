// Package objectstore stores uploaded and generated resume documents.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"
)

// ErrNotFound is returned when no object exists under a key.
var ErrNotFound = errors.New("objectstore: object not found")

// PutOptions carries object metadata.
type PutOptions struct {
	ContentType        string
	ContentDisposition string
}

// Store is the object storage used by the resume service.
type Store interface {
	Put(ctx context.Context, key string, data []byte, opts PutOptions) error
	Get(ctx context.Context, key string) ([]byte, error)
	// PresignGet returns a time-limited download URL. contentType and
	// disposition override the response headers when non-empty.
	PresignGet(ctx context.Context, key string, ttl time.Duration, contentType, disposition string) (string, error)
	List(ctx context.Context, prefix string) ([]string, error)
	Bucket() string
}

// Key layout.
const (
	GuestPrefix    = "guest/"
	UploadsPrefix  = "users/uploads/"
	MasterPrefix   = "users/master/"
	TailoredPrefix = "users/tailored/"
)

// GuestKey returns the key of an anonymous upload.
func GuestKey(id string) string { return GuestPrefix + id + ".pdf" }

// UploadKey returns the key of a signed-in user's upload.
func UploadKey(sub, id string) string { return UploadsPrefix + sub + "/" + id + ".pdf" }

// MasterKey returns the key of a user's master resume.
func MasterKey(sub string) string { return MasterPrefix + sub + ".pdf" }

// TailoredPrefixFor returns the listing prefix of a user's tailored resumes.
func TailoredPrefixFor(sub string) string { return TailoredPrefix + sub + "/" }

// TailoredKey returns the key of a named tailored resume.
func TailoredKey(sub, name string) string { return TailoredPrefixFor(sub) + name + ".pdf" }

// OwnerOf extracts the user subject from an upload, tailored or master key. Guest
// keys and unknown layouts return "".
func OwnerOf(key string) string {
	switch {
	case strings.HasPrefix(key, UploadsPrefix), strings.HasPrefix(key, TailoredPrefix):
		rest := strings.TrimPrefix(strings.TrimPrefix(key, UploadsPrefix), TailoredPrefix)
		if i := strings.IndexByte(rest, '/'); i > 0 {
			return rest[:i]
		}
	case strings.HasPrefix(key, MasterPrefix):
		return strings.TrimSuffix(strings.TrimPrefix(key, MasterPrefix), ".pdf")
	}
	return ""
}

// InlinePDF is the Content-Disposition used when presigning documents for
// in-browser viewing.
func InlinePDF(key string) string {
	return fmt.Sprintf("inline; filename=%q", path.Base(key))
}

// ValidateKey rejects keys that are empty, absolute or escape their prefix.
func ValidateKey(key string) error {
	if key == "" {
		return errors.New("objectstore: empty key")
	}
	if strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return fmt.Errorf("objectstore: invalid key %q", key)
	}
	for _, part := range strings.Split(key, "/") {
		if part == ".." || part == "." {
			return fmt.Errorf("objectstore: invalid key %q", key)
		}
	}
	return nil
}
