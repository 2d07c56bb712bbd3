package resume

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"

	"resumetailor-hq/tailor/pkg/objectstore"
	"resumetailor-hq/tailor/pkg/quota"
)

const pdfContentType = "application/pdf"

var pdfMagic = []byte("%PDF-")

func (s *Service) validateDocument(file []byte) error {
	switch {
	case len(file) == 0:
		return invalidf("file is empty")
	case int64(len(file)) > s.opts.MaxUploadBytes:
		return invalidf("file is larger than %d bytes", s.opts.MaxUploadBytes)
	case !bytes.HasPrefix(file, pdfMagic):
		return invalidf("file is not a PDF document")
	}
	return nil
}

func (s *Service) putPDF(ctx context.Context, key string, file []byte) error {
	err := s.objects.Put(ctx, key, file, objectstore.PutOptions{
		ContentType:        pdfContentType,
		ContentDisposition: objectstore.InlinePDF(key),
	})
	if err != nil {
		return fmt.Errorf("resume: store %s: %w", key, err)
	}
	return nil
}

func (s *Service) presign(ctx context.Context, key string) (string, error) {
	url, err := s.objects.PresignGet(ctx, key, s.opts.PresignTTL, pdfContentType, objectstore.InlinePDF(key))
	if errors.Is(err, objectstore.ErrNotFound) {
		return "", fmt.Errorf("%w: document %s", ErrNotFound, key)
	}
	if err != nil {
		return "", fmt.Errorf("resume: presign %s: %w", key, err)
	}
	return url, nil
}

// UploadGuest stores an anonymous upload and returns its key.
func (s *Service) UploadGuest(ctx context.Context, file []byte) (string, error) {
	if err := s.validateDocument(file); err != nil {
		return "", err
	}
	key := objectstore.GuestKey(s.newID())
	if err := s.putPDF(ctx, key, file); err != nil {
		return "", err
	}
	s.logger.InfoContext(ctx, "guest resume uploaded", "key", key, "bytes", len(file))
	return key, nil
}

// UploadUser stores a signed-in user's upload and returns its key.
func (s *Service) UploadUser(ctx context.Context, id quota.Identity, file []byte) (string, error) {
	sub, err := userSubject(id)
	if err != nil {
		return "", err
	}
	if err := s.validateDocument(file); err != nil {
		return "", err
	}
	key := objectstore.UploadKey(sub, s.newID())
	if err := s.putPDF(ctx, key, file); err != nil {
		return "", err
	}
	s.logger.InfoContext(ctx, "resume uploaded", "key", key, "bytes", len(file))
	return key, nil
}

// TailoredFile is one saved tailored resume.
type TailoredFile struct {
	Name string `json:"name"`
	Key  string `json:"key"`
	URL  string `json:"url"`
}

// ListTailored returns the user's tailored resumes with download links.
func (s *Service) ListTailored(ctx context.Context, id quota.Identity) ([]TailoredFile, error) {
	sub, err := userSubject(id)
	if err != nil {
		return nil, err
	}
	keys, err := s.objects.List(ctx, objectstore.TailoredPrefixFor(sub))
	if err != nil {
		return nil, fmt.Errorf("resume: list tailored: %w", err)
	}
	files := make([]TailoredFile, 0, len(keys))
	for _, key := range keys {
		url, err := s.presign(ctx, key)
		if err != nil {
			return nil, err
		}
		files = append(files, TailoredFile{Name: path.Base(key), Key: key, URL: url})
	}
	return files, nil
}

var tailoredName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,99}$`)

// SaveTailored stores a rendered tailored resume under name and returns
// its key. An existing file with the same name is replaced.
func (s *Service) SaveTailored(ctx context.Context, id quota.Identity, name string, file []byte) (string, error) {
	sub, err := userSubject(id)
	if err != nil {
		return "", err
	}
	name = strings.TrimSuffix(strings.TrimSpace(name), ".pdf")
	if !tailoredName.MatchString(name) {
		return "", invalidf("name must be 1-100 letters, digits, dots, dashes or underscores")
	}
	if err := s.validateDocument(file); err != nil {
		return "", err
	}
	key := objectstore.TailoredKey(sub, name)
	if err := s.putPDF(ctx, key, file); err != nil {
		return "", err
	}
	return key, nil
}

// checkOwner allows guests to use guest uploads only, and users to use
// guest uploads and their own documents.
func checkOwner(id quota.Identity, key string) error {
	if err := objectstore.ValidateKey(key); err != nil {
		return invalidf("%v", err)
	}
	if strings.HasPrefix(key, objectstore.GuestPrefix) {
		return nil
	}
	if id.Tier == quota.TierUser && objectstore.OwnerOf(key) == id.ID {
		return nil
	}
	return ErrForbidden
}
