package maintenance

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// ErrStorageDisabled is returned by fix-image-urls without object storage
var ErrStorageDisabled = errors.New("maintenance: object storage is not configured")

// FixImageURLs moves relative, legacy-host and plain http image URLs of
// restaurants and products onto the object storage public URL. With
// uploadDir set, the matching local file is uploaded first and rows whose
// file is missing are reported and left untouched.
func (s *Service) FixImageURLs(ctx context.Context, uploadDir string, dryRun bool) (*Report, error) {
	report := newReport(JobFixImageURLs)
	if s.objects == nil {
		return report, ErrStorageDisabled
	}
	refs, err := s.store.ListImageURLs(ctx)
	if err != nil {
		return report, fmt.Errorf("list image urls: %w", err)
	}
	for _, ref := range refs {
		report.Processed++
		key, ok := s.storageKey(ref.URL)
		if !ok {
			report.Skipped++
			continue
		}
		if uploadDir != "" && !dryRun {
			if err := s.uploadLocal(ctx, uploadDir, key); err != nil {
				report.fail("%s %s: %v", ref.Table, ref.ID, err)
				continue
			}
		}
		if !dryRun {
			if err := s.store.UpdateImageURL(ctx, ref, s.objects.PublicURL(key)); err != nil {
				report.fail("%s %s: %v", ref.Table, ref.ID, err)
				continue
			}
		}
		report.Updated++
	}
	return report, nil
}

// storageKey returns the object key a URL should live under, or false when
// the URL needs no rewrite
func (s *Service) storageKey(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	base := strings.TrimSuffix(s.objects.PublicURL("_"), "_")
	if strings.HasPrefix(raw, base) {
		return "", false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	switch {
	case u.Scheme == "" && u.Host == "":
		// relative path such as /uploads/x.jpg
	case u.Scheme == "http", s.isLegacyHost(u.Hostname()):
	default:
		return "", false
	}
	key := strings.TrimPrefix(path.Clean("/"+u.Path), "/")
	if key == "" || key == "." {
		return "", false
	}
	return key, true
}

func (s *Service) isLegacyHost(host string) bool {
	for _, h := range s.config.LegacyHosts {
		if strings.EqualFold(strings.TrimSpace(h), host) {
			return true
		}
	}
	return false
}

// uploadLocal uploads {dir}/{key without uploads/} unless the object exists
func (s *Service) uploadLocal(ctx context.Context, dir, key string) error {
	exists, err := s.objects.Exists(ctx, key)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	local := filepath.Join(dir, filepath.FromSlash(strings.TrimPrefix(key, "uploads/")))
	data, err := os.ReadFile(local)
	if err != nil {
		return fmt.Errorf("read %s: %w", local, err)
	}
	contentType := mime.TypeByExtension(path.Ext(key))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err = s.objects.Upload(ctx, key, data, contentType)
	return err
}
