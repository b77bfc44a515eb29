package images

import (
	"context"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Downloader fetches profile images next to the artifacts. Image failures
// degrade the record's imageRef, they never fail the entity.
type Downloader struct {
	client *resty.Client
	dir    string
	logger *zap.Logger
}

func NewDownloader(dir, userAgent string, timeout time.Duration, logger *zap.Logger) (*Downloader, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetHeader("User-Agent", userAgent)

	return &Downloader{
		client: client,
		dir:    dir,
		logger: logger,
	}, nil
}

// Download fetches imageURL into "<dir>/<key><ext>" and returns the local
// path. The key is already filesystem-safe (it is the artifact key).
func (d *Downloader) Download(ctx context.Context, imageURL, key string) (string, error) {
	target := filepath.Join(d.dir, key+extensionOf(imageURL))

	resp, err := d.client.R().
		SetContext(ctx).
		SetOutput(target).
		Get(imageURL)
	if err != nil {
		return "", errors.Wrapf(err, "image download for %q", key)
	}
	if resp.StatusCode() >= 400 {
		_ = os.Remove(target)
		return "", errors.Newf("image download for %q: status %d", key, resp.StatusCode())
	}

	d.logger.Debug("image downloaded",
		zap.String("key", key),
		zap.String("path", target),
	)
	return target, nil
}

func extensionOf(imageURL string) string {
	parsed, err := url.Parse(imageURL)
	if err != nil {
		return ".jpg"
	}
	ext := strings.ToLower(path.Ext(parsed.Path))
	switch ext {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp":
		return ext
	}
	return ".jpg"
}
