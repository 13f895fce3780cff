// Package imagecache stores poster and backdrop bytes keyed by source URL so
// cached content can render without a network round-trip. Entries live in
// per-user namespaces that can be purged as a unit.
package imagecache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/afero"
)

var ErrURLRequired = errors.New("image url is required")

const maxImageBytes = 16 << 20 // refuse anything that is clearly not a poster

// Cache fetches and stores image bytes on a filesystem. Production wiring
// passes afero.NewOsFs rooted at the configured image directory; tests use a
// memmap filesystem.
type Cache struct {
	fs     afero.Fs
	root   string
	client *http.Client
}

func New(fs afero.Fs, root string) *Cache {
	return &Cache{
		fs:     fs,
		root:   root,
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

// SetClient overrides the HTTP client, used by tests to point at a stub server.
func (c *Cache) SetClient(client *http.Client) {
	if client != nil {
		c.client = client
	}
}

func hashURL(url string) string {
	sum := sha1.Sum([]byte(url))
	return hex.EncodeToString(sum[:])
}

func (c *Cache) namespaceDir(namespace string) string {
	return filepath.Join(c.root, namespace)
}

// Store fetches the URL and writes the bytes under the namespace. The fetch
// is retried a few times; the caller treats any returned error as best-effort.
func (c *Cache) Store(ctx context.Context, namespace, url string) error {
	url = strings.TrimSpace(url)
	if url == "" {
		return ErrURLRequired
	}

	var body []byte
	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return err
			}
			resp, err := c.client.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("fetch image: status %d", resp.StatusCode)
			}

			body, err = io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
			return err
		},
		retry.Attempts(3),
		retry.Delay(200*time.Millisecond),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return err
	}

	ext := mimetype.Detect(body).Extension()
	if ext == "" {
		ext = ".bin"
	}

	dir := c.namespaceDir(namespace)
	if err := c.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create image namespace: %w", err)
	}

	// Replace any previous copy stored under a different extension.
	c.removeMatches(namespace, url)

	path := filepath.Join(dir, hashURL(url)+ext)
	if err := afero.WriteFile(c.fs, path, body, 0o644); err != nil {
		return fmt.Errorf("write image: %w", err)
	}
	return nil
}

// Match returns the stored bytes for a URL, if present.
func (c *Cache) Match(namespace, url string) ([]byte, bool) {
	paths, err := afero.Glob(c.fs, filepath.Join(c.namespaceDir(namespace), hashURL(url)+".*"))
	if err != nil || len(paths) == 0 {
		return nil, false
	}
	data, err := afero.ReadFile(c.fs, paths[0])
	if err != nil {
		return nil, false
	}
	return data, true
}

// PurgeNamespace removes every image stored for the namespace.
func (c *Cache) PurgeNamespace(namespace string) error {
	return c.fs.RemoveAll(c.namespaceDir(namespace))
}

func (c *Cache) removeMatches(namespace, url string) {
	paths, err := afero.Glob(c.fs, filepath.Join(c.namespaceDir(namespace), hashURL(url)+".*"))
	if err != nil {
		return
	}
	for _, p := range paths {
		_ = c.fs.Remove(p)
	}
}
