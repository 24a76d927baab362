package dispatcher

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"sync"

	"laughprop/log"
)

// assetCache lazily loads and memoizes on-disk files as base64, keyed by
// filesystem path. The dispatcher uses it for depth-to-image init images;
// the placeholder pool is loaded separately by loadPlaceholderPool.
type assetCache struct {
	mu    sync.RWMutex
	byPath map[string]string
}

func newAssetCache() *assetCache {
	return &assetCache{byPath: make(map[string]string)}
}

func (c *assetCache) load(path string) (string, error) {
	c.mu.RLock()
	if b64, ok := c.byPath[path]; ok {
		c.mu.RUnlock()
		return b64, nil
	}
	c.mu.RUnlock()

	raw, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	b64 := base64.StdEncoding.EncodeToString(raw)

	c.mu.Lock()
	c.byPath[path] = b64
	c.mu.Unlock()
	return b64, nil
}

// loadPlaceholderPool reads every file in dir as a fallback image, base64
// encoding each. Used when every upstream has been exhausted for a request.
func loadPlaceholderPool(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var pool []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(dir, e.Name())
		raw, err := os.ReadFile(path)
		if err != nil {
			log.Warn("skipping unreadable placeholder image", "path", path, "error", err)
			continue
		}
		pool = append(pool, base64.StdEncoding.EncodeToString(raw))
	}
	return pool, nil
}
