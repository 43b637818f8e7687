package imaging

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder
	"os"
	"sync"
	"time"

	"github.com/ironsheep/overlay-eye/internal/geometry"
)

// ImageCache keeps decoded screenshots keyed by file path.
//
// The evaluation harness and the MCP server revisit the same files (labels,
// repeated locate calls on one capture), so decoding once per path is worth
// the memory. Each entry remembers the file's modification time and size;
// a capture rewritten in place is decoded again on the next Load. Cached
// images stay until Evict or Clear.
//
// ImageCache is safe for concurrent use.
type ImageCache struct {
	mu     sync.RWMutex
	images map[string]cachedImage
}

type cachedImage struct {
	img     image.Image
	modTime time.Time
	size    int64
}

// NewImageCache creates an empty cache.
func NewImageCache() *ImageCache {
	return &ImageCache{
		images: make(map[string]cachedImage),
	}
}

// Load returns the image at path, decoding it from disk unless the cached
// copy still matches the file.
//
// Parameters:
//   - path: File path of the capture. PNG, JPEG and GIF are supported.
//
// Returns:
//   - image.Image: The decoded image.
//   - error: Non-nil if the file cannot be stat'd, opened or decoded.
//
// Paths are compared as given, so a relative and an absolute path to one
// file are cached separately. A cached entry is reused only while the
// file's modification time and size are unchanged.
func (c *ImageCache) Load(path string) (image.Image, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}

	c.mu.RLock()
	entry, ok := c.images[path]
	c.mu.RUnlock()
	if ok && entry.modTime.Equal(info.ModTime()) && entry.size == info.Size() {
		return entry.img, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	c.mu.Lock()
	c.images[path] = cachedImage{img: img, modTime: info.ModTime(), size: info.Size()}
	c.mu.Unlock()

	return img, nil
}

// Clear drops every cached image.
func (c *ImageCache) Clear() {
	c.mu.Lock()
	c.images = make(map[string]cachedImage)
	c.mu.Unlock()
}

// Evict drops one path. Unknown paths are ignored.
func (c *ImageCache) Evict(path string) {
	c.mu.Lock()
	delete(c.images, path)
	c.mu.Unlock()
}

// Len reports how many images are cached.
func (c *ImageCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.images)
}

// Decode decodes an in-memory capture (an upload, a clipboard grab).
func Decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("failed to decode image: empty input")
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// SizeOf returns the pixel dimensions of img.
func SizeOf(img image.Image) geometry.Size {
	b := img.Bounds()
	return geometry.Size{W: b.Dx(), H: b.Dy()}
}
