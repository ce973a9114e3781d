// internal/img/store.go
package img

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
)

// DefaultMaxDimension bounds the longest side of the resized artifact.
const DefaultMaxDimension = 256

// Store writes image artifacts to the local filesystem. Writes overwrite any
// existing file, so reprocessing a redelivered message is safe.
type Store struct {
	MaxDimension int
}

func NewStore(maxDimension int) *Store {
	if maxDimension <= 0 {
		maxDimension = DefaultMaxDimension
	}
	return &Store{MaxDimension: maxDimension}
}

// SaveOriginal writes the raw image bytes unmodified to dstPath.
func (s *Store) SaveOriginal(data []byte, dstPath string) error {
	if err := os.MkdirAll(filepath.Dir(dstPath), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	if err := os.WriteFile(dstPath, data, 0o644); err != nil {
		return fmt.Errorf("write original: %w", err)
	}
	return nil
}

// SaveResized decodes data, fits it inside a MaxDimension square preserving
// aspect ratio (no upscaling), and writes it to dstPath encoded in the format
// implied by the path's extension.
func (s *Store) SaveResized(data []byte, dstPath string) error {
	src, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return fmt.Errorf("decode: %w", err)
	}

	resized := imaging.Fit(src, s.MaxDimension, s.MaxDimension, imaging.Lanczos)

	if err := os.MkdirAll(filepath.Dir(dstPath), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	if err := imaging.Save(resized, dstPath); err != nil {
		return fmt.Errorf("save resized: %w", err)
	}
	return nil
}
