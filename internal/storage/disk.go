package storage

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrInvalidImage  = errors.New("invalid image type, allowed: jpeg, jpg, png, webp")
	ErrImageTooLarge = errors.New("image too large, max 5MB")
)

const maxImageBytes = 5 * 1024 * 1024

var allowedExtensions = map[string]bool{
	"jpeg": true, "jpg": true, "png": true, "webp": true,
}

// Disk stores vehicle images on the local filesystem under a configured root
// and hands back paths relative to that root.
type Disk struct {
	root string
}

func NewDisk(root string) (*Disk, error) {
	if err := os.MkdirAll(filepath.Join(root, "vehicles"), 0o755); err != nil {
		return nil, err
	}
	return &Disk{root: root}, nil
}

func (d *Disk) Root() string { return d.root }

// SaveImage writes an uploaded image under a fresh random name and returns
// the relative path to store. The extension is taken from the original
// filename and whitelisted.
func (d *Disk) SaveImage(filename string, r io.Reader) (string, error) {
	ext := "jpg"
	if i := strings.LastIndex(filename, "."); i >= 0 {
		ext = strings.ToLower(filename[i+1:])
	}
	if !allowedExtensions[ext] {
		return "", ErrInvalidImage
	}
	content, err := io.ReadAll(io.LimitReader(r, maxImageBytes+1))
	if err != nil {
		return "", err
	}
	if len(content) > maxImageBytes {
		return "", ErrImageTooLarge
	}
	name := strings.ReplaceAll(uuid.New().String(), "-", "") + "." + ext
	rel := filepath.Join("vehicles", name)
	if err := os.WriteFile(filepath.Join(d.root, rel), content, 0o644); err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}

// Remove deletes a stored image. A path that escapes the root or a file that
// is already gone are both quietly ignored.
func (d *Disk) Remove(rel string) error {
	clean := filepath.Clean(filepath.FromSlash(rel))
	if strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return nil
	}
	err := os.Remove(filepath.Join(d.root, clean))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
