// Package share stores finished export files and returns a link to them.
package share

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// storageKey builds a unique, date-partitioned object key for name.
func storageKey(prefix, name string, now time.Time) string {
	return fmt.Sprintf("%s/%d/%02d/%02d/%s/%s", strings.Trim(prefix, "/"), now.Year(), now.Month(), now.Day(), uuid.NewString(), filepath.Base(name))
}

// LocalDir writes files into a directory on the worker host.
type LocalDir struct {
	Dir string
}

func NewLocalDir(dir string) *LocalDir {
	return &LocalDir{Dir: dir}
}

func (l *LocalDir) Upload(ctx context.Context, name string, data []byte, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path := filepath.Join(l.Dir, filepath.FromSlash(storageKey("exports", name, time.Now().UTC())))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("share: create dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("share: write %s: %w", path, err)
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(path)}).String(), nil
}
