package posts

import (
	"os"
	"path/filepath"
)

// Writer persists rendered post documents into the site working copy.
type Writer interface {
	Write(name string, data []byte) error
}

// DirWriter writes post files under <Root>/_posts.
type DirWriter struct {
	Root string
}

func (w DirWriter) Write(name string, data []byte) error {
	dir := filepath.Join(w.Root, Dir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, name), data, 0o644)
}

// Discard drops writes. Used for dry runs.
type Discard struct{}

func (Discard) Write(string, []byte) error { return nil }
