package routing

import (
	"bytes"
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
)

// FileConfigWriter writes one proxy configuration file per service
// under a root directory, the shape a file-watching reverse proxy
// consumes. Writing content identical to what is already on disk is
// a no-op, which keeps retries convergent and avoids needless proxy
// reloads.
type FileConfigWriter struct {
	Root string
	// Ext is the file extension including the dot; defaults to ".conf".
	Ext string
}

func (w *FileConfigWriter) path(serviceID string) string {
	ext := w.Ext
	if ext == "" {
		ext = ".conf"
	}
	return filepath.Join(w.Root, serviceID+ext)
}

func (w *FileConfigWriter) WriteConfig(_ context.Context, serviceID, rendered string) error {
	path := w.path(serviceID)
	if existing, err := ioutil.ReadFile(path); err == nil && bytes.Equal(existing, []byte(rendered)) {
		return nil
	}
	if err := os.MkdirAll(w.Root, 0755); err != nil {
		return err
	}
	// write-then-rename so the proxy never reads a half-written file
	tmp, err := ioutil.TempFile(w.Root, "."+serviceID+"-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.WriteString(rendered); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

var _ ConfigWriter = &FileConfigWriter{}
