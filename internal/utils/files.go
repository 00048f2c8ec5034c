// Package utils holds filesystem and token helpers shared by the CLI, the
// config layer and the upload spool.
package utils

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// EnsurePrivateDir creates dir and its parents with owner-only permissions.
// The config file (provider API keys), the sqlite database and spooled uploads
// all live in such directories. Existing directories keep their mode.
func EnsurePrivateDir(dir string) error {
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	return nil
}

// WriteFileAtomic replaces path with data. The bytes are synced to a hidden
// temp file in the same directory and renamed over path, so readers see the
// old or the new config, never a partial one.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmp := f.Name()
	abort := func(err error) error {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if _, err := f.Write(data); err != nil {
		return abort(fmt.Errorf("write temp file: %w", err))
	}
	if err := f.Chmod(perm); err != nil {
		return abort(fmt.Errorf("chmod temp file: %w", err))
	}
	if err := f.Sync(); err != nil {
		return abort(fmt.Errorf("sync temp file: %w", err))
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("atomic rename: %w", err)
	}
	return nil
}

// WriteJSON prints v to w as two-space indented JSON plus a trailing newline,
// the output format of every CLI command.
func WriteJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	_, err = w.Write(append(b, '\n'))
	return err
}
