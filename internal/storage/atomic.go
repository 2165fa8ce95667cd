package storage

import (
	"fmt"
	"os"
	"path/filepath"
)

// WriteAtomic replaces the file at path with content: tmp file -> fsync -> rename.
// Readers see either the previous snapshot or the new one, never a partial file.
func WriteAtomic(path string, content []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".xmltable-tmp-*")
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	tmpName := tmp.Name()

	// Clean up on any failure path.
	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("storage: chmod: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("storage: rename: %w", err)
	}
	success = true
	return nil
}

// CheckWritable reports whether WriteAtomic could replace path, without
// modifying it: the directory must accept a temp file and path must not be
// a directory.
func CheckWritable(path string) error {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return fmt.Errorf("storage: %s is a directory", path)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".xmltable-tmp-*")
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	name := tmp.Name()
	_ = tmp.Close()
	return os.Remove(name)
}
