/*
Package atomicfile provides write-temp-then-rename JSON persistence.

# Description

WriteJSON serializes a value, writes it to a sibling temp file in the
target's directory, fsyncs it, and renames it over the target. A reader
racing the writer observes either the previous contents or the complete
new contents — never a truncated intermediate, because rename is atomic
on POSIX filesystems (and on Windows via os.Rename since Go 1.5 retries
across the same volume).

ReadMap deserializes a file into a map. ReadJSON deserializes a file
into a typed value and applies a forward-compatible filter: keys the
caller doesn't recognize are silently dropped rather
than rejected, so a binary reading a document written by a newer schema
degrades gracefully instead of refusing to start.

# Example

	err := atomicfile.WriteJSON("state.json", state)
	...
	raw, err := atomicfile.ReadMap("state.json")
*/
package atomicfile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// WriteJSON atomically writes v as indented JSON to path.
func WriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	return WriteBytes(path, data)
}

// WriteBytes atomically writes data to path via a temp file + rename.
func WriteBytes(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".tmp-"+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", path, err)
	}
	tmpPath := tmp.Name()
	// Always clean up the temp file on any path that doesn't end in a
	// successful rename.
	succeeded := false
	defer func() {
		if !succeeded {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file for %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("fsync temp file for %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file for %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename into place %s: %w", path, err)
	}
	succeeded = true
	return nil
}

// ReadMap reads path and decodes it into a map. A missing or malformed
// file returns an empty map — callers that need to distinguish
// "absent" from "empty" should os.Stat first.
func ReadMap(path string) map[string]any {
	data, err := os.ReadFile(path)
	if err != nil {
		return map[string]any{}
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return map[string]any{}
	}
	return m
}

// ReadJSON reads path and decodes it into v, applying the
// forward-compatible filter: any key json.Unmarshal doesn't recognize
// on v is simply absent from
// v afterward rather than causing an error (this is encoding/json's
// default behavior — DisallowUnknownFields is never enabled here).
func ReadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("unmarshal %s: %w", path, err)
	}
	return nil
}

// Exists reports whether path exists on disk.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
