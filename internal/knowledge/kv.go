package knowledge

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// kvStore is a JSON-file-backed key-value store, one per artifact file.
// The whole map is held in memory and rewritten on save — the stores are
// small (document status, full documents, text chunks) and the engine runs
// single-threaded on the bridge worker, so no locking is needed here.
type kvStore[V any] struct {
	path string
	data map[string]V
}

// openKV loads the store at path, or starts empty if the file is absent.
func openKV[V any](path string) (*kvStore[V], error) {
	s := &kvStore[V]{path: path, data: make(map[string]V)}

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("knowledge: read kv store %s: %w", path, err)
	}
	if err := json.Unmarshal(raw, &s.data); err != nil {
		return nil, fmt.Errorf("knowledge: parse kv store %s: %w", path, err)
	}
	return s, nil
}

// get returns the value for key and whether it was present.
func (s *kvStore[V]) get(key string) (V, bool) {
	v, ok := s.data[key]
	return v, ok
}

// set stores value under key. The change is in-memory until save is called.
func (s *kvStore[V]) set(key string, value V) {
	s.data[key] = value
}

// len returns the number of stored entries.
func (s *kvStore[V]) len() int {
	return len(s.data)
}

// keys returns all keys in sorted order.
func (s *kvStore[V]) keys() []string {
	out := make([]string, 0, len(s.data))
	for k := range s.data {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// save writes the store to disk atomically (temp file + rename) so a crash
// mid-write never leaves a truncated artifact behind.
func (s *kvStore[V]) save() error {
	raw, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("knowledge: marshal kv store %s: %w", s.path, err)
	}
	return atomicWrite(s.path, raw)
}

// atomicWrite writes data to path via a temp file in the same directory
// followed by a rename.
func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("knowledge: create temp for %s: %w", path, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("knowledge: write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("knowledge: close temp for %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("knowledge: rename %s: %w", path, err)
	}
	return nil
}
