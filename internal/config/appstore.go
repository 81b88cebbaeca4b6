package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// appFile is the on-disk JSON shape of the mutable application state.
type appFile struct {
	SecretCodeMap map[string]string `json:"secret_code_map"`
	AdminUserIDs  []string          `json:"admin_user_ids"`
}

// AppStore holds the secret-code map and the admin allowlist. Unlike the
// environment Config it is mutable at runtime: admin commands add and
// remove codes, and every successful mutation is persisted back to disk so
// the map survives restarts.
//
// All methods are safe for concurrent use.
type AppStore struct {
	mu     sync.Mutex
	path   string
	codes  map[string]string
	admins map[string]struct{}
}

// LoadAppStore reads the code map from path. A missing file is not an
// error: it yields an empty store that will create the file on the first
// Persist. A present but malformed file is an error so a typo cannot
// silently wipe the map.
func LoadAppStore(path string) (*AppStore, error) {
	s := &AppStore{
		path:   path,
		codes:  make(map[string]string),
		admins: make(map[string]struct{}),
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var f appFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	for code, dest := range f.SecretCodeMap {
		if code == "" {
			continue
		}
		s.codes[code] = dest
	}
	for _, id := range f.AdminUserIDs {
		if id != "" {
			s.admins[id] = struct{}{}
		}
	}
	return s, nil
}

// Codes returns a copy of the current code map. Callers may iterate and
// mutate the copy freely.
func (s *AppStore) Codes() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.codes))
	for k, v := range s.codes {
		out[k] = v
	}
	return out
}

// AddCode maps code to destination, overwriting any previous mapping.
func (s *AppStore) AddCode(code, destination string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes[code] = destination
}

// RemoveCode deletes code from the map and reports whether it was present.
func (s *AppStore) RemoveCode(code string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.codes[code]
	delete(s.codes, code)
	return ok
}

// IsAdmin reports whether userID is on the admin allowlist.
func (s *AppStore) IsAdmin(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.admins[userID]
	return ok
}

// Persist writes the current state back to the configured path. The write
// goes through a temp file and rename so a crash cannot leave a truncated
// map behind.
func (s *AppStore) Persist() error {
	s.mu.Lock()
	f := appFile{
		SecretCodeMap: make(map[string]string, len(s.codes)),
		AdminUserIDs:  make([]string, 0, len(s.admins)),
	}
	for k, v := range s.codes {
		f.SecretCodeMap[k] = v
	}
	for id := range s.admins {
		f.AdminUserIDs = append(f.AdminUserIDs, id)
	}
	path := s.path
	s.mu.Unlock()

	sort.Strings(f.AdminUserIDs)
	raw, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("config: encode code map: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("config: create %s: %w", dir, err)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("config: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("config: replace %s: %w", path, err)
	}
	return nil
}
