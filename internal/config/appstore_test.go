package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writeCodeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestLoadAppStore_MissingFileIsEmptyStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nope", "codes.json")
	s, err := LoadAppStore(path)
	if err != nil {
		t.Fatalf("LoadAppStore error: %v", err)
	}
	if len(s.Codes()) != 0 {
		t.Fatalf("expected empty code map, got %v", s.Codes())
	}
	if s.IsAdmin("U1") {
		t.Fatalf("empty store should have no admins")
	}
}

func TestLoadAppStore_ReadsCodesAndAdmins(t *testing.T) {
	path := writeCodeFile(t, t.TempDir(), "codes.json", `{
		"secret_code_map": {"#s1": "Group_A", "": "broken"},
		"admin_user_ids": ["U_admin", ""]
	}`)

	s, err := LoadAppStore(path)
	if err != nil {
		t.Fatalf("LoadAppStore error: %v", err)
	}
	want := map[string]string{"#s1": "Group_A"}
	if got := s.Codes(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Codes() = %v; want %v", got, want)
	}
	if !s.IsAdmin("U_admin") || s.IsAdmin("U_other") || s.IsAdmin("") {
		t.Fatalf("admin allowlist mismatch")
	}
}

func TestLoadAppStore_MalformedFileFails(t *testing.T) {
	path := writeCodeFile(t, t.TempDir(), "codes.json", `{not json`)
	if _, err := LoadAppStore(path); err == nil {
		t.Fatalf("expected parse error for malformed file")
	}
}

func TestAppStore_AddRemoveCode(t *testing.T) {
	s, err := LoadAppStore(filepath.Join(t.TempDir(), "codes.json"))
	if err != nil {
		t.Fatalf("LoadAppStore error: %v", err)
	}

	s.AddCode("#s1", "Group_A")
	s.AddCode("#s1", "Group_B") // overwrite
	if got := s.Codes()["#s1"]; got != "Group_B" {
		t.Fatalf("overwrite failed: %q", got)
	}

	if !s.RemoveCode("#s1") {
		t.Fatalf("RemoveCode should report present code")
	}
	if s.RemoveCode("#s1") {
		t.Fatalf("RemoveCode should report absent code")
	}
	if len(s.Codes()) != 0 {
		t.Fatalf("map should be empty after removal")
	}
}

func TestAppStore_CodesReturnsCopy(t *testing.T) {
	s, _ := LoadAppStore(filepath.Join(t.TempDir(), "codes.json"))
	s.AddCode("#s1", "Group_A")

	m := s.Codes()
	m["#s1"] = "tampered"
	m["#new"] = "injected"

	if got := s.Codes(); !reflect.DeepEqual(got, map[string]string{"#s1": "Group_A"}) {
		t.Fatalf("internal map mutated through copy: %v", got)
	}
}

func TestAppStore_PersistRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "codes.json")

	s, err := LoadAppStore(path)
	if err != nil {
		t.Fatalf("LoadAppStore error: %v", err)
	}
	s.AddCode("#s1", "Group_A")
	s.AddCode("#s2", "Group_B")

	if err := s.Persist(); err != nil {
		t.Fatalf("Persist error: %v", err)
	}

	// Reload and compare.
	reloaded, err := LoadAppStore(path)
	if err != nil {
		t.Fatalf("reload error: %v", err)
	}
	if !reflect.DeepEqual(reloaded.Codes(), s.Codes()) {
		t.Fatalf("round trip mismatch: %v vs %v", reloaded.Codes(), s.Codes())
	}

	// File is valid JSON with the expected top-level keys.
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read persisted file: %v", err)
	}
	var f map[string]json.RawMessage
	if err := json.Unmarshal(raw, &f); err != nil {
		t.Fatalf("persisted file is not valid JSON: %v", err)
	}
	if _, ok := f["secret_code_map"]; !ok {
		t.Fatalf("persisted file missing secret_code_map")
	}
	if _, ok := f["admin_user_ids"]; !ok {
		t.Fatalf("persisted file missing admin_user_ids")
	}
}

func TestAppStore_PersistPreservesAdmins(t *testing.T) {
	dir := t.TempDir()
	path := writeCodeFile(t, dir, "codes.json", `{
		"secret_code_map": {},
		"admin_user_ids": ["U_b", "U_a"]
	}`)

	s, err := LoadAppStore(path)
	if err != nil {
		t.Fatalf("LoadAppStore error: %v", err)
	}
	s.AddCode("#x", "G")
	if err := s.Persist(); err != nil {
		t.Fatalf("Persist error: %v", err)
	}

	reloaded, err := LoadAppStore(path)
	if err != nil {
		t.Fatalf("reload error: %v", err)
	}
	if !reloaded.IsAdmin("U_a") || !reloaded.IsAdmin("U_b") {
		t.Fatalf("admin ids lost across persist")
	}
}
