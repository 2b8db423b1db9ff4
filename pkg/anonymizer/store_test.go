package anonymizer

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"strings"
	"testing"
)

func TestStoreRoundTrip(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "mapping.json"), false)

	m := NewMapping()
	m.Usernames[`DOMAIN\user1`] = "[ANON_USER_ABC123]"
	m.Usernames["user+tag"] = "[ANON_USER_0FF1CE]"
	m.ComputerNames["WIN-AB:12"] = "[ANON_COMPUTER_12AB34]"
	m.Emails[`"quoted"@corp.example`] = "[ANON_EMAIL_56CD78]"
	m.IPAddresses["fe80::1"] = "[ANON_IP_9AB0CD]"
	m.Paths[`C:\Users\user1\file.txt`] = `C:\Users\[ANON_USER_ABC123]\file.txt`

	if err := store.Save(m); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if !reflect.DeepEqual(m, loaded) {
		t.Fatalf("round trip mismatch:\nsaved:  %+v\nloaded: %+v", m, loaded)
	}
	if loaded.Usernames[`DOMAIN\user1`] != "[ANON_USER_ABC123]" {
		t.Fatalf("username entry corrupted: %q", loaded.Usernames[`DOMAIN\user1`])
	}
}

func TestStoreRoundTripEmptyMapping(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "mapping.json"), false)

	if err := store.Save(NewMapping()); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(loaded.Usernames)+len(loaded.ComputerNames)+len(loaded.IPAddresses)+len(loaded.Emails)+len(loaded.Paths) != 0 {
		t.Fatalf("expected empty tables, got %+v", loaded)
	}
	if loaded.Usernames == nil || loaded.Paths == nil {
		t.Fatal("tables must be non-nil after load")
	}
}

func TestStoreLoadMissingFileFails(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "absent.json"), false)

	if _, err := store.Load(); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStoreLoadMalformedFileFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mapping.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}

	store := NewStore(path, false)
	if _, err := store.Load(); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestStoreLoadPartialFileDefaultsTables(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mapping.json")
	partial := `{"usernames":{"jdoe":"[ANON_USER_112233]"},"version":"1.0"}`
	if err := os.WriteFile(path, []byte(partial), 0o600); err != nil {
		t.Fatal(err)
	}

	loaded, err := NewStore(path, false).Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if loaded.Usernames["jdoe"] != "[ANON_USER_112233]" {
		t.Fatalf("missing username entry: %+v", loaded)
	}
	if loaded.ComputerNames == nil || len(loaded.ComputerNames) != 0 {
		t.Fatalf("absent tables must default empty: %+v", loaded)
	}
}

func TestStoreSaveCreatesDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deeper", "mapping.json")
	store := NewStore(path, true)

	if err := store.Save(NewMapping()); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if !store.Exists() {
		t.Fatal("mapping file missing after save")
	}
}

func TestStoreSaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(filepath.Join(dir, "mapping.json"), false)

	if err := store.Save(NewMapping()); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".tmp") {
			t.Fatalf("leftover temp file: %s", entry.Name())
		}
	}
	if len(entries) != 1 {
		t.Fatalf("expected only the mapping file, found %d entries", len(entries))
	}
}

func TestStoreSavePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix permission bits")
	}
	store := NewStore(filepath.Join(t.TempDir(), "mapping.json"), false)
	if err := store.Save(NewMapping()); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	info, err := os.Stat(store.Path())
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		t.Fatalf("mapping file readable beyond owner: %v", perm)
	}
}

func TestStoreSaveEnvelope(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "mapping.json"), false)
	if err := store.Save(NewMapping()); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	data, err := os.ReadFile(store.Path())
	if err != nil {
		t.Fatal(err)
	}
	content := string(data)
	for _, key := range []string{`"usernames"`, `"computerNames"`, `"ipAddresses"`, `"emails"`, `"paths"`, `"timestamp"`, `"version": "1.0"`} {
		if !strings.Contains(content, key) {
			t.Fatalf("envelope missing %s:\n%s", key, content)
		}
	}
}

func TestStoreExistsSizeDelete(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "mapping.json"), false)

	if store.Exists() {
		t.Fatal("file should not exist yet")
	}
	if _, err := store.Size(); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound from Size, got %v", err)
	}
	// Deleting an absent file is a no-op.
	if err := store.Delete(); err != nil {
		t.Fatalf("delete on absent file errored: %v", err)
	}

	if err := store.Save(NewMapping()); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if !store.Exists() {
		t.Fatal("file should exist after save")
	}
	size, err := store.Size()
	if err != nil || size == 0 {
		t.Fatalf("unexpected size %d, err %v", size, err)
	}

	if err := store.Delete(); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if store.Exists() {
		t.Fatal("file should be gone after delete")
	}
}

func TestStoreEngineRestartRoundTrip(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "mapping.json"), false)

	e1 := testEngine()
	redacted := e1.RedactText(`CORP\jsmith connected from 10.9.8.7`)
	if err := store.Save(e1.Mapping()); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	seed, err := store.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	e2 := newEngineWithIdentity(seed, DefaultPolicy(), "WORKSTATION7")
	if again := e2.RedactText(`CORP\jsmith connected from 10.9.8.7`); again != redacted {
		t.Fatalf("tokens changed across restart:\nbefore: %q\nafter:  %q", redacted, again)
	}
}
