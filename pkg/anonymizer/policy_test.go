package anonymizer

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadPolicyDefaultsWhenUnset(t *testing.T) {
	policy, err := LoadPolicy("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(policy.ExemptPrincipals) == 0 || len(policy.PseudoAccounts) == 0 {
		t.Fatalf("default policy incomplete: %+v", policy)
	}
}

func TestLoadPolicyFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	content := `
exempt_principals:
  - CONTOSO\svc_backup
pseudo_accounts:
  - Public
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	policy, err := LoadPolicy(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(policy.ExemptPrincipals) != 1 || policy.ExemptPrincipals[0] != `CONTOSO\svc_backup` {
		t.Fatalf("unexpected principals: %+v", policy.ExemptPrincipals)
	}
	// Host-word exemptions fall back to defaults when omitted.
	if len(policy.ExemptHostWords) == 0 {
		t.Fatal("expected default host words")
	}

	e := newEngineWithIdentity(nil, policy, "HOST1")
	msg := `scheduled by CONTOSO\svc_backup`
	if got := e.RedactText(msg); got != msg {
		t.Fatalf("custom exempt principal tokenized: %q", got)
	}
}

func TestLoadPolicyRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	if err := os.WriteFile(path, []byte("exempt_principals: [unclosed"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadPolicy(path); err == nil {
		t.Fatal("expected an error for malformed YAML")
	}
}
