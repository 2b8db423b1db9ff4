package anonymizer

import (
	"regexp"
	"strings"
	"testing"

	"github.com/codemonkeychris/sysmcp-sub003/pkg/common/models"
)

var reUserToken = regexp.MustCompile(`^\[ANON_USER_[A-F0-9]{6}\]$`)

func testEngine() *Engine {
	return newEngineWithIdentity(nil, DefaultPolicy(), "WORKSTATION7")
}

func TestTokenDeterminism(t *testing.T) {
	e := testEngine()

	first := e.TokenFor(CategoryUser, `DOMAIN\jsmith`)
	second := e.TokenFor(CategoryUser, `DOMAIN\jsmith`)
	if first != second {
		t.Fatalf("same value produced different tokens: %q vs %q", first, second)
	}
	if !reUserToken.MatchString(first) {
		t.Fatalf("unexpected token shape: %q", first)
	}

	other := e.TokenFor(CategoryUser, `DOMAIN\mbrown`)
	if other == first {
		t.Fatalf("different values collided on token %q", first)
	}

	if len(e.Mapping().Usernames) != 2 {
		t.Fatalf("expected 2 username entries, got %d", len(e.Mapping().Usernames))
	}
}

func TestTokenCaseInsensitiveNormalization(t *testing.T) {
	e := testEngine()

	upper := e.TokenFor(CategoryComputer, "SERVER1")
	lower := e.TokenFor(CategoryComputer, "server1")
	if upper != lower {
		t.Fatalf("SERVER1 and server1 should share one token, got %q and %q", upper, lower)
	}
	if len(e.Mapping().ComputerNames) != 1 {
		t.Fatalf("expected a single computer name entry, got %d", len(e.Mapping().ComputerNames))
	}
}

func TestDeterminismAcrossRestoredMapping(t *testing.T) {
	e1 := testEngine()
	token := e1.TokenFor(CategoryEmail, "alice@corp.example")

	e2 := newEngineWithIdentity(e1.Mapping(), DefaultPolicy(), "WORKSTATION7")
	restored := e2.TokenFor(CategoryEmail, "Alice@Corp.Example")
	if restored != token {
		t.Fatalf("restored engine produced %q, want %q", restored, token)
	}
}

func TestRedactTextLocalIdentity(t *testing.T) {
	e := testEngine()

	got := e.RedactText("WORKSTATION7 started")
	if strings.Contains(got, "WORKSTATION7") {
		t.Fatalf("local identity leaked: %q", got)
	}
	if !regexp.MustCompile(`^\[ANON_COMPUTER_[A-F0-9]{6}\] started$`).MatchString(got) {
		t.Fatalf("unexpected redaction result: %q", got)
	}

	// A different spelling of the host maps to the same token.
	other := e.RedactText("rebooting workstation7 now")
	if !strings.Contains(other, got[:len(got)-len(" started")]) {
		t.Fatalf("host spelling got a second token: %q vs %q", other, got)
	}
}

func TestRedactTextMultipleCategories(t *testing.T) {
	e := testEngine()

	msg := `User CORP\amartin logged on to FILESRV2 from 10.0.0.15, notified admin@corp.example`
	got := e.RedactText(msg)

	for _, leak := range []string{"amartin", "FILESRV2", "10.0.0.15", "admin@corp.example"} {
		if strings.Contains(got, leak) {
			t.Fatalf("redacted message still contains %q: %q", leak, got)
		}
	}
	for _, cat := range []string{"USER", "COMPUTER", "IP", "EMAIL"} {
		if !strings.Contains(got, "[ANON_"+cat+"_") {
			t.Fatalf("expected a %s token in %q", cat, got)
		}
	}
}

func TestRedactTextIPv6(t *testing.T) {
	e := testEngine()

	got := e.RedactText("connection from fe80::1a2b accepted, loopback ::1 ignored")
	if strings.Contains(got, "fe80::1a2b") || strings.Contains(got, "::1 ") {
		t.Fatalf("IPv6 literal leaked: %q", got)
	}
	if strings.Count(got, "[ANON_IP_") != 2 {
		t.Fatalf("expected two IP tokens: %q", got)
	}
}

func TestRedactTextNoFalsePositives(t *testing.T) {
	e := testEngine()

	for _, msg := range []string{
		"Process started with ID 12345",
		"Version 1.2.3.4 installed successfully",
		"retry scheduled at 12:30:45 UTC",
		"checksum SHA256 verified, encoding UTF-8",
		"update KB5034123 pending",
	} {
		if got := e.RedactText(msg); got != msg {
			t.Fatalf("benign message was rewritten:\n in: %q\nout: %q", msg, got)
		}
	}
}

func TestRedactTextExemptPrincipals(t *testing.T) {
	e := testEngine()

	msg := `Service installed by NT AUTHORITY\SYSTEM`
	if got := e.RedactText(msg); got != msg {
		t.Fatalf("exempt principal was tokenized: %q", got)
	}
}

func TestRedactTextIdempotent(t *testing.T) {
	e := testEngine()

	msg := `CORP\amartin connected from 192.168.1.10`
	once := e.RedactText(msg)
	twice := e.RedactText(once)
	if once != twice {
		t.Fatalf("redaction is not idempotent:\n once: %q\ntwice: %q", once, twice)
	}
}

func TestRedactTextKnownValueReplay(t *testing.T) {
	e := testEngine()

	token := e.TokenFor(CategoryUser, "jdoe")
	got := e.RedactText("session for jdoe expired")
	if !strings.Contains(got, token) {
		t.Fatalf("previously tokenized value missed in free text: %q", got)
	}
	if strings.Contains(got, "jdoe") {
		t.Fatalf("known value leaked: %q", got)
	}
}

func TestRedactTextProfilePathSegment(t *testing.T) {
	e := testEngine()

	got := e.RedactText(`crash dump written to C:\Users\john.doe\AppData\crash.dmp`)
	if strings.Contains(got, "john.doe") {
		t.Fatalf("profile segment leaked: %q", got)
	}
	if !strings.Contains(got, `\AppData\crash.dmp`) {
		t.Fatalf("path suffix not preserved: %q", got)
	}
}

func TestRedactRecord(t *testing.T) {
	e := testEngine()

	rec := models.EventLogRecord{
		RecordID:     42,
		Channel:      "Security",
		EventID:      4624,
		Level:        "information",
		ComputerName: "FILESRV2",
		UserName:     `CORP\amartin`,
		Message:      `An account was successfully logged on by CORP\amartin at FILESRV2`,
	}

	got := e.RedactRecord(rec)

	if got.ComputerName == rec.ComputerName || got.UserName == rec.UserName {
		t.Fatalf("structured fields not redacted: %+v", got)
	}
	if strings.Contains(got.Message, "amartin") || strings.Contains(got.Message, "FILESRV2") {
		t.Fatalf("message leaked PII: %q", got.Message)
	}
	if got.RecordID != rec.RecordID || got.EventID != rec.EventID || got.Channel != rec.Channel {
		t.Fatalf("non-PII fields were altered: %+v", got)
	}
	// Input untouched.
	if rec.UserName != `CORP\amartin` {
		t.Fatal("input record was mutated")
	}
}

func TestRedactRecordEmptyFields(t *testing.T) {
	e := testEngine()

	rec := models.EventLogRecord{EventID: 7036}
	got := e.RedactRecord(rec)
	if got != rec {
		t.Fatalf("empty record should pass through unchanged, got %+v", got)
	}
}

func TestRedactRecordExemptUser(t *testing.T) {
	e := testEngine()

	rec := models.EventLogRecord{UserName: `NT AUTHORITY\SYSTEM`}
	if got := e.RedactRecord(rec); got.UserName != rec.UserName {
		t.Fatalf("exempt principal tokenized: %q", got.UserName)
	}
}

func TestMappingSnapshotIsIsolated(t *testing.T) {
	e := testEngine()
	e.TokenFor(CategoryUser, "jdoe")

	snapshot := e.Mapping()
	snapshot.Usernames["injected"] = "[ANON_USER_FFFFFF]"

	if _, ok := e.Mapping().Usernames["injected"]; ok {
		t.Fatal("Mapping() must return an isolated copy")
	}
}

func TestStats(t *testing.T) {
	e := testEngine()
	e.TokenFor(CategoryUser, "jdoe")
	e.TokenFor(CategoryIP, "10.1.2.3")
	e.TokenFor(CategoryIP, "10.1.2.4")

	stats := e.Stats()
	if stats.Usernames != 1 || stats.IPAddresses != 2 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}
