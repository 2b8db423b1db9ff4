package anonymizer

import (
	"crypto/sha256"
	"encoding/hex"
	"net"
	"os"
	"strings"
	"sync"

	"github.com/codemonkeychris/sysmcp-sub003/pkg/common/models"
)

// Category identifies one of the five PII tables in a Mapping.
type Category string

const (
	CategoryUser     Category = "USER"
	CategoryComputer Category = "COMPUTER"
	CategoryIP       Category = "IP"
	CategoryEmail    Category = "EMAIL"
	CategoryPath     Category = "PATH"
)

// Engine replaces PII in records and free text with stable placeholder
// tokens of the shape [ANON_<CATEGORY>_<ID>]. The same normalized value
// always yields the same token, within one Engine and across restarts when
// the Engine is seeded from a persisted Mapping. Redaction never fails and
// never mutates its input.
type Engine struct {
	mu      sync.RWMutex
	mapping *Mapping
	// index mirrors the mapping tables keyed by normalized value, so
	// SERVER1 and server1 collapse to one identity.
	index map[Category]map[string]string

	localIdentity    string
	exemptPrincipals map[string]struct{}
	exemptHostWords  map[string]struct{}
	pseudoAccounts   map[string]struct{}
}

// NewEngine builds an Engine with the given detector policy, optionally
// seeded from a previously persisted Mapping. Passing nil starts empty.
func NewEngine(seed *Mapping, policy Policy) *Engine {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "localhost"
	}
	if i := strings.IndexByte(host, '.'); i > 0 {
		host = host[:i]
	}
	return newEngineWithIdentity(seed, policy, strings.ToUpper(host))
}

func newEngineWithIdentity(seed *Mapping, policy Policy, identity string) *Engine {
	e := &Engine{
		mapping:          NewMapping(),
		index:            make(map[Category]map[string]string),
		localIdentity:    identity,
		exemptPrincipals: make(map[string]struct{}),
		exemptHostWords:  make(map[string]struct{}),
		pseudoAccounts:   make(map[string]struct{}),
	}
	for _, cat := range []Category{CategoryUser, CategoryComputer, CategoryIP, CategoryEmail, CategoryPath} {
		e.index[cat] = make(map[string]string)
	}
	for _, p := range policy.ExemptPrincipals {
		e.exemptPrincipals[strings.ToLower(p)] = struct{}{}
	}
	for _, w := range policy.ExemptHostWords {
		e.exemptHostWords[strings.ToUpper(w)] = struct{}{}
	}
	for _, a := range policy.PseudoAccounts {
		e.pseudoAccounts[strings.ToLower(a)] = struct{}{}
	}
	if seed != nil {
		e.mapping = seed.Clone()
		e.mapping.normalizeTables()
		for _, cat := range []Category{CategoryUser, CategoryComputer, CategoryIP, CategoryEmail, CategoryPath} {
			for original, token := range e.mapping.table(cat) {
				e.index[cat][normalize(cat, original)] = token
			}
		}
	}
	return e
}

// LocalIdentity returns the uppercased name of the host this Engine runs
// on, computed once at construction. The local machine is detected before
// generic computer-name matching so it keeps a single token no matter how
// it is spelled in text.
func (e *Engine) LocalIdentity() string {
	return e.localIdentity
}

// TokenFor returns the token for value in the given category, generating
// and recording it on first use. Values that already are tokens come back
// unchanged so redaction stays idempotent.
func (e *Engine) TokenFor(cat Category, value string) string {
	value = strings.TrimSpace(value)
	if value == "" || reToken.MatchString(value) {
		return value
	}

	norm := normalize(cat, value)

	e.mu.RLock()
	token, ok := e.index[cat][norm]
	e.mu.RUnlock()
	if ok {
		return token
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if token, ok := e.index[cat][norm]; ok {
		return token
	}
	token = makeToken(cat, norm)
	e.index[cat][norm] = token
	if table := e.mapping.table(cat); table != nil {
		table[value] = token
	}
	return token
}

// RedactRecord returns a copy of rec with the computer name, user name and
// free-text message replaced by tokens. Empty fields pass through and the
// input is never modified.
func (e *Engine) RedactRecord(rec models.EventLogRecord) models.EventLogRecord {
	out := rec
	if out.ComputerName != "" {
		out.ComputerName = e.TokenFor(CategoryComputer, out.ComputerName)
	}
	if out.UserName != "" && !e.isExemptPrincipal(out.UserName) {
		out.UserName = e.TokenFor(CategoryUser, out.UserName)
	}
	out.Message = e.RedactText(out.Message)
	return out
}

// Mapping returns a snapshot copy of the current Mapping, safe to hand to
// a Store while redaction continues.
func (e *Engine) Mapping() *Mapping {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.mapping.Clone()
}

// Stats reports per-table entry counts.
func (e *Engine) Stats() models.MappingStats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return models.MappingStats{
		Usernames:     len(e.mapping.Usernames),
		ComputerNames: len(e.mapping.ComputerNames),
		IPAddresses:   len(e.mapping.IPAddresses),
		Emails:        len(e.mapping.Emails),
		Paths:         len(e.mapping.Paths),
	}
}

func (e *Engine) isExemptPrincipal(value string) bool {
	_, ok := e.exemptPrincipals[strings.ToLower(strings.TrimSpace(value))]
	return ok
}

func (e *Engine) isPseudoAccount(segment string) bool {
	_, ok := e.pseudoAccounts[strings.ToLower(strings.TrimSpace(segment))]
	return ok
}

// rememberPath memoizes a full path rewrite in the paths table. The stored
// value embeds the user token rather than being a bare token, so loading a
// Mapping reproduces the exact rewritten path.
func (e *Engine) rememberPath(original, redacted string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	norm := normalize(CategoryPath, original)
	if _, ok := e.index[CategoryPath][norm]; ok {
		return
	}
	e.index[CategoryPath][norm] = redacted
	e.mapping.Paths[original] = redacted
}

func (e *Engine) lookupPath(original string) (string, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	redacted, ok := e.index[CategoryPath][normalize(CategoryPath, original)]
	return redacted, ok
}

func normalize(cat Category, value string) string {
	value = strings.TrimSpace(value)
	switch cat {
	case CategoryIP:
		if ip := net.ParseIP(value); ip != nil {
			return ip.String()
		}
		return strings.ToLower(value)
	default:
		// Usernames, computer names and emails compare case-insensitively;
		// Windows paths are case-insensitive as well.
		return strings.ToLower(value)
	}
}

// makeToken derives the fixed-width hex identifier from the normalized
// value. Salt-free on purpose: two engines that never exchanged a Mapping
// still agree on tokens, which keeps restarts and replicas consistent. The
// hash resists casual re-identification, not a motivated adversary.
func makeToken(cat Category, normalized string) string {
	sum := sha256.Sum256([]byte(string(cat) + ":" + normalized))
	return "[ANON_" + string(cat) + "_" + strings.ToUpper(hex.EncodeToString(sum[:3])) + "]"
}
