package anonymizer

import (
	"regexp"

	"github.com/codemonkeychris/sysmcp-sub003/pkg/common/models"
)

var rePathProfile = regexp.MustCompile(`^[A-Za-z]:\\(?i:users)\\([^\\/:*?"<>|]+)`)

// PathAnonymizer applies the Engine's username tokenization to filesystem
// paths and author metadata without touching non-identity path structure.
// The same person's appearances in paths, author fields and messages share
// one token because everything funnels through the Engine's user category.
type PathAnonymizer struct {
	engine *Engine
}

func NewPathAnonymizer(engine *Engine) *PathAnonymizer {
	return &PathAnonymizer{engine: engine}
}

// AnonymizePath replaces the profile segment of <drive>:\Users\<segment>\...
// with the user token for that identity, preserving the rest of the path
// verbatim. Shared profile directories (Public, Default, ...) and paths
// that do not match the user-profile shape come back unchanged.
func (p *PathAnonymizer) AnonymizePath(path string) string {
	if path == "" {
		return path
	}
	if redacted, ok := p.engine.lookupPath(path); ok {
		return redacted
	}
	m := rePathProfile.FindStringSubmatchIndex(path)
	if m == nil {
		return path
	}
	segment := path[m[2]:m[3]]
	if p.engine.isPseudoAccount(segment) || reToken.MatchString(segment) {
		return path
	}
	token := p.engine.TokenFor(CategoryUser, segment)
	redacted := path[:m[2]] + token + path[m[3]:]
	p.engine.rememberPath(path, redacted)
	return redacted
}

// AnonymizeAuthor tokenizes a free-standing display name via the username
// category. Display names and account names are distinct identities unless
// they normalize to the same string.
func (p *PathAnonymizer) AnonymizeAuthor(name string) string {
	if name == "" || p.engine.isExemptPrincipal(name) {
		return name
	}
	return p.engine.TokenFor(CategoryUser, name)
}

// AnonymizeEntry returns a copy of entry with path and author redacted and
// every other field untouched.
func (p *PathAnonymizer) AnonymizeEntry(entry models.FileEntry) models.FileEntry {
	out := entry
	out.Path = p.AnonymizePath(entry.Path)
	out.Author = p.AnonymizeAuthor(entry.Author)
	return out
}

func (p *PathAnonymizer) AnonymizeEntries(entries []models.FileEntry) []models.FileEntry {
	if entries == nil {
		return nil
	}
	out := make([]models.FileEntry, len(entries))
	for i, entry := range entries {
		out[i] = p.AnonymizeEntry(entry)
	}
	return out
}
