package anonymizer

import (
	"net"
	"regexp"
	"sort"
	"strings"
)

var (
	reToken       = regexp.MustCompile(`\[ANON_(?:USER|COMPUTER|IP|EMAIL|PATH)_[0-9A-F]{6}\]`)
	reVersion     = regexp.MustCompile(`(?i)\b(?:version\s+|v)\d+(?:\.\d+){1,3}\b`)
	reEmail       = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	reIPv4        = regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)
	reDomainUser  = regexp.MustCompile(`\b[A-Za-z][A-Za-z0-9_-]*\\[A-Za-z][A-Za-z0-9._-]*`)
	reUserProfile = regexp.MustCompile(`(?i)[A-Za-z]:\\Users\\([^\\/:*?"<>|` + "\r\n" + `]+)`)
	reHostHyphen  = regexp.MustCompile(`\b[A-Za-z][A-Za-z0-9]*(?:-[A-Za-z0-9]+)+\b`)
	reHostAlnum   = regexp.MustCompile(`\b[A-Z]{2,}[0-9]{1,4}\b`)
	reHexRun      = regexp.MustCompile(`^[0-9A-Fa-f-]+$`)
)

// textSpan is a pending substitution in free text. repl is the literal
// replacement when already known (values from the Mapping); otherwise the
// token is generated for (cat, value) once the span is accepted.
type textSpan struct {
	start, end int
	cat        Category
	value      string
	repl       string
	priority   int
}

// RedactText scans free text for PII and substitutes each occurrence with
// its token. The local identity is matched before generic computer-name
// detection, values already in the Mapping keep their tokens, and existing
// tokens plus version strings are never touched.
func (e *Engine) RedactText(text string) string {
	if text == "" {
		return text
	}

	blocked := e.protectedSpans(text)
	cands := e.collectCandidates(text)
	if len(cands) == 0 {
		return text
	}

	// Earliest match wins; on ties prefer the longer span, then the
	// stronger detector.
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].start != cands[j].start {
			return cands[i].start < cands[j].start
		}
		if cands[i].end != cands[j].end {
			return cands[i].end > cands[j].end
		}
		return cands[i].priority < cands[j].priority
	})

	var accepted []textSpan
	for _, c := range cands {
		if overlapsAny(c.start, c.end, blocked) {
			continue
		}
		clear := true
		for _, a := range accepted {
			if overlaps(c.start, c.end, a.start, a.end) {
				clear = false
				break
			}
		}
		if clear {
			accepted = append(accepted, c)
		}
	}
	if len(accepted) == 0 {
		return text
	}

	sort.Slice(accepted, func(i, j int) bool { return accepted[i].start < accepted[j].start })

	var b strings.Builder
	prev := 0
	for _, c := range accepted {
		b.WriteString(text[prev:c.start])
		repl := c.repl
		if repl == "" {
			repl = e.TokenFor(c.cat, c.value)
		}
		b.WriteString(repl)
		prev = c.end
	}
	b.WriteString(text[prev:])
	return b.String()
}

// protectedSpans marks regions that must never be rewritten: existing
// tokens, version strings and exempt principals.
func (e *Engine) protectedSpans(text string) [][2]int {
	var spans [][2]int
	for _, m := range reToken.FindAllStringIndex(text, -1) {
		spans = append(spans, [2]int{m[0], m[1]})
	}
	for _, m := range reVersion.FindAllStringIndex(text, -1) {
		spans = append(spans, [2]int{m[0], m[1]})
	}
	for principal := range e.exemptPrincipals {
		spans = append(spans, findLiteralSpans(text, principal)...)
	}
	return spans
}

func (e *Engine) collectCandidates(text string) []textSpan {
	var cands []textSpan
	e.collectLocalIdentity(text, &cands)
	e.collectKnownValues(text, &cands)
	collectEmails(text, &cands)
	e.collectProfilePaths(text, &cands)
	e.collectDomainUsers(text, &cands)
	collectIPv6(text, &cands)
	collectIPv4(text, &cands)
	e.collectHostnames(text, &cands)
	return cands
}

func (e *Engine) collectLocalIdentity(text string, out *[]textSpan) {
	if len(e.localIdentity) < 2 {
		return
	}
	for _, s := range findLiteralSpans(text, e.localIdentity) {
		*out = append(*out, textSpan{start: s[0], end: s[1], cat: CategoryComputer, value: e.localIdentity, priority: 1})
	}
}

// collectKnownValues re-applies every recorded original -> token pair so a
// value tokenized once is caught on every later appearance, whatever the
// detector that found it first.
func (e *Engine) collectKnownValues(text string, out *[]textSpan) {
	type known struct {
		literal string
		repl    string
	}
	e.mu.RLock()
	snapshot := make([]known, 0, 16)
	for _, cat := range []Category{CategoryUser, CategoryComputer, CategoryIP, CategoryEmail, CategoryPath} {
		for original, repl := range e.mapping.table(cat) {
			if len(original) >= 3 {
				snapshot = append(snapshot, known{literal: original, repl: repl})
			}
		}
	}
	e.mu.RUnlock()

	for _, k := range snapshot {
		for _, s := range findLiteralSpans(text, k.literal) {
			*out = append(*out, textSpan{start: s[0], end: s[1], repl: k.repl, priority: 2})
		}
	}
}

func collectEmails(text string, out *[]textSpan) {
	for _, m := range reEmail.FindAllStringIndex(text, -1) {
		*out = append(*out, textSpan{start: m[0], end: m[1], cat: CategoryEmail, value: text[m[0]:m[1]], priority: 3})
	}
}

// collectProfilePaths replaces only the profile segment of
// <drive>:\Users\<segment>\... with a username token.
func (e *Engine) collectProfilePaths(text string, out *[]textSpan) {
	for _, m := range reUserProfile.FindAllStringSubmatchIndex(text, -1) {
		segStart, segEnd := m[2], m[3]
		segment := text[segStart:segEnd]
		if e.isPseudoAccount(segment) {
			continue
		}
		*out = append(*out, textSpan{start: segStart, end: segEnd, cat: CategoryUser, value: segment, priority: 4})
	}
}

func (e *Engine) collectDomainUsers(text string, out *[]textSpan) {
	for _, m := range reDomainUser.FindAllStringIndex(text, -1) {
		// Skip path fragments like ...\Users\name that happen to look
		// like DOMAIN\name.
		if m[0] > 0 && (text[m[0]-1] == '\\' || text[m[0]-1] == ':') {
			continue
		}
		match := text[m[0]:m[1]]
		domain := match[:strings.IndexByte(match, '\\')]
		if strings.EqualFold(domain, "users") || e.isExemptPrincipal(match) {
			continue
		}
		*out = append(*out, textSpan{start: m[0], end: m[1], cat: CategoryUser, value: match, priority: 5})
	}
}

func collectIPv6(text string, out *[]textSpan) {
	isRunByte := func(b byte) bool {
		return b == ':' || b == '.' || (b >= '0' && b <= '9') ||
			(b >= 'a' && b <= 'f') || (b >= 'A' && b <= 'F')
	}
	i := 0
	for i < len(text) {
		if !isRunByte(text[i]) {
			i++
			continue
		}
		j := i
		for j < len(text) && isRunByte(text[j]) {
			j++
		}
		boundedLeft := i == 0 || !isWordByte(text[i-1])
		boundedRight := j == len(text) || !isWordByte(text[j])
		if boundedLeft && boundedRight {
			run := text[i:j]
			for len(run) >= 2 {
				if strings.Count(run, ":") >= 2 && net.ParseIP(run) != nil {
					*out = append(*out, textSpan{start: i, end: i + len(run), cat: CategoryIP, value: run, priority: 6})
					break
				}
				last := run[len(run)-1]
				if last != ':' && last != '.' {
					break
				}
				run = run[:len(run)-1]
			}
		}
		i = j + 1
	}
}

func collectIPv4(text string, out *[]textSpan) {
	for _, m := range reIPv4.FindAllStringIndex(text, -1) {
		// Not part of a longer dotted sequence (e.g. 1.2.3.4.5).
		if m[0] >= 2 && text[m[0]-1] == '.' && isDigit(text[m[0]-2]) {
			continue
		}
		if m[1]+1 < len(text) && text[m[1]] == '.' && isDigit(text[m[1]+1]) {
			continue
		}
		candidate := text[m[0]:m[1]]
		if net.ParseIP(candidate) == nil {
			continue
		}
		*out = append(*out, textSpan{start: m[0], end: m[1], cat: CategoryIP, value: candidate, priority: 7})
	}
}

// collectHostnames applies the conservative hostname heuristic: the name
// must mix letters and digits (SERVER1, DC01) or carry a hyphen with a
// digit (WIN-AB123). Pure words, numeric IDs and well-known technical
// abbreviations never match.
func (e *Engine) collectHostnames(text string, out *[]textSpan) {
	for _, m := range reHostHyphen.FindAllStringIndex(text, -1) {
		match := text[m[0]:m[1]]
		if len(match) > 63 || !containsDigit(match) {
			continue
		}
		// GUID-shaped hex runs are identifiers, not hostnames.
		if len(match) >= 16 && reHexRun.MatchString(match) {
			continue
		}
		first := strings.ToUpper(match[:strings.IndexByte(match, '-')])
		if _, exempt := e.exemptHostWords[first]; exempt {
			continue
		}
		*out = append(*out, textSpan{start: m[0], end: m[1], cat: CategoryComputer, value: match, priority: 8})
	}
	for _, m := range reHostAlnum.FindAllStringIndex(text, -1) {
		match := text[m[0]:m[1]]
		if len(match) < 3 || len(match) > 63 {
			continue
		}
		if _, exempt := e.exemptHostWords[strings.ToUpper(match)]; exempt {
			continue
		}
		base := strings.ToUpper(strings.TrimRight(match, "0123456789"))
		if _, exempt := e.exemptHostWords[base]; exempt {
			continue
		}
		*out = append(*out, textSpan{start: m[0], end: m[1], cat: CategoryComputer, value: match, priority: 8})
	}
}

// findLiteralSpans locates case-insensitive occurrences of literal with
// word-ish boundaries on both sides.
func findLiteralSpans(text, literal string) [][2]int {
	if len(literal) < 2 || len(literal) > len(text) {
		return nil
	}
	lowerText := strings.ToLower(text)
	lowerLit := strings.ToLower(literal)
	var spans [][2]int
	for i := 0; i+len(lowerLit) <= len(lowerText); {
		k := strings.Index(lowerText[i:], lowerLit)
		if k < 0 {
			break
		}
		s := i + k
		end := s + len(lowerLit)
		if boundaryOK(text, s, end) {
			spans = append(spans, [2]int{s, end})
			i = end
		} else {
			i = s + 1
		}
	}
	return spans
}

func boundaryOK(text string, start, end int) bool {
	if start > 0 && isWordByte(text[start-1]) && isWordByte(text[start]) {
		return false
	}
	if end < len(text) && isWordByte(text[end-1]) && isWordByte(text[end]) {
		return false
	}
	return true
}

func overlapsAny(start, end int, spans [][2]int) bool {
	for _, s := range spans {
		if overlaps(start, end, s[0], s[1]) {
			return true
		}
	}
	return false
}

func overlaps(aStart, aEnd, bStart, bEnd int) bool {
	return aStart < bEnd && bStart < aEnd
}

func isWordByte(b byte) bool {
	return b == '_' || (b >= '0' && b <= '9') || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

func containsDigit(s string) bool {
	for i := 0; i < len(s); i++ {
		if isDigit(s[i]) {
			return true
		}
	}
	return false
}
