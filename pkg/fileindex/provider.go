package fileindex

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/codemonkeychris/sysmcp-sub003/pkg/common/logger"
	"github.com/codemonkeychris/sysmcp-sub003/pkg/common/models"
)

// Provider yields raw indexed file metadata. Output carries real profile
// paths and author names; only the Service may hand it to clients.
type Provider interface {
	Search(ctx context.Context, query models.FileSearchQuery) ([]models.FileEntry, error)
}

// JSONLProvider reads file metadata from a JSON-lines index export.
type JSONLProvider struct {
	path string
}

func NewJSONLProvider(path string) *JSONLProvider {
	return &JSONLProvider{path: path}
}

func (p *JSONLProvider) Search(ctx context.Context, query models.FileSearchQuery) ([]models.FileEntry, error) {
	f, err := os.Open(p.path)
	if err != nil {
		return nil, fmt.Errorf("open file index source: %w", err)
	}
	defer f.Close()

	var entries []models.FileEntry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var entry models.FileEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			logger.Log.WithError(err).Warn("skipping malformed file index line")
			continue
		}
		if !matches(entry, query) {
			continue
		}
		entries = append(entries, entry)
		if query.MaxResults > 0 && len(entries) >= query.MaxResults {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read file index source: %w", err)
	}
	return entries, nil
}

func matches(entry models.FileEntry, query models.FileSearchQuery) bool {
	if query.Extension != "" && !strings.EqualFold(strings.TrimPrefix(entry.Extension, "."), strings.TrimPrefix(query.Extension, ".")) {
		return false
	}
	if query.NamePattern != "" {
		ok, err := filepath.Match(strings.ToLower(query.NamePattern), strings.ToLower(entry.FileName))
		if err != nil || !ok {
			return false
		}
	}
	return true
}

// StaticProvider serves a fixed entry set.
type StaticProvider struct {
	Entries []models.FileEntry
}

func (p *StaticProvider) Search(ctx context.Context, query models.FileSearchQuery) ([]models.FileEntry, error) {
	var out []models.FileEntry
	for _, entry := range p.Entries {
		if matches(entry, query) {
			out = append(out, entry)
			if query.MaxResults > 0 && len(out) >= query.MaxResults {
				break
			}
		}
	}
	return out, nil
}
