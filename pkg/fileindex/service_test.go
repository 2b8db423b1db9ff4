package fileindex

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codemonkeychris/sysmcp-sub003/pkg/anonymizer"
	"github.com/codemonkeychris/sysmcp-sub003/pkg/common/models"
)

func sampleEntries() []models.FileEntry {
	return []models.FileEntry{
		{
			Path:      `C:\Users\john.doe\Documents\report.pdf`,
			FileName:  "report.pdf",
			Extension: ".pdf",
			SizeBytes: 10240,
			Author:    "john.doe",
			Title:     "Annual report",
		},
		{
			Path:      `C:\Users\Public\shared.txt`,
			FileName:  "shared.txt",
			Extension: ".txt",
			SizeBytes: 64,
		},
	}
}

func newTestService(anonymize bool) *Service {
	engine := anonymizer.NewEngine(nil, anonymizer.DefaultPolicy())
	return NewService(&StaticProvider{Entries: sampleEntries()}, anonymizer.NewPathAnonymizer(engine), anonymize)
}

func TestServiceSearchAnonymizesEntries(t *testing.T) {
	service := newTestService(true)

	resp, err := service.Search(context.Background(), models.FileSearchQuery{})
	require.NoError(t, err)
	require.Equal(t, 2, resp.Count)
	assert.True(t, resp.Anonymized)

	first := resp.Entries[0]
	assert.NotContains(t, first.Path, "john.doe")
	assert.True(t, strings.HasSuffix(first.Path, `\Documents\report.pdf`), "suffix must survive: %q", first.Path)
	assert.Contains(t, first.Author, "[ANON_USER_")
	assert.Equal(t, "report.pdf", first.FileName)
	assert.Equal(t, "Annual report", first.Title)

	// Shared profile stays readable.
	assert.Equal(t, `C:\Users\Public\shared.txt`, resp.Entries[1].Path)
}

func TestServiceSearchPassthroughWhenDisabled(t *testing.T) {
	service := newTestService(false)

	resp, err := service.Search(context.Background(), models.FileSearchQuery{})
	require.NoError(t, err)
	assert.False(t, resp.Anonymized)
	assert.Equal(t, `C:\Users\john.doe\Documents\report.pdf`, resp.Entries[0].Path)
}

func TestServiceSearchFilters(t *testing.T) {
	service := newTestService(true)

	resp, err := service.Search(context.Background(), models.FileSearchQuery{Extension: "txt"})
	require.NoError(t, err)
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, "shared.txt", resp.Entries[0].FileName)

	resp, err = service.Search(context.Background(), models.FileSearchQuery{NamePattern: "report.*"})
	require.NoError(t, err)
	require.Equal(t, 1, resp.Count)
}

func TestJSONLProvider(t *testing.T) {
	path := t.TempDir() + "/index.jsonl"
	lines := `{"path":"C:\\Users\\jdoe\\a.txt","file_name":"a.txt","extension":".txt"}
{"path":"D:\\data\\b.csv","file_name":"b.csv","extension":".csv"}`
	require.NoError(t, os.WriteFile(path, []byte(lines), 0o600))

	provider := NewJSONLProvider(path)
	entries, err := provider.Search(context.Background(), models.FileSearchQuery{Extension: ".csv"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "b.csv", entries[0].FileName)
}
