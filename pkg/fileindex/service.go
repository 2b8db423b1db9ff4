package fileindex

import (
	"context"

	"github.com/codemonkeychris/sysmcp-sub003/pkg/anonymizer"
	"github.com/codemonkeychris/sysmcp-sub003/pkg/common/models"
	"github.com/codemonkeychris/sysmcp-sub003/pkg/observability/metrics"
)

// Service is the outbound boundary for file metadata: paths and authors
// are tokenized before any entry leaves the process.
type Service struct {
	provider  Provider
	paths     *anonymizer.PathAnonymizer
	anonymize bool
}

func NewService(provider Provider, paths *anonymizer.PathAnonymizer, anonymize bool) *Service {
	return &Service{provider: provider, paths: paths, anonymize: anonymize}
}

func (s *Service) Search(ctx context.Context, query models.FileSearchQuery) (models.FileSearchResponse, error) {
	entries, err := s.provider.Search(ctx, query)
	if err != nil {
		return models.FileSearchResponse{}, err
	}

	if s.anonymize {
		entries = s.paths.AnonymizeEntries(entries)
	}
	metrics.ObserveFileSearch(len(entries))

	return models.FileSearchResponse{
		Entries:    entries,
		Count:      len(entries),
		Anonymized: s.anonymize,
	}, nil
}
