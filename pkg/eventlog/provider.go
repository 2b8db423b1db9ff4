package eventlog

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/codemonkeychris/sysmcp-sub003/pkg/common/logger"
	"github.com/codemonkeychris/sysmcp-sub003/pkg/common/models"
)

// Provider yields raw, un-redacted event log records. Whatever the
// implementation, callers must not hand its output past the process
// boundary without redaction.
type Provider interface {
	Query(ctx context.Context, filter models.EventLogFilter) ([]models.EventLogRecord, error)
}

// JSONLProvider reads records from a JSON-lines export, one record per
// line. Used where the live OS event log is not reachable (tests,
// replayed captures, non-Windows hosts).
type JSONLProvider struct {
	path string
}

func NewJSONLProvider(path string) *JSONLProvider {
	return &JSONLProvider{path: path}
}

func (p *JSONLProvider) Query(ctx context.Context, filter models.EventLogFilter) ([]models.EventLogRecord, error) {
	f, err := os.Open(p.path)
	if err != nil {
		return nil, fmt.Errorf("open event log source: %w", err)
	}
	defer f.Close()

	var records []models.EventLogRecord
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
		var rec models.EventLogRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			logger.Log.WithError(err).Warn("skipping malformed event log line")
			continue
		}
		if !matches(rec, filter) {
			continue
		}
		records = append(records, rec)
		if filter.MaxEvents > 0 && len(records) >= filter.MaxEvents {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read event log source: %w", err)
	}
	return records, nil
}

func matches(rec models.EventLogRecord, filter models.EventLogFilter) bool {
	if filter.Channel != "" && !strings.EqualFold(rec.Channel, filter.Channel) {
		return false
	}
	if filter.Level != "" && !strings.EqualFold(rec.Level, filter.Level) {
		return false
	}
	if filter.Provider != "" && !strings.EqualFold(rec.Provider, filter.Provider) {
		return false
	}
	if filter.EventID != 0 && rec.EventID != filter.EventID {
		return false
	}
	if filter.Since != nil && rec.TimeCreated.Before(*filter.Since) {
		return false
	}
	if filter.Until != nil && rec.TimeCreated.After(*filter.Until) {
		return false
	}
	return true
}

// StaticProvider serves a fixed record set.
type StaticProvider struct {
	Records []models.EventLogRecord
}

func (p *StaticProvider) Query(ctx context.Context, filter models.EventLogFilter) ([]models.EventLogRecord, error) {
	var out []models.EventLogRecord
	for _, rec := range p.Records {
		if matches(rec, filter) {
			out = append(out, rec)
			if filter.MaxEvents > 0 && len(out) >= filter.MaxEvents {
				break
			}
		}
	}
	return out, nil
}
