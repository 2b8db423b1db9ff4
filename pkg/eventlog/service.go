package eventlog

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/codemonkeychris/sysmcp-sub003/pkg/anonymizer"
	"github.com/codemonkeychris/sysmcp-sub003/pkg/common/logger"
	"github.com/codemonkeychris/sysmcp-sub003/pkg/common/models"
	"github.com/codemonkeychris/sysmcp-sub003/pkg/observability/metrics"
)

// Service is the outbound boundary for event log data: every record it
// returns has passed through the anonymization engine when redaction is
// enabled. The cache stores already-redacted responses, so a hit can never
// bypass the engine.
type Service struct {
	provider  Provider
	engine    *anonymizer.Engine
	anonymize bool
	cache     *redis.Client
	cacheTTL  time.Duration
}

func NewService(provider Provider, engine *anonymizer.Engine, anonymize bool) *Service {
	return &Service{provider: provider, engine: engine, anonymize: anonymize}
}

// WithCache enables the Redis result cache.
func (s *Service) WithCache(client *redis.Client, ttl time.Duration) *Service {
	s.cache = client
	s.cacheTTL = ttl
	return s
}

func (s *Service) Query(ctx context.Context, filter models.EventLogFilter) (models.EventQueryResponse, error) {
	cacheKey := s.cacheKey(filter)
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, cacheKey).Bytes(); err == nil {
			var resp models.EventQueryResponse
			if err := json.Unmarshal(cached, &resp); err == nil {
				metrics.ObserveCache(true)
				return resp, nil
			}
		}
		metrics.ObserveCache(false)
	}

	records, err := s.provider.Query(ctx, filter)
	if err != nil {
		return models.EventQueryResponse{}, err
	}

	if s.anonymize {
		for i, rec := range records {
			records[i] = s.engine.RedactRecord(rec)
		}
	}
	metrics.ObserveEventQuery(len(records))

	resp := models.EventQueryResponse{
		Records:    records,
		Count:      len(records),
		Anonymized: s.anonymize,
	}

	if s.cache != nil {
		if data, err := json.Marshal(resp); err == nil {
			if err := s.cache.Set(ctx, cacheKey, data, s.cacheTTL).Err(); err != nil {
				logger.Log.WithError(err).Debug("event query cache write failed")
			}
		}
	}

	return resp, nil
}

func (s *Service) cacheKey(filter models.EventLogFilter) string {
	data, _ := json.Marshal(filter)
	sum := sha256.Sum256(data)
	return "eventlog:query:" + hex.EncodeToString(sum[:8])
}
