package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/codemonkeychris/sysmcp-sub003/pkg/common/kafka"
	"github.com/codemonkeychris/sysmcp-sub003/pkg/common/logger"
)

// Service records who queried what. Audit parameters are stored as given
// by the query layer; result payloads never pass through here, so the
// trail cannot leak PII the engine already redacted.
type Service struct {
	repo     *Repository
	producer *kafka.Producer
	source   string
}

// NewService accepts nil for either sink; recording degrades to whatever
// is configured and never fails the query path.
func NewService(repo *Repository, producer *kafka.Producer, source string) *Service {
	return &Service{repo: repo, producer: producer, source: source}
}

func (s *Service) Record(ctx context.Context, actor, operation string, params map[string]interface{}, resultCount int) {
	if s == nil {
		return
	}

	paramBytes, err := json.Marshal(params)
	if err != nil {
		paramBytes = []byte("{}")
	}

	if s.repo != nil {
		record := &Record{
			ID:          uuid.New().String(),
			Actor:       actor,
			Operation:   operation,
			Parameters:  datatypes.JSON(paramBytes),
			ResultCount: resultCount,
			CreatedAt:   time.Now().UTC(),
		}
		if err := s.repo.Save(ctx, record); err != nil {
			logger.Log.WithError(err).WithField("operation", operation).Error("failed to persist audit record")
		}
	}

	if s.producer != nil {
		payload := map[string]interface{}{
			"actor":        actor,
			"operation":    operation,
			"parameters":   params,
			"result_count": resultCount,
		}
		if err := s.producer.PublishEvent(ctx, "query-audit", s.source, payload); err != nil {
			logger.Log.WithError(err).WithField("operation", operation).Error("failed to publish audit event")
		}
	}
}
