package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	kafkax "github.com/optilens/fulfillment/internal/kafka"
	"github.com/optilens/fulfillment/internal/orders"
	"github.com/optilens/fulfillment/internal/redisx"
)

// Service consumes the audit topic and persists audit rows. The
// producers treat the topic as fire-and-forget, so this worker is the
// only place audit records become durable.
type Service struct {
	Repo  *Repo
	Redis *redis.Client
	Log   *zap.Logger
}

// HandleAuditEvent is installed as the consumer handler.
func (s *Service) HandleAuditEvent(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		// poison message; log and commit past it
		s.Log.Warn("undecodable audit event", zap.Error(err))
		return nil
	}
	if env.EventType != orders.EventAuditRecord {
		return nil
	}

	// dedup by event_id so redelivery never double-writes a row
	dkey := fmt.Sprintf(redisx.KeyDedup, "auditor", env.EventID)
	exists, _ := redisx.Exists(ctx, s.Redis, dkey)
	if exists {
		return nil
	}

	rec, err := kafkax.UnwrapPayload[orders.AuditRecordPayload](env.Payload)
	if err != nil {
		s.Log.Warn("undecodable audit payload", zap.String("event_id", env.EventID), zap.Error(err))
		return nil
	}

	if err := s.Repo.Insert(ctx, rec); err != nil {
		return err
	}
	_ = s.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()
	return nil
}
