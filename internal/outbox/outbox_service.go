package outbox

import (
	"context"
	"encoding/json"
	"time"

	"go-surplus-storefront/internal/messaging/kafka/producer"
	"go-surplus-storefront/internal/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const batchSize = 10

// Recorder is a producer.Publisher that only writes to the outbox; the
// Processor relays later.
type Recorder struct {
	repo Repository
}

func NewRecorder(repo Repository) *Recorder {
	return &Recorder{repo: repo}
}

func (r *Recorder) Publish(ctx context.Context, e producer.Event) error {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return err
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	return r.repo.Append(ctx, Record{
		ID:            uuid.New(),
		EventType:     e.Type,
		AggregateType: e.AggregateType,
		AggregateID:   e.AggregateID,
		Payload:       payload,
		CreatedAt:     e.OccurredAt,
	})
}

type Processor struct {
	repo      Repository
	publisher producer.Publisher
	interval  time.Duration
	logger    *zap.Logger
}

func NewProcessor(repo Repository, publisher producer.Publisher, interval time.Duration, l ...*zap.Logger) *Processor {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Processor{
		repo:      repo,
		publisher: publisher,
		interval:  interval,
		logger:    logger.Named("outbox.processor", l...),
	}
}

func (p *Processor) Start(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.Info("outbox processor started", zap.Duration("interval", p.interval))

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := p.ProcessPending(ctx); err != nil {
				p.logger.Warn("outbox fetch failed", zap.Error(err))
			}
		}
	}
}

// ProcessPending relays one batch and reports how many records were sent.
// A record that fails to publish stays pending for the next tick.
func (p *Processor) ProcessPending(ctx context.Context) (int, error) {
	records, err := p.repo.ListPending(ctx, batchSize)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, rec := range records {
		err := p.publisher.Publish(ctx, producer.Event{
			Type:          rec.EventType,
			AggregateType: rec.AggregateType,
			AggregateID:   rec.AggregateID,
			Payload:       rec.Payload,
			OccurredAt:    rec.CreatedAt,
		})
		if err != nil {
			p.logger.Warn("publish failed", zap.String("event_id", rec.ID.String()), zap.Error(err))
			break
		}

		if err := p.repo.MarkSent(ctx, rec.ID); err != nil {
			p.logger.Warn("mark sent failed", zap.String("event_id", rec.ID.String()), zap.Error(err))
			break
		}
		sent++
	}

	if sent > 0 {
		p.logger.Debug("outbox relayed", zap.Int("sent", sent))
	}
	return sent, nil
}
