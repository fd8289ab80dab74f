package store

import (
	"context"
	"log/slog"
	"time"

	"claimdrop/core/events"
)

// Indexer records committed settlements as they are emitted.
type Indexer struct {
	store   *Store
	logger  *slog.Logger
	timeout time.Duration
	now     func() time.Time
}

// NewIndexer returns an emitter writing settlements to s.
func NewIndexer(s *Store, logger *slog.Logger) *Indexer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{store: s, logger: logger, timeout: 5 * time.Second, now: time.Now}
}

// Emit implements events.Emitter. Other event types are ignored.
func (i *Indexer) Emit(evt events.Event) {
	if i == nil || i.store == nil {
		return
	}
	settled, ok := evt.(events.AirdropClaimSettled)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), i.timeout)
	defer cancel()
	record := FromEvent(settled, i.now())
	if err := i.store.Record(ctx, record); err != nil {
		i.logger.Error("index settlement failed",
			"instance", record.Instance,
			"beneficiary", record.Beneficiary,
			"error", err)
	}
}
