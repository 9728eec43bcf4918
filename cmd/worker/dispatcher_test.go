package main

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mercato-labs/mercato-backend/pkg/config"
	"github.com/mercato-labs/mercato-backend/pkg/db/models"
	"github.com/mercato-labs/mercato-backend/pkg/enums"
	"github.com/mercato-labs/mercato-backend/pkg/logger"
	"github.com/mercato-labs/mercato-backend/pkg/outbox"
	"github.com/mercato-labs/mercato-backend/pkg/outbox/payloads"
	"github.com/mercato-labs/mercato-backend/pkg/outbox/registry"
)

type fakeDB struct{}

func (fakeDB) Ping(context.Context) error { return nil }

func (fakeDB) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type fakeRepo struct {
	events    []models.OutboxEvent
	published []uuid.UUID
	failed    []uuid.UUID
	terminal  []uuid.UUID
}

func (f *fakeRepo) FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error) {
	return f.events, nil
}

func (f *fakeRepo) MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error {
	f.published = append(f.published, id)
	return nil
}

func (f *fakeRepo) MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error {
	f.failed = append(f.failed, id)
	return nil
}

func (f *fakeRepo) MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error {
	f.terminal = append(f.terminal, id)
	return nil
}

type fakeDLQRepo struct {
	entries []models.OutboxDLQ
}

func (f *fakeDLQRepo) InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error {
	f.entries = append(f.entries, entry)
	return nil
}

type fakeSink struct {
	errs       map[uuid.UUID]error
	dispatched []uuid.UUID
}

func (f *fakeSink) Dispatch(_ context.Context, event models.OutboxEvent, _ *registry.ResolvedEvent) error {
	if err, ok := f.errs[event.ID]; ok {
		return err
	}
	f.dispatched = append(f.dispatched, event.ID)
	return nil
}

func newTestDispatcher(t *testing.T, repo *fakeRepo, dlq *fakeDLQRepo, sink *fakeSink) *Dispatcher {
	t.Helper()
	dispatcher, err := NewDispatcher(DispatcherParams{
		Config:     &config.Config{},
		Logger:     logger.New(logger.Options{ServiceName: "test"}),
		DB:         fakeDB{},
		Repository: repo,
		DLQ:        dlq,
		Registry:   registry.NewEventRegistry(),
		Sink:       sink,
	})
	if err != nil {
		t.Fatalf("NewDispatcher: %v", err)
	}
	return dispatcher
}

func mustEnvelopePayload(t *testing.T, data any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	envelope, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       raw,
	})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return envelope
}

func orderCreatedRow(t *testing.T) models.OutboxEvent {
	t.Helper()
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload: mustEnvelopePayload(t, payloads.OrderCreatedEvent{
			OrderID:     uuid.New(),
			UserID:      uuid.New(),
			TotalAmount: "25.00",
			ItemCount:   1,
		}),
	}
}

func TestProcessBatchContinuesAfterTransientFailure(t *testing.T) {
	first := orderCreatedRow(t)
	second := orderCreatedRow(t)
	repo := &fakeRepo{events: []models.OutboxEvent{first, second}}
	dlq := &fakeDLQRepo{}
	sink := &fakeSink{errs: map[uuid.UUID]error{first.ID: errors.New("smtp timeout")}}
	dispatcher := newTestDispatcher(t, repo, dlq, sink)

	processed, err := dispatcher.processBatch(context.Background())
	if err != nil {
		t.Fatalf("processBatch: %v", err)
	}
	if !processed {
		t.Fatal("expected batch to report processed")
	}
	if len(repo.failed) != 1 || repo.failed[0] != first.ID {
		t.Fatalf("unexpected failed rows: %v", repo.failed)
	}
	if len(repo.published) != 1 || repo.published[0] != second.ID {
		t.Fatalf("unexpected published rows: %v", repo.published)
	}
	if len(dlq.entries) != 0 {
		t.Fatalf("expected no dlq entries, got %d", len(dlq.entries))
	}
}

func TestProcessBatchParksNonRetryableFailures(t *testing.T) {
	row := orderCreatedRow(t)
	repo := &fakeRepo{events: []models.OutboxEvent{row}}
	dlq := &fakeDLQRepo{}
	sink := &fakeSink{errs: map[uuid.UUID]error{
		row.ID: registry.NewNonRetryableError(errors.New("recipient gone")),
	}}
	dispatcher := newTestDispatcher(t, repo, dlq, sink)

	if _, err := dispatcher.processBatch(context.Background()); err != nil {
		t.Fatalf("processBatch: %v", err)
	}
	if len(repo.terminal) != 1 || repo.terminal[0] != row.ID {
		t.Fatalf("expected row marked terminal, got %v", repo.terminal)
	}
	if len(dlq.entries) != 1 {
		t.Fatalf("expected one dlq entry, got %d", len(dlq.entries))
	}
	if dlq.entries[0].ErrorReason != enums.DLQReasonHandlerFailed {
		t.Fatalf("unexpected dlq reason %s", dlq.entries[0].ErrorReason)
	}
}

func TestProcessBatchDeadLettersAfterMaxAttempts(t *testing.T) {
	row := orderCreatedRow(t)
	row.AttemptCount = defaultMaxAttempts - 1
	repo := &fakeRepo{events: []models.OutboxEvent{row}}
	dlq := &fakeDLQRepo{}
	sink := &fakeSink{errs: map[uuid.UUID]error{row.ID: errors.New("still failing")}}
	dispatcher := newTestDispatcher(t, repo, dlq, sink)

	if _, err := dispatcher.processBatch(context.Background()); err != nil {
		t.Fatalf("processBatch: %v", err)
	}
	if len(repo.failed) != 0 {
		t.Fatalf("expected no retry marks, got %v", repo.failed)
	}
	if len(dlq.entries) != 1 || dlq.entries[0].ErrorReason != enums.DLQReasonMaxAttempts {
		t.Fatalf("expected max-attempts dlq entry, got %+v", dlq.entries)
	}
}

func TestProcessBatchDeadLettersUndecodableRows(t *testing.T) {
	row := models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{"not":"an envelope"`),
	}
	repo := &fakeRepo{events: []models.OutboxEvent{row}}
	dlq := &fakeDLQRepo{}
	sink := &fakeSink{}
	dispatcher := newTestDispatcher(t, repo, dlq, sink)

	if _, err := dispatcher.processBatch(context.Background()); err != nil {
		t.Fatalf("processBatch: %v", err)
	}
	if len(sink.dispatched) != 0 {
		t.Fatal("undecodable row must not reach the sink")
	}
	if len(dlq.entries) != 1 || dlq.entries[0].ErrorReason != enums.DLQReasonDecodeFailed {
		t.Fatalf("expected decode-failed dlq entry, got %+v", dlq.entries)
	}
}

func TestProcessBatchEmpty(t *testing.T) {
	dispatcher := newTestDispatcher(t, &fakeRepo{}, &fakeDLQRepo{}, &fakeSink{})

	processed, err := dispatcher.processBatch(context.Background())
	if err != nil {
		t.Fatalf("processBatch: %v", err)
	}
	if processed {
		t.Fatal("expected empty batch to report not processed")
	}
}
