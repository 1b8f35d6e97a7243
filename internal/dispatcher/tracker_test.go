package dispatcher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockedby/teamsheet/internal/logger"
	"github.com/blockedby/teamsheet/internal/models"
)

type mockStatusStore struct {
	calls []string
	ok    bool
	err   error
}

func (m *mockStatusStore) TransitionRecipient(_ context.Context, _ uuid.UUID, from, to models.DeliveryStatus, _ time.Time, _ *string) (bool, error) {
	m.calls = append(m.calls, string(from)+"->"+string(to))
	return m.ok, m.err
}

func TestDeliveryTracker_ValidateTransition(t *testing.T) {
	tracker := NewDeliveryTracker(&mockStatusStore{}, nil, logger.Get())

	tests := []struct {
		from, to DeliveryStatus
		valid    bool
	}{
		{StatusPending, StatusProcessing, true},
		{StatusPending, StatusFailed, true},
		{StatusPending, StatusSent, false},
		{StatusProcessing, StatusSent, true},
		{StatusProcessing, StatusFailed, true},
		{StatusProcessing, StatusPending, false},
		{StatusSent, StatusPending, false},
		{StatusSent, StatusFailed, false},
		{StatusFailed, StatusPending, true},
		{StatusFailed, StatusSent, false},
		{"UNKNOWN", StatusPending, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.valid, tracker.ValidateTransition(tt.from, tt.to))
		})
	}
}

func TestDeliveryTracker_Lifecycle(t *testing.T) {
	store := &mockStatusStore{ok: true}
	hub := &captureHub{}
	tracker := NewDeliveryTracker(store, hub, logger.Get())
	fixed := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	tracker.now = func() time.Time { return fixed }

	rec := &models.MessageRecipient{ID: uuid.New(), MessageID: uuid.New(), Email: "a@b.com", Status: StatusPending}

	started, err := tracker.TrackStart(context.Background(), rec)
	require.NoError(t, err)
	assert.True(t, started)
	assert.Equal(t, StatusProcessing, rec.Status)
	assert.Equal(t, 1, rec.Attempts)

	require.NoError(t, tracker.TrackFailure(context.Background(), rec, errors.New("bounced")))
	assert.Equal(t, StatusFailed, rec.Status)
	require.NotNil(t, rec.LastError)
	assert.Equal(t, "bounced", *rec.LastError)
	assert.Equal(t, fixed, *rec.StatusUpdatedAt)

	assert.Equal(t, []string{"PENDING->PROCESSING", "PROCESSING->FAILED"}, store.calls)
	require.Len(t, hub.events, 2)
	assert.Equal(t, EventRecipientStatus, hub.events[1].Type)
	assert.Equal(t, "PROCESSING", hub.events[1].PreviousStatus)
	assert.Equal(t, "FAILED", hub.events[1].CurrentStatus)
	assert.Equal(t, "bounced", hub.events[1].Error)
}

func TestDeliveryTracker_LostRace(t *testing.T) {
	store := &mockStatusStore{ok: false}
	hub := &captureHub{}
	tracker := NewDeliveryTracker(store, hub, logger.Get())
	rec := &models.MessageRecipient{ID: uuid.New(), Status: StatusPending}

	started, err := tracker.TrackStart(context.Background(), rec)
	require.NoError(t, err)
	assert.False(t, started)
	assert.Equal(t, StatusPending, rec.Status, "unchanged when another writer won")
	assert.Empty(t, hub.events)
}

func TestDeliveryTracker_StoreError(t *testing.T) {
	store := &mockStatusStore{err: errors.New("db down")}
	tracker := NewDeliveryTracker(store, nil, logger.Get())
	rec := &models.MessageRecipient{ID: uuid.New(), Status: StatusProcessing}

	err := tracker.TrackSuccess(context.Background(), rec)
	assert.ErrorContains(t, err, "db down")
	assert.Equal(t, StatusProcessing, rec.Status)
}
