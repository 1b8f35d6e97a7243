package dispatcher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/blockedby/teamsheet/internal/database"
	"github.com/blockedby/teamsheet/internal/lock"
	"github.com/blockedby/teamsheet/internal/logger"
	"github.com/blockedby/teamsheet/internal/mail"
	"github.com/blockedby/teamsheet/internal/models"
	"github.com/blockedby/teamsheet/internal/repository"
)

const testFrom = "Teamsheet <no-reply@teamsheet.local>"

// mockTransport records sent emails and fails or panics per address.
type mockTransport struct {
	mu       sync.Mutex
	sent     []mail.Email
	failFor  map[string]error
	panicFor map[string]bool
	block    bool
}

func newMockTransport() *mockTransport {
	return &mockTransport{failFor: map[string]error{}, panicFor: map[string]bool{}}
}

func (m *mockTransport) Send(ctx context.Context, email mail.Email) error {
	if m.block {
		<-ctx.Done()
		return ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.panicFor[email.To] {
		panic("transport exploded")
	}
	if err := m.failFor[email.To]; err != nil {
		return err
	}
	m.sent = append(m.sent, email)
	return nil
}

func (m *mockTransport) sentTo() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.sent))
	for i, e := range m.sent {
		out[i] = e.To
	}
	return out
}

func (m *mockTransport) lastTo(to string) (mail.Email, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.sent) - 1; i >= 0; i-- {
		if m.sent[i].To == to {
			return m.sent[i], true
		}
	}
	return mail.Email{}, false
}

// recordingQueue keeps jobs so tests can run them explicitly.
type recordingQueue struct {
	mu   sync.Mutex
	jobs []DispatchJob
	err  error
}

func (q *recordingQueue) Enqueue(_ context.Context, job DispatchJob) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *recordingQueue) last(t *testing.T) DispatchJob {
	t.Helper()
	q.mu.Lock()
	defer q.mu.Unlock()
	require.NotEmpty(t, q.jobs, "expected an enqueued job")
	return q.jobs[len(q.jobs)-1]
}

// captureHub collects broadcast events.
type captureHub struct {
	mu     sync.Mutex
	events []StatusChangeEvent
}

func (h *captureHub) Broadcast(message interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if evt, ok := message.(StatusChangeEvent); ok {
		h.events = append(h.events, evt)
	}
}

type fixture struct {
	db        *gorm.DB
	messages  *repository.MessagesRepository
	roster    *repository.RosterRepository
	transport *mockTransport
	queue     *recordingQueue
	locker    *lock.MemoryLocker
	hub       *captureHub
	processor *Processor
	service   *Service
	group     models.Group
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := database.NewSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate())
	t.Cleanup(db.Close)

	log := logger.Get()
	f := &fixture{
		db:        db.GORM,
		messages:  repository.NewMessagesRepository(db.GORM, log),
		roster:    repository.NewRosterRepository(db.GORM),
		transport: newMockTransport(),
		queue:     &recordingQueue{},
		locker:    lock.NewMemoryLocker(time.Minute),
		hub:       &captureHub{},
	}

	tracker := NewDeliveryTracker(f.messages, f.hub, log)
	f.processor = NewProcessor(f.messages, f.roster, f.transport, tracker, f.locker,
		ProcessorConfig{From: testFrom}, log)
	f.service = NewService(f.messages, f.roster, f.queue, f.locker, nil,
		ServiceConfig{ReadRetries: 2, ReadRetryDelay: time.Millisecond}, log)

	f.group = models.Group{ID: uuid.New(), Name: "U14 Tryouts"}
	require.NoError(t, f.db.Create(&f.group).Error)

	return f
}

func (f *fixture) addPlayer(t *testing.T, first, last, email string) models.Player {
	t.Helper()
	p := models.Player{ID: uuid.New(), GroupID: f.group.ID, FirstName: &first, LastName: &last}
	if email != "" {
		p.Email = &email
	}
	require.NoError(t, f.db.Create(&p).Error)
	return p
}

func (f *fixture) addUser(t *testing.T, first, last, email string, role models.MemberRole) models.User {
	t.Helper()
	u := models.User{ID: uuid.New(), FirstName: &first, LastName: &last, Email: email}
	require.NoError(t, f.db.Create(&u).Error)
	if role != "" {
		require.NoError(t, f.db.Create(&models.GroupMember{GroupID: f.group.ID, UserID: u.ID, Role: role}).Error)
	}
	return u
}

// runLast processes the most recently enqueued job synchronously.
func (f *fixture) runLast(t *testing.T) {
	t.Helper()
	require.NoError(t, f.processor.Process(context.Background(), f.queue.last(t)))
}

func (f *fixture) recipients(t *testing.T, messageID uuid.UUID) []models.MessageRecipient {
	t.Helper()
	recs, err := f.messages.ListRecipients(context.Background(), messageID)
	require.NoError(t, err)
	return recs
}

func playerCandidate(p models.Player) RecipientCandidate {
	id := p.ID
	return RecipientCandidate{PlayerID: &id, Email: *p.Email}
}

func uuidPtr(id uuid.UUID) *uuid.UUID {
	return &id
}

func strPtr(s string) *string {
	return &s
}

var errMailbox = errors.New("550 mailbox unavailable")
