package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"mdmc/internal/events"
	"mdmc/internal/mail"
	"mdmc/internal/models"
	"mdmc/internal/store"
)

type stubAccounts map[string]*models.Account

func (s stubAccounts) Get(_ context.Context, id string) (*models.Account, error) {
	if a, ok := s[id]; ok {
		return a, nil
	}
	return nil, store.ErrNotFound
}

type stubPruner struct {
	n   int
	err error
}

func (p stubPruner) PruneRefreshTokens(context.Context) (int, error) { return p.n, p.err }

type stubOverdue map[string]int64

func (o stubOverdue) OverdueByAssignee(context.Context) (map[string]int64, error) { return o, nil }

func emailTask(t *testing.T, taskType string, p EmailPayload) *asynq.Task {
	t.Helper()
	body, err := json.Marshal(p)
	require.NoError(t, err)
	return asynq.NewTask(taskType, body)
}

func TestHandleEmail(t *testing.T) {
	sender := mail.NewLogSender()
	h := NewTaskHandler(sender, stubAccounts{}, stubPruner{}, stubOverdue{}, "https://crm.example.com")
	ctx := context.Background()

	require.NoError(t, h.HandleEmail(ctx, emailTask(t, TypePasswordResetEmail, EmailPayload{
		Email: "ada@example.com", FirstName: "Ada", Token: "tok123",
	})))
	require.NoError(t, h.HandleEmail(ctx, emailTask(t, TypeVerificationEmail, EmailPayload{
		Email: "ada@example.com", FirstName: "Ada", Token: "ver456",
	})))
	require.NoError(t, h.HandleEmail(ctx, emailTask(t, TypeWelcomeEmail, EmailPayload{
		Email: "ada@example.com", FirstName: "Ada",
	})))

	sent := sender.Sent()
	require.Len(t, sent, 3)
	assert.Contains(t, sent[0].Text, "https://crm.example.com/reset-password/tok123")
	assert.Contains(t, sent[1].Text, "https://crm.example.com/verify-email/ver456")
	assert.Equal(t, "Welcome to MDMC", sent[2].Subject)
}

func TestHandleEmailSkipsRetryOnBadInput(t *testing.T) {
	h := NewTaskHandler(mail.NewLogSender(), stubAccounts{}, stubPruner{}, stubOverdue{}, "")
	ctx := context.Background()

	err := h.HandleEmail(ctx, asynq.NewTask(TypeWelcomeEmail, []byte("{")))
	assert.True(t, errors.Is(err, asynq.SkipRetry))

	err = h.HandleEmail(ctx, emailTask(t, TypeWelcomeEmail, EmailPayload{}))
	assert.True(t, errors.Is(err, asynq.SkipRetry))

	err = h.HandleEmail(ctx, emailTask(t, "email:unknown", EmailPayload{Email: "a@example.com"}))
	assert.True(t, errors.Is(err, asynq.SkipRetry))
}

func TestHandleOverdueDigest(t *testing.T) {
	sender := mail.NewLogSender()
	accounts := stubAccounts{
		"a1": {Base: models.Base{ID: "a1"}, Email: "one@example.com", FirstName: "One", IsActive: true},
		"a2": {Base: models.Base{ID: "a2"}, Email: "two@example.com", FirstName: "Two", IsActive: false},
	}
	h := NewTaskHandler(sender, accounts, stubPruner{}, stubOverdue{"a1": 2, "a2": 4, "gone": 1}, "https://crm.example.com")

	require.NoError(t, h.HandleOverdueDigest(context.Background(), asynq.NewTask(TypeOverdueDigest, nil)))

	sent := sender.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "one@example.com", sent[0].To)
	assert.Contains(t, sent[0].Text, "2 leads")
}

type mockPruner struct {
	mock.Mock
}

func (m *mockPruner) PruneRefreshTokens(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func TestHandlePruneRefreshTokens(t *testing.T) {
	ok := &mockPruner{}
	ok.On("PruneRefreshTokens", mock.Anything).Return(3, nil).Once()
	h := NewTaskHandler(mail.NewLogSender(), stubAccounts{}, ok, stubOverdue{}, "")
	assert.NoError(t, h.HandlePruneRefreshTokens(context.Background(), nil))
	ok.AssertExpectations(t)

	failing := &mockPruner{}
	failing.On("PruneRefreshTokens", mock.Anything).Return(0, errors.New("boom")).Once()
	h = NewTaskHandler(mail.NewLogSender(), stubAccounts{}, failing, stubOverdue{}, "")
	assert.Error(t, h.HandlePruneRefreshTokens(context.Background(), nil))
	failing.AssertExpectations(t)
}

type recordingEnqueuer struct {
	mu    sync.Mutex
	types []string
	last  EmailPayload
}

func (r *recordingEnqueuer) EnqueueEmail(_ context.Context, taskType string, p EmailPayload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types = append(r.types, taskType)
	r.last = p
	return nil
}

func (r *recordingEnqueuer) seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.types...)
}

func TestBridge(t *testing.T) {
	events.Reset()
	t.Cleanup(events.Reset)

	enq := &recordingEnqueuer{}
	Bridge(enq)

	events.Emit(events.AccountPasswordResetRequest, events.AccountMail{AccountID: "a1", Email: "ada@example.com", Token: "raw"})
	assert.Eventually(t, func() bool { return len(enq.seen()) == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{TypePasswordResetEmail}, enq.seen())

	enq.mu.Lock()
	assert.Equal(t, "raw", enq.last.Token)
	enq.mu.Unlock()

	events.Emit(events.AccountRegistered, "not a payload")
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, enq.seen(), 1)
}

func TestPeriodicSpecs(t *testing.T) {
	for _, p := range PeriodicTasks {
		assert.NoError(t, ValidateSpec(p.Spec), p.TaskType)
	}
	assert.Error(t, ValidateSpec("every hour"))
}
