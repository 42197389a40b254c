package jobs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wneessen/go-mail"

	jobmetrics "github.com/odyssey-erp/gatekeeper/internal/jobs"
	"github.com/odyssey-erp/gatekeeper/internal/shared"
	"github.com/odyssey-erp/gatekeeper/internal/users"
)

// ============================================================================
// FAKES
// ============================================================================

type fakeEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (f *fakeEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{Type: task.Type()}, nil
}

type fakeMailer struct {
	sent []Message
	err  error
}

func (f *fakeMailer) Send(ctx context.Context, msg Message) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

type fakePurger struct {
	cutoff  time.Time
	removed int64
	err     error
}

func (f *fakePurger) PurgeConsumed(ctx context.Context, cutoff time.Time) (int64, error) {
	f.cutoff = cutoff
	return f.removed, f.err
}

type fakeInspector struct {
	pending map[string]int
	err     error
}

func (f fakeInspector) Queues() ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	queues := make([]string, 0, len(f.pending))
	for q := range f.pending {
		queues = append(queues, q)
	}
	return queues, nil
}

func (f fakeInspector) GetQueueInfo(queue string) (*asynq.QueueInfo, error) {
	pending, ok := f.pending[queue]
	if !ok {
		return nil, fmt.Errorf("NOT_FOUND: queue %q does not exist", queue)
	}
	return &asynq.QueueInfo{Queue: queue, Pending: pending}, nil
}

// ============================================================================
// DISPATCHER
// ============================================================================

func TestDispatcherEnqueuesCodeTask(t *testing.T) {
	enqueuer := &fakeEnqueuer{}
	dispatcher := NewDispatcher(enqueuer)

	user := users.User{ID: "U1", Email: "ana@example.test", FirstName: "Ana", LastName: "Lopez"}
	require.NoError(t, dispatcher.SendTwoFactorCode(context.Background(), user, "48213"))
	require.Len(t, enqueuer.tasks, 1)

	task := enqueuer.tasks[0]
	assert.Equal(t, TaskTypeSendTwoFactorCode, task.Type())
	var payload TwoFactorCodePayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	assert.Equal(t, TwoFactorCodePayload{UserID: "U1", Email: "ana@example.test", Name: "Ana Lopez", Code: "48213"}, payload)
}

func TestDispatcherQueueFailureIsStoreUnavailable(t *testing.T) {
	dispatcher := NewDispatcher(&fakeEnqueuer{err: errors.New("redis: connection refused")})
	err := dispatcher.SendTwoFactorCode(context.Background(), users.User{ID: "U1", Email: "a@b.test"}, "12345")
	assert.ErrorIs(t, err, shared.ErrStoreUnavailable)
}

// ============================================================================
// MAIL JOB
// ============================================================================

func codeTask(t *testing.T, payload TwoFactorCodePayload) *asynq.Task {
	t.Helper()
	task, err := NewTwoFactorCodeTask(payload)
	require.NoError(t, err)
	return task
}

func TestTwoFactorMailJobSendsCode(t *testing.T) {
	mailer := &fakeMailer{}
	job := NewTwoFactorMailJob(mailer, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))

	err := job.Handle(context.Background(), codeTask(t, TwoFactorCodePayload{UserID: "U1", Email: "ana@example.test", Name: "Ana", Code: "48213"}))
	require.NoError(t, err)
	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "ana@example.test", mailer.sent[0].To)
	assert.Contains(t, mailer.sent[0].Body, "Hello Ana")
	assert.Contains(t, mailer.sent[0].Body, "48213")
}

func TestTwoFactorMailJobSkipsRetryOnBadPayload(t *testing.T) {
	job := NewTwoFactorMailJob(&fakeMailer{}, nil, nil)

	err := job.Handle(context.Background(), asynq.NewTask(TaskTypeSendTwoFactorCode, []byte("{not json")))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	err = job.Handle(context.Background(), codeTask(t, TwoFactorCodePayload{UserID: "U1", Code: "48213"}))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestTwoFactorMailJobPropagatesMailerError(t *testing.T) {
	mailErr := errors.New("smtp: 451 try later")
	job := NewTwoFactorMailJob(&fakeMailer{err: mailErr}, nil, nil)
	err := job.Handle(context.Background(), codeTask(t, TwoFactorCodePayload{Email: "a@b.test", Code: "48213"}))
	assert.ErrorIs(t, err, mailErr)
	assert.NotErrorIs(t, err, asynq.SkipRetry)
}

// ============================================================================
// PURGE JOB
// ============================================================================

func TestSessionPurgeJobUsesRetention(t *testing.T) {
	purger := &fakePurger{removed: 7}
	job := NewSessionPurgeJob(purger, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	job.clock = func() time.Time { return now }

	task, err := NewPurgeLoginSessionsTask(48)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	assert.Equal(t, now.Add(-48*time.Hour), purger.cutoff)

	require.NoError(t, job.Handle(context.Background(), asynq.NewTask(TaskTypePurgeLoginSessions, nil)))
	assert.Equal(t, now.Add(-DefaultSessionRetentionHours*time.Hour), purger.cutoff)
}

func TestSessionPurgeJobPropagatesError(t *testing.T) {
	job := NewSessionPurgeJob(&fakePurger{err: errors.New("db down")}, nil, nil)
	task, err := NewPurgeLoginSessionsTask(1)
	require.NoError(t, err)
	assert.Error(t, job.Handle(context.Background(), task))
}

// ============================================================================
// SMTP MAILER
// ============================================================================

func TestSMTPMailerBuildsMessage(t *testing.T) {
	mailer := NewSMTPMailer("127.0.0.1", 1025, "no-reply@gatekeeper.local")
	type ctxKey struct{}
	ctx := context.WithValue(context.Background(), ctxKey{}, "job-1")
	var sent *mail.Msg
	mailer.send = func(ctx context.Context, msg *mail.Msg) error {
		assert.Equal(t, "job-1", ctx.Value(ctxKey{}))
		sent = msg
		return nil
	}

	require.NoError(t, mailer.Send(ctx, Message{To: "ana@example.test", Subject: "Code", Body: "line1\nline2"}))
	require.NotNil(t, sent)

	from, err := sent.GetSender(false)
	require.NoError(t, err)
	assert.Equal(t, "no-reply@gatekeeper.local", from)
	to, err := sent.GetRecipients()
	require.NoError(t, err)
	assert.Equal(t, []string{"ana@example.test"}, to)

	var buf bytes.Buffer
	_, err = sent.WriteTo(&buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Subject: Code\r\n")
	assert.Contains(t, buf.String(), "line1")
	assert.Contains(t, buf.String(), "line2")
}

func TestSMTPMailerRejectsBadRecipient(t *testing.T) {
	mailer := NewSMTPMailer("127.0.0.1", 1025, "no-reply@gatekeeper.local")
	mailer.send = func(context.Context, *mail.Msg) error {
		t.Fatal("send must not be called")
		return nil
	}
	assert.Error(t, mailer.Send(context.Background(), Message{To: "a@b.test\r\nBcc: x@y.test", Subject: "Code"}))
	assert.Error(t, mailer.Send(context.Background(), Message{To: " "}))
	assert.Error(t, mailer.Send(context.Background(), Message{To: "not-an-address"}))
}

func TestSMTPMailerWrapsSendError(t *testing.T) {
	mailer := NewSMTPMailer("127.0.0.1", 1025, "no-reply@gatekeeper.local")
	relayErr := errors.New("relay down")
	mailer.send = func(context.Context, *mail.Msg) error { return relayErr }

	err := mailer.Send(context.Background(), Message{To: "ana@example.test", Subject: "Code"})
	assert.ErrorIs(t, err, relayErr)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, mailer.Send(ctx, Message{To: "ana@example.test"}), context.Canceled)
}

// ============================================================================
// HEALTH HANDLER
// ============================================================================

func serveHealth(inspector QueueInspector) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.Route("/jobs", NewHandler(inspector, nil).MountRoutes)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	return rr
}

func TestHealthReportsPendingPerQueue(t *testing.T) {
	rr := serveHealth(fakeInspector{pending: map[string]int{QueueCritical: 3}})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"queues":[{"queue":"critical","pending":3},{"queue":"default","pending":0}]}`, rr.Body.String())
}

func TestHealthOnFreshRedisReportsEmptyQueues(t *testing.T) {
	mr := miniredis.RunT(t)
	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: mr.Addr()})
	t.Cleanup(func() { _ = inspector.Close() })

	rr := serveHealth(inspector)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.JSONEq(t, `{"queues":[{"queue":"critical","pending":0},{"queue":"default","pending":0}]}`, rr.Body.String())
}

func TestHealthUnavailableOnInspectorError(t *testing.T) {
	rr := serveHealth(fakeInspector{err: errors.New("redis down")})
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
