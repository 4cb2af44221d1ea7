package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	directorydomain "kidsnest-backend/internal/directory/domain"
	"kidsnest-backend/internal/notification/domain"
	"kidsnest-backend/pkg/fcm"

	"github.com/google/uuid"
)

// fakeQueueRepo is an in-memory QueueRepository sharing the domain's
// transition rules, so dispatcher tests observe real status sequences.
type fakeQueueRepo struct {
	mu          sync.Mutex
	rows        map[string]*domain.QueuedNotification
	history     map[string][]domain.Status
	maxAttempts int
	baseDelay   time.Duration
}

func newFakeQueueRepo(maxAttempts int, baseDelay time.Duration) *fakeQueueRepo {
	return &fakeQueueRepo{
		rows:        make(map[string]*domain.QueuedNotification),
		history:     make(map[string][]domain.Status),
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
	}
}

func (f *fakeQueueRepo) Create(n *domain.QueuedNotification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	now := time.Now()
	n.Status = domain.StatusPending
	n.Attempts = 0
	if n.NextAttemptAt.IsZero() {
		n.NextAttemptAt = now
	}
	n.CreatedAt = now
	f.rows[n.ID] = n
	f.history[n.ID] = append(f.history[n.ID], n.Status)
	return nil
}

func (f *fakeQueueRepo) FindByID(id string) (*domain.QueuedNotification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.rows[id]
	if !ok {
		return nil, nil
	}
	copied := *n
	return &copied, nil
}

func (f *fakeQueueRepo) ClaimBatch(batchSize int, now time.Time) ([]*domain.QueuedNotification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var due []*domain.QueuedNotification
	for _, n := range f.rows {
		if n.Status == domain.StatusPending && !n.NextAttemptAt.After(now) {
			due = append(due, n)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].CreatedAt.Before(due[j].CreatedAt) })
	if len(due) > batchSize {
		due = due[:batchSize]
	}

	claimed := make([]*domain.QueuedNotification, 0, len(due))
	for _, n := range due {
		if err := n.Claim(now); err != nil {
			return nil, err
		}
		f.history[n.ID] = append(f.history[n.ID], n.Status)
		copied := *n
		claimed = append(claimed, &copied)
	}
	return claimed, nil
}

func (f *fakeQueueRepo) RecordResult(id string, outcome domain.DeliveryOutcome, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.rows[id]
	if !ok {
		return fmt.Errorf("queued notification %s not found", id)
	}
	if err := n.ApplyOutcome(outcome, now, f.maxAttempts, f.baseDelay); err != nil {
		return err
	}
	f.history[id] = append(f.history[id], n.Status)
	return nil
}

func (f *fakeQueueRepo) RecoverStale(olderThan time.Duration, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cutoff := now.Add(-olderThan)
	var recovered int64
	for _, n := range f.rows {
		if n.Status == domain.StatusProcessing && n.LastAttemptAt != nil && n.LastAttemptAt.Before(cutoff) {
			n.Status = domain.StatusPending
			f.history[n.ID] = append(f.history[n.ID], n.Status)
			recovered++
		}
	}
	return recovered, nil
}

func (f *fakeQueueRepo) MarkRead(id string, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n, ok := f.rows[id]; ok {
		n.MarkRead(now)
	}
	return nil
}

func (f *fakeQueueRepo) Requeue(id string, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.rows[id]
	if !ok {
		return fmt.Errorf("queued notification %s not found", id)
	}
	if err := n.Requeue(now); err != nil {
		return err
	}
	f.history[id] = append(f.history[id], n.Status)
	return nil
}

func (f *fakeQueueRepo) ListForRecipient(recipientID string, limit, offset int) ([]*domain.QueuedNotification, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.QueuedNotification
	for _, n := range f.rows {
		if n.RecipientID == recipientID {
			copied := *n
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, int64(len(out)), nil
}

func (f *fakeQueueRepo) ListFailed(limit, offset int) ([]*domain.QueuedNotification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.QueuedNotification
	for _, n := range f.rows {
		if n.Status == domain.StatusFailed {
			copied := *n
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *fakeQueueRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

func (f *fakeQueueRepo) get(id string) *domain.QueuedNotification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rows[id]
}

func (f *fakeQueueRepo) status(id string) domain.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n, ok := f.rows[id]; ok {
		return n.Status
	}
	return ""
}

func (f *fakeQueueRepo) statusHistory(id string) []domain.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.history[id]
}

// makeDue rewinds a row's eligibility time so the next ClaimBatch call
// sees it immediately, standing in for the passage of backoff time.
func (f *fakeQueueRepo) makeDue(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n, ok := f.rows[id]; ok {
		n.NextAttemptAt = time.Now().Add(-time.Second)
	}
}

// fakeTemplateRepo is an in-memory TemplateRepository.
type fakeTemplateRepo struct {
	templates map[string]*domain.NotificationTemplate
}

func newFakeTemplateRepo(templates ...*domain.NotificationTemplate) *fakeTemplateRepo {
	f := &fakeTemplateRepo{templates: make(map[string]*domain.NotificationTemplate)}
	for _, tmpl := range templates {
		f.templates[tmpl.Type] = tmpl
	}
	return f
}

func (f *fakeTemplateRepo) FindActiveByType(notificationType string) (*domain.NotificationTemplate, error) {
	tmpl, ok := f.templates[notificationType]
	if !ok || !tmpl.Active {
		return nil, nil
	}
	return tmpl, nil
}

func (f *fakeTemplateRepo) Upsert(template *domain.NotificationTemplate) error {
	f.templates[template.Type] = template
	return nil
}

func (f *fakeTemplateRepo) List() ([]domain.NotificationTemplate, error) {
	var out []domain.NotificationTemplate
	for _, tmpl := range f.templates {
		out = append(out, *tmpl)
	}
	return out, nil
}

// fakePreferenceRepo is an in-memory PreferenceRepository.
type fakePreferenceRepo struct {
	prefs map[string]*domain.NotificationPreference
}

func newFakePreferenceRepo() *fakePreferenceRepo {
	return &fakePreferenceRepo{prefs: make(map[string]*domain.NotificationPreference)}
}

func (f *fakePreferenceRepo) FindByRecipientAndType(recipientID, notificationType string) (*domain.NotificationPreference, error) {
	return f.prefs[recipientID+"/"+notificationType], nil
}

func (f *fakePreferenceRepo) Upsert(recipientID, notificationType string, emailEnabled, pushEnabled bool) error {
	f.prefs[recipientID+"/"+notificationType] = &domain.NotificationPreference{
		ID:           uuid.New().String(),
		RecipientID:  recipientID,
		Type:         notificationType,
		EmailEnabled: emailEnabled,
		PushEnabled:  pushEnabled,
	}
	return nil
}

// fakeTokenRepo is an in-memory DeviceTokenRepository.
type fakeTokenRepo struct {
	mu     sync.Mutex
	tokens map[string]*domain.DeviceToken
}

func newFakeTokenRepo() *fakeTokenRepo {
	return &fakeTokenRepo{tokens: make(map[string]*domain.DeviceToken)}
}

func (f *fakeTokenRepo) Register(recipientID, token string, platform domain.Platform, deviceName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens[token] = &domain.DeviceToken{
		ID:          uuid.New().String(),
		RecipientID: recipientID,
		Token:       token,
		Platform:    platform,
		DeviceName:  deviceName,
		Active:      true,
		LastUsedAt:  time.Now(),
	}
	return nil
}

func (f *fakeTokenRepo) registerAt(recipientID, token string, lastUsed time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens[token] = &domain.DeviceToken{
		ID:          uuid.New().String(),
		RecipientID: recipientID,
		Token:       token,
		Platform:    domain.PlatformAndroid,
		Active:      true,
		LastUsedAt:  lastUsed,
	}
}

func (f *fakeTokenRepo) Deactivate(token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok := f.tokens[token]; ok {
		t.Active = false
	}
	return nil
}

func (f *fakeTokenRepo) DeactivateForRecipient(recipientID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.tokens {
		if t.RecipientID == recipientID {
			t.Active = false
		}
	}
	return nil
}

func (f *fakeTokenRepo) ActiveTokensFor(recipientID string) ([]domain.DeviceToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.DeviceToken
	for _, t := range f.tokens {
		if t.RecipientID == recipientID && t.Active {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastUsedAt.After(out[j].LastUsedAt) })
	return out, nil
}

// fakeGuardianRepo is an in-memory recipient directory.
type fakeGuardianRepo struct {
	guardians map[string]*directorydomain.Guardian
}

func newFakeGuardianRepo(guardians ...*directorydomain.Guardian) *fakeGuardianRepo {
	f := &fakeGuardianRepo{guardians: make(map[string]*directorydomain.Guardian)}
	for _, g := range guardians {
		f.guardians[g.ID] = g
	}
	return f
}

func (f *fakeGuardianRepo) FindByID(id string) (*directorydomain.Guardian, error) {
	return f.guardians[id], nil
}

func (f *fakeGuardianRepo) FindByEmail(email string) (*directorydomain.Guardian, error) {
	for _, g := range f.guardians {
		if g.Email == email {
			return g, nil
		}
	}
	return nil, nil
}

// fakeMailer records sends and returns scripted errors in order.
type fakeMailer struct {
	mu    sync.Mutex
	calls []string // recipient addresses, in call order
	errs  []error  // popped per call; empty means success
}

func (f *fakeMailer) Send(_ context.Context, toAddress, subject, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, toAddress)
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return err
	}
	return nil
}

func (f *fakeMailer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// fakePushSender scripts per-token multicast results.
type fakePushSender struct {
	mu      sync.Mutex
	calls   [][]string
	respond func(tokens []string) ([]fcm.SendResult, error)
}

func (f *fakePushSender) SendToDevices(_ context.Context, tokens []string, _ fcm.NotificationData) ([]fcm.SendResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, tokens)
	if f.respond != nil {
		return f.respond(tokens)
	}
	results := make([]fcm.SendResult, len(tokens))
	for i, token := range tokens {
		results[i] = fcm.SendResult{Token: token, Status: fcm.StatusSuccess}
	}
	return results, nil
}

func (f *fakePushSender) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}
