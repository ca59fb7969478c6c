package membership

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gymhub.np/internal/apperrors"
	"gymhub.np/internal/models"
)

// ==========================
// Test Helper Functions
// ==========================

// memoryStore applies the same predicates as the SQL store.
type memoryStore struct {
	mu        sync.Mutex
	subs      map[string]*models.UserSubscription
	listErr   error
	listCalls int
}

func newMemoryStore(subs ...models.UserSubscription) *memoryStore {
	s := &memoryStore{subs: map[string]*models.UserSubscription{}}
	for i := range subs {
		sub := subs[i]
		s.subs[sub.ID] = &sub
	}
	return s
}

func (s *memoryStore) owner(sub *models.UserSubscription) models.SubscriptionOwner {
	return models.SubscriptionOwner{Subscription: *sub, Email: sub.UserID + "@gym.np", Name: sub.UserID}
}

func (s *memoryStore) ListExpiringSoon(_ context.Context, now time.Time, window time.Duration, notifiedBefore time.Time) ([]models.SubscriptionOwner, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listCalls++
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []models.SubscriptionOwner
	for _, sub := range s.subs {
		if sub.Status != models.SubscriptionStatusActive || sub.EndDate.Before(now) || sub.EndDate.After(now.Add(window)) {
			continue
		}
		if sub.LastNotifiedAt != nil && !sub.LastNotifiedAt.Before(notifiedBefore) {
			continue
		}
		out = append(out, s.owner(sub))
	}
	return out, nil
}

func (s *memoryStore) ListExpired(_ context.Context, now time.Time) ([]models.SubscriptionOwner, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.SubscriptionOwner
	for _, sub := range s.subs {
		if sub.Status == models.SubscriptionStatusActive && sub.EndDate.Before(now) {
			out = append(out, s.owner(sub))
		}
	}
	return out, nil
}

func (s *memoryStore) MarkExpired(_ context.Context, id string, _ time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subs[id]
	if !ok || sub.Status != models.SubscriptionStatusActive {
		return false, nil
	}
	sub.Status = models.SubscriptionStatusExpired
	return true, nil
}

func (s *memoryStore) MarkNotified(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sub, ok := s.subs[id]; ok {
		sub.LastNotifiedAt = &at
	}
	return nil
}

func (s *memoryStore) status(id string) models.SubscriptionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subs[id].Status
}

type recordingNotifier struct {
	mu       sync.Mutex
	expiring []string
	expired  []string
	failFor  map[string]bool
}

func (n *recordingNotifier) SendExpiringSoon(_ context.Context, o models.SubscriptionOwner) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failFor[o.Subscription.ID] {
		return errors.New("smtp: 421 try again later")
	}
	n.expiring = append(n.expiring, o.Subscription.ID)
	return nil
}

func (n *recordingNotifier) SendExpired(_ context.Context, o models.SubscriptionOwner) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failFor[o.Subscription.ID] {
		return errors.New("smtp: 421 try again later")
	}
	n.expired = append(n.expired, o.Subscription.ID)
	return nil
}

type heldLock struct{}

func (heldLock) TryLock(context.Context) (func(), bool, error) { return nil, false, nil }

type freeLock struct{ mu sync.Mutex }

func (l *freeLock) TryLock(context.Context) (func(), bool, error) {
	if !l.mu.TryLock() {
		return nil, false, nil
	}
	return l.mu.Unlock, true, nil
}

func sub(id string, status models.SubscriptionStatus, end time.Time) models.UserSubscription {
	return models.UserSubscription{ID: id, UserID: "u_" + id, PlanName: "Basic Plan", Status: status, EndDate: end}
}

func fixedClock(now time.Time) func() time.Time { return func() time.Time { return now } }

// ==========================
// Reconciler.Run
// ==========================

func TestRun_ExpiresOnlyLapsedActiveSubscriptions(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	store := newMemoryStore(
		sub("A", models.SubscriptionStatusActive, now.Add(24*time.Hour)),
		sub("B", models.SubscriptionStatusActive, now.Add(-24*time.Hour)),
		sub("C", models.SubscriptionStatusExpired, now.Add(-10*24*time.Hour)),
	)
	notifier := &recordingNotifier{}
	r := NewReconciler(store, notifier, &freeLock{}, Options{Clock: fixedClock(now)})

	res, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, models.SubscriptionStatusActive, store.status("A"))
	assert.Equal(t, models.SubscriptionStatusExpired, store.status("B"))
	assert.Equal(t, models.SubscriptionStatusExpired, store.status("C"))
	assert.Equal(t, 1, res.SubscriptionsUpdated)
	assert.Equal(t, 2, res.EmailsSent)
	assert.Equal(t, []string{"A"}, notifier.expiring)
	assert.Equal(t, []string{"B"}, notifier.expired)
}

func TestRun_RemindsAtMostOncePerDay(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	store := newMemoryStore(sub("A", models.SubscriptionStatusActive, now.Add(48*time.Hour)))
	notifier := &recordingNotifier{}
	clock := now
	r := NewReconciler(store, notifier, &freeLock{}, Options{Clock: func() time.Time { return clock }})

	_, err := r.Run(context.Background())
	require.NoError(t, err)

	clock = now.Add(6 * time.Hour)
	res, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.EmailsSent)

	clock = now.Add(25 * time.Hour)
	res, err = r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.EmailsSent)
	assert.Equal(t, []string{"A", "A"}, notifier.expiring)
}

func TestRun_SecondRunDoesNotRecountExpiry(t *testing.T) {
	now := time.Now()
	store := newMemoryStore(sub("B", models.SubscriptionStatusActive, now.Add(-time.Hour)))
	r := NewReconciler(store, &recordingNotifier{}, &freeLock{}, Options{Clock: fixedClock(now)})

	first, err := r.Run(context.Background())
	require.NoError(t, err)
	second, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, first.SubscriptionsUpdated)
	assert.Zero(t, second.SubscriptionsUpdated)
}

func TestRun_NotificationFailureIsSkipped(t *testing.T) {
	now := time.Now()
	store := newMemoryStore(
		sub("A", models.SubscriptionStatusActive, now.Add(time.Hour)),
		sub("B", models.SubscriptionStatusActive, now.Add(-time.Hour)),
	)
	notifier := &recordingNotifier{failFor: map[string]bool{"A": true, "B": true}}
	r := NewReconciler(store, notifier, &freeLock{}, Options{Clock: fixedClock(now)})

	res, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.EmailsSent)
	assert.Equal(t, 1, res.SubscriptionsUpdated)
	assert.Equal(t, models.SubscriptionStatusExpired, store.status("B"))

	// A failed reminder is not stamped, so the next run tries again.
	store.mu.Lock()
	assert.Nil(t, store.subs["A"].LastNotifiedAt)
	store.mu.Unlock()
}

func TestRun_UsesNoticeWindow(t *testing.T) {
	now := time.Now()
	store := newMemoryStore(sub("A", models.SubscriptionStatusActive, now.Add(5*24*time.Hour)))
	notifier := &recordingNotifier{}

	narrow := NewReconciler(store, notifier, &freeLock{}, Options{Clock: fixedClock(now)})
	res, err := narrow.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Expiring)

	wide := NewReconciler(store, notifier, &freeLock{}, Options{
		Clock:        fixedClock(now),
		NoticeWindow: func(context.Context) time.Duration { return 7 * 24 * time.Hour },
	})
	res, err = wide.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Expiring)
}

func TestRun_SkipsWhenLockHeld(t *testing.T) {
	store := newMemoryStore()
	r := NewReconciler(store, &recordingNotifier{}, heldLock{}, Options{})

	res, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Zero(t, store.listCalls)
}

func TestRun_StoreFailureSurfaces(t *testing.T) {
	store := newMemoryStore()
	store.listErr = errors.New("db down")
	r := NewReconciler(store, &recordingNotifier{}, &freeLock{}, Options{})

	_, err := r.Run(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.KindUpstream))
}

// ==========================
// Scheduler
// ==========================

func TestScheduler_RunsUntilStopped(t *testing.T) {
	store := newMemoryStore()
	s := NewScheduler(NewReconciler(store, &recordingNotifier{}, &freeLock{}, Options{}), 10*time.Millisecond)
	s.Start(context.Background())

	assert.Eventually(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return store.listCalls >= 2
	}, time.Second, 5*time.Millisecond)

	s.Stop()
	store.mu.Lock()
	calls := store.listCalls
	store.mu.Unlock()
	time.Sleep(30 * time.Millisecond)
	store.mu.Lock()
	assert.Equal(t, calls, store.listCalls)
	store.mu.Unlock()
}
