package triage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/vitaltriage/internal/features"
)

// mockStore implements Store for testing.
type mockStore struct {
	mu      sync.Mutex
	results map[string]*Evaluation
	putErr  error
	getErr  error
}

func newMockStore() *mockStore {
	return &mockStore{results: make(map[string]*Evaluation)}
}

func (m *mockStore) Get(_ context.Context, id string) (*Evaluation, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, false, m.getErr
	}
	r, ok := m.results[id]
	if !ok {
		return nil, false, nil
	}
	cp := *r
	return &cp, true, nil
}

func (m *mockStore) Put(_ context.Context, ev *Evaluation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putErr != nil {
		return m.putErr
	}
	cp := *ev
	m.results[ev.ID] = &cp
	return nil
}

// mockNotifier forwards notifications to a channel.
type mockNotifier struct {
	ch  chan *Evaluation
	err error
}

func newMockNotifier() *mockNotifier {
	return &mockNotifier{ch: make(chan *Evaluation, 4)}
}

func (m *mockNotifier) Notify(_ context.Context, ev *Evaluation) error {
	m.ch <- ev
	return m.err
}

func newTestService(t *testing.T, store Store, n Notifier, policy NotifyPolicy, rf, lr float64) (*Service, *Metrics) {
	t.Helper()
	m := NewMetrics(prometheus.NewRegistry())
	e, err := NewEngine(features.DefaultSchema(), []Model{
		{Name: "random_forest", Scorer: constScorer(rf)},
		{Name: "logistic_regression", Scorer: constScorer(lr)},
	}, DefaultThresholds(), log.Nop(), m.Hooks())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return NewService(store, e, log.Nop(), m, n, policy), m
}

func TestSubmit_StoresEvaluation(t *testing.T) {
	t.Parallel()

	store := newMockStore()
	svc, m := newTestService(t, store, nil, NotifyNone, 0.85, 0.82)

	ev, err := svc.Submit(context.Background(), testRecord())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if ev.ID == "" {
		t.Fatal("expected ID")
	}
	if ev.Highest != CategoryEmergency {
		t.Errorf("Highest = %q, want emergency", ev.Highest)
	}
	if ev.Disagreement {
		t.Error("unexpected disagreement")
	}
	if ev.SchemaVersion != features.DefaultSchema().Version() {
		t.Errorf("SchemaVersion = %q", ev.SchemaVersion)
	}

	got, ok, err := svc.Get(context.Background(), ev.ID)
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if got.Fingerprint != ev.Fingerprint {
		t.Errorf("Fingerprint = %q, want %q", got.Fingerprint, ev.Fingerprint)
	}
	if got.Predictions["random_forest"].Probability != 0.85 {
		t.Errorf("stored rf probability = %v, want 0.85", got.Predictions["random_forest"].Probability)
	}

	if v := testutil.ToFloat64(m.SubmitsTotal.WithLabelValues("stored")); v != 1 {
		t.Errorf("submits{stored} = %v, want 1", v)
	}
	if v := testutil.ToFloat64(m.PredictionsTotal.WithLabelValues("random_forest", "emergency")); v != 1 {
		t.Errorf("predictions{random_forest,emergency} = %v, want 1", v)
	}
}

func TestSubmit_SameRecordSameFingerprint(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t, newMockStore(), nil, NotifyNone, 0.5, 0.5)

	a, err := svc.Submit(context.Background(), testRecord())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	b, err := svc.Submit(context.Background(), testRecord())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if a.ID == b.ID {
		t.Error("expected distinct IDs")
	}
	if a.Fingerprint != b.Fingerprint {
		t.Error("expected identical fingerprints for identical records")
	}
}

func TestSubmit_InvalidRecordNotStored(t *testing.T) {
	t.Parallel()

	store := newMockStore()
	svc, m := newTestService(t, store, nil, NotifyNone, 0.5, 0.5)

	r := testRecord()
	r.Gender = "Unknown"
	_, err := svc.Submit(context.Background(), r)
	if !IsInputError(err) {
		t.Fatalf("err = %v, want input error", err)
	}
	if len(store.results) != 0 {
		t.Error("evaluation stored for a rejected record")
	}
	if v := testutil.ToFloat64(m.EncodeErrorsTotal.WithLabelValues(KindUnknownCategory)); v != 1 {
		t.Errorf("encode_errors{unknown_category} = %v, want 1", v)
	}
}

func TestSubmit_StoreError(t *testing.T) {
	t.Parallel()

	store := newMockStore()
	store.putErr = errors.New("disk full")
	svc, _ := newTestService(t, store, nil, NotifyNone, 0.5, 0.5)

	if _, err := svc.Submit(context.Background(), testRecord()); err == nil {
		t.Fatal("expected store error")
	}
}

func TestSubmit_NotifiesOnEmergency(t *testing.T) {
	t.Parallel()

	n := newMockNotifier()
	svc, m := newTestService(t, newMockStore(), n, NotifyEmergency, 0.9, 0.3)

	ev, err := svc.Submit(context.Background(), testRecord())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	select {
	case got := <-n.ch:
		if got.ID != ev.ID {
			t.Errorf("notified ID = %q, want %q", got.ID, ev.ID)
		}
		if !got.Disagreement {
			t.Error("expected disagreement flag on notification")
		}
	case <-time.After(time.Second):
		t.Fatal("notification not sent")
	}

	deadline := time.Now().Add(time.Second)
	for testutil.ToFloat64(m.NotificationsTotal.WithLabelValues("sent")) != 1 {
		if time.Now().After(deadline) {
			t.Fatal("notifications{sent} never reached 1")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSubmit_PolicySkipsNonMatching(t *testing.T) {
	t.Parallel()

	n := newMockNotifier()
	svc, _ := newTestService(t, newMockStore(), n, NotifyEmergency, 0.1, 0.2)

	if _, err := svc.Submit(context.Background(), testRecord()); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	select {
	case got := <-n.ch:
		t.Fatalf("unexpected notification for %s", got.Highest)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestNotifyPolicy_Matches(t *testing.T) {
	t.Parallel()

	emergency := &Evaluation{Highest: CategoryEmergency}
	split := &Evaluation{Highest: CategoryNoEmergency, Disagreement: true}
	calm := &Evaluation{Highest: CategoryNoAdmission}

	tests := []struct {
		policy NotifyPolicy
		ev     *Evaluation
		want   bool
	}{
		{NotifyNone, emergency, false},
		{NotifyAll, calm, true},
		{NotifyEmergency, emergency, true},
		{NotifyEmergency, split, false},
		{NotifyDisagreement, split, true},
		{NotifyDisagreement, emergency, false},
	}
	for _, tt := range tests {
		if got := tt.policy.Matches(tt.ev); got != tt.want {
			t.Errorf("%s.Matches(%+v) = %v, want %v", tt.policy, tt.ev, got, tt.want)
		}
	}
	if NotifyPolicy("sometimes").Valid() {
		t.Error("unknown policy reported valid")
	}
}

func TestNotifiers_FanOut(t *testing.T) {
	t.Parallel()

	a, b := newMockNotifier(), newMockNotifier()
	boom := errors.New("webhook down")
	a.err = boom

	ev := &Evaluation{ID: "x"}
	err := Notifiers{a, b}.Notify(context.Background(), ev)
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want %v", err, boom)
	}
	if got := <-b.ch; got.ID != "x" {
		t.Error("second notifier skipped after first failed")
	}
	<-a.ch

	if err := (Notifiers{}).Notify(context.Background(), ev); err != nil {
		t.Errorf("empty Notifiers = %v", err)
	}
}
