package slack

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/vitaltriage/internal/triage"
)

func testEvaluation() *triage.Evaluation {
	return &triage.Evaluation{
		ID:            "01JN123",
		SchemaVersion: "a1b2c3",
		Predictions: triage.Predictions{
			"random_forest":       {Category: triage.CategoryEmergency, Probability: 0.85},
			"logistic_regression": {Category: triage.CategoryNoEmergency, Probability: 0.55},
		},
		Disagreement: true,
		Highest:      triage.CategoryEmergency,
		CreatedAt:    time.Date(2026, 2, 26, 14, 23, 0, 0, time.UTC),
		Duration:     0.0021,
	}
}

func blockText(t *testing.T, b any) string {
	t.Helper()
	m := b.(map[string]any)
	if txt, ok := m["text"].(map[string]any); ok {
		return txt["text"].(string)
	}
	var parts []string
	for _, f := range m["fields"].([]any) {
		parts = append(parts, f.(map[string]any)["text"].(string))
	}
	return strings.Join(parts, "\n")
}

func TestNotify_PostsToWebhook(t *testing.T) {
	t.Parallel()

	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("content-type = %q, want application/json", r.Header.Get("Content-Type"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	if err := New(srv.URL, log.Nop()).Notify(context.Background(), testEvaluation()); err != nil {
		t.Fatalf("Notify: %v", err)
	}

	blocks, ok := got["blocks"].([]any)
	if !ok {
		t.Fatal("expected blocks array in payload")
	}
	// header, divider, predictions, disagreement, divider, context
	if len(blocks) != 6 {
		t.Fatalf("blocks count = %d, want 6", len(blocks))
	}

	header := blockText(t, blocks[0])
	if !strings.Contains(header, "Emergency") || !strings.Contains(header, "\U0001f534") {
		t.Errorf("header = %q, want emergency title with red circle", header)
	}

	preds := blockText(t, blocks[2])
	for _, want := range []string{"*random_forest:*", "p=0.85", "*logistic_regression:*", "no_emergency", "2.1ms"} {
		if !strings.Contains(preds, want) {
			t.Errorf("predictions block missing %q:\n%s", want, preds)
		}
	}
	// logistic_regression sorts before random_forest
	if strings.Index(preds, "logistic_regression") > strings.Index(preds, "random_forest") {
		t.Error("models not listed in name order")
	}

	if !strings.Contains(blockText(t, blocks[3]), "disagree") {
		t.Error("missing disagreement block")
	}

	ctxText := blocks[5].(map[string]any)["elements"].([]any)[0].(map[string]any)["text"].(string)
	if !strings.Contains(ctxText, "01JN123") || !strings.Contains(ctxText, "2026-02-26 14:23 UTC") {
		t.Errorf("context = %q", ctxText)
	}
}

func TestNotify_NoOpWithoutURL(t *testing.T) {
	t.Parallel()

	if err := New("", nil).Notify(context.Background(), &triage.Evaluation{}); err != nil {
		t.Fatalf("Notify with empty URL should be no-op, got: %v", err)
	}
}

func TestNotify_NonOKStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("internal error"))
	}))
	defer srv.Close()

	err := New(srv.URL, log.Nop()).Notify(context.Background(), testEvaluation())
	if err == nil {
		t.Fatal("expected error on non-OK status")
	}
	if !strings.Contains(err.Error(), "500") {
		t.Errorf("error = %q, want to contain status code 500", err.Error())
	}
}

func TestBuildMessage_AgreementHasNoWarning(t *testing.T) {
	t.Parallel()

	ev := testEvaluation()
	ev.Disagreement = false
	ev.Predictions["logistic_regression"] = triage.Prediction{Category: triage.CategoryEmergency, Probability: 0.9}

	blocks := buildMessage(ev)["blocks"].([]map[string]any)
	if len(blocks) != 5 {
		t.Errorf("blocks count = %d, want 5", len(blocks))
	}
}

func TestCategoryEmoji(t *testing.T) {
	t.Parallel()

	tests := []struct {
		c    triage.Category
		want string
	}{
		{triage.CategoryEmergency, "\U0001f534"},
		{triage.CategoryNoEmergency, "\U0001f7e1"},
		{triage.CategoryNoAdmission, "\U0001f7e2"},
		{"", "\U0001f7e2"},
	}
	for _, tt := range tests {
		if got := categoryEmoji(tt.c); got != tt.want {
			t.Errorf("categoryEmoji(%q) = %q, want %q", tt.c, got, tt.want)
		}
	}
}

func FuzzSlackBuild(f *testing.F) {
	f.Add("random_forest", "emergency", 0.85, true)
	f.Add("", "", 0.0, false)
	f.Add("<@U123> *bold*", "no_admission", -1.0, true)
	f.Add("m\x00del\n", "weird\tcat", 1e300, false)
	f.Add(strings.Repeat("A", 5000), "no_emergency", 0.5, true)

	f.Fuzz(func(t *testing.T, model, category string, p float64, disagree bool) {
		ev := &triage.Evaluation{
			ID:           "fuzz-id",
			Predictions:  triage.Predictions{model: {Category: triage.Category(category), Probability: p}},
			Disagreement: disagree,
			Highest:      triage.Category(category),
			CreatedAt:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		}

		data, err := json.Marshal(buildMessage(ev))
		if err != nil {
			t.Fatalf("buildMessage produced non-marshalable output: %v", err)
		}
		var decoded map[string]any
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("buildMessage JSON does not round-trip: %v", err)
		}
		blocks, ok := decoded["blocks"].([]any)
		if !ok {
			t.Fatal("expected blocks array")
		}
		want := 5
		if disagree {
			want = 6
		}
		if len(blocks) != want {
			t.Fatalf("blocks count = %d, want %d", len(blocks), want)
		}
	})
}
