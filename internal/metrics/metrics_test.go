package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestInit(t *testing.T) {
	// Call Init multiple times to test idempotency.
	Init()
	Init()

	if roastsTotal == nil || admissionRejectionsTotal == nil ||
		fetchDurationSeconds == nil || generationAttemptsTotal == nil ||
		voteTogglesTotal == nil || httpRequestsTotal == nil {
		t.Fatal("Init() did not initialize metrics collectors")
	}

	ObserveRoast("success", "")
	if val := testutil.ToFloat64(roastsTotal.WithLabelValues("success", "")); val != 1 {
		t.Errorf("expected roastsTotal to be 1, got %f", val)
	}

	ObserveAdmissionRejection("per_minute_exceeded")
	if val := testutil.ToFloat64(admissionRejectionsTotal.WithLabelValues("per_minute_exceeded")); val != 1 {
		t.Errorf("expected admissionRejectionsTotal to be 1, got %f", val)
	}

	ObserveVoteToggle("added")
	if val := testutil.ToFloat64(voteTogglesTotal.WithLabelValues("added")); val != 1 {
		t.Errorf("expected voteTogglesTotal to be 1, got %f", val)
	}

	SetDailyBudgetRemaining(42)
	if val := testutil.ToFloat64(dailyBudgetRemaining); val != 42 {
		t.Errorf("expected dailyBudgetRemaining to be 42, got %f", val)
	}
}

func TestMiddlewareRecordsRoutePattern(t *testing.T) {
	Init()

	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/v1/roasts/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/roasts/abc", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	count := testutil.CollectAndCount(httpRequestDurationSeconds)
	if count == 0 {
		t.Error("expected request duration to be observed")
	}
	ObserveFetch("probe", 100*time.Millisecond)
	ObserveGenerationAttempt("success")
}
