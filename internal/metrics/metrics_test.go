package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestInitIsIdempotent(t *testing.T) {
	Init()
	Init()

	if keywordsTotal == nil || fetchesTotal == nil || checkpointsTotal == nil || frontierSize == nil {
		t.Fatal("Init() did not initialize metrics collectors")
	}
}

func TestObservers(t *testing.T) {
	Init()

	before := testutil.ToFloat64(keywordsTotal.WithLabelValues(KeywordDropped))
	ObserveKeyword(KeywordDropped)
	if got := testutil.ToFloat64(keywordsTotal.WithLabelValues(KeywordDropped)); got != before+1 {
		t.Fatalf("expected dropped keywords to grow by 1, got %f -> %f", before, got)
	}

	beforeErr := testutil.ToFloat64(fetchesTotal.WithLabelValues("metrics-test", "error"))
	ObserveFetch("metrics-test", errors.New("boom"), time.Millisecond)
	if got := testutil.ToFloat64(fetchesTotal.WithLabelValues("metrics-test", "error")); got != beforeErr+1 {
		t.Fatalf("expected fetch error counter to grow by 1, got %f", got)
	}

	ObserveClassified("metrics-test", 2, 1, 0)
	if got := testutil.ToFloat64(resultsTotal.WithLabelValues("metrics-test", "accepted")); got != 2 {
		t.Fatalf("expected 2 accepted results, got %f", got)
	}

	SetFrontierSize(7)
	if got := testutil.ToFloat64(frontierSize); got != 7 {
		t.Fatalf("expected frontier gauge 7, got %f", got)
	}
}

func TestMiddleware(t *testing.T) {
	Init()
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/probe", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	ts := httptest.NewServer(r)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/probe")
	if err != nil {
		t.Fatal(err)
	}
	if errClose := resp.Body.Close(); errClose != nil {
		t.Log(errClose)
	}

	if val := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "418")); val != 1 {
		t.Errorf("expected one GET 418 request, got %f", val)
	}
}

func TestHandlerExposesCollectors(t *testing.T) {
	ObserveCheckpoint(nil, 10*time.Millisecond)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "kwcrawler_checkpoints_total") {
		t.Fatal("expected checkpoint counter in exposition")
	}
}
