package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"quizzly-service/internal/app"
)

func TestMiddlewareCountsRequests(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New()
	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/quiz/:id", func(c *gin.Context) { c.Status(http.StatusTeapot) })
	r.GET("/metrics", m.Handler())

	for i := 0; i < 2; i++ {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/quiz/abc", nil))
	}
	if got := testutil.ToFloat64(m.RequestCounter.WithLabelValues("GET", "/quiz/:id", "418")); got != 2 {
		t.Fatalf("expected 2 requests counted, got %v", got)
	}

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "quizzly_http_requests_total") {
		t.Fatalf("metrics output missing counter:\n%s", rec.Body.String())
	}
}

func TestPublisherCountsOutcomes(t *testing.T) {
	m := New()
	ok := m.Publisher(app.NopPublisher{})
	failing := m.Publisher(publisherFunc(func(context.Context, string, any) error { return errors.New("down") }))

	_ = ok.Publish(context.Background(), app.EventQuizStarted, nil)
	_ = ok.Publish(context.Background(), app.EventQuizStarted, nil)
	if err := failing.Publish(context.Background(), app.EventQuizEnded, nil); err == nil {
		t.Fatalf("expected error to pass through")
	}

	if got := testutil.ToFloat64(m.EventCounter.WithLabelValues(app.EventQuizStarted, "ok")); got != 2 {
		t.Fatalf("expected 2 started events, got %v", got)
	}
	if got := testutil.ToFloat64(m.EventCounter.WithLabelValues(app.EventQuizEnded, "error")); got != 1 {
		t.Fatalf("expected 1 failed end event, got %v", got)
	}
}

type publisherFunc func(ctx context.Context, eventType string, payload any) error

func (f publisherFunc) Publish(ctx context.Context, eventType string, payload any) error {
	return f(ctx, eventType, payload)
}
