package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestWebhookSinkPostsPayload(t *testing.T) {
	var got webhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	sink := NewWebhookSink(srv.URL, zerolog.Nop())
	sink.Notify(context.Background(), Warning, "trade XYZ closed at a loss")

	if !strings.Contains(got.Content, "[warning]") || !strings.Contains(got.Content, "trade XYZ") {
		t.Fatalf("unexpected webhook content: %q", got.Content)
	}
}

func TestWebhookSinkSwallowsFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	sink := NewWebhookSink(srv.URL, zerolog.Nop())
	// Must not panic or block; failures are log-only.
	sink.Notify(context.Background(), Critical, "unreachable")
}

func TestWebhookSinkNoURLIsNoop(t *testing.T) {
	sink := NewWebhookSink("", zerolog.Nop())
	sink.Notify(context.Background(), Info, "dropped")
}

type captureSink struct{ messages []string }

func (c *captureSink) Notify(_ context.Context, _ Severity, message string) {
	c.messages = append(c.messages, message)
}

func TestFanoutReachesAllSinks(t *testing.T) {
	a, b := &captureSink{}, &captureSink{}
	Fanout{a, b}.Notify(context.Background(), Info, "hello")
	if len(a.messages) != 1 || len(b.messages) != 1 {
		t.Fatalf("fanout missed a sink: %d/%d", len(a.messages), len(b.messages))
	}
}
