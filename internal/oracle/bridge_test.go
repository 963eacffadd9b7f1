package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestBridge(t *testing.T, handler http.Handler) *Bridge {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewBridge(srv.URL, "chatgpt", 2*time.Second, nil)
}

func TestBridge_OpenAndSend(t *testing.T) {
	var askedPrompt string
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/sessions", func(w http.ResponseWriter, r *http.Request) {
		var req openRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Site != "chatgpt" {
			t.Errorf("site = %q, want chatgpt", req.Site)
		}
		json.NewEncoder(w).Encode(openResponse{SessionID: "s-1"})
	})
	mux.HandleFunc("POST /v1/sessions/s-1/ask", func(w http.ResponseWriter, r *http.Request) {
		var req askRequest
		json.NewDecoder(r.Body).Decode(&req)
		askedPrompt = req.Prompt
		json.NewEncoder(w).Encode(askResponse{Text: "- node\n- npm\n"})
	})

	b := newTestBridge(t, mux)
	if err := b.Open(context.Background()); err != nil {
		t.Fatalf("open: %v", err)
	}
	got, err := b.Send(context.Background(), "list the tools")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if got != "- node\n- npm\n" {
		t.Errorf("reply = %q", got)
	}
	if askedPrompt != "list the tools" {
		t.Errorf("prompt = %q", askedPrompt)
	}
}

func TestBridge_HTMLReply(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/sessions", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(openResponse{SessionID: "s-1"})
	})
	mux.HandleFunc("POST /v1/sessions/s-1/ask", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(askResponse{
			HTML: `<div><p>Run this:</p><pre class="language-bash"><code>mkdir app</code></pre></div>`,
		})
	})

	b := newTestBridge(t, mux)
	if err := b.Open(context.Background()); err != nil {
		t.Fatalf("open: %v", err)
	}
	got, err := b.Send(context.Background(), "plan please")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	want := "Run this:\n\n```bash\nmkdir app\n```"
	if got != want {
		t.Errorf("reply = %q, want %q", got, want)
	}
}

func TestBridge_SendWithoutOpen(t *testing.T) {
	b := NewBridge("http://127.0.0.1:1", "chatgpt", time.Second, nil)
	_, err := b.Send(context.Background(), "hi")
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}

func TestBridge_ServerError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/sessions", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "browser crashed", http.StatusInternalServerError)
	})
	b := newTestBridge(t, mux)
	err := b.Open(context.Background())
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}

func TestBridge_GatewayTimeout(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/sessions", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(openResponse{SessionID: "s-1"})
	})
	mux.HandleFunc("POST /v1/sessions/s-1/ask", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGatewayTimeout)
	})
	b := newTestBridge(t, mux)
	if err := b.Open(context.Background()); err != nil {
		t.Fatalf("open: %v", err)
	}
	_, err := b.Send(context.Background(), "hi")
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("expected ErrTimeout, got %v", err)
	}
}

func TestScripted_RecordsPromptsAndExhausts(t *testing.T) {
	s := NewScripted("first", "second")
	ctx := context.Background()

	for _, want := range []string{"first", "second"} {
		got, err := s.Send(ctx, "p-"+want)
		if err != nil {
			t.Fatalf("send: %v", err)
		}
		if got != want {
			t.Errorf("reply = %q, want %q", got, want)
		}
	}
	if _, err := s.Send(ctx, "extra"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable on exhaustion, got %v", err)
	}
	if len(s.Prompts) != 3 {
		t.Errorf("recorded %d prompts, want 3", len(s.Prompts))
	}
}
