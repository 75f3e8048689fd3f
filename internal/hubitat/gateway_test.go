package hubitat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestGateway_Get(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/devices/all":
			json.NewEncoder(w).Encode([]map[string]any{{"id": "1", "label": "Hall"}})
		case "/broken":
			w.Write([]byte("<html>not json</html>"))
		case "/error":
			http.Error(w, "boom", http.StatusInternalServerError)
		case "/slow":
			time.Sleep(200 * time.Millisecond)
			json.NewEncoder(w).Encode([]any{})
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	gw := NewGateway(50*time.Millisecond, zerolog.Nop())
	ctx := context.Background()

	t.Run("json body", func(t *testing.T) {
		v := gw.Get(ctx, server.URL+"/devices/all?access_token=abc")
		items, ok := v.([]any)
		if !ok || len(items) != 1 {
			t.Fatalf("got %#v, want one-element list", v)
		}
	})

	tests := []struct {
		name string
		url  string
	}{
		{"non json body", server.URL + "/broken"},
		{"server error", server.URL + "/error"},
		{"not found", server.URL + "/missing"},
		{"timeout", server.URL + "/slow"},
		{"connection refused", "http://127.0.0.1:1/devices/all"},
		{"invalid url", "://nope"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if v := gw.Get(ctx, tt.url); v != nil {
				t.Errorf("got %#v, want nil", v)
			}
		})
	}
}

func TestRedact(t *testing.T) {
	got := redact("http://hub/apps/api/1/devices/all?access_token=secret")
	if strings.Contains(got, "secret") {
		t.Errorf("token leaked: %s", got)
	}
	if !strings.Contains(got, "access_token=REDACTED") {
		t.Errorf("redacted url: got %s", got)
	}
}
