package gateway

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestPolicyDecide(t *testing.T) {
	allowed := []string{"http://localhost:3000", "HTTPS://App.Example.COM"}
	methods := []string{"GET", "POST"}
	p := NewPolicy(false, allowed, methods)

	tests := []struct {
		name   string
		origin string
		method string
		allow  bool
	}{
		{"allowed origin", "http://localhost:3000", "GET", true},
		{"allowed origin POST", "http://localhost:3000", "POST", true},
		{"case-insensitive origin", "https://app.example.com", "GET", true},
		{"disallowed origin", "http://evil.example", "GET", false},
		{"disallowed method", "http://localhost:3000", "DELETE", false},
		{"lowercase method allowed", "http://localhost:3000", "get", true},
		{"absent origin is non-browser", "", "GET", true},
		{"malformed origin", "not a url", "GET", false},
		{"scheme only", "http://", "GET", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := p.Decide(tt.origin, tt.method)
			if d.Allow != tt.allow {
				t.Errorf("Decide(%q, %q).Allow = %v, want %v (reason: %q)",
					tt.origin, tt.method, d.Allow, tt.allow, d.Reason)
			}
			if !d.Allow && d.Reason == "" {
				t.Error("deny decision should carry a reason")
			}
			if d.Allow && d.Reason != "" {
				t.Errorf("allow decision should not carry a reason, got %q", d.Reason)
			}
		})
	}
}

func TestPolicyEmptyAllowListDeniesAll(t *testing.T) {
	p := NewPolicy(false, nil, []string{"GET"})

	for _, origin := range []string{"http://localhost:3000", "https://anything.example"} {
		if d := p.Decide(origin, "GET"); d.Allow {
			t.Errorf("empty allow-list admitted origin %q", origin)
		}
	}
}

func TestPolicyWildcardAllowsAnyOrigin(t *testing.T) {
	p := NewPolicy(true, nil, []string{"GET"})

	if d := p.Decide("http://evil.example", "GET"); !d.Allow {
		t.Errorf("wildcard policy denied origin: %q", d.Reason)
	}
	// The verb list still applies under a wildcard.
	if d := p.Decide("http://evil.example", "DELETE"); d.Allow {
		t.Error("wildcard policy should still enforce the method list")
	}
}

func TestPolicyCheckOrigin(t *testing.T) {
	p := NewPolicy(false, []string{"http://localhost:3000"}, []string{"GET"})

	r := httptest.NewRequest(http.MethodGet, "/socket", nil)
	r.Header.Set("Origin", "http://localhost:3000")
	if !p.CheckOrigin(r) {
		t.Error("CheckOrigin should admit an allow-listed origin")
	}

	r.Header.Set("Origin", "http://evil.example")
	if p.CheckOrigin(r) {
		t.Error("CheckOrigin should reject an unlisted origin")
	}
}
