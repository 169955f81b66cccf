package api

import (
	"net/http"
	"strings"
	"testing"
)

func TestRedactQuery(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"empty", "", ""},
		{"no credentials", "limit=10&module=uart", "limit=10&module=uart"},
		{"credentials only", "auth=YWRtaW46c2VjcmV0", "auth=REDACTED"},
		{"credentials among others", "module=effects&auth=YWRtaW46c2VjcmV0", "auth=REDACTED&module=effects"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := redactQuery(tt.raw); got != tt.want {
				t.Errorf("redactQuery(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t, testHardware())

	for _, path := range []string{"/api/effects", "/mcp", "/metrics"} {
		t.Run(path, func(t *testing.T) {
			req, _ := http.NewRequest(http.MethodOptions, env.url+path, nil)
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatalf("request: %v", err)
			}
			resp.Body.Close()

			if resp.StatusCode != http.StatusNoContent {
				t.Errorf("status = %d, want 204", resp.StatusCode)
			}
			if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
				t.Errorf("allow origin = %q", got)
			}
			if got := resp.Header.Get("Access-Control-Allow-Headers"); !strings.Contains(got, "Mcp-Session-Id") {
				t.Errorf("allow headers = %q, want Mcp-Session-Id", got)
			}
			if got := resp.Header.Get("Access-Control-Expose-Headers"); got != "Mcp-Session-Id" {
				t.Errorf("expose headers = %q", got)
			}
		})
	}
}
