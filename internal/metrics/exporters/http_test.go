package exporters

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/smazurov/effectnode/internal/metrics"
)

func TestHTTPHandler(t *testing.T) {
	handler := HTTPHandler()

	metrics.SetEffectState("http-test-effect", "running")
	metrics.IncRegisterDegraded("http-test-register")
	defer metrics.DeleteEffectMetrics("http-test-effect")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}

	body := w.Body.String()
	for _, want := range []string{
		`effectnode_effect_state{effect="http-test-effect",state="running"} 1`,
		"effectnode_register_degraded_writes_total",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("response missing %q", want)
		}
	}
}
