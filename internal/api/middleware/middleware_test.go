package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
)

func TestClassifyRequest(t *testing.T) {
	tests := []struct {
		method, path           string
		action, resource, rsID string
	}{
		{"POST", "/api/v1/management/devices", "device.intake", "device", ""},
		{"POST", "/api/v1/management/devices/abc/rent", "device.rent", "device", "abc"},
		{"POST", "/api/v1/management/devices/abc/retire", "device.retire", "device", "abc"},
		{"PUT", "/api/v1/management/devices/abc/maintenance", "device.set_maintenance", "device", "abc"},
		{"POST", "/api/v1/management/work-orders", "workorder.create", "workorder", ""},
		{"POST", "/api/v1/management/work-orders/w1/complete", "workorder.complete", "workorder", "w1"},
		{"POST", "/api/v1/management/policies/p1/deactivate", "policy.deactivate", "policy", "p1"},
		{"POST", "/api/v1/management/evaluations", "evaluation.run", "evaluation", ""},
		{"POST", "/api/v1/management/stock/invalidate", "stock.invalidate", "stock", ""},
		{"POST", "/api/v1/management/auth/refresh", "", "", ""},
		{"DELETE", "/api/v1/management/devices/abc", "", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			action, resource, id := classifyRequest(tt.method, tt.path)
			if action != tt.action || resource != tt.resource || id != tt.rsID {
				t.Errorf("got (%q, %q, %q), want (%q, %q, %q)", action, resource, id, tt.action, tt.resource, tt.rsID)
			}
		})
	}
}

func TestRateLimit(t *testing.T) {
	stop := make(chan struct{})
	defer close(stop)

	rl := NewRateLimiter(1, 2, stop)
	h := RateLimit(rl, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:5000"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	if codes[0] != http.StatusNoContent || codes[1] != http.StatusNoContent || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("unexpected codes %v", codes)
	}

	// Another client has its own bucket.
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.2:5000"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected second client to pass, got %d", rec.Code)
	}
}
