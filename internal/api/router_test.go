package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/CaioWing/Arcade/internal/api/storefront"
	"github.com/CaioWing/Arcade/internal/auth"
	"github.com/CaioWing/Arcade/internal/bus"
	"github.com/CaioWing/Arcade/internal/domain"
	"github.com/CaioWing/Arcade/internal/metrics"
	"github.com/CaioWing/Arcade/internal/repository/memory"
	"github.com/CaioWing/Arcade/internal/service"
)

const (
	testAdminEmail    = "admin@arcade.local"
	testAdminPassword = "s3cret"
)

type testServer struct {
	t          *testing.T
	handler    http.Handler
	devices    *memory.DeviceRepo
	workOrders *memory.WorkOrderRepo
	token      string
}

func newTestServer(t *testing.T, devices ...*domain.Device) *testServer {
	t.Helper()
	log := zap.NewNop()
	done := make(chan struct{})
	t.Cleanup(func() { close(done) })

	deviceRepo := memory.NewDeviceRepo(devices...)
	workOrderRepo := memory.NewWorkOrderRepo()
	policyRepo := memory.NewPolicyRepo(&domain.MaintenancePolicy{ID: uuid.New(), Name: "monthly", IntervalDays: 30, IsActive: true})
	m := metrics.New()
	changes := bus.New(log)

	store := service.NewDeviceStore(deviceRepo, log)
	eligibility := service.NewEligibilityService(store, workOrderRepo, log)
	stock := service.NewStockService(store, nil, changes, service.StockOptions{}, m, log)
	t.Cleanup(stock.Close)

	handler, err := NewRouter(RouterDeps{
		DeviceSvc:    service.NewDeviceService(deviceRepo, store, eligibility, changes, log),
		WorkOrderSvc: service.NewWorkOrderService(workOrderRepo, store, changes, log),
		PolicySvc:    service.NewPolicyService(policyRepo, log),
		MaintenanceSvc: service.NewMaintenanceService(store, policyRepo,
			service.NewNotificationService(memory.NewNotificationLog(), log),
			changes, service.MaintenanceOptions{}, m, log),
		EligibilitySvc: eligibility,
		StockSvc:       stock,
		AuditSvc:       service.NewAuditService(memory.NewAuditRepo(), log),
		StockHub:       storefront.NewHub(stock, nil, log),
		JWTManager:     auth.NewJWTManager("test-secret", time.Hour),
		AdminEmail:     testAdminEmail,
		AdminPassword:  testAdminPassword,
		Metrics:        m,
		CORSOrigins:    []string{"*"},
		Logger:         log,
		Done:           done,
	})
	if err != nil {
		t.Fatalf("router: %v", err)
	}

	return &testServer{t: t, handler: handler, devices: deviceRepo, workOrders: workOrderRepo}
}

func (s *testServer) do(method, path string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			s.t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) login() {
	s.t.Helper()
	rec := s.do("POST", "/api/v1/management/auth/login", map[string]string{
		"email": testAdminEmail, "password": testAdminPassword,
	})
	if rec.Code != http.StatusOK {
		s.t.Fatalf("login: %d %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Token string `json:"token"`
	}
	decode(s.t, rec, &resp)
	s.token = resp.Token
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(dst); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func readyDevice(serial, category string) *domain.Device {
	now := time.Now()
	return &domain.Device{
		ID:                uuid.New(),
		SerialNumber:      serial,
		Category:          category,
		Status:            domain.DeviceStatusReady,
		MaintenanceStatus: domain.MaintenanceOK,
		Health:            100,
		UsageMetrics:      domain.UsageMetrics{LastServiceDate: &now},
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	if rec := s.do("GET", "/health", nil); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestStorefrontStock(t *testing.T) {
	s := newTestServer(t,
		readyDevice("PS5-1", "PS5"),
		readyDevice("PS5-2", " ps5 "),
		readyDevice("SW-1", "Switch"),
	)

	rec := s.do("GET", "/api/v1/storefront/stock", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := rec.Header().Get(storefront.SourceHeader); got != "live" {
		t.Fatalf("expected live source, got %q", got)
	}

	var body struct {
		Items  []domain.StockItem `json:"items"`
		Source string             `json:"source"`
	}
	decode(t, rec, &body)
	if len(body.Items) != 2 || body.Items[0].ID != "ps5" || body.Items[0].Total != 2 {
		t.Fatalf("unexpected items %+v", body.Items)
	}
}

func TestStorefrontEligibility(t *testing.T) {
	d := readyDevice("PS5-1", "PS5")
	s := newTestServer(t, d)

	rec := s.do("GET", "/api/v1/storefront/devices/"+d.ID.String()+"/eligibility", nil)
	var verdict domain.Eligibility
	decode(t, rec, &verdict)
	if !verdict.Allowed {
		t.Fatalf("expected allowed, got %+v", verdict)
	}

	rec = s.do("GET", "/api/v1/storefront/devices/"+uuid.NewString()+"/eligibility", nil)
	decode(t, rec, &verdict)
	if verdict.Allowed || verdict.Reason == "" {
		t.Fatalf("expected denial with reason for unknown device, got %+v", verdict)
	}

	if rec := s.do("GET", "/api/v1/storefront/devices/not-a-uuid/eligibility", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestManagementRequiresAuth(t *testing.T) {
	s := newTestServer(t)

	if rec := s.do("GET", "/api/v1/management/devices", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}

	rec := s.do("POST", "/api/v1/management/auth/login", map[string]string{
		"email": testAdminEmail, "password": "wrong",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong password, got %d", rec.Code)
	}

	s.token = "garbage"
	if rec := s.do("GET", "/api/v1/management/devices", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad token, got %d", rec.Code)
	}
}

func TestRentalFlow(t *testing.T) {
	s := newTestServer(t)
	s.login()

	rec := s.do("POST", "/api/v1/management/devices", map[string]any{"serial_number": "PS5-9", "category": "PS5"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("intake: %d %s", rec.Code, rec.Body.String())
	}
	var d domain.Device
	decode(t, rec, &d)
	path := "/api/v1/management/devices/" + d.ID.String()

	if rec := s.do("POST", "/api/v1/management/devices", map[string]any{"serial_number": "PS5-9", "category": "PS5"}); rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate serial, got %d", rec.Code)
	}

	rec = s.do("POST", path+"/rent", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("rent: %d %s", rec.Code, rec.Body.String())
	}
	decode(t, rec, &d)
	if d.Status != domain.DeviceStatusRented || d.UsageMetrics.TotalRentals != 1 {
		t.Fatalf("unexpected device after rent %+v", d)
	}

	if rec := s.do("POST", path+"/rent", nil); rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 renting a rented device, got %d", rec.Code)
	}

	rec = s.do("POST", path+"/return", map[string]any{"days_rented": 3})
	if rec.Code != http.StatusOK {
		t.Fatalf("return: %d %s", rec.Code, rec.Body.String())
	}
	decode(t, rec, &d)
	if d.Status != domain.DeviceStatusReady || d.UsageMetrics.TotalDaysRented != 3 {
		t.Fatalf("unexpected device after return %+v", d)
	}

	rec = s.do("GET", "/api/v1/management/audit", nil)
	var audit struct {
		Data []domain.AuditEntry `json:"data"`
	}
	decode(t, rec, &audit)
	actions := map[string]bool{}
	for _, e := range audit.Data {
		actions[e.Action] = true
	}
	for _, want := range []string{"device.intake", "device.rent", "device.return"} {
		if !actions[want] {
			t.Errorf("missing audit action %s in %v", want, actions)
		}
	}
}

func TestAuditTrailPerDevice(t *testing.T) {
	d1, d2 := readyDevice("PS5-1", "PS5"), readyDevice("PS5-2", "PS5")
	s := newTestServer(t, d1, d2)
	s.login()

	first, second := d1.ID.String(), d2.ID.String()
	for _, id := range []string{first, second} {
		if rec := s.do("POST", "/api/v1/management/devices/"+id+"/rent", nil); rec.Code != http.StatusOK {
			t.Fatalf("rent %s: %d %s", id, rec.Code, rec.Body.String())
		}
	}
	if rec := s.do("POST", "/api/v1/management/devices/"+first+"/return", map[string]any{"days_rented": 2}); rec.Code != http.StatusOK {
		t.Fatalf("return: %d %s", rec.Code, rec.Body.String())
	}

	var trail struct {
		Data []domain.AuditEntry `json:"data"`
	}
	for _, path := range []string{
		"/api/v1/management/audit?resource=device&resource_id=" + first,
		"/api/v1/management/devices/" + first + "/audit",
	} {
		rec := s.do("GET", path, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: %d %s", path, rec.Code, rec.Body.String())
		}
		decode(t, rec, &trail)
		if len(trail.Data) != 2 {
			t.Fatalf("%s: expected rent and return, got %+v", path, trail.Data)
		}
		for _, e := range trail.Data {
			if e.ResourceID != first {
				t.Errorf("%s: entry for another resource %s", path, e.ResourceID)
			}
		}
	}

	future := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
	rec := s.do("GET", "/api/v1/management/audit?since="+future, nil)
	decode(t, rec, &trail)
	if len(trail.Data) != 0 {
		t.Fatalf("expected no entries after %s, got %d", future, len(trail.Data))
	}

	for _, query := range []string{"resource=console", "since=yesterday"} {
		if rec := s.do("GET", "/api/v1/management/audit?"+query, nil); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", query, rec.Code)
		}
	}
}

func TestRentRefusedByCriticalWorkOrder(t *testing.T) {
	d := readyDevice("PS5-1", "PS5")
	s := newTestServer(t, d)
	s.login()

	rec := s.do("POST", "/api/v1/management/work-orders", map[string]any{
		"device_id": d.ID, "title": "HDMI port loose", "priority": "Critical",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create work order: %d %s", rec.Code, rec.Body.String())
	}

	rec = s.do("POST", "/api/v1/management/devices/"+d.ID.String()+"/rent", nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), service.ReasonCriticalWorkOrder) {
		t.Fatalf("expected the reason in the body, got %s", rec.Body.String())
	}
}

func TestValidationErrors(t *testing.T) {
	d := readyDevice("PS5-1", "PS5")
	s := newTestServer(t, d)
	s.login()

	tests := []struct {
		name   string
		method string
		path   string
		body   any
	}{
		{"intake without category", "POST", "/api/v1/management/devices", map[string]any{"serial_number": "X"}},
		{"health out of range", "PUT", "/api/v1/management/devices/" + d.ID.String() + "/health", map[string]any{"health": 150}},
		{"unknown maintenance status", "PUT", "/api/v1/management/devices/" + d.ID.String() + "/maintenance", map[string]any{"status": "Broken"}},
		{"bad priority", "POST", "/api/v1/management/work-orders", map[string]any{"device_id": d.ID, "title": "x", "priority": "Urgent"}},
		{"zero interval policy", "POST", "/api/v1/management/policies", map[string]any{"name": "x", "interval_days": 0}},
		{"bad device id", "GET", "/api/v1/management/devices/nope", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := s.do(tt.method, tt.path, tt.body); rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestEvaluationEndpoint(t *testing.T) {
	stale := readyDevice("PS5-1", "PS5")
	old := time.Now().AddDate(0, 0, -45)
	stale.UsageMetrics.LastServiceDate = &old
	s := newTestServer(t, stale, readyDevice("PS5-2", "PS5"))
	s.login()

	rec := s.do("POST", "/api/v1/management/evaluations", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("evaluate: %d %s", rec.Code, rec.Body.String())
	}
	var result domain.EvaluationResult
	decode(t, rec, &result)
	if result.Evaluated != 2 || result.Updated != 1 {
		t.Fatalf("unexpected result %+v", result)
	}

	rec = s.do("GET", "/api/v1/management/devices/"+stale.ID.String(), nil)
	var d domain.Device
	decode(t, rec, &d)
	if d.MaintenanceStatus != domain.MaintenanceOverdue {
		t.Fatalf("expected Overdue, got %s", d.MaintenanceStatus)
	}
}

func TestStockExport(t *testing.T) {
	s := newTestServer(t, readyDevice("PS5-1", "PS5"))
	s.login()

	rec := s.do("GET", "/api/v1/management/stock/export", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("export: %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.Contains(ct, "spreadsheetml") {
		t.Fatalf("unexpected content type %q", ct)
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")) {
		t.Fatal("expected a zip container")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	s.do("GET", "/health", nil)

	rec := s.do("GET", "/metrics", nil)
	if !strings.Contains(rec.Body.String(), "arcade_http_requests_total") {
		t.Fatalf("expected request counter in %s", rec.Body.String())
	}
}

func TestStockStream(t *testing.T) {
	s := newTestServer(t, readyDevice("PS5-1", "PS5"))
	srv := httptest.NewServer(s.handler)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/storefront/stock/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	next := func() storefront.StockEvent {
		t.Helper()
		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		var evt storefront.StockEvent
		if err := conn.ReadJSON(&evt); err != nil {
			t.Fatalf("read: %v", err)
		}
		return evt
	}

	first := next()
	if first.Type != "stock" || len(first.Items) != 1 || first.Items[0].Total != 1 {
		t.Fatalf("unexpected initial event %+v", first)
	}

	s.login()
	if rec := s.do("POST", "/api/v1/management/devices", map[string]any{"serial_number": "PS5-2", "category": "PS5"}); rec.Code != http.StatusCreated {
		t.Fatalf("intake: %d", rec.Code)
	}

	for {
		evt := next()
		if evt.Items[0].Total == 2 {
			return
		}
	}
}
