package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/wricardo/kiosk-shell/catalog"
	"github.com/wricardo/kiosk-shell/config"
	"github.com/wricardo/kiosk-shell/kiosk/idle"
	"github.com/wricardo/kiosk-shell/kiosk/lifecycle"
	"github.com/wricardo/kiosk-shell/kiosk/navigation"
	"github.com/wricardo/kiosk-shell/kiosk/record"
	"github.com/wricardo/kiosk-shell/kiosk/registry"
	"github.com/wricardo/kiosk-shell/kiosk/service"
	"github.com/wricardo/kiosk-shell/kiosk/view"
	"github.com/wricardo/kiosk-shell/monitoring"
)

// MockKioskService implements service.KioskService for testing
type MockKioskService struct {
	ShowViewFunc          func(ctx context.Context, id string) error
	HideViewFunc          func(ctx context.Context, id string) error
	NavigateViewFunc      func(ctx context.Context, id, url string) error
	NavigationControlFunc func(ctx context.Context, id, action string) error
	CanGoBackFunc         func(ctx context.Context, id string) (bool, error)
	CurrentURLFunc        func(ctx context.Context, id string) (string, bool, error)
	RemoveElementsFunc    func(ctx context.Context, id, selector string) error
	ListViewsFunc         func(ctx context.Context) ([]registry.Info, error)
	DestroyAllViewsFunc   func(ctx context.Context) error

	SetIdleTimeoutFunc func(ctx context.Context, d time.Duration) error
	SuppressIdleFunc   func(ctx context.Context, suppressed bool) error
	RecordActivityFunc func(ctx context.Context, kind string) error

	GetKioskFunc  func(ctx context.Context) (*record.Info, error)
	SaveKioskFunc func(ctx context.Context, info record.Info) error

	mu     sync.Mutex
	status idle.Status
	quit   chan struct{}
}

func (m *MockKioskService) ShowView(ctx context.Context, id string) error {
	if m.ShowViewFunc != nil {
		return m.ShowViewFunc(ctx, id)
	}
	return nil
}

func (m *MockKioskService) HideView(ctx context.Context, id string) error {
	if m.HideViewFunc != nil {
		return m.HideViewFunc(ctx, id)
	}
	return nil
}

func (m *MockKioskService) NavigateView(ctx context.Context, id, url string) error {
	if m.NavigateViewFunc != nil {
		return m.NavigateViewFunc(ctx, id, url)
	}
	return nil
}

func (m *MockKioskService) NavigationControl(ctx context.Context, id, action string) error {
	if m.NavigationControlFunc != nil {
		return m.NavigationControlFunc(ctx, id, action)
	}
	return nil
}

func (m *MockKioskService) CanGoBack(ctx context.Context, id string) (bool, error) {
	if m.CanGoBackFunc != nil {
		return m.CanGoBackFunc(ctx, id)
	}
	return false, nil
}

func (m *MockKioskService) CurrentURL(ctx context.Context, id string) (string, bool, error) {
	if m.CurrentURLFunc != nil {
		return m.CurrentURLFunc(ctx, id)
	}
	return "", false, nil
}

func (m *MockKioskService) RemoveElements(ctx context.Context, id, selector string) error {
	if m.RemoveElementsFunc != nil {
		return m.RemoveElementsFunc(ctx, id, selector)
	}
	return nil
}

func (m *MockKioskService) ListViews(ctx context.Context) ([]registry.Info, error) {
	if m.ListViewsFunc != nil {
		return m.ListViewsFunc(ctx)
	}
	return []registry.Info{}, nil
}

func (m *MockKioskService) DestroyAllViews(ctx context.Context) error {
	if m.DestroyAllViewsFunc != nil {
		return m.DestroyAllViewsFunc(ctx)
	}
	return nil
}

func (m *MockKioskService) SetIdleTimeout(ctx context.Context, d time.Duration) error {
	if m.SetIdleTimeoutFunc != nil {
		if err := m.SetIdleTimeoutFunc(ctx, d); err != nil {
			return err
		}
	}
	m.mu.Lock()
	m.status.TimeoutMS = d.Milliseconds()
	m.mu.Unlock()
	return nil
}

func (m *MockKioskService) StopIdleTimer(ctx context.Context) error {
	m.mu.Lock()
	m.status.Armed = false
	m.mu.Unlock()
	return nil
}

func (m *MockKioskService) StartIdleTimer(ctx context.Context) error {
	m.mu.Lock()
	m.status.Armed = true
	m.mu.Unlock()
	return nil
}

func (m *MockKioskService) SuppressIdle(ctx context.Context, suppressed bool) error {
	if m.SuppressIdleFunc != nil {
		return m.SuppressIdleFunc(ctx, suppressed)
	}
	m.mu.Lock()
	m.status.Suppressed = suppressed
	m.mu.Unlock()
	return nil
}

func (m *MockKioskService) RecordActivity(ctx context.Context, kind string) error {
	if m.RecordActivityFunc != nil {
		return m.RecordActivityFunc(ctx, kind)
	}
	return nil
}

func (m *MockKioskService) IdleStatus(ctx context.Context) (*idle.Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.status
	return &st, nil
}

func (m *MockKioskService) ListPages(ctx context.Context) ([]catalog.Page, error) {
	return []catalog.Page{
		{ID: "home", Label: "Home", URL: "https://home.example/"},
	}, nil
}

func (m *MockKioskService) GetKiosk(ctx context.Context) (*record.Info, error) {
	if m.GetKioskFunc != nil {
		return m.GetKioskFunc(ctx)
	}
	return &record.Info{Name: "Lobby", Mode: "kiosk"}, nil
}

func (m *MockKioskService) SaveKiosk(ctx context.Context, info record.Info) error {
	if m.SaveKioskFunc != nil {
		return m.SaveKioskFunc(ctx, info)
	}
	return nil
}

func (m *MockKioskService) ResetKiosk(ctx context.Context) error {
	return nil
}

func (m *MockKioskService) Quit(ctx context.Context) error {
	if m.quit != nil {
		close(m.quit)
	}
	return nil
}

func newTestServer(svc service.KioskService) *Server {
	return NewServer(svc, nil, Options{Metrics: monitoring.NewMetrics()})
}

func doRequest(t *testing.T, s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	return w
}

func TestServer_Info(t *testing.T) {
	s := newTestServer(&MockKioskService{})

	w := doRequest(t, s, "GET", "/api", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var resp InfoResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Name != "kiosk-shell" || len(resp.Endpoints) == 0 {
		t.Errorf("Unexpected info: %+v", resp)
	}
}

func TestServer_Pages(t *testing.T) {
	s := newTestServer(&MockKioskService{})

	w := doRequest(t, s, "GET", "/api/pages", nil)
	var resp PagesResponse
	json.NewDecoder(w.Body).Decode(&resp)
	if resp.Count != 1 || resp.Pages[0].ID != "home" {
		t.Errorf("Unexpected pages: %+v", resp)
	}
}

func TestServer_Views(t *testing.T) {
	var shown, hidden string
	mock := &MockKioskService{
		ShowViewFunc: func(ctx context.Context, id string) error {
			shown = id
			return nil
		},
		HideViewFunc: func(ctx context.Context, id string) error {
			hidden = id
			return nil
		},
		ListViewsFunc: func(ctx context.Context) ([]registry.Info, error) {
			return []registry.Info{
				{ID: "home", State: registry.Active, Hidden: true},
				{ID: "news", State: registry.Active, Visible: true},
			}, nil
		},
	}
	s := newTestServer(mock)

	t.Run("show", func(t *testing.T) {
		w := doRequest(t, s, "POST", "/api/views/news/show", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
		}
		if shown != "news" {
			t.Errorf("Expected show of news, got %q", shown)
		}
	})

	t.Run("hide", func(t *testing.T) {
		w := doRequest(t, s, "POST", "/api/views/home/hide", nil)
		if w.Code != http.StatusOK || hidden != "home" {
			t.Errorf("Unexpected hide result: code=%d id=%q", w.Code, hidden)
		}
	})

	t.Run("list", func(t *testing.T) {
		w := doRequest(t, s, "GET", "/api/views", nil)
		var resp struct {
			Count   int    `json:"count"`
			Visible string `json:"visible"`
		}
		if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
		if resp.Count != 2 || resp.Visible != "news" {
			t.Errorf("Unexpected views response: %+v", resp)
		}
	})

	t.Run("wrong method", func(t *testing.T) {
		w := doRequest(t, s, "GET", "/api/views/home/show", nil)
		if w.Code != http.StatusMethodNotAllowed {
			t.Errorf("Expected status 405, got %d", w.Code)
		}
	})
}

func TestServer_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"unknown page", fmt.Errorf("%w: missing", lifecycle.ErrUnknownPage), http.StatusNotFound},
		{"destroying", lifecycle.ErrDestroying, http.StatusConflict},
		{"not active", lifecycle.ErrNotActive, http.StatusConflict},
		{"invalid url", navigation.ErrInvalidURL, http.StatusBadRequest},
		{"creation timeout", lifecycle.ErrCreationTimeout, http.StatusGatewayTimeout},
		{"load failure", &view.LoadError{Code: -105, Description: "ERR_NAME_NOT_RESOLVED"}, http.StatusBadGateway},
		{"other", fmt.Errorf("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(&MockKioskService{
				ShowViewFunc: func(ctx context.Context, id string) error { return tt.err },
			})

			w := doRequest(t, s, "POST", "/api/views/home/show", nil)
			if w.Code != tt.want {
				t.Errorf("Expected status %d, got %d", tt.want, w.Code)
			}

			var resp ErrorResponse
			json.NewDecoder(w.Body).Decode(&resp)
			if resp.Error == "" {
				t.Error("Expected error message in body")
			}
		})
	}
}

func TestServer_Navigation(t *testing.T) {
	var gotURL, gotAction string
	mock := &MockKioskService{
		NavigateViewFunc: func(ctx context.Context, id, url string) error {
			gotURL = url
			return nil
		},
		NavigationControlFunc: func(ctx context.Context, id, action string) error {
			gotAction = action
			if action != "back" && action != "forward" {
				return navigation.ErrInvalidAction
			}
			return nil
		},
		CanGoBackFunc: func(ctx context.Context, id string) (bool, error) {
			return true, nil
		},
		CurrentURLFunc: func(ctx context.Context, id string) (string, bool, error) {
			if id == "home" {
				return "https://home.example/a", true, nil
			}
			return "", false, nil
		},
	}
	s := newTestServer(mock)

	t.Run("navigate", func(t *testing.T) {
		w := doRequest(t, s, "POST", "/api/views/home/navigate", NavigateRequest{URL: "https://home.example/a"})
		if w.Code != http.StatusOK || gotURL != "https://home.example/a" {
			t.Errorf("Unexpected navigate result: code=%d url=%q", w.Code, gotURL)
		}
	})

	t.Run("navigate bad body", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/api/views/home/navigate", bytes.NewBufferString("{"))
		w := httptest.NewRecorder()
		s.ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected status 400, got %d", w.Code)
		}
	})

	t.Run("control", func(t *testing.T) {
		w := doRequest(t, s, "POST", "/api/views/home/control", ControlRequest{Action: "forward"})
		if w.Code != http.StatusOK || gotAction != "forward" {
			t.Errorf("Unexpected control result: code=%d action=%q", w.Code, gotAction)
		}
		w = doRequest(t, s, "POST", "/api/views/home/control", ControlRequest{Action: "reload"})
		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected status 400, got %d", w.Code)
		}
	})

	t.Run("can go back", func(t *testing.T) {
		w := doRequest(t, s, "GET", "/api/views/home/can-go-back", nil)
		var resp CanGoBackResponse
		json.NewDecoder(w.Body).Decode(&resp)
		if !resp.CanGoBack || resp.ID != "home" {
			t.Errorf("Unexpected response: %+v", resp)
		}
	})

	t.Run("current url", func(t *testing.T) {
		w := doRequest(t, s, "GET", "/api/views/home/url", nil)
		var resp URLResponse
		json.NewDecoder(w.Body).Decode(&resp)
		if resp.URL == nil || *resp.URL != "https://home.example/a" {
			t.Errorf("Unexpected url response: %+v", resp)
		}
	})

	t.Run("current url unknown", func(t *testing.T) {
		w := doRequest(t, s, "GET", "/api/views/news/url", nil)
		var raw map[string]interface{}
		json.NewDecoder(w.Body).Decode(&raw)
		if v, ok := raw["url"]; !ok || v != nil {
			t.Errorf("Expected null url, got %v", raw)
		}
	})
}

func TestServer_Idle(t *testing.T) {
	mock := &MockKioskService{
		RecordActivityFunc: func(ctx context.Context, kind string) error {
			if kind != "pointerdown" {
				return service.ErrUnknownActivity
			}
			return nil
		},
		SetIdleTimeoutFunc: func(ctx context.Context, d time.Duration) error {
			if d <= 0 {
				return idle.ErrInvalidTimeout
			}
			return nil
		},
	}
	s := newTestServer(mock)

	t.Run("set timeout", func(t *testing.T) {
		w := doRequest(t, s, "PUT", "/api/idle/timeout", IdleTimeoutRequest{TimeoutMS: 30000})
		var st idle.Status
		json.NewDecoder(w.Body).Decode(&st)
		if w.Code != http.StatusOK || st.TimeoutMS != 30000 {
			t.Errorf("Unexpected status: code=%d %+v", w.Code, st)
		}
	})

	t.Run("invalid timeout", func(t *testing.T) {
		w := doRequest(t, s, "PUT", "/api/idle/timeout", IdleTimeoutRequest{TimeoutMS: 0})
		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected status 400, got %d", w.Code)
		}
	})

	t.Run("start and stop", func(t *testing.T) {
		w := doRequest(t, s, "POST", "/api/idle/start", nil)
		var st idle.Status
		json.NewDecoder(w.Body).Decode(&st)
		if !st.Armed {
			t.Error("Expected armed timer after start")
		}
		w = doRequest(t, s, "POST", "/api/idle/stop", nil)
		st = idle.Status{}
		json.NewDecoder(w.Body).Decode(&st)
		if st.Armed {
			t.Error("Expected disarmed timer after stop")
		}
	})

	t.Run("suppress", func(t *testing.T) {
		w := doRequest(t, s, "PUT", "/api/idle/suppress", SuppressRequest{Suppressed: true})
		var st idle.Status
		json.NewDecoder(w.Body).Decode(&st)
		if !st.Suppressed {
			t.Error("Expected suppressed timer")
		}
	})

	t.Run("activity", func(t *testing.T) {
		w := doRequest(t, s, "POST", "/api/activity", ActivityRequest{Kind: "pointerdown"})
		if w.Code != http.StatusNoContent {
			t.Errorf("Expected status 204, got %d", w.Code)
		}
		w = doRequest(t, s, "POST", "/api/activity", ActivityRequest{Kind: "wheel"})
		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected status 400, got %d", w.Code)
		}
	})
}

func TestServer_Kiosk(t *testing.T) {
	var saved record.Info
	mock := &MockKioskService{
		SaveKioskFunc: func(ctx context.Context, info record.Info) error {
			if info.Name == "" {
				return fmt.Errorf("%w: name cannot be empty", record.ErrInvalidRecord)
			}
			saved = info
			return nil
		},
	}
	s := newTestServer(mock)

	w := doRequest(t, s, "PUT", "/api/kiosk", record.Info{Name: "Lobby", Mode: record.ModeDid})
	if w.Code != http.StatusOK || saved.Mode != record.ModeDid {
		t.Errorf("Unexpected save result: code=%d saved=%+v", w.Code, saved)
	}

	w = doRequest(t, s, "PUT", "/api/kiosk", record.Info{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}

	mock.GetKioskFunc = func(ctx context.Context) (*record.Info, error) {
		return nil, record.ErrNoRecord
	}
	w = doRequest(t, s, "GET", "/api/kiosk", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}

	w = doRequest(t, s, "DELETE", "/api/kiosk", nil)
	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
}

func TestServer_Quit(t *testing.T) {
	mock := &MockKioskService{quit: make(chan struct{})}
	s := newTestServer(mock)

	w := doRequest(t, s, "POST", "/api/quit", nil)
	if w.Code != http.StatusAccepted {
		t.Fatalf("Expected status 202, got %d", w.Code)
	}

	select {
	case <-mock.quit:
	case <-time.After(time.Second):
		t.Fatal("Quit was not called")
	}
}

func TestServer_WebSocketUnavailable(t *testing.T) {
	s := newTestServer(&MockKioskService{})

	w := doRequest(t, s, "GET", "/ws", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503, got %d", w.Code)
	}
}

func TestServer_Metrics(t *testing.T) {
	s := newTestServer(&MockKioskService{})

	doRequest(t, s, "GET", "/api/pages", nil)
	w := doRequest(t, s, "GET", "/metrics", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if !bytes.Contains(w.Body.Bytes(), []byte("kiosk_http_requests_total")) {
		t.Error("Expected request counter in metrics output")
	}
}

func TestServer_RateLimit(t *testing.T) {
	s := NewServer(&MockKioskService{}, nil, Options{
		RateLimit: config.RateLimitConfig{Enabled: true, RequestsPerSecond: 1, Burst: 2},
	})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		codes = append(codes, doRequest(t, s, "GET", "/api/pages", nil).Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK {
		t.Errorf("Expected first requests to pass, got %v", codes)
	}
	if codes[2] != http.StatusTooManyRequests {
		t.Errorf("Expected status 429, got %d", codes[2])
	}
}
