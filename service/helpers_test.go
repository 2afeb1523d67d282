package service

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// newTestLogger 建立測試用 logger
func newTestLogger() zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
}

// waitFor 輪詢等待條件成立，逾時則測試失敗
func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("等待條件逾時: %s", msg)
}

// restRecorder 測試用 REST 伺服器：記錄兩個端點收到的請求
type restRecorder struct {
	server *httptest.Server

	mu              sync.Mutex
	toggleRequests  []ToggleOnlineStatusRequest
	locationUpdates []UpdateLocationRequest
}

func newRESTRecorder(t *testing.T) *restRecorder {
	t.Helper()
	r := &restRecorder{}
	r.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		switch req.URL.Path {
		case "/api/delivery-partner/toggle-online-status":
			var body ToggleOnlineStatusRequest
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			r.mu.Lock()
			r.toggleRequests = append(r.toggleRequests, body)
			r.mu.Unlock()
		case "/api/delivery-partner/update-location":
			var body UpdateLocationRequest
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			r.mu.Lock()
			r.locationUpdates = append(r.locationUpdates, body)
			r.mu.Unlock()
		default:
			http.NotFound(w, req)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(r.server.Close)
	return r
}

func (r *restRecorder) toggles() []ToggleOnlineStatusRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ToggleOnlineStatusRequest, len(r.toggleRequests))
	copy(out, r.toggleRequests)
	return out
}

func (r *restRecorder) locationCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.locationUpdates)
}

// stayFalse 確認條件在整段時間內都不成立
func stayFalse(t *testing.T, duration time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(duration)
	for time.Now().Before(deadline) {
		if cond() {
			t.Fatalf("條件不應成立: %s", msg)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
