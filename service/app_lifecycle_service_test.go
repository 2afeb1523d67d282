package service

import (
	"sync"
	"testing"
	"time"

	"palenque-realtime/model"
)

// fakeStateSource 測試用 app 狀態來源
type fakeStateSource struct {
	mu sync.Mutex
	fn func(model.AppState)
}

func (f *fakeStateSource) OnChange(fn func(model.AppState)) func() {
	f.mu.Lock()
	f.fn = fn
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		f.fn = nil
		f.mu.Unlock()
	}
}

func (f *fakeStateSource) push(state model.AppState) {
	f.mu.Lock()
	fn := f.fn
	f.mu.Unlock()
	if fn != nil {
		fn(state)
	}
}

func newLifecycleService(t *testing.T, source *fakeStateSource) (*AppLifecycleService, *restRecorder) {
	t.Helper()
	rest := newRESTRecorder(t)
	logger := newTestLogger()
	api := NewAPIService(logger, rest.server.URL, "token", 5*time.Second)
	s := NewAppLifecycleService(logger, api, source, nil)
	t.Cleanup(s.Stop)
	return s, rest
}

// TestLifecycleBackgroundEdge 測試前台→後台切換觸發一次離線上報
func TestLifecycleBackgroundEdge(t *testing.T) {
	source := &fakeStateSource{}
	s, rest := newLifecycleService(t, source)

	s.SetInDashboard(true)
	source.push(model.AppStateBackground)

	waitFor(t, time.Second, func() bool { return len(rest.toggles()) == 1 }, "應收到一次上報")
	if req := rest.toggles()[0]; req.IsOnline {
		t.Fatal("切到後台應上報離線")
	}
}

// TestLifecycleForegroundEdge 測試後台→前台切換觸發一次上線上報
func TestLifecycleForegroundEdge(t *testing.T) {
	source := &fakeStateSource{}
	s, rest := newLifecycleService(t, source)

	s.SetInDashboard(true)
	source.push(model.AppStateBackground)
	waitFor(t, time.Second, func() bool { return len(rest.toggles()) == 1 }, "離線上報")

	source.push(model.AppStateActive)
	waitFor(t, time.Second, func() bool { return len(rest.toggles()) == 2 }, "上線上報")
	if req := rest.toggles()[1]; !req.IsOnline {
		t.Fatal("回到前台應上報上線")
	}
}

// TestLifecycleNoOpOutsideDashboard 測試不在工作台時切換不觸發上報
func TestLifecycleNoOpOutsideDashboard(t *testing.T) {
	source := &fakeStateSource{}
	s, rest := newLifecycleService(t, source)

	s.SetInDashboard(false)
	source.push(model.AppStateBackground)
	source.push(model.AppStateActive)

	time.Sleep(100 * time.Millisecond)
	if got := len(rest.toggles()); got != 0 {
		t.Fatalf("不在工作台時不應上報，實際 %d 次", got)
	}
}

// TestLifecycleNoBoundaryCrossing 測試未跨越前後台邊界的變更忽略
func TestLifecycleNoBoundaryCrossing(t *testing.T) {
	source := &fakeStateSource{}
	s, rest := newLifecycleService(t, source)

	s.SetInDashboard(true)
	source.push(model.AppStateInactive)
	waitFor(t, time.Second, func() bool { return len(rest.toggles()) == 1 }, "active→inactive 跨越邊界")

	// inactive → background 同在後台側，不應再上報
	source.push(model.AppStateBackground)
	time.Sleep(100 * time.Millisecond)
	if got := len(rest.toggles()); got != 1 {
		t.Fatalf("inactive→background 不應上報，實際 %d 次", got)
	}
}
