package service

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// RefreshFlag 防抖的刷新旗標。一波密集的「該刷新了」訊號
// 只會讓旗標翻 true 一次，並在固定窗口後自動翻回 false；
// 窗口期間的重複觸發是 no-op，不會延長窗口 —
// 旗標為 true 的時間以「第一次觸發」起算，封頂為 window。
// 消費端把 false→true 的邊緣當作重新抓取資料的訊號。
type RefreshFlag struct {
	logger zerolog.Logger
	name   string
	window time.Duration

	mu        sync.Mutex
	active    bool
	timer     *time.Timer
	listeners []func()
}

// NewRefreshFlag 建立刷新旗標。window 為防抖窗口（明確參數，測試可縮短）。
func NewRefreshFlag(logger zerolog.Logger, name string, window time.Duration) *RefreshFlag {
	return &RefreshFlag{
		logger: logger.With().Str("module", "refresh_flag").Str("flag", name).Logger(),
		name:   name,
		window: window,
	}
}

// Trigger 觸發刷新。旗標目前為 false 時翻 true 並啟動重置計時器；
// 已為 true 時不做任何事（不延長窗口）。
func (f *RefreshFlag) Trigger() {
	f.mu.Lock()
	if f.active {
		f.mu.Unlock()
		return
	}
	f.active = true
	f.timer = time.AfterFunc(f.window, f.reset)
	listeners := make([]func(), len(f.listeners))
	copy(listeners, f.listeners)
	f.mu.Unlock()

	f.logger.Debug().Msg("刷新旗標翻起")
	for _, fn := range listeners {
		fn()
	}
}

// Active 旗標當前狀態
func (f *RefreshFlag) Active() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active
}

// OnRise 訂閱 false→true 邊緣；回傳的函數用於取消訂閱
func (f *RefreshFlag) OnRise(fn func()) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listeners = append(f.listeners, fn)
	idx := len(f.listeners) - 1
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if idx < len(f.listeners) {
			f.listeners[idx] = func() {}
		}
	}
}

// Stop 取消待執行的重置計時器並清掉旗標（元件卸載時呼叫）
func (f *RefreshFlag) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.timer != nil {
		f.timer.Stop()
		f.timer = nil
	}
	f.active = false
}

func (f *RefreshFlag) reset() {
	f.mu.Lock()
	f.active = false
	f.timer = nil
	f.mu.Unlock()
	f.logger.Debug().Msg("刷新旗標重置")
}
