package background

import (
	"sync"

	"palenque-realtime/model"

	"github.com/rs/zerolog"
)

// AppStateFeed app 前後台狀態的來源。
// 行動端由原生橋接餵入；daemon 模式由 demo 劇本或診斷指令餵入。
type AppStateFeed struct {
	logger zerolog.Logger

	mu        sync.Mutex
	current   model.AppState
	seq       int
	listeners map[int]func(model.AppState)
}

// NewAppStateFeed 建立狀態來源，初始為前台 active
func NewAppStateFeed(logger zerolog.Logger) *AppStateFeed {
	return &AppStateFeed{
		logger:    logger.With().Str("module", "app_state_feed").Logger(),
		current:   model.AppStateActive,
		listeners: make(map[int]func(model.AppState)),
	}
}

// Current 當前狀態
func (f *AppStateFeed) Current() model.AppState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

// Push 餵入一次狀態變更；狀態相同時不通知
func (f *AppStateFeed) Push(state model.AppState) {
	f.mu.Lock()
	if state == f.current {
		f.mu.Unlock()
		return
	}
	f.current = state
	fns := make([]func(model.AppState), 0, len(f.listeners))
	for _, fn := range f.listeners {
		fns = append(fns, fn)
	}
	f.mu.Unlock()

	f.logger.Debug().Str("state", string(state)).Msg("app 狀態變更")
	for _, fn := range fns {
		fn(state)
	}
}

// OnChange 註冊狀態變更監聽；回傳的函數用於解除
func (f *AppStateFeed) OnChange(fn func(model.AppState)) func() {
	f.mu.Lock()
	f.seq++
	id := f.seq
	f.listeners[id] = fn
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		delete(f.listeners, id)
		f.mu.Unlock()
	}
}
