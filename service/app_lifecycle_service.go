package service

import (
	"context"
	"sync"

	"palenque-realtime/model"

	"github.com/rs/zerolog"
)

// AppStateSource 抽象化 app 前後台狀態來源。
// 行動端由原生橋接實作；daemon 與測試使用模擬實作。
type AppStateSource interface {
	// OnChange 註冊狀態變更監聽；回傳的 remove 函數用於解除
	OnChange(fn func(model.AppState)) (remove func())
}

// AppLifecycleService app 前後台切換與上線狀態的橋接：
// 只在工作台開啟期間作用，
// 前台→後台 視為離線、後台→前台 視為回到線上，
// 各打一次 toggle-online-status。狀態未跨越前後台邊界的變更忽略。
type AppLifecycleService struct {
	logger zerolog.Logger
	api    *APIService

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	inDashboard bool
	prev        model.AppState
	remove      func()

	// 取得要附帶上報的最後定位；可為 nil
	lastFix func() *model.LocationFix
}

// NewAppLifecycleService 建立 app 生命週期橋接服務
func NewAppLifecycleService(logger zerolog.Logger, api *APIService, source AppStateSource, lastFix func() *model.LocationFix) *AppLifecycleService {
	ctx, cancel := context.WithCancel(context.Background())
	s := &AppLifecycleService{
		logger:  logger.With().Str("module", "app_lifecycle").Logger(),
		api:     api,
		ctx:     ctx,
		cancel:  cancel,
		prev:    model.AppStateActive,
		lastFix: lastFix,
	}
	if source != nil {
		s.remove = source.OnChange(s.handleChange)
	}
	return s
}

// SetInDashboard 工作台進出狀態變更
func (s *AppLifecycleService) SetInDashboard(inDashboard bool) {
	s.mu.Lock()
	s.inDashboard = inDashboard
	if inDashboard {
		// 進入工作台時重設基準，避免殘留的舊狀態誤判邊界
		s.prev = model.AppStateActive
	}
	s.mu.Unlock()
}

// Stop 解除監聽並取消 in-flight REST 呼叫
func (s *AppLifecycleService) Stop() {
	s.mu.Lock()
	remove := s.remove
	s.remove = nil
	s.mu.Unlock()
	if remove != nil {
		remove()
	}
	s.cancel()
}

// handleChange 偵測前後台邊界的跨越
func (s *AppLifecycleService) handleChange(curr model.AppState) {
	s.mu.Lock()
	prev := s.prev
	s.prev = curr
	inDashboard := s.inDashboard
	s.mu.Unlock()

	if !inDashboard {
		return
	}
	if prev.IsForeground() == curr.IsForeground() {
		return // 未跨越前後台邊界（如 inactive → background）
	}

	online := curr.IsForeground()
	s.logger.Info().
		Str("前", string(prev)).
		Str("後", string(curr)).
		Bool("上線", online).
		Msg("app 前後台切換，更新上線狀態")

	var fix *model.LocationFix
	if s.lastFix != nil {
		fix = s.lastFix()
	}
	go func() {
		_ = s.api.ToggleOnlineStatus(s.ctx, online, fix)
	}()
}
