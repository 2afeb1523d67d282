package service

import (
	"context"
	"errors"
	"sync"

	"palenque-realtime/metrics"
	"palenque-realtime/model"

	websocketModels "palenque-realtime/data-models/websocket"

	"github.com/rs/zerolog"
)

// ErrPermissionDenied 定位權限被使用者拒絕
var ErrPermissionDenied = errors.New("定位權限被拒絕")

// WatchOptions 裝置定位監聽選項
type WatchOptions struct {
	MinDistanceM float64 // 兩筆定位間的最小移動距離（公尺）
	HighAccuracy bool    // 要求高精度定位
}

// LocationProvider 抽象化裝置定位來源。
// 行動端由原生橋接實作；daemon 與測試使用模擬實作。
type LocationProvider interface {
	// RequestPermission 請求前台定位權限；拒絕時回傳錯誤
	RequestPermission(ctx context.Context) error
	// Watch 開始監聽定位，每筆符合選項的定位呼叫一次 fn；
	// 回傳的 stop 函數用於停止監聽
	Watch(opts WatchOptions, fn func(model.LocationFix)) (stop func(), err error)
}

// LocationService 外送夥伴的定位追蹤生命週期：
// Idle → RequestingPermission → Watching → Idle。
// 進入條件為「已連線 ∧ 在工作台 ∧ 已取得身份」三者同時成立；
// 任何一項翻 false 都立即拆掉監聽並清掉最後定位。
// 每筆定位依序：更新本地狀態、fire-and-forget 的 REST 上報、
// 通道連線時盡力送出 delivery_partner_location 訊息。
type LocationService struct {
	logger   zerolog.Logger
	api      *APIService
	channel  *ChannelService
	provider LocationProvider
	opts     WatchOptions

	ctx    context.Context // session 生命週期，拆除時取消 in-flight REST 呼叫
	cancel context.CancelFunc

	mu          sync.Mutex
	connected   bool
	inDashboard bool
	partnerID   string
	state       model.TrackingState
	stopWatch   func()
	lastFix     *model.LocationFix
	seq         int // 使過期的權限請求結果失效
}

// NewLocationService 建立定位追蹤服務
func NewLocationService(logger zerolog.Logger, api *APIService, channel *ChannelService, provider LocationProvider, opts WatchOptions) *LocationService {
	ctx, cancel := context.WithCancel(context.Background())
	return &LocationService{
		logger:   logger.With().Str("module", "location_service").Logger(),
		api:      api,
		channel:  channel,
		provider: provider,
		opts:     opts,
		ctx:      ctx,
		cancel:   cancel,
		state:    model.TrackingStateIdle,
	}
}

// SetConnected 通道連線狀態變更
func (s *LocationService) SetConnected(connected bool) {
	s.mu.Lock()
	s.connected = connected
	s.syncLocked()
	s.mu.Unlock()
}

// SetInDashboard 工作台進出狀態變更
func (s *LocationService) SetInDashboard(inDashboard bool) {
	s.mu.Lock()
	s.inDashboard = inDashboard
	s.syncLocked()
	s.mu.Unlock()
}

// SetPartnerID 身份取得（REST 取回後異步補上）
func (s *LocationService) SetPartnerID(id string) {
	s.mu.Lock()
	s.partnerID = id
	s.syncLocked()
	s.mu.Unlock()
}

// State 當前生命週期狀態
func (s *LocationService) State() model.TrackingState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastFix 最後一筆定位；尚無定位時回傳 nil
func (s *LocationService) LastFix() *model.LocationFix {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastFix == nil {
		return nil
	}
	fix := *s.lastFix
	return &fix
}

// Stop 停止服務：拆掉監聽並取消所有 in-flight REST 呼叫
func (s *LocationService) Stop() {
	s.mu.Lock()
	s.connected = false
	s.inDashboard = false
	s.syncLocked()
	s.mu.Unlock()
	s.cancel()
}

// syncLocked 依三項輸入重新評估進入條件。鎖內呼叫。
func (s *LocationService) syncLocked() {
	entry := s.connected && s.inDashboard && s.partnerID != ""

	if entry && s.state == model.TrackingStateIdle {
		s.state = model.TrackingStateRequestingPermission
		s.seq++
		go s.requestAndWatch(s.seq)
		return
	}

	if !entry && s.state != model.TrackingStateIdle {
		s.teardownLocked()
	}
}

// teardownLocked 拆掉監聽並清掉最後定位。鎖內呼叫。
func (s *LocationService) teardownLocked() {
	stop := s.stopWatch
	s.stopWatch = nil
	s.state = model.TrackingStateIdle
	s.lastFix = nil
	s.seq++ // 使尚未完成的權限請求失效

	if stop != nil {
		// 解除訂閱不會回呼，鎖內執行安全
		stop()
		s.logger.Info().Msg("定位監聽已停止")
	}
}

// requestAndWatch 請求權限並開始監聽。seq 不符表示期間條件已翻轉，放棄結果。
func (s *LocationService) requestAndWatch(seq int) {
	err := s.provider.RequestPermission(s.ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if seq != s.seq || s.state != model.TrackingStateRequestingPermission {
		return // 過期的請求
	}

	if err != nil {
		// 權限被拒：停在 Idle，不重試、不打擾使用者；
		// 下次進入條件重新成立時會從頭再走一次
		s.logger.Warn().Err(err).Msg("定位權限被拒絕")
		s.state = model.TrackingStateIdle
		return
	}

	stop, err := s.provider.Watch(s.opts, s.handleFix)
	if err != nil {
		s.logger.Error().Err(err).Msg("啟動定位監聽失敗")
		s.state = model.TrackingStateIdle
		return
	}

	s.state = model.TrackingStateWatching
	s.stopWatch = stop
	s.logger.Info().
		Float64("最小距離", s.opts.MinDistanceM).
		Msg("定位監聽已啟動")
}

// handleFix 處理一筆定位
func (s *LocationService) handleFix(fix model.LocationFix) {
	s.mu.Lock()
	if s.state != model.TrackingStateWatching {
		s.mu.Unlock()
		return
	}
	s.lastFix = &fix
	partnerID := s.partnerID
	s.mu.Unlock()

	metrics.RecordLocationFix()

	// REST 上報：fire-and-forget，失敗只記錄（APIService 內已記錄）
	go func() {
		_ = s.api.UpdateLocation(s.ctx, fix)
	}()

	// 通道連線時盡力送出定位訊息，不等待回應
	if s.channel != nil && s.channel.IsConnected() {
		frame := websocketModels.NewDeliveryPartnerLocationFrame(partnerID, fix)
		if err := s.channel.Send(frame); err != nil {
			s.logger.Debug().Err(err).Msg("定位訊息送出失敗")
		} else {
			metrics.RecordFrameSent("delivery_partner", websocketModels.MessageTypeDeliveryPartnerLocation)
		}
	}
}
