package service

import (
	"context"
	"sync"
	"time"

	"palenque-realtime/auth"
	"palenque-realtime/metrics"
	"palenque-realtime/model"

	websocketModels "palenque-realtime/data-models/websocket"

	"github.com/rs/zerolog"
)

// SessionConfig 角色 session 共用設定
type SessionConfig struct {
	WebSocketURL   string
	ReconnectDelay time.Duration
	RefreshWindow  time.Duration
	LocationOpts   WatchOptions
}

// DeliveryPartnerSession 外送夥伴的即時 session：
// 通道開關由「token 可用 ∧ 在工作台」決定，
// 身份取得後再啟動定位追蹤。
// 收到的訊息依 type 分派：訂單刷新、對話刷新、新外送邀請。
type DeliveryPartnerSession struct {
	logger zerolog.Logger
	cfg    SessionConfig
	api    *APIService

	channel              *ChannelService
	ordersRefresh        *RefreshFlag
	conversationsRefresh *RefreshFlag
	location             *LocationService
	lifecycle            *AppLifecycleService

	ctx    context.Context
	cancel context.CancelFunc

	mu            sync.Mutex
	token         string
	inDashboard   bool
	partnerID     string
	offer         model.DeliveryOffer
	lastFrameType string

	offerMu        sync.Mutex
	offerSeq       int
	offerListeners map[int]func(model.DeliveryOffer)

	removeMsg   func()
	removeState func()
}

// NewDeliveryPartnerSession 建立外送夥伴 session；
// provider 與 source 可為 nil（純訊息場景）
func NewDeliveryPartnerSession(logger zerolog.Logger, cfg SessionConfig, api *APIService, provider LocationProvider, source AppStateSource) *DeliveryPartnerSession {
	ctx, cancel := context.WithCancel(context.Background())
	s := &DeliveryPartnerSession{
		logger:         logger.With().Str("module", "delivery_partner_session").Logger(),
		cfg:            cfg,
		api:            api,
		ctx:            ctx,
		cancel:         cancel,
		offerListeners: make(map[int]func(model.DeliveryOffer)),
	}

	s.channel = NewChannelService(logger, "delivery_partner", cfg.ReconnectDelay)
	s.ordersRefresh = NewRefreshFlag(logger, "delivery_partner_orders", cfg.RefreshWindow)
	s.conversationsRefresh = NewRefreshFlag(logger, "delivery_partner_conversations", cfg.RefreshWindow)

	if provider != nil {
		s.location = NewLocationService(logger, api, s.channel, provider, cfg.LocationOpts)
		s.lifecycle = NewAppLifecycleService(logger, api, source, s.location.LastFix)
	}

	s.removeMsg = s.channel.OnMessage(s.handleFrame)
	s.removeState = s.channel.OnStateChange(func(connected bool) {
		if s.location != nil {
			s.location.SetConnected(connected)
		}
	})
	return s
}

// SetToken 更新授權 token 並重新評估通道開關
func (s *DeliveryPartnerSession) SetToken(token string) {
	s.api.SetToken(token)
	s.mu.Lock()
	s.token = token
	s.syncTargetLocked()
	s.mu.Unlock()
}

// EnterDashboard 進入外送工作台：
// 開啟通道、啟用生命週期橋接，並上報一次上線狀態
func (s *DeliveryPartnerSession) EnterDashboard() {
	s.mu.Lock()
	if s.inDashboard {
		s.mu.Unlock()
		return
	}
	s.inDashboard = true
	s.syncTargetLocked()
	s.mu.Unlock()

	if s.location != nil {
		s.location.SetInDashboard(true)
	}
	if s.lifecycle != nil {
		s.lifecycle.SetInDashboard(true)
	}
	s.logger.Info().Msg("進入外送工作台")

	go func() {
		_ = s.api.ToggleOnlineStatus(s.ctx, true, nil)
	}()
}

// ExitDashboard 離開外送工作台：
// 先取出最後定位，拆掉定位監聽與通道後，
// 上報一次離線狀態（附帶最後定位）
func (s *DeliveryPartnerSession) ExitDashboard() {
	s.mu.Lock()
	if !s.inDashboard {
		s.mu.Unlock()
		return
	}
	// 拆除前先固定住最後定位，拆除會清掉它
	var fix *model.LocationFix
	if s.location != nil {
		fix = s.location.LastFix()
	}
	s.inDashboard = false
	s.syncTargetLocked()
	s.mu.Unlock()

	if s.location != nil {
		s.location.SetInDashboard(false)
	}
	if s.lifecycle != nil {
		s.lifecycle.SetInDashboard(false)
	}
	s.logger.Info().Msg("離開外送工作台")

	go func() {
		_ = s.api.ToggleOnlineStatus(s.ctx, false, fix)
	}()
}

// SetPartnerID 身份取得（REST 取回後異步補上）；
// 空字串視為身份遺失，定位追蹤會被拆掉
func (s *DeliveryPartnerSession) SetPartnerID(id string) {
	s.mu.Lock()
	s.partnerID = id
	s.mu.Unlock()
	if s.location != nil {
		s.location.SetPartnerID(id)
	}
}

// Offer 當前的新外送邀請
func (s *DeliveryPartnerSession) Offer() model.DeliveryOffer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.offer
}

// ClearOffer 使用者接受或拒絕邀請後清掉提示
func (s *DeliveryPartnerSession) ClearOffer() {
	s.mu.Lock()
	s.offer = model.DeliveryOffer{}
	s.mu.Unlock()
}

// OnOffer 註冊新外送邀請監聽；回傳的函數用於解除
func (s *DeliveryPartnerSession) OnOffer(fn func(model.DeliveryOffer)) func() {
	s.offerMu.Lock()
	s.offerSeq++
	id := s.offerSeq
	s.offerListeners[id] = fn
	s.offerMu.Unlock()
	return func() {
		s.offerMu.Lock()
		delete(s.offerListeners, id)
		s.offerMu.Unlock()
	}
}

// Channel 通道（診斷用）
func (s *DeliveryPartnerSession) Channel() *ChannelService { return s.channel }

// OrdersRefresh 訂單刷新旗標
func (s *DeliveryPartnerSession) OrdersRefresh() *RefreshFlag { return s.ordersRefresh }

// ConversationsRefresh 對話刷新旗標
func (s *DeliveryPartnerSession) ConversationsRefresh() *RefreshFlag { return s.conversationsRefresh }

// Location 定位追蹤服務；未注入定位來源時為 nil
func (s *DeliveryPartnerSession) Location() *LocationService { return s.location }

// Close 關閉 session 與所有子服務
func (s *DeliveryPartnerSession) Close() {
	s.removeMsg()
	s.removeState()
	s.channel.Close()
	s.ordersRefresh.Stop()
	s.conversationsRefresh.Stop()
	if s.location != nil {
		s.location.Stop()
	}
	if s.lifecycle != nil {
		s.lifecycle.Stop()
	}
	s.cancel()
}

// syncTargetLocked 通道開關是 session 旗標的純函數：
// token 可用 ∧ 在工作台 才開。鎖內呼叫。
func (s *DeliveryPartnerSession) syncTargetLocked() {
	target := ""
	if auth.TokenUsable(s.token) && s.inDashboard {
		target = s.cfg.WebSocketURL
	}
	s.channel.SetTarget(target)
}

// handleFrame 依 type 分派收到的訊息；不認識的 type 忽略
func (s *DeliveryPartnerSession) handleFrame(frame websocketModels.InboundFrame) {
	s.mu.Lock()
	s.lastFrameType = frame.Type
	s.mu.Unlock()
	metrics.RecordFrameReceived("delivery_partner", frame.Type)

	switch frame.Type {
	case websocketModels.MessageTypeRefreshDeliveryPartnerOrders:
		s.ordersRefresh.Trigger()
	case websocketModels.MessageTypeRefreshDeliveryPartnerConversations:
		s.conversationsRefresh.Trigger()
	case websocketModels.MessageTypeNewDeliveryAvailable:
		offer := model.DeliveryOffer{Visible: true, Payload: frame.Data}
		s.mu.Lock()
		s.offer = offer
		s.mu.Unlock()
		s.logger.Info().Msg("收到新外送邀請")
		s.notifyOffer(offer)
	default:
		s.logger.Debug().Str("type", frame.Type).Msg("忽略未知訊息類型")
	}
}

func (s *DeliveryPartnerSession) notifyOffer(offer model.DeliveryOffer) {
	s.offerMu.Lock()
	fns := make([]func(model.DeliveryOffer), 0, len(s.offerListeners))
	for _, fn := range s.offerListeners {
		fns = append(fns, fn)
	}
	s.offerMu.Unlock()
	for _, fn := range fns {
		fn(offer)
	}
}
