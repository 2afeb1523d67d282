package service

import (
	"encoding/json"
	"sync"

	"palenque-realtime/auth"
	"palenque-realtime/metrics"
	"palenque-realtime/model"

	websocketModels "palenque-realtime/data-models/websocket"

	"github.com/rs/zerolog"
)

// SellerSession 賣家的即時 session。
// 賣家有兩條彼此獨立的通道：
//   - inbox：一般收件匣（訂單與對話刷新），由「token 可用 ∧ 在工作台」決定開關
//   - tracking：外送夥伴追蹤，額外要求有指定的追蹤對象才開
//
// 兩條通道各自遵守單一連線的約束。
type SellerSession struct {
	logger zerolog.Logger
	cfg    SessionConfig

	inbox    *ChannelService
	tracking *ChannelService

	ordersRefresh        *RefreshFlag
	conversationsRefresh *RefreshFlag

	mu                sync.Mutex
	token             string
	inDashboard       bool
	sellerID          string
	trackingPartnerID string
	trackedLocation   *model.LocationFix
	lastFrameType     string

	locMu        sync.Mutex
	locSeq       int
	locListeners map[int]func(model.LocationFix)

	removes []func()
}

// NewSellerSession 建立賣家 session
func NewSellerSession(logger zerolog.Logger, cfg SessionConfig) *SellerSession {
	s := &SellerSession{
		logger:       logger.With().Str("module", "seller_session").Logger(),
		cfg:          cfg,
		locListeners: make(map[int]func(model.LocationFix)),
	}

	s.inbox = NewChannelService(logger, "seller_inbox", cfg.ReconnectDelay)
	s.tracking = NewChannelService(logger, "seller_tracking", cfg.ReconnectDelay)
	s.ordersRefresh = NewRefreshFlag(logger, "seller_orders", cfg.RefreshWindow)
	s.conversationsRefresh = NewRefreshFlag(logger, "seller_conversations", cfg.RefreshWindow)

	s.removes = append(s.removes,
		s.inbox.OnMessage(s.handleInboxFrame),
		s.tracking.OnMessage(s.handleTrackingFrame),
		// 連上後送出識別訊息；身份尚未取得時略過，補上身份後會重送
		s.inbox.OnStateChange(func(connected bool) {
			if connected {
				s.sendHello()
			}
		}),
		s.tracking.OnStateChange(func(connected bool) {
			if connected {
				s.sendTrackRequest()
			}
		}),
	)
	return s
}

// SetToken 更新授權 token 並重新評估兩條通道的開關
func (s *SellerSession) SetToken(token string) {
	s.mu.Lock()
	s.token = token
	s.syncTargetsLocked()
	s.mu.Unlock()
}

// EnterDashboard 進入賣家工作台
func (s *SellerSession) EnterDashboard() {
	s.mu.Lock()
	s.inDashboard = true
	s.syncTargetsLocked()
	s.mu.Unlock()
	s.logger.Info().Msg("進入賣家工作台")
}

// ExitDashboard 離開賣家工作台：兩條通道都關閉，追蹤狀態清空
func (s *SellerSession) ExitDashboard() {
	s.mu.Lock()
	s.inDashboard = false
	s.trackingPartnerID = ""
	s.trackedLocation = nil
	s.syncTargetsLocked()
	s.mu.Unlock()
	s.logger.Info().Msg("離開賣家工作台")
}

// SetSellerID 身份取得（REST 取回後異步補上）
func (s *SellerSession) SetSellerID(id string) {
	s.mu.Lock()
	s.sellerID = id
	s.mu.Unlock()
	if s.inbox.IsConnected() {
		s.sendHello()
	}
}

// TrackDeliveryPartner 開始追蹤指定外送夥伴；
// 這是 tracking 通道的功能觸發旗標
func (s *SellerSession) TrackDeliveryPartner(partnerID string) {
	s.mu.Lock()
	s.trackingPartnerID = partnerID
	if partnerID == "" {
		s.trackedLocation = nil
	}
	s.syncTargetsLocked()
	s.mu.Unlock()
}

// StopTracking 停止追蹤
func (s *SellerSession) StopTracking() {
	s.TrackDeliveryPartner("")
}

// TrackedLocation 被追蹤夥伴的最新位置；尚無資料時回傳 nil
func (s *SellerSession) TrackedLocation() *model.LocationFix {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.trackedLocation == nil {
		return nil
	}
	fix := *s.trackedLocation
	return &fix
}

// OnTrackedLocation 註冊位置更新監聽；回傳的函數用於解除
func (s *SellerSession) OnTrackedLocation(fn func(model.LocationFix)) func() {
	s.locMu.Lock()
	s.locSeq++
	id := s.locSeq
	s.locListeners[id] = fn
	s.locMu.Unlock()
	return func() {
		s.locMu.Lock()
		delete(s.locListeners, id)
		s.locMu.Unlock()
	}
}

// Inbox 收件匣通道（診斷用）
func (s *SellerSession) Inbox() *ChannelService { return s.inbox }

// Tracking 追蹤通道（診斷用）
func (s *SellerSession) Tracking() *ChannelService { return s.tracking }

// OrdersRefresh 訂單刷新旗標
func (s *SellerSession) OrdersRefresh() *RefreshFlag { return s.ordersRefresh }

// ConversationsRefresh 對話刷新旗標
func (s *SellerSession) ConversationsRefresh() *RefreshFlag { return s.conversationsRefresh }

// Close 關閉 session 與所有子服務
func (s *SellerSession) Close() {
	for _, remove := range s.removes {
		remove()
	}
	s.inbox.Close()
	s.tracking.Close()
	s.ordersRefresh.Stop()
	s.conversationsRefresh.Stop()
}

// syncTargetsLocked 兩條通道的開關各自是旗標的純函數。鎖內呼叫。
func (s *SellerSession) syncTargetsLocked() {
	base := auth.TokenUsable(s.token) && s.inDashboard

	inboxTarget := ""
	if base {
		inboxTarget = s.cfg.WebSocketURL
	}
	s.inbox.SetTarget(inboxTarget)

	trackingTarget := ""
	if base && s.trackingPartnerID != "" {
		trackingTarget = s.cfg.WebSocketURL
	}
	s.tracking.SetTarget(trackingTarget)
}

// sendHello 送出賣家識別訊息，讓伺服器把刷新通知路由過來
func (s *SellerSession) sendHello() {
	s.mu.Lock()
	sellerID := s.sellerID
	s.mu.Unlock()
	if sellerID == "" {
		return
	}
	frame := websocketModels.NewSellerUserDataFrame(sellerID)
	if err := s.inbox.Send(frame); err != nil {
		s.logger.Debug().Err(err).Msg("賣家識別訊息送出失敗")
		return
	}
	metrics.RecordFrameSent("seller_inbox", websocketModels.MessageTypeSellerUserData)
}

// sendTrackRequest 送出追蹤請求，伺服器開始推送該夥伴的位置
func (s *SellerSession) sendTrackRequest() {
	s.mu.Lock()
	partnerID := s.trackingPartnerID
	sellerID := s.sellerID
	s.mu.Unlock()
	if partnerID == "" {
		return
	}
	frame := websocketModels.NewTrackDeliveryPartnerFrame(partnerID, sellerID)
	if err := s.tracking.Send(frame); err != nil {
		s.logger.Debug().Err(err).Msg("追蹤請求送出失敗")
		return
	}
	metrics.RecordFrameSent("seller_tracking", websocketModels.MessageTypeTrackDeliveryPartner)
}

// handleInboxFrame 收件匣訊息分派
func (s *SellerSession) handleInboxFrame(frame websocketModels.InboundFrame) {
	s.mu.Lock()
	s.lastFrameType = frame.Type
	s.mu.Unlock()
	metrics.RecordFrameReceived("seller_inbox", frame.Type)

	switch frame.Type {
	case websocketModels.MessageTypeRefreshSellerOrders:
		s.ordersRefresh.Trigger()
	case websocketModels.MessageTypeRefreshSellerConversations:
		s.conversationsRefresh.Trigger()
	default:
		s.logger.Debug().Str("type", frame.Type).Msg("忽略未知訊息類型")
	}
}

// handleTrackingFrame 追蹤通道訊息分派
func (s *SellerSession) handleTrackingFrame(frame websocketModels.InboundFrame) {
	metrics.RecordFrameReceived("seller_tracking", frame.Type)

	switch frame.Type {
	case websocketModels.MessageTypeDeliveryPartnerLocationUpdate:
		var fix model.LocationFix
		if err := json.Unmarshal(frame.DeliveryPartnerLocation, &fix); err != nil {
			s.logger.Warn().Err(err).Msg("位置更新內容解析失敗")
			metrics.RecordFrameDropped("seller_tracking")
			return
		}
		s.mu.Lock()
		s.trackedLocation = &fix
		s.mu.Unlock()
		s.notifyTrackedLocation(fix)
	default:
		s.logger.Debug().Str("type", frame.Type).Msg("忽略未知訊息類型")
	}
}

func (s *SellerSession) notifyTrackedLocation(fix model.LocationFix) {
	s.locMu.Lock()
	fns := make([]func(model.LocationFix), 0, len(s.locListeners))
	for _, fn := range s.locListeners {
		fns = append(fns, fn)
	}
	s.locMu.Unlock()
	for _, fn := range fns {
		fn(fix)
	}
}
