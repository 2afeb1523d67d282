package service

import (
	"sync"

	"palenque-realtime/auth"
	"palenque-realtime/metrics"

	websocketModels "palenque-realtime/data-models/websocket"

	"github.com/rs/zerolog"
)

// ConsumerSession 消費者的即時 session：
// 一條通道，只處理對話刷新通知
type ConsumerSession struct {
	logger zerolog.Logger
	cfg    SessionConfig

	channel              *ChannelService
	conversationsRefresh *RefreshFlag

	mu          sync.Mutex
	token       string
	inDashboard bool

	removeMsg func()
}

// NewConsumerSession 建立消費者 session
func NewConsumerSession(logger zerolog.Logger, cfg SessionConfig) *ConsumerSession {
	s := &ConsumerSession{
		logger: logger.With().Str("module", "consumer_session").Logger(),
		cfg:    cfg,
	}
	s.channel = NewChannelService(logger, "consumer", cfg.ReconnectDelay)
	s.conversationsRefresh = NewRefreshFlag(logger, "consumer_conversations", cfg.RefreshWindow)
	s.removeMsg = s.channel.OnMessage(s.handleFrame)
	return s
}

// SetToken 更新授權 token 並重新評估通道開關
func (s *ConsumerSession) SetToken(token string) {
	s.mu.Lock()
	s.token = token
	s.syncTargetLocked()
	s.mu.Unlock()
}

// EnterDashboard 進入消費者介面
func (s *ConsumerSession) EnterDashboard() {
	s.mu.Lock()
	s.inDashboard = true
	s.syncTargetLocked()
	s.mu.Unlock()
}

// ExitDashboard 離開消費者介面
func (s *ConsumerSession) ExitDashboard() {
	s.mu.Lock()
	s.inDashboard = false
	s.syncTargetLocked()
	s.mu.Unlock()
}

// Channel 通道（診斷用）
func (s *ConsumerSession) Channel() *ChannelService { return s.channel }

// ConversationsRefresh 對話刷新旗標
func (s *ConsumerSession) ConversationsRefresh() *RefreshFlag { return s.conversationsRefresh }

// Close 關閉 session
func (s *ConsumerSession) Close() {
	s.removeMsg()
	s.channel.Close()
	s.conversationsRefresh.Stop()
}

func (s *ConsumerSession) syncTargetLocked() {
	target := ""
	if auth.TokenUsable(s.token) && s.inDashboard {
		target = s.cfg.WebSocketURL
	}
	s.channel.SetTarget(target)
}

func (s *ConsumerSession) handleFrame(frame websocketModels.InboundFrame) {
	metrics.RecordFrameReceived("consumer", frame.Type)

	switch frame.Type {
	case websocketModels.MessageTypeRefreshUserConversations:
		s.conversationsRefresh.Trigger()
	default:
		s.logger.Debug().Str("type", frame.Type).Msg("忽略未知訊息類型")
	}
}
