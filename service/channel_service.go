package service

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"palenque-realtime/metrics"

	websocketModels "palenque-realtime/data-models/websocket"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

var (
	// ErrChannelNotConnected 通道尚未連線，無法送出訊息
	ErrChannelNotConnected = errors.New("channel not connected")
)

// ChannelService 負責維護單一條 WebSocket 連線。
// 同一個實例在任何時間點最多持有一條活的 transport：
//   - SetTarget 指定目標位址；空字串代表關閉通道。
//   - 非預期斷線（讀取錯誤、撥號失敗）時，只要目標位址仍然有效，
//     就排程「恰好一次」的重連，延遲由 reconnectDelay 決定。
//   - 明確關閉（SetTarget("") 或 Close）會取消任何待執行的重連。
//
// 訊息與連線狀態透過訂閱清單分發，多個訂閱者可共存，
// 同一條通道的訊息依抵達順序逐一處理，不重排也不合併。
type ChannelService struct {
	logger         zerolog.Logger
	name           string
	reconnectDelay time.Duration
	dialer         *websocket.Dialer

	mu             sync.Mutex
	target         string
	conn           *websocket.Conn
	connected      bool
	generation     uint64
	reconnectTimer *time.Timer
	closed         bool
	lastConnected  time.Time
	reconnects     int64

	writeMu sync.Mutex // gorilla 連線的寫入需要序列化

	listenerMu     sync.RWMutex
	nextListenerID int
	msgListeners   map[int]func(websocketModels.InboundFrame)
	stateListeners map[int]func(bool)
}

// ChannelStats 通道的即時狀態快照（診斷端點用）
type ChannelStats struct {
	Name          string    `json:"name"`
	Target        string    `json:"target"`
	Connected     bool      `json:"connected"`
	Reconnects    int64     `json:"reconnects"`
	LastConnected time.Time `json:"last_connected,omitempty"`
}

// NewChannelService 建立通道。name 用於日誌與 metrics 標籤；
// reconnectDelay 為斷線後的重連延遲（明確參數，可在測試中縮短）。
func NewChannelService(logger zerolog.Logger, name string, reconnectDelay time.Duration) *ChannelService {
	return &ChannelService{
		logger:         logger.With().Str("module", "channel_service").Str("channel", name).Logger(),
		name:           name,
		reconnectDelay: reconnectDelay,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
		},
		msgListeners:   make(map[int]func(websocketModels.InboundFrame)),
		stateListeners: make(map[int]func(bool)),
	}
}

// SetTarget 設定目標位址。位址變更會先拆掉現有 transport；
// 新位址非空時重新撥號。相同位址重複設定為 no-op。
func (c *ChannelService) SetTarget(url string) {
	c.mu.Lock()
	if c.closed || url == c.target {
		c.mu.Unlock()
		return
	}

	c.target = url
	c.generation++
	gen := c.generation
	c.cancelReconnectLocked()
	conn := c.detachConnLocked()
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
		c.notifyState(false)
	}

	if url == "" {
		c.logger.Debug().Msg("通道目標已清空，連線關閉")
		return
	}

	c.logger.Debug().Str("target", url).Msg("通道目標變更，開始撥號")
	go c.dial(gen)
}

// Close 關閉通道並停止後續所有重連
func (c *ChannelService) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.target = ""
	c.generation++
	c.cancelReconnectLocked()
	conn := c.detachConnLocked()
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
		c.notifyState(false)
	}
}

// IsConnected 通道當前是否有活的 transport
func (c *ChannelService) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Stats 回傳通道狀態快照
func (c *ChannelService) Stats() ChannelStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ChannelStats{
		Name:          c.name,
		Target:        c.target,
		Connected:     c.connected,
		Reconnects:    c.reconnects,
		LastConnected: c.lastConnected,
	}
}

// Send 以 JSON 送出訊息，盡力而為：未連線時回傳 ErrChannelNotConnected，
// 寫入錯誤由讀取迴圈的斷線處理統一收尾。
func (c *ChannelService) Send(v interface{}) error {
	c.mu.Lock()
	conn := c.conn
	connected := c.connected
	c.mu.Unlock()

	if !connected || conn == nil {
		return ErrChannelNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return conn.WriteJSON(v)
}

// OnMessage 訂閱入站訊息；回傳的函數用於取消訂閱
func (c *ChannelService) OnMessage(fn func(websocketModels.InboundFrame)) func() {
	c.listenerMu.Lock()
	defer c.listenerMu.Unlock()
	id := c.nextListenerID
	c.nextListenerID++
	c.msgListeners[id] = fn
	return func() {
		c.listenerMu.Lock()
		defer c.listenerMu.Unlock()
		delete(c.msgListeners, id)
	}
}

// OnStateChange 訂閱連線狀態變化；回傳的函數用於取消訂閱
func (c *ChannelService) OnStateChange(fn func(bool)) func() {
	c.listenerMu.Lock()
	defer c.listenerMu.Unlock()
	id := c.nextListenerID
	c.nextListenerID++
	c.stateListeners[id] = fn
	return func() {
		c.listenerMu.Lock()
		defer c.listenerMu.Unlock()
		delete(c.stateListeners, id)
	}
}

// detachConnLocked 取下當前 transport 並標記離線（呼叫端負責關閉與通知）
func (c *ChannelService) detachConnLocked() *websocket.Conn {
	conn := c.conn
	c.conn = nil
	if c.connected {
		c.connected = false
		metrics.SetChannelConnected(c.name, false)
	}
	return conn
}

// cancelReconnectLocked 取消待執行的重連計時器
func (c *ChannelService) cancelReconnectLocked() {
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
}

// dial 嘗試撥號。gen 用於偵測撥號期間目標是否已變更：
// 輸掉競賽的撥號必須自行關閉連線且不得發布任何狀態。
func (c *ChannelService) dial(gen uint64) {
	c.mu.Lock()
	if gen != c.generation || c.closed || c.target == "" {
		c.mu.Unlock()
		return
	}
	target := c.target
	c.mu.Unlock()

	conn, resp, err := c.dialer.Dial(target, http.Header{})
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		c.logger.Warn().Err(err).Str("target", target).Msg("WebSocket 撥號失敗")
		c.mu.Lock()
		if gen == c.generation && !c.closed && c.target != "" {
			c.scheduleReconnectLocked(gen)
		}
		c.mu.Unlock()
		return
	}

	c.mu.Lock()
	if gen != c.generation || c.closed {
		// 撥號期間目標已變更，放棄這條連線
		c.mu.Unlock()
		conn.Close()
		return
	}
	c.conn = conn
	c.connected = true
	c.lastConnected = time.Now()
	metrics.SetChannelConnected(c.name, true)
	c.mu.Unlock()

	c.logger.Info().Str("target", target).Msg("WebSocket 連線成功")
	c.notifyState(true)

	go c.readLoop(conn, gen)
}

// readLoop 逐一讀取並分發入站訊息，直到連線中斷。
// 分發是單執行緒的：同一條通道的訊息嚴格依抵達順序處理。
func (c *ChannelService) readLoop(conn *websocket.Conn, gen uint64) {
	for {
		_, messageBytes, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.logger.Warn().Err(err).Msg("WebSocket 讀取錯誤")
			}
			break
		}

		var frame websocketModels.InboundFrame
		if err := json.Unmarshal(messageBytes, &frame); err != nil {
			// 格式錯誤的訊息不影響通道健康，記錄後丟棄
			c.logger.Error().Err(err).Msg("無法解析 WebSocket 訊息")
			metrics.RecordFrameDropped(c.name)
			continue
		}

		metrics.RecordFrameReceived(c.name, frame.Type)
		c.notifyMessage(frame)
	}

	conn.Close()

	c.mu.Lock()
	if gen != c.generation || c.closed {
		// 明確關閉：狀態已由 SetTarget/Close 處理
		c.mu.Unlock()
		return
	}
	c.conn = nil
	wasConnected := c.connected
	c.connected = false
	metrics.SetChannelConnected(c.name, false)
	if c.target != "" {
		c.scheduleReconnectLocked(gen)
	}
	c.mu.Unlock()

	if wasConnected {
		c.notifyState(false)
	}
}

// scheduleReconnectLocked 對一次斷線排程恰好一次重連。
// 若已有待執行的重連則不重複排程。
func (c *ChannelService) scheduleReconnectLocked(gen uint64) {
	if c.reconnectTimer != nil {
		return
	}
	c.reconnects++
	metrics.RecordReconnect(c.name)
	c.logger.Info().Dur("delay", c.reconnectDelay).Msg("連線中斷，排程重連")

	c.reconnectTimer = time.AfterFunc(c.reconnectDelay, func() {
		c.mu.Lock()
		c.reconnectTimer = nil
		if gen != c.generation || c.closed || c.target == "" || c.conn != nil {
			c.mu.Unlock()
			return
		}
		c.mu.Unlock()
		c.dial(gen)
	})
}

// notifyMessage 依序呼叫訊息訂閱者（快照後在鎖外執行）
func (c *ChannelService) notifyMessage(frame websocketModels.InboundFrame) {
	c.listenerMu.RLock()
	listeners := make([]func(websocketModels.InboundFrame), 0, len(c.msgListeners))
	for _, fn := range c.msgListeners {
		listeners = append(listeners, fn)
	}
	c.listenerMu.RUnlock()

	for _, fn := range listeners {
		fn(frame)
	}
}

// notifyState 依序呼叫狀態訂閱者
func (c *ChannelService) notifyState(connected bool) {
	c.listenerMu.RLock()
	listeners := make([]func(bool), 0, len(c.stateListeners))
	for _, fn := range c.stateListeners {
		listeners = append(listeners, fn)
	}
	c.listenerMu.RUnlock()

	for _, fn := range listeners {
		fn(connected)
	}
}
