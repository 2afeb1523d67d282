package service

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	websocketModels "palenque-realtime/data-models/websocket"

	"github.com/gorilla/websocket"
)

// wsTestServer 測試用 WebSocket 伺服器：
// 記錄連線數並可對所有連線推送原始訊息
type wsTestServer struct {
	server   *httptest.Server
	upgrader websocket.Upgrader
	inbound  chan []byte

	mu      sync.Mutex
	conns   []*websocket.Conn
	active  int
	accepts int
}

func newWSTestServer(t *testing.T) *wsTestServer {
	t.Helper()
	s := &wsTestServer{inbound: make(chan []byte, 64)}
	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		s.mu.Lock()
		s.conns = append(s.conns, conn)
		s.active++
		s.accepts++
		s.mu.Unlock()

		defer func() {
			s.mu.Lock()
			s.active--
			s.mu.Unlock()
			conn.Close()
		}()
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			select {
			case s.inbound <- raw:
			default:
			}
		}
	}))
	t.Cleanup(s.server.Close)
	return s
}

func (s *wsTestServer) url() string {
	return "ws" + strings.TrimPrefix(s.server.URL, "http")
}

func (s *wsTestServer) push(t *testing.T, raw string) {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.conns) == 0 {
		t.Fatal("沒有可推送的連線")
	}
	conn := s.conns[len(s.conns)-1]
	if err := conn.WriteMessage(websocket.TextMessage, []byte(raw)); err != nil {
		t.Fatalf("推送訊息失敗: %v", err)
	}
}

func (s *wsTestServer) dropAll() {
	s.mu.Lock()
	conns := s.conns
	s.conns = nil
	s.mu.Unlock()
	for _, conn := range conns {
		conn.Close()
	}
}

func (s *wsTestServer) acceptCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accepts
}

func (s *wsTestServer) activeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// TestChannelConnectAndTeardown 測試目標設定與明確拆除
func TestChannelConnectAndTeardown(t *testing.T) {
	server := newWSTestServer(t)
	ch := NewChannelService(newTestLogger(), "test", 20*time.Millisecond)
	defer ch.Close()

	ch.SetTarget(server.url())
	waitFor(t, time.Second, ch.IsConnected, "通道應連上")

	ch.SetTarget("")
	waitFor(t, time.Second, func() bool { return !ch.IsConnected() }, "清空目標後應離線")

	// 明確拆除不應觸發重連
	stayFalse(t, 150*time.Millisecond, ch.IsConnected, "拆除後不應重連")
	if got := server.acceptCount(); got != 1 {
		t.Fatalf("拆除後不應有新連線，實際接受 %d 次", got)
	}
}

// TestChannelSameTargetNoop 測試相同目標重複設定為 no-op
func TestChannelSameTargetNoop(t *testing.T) {
	server := newWSTestServer(t)
	ch := NewChannelService(newTestLogger(), "test", 20*time.Millisecond)
	defer ch.Close()

	ch.SetTarget(server.url())
	waitFor(t, time.Second, ch.IsConnected, "通道應連上")

	ch.SetTarget(server.url())
	time.Sleep(50 * time.Millisecond)

	if got := server.acceptCount(); got != 1 {
		t.Fatalf("相同目標不應重新撥號，實際接受 %d 次", got)
	}
	if !ch.IsConnected() {
		t.Fatal("通道應保持連線")
	}
}

// TestChannelReconnectOncePerDrop 測試一次斷線恰好排程一次重連
func TestChannelReconnectOncePerDrop(t *testing.T) {
	server := newWSTestServer(t)
	ch := NewChannelService(newTestLogger(), "test", 30*time.Millisecond)
	defer ch.Close()

	ch.SetTarget(server.url())
	waitFor(t, time.Second, ch.IsConnected, "通道應連上")

	server.dropAll()
	waitFor(t, time.Second, func() bool { return server.acceptCount() == 2 }, "斷線後應重連一次")
	waitFor(t, time.Second, ch.IsConnected, "重連後應恢復連線")

	// 穩定後不應持續產生新連線
	time.Sleep(100 * time.Millisecond)
	if got := server.acceptCount(); got != 2 {
		t.Fatalf("一次斷線應恰好重連一次，實際接受 %d 次", got)
	}
	if got := ch.Stats().Reconnects; got != 1 {
		t.Fatalf("重連計數應為 1，實際 %d", got)
	}
}

// TestChannelAtMostOneTransport 測試目標切換過程中最多一條連線存活
func TestChannelAtMostOneTransport(t *testing.T) {
	serverA := newWSTestServer(t)
	serverB := newWSTestServer(t)
	ch := NewChannelService(newTestLogger(), "test", 20*time.Millisecond)
	defer ch.Close()

	for i := 0; i < 3; i++ {
		ch.SetTarget(serverA.url())
		waitFor(t, time.Second, ch.IsConnected, "應連上 A")
		ch.SetTarget(serverB.url())
		waitFor(t, time.Second, ch.IsConnected, "應連上 B")
	}

	// 舊連線都該被關掉，最後只剩 B 上一條
	waitFor(t, time.Second, func() bool { return serverA.activeCount() == 0 }, "A 的連線應全部關閉")
	waitFor(t, time.Second, func() bool { return serverB.activeCount() == 1 }, "B 應只剩一條連線")
}

// TestChannelDispatchOrder 測試訊息依抵達順序分發
func TestChannelDispatchOrder(t *testing.T) {
	server := newWSTestServer(t)
	ch := NewChannelService(newTestLogger(), "test", 20*time.Millisecond)
	defer ch.Close()

	var mu sync.Mutex
	var got []string
	ch.OnMessage(func(frame websocketModels.InboundFrame) {
		mu.Lock()
		got = append(got, frame.Type)
		mu.Unlock()
	})

	ch.SetTarget(server.url())
	waitFor(t, time.Second, ch.IsConnected, "通道應連上")

	want := []string{"A", "B", "C", "D", "E"}
	for _, typ := range want {
		server.push(t, `{"type":"`+typ+`"}`)
	}

	waitFor(t, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == len(want)
	}, "所有訊息應送達")

	mu.Lock()
	defer mu.Unlock()
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("訊息順序錯誤: 位置 %d 預期 %s 實際 %s", i, want[i], got[i])
		}
	}
}

// TestChannelMalformedFrame 測試格式錯誤的訊息不影響通道健康
func TestChannelMalformedFrame(t *testing.T) {
	server := newWSTestServer(t)
	ch := NewChannelService(newTestLogger(), "test", 20*time.Millisecond)
	defer ch.Close()

	var mu sync.Mutex
	var got []string
	ch.OnMessage(func(frame websocketModels.InboundFrame) {
		mu.Lock()
		got = append(got, frame.Type)
		mu.Unlock()
	})

	ch.SetTarget(server.url())
	waitFor(t, time.Second, ch.IsConnected, "通道應連上")

	server.push(t, `這不是 JSON`)
	server.push(t, `{"type":"OK"}`)

	waitFor(t, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1 && got[0] == "OK"
	}, "錯誤訊息後的正常訊息仍應送達")

	if !ch.IsConnected() {
		t.Fatal("格式錯誤的訊息不應使通道離線")
	}
}

// TestChannelSendNotConnected 測試未連線時送出回傳錯誤
func TestChannelSendNotConnected(t *testing.T) {
	ch := NewChannelService(newTestLogger(), "test", 20*time.Millisecond)
	defer ch.Close()

	if err := ch.Send(map[string]string{"type": "x"}); err != ErrChannelNotConnected {
		t.Fatalf("預期 ErrChannelNotConnected，實際 %v", err)
	}
}

// TestChannelListenerRemove 測試取消訂閱後不再收到訊息
func TestChannelListenerRemove(t *testing.T) {
	server := newWSTestServer(t)
	ch := NewChannelService(newTestLogger(), "test", 20*time.Millisecond)
	defer ch.Close()

	var mu sync.Mutex
	removed := 0
	kept := 0
	remove := ch.OnMessage(func(frame websocketModels.InboundFrame) {
		mu.Lock()
		removed++
		mu.Unlock()
	})
	ch.OnMessage(func(frame websocketModels.InboundFrame) {
		mu.Lock()
		kept++
		mu.Unlock()
	})
	remove()

	ch.SetTarget(server.url())
	waitFor(t, time.Second, ch.IsConnected, "通道應連上")
	server.push(t, `{"type":"X"}`)

	waitFor(t, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return kept == 1
	}, "保留的訂閱應收到訊息")

	mu.Lock()
	defer mu.Unlock()
	if removed != 0 {
		t.Fatalf("已取消的訂閱不應收到訊息，實際 %d 次", removed)
	}
}
