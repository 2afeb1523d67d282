package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"palenque-realtime/infra"
	"palenque-realtime/model"

	websocketModels "palenque-realtime/data-models/websocket"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// relayd 是開發用的訊息中繼伺服器：
// 接受各角色的 WebSocket 連線，把外送夥伴的位置訊息
// 轉發給追蹤中的賣家，並提供 HTTP 端點讓開發者
// 對指定角色廣播任意訊息（模擬後端推送）。
// 設定 redis.addr 時透過 pub/sub 跨實例分發廣播。

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type client struct {
	id   string
	role model.Role
	conn *websocket.Conn

	writeMu sync.Mutex
}

func (c *client) writeJSON(v interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(v)
}

type hub struct {
	logger zerolog.Logger

	mu       sync.Mutex
	clients  map[string]*client             // connID → client
	byRole   map[model.Role]map[string]bool // role → connID 集合
	trackers map[string]string              // 追蹤者 connID → 被追蹤的夥伴 ID
}

func newHub(logger zerolog.Logger) *hub {
	return &hub{
		logger:   logger.With().Str("module", "relay_hub").Logger(),
		clients:  make(map[string]*client),
		byRole:   make(map[model.Role]map[string]bool),
		trackers: make(map[string]string),
	}
}

func (h *hub) add(c *client) {
	h.mu.Lock()
	h.clients[c.id] = c
	if h.byRole[c.role] == nil {
		h.byRole[c.role] = make(map[string]bool)
	}
	h.byRole[c.role][c.id] = true
	count := len(h.clients)
	h.mu.Unlock()
	h.logger.Info().
		Str("conn_id", c.id).
		Str("role", string(c.role)).
		Int("total", count).
		Msg("連線加入")
}

func (h *hub) remove(c *client) {
	h.mu.Lock()
	delete(h.clients, c.id)
	if set := h.byRole[c.role]; set != nil {
		delete(set, c.id)
	}
	delete(h.trackers, c.id)
	count := len(h.clients)
	h.mu.Unlock()
	h.logger.Info().
		Str("conn_id", c.id).
		Str("role", string(c.role)).
		Int("total", count).
		Msg("連線離開")
}

// broadcast 把原始 JSON 廣播給指定角色的所有連線
func (h *hub) broadcast(role model.Role, payload []byte) int {
	h.mu.Lock()
	targets := make([]*client, 0)
	for id := range h.byRole[role] {
		if c := h.clients[id]; c != nil {
			targets = append(targets, c)
		}
	}
	h.mu.Unlock()

	for _, c := range targets {
		c.writeMu.Lock()
		err := c.conn.WriteMessage(websocket.TextMessage, payload)
		c.writeMu.Unlock()
		if err != nil {
			h.logger.Warn().Err(err).Str("conn_id", c.id).Msg("廣播送出失敗")
		}
	}
	return len(targets)
}

// fanOutLocation 把夥伴位置轉發給追蹤該夥伴的所有連線
func (h *hub) fanOutLocation(partnerID string, fix model.LocationFix) {
	h.mu.Lock()
	targets := make([]*client, 0)
	for connID, tracked := range h.trackers {
		if tracked != partnerID && tracked != "" {
			continue
		}
		if c := h.clients[connID]; c != nil {
			targets = append(targets, c)
		}
	}
	h.mu.Unlock()

	if len(targets) == 0 {
		return
	}
	frame := websocketModels.NewLocationUpdatePushFrame(fix)
	for _, c := range targets {
		if err := c.writeJSON(frame); err != nil {
			h.logger.Warn().Err(err).Str("conn_id", c.id).Msg("位置轉發失敗")
		}
	}
}

// handleFrame 處理來自客戶端的訊息
func (h *hub) handleFrame(c *client, raw []byte) {
	var frame struct {
		Type              string          `json:"type"`
		DeliveryPartnerID string          `json:"deliveryPartnerId"`
		SellerID          string          `json:"sellerId"`
		Location          json.RawMessage `json:"location"`
	}
	if err := json.Unmarshal(raw, &frame); err != nil {
		h.logger.Warn().Err(err).Str("conn_id", c.id).Msg("訊息解析失敗")
		return
	}

	switch frame.Type {
	case websocketModels.MessageTypeDeliveryPartnerLocation:
		var fix model.LocationFix
		if err := json.Unmarshal(frame.Location, &fix); err != nil {
			h.logger.Warn().Err(err).Msg("位置內容解析失敗")
			return
		}
		h.fanOutLocation(frame.DeliveryPartnerID, fix)
	case websocketModels.MessageTypeTrackDeliveryPartner:
		h.mu.Lock()
		h.trackers[c.id] = frame.DeliveryPartnerID
		h.mu.Unlock()
		h.logger.Info().
			Str("conn_id", c.id).
			Str("partner_id", frame.DeliveryPartnerID).
			Str("seller_id", frame.SellerID).
			Msg("開始追蹤")
	case websocketModels.MessageTypeSellerUserData:
		h.logger.Debug().Str("conn_id", c.id).Str("seller_id", frame.SellerID).Msg("賣家識別")
	default:
		h.logger.Debug().Str("type", frame.Type).Msg("忽略未知訊息類型")
	}
}

func (h *hub) serveWS(w http.ResponseWriter, r *http.Request) {
	role := model.Role(r.URL.Query().Get("role"))
	switch role {
	case model.RoleConsumer, model.RoleSeller, model.RoleDeliveryPartner:
	default:
		http.Error(w, "unknown role", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("WebSocket 升級失敗")
		return
	}

	c := &client{id: uuid.NewString(), role: role, conn: conn}
	h.add(c)
	defer func() {
		h.remove(c)
		conn.Close()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		h.handleFrame(c, raw)
	}
}

const redisChannelPrefix = "palenque:push:"

// subscribePush 訂閱 Redis 廣播並轉發到本地連線
func subscribePush(ctx context.Context, rdb *redis.Client, h *hub) {
	sub := rdb.PSubscribe(ctx, redisChannelPrefix+"*")
	defer sub.Close()

	for {
		msg, err := sub.ReceiveMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			h.logger.Warn().Err(err).Msg("Redis 訂閱接收失敗")
			continue
		}
		role := model.Role(msg.Channel[len(redisChannelPrefix):])
		h.broadcast(role, []byte(msg.Payload))
	}
}

func main() {
	if err := infra.LoadConfig(); err != nil {
		log.Fatal().Err(err).Msg("讀取 config.yml 失敗")
	}
	infra.InitLogger()

	h := newHub(log.Logger)

	// Redis 為可選：未設定時只做單實例本地分發
	var rdb *infra.Redis
	if infra.AppConfig.Redis.Addr != "" {
		var err error
		rdb, err = infra.NewRedis(infra.RedisConfig{
			Addr:     infra.AppConfig.Redis.Addr,
			Password: infra.AppConfig.Redis.Password,
			DB:       infra.AppConfig.Redis.DB,
		})
		if err != nil {
			log.Error().Err(err).Msg("Redis 連線失敗 (繼續運行)")
			rdb = nil
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if rdb != nil {
		go subscribePush(ctx, rdb.Client, h)
	}

	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Heartbeat("/ping"))
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))

	router.HandleFunc("/ws", h.serveWS)

	// 開發者廣播端點：POST /push/{role}，body 為要推送的 JSON 訊息
	router.Post("/push/{role}", func(w http.ResponseWriter, r *http.Request) {
		role := model.Role(chi.URLParam(r, "role"))
		payload, err := io.ReadAll(r.Body)
		if err != nil || !json.Valid(payload) {
			http.Error(w, "invalid JSON body", http.StatusBadRequest)
			return
		}

		if rdb != nil {
			// 交給 pub/sub 統一分發（含本實例）
			if err := rdb.Client.Publish(r.Context(), redisChannelPrefix+string(role), payload).Err(); err != nil {
				log.Error().Err(err).Msg("Redis 廣播失敗")
				http.Error(w, "publish failed", http.StatusInternalServerError)
				return
			}
			w.WriteHeader(http.StatusAccepted)
			return
		}

		n := h.broadcast(role, payload)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"delivered":%d}`, n)
	})

	port := infra.AppConfig.Diagnostics.Port + 1
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: router,
	}
	go func() {
		log.Info().Int("port", port).Msg("啟動 relayd 開發中繼伺服器")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("relayd 啟動失敗")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("正在關閉 relayd...")
	cancel()
	_ = server.Shutdown(context.Background())
	if rdb != nil {
		_ = rdb.Close()
	}
	log.Info().Msg("relayd 已關閉")
}
