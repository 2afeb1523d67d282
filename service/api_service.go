package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"palenque-realtime/infra"
	"palenque-realtime/metrics"
	"palenque-realtime/model"
	"palenque-realtime/utils"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// APIService 封裝即時核心會用到的兩個 REST 端點。
// 所有呼叫都是 log-and-continue：失敗只記錄、不重試、不上拋 —
// 伺服器是資料來源，漏掉的更新會在下次輪詢時自癒。
type APIService struct {
	logger  zerolog.Logger
	Client  *http.Client
	BaseURL string

	tokenMu sync.RWMutex
	token   string
}

// ToggleOnlineStatusRequest 上線狀態切換請求
type ToggleOnlineStatusRequest struct {
	IsOnline           bool   `json:"is_online"`
	CurrentLocationLat string `json:"current_location_lat,omitempty"`
	CurrentLocationLng string `json:"current_location_lng,omitempty"`
}

// UpdateLocationRequest 位置更新請求
type UpdateLocationRequest struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// NewAPIService 建立 REST 客戶端
func NewAPIService(logger zerolog.Logger, baseURL, token string, timeout time.Duration) *APIService {
	return &APIService{
		logger: logger.With().Str("module", "api_service").Logger(),
		Client: &http.Client{
			Timeout: timeout,
		},
		BaseURL: baseURL,
		token:   token,
	}
}

// SetToken 更新 bearer token（重新登入後）
func (s *APIService) SetToken(token string) {
	s.tokenMu.Lock()
	s.token = token
	s.tokenMu.Unlock()
}

func (s *APIService) bearerToken() string {
	s.tokenMu.RLock()
	defer s.tokenMu.RUnlock()
	return s.token
}

// ToggleOnlineStatus 切換外送夥伴上線狀態，附上最後一筆定位（若有）
func (s *APIService) ToggleOnlineStatus(ctx context.Context, isOnline bool, fix *model.LocationFix) error {
	body := ToggleOnlineStatusRequest{
		IsOnline: isOnline,
	}
	if fix != nil {
		body.CurrentLocationLat = utils.FormatCoord(fix.Latitude)
		body.CurrentLocationLng = utils.FormatCoord(fix.Longitude)
	}

	return infra.WithSpan(ctx, "api_service.toggle_online_status", func(ctx context.Context, span trace.Span) error {
		infra.SetAttributes(span,
			infra.AttrOperation("toggle_online_status"),
			infra.AttrBool("delivery_partner.is_online", isOnline),
		)

		err := s.put(ctx, "/api/delivery-partner/toggle-online-status", body)
		if err != nil {
			metrics.RecordRESTError("toggle_online_status")
			s.logger.Error().
				Err(err).
				Bool("上線狀態", isOnline).
				Msg("切換上線狀態失敗")
			return err
		}

		s.logger.Debug().
			Bool("上線狀態", isOnline).
			Msg("上線狀態已更新")
		return nil
	})
}

// UpdateLocation 上報外送夥伴當前位置
func (s *APIService) UpdateLocation(ctx context.Context, fix model.LocationFix) error {
	body := UpdateLocationRequest{
		Latitude:  fix.Latitude,
		Longitude: fix.Longitude,
	}

	return infra.WithSpan(ctx, "api_service.update_location", func(ctx context.Context, span trace.Span) error {
		infra.SetAttributes(span,
			infra.AttrOperation("update_location"),
			infra.AttrFloat64("location.lat", fix.Latitude),
			infra.AttrFloat64("location.lng", fix.Longitude),
		)

		err := s.put(ctx, "/api/delivery-partner/update-location", body)
		if err != nil {
			metrics.RecordRESTError("update_location")
			s.logger.Error().
				Err(err).
				Float64("緯度", fix.Latitude).
				Float64("經度", fix.Longitude).
				Msg("更新位置失敗")
			return err
		}
		return nil
	})
}

// put 發出 JSON PUT 請求，帶 bearer token；非 2xx 視為錯誤
func (s *APIService) put(ctx context.Context, path string, body interface{}) error {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("序列化請求失敗: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, s.BaseURL+path, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("建立請求失敗: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token := s.bearerToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("API 回傳 %d: %s", resp.StatusCode, string(respBody))
	}

	return nil
}
