package infra

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App struct {
		AppVersion string `yaml:"app_version"`
		Demo       bool   `yaml:"demo"` // 啟用內建模擬腳本（不需真實後端）
	} `yaml:"app"`
	API struct {
		BaseURL   string `yaml:"base_url"`   // REST API 位址（http/https）
		TimeoutMS int    `yaml:"timeout_ms"` // REST 請求逾時（毫秒）
	} `yaml:"api"`
	WebSocket struct {
		URL              string `yaml:"url"`                // WebSocket 位址（ws/wss）
		ReconnectDelayMS int    `yaml:"reconnect_delay_ms"` // 斷線後重連延遲（毫秒）
	} `yaml:"websocket"`
	Realtime struct {
		RefreshWindowMS    int     `yaml:"refresh_window_ms"`    // 刷新旗標防抖窗口（毫秒）
		LocationMinMeters  float64 `yaml:"location_min_meters"`  // 定位變化最小距離（公尺）
		LocationIntervalMS int     `yaml:"location_interval_ms"` // 模擬定位來源的取樣間隔（毫秒）
	} `yaml:"realtime"`
	Auth struct {
		Token string `yaml:"token"` // Bearer token（建議用環境變數 PALENQUE_TOKEN 覆寫）
	} `yaml:"auth"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	LocalStore struct {
		Path string `yaml:"path"` // bbolt 本地檔案路徑
	} `yaml:"local_store"`
	Diagnostics struct {
		Port   int    `yaml:"port"`   // 本地診斷 HTTP 端口
		Secret string `yaml:"secret"` // 診斷 API 密鑰；空值表示不設防
	} `yaml:"diagnostics"`
}

var AppConfig Config

// LoadConfig 載入 config.yml 並套用 .env / 環境變數覆寫。
// 設定檔不存在時以預設值運行（客戶端模組不一定帶設定檔）。
func LoadConfig() error {
	// .env 為選用；不存在不視為錯誤
	_ = godotenv.Load()

	if f, err := os.Open("config.yml"); err == nil {
		defer f.Close()
		decoder := yaml.NewDecoder(f)
		if err := decoder.Decode(&AppConfig); err != nil {
			return err
		}
	} else if !os.IsNotExist(err) {
		return err
	}

	applyEnvOverrides()
	applyDefaults()
	return nil
}

// applyEnvOverrides 環境變數優先於 config.yml
func applyEnvOverrides() {
	if v := os.Getenv("PALENQUE_API_URL"); v != "" {
		AppConfig.API.BaseURL = v
	}
	if v := os.Getenv("PALENQUE_WEBSOCKET_URL"); v != "" {
		AppConfig.WebSocket.URL = v
	}
	if v := os.Getenv("PALENQUE_TOKEN"); v != "" {
		AppConfig.Auth.Token = v
	}
	if v := os.Getenv("PALENQUE_REDIS_ADDR"); v != "" {
		AppConfig.Redis.Addr = v
	}
	if v := os.Getenv("PALENQUE_DIAG_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			AppConfig.Diagnostics.Port = port
		}
	}
	if v := os.Getenv("PALENQUE_DIAG_SECRET"); v != "" {
		AppConfig.Diagnostics.Secret = v
	}
}

func applyDefaults() {
	if AppConfig.API.BaseURL == "" {
		AppConfig.API.BaseURL = "http://localhost:3000"
	}
	if AppConfig.API.TimeoutMS <= 0 {
		AppConfig.API.TimeoutMS = 10000
	}
	if AppConfig.WebSocket.URL == "" {
		AppConfig.WebSocket.URL = "ws://localhost:3001"
	}
	if AppConfig.WebSocket.ReconnectDelayMS <= 0 {
		AppConfig.WebSocket.ReconnectDelayMS = 1000
	}
	if AppConfig.Realtime.RefreshWindowMS <= 0 {
		AppConfig.Realtime.RefreshWindowMS = 2000
	}
	if AppConfig.Realtime.LocationMinMeters <= 0 {
		AppConfig.Realtime.LocationMinMeters = 10
	}
	if AppConfig.Realtime.LocationIntervalMS <= 0 {
		AppConfig.Realtime.LocationIntervalMS = 3000
	}
	if AppConfig.LocalStore.Path == "" {
		AppConfig.LocalStore.Path = "palenque-realtime.db"
	}
	if AppConfig.Diagnostics.Port <= 0 {
		AppConfig.Diagnostics.Port = 8090
	}
}

// ReconnectDelay 斷線重連延遲
func (c *Config) ReconnectDelay() time.Duration {
	return time.Duration(c.WebSocket.ReconnectDelayMS) * time.Millisecond
}

// RefreshWindow 刷新旗標防抖窗口
func (c *Config) RefreshWindow() time.Duration {
	return time.Duration(c.Realtime.RefreshWindowMS) * time.Millisecond
}

// APITimeout REST 請求逾時
func (c *Config) APITimeout() time.Duration {
	return time.Duration(c.API.TimeoutMS) * time.Millisecond
}
