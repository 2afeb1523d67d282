package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"palenque-realtime/background"
	"palenque-realtime/controller"
	"palenque-realtime/infra"
	"palenque-realtime/metrics"
	authMiddleware "palenque-realtime/middleware"
	"palenque-realtime/service"
	"syscall"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

type Options struct {
	Port int  `help:"診斷服務監聽端口" short:"p" default:"8091"`
	Demo bool `help:"啟用內建模擬腳本（不需真實後端）" default:"false"`
}

func main() {
	cli := humacli.New(func(hooks humacli.Hooks, options *Options) {
		// 載入設定檔
		if err := infra.LoadConfig(); err != nil {
			log.Fatal().
				Err(err).
				Msg("讀取 config.yml 失敗")
		}

		// 初始化 logger（在載入配置後）
		infra.InitLogger()

		// 初始化全局 tracer
		infra.InitTracer()

		if options.Port != 0 {
			infra.AppConfig.Diagnostics.Port = options.Port
		}
		demo := options.Demo || infra.AppConfig.App.Demo

		// 初始化 Prometheus metrics
		registry := prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector())
		registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		if err := metrics.InitRealtimeMetrics(registry); err != nil {
			log.Error().
				Err(err).
				Msg("Realtime metrics 初始化失敗，將繼續運行")
		}

		log.Info().
			Int("port", infra.AppConfig.Diagnostics.Port).
			Bool("demo", demo).
			Msg("啟動 Palenque 即時核心")

		// 本地 key-value 存儲（首次啟動標記等）
		store, err := infra.OpenLocalStore(infra.AppConfig.LocalStore.Path)
		if err != nil {
			log.Fatal().
				Err(err).
				Msg("開啟本地存儲失敗")
		}
		firstRun, _ := store.GetFlag("keyboard_opened_once")
		if !firstRun {
			if err := store.SetFlag("keyboard_opened_once", true); err != nil {
				log.Error().Err(err).Msg("寫入本地存儲失敗")
			}
			log.Info().Msg("首次啟動")
		}

		apiService := service.NewAPIService(log.Logger, infra.AppConfig.API.BaseURL, infra.AppConfig.Auth.Token, infra.AppConfig.APITimeout())

		sessionCfg := service.SessionConfig{
			WebSocketURL:   infra.AppConfig.WebSocket.URL,
			ReconnectDelay: infra.AppConfig.ReconnectDelay(),
			RefreshWindow:  infra.AppConfig.RefreshWindow(),
			LocationOpts: service.WatchOptions{
				MinDistanceM: infra.AppConfig.Realtime.LocationMinMeters,
				HighAccuracy: true,
			},
		}

		// app 前後台狀態來源與定位來源；
		// daemon 模式使用模擬實作，行動端由原生橋接替換
		stateFeed := background.NewAppStateFeed(log.Logger)
		locationProvider := service.NewSimLocationProvider(
			log.Logger,
			14.6091, 121.0223, // 預設起點：奎松市
			time.Duration(infra.AppConfig.Realtime.LocationIntervalMS)*time.Millisecond,
		)

		consumerSession := service.NewConsumerSession(log.Logger, sessionCfg)
		sellerSession := service.NewSellerSession(log.Logger, sessionCfg)
		partnerSession := service.NewDeliveryPartnerSession(log.Logger, sessionCfg, apiService, locationProvider, stateFeed)

		if infra.AppConfig.Auth.Token != "" {
			consumerSession.SetToken(infra.AppConfig.Auth.Token)
			sellerSession.SetToken(infra.AppConfig.Auth.Token)
			partnerSession.SetToken(infra.AppConfig.Auth.Token)
		}

		router := chi.NewRouter()
		router.Use(middleware.Logger)
		router.Use(middleware.Recoverer)
		router.Use(middleware.RequestID)
		router.Use(middleware.Heartbeat("/ping"))

		// CORS 設定 - 允許所有來源
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
			ExposedHeaders:   []string{"Link"},
			AllowCredentials: false,
			MaxAge:           300, // Maximum value not ignored by any of major browsers
		}))

		apiConfig := huma.DefaultConfig("Palenque Realtime Diagnostics", infra.AppConfig.App.AppVersion)
		apiConfig.Info.Description = "Palenque 即時核心的本地診斷 API"
		api := humachi.New(router, apiConfig)

		// 診斷密鑰（選用）
		diagAuth := authMiddleware.NewDiagAuthMiddleware(infra.AppConfig.Diagnostics.Secret)
		api.UseMiddleware(diagAuth.Auth())

		statusController := controller.NewStatusController(log.Logger, consumerSession, sellerSession, partnerSession)
		statusController.RegisterRoutes(api)

		// 註冊 Prometheus metrics 端點
		router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

		// demo 模式：驅動外送夥伴劇本
		demoCtx, demoCancel := context.WithCancel(context.Background())
		if demo {
			demoDriver := background.NewDemoDriver(log.Logger, partnerSession, stateFeed)
			go demoDriver.Start(demoCtx)
		}

		hooks.OnStart(func() {
			server := &http.Server{
				Addr:    fmt.Sprintf(":%d", infra.AppConfig.Diagnostics.Port),
				Handler: router,
			}
			go func() {
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal().
						Err(err).
						Msg("診斷服務器啟動失敗")
				}
			}()
			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			<-quit
			log.Info().Msg("正在關閉服務器...")

			demoCancel()

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := server.Shutdown(ctx); err != nil {
				log.Error().
					Err(err).
					Msg("服務器關閉錯誤")
			}

			partnerSession.Close()
			sellerSession.Close()
			consumerSession.Close()

			if err := store.Close(); err != nil {
				log.Error().
					Err(err).
					Msg("本地存儲關閉錯誤")
			}
			log.Info().Msg("服務器已關閉")
		})
	})
	cli.Run()
}
