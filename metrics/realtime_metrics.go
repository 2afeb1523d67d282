package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	channelConnected    *prometheus.GaugeVec
	channelReconnects   *prometheus.CounterVec
	framesReceivedTotal *prometheus.CounterVec
	framesDroppedTotal  *prometheus.CounterVec
	framesSentTotal     *prometheus.CounterVec
	locationFixesTotal  prometheus.Counter
	restErrorsTotal     *prometheus.CounterVec
)

// InitRealtimeMetrics 初始化即時通道相關 metrics
func InitRealtimeMetrics(registry *prometheus.Registry) error {
	channelConnected = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "realtime_channel_connected",
			Help: "Whether the channel currently holds a live transport (1/0)",
		},
		[]string{"channel"},
	)

	channelReconnects = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_channel_reconnects_total",
			Help: "Total number of scheduled reconnect attempts",
		},
		[]string{"channel"},
	)

	framesReceivedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_frames_received_total",
			Help: "Total inbound frames by channel and frame type",
		},
		[]string{"channel", "type"},
	)

	framesDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_frames_dropped_total",
			Help: "Total inbound frames dropped as malformed",
		},
		[]string{"channel"},
	)

	framesSentTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_frames_sent_total",
			Help: "Total outbound frames by channel and frame type",
		},
		[]string{"channel", "type"},
	)

	locationFixesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "realtime_location_fixes_total",
			Help: "Total device location fixes processed",
		},
	)

	restErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_rest_errors_total",
			Help: "Total failed REST calls by endpoint",
		},
		[]string{"endpoint"},
	)

	collectors := []prometheus.Collector{
		channelConnected,
		channelReconnects,
		framesReceivedTotal,
		framesDroppedTotal,
		framesSentTotal,
		locationFixesTotal,
		restErrorsTotal,
	}
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// SetChannelConnected 記錄通道連線狀態
func SetChannelConnected(channel string, connected bool) {
	if channelConnected == nil {
		return
	}
	v := 0.0
	if connected {
		v = 1.0
	}
	channelConnected.WithLabelValues(channel).Set(v)
}

// RecordReconnect 記錄一次排程的重連
func RecordReconnect(channel string) {
	if channelReconnects == nil {
		return
	}
	channelReconnects.WithLabelValues(channel).Inc()
}

// RecordFrameReceived 記錄收到的訊息
func RecordFrameReceived(channel, frameType string) {
	if framesReceivedTotal == nil {
		return
	}
	framesReceivedTotal.WithLabelValues(channel, frameType).Inc()
}

// RecordFrameDropped 記錄被丟棄的格式錯誤訊息
func RecordFrameDropped(channel string) {
	if framesDroppedTotal == nil {
		return
	}
	framesDroppedTotal.WithLabelValues(channel).Inc()
}

// RecordFrameSent 記錄送出的訊息
func RecordFrameSent(channel, frameType string) {
	if framesSentTotal == nil {
		return
	}
	framesSentTotal.WithLabelValues(channel, frameType).Inc()
}

// RecordLocationFix 記錄一筆定位
func RecordLocationFix() {
	if locationFixesTotal == nil {
		return
	}
	locationFixesTotal.Inc()
}

// RecordRESTError 記錄一次失敗的 REST 呼叫
func RecordRESTError(endpoint string) {
	if restErrorsTotal == nil {
		return
	}
	restErrorsTotal.WithLabelValues(endpoint).Inc()
}
