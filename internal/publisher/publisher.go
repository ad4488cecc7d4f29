package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"cpu-loadgen/internal/loader"
	"cpu-loadgen/internal/logger"
	"cpu-loadgen/internal/metrics"
)

// Config はMQTT配信の設定
type Config struct {
	Broker      string        // ブローカーURL（例: tcp://localhost:1883）
	TopicPrefix string        // トピック接頭辞
	ClientID    string        // MQTTクライアントID
	Username    string        // 認証ユーザー名（空で無効）
	Password    string        // 認証パスワード
	Interval    time.Duration // 配信間隔
}

// DefaultConfig はデフォルト設定を返す
func DefaultConfig() Config {
	return Config{
		TopicPrefix: "cpu-loadgen",
		ClientID:    "cpu-loadgen",
		Interval:    5 * time.Second,
	}
}

// Publisher は負荷設定とCPUメトリクスをMQTTブローカーへ定期配信する
type Publisher struct {
	cfg       Config
	pool      *loader.Pool
	collector *metrics.Collector

	mu      sync.Mutex
	client  mqtt.Client
	cancel  context.CancelFunc
	stopped chan struct{}
}

// LoadSettingsPayload は負荷設定のペイロード
type LoadSettingsPayload struct {
	NumThreads  int             `json:"num_threads"`
	Loads       map[int]float64 `json:"loads"`
	AverageLoad float64         `json:"average_load"`
	ComputeType string          `json:"compute_type"`
}

// CPUMetricsPayload はCPUメトリクスのペイロード
type CPUMetricsPayload struct {
	SystemCPUPercent float64         `json:"system_cpu_percent"`
	Achieved         map[int]float64 `json:"achieved"`
	TotalCycles      uint64          `json:"total_cycles"`
}

// New は新しいPublisherを作成する
func New(pool *loader.Pool, collector *metrics.Collector, cfg Config) *Publisher {
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = "cpu-loadgen"
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "cpu-loadgen"
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	return &Publisher{
		cfg:       cfg,
		pool:      pool,
		collector: collector,
	}
}

// Start はブローカーへ接続し配信ループを開始する
func (p *Publisher) Start(ctx context.Context) error {
	if p.cfg.Broker == "" {
		return fmt.Errorf("mqtt broker not configured")
	}

	opts := mqtt.NewClientOptions().
		AddBroker(p.cfg.Broker).
		SetClientID(p.cfg.ClientID).
		SetConnectTimeout(10 * time.Second).
		SetAutoReconnect(true)

	if p.cfg.Username != "" {
		opts.SetUsername(p.cfg.Username)
		opts.SetPassword(p.cfg.Password)
	}

	opts.OnConnect = func(mqtt.Client) {
		logger.Info("", "Connected to MQTT broker %s", p.cfg.Broker)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		logger.Warn("", "MQTT connection lost: %v", err)
	}

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	loopCtx, cancel := context.WithCancel(ctx)

	p.mu.Lock()
	p.client = client
	p.cancel = cancel
	p.stopped = make(chan struct{})
	p.mu.Unlock()

	go p.loop(loopCtx)

	return nil
}

// Stop は配信ループを止めブローカーから切断する
func (p *Publisher) Stop() {
	p.mu.Lock()
	client := p.client
	cancel := p.cancel
	stopped := p.stopped
	p.client = nil
	p.cancel = nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
		<-stopped
	}
	if client != nil {
		client.Disconnect(250)
		logger.Info("", "Disconnected from MQTT broker")
	}
}

// loop は配信間隔ごとにペイロードを送る
func (p *Publisher) loop(ctx context.Context) {
	defer close(p.stopped)

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.publishLoadSettings()
			p.publishCPUMetrics()
		}
	}
}

// publishLoadSettings は負荷設定を配信する（retain付き・QoS 1）
func (p *Publisher) publishLoadSettings() {
	payload := buildLoadSettings(p.pool)

	data, err := json.Marshal(payload)
	if err != nil {
		logger.Error("", "Failed to encode load settings: %v", err)
		return
	}

	topic := p.cfg.TopicPrefix + "/load_settings"
	p.publish(topic, 1, true, data)
}

// publishCPUMetrics はCPUメトリクスを配信する（QoS 0）
func (p *Publisher) publishCPUMetrics() {
	if p.collector == nil {
		return
	}
	payload := buildCPUMetrics(p.collector)

	data, err := json.Marshal(payload)
	if err != nil {
		logger.Error("", "Failed to encode CPU metrics: %v", err)
		return
	}

	topic := p.cfg.TopicPrefix + "/cpu_metrics"
	p.publish(topic, 0, false, data)
}

func (p *Publisher) publish(topic string, qos byte, retain bool, data []byte) {
	p.mu.Lock()
	client := p.client
	p.mu.Unlock()

	if client == nil || !client.IsConnected() {
		return
	}
	if token := client.Publish(topic, qos, retain, data); token.Wait() && token.Error() != nil {
		logger.Error("", "Failed to publish to %s: %v", topic, token.Error())
	}
}

// buildLoadSettings はプールの現在の設定からペイロードを構築する
func buildLoadSettings(pool *loader.Pool) LoadSettingsPayload {
	loads := pool.GetAllLoads()

	avg := 0.0
	if len(loads) > 0 {
		for _, pct := range loads {
			avg += pct
		}
		avg /= float64(len(loads))
	}

	return LoadSettingsPayload{
		NumThreads:  pool.ThreadCount(),
		Loads:       loads,
		AverageLoad: math.Round(avg*100) / 100,
		ComputeType: pool.ComputationType().String(),
	}
}

// buildCPUMetrics はコレクタの統計からペイロードを構築する
func buildCPUMetrics(collector *metrics.Collector) CPUMetricsPayload {
	achieved := collector.Achieved()
	for id, pct := range achieved {
		achieved[id] = math.Round(pct*10) / 10
	}

	return CPUMetricsPayload{
		SystemCPUPercent: math.Round(collector.SampleSystemCPU()*10) / 10,
		Achieved:         achieved,
		TotalCycles:      collector.TotalCycles(),
	}
}
