package metrics

import (
	"net/http"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/v3/cpu"
)

// workerStats はワーカー1つ分の稼働統計
type workerStats struct {
	busyNs atomic.Uint64
	cycles atomic.Uint64

	// ウィンドウ状態はCollector.muで保護する
	windowStart  time.Time
	windowBusyNs uint64
}

// Collector はワーカーの実効負荷を収集する
type Collector struct {
	mu        sync.RWMutex
	workers   []*workerStats
	startTime time.Time

	registry     *prometheus.Registry
	targetLoad   *prometheus.GaugeVec
	achievedLoad *prometheus.GaugeVec
	cyclesTotal  *prometheus.CounterVec
	systemCPU    prometheus.Gauge
}

// Snapshot は収集された統計のスナップショット
type Snapshot struct {
	ThreadCount int             `json:"thread_count"`
	TotalCycles uint64          `json:"total_cycles"`
	Achieved    map[int]float64 `json:"achieved"`
	SystemCPU   float64         `json:"system_cpu_percent"`
	Uptime      time.Duration   `json:"uptime"`
}

// New は新しいCollectorを作成しPrometheusコレクタを登録する
func New() *Collector {
	c := &Collector{
		startTime: time.Now(),
		registry:  prometheus.NewRegistry(),
		targetLoad: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "cpu_loadgen",
			Name:      "target_load_percent",
			Help:      "Configured target load per worker in percent",
		}, []string{"worker"}),
		achievedLoad: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "cpu_loadgen",
			Name:      "achieved_load_percent",
			Help:      "Measured busy-time fraction per worker in percent",
		}, []string{"worker"}),
		cyclesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cpu_loadgen",
			Name:      "cycles_total",
			Help:      "Completed duty cycles per worker",
		}, []string{"worker"}),
		systemCPU: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "cpu_loadgen",
			Name:      "system_cpu_percent",
			Help:      "System-wide CPU utilization in percent",
		}),
	}

	c.registry.MustRegister(c.targetLoad, c.achievedLoad, c.cyclesTotal, c.systemCPU)
	c.registry.MustRegister(collectors.NewGoCollector())

	return c
}

// Reset はワーカー数を変更し統計を初期化する
func (c *Collector) Reset(count int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	c.workers = make([]*workerStats, count)
	for i := range c.workers {
		c.workers[i] = &workerStats{windowStart: now}
	}

	c.targetLoad.Reset()
	c.achievedLoad.Reset()
	c.cyclesTotal.Reset()
}

// RecordCycle はワーカーの1サイクル分の稼働時間を記録する
func (c *Collector) RecordCycle(id int, busy time.Duration) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if id < 0 || id >= len(c.workers) {
		return
	}
	if busy > 0 {
		c.workers[id].busyNs.Add(uint64(busy.Nanoseconds()))
	}
	c.workers[id].cycles.Add(1)
	c.cyclesTotal.WithLabelValues(strconv.Itoa(id)).Inc()
}

// SetTarget は目標負荷のゲージを更新する
func (c *Collector) SetTarget(id int, percent float64) {
	c.targetLoad.WithLabelValues(strconv.Itoa(id)).Set(percent)
}

// Achieved は前回の呼び出し以降の実効負荷率（%）をワーカーごとに返す
// 呼び出しごとに計測ウィンドウを進める
func (c *Collector) Achieved() map[int]float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	result := make(map[int]float64, len(c.workers))

	for id, w := range c.workers {
		wall := now.Sub(w.windowStart)
		busy := w.busyNs.Load()

		pct := 0.0
		if wall > 0 {
			pct = float64(busy-w.windowBusyNs) / float64(wall.Nanoseconds()) * 100.0
			if pct > 100.0 {
				pct = 100.0
			}
		}
		result[id] = pct
		c.achievedLoad.WithLabelValues(strconv.Itoa(id)).Set(pct)

		w.windowStart = now
		w.windowBusyNs = busy
	}

	return result
}

// TotalCycles は全ワーカーの累計サイクル数を返す
func (c *Collector) TotalCycles() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var total uint64
	for _, w := range c.workers {
		total += w.cycles.Load()
	}
	return total
}

// WorkerCount は統計対象のワーカー数を返す
func (c *Collector) WorkerCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.workers)
}

// SampleSystemCPU はシステム全体のCPU使用率を採取しゲージを更新する
// 前回の呼び出しからの差分で算出される
func (c *Collector) SampleSystemCPU() float64 {
	percents, err := cpu.Percent(0, false)
	if err != nil || len(percents) == 0 {
		return 0
	}
	c.systemCPU.Set(percents[0])
	return percents[0]
}

// TakeSnapshot は現在の統計のスナップショットを返す
func (c *Collector) TakeSnapshot() Snapshot {
	achieved := c.Achieved()

	return Snapshot{
		ThreadCount: c.WorkerCount(),
		TotalCycles: c.TotalCycles(),
		Achieved:    achieved,
		SystemCPU:   c.SampleSystemCPU(),
		Uptime:      time.Since(c.startTime),
	}
}

// Handler はPrometheusメトリクスのHTTPハンドラを返す
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// DefaultThreadCount は論理CPU数を返す
// 取得できない場合はruntime.NumCPUにフォールバックする
func DefaultThreadCount() int {
	if n, err := cpu.Counts(true); err == nil && n > 0 {
		return n
	}
	return runtime.NumCPU()
}
