package loader

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"cpu-loadgen/internal/affinity"
	"cpu-loadgen/internal/compute"
	"cpu-loadgen/internal/logger"
	"cpu-loadgen/internal/metrics"
)

const (
	// cycleTime はデューティサイクル1回分の長さ
	// 負荷変更への応答性とスケジューリングのオーバーヘッドの釣り合いで選ぶ
	cycleTime = 10 * time.Millisecond

	// sleepFloor を下回る残り時間では眠らない
	// スケジューラ粒度による寝過ごしより僅かな超過を許容する
	sleepFloor = time.Millisecond
)

// Worker は負荷を生成する1つの実行単位
// loadとcomputeは自身のロックで保護され、ロックは計算やスリープ中には保持されない
type Worker struct {
	id int

	mu      sync.Mutex
	load    float64
	compute compute.Type

	stop atomic.Bool
	done chan struct{}

	pin       bool
	strictPin bool
	collector *metrics.Collector
}

func newWorker(id int, ct compute.Type, cfg Config, collector *metrics.Collector) *Worker {
	return &Worker{
		id:        id,
		compute:   ct,
		done:      make(chan struct{}),
		pin:       cfg.PinWorkers,
		strictPin: cfg.StrictPinning,
		collector: collector,
	}
}

// start はサイクルループを開始する
// StrictPinningが有効な場合、CPUピニングの失敗は起動エラーになる
func (w *Worker) start() error {
	ready := make(chan error, 1)
	go w.run(ready)
	return <-ready
}

func (w *Worker) run(ready chan<- error) {
	defer close(w.done)

	if w.pin {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()

		if err := affinity.Pin(w.id % runtime.NumCPU()); err != nil {
			if w.strictPin {
				ready <- err
				return
			}
			logger.Warn(w.name(), "CPU pinning failed: %v", err)
		}
	}
	ready <- nil

	for !w.stop.Load() {
		w.cycle()
	}
}

// cycle はデューティサイクル1回分を実行する
// 負荷と計算種類はサイクル先頭で一度だけ読む（変更は次サイクルから反映）
func (w *Worker) cycle() {
	cycleStart := time.Now()

	w.mu.Lock()
	load := w.load
	ct := w.compute
	w.mu.Unlock()

	switch {
	case load <= 0:
		// 無負荷: サイクル全体を眠る
		time.Sleep(cycleTime)
		w.record(0)
	case load >= 1:
		// 全負荷: サイクル全体を計算に充てる
		ct.RunFor(cycleTime)
		w.record(time.Since(cycleStart))
	default:
		ct.RunFor(time.Duration(load * float64(cycleTime)))

		busy := time.Since(cycleStart)
		w.record(busy)

		if remaining := cycleTime - busy; remaining > sleepFloor {
			time.Sleep(remaining)
		}
	}
}

func (w *Worker) record(busy time.Duration) {
	if w.collector != nil {
		w.collector.RecordCycle(w.id, busy)
	}
}

// signalStop は停止フラグを立てる
// ワーカーは次のサイクル境界でループを抜ける
func (w *Worker) signalStop() {
	w.stop.Store(true)
}

// join はサイクルループの終了を待つ
func (w *Worker) join() {
	<-w.done
}

// ID はワーカーIDを返す
func (w *Worker) ID() int {
	return w.id
}

// Load は目標負荷率（0.0〜1.0）を返す
func (w *Worker) Load() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.load
}

func (w *Worker) setLoad(fraction float64) {
	w.mu.Lock()
	w.load = fraction
	w.mu.Unlock()
}

// ComputeType は現在の計算種類を返す
func (w *Worker) ComputeType() compute.Type {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.compute
}

func (w *Worker) setComputeType(ct compute.Type) {
	w.mu.Lock()
	w.compute = ct
	w.mu.Unlock()
}

func (w *Worker) name() string {
	return fmt.Sprintf("worker-%d", w.id)
}
