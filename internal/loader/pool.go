package loader

import (
	"fmt"
	"sync"

	"cpu-loadgen/internal/compute"
	"cpu-loadgen/internal/events"
	"cpu-loadgen/internal/logger"
	"cpu-loadgen/internal/metrics"
)

// Config はプールの設定
type Config struct {
	// DefaultCompute は新しいワーカーに割り当てる計算種類
	DefaultCompute compute.Type
	// PinWorkers はワーカーをOSスレッドに固定しCPUに割り付ける
	PinWorkers bool
	// StrictPinning はピニング失敗をワーカー起動エラーとして扱う
	StrictPinning bool

	// startHook が設定されている場合、各ワーカーの起動前に呼び出される
	// エラーを返すとそのワーカーの起動失敗として扱われる（テストから注入する）
	startHook func(id int) error
}

// DefaultConfig はデフォルト設定を返す
func DefaultConfig() Config {
	return Config{
		DefaultCompute: compute.BusyWait,
	}
}

// Pool は負荷生成ワーカーの集合を管理する
// プール形状（生成・世代交代・停止）は自身のロックで保護される
// ロック取得順は常にプール→ワーカーで、その逆はない
type Pool struct {
	mu          sync.Mutex
	workers     []*Worker
	defaultType compute.Type
	cfg         Config

	collector *metrics.Collector
	bus       *events.Bus
}

// New はデフォルト設定のPoolを作成する
func New() *Pool {
	return NewWithConfig(DefaultConfig())
}

// NewWithConfig は設定を指定してPoolを作成する
func NewWithConfig(cfg Config) *Pool {
	if !cfg.DefaultCompute.Valid() {
		cfg.DefaultCompute = compute.BusyWait
	}
	return &Pool{
		defaultType: cfg.DefaultCompute,
		cfg:         cfg,
	}
}

// SetCollector はメトリクスコレクタを設定する
// Initializeより前に呼ぶこと
func (p *Pool) SetCollector(c *metrics.Collector) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.collector = c
}

// SetEventBus はイベントバスを設定する
func (p *Pool) SetEventBus(bus *events.Bus) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bus = bus
}

// Initialize は指定数のワーカーでプールを（再）構築する
// 既存の世代は完全に停止・合流させてから新しい世代を開始するため、
// 2つの世代が同時に動くことはない
// ワーカーの起動に失敗した場合は起動済みのワーカーを全て停止し、
// プールを空のままにして ErrRuntimeFailure を返す
func (p *Pool) Initialize(count int) error {
	if count <= 0 {
		return fmt.Errorf("%w: thread count must be positive, got %d", ErrInvalidArgument, count)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopLocked()

	if p.collector != nil {
		p.collector.Reset(count)
	}

	workers := make([]*Worker, 0, count)
	for i := 0; i < count; i++ {
		w := newWorker(i, p.defaultType, p.cfg, p.collector)

		var err error
		if p.cfg.startHook != nil {
			err = p.cfg.startHook(i)
		}
		if err == nil {
			err = w.start()
		}
		if err != nil {
			// ロールバック: 起動済みのワーカーを全て停止する
			for _, started := range workers {
				started.signalStop()
			}
			for _, started := range workers {
				started.join()
			}
			if p.collector != nil {
				p.collector.Reset(0)
			}
			return fmt.Errorf("%w: failed to start worker %d: %v", ErrRuntimeFailure, i, err)
		}
		workers = append(workers, w)
		if p.collector != nil {
			p.collector.SetTarget(i, 0)
		}
	}
	p.workers = workers

	logger.Info("", "Pool initialized with %d workers (compute: %s)", count, p.defaultType)
	p.publish(events.NewPoolInitEvent(count, p.defaultType.String()))

	return nil
}

// stopLocked は全ワーカーを停止して合流する
// 先に全員へ停止を通知するため、合流の合計時間はワーカー数に
// かかわらずサイクル長程度に収まる
func (p *Pool) stopLocked() {
	if len(p.workers) == 0 {
		return
	}
	for _, w := range p.workers {
		w.signalStop()
	}
	for _, w := range p.workers {
		w.join()
	}
	p.workers = nil
}

// Shutdown は全ワーカーを停止しプールを解放する
// プールが存在しない場合は何もしない（冪等）
func (p *Pool) Shutdown() {
	p.mu.Lock()
	defer p.mu.Unlock()

	count := len(p.workers)
	if count == 0 {
		return
	}

	p.stopLocked()
	if p.collector != nil {
		p.collector.Reset(0)
	}

	logger.Info("", "Pool shut down (%d workers stopped)", count)
	p.publish(events.NewPoolShutdownEvent(count))
}

// SetThreadLoad は指定ワーカーの目標負荷率（%）を設定する
// 反映はそのワーカーの次のサイクル境界から
func (p *Pool) SetThreadLoad(id int, percent float64) error {
	if percent < 0 || percent > 100 {
		return fmt.Errorf("%w: load must be between 0 and 100, got %g", ErrInvalidArgument, percent)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if id < 0 || id >= len(p.workers) {
		return fmt.Errorf("%w: worker id %d out of range [0, %d)", ErrInvalidArgument, id, len(p.workers))
	}

	p.workers[id].setLoad(percent / 100.0)
	if p.collector != nil {
		p.collector.SetTarget(id, percent)
	}
	p.publish(events.NewLoadChangeEvent(id, percent))

	return nil
}

// SetAllLoads は全ワーカーに同じ目標負荷率（%）を設定する
func (p *Pool) SetAllLoads(percent float64) error {
	if percent < 0 || percent > 100 {
		return fmt.Errorf("%w: load must be between 0 and 100, got %g", ErrInvalidArgument, percent)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	for _, w := range p.workers {
		w.setLoad(percent / 100.0)
		if p.collector != nil {
			p.collector.SetTarget(w.ID(), percent)
		}
	}
	p.publish(events.NewAllLoadsChangeEvent(percent))

	return nil
}

// GetThreadLoad は指定ワーカーの目標負荷率（%）を返す
func (p *Pool) GetThreadLoad(id int) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if id < 0 || id >= len(p.workers) {
		return 0, fmt.Errorf("%w: worker id %d out of range [0, %d)", ErrInvalidArgument, id, len(p.workers))
	}

	return p.workers[id].Load() * 100.0, nil
}

// GetAllLoads はワーカーIDから目標負荷率（%）への対応を返す
// プール形状はスナップショット中固定されるが、各値はワーカーごとの
// ロックで個別に読むため、全体として単一時点の一貫性はない
func (p *Pool) GetAllLoads() map[int]float64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	loads := make(map[int]float64, len(p.workers))
	for _, w := range p.workers {
		loads[w.ID()] = w.Load() * 100.0
	}
	return loads
}

// ThreadCount は現在のワーカー数を返す（プールがなければ0）
func (p *Pool) ThreadCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.workers)
}

// SetComputationType はプールのデフォルト計算種類を更新し、
// 稼働中の全ワーカーへ伝搬する
func (p *Pool) SetComputationType(ct compute.Type) error {
	if !ct.Valid() {
		return fmt.Errorf("%w: invalid computation type %d", ErrInvalidArgument, int(ct))
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.defaultType = ct
	for _, w := range p.workers {
		w.setComputeType(ct)
	}
	p.publish(events.NewComputeChangeEvent(ct.String()))

	return nil
}

// SetWorkerComputationType は指定ワーカーの計算種類のみを変更する
func (p *Pool) SetWorkerComputationType(id int, ct compute.Type) error {
	if !ct.Valid() {
		return fmt.Errorf("%w: invalid computation type %d", ErrInvalidArgument, int(ct))
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if id < 0 || id >= len(p.workers) {
		return fmt.Errorf("%w: worker id %d out of range [0, %d)", ErrInvalidArgument, id, len(p.workers))
	}

	p.workers[id].setComputeType(ct)
	p.publish(events.NewWorkerComputeChangeEvent(id, ct.String()))

	return nil
}

// WorkerComputationTypes はワーカーIDから現在の計算種類への対応を返す
// 個別に上書きされたワーカーはデフォルトと異なる値を持つ
func (p *Pool) WorkerComputationTypes() map[int]compute.Type {
	p.mu.Lock()
	defer p.mu.Unlock()

	types := make(map[int]compute.Type, len(p.workers))
	for _, w := range p.workers {
		types[w.ID()] = w.ComputeType()
	}
	return types
}

// ComputationType は現在のデフォルト計算種類を返す
func (p *Pool) ComputationType() compute.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.defaultType
}

func (p *Pool) publish(e events.Event) {
	if p.bus != nil {
		p.bus.Publish(e)
	}
}
