package scenario

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"cpu-loadgen/internal/compute"
	"cpu-loadgen/internal/events"
	"cpu-loadgen/internal/loader"
	"cpu-loadgen/internal/logger"
	"cpu-loadgen/internal/metrics"
)

// Profile は負荷の時間変化パターン
type Profile string

const (
	// ProfileSteady は一定負荷
	ProfileSteady Profile = "steady"
	// ProfileRamp は0からピークまでの線形増加
	ProfileRamp Profile = "ramp"
	// ProfileSine は正弦波状の増減
	ProfileSine Profile = "sine"
	// ProfileSpike は低負荷とピークの交互切り替え
	ProfileSpike Profile = "spike"
	// ProfileSweep は一定負荷のまま計算種類を順に切り替える
	ProfileSweep Profile = "sweep"
)

// ParseProfile は文字列表現をProfileに変換する
func ParseProfile(s string) (Profile, error) {
	switch Profile(strings.ToLower(strings.TrimSpace(s))) {
	case ProfileSteady:
		return ProfileSteady, nil
	case ProfileRamp:
		return ProfileRamp, nil
	case ProfileSine:
		return ProfileSine, nil
	case ProfileSpike:
		return ProfileSpike, nil
	case ProfileSweep:
		return ProfileSweep, nil
	default:
		return ProfileSteady, fmt.Errorf("unknown profile: %q (available: steady, ramp, sine, spike, sweep)", s)
	}
}

// Config はシナリオの設定
type Config struct {
	Name        string        // シナリオ名
	Description string        // 説明
	Duration    time.Duration // 実行時間
	Threads     int           // ワーカー数（0でCPU数）

	Compute compute.Type // 計算種類
	Profile Profile      // 負荷パターン
	Peak    float64      // 最大負荷（%）
	Base    float64      // spikeの低負荷側（%）

	StepInterval time.Duration // 負荷を更新する間隔
	PinWorkers   bool          // ワーカーをCPUに固定する
}

// DefaultConfig はデフォルト設定を返す
func DefaultConfig() Config {
	return Config{
		Name:         "default",
		Description:  "Steady load on all workers",
		Duration:     30 * time.Second,
		Threads:      0,
		Compute:      compute.BusyWait,
		Profile:      ProfileSteady,
		Peak:         50,
		Base:         10,
		StepInterval: time.Second,
	}
}

// Result はシナリオ実行結果
type Result struct {
	ScenarioName string
	StartTime    time.Time
	EndTime      time.Time
	Duration     time.Duration

	ThreadCount int
	ComputeType string
	TotalCycles uint64

	// 実効負荷（%）
	AvgAchieved       float64
	PerWorkerAchieved map[int]float64
}

// Engine はシナリオ実行エンジン
type Engine struct {
	config   Config
	eventBus *events.Bus

	pool      *loader.Pool
	collector *metrics.Collector

	mu      sync.RWMutex
	running bool
}

// New は新しいEngineを作成する
func New(config Config) *Engine {
	return &Engine{
		config: config,
	}
}

// SetEventBus はイベントバスを設定する
func (e *Engine) SetEventBus(bus *events.Bus) {
	e.eventBus = bus
}

// Run はシナリオを実行する
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return nil, fmt.Errorf("scenario is already running")
	}
	e.running = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
	}()

	logger.Info("", "=== Scenario '%s' started ===", e.config.Name)
	logger.Info("", "Description: %s", e.config.Description)

	result := &Result{
		ScenarioName: e.config.Name,
		StartTime:    time.Now(),
	}

	if err := e.setup(); err != nil {
		return nil, fmt.Errorf("setup failed: %w", err)
	}
	defer e.teardown()

	if e.eventBus != nil {
		e.eventBus.Publish(events.NewScenarioStartEvent(e.config.Name))
	}

	scenarioCtx, cancel := context.WithTimeout(ctx, e.config.Duration)
	defer cancel()

	e.drive(scenarioCtx, result.StartTime)

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)
	e.collectResults(result)

	if e.eventBus != nil {
		e.eventBus.Publish(events.NewScenarioCompleteEvent(e.config.Name))
	}

	logger.Info("", "=== Scenario '%s' completed ===", e.config.Name)

	return result, nil
}

// setup はプールを構築してシナリオの初期状態にする
func (e *Engine) setup() error {
	threads := e.config.Threads
	if threads <= 0 {
		threads = metrics.DefaultThreadCount()
	}

	collector := metrics.New()

	poolCfg := loader.DefaultConfig()
	poolCfg.DefaultCompute = e.config.Compute
	poolCfg.PinWorkers = e.config.PinWorkers

	pool := loader.NewWithConfig(poolCfg)
	pool.SetCollector(collector)
	if e.eventBus != nil {
		pool.SetEventBus(e.eventBus)
	}

	if err := pool.Initialize(threads); err != nil {
		return fmt.Errorf("failed to initialize pool: %w", err)
	}

	e.mu.Lock()
	e.pool = pool
	e.collector = collector
	e.mu.Unlock()

	return nil
}

// teardown はシナリオ実行後のクリーンアップ
func (e *Engine) teardown() {
	if e.pool != nil {
		e.pool.Shutdown()
	}
}

// drive はStepIntervalごとにプロファイルに従って負荷を更新する
func (e *Engine) drive(ctx context.Context, start time.Time) {
	// 最初のステップを待たずに初期値を適用する
	e.applyStep(0, time.Since(start))

	ticker := time.NewTicker(e.config.StepInterval)
	defer ticker.Stop()

	step := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			step++
			e.applyStep(step, time.Since(start))
		}
	}
}

// applyStep は1ステップ分の目標負荷（とsweepの計算種類）を適用する
func (e *Engine) applyStep(step int, elapsed time.Duration) {
	target := e.targetAt(step, elapsed)
	if err := e.pool.SetAllLoads(target); err != nil {
		logger.Warn("", "Failed to set load: %v", err)
		return
	}

	if e.config.Profile == ProfileSweep {
		types := compute.Types()
		ct := types[step%len(types)]
		if err := e.pool.SetComputationType(ct); err != nil {
			logger.Warn("", "Failed to set computation type: %v", err)
		}
	}

	logger.Debug("", "step %d: target %.1f%%", step, target)
}

// targetAt はプロファイルに基づく目標負荷（%）を返す
func (e *Engine) targetAt(step int, elapsed time.Duration) float64 {
	cfg := e.config

	switch cfg.Profile {
	case ProfileRamp:
		if cfg.Duration <= 0 {
			return cfg.Peak
		}
		frac := float64(elapsed) / float64(cfg.Duration)
		if frac > 1 {
			frac = 1
		}
		return cfg.Peak * frac
	case ProfileSine:
		if cfg.Duration <= 0 {
			return cfg.Peak
		}
		// 実行時間全体で1周期: 0 -> Peak -> 0
		phase := 2 * math.Pi * float64(elapsed) / float64(cfg.Duration)
		return cfg.Peak * (1 - math.Cos(phase)) / 2
	case ProfileSpike:
		if step%2 == 0 {
			return cfg.Base
		}
		return cfg.Peak
	default:
		// steady / sweep
		return cfg.Peak
	}
}

// collectResults は結果を収集する
func (e *Engine) collectResults(result *Result) {
	result.ThreadCount = e.pool.ThreadCount()
	result.ComputeType = e.pool.ComputationType().String()
	result.TotalCycles = e.collector.TotalCycles()

	// 実行開始からの累積ウィンドウで実効負荷を算出する
	achieved := e.collector.Achieved()
	result.PerWorkerAchieved = achieved

	if len(achieved) > 0 {
		var sum float64
		for _, pct := range achieved {
			sum += pct
		}
		result.AvgAchieved = sum / float64(len(achieved))
	}
}

// Report は結果をフォーマットして返す
func (r *Result) Report() string {
	report := fmt.Sprintf(`
================================================================================
                         SCENARIO REPORT: %s
================================================================================

EXECUTION SUMMARY
-----------------
  Start Time:     %s
  End Time:       %s
  Duration:       %v

LOAD SUMMARY
------------
  Workers:          %d
  Compute Type:     %s
  Total Cycles:     %d
  Avg Achieved:     %.1f%%

PER-WORKER ACHIEVED LOAD
------------------------
`,
		r.ScenarioName,
		r.StartTime.Format("2006-01-02 15:04:05"),
		r.EndTime.Format("2006-01-02 15:04:05"),
		r.Duration.Round(time.Millisecond),
		r.ThreadCount,
		r.ComputeType,
		r.TotalCycles,
		r.AvgAchieved,
	)

	for id := 0; id < r.ThreadCount; id++ {
		report += fmt.Sprintf("  worker-%-12d %.1f%%\n", id, r.PerWorkerAchieved[id])
	}

	report += "\n================================================================================"

	return report
}

// IsRunning は実行中かどうかを返す
func (e *Engine) IsRunning() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.running
}

// Pool は実行中のプールを返す（未実行ならnil）
func (e *Engine) Pool() *loader.Pool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.pool
}

// Collector はメトリクスコレクタを返す（未実行ならnil）
func (e *Engine) Collector() *metrics.Collector {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.collector
}
