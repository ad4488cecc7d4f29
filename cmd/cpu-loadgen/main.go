// Package main is the entry point for cpu-loadgen.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"cpu-loadgen/internal/api"
	"cpu-loadgen/internal/compute"
	"cpu-loadgen/internal/config"
	"cpu-loadgen/internal/events"
	"cpu-loadgen/internal/loader"
	"cpu-loadgen/internal/logger"
	"cpu-loadgen/internal/metrics"
	"cpu-loadgen/internal/publisher"
	"cpu-loadgen/internal/scenario"
)

var version = "dev"

type options struct {
	configFile  string
	presetName  string
	listPresets bool

	threads     int
	load        float64
	threadLoads string
	computeType string
	duration    time.Duration
	pinWorkers  bool
	strictPin   bool

	serverMode bool
	serverAddr string

	mqttBroker   string
	mqttTopic    string
	mqttInterval time.Duration

	verbose bool
}

func main() {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:     "cpu-loadgen",
		Short:   "Controllable synthetic CPU load generator",
		Version: version,
		Long: `cpu-loadgen - Controllable Synthetic CPU Load Generator

ワーカースレッドごとに目標負荷率を指定してCPU負荷を生成する。
固定シナリオの実行、REST/WebSocket APIによる動的制御、
MQTTによるメトリクス配信に対応する。`,
		Example: `  # 4ワーカーで50%の定常負荷
  cpu-loadgen --threads 4 --load 50

  # ワーカーごとに個別の負荷率を指定
  cpu-loadgen --thread-loads "0=80,1=20,2=100"

  # プリセットシナリオを実行
  cpu-loadgen --preset ramp

  # 設定ファイルから実行
  cpu-loadgen --config loadgen.yaml

  # APIサーバーモードで起動
  cpu-loadgen --server --addr :8080

  # MQTTでメトリクスを配信しながら実行
  cpu-loadgen --load 70 --mqtt-broker tcp://localhost:1883`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(opts)
		},
	}

	flags := rootCmd.Flags()
	flags.StringVarP(&opts.configFile, "config", "c", "", "設定ファイルパス (YAML/JSON)")
	flags.StringVar(&opts.presetName, "preset", "", "プリセットシナリオ名 (steady, ramp, sine, spike, sweep, quick)")
	flags.BoolVar(&opts.listPresets, "list-presets", false, "利用可能なプリセットを表示")
	flags.IntVarP(&opts.threads, "threads", "t", 0, "ワーカー数 (0で論理CPU数)")
	flags.Float64VarP(&opts.load, "load", "l", 0, "全ワーカーの目標負荷率 (0-100%)")
	flags.StringVar(&opts.threadLoads, "thread-loads", "", "ワーカー別の負荷率 (例: 0=80,1=20)")
	flags.StringVar(&opts.computeType, "compute", "", "計算種類 (busy-wait, series, primes, matrix, light)")
	flags.DurationVarP(&opts.duration, "duration", "d", 0, "実行時間 (0で無制限、例: 30s, 5m)")
	flags.BoolVar(&opts.pinWorkers, "pin", false, "ワーカーをCPUコアに固定する")
	flags.BoolVar(&opts.strictPin, "strict-pin", false, "CPU固定失敗を起動エラーとして扱う")
	flags.BoolVar(&opts.serverMode, "server", false, "APIサーバーモードで起動")
	flags.StringVar(&opts.serverAddr, "addr", ":8080", "サーバーアドレス (例: :8080, 0.0.0.0:3000)")
	flags.StringVar(&opts.mqttBroker, "mqtt-broker", "", "MQTTブローカーURL (例: tcp://localhost:1883)")
	flags.StringVar(&opts.mqttTopic, "mqtt-topic", "", "MQTTトピックプレフィックス")
	flags.DurationVar(&opts.mqttInterval, "mqtt-interval", 0, "MQTT配信間隔")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "デバッグログを出力")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(opts *options) error {
	if opts.verbose {
		logger.Default.SetLevel(logger.LevelDebug)
	}

	if opts.listPresets {
		printPresets()
		return nil
	}

	// 設定ファイルの読み込み
	var fileConfig *config.FileConfig
	if opts.configFile != "" {
		var err error
		fileConfig, err = config.LoadFile(opts.configFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if err := fileConfig.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
	}

	ctx, cancel := signalContext()
	defer cancel()

	// APIサーバーモード
	if opts.serverMode || (fileConfig != nil && fileConfig.Server.Enabled) {
		return runServer(ctx, opts, fileConfig)
	}

	// シナリオ実行モード
	if opts.presetName != "" || (fileConfig != nil && (fileConfig.Scenario.Preset != "" || fileConfig.Scenario.Profile != "")) {
		return runScenario(ctx, opts, fileConfig)
	}

	// 直接制御モード: 固定負荷で実行
	return runDirect(ctx, opts, fileConfig)
}

// signalContext はSIGINT/SIGTERMでキャンセルされるコンテキストを返す
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Println("\nshutting down...")
		cancel()
	}()

	return ctx, cancel
}

// buildPool はフラグと設定ファイルからプールを組み立てる
func buildPool(opts *options, fileConfig *config.FileConfig) (*loader.Pool, *metrics.Collector, *events.Bus, error) {
	poolCfg := loader.DefaultConfig()
	if fileConfig != nil {
		var err error
		poolCfg, err = fileConfig.ToPoolConfig()
		if err != nil {
			return nil, nil, nil, err
		}
	}

	if opts.computeType != "" {
		ct, err := compute.Parse(opts.computeType)
		if err != nil {
			return nil, nil, nil, err
		}
		poolCfg.DefaultCompute = ct
	}
	if opts.pinWorkers {
		poolCfg.PinWorkers = true
	}
	if opts.strictPin {
		poolCfg.PinWorkers = true
		poolCfg.StrictPinning = true
	}

	collector := metrics.New()
	bus := events.NewBus()

	pool := loader.NewWithConfig(poolCfg)
	pool.SetCollector(collector)
	pool.SetEventBus(bus)

	return pool, collector, bus, nil
}

// resolveThreads はワーカー数を決定する（0なら論理CPU数）
func resolveThreads(opts *options, fileConfig *config.FileConfig) int {
	if opts.threads > 0 {
		return opts.threads
	}
	if fileConfig != nil && fileConfig.LoadGen.Threads > 0 {
		return fileConfig.LoadGen.Threads
	}
	return metrics.DefaultThreadCount()
}

// applyLoads はフラグと設定ファイルの負荷率をプールに適用する
func applyLoads(pool *loader.Pool, opts *options, fileConfig *config.FileConfig) error {
	if fileConfig != nil {
		if fileConfig.LoadGen.DefaultLoad > 0 {
			if err := pool.SetAllLoads(fileConfig.LoadGen.DefaultLoad); err != nil {
				return err
			}
		}
		for id, pct := range fileConfig.LoadGen.ThreadLoads {
			if err := pool.SetThreadLoad(id, pct); err != nil {
				return err
			}
		}
	}

	if opts.load > 0 {
		if err := pool.SetAllLoads(opts.load); err != nil {
			return err
		}
	}

	if opts.threadLoads != "" {
		loads, err := parseThreadLoads(opts.threadLoads)
		if err != nil {
			return err
		}
		for id, pct := range loads {
			if err := pool.SetThreadLoad(id, pct); err != nil {
				return err
			}
		}
	}

	return nil
}

// parseThreadLoads は "0=80,1=20" 形式の文字列を解析する
func parseThreadLoads(s string) (map[int]float64, error) {
	loads := make(map[int]float64)

	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid thread load %q (expected id=percent)", pair)
		}
		id, err := strconv.Atoi(strings.TrimSpace(parts[0]))
		if err != nil {
			return nil, fmt.Errorf("invalid worker id %q: %w", parts[0], err)
		}
		pct, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid load percent %q: %w", parts[1], err)
		}
		loads[id] = pct
	}

	return loads, nil
}

// startPublisher はMQTT配信が設定されていれば開始する
func startPublisher(ctx context.Context, opts *options, fileConfig *config.FileConfig, pool *loader.Pool, collector *metrics.Collector) (*publisher.Publisher, error) {
	pubCfg := publisher.DefaultConfig()
	enabled := false

	if fileConfig != nil && fileConfig.MQTT.Enabled {
		var err error
		pubCfg, err = fileConfig.ToPublisherConfig()
		if err != nil {
			return nil, err
		}
		enabled = true
	}
	if opts.mqttBroker != "" {
		pubCfg.Broker = opts.mqttBroker
		enabled = true
	}
	if opts.mqttTopic != "" {
		pubCfg.TopicPrefix = opts.mqttTopic
	}
	if opts.mqttInterval > 0 {
		pubCfg.Interval = opts.mqttInterval
	}

	if !enabled {
		return nil, nil
	}

	pub := publisher.New(pool, collector, pubCfg)
	if err := pub.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start MQTT publisher: %w", err)
	}
	return pub, nil
}

// runDirect は固定負荷で実行する
func runDirect(ctx context.Context, opts *options, fileConfig *config.FileConfig) error {
	pool, collector, bus, err := buildPool(opts, fileConfig)
	if err != nil {
		return err
	}
	defer bus.Close()

	threads := resolveThreads(opts, fileConfig)

	fmt.Println("cpu-loadgen - Controllable Synthetic CPU Load Generator")
	fmt.Println("=======================================================")
	fmt.Printf("Workers: %d\n", threads)
	fmt.Printf("Compute: %s\n", pool.ComputationType())
	if opts.duration > 0 {
		fmt.Printf("Duration: %v\n", opts.duration)
	} else {
		fmt.Println("Duration: unlimited (Ctrl+C to stop)")
	}
	fmt.Println("=======================================================")
	fmt.Println()

	if err := pool.Initialize(threads); err != nil {
		return fmt.Errorf("failed to initialize workers: %w", err)
	}
	defer pool.Shutdown()

	if err := applyLoads(pool, opts, fileConfig); err != nil {
		return err
	}

	pub, err := startPublisher(ctx, opts, fileConfig, pool, collector)
	if err != nil {
		return err
	}
	if pub != nil {
		defer pub.Stop()
	}

	runCtx := ctx
	if opts.duration > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, opts.duration)
		defer cancel()
	}

	// 定期的に実効負荷を表示
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-runCtx.Done():
			printSummary(collector)
			return nil
		case <-ticker.C:
			snap := collector.TakeSnapshot()
			avg := 0.0
			for _, pct := range snap.Achieved {
				avg += pct
			}
			if len(snap.Achieved) > 0 {
				avg /= float64(len(snap.Achieved))
			}
			logger.Info("", "achieved=%.1f%% system=%.1f%% cycles=%d", avg, snap.SystemCPU, snap.TotalCycles)
		}
	}
}

// runScenario はシナリオを実行する
func runScenario(ctx context.Context, opts *options, fileConfig *config.FileConfig) error {
	cfg, err := buildScenarioConfig(opts, fileConfig)
	if err != nil {
		return err
	}

	fmt.Println("cpu-loadgen - Scenario Runner")
	fmt.Println("=============================")
	fmt.Printf("Scenario: %s\n", cfg.Name)
	fmt.Printf("Profile: %s, Duration: %v\n", cfg.Profile, cfg.Duration)
	fmt.Printf("Peak: %.0f%%, Compute: %s\n", cfg.Peak, cfg.Compute)
	fmt.Println("=============================")
	fmt.Println()

	bus := events.NewBus()
	defer bus.Close()

	engine := scenario.New(cfg)
	engine.SetEventBus(bus)

	// シナリオプールでMQTT配信する場合はセットアップ後に接続する
	pubCh := make(chan *publisher.Publisher, 1)
	pubDone := make(chan struct{})
	pubCtx, pubCancel := context.WithCancel(ctx)
	defer pubCancel()

	if opts.mqttBroker != "" || (fileConfig != nil && fileConfig.MQTT.Enabled) {
		go func() {
			defer close(pubDone)

			// プールが作られるまで待つ
			for engine.Pool() == nil {
				select {
				case <-pubCtx.Done():
					return
				case <-time.After(100 * time.Millisecond):
				}
			}
			p, err := startPublisher(pubCtx, opts, fileConfig, engine.Pool(), engine.Collector())
			if err != nil {
				logger.Warn("", "MQTT publisher not started: %v", err)
				return
			}
			pubCh <- p
		}()
	} else {
		close(pubDone)
	}

	result, err := engine.Run(ctx)

	// 起動側の完了を待ってから停止する
	pubCancel()
	if pub := awaitPublisher(pubDone, pubCh); pub != nil {
		pub.Stop()
	}
	if err != nil {
		return err
	}

	fmt.Println(result.Report())
	return nil
}

// awaitPublisher は起動ゴルーチンの完了を待ち、起動済みのパブリッシャを返す
// 起動されなかった場合はnilを返す
func awaitPublisher(done <-chan struct{}, pubCh <-chan *publisher.Publisher) *publisher.Publisher {
	<-done
	select {
	case p := <-pubCh:
		return p
	default:
		return nil
	}
}

// buildScenarioConfig はシナリオ設定を構築する
func buildScenarioConfig(opts *options, fileConfig *config.FileConfig) (scenario.Config, error) {
	var cfg scenario.Config

	if fileConfig != nil {
		var err error
		cfg, err = fileConfig.ToScenarioConfig()
		if err != nil {
			return cfg, err
		}
	} else {
		cfg = scenario.QuickScenario()
	}

	if opts.presetName != "" {
		preset, ok := scenario.GetPreset(opts.presetName)
		if !ok {
			return cfg, fmt.Errorf("unknown preset: %s (available: %v)", opts.presetName, scenario.ListPresets())
		}
		cfg = preset
	}

	// フラグでオーバーライド
	if opts.duration > 0 {
		cfg.Duration = opts.duration
	}
	if opts.threads > 0 {
		cfg.Threads = opts.threads
	}
	if opts.load > 0 {
		cfg.Peak = opts.load
	}
	if opts.computeType != "" {
		ct, err := compute.Parse(opts.computeType)
		if err != nil {
			return cfg, err
		}
		cfg.Compute = ct
	}
	if opts.pinWorkers {
		cfg.PinWorkers = true
	}

	return cfg, nil
}

// runServer はAPIサーバーモードで起動する
func runServer(ctx context.Context, opts *options, fileConfig *config.FileConfig) error {
	pool, collector, bus, err := buildPool(opts, fileConfig)
	if err != nil {
		return err
	}
	defer bus.Close()

	addr := opts.serverAddr
	if fileConfig != nil && fileConfig.Server.Addr != "" && opts.serverAddr == ":8080" {
		addr = fileConfig.Server.Addr
	}

	fmt.Println("cpu-loadgen - API Server")
	fmt.Println("========================")
	fmt.Printf("Starting server on http://%s\n", addr)
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	// サーバーモードでも初期ワーカーを起動しておく
	threads := resolveThreads(opts, fileConfig)
	if err := pool.Initialize(threads); err != nil {
		return fmt.Errorf("failed to initialize workers: %w", err)
	}
	defer pool.Shutdown()

	if err := applyLoads(pool, opts, fileConfig); err != nil {
		return err
	}

	pub, err := startPublisher(ctx, opts, fileConfig, pool, collector)
	if err != nil {
		return err
	}
	if pub != nil {
		defer pub.Stop()
	}

	server := api.NewServer(addr, pool, collector, bus)
	return server.Start(ctx)
}

// printPresets は利用可能なプリセットを表示する
func printPresets() {
	fmt.Println("利用可能なプリセットシナリオ:")
	fmt.Println()

	for _, name := range scenario.ListPresets() {
		cfg, _ := scenario.GetPreset(name)
		fmt.Printf("  %-12s %s\n", name, cfg.Description)
	}

	fmt.Println()
	fmt.Println("使用例: cpu-loadgen --preset ramp")
}

// printSummary は終了時のサマリを表示する
func printSummary(collector *metrics.Collector) {
	snap := collector.TakeSnapshot()

	fmt.Println()
	fmt.Println("=== Summary ===")
	fmt.Printf("Uptime: %v\n", snap.Uptime.Round(time.Second))
	fmt.Printf("Total cycles: %d\n", snap.TotalCycles)
	for id := 0; id < snap.ThreadCount; id++ {
		fmt.Printf("  worker %d: %.1f%%\n", id, snap.Achieved[id])
	}
}
