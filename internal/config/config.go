package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"cpu-loadgen/internal/compute"
	"cpu-loadgen/internal/loader"
	"cpu-loadgen/internal/publisher"
	"cpu-loadgen/internal/scenario"
)

// FileConfig は設定ファイルの構造
type FileConfig struct {
	LoadGen  LoadGenConfig  `yaml:"loadgen" json:"loadgen"`
	Scenario ScenarioConfig `yaml:"scenario" json:"scenario"`
	Server   ServerConfig   `yaml:"server" json:"server"`
	MQTT     MQTTConfig     `yaml:"mqtt" json:"mqtt"`
}

// LoadGenConfig は負荷生成エンジンの設定
type LoadGenConfig struct {
	Threads       int             `yaml:"threads" json:"threads"`
	Compute       string          `yaml:"compute" json:"compute"`
	DefaultLoad   float64         `yaml:"default_load" json:"default_load"`
	ThreadLoads   map[int]float64 `yaml:"thread_loads" json:"thread_loads"`
	PinWorkers    bool            `yaml:"pin_workers" json:"pin_workers"`
	StrictPinning bool            `yaml:"strict_pinning" json:"strict_pinning"`
}

// ScenarioConfig はシナリオ設定
type ScenarioConfig struct {
	Preset       string  `yaml:"preset" json:"preset"`
	Profile      string  `yaml:"profile" json:"profile"`
	Duration     string  `yaml:"duration" json:"duration"`
	Peak         float64 `yaml:"peak" json:"peak"`
	Base         float64 `yaml:"base" json:"base"`
	StepInterval string  `yaml:"step_interval" json:"step_interval"`
}

// ServerConfig はAPIサーバー設定
type ServerConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Addr    string `yaml:"addr" json:"addr"`
}

// MQTTConfig はMQTT配信設定
type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled" json:"enabled"`
	Broker      string `yaml:"broker" json:"broker"`
	TopicPrefix string `yaml:"topic_prefix" json:"topic_prefix"`
	ClientID    string `yaml:"client_id" json:"client_id"`
	Username    string `yaml:"username" json:"username"`
	Password    string `yaml:"password" json:"password"`
	Interval    string `yaml:"interval" json:"interval"`
}

// LoadFile は設定ファイルを読み込む
func LoadFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config FileConfig
	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse JSON: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}

	return &config, nil
}

// Validate は設定を検証する
func (f *FileConfig) Validate() error {
	lg := f.LoadGen

	if lg.Threads < 0 {
		return fmt.Errorf("loadgen.threads must be non-negative")
	}
	if lg.DefaultLoad < 0 || lg.DefaultLoad > 100 {
		return fmt.Errorf("loadgen.default_load must be between 0 and 100")
	}
	for id, pct := range lg.ThreadLoads {
		if id < 0 {
			return fmt.Errorf("loadgen.thread_loads: negative thread id %d", id)
		}
		if pct < 0 || pct > 100 {
			return fmt.Errorf("loadgen.thread_loads[%d] must be between 0 and 100", id)
		}
	}
	if lg.Compute != "" {
		if _, err := compute.Parse(lg.Compute); err != nil {
			return fmt.Errorf("loadgen.compute: %w", err)
		}
	}

	sc := f.Scenario
	if sc.Profile != "" {
		if _, err := scenario.ParseProfile(sc.Profile); err != nil {
			return fmt.Errorf("scenario.profile: %w", err)
		}
	}
	if sc.Preset != "" {
		if _, ok := scenario.GetPreset(sc.Preset); !ok {
			return fmt.Errorf("scenario.preset: unknown preset %q (available: %v)", sc.Preset, scenario.ListPresets())
		}
	}
	if sc.Peak < 0 || sc.Peak > 100 {
		return fmt.Errorf("scenario.peak must be between 0 and 100")
	}
	if sc.Base < 0 || sc.Base > 100 {
		return fmt.Errorf("scenario.base must be between 0 and 100")
	}

	if f.MQTT.Enabled && f.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker is required when mqtt is enabled")
	}

	return nil
}

// ToPoolConfig はエンジン設定をloader.Configに変換する
func (f *FileConfig) ToPoolConfig() (loader.Config, error) {
	cfg := loader.DefaultConfig()

	if f.LoadGen.Compute != "" {
		ct, err := compute.Parse(f.LoadGen.Compute)
		if err != nil {
			return cfg, fmt.Errorf("invalid compute type: %w", err)
		}
		cfg.DefaultCompute = ct
	}
	cfg.PinWorkers = f.LoadGen.PinWorkers
	cfg.StrictPinning = f.LoadGen.StrictPinning

	return cfg, nil
}

// ToScenarioConfig はシナリオ設定をscenario.Configに変換する
// プリセットが指定されていればそれを土台に個別の項目で上書きする
func (f *FileConfig) ToScenarioConfig() (scenario.Config, error) {
	sc := f.Scenario

	config := scenario.DefaultConfig()
	if sc.Preset != "" {
		preset, ok := scenario.GetPreset(sc.Preset)
		if !ok {
			return config, fmt.Errorf("unknown preset: %s (available: %v)", sc.Preset, scenario.ListPresets())
		}
		config = preset
	}

	if sc.Profile != "" {
		profile, err := scenario.ParseProfile(sc.Profile)
		if err != nil {
			return config, err
		}
		config.Profile = profile
	}
	if sc.Duration != "" {
		d, err := time.ParseDuration(sc.Duration)
		if err != nil {
			return config, fmt.Errorf("invalid duration: %w", err)
		}
		config.Duration = d
	}
	if sc.Peak > 0 {
		config.Peak = sc.Peak
	}
	if sc.Base > 0 {
		config.Base = sc.Base
	}
	if sc.StepInterval != "" {
		d, err := time.ParseDuration(sc.StepInterval)
		if err != nil {
			return config, fmt.Errorf("invalid step interval: %w", err)
		}
		config.StepInterval = d
	}

	if f.LoadGen.Threads > 0 {
		config.Threads = f.LoadGen.Threads
	}
	if f.LoadGen.Compute != "" {
		ct, err := compute.Parse(f.LoadGen.Compute)
		if err != nil {
			return config, err
		}
		config.Compute = ct
	}
	config.PinWorkers = f.LoadGen.PinWorkers

	return config, nil
}

// ToPublisherConfig はMQTT設定をpublisher.Configに変換する
func (f *FileConfig) ToPublisherConfig() (publisher.Config, error) {
	cfg := publisher.DefaultConfig()

	cfg.Broker = f.MQTT.Broker
	if f.MQTT.TopicPrefix != "" {
		cfg.TopicPrefix = f.MQTT.TopicPrefix
	}
	if f.MQTT.ClientID != "" {
		cfg.ClientID = f.MQTT.ClientID
	}
	cfg.Username = f.MQTT.Username
	cfg.Password = f.MQTT.Password

	if f.MQTT.Interval != "" {
		d, err := time.ParseDuration(f.MQTT.Interval)
		if err != nil {
			return cfg, fmt.Errorf("invalid mqtt interval: %w", err)
		}
		cfg.Interval = d
	}

	return cfg, nil
}
