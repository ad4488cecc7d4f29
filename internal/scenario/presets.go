package scenario

import (
	"time"

	"cpu-loadgen/internal/compute"
)

// SteadyScenario は一定負荷のシナリオ設定を返す
func SteadyScenario() Config {
	return Config{
		Name:         "steady",
		Description:  "Constant 50% load on all workers",
		Duration:     30 * time.Second,
		Compute:      compute.BusyWait,
		Profile:      ProfileSteady,
		Peak:         50,
		StepInterval: time.Second,
	}
}

// RampScenario は線形増加のシナリオ設定を返す
// 0%から開始し実行時間をかけて100%まで上げる
func RampScenario() Config {
	return Config{
		Name:         "ramp",
		Description:  "Linear ramp from 0% to 100% over the run",
		Duration:     60 * time.Second,
		Compute:      compute.BusyWait,
		Profile:      ProfileRamp,
		Peak:         100,
		StepInterval: time.Second,
	}
}

// SineScenario は正弦波のシナリオ設定を返す
func SineScenario() Config {
	return Config{
		Name:         "sine",
		Description:  "One full sine wave up to 80% load",
		Duration:     60 * time.Second,
		Compute:      compute.Series,
		Profile:      ProfileSine,
		Peak:         80,
		StepInterval: time.Second,
	}
}

// SpikeScenario は負荷スパイクのシナリオ設定を返す
// ステップごとに低負荷とピークを交互に切り替える
func SpikeScenario() Config {
	return Config{
		Name:         "spike",
		Description:  "Alternating 10% / 90% load spikes",
		Duration:     60 * time.Second,
		Compute:      compute.BusyWait,
		Profile:      ProfileSpike,
		Peak:         90,
		Base:         10,
		StepInterval: 5 * time.Second,
	}
}

// SweepScenario は計算種類を順に切り替えるシナリオ設定を返す
// 負荷は一定のまま、ステップごとに全ての計算種類を巡回する
func SweepScenario() Config {
	return Config{
		Name:         "sweep",
		Description:  "Cycle through every computation type at 75% load",
		Duration:     50 * time.Second,
		Compute:      compute.BusyWait,
		Profile:      ProfileSweep,
		Peak:         75,
		StepInterval: 10 * time.Second,
	}
}

// QuickScenario は短時間の動作確認用シナリオ設定を返す
func QuickScenario() Config {
	return Config{
		Name:         "quick",
		Description:  "Short smoke run with 2 workers",
		Duration:     5 * time.Second,
		Threads:      2,
		Compute:      compute.BusyWait,
		Profile:      ProfileSteady,
		Peak:         50,
		StepInterval: time.Second,
	}
}

// GetPreset は名前からプリセットを取得する
func GetPreset(name string) (Config, bool) {
	switch name {
	case "steady":
		return SteadyScenario(), true
	case "ramp":
		return RampScenario(), true
	case "sine":
		return SineScenario(), true
	case "spike":
		return SpikeScenario(), true
	case "sweep":
		return SweepScenario(), true
	case "quick":
		return QuickScenario(), true
	default:
		return Config{}, false
	}
}

// ListPresets は利用可能なプリセット名を返す
func ListPresets() []string {
	return []string{"steady", "ramp", "sine", "spike", "sweep", "quick"}
}
