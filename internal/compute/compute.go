package compute

import (
	"fmt"
	"strings"
	"time"
)

// Type は計算負荷の種類を表す
type Type int

const (
	// BusyWait は時刻チェックのみのタイトスピン
	BusyWait Type = 0
	// Series は交代級数の累積（浮動小数点演算の代表）
	Series Type = 1
	// Primes は試し割りによる素数判定（整数演算の代表）
	Primes Type = 2
	// Matrix は4x4行列積の繰り返し（積和演算の代表）
	Matrix Type = 3
	// Light は軽量なスカラー累積と短い休止の組み合わせ
	Light Type = 4
)

// seriesBatch / primesBatch / lightBatch は時刻を再確認するまでの演算数
const (
	seriesBatch = 100
	primesBatch = 50
	lightBatch  = 100

	// primesStart / primesLimit は候補整数のオドメータ範囲
	primesStart = 1000
	primesLimit = 100000

	// lightPause はLightのバッチ間の休止時間
	lightPause = 5 * time.Microsecond
)

// sink は最適化によって計算が消えるのを防ぐ
var sink float64

func (t Type) String() string {
	switch t {
	case BusyWait:
		return "busy-wait"
	case Series:
		return "series"
	case Primes:
		return "primes"
	case Matrix:
		return "matrix"
	case Light:
		return "light"
	default:
		return "unknown"
	}
}

// Valid は列挙された計算種類かどうかを返す
func (t Type) Valid() bool {
	return t >= BusyWait && t <= Light
}

// Parse は文字列表現をTypeに変換する
func Parse(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "busy-wait", "busywait":
		return BusyWait, nil
	case "series":
		return Series, nil
	case "primes":
		return Primes, nil
	case "matrix":
		return Matrix, nil
	case "light":
		return Light, nil
	default:
		return BusyWait, fmt.Errorf("unknown computation type: %q (available: busy-wait, series, primes, matrix, light)", s)
	}
}

// Types は列挙された全ての計算種類を返す
func Types() []Type {
	return []Type{BusyWait, Series, Primes, Matrix, Light}
}

// RunFor は指定時間だけ計算を実行する
// 各バッチの後に経過時間を再確認するため、超過は1バッチ分に収まる
func (t Type) RunFor(d time.Duration) {
	if d <= 0 {
		return
	}
	switch t {
	case Series:
		runSeries(d)
	case Primes:
		runPrimes(d)
	case Matrix:
		runMatrix(d)
	case Light:
		runLight(d)
	default:
		runBusyWait(d)
	}
}

// runBusyWait は時刻チェックのみのタイトスピン
func runBusyWait(d time.Duration) {
	start := time.Now()
	for time.Since(start) < d {
	}
}

// runSeries は1/(2i+1)の交代級数を累積する
func runSeries(d time.Duration) {
	start := time.Now()
	acc := 0.0
	i := 0

	for time.Since(start) < d {
		for batch := 0; batch < seriesBatch; batch++ {
			term := 1.0 / float64(2*i+1)
			if i%2 != 0 {
				term = -term
			}
			acc += term
			i++
		}
	}
	sink = acc
}

// isPrime は試し割りによる素数判定
func isPrime(n int64) bool {
	if n < 2 {
		return false
	}
	if n == 2 {
		return true
	}
	if n%2 == 0 {
		return false
	}
	for i := int64(3); i*i <= n; i += 2 {
		if n%i == 0 {
			return false
		}
	}
	return true
}

// runPrimes は候補整数を順に素数判定する
// 上限に達したら初期値に戻して無限の増大を避ける
func runPrimes(d time.Duration) {
	start := time.Now()
	n := int64(primesStart)
	found := 0

	for time.Since(start) < d {
		for batch := 0; batch < primesBatch; batch++ {
			if isPrime(n) {
				found++
			}
			n++
			if n > primesLimit {
				n = primesStart
			}
		}
	}
	sink = float64(found)
}

// runMatrix は4x4行列積を繰り返す
// 定数畳み込みを防ぐため毎回入力を少し変化させる
func runMatrix(d time.Duration) {
	start := time.Now()
	a := [4][4]float64{{1, 2, 3, 4}, {5, 6, 7, 8}, {9, 10, 11, 12}, {13, 14, 15, 16}}
	b := [4][4]float64{{16, 15, 14, 13}, {12, 11, 10, 9}, {8, 7, 6, 5}, {4, 3, 2, 1}}
	var result [4][4]float64

	for time.Since(start) < d {
		for i := 0; i < 4; i++ {
			for j := 0; j < 4; j++ {
				result[i][j] = 0
				for k := 0; k < 4; k++ {
					result[i][j] += a[i][k] * b[k][j]
				}
				// 出力要素ごとに経過時間を確認する
				if time.Since(start) >= d {
					sink = result[i][j]
					return
				}
			}
		}
		a[0][0] = result[0][0] / 1000000.0
	}
	sink = result[0][0]
}

// runLight は軽量なスカラー累積にバッチごとの短い休止を挟む
func runLight(d time.Duration) {
	start := time.Now()
	acc := 0.0
	counter := 0

	for time.Since(start) < d {
		for batch := 0; batch < lightBatch; batch++ {
			acc += float64(counter)*1.1 + 0.5
			counter = (counter + 1) % 1000
		}
		time.Sleep(lightPause)
	}
	sink = acc
}
