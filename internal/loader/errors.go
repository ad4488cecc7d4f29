package loader

import "errors"

var (
	// ErrInvalidArgument は範囲外のスレッド数・ID・負荷率・計算種類を表す
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrRuntimeFailure はワーカーを起動できなかったことを表す
	ErrRuntimeFailure = errors.New("runtime failure")
)
