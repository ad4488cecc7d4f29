package logger

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level はログレベルを表す
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// zapLevel はLevelをzapcore.Levelに変換する
func (l Level) zapLevel() zapcore.Level {
	switch l {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Logger はzapをバックエンドとするスレッドセーフなロガー
type Logger struct {
	sl    *zap.SugaredLogger
	level zap.AtomicLevel
}

// Default はデフォルトのロガー
var Default = New(os.Stdout, LevelInfo)

// New は新しいロガーを作成する
func New(out io.Writer, minLevel Level) *Logger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05.000")
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	level := zap.NewAtomicLevelAt(minLevel.zapLevel())
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.AddSync(out),
		level,
	)

	return &Logger{
		sl:    zap.New(core).Sugar(),
		level: level,
	}
}

// SetLevel はログレベルを設定する
func (l *Logger) SetLevel(level Level) {
	l.level.SetLevel(level.zapLevel())
}

// format はワーカーIDをメッセージに前置する
func format(workerID string, msg string) string {
	if workerID == "" {
		return msg
	}
	return "[" + workerID + "] " + msg
}

// Debug はデバッグログを出力する
func (l *Logger) Debug(workerID string, msg string, args ...any) {
	l.sl.Debugf(format(workerID, msg), args...)
}

// Info は情報ログを出力する
func (l *Logger) Info(workerID string, msg string, args ...any) {
	l.sl.Infof(format(workerID, msg), args...)
}

// Warn は警告ログを出力する
func (l *Logger) Warn(workerID string, msg string, args ...any) {
	l.sl.Warnf(format(workerID, msg), args...)
}

// Error はエラーログを出力する
func (l *Logger) Error(workerID string, msg string, args ...any) {
	l.sl.Errorf(format(workerID, msg), args...)
}

// Sync はバッファされたログをフラッシュする
func (l *Logger) Sync() error {
	return l.sl.Sync()
}

// グローバル関数（デフォルトロガーを使用）

// Debug はデバッグログを出力する
func Debug(workerID string, msg string, args ...any) {
	Default.Debug(workerID, msg, args...)
}

// Info は情報ログを出力する
func Info(workerID string, msg string, args ...any) {
	Default.Info(workerID, msg, args...)
}

// Warn は警告ログを出力する
func Warn(workerID string, msg string, args ...any) {
	Default.Warn(workerID, msg, args...)
}

// Error はエラーログを出力する
func Error(workerID string, msg string, args ...any) {
	Default.Error(workerID, msg, args...)
}
