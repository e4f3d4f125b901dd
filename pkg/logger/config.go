package logger

import "log/slog"

type Backend string

const (
	BackendStd Backend = "std" // text-хендлер slog
	BackendZap Backend = "zap" // slog поверх zap (JSON, sampling)
)

type Config struct {
	// Метаданные сервиса
	Service    string
	Version    string
	InstanceID string

	// Управление выводом
	Level   slog.Level
	Env     Env
	Backend Backend
	Debug   bool

	// Zap sampling
	SampleInitial    int
	SampleThereafter int

	AddSource bool
}
