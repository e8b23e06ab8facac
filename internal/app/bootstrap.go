package app

import (
	"time"

	"loopkit/internal/config"
	"loopkit/internal/loop"
	"loopkit/internal/runtime/supervisor"
)

// ---- Config ----

type Config = config.Config

type TaskConfig = config.TaskConfig

type ConfigManager = config.Manager

var NewConfigManager = config.NewManager

// SummarizeConfigChange produces a safe, structured summary of config diffs.
// Kept as an alias so the reload loop reads without package noise.
var SummarizeConfigChange = config.SummarizeChange

func parseDurationField(path, raw string) (time.Duration, error) {
	return config.ParseDurationField(path, raw)
}

func parseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	return config.ParseDurationOrDefault(path, raw, def)
}

// ---- Runtime ----

type Supervisor = supervisor.Supervisor

var NewSupervisor = supervisor.New

var WithLogger = supervisor.WithLogger

var WithCancelOnError = supervisor.WithCancelOnError

// ---- Lifecycle ----

// StopReason records why the process is going down. It only affects logs.
type StopReason = loop.StopReason

const (
	StopUnknown   = loop.StopUnknown
	StopSignal    = loop.StopSignal
	StopMaxUptime = loop.StopMaxUptime
	StopFatal     = loop.StopFatal
)
