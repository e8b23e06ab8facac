package app

import (
	"fmt"
	"net"
	"strings"
	"time"

	"loopkit/internal/debugsrv"
)

// mapDebugConfig validates and converts the JSON config into the debug
// server config. It never starts the server.
func mapDebugConfig(cfg *Config) (debugsrv.Config, error) {
	var out debugsrv.Config
	if cfg == nil {
		return out, nil
	}
	dc := cfg.Debug

	out.Enabled = dc.Enabled
	out.AllowInsecure = dc.AllowInsecure
	out.Token = strings.TrimSpace(dc.Token)
	out.Addr = strings.TrimSpace(dc.Addr)
	out.Prefix = strings.TrimSpace(dc.Prefix)

	if out.Addr == "" {
		out.Addr = "127.0.0.1:6060"
	}
	if out.Prefix == "" {
		out.Prefix = "/debug/pprof/"
	}

	// durations
	readTO, err := parseDurationOrDefault("debug.read_timeout", dc.ReadTimeout, 5*time.Second)
	if err != nil {
		return out, err
	}
	writeTO, err := parseDurationField("debug.write_timeout", dc.WriteTimeout)
	if err != nil {
		return out, err
	}
	idleTO, err := parseDurationOrDefault("debug.idle_timeout", dc.IdleTimeout, 120*time.Second)
	if err != nil {
		return out, err
	}
	out.ReadTimeout = readTO
	out.WriteTimeout = writeTO // default 0 (disabled) so long /profile pulls work
	out.IdleTimeout = idleTO

	// runtime profiling rates
	if dc.MutexProfileFraction < 0 {
		return out, fmt.Errorf("debug.mutex_profile_fraction must be >= 0")
	}
	if dc.BlockProfileRate < 0 {
		return out, fmt.Errorf("debug.block_profile_rate must be >= 0")
	}
	if dc.MemProfileRate < 0 {
		return out, fmt.Errorf("debug.mem_profile_rate must be >= 0")
	}
	out.MutexProfileFraction = dc.MutexProfileFraction
	out.BlockProfileRate = dc.BlockProfileRate
	out.MemProfileRate = dc.MemProfileRate

	// Validate addr format if enabled.
	if out.Enabled {
		if _, _, err := net.SplitHostPort(out.Addr); err != nil {
			return out, fmt.Errorf("debug.addr: invalid %q (expected host:port): %w", out.Addr, err)
		}
		// Security: refuse public bind without explicit opt-in.
		if !out.AllowInsecure && out.Token == "" && !isLoopbackAddr(out.Addr) {
			return out, fmt.Errorf("debug: binding to non-loopback addr requires token or allow_insecure=true")
		}
	}

	return out, nil
}

func isLoopbackAddr(addr string) bool {
	h, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	h = strings.TrimSpace(h)
	if h == "" {
		return false
	}
	if strings.EqualFold(h, "localhost") {
		return true
	}
	ip := net.ParseIP(h)
	if ip == nil {
		return false
	}
	return ip.IsLoopback()
}
