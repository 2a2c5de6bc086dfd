package profiling

import (
	"fmt"
	"log/slog"
	"os"
	"runtime/pprof"
	"strings"
	"sync"
	"time"
)

type Config struct {
	Enabled          bool
	SQLTimeThreshold time.Duration
	Duration         time.Duration
	Cooldown         time.Duration
}

// Profiler captures a CPU profile when a single request spends more than
// the configured threshold executing SQL, pointing at endpoints where query
// volume, not handler code, dominates latency.
type Profiler struct {
	config        Config
	logger        *slog.Logger
	cooldowns     map[string]time.Time
	cooldownsLock sync.Mutex
}

func NewProfiler(config Config, logger *slog.Logger) *Profiler {
	if !config.Enabled {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("initializing SQL-time profiler")
	return &Profiler{
		config:    config,
		logger:    logger,
		cooldowns: make(map[string]time.Time),
	}
}

// ProfileIfSlowSQL starts a profile for path when sqlTime crosses the
// threshold. A per-path cooldown keeps a hot endpoint from profiling on
// every request.
func (p *Profiler) ProfileIfSlowSQL(path string, sqlTime time.Duration) {
	if sqlTime < p.config.SQLTimeThreshold {
		return
	}

	if p.isCoolingDown(path) {
		p.logger.Debug("endpoint over SQL-time threshold but in cooldown", "path", path)
		return
	}

	p.logger.Warn("endpoint exceeded SQL-time threshold, starting CPU profile",
		"path", path, "sql_time_ms", sqlTime.Milliseconds())
	p.setCooldown(path)
	go p.startProfiling(path)
}

func (p *Profiler) startProfiling(path string) {
	sanitizedPath := strings.ReplaceAll(path, "/", "_")
	filename := fmt.Sprintf("%s/qi_profile_%s_%d.pprof", os.TempDir(), sanitizedPath, time.Now().Unix())

	f, err := os.Create(filename)
	if err != nil {
		p.logger.Error("creating profile file", "path", path, "error", err)
		return
	}
	defer f.Close()

	if err := pprof.StartCPUProfile(f); err != nil {
		p.logger.Error("starting CPU profile", "path", path, "error", err)
		return
	}

	time.Sleep(p.config.Duration)
	pprof.StopCPUProfile()

	p.logger.Info("CPU profile completed", "path", path, "file", filename)
}

func (p *Profiler) isCoolingDown(path string) bool {
	p.cooldownsLock.Lock()
	defer p.cooldownsLock.Unlock()

	if cooldownEnd, exists := p.cooldowns[path]; exists {
		if time.Now().Before(cooldownEnd) {
			return true
		}
		delete(p.cooldowns, path)
	}
	return false
}

func (p *Profiler) setCooldown(path string) {
	p.cooldownsLock.Lock()
	defer p.cooldownsLock.Unlock()

	p.cooldowns[path] = time.Now().Add(p.config.Cooldown)
}
