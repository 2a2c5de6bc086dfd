package inspect

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/fllarpy/query-inspect/domain/query"
	"github.com/fllarpy/query-inspect/pkg/config"
)

// Response header names, matching the original Django Query Inspector.
const (
	HeaderNumQueries       = "X-QueryInspect-Num-SQL-Queries"
	HeaderDuplicateQueries = "X-QueryInspect-Duplicate-SQL-Queries"
	HeaderTotalSQLTime     = "X-QueryInspect-Total-SQL-Time"
	HeaderTotalRequestTime = "X-QueryInspect-Total-Request-Time"
)

// Line is one leveled log line of a report.
type Line struct {
	Level   slog.Level
	Message string
}

// Emit renders aggregated statistics into log lines and response headers
// according to the active configuration. Outlier lines are produced
// whenever a threshold is configured and crossed, independent of log_stats.
// The headers map is nil when header_stats is off; with it on, a request
// that ran no queries still reports explicit zero values.
func Emit(stats query.RequestStats, cfg *config.Config) ([]Line, map[string]string) {
	var lines []Line
	lines = append(lines, duplicateLines(stats, cfg)...)
	lines = append(lines, outlierLines(stats, cfg)...)

	if cfg.LogStats {
		lines = append(lines, Line{slog.LevelInfo, fmt.Sprintf(
			"[SQL] %d queries (%d duplicates), %d ms SQL time, %d ms total request time",
			stats.QueryCount,
			stats.DuplicateCount,
			stats.TotalSQLTime.Milliseconds(),
			stats.TotalRequestTime.Milliseconds())})
	}

	lines = append(lines, queryLines(stats, cfg)...)

	var headers map[string]string
	if cfg.HeaderStats {
		headers = map[string]string{
			HeaderNumQueries:       strconv.Itoa(stats.QueryCount),
			HeaderDuplicateQueries: strconv.Itoa(stats.DuplicateCount),
			HeaderTotalSQLTime:     fmt.Sprintf("%d ms", stats.TotalSQLTime.Milliseconds()),
			HeaderTotalRequestTime: fmt.Sprintf("%d ms", stats.TotalRequestTime.Milliseconds()),
		}
	}
	return lines, headers
}

func duplicateLines(stats query.RequestStats, cfg *config.Config) []Line {
	if !cfg.LogDuplicates {
		return nil
	}

	var lines []Line
	for _, g := range stats.DuplicateGroups {
		lines = append(lines, Line{slog.LevelWarn, fmt.Sprintf(
			"[SQL] repeated query (%dx): %s", g.Count, g.SampleSQL)})

		if !cfg.LogTracebacks {
			continue
		}
		for idx, stack := range g.SampleStacks {
			if idx >= cfg.LogTracebacksDuplicateLimit {
				break
			}
			filtered := FilterStack(stack, cfg.TracebackRoots, cfg.TracebackRootsExclude)
			lines = append(lines, Line{slog.LevelWarn, fmt.Sprintf(
				"[%d] Traceback:\n%s", idx+1, FormatStack(filtered))})
		}
	}
	return lines
}

func outlierLines(stats query.RequestStats, cfg *config.Config) []Line {
	var lines []Line
	statLimit := stats.MeanMs + cfg.StandardDeviationLimit*stats.StdDevMs
	for _, o := range stats.Outliers {
		ms := o.Record.Duration.Milliseconds()
		if o.Statistical {
			lines = append(lines, Line{slog.LevelWarn, fmt.Sprintf(
				"[SQL] query execution of %d ms over limit of %d ms (%g dev above mean): %s",
				ms, int64(statLimit), cfg.StandardDeviationLimit, o.Record.SQL)})
		}
		if o.Absolute {
			lines = append(lines, Line{slog.LevelWarn, fmt.Sprintf(
				"[SQL] query execution of %d ms over absolute limit of %d ms: %s",
				ms, int64(cfg.AbsoluteLimit), o.Record.SQL)})
		}
	}
	return lines
}

func queryLines(stats query.RequestStats, cfg *config.Config) []Line {
	if !cfg.LogAllQueries {
		return nil
	}

	var lines []Line
	for idx, r := range stats.Records {
		lines = append(lines, Line{slog.LevelInfo, fmt.Sprintf(
			"[SQL] [%d: %d ms] %s", idx+1, r.Duration.Milliseconds(), r.SQL)})

		if !cfg.LogTracebacks || len(r.Stack) == 0 {
			continue
		}
		filtered := FilterStack(r.Stack, cfg.TracebackRoots, cfg.TracebackRootsExclude)
		if len(filtered) == 0 {
			continue
		}
		// Innermost surviving frame: the most specific call site.
		f := filtered[len(filtered)-1]
		lines = append(lines, Line{slog.LevelInfo, fmt.Sprintf(
			"[SQL] [%d: Traceback] %s:%d (%s)", idx+1, f.File, f.Line, f.Function)})
	}
	return lines
}
