package inspect

import (
	"math"
	"sort"
	"time"

	"github.com/fllarpy/query-inspect/domain/query"
	"github.com/fllarpy/query-inspect/pkg/config"
)

// Aggregate computes the statistics for one request's capture buffer:
// totals, duplicate groups, mean and population standard deviation of the
// per-query durations, and the records crossing the configured absolute or
// statistical thresholds. An empty buffer yields valid zero-valued stats.
func Aggregate(records []query.Record, requestDuration time.Duration, cfg *config.Config) query.RequestStats {
	stats := query.RequestStats{
		QueryCount:       len(records),
		TotalRequestTime: requestDuration,
		Records:          records,
	}

	durations := make([]float64, len(records))
	for i, r := range records {
		stats.TotalSQLTime += r.Duration
		durations[i] = float64(r.Duration) / float64(time.Millisecond)
	}

	stats.DuplicateGroups = groupDuplicates(records, cfg.LogTracebacksDuplicateLimit)
	for _, g := range stats.DuplicateGroups {
		stats.DuplicateCount += g.Count - 1
	}

	stats.MeanMs, stats.StdDevMs = meanStdDev(durations)
	stats.Outliers = flagOutliers(records, durations, stats.MeanMs, stats.StdDevMs, cfg)
	return stats
}

// groupDuplicates buckets records by normalized signature, keeps the groups
// seen at least twice, and sorts them by descending count. The sort is
// stable so ties stay in first-seen order.
func groupDuplicates(records []query.Record, stackLimit int) []query.DuplicateGroup {
	index := make(map[string]int)
	var groups []query.DuplicateGroup

	for _, r := range records {
		sig := Normalize(r.SQL)
		i, ok := index[sig]
		if !ok {
			i = len(groups)
			index[sig] = i
			groups = append(groups, query.DuplicateGroup{Signature: sig, SampleSQL: r.SQL})
		}
		g := &groups[i]
		g.Count++
		g.TotalDuration += r.Duration
		if r.Stack != nil && len(g.SampleStacks) < stackLimit {
			g.SampleStacks = append(g.SampleStacks, r.Stack)
		}
	}

	var dups []query.DuplicateGroup
	for _, g := range groups {
		if g.Count >= 2 {
			dups = append(dups, g)
		}
	}
	sort.SliceStable(dups, func(i, j int) bool { return dups[i].Count > dups[j].Count })
	return dups
}

// meanStdDev returns the mean and population standard deviation of the
// durations. With fewer than two samples the deviation is zero.
func meanStdDev(durations []float64) (mean, stddev float64) {
	n := len(durations)
	if n == 0 {
		return 0, 0
	}

	var sum float64
	for _, d := range durations {
		sum += d
	}
	mean = sum / float64(n)
	if n < 2 {
		return mean, 0
	}

	var sq float64
	for _, d := range durations {
		sq += (d - mean) * (d - mean)
	}
	return mean, math.Sqrt(sq / float64(n))
}

// flagOutliers marks the records crossing either configured threshold. A
// record crossing both carries both flags but appears once, in capture
// order. The statistical check requires a nonzero deviation so a request
// with uniform durations never flags every query sitting at the mean.
func flagOutliers(records []query.Record, durations []float64, mean, stddev float64, cfg *config.Config) []query.Outlier {
	statEnabled := cfg.StandardDeviationLimit > 0 && stddev > 0
	absEnabled := cfg.AbsoluteLimit > 0
	if !statEnabled && !absEnabled {
		return nil
	}

	statLimit := mean + cfg.StandardDeviationLimit*stddev

	var out []query.Outlier
	for i, r := range records {
		o := query.Outlier{Record: r}
		if statEnabled && durations[i] >= statLimit {
			o.Statistical = true
		}
		if absEnabled && durations[i] > cfg.AbsoluteLimit {
			o.Absolute = true
		}
		if o.Statistical || o.Absolute {
			out = append(out, o)
		}
	}
	return out
}
