package inspect

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/fllarpy/query-inspect/domain/query"
)

const maxStackDepth = 64

// CaptureStack records the calling goroutine's stack as query frames,
// outermost call first. skip omits that many additional frames beyond
// CaptureStack itself, so the capture machinery does not show up in reports.
func CaptureStack(skip int) []query.Frame {
	pcs := make([]uintptr, maxStackDepth)
	n := runtime.Callers(skip+2, pcs)
	if n == 0 {
		return nil
	}

	iter := runtime.CallersFrames(pcs[:n])
	var frames []query.Frame
	for {
		f, more := iter.Next()
		if f.File != "" {
			frames = append(frames, query.Frame{File: f.File, Line: f.Line, Function: f.Function})
		}
		if !more {
			break
		}
	}

	// runtime yields innermost first; reports read outermost to innermost.
	for i, j := 0, len(frames)-1; i < j; i, j = i+1, j-1 {
		frames[i], frames[j] = frames[j], frames[i]
	}
	return frames
}

// FilterStack keeps the frames whose file path starts with one of roots and
// with none of excludes, preserving order. With no roots configured the
// filter is a no-op and the full, unfiltered stack passes through; excludes
// are only consulted underneath a matching root.
func FilterStack(frames []query.Frame, roots, excludes []string) []query.Frame {
	if len(roots) == 0 {
		return frames
	}
	kept := make([]query.Frame, 0, len(frames))
	for _, f := range frames {
		if includeFrame(f.File, roots, excludes) {
			kept = append(kept, f)
		}
	}
	return kept
}

func includeFrame(path string, roots, excludes []string) bool {
	for _, root := range roots {
		if strings.HasPrefix(path, root) {
			for _, x := range excludes {
				if strings.HasPrefix(path, x) {
					return false
				}
			}
			return true
		}
	}
	return false
}

// FormatStack renders frames one per line for log output.
func FormatStack(frames []query.Frame) string {
	var b strings.Builder
	for _, f := range frames {
		fmt.Fprintf(&b, "  %s:%d (%s)\n", f.File, f.Line, f.Function)
	}
	return b.String()
}
