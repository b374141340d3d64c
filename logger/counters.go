package logger

import (
	"sync"
	"sync/atomic"
)

type componentStat struct {
	warns  int64
	errors int64
}

var components sync.Map // map[string]*componentStat

func componentStatFor(component string) *componentStat {
	v, _ := components.LoadOrStore(component, &componentStat{})
	return v.(*componentStat)
}

func recordWarn(component string) {
	atomic.AddInt64(&componentStatFor(component).warns, 1)
}

func recordError(component string) {
	atomic.AddInt64(&componentStatFor(component).errors, 1)
}

// ComponentCounts holds the accumulated warning and error totals
// for a single component.
type ComponentCounts struct {
	Warns  int64
	Errors int64
}

// Counts returns a snapshot of the warning and error counters per
// component, for the end-of-run summary.
func Counts() map[string]ComponentCounts {
	out := make(map[string]ComponentCounts)
	components.Range(func(k, v any) bool {
		cs := v.(*componentStat)
		out[k.(string)] = ComponentCounts{
			Warns:  atomic.LoadInt64(&cs.warns),
			Errors: atomic.LoadInt64(&cs.errors),
		}
		return true
	})
	return out
}

// ResetCounts clears all per-component counters.
func ResetCounts() {
	components.Range(func(k, _ any) bool {
		components.Delete(k)
		return true
	})
}
