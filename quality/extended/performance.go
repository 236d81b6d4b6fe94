package extended

import (
	"log/slog"

	"github.com/c360studio/wfvalidate/source"
)

var performanceSignals = [][]string{
	{"lru_cache", "functools.cache", "asyncio", "multiprocessing"},
	{"threading", "asyncio", "concurrent.futures", "multiprocessing"},
	{"cache", "memoize", "lru_cache"},
	{"with open", "context manager", "__enter__", "__exit__"},
}

// Performance looks for optimisation, concurrency, caching and resource
// management idioms in scripts.
type Performance struct {
	meta
}

// NewPerformance creates the performance plugin.
func NewPerformance(excluder *source.Excluder, logger *slog.Logger) *Performance {
	return &Performance{meta: newMeta("performance", "Execution performance and efficiency", excluder, logger)}
}

func (p *Performance) Assess(dir string) (float64, error) {
	fs, err := scan(dir, p.excluder)
	if err != nil {
		return 0, err
	}

	passed := 0
	for _, keywords := range performanceSignals {
		if fs.scriptsContain(keywords...) {
			passed++
		}
	}
	p.logger.Debug("Performance assessed", "passed", passed, "total", len(performanceSignals))
	return ratioScore(float64(passed), float64(len(performanceSignals))), nil
}
