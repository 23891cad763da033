package rollout

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Summary aggregates a batch of episodes.
type Summary struct {
	Episodes   int
	Terminated int
	MeanReturn float64
	StdReturn  float64
	MeanLength float64
	Metrics    map[string]float64
}

func Summarize(eps []*Episode) Summary {
	s := Summary{Episodes: len(eps), Metrics: make(map[string]float64)}
	if len(eps) == 0 {
		return s
	}

	returns := make([]float64, len(eps))
	lengths := make([]float64, len(eps))
	perMetric := make(map[string][]float64)
	for i, ep := range eps {
		returns[i] = ep.Return
		lengths[i] = float64(ep.Length)
		if ep.Terminated {
			s.Terminated++
		}
		for name, v := range ep.Metrics {
			perMetric[name] = append(perMetric[name], v)
		}
	}

	s.MeanReturn, s.StdReturn = stat.MeanStdDev(returns, nil)
	if len(eps) == 1 {
		s.StdReturn = 0
	}
	s.MeanLength = stat.Mean(lengths, nil)
	for name, vals := range perMetric {
		s.Metrics[name] = stat.Mean(vals, nil)
	}
	return s
}

// MetricNames returns the summary's metric names in sorted order.
func (s Summary) MetricNames() []string {
	names := make([]string, 0, len(s.Metrics))
	for name := range s.Metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
