package access

import "sync/atomic"

// Stats are shared by every store of a registry and read by the metrics collector.
type Stats struct {
	fetchOK        atomic.Int64
	fetchFailed    atomic.Int64
	fetchDiscarded atomic.Int64
	cacheHits      atomic.Int64
	rehydrated     atomic.Int64
	allowed        atomic.Int64
	denied         atomic.Int64
	loading        atomic.Int64
}

type StatsSnapshot struct {
	FetchOK        int64
	FetchFailed    int64
	FetchDiscarded int64
	CacheHits      int64
	Rehydrated     int64
	Allowed        int64
	Denied         int64
	Loading        int64
}

func (s *Stats) Snapshot() StatsSnapshot {
	if s == nil {
		return StatsSnapshot{}
	}
	return StatsSnapshot{
		FetchOK:        s.fetchOK.Load(),
		FetchFailed:    s.fetchFailed.Load(),
		FetchDiscarded: s.fetchDiscarded.Load(),
		CacheHits:      s.cacheHits.Load(),
		Rehydrated:     s.rehydrated.Load(),
		Allowed:        s.allowed.Load(),
		Denied:         s.denied.Load(),
		Loading:        s.loading.Load(),
	}
}

// RecordDecision counts a guard outcome.
func (s *Stats) RecordDecision(d Decision) {
	if s == nil {
		return
	}
	switch d {
	case DecisionAllowed:
		s.allowed.Add(1)
	case DecisionDenied:
		s.denied.Add(1)
	case DecisionLoading:
		s.loading.Add(1)
	}
}
