package gridtree

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like
// Prometheus.
type MetricsCollector interface {
	// RecordInsert is called after each insert-or-replace.
	RecordInsert(duration time.Duration, replaced bool)

	// RecordRemove is called after each remove.
	RecordRemove(duration time.Duration, found bool)

	// RecordLookup is called after each point lookup.
	RecordLookup(duration time.Duration, found bool)

	// RecordScan is called after a range cursor is created. rows is -1 when
	// the row count is unknown at creation time.
	RecordScan(duration time.Duration, rows int)

	// RecordSnapshot is called after each snapshot capture.
	RecordSnapshot(duration time.Duration)

	// RecordRebuild is called after each rebuild attempt.
	RecordRebuild(duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordInsert(time.Duration, bool) {}
func (NoopMetricsCollector) RecordRemove(time.Duration, bool) {}
func (NoopMetricsCollector) RecordLookup(time.Duration, bool) {}
func (NoopMetricsCollector) RecordScan(time.Duration, int)    {}
func (NoopMetricsCollector) RecordSnapshot(time.Duration)     {}
func (NoopMetricsCollector) RecordRebuild(time.Duration, error) {
}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	InsertCount   atomic.Int64
	ReplaceCount  atomic.Int64
	RemoveCount   atomic.Int64
	LookupCount   atomic.Int64
	LookupMisses  atomic.Int64
	ScanCount     atomic.Int64
	SnapshotCount atomic.Int64
	RebuildCount  atomic.Int64
	RebuildErrors atomic.Int64
}

func (m *BasicMetricsCollector) RecordInsert(_ time.Duration, replaced bool) {
	m.InsertCount.Add(1)
	if replaced {
		m.ReplaceCount.Add(1)
	}
}

func (m *BasicMetricsCollector) RecordRemove(_ time.Duration, found bool) {
	m.RemoveCount.Add(1)
}

func (m *BasicMetricsCollector) RecordLookup(_ time.Duration, found bool) {
	m.LookupCount.Add(1)
	if !found {
		m.LookupMisses.Add(1)
	}
}

func (m *BasicMetricsCollector) RecordScan(_ time.Duration, _ int) {
	m.ScanCount.Add(1)
}

func (m *BasicMetricsCollector) RecordSnapshot(_ time.Duration) {
	m.SnapshotCount.Add(1)
}

func (m *BasicMetricsCollector) RecordRebuild(_ time.Duration, err error) {
	m.RebuildCount.Add(1)
	if err != nil {
		m.RebuildErrors.Add(1)
	}
}
