package dcstore

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
type MetricsCollector interface {
	// RecordScan is called after each scan. nodes counts every node of the
	// resulting tree.
	RecordScan(nodes int, duration time.Duration, err error)

	// RecordLoad is called after each materialize. arrays counts the arrays
	// read, bytes their payload size.
	RecordLoad(arrays int, bytes int64, duration time.Duration, err error)

	// RecordSave is called after each save or commit.
	RecordSave(datasets int, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordScan(int, time.Duration, error)        {}
func (NoopMetricsCollector) RecordLoad(int, int64, time.Duration, error) {}
func (NoopMetricsCollector) RecordSave(int, time.Duration, error)        {}

// BasicMetricsCollector provides simple in-memory metrics collection.
type BasicMetricsCollector struct {
	ScanCount      atomic.Int64
	ScanErrors     atomic.Int64
	ScanNodes      atomic.Int64
	LoadCount      atomic.Int64
	LoadErrors     atomic.Int64
	LoadArrays     atomic.Int64
	LoadBytes      atomic.Int64
	LoadTotalNanos atomic.Int64
	SaveCount      atomic.Int64
	SaveErrors     atomic.Int64
	SaveDatasets   atomic.Int64
	SaveTotalNanos atomic.Int64
}

// RecordScan implements MetricsCollector.
func (b *BasicMetricsCollector) RecordScan(nodes int, duration time.Duration, err error) {
	b.ScanCount.Add(1)
	if err != nil {
		b.ScanErrors.Add(1)
		return
	}
	b.ScanNodes.Add(int64(nodes))
}

// RecordLoad implements MetricsCollector.
func (b *BasicMetricsCollector) RecordLoad(arrays int, bytes int64, duration time.Duration, err error) {
	b.LoadCount.Add(1)
	b.LoadTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.LoadErrors.Add(1)
		return
	}
	b.LoadArrays.Add(int64(arrays))
	b.LoadBytes.Add(bytes)
}

// RecordSave implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSave(datasets int, duration time.Duration, err error) {
	b.SaveCount.Add(1)
	b.SaveTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.SaveErrors.Add(1)
		return
	}
	b.SaveDatasets.Add(int64(datasets))
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		ScanCount:    b.ScanCount.Load(),
		ScanErrors:   b.ScanErrors.Load(),
		ScanNodes:    b.ScanNodes.Load(),
		LoadCount:    b.LoadCount.Load(),
		LoadErrors:   b.LoadErrors.Load(),
		LoadArrays:   b.LoadArrays.Load(),
		LoadBytes:    b.LoadBytes.Load(),
		LoadAvgNanos: avg(b.LoadTotalNanos.Load(), b.LoadCount.Load()),
		SaveCount:    b.SaveCount.Load(),
		SaveErrors:   b.SaveErrors.Load(),
		SaveDatasets: b.SaveDatasets.Load(),
		SaveAvgNanos: avg(b.SaveTotalNanos.Load(), b.SaveCount.Load()),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	ScanCount    int64
	ScanErrors   int64
	ScanNodes    int64
	LoadCount    int64
	LoadErrors   int64
	LoadArrays   int64
	LoadBytes    int64
	LoadAvgNanos int64
	SaveCount    int64
	SaveErrors   int64
	SaveDatasets int64
	SaveAvgNanos int64
}
