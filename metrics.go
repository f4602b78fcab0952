package sharkfs

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational
// metrics. Implement this interface to integrate with monitoring
// systems like Prometheus.
type MetricsCollector interface {
	// RecordOpen is called after each Open, err nil on success.
	RecordOpen(duration time.Duration, err error)

	// RecordRead is called after each Read with the byte count
	// actually transferred.
	RecordRead(n int, duration time.Duration, err error)

	// RecordWrite is called after each Write with the byte count
	// actually transferred.
	RecordWrite(n int, duration time.Duration, err error)

	// RecordRemove is called after each Remove.
	RecordRemove(duration time.Duration, err error)

	// RecordRename is called after each Rename.
	RecordRename(duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordOpen(time.Duration, error)       {}
func (NoopMetricsCollector) RecordRead(int, time.Duration, error)  {}
func (NoopMetricsCollector) RecordWrite(int, time.Duration, error) {}
func (NoopMetricsCollector) RecordRemove(time.Duration, error)     {}
func (NoopMetricsCollector) RecordRename(time.Duration, error)     {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external
// dependencies.
type BasicMetricsCollector struct {
	OpenCount    atomic.Int64
	OpenErrors   atomic.Int64
	ReadCount    atomic.Int64
	ReadBytes    atomic.Int64
	ReadErrors   atomic.Int64
	WriteCount   atomic.Int64
	WriteBytes   atomic.Int64
	WriteErrors  atomic.Int64
	RemoveCount  atomic.Int64
	RemoveErrors atomic.Int64
	RenameCount  atomic.Int64
	RenameErrors atomic.Int64
}

// RecordOpen implements MetricsCollector.
func (b *BasicMetricsCollector) RecordOpen(_ time.Duration, err error) {
	b.OpenCount.Add(1)
	if err != nil {
		b.OpenErrors.Add(1)
	}
}

// RecordRead implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRead(n int, _ time.Duration, err error) {
	b.ReadCount.Add(1)
	b.ReadBytes.Add(int64(n))
	if err != nil {
		b.ReadErrors.Add(1)
	}
}

// RecordWrite implements MetricsCollector.
func (b *BasicMetricsCollector) RecordWrite(n int, _ time.Duration, err error) {
	b.WriteCount.Add(1)
	b.WriteBytes.Add(int64(n))
	if err != nil {
		b.WriteErrors.Add(1)
	}
}

// RecordRemove implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRemove(_ time.Duration, err error) {
	b.RemoveCount.Add(1)
	if err != nil {
		b.RemoveErrors.Add(1)
	}
}

// RecordRename implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRename(_ time.Duration, err error) {
	b.RenameCount.Add(1)
	if err != nil {
		b.RenameErrors.Add(1)
	}
}

// Stats is a snapshot of BasicMetricsCollector state.
type Stats struct {
	OpenCount    int64
	OpenErrors   int64
	ReadCount    int64
	ReadBytes    int64
	ReadErrors   int64
	WriteCount   int64
	WriteBytes   int64
	WriteErrors  int64
	RemoveCount  int64
	RemoveErrors int64
	RenameCount  int64
	RenameErrors int64
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() Stats {
	return Stats{
		OpenCount:    b.OpenCount.Load(),
		OpenErrors:   b.OpenErrors.Load(),
		ReadCount:    b.ReadCount.Load(),
		ReadBytes:    b.ReadBytes.Load(),
		ReadErrors:   b.ReadErrors.Load(),
		WriteCount:   b.WriteCount.Load(),
		WriteBytes:   b.WriteBytes.Load(),
		WriteErrors:  b.WriteErrors.Load(),
		RemoveCount:  b.RemoveCount.Load(),
		RemoveErrors: b.RemoveErrors.Load(),
		RenameCount:  b.RenameCount.Load(),
		RenameErrors: b.RenameErrors.Load(),
	}
}
