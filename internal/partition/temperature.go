package partition

import (
	"sync"
	"time"

	"github.com/coredb-io/polystore/internal/catalog"
)

// Temperature wraps an inner partition function: value routing is
// delegated to inner. The attached TemperatureMonitor reports which
// partitions qualify as hot; neither Target nor the monitor changes any
// partition's group, and the set of partitions never changes.
type Temperature struct {
	inner   Function
	monitor *TemperatureMonitor
}

func (t Temperature) SupportsColumnOfType(pt catalog.PolyType) bool {
	return t.inner.SupportsColumnOfType(pt)
}

func (Temperature) RequiresUnboundPartitionGroup() bool { return true }

func (t Temperature) NumberOfPartitionsPerGroup(total int) int {
	return t.inner.NumberOfPartitionsPerGroup(total)
}

func (t Temperature) Validate(qualifiers [][]string, groupCount int, groupNames []string, col catalog.Column) error {
	return t.inner.Validate(qualifiers, groupCount, groupNames, col)
}

func (t Temperature) Target(prop catalog.PartitionProperty, partitions []*catalog.AllocationPartition, value interface{}) (catalog.ID, error) {
	return t.inner.Target(prop, partitions, value)
}

// Clock abstracts time.Now so TemperatureMonitor tests are deterministic.
type Clock interface{ Now() time.Time }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// TemperatureConfig makes the sliding access window explicit
// configuration rather than a hardcoded constant. DecayHalfLife is
// stored (defaulting to WindowSize) but no computation applies it.
type TemperatureConfig struct {
	WindowSize    time.Duration
	DecayHalfLife time.Duration
}

// access records one read of a partition at time t, used to compute a
// sliding-window access frequency per partition.
type access struct {
	partition catalog.ID
	at        time.Time
}

// TemperatureMonitor tracks per-partition access frequency over a
// sliding window of cfg.WindowSize. It runs no background loop:
// HotPartitions computes the hot set on demand from HotInPct, HotOutPct
// is not consulted, and the partition set itself never changes.
type TemperatureMonitor struct {
	mu      sync.Mutex
	clock   Clock
	cfg     TemperatureConfig
	history []access
}

// NewTemperatureMonitor returns a monitor using the real wall clock.
func NewTemperatureMonitor(cfg TemperatureConfig) *TemperatureMonitor {
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = 10 * time.Minute
	}
	if cfg.DecayHalfLife <= 0 {
		cfg.DecayHalfLife = cfg.WindowSize
	}
	return &TemperatureMonitor{clock: realClock{}, cfg: cfg}
}

// WithClock overrides the monitor's clock, for deterministic tests.
func (m *TemperatureMonitor) WithClock(c Clock) *TemperatureMonitor {
	m.clock = c
	return m
}

// RecordAccess notes that partitionID was read at the current time.
func (m *TemperatureMonitor) RecordAccess(partitionID catalog.ID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = append(m.history, access{partitionID, m.clock.Now()})
}

// frequencies returns each partition's access count within the current
// sliding window, discarding entries that have aged out.
func (m *TemperatureMonitor) frequencies() map[catalog.ID]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.clock.Now()
	cutoff := now.Add(-m.cfg.WindowSize)
	kept := m.history[:0:0]
	freq := map[catalog.ID]int{}
	for _, a := range m.history {
		if a.at.Before(cutoff) {
			continue
		}
		kept = append(kept, a)
		freq[a.partition]++
	}
	m.history = kept
	return freq
}

// HotPartitions returns the subset of partitionIDs whose share of all
// accesses in the current window is at least prop.HotInPct percent. It
// does not change any AllocationPartition.Group.
func (m *TemperatureMonitor) HotPartitions(prop catalog.PartitionProperty, partitionIDs []catalog.ID) map[catalog.ID]bool {
	freq := m.frequencies()
	total := 0
	for _, n := range freq {
		total += n
	}
	hot := map[catalog.ID]bool{}
	for _, pid := range partitionIDs {
		share := 0
		if total > 0 {
			share = freq[pid] * 100 / total
		}
		if share >= prop.HotInPct {
			hot[pid] = true
		}
	}
	return hot
}
