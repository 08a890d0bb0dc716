package partition

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/coredb-io/polystore/internal/catalog"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func TestTemperatureMonitorReclassifiesOnAccessShare(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	mon := NewTemperatureMonitor(TemperatureConfig{WindowSize: time.Minute}).WithClock(clock)

	const hot, cold = catalog.ID(1), catalog.ID(2)
	prop := catalog.PartitionProperty{HotInPct: 50}

	// No accesses yet: nothing qualifies as hot.
	hotSet := mon.HotPartitions(prop, []catalog.ID{hot, cold})
	require.Empty(t, hotSet)

	for i := 0; i < 9; i++ {
		mon.RecordAccess(hot)
	}
	mon.RecordAccess(cold)

	hotSet = mon.HotPartitions(prop, []catalog.ID{hot, cold})
	require.True(t, hotSet[hot])
	require.False(t, hotSet[cold])
}

func TestTemperatureMonitorWindowAgesOutOldAccesses(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	mon := NewTemperatureMonitor(TemperatureConfig{WindowSize: time.Minute}).WithClock(clock)

	const p = catalog.ID(1)
	mon.RecordAccess(p)

	clock.now = clock.now.Add(2 * time.Minute)

	freq := mon.frequencies()
	require.Equal(t, 0, freq[p])
}

func TestTemperatureDelegatesRoutingToInner(t *testing.T) {
	temp := Temperature{inner: Hash{}, monitor: NewTemperatureMonitor(TemperatureConfig{})}
	require.True(t, temp.SupportsColumnOfType(catalog.TypeBigInt))
	require.True(t, temp.RequiresUnboundPartitionGroup())
}
