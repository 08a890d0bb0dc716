package partition

import (
	"hash/fnv"

	"github.com/coredb-io/polystore/internal/catalog"
	"github.com/coredb-io/polystore/internal/perr"
)

// Hash implements HASH partitioning: target = partitionIds[hash(value)
// mod n], deterministic.
type Hash struct{}

func (Hash) SupportsColumnOfType(catalog.PolyType) bool { return true } // any type hashes

func (Hash) RequiresUnboundPartitionGroup() bool { return false }

func (Hash) NumberOfPartitionsPerGroup(total int) int { return total }

func (Hash) Validate(_ [][]string, groupCount int, _ []string, _ catalog.Column) error {
	if groupCount < 1 {
		return perr.New(perr.PartitionError, "HASH partitioning requires at least one partition")
	}
	return nil
}

func (Hash) Target(prop catalog.PartitionProperty, partitions []*catalog.AllocationPartition, value interface{}) (catalog.ID, error) {
	n := len(partitions)
	if n == 0 {
		return 0, perr.New(perr.PartitionError, "HASH: entity has no partitions")
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(canonicalString(value)))
	idx := int(h.Sum64() % uint64(n))
	return prop.PartitionIDs[idx], nil
}
