package partition

import (
	"github.com/coredb-io/polystore/internal/catalog"
	"github.com/coredb-io/polystore/internal/perr"
)

// List implements LIST partitioning: target = the partition whose
// qualifiers contain value, else the unbound partition.
// Target scans the AllocationPartition records it is given and their
// qualifiers linearly, comparing against the value's canonical string.
type List struct{}

func (List) SupportsColumnOfType(t catalog.PolyType) bool {
	return t != catalog.TypeArray && t != catalog.TypeJSON
}

func (List) RequiresUnboundPartitionGroup() bool { return true }

func (List) NumberOfPartitionsPerGroup(total int) int { return total }

// Validate checks pairwise-disjoint qualifiers across partitions.
func (List) Validate(qualifiers [][]string, groupCount int, groupNames []string, _ catalog.Column) error {
	if groupCount < 1 {
		return perr.New(perr.PartitionError, "LIST partitioning requires at least one partition")
	}
	seen := map[string]int{}
	for i, quals := range qualifiers {
		for _, q := range quals {
			if owner, ok := seen[q]; ok {
				return perr.New(perr.PartitionError,
					"LIST qualifier %q duplicated between partition %d and %d (%v)", q, owner, i, groupNames)
			}
			seen[q] = i
		}
	}
	return nil
}

func (List) Target(_ catalog.PartitionProperty, partitions []*catalog.AllocationPartition, value interface{}) (catalog.ID, error) {
	key := canonicalString(value)
	var unbound *catalog.AllocationPartition
	for _, p := range partitions {
		if p.IsUnbound {
			unbound = p
			continue
		}
		for _, q := range p.Qualifiers {
			if q == key {
				return p.ID, nil
			}
		}
	}
	if unbound != nil {
		return unbound.ID, nil
	}
	return 0, perr.New(perr.PartitionError, "LIST: value %q matches no qualifier and no unbound partition exists", key)
}
