package partition

import (
	"strconv"

	"github.com/coredb-io/polystore/internal/catalog"
	"github.com/coredb-io/polystore/internal/perr"
)

// Range implements RANGE partitioning: target is the unique partition
// whose [low, high) interval contains value, under a lower-inclusive,
// upper-exclusive convention. Qualifiers on an AllocationPartition are a
// canonicalized two-element [low, high] pair; Validate swaps a
// partition's bounds at definition time so Target never has to.
type Range struct{}

func (Range) SupportsColumnOfType(t catalog.PolyType) bool {
	switch t {
	case catalog.TypeInteger, catalog.TypeBigInt, catalog.TypeDecimal, catalog.TypeDate, catalog.TypeTimestamp:
		return true
	default:
		return false
	}
}

func (Range) RequiresUnboundPartitionGroup() bool { return true }

func (Range) NumberOfPartitionsPerGroup(total int) int { return total }

// Validate canonicalizes low/high (min/max swap, written back into
// qualifiers so Apply persists the canonical order, not the raw input
// order) and checks pairwise disjointness across the declared ranges.
func (Range) Validate(qualifiers [][]string, groupCount int, groupNames []string, _ catalog.Column) error {
	if groupCount < 1 {
		return perr.New(perr.PartitionError, "RANGE partitioning requires at least one partition")
	}
	type bound struct {
		low, high float64
		idx       int
	}
	var bounds []bound
	for i, q := range qualifiers {
		if len(q) != 2 {
			return perr.New(perr.PartitionError, "RANGE partition %d (%v) requires exactly (low, high)", i, groupNames)
		}
		lo, err := strconv.ParseFloat(q[0], 64)
		if err != nil {
			return perr.New(perr.PartitionError, "RANGE partition %d: invalid low bound %q", i, q[0])
		}
		hi, err := strconv.ParseFloat(q[1], 64)
		if err != nil {
			return perr.New(perr.PartitionError, "RANGE partition %d: invalid high bound %q", i, q[1])
		}
		if lo > hi {
			lo, hi = hi, lo
			q[0], q[1] = q[1], q[0]
		}
		bounds = append(bounds, bound{lo, hi, i})
	}
	for i := 0; i < len(bounds); i++ {
		for j := i + 1; j < len(bounds); j++ {
			a, b := bounds[i], bounds[j]
			if a.low < b.high && b.low < a.high {
				return perr.New(perr.PartitionError,
					"RANGE partitions %d and %d overlap", a.idx, b.idx)
			}
		}
	}
	return nil
}

func (Range) Target(_ catalog.PartitionProperty, partitions []*catalog.AllocationPartition, value interface{}) (catalog.ID, error) {
	v, err := toFloat(value)
	if err != nil {
		return 0, perr.New(perr.PartitionError, "RANGE: %v", err)
	}
	var unbound *catalog.AllocationPartition
	for _, p := range partitions {
		if p.IsUnbound {
			unbound = p
			continue
		}
		if len(p.Qualifiers) != 2 {
			continue
		}
		lo, errLo := strconv.ParseFloat(p.Qualifiers[0], 64)
		hi, errHi := strconv.ParseFloat(p.Qualifiers[1], 64)
		if errLo != nil || errHi != nil {
			continue
		}
		if v >= lo && v < hi {
			return p.ID, nil
		}
	}
	if unbound != nil {
		return unbound.ID, nil
	}
	return 0, perr.New(perr.PartitionError, "RANGE: value %v is out of range and no unbound partition exists", value)
}

func toFloat(v interface{}) (float64, error) {
	switch t := v.(type) {
	case int:
		return float64(t), nil
	case int32:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case float32:
		return float64(t), nil
	case float64:
		return t, nil
	case string:
		return strconv.ParseFloat(t, 64)
	default:
		return 0, perr.New(perr.PartitionError, "value %v is not numeric", v)
	}
}
