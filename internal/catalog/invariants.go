package catalog

import "github.com/coredb-io/polystore/internal/perr"

// CheckInvariants verifies the structural invariants of a candidate
// Snapshot: that every column and partition stays reachable on at least
// one placement, that primary keys stay fully covered, and that SOURCE
// entities keep their single-placement shape. It is called by
// Mutator.Publish before any mutation becomes visible, so a violation
// aborts the enclosing DDL transaction without ever exposing the broken
// intermediate state to readers.
func CheckInvariants(s *Snapshot) error {
	for _, e := range s.entities {
		if e.Kind != Table && e.Kind != MaterializedView {
			continue
		}
		placements := s.PlacementsOf(e.ID)

		// A placement with an empty partition set does not exist.
		for _, p := range placements {
			if len(s.AllocsOfPlacement(p.ID)) == 0 {
				return perr.New(perr.InvariantViolation,
					"placement %d of entity %d carries no partitions", p.ID, e.ID)
			}
		}

		// Every logical column has at least one allocation column somewhere.
		for _, colID := range e.Columns {
			found := false
			for _, p := range placements {
				if _, ok := s.AllocColumn(p.ID, colID); ok {
					found = true
					break
				}
			}
			if !found {
				return perr.New(perr.InvariantViolation,
					"column %d of entity %d has no allocation column on any placement", colID, e.ID)
			}
		}

		// Every partition id has at least one allocation entity somewhere.
		for _, partID := range e.Partition.PartitionIDs {
			found := false
			for _, p := range placements {
				if _, ok := s.AllocByPartition(p.ID, partID); ok {
					found = true
					break
				}
			}
			if !found {
				return perr.New(perr.InvariantViolation,
					"partition %d of entity %d has no allocation entity on any placement", partID, e.ID)
			}
		}

		// Every placement carries every PK column, and any placement
		// holding PK columns is AUTOMATIC or MANUAL.
		if e.PrimaryKey != nil {
			for _, p := range placements {
				for _, pkCol := range e.PrimaryKey.OrderedColumnIDs {
					ac, ok := s.AllocColumn(p.ID, pkCol)
					if !ok {
						return perr.New(perr.InvariantViolation,
							"placement %d of entity %d is missing PK column %d", p.ID, e.ID, pkCol)
					}
					_ = ac // placement type check is advisory at the Placement level, not per-column
				}
				if p.Type != PlacementAutomatic && p.Type != PlacementManual {
					return perr.New(perr.InvariantViolation,
						"placement %d of entity %d holding a PK column must be AUTOMATIC or MANUAL", p.ID, e.ID)
				}
			}
		}

		// SOURCE entities have exactly one placement.
		if e.IsSource && len(placements) != 1 {
			return perr.New(perr.InvariantViolation,
				"SOURCE entity %d must have exactly one placement, has %d", e.ID, len(placements))
		}

		if err := checkPartitionInvariants(e); err != nil {
			return err
		}
	}
	return nil
}

// checkPartitionInvariants verifies the structural shape of one entity's
// partition property that the catalog is responsible for. Disjointness,
// totality, and determinism of the partition cover itself are properties
// of the partition function (internal/partition) and are exercised there.
func checkPartitionInvariants(e *Entity) error {
	prop := e.Partition
	if !prop.IsPartitioned {
		return nil
	}

	switch prop.Type {
	case PartitionTemperature:
		if prop.HotInPct < 0 || prop.HotInPct > 100 || prop.HotOutPct < 0 || prop.HotOutPct > 100 {
			return perr.New(perr.InvariantViolation,
				"entity %d: TEMPERATURE hotInPct/hotOutPct must be in [0,100]", e.ID)
		}
		if prop.HotGroupID == prop.ColdGroupID {
			return perr.New(perr.InvariantViolation,
				"entity %d: TEMPERATURE hot and cold group must differ", e.ID)
		}
		if len(prop.PartitionGroupIDs) != 2 {
			return perr.New(perr.InvariantViolation,
				"entity %d: TEMPERATURE must have exactly hot+cold groups", e.ID)
		}
	case PartitionHash, PartitionList, PartitionRange:
		if len(prop.PartitionIDs) == 0 {
			return perr.New(perr.InvariantViolation,
				"entity %d: partitioned entity has no partitions", e.ID)
		}
	}
	return nil
}
