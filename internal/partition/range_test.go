package partition

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/coredb-io/polystore/internal/catalog"
)

func TestRangeValidateCanonicalizesSwappedBounds(t *testing.T) {
	quals := [][]string{
		{"5", "4"},
		{"10", "6"},
	}
	err := Range{}.Validate(quals, 2, nil, catalog.Column{PolyType: catalog.TypeInteger})
	require.NoError(t, err)

	require.Equal(t, []string{"4", "5"}, quals[0])
	require.Equal(t, []string{"6", "10"}, quals[1])
}

func TestRangeValidateRejectsOverlap(t *testing.T) {
	quals := [][]string{
		{"0", "10"},
		{"5", "15"},
	}
	err := Range{}.Validate(quals, 2, nil, catalog.Column{PolyType: catalog.TypeInteger})
	require.Error(t, err)
}

func TestRangeTargetRoutesCanonicalizedBounds(t *testing.T) {
	quals := [][]string{
		{"5", "4"},
		{"10", "6"},
	}
	require.NoError(t, Range{}.Validate(quals, 2, nil, catalog.Column{PolyType: catalog.TypeInteger}))

	partitions := []*catalog.AllocationPartition{
		{ID: 1, Qualifiers: quals[0]},
		{ID: 2, Qualifiers: quals[1]},
	}

	id, err := Range{}.Target(catalog.PartitionProperty{}, partitions, 6)
	require.NoError(t, err)
	require.Equal(t, catalog.ID(2), id)

	id, err = Range{}.Target(catalog.PartitionProperty{}, partitions, 4)
	require.NoError(t, err)
	require.Equal(t, catalog.ID(1), id)

	_, err = Range{}.Target(catalog.PartitionProperty{}, partitions, 100)
	require.Error(t, err)
}
