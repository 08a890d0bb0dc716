package persist

import (
	"bytes"
	"io"

	"github.com/coredb-io/polystore/internal/catalog"
	"github.com/coredb-io/polystore/internal/perr"
)

// Marshal encodes snap's full logical and allocation model into the
// versioned binary format Load restores from. Section order is
// namespaces, entities (keys/indexes and column ids inline per entity,
// followed by the column records), adapters, placements, partitions,
// allocations.
func Marshal(snap *catalog.Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteTo(&buf, snap); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteTo streams the same encoding Marshal produces to w.
func WriteTo(dst io.Writer, snap *catalog.Snapshot) error {
	w := newWriter(dst)

	for _, b := range magic {
		w.byte(b)
	}
	w.byte(FormatMajor)
	w.byte(FormatMinor)

	writeNamespaces(w, snap)
	writeEntities(w, snap)
	writeAdapters(w, snap)
	writePlacements(w, snap)
	writePartitions(w, snap)
	writeAllocations(w, snap)

	if err := w.flush(); err != nil {
		return wrapIOErr(err)
	}
	return nil
}

func writeNamespaces(w *writer, snap *catalog.Snapshot) {
	all := snap.AllNamespaces()
	w.uvarint(uint64(len(all)))
	for _, ns := range all {
		w.id(int64(ns.ID))
		w.str(ns.Name)
		w.byte(byte(ns.Kind))
		w.str(ns.Owner)
	}
}

func writeEntities(w *writer, snap *catalog.Snapshot) {
	var entities []*catalog.Entity
	for _, ns := range snap.AllNamespaces() {
		entities = append(entities, snap.EntitiesOf(ns.ID)...)
	}
	w.uvarint(uint64(len(entities)))

	seenColumns := map[catalog.ID]bool{}
	var columns []*catalog.Column

	for _, e := range entities {
		w.id(int64(e.ID))
		w.id(int64(e.Namespace))
		w.str(e.Name)
		w.byte(byte(e.Kind))

		switch e.Kind {
		case catalog.GraphEntity:
			w.id(int64(e.NodesTable))
			w.id(int64(e.EdgesTable))
			w.id(int64(e.NodePropsTable))
			w.id(int64(e.EdgePropsTable))
		case catalog.MaterializedView:
			w.ids(idsOf(e.DefinedOverScans))
			w.byte(byte(e.Refresh))
		default: // Table, CollectionEntity
			w.ids(idsOf(e.Columns))
			writePrimaryKey(w, e.PrimaryKey)
			writeForeignKeys(w, e.ForeignKeys)
			writeIndexes(w, e.Indexes)
			w.bool(e.IsSource)
			w.strs(e.ExportedColumns)
		}

		writePartitionProperty(w, e.Partition)

		for _, colID := range e.Columns {
			if seenColumns[colID] {
				continue
			}
			if col, ok := snap.Column(colID); ok {
				seenColumns[colID] = true
				columns = append(columns, col)
			}
		}
	}

	w.uvarint(uint64(len(columns)))
	for _, c := range columns {
		w.id(int64(c.ID))
		w.id(int64(c.Entity))
		w.str(c.Name)
		w.uvarint(uint64(c.Position))
		w.byte(byte(c.PolyType))
		if c.CollectionType != nil {
			w.bool(true)
			w.byte(byte(*c.CollectionType))
		} else {
			w.bool(false)
		}
		w.uvarint(uint64(c.Precision))
		w.uvarint(uint64(c.Scale))
		w.uvarint(uint64(c.Dimension))
		w.uvarint(uint64(c.Cardinality))
		w.bool(c.Nullable)
		w.str(c.Collation)
		w.optStr(c.DefaultValue)
	}
}

func writePrimaryKey(w *writer, pk *catalog.PrimaryKey) {
	if pk == nil {
		w.bool(false)
		return
	}
	w.bool(true)
	w.ids(idsOf(pk.OrderedColumnIDs))
}

func writeForeignKeys(w *writer, fks []*catalog.ForeignKey) {
	w.uvarint(uint64(len(fks)))
	for _, fk := range fks {
		w.id(int64(fk.ID))
		w.str(fk.Name)
		w.ids(idsOf(fk.SourceColumns))
		w.id(int64(fk.TargetEntity))
		w.ids(idsOf(fk.TargetColumns))
		w.byte(byte(fk.OnUpdate))
		w.byte(byte(fk.OnDelete))
	}
}

func writeIndexes(w *writer, idxs []*catalog.Index) {
	w.uvarint(uint64(len(idxs)))
	for _, idx := range idxs {
		w.id(int64(idx.ID))
		w.str(idx.Name)
		w.ids(idsOf(idx.Columns))
		w.str(string(idx.Method))
		w.bool(idx.Unique)
	}
}

func writePartitionProperty(w *writer, p catalog.PartitionProperty) {
	w.byte(byte(p.Type))
	w.id(int64(p.PartitionColumn))
	w.ids(idsOf(p.PartitionGroupIDs))
	w.ids(idsOf(p.PartitionIDs))
	w.bool(p.IsPartitioned)
	w.byte(byte(p.InnerType))
	w.id(int64(p.HotGroupID))
	w.id(int64(p.ColdGroupID))
	w.uvarint(uint64(p.HotInPct))
	w.uvarint(uint64(p.HotOutPct))
	w.uvarint(uint64(p.FrequencyIntervalSec))
	w.uvarint(uint64(p.CostIndication))
}

func writeAdapters(w *writer, snap *catalog.Snapshot) {
	all := snap.AllAdapters()
	w.uvarint(uint64(len(all)))
	for _, a := range all {
		w.id(int64(a.ID))
		w.str(a.Name)
		w.bool(a.IsPersistent)
		w.byte(byte(a.DeployMode))
		methods := make([]string, len(a.IndexMethods))
		for i, m := range a.IndexMethods {
			methods[i] = string(m)
		}
		w.strs(methods)
		w.bool(a.IsDataReadOnly)
	}
}

func writePlacements(w *writer, snap *catalog.Snapshot) {
	var placements []*catalog.Placement
	for _, ns := range snap.AllNamespaces() {
		for _, e := range snap.EntitiesOf(ns.ID) {
			placements = append(placements, snap.PlacementsOf(e.ID)...)
		}
	}
	w.uvarint(uint64(len(placements)))
	for _, p := range placements {
		w.id(int64(p.ID))
		w.id(int64(p.Entity))
		w.id(int64(p.Adapter))
		w.byte(byte(p.Type))
	}
}

func writePartitions(w *writer, snap *catalog.Snapshot) {
	seen := map[catalog.ID]bool{}
	var parts []*catalog.AllocationPartition
	for _, ns := range snap.AllNamespaces() {
		for _, e := range snap.EntitiesOf(ns.ID) {
			for _, partID := range e.Partition.PartitionIDs {
				if seen[partID] {
					continue
				}
				if p, ok := snap.Partition(partID); ok {
					seen[partID] = true
					parts = append(parts, p)
				}
			}
		}
	}
	w.uvarint(uint64(len(parts)))
	for _, p := range parts {
		w.id(int64(p.ID))
		w.id(int64(p.Group))
		w.strs(p.Qualifiers)
		w.bool(p.IsUnbound)
	}
}

func writeAllocations(w *writer, snap *catalog.Snapshot) {
	var placements []*catalog.Placement
	for _, ns := range snap.AllNamespaces() {
		for _, e := range snap.EntitiesOf(ns.ID) {
			placements = append(placements, snap.PlacementsOf(e.ID)...)
		}
	}

	var allocCols []*catalog.AllocationColumn
	var allocEnts []*catalog.AllocationEntity
	for _, p := range placements {
		for _, colID := range snap.ColumnsOfPlacement(p.ID) {
			if ac, ok := snap.AllocColumn(p.ID, colID); ok {
				allocCols = append(allocCols, ac)
			}
		}
		allocEnts = append(allocEnts, snap.AllocsOfPlacement(p.ID)...)
	}

	w.uvarint(uint64(len(allocCols)))
	for _, ac := range allocCols {
		w.id(int64(ac.Placement))
		w.id(int64(ac.Column))
		w.str(ac.PhysicalName)
		w.uvarint(uint64(ac.PhysicalPosition))
	}

	w.uvarint(uint64(len(allocEnts)))
	for _, ae := range allocEnts {
		w.id(int64(ae.Placement))
		w.id(int64(ae.Partition))
		w.str(ae.AdapterPhysicalRef)
	}
}

func idsOf(ids []catalog.ID) []int64 {
	out := make([]int64, len(ids))
	for i, id := range ids {
		out[i] = int64(id)
	}
	return out
}

func toCatalogIDs(ids []int64) []catalog.ID {
	out := make([]catalog.ID, len(ids))
	for i, id := range ids {
		out[i] = catalog.ID(id)
	}
	return out
}

// Load decodes data and restores every record into mut via its exported
// Put* methods, then advances mut's id sequences past whatever it just
// restored so freshly minted ids never collide with a restored one. It
// does not call Publish; the caller commits once satisfied the restore is
// complete (e.g. after restoring from several incremental snapshots).
func Load(mut *catalog.Mutator, data []byte) error {
	return ReadFrom(mut, bytes.NewReader(data))
}

// ReadFrom is the streaming counterpart to Load.
func ReadFrom(mut *catalog.Mutator, src io.Reader) error {
	r := newReader(src)

	var got [4]byte
	for i := range got {
		got[i] = r.byte()
	}
	if r.err != nil {
		return wrapIOErr(r.err)
	}
	if got != magic {
		return perr.New(perr.Internal, "persist: not a catalog snapshot (bad magic)")
	}

	major := r.byte()
	_ = r.byte() // minor: readers tolerate any minor bump within a major version
	if r.err != nil {
		return wrapIOErr(r.err)
	}
	if major > FormatMajor {
		return perr.New(perr.Internal, "persist: snapshot format major version %d newer than supported %d", major, FormatMajor)
	}

	var maxNS, maxEntity, maxColumn, maxIndex, maxPlacement, maxPartition, maxAdapter catalog.ID

	readNamespaces(r, mut, &maxNS)
	readEntities(r, mut, &maxEntity, &maxIndex, &maxColumn)
	readAdapters(r, mut, &maxAdapter)
	readPlacements(r, mut, &maxPlacement)
	readPartitions(r, mut, &maxPartition)
	readAllocations(r, mut)

	if r.err != nil {
		return wrapIOErr(r.err)
	}

	mut.ReserveIDs(maxNS, maxEntity, maxColumn, maxIndex, maxPlacement, maxPartition, maxAdapter)
	return nil
}

func bump(max *catalog.ID, id catalog.ID) {
	if id > *max {
		*max = id
	}
}

func readNamespaces(r *reader, mut *catalog.Mutator, maxNS *catalog.ID) {
	n := r.uvarint()
	for i := uint64(0); i < n && r.err == nil; i++ {
		id := catalog.ID(r.id())
		ns := &catalog.Namespace{
			ID:    id,
			Name:  r.str(),
			Kind:  catalog.NamespaceKind(r.byte()),
			Owner: r.str(),
		}
		mut.PutNamespace(ns)
		bump(maxNS, id)
	}
}

func readEntities(r *reader, mut *catalog.Mutator, maxEntity, maxIndex, maxColumn *catalog.ID) {
	n := r.uvarint()
	entities := make([]*catalog.Entity, 0, n)
	for i := uint64(0); i < n && r.err == nil; i++ {
		e := &catalog.Entity{
			ID:        catalog.ID(r.id()),
			Namespace: catalog.ID(r.id()),
			Name:      r.str(),
			Kind:      catalog.EntityKind(r.byte()),
		}

		switch e.Kind {
		case catalog.GraphEntity:
			e.NodesTable = catalog.ID(r.id())
			e.EdgesTable = catalog.ID(r.id())
			e.NodePropsTable = catalog.ID(r.id())
			e.EdgePropsTable = catalog.ID(r.id())
		case catalog.MaterializedView:
			e.DefinedOverScans = toCatalogIDs(r.ids())
			e.Refresh = catalog.RefreshPolicy(r.byte())
		default:
			e.Columns = toCatalogIDs(r.ids())
			e.PrimaryKey = readPrimaryKey(r, e.ID)
			e.ForeignKeys = readForeignKeys(r)
			e.Indexes = readIndexes(r, maxIndex)
			e.IsSource = r.bool()
			e.ExportedColumns = r.strs()
		}

		e.Partition = readPartitionProperty(r)

		bump(maxEntity, e.ID)
		entities = append(entities, e)
	}

	colCount := r.uvarint()
	for i := uint64(0); i < colCount && r.err == nil; i++ {
		id := catalog.ID(r.id())
		col := &catalog.Column{
			ID:       id,
			Entity:   catalog.ID(r.id()),
			Name:     r.str(),
			Position: int(r.uvarint()),
			PolyType: catalog.PolyType(r.byte()),
		}
		if r.bool() {
			ct := catalog.PolyType(r.byte())
			col.CollectionType = &ct
		}
		col.Precision = int(r.uvarint())
		col.Scale = int(r.uvarint())
		col.Dimension = int(r.uvarint())
		col.Cardinality = int(r.uvarint())
		col.Nullable = r.bool()
		col.Collation = r.str()
		col.DefaultValue = r.optStr()
		mut.PutColumn(col)
		bump(maxColumn, id)
	}

	// Entities reference columns that must already exist for downstream
	// readers (router, migrator); put entities after their columns.
	for _, e := range entities {
		mut.PutEntity(e)
	}
}

func readPrimaryKey(r *reader, entity catalog.ID) *catalog.PrimaryKey {
	if !r.bool() {
		return nil
	}
	return &catalog.PrimaryKey{Entity: entity, OrderedColumnIDs: toCatalogIDs(r.ids())}
}

func readForeignKeys(r *reader) []*catalog.ForeignKey {
	n := r.uvarint()
	if n == 0 {
		return nil
	}
	out := make([]*catalog.ForeignKey, n)
	for i := range out {
		out[i] = &catalog.ForeignKey{
			ID:            catalog.ID(r.id()),
			Name:          r.str(),
			SourceColumns: toCatalogIDs(r.ids()),
			TargetEntity:  catalog.ID(r.id()),
			TargetColumns: toCatalogIDs(r.ids()),
			OnUpdate:      catalog.ReferentialAction(r.byte()),
			OnDelete:      catalog.ReferentialAction(r.byte()),
		}
	}
	return out
}

func readIndexes(r *reader, maxIndex *catalog.ID) []*catalog.Index {
	n := r.uvarint()
	if n == 0 {
		return nil
	}
	out := make([]*catalog.Index, n)
	for i := range out {
		idx := &catalog.Index{
			ID:      catalog.ID(r.id()),
			Name:    r.str(),
			Columns: toCatalogIDs(r.ids()),
			Method:  catalog.IndexMethod(r.str()),
			Unique:  r.bool(),
		}
		bump(maxIndex, idx.ID)
		out[i] = idx
	}
	return out
}

func readPartitionProperty(r *reader) catalog.PartitionProperty {
	return catalog.PartitionProperty{
		Type:                 catalog.PartitionType(r.byte()),
		PartitionColumn:      catalog.ID(r.id()),
		PartitionGroupIDs:    toCatalogIDs(r.ids()),
		PartitionIDs:         toCatalogIDs(r.ids()),
		IsPartitioned:        r.bool(),
		InnerType:            catalog.PartitionType(r.byte()),
		HotGroupID:           catalog.ID(r.id()),
		ColdGroupID:          catalog.ID(r.id()),
		HotInPct:             int(r.uvarint()),
		HotOutPct:            int(r.uvarint()),
		FrequencyIntervalSec: int(r.uvarint()),
		CostIndication:       int(r.uvarint()),
	}
}

func readAdapters(r *reader, mut *catalog.Mutator, maxAdapter *catalog.ID) {
	n := r.uvarint()
	for i := uint64(0); i < n && r.err == nil; i++ {
		id := catalog.ID(r.id())
		a := &catalog.AdapterInfo{
			ID:           id,
			Name:         r.str(),
			IsPersistent: r.bool(),
			DeployMode:   catalog.DeployMode(r.byte()),
		}
		for _, m := range r.strs() {
			a.IndexMethods = append(a.IndexMethods, catalog.IndexMethod(m))
		}
		a.IsDataReadOnly = r.bool()
		mut.PutAdapter(a)
		bump(maxAdapter, id)
	}
}

func readPlacements(r *reader, mut *catalog.Mutator, maxPlacement *catalog.ID) {
	n := r.uvarint()
	for i := uint64(0); i < n && r.err == nil; i++ {
		id := catalog.ID(r.id())
		p := &catalog.Placement{
			ID:      id,
			Entity:  catalog.ID(r.id()),
			Adapter: catalog.ID(r.id()),
			Type:    catalog.PlacementType(r.byte()),
		}
		mut.PutPlacement(p)
		bump(maxPlacement, id)
	}
}

func readPartitions(r *reader, mut *catalog.Mutator, maxPartition *catalog.ID) {
	n := r.uvarint()
	for i := uint64(0); i < n && r.err == nil; i++ {
		id := catalog.ID(r.id())
		p := &catalog.AllocationPartition{
			ID:         id,
			Group:      catalog.ID(r.id()),
			Qualifiers: r.strs(),
			IsUnbound:  r.bool(),
		}
		mut.PutPartition(p)
		bump(maxPartition, id)
	}
}

func readAllocations(r *reader, mut *catalog.Mutator) {
	n := r.uvarint()
	for i := uint64(0); i < n && r.err == nil; i++ {
		mut.PutAllocColumn(&catalog.AllocationColumn{
			Placement:        catalog.ID(r.id()),
			Column:           catalog.ID(r.id()),
			PhysicalName:     r.str(),
			PhysicalPosition: int(r.uvarint()),
		})
	}

	m := r.uvarint()
	for i := uint64(0); i < m && r.err == nil; i++ {
		mut.PutAllocEntity(&catalog.AllocationEntity{
			Placement:          catalog.ID(r.id()),
			Partition:          catalog.ID(r.id()),
			AdapterPhysicalRef: r.str(),
		})
	}
}
