package catalog

// Namespace groups logical entities of one kind under one owner.
type Namespace struct {
	ID    ID
	Name  string
	Kind  NamespaceKind
	Owner string
}

// EntityKind distinguishes the tagged-union members of Entity.
type EntityKind int

const (
	Table EntityKind = iota
	CollectionEntity
	GraphEntity
	MaterializedView
)

// RefreshPolicy controls when a materialized view is refreshed.
type RefreshPolicy int

const (
	OnCommit RefreshPolicy = iota
	Manual
	Interval
)

// PolyType is the logical column's engine-native type tag. Value encoding
// and expression evaluation belong to the type system, which this
// component only references by id/tag.
type PolyType int

const (
	TypeInteger PolyType = iota
	TypeBigInt
	TypeVarchar
	TypeBoolean
	TypeDecimal
	TypeDate
	TypeTimestamp
	TypeArray
	TypeJSON
)

// Entity is the tagged union of the three logical entity families plus
// materialized views. Only the fields relevant to Kind are populated; a
// Graph entity carries no Columns of its own; it is realized over four
// backing Tables referenced by id (NodesTable, EdgesTable, ...).
type Entity struct {
	ID        ID
	Namespace ID
	Name      string
	Kind      EntityKind

	// Table / generic relational fields.
	Columns     []ID // ordered logical column ids
	PrimaryKey  *PrimaryKey
	ForeignKeys []*ForeignKey
	Indexes     []*Index

	// SOURCE entities are read-only, adapter-exported tables: exactly
	// one placement, structural DDL rejected.
	IsSource        bool
	ExportedColumns []string

	// Graph realization: a graph is internally four tables.
	NodesTable     ID
	EdgesTable     ID
	NodePropsTable ID
	EdgePropsTable ID

	// Materialized view.
	DefinedOverScans []ID // entity ids the view's stored plan scans
	Refresh          RefreshPolicy

	Partition PartitionProperty
}

// Column is a logical column belonging to exactly one entity.
type Column struct {
	ID             ID
	Entity         ID
	Name           string
	Position       int
	PolyType       PolyType
	CollectionType *PolyType // element type, for ARRAY/collection columns
	Precision      int
	Scale          int
	Dimension      int
	Cardinality    int
	Nullable       bool
	Collation      string
	DefaultValue   *string
}

// PrimaryKey is the ordered set of columns identifying a row within an
// entity. Every placement of the entity must carry an allocation column
// for every PK column.
type PrimaryKey struct {
	Entity           ID
	OrderedColumnIDs []ID
}

// ReferentialAction mirrors SQL ON UPDATE / ON DELETE actions.
type ReferentialAction int

const (
	ActionRestrict ReferentialAction = iota
	ActionCascade
	ActionSetNull
	ActionNoAction
)

// ForeignKey references another entity's columns; it prevents dropping
// the target entity while it exists.
type ForeignKey struct {
	ID            ID
	Name          string
	SourceEntity  ID
	SourceColumns []ID
	TargetEntity  ID
	TargetColumns []ID
	OnUpdate      ReferentialAction
	OnDelete      ReferentialAction
}

// IndexMethod names an adapter-supported index implementation, checked
// against AdapterInfo.IndexMethods at DDL time.
type IndexMethod string

// Index belongs exclusively to one entity; dropping the entity drops it.
type Index struct {
	ID      ID
	Name    string
	Entity  ID
	Columns []ID
	Method  IndexMethod
	Unique  bool
}
