package chunkmodel

// ThingKind distinguishes leaf AST elements from composite ones, the
// Token|CompositeThing split from spec.md's GLOSSARY.
type ThingKind int

const (
	ThingKindToken ThingKind = iota
	ThingKindComposite
)

// Thing is a concrete parse-tree element. Go has no sum types, so the
// Token|CompositeThing variant from spec.md is represented the way the
// teacher represents its own variant structs in internal/indexer/types.go
// (CodeExtraction/SymbolsData/DefinitionsData/DataData as plain structs with
// a discriminant): one struct, a Kind tag, and kind-specific fields.
type Thing struct {
	ID       string
	Kind     ThingKind
	NodeType string // tree-sitter node kind, e.g. "function_definition"
	Text     string

	// CompositeThing-only: ids of immediate children in document order.
	Children []string
}

// ConnectionKind distinguishes named-role edges from ordered-only edges.
type ConnectionKind int

const (
	ConnectionDirect ConnectionKind = iota
	ConnectionPositional
)

// Connection is an edge between two Things, either carrying a semantic Role
// (DirectConnection) or simply ordered (PositionalConnection).
type Connection struct {
	Kind     ConnectionKind
	From, To string // Thing ids

	Role  string // set only when Kind == ConnectionDirect
	Order int    // set only when Kind == ConnectionPositional
}

// Category is an abstract grouping of Things (e.g. "functions", "types").
type Category struct {
	Name         string
	MemberThings []string // Thing ids
}

// Arena is a flat, id-indexed store of Things, Categories, and Connections
// for one chunking pass over one file. It exists to break the cyclic
// Category<->Thing references the original design implies (each knows the
// other by name): per spec.md §9, cycles are resolved with arena+id storage
// instead of back-pointers, so accessors look ids up rather than owning a
// cycle.
type Arena struct {
	things      map[string]*Thing
	categories  map[string]*Category
	connections []Connection
}

// NewArena returns an empty arena.
func NewArena() *Arena {
	return &Arena{
		things:     make(map[string]*Thing),
		categories: make(map[string]*Category),
	}
}

// AddThing registers a Thing and returns its id.
func (a *Arena) AddThing(t *Thing) string {
	a.things[t.ID] = t
	return t.ID
}

// Thing looks up a Thing by id.
func (a *Arena) Thing(id string) (*Thing, bool) {
	t, ok := a.things[id]
	return t, ok
}

// Category looks up a Category by name, creating it on first use.
func (a *Arena) Category(name string) *Category {
	c, ok := a.categories[name]
	if !ok {
		c = &Category{Name: name}
		a.categories[name] = c
	}
	return c
}

// AddToCategory associates a Thing with a Category by name.
func (a *Arena) AddToCategory(category, thingID string) {
	c := a.Category(category)
	c.MemberThings = append(c.MemberThings, thingID)
}

// Connect records an edge between two Things.
func (a *Arena) Connect(conn Connection) {
	a.connections = append(a.connections, conn)
}

// Connections returns all edges recorded so far.
func (a *Arena) Connections() []Connection {
	return a.connections
}
