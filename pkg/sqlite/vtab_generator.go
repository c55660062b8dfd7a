package sqlite

import "fmt"

// Generator is a read-only virtual table over a lazily produced sequence.
// Init seeds the cursor state, HasMore decides end-of-sequence, Current
// produces the row for the current state and Advance moves to the next one.
// RowID is optional; without it rows get auto-assigned sequential ids.
// The state value is opaque to the bridge.
type Generator struct {
	Columns []ColumnDef
	Init    func() any
	HasMore func(state any) bool
	Current func(state any) ([]Value, error)
	Advance func(state any) any
	RowID   func(state any) int64
}

// Schema returns the generator's columns.
func (g *Generator) Schema() []ColumnDef { return g.Columns }

// BestIndex plans a full scan; a generator has no indexable shape.
func (g *Generator) BestIndex(*IndexInfo) (*IndexPlan, error) { return FullScan(), nil }

// Open checks the generator is fully wired and starts a cursor.
func (g *Generator) Open() (Cursor, error) {
	if g.Init == nil || g.HasMore == nil || g.Current == nil || g.Advance == nil {
		return nil, fmt.Errorf("sqlite: generator needs init, hasMore, current and advance")
	}
	return &generatorCursor{gen: g}, nil
}

type generatorCursor struct {
	gen       *Generator
	state     any
	autoRowid int64
	atEOF     bool
}

func (c *generatorCursor) Filter(int, string, []Value) error {
	c.state = c.gen.Init()
	c.autoRowid = 1
	c.atEOF = !c.gen.HasMore(c.state)
	return nil
}

func (c *generatorCursor) Next() error {
	c.state = c.gen.Advance(c.state)
	c.autoRowid++
	c.atEOF = !c.gen.HasMore(c.state)
	return nil
}

func (c *generatorCursor) EOF() bool { return c.atEOF }

func (c *generatorCursor) Column(i int) (Value, error) {
	vals, err := c.gen.Current(c.state)
	if err != nil {
		return Null(), err
	}
	if i < 0 || i >= len(vals) {
		return Null(), nil
	}
	return vals[i], nil
}

func (c *generatorCursor) Rowid() (int64, error) {
	if c.gen.RowID != nil {
		return c.gen.RowID(c.state), nil
	}
	return c.autoRowid, nil
}

func (c *generatorCursor) Close() error { return nil }
