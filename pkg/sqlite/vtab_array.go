package sqlite

import (
	"fmt"
)

type arrayRow struct {
	rowid int64
	vals  []Value
}

// ArrayTable is a mutable in-memory virtual table. Rows are addressed by
// auto-incrementing rowids and can be changed both through SQL and through
// the host-side Insert. Cursors scan a snapshot taken at filter time, so
// writes during a scan don't shift cursor positions.
type ArrayTable struct {
	cols   []ColumnDef
	rows   []arrayRow
	nextID int64
}

// NewArrayTable makes an empty array table with the given columns.
func NewArrayTable(cols []ColumnDef) *ArrayTable {
	return &ArrayTable{cols: cols, nextID: 1}
}

// Schema returns the table's columns.
func (t *ArrayTable) Schema() []ColumnDef { return t.cols }

// BestIndex always plans a full scan; the table is small and in memory.
func (t *ArrayTable) BestIndex(*IndexInfo) (*IndexPlan, error) { return FullScan(), nil }

// Open starts a new cursor; it snapshots the rows when the scan is filtered.
func (t *ArrayTable) Open() (Cursor, error) {
	return &arrayCursor{table: t}, nil
}

// Insert appends a row from the host side, assigning the next rowid.
func (t *ArrayTable) Insert(vals ...Value) int64 {
	id := t.nextID
	t.nextID++
	t.rows = append(t.rows, arrayRow{rowid: id, vals: vals})
	return id
}

// Len returns the current number of rows.
func (t *ArrayTable) Len() int { return len(t.rows) }

// Update applies one decoded write. Inserts without a requested rowid get
// the next counter value; updates replace the matching row; deletes filter
// it out.
func (t *ArrayTable) Update(op VTabOp) (int64, error) {
	switch op.Kind {
	case VTabInsert:
		id := t.nextID
		if op.NewRowid != nil {
			id = *op.NewRowid
		}
		if id >= t.nextID {
			t.nextID = id + 1
		}
		t.rows = append(t.rows, arrayRow{rowid: id, vals: op.Values})
		return id, nil

	case VTabUpdate:
		for i := range t.rows {
			if t.rows[i].rowid == op.Rowid {
				id := op.Rowid
				if op.NewRowid != nil {
					id = *op.NewRowid
				}
				t.rows[i] = arrayRow{rowid: id, vals: op.Values}
				return id, nil
			}
		}
		return 0, fmt.Errorf("sqlite: no row %d in array table", op.Rowid)

	case VTabDelete:
		for i := range t.rows {
			if t.rows[i].rowid == op.Rowid {
				t.rows = append(t.rows[:i], t.rows[i+1:]...)
				return op.Rowid, nil
			}
		}
		return 0, fmt.Errorf("sqlite: no row %d in array table", op.Rowid)
	}
	return 0, fmt.Errorf("sqlite: unknown write kind %d", op.Kind)
}

type arrayCursor struct {
	table    *ArrayTable
	snapshot []arrayRow
	pos      int
}

// Filter snapshots the table so the scan is stable against writes.
func (c *arrayCursor) Filter(int, string, []Value) error {
	c.snapshot = make([]arrayRow, len(c.table.rows))
	copy(c.snapshot, c.table.rows)
	c.pos = 0
	return nil
}

func (c *arrayCursor) Next() error {
	c.pos++
	return nil
}

func (c *arrayCursor) EOF() bool { return c.pos >= len(c.snapshot) }

func (c *arrayCursor) Column(i int) (Value, error) {
	row := c.snapshot[c.pos]
	if i < 0 || i >= len(row.vals) {
		return Null(), nil
	}
	return row.vals[i], nil
}

func (c *arrayCursor) Rowid() (int64, error) { return c.snapshot[c.pos].rowid, nil }

func (c *arrayCursor) Close() error { return nil }
