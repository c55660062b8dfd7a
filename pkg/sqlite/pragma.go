package sqlite

import (
	"fmt"
	"strings"
)

// JournalMode is the engine's journaling strategy.
type JournalMode int

// journal modes, matching PRAGMA journal_mode values
const (
	JournalDelete JournalMode = iota
	JournalTruncate
	JournalPersist
	JournalMemory
	JournalWAL
	JournalOff
)

func (m JournalMode) String() string {
	switch m {
	case JournalDelete:
		return "delete"
	case JournalTruncate:
		return "truncate"
	case JournalPersist:
		return "persist"
	case JournalMemory:
		return "memory"
	case JournalWAL:
		return "wal"
	case JournalOff:
		return "off"
	}
	return fmt.Sprintf("JournalMode(%d)", int(m))
}

// ParseJournalMode parses a journal mode name, case-insensitive.
func ParseJournalMode(s string) (JournalMode, error) {
	switch strings.ToLower(s) {
	case "delete":
		return JournalDelete, nil
	case "truncate":
		return JournalTruncate, nil
	case "persist":
		return JournalPersist, nil
	case "memory":
		return JournalMemory, nil
	case "wal":
		return JournalWAL, nil
	case "off":
		return JournalOff, nil
	}
	return JournalDelete, fmt.Errorf("sqlite: unknown journal mode %q", s)
}

// Synchronous is the engine's fsync discipline.
type Synchronous int

// synchronous levels, matching PRAGMA synchronous numeric values
const (
	SyncOff    Synchronous = 0
	SyncNormal Synchronous = 1
	SyncFull   Synchronous = 2
	SyncExtra  Synchronous = 3
)

// TempStore controls where temporary tables and indices are kept.
type TempStore int

// temp_store values
const (
	TempDefault TempStore = 0
	TempFile    TempStore = 1
	TempMemory  TempStore = 2
)

// AutoVacuum is the engine's auto-vacuum mode.
type AutoVacuum int

// auto_vacuum values
const (
	VacuumNone        AutoVacuum = 0
	VacuumFull        AutoVacuum = 1
	VacuumIncremental AutoVacuum = 2
)

// JournalMode reads the current journal mode.
func (c *Conn) JournalMode() (JournalMode, error) {
	s, err := c.pragmaText("journal_mode")
	if err != nil {
		return JournalDelete, err
	}
	return ParseJournalMode(s)
}

// SetJournalMode requests a journal mode and returns the mode the engine
// actually adopted, which may differ: an in-memory database silently refuses
// WAL.
func (c *Conn) SetJournalMode(m JournalMode) (JournalMode, error) {
	s, err := c.pragmaText("journal_mode = " + m.String())
	if err != nil {
		return JournalDelete, err
	}
	return ParseJournalMode(s)
}

// Synchronous reads the current synchronous level.
func (c *Conn) Synchronous() (Synchronous, error) {
	n, err := c.pragmaInt("synchronous")
	return Synchronous(n), err
}

// SetSynchronous sets the synchronous level.
func (c *Conn) SetSynchronous(s Synchronous) error {
	return c.Exec(fmt.Sprintf("PRAGMA synchronous = %d", int(s)))
}

// ForeignKeys reports whether foreign key enforcement is on.
func (c *Conn) ForeignKeys() (bool, error) {
	n, err := c.pragmaInt("foreign_keys")
	return n != 0, err
}

// SetForeignKeys switches foreign key enforcement.
func (c *Conn) SetForeignKeys(on bool) error {
	v := 0
	if on {
		v = 1
	}
	return c.Exec(fmt.Sprintf("PRAGMA foreign_keys = %d", v))
}

// CacheSize reads the page-cache size. Positive is pages, negative is
// kibibytes.
func (c *Conn) CacheSize() (int64, error) {
	return c.pragmaInt("cache_size")
}

// SetCacheSize sets the page-cache size; a negative value means kibibytes.
func (c *Conn) SetCacheSize(n int64) error {
	return c.Exec(fmt.Sprintf("PRAGMA cache_size = %d", n))
}

// TempStore reads where temporary objects are kept.
func (c *Conn) TempStore() (TempStore, error) {
	n, err := c.pragmaInt("temp_store")
	return TempStore(n), err
}

// SetTempStore sets the temporary-object location.
func (c *Conn) SetTempStore(t TempStore) error {
	return c.Exec(fmt.Sprintf("PRAGMA temp_store = %d", int(t)))
}

// AutoVacuum reads the auto-vacuum mode.
func (c *Conn) AutoVacuum() (AutoVacuum, error) {
	n, err := c.pragmaInt("auto_vacuum")
	return AutoVacuum(n), err
}

// SetAutoVacuum sets the auto-vacuum mode. Takes effect on an existing
// database only after VACUUM.
func (c *Conn) SetAutoVacuum(v AutoVacuum) error {
	return c.Exec(fmt.Sprintf("PRAGMA auto_vacuum = %d", int(v)))
}

// PageSize reads the database page size in bytes.
func (c *Conn) PageSize() (int64, error) {
	return c.pragmaInt("page_size")
}

// SetPageSize requests a page size; the engine applies it to an existing
// database only on the next VACUUM.
func (c *Conn) SetPageSize(n int64) error {
	return c.Exec(fmt.Sprintf("PRAGMA page_size = %d", n))
}

// MaxPageCount reads the page-count limit.
func (c *Conn) MaxPageCount() (int64, error) {
	return c.pragmaInt("max_page_count")
}

// SetMaxPageCount sets the page-count limit and returns the limit the engine
// adopted, which is clamped to at least the current database size.
func (c *Conn) SetMaxPageCount(n int64) (int64, error) {
	row, err := c.QueryOne(fmt.Sprintf("PRAGMA max_page_count = %d", n))
	if err != nil {
		return 0, err
	}
	if row == nil {
		return 0, fmt.Errorf("sqlite: pragma max_page_count returned no value")
	}
	return RowAs[int64](*row, 0)
}

// PageCount reads the current number of pages in the database.
func (c *Conn) PageCount() (int64, error) {
	return c.pragmaInt("page_count")
}

// FreelistCount reads the number of unused pages.
func (c *Conn) FreelistCount() (int64, error) {
	return c.pragmaInt("freelist_count")
}

// Encoding reads the text encoding of the database, e.g. "UTF-8".
func (c *Conn) Encoding() (string, error) {
	return c.pragmaText("encoding")
}

func (c *Conn) pragmaInt(body string) (int64, error) {
	row, err := c.QueryOne("PRAGMA " + body)
	if err != nil {
		return 0, err
	}
	if row == nil {
		return 0, fmt.Errorf("sqlite: pragma %s returned no value", body)
	}
	return RowAs[int64](*row, 0)
}

func (c *Conn) pragmaText(body string) (string, error) {
	row, err := c.QueryOne("PRAGMA " + body)
	if err != nil {
		return "", err
	}
	if row == nil {
		return "", fmt.Errorf("sqlite: pragma %s returned no value", body)
	}
	return RowAs[string](*row, 0)
}
