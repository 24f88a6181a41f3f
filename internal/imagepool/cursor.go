package imagepool

import "github.com/evimeria/evimeria-api/internal/classifier"

// Assignment is one image chosen for a product.
type Assignment struct {
	URL   string
	Slot  Slot
	Scope string
	Index int
}

type cursorKey struct {
	tag      classifier.Tag
	category string
}

// Cursor hands out images per (tag, category) in round-robin order so that
// consecutive products of the same type get different pictures. A Cursor
// belongs to a single batch run and is not safe for concurrent use.
type Cursor struct {
	table *Table
	next  map[cursorKey]int
}

func NewCursor(table *Table) *Cursor {
	return &Cursor{
		table: table,
		next:  make(map[cursorKey]int),
	}
}

// Next returns one assignment per non-empty slot of the resolved pool and
// advances the (tag, category) counter. On ErrNoPool the counter is left
// untouched.
func (c *Cursor) Next(tag classifier.Tag, category string) ([]Assignment, error) {
	pool, scope, err := c.table.Lookup(tag, category)
	if err != nil {
		return nil, err
	}

	key := cursorKey{tag: tag, category: normalizeScope(category)}
	index := c.next[key]
	c.next[key] = index + 1

	slots := pool.Slots()
	assignments := make([]Assignment, 0, len(slots))
	for _, slot := range slots {
		url, _ := pool.Pick(slot, index)
		assignments = append(assignments, Assignment{
			URL:   url,
			Slot:  slot,
			Scope: scope,
			Index: index,
		})
	}
	return assignments, nil
}

// Reset forgets every counter.
func (c *Cursor) Reset() {
	c.next = make(map[cursorKey]int)
}
