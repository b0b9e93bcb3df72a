package channel

import (
	"errors"
	"fmt"
)

// MaxStreams is the number of slots in a Table.
const MaxStreams = 5

// Table is a fixed-capacity set of channels addressed by slot index.
// Empty slots are nil. It is not safe for concurrent mutation.
type Table struct {
	slots [MaxStreams]*Channel
}

// Add stores c in the first free slot and returns its index.
func (t *Table) Add(c *Channel) (int, error) {
	if c == nil {
		return -1, errors.New("nil channel")
	}
	for i := range t.slots {
		if t.slots[i] == nil {
			t.slots[i] = c
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: %d slots in use", ErrCapacity, MaxStreams)
}

// Remove empties slot i.
func (t *Table) Remove(i int) error {
	if _, err := t.Get(i); err != nil {
		return err
	}
	t.slots[i] = nil
	return nil
}

// Get returns the channel in slot i.
func (t *Table) Get(i int) (*Channel, error) {
	if i < 0 || i >= MaxStreams || t.slots[i] == nil {
		return nil, fmt.Errorf("%w %d", ErrNoChannel, i)
	}
	return t.slots[i], nil
}

// First returns the lowest occupied slot.
func (t *Table) First() (int, *Channel, error) {
	for i, c := range t.slots {
		if c != nil {
			return i, c, nil
		}
	}
	return -1, nil, fmt.Errorf("%w: table is empty", ErrNoChannel)
}

// Len returns the number of occupied slots.
func (t *Table) Len() int {
	n := 0
	for _, c := range t.slots {
		if c != nil {
			n++
		}
	}
	return n
}

// Indices returns the occupied slot indices in ascending order.
func (t *Table) Indices() []int {
	out := make([]int, 0, MaxStreams)
	for i, c := range t.slots {
		if c != nil {
			out = append(out, i)
		}
	}
	return out
}

// Broadcast writes a line to every occupied slot in slot order. A failing
// channel does not stop delivery to the others; all failures are returned joined.
func (t *Table) Broadcast(text string) error {
	var errs []error
	for _, c := range t.slots {
		if c == nil {
			continue
		}
		if err := c.Println(text); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
