package core

import "fmt"

// Identifiers hands out small integer IDs for owners and reuses released slots.
// ID 0 is never handed out so callers can use it as "no handle".
type Identifiers struct {
	owners []interface{}
}

func (ids *Identifiers) Acquire(owner interface{}) uint32 {
	if len(ids.owners) == 0 {
		ids.owners = make([]interface{}, 1, 64)
	}
	for i := 1; i < len(ids.owners); i++ {
		// Existing free spot. Take it.
		if ids.owners[i] == nil {
			ids.owners[i] = owner
			return uint32(i)
		}
	}
	ids.owners = append(ids.owners, owner)
	return uint32(len(ids.owners) - 1)
}

// Lookup returns the owner registered for id, or nil if the slot is free.
func (ids *Identifiers) Lookup(id uint32) interface{} {
	if id == 0 || int(id) >= len(ids.owners) {
		return nil
	}
	return ids.owners[id]
}

func (ids *Identifiers) Release(id uint32) error {
	if id == 0 || int(id) >= len(ids.owners) {
		return fmt.Errorf("identifier release: id '%d' out of range (max=%d): %w", id, len(ids.owners), ErrInvalidHandle)
	}
	if ids.owners[id] == nil {
		return fmt.Errorf("identifier release: id '%d' already released: %w", id, ErrInvalidHandle)
	}
	ids.owners[id] = nil
	return nil
}

// Live returns the number of IDs currently held.
func (ids *Identifiers) Live() int {
	n := 0
	for i := 1; i < len(ids.owners); i++ {
		if ids.owners[i] != nil {
			n++
		}
	}
	return n
}
