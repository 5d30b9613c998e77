// Package scene models the simulator's scene graph as seen from this side of
// the link: opaque item handles, a read-only name registry, and a resolver
// that turns (name, type, strictness) specs into handles.
package scene

import (
	"fmt"

	"golang.org/x/text/unicode/norm"
)

// ItemType classifies scene items. The simulator stores one type per item;
// lookups are filtered by type so a target named "Home" never shadows a
// frame named "Home".
type ItemType int

const (
	// TypeAny matches any item type during lookup.
	TypeAny ItemType = iota
	TypeRobot
	TypeFrame
	TypeTarget
	TypeTool
	TypeObject
)

var itemTypeNames = map[ItemType]string{
	TypeAny:    "any",
	TypeRobot:  "robot",
	TypeFrame:  "frame",
	TypeTarget: "target",
	TypeTool:   "tool",
	TypeObject: "object",
}

func (t ItemType) String() string {
	if s, ok := itemTypeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("ItemType(%d)", int(t))
}

// ParseItemType converts the wire/config spelling back to an ItemType.
func ParseItemType(s string) (ItemType, error) {
	for t, name := range itemTypeNames {
		if name == s {
			return t, nil
		}
	}
	return TypeAny, fmt.Errorf("unknown item type %q", s)
}

// Item is an opaque handle to a named object in the simulator scene graph.
//
// Identity is (canonical name, type). A zero ID marks an invalid handle:
// lookups for absent names return an invalid Item rather than an error, the
// same way the simulator's own API does, and callers decide how strict to be
// (see Resolver).
type Item struct {
	ID   uint64
	Name string
	Type ItemType
}

// Valid reports whether the handle refers to an existing scene item.
func (it Item) Valid() bool {
	return it.ID != 0
}

func (it Item) String() string {
	if !it.Valid() {
		return fmt.Sprintf("<invalid %s %q>", it.Type, it.Name)
	}
	return fmt.Sprintf("%s %q", it.Type, it.Name)
}

// Canonical returns the NFC-normalized form of a scene item name. All
// registry keys and lookups go through this so that visually identical
// names with different Unicode composition resolve to the same item.
func Canonical(name string) string {
	return norm.NFC.String(name)
}
