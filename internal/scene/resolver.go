package scene

import (
	"context"
	"fmt"
	"log/slog"
)

// LookupKind controls how the resolver treats an absent name.
//
// The original cell scripts were strict about targets, the robot, the
// gripper and the tool (abort on missing) but lenient about frames (log and
// continue). That asymmetry is preserved here as per-entry configuration
// rather than hard-coded behavior; procedure files choose the kind for each
// entry and the defaults match the observed behavior.
type LookupKind int

const (
	// LookupRequired aborts resolution with a ResolveError when the name
	// is absent. No motion command may execute after such a failure.
	LookupRequired LookupKind = iota

	// LookupOptional records the name as missing and continues. Steps that
	// reference a missing optional item fail at point of use.
	LookupOptional
)

func (k LookupKind) String() string {
	switch k {
	case LookupRequired:
		return "required"
	case LookupOptional:
		return "optional"
	}
	return fmt.Sprintf("LookupKind(%d)", int(k))
}

// ParseLookupKind converts the procedure-file spelling to a LookupKind.
func ParseLookupKind(s string) (LookupKind, error) {
	switch s {
	case "required":
		return LookupRequired, nil
	case "optional":
		return LookupOptional, nil
	}
	return LookupRequired, fmt.Errorf("unknown lookup kind %q", s)
}

// Spec names one scene item the resolver must find.
type Spec struct {
	Name   string
	Type   ItemType
	Lookup LookupKind
}

// Lookuper is the slice of the simulator session the resolver needs. Both
// the websocket client and the in-process fake satisfy it.
//
// Lookup returns an invalid (zero-ID) Item with a nil error when the name
// does not exist; a non-nil error means the link itself failed.
type Lookuper interface {
	Lookup(ctx context.Context, name string, t ItemType) (Item, error)
}

// ResolveError reports a missing required scene item.
type ResolveError struct {
	Name string
	Type ItemType
}

func (e *ResolveError) Error() string {
	return fmt.Sprintf("scene item %q (%s) not found", e.Name, e.Type)
}

// Result is the outcome of resolving a set of specs.
type Result struct {
	Registry *Registry

	// Missing lists optional names that did not resolve, in spec order.
	Missing []string
}

// Resolve looks up every spec against the session and builds the registry.
//
// Resolution stops at the first missing required name, returning a
// *ResolveError; by contract the caller has issued no motion command yet,
// so a run aborted here leaves the scene untouched. Missing optional names
// are logged at Warn and collected in Result.Missing.
func Resolve(ctx context.Context, lk Lookuper, specs []Spec, logger *slog.Logger) (*Result, error) {
	if logger == nil {
		logger = slog.Default()
	}

	res := &Result{Registry: NewRegistry()}
	for _, spec := range specs {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("resolve %q: %w", spec.Name, err)
		}

		it, err := lk.Lookup(ctx, spec.Name, spec.Type)
		if err != nil {
			return nil, fmt.Errorf("resolve %q: %w", spec.Name, err)
		}
		if !it.Valid() {
			if spec.Lookup == LookupRequired {
				return nil, &ResolveError{Name: spec.Name, Type: spec.Type}
			}
			logger.Warn("optional scene item missing", "name", spec.Name, "type", spec.Type.String())
			res.Missing = append(res.Missing, spec.Name)
			continue
		}
		res.Registry.add(it)
		logger.Debug("resolved scene item", "name", it.Name, "type", it.Type.String(), "id", it.ID)
	}
	return res, nil
}
