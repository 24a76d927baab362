// Package variable implements the two-tier global/local variable store and
// its recursive string-expansion procedure. It is pure: no I/O, no
// logging, no dependency on the engine or dispatcher.
package variable

import (
	"strings"

	"laughprop/obj"
)

const (
	sentinel      = "@"
	localSentinel = "@@"
)

// Context pairs the global map with the local map of the currently
// executing per-player cursor. Local is nil when no per-player scope is
// active; local reads/writes against a nil Local are errors.
type Context struct {
	Global *obj.OrderedMap
	Local  *obj.OrderedMap
}

func NewGlobal() *obj.OrderedMap { return obj.NewOrderedMap() }

// IsLocalKey reports whether key is @@-prefixed.
func IsLocalKey(key string) bool { return strings.HasPrefix(key, localSentinel) }

// IsGlobalKey reports whether key is (single) @-prefixed, i.e. not @@.
func IsGlobalKey(key string) bool {
	return strings.HasPrefix(key, sentinel) && !IsLocalKey(key)
}

// bareName strips the routing prefix, returning the name used as the map
// key in the targeted tier's store.
func bareName(key string) string {
	switch {
	case IsLocalKey(key):
		return key[len(localSentinel):]
	case IsGlobalKey(key):
		return key[len(sentinel):]
	default:
		return key
	}
}

// Write routes key by prefix and stores v. A malformed key (neither @ nor
// @@) or a local write with no active local scope is reported as an error
// and is a no-op.
func Write(ctx Context, key string, v obj.Value) error {
	switch {
	case IsLocalKey(key):
		if ctx.Local == nil {
			return obj.ErrValidationf("write to local var %q outside a per-player scope", key)
		}
		ctx.Local.Set(bareName(key), v)
		return nil
	case IsGlobalKey(key):
		ctx.Global.Set(bareName(key), v)
		return nil
	default:
		return obj.ErrValidationf("malformed variable key %q: must start with @ or @@", key)
	}
}

// Read routes key by prefix. A missing key returns (Null, false); a
// malformed key returns an error.
func Read(ctx Context, key string) (obj.Value, bool, error) {
	switch {
	case IsLocalKey(key):
		if ctx.Local == nil {
			return obj.Null(), false, obj.ErrValidationf("read of local var %q outside a per-player scope", key)
		}
		v, ok := ctx.Local.Get(bareName(key))
		return v, ok, nil
	case IsGlobalKey(key):
		v, ok := ctx.Global.Get(bareName(key))
		return v, ok, nil
	default:
		return obj.Null(), false, obj.ErrValidationf("malformed variable key %q: must start with @ or @@", key)
	}
}

// Delete routes key by prefix. Deleting a missing key succeeds silently.
func Delete(ctx Context, key string) error {
	switch {
	case IsLocalKey(key):
		if ctx.Local == nil {
			return obj.ErrValidationf("delete of local var %q outside a per-player scope", key)
		}
		ctx.Local.Delete(bareName(key))
		return nil
	case IsGlobalKey(key):
		ctx.Global.Delete(bareName(key))
		return nil
	default:
		return obj.ErrValidationf("malformed variable key %q: must start with @ or @@", key)
	}
}

// Exists routes key by prefix and reports presence without returning the
// value.
func Exists(ctx Context, key string) (bool, error) {
	_, ok, err := Read(ctx, key)
	return ok, err
}
