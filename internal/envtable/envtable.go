// Package envtable implements the EnvTable described in spec.md §3 and
// the flattening/name-canonicalization rules of §4.A.
//
// Grounded on original_source/yakut/cmd/orchestrate/_env.py
// (flatten_registers, and the NAME_SEP/register-naming convention used
// by load_composition in _schema.py) and, for the ASCII-safe upper-case
// conversion, on the case-folding approach golang.org/x/text/cases
// supplies elsewhere in the retrieval pack (runtime/go.mod, cli/go.mod
// of the teacher).
package envtable

import (
	"fmt"
	"strings"

	"github.com/cyphal-tools/orchestrate/internal/value"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var upper = cases.Upper(language.Und)

// Table is an ordered name -> raw bytes mapping (spec.md §3 EnvTable).
// Order is preserved for deterministic logging and process-env
// construction; lookups are O(1) via the index map.
type Table struct {
	order []string
	data  map[string][]byte
}

// New returns an empty Table.
func New() *Table {
	return &Table{data: make(map[string][]byte)}
}

// Copy returns an independent snapshot (spec.md §3: "no mutable aliasing").
func (t *Table) Copy() *Table {
	out := &Table{
		order: append([]string(nil), t.order...),
		data:  make(map[string][]byte, len(t.data)),
	}
	for k, v := range t.data {
		b := make([]byte, len(v))
		copy(b, v)
		out.data[k] = b
	}
	return out
}

// Get returns the raw bytes for name and whether it is present.
func (t *Table) Get(name string) ([]byte, bool) {
	v, ok := t.data[name]
	return v, ok
}

// Set assigns raw bytes to name, appending to the order if new.
func (t *Table) Set(name string, raw []byte) {
	if _, exists := t.data[name]; !exists {
		t.order = append(t.order, name)
	}
	t.data[name] = raw
}

// Delete removes name, a no-op if absent.
func (t *Table) Delete(name string) {
	if _, exists := t.data[name]; !exists {
		return
	}
	delete(t.data, name)
	for i, n := range t.order {
		if n == name {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
}

// Names returns the names in insertion order.
func (t *Table) Names() []string {
	return append([]string(nil), t.order...)
}

// Len returns the number of entries.
func (t *Table) Len() int { return len(t.data) }

// Merge overlays other onto t in place; entries in other take precedence
// (used for the "external=" caller/callee env propagation rule, §4.F).
func (t *Table) Merge(other *Table) {
	for _, name := range other.order {
		v, _ := other.data[name]
		t.Set(name, v)
	}
}

// Equal reports whether t and o contain the same entries (order-insensitive).
func (t *Table) Equal(o *Table) bool {
	if len(t.data) != len(o.data) {
		return false
	}
	for k, v := range t.data {
		ov, ok := o.data[k]
		if !ok || string(v) != string(ov) {
			return false
		}
	}
	return true
}

// IsValidName reports whether name is a valid environment variable name:
// uppercase ASCII, matching [A-Z_][A-Z0-9_]*, containing no '.' or '='.
func IsValidName(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

// CanonicalEnvName converts a flattened, dot-joined configuration key
// into its process-environment spelling: upper-cased with '.' replaced
// by '__' (spec.md §3, §4.A).
func CanonicalEnvName(name string) string {
	if !strings.Contains(name, value.NameSep) {
		return upper.String(name)
	}
	return upper.String(strings.ReplaceAll(name, value.NameSep, "__"))
}

// Flatten recursively joins nested-mapping keys with '.' (spec.md §3).
// Map values are walked; everything else is a leaf.
func Flatten(spec map[string]any) map[string]any {
	out := make(map[string]any)
	flattenInto(spec, "", out)
	return out
}

func flattenInto(spec map[string]any, prefix string, out map[string]any) {
	for k, v := range spec {
		name := k
		if prefix != "" {
			name = prefix + value.NameSep + k
		}
		if nested, ok := v.(map[string]any); ok {
			flattenInto(nested, name, out)
			continue
		}
		out[name] = v
	}
}

// ApplyEntry canonicalizes one (name, raw) configuration entry and
// applies it to t: a nil raw removes the name, otherwise the value is
// encoded (internal/value) and, if the name is a register (contains
// '.'), upper-cased with '.' -> '__' before being stored (spec.md §3,
// §4.A). Rejects names containing '=' (reserved for directives).
func ApplyEntry(t *Table, name string, raw any) error {
	if strings.Contains(name, "=") {
		return fmt.Errorf("%q: '=' is reserved for directives", name)
	}
	if raw == nil {
		t.Delete(envKeyFor(name))
		return nil
	}
	// The stored key is derived from the name as written (with any explicit
	// type-tag suffix intact), never from the tag Canonicalize infers.
	_, text, err := value.Canonicalize(name, raw)
	if err != nil {
		return err
	}
	t.Set(envKeyFor(name), text)
	return nil
}

func envKeyFor(name string) string {
	if strings.Contains(name, value.NameSep) {
		return CanonicalEnvName(name)
	}
	return name
}
