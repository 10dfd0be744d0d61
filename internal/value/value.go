// Package value implements the configuration leaf type described in
// spec.md §3 (Value) and the canonicalization/inference rules of §4.A.
//
// Grounded on original_source/yakut/cmd/orchestrate/_env.py
// (canonicalize_register), which this package reproduces faithfully in
// Go: the list of recognized type-tag suffixes, the coercion rules per
// tag, and the auto-detection fallback order (bit -> natural16/32/64 ->
// integer16/32/64 -> real64) are all taken directly from that function.
package value

import (
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Tag names a register value type, mirroring the field names of
// uavcan.register.Value.1.
type Tag string

const (
	TagEmpty        Tag = "empty"
	TagString       Tag = "string"
	TagUnstructured Tag = "unstructured"
	TagBit          Tag = "bit"
	TagInteger8     Tag = "integer8"
	TagInteger16    Tag = "integer16"
	TagInteger32    Tag = "integer32"
	TagInteger64    Tag = "integer64"
	TagNatural8     Tag = "natural8"
	TagNatural16    Tag = "natural16"
	TagNatural32    Tag = "natural32"
	TagNatural64    Tag = "natural64"
	TagReal16       Tag = "real16"
	TagReal32       Tag = "real32"
	TagReal64       Tag = "real64"
)

// orderedTags lists every recognized suffix. Order matters only for the
// suffix-match scan: since tags never prefix one another (all are full
// path components separated by NameSep), any order finds the right match.
var orderedTags = []Tag{
	TagEmpty, TagString, TagUnstructured, TagBit,
	TagInteger64, TagInteger32, TagInteger16, TagInteger8,
	TagNatural64, TagNatural32, TagNatural16, TagNatural8,
	TagReal64, TagReal32, TagReal16,
}

// NameSep separates a register name from its type-tag suffix, and joins
// flattened hierarchical configuration keys (spec.md §3).
const NameSep = "."

// BadValueType reports that an explicit type-tag suffix is incompatible
// with the supplied value (spec.md §4.A).
type BadValueType struct {
	Name  string
	Tag   Tag
	Cause error
}

func (e *BadValueType) Error() string {
	return fmt.Sprintf("%s: value is not a valid %s: %v", e.Name, e.Tag, e.Cause)
}
func (e *BadValueType) Unwrap() error { return e.Cause }

// NoInferenceType reports that auto-detection found no fitting type.
type NoInferenceType struct {
	Name string
}

func (e *NoInferenceType) Error() string {
	return fmt.Sprintf("cannot infer the type of %q", e.Name)
}

// Canonicalize maps (name, value) to (name_with_type_suffix, text_bytes)
// per spec.md §4.A. raw is whatever a YAML scalar/sequence decodes to:
// nil, bool, string, []byte, an integer/float kind, or a []any of those.
func Canonicalize(name string, raw any) (string, []byte, error) {
	for _, tag := range orderedTags {
		suffix := NameSep + string(tag)
		if strings.HasSuffix(name, suffix) {
			text, err := encode(tag, raw)
			if err != nil {
				return "", nil, &BadValueType{Name: name, Tag: tag, Cause: err}
			}
			return name, text, nil
		}
	}
	return inferAndConvert(name, raw)
}

func inferAndConvert(name string, raw any) (string, []byte, error) {
	if raw == nil {
		return Canonicalize(name+NameSep+string(TagEmpty), raw)
	}
	switch v := raw.(type) {
	case string:
		return Canonicalize(name+NameSep+string(TagString), v)
	case []byte:
		return Canonicalize(name+NameSep+string(TagUnstructured), v)
	}

	elems, err := toSlice(raw)
	if err != nil {
		// A scalar is inferred as a one-element vector.
		elems = []any{raw}
	}

	if allBool(elems) {
		return Canonicalize(name+NameSep+string(TagBit), raw)
	}
	if ints, ok := allInt(elems); ok {
		switch {
		case fitsUnsigned(ints, 16):
			return Canonicalize(name+NameSep+string(TagNatural16), raw)
		case fitsUnsigned(ints, 32):
			return Canonicalize(name+NameSep+string(TagNatural32), raw)
		case fitsUnsigned(ints, 64):
			return Canonicalize(name+NameSep+string(TagNatural64), raw)
		case fitsSigned(ints, 16):
			return Canonicalize(name+NameSep+string(TagInteger16), raw)
		case fitsSigned(ints, 32):
			return Canonicalize(name+NameSep+string(TagInteger32), raw)
		case fitsSigned(ints, 64):
			return Canonicalize(name+NameSep+string(TagInteger64), raw)
		}
	}
	if allNumber(elems) {
		return Canonicalize(name+NameSep+string(TagReal64), raw)
	}
	return "", nil, &NoInferenceType{Name: name}
}

// encode converts raw into the text representation for an explicit tag.
func encode(tag Tag, raw any) ([]byte, error) {
	switch tag {
	case TagEmpty:
		return []byte{}, nil
	case TagString:
		return []byte(fmt.Sprint(raw)), nil
	case TagUnstructured:
		b, ok := raw.([]byte)
		if !ok {
			s, ok := raw.(string)
			if !ok {
				return nil, fmt.Errorf("expected bytes or hex-encoded string")
			}
			decoded, err := hex.DecodeString(s)
			if err != nil {
				return nil, fmt.Errorf("expected bytes or hex-encoded string")
			}
			b = decoded
		}
		return []byte(hex.EncodeToString(b)), nil
	case TagBit:
		elems, err := toSlice(raw)
		if err != nil {
			elems = []any{raw}
		}
		parts := make([]string, len(elems))
		for i, e := range elems {
			if truthy(e) {
				parts[i] = "1"
			} else {
				parts[i] = "0"
			}
		}
		return []byte(strings.Join(parts, " ")), nil
	default:
		if strings.HasPrefix(string(tag), "integer") || strings.HasPrefix(string(tag), "natural") {
			return encodeIntVector(tag, raw)
		}
		if strings.HasPrefix(string(tag), "real") {
			return encodeRealVector(raw)
		}
		return nil, fmt.Errorf("unhandled tag %q", tag)
	}
}

func encodeIntVector(tag Tag, raw any) ([]byte, error) {
	elems, err := toSlice(raw)
	if err != nil {
		elems = []any{raw}
	}
	parts := make([]string, len(elems))
	for i, e := range elems {
		n, ok := asInt64(e)
		if !ok {
			return nil, fmt.Errorf("%v is not an integer", e)
		}
		if err := rangeCheck(tag, n); err != nil {
			return nil, err
		}
		parts[i] = strconv.FormatInt(n, 10)
	}
	return []byte(strings.Join(parts, " ")), nil
}

func rangeCheck(tag Tag, n int64) error {
	var lo, hi int64
	signed := strings.HasPrefix(string(tag), "integer")
	width := 64
	switch tag {
	case TagInteger8:
		width = 8
	case TagInteger16:
		width = 16
	case TagInteger32:
		width = 32
	case TagInteger64:
		width = 64
	case TagNatural8:
		width = 8
	case TagNatural16:
		width = 16
	case TagNatural32:
		width = 32
	case TagNatural64:
		width = 64
	}
	if signed {
		if width == 64 {
			return nil
		}
		hi = 1 << (width - 1)
		lo = -hi
		if n < lo || n >= hi {
			return fmt.Errorf("%d out of range for %s", n, tag)
		}
		return nil
	}
	if n < 0 {
		return fmt.Errorf("%d out of range for %s", n, tag)
	}
	if width == 64 {
		return nil
	}
	hi = 1 << width
	if n >= hi {
		return fmt.Errorf("%d out of range for %s", n, tag)
	}
	return nil
}

func encodeRealVector(raw any) ([]byte, error) {
	elems, err := toSlice(raw)
	if err != nil {
		elems = []any{raw}
	}
	parts := make([]string, len(elems))
	for i, e := range elems {
		f, ok := asFloat64(e)
		if !ok {
			return nil, fmt.Errorf("%v is not a number", e)
		}
		parts[i] = formatReal(f)
	}
	return []byte(strings.Join(parts, " ")), nil
}

// formatReal mimics Python's str(float(x)): positional notation with a
// decimal point for magnitudes in [1e-4, 1e16) and for zero, exponent
// notation outside that range.
func formatReal(f float64) string {
	if math.IsInf(f, 1) {
		return "inf"
	}
	if math.IsInf(f, -1) {
		return "-inf"
	}
	var s string
	if a := math.Abs(f); a == 0 || (a >= 1e-4 && a < 1e16) {
		s = strconv.FormatFloat(f, 'f', -1, 64)
	} else {
		s = strconv.FormatFloat(f, 'e', -1, 64)
	}
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

func toSlice(raw any) ([]any, error) {
	switch v := raw.(type) {
	case []any:
		return v, nil
	case []int:
		out := make([]any, len(v))
		for i, x := range v {
			out[i] = x
		}
		return out, nil
	case []bool:
		out := make([]any, len(v))
		for i, x := range v {
			out[i] = x
		}
		return out, nil
	default:
		return nil, fmt.Errorf("not a sequence")
	}
}

func allBool(elems []any) bool {
	if len(elems) == 0 {
		return false
	}
	for _, e := range elems {
		if _, ok := e.(bool); !ok {
			return false
		}
	}
	return true
}

func allInt(elems []any) ([]int64, bool) {
	if len(elems) == 0 {
		return nil, false
	}
	out := make([]int64, len(elems))
	for i, e := range elems {
		if _, isBool := e.(bool); isBool {
			return nil, false
		}
		n, ok := asInt64(e)
		if !ok {
			return nil, false
		}
		out[i] = n
	}
	return out, true
}

func allNumber(elems []any) bool {
	if len(elems) == 0 {
		return false
	}
	for _, e := range elems {
		if _, ok := asFloat64(e); !ok {
			return false
		}
	}
	return true
}

func truthy(e any) bool {
	b, _ := e.(bool)
	return b
}

func asInt64(e any) (int64, bool) {
	switch v := e.(type) {
	case int:
		return int64(v), true
	case int8:
		return int64(v), true
	case int16:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case uint:
		return int64(v), true
	case uint8:
		return int64(v), true
	case uint16:
		return int64(v), true
	case uint32:
		return int64(v), true
	case uint64:
		return int64(v), true
	default:
		return 0, false
	}
}

func asFloat64(e any) (float64, bool) {
	switch v := e.(type) {
	case float32:
		return float64(v), true
	case float64:
		return v, true
	default:
		n, ok := asInt64(e)
		return float64(n), ok
	}
}

func fitsUnsigned(ints []int64, bits int) bool {
	var hi int64 = 1 << bits
	if bits == 64 {
		for _, n := range ints {
			if n < 0 {
				return false
			}
		}
		return true
	}
	for _, n := range ints {
		if n < 0 || n >= hi {
			return false
		}
	}
	return true
}

func fitsSigned(ints []int64, bits int) bool {
	if bits == 64 {
		return true
	}
	hi := int64(1) << (bits - 1)
	lo := -hi
	for _, n := range ints {
		if n < lo || n >= hi {
			return false
		}
	}
	return true
}
