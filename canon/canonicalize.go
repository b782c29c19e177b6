// Package canon implements the deterministic byte encoding of certificate
// records used as the signing input.
//
// The encoding is compact JSON with object keys sorted at every level, ASCII-only
// output (non-ASCII runes escaped as \uXXXX) and a single fixed rendering for
// numbers. Records that cannot be encoded without loss are rejected with a
// certerr KindMalformedRecord error; no value is ever substituted.
package canon

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"unicode/utf8"

	"nullbytes.dev/wipecert/certerr"
)

// Record is a schema-agnostic sanitization report.
type Record = map[string]any

// MaxDepth bounds container nesting.
const MaxDepth = 1000

// Canonicalize is the single canonicalization choke point for records.
//
// All signing and signature verification MUST pass through Canonicalize.
func Canonicalize(r Record) ([]byte, error) {
	if r == nil {
		return nil, malformed("CERT-CANON-001", "record is nil")
	}
	return Marshal(r)
}

// Marshal encodes any supported value with the canonical rules. Canonicalize is
// Marshal restricted to a top-level object.
func Marshal(v any) ([]byte, error) {
	e := &encoder{visiting: map[uintptr]struct{}{}}
	if err := e.value(v, 0); err != nil {
		return nil, err
	}
	return e.buf.Bytes(), nil
}

// Equal reports whether two records have identical canonical bytes.
// Records that fail to canonicalize are never equal.
func Equal(a, b Record) bool {
	ca, err := Canonicalize(a)
	if err != nil {
		return false
	}
	cb, err := Canonicalize(b)
	if err != nil {
		return false
	}
	return bytes.Equal(ca, cb)
}

type encoder struct {
	buf      bytes.Buffer
	visiting map[uintptr]struct{}
}

func malformed(ruleID, msg string) error {
	return certerr.New(certerr.KindMalformedRecord, ruleID, msg)
}

func (e *encoder) value(v any, depth int) error {
	if depth > MaxDepth {
		return malformed("CERT-CANON-006", "record nesting too deep")
	}
	switch x := v.(type) {
	case nil:
		e.buf.WriteString("null")
		return nil
	case bool:
		if x {
			e.buf.WriteString("true")
		} else {
			e.buf.WriteString("false")
		}
		return nil
	case string:
		return e.str(x)
	case json.Number:
		s, err := formatNumber(x)
		if err != nil {
			return err
		}
		e.buf.WriteString(s)
		return nil
	case float64:
		s, err := formatFloat(x)
		if err != nil {
			return err
		}
		e.buf.WriteString(s)
		return nil
	case float32:
		s, err := formatFloat(float64(x))
		if err != nil {
			return err
		}
		e.buf.WriteString(s)
		return nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		fmt.Fprintf(&e.buf, "%d", x)
		return nil
	case map[string]any:
		return e.object(reflect.ValueOf(x), depth)
	case []any:
		return e.array(reflect.ValueOf(x), depth)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return malformed("CERT-CANON-002", fmt.Sprintf("non-string map key type %s", rv.Type().Key()))
		}
		return e.object(rv, depth)
	case reflect.Slice, reflect.Array:
		return e.array(rv, depth)
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			e.buf.WriteString("null")
			return nil
		}
		return e.value(rv.Elem().Interface(), depth+1)
	case reflect.String:
		return e.str(rv.String())
	case reflect.Bool:
		return e.value(rv.Bool(), depth)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return e.value(rv.Int(), depth)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return e.value(rv.Uint(), depth)
	case reflect.Float32, reflect.Float64:
		return e.value(rv.Float(), depth)
	default:
		return malformed("CERT-CANON-005", fmt.Sprintf("unsupported value type %T", v))
	}
}

// enter marks a container as being on the current encoding path.
func (e *encoder) enter(rv reflect.Value) (func(), error) {
	if rv.Kind() == reflect.Array || rv.Len() == 0 {
		return func() {}, nil
	}
	p := rv.Pointer()
	if _, ok := e.visiting[p]; ok {
		return nil, malformed("CERT-CANON-004", "cyclic record structure")
	}
	e.visiting[p] = struct{}{}
	return func() { delete(e.visiting, p) }, nil
}

func (e *encoder) object(rv reflect.Value, depth int) error {
	if rv.IsNil() {
		e.buf.WriteString("null")
		return nil
	}
	leave, err := e.enter(rv)
	if err != nil {
		return err
	}
	defer leave()

	keys := make([]string, 0, rv.Len())
	for _, k := range rv.MapKeys() {
		keys = append(keys, k.String())
	}
	sort.Strings(keys)

	e.buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			e.buf.WriteByte(',')
		}
		if err := e.str(k); err != nil {
			return err
		}
		e.buf.WriteByte(':')
		mv := rv.MapIndex(reflect.ValueOf(k).Convert(rv.Type().Key()))
		if err := e.value(mv.Interface(), depth+1); err != nil {
			return err
		}
	}
	e.buf.WriteByte('}')
	return nil
}

func (e *encoder) array(rv reflect.Value, depth int) error {
	if rv.Kind() == reflect.Slice && rv.IsNil() {
		e.buf.WriteString("null")
		return nil
	}
	leave, err := e.enter(rv)
	if err != nil {
		return err
	}
	defer leave()

	e.buf.WriteByte('[')
	for i := 0; i < rv.Len(); i++ {
		if i > 0 {
			e.buf.WriteByte(',')
		}
		if err := e.value(rv.Index(i).Interface(), depth+1); err != nil {
			return err
		}
	}
	e.buf.WriteByte(']')
	return nil
}

const hexDigits = "0123456789abcdef"

func (e *encoder) str(s string) error {
	e.buf.WriteByte('"')
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 {
			return malformed("CERT-CANON-007", "string is not valid UTF-8")
		}
		i += size
		switch r {
		case '"':
			e.buf.WriteString(`\"`)
		case '\\':
			e.buf.WriteString(`\\`)
		case '\n':
			e.buf.WriteString(`\n`)
		case '\r':
			e.buf.WriteString(`\r`)
		case '\t':
			e.buf.WriteString(`\t`)
		case '\b':
			e.buf.WriteString(`\b`)
		case '\f':
			e.buf.WriteString(`\f`)
		default:
			switch {
			case r >= 0x20 && r <= 0x7e:
				e.buf.WriteByte(byte(r))
			case r > 0xffff:
				r -= 0x10000
				e.escape(0xd800 + (r>>10)&0x3ff)
				e.escape(0xdc00 + r&0x3ff)
			default:
				e.escape(r)
			}
		}
	}
	e.buf.WriteByte('"')
	return nil
}

func (e *encoder) escape(r rune) {
	e.buf.WriteString(`\u`)
	e.buf.WriteByte(hexDigits[(r>>12)&0xf])
	e.buf.WriteByte(hexDigits[(r>>8)&0xf])
	e.buf.WriteByte(hexDigits[(r>>4)&0xf])
	e.buf.WriteByte(hexDigits[r&0xf])
}
