package parser

import (
	"bytes"
	"fmt"
	"iter"
	"maps"
	"math"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"unicode"
)

// ValueKind identifies the variant held by a [Value].
type ValueKind int

const (
	KindNone ValueKind = iota // zero value
	KindString
	KindInt
	KindFloat
	KindBytes
	KindBool
	KindList   // unnamed complex body: a(1, 2)
	KindDict   // named complex body: a(x: 1, y: 2)
	KindObject // host value injected at runtime
)

func (k ValueKind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBytes:
		return "bytes"
	case KindBool:
		return "bool"
	case KindList:
		return "list"
	case KindDict:
		return "dict"
	case KindObject:
		return "object"
	default:
		return "none"
	}
}

// Value is a command argument.
type Value struct {
	kind ValueKind
	str  string
	num  int64
	flt  float64
	raw  []byte
	list []Value
	dict Dict
	obj  any
}

// StringValue returns a string Value.
func StringValue(s string) Value { return Value{kind: KindString, str: s} }

// IntValue returns an integer Value.
func IntValue(n int64) Value { return Value{kind: KindInt, num: n} }

// FloatValue returns a floating point Value.
func FloatValue(f float64) Value { return Value{kind: KindFloat, flt: f} }

// BytesValue returns a byte string Value.
func BytesValue(b []byte) Value { return Value{kind: KindBytes, raw: b} }

// BoolValue returns a boolean Value.
func BoolValue(b bool) Value { return Value{kind: KindBool, num: boolInt(b)} }

// ListValue returns a list Value.
func ListValue(items ...Value) Value { return Value{kind: KindList, list: items} }

// DictValue returns a dict Value.
func DictValue(d Dict) Value { return Value{kind: KindDict, dict: d} }

// ObjectValue wraps an arbitrary host value.
func ObjectValue(v any) Value { return Value{kind: KindObject, obj: v} }

func boolInt(b bool) int64 {
	if b {
		return 1
	}

	return 0
}

// ValueOf converts a Go value to a Value. Values that have no KoiLang
// literal form become objects.
func ValueOf(v any) Value {
	switch x := v.(type) {
	case Value:
		return x
	case Dict:
		return DictValue(x)
	case []Value:
		return ListValue(x...)
	case string:
		return StringValue(x)
	case []byte:
		return BytesValue(x)
	case bool:
		return BoolValue(x)
	case int:
		return IntValue(int64(x))
	case int8:
		return IntValue(int64(x))
	case int16:
		return IntValue(int64(x))
	case int32:
		return IntValue(int64(x))
	case int64:
		return IntValue(x)
	case uint:
		return IntValue(int64(x))
	case uint8:
		return IntValue(int64(x))
	case uint16:
		return IntValue(int64(x))
	case uint32:
		return IntValue(int64(x))
	case uint64:
		return IntValue(int64(x))
	case float32:
		return FloatValue(float64(x))
	case float64:
		return FloatValue(x)
	case []any:
		items := make([]Value, len(x))
		for i, e := range x {
			items[i] = ValueOf(e)
		}

		return ListValue(items...)
	case map[string]any:
		var d Dict
		for _, k := range slices.Sorted(maps.Keys(x)) {
			d = d.With(k, ValueOf(x[k]))
		}

		return DictValue(d)
	default:
		return ObjectValue(v)
	}
}

// Kind returns the variant held by v.
func (v Value) Kind() ValueKind { return v.kind }

// IsZero reports whether v is the zero Value.
func (v Value) IsZero() bool { return v.kind == KindNone }

// Str returns the string held by v.
func (v Value) Str() (string, bool) { return v.str, v.kind == KindString }

// Int returns the integer held by v. Floats with no fractional part and
// booleans convert.
func (v Value) Int() (int64, bool) {
	switch v.kind {
	case KindInt, KindBool:
		return v.num, true
	case KindFloat:
		if v.flt == math.Trunc(v.flt) {
			return int64(v.flt), true
		}
	}

	return 0, false
}

// Float returns the number held by v as a float64.
func (v Value) Float() (float64, bool) {
	switch v.kind {
	case KindFloat:
		return v.flt, true
	case KindInt:
		return float64(v.num), true
	}

	return 0, false
}

// Bytes returns the byte string held by v.
func (v Value) Bytes() ([]byte, bool) { return v.raw, v.kind == KindBytes }

// Bool returns the boolean held by v.
func (v Value) Bool() (bool, bool) { return v.num != 0, v.kind == KindBool }

// List returns the items of a list Value.
func (v Value) List() ([]Value, bool) { return v.list, v.kind == KindList }

// Dict returns the fields of a dict Value.
func (v Value) Dict() (Dict, bool) { return v.dict, v.kind == KindDict }

// Object returns the host value of an object Value.
func (v Value) Object() (any, bool) { return v.obj, v.kind == KindObject }

// Any converts v to a plain Go value: string, int64, float64, []byte,
// bool, []any, map[string]any, or the wrapped object.
func (v Value) Any() any {
	switch v.kind {
	case KindString:
		return v.str
	case KindInt:
		return v.num
	case KindFloat:
		return v.flt
	case KindBytes:
		return v.raw
	case KindBool:
		return v.num != 0
	case KindList:
		out := make([]any, len(v.list))
		for i, e := range v.list {
			out[i] = e.Any()
		}

		return out
	case KindDict:
		out := make(map[string]any, len(v.dict))
		for _, f := range v.dict {
			out[f.Name] = f.Value.Any()
		}

		return out
	case KindObject:
		return v.obj
	default:
		return nil
	}
}

// Truthy reports whether v counts as true: non-zero numbers, non-empty
// strings, bytes and bodies, true, and non-nil objects.
func (v Value) Truthy() bool {
	switch v.kind {
	case KindString:
		return v.str != ""
	case KindInt, KindBool:
		return v.num != 0
	case KindFloat:
		return v.flt != 0
	case KindBytes:
		return len(v.raw) > 0
	case KindList:
		return len(v.list) > 0
	case KindDict:
		return len(v.dict) > 0
	case KindObject:
		if v.obj == nil {
			return false
		}

		if b, ok := v.obj.(bool); ok {
			return b
		}

		return true
	default:
		return false
	}
}

// Equal reports whether v and w hold the same variant and value.
func (v Value) Equal(w Value) bool {
	if v.kind != w.kind {
		return false
	}

	switch v.kind {
	case KindString:
		return v.str == w.str
	case KindInt, KindBool:
		return v.num == w.num
	case KindFloat:
		return v.flt == w.flt || (math.IsNaN(v.flt) && math.IsNaN(w.flt))
	case KindBytes:
		return bytes.Equal(v.raw, w.raw)
	case KindList:
		return slices.EqualFunc(v.list, w.list, Value.Equal)
	case KindDict:
		return v.dict.Equal(w.dict)
	case KindObject:
		return reflect.DeepEqual(v.obj, w.obj)
	default:
		return true
	}
}

// String renders v as a KoiLang argument.
func (v Value) String() string {
	var b strings.Builder
	v.write(&b)

	return b.String()
}

func (v Value) write(b *strings.Builder) {
	switch v.kind {
	case KindString:
		if IsIdent(v.str) {
			b.WriteString(v.str)
		} else {
			b.WriteString(Quote(v.str))
		}

	case KindInt:
		b.WriteString(strconv.FormatInt(v.num, 10))

	case KindFloat:
		b.WriteString(FormatFloat(v.flt))

	case KindBytes:
		b.WriteString(QuoteBytes(v.raw))

	case KindBool:
		if v.num != 0 {
			b.WriteString("1")
		} else {
			b.WriteString("0")
		}

	case KindList:
		for i, e := range v.list {
			if i > 0 {
				b.WriteString(", ")
			}

			e.writeItem(b)
		}

	case KindDict:
		for i, f := range v.dict {
			if i > 0 {
				b.WriteString(", ")
			}

			b.WriteString(f.Name)
			b.WriteString(": ")
			f.Value.writeItem(b)
		}

	case KindObject:
		b.WriteString(Quote(fmt.Sprint(v.obj)))
	}
}

// writeItem renders a value nested in a body. A single-field dict is the
// nested keyword form name(...); other nested bodies have no literal form.
func (v Value) writeItem(b *strings.Builder) {
	switch v.kind {
	case KindDict:
		if len(v.dict) == 1 && IsIdent(v.dict[0].Name) {
			b.WriteString(v.dict[0].Name)
			b.WriteByte('(')
			v.dict[0].Value.write(b)
			b.WriteByte(')')

			return
		}

		b.WriteString(Quote(v.String()))

	case KindList:
		b.WriteString(Quote(v.String()))

	default:
		v.write(b)
	}
}

// Field is one named value of a [Dict].
type Field struct {
	Name  string
	Value Value
}

// Dict is an insertion-ordered set of named values.
type Dict []Field

// Get returns the value stored under name.
func (d Dict) Get(name string) (Value, bool) {
	for _, f := range d {
		if f.Name == name {
			return f.Value, true
		}
	}

	return Value{}, false
}

// Has reports whether name is present.
func (d Dict) Has(name string) bool {
	_, ok := d.Get(name)

	return ok
}

// With returns d with name set to v, replacing an existing field in place.
func (d Dict) With(name string, v Value) Dict {
	for i, f := range d {
		if f.Name == name {
			out := slices.Clone(d)
			out[i].Value = v

			return out
		}
	}

	return append(slices.Clip(d), Field{Name: name, Value: v})
}

// Names returns the field names in order.
func (d Dict) Names() []string {
	names := make([]string, len(d))
	for i, f := range d {
		names[i] = f.Name
	}

	return names
}

// All returns an iterator over the fields in order.
func (d Dict) All() iter.Seq2[string, Value] {
	return func(yield func(string, Value) bool) {
		for _, f := range d {
			if !yield(f.Name, f.Value) {
				return
			}
		}
	}
}

// Equal reports whether d and e hold the same fields in the same order.
func (d Dict) Equal(e Dict) bool {
	return slices.EqualFunc(d, e, func(a, b Field) bool {
		return a.Name == b.Name && a.Value.Equal(b.Value)
	})
}

// IsIdent reports whether s can be written as a bareword.
func IsIdent(s string) bool {
	if s == "" {
		return false
	}

	for i, r := range s {
		if r == '_' || unicode.IsLetter(r) || (i > 0 && unicode.IsDigit(r)) {
			continue
		}

		return false
	}

	return true
}

// Quote renders s as a double-quoted KoiLang string.
func Quote(s string) string {
	var b strings.Builder

	b.WriteByte('"')

	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		case '\r':
			b.WriteString(`\r`)
		case 0:
			b.WriteString(`\0`)
		default:
			switch {
			case r < 0x20 || r == 0x7f:
				fmt.Fprintf(&b, `\x%02x`, r)
			case !unicode.IsPrint(r) && r <= 0xffff:
				fmt.Fprintf(&b, `\u%04x`, r)
			case !unicode.IsPrint(r):
				fmt.Fprintf(&b, `\U%08x`, r)
			default:
				b.WriteRune(r)
			}
		}
	}

	b.WriteByte('"')

	return b.String()
}

// QuoteBytes renders b as a KoiLang byte string.
func QuoteBytes(p []byte) string {
	var b strings.Builder

	b.WriteString(`b"`)

	for _, c := range p {
		switch {
		case c == '"':
			b.WriteString(`\"`)
		case c == '\\':
			b.WriteString(`\\`)
		case c < 0x20 || c >= 0x7f:
			fmt.Fprintf(&b, `\x%02x`, c)
		default:
			b.WriteByte(c)
		}
	}

	b.WriteByte('"')

	return b.String()
}

// FormatFloat renders f so that it reads back as a float.
func FormatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eEnN") {
		s += ".0"
	}

	return s
}
