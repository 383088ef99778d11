package ir

import (
	"fmt"
	"strings"

	"fortio.org/safecast"
)

// WordSize is the pointer width in bits
const WordSize = 64

type Type interface {
	isType()
	String() string
}

type Void struct{}
type Int struct{ Bits int }
type Float struct{ Bits int }
type Pointer struct{ Elem Type }
type Array struct {
	Len  int
	Elem Type
}
type StructField struct {
	Name string
	Typ  Type
}
type Struct struct {
	Name   string
	Fields []StructField
}

// Named is a forward reference to a Struct in the module's type table
type Named struct{ Name string }

func (Void) isType()    {}
func (Int) isType()     {}
func (Float) isType()   {}
func (Pointer) isType() {}
func (Array) isType()   {}
func (*Struct) isType() {}
func (Named) isType()   {}

func (Void) String() string      { return "void" }
func (t Int) String() string     { return fmt.Sprintf("i%d", t.Bits) }
func (t Pointer) String() string { return t.Elem.String() + "*" }
func (t Array) String() string   { return fmt.Sprintf("[%d x %s]", t.Len, t.Elem) }
func (t *Struct) String() string { return "%" + quoteName(t.Name) }
func (t Named) String() string   { return "%" + quoteName(t.Name) }
func (t Float) String() string {
	if t.Bits == 32 {
		return "float"
	}
	return "double"
}

var (
	I1  = Int{Bits: 1}
	I8  = Int{Bits: 8}
	I32 = Int{Bits: 32}
	I64 = Int{Bits: 64}
	F64 = Float{Bits: 64}
)

// Body renders the struct definition body, e.g. `{ i64, %string* }`
func (t *Struct) Body() string {
	fields := make([]string, len(t.Fields))
	for i, f := range t.Fields {
		fields[i] = f.Typ.String()
	}
	return "{ " + strings.Join(fields, ", ") + " }"
}

// FieldIndex returns the zero-based position of a field, or -1
func (t *Struct) FieldIndex(name string) int {
	for i, f := range t.Fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// FieldOffset returns the bit offset of field i: the sum of the sizes of the fields before it
func (t *Struct) FieldOffset(i int, table Types) uint64 {
	var off uint64
	for _, f := range t.Fields[:i] {
		off += table.SizeOf(f.Typ)
	}
	return off
}

// Types is the type table resolving Named references
type Types map[string]*Struct

// Resolve follows one level of Named indirection
func (table Types) Resolve(t Type) Type {
	n, ok := t.(Named)
	if !ok {
		return t
	}
	s, ok := table[n.Name]
	if !ok {
		panic(fmt.Sprintf("ir: unresolved type %%%s", n.Name))
	}
	return s
}

// SizeOf returns the size of t in bits. Structs are packed.
func (table Types) SizeOf(t Type) uint64 {
	switch t := table.Resolve(t).(type) {
	case Void:
		return 0
	case Int:
		return toSize(t.Bits)
	case Float:
		return toSize(t.Bits)
	case Pointer:
		return WordSize
	case Array:
		return toSize(t.Len) * table.SizeOf(t.Elem)
	case *Struct:
		var size uint64
		for _, f := range t.Fields {
			size += table.SizeOf(f.Typ)
		}
		return size
	}
	panic(fmt.Sprintf("ir: size of %s", t))
}

// StorageSize is the size of t in memory, in bytes. Each struct field takes
// its own word-aligned slot, which covers the natural layout of every field type.
func (table Types) StorageSize(t Type) uint64 {
	switch t := table.Resolve(t).(type) {
	case Array:
		return toSize(t.Len) * table.StorageSize(t.Elem)
	case *Struct:
		return table.StorageOffset(t, len(t.Fields))
	}
	return Bytes(table.SizeOf(t))
}

// StorageOffset is the byte offset of field i under the StorageSize layout
func (table Types) StorageOffset(s *Struct, i int) uint64 {
	var off uint64
	for _, f := range s.Fields[:i] {
		off += alignUp(table.StorageSize(f.Typ), WordSize/8)
	}
	return off
}

func alignUp(n, align uint64) uint64 { return (n + align - 1) / align * align }

// ElementType is the pointee of a pointer or the element of an array
func (table Types) ElementType(t Type) Type {
	switch t := table.Resolve(t).(type) {
	case Pointer:
		return t.Elem
	case Array:
		return t.Elem
	}
	panic(fmt.Sprintf("ir: %s has no element type", t))
}

// StructOf resolves t, or the pointee of t, to a struct
func (table Types) StructOf(t Type) *Struct {
	if p, ok := t.(Pointer); ok {
		t = p.Elem
	}
	s, ok := table.Resolve(t).(*Struct)
	if !ok {
		panic(fmt.Sprintf("ir: %s is not a struct", t))
	}
	return s
}

func toSize(n int) uint64 {
	size, err := safecast.Conv[uint64](n)
	if err != nil {
		panic(fmt.Sprintf("ir: negative size %d", n))
	}
	return size
}

// Bytes converts a bit size to whole bytes, rounding up
func Bytes(bits uint64) uint64 { return (bits + 7) / 8 }

// quoteName quotes symbol names that are not plain identifiers, e.g. `"C::m"`
func quoteName(name string) string {
	for _, r := range name {
		if !(r == '_' || r == '.' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return `"` + name + `"`
		}
	}
	return name
}

// Symbol renders the mangled global symbol of a source name: `@f` or `@"C::m"`
func Symbol(name string) string { return "@" + quoteName(name) }

// Mangle joins a class and member name the way the runtime expects
func Mangle(class, member string) string { return class + "::" + member }
