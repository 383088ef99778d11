// Package ir is the low-level representation produced by lowering: typed
// values, linear instruction streams with explicit labels, and the module
// tables that own functions, globals and struct types.
package ir

import (
	"fmt"
	"sort"
)

// ID is an index into an arena of number slots. Instructions are built with
// unset slots; the slots receive their final numbers in one numbering pass.
type ID int

// NoID marks an instruction that produces no value
const NoID ID = -1

const unset = -1

type arena struct{ slots []int }

func (a *arena) newID() ID {
	a.slots = append(a.slots, unset)
	return ID(len(a.slots) - 1)
}

func (a *arena) set(id ID, n int) {
	if a.slots[id] != unset {
		panic(fmt.Sprintf("ir: id %d numbered twice", id))
	}
	a.slots[id] = n
}

func (a *arena) resolve(id ID) int {
	if id < 0 || int(id) >= len(a.slots) || a.slots[id] == unset {
		panic(fmt.Sprintf("ir: id %d read before numbering", id))
	}
	return a.slots[id]
}

// --- Values ---

type Value interface {
	isValue()
	Type() Type
}

type ConstI64 struct{ V int64 }
type ConstF64 struct{ V float64 }
type ConstBool struct{ V bool }

// ConstCString is raw bytes, the initializer of a hoisted string constant
type ConstCString struct{ V string }

// Zero is the zero value of a type, used for globals initialized at startup
type Zero struct{ Typ Type }

// Identifier names a parameter (%name) or a global (@name) directly
type Identifier struct {
	Typ    Type
	Name   string
	Global bool
}

// LocalIdentifier refers to the value produced by an instruction of the same body
type LocalIdentifier struct {
	Typ Type
	ID  ID
}

// GlobalIdentifier refers to an unnamed module-level constant
type GlobalIdentifier struct {
	Typ Type
	ID  ID
}

func (ConstI64) isValue()         {}
func (ConstF64) isValue()         {}
func (ConstBool) isValue()        {}
func (ConstCString) isValue()     {}
func (Zero) isValue()             {}
func (Identifier) isValue()       {}
func (LocalIdentifier) isValue()  {}
func (GlobalIdentifier) isValue() {}

func (ConstI64) Type() Type           { return I64 }
func (ConstF64) Type() Type           { return F64 }
func (ConstBool) Type() Type          { return I1 }
func (c ConstCString) Type() Type     { return Array{Len: len(c.V), Elem: I8} }
func (z Zero) Type() Type             { return z.Typ }
func (i Identifier) Type() Type       { return i.Typ }
func (i LocalIdentifier) Type() Type  { return i.Typ }
func (i GlobalIdentifier) Type() Type { return i.Typ }

// --- Instructions ---

type Instruction interface{ isInstruction() }

// Label is both a jump target reference and, emitted as an instruction, its definition
type Label struct{ ID ID }

type Return struct{ Value Value } // nil Value is `ret void`
type Branch struct {
	Cond            Value
	IfTrue, IfFalse Label
}
type Goto struct{ Target Label }

// Unreachable ends a block control cannot reach, e.g. the join point of an if chain whose clauses all return
type Unreachable struct{}

// GEP computes Base + path; Typ is the type of the resulting pointer
type GEP struct {
	ID      ID
	Typ     Type
	Base    Value
	Indices []int
}

// FunctionCall has ID NoID when Ret is Void
type FunctionCall struct {
	ID     ID
	Callee string
	Ret    Type
	Args   []Value
}

type BinaryOperation struct {
	ID       ID
	Op       string
	Typ      Type // operand type
	Lhs, Rhs Value
}

// Malloca allocates Typ on the stack, Count times when Count is not zero
type Malloca struct {
	ID    ID
	Typ   Type
	Count uint64
}

type BitCast struct {
	ID   ID
	From Value
	To   Type
}

type Load struct {
	ID   ID
	Typ  Type
	From Value
}

type Store struct {
	Source Value
	Dest   Value
}

func (*Label) isInstruction()           {}
func (*Return) isInstruction()          {}
func (*Branch) isInstruction()          {}
func (*Goto) isInstruction()            {}
func (*Unreachable) isInstruction()     {}
func (*GEP) isInstruction()             {}
func (*FunctionCall) isInstruction()    {}
func (*BinaryOperation) isInstruction() {}
func (*Malloca) isInstruction()         {}
func (*BitCast) isInstruction()         {}
func (*Load) isInstruction()            {}
func (*Store) isInstruction()           {}

// IsTerminator reports whether control never falls through past inst
func IsTerminator(inst Instruction) bool {
	switch inst.(type) {
	case *Return, *Branch, *Goto, *Unreachable:
		return true
	}
	return false
}

// ProducedID returns the id an instruction defines, or NoID
func ProducedID(inst Instruction) ID {
	switch i := inst.(type) {
	case *Label:
		return i.ID
	case *GEP:
		return i.ID
	case *FunctionCall:
		return i.ID
	case *BinaryOperation:
		return i.ID
	case *Malloca:
		return i.ID
	case *BitCast:
		return i.ID
	case *Load:
		return i.ID
	}
	return NoID
}

// --- Bodies and functions ---

type Body struct {
	Instructions []Instruction
	// Locals maps a source-level local name, parameters included, to its type
	Locals map[string]Type
	ids    arena
}

func NewBody() *Body { return &Body{Locals: make(map[string]Type)} }

func (b *Body) NewID() ID { return b.ids.newID() }

func (b *Body) NewLabel() Label { return Label{ID: b.NewID()} }

func (b *Body) Emit(inst Instruction) { b.Instructions = append(b.Instructions, inst) }

// Last returns the final instruction, or nil for an empty body
func (b *Body) Last() Instruction {
	if len(b.Instructions) == 0 {
		return nil
	}
	return b.Instructions[len(b.Instructions)-1]
}

func (b *Body) EndsInTerminator() bool {
	last := b.Last()
	return last != nil && IsTerminator(last)
}

// Number assigns sequential numbers, starting at 1, to every produced value and label in stream order
func (b *Body) Number() {
	n := 1
	for _, inst := range b.Instructions {
		if id := ProducedID(inst); id != NoID {
			b.ids.set(id, n)
			n++
		}
	}
}

// Resolve returns the number of id; it panics if Number has not reached it
func (b *Body) Resolve(id ID) int { return b.ids.resolve(id) }

// ValueCount is the number of slots handed out, numbered or not
func (b *Body) ValueCount() int { return len(b.ids.slots) }

type Param struct {
	Name string
	Typ  Type
}

type Function struct {
	Name   string // source name, mangled at the output boundary
	Params []Param
	Ret    Type
	Body   *Body // nil for a declaration
}

func (f *Function) IsDeclaration() bool { return f.Body == nil }

// Variable is a module global. A hoisted constant has an empty Name and a global ID.
type Variable struct {
	Name     string
	ID       ID
	Typ      Type
	Init     Value
	Constant bool
}

// --- Module ---

type Module struct {
	knownFunctions map[string]Type
	knownVariables map[string]Type

	Functions map[string]*Function
	order     []string
	Variables []*Variable
	Types     Types

	globals arena
}

func NewModule() *Module {
	return &Module{
		knownFunctions: make(map[string]Type),
		knownVariables: make(map[string]Type),
		Functions:      make(map[string]*Function),
		Types:          make(Types),
	}
}

// DeclareFunction records a function's return type ahead of lowering so forward calls resolve
func (m *Module) DeclareFunction(name string, ret Type) { m.knownFunctions[name] = ret }

func (m *Module) FunctionType(name string) (Type, bool) {
	t, ok := m.knownFunctions[name]
	return t, ok
}

func (m *Module) DeclareVariable(name string, t Type) { m.knownVariables[name] = t }

func (m *Module) VariableType(name string) (Type, bool) {
	t, ok := m.knownVariables[name]
	return t, ok
}

// AddFunction adds a lowered function; output order is insertion order
func (m *Module) AddFunction(f *Function) {
	if _, ok := m.Functions[f.Name]; !ok {
		m.order = append(m.order, f.Name)
	}
	m.Functions[f.Name] = f
}

// FunctionList returns the functions in the order they were added
func (m *Module) FunctionList() []*Function {
	out := make([]*Function, len(m.order))
	for i, name := range m.order {
		out[i] = m.Functions[name]
	}
	return out
}

func (m *Module) AddVariable(v *Variable) { m.Variables = append(m.Variables, v) }

// HoistString stores s as a private constant and returns a reference to it
func (m *Module) HoistString(s string) GlobalIdentifier {
	init := ConstCString{V: s}
	v := &Variable{ID: m.globals.newID(), Typ: init.Type(), Init: init, Constant: true}
	m.AddVariable(v)
	return GlobalIdentifier{Typ: Pointer{Elem: v.Typ}, ID: v.ID}
}

func (m *Module) RegisterType(s *Struct) { m.Types[s.Name] = s }

// TypeNames returns the registered struct names in sorted order
func (m *Module) TypeNames() []string {
	names := make([]string, 0, len(m.Types))
	for name := range m.Types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NumberGlobals numbers the module's unnamed constants from 0 in module order
func (m *Module) NumberGlobals() {
	n := 0
	for _, v := range m.Variables {
		if v.Name == "" {
			m.globals.set(v.ID, n)
			n++
		}
	}
}

func (m *Module) ResolveGlobal(id ID) int { return m.globals.resolve(id) }
