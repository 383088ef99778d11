package ir

import (
	"testing"
)

func TestSizes(t *testing.T) {
	table := Types{
		"Car":    {Name: "Car", Fields: []StructField{{"speed", I64}, {"on", I1}, {"name", Pointer{Elem: Named{"string"}}}}},
		"string": {Name: "string", Fields: []StructField{{"ptr", Pointer{Elem: I8}}}},
	}
	tests := []struct {
		typ  Type
		want uint64
	}{
		{Void{}, 0},
		{I1, 1},
		{I64, 64},
		{F64, 64},
		{Pointer{Elem: I8}, WordSize},
		{Array{Len: 3, Elem: I64}, 192},
		{Named{"Car"}, 64 + 1 + 64},
		{Array{Len: 2, Elem: Named{"string"}}, 128},
	}
	for _, tt := range tests {
		if got := table.SizeOf(tt.typ); got != tt.want {
			t.Fatalf("SizeOf(%s) = %d, want %d", tt.typ, got, tt.want)
		}
	}
	car := table["Car"]
	if off := car.FieldOffset(2, table); off != 65 {
		t.Fatalf("FieldOffset(2) = %d, want 65", off)
	}
	if car.FieldIndex("on") != 1 || car.FieldIndex("missing") != -1 {
		t.Fatalf("FieldIndex mismatch")
	}
	if got := table.StorageSize(Named{"Car"}); got != 24 {
		t.Fatalf("StorageSize(Car) = %d, want 24", got)
	}
	if got := table.StorageOffset(car, 2); got != 16 {
		t.Fatalf("StorageOffset(2) = %d, want 16", got)
	}
	if got := table.StorageSize(Array{Len: 3, Elem: I1}); got != 3 {
		t.Fatalf("StorageSize([3 x i1]) = %d, want 3", got)
	}
	if Bytes(129) != 17 {
		t.Fatalf("Bytes(129) = %d", Bytes(129))
	}
}

func TestUnresolvedNamedPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected a panic for an unresolved named type")
		}
	}()
	Types{}.SizeOf(Named{"Ghost"})
}

func TestElementType(t *testing.T) {
	table := Types{}
	if got := table.ElementType(Pointer{Elem: I64}); got != I64 {
		t.Fatalf("pointer element = %s", got)
	}
	if got := table.ElementType(Array{Len: 4, Elem: I1}); got != I1 {
		t.Fatalf("array element = %s", got)
	}
}

func TestTypeStrings(t *testing.T) {
	tests := map[string]Type{
		"i64":          I64,
		"double":       F64,
		"i8*":          Pointer{Elem: I8},
		"[5 x i8]":     Array{Len: 5, Elem: I8},
		"%Car":         Named{"Car"},
		`%"elz::Box"*`: Pointer{Elem: Named{"elz::Box"}},
	}
	for want, typ := range tests {
		if typ.String() != want {
			t.Fatalf("String() = %q, want %q", typ.String(), want)
		}
	}
	if Symbol("main") != "@main" || Symbol("Car::new") != `@"Car::new"` {
		t.Fatalf("symbol mangling mismatch")
	}
}

func TestNumbering(t *testing.T) {
	b := NewBody()
	leave := b.NewLabel()
	then := b.NewLabel()
	call := b.NewID()
	sum := b.NewID()
	cond := ConstBool{V: true}

	// the branch refers to labels defined later in the stream
	b.Emit(&Branch{Cond: cond, IfTrue: then, IfFalse: leave})
	b.Emit(&then)
	b.Emit(&FunctionCall{ID: NoID, Callee: "log", Ret: Void{}})
	b.Emit(&FunctionCall{ID: call, Callee: "f", Ret: I64})
	b.Emit(&BinaryOperation{ID: sum, Op: "add", Typ: I64, Lhs: LocalIdentifier{I64, call}, Rhs: ConstI64{1}})
	b.Emit(&Store{Source: LocalIdentifier{I64, sum}, Dest: Identifier{Typ: Pointer{Elem: I64}, Name: "g", Global: true}})
	b.Emit(&Goto{Target: leave})
	b.Emit(&leave)
	b.Emit(&Return{})
	b.Number()

	want := map[ID]int{then.ID: 1, call: 2, sum: 3, leave.ID: 4}
	for id, n := range want {
		if got := b.Resolve(id); got != n {
			t.Fatalf("id %d numbered %d, want %d", id, got, n)
		}
	}
}

func TestResolveBeforeNumberingPanics(t *testing.T) {
	b := NewBody()
	id := b.NewID()
	defer func() {
		if recover() == nil {
			t.Fatalf("expected a panic")
		}
	}()
	b.Resolve(id)
}

func TestTerminators(t *testing.T) {
	b := NewBody()
	if b.EndsInTerminator() {
		t.Fatalf("empty body has no terminator")
	}
	b.Emit(&Store{})
	if b.EndsInTerminator() {
		t.Fatalf("store is not a terminator")
	}
	for _, inst := range []Instruction{&Return{}, &Goto{}, &Branch{}, &Unreachable{}} {
		if !IsTerminator(inst) {
			t.Fatalf("%T must be a terminator", inst)
		}
	}
}

func TestModule(t *testing.T) {
	m := NewModule()
	m.AddFunction(&Function{Name: "main", Ret: Void{}})
	m.AddFunction(&Function{Name: "Car::new", Ret: I64})
	m.AddVariable(&Variable{Name: "x", Typ: I64, Init: ConstI64{1}})
	a := m.HoistString("hello")
	b := m.HoistString("!")
	m.NumberGlobals()
	if m.ResolveGlobal(a.ID) != 0 || m.ResolveGlobal(b.ID) != 1 {
		t.Fatalf("hoisted strings numbered %d, %d", m.ResolveGlobal(a.ID), m.ResolveGlobal(b.ID))
	}
	if a.Typ.String() != "[5 x i8]*" {
		t.Fatalf("hoisted string type = %s", a.Typ)
	}
	fns := m.FunctionList()
	if len(fns) != 2 || fns[0].Name != "main" || fns[1].Name != "Car::new" {
		t.Fatalf("function order = %v", fns)
	}
	m.RegisterType(&Struct{Name: "b"})
	m.RegisterType(&Struct{Name: "a"})
	if names := m.TypeNames(); names[0] != "a" || names[1] != "b" {
		t.Fatalf("type names = %v", names)
	}
}
