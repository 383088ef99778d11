package types

import "testing"

func TestInstantiate(t *testing.T) {
	list := &Generic{Name: "List", Params: []string{"T"}, Body: List{Elem: TypeParam{Name: "T"}}}
	got, err := list.Instantiate([]Type{Int})
	if err != nil {
		t.Fatalf("Instantiate: %v", err)
	}
	if got.String() != "List[int]" {
		t.Fatalf("Instantiate = %s, want List[int]", got)
	}
	if _, err := list.Instantiate(nil); err == nil {
		t.Fatalf("expected an arity error")
	}
}

func TestResolve(t *testing.T) {
	inner := &FreeVar{ID: 1}
	outer := &FreeVar{ID: 2, Bound: List{Elem: inner}}
	if !IsUnbound(inner) {
		t.Fatalf("fresh variable reported bound")
	}
	if got := Resolve(outer).String(); got != "List['1]" {
		t.Fatalf("Resolve = %s, want List['1]", got)
	}
	inner.Bound = Bool
	if IsUnbound(inner) {
		t.Fatalf("bound variable reported unbound")
	}
	if got := Resolve(outer); got != (List{Elem: Bool}) {
		t.Fatalf("Resolve = %s, want List[bool]", got)
	}
}

func TestFunctionHelpers(t *testing.T) {
	car := &Class{Name: "Car", Fields: []Field{{Name: "name", Type: String}, {Name: "wheels", Type: Int, HasDefault: true}}}
	f, i, ok := car.Field("wheels")
	if !ok || i != 1 || !f.HasDefault {
		t.Fatalf("Field(wheels) = %+v, %d, %v", f, i, ok)
	}
	if _, _, ok := car.Field("speed"); ok {
		t.Fatalf("unknown field found")
	}

	method := &Function{Params: []Param{{Name: "self", Type: car}, {Name: "n", Type: Int}}, Ret: Void}
	if got := method.WithoutSelf().String(); got != "(int): void" {
		t.Fatalf("WithoutSelf = %s, want (int): void", got)
	}
	if got := method.String(); got != "(Car, int): void" {
		t.Fatalf("String = %s", got)
	}
}
