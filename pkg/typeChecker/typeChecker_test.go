package typeChecker

import (
	"errors"
	"testing"

	"github.com/xplshn/elz/pkg/ast"
	"github.com/xplshn/elz/pkg/config"
	"github.com/xplshn/elz/pkg/parser"
	"github.com/xplshn/elz/pkg/types"
)

func parse(t *testing.T, code string) []*ast.TopAst {
	t.Helper()
	program, err := parser.ParseProgram("test.elz", code, config.NewConfig())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return program
}

func checkCode(t *testing.T, code string) ([]Warning, error) {
	t.Helper()
	return Check(parse(t, code), config.NewConfig())
}

func TestCheckPasses(t *testing.T) {
	tests := []struct {
		name string
		code string
	}{
		{"function call", "x(a: int): int = a;\ny: int = x(2);"},
		{"list literal", "x: List[int] = [1, 2, 3];"},
		{"empty list", "x: List[int] = [];"},
		{"return nothing", "x(): void {\n  return;\n}"},
		{"local then return", "x(): int {\n  y: int = 1;\n  return y;\n}"},
		{"forward reference", "main(): void { foo(1); }\nfoo(x: int): void {}"},
		{"declaration only", "add(x: int, y: int): int;"},
		{"if chain", `
f(x: int): int {
  if x < 0 {
    return 0;
  } else if x == 0 {
    return 1;
  } else {
    return x * 2;
  }
}`},
		{"sibling clause locals", `
f(b: bool): void {
  if b {
    y: int = 1;
  } else {
    y: int = 2;
  }
}`},
		{"class", `
class Car {
  name: string;
  wheels: int = 4;
  ::new(name: string): Car = Car{name: name};
  wheelCount(): int = wheels;
  rename(other: string): Car = Car{name: other, wheels: self.wheels};
}
main(): void {
  c: Car = Car::new("x");
  n: int = c.wheelCount();
}`},
		{"class declared later", `
class Garage { car: Car; }
class Car { speed: int; }`},
		{"string template", `greet(name: string): string = "hi {name}!";`},
		{"named args", "f(x: int, y: int): int = x + y;\nz: int = f(x: 1, y: 2);"},
		{"float arithmetic", "half(x: f64): f64 = x / 2.0;"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := checkCode(t, tt.code); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestCheckFails(t *testing.T) {
	tests := []struct {
		name string
		code string
		kind Kind
	}{
		{"redefine variable", "x: int = 1;\nx: int = 2;", NameRedefined},
		{"function and variable share a namespace", "x: int = 1;\nx(): void {}", NameRedefined},
		{"type mismatch", `x: int = "str";`, TypeMismatch},
		{"unknown type", "x: integer = 1;", UnknownType},
		{"generic without arguments", "x: List = [];", UnknownType},
		{"mixed list", `x: List[int] = [1, "a"];`, TypeMismatch},
		{"empty non-void body", "f(): int {}", DeadCodeAfterReturn},
		{"return not last", "f(): int {\n  return 1;\n  return 2;\n}", DeadCodeAfterReturn},
		{"missing else in non-void function", "f(b: bool): int {\n  if b { return 1; }\n}", DeadCodeAfterReturn},
		{"non-bool condition", "f(): void {\n  if 1 { }\n}", TypeMismatch},
		{"unused value", "f(): int = 1;\ng(): void {\n  f();\n}", TypeMismatch},
		{"undefined name", "f(): int = y;", UndefinedName},
		{"arity", "f(x: int): int = x;\ny: int = f();", TypeMismatch},
		{"wrong named arg", "f(x: int): int = x;\ny: int = f(z: 1);", TypeMismatch},
		{"field in static method", `
class C {
  v: int;
  ::get(): int = v;
}`, UndefinedName},
		{"missing field initializer", `
class C { v: int; }
c: C = C{};`, TypeMismatch},
		{"unknown field", `
class C { v: int; }
c: C = C{v: 1, w: 2};`, UndefinedName},
		{"trait", "trait Show {\n  show(): string;\n}", Unsupported},
		{"local redefined", "f(): void {\n  x: int = 1;\n  x: int = 2;\n}", NameRedefined},
		{"bool arithmetic", "f(a: bool): bool = a + a;", TypeMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := checkCode(t, tt.code)
			var serr *SemanticError
			if !errors.As(err, &serr) {
				t.Fatalf("expected a SemanticError, got %v", err)
			}
			if serr.Kind != tt.kind {
				t.Fatalf("kind = %q, want %q (%v)", serr.Kind.Description(), tt.kind.Description(), err)
			}
		})
	}
}

func TestDescriptions(t *testing.T) {
	want := map[Kind]string{
		UnknownType:         "unknown type",
		NameRedefined:       "name redefined",
		TypeMismatch:        "type mismatched",
		DeadCodeAfterReturn: "dead code after return statement",
		UndefinedName:       "undefined name",
		Unsupported:         "unsupported",
	}
	for k, d := range want {
		if k.Description() != d {
			t.Fatalf("%d.Description() = %q, want %q", k, k.Description(), d)
		}
	}
}

func TestErrorLocation(t *testing.T) {
	_, err := checkCode(t, "x: int = 1;\ny: int = \"no\";")
	var serr *SemanticError
	if !errors.As(err, &serr) {
		t.Fatalf("expected a SemanticError, got %v", err)
	}
	if serr.Location.Line != 2 || serr.Location.Column != 10 {
		t.Fatalf("location = %d:%d, want 2:10", serr.Location.Line, serr.Location.Column)
	}
}

func TestAnnotatesAST(t *testing.T) {
	program := parse(t, "x: List[int] = [];\nf(a: int): bool = a == 1;")
	if _, err := Check(program, config.NewConfig()); err != nil {
		t.Fatal(err)
	}
	v := program[0].Variant.(*ast.Variable)
	list, ok := types.Resolve(v.Expr.Typ).(types.List)
	if !ok || list.Elem != types.Int {
		t.Fatalf("empty list typed %v, want List[int]", types.Resolve(v.Expr.Typ))
	}
	f := program[1].Variant.(*ast.Function)
	if f.Signature == nil || f.Signature.Ret != types.Bool {
		t.Fatalf("signature = %v", f.Signature)
	}
	if f.Parameters[0].Resolved != types.Int {
		t.Fatalf("parameter resolved to %v", f.Parameters[0].Resolved)
	}
	if f.Body.Expr.Typ != types.Bool {
		t.Fatalf("body typed %v", f.Body.Expr.Typ)
	}
}

func TestWarnings(t *testing.T) {
	warnings, err := checkCode(t, `
import std::io;
f(x: int): void {
  if true {
    x: int = 2;
  }
}`)
	if err != nil {
		t.Fatal(err)
	}
	var shadow, imp bool
	for _, w := range warnings {
		switch w.Kind {
		case config.WarnShadow:
			shadow = true
		case config.WarnImport:
			imp = true
		}
	}
	if !shadow || !imp {
		t.Fatalf("warnings = %+v, want shadow and import", warnings)
	}
}

func TestUnify(t *testing.T) {
	v := &types.FreeVar{ID: 1}
	if !Unify(types.List{Elem: types.Int}, types.List{Elem: v}) {
		t.Fatalf("free variable must unify with int")
	}
	if v.Bound != types.Int {
		t.Fatalf("free variable bound to %v", v.Bound)
	}
	if Unify(types.List{Elem: types.F64}, types.List{Elem: v}) {
		t.Fatalf("bound variable must keep its binding")
	}
	if Unify(types.Int, types.F64) {
		t.Fatalf("int and f64 are distinct")
	}
	a, b := &types.Class{Name: "A"}, &types.Class{Name: "B"}
	if Unify(a, b) || !Unify(a, &types.Class{Name: "A"}) {
		t.Fatalf("classes unify by name")
	}
	w := &types.FreeVar{ID: 2}
	if Unify(w, types.List{Elem: w}) {
		t.Fatalf("occurs check must reject a cyclic binding")
	}
}
