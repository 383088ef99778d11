package parser

import (
	"errors"
	"testing"

	"github.com/xplshn/elz/pkg/ast"
	"github.com/xplshn/elz/pkg/config"
)

func mustParse(t *testing.T, code string) []*ast.TopAst {
	t.Helper()
	program, err := ParseProgram("test.elz", code, config.NewConfig())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return program
}

func TestTopLevel(t *testing.T) {
	program := mustParse(t, `
x: int = 1;
add(x: int, y: int): int;
id(x: int): int = x;
main(): void {}
@test
import std::io::{print, read};
`)
	if len(program) != 5 {
		t.Fatalf("got %d declarations", len(program))
	}
	v := program[0].Variant.(*ast.Variable)
	if v.Name != "x" || v.Type.String() != "int" {
		t.Fatalf("variable = %+v", v)
	}
	add := program[1].Variant.(*ast.Function)
	if !add.IsDeclaration() || len(add.Parameters) != 2 {
		t.Fatalf("declaration = %+v", add)
	}
	if id := program[2].Variant.(*ast.Function); id.Body.Expr == nil {
		t.Fatalf("expected an expression body")
	}
	if main := program[3].Variant.(*ast.Function); main.Body.Block == nil || len(main.Body.Block.Statements) != 0 {
		t.Fatalf("expected an empty block body")
	}
	imp := program[4].Variant.(*ast.Import)
	if !program[4].HasTag("test") || len(imp.Chain) != 2 || len(imp.Blocks) != 2 {
		t.Fatalf("import = %+v tags = %+v", imp, program[4].Tags)
	}
}

func TestGenericType(t *testing.T) {
	program := mustParse(t, "m: List[List[int]] = [];")
	if got := program[0].Variant.(*ast.Variable).Type.String(); got != "List[List[int]]" {
		t.Fatalf("type = %q", got)
	}
}

func TestClass(t *testing.T) {
	program := mustParse(t, `
class Car {
  name: string;
  speed: int = 0;
  ::new(name: string): Car = Car{name: name};
  drive(): void {}
}`)
	c := program[0].Variant.(*ast.Class)
	if len(c.Fields) != 2 || c.Fields[1].Default == nil {
		t.Fatalf("fields = %+v", c.Fields)
	}
	if len(c.StaticMethods) != 1 || len(c.StaticMethods[0].Parameters) != 1 {
		t.Fatalf("static methods = %+v", c.StaticMethods)
	}
	drive := c.Methods[0]
	if len(drive.Parameters) != 1 || drive.Parameters[0].Name != "self" || drive.Parameters[0].Type.Name != "Car" {
		t.Fatalf("instance method must take self first: %+v", drive.Parameters)
	}
}

func TestPrecedence(t *testing.T) {
	program := mustParse(t, "x: bool = 1 + 2 * 3 == 7;")
	e := program[0].Variant.(*ast.Variable).Expr
	eq, ok := e.Variant.(*ast.Binary)
	if !ok || eq.Op != ast.OpEq {
		t.Fatalf("root = %+v", e.Variant)
	}
	add := eq.Lhs.Variant.(*ast.Binary)
	if add.Op != ast.OpAdd {
		t.Fatalf("lhs op = %s", add.Op)
	}
	if mul := add.Rhs.Variant.(*ast.Binary); mul.Op != ast.OpMul {
		t.Fatalf("rhs op = %s", mul.Op)
	}
}

func TestLeftAssociative(t *testing.T) {
	program := mustParse(t, "x: int = 8 - 4 - 2;")
	outer := program[0].Variant.(*ast.Variable).Expr.Variant.(*ast.Binary)
	if _, ok := outer.Lhs.Variant.(*ast.Binary); !ok {
		t.Fatalf("expected (8 - 4) - 2")
	}
}

func TestStatements(t *testing.T) {
	program := mustParse(t, `
f(v: Point): int {
  y: int = v.x;
  g(y);
  if y > 1 {
    return 1;
  } else if y < 0 {
    return 2;
  }
  return -3;
}`)
	stmts := program[0].Variant.(*ast.Function).Body.Block.Statements
	if len(stmts) != 4 {
		t.Fatalf("got %d statements", len(stmts))
	}
	if _, ok := stmts[0].Variant.(*ast.Variable); !ok {
		t.Fatalf("stmt 0 = %T", stmts[0].Variant)
	}
	if _, ok := stmts[1].Variant.(*ast.ExprStmt); !ok {
		t.Fatalf("stmt 1 = %T", stmts[1].Variant)
	}
	ifb := stmts[2].Variant.(*ast.IfBlock)
	if len(ifb.Clauses) != 2 || ifb.Else == nil || len(ifb.Else.Statements) != 0 {
		t.Fatalf("if block = %+v", ifb)
	}
	ret := stmts[3].Variant.(*ast.ReturnStmt)
	if lit := ret.Expr.Variant.(*ast.IntLit); lit.Value != -3 {
		t.Fatalf("return value = %d", lit.Value)
	}
}

func TestConditionIsNotConstruction(t *testing.T) {
	program := mustParse(t, "f(ok: bool): void {\n  if ok { g(Car{}); }\n}")
	ifb := program[0].Variant.(*ast.Function).Body.Block.Statements[0].Variant.(*ast.IfBlock)
	if _, ok := ifb.Clauses[0].Cond.Variant.(*ast.Ident); !ok {
		t.Fatalf("condition = %T", ifb.Clauses[0].Cond.Variant)
	}
}

func TestNamedArgs(t *testing.T) {
	program := mustParse(t, "x: int = f(a: 1, 2);")
	call := program[0].Variant.(*ast.Variable).Expr.Variant.(*ast.FuncCall)
	if call.Args[0].Name != "a" || call.Args[1].Name != "" {
		t.Fatalf("args = %+v", call.Args)
	}

	cfg := config.NewConfig()
	cfg.SetFeature(config.FeatNamedArgs, false)
	if _, err := ParseProgram("t.elz", "x: int = f(a: 1);", cfg); err == nil {
		t.Fatalf("expected named-args error")
	}
}

func TestStringTemplate(t *testing.T) {
	program := mustParse(t, `s: string = "a{name}b\n";`)
	outer := program[0].Variant.(*ast.Variable).Expr.Variant.(*ast.Binary)
	inner := outer.Lhs.Variant.(*ast.Binary)
	if inner.Lhs.Variant.(*ast.StringLit).Value != "a" {
		t.Fatalf("left = %+v", inner.Lhs.Variant)
	}
	if inner.Rhs.Variant.(*ast.Ident).Name != "name" {
		t.Fatalf("mid = %+v", inner.Rhs.Variant)
	}
	if outer.Rhs.Variant.(*ast.StringLit).Value != "b\n" {
		t.Fatalf("rest = %+v", outer.Rhs.Variant)
	}

	cfg := config.NewConfig()
	cfg.SetFeature(config.FeatStringTemplates, false)
	program, err := ParseProgram("t.elz", `s: string = "a{b}";`, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if lit := program[0].Variant.(*ast.Variable).Expr.Variant.(*ast.StringLit); lit.Value != "a{b}" {
		t.Fatalf("literal = %q", lit.Value)
	}
}

func TestSyntaxErrors(t *testing.T) {
	for _, code := range []string{
		"x: int = ;",
		"f(): int",
		"class { }",
		"x: int = 1",
		"f(x int): void;",
		`s: string = "{";`,
		"x: int = 99999999999999999999;",
	} {
		_, err := ParseProgram("t.elz", code, config.NewConfig())
		var perr *Error
		if !errors.As(err, &perr) {
			t.Fatalf("%q: expected *Error, got %v", code, err)
		}
	}
}
