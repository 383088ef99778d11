// Package ast defines the types used to represent the Abstract Syntax Tree (AST)
package ast

import (
	"strings"

	"github.com/xplshn/elz/pkg/token"
	"github.com/xplshn/elz/pkg/types"
)

// Location is the source position a node was parsed from
type Location struct {
	File   string
	Line   int
	Column int
	Tok    token.Token
}

func LocationOf(file string, tok token.Token) Location {
	return Location{File: file, Line: tok.Line, Column: tok.Column, Tok: tok}
}

// Tag is attribute metadata written as `@name` or `@name(a, b)` before a top-level declaration
type Tag struct {
	Name string
	Args []string
}

// ParsedType is a syntactic type: a bare name or a name applied to type arguments
type ParsedType struct {
	Name string
	Args []*ParsedType
}

func TypeName(name string) *ParsedType { return &ParsedType{Name: name} }

func GenericType(name string, args []*ParsedType) *ParsedType {
	return &ParsedType{Name: name, Args: args}
}

func (t *ParsedType) String() string {
	if len(t.Args) == 0 {
		return t.Name
	}
	args := make([]string, len(t.Args))
	for i, a := range t.Args {
		args[i] = a.String()
	}
	return t.Name + "[" + strings.Join(args, ", ") + "]"
}

// --- Top level ---

type TopAst struct {
	Location Location
	Tags     []Tag
	Variant  TopVariant
}

// TopVariant is one of *Variable, *Function, *Class, *Trait, *Import
type TopVariant interface{ isTop() }

func (*Variable) isTop() {}
func (*Function) isTop() {}
func (*Class) isTop()    {}
func (*Trait) isTop()    {}
func (*Import) isTop()   {}

func (t *TopAst) HasTag(name string) bool {
	for _, tag := range t.Tags {
		if tag.Name == name {
			return true
		}
	}
	return false
}

type Variable struct {
	Location Location
	Name     string
	Type     *ParsedType
	Expr     *Expr
	Resolved types.Type // Set by the type checker
}

type Parameter struct {
	Name     string
	Type     *ParsedType
	Resolved types.Type // Set by the type checker
}

type Function struct {
	Location   Location
	Name       string
	Parameters []*Parameter
	RetType    *ParsedType
	Body       *Body           // nil for a declaration
	Signature  *types.Function // Set by the type checker
}

// IsDeclaration reports whether the function has no body, e.g. `foo(): void;`
func (f *Function) IsDeclaration() bool { return f.Body == nil }

// Body is exactly one of an expression body (`= expr;`) or a block body
type Body struct {
	Expr  *Expr
	Block *Block
}

type Field struct {
	Location Location
	Name     string
	Type     *ParsedType
	Default  *Expr // optional default initializer
	Resolved types.Type
}

type Class struct {
	Location      Location
	Name          string
	Fields        []*Field
	Methods       []*Function
	StaticMethods []*Function
	Resolved      *types.Class // Set by the type checker
}

type Trait struct {
	Location Location
	Name     string
	Methods  []*Function
}

type Import struct {
	Location Location
	Chain    []string
	Blocks   []string
}

// --- Statements ---

type Block struct {
	Location   Location
	Statements []*Statement
}

type Statement struct {
	Location Location
	Variant  StmtVariant
}

// StmtVariant is one of *ReturnStmt, *ExprStmt, *Variable, *IfBlock
type StmtVariant interface{ isStmt() }

type ReturnStmt struct{ Expr *Expr } // Expr is nil for a bare `return;`
type ExprStmt struct{ Expr *Expr }

type IfClause struct {
	Cond  *Expr
	Block *Block
}

// IfBlock is `if c1 {} else if c2 {} else {}`; Else is never nil, an absent else is an empty block
type IfBlock struct {
	Clauses []IfClause
	Else    *Block
}

func (*ReturnStmt) isStmt() {}
func (*ExprStmt) isStmt()   {}
func (*Variable) isStmt()   {}
func (*IfBlock) isStmt()    {}

// --- Expressions ---

type Operator int

const (
	OpAdd Operator = iota
	OpSub
	OpMul
	OpDiv
	OpEq
	OpNe
	OpLt
	OpGt
	OpLe
	OpGe
)

var operatorStrings = [...]string{"+", "-", "*", "/", "==", "!=", "<", ">", "<=", ">="}

func (o Operator) String() string { return operatorStrings[o] }

// IsComparison reports whether the operator yields a boolean
func (o Operator) IsComparison() bool { return o >= OpEq }

func OperatorFromToken(t token.Type) (Operator, bool) {
	switch t {
	case token.Plus: return OpAdd, true
	case token.Minus: return OpSub, true
	case token.Star: return OpMul, true
	case token.Slash: return OpDiv, true
	case token.EqEq: return OpEq, true
	case token.Neq: return OpNe, true
	case token.Lt: return OpLt, true
	case token.Gt: return OpGt, true
	case token.Lte: return OpLe, true
	case token.Gte: return OpGe, true
	}
	return 0, false
}

type Expr struct {
	Location Location
	Variant  ExprVariant
	Typ      types.Type // Set by the type checker
}

// ExprVariant is the closed set of expression forms
type ExprVariant interface{ isExpr() }

type IntLit struct{ Value int64 }
type FloatLit struct{ Value float64 }
type BoolLit struct{ Value bool }
type StringLit struct{ Value string }
type ListLit struct{ Elems []*Expr }
type Ident struct{ Name string }
type Binary struct {
	Op       Operator
	Lhs, Rhs *Expr
}
type Argument struct {
	Name string // empty for a positional argument
	Expr *Expr
}
type FuncCall struct {
	Func *Expr
	Args []*Argument
}
type MemberAccess struct {
	From   *Expr
	Member string
}
type FieldInit struct {
	Name string
	Expr *Expr
}
type ClassConstruction struct {
	Class string
	Inits []FieldInit
}

func (*IntLit) isExpr()            {}
func (*FloatLit) isExpr()          {}
func (*BoolLit) isExpr()           {}
func (*StringLit) isExpr()         {}
func (*ListLit) isExpr()           {}
func (*Ident) isExpr()             {}
func (*Binary) isExpr()            {}
func (*FuncCall) isExpr()          {}
func (*MemberAccess) isExpr()      {}
func (*ClassConstruction) isExpr() {}

// Init returns the initializer given for a field, or nil.
func (c *ClassConstruction) Init(field string) *Expr {
	for _, init := range c.Inits {
		if init.Name == field {
			return init.Expr
		}
	}
	return nil
}

// --- Constructors ---

func NewExpr(loc Location, v ExprVariant) *Expr { return &Expr{Location: loc, Variant: v} }

func NewInt(loc Location, v int64) *Expr        { return NewExpr(loc, &IntLit{Value: v}) }
func NewFloat(loc Location, v float64) *Expr    { return NewExpr(loc, &FloatLit{Value: v}) }
func NewBool(loc Location, v bool) *Expr        { return NewExpr(loc, &BoolLit{Value: v}) }
func NewString(loc Location, v string) *Expr    { return NewExpr(loc, &StringLit{Value: v}) }
func NewList(loc Location, elems []*Expr) *Expr { return NewExpr(loc, &ListLit{Elems: elems}) }
func NewIdent(loc Location, name string) *Expr  { return NewExpr(loc, &Ident{Name: name}) }
func NewBinary(loc Location, op Operator, lhs, rhs *Expr) *Expr {
	return NewExpr(loc, &Binary{Op: op, Lhs: lhs, Rhs: rhs})
}
func NewFuncCall(loc Location, fn *Expr, args []*Argument) *Expr {
	return NewExpr(loc, &FuncCall{Func: fn, Args: args})
}
func NewMemberAccess(loc Location, from *Expr, member string) *Expr {
	return NewExpr(loc, &MemberAccess{From: from, Member: member})
}
func NewClassConstruction(loc Location, class string, inits []FieldInit) *Expr {
	return NewExpr(loc, &ClassConstruction{Class: class, Inits: inits})
}

func NewStatement(loc Location, v StmtVariant) *Statement {
	return &Statement{Location: loc, Variant: v}
}
