package codegen

import (
	"fmt"

	"github.com/xplshn/elz/pkg/ast"
	"github.com/xplshn/elz/pkg/config"
	"github.com/xplshn/elz/pkg/ir"
	"github.com/xplshn/elz/pkg/types"
)

// InitFunction is synthesized to run the global initializers that are not literals
const InitFunction = "elz::init"

type symbolType int

const (
	symLocal symbolType = iota
	symGlobal
	symFunc
)

type symbol struct {
	Name  string
	Type  symbolType
	IRVal ir.Value
	Next  *symbol
}

type scope struct {
	Symbols *symbol
	Parent  *scope
}

// Context lowers one checked program into an ir.Module
type Context struct {
	module       *ir.Module
	cfg          *config.Config
	currentScope *scope
	globalScope  *scope
	currentFunc  *ir.Function
	body         *ir.Body
	classes      map[string]*ast.Class
	// self is the receiver while lowering an instance method, nil otherwise
	self     ir.Value
	class    *ast.Class
	initBody *ir.Body
	// storage names the global being initialized; objects and lists built for
	// it live in module storage instead of the elz::init frame
	storage      string
	storageCount int
}

func NewContext(cfg *config.Config) *Context {
	global := newScope(nil)
	return &Context{
		module:       ir.NewModule(),
		cfg:          cfg,
		currentScope: global,
		globalScope:  global,
		classes:      make(map[string]*ast.Class),
	}
}

// GenerateIR lowers a program that passed type checking. It panics on
// input the checker would have rejected.
func GenerateIR(program []*ast.TopAst, cfg *config.Config) *ir.Module {
	return NewContext(cfg).GenerateIR(program)
}

func newScope(parent *scope) *scope { return &scope{Parent: parent} }

func (ctx *Context) enterScope() { ctx.currentScope = newScope(ctx.currentScope) }
func (ctx *Context) exitScope() {
	if ctx.currentScope.Parent != nil {
		ctx.currentScope = ctx.currentScope.Parent
	}
}

func (ctx *Context) findSymbol(name string) *symbol {
	for s := ctx.currentScope; s != nil; s = s.Parent {
		for sym := s.Symbols; sym != nil; sym = sym.Next {
			if sym.Name == name {
				return sym
			}
		}
	}
	return nil
}

func (ctx *Context) addSymbol(name string, symType symbolType, val ir.Value) {
	ctx.currentScope.Symbols = &symbol{Name: name, Type: symType, IRVal: val, Next: ctx.currentScope.Symbols}
}

func (ctx *Context) emit(inst ir.Instruction) { ctx.body.Emit(inst) }

func (ctx *Context) GenerateIR(program []*ast.TopAst) *ir.Module {
	ctx.collectGlobals(program)
	for _, top := range program {
		switch d := top.Variant.(type) {
		case *ast.Variable:
			ctx.codegenGlobalVar(d)
		case *ast.Function:
			ctx.codegenFunc(d.Name, d, nil)
		case *ast.Class:
			for _, m := range d.StaticMethods {
				ctx.codegenFunc(ir.Mangle(d.Name, m.Name), m, nil)
			}
			for _, m := range d.Methods {
				ctx.codegenFunc(ir.Mangle(d.Name, m.Name), m, d)
			}
		}
	}
	if ctx.initBody != nil {
		ctx.initBody.Emit(&ir.Return{})
		ctx.initBody.Number()
		ctx.module.AddFunction(&ir.Function{Name: InitFunction, Ret: ir.Void{}, Body: ctx.initBody})
	}
	ctx.module.NumberGlobals()
	return ctx.module
}

// collectGlobals registers every class layout, function return type and global
// variable type so bodies can refer to declarations that come later.
func (ctx *Context) collectGlobals(program []*ast.TopAst) {
	for _, top := range program {
		if c, ok := top.Variant.(*ast.Class); ok {
			ctx.classes[c.Name] = c
			s := &ir.Struct{Name: c.Name}
			for _, f := range c.Fields {
				s.Fields = append(s.Fields, ir.StructField{Name: f.Name, Typ: ctx.irType(f.Resolved)})
			}
			ctx.module.RegisterType(s)
		}
	}
	for _, top := range program {
		switch d := top.Variant.(type) {
		case *ast.Class:
			for _, m := range append(append([]*ast.Function{}, d.StaticMethods...), d.Methods...) {
				ctx.declareFunc(ir.Mangle(d.Name, m.Name), m)
			}
		case *ast.Function:
			ctx.declareFunc(d.Name, d)
		case *ast.Variable:
			t := ctx.irType(d.Resolved)
			ctx.module.DeclareVariable(d.Name, t)
			ctx.globalScope.Symbols = &symbol{
				Name: d.Name, Type: symGlobal, IRVal: ir.Identifier{Typ: ir.Pointer{Elem: t}, Name: d.Name, Global: true},
				Next: ctx.globalScope.Symbols,
			}
		}
	}
}

func (ctx *Context) declareFunc(name string, f *ast.Function) {
	ret := ctx.irType(f.Signature.Ret)
	ctx.module.DeclareFunction(name, ret)
	ctx.globalScope.Symbols = &symbol{
		Name: name, Type: symFunc, IRVal: ir.Identifier{Typ: ret, Name: name, Global: true}, Next: ctx.globalScope.Symbols,
	}
}

// irType maps a checked type onto its IR representation
func (ctx *Context) irType(t types.Type) ir.Type {
	switch t := types.Resolve(t).(type) {
	case types.Basic:
		switch t {
		case types.Void:
			return ir.Void{}
		case types.Int:
			return ir.I64
		case types.F64:
			return ir.F64
		case types.Bool:
			return ir.I1
		case types.CString:
			return ir.Pointer{Elem: ir.I8}
		case types.String:
			ctx.registerStringType()
			return stringType
		}
	case *types.Class:
		return ir.Pointer{Elem: ir.Named{Name: t.Name}}
	case types.List:
		return ir.Pointer{Elem: ctx.irType(t.Elem)}
	case *types.FreeVar:
		// an element type nothing constrained, e.g. a list literal that is never read
		return ir.I64
	}
	panic(fmt.Sprintf("codegen: no IR type for %v", t))
}

var stringType = ir.Pointer{Elem: ir.Named{Name: "string"}}

func (ctx *Context) registerStringType() {
	if _, ok := ctx.module.Types["string"]; !ok {
		ctx.module.RegisterType(&ir.Struct{Name: "string", Fields: []ir.StructField{{Name: "ptr", Typ: ir.Pointer{Elem: ir.I8}}}})
	}
}

// declareRuntime adds a declaration for a runtime function the first time it is called
func (ctx *Context) declareRuntime(name string, ret ir.Type, params ...ir.Param) {
	if _, ok := ctx.module.Functions[name]; ok {
		return
	}
	ctx.module.DeclareFunction(name, ret)
	ctx.module.AddFunction(&ir.Function{Name: name, Params: params, Ret: ret})
}

func isLiteral(e *ast.Expr) bool {
	switch e.Variant.(type) {
	case *ast.IntLit, *ast.FloatLit, *ast.BoolLit:
		return true
	}
	return false
}

func (ctx *Context) codegenGlobalVar(d *ast.Variable) {
	t := ctx.irType(d.Resolved)
	if isLiteral(d.Expr) {
		ctx.module.AddVariable(&ir.Variable{Name: d.Name, Typ: t, Init: ctx.codegenLiteral(d.Expr)})
		return
	}
	ctx.module.AddVariable(&ir.Variable{Name: d.Name, Typ: t, Init: ir.Zero{Typ: t}})

	if ctx.initBody == nil {
		ctx.initBody = ir.NewBody()
	}
	prevBody := ctx.body
	ctx.body, ctx.storage, ctx.storageCount = ctx.initBody, d.Name, 0
	defer func() { ctx.body, ctx.storage = prevBody, "" }()

	val := ctx.codegenExpr(d.Expr)
	ctx.emit(&ir.Store{Source: val, Dest: ir.Identifier{Typ: ir.Pointer{Elem: t}, Name: d.Name, Global: true}})
}

// codegenFunc lowers a function, a static method (class == nil) or an instance method
func (ctx *Context) codegenFunc(name string, d *ast.Function, class *ast.Class) {
	fn := &ir.Function{Name: name, Ret: ctx.irType(d.Signature.Ret)}
	for i, p := range d.Parameters {
		fn.Params = append(fn.Params, ir.Param{Name: p.Name, Typ: ctx.irType(d.Signature.Params[i].Type)})
	}
	ctx.module.AddFunction(fn)
	if d.Body == nil {
		return
	}

	prevFunc, prevBody, prevSelf, prevClass := ctx.currentFunc, ctx.body, ctx.self, ctx.class
	ctx.currentFunc, ctx.body, ctx.self, ctx.class = fn, ir.NewBody(), nil, class
	defer func() { ctx.currentFunc, ctx.body, ctx.self, ctx.class = prevFunc, prevBody, prevSelf, prevClass }()
	fn.Body = ctx.body

	ctx.enterScope()
	defer ctx.exitScope()

	for _, p := range fn.Params {
		val := ir.Identifier{Typ: p.Typ, Name: p.Name}
		ctx.body.Locals[p.Name] = p.Typ
		ctx.addSymbol(p.Name, symLocal, val)
	}
	if class != nil && len(fn.Params) > 0 {
		ctx.self = ir.Identifier{Typ: fn.Params[0].Typ, Name: fn.Params[0].Name}
	}

	if d.Body.Expr != nil {
		val := ctx.codegenExpr(d.Body.Expr)
		if _, isVoid := fn.Ret.(ir.Void); isVoid {
			val = nil
		}
		ctx.emit(&ir.Return{Value: val})
	} else {
		ctx.codegenBlock(d.Body.Block)
		if !ctx.body.EndsInTerminator() {
			if _, isVoid := fn.Ret.(ir.Void); isVoid {
				ctx.emit(&ir.Return{})
			} else {
				ctx.emit(&ir.Unreachable{})
			}
		}
	}
	ctx.body.Number()
}

func (ctx *Context) codegenBlock(b *ast.Block) {
	for _, stmt := range b.Statements {
		ctx.codegenStmt(stmt)
	}
}

func (ctx *Context) codegenStmt(stmt *ast.Statement) {
	switch s := stmt.Variant.(type) {
	case *ast.ReturnStmt:
		ctx.codegenReturn(s)
	case *ast.ExprStmt:
		ctx.codegenExpr(s.Expr)
	case *ast.Variable:
		val := ctx.codegenExpr(s.Expr)
		ctx.body.Locals[s.Name] = ctx.irType(s.Resolved)
		ctx.addSymbol(s.Name, symLocal, val)
	case *ast.IfBlock:
		ctx.codegenIf(s)
	default:
		panic(fmt.Sprintf("codegen: unknown statement %T", stmt.Variant))
	}
}

func (ctx *Context) codegenReturn(s *ast.ReturnStmt) {
	var val ir.Value
	if s.Expr != nil {
		val = ctx.codegenExpr(s.Expr)
	}
	if _, isVoid := ctx.currentFunc.Ret.(ir.Void); isVoid {
		val = nil
	}
	ctx.emit(&ir.Return{Value: val})
}

// codegenIf lowers an if/else-if/else chain into a linear stream: every clause
// branches to its own block or to the next test, and blocks that do not end in
// a terminator jump to one shared leave label.
func (ctx *Context) codegenIf(s *ast.IfBlock) {
	leave := ctx.body.NewLabel()
	for _, clause := range s.Clauses {
		then, next := ctx.body.NewLabel(), ctx.body.NewLabel()
		cond := ctx.codegenExpr(clause.Cond)
		ctx.emit(&ir.Branch{Cond: cond, IfTrue: then, IfFalse: next})
		ctx.emit(&then)
		ctx.codegenScopedBlock(clause.Block)
		if !ctx.body.EndsInTerminator() {
			ctx.emit(&ir.Goto{Target: leave})
		}
		ctx.emit(&next)
	}
	ctx.codegenScopedBlock(s.Else)
	if !ctx.body.EndsInTerminator() {
		ctx.emit(&ir.Goto{Target: leave})
	}
	ctx.emit(&leave)
}

func (ctx *Context) codegenScopedBlock(b *ast.Block) {
	ctx.enterScope()
	defer ctx.exitScope()
	ctx.codegenBlock(b)
}
