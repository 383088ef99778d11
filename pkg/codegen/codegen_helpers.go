package codegen

import (
	"fmt"

	"github.com/xplshn/elz/pkg/ast"
	"github.com/xplshn/elz/pkg/ir"
	"github.com/xplshn/elz/pkg/types"
)

// codegenExpr lowers e and returns the value it produces, or nil for a void call
func (ctx *Context) codegenExpr(e *ast.Expr) ir.Value {
	switch v := e.Variant.(type) {
	case *ast.IntLit, *ast.FloatLit, *ast.BoolLit:
		return ctx.codegenLiteral(e)
	case *ast.StringLit:
		return ctx.codegenString(v.Value)
	case *ast.ListLit:
		return ctx.codegenList(e, v)
	case *ast.Ident:
		return ctx.codegenIdent(v.Name)
	case *ast.Binary:
		return ctx.codegenBinaryOp(v)
	case *ast.FuncCall:
		return ctx.codegenFuncCall(v)
	case *ast.MemberAccess:
		base := ctx.codegenExpr(v.From)
		return ctx.loadField(base, v.Member)
	case *ast.ClassConstruction:
		return ctx.codegenConstruction(v)
	}
	panic(fmt.Sprintf("codegen: unknown expression %T", e.Variant))
}

func (ctx *Context) codegenLiteral(e *ast.Expr) ir.Value {
	switch v := e.Variant.(type) {
	case *ast.IntLit:
		return ir.ConstI64{V: v.Value}
	case *ast.FloatLit:
		return ir.ConstF64{V: v.Value}
	case *ast.BoolLit:
		return ir.ConstBool{V: v.Value}
	}
	panic(fmt.Sprintf("codegen: %T is not a literal", e.Variant))
}

func (ctx *Context) local(t ir.Type, id ir.ID) ir.LocalIdentifier {
	return ir.LocalIdentifier{Typ: t, ID: id}
}

func (ctx *Context) gep(base ir.Value, elem ir.Type, indices ...int) ir.Value {
	id := ctx.body.NewID()
	typ := ir.Pointer{Elem: elem}
	ctx.emit(&ir.GEP{ID: id, Typ: typ, Base: base, Indices: indices})
	return ctx.local(typ, id)
}

func (ctx *Context) load(t ir.Type, from ir.Value) ir.Value {
	id := ctx.body.NewID()
	ctx.emit(&ir.Load{ID: id, Typ: t, From: from})
	return ctx.local(t, id)
}

func (ctx *Context) call(callee string, ret ir.Type, args []ir.Value) ir.Value {
	if _, isVoid := ret.(ir.Void); isVoid {
		ctx.emit(&ir.FunctionCall{ID: ir.NoID, Callee: callee, Ret: ret, Args: args})
		return nil
	}
	id := ctx.body.NewID()
	ctx.emit(&ir.FunctionCall{ID: id, Callee: callee, Ret: ret, Args: args})
	return ctx.local(ret, id)
}

// codegenString hoists the bytes into a constant, decays it to an i8* and wraps it with the runtime constructor
func (ctx *Context) codegenString(s string) ir.Value {
	ctx.registerStringType()
	ctx.declareRuntime("string::new", stringType, ir.Param{Name: "bytes", Typ: ir.Pointer{Elem: ir.I8}})
	global := ctx.module.HoistString(s)
	ptr := ctx.gep(global, ir.I8, 0, 0)
	return ctx.call("string::new", stringType, []ir.Value{ptr})
}

// globalStorage adds a zeroed module global of type t for the global being initialized
func (ctx *Context) globalStorage(t ir.Type) ir.Value {
	name := ctx.storage + ".storage"
	if ctx.storageCount > 0 {
		name = fmt.Sprintf("%s.%d", name, ctx.storageCount)
	}
	ctx.storageCount++
	ctx.module.AddVariable(&ir.Variable{Name: name, Typ: t, Init: ir.Zero{Typ: t}})
	return ir.Identifier{Typ: ir.Pointer{Elem: t}, Name: name, Global: true}
}

// codegenList stores the elements into an array and decays it to a pointer to the first element
func (ctx *Context) codegenList(e *ast.Expr, l *ast.ListLit) ir.Value {
	elem := ctx.module.Types.ElementType(ctx.irType(e.Typ))
	arrTyp := ir.Array{Len: len(l.Elems), Elem: elem}
	var arr ir.Value
	if ctx.storage != "" {
		arr = ctx.globalStorage(arrTyp)
	} else {
		id := ctx.body.NewID()
		ctx.emit(&ir.Malloca{ID: id, Typ: arrTyp})
		arr = ctx.local(ir.Pointer{Elem: arrTyp}, id)
	}
	for i, x := range l.Elems {
		val := ctx.codegenExpr(x)
		slot := ctx.gep(arr, elem, 0, i)
		ctx.emit(&ir.Store{Source: val, Dest: slot})
	}
	return ctx.gep(arr, elem, 0, 0)
}

// codegenIdent resolves a name: local binding, then field of the receiver, then global variable, then function
func (ctx *Context) codegenIdent(name string) ir.Value {
	for s := ctx.currentScope; s != nil && s != ctx.globalScope; s = s.Parent {
		for sym := s.Symbols; sym != nil; sym = sym.Next {
			if sym.Name == name {
				return sym.IRVal
			}
		}
	}
	if ctx.self != nil && ctx.module.Types.StructOf(ctx.self.Type()).FieldIndex(name) >= 0 {
		return ctx.loadField(ctx.self, name)
	}
	sym := ctx.findSymbol(name)
	if sym == nil {
		panic(fmt.Sprintf("codegen: unresolved identifier '%s'", name))
	}
	if sym.Type == symGlobal {
		ptr := sym.IRVal.(ir.Identifier)
		return ctx.load(ptr.Typ.(ir.Pointer).Elem, ptr)
	}
	return sym.IRVal
}

// loadField reads a field through a pointer to a struct
func (ctx *Context) loadField(base ir.Value, field string) ir.Value {
	s := ctx.module.Types.StructOf(base.Type())
	idx := s.FieldIndex(field)
	if idx < 0 {
		panic(fmt.Sprintf("codegen: %s has no field '%s'", s.Name, field))
	}
	fieldTyp := s.Fields[idx].Typ
	return ctx.load(fieldTyp, ctx.gep(base, fieldTyp, 0, idx))
}

var intOps = map[ast.Operator]string{
	ast.OpAdd: "add", ast.OpSub: "sub", ast.OpMul: "mul", ast.OpDiv: "sdiv",
	ast.OpEq: "icmp eq", ast.OpNe: "icmp ne", ast.OpLt: "icmp slt", ast.OpGt: "icmp sgt", ast.OpLe: "icmp sle", ast.OpGe: "icmp sge",
}

var floatOps = map[ast.Operator]string{
	ast.OpAdd: "fadd", ast.OpSub: "fsub", ast.OpMul: "fmul", ast.OpDiv: "fdiv",
	ast.OpEq: "fcmp oeq", ast.OpNe: "fcmp one", ast.OpLt: "fcmp olt", ast.OpGt: "fcmp ogt", ast.OpLe: "fcmp ole", ast.OpGe: "fcmp oge",
}

func (ctx *Context) codegenBinaryOp(b *ast.Binary) ir.Value {
	lhs := ctx.codegenExpr(b.Lhs)
	rhs := ctx.codegenExpr(b.Rhs)
	operand := types.Resolve(b.Lhs.Typ)
	if operand == types.String {
		ctx.declareRuntime("string::concat", stringType, ir.Param{Name: "a", Typ: stringType}, ir.Param{Name: "b", Typ: stringType})
		return ctx.call("string::concat", stringType, []ir.Value{lhs, rhs})
	}
	ops := intOps
	if operand == types.F64 {
		ops = floatOps
	}
	typ := lhs.Type()
	result := typ
	if b.Op.IsComparison() {
		result = ir.I1
	}
	id := ctx.body.NewID()
	ctx.emit(&ir.BinaryOperation{ID: id, Op: ops[b.Op], Typ: typ, Lhs: lhs, Rhs: rhs})
	return ctx.local(result, id)
}

func (ctx *Context) codegenFuncCall(c *ast.FuncCall) ir.Value {
	var callee string
	var args []ir.Value
	switch f := c.Func.Variant.(type) {
	case *ast.Ident:
		callee = f.Name
	case *ast.MemberAccess:
		class, ok := types.Resolve(f.From.Typ).(*types.Class)
		if !ok {
			panic(fmt.Sprintf("codegen: method call on %v", f.From.Typ))
		}
		callee = ir.Mangle(class.Name, f.Member)
		args = append(args, ctx.codegenExpr(f.From))
	default:
		panic(fmt.Sprintf("codegen: cannot call %T", c.Func.Variant))
	}
	ret, ok := ctx.module.FunctionType(callee)
	if !ok {
		panic(fmt.Sprintf("codegen: call to undeclared function '%s'", callee))
	}
	for _, arg := range c.Args {
		args = append(args, ctx.codegenExpr(arg.Expr))
	}
	return ctx.call(callee, ret, args)
}

// codegenConstruction allocates the class storage and stores every field in declaration order
func (ctx *Context) codegenConstruction(c *ast.ClassConstruction) ir.Value {
	decl, ok := ctx.classes[c.Class]
	if !ok {
		panic(fmt.Sprintf("codegen: unknown class '%s'", c.Class))
	}
	named := ir.Named{Name: c.Class}
	var obj ir.Value
	if ctx.storage != "" {
		obj = ctx.globalStorage(named)
	} else {
		raw := ctx.body.NewID()
		ctx.emit(&ir.Malloca{ID: raw, Typ: ir.I8, Count: ctx.module.Types.StorageSize(named)})
		cast := ctx.body.NewID()
		objTyp := ir.Pointer{Elem: named}
		ctx.emit(&ir.BitCast{ID: cast, From: ctx.local(ir.Pointer{Elem: ir.I8}, raw), To: objTyp})
		obj = ctx.local(objTyp, cast)
	}

	s := ctx.module.Types.StructOf(named)
	for i, field := range decl.Fields {
		var val ir.Value
		if init := c.Init(field.Name); init != nil {
			val = ctx.codegenExpr(init)
		} else if field.Default != nil {
			val = ctx.codegenDefault(field.Default)
		} else {
			panic(fmt.Sprintf("codegen: no initializer for field '%s' of '%s'", field.Name, c.Class))
		}
		slot := ctx.gep(obj, s.Fields[i].Typ, 0, i)
		ctx.emit(&ir.Store{Source: val, Dest: slot})
	}
	return obj
}

// codegenDefault lowers a field default initializer. Defaults are checked
// against the global scope, so names in them never resolve to locals or
// receiver fields of the construction site.
func (ctx *Context) codegenDefault(e *ast.Expr) ir.Value {
	prevScope, prevSelf := ctx.currentScope, ctx.self
	ctx.currentScope, ctx.self = ctx.globalScope, nil
	defer func() { ctx.currentScope, ctx.self = prevScope, prevSelf }()
	return ctx.codegenExpr(e)
}
