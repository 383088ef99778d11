package typeChecker

import (
	"fmt"
	"strings"

	"github.com/xplshn/elz/pkg/ast"
	"github.com/xplshn/elz/pkg/config"
	"github.com/xplshn/elz/pkg/types"
)

// Warning is a non-fatal diagnostic gated by a config.Warning
type Warning struct {
	Kind     config.Warning
	Location ast.Location
	Message  string
}

type TypeChecker struct {
	global   *Scope
	cfg      *config.Config
	warnings []Warning
	nextVar  int
}

func NewTypeChecker(cfg *config.Config) *TypeChecker {
	return &TypeChecker{global: NewGlobalScope(), cfg: cfg}
}

// Check runs the checker once over a program
func Check(program []*ast.TopAst, cfg *config.Config) ([]Warning, error) {
	tc := NewTypeChecker(cfg)
	err := tc.Check(program)
	return tc.Warnings(), err
}

func (tc *TypeChecker) Global() *Scope { return tc.global }

func (tc *TypeChecker) Warnings() []Warning { return tc.warnings }

func (tc *TypeChecker) warn(kind config.Warning, loc ast.Location, format string, args ...interface{}) {
	if tc.cfg.IsWarningEnabled(kind) {
		tc.warnings = append(tc.warnings, Warning{Kind: kind, Location: loc, Message: fmt.Sprintf(format, args...)})
	}
}

func (tc *TypeChecker) newFreeVar() *types.FreeVar {
	tc.nextVar++
	return &types.FreeVar{ID: tc.nextVar}
}

// Check stops at the first error. On success every expression, binding and
// signature of the program carries its checked type.
func (tc *TypeChecker) Check(program []*ast.TopAst) error {
	if err := tc.declareClasses(program); err != nil {
		return err
	}
	if err := tc.declareGlobals(program); err != nil {
		return err
	}
	for _, top := range program {
		if err := tc.checkTop(top); err != nil {
			return err
		}
	}
	return nil
}

// declareClasses binds every class name first so fields and members may refer to classes declared later
func (tc *TypeChecker) declareClasses(program []*ast.TopAst) error {
	for _, top := range program {
		if c, ok := top.Variant.(*ast.Class); ok {
			c.Resolved = &types.Class{Name: c.Name}
			if err := tc.global.AddType(c.Location, c.Name, c.Resolved); err != nil {
				return err
			}
		}
	}
	for _, top := range program {
		switch d := top.Variant.(type) {
		case *ast.Class:
			if err := tc.declareClassMembers(d); err != nil {
				return err
			}
		case *ast.Trait:
			for _, m := range d.Methods {
				if err := tc.declareFunction(d.Name+"::"+m.Name, m); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (tc *TypeChecker) declareClassMembers(c *ast.Class) error {
	seen := make(map[string]bool, len(c.Fields))
	for _, f := range c.Fields {
		if seen[f.Name] {
			return newError(NameRedefined, f.Location, "field '%s' of class '%s' is already defined", f.Name, c.Name)
		}
		seen[f.Name] = true
		t, err := tc.global.From(f.Location, f.Type)
		if err != nil {
			return err
		}
		f.Resolved = t
		c.Resolved.Fields = append(c.Resolved.Fields, types.Field{Name: f.Name, Type: t, HasDefault: f.Default != nil})
	}
	for _, m := range c.StaticMethods {
		if err := tc.declareFunction(c.Name+"::"+m.Name, m); err != nil {
			return err
		}
	}
	for _, m := range c.Methods {
		if err := tc.declareFunction(c.Name+"::"+m.Name, m); err != nil {
			return err
		}
	}
	return nil
}

func (tc *TypeChecker) declareFunction(name string, f *ast.Function) error {
	sig, err := tc.global.NewFunctionType(f)
	if err != nil {
		return err
	}
	return tc.global.AddFunction(f.Location, name, sig)
}

func (tc *TypeChecker) declareGlobals(program []*ast.TopAst) error {
	for _, top := range program {
		switch d := top.Variant.(type) {
		case *ast.Variable:
			t, err := tc.global.From(d.Location, d.Type)
			if err != nil {
				return err
			}
			d.Resolved = t
			if err := tc.global.AddVariable(d.Location, d.Name, t); err != nil {
				return err
			}
		case *ast.Function:
			if err := tc.declareFunction(d.Name, d); err != nil {
				return err
			}
		case *ast.Import:
			tc.warn(config.WarnImport, d.Location, "import of '%s' is ignored in single-module compilation", strings.Join(d.Chain, "::"))
		}
	}
	return nil
}

func (tc *TypeChecker) checkTop(top *ast.TopAst) error {
	switch d := top.Variant.(type) {
	case *ast.Variable:
		t, err := tc.TypeOfExpr(tc.global, d.Expr)
		if err != nil {
			return err
		}
		return tc.unify(d.Expr.Location, d.Resolved, t)
	case *ast.Function:
		return tc.checkFunctionBody(tc.global, d)
	case *ast.Class:
		return tc.checkClass(d)
	case *ast.Trait:
		return newError(Unsupported, d.Location, "trait '%s': trait bodies are not checked", d.Name)
	}
	return nil
}

func (tc *TypeChecker) checkClass(c *ast.Class) error {
	for _, f := range c.Fields {
		if f.Default == nil {
			continue
		}
		t, err := tc.TypeOfExpr(tc.global, f.Default)
		if err != nil {
			return err
		}
		if err := tc.unify(f.Default.Location, f.Resolved, t); err != nil {
			return err
		}
	}

	staticScope := NewScope(tc.global)
	staticScope.InClass, staticScope.Class = true, c.Resolved
	for _, m := range c.StaticMethods {
		if err := tc.checkFunctionBody(staticScope, m); err != nil {
			return err
		}
	}

	instanceScope := NewScope(staticScope)
	for _, f := range c.Fields {
		instanceScope.bind(&Symbol{Name: f.Name, Type: f.Resolved, IsField: true, Loc: f.Location})
	}
	for _, m := range c.Methods {
		if err := tc.checkFunctionBody(instanceScope, m); err != nil {
			return err
		}
	}
	return nil
}

func (tc *TypeChecker) checkFunctionBody(env *Scope, f *ast.Function) error {
	sig := f.Signature
	scope := NewScope(env)
	for i, p := range f.Parameters {
		if err := scope.AddVariable(f.Location, p.Name, sig.Params[i].Type); err != nil {
			return err
		}
	}
	switch {
	case f.Body == nil:
		return nil
	case f.Body.Expr != nil:
		t, err := tc.TypeOfExpr(scope, f.Body.Expr)
		if err != nil {
			return err
		}
		return tc.unify(f.Body.Expr.Location, sig.Ret, t)
	default:
		return tc.checkBlock(scope, f.Body.Block, sig.Ret)
	}
}

// checkBlock enforces that `return` only ends a block and that a block not
// ending in `return` belongs to a void function.
func (tc *TypeChecker) checkBlock(scope *Scope, b *ast.Block, ret types.Type) error {
	if len(b.Statements) == 0 {
		if !Unify(ret, types.Void) {
			return newError(DeadCodeAfterReturn, b.Location, "empty block in a function returning '%s'", types.Resolve(ret))
		}
		return nil
	}
	last := len(b.Statements) - 1
	for i, stmt := range b.Statements {
		loc := stmt.Location
		switch s := stmt.Variant.(type) {
		case *ast.ReturnStmt:
			var t types.Type = types.Void
			if s.Expr != nil {
				var err error
				if t, err = tc.TypeOfExpr(scope, s.Expr); err != nil {
					return err
				}
			}
			if i != last {
				return newError(DeadCodeAfterReturn, b.Statements[i+1].Location, "statement after return")
			}
			if err := tc.unify(loc, ret, t); err != nil {
				return err
			}
		case *ast.Variable:
			declared, err := scope.From(loc, s.Type)
			if err != nil {
				return err
			}
			t, err := tc.TypeOfExpr(scope, s.Expr)
			if err != nil {
				return err
			}
			if err := tc.unify(s.Expr.Location, declared, t); err != nil {
				return err
			}
			if prev := scope.Lookup(s.Name); prev != nil && prev.Loc.Line != 0 && !tc.isGlobal(prev) {
				tc.warn(config.WarnShadow, loc, "'%s' shadows the binding at %d:%d", s.Name, prev.Loc.Line, prev.Loc.Column)
			}
			s.Resolved = declared
			if err := scope.AddVariable(loc, s.Name, declared); err != nil {
				return err
			}
			if i == last {
				if err := tc.unify(loc, ret, types.Void); err != nil {
					return err
				}
			}
		case *ast.ExprStmt:
			t, err := tc.TypeOfExpr(scope, s.Expr)
			if err != nil {
				return err
			}
			if !Unify(types.Void, t) {
				return newError(TypeMismatch, loc, "value of type '%s' is not used", types.Resolve(t))
			}
			if i == last {
				if err := tc.unify(loc, ret, types.Void); err != nil {
					return err
				}
			}
		case *ast.IfBlock:
			for _, clause := range s.Clauses {
				t, err := tc.TypeOfExpr(scope, clause.Cond)
				if err != nil {
					return err
				}
				if !Unify(types.Bool, t) {
					return newError(TypeMismatch, clause.Cond.Location, "condition has type '%s', expected 'bool'", types.Resolve(t))
				}
				if err := tc.checkBlock(NewScope(scope), clause.Block, ret); err != nil {
					return err
				}
			}
			if err := tc.checkBlock(NewScope(scope), s.Else, ret); err != nil {
				return err
			}
		}
	}
	return nil
}

func (tc *TypeChecker) isGlobal(sym *Symbol) bool {
	return tc.global.findLocal(sym.Name, sym.IsType) == sym
}

func (tc *TypeChecker) unify(loc ast.Location, expected, actual types.Type) error {
	if !Unify(expected, actual) {
		return newError(TypeMismatch, loc, "expected '%s', found '%s'", types.Resolve(expected), types.Resolve(actual))
	}
	return nil
}

// TypeOfExpr infers the type of e and records it in e.Typ
func (tc *TypeChecker) TypeOfExpr(scope *Scope, e *ast.Expr) (types.Type, error) {
	t, err := tc.typeOfExpr(scope, e)
	if err != nil {
		return nil, err
	}
	e.Typ = t
	return t, nil
}

func (tc *TypeChecker) typeOfExpr(scope *Scope, e *ast.Expr) (types.Type, error) {
	switch v := e.Variant.(type) {
	case *ast.IntLit:
		return types.Int, nil
	case *ast.FloatLit:
		return types.F64, nil
	case *ast.BoolLit:
		return types.Bool, nil
	case *ast.StringLit:
		return types.String, nil
	case *ast.ListLit:
		if len(v.Elems) == 0 {
			return types.List{Elem: tc.newFreeVar()}, nil
		}
		elem, err := tc.TypeOfExpr(scope, v.Elems[0])
		if err != nil {
			return nil, err
		}
		for _, x := range v.Elems[1:] {
			t, err := tc.TypeOfExpr(scope, x)
			if err != nil {
				return nil, err
			}
			if err := tc.unify(x.Location, elem, t); err != nil {
				return nil, err
			}
		}
		return types.List{Elem: elem}, nil
	case *ast.Ident:
		sym := scope.Lookup(v.Name)
		if sym == nil {
			return nil, newError(UndefinedName, e.Location, "'%s' is not defined", v.Name)
		}
		return sym.Type, nil
	case *ast.Binary:
		return tc.typeOfBinary(scope, e, v)
	case *ast.FuncCall:
		return tc.typeOfCall(scope, e, v)
	case *ast.MemberAccess:
		return tc.typeOfMember(scope, e, v)
	case *ast.ClassConstruction:
		return tc.typeOfConstruction(scope, e, v)
	}
	return nil, newError(Unsupported, e.Location, "unknown expression")
}

func (tc *TypeChecker) typeOfBinary(scope *Scope, e *ast.Expr, b *ast.Binary) (types.Type, error) {
	lt, err := tc.TypeOfExpr(scope, b.Lhs)
	if err != nil {
		return nil, err
	}
	rt, err := tc.TypeOfExpr(scope, b.Rhs)
	if err != nil {
		return nil, err
	}
	if !Unify(lt, rt) {
		return nil, newError(TypeMismatch, e.Location, "operator '%s' on '%s' and '%s'", b.Op, types.Resolve(lt), types.Resolve(rt))
	}
	operand := types.Resolve(lt)
	switch {
	case b.Op == ast.OpEq || b.Op == ast.OpNe:
		if operand != types.Int && operand != types.F64 && operand != types.Bool {
			return nil, newError(TypeMismatch, e.Location, "operator '%s' is not defined on '%s'", b.Op, operand)
		}
		return types.Bool, nil
	case b.Op.IsComparison():
		if operand != types.Int && operand != types.F64 {
			return nil, newError(TypeMismatch, e.Location, "operator '%s' is not defined on '%s'", b.Op, operand)
		}
		return types.Bool, nil
	case b.Op == ast.OpAdd && operand == types.String:
		return lt, nil
	case operand == types.Int || operand == types.F64:
		return lt, nil
	}
	return nil, newError(TypeMismatch, e.Location, "operator '%s' is not defined on '%s'", b.Op, operand)
}

func (tc *TypeChecker) typeOfCall(scope *Scope, e *ast.Expr, call *ast.FuncCall) (types.Type, error) {
	ft, err := tc.TypeOfExpr(scope, call.Func)
	if err != nil {
		return nil, err
	}
	sig, ok := types.Resolve(ft).(*types.Function)
	if !ok {
		return nil, newError(TypeMismatch, e.Location, "cannot call a value of type '%s'", types.Resolve(ft))
	}
	if len(call.Args) != len(sig.Params) {
		return nil, newError(TypeMismatch, e.Location, "expected %d argument(s), found %d", len(sig.Params), len(call.Args))
	}
	for i, arg := range call.Args {
		param := sig.Params[i]
		if arg.Name != "" && arg.Name != param.Name {
			return nil, newError(TypeMismatch, arg.Expr.Location, "argument '%s' given where parameter '%s' is expected", arg.Name, param.Name)
		}
		t, err := tc.TypeOfExpr(scope, arg.Expr)
		if err != nil {
			return nil, err
		}
		if err := tc.unify(arg.Expr.Location, param.Type, t); err != nil {
			return nil, err
		}
	}
	return sig.Ret, nil
}

func (tc *TypeChecker) typeOfMember(scope *Scope, e *ast.Expr, m *ast.MemberAccess) (types.Type, error) {
	from, err := tc.TypeOfExpr(scope, m.From)
	if err != nil {
		return nil, err
	}
	class, ok := types.Resolve(from).(*types.Class)
	if !ok {
		return nil, newError(TypeMismatch, e.Location, "'%s' has no members", types.Resolve(from))
	}
	if field, _, ok := class.Field(m.Member); ok {
		return field.Type, nil
	}
	if sym := scope.Lookup(class.Name + "::" + m.Member); sym != nil {
		if sig, ok := sym.Type.(*types.Function); ok && len(sig.Params) > 0 && sig.Params[0].Name == "self" {
			return sig.WithoutSelf(), nil
		}
	}
	return nil, newError(UndefinedName, e.Location, "class '%s' has no member '%s'", class.Name, m.Member)
}

func (tc *TypeChecker) typeOfConstruction(scope *Scope, e *ast.Expr, c *ast.ClassConstruction) (types.Type, error) {
	sym := scope.LookupType(c.Class)
	if sym == nil {
		return nil, newError(UnknownType, e.Location, "'%s' is not a type", c.Class)
	}
	class, ok := sym.Type.(*types.Class)
	if !ok {
		return nil, newError(TypeMismatch, e.Location, "'%s' is not a class", c.Class)
	}
	seen := make(map[string]bool, len(c.Inits))
	for _, init := range c.Inits {
		field, _, ok := class.Field(init.Name)
		if !ok {
			return nil, newError(UndefinedName, init.Expr.Location, "class '%s' has no field '%s'", class.Name, init.Name)
		}
		if seen[init.Name] {
			return nil, newError(NameRedefined, init.Expr.Location, "field '%s' initialized twice", init.Name)
		}
		seen[init.Name] = true
		if field.HasDefault {
			tc.warn(config.WarnUnusedFieldDefault, init.Expr.Location, "field '%s' overrides its default value", init.Name)
		}
		t, err := tc.TypeOfExpr(scope, init.Expr)
		if err != nil {
			return nil, err
		}
		if err := tc.unify(init.Expr.Location, field.Type, t); err != nil {
			return nil, err
		}
	}
	for _, field := range class.Fields {
		if !seen[field.Name] && !field.HasDefault {
			return nil, newError(TypeMismatch, e.Location, "missing initializer for field '%s' of '%s'", field.Name, class.Name)
		}
	}
	return class, nil
}
