package typeChecker

import (
	"github.com/xplshn/elz/pkg/ast"
	"github.com/xplshn/elz/pkg/types"
)

type Symbol struct {
	Name    string
	Type    types.Type
	IsFunc  bool
	IsType  bool
	IsField bool
	Loc     ast.Location
	Next    *Symbol
}

// Scope is one link of the type environment chain. Values and types live in
// separate namespaces; functions and variables share the value namespace.
type Scope struct {
	Symbols *Symbol
	Parent  *Scope
	// InClass is set while checking class members; Class is the class being checked
	InClass bool
	Class   *types.Class
}

// NewGlobalScope returns the root scope with the predeclared types bound
func NewGlobalScope() *Scope {
	s := &Scope{}
	for _, b := range []types.Basic{types.Void, types.Int, types.F64, types.Bool, types.String, types.CString} {
		s.bind(&Symbol{Name: b.String(), Type: b, IsType: true})
	}
	s.bind(&Symbol{Name: "List", IsType: true, Type: &types.Generic{
		Name: "List", Params: []string{"T"}, Body: types.List{Elem: types.TypeParam{Name: "T"}},
	}})
	return s
}

func NewScope(parent *Scope) *Scope {
	return &Scope{Parent: parent, InClass: parent.InClass, Class: parent.Class}
}

func (s *Scope) bind(sym *Symbol) {
	sym.Next = s.Symbols
	s.Symbols = sym
}

func (s *Scope) findLocal(name string, isType bool) *Symbol {
	for sym := s.Symbols; sym != nil; sym = sym.Next {
		if sym.Name == name && sym.IsType == isType {
			return sym
		}
	}
	return nil
}

func (s *Scope) find(name string, isType bool) *Symbol {
	for scope := s; scope != nil; scope = scope.Parent {
		if sym := scope.findLocal(name, isType); sym != nil {
			return sym
		}
	}
	return nil
}

// Lookup resolves a value name through the chain
func (s *Scope) Lookup(name string) *Symbol { return s.find(name, false) }

// LookupType resolves a type name through the chain
func (s *Scope) LookupType(name string) *Symbol { return s.find(name, true) }

func (s *Scope) IsGlobal() bool { return s.Parent == nil }

func (s *Scope) AddVariable(loc ast.Location, name string, t types.Type) error {
	return s.add(&Symbol{Name: name, Type: t, Loc: loc})
}

func (s *Scope) AddFunction(loc ast.Location, name string, t *types.Function) error {
	return s.add(&Symbol{Name: name, Type: t, IsFunc: true, Loc: loc})
}

func (s *Scope) AddType(loc ast.Location, name string, t types.Type) error {
	return s.add(&Symbol{Name: name, Type: t, IsType: true, Loc: loc})
}

func (s *Scope) add(sym *Symbol) error {
	if prev := s.findLocal(sym.Name, sym.IsType); prev != nil {
		return newError(NameRedefined, sym.Loc, "'%s' is already defined at %d:%d", sym.Name, prev.Loc.Line, prev.Loc.Column)
	}
	s.bind(sym)
	return nil
}

// From resolves a syntactic type, instantiating generics
func (s *Scope) From(loc ast.Location, pt *ast.ParsedType) (types.Type, error) {
	sym := s.LookupType(pt.Name)
	if sym == nil {
		return nil, newError(UnknownType, loc, "'%s' is not a type", pt.Name)
	}
	gen, isGeneric := sym.Type.(*types.Generic)
	switch {
	case isGeneric && len(pt.Args) == 0:
		return nil, newError(UnknownType, loc, "'%s' needs type arguments", pt.Name)
	case !isGeneric && len(pt.Args) > 0:
		return nil, newError(UnknownType, loc, "'%s' takes no type arguments", pt.Name)
	case !isGeneric:
		return sym.Type, nil
	}
	args := make([]types.Type, len(pt.Args))
	for i, a := range pt.Args {
		t, err := s.From(loc, a)
		if err != nil {
			return nil, err
		}
		args[i] = t
	}
	t, err := gen.Instantiate(args)
	if err != nil {
		return nil, newError(UnknownType, loc, "%v", err)
	}
	return t, nil
}

// NewFunctionType builds the signature of f and records the resolved parameter types on the AST
func (s *Scope) NewFunctionType(f *ast.Function) (*types.Function, error) {
	sig := &types.Function{Params: make([]types.Param, len(f.Parameters))}
	for i, p := range f.Parameters {
		t, err := s.From(f.Location, p.Type)
		if err != nil {
			return nil, err
		}
		p.Resolved = t
		sig.Params[i] = types.Param{Name: p.Name, Type: t}
	}
	ret, err := s.From(f.Location, f.RetType)
	if err != nil {
		return nil, err
	}
	sig.Ret = ret
	f.Signature = sig
	return sig, nil
}

// Unify reports whether expected and actual denote the same type, binding free variables on the way
func Unify(expected, actual types.Type) bool {
	expected, actual = shallow(expected), shallow(actual)
	if v, ok := expected.(*types.FreeVar); ok {
		return bindVar(v, actual)
	}
	if v, ok := actual.(*types.FreeVar); ok {
		return bindVar(v, expected)
	}
	switch e := expected.(type) {
	case types.Basic:
		a, ok := actual.(types.Basic)
		return ok && a == e
	case types.List:
		a, ok := actual.(types.List)
		return ok && Unify(e.Elem, a.Elem)
	case *types.Class:
		a, ok := actual.(*types.Class)
		return ok && a.Name == e.Name
	case *types.Function:
		a, ok := actual.(*types.Function)
		if !ok || len(a.Params) != len(e.Params) {
			return false
		}
		for i := range e.Params {
			if !Unify(e.Params[i].Type, a.Params[i].Type) {
				return false
			}
		}
		return Unify(e.Ret, a.Ret)
	case types.TypeParam:
		a, ok := actual.(types.TypeParam)
		return ok && a.Name == e.Name
	}
	return false
}

func shallow(t types.Type) types.Type {
	for {
		v, ok := t.(*types.FreeVar)
		if !ok || v.Bound == nil {
			return t
		}
		t = v.Bound
	}
}

func bindVar(v *types.FreeVar, t types.Type) bool {
	if other, ok := t.(*types.FreeVar); ok && other == v {
		return true
	}
	if occurs(v, t) {
		return false
	}
	v.Bound = t
	return true
}

func occurs(v *types.FreeVar, t types.Type) bool {
	switch t := shallow(t).(type) {
	case *types.FreeVar:
		return t == v
	case types.List:
		return occurs(v, t.Elem)
	case *types.Function:
		for _, p := range t.Params {
			if occurs(v, p.Type) {
				return true
			}
		}
		return occurs(v, t.Ret)
	}
	return false
}
