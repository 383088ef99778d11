// Package types is the type representation used by the semantic checker
package types

import (
	"fmt"
	"strings"
)

// Type is the closed set of checker types
type Type interface {
	isType()
	String() string
}

// Basic is a predeclared scalar type
type Basic int

const (
	Void Basic = iota
	Int
	F64
	Bool
	String
	CString
)

var basicNames = [...]string{"void", "int", "f64", "bool", "string", "_c_string"}

// List is the builtin generic collection List[T]
type List struct{ Elem Type }

type Field struct {
	Name string
	Type Type
	// HasDefault marks a field declared with a default initializer
	HasDefault bool
}

// Class is nominal: two class types are the same type only if they have the same name.
// Fields are filled after every class name of a program is declared.
type Class struct {
	Name   string
	Fields []Field
}

type Param struct {
	Name string
	Type Type
}

type Function struct {
	Params []Param
	Ret    Type
}

// TypeParam is a type parameter of a Generic body
type TypeParam struct{ Name string }

// Generic is a type constructor, e.g. List with Params ["T"] and Body List{TypeParam{"T"}}
type Generic struct {
	Name   string
	Params []string
	Body   Type
}

// FreeVar is an unknown type, created for the element of an empty list literal.
// Unification binds it in place; Bound stays nil until then.
type FreeVar struct {
	ID    int
	Bound Type
}

func (Basic) isType()     {}
func (List) isType()      {}
func (*Class) isType()    {}
func (*Function) isType() {}
func (TypeParam) isType() {}
func (*Generic) isType()  {}
func (*FreeVar) isType()  {}

func (b Basic) String() string  { return basicNames[b] }
func (l List) String() string   { return "List[" + l.Elem.String() + "]" }
func (c *Class) String() string { return c.Name }
func (f *Function) String() string {
	params := make([]string, len(f.Params))
	for i, p := range f.Params {
		params[i] = p.Type.String()
	}
	return fmt.Sprintf("(%s): %s", strings.Join(params, ", "), f.Ret)
}
func (p TypeParam) String() string { return p.Name }
func (g *Generic) String() string {
	return g.Name + "[" + strings.Join(g.Params, ", ") + "]"
}
func (v *FreeVar) String() string {
	if v.Bound != nil {
		return v.Bound.String()
	}
	return fmt.Sprintf("'%d", v.ID)
}

// Field looks a field up by name, returning its position in declaration order.
func (c *Class) Field(name string) (Field, int, bool) {
	for i, f := range c.Fields {
		if f.Name == name {
			return f, i, true
		}
	}
	return Field{}, -1, false
}

// WithoutSelf returns the signature a method has once bound to a receiver.
func (f *Function) WithoutSelf() *Function {
	if len(f.Params) == 0 {
		return f
	}
	return &Function{Params: f.Params[1:], Ret: f.Ret}
}

// Resolve replaces every bound free variable reachable from t by its binding.
func Resolve(t Type) Type {
	switch t := t.(type) {
	case *FreeVar:
		if t.Bound == nil {
			return t
		}
		return Resolve(t.Bound)
	case List:
		return List{Elem: Resolve(t.Elem)}
	case *Function:
		params := make([]Param, len(t.Params))
		for i, p := range t.Params {
			params[i] = Param{Name: p.Name, Type: Resolve(p.Type)}
		}
		return &Function{Params: params, Ret: Resolve(t.Ret)}
	}
	return t
}

// Substitute instantiates type parameters by name.
func Substitute(t Type, args map[string]Type) Type {
	switch t := t.(type) {
	case TypeParam:
		if a, ok := args[t.Name]; ok {
			return a
		}
		return t
	case List:
		return List{Elem: Substitute(t.Elem, args)}
	case *Function:
		params := make([]Param, len(t.Params))
		for i, p := range t.Params {
			params[i] = Param{Name: p.Name, Type: Substitute(p.Type, args)}
		}
		return &Function{Params: params, Ret: Substitute(t.Ret, args)}
	}
	return t
}

// Instantiate applies a generic constructor to its arguments.
func (g *Generic) Instantiate(args []Type) (Type, error) {
	if len(args) != len(g.Params) {
		return nil, fmt.Errorf("%s expects %d type argument(s), got %d", g.Name, len(g.Params), len(args))
	}
	bindings := make(map[string]Type, len(args))
	for i, p := range g.Params {
		bindings[p] = args[i]
	}
	return Substitute(g.Body, bindings), nil
}

// IsUnbound reports whether t is a free variable with no binding yet.
func IsUnbound(t Type) bool {
	v, ok := Resolve(t).(*FreeVar)
	return ok && v.Bound == nil
}
