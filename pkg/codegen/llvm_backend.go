package codegen

import (
	"bytes"
	"fmt"
	"math"
	"strings"

	"github.com/xplshn/elz/pkg/config"
	"github.com/xplshn/elz/pkg/ir"
)

type llvmBackend struct {
	out    *strings.Builder
	module *ir.Module
	body   *ir.Body
}

func NewLLVMBackend() Backend { return &llvmBackend{} }

func (b *llvmBackend) Generate(m *ir.Module, cfg *config.Config) (*bytes.Buffer, error) {
	return bytes.NewBufferString(EmitLLVM(m)), nil
}

// EmitLLVM renders a numbered module as LLVM assembly text
func EmitLLVM(m *ir.Module) string {
	var sb strings.Builder
	b := &llvmBackend{out: &sb, module: m}
	b.gen()
	return sb.String()
}

func (b *llvmBackend) gen() {
	for _, name := range b.module.TypeNames() {
		s := b.module.Types[name]
		fmt.Fprintf(b.out, "%s = type %s\n", s, s.Body())
	}
	for _, v := range b.module.Variables {
		if v.Name != "" {
			fmt.Fprintf(b.out, "%s = global %s %s\n", ir.Symbol(v.Name), v.Typ, b.value(v.Init))
		}
	}
	for _, v := range b.module.Variables {
		if v.Name == "" {
			fmt.Fprintf(b.out, "@%d = private constant %s %s\n", b.module.ResolveGlobal(v.ID), v.Typ, b.value(v.Init))
		}
	}
	for _, fn := range b.module.FunctionList() {
		b.genFunc(fn)
	}
}

func (b *llvmBackend) genFunc(fn *ir.Function) {
	params := make([]string, len(fn.Params))
	for i, p := range fn.Params {
		params[i] = fmt.Sprintf("%s %%%s", p.Typ, quoteLocal(p.Name))
	}
	sig := fmt.Sprintf("%s %s(%s)", fn.Ret, ir.Symbol(fn.Name), strings.Join(params, ", "))
	if fn.IsDeclaration() {
		fmt.Fprintf(b.out, "declare %s\n", sig)
		return
	}

	b.body = fn.Body
	fmt.Fprintf(b.out, "define %s {\n", sig)
	for _, inst := range fn.Body.Instructions {
		b.genInstr(inst)
	}
	b.out.WriteString("}\n")
}

func (b *llvmBackend) genInstr(inst ir.Instruction) {
	if l, ok := inst.(*ir.Label); ok {
		fmt.Fprintf(b.out, "%d:\n", b.body.Resolve(l.ID))
		return
	}
	b.out.WriteString("  ")
	switch i := inst.(type) {
	case *ir.Return:
		if i.Value == nil {
			b.out.WriteString("ret void")
		} else {
			fmt.Fprintf(b.out, "ret %s", b.typed(i.Value))
		}
	case *ir.Branch:
		fmt.Fprintf(b.out, "br %s, label %s, label %s", b.typed(i.Cond), b.label(i.IfTrue), b.label(i.IfFalse))
	case *ir.Goto:
		fmt.Fprintf(b.out, "br label %s", b.label(i.Target))
	case *ir.Unreachable:
		b.out.WriteString("unreachable")
	case *ir.GEP:
		base := b.module.Types.ElementType(i.Base.Type())
		fmt.Fprintf(b.out, "%s = getelementptr %s, %s", b.id(i.ID), base, b.typed(i.Base))
		for _, idx := range i.Indices {
			fmt.Fprintf(b.out, ", i32 %d", idx)
		}
	case *ir.FunctionCall:
		args := make([]string, len(i.Args))
		for n, a := range i.Args {
			args[n] = b.typed(a)
		}
		if i.ID != ir.NoID {
			fmt.Fprintf(b.out, "%s = ", b.id(i.ID))
		}
		fmt.Fprintf(b.out, "call %s %s(%s)", i.Ret, ir.Symbol(i.Callee), strings.Join(args, ", "))
	case *ir.BinaryOperation:
		fmt.Fprintf(b.out, "%s = %s %s %s, %s", b.id(i.ID), i.Op, i.Typ, b.value(i.Lhs), b.value(i.Rhs))
	case *ir.Malloca:
		fmt.Fprintf(b.out, "%s = alloca %s", b.id(i.ID), i.Typ)
		if i.Count != 0 {
			fmt.Fprintf(b.out, ", i64 %d", i.Count)
		}
	case *ir.BitCast:
		fmt.Fprintf(b.out, "%s = bitcast %s to %s", b.id(i.ID), b.typed(i.From), i.To)
	case *ir.Load:
		fmt.Fprintf(b.out, "%s = load %s, %s", b.id(i.ID), i.Typ, b.typed(i.From))
	case *ir.Store:
		fmt.Fprintf(b.out, "store %s, %s", b.typed(i.Source), b.typed(i.Dest))
	default:
		panic(fmt.Sprintf("codegen: cannot render %T", inst))
	}
	b.out.WriteString("\n")
}

func (b *llvmBackend) id(id ir.ID) string      { return fmt.Sprintf("%%%d", b.body.Resolve(id)) }
func (b *llvmBackend) label(l ir.Label) string { return b.id(l.ID) }
func (b *llvmBackend) typed(v ir.Value) string { return v.Type().String() + " " + b.value(v) }

func (b *llvmBackend) value(v ir.Value) string {
	switch v := v.(type) {
	case ir.ConstI64:
		return fmt.Sprintf("%d", v.V)
	case ir.ConstF64:
		return fmt.Sprintf("0x%016X", math.Float64bits(v.V))
	case ir.ConstBool:
		return fmt.Sprintf("%t", v.V)
	case ir.ConstCString:
		return `c"` + escapeBytes(v.V) + `"`
	case ir.Zero:
		return "zeroinitializer"
	case ir.Identifier:
		if v.Global {
			return ir.Symbol(v.Name)
		}
		return "%" + quoteLocal(v.Name)
	case ir.LocalIdentifier:
		return b.id(v.ID)
	case ir.GlobalIdentifier:
		return fmt.Sprintf("@%d", b.module.ResolveGlobal(v.ID))
	}
	panic(fmt.Sprintf("codegen: cannot render value %T", v))
}

// quoteLocal renders a parameter name, quoting anything that is not a plain identifier
func quoteLocal(name string) string {
	return strings.TrimPrefix(ir.Symbol(name), "@")
}

// escapeBytes writes non-printable bytes, quotes and backslashes as \XX
func escapeBytes(s string) string {
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < ' ' || c > '~' || c == '"' || c == '\\' {
			fmt.Fprintf(&sb, "\\%02X", c)
			continue
		}
		sb.WriteByte(c)
	}
	return sb.String()
}
