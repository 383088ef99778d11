package codegen

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"fortio.org/safecast"
	"github.com/xplshn/elz/pkg/config"
	"github.com/xplshn/elz/pkg/ir"
)

type qbeBackend struct {
	out      *strings.Builder
	module   *ir.Module
	body     *ir.Body
	wordType string
}

func NewQBEBackend() Backend { return &qbeBackend{} }

// Generate renders the module as QBE IL and, when cfg.Emit is "asm", assembles it
func (b *qbeBackend) Generate(m *ir.Module, cfg *config.Config) (*bytes.Buffer, error) {
	il := b.GenerateIL(m, cfg)
	if cfg.Emit != "asm" {
		return bytes.NewBufferString(il), nil
	}
	return b.assemble(il, cfg)
}

func (b *qbeBackend) GenerateIL(m *ir.Module, cfg *config.Config) string {
	var sb strings.Builder
	b.out, b.module, b.wordType = &sb, m, cfg.WordType
	if b.wordType == "" {
		b.wordType = "l"
	}
	b.gen()
	return sb.String()
}

func (b *qbeBackend) gen() {
	for _, v := range b.module.Variables {
		b.genData(v)
	}
	for _, fn := range b.module.FunctionList() {
		if !fn.IsDeclaration() {
			b.genFunc(fn)
		}
	}
}

func qbeName(name string) string { return "$" + strings.ReplaceAll(name, "::", ".") }

func (b *qbeBackend) genData(v *ir.Variable) {
	if v.Name == "" {
		fmt.Fprintf(b.out, "data $_elz_str%d = { %s }\n", b.module.ResolveGlobal(v.ID), b.stringItems(v.Init.(ir.ConstCString).V))
		return
	}
	var item string
	switch init := v.Init.(type) {
	case ir.Zero:
		item = fmt.Sprintf("z %d", b.module.Types.StorageSize(v.Typ))
	default:
		item = b.extType(v.Typ) + " " + b.value(init)
	}
	fmt.Fprintf(b.out, "data %s = { %s }\n", qbeName(v.Name), item)
}

// stringItems splits s into quoted runs and single bytes for anything unsafe inside a QBE string
func (b *qbeBackend) stringItems(s string) string {
	if s == "" {
		return "b 0"
	}
	var items []string
	var run strings.Builder
	flush := func() {
		if run.Len() > 0 {
			items = append(items, `b "`+run.String()+`"`)
			run.Reset()
		}
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < ' ' || c > '~' || c == '"' || c == '\\' {
			flush()
			items = append(items, "b "+strconv.Itoa(int(c)))
			continue
		}
		run.WriteByte(c)
	}
	flush()
	return strings.Join(items, ", ")
}

func (b *qbeBackend) genFunc(fn *ir.Function) {
	b.body = fn.Body
	ret := b.baseType(fn.Ret)
	if ret != "" {
		ret = " " + ret
	}
	params := make([]string, len(fn.Params))
	for i, p := range fn.Params {
		params[i] = fmt.Sprintf("%s %%%s", b.baseType(p.Typ), p.Name)
	}
	fmt.Fprintf(b.out, "\nexport function%s %s(%s) {\n@start\n", ret, qbeName(fn.Name), strings.Join(params, ", "))
	for _, inst := range fn.Body.Instructions {
		b.genInstr(inst)
	}
	b.out.WriteString("}\n")
}

func (b *qbeBackend) genInstr(inst ir.Instruction) {
	if l, ok := inst.(*ir.Label); ok {
		fmt.Fprintf(b.out, "%s\n", b.label(*l))
		return
	}
	b.out.WriteString("\t")
	switch i := inst.(type) {
	case *ir.Return:
		if i.Value == nil {
			b.out.WriteString("ret")
		} else {
			fmt.Fprintf(b.out, "ret %s", b.value(i.Value))
		}
	case *ir.Branch:
		fmt.Fprintf(b.out, "jnz %s, %s, %s", b.value(i.Cond), b.label(i.IfTrue), b.label(i.IfFalse))
	case *ir.Goto:
		fmt.Fprintf(b.out, "jmp %s", b.label(i.Target))
	case *ir.Unreachable:
		b.out.WriteString("hlt")
	case *ir.GEP:
		fmt.Fprintf(b.out, "%s =%s add %s, %d", b.temp(i.ID), b.wordType, b.value(i.Base), b.gepOffset(i.Base.Type(), i.Indices))
	case *ir.FunctionCall:
		args := make([]string, len(i.Args))
		for n, a := range i.Args {
			args[n] = b.baseType(a.Type()) + " " + b.value(a)
		}
		if i.ID != ir.NoID {
			fmt.Fprintf(b.out, "%s =%s ", b.temp(i.ID), b.baseType(i.Ret))
		}
		fmt.Fprintf(b.out, "call %s(%s)", qbeName(i.Callee), strings.Join(args, ", "))
	case *ir.BinaryOperation:
		op, cmp := qbeOp(i.Op)
		operand := b.baseType(i.Typ)
		if cmp {
			fmt.Fprintf(b.out, "%s =w %s%s %s, %s", b.temp(i.ID), op, operand, b.value(i.Lhs), b.value(i.Rhs))
		} else {
			fmt.Fprintf(b.out, "%s =%s %s %s, %s", b.temp(i.ID), operand, op, b.value(i.Lhs), b.value(i.Rhs))
		}
	case *ir.Malloca:
		size := b.module.Types.StorageSize(i.Typ)
		if i.Count != 0 {
			size *= i.Count
		}
		fmt.Fprintf(b.out, "%s =%s alloc8 %d", b.temp(i.ID), b.wordType, max(size, 8))
	case *ir.BitCast:
		fmt.Fprintf(b.out, "%s =%s copy %s", b.temp(i.ID), b.wordType, b.value(i.From))
	case *ir.Load:
		fmt.Fprintf(b.out, "%s =%s %s %s", b.temp(i.ID), b.baseType(i.Typ), b.loadOp(i.Typ), b.value(i.From))
	case *ir.Store:
		fmt.Fprintf(b.out, "store%s %s, %s", b.extType(i.Source.Type()), b.value(i.Source), b.value(i.Dest))
	default:
		panic(fmt.Sprintf("codegen: cannot render %T", inst))
	}
	b.out.WriteString("\n")
}

// gepOffset folds a constant index path into a byte offset from the base pointer
func (b *qbeBackend) gepOffset(base ir.Type, indices []int) uint64 {
	table := b.module.Types
	t := table.ElementType(base)
	off := toOffset(indices[0]) * table.StorageSize(t)
	for _, idx := range indices[1:] {
		switch r := table.Resolve(t).(type) {
		case *ir.Struct:
			off += table.StorageOffset(r, idx)
			t = r.Fields[idx].Typ
		case ir.Array:
			off += toOffset(idx) * table.StorageSize(r.Elem)
			t = r.Elem
		default:
			panic(fmt.Sprintf("codegen: cannot index into %s", t))
		}
	}
	return off
}

func toOffset(i int) uint64 {
	off, err := safecast.Conv[uint64](i)
	if err != nil {
		panic(fmt.Sprintf("codegen: negative index %d", i))
	}
	return off
}

var qbeOps = map[string]string{
	"add": "add", "sub": "sub", "mul": "mul", "sdiv": "div",
	"fadd": "add", "fsub": "sub", "fmul": "mul", "fdiv": "div",
	"icmp eq": "ceq", "icmp ne": "cne", "icmp slt": "cslt", "icmp sgt": "csgt", "icmp sle": "csle", "icmp sge": "csge",
	"fcmp oeq": "ceq", "fcmp one": "cne", "fcmp olt": "clt", "fcmp ogt": "cgt", "fcmp ole": "cle", "fcmp oge": "cge",
}

func qbeOp(op string) (string, bool) {
	q, ok := qbeOps[op]
	if !ok {
		panic(fmt.Sprintf("codegen: no QBE instruction for '%s'", op))
	}
	return q, strings.HasPrefix(op, "icmp") || strings.HasPrefix(op, "fcmp")
}

// baseType is the QBE temporary class of t: w, l, s or d ("" for void)
func (b *qbeBackend) baseType(t ir.Type) string {
	switch t := t.(type) {
	case ir.Void:
		return ""
	case ir.Int:
		if t.Bits <= 32 {
			return "w"
		}
		return "l"
	case ir.Float:
		if t.Bits == 32 {
			return "s"
		}
		return "d"
	}
	return b.wordType
}

// extType is the memory class of t, adding b for byte-sized integers
func (b *qbeBackend) extType(t ir.Type) string {
	if i, ok := t.(ir.Int); ok && i.Bits <= 8 {
		return "b"
	}
	return b.baseType(t)
}

func (b *qbeBackend) loadOp(t ir.Type) string {
	if i, ok := t.(ir.Int); ok && i.Bits <= 8 {
		return "loadub"
	}
	return "load" + b.baseType(t)
}

func (b *qbeBackend) temp(id ir.ID) string    { return fmt.Sprintf("%%.%d", b.body.Resolve(id)) }
func (b *qbeBackend) label(l ir.Label) string { return fmt.Sprintf("@L%d", b.body.Resolve(l.ID)) }

func (b *qbeBackend) value(v ir.Value) string {
	switch v := v.(type) {
	case ir.ConstI64:
		return strconv.FormatInt(v.V, 10)
	case ir.ConstF64:
		return "d_" + strconv.FormatFloat(v.V, 'g', -1, 64)
	case ir.ConstBool:
		if v.V {
			return "1"
		}
		return "0"
	case ir.Identifier:
		if v.Global {
			return qbeName(v.Name)
		}
		return "%" + v.Name
	case ir.LocalIdentifier:
		return b.temp(v.ID)
	case ir.GlobalIdentifier:
		return fmt.Sprintf("$_elz_str%d", b.module.ResolveGlobal(v.ID))
	}
	panic(fmt.Sprintf("codegen: cannot render value %T in QBE", v))
}
