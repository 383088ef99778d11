// Package cli is a small flag parser with GNU-style long flags, bundled
// shorthands and prefix flags such as -Wshadow, plus a help page renderer.
package cli

import (
	"fmt"
	"strconv"
	"strings"
)

type Value interface {
	String() string
	Set(string) error
	Get() any
}

type stringValue struct{ p *string }

func (v *stringValue) Set(s string) error { *v.p = s; return nil }
func (v *stringValue) String() string     { return *v.p }
func (v *stringValue) Get() any           { return *v.p }

type boolValue struct{ p *bool }

func (v *boolValue) Set(s string) error {
	if s == "" {
		*v.p = true
		return nil
	}
	val, err := strconv.ParseBool(s)
	if err != nil {
		return fmt.Errorf("invalid boolean value '%s': %w", s, err)
	}
	*v.p = val
	return nil
}
func (v *boolValue) String() string { return strconv.FormatBool(*v.p) }
func (v *boolValue) Get() any       { return *v.p }

type intValue struct{ p *int }

func (v *intValue) Set(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("invalid integer value '%s': %w", s, err)
	}
	*v.p = n
	return nil
}
func (v *intValue) String() string { return strconv.Itoa(*v.p) }
func (v *intValue) Get() any       { return *v.p }

type listValue struct{ p *[]string }

func (v *listValue) Set(s string) error { *v.p = append(*v.p, s); return nil }
func (v *listValue) String() string     { return strings.Join(*v.p, ", ") }
func (v *listValue) Get() any           { return *v.p }

type Flag struct {
	Name         string
	Shorthand    string
	Usage        string
	Value        Value
	DefValue     string
	ExpectedType string
}

func (f *Flag) isBool() bool {
	_, ok := f.Value.(*boolValue)
	return ok
}

type FlagSet struct {
	name       string
	flags      map[string]*Flag
	shorthands map[string]*Flag
	// prefixes holds flags written glued to a prefix, e.g. -Wno-shadow
	prefixes map[string]*Flag
	args     []string
	groups   []FlagGroup
}

func NewFlagSet(name string) *FlagSet {
	return &FlagSet{
		name:       name,
		flags:      make(map[string]*Flag),
		shorthands: make(map[string]*Flag),
		prefixes:   make(map[string]*Flag),
	}
}

func (f *FlagSet) Args() []string { return f.args }

func (f *FlagSet) Lookup(name string) *Flag { return f.flags[name] }

func (f *FlagSet) String(p *string, name, shorthand, value, usage, expectedType string) {
	*p = value
	f.Var(&stringValue{p}, name, shorthand, usage, value, expectedType)
}

func (f *FlagSet) Bool(p *bool, name, shorthand string, value bool, usage string) {
	*p = value
	f.Var(&boolValue{p}, name, shorthand, usage, strconv.FormatBool(value), "")
}

func (f *FlagSet) Int(p *int, name, shorthand string, value int, usage, expectedType string) {
	*p = value
	f.Var(&intValue{p}, name, shorthand, usage, strconv.Itoa(value), expectedType)
}

func (f *FlagSet) List(p *[]string, name, shorthand string, value []string, usage, expectedType string) {
	*p = value
	f.Var(&listValue{p}, name, shorthand, usage, "", expectedType)
}

// Prefix registers a flag whose value is glued to its prefix; every occurrence is collected
func (f *FlagSet) Prefix(p *[]string, prefix, usage, expectedType string) {
	*p = []string{}
	f.Var(&listValue{p}, prefix, "", usage, "", expectedType)
	f.prefixes[prefix] = f.flags[prefix]
}

func (f *FlagSet) Var(value Value, name, shorthand, usage, defValue, expectedType string) {
	if name == "" {
		panic("flag name cannot be empty")
	}
	if _, ok := f.flags[name]; ok {
		panic(fmt.Sprintf("flag redefined: %s", name))
	}
	flag := &Flag{Name: name, Shorthand: shorthand, Usage: usage, Value: value, DefValue: defValue, ExpectedType: expectedType}
	f.flags[name] = flag
	if shorthand != "" {
		if _, ok := f.shorthands[shorthand]; ok {
			panic(fmt.Sprintf("shorthand flag redefined: %s", shorthand))
		}
		f.shorthands[shorthand] = flag
	}
}

func (f *FlagSet) Parse(arguments []string) error {
	f.args = []string{}
	for i := 0; i < len(arguments); i++ {
		arg := arguments[i]
		switch {
		case arg == "--":
			f.args = append(f.args, arguments[i+1:]...)
			return nil
		case len(arg) < 2 || arg[0] != '-':
			f.args = append(f.args, arg)
		case strings.HasPrefix(arg, "--"):
			if err := f.parseLong(arg[2:], arguments, &i); err != nil {
				return err
			}
		default:
			if err := f.parseShort(arg[1:], arguments, &i); err != nil {
				return err
			}
		}
	}
	return nil
}

// takeValue returns the inline value if present, else consumes the next argument
func takeValue(flag *Flag, inline string, hasInline bool, spelled string, arguments []string, i *int) (string, error) {
	if hasInline {
		return inline, nil
	}
	if flag.isBool() {
		return "", nil
	}
	if *i+1 >= len(arguments) {
		return "", fmt.Errorf("flag needs an argument: %s", spelled)
	}
	*i++
	return arguments[*i], nil
}

func (f *FlagSet) parseLong(body string, arguments []string, i *int) error {
	name, inline, hasInline := strings.Cut(body, "=")
	if name == "" {
		return fmt.Errorf("empty flag name")
	}
	flag, ok := f.flags[name]
	if !ok {
		return fmt.Errorf("unknown flag: --%s", name)
	}
	val, err := takeValue(flag, inline, hasInline, "--"+name, arguments, i)
	if err != nil {
		return err
	}
	return flag.Value.Set(val)
}

// parseShort handles -name, -name=value, prefix flags and shorthands like -j4 or -o out
func (f *FlagSet) parseShort(body string, arguments []string, i *int) error {
	name, inline, hasInline := strings.Cut(body, "=")
	if flag, ok := f.flags[name]; ok {
		val, err := takeValue(flag, inline, hasInline, "-"+name, arguments, i)
		if err != nil {
			return err
		}
		return flag.Value.Set(val)
	}
	for prefix, flag := range f.prefixes {
		if strings.HasPrefix(body, prefix) && len(body) > len(prefix) {
			return flag.Value.Set(body[len(prefix):])
		}
	}

	flag, ok := f.shorthands[body[:1]]
	if !ok {
		return fmt.Errorf("unknown shorthand flag: -%s", body[:1])
	}
	if flag.isBool() {
		return flag.Value.Set("")
	}
	if rest := body[1:]; rest != "" {
		return flag.Value.Set(strings.TrimPrefix(rest, "="))
	}
	val, err := takeValue(flag, "", false, "-"+body[:1], arguments, i)
	if err != nil {
		return err
	}
	return flag.Value.Set(val)
}
