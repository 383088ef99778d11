package cli

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/mattn/go-runewidth"
	"golang.org/x/term"
)

// FlagGroup documents a family of prefix flags, e.g. every -W<warning>
type FlagGroup struct {
	Name    string
	Prefix  string
	Type    string
	Header  string
	Entries []FlagGroupEntry
}

type FlagGroupEntry struct {
	Name    string
	Usage   string
	Enabled bool
}

// AddFlagGroup registers a documented group; the flags themselves come from Prefix
func (f *FlagSet) AddFlagGroup(g FlagGroup) { f.groups = append(f.groups, g) }

type App struct {
	Name        string
	Synopsis    string
	Description string
	Authors     []string
	Repository  string
	FlagSet     *FlagSet
	Action      func(args []string) error
	Stdout      io.Writer
	Stderr      io.Writer
	// Width overrides the detected terminal width when non-zero
	Width int
}

func NewApp(name string) *App {
	return &App{Name: name, FlagSet: NewFlagSet(name), Stdout: os.Stdout, Stderr: os.Stderr}
}

func (a *App) Run(arguments []string) error {
	help := false
	a.FlagSet.Bool(&help, "help", "h", false, "Display this information")

	if err := a.FlagSet.Parse(arguments); err != nil {
		fmt.Fprintln(a.Stderr, err)
		a.writeUsage(a.Stderr)
		return err
	}
	if help {
		a.writeHelp(a.Stdout)
		return nil
	}
	if a.Action != nil {
		return a.Action(a.FlagSet.Args())
	}
	return nil
}

func indent(level int) string { return strings.Repeat(" ", 4*level) }

func (a *App) width() int {
	if a.Width != 0 {
		return a.Width
	}
	if f, ok := a.Stdout.(*os.File); ok {
		if w, _, err := term.GetSize(int(f.Fd())); err == nil {
			return max(w, 20)
		}
	}
	return 80
}

// layout holds the column widths shared by every entry of a page
type layout struct {
	term, left, usage int
}

func (a *App) optionFlags() []*Flag {
	var out []*Flag
	for _, flag := range a.FlagSet.flags {
		if _, isPrefix := a.FlagSet.prefixes[flag.Name]; isPrefix {
			continue
		}
		out = append(out, flag)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (a *App) layout() layout {
	l := layout{term: a.width()}
	grow := func(left, usage string) {
		l.left = max(l.left, runewidth.StringWidth(left))
		l.usage = max(l.usage, runewidth.StringWidth(usage))
	}
	for _, flag := range a.optionFlags() {
		grow(flagString(flag), flag.Usage)
	}
	for _, g := range a.FlagSet.groups {
		grow(fmt.Sprintf("-%sno-<%s>", g.Prefix, g.Type), "")
		for _, e := range g.Entries {
			grow(e.Name, e.Usage)
		}
	}
	return l
}

func flagString(flag *Flag) string {
	var sb strings.Builder
	if flag.Shorthand != "" {
		fmt.Fprintf(&sb, "-%s, ", flag.Shorthand)
	}
	fmt.Fprintf(&sb, "--%s", flag.Name)
	if !flag.isBool() && flag.ExpectedType != "" {
		fmt.Fprintf(&sb, " <%s>", flag.ExpectedType)
	}
	return sb.String()
}

func (a *App) writeUsage(w io.Writer) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Usage: %s %s\n", a.Name, a.Synopsis)
	fmt.Fprintf(&sb, "\nRun '%s --help' for all available options and flags.\n", a.Name)
	fmt.Fprint(w, sb.String())
}

func (a *App) writeHelp(w io.Writer) {
	var sb strings.Builder
	l := a.layout()

	if len(a.Authors) > 0 {
		fmt.Fprintf(&sb, "\n%s%s: %s\n", indent(1), a.Name, strings.Join(a.Authors, ", ")+" and contributors")
	}
	if a.Repository != "" {
		fmt.Fprintf(&sb, "%sFor more details refer to %s\n", indent(1), a.Repository)
	}
	if a.Synopsis != "" {
		fmt.Fprintf(&sb, "\n%sSynopsis\n%s%s %s\n", indent(1), indent(2), a.Name, a.Synopsis)
	}
	if a.Description != "" {
		fmt.Fprintf(&sb, "\n%sDescription\n", indent(1))
		for _, line := range wrapText(a.Description, l.term-len(indent(2))) {
			fmt.Fprintf(&sb, "%s%s\n", indent(2), line)
		}
	}

	fmt.Fprintf(&sb, "\n%sOptions\n", indent(1))
	for _, flag := range a.optionFlags() {
		right := ""
		if !flag.isBool() && flag.DefValue != "" {
			right = "|" + flag.DefValue + "|"
		}
		writeEntry(&sb, l, flagString(flag), flag.Usage, right)
	}

	groups := append([]FlagGroup(nil), a.FlagSet.groups...)
	sort.Slice(groups, func(i, j int) bool { return groups[i].Name < groups[j].Name })
	for _, g := range groups {
		fmt.Fprintf(&sb, "\n%s%s\n", indent(1), g.Name)
		writeEntry(&sb, l, fmt.Sprintf("-%s<%s>", g.Prefix, g.Type), "Enable a specific "+g.Type, "")
		writeEntry(&sb, l, fmt.Sprintf("-%sno-<%s>", g.Prefix, g.Type), "Disable a specific "+g.Type, "")
		if g.Header != "" {
			fmt.Fprintf(&sb, "%s%s\n", indent(1), g.Header)
		}
		entries := append([]FlagGroupEntry(nil), g.Entries...)
		sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
		for _, e := range entries {
			mark := "|-|"
			if e.Enabled {
				mark = "|x|"
			}
			writeEntry(&sb, l, e.Name, e.Usage, mark)
		}
	}
	fmt.Fprint(w, sb.String())
}

// writeEntry prints `left usage right` in aligned columns, wrapping usage to the terminal
func writeEntry(sb *strings.Builder, l layout, left, usage, right string) {
	room := l.term - len(indent(2)) - l.left - 1 - len(right) - 2
	room = max(room, 10)
	usageWidth := min(l.usage, room)

	lines := wrapText(usage, room)
	first := ""
	if len(lines) > 0 {
		first = lines[0]
	}
	sb.WriteString(indent(2) + runewidth.FillRight(left, l.left) + " ")
	if right != "" {
		sb.WriteString(runewidth.FillRight(first, usageWidth) + "  " + right)
	} else {
		sb.WriteString(first)
	}
	sb.WriteString("\n")
	pad := strings.Repeat(" ", len(indent(2))+l.left+1)
	for _, line := range lines[min(1, len(lines)):] {
		sb.WriteString(pad + line + "\n")
	}
}

func wrapText(text string, maxWidth int) []string {
	words := strings.Fields(text)
	if maxWidth <= 0 || len(words) == 0 {
		return words
	}
	var lines []string
	var line strings.Builder
	width := 0
	for _, word := range words {
		w := runewidth.StringWidth(word)
		if width > 0 && width+1+w > maxWidth {
			lines = append(lines, line.String())
			line.Reset()
			width = 0
		}
		if width > 0 {
			line.WriteByte(' ')
			width++
		}
		line.WriteString(word)
		width += w
	}
	return append(lines, line.String())
}
