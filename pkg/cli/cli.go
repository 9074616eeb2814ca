package cli

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/term"
)

type Value interface {
	String() string
	Set(string) error
	Get() any
}

type stringValue struct{ p *string }

func (v *stringValue) Set(s string) error   { *v.p = s; return nil }
func (v *stringValue) String() string       { return *v.p }
func (v *stringValue) Get() any             { return *v.p }
func newStringValue(p *string) *stringValue { return &stringValue{p} }

type boolValue struct{ p *bool }

func (v *boolValue) Set(s string) error {
	val, err := strconv.ParseBool(s)
	if err != nil && s != "" {
		return fmt.Errorf("invalid boolean value '%s': %w", s, err)
	}
	*v.p = val || s == ""
	return nil
}
func (v *boolValue) String() string   { return strconv.FormatBool(*v.p) }
func (v *boolValue) Get() any         { return *v.p }
func newBoolValue(p *bool) *boolValue { return &boolValue{p} }

type listValue struct{ p *[]string }

func (v *listValue) Set(s string) error   { *v.p = append(*v.p, s); return nil }
func (v *listValue) String() string       { return strings.Join(*v.p, ", ") }
func (v *listValue) Get() any             { return *v.p }
func newListValue(p *[]string) *listValue { return &listValue{p} }

type Flag struct {
	Name         string
	Shorthand    string
	Usage        string
	Value        Value
	DefValue     string
	ExpectedType string
}

// FlagGroup is a family of on/off flags sharing a prefix, such as -W<warning>.
type FlagGroup struct {
	Name                 string
	Description          string
	Flags                []FlagGroupEntry
	GroupType            string
	AvailableFlagsHeader string
}

type FlagGroupEntry struct {
	Name     string
	Prefix   string
	Usage    string
	Enabled  *bool
	Disabled *bool
}

type FlagSet struct {
	name       string
	flags      map[string]*Flag
	shorthands map[string]*Flag
	args       []string
	flagGroups []FlagGroup
}

func NewFlagSet(name string) *FlagSet {
	return &FlagSet{
		name:       name,
		flags:      make(map[string]*Flag),
		shorthands: make(map[string]*Flag),
	}
}

func (f *FlagSet) Args() []string { return f.args }

func (f *FlagSet) String(p *string, name, shorthand, value, usage, expectedType string) {
	*p = value
	f.Var(newStringValue(p), name, shorthand, usage, value, expectedType)
}

func (f *FlagSet) Bool(p *bool, name, shorthand string, value bool, usage string) {
	*p = value
	f.Var(newBoolValue(p), name, shorthand, usage, strconv.FormatBool(value), "")
}

// List registers a repeatable flag; every occurrence appends to *p.
func (f *FlagSet) List(p *[]string, name, shorthand string, value []string, usage, expectedType string) {
	*p = value
	f.Var(newListValue(p), name, shorthand, usage, fmt.Sprintf("%v", value), expectedType)
}

func (f *FlagSet) AddFlagGroup(name, description, groupType, availableFlagsHeader string, entries []FlagGroupEntry) {
	for i := range entries {
		if entries[i].Enabled != nil {
			f.Bool(entries[i].Enabled, entries[i].Prefix+entries[i].Name, "", *entries[i].Enabled, entries[i].Usage)
		}
		if entries[i].Disabled != nil {
			disableUsage := "Disable '" + entries[i].Name + "'"
			f.Bool(entries[i].Disabled, entries[i].Prefix+"no-"+entries[i].Name, "", *entries[i].Disabled, disableUsage)
		}
	}
	f.flagGroups = append(f.flagGroups, FlagGroup{
		Name:                 name,
		Description:          description,
		Flags:                entries,
		GroupType:            groupType,
		AvailableFlagsHeader: availableFlagsHeader,
	})
}

func (f *FlagSet) Var(value Value, name, shorthand, usage, defValue, expectedType string) {
	if name == "" {
		panic("flag name cannot be empty")
	}
	flag := &Flag{Name: name, Shorthand: shorthand, Usage: usage, Value: value, DefValue: defValue, ExpectedType: expectedType}
	if _, ok := f.flags[name]; ok {
		panic(fmt.Sprintf("flag redefined: %s", name))
	}
	f.flags[name] = flag
	if shorthand != "" {
		if _, ok := f.shorthands[shorthand]; ok {
			panic(fmt.Sprintf("shorthand flag redefined: %s", shorthand))
		}
		f.shorthands[shorthand] = flag
	}
}

func (f *FlagSet) Lookup(name string) *Flag { return f.flags[name] }

// Parse accepts --name[=value], -name[=value] for multi-letter flags
// (so -Wall and -Fno-continue work) and -x[value] for shorthands.
func (f *FlagSet) Parse(arguments []string) error {
	f.args = []string{}
	for i := 0; i < len(arguments); i++ {
		arg := arguments[i]
		if len(arg) < 2 || arg[0] != '-' {
			f.args = append(f.args, arg)
			continue
		}
		if arg == "--" {
			f.args = append(f.args, arguments[i+1:]...)
			break
		}
		var err error
		if strings.HasPrefix(arg, "--") {
			err = f.parseLongFlag(arg[2:], "--", arguments, &i)
		} else if name := strings.SplitN(arg[1:], "=", 2)[0]; f.flags[name] != nil {
			err = f.parseLongFlag(arg[1:], "-", arguments, &i)
		} else {
			err = f.parseShortFlag(arg, arguments, &i)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (f *FlagSet) parseLongFlag(body, dashes string, arguments []string, i *int) error {
	parts := strings.SplitN(body, "=", 2)
	name := parts[0]
	if name == "" {
		return fmt.Errorf("empty flag name")
	}
	flag, ok := f.flags[name]
	if !ok {
		return fmt.Errorf("unknown flag: %s%s", dashes, name)
	}
	if len(parts) == 2 {
		return flag.Value.Set(parts[1])
	}
	if _, isBool := flag.Value.(*boolValue); isBool {
		return flag.Value.Set("")
	}
	if *i+1 >= len(arguments) {
		return fmt.Errorf("flag needs an argument: %s%s", dashes, name)
	}
	*i++
	return flag.Value.Set(arguments[*i])
}

func (f *FlagSet) parseShortFlag(arg string, arguments []string, i *int) error {
	shorthand := arg[1:2]
	flag, ok := f.shorthands[shorthand]
	if !ok {
		return fmt.Errorf("unknown shorthand flag: -%s", shorthand)
	}
	if _, isBool := flag.Value.(*boolValue); isBool {
		return flag.Value.Set("")
	}
	value := arg[2:]
	if value == "" {
		if *i+1 >= len(arguments) {
			return fmt.Errorf("flag needs an argument: -%s", shorthand)
		}
		*i++
		value = arguments[*i]
	}
	return flag.Value.Set(value)
}

type App struct {
	Name        string
	Synopsis    string
	Description string
	Version     string
	Repository  string
	FlagSet     *FlagSet
	Action      func(args []string) error
	Stdout      io.Writer
	Stderr      io.Writer
}

func NewApp(name string) *App {
	return &App{
		Name:    name,
		FlagSet: NewFlagSet(name),
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
	}
}

// ErrUsage is returned by Run when the command line could not be parsed.
var ErrUsage = fmt.Errorf("usage error")

func (a *App) Run(arguments []string) error {
	help, version := false, false
	a.FlagSet.Bool(&help, "help", "h", false, "Display this information.")
	if a.Version != "" {
		a.FlagSet.Bool(&version, "version", "", false, "Print the version and exit.")
	}

	if err := a.FlagSet.Parse(arguments); err != nil {
		fmt.Fprintf(a.Stderr, "%s: %v\n", a.Name, err)
		a.generateUsagePage(a.Stderr)
		return ErrUsage
	}
	if help {
		a.generateHelpPage(a.Stdout)
		return nil
	}
	if version {
		fmt.Fprintf(a.Stdout, "%s %s\n", a.Name, a.Version)
		return nil
	}
	if a.Action != nil {
		return a.Action(a.FlagSet.Args())
	}
	return nil
}

func (a *App) generateUsagePage(w io.Writer) {
	var sb strings.Builder
	termWidth := getTerminalWidth()

	fmt.Fprintf(&sb, "Usage: %s %s\n", a.Name, a.Synopsis)

	optionFlags := a.getOptionFlags()
	if len(optionFlags) > 0 {
		maxFlagWidth, maxUsageWidth := 0, 0
		for _, flag := range optionFlags {
			maxFlagWidth = max(maxFlagWidth, len(formatFlagString(flag)))
			maxUsageWidth = max(maxUsageWidth, len(flag.Usage))
		}
		fmt.Fprintf(&sb, "\n%sOptions\n", indent(1))
		for _, flag := range optionFlags {
			formatFlagLine(&sb, flag, termWidth, maxFlagWidth, maxUsageWidth)
		}
	}

	fmt.Fprintf(&sb, "\nRun '%s --help' for all available options and flags.\n", a.Name)
	fmt.Fprint(w, sb.String())
}

func (a *App) generateHelpPage(w io.Writer) {
	var sb strings.Builder
	termWidth := getTerminalWidth()

	optionFlags := a.getOptionFlags()
	leftWidth, usageWidth := 0, 0
	for _, flag := range optionFlags {
		leftWidth = max(leftWidth, len(formatFlagString(flag)))
		usageWidth = max(usageWidth, len(flag.Usage))
	}
	for _, group := range a.FlagSet.flagGroups {
		if len(group.Flags) == 0 {
			continue
		}
		prefix := group.Flags[0].Prefix
		leftWidth = max(leftWidth, len(fmt.Sprintf("-%sno-<%s>", prefix, group.GroupType)))
		for _, entry := range group.Flags {
			leftWidth = max(leftWidth, len(entry.Name))
			usageWidth = max(usageWidth, len(entry.Usage))
		}
	}

	if a.Version != "" {
		fmt.Fprintf(&sb, "\n%s%s %s\n", indent(1), a.Name, a.Version)
	}
	if a.Repository != "" {
		fmt.Fprintf(&sb, "%sFor more details refer to %s\n", indent(1), a.Repository)
	}
	if a.Synopsis != "" {
		fmt.Fprintf(&sb, "\n%sSynopsis\n", indent(1))
		fmt.Fprintf(&sb, "%s%s %s\n", indent(2), a.Name, a.Synopsis)
	}
	if a.Description != "" {
		fmt.Fprintf(&sb, "\n%sDescription\n", indent(1))
		for _, line := range wrapText(a.Description, termWidth-len(indent(2))) {
			fmt.Fprintf(&sb, "%s%s\n", indent(2), line)
		}
	}

	if len(optionFlags) > 0 {
		fmt.Fprintf(&sb, "\n%sOptions\n", indent(1))
		for _, flag := range optionFlags {
			formatFlagLine(&sb, flag, termWidth, leftWidth, usageWidth)
		}
	}

	groups := make([]FlagGroup, len(a.FlagSet.flagGroups))
	copy(groups, a.FlagSet.flagGroups)
	sort.Slice(groups, func(i, j int) bool { return groups[i].Name < groups[j].Name })
	for _, group := range groups {
		formatFlagGroup(&sb, group, termWidth, leftWidth, usageWidth)
	}
	fmt.Fprint(w, sb.String())
}

// getOptionFlags returns the flags not owned by a group, sorted by name.
func (a *App) getOptionFlags() []*Flag {
	grouped := make(map[string]bool)
	for _, group := range a.FlagSet.flagGroups {
		for _, entry := range group.Flags {
			grouped[entry.Prefix+entry.Name] = true
			grouped[entry.Prefix+"no-"+entry.Name] = true
		}
	}
	var optionFlags []*Flag
	for _, flag := range a.FlagSet.flags {
		if !grouped[flag.Name] {
			optionFlags = append(optionFlags, flag)
		}
	}
	sort.Slice(optionFlags, func(i, j int) bool { return optionFlags[i].Name < optionFlags[j].Name })
	return optionFlags
}

func indent(level int) string { return strings.Repeat(" ", 4*level) }

func formatFlagString(flag *Flag) string {
	var flagStr strings.Builder
	_, isBool := flag.Value.(*boolValue)

	dashes := "--"
	if strings.ToUpper(flag.Name[:1]) == flag.Name[:1] {
		dashes = "-"
	}
	if flag.Shorthand != "" {
		fmt.Fprintf(&flagStr, "-%s", flag.Shorthand)
		if !isBool {
			fmt.Fprintf(&flagStr, " <%s>", flag.ExpectedType)
		}
		flagStr.WriteString(", ")
	}
	fmt.Fprintf(&flagStr, "%s%s", dashes, flag.Name)
	if !isBool && flag.ExpectedType != "" {
		fmt.Fprintf(&flagStr, "=<%s>", flag.ExpectedType)
	}
	return flagStr.String()
}

func formatEntry(sb *strings.Builder, termWidth int, leftPart, usagePart, rightPart string, leftWidth, usageWidth int) {
	indentStr := indent(2)
	maxUsageWidth := termWidth - (len(indentStr) + leftWidth + 3 + len(rightPart))
	if maxUsageWidth < 10 {
		maxUsageWidth = 10
	}
	usageWidth = min(usageWidth, maxUsageWidth)

	usageLines := wrapText(usagePart, maxUsageWidth)
	first := ""
	if len(usageLines) > 0 {
		first = usageLines[0]
	}

	if rightPart != "" {
		fmt.Fprintf(sb, "%s%-*s %-*s  %s\n", indentStr, leftWidth, leftPart, usageWidth, first, rightPart)
	} else {
		fmt.Fprintf(sb, "%s%-*s %s\n", indentStr, leftWidth, leftPart, first)
	}

	wrappedIndent := strings.Repeat(" ", leftWidth+1)
	for _, line := range usageLines[min(1, len(usageLines)):] {
		fmt.Fprintf(sb, "%s%s%s\n", indentStr, wrappedIndent, line)
	}
}

func formatFlagLine(sb *strings.Builder, flag *Flag, termWidth, leftWidth, usageWidth int) {
	rightPart := ""
	if _, isBool := flag.Value.(*boolValue); !isBool && flag.DefValue != "" {
		rightPart = fmt.Sprintf("|%s|", flag.DefValue)
	}
	formatEntry(sb, termWidth, formatFlagString(flag), flag.Usage, rightPart, leftWidth, usageWidth)
}

func formatFlagGroup(sb *strings.Builder, group FlagGroup, termWidth, leftWidth, usageWidth int) {
	if len(group.Flags) == 0 {
		return
	}
	fmt.Fprintf(sb, "\n%s%s\n", indent(1), group.Name)

	prefix := group.Flags[0].Prefix
	groupType := group.GroupType
	if groupType == "" {
		groupType = "flag"
	}
	fmt.Fprintf(sb, "%s%-*s Enable a specific %s\n", indent(2), leftWidth, fmt.Sprintf("-%s<%s>", prefix, groupType), groupType)
	fmt.Fprintf(sb, "%s%-*s Disable a specific %s\n", indent(2), leftWidth, fmt.Sprintf("-%sno-<%s>", prefix, groupType), groupType)

	if group.AvailableFlagsHeader != "" {
		fmt.Fprintf(sb, "%s%s\n", indent(1), group.AvailableFlagsHeader)
	}

	entries := make([]FlagGroupEntry, len(group.Flags))
	copy(entries, group.Flags)
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })

	for _, entry := range entries {
		rightPart := "|-|"
		if entry.Enabled != nil && *entry.Enabled && (entry.Disabled == nil || !*entry.Disabled) {
			rightPart = "|x|"
		}
		formatEntry(sb, termWidth, entry.Name, entry.Usage, rightPart, leftWidth, usageWidth)
	}
}

func getTerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return 80
	}
	if width < 20 {
		return 20
	}
	return width
}

func wrapText(text string, maxWidth int) []string {
	if maxWidth <= 0 {
		return []string{text}
	}
	words := strings.Fields(text)
	if len(words) == 0 {
		return []string{}
	}

	var lines []string
	var currentLine strings.Builder
	currentLen := 0

	for _, word := range words {
		wordLen := len(word)
		if currentLen+wordLen+1 > maxWidth && currentLen > 0 {
			lines = append(lines, currentLine.String())
			currentLine.Reset()
			currentLen = 0
		}
		if currentLen > 0 {
			currentLine.WriteString(" ")
			currentLen++
		}
		currentLine.WriteString(word)
		currentLen += wordLen
	}
	if currentLine.Len() > 0 {
		lines = append(lines, currentLine.String())
	}
	return lines
}
