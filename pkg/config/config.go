package config

import (
	"fmt"
	"strings"

	"github.com/minicc/minicc/pkg/cli"
)

type Feature int

const (
	FeatCComments Feature = iota
	FeatCompoundAssign
	FeatIncDec
	FeatContinue
	FeatForDecl
	FeatShortCircuit
	FeatCount
)

type Warning int

const (
	WarnMissingReturn Warning = iota
	WarnNarrowing
	WarnUnusedValue
	WarnPedantic
	WarnExtra
	WarnCount
)

type Info struct {
	Name        string
	Enabled     bool
	Description string
}

// Entry points understood by the code generator.
const (
	EntryStart = "_start"
	EntryMain  = "main"
)

type Config struct {
	Features       map[Feature]Info
	Warnings       map[Warning]Info
	FeatureMap     map[string]Feature
	WarningMap     map[string]Warning
	StdName        string
	Entry          string
	TargetArch     string
	WordSize       int
	SlotSize       int
	StackAlignment int
}

func NewConfig() *Config {
	cfg := &Config{
		Features:       make(map[Feature]Info),
		Warnings:       make(map[Warning]Info),
		FeatureMap:     make(map[string]Feature),
		WarningMap:     make(map[string]Warning),
		StdName:        "ext",
		Entry:          EntryStart,
		TargetArch:     "i386",
		WordSize:       4,
		SlotSize:       4,
		StackAlignment: 4,
	}

	features := map[Feature]Info{
		FeatCComments:      {"c-comments", true, "Recognize '//' line comments."},
		FeatCompoundAssign: {"compound-assign", true, "Recognize the assignment operators '+=', '-=', '*=' and '/='."},
		FeatIncDec:         {"inc-dec", true, "Recognize prefix and postfix '++' and '--'."},
		FeatContinue:       {"continue", true, "Allow the 'continue' statement inside loops."},
		FeatForDecl:        {"for-decl", true, "Allow a declaration as the initializer of a 'for' loop."},
		FeatShortCircuit:   {"short-circuit", true, "Evaluate the right operand of '&&' and '||' only when needed."},
	}

	warnings := map[Warning]Info{
		WarnMissingReturn: {"missing-return", true, "Warn when a non-void function may end without returning a value."},
		WarnNarrowing:     {"narrowing", false, "Warn when an assignment converts float to an integer type or int to char."},
		WarnUnusedValue:   {"unused-value", true, "Warn about expression statements whose value is discarded."},
		WarnPedantic:      {"pedantic", false, "Issue all warnings demanded by the strict standard."},
		WarnExtra:         {"extra", true, "Enable extra miscellaneous warnings."},
	}

	cfg.Features, cfg.Warnings = features, warnings
	for ft, info := range features {
		cfg.FeatureMap[info.Name] = ft
	}
	for wt, info := range warnings {
		cfg.WarningMap[info.Name] = wt
	}

	return cfg
}

func (c *Config) SetFeature(ft Feature, enabled bool) {
	if info, ok := c.Features[ft]; ok {
		info.Enabled = enabled
		c.Features[ft] = info
	}
}

func (c *Config) IsFeatureEnabled(ft Feature) bool { return c.Features[ft].Enabled }

func (c *Config) SetWarning(wt Warning, enabled bool) {
	if info, ok := c.Warnings[wt]; ok {
		info.Enabled = enabled
		c.Warnings[wt] = info
	}
}

func (c *Config) IsWarningEnabled(wt Warning) bool { return c.Warnings[wt].Enabled }

// WarningName returns the flag spelling of wt, as shown in "[-W<name>]".
func (c *Config) WarningName(wt Warning) string { return c.Warnings[wt].Name }

// SetEntry selects the symbol main is emitted under.
func (c *Config) SetEntry(entry string) error {
	switch entry {
	case EntryStart, EntryMain:
		c.Entry = entry
		return nil
	}
	return fmt.Errorf("unsupported entry '%s'. Supported: '%s', '%s'", entry, EntryStart, EntryMain)
}

// ApplyStd switches the language level. "c-subset" is the core grammar,
// "ext" adds the extensions on top of it.
func (c *Config) ApplyStd(stdName string) error {
	isPedantic := c.IsWarningEnabled(WarnPedantic)

	type stdSettings struct {
		feature     Feature
		subsetValue bool
		extValue    bool
	}

	settings := []stdSettings{
		{FeatCComments, true, true},
		{FeatCompoundAssign, true, true},
		{FeatIncDec, false, true},
		{FeatContinue, false, true},
		{FeatForDecl, false, true},
		{FeatShortCircuit, true, true},
	}

	switch stdName {
	case "c-subset":
		for _, s := range settings {
			c.SetFeature(s.feature, s.subsetValue)
		}
		c.SetWarning(WarnNarrowing, isPedantic)
	case "ext":
		for _, s := range settings {
			c.SetFeature(s.feature, s.extValue)
		}
	default:
		return fmt.Errorf("unsupported standard '%s'. Supported: 'c-subset', 'ext'", stdName)
	}
	c.StdName = stdName
	return nil
}

func (c *Config) applyFlag(flag string) error {
	trimmed := strings.TrimPrefix(flag, "-")
	isNo := strings.HasPrefix(trimmed, "Wno-") || strings.HasPrefix(trimmed, "Fno-")
	enable := !isNo

	var name string
	var isWarning bool

	switch {
	case strings.HasPrefix(trimmed, "W"):
		name = strings.TrimPrefix(trimmed, "W")
		if isNo {
			name = strings.TrimPrefix(name, "no-")
		}
		isWarning = true
	case strings.HasPrefix(trimmed, "F"):
		name = strings.TrimPrefix(trimmed, "F")
		if isNo {
			name = strings.TrimPrefix(name, "no-")
		}
	default:
		name = trimmed
		isWarning = true
	}

	if name == "all" && isWarning {
		for i := Warning(0); i < WarnCount; i++ {
			if i != WarnPedantic {
				c.SetWarning(i, enable)
			}
		}
		return nil
	}

	if isWarning {
		if w, ok := c.WarningMap[name]; ok {
			c.SetWarning(w, enable)
			return nil
		}
		return fmt.Errorf("unknown warning '%s'", name)
	}
	if f, ok := c.FeatureMap[name]; ok {
		c.SetFeature(f, enable)
		return nil
	}
	return fmt.Errorf("unknown feature '%s'", name)
}

// ApplyFlags applies -W/-F style flags in order. "-Wall" and "-Wno-all"
// are applied first so individual flags can override them.
func (c *Config) ApplyFlags(flags ...string) error {
	isGlobal := func(f string) bool {
		f = strings.TrimPrefix(f, "-")
		return f == "Wall" || f == "Wno-all"
	}
	for _, f := range flags {
		if isGlobal(f) {
			if err := c.applyFlag(f); err != nil {
				return err
			}
		}
	}
	for _, f := range flags {
		if !isGlobal(f) {
			if err := c.applyFlag(f); err != nil {
				return err
			}
		}
	}
	return nil
}

// SetupFlagGroups registers -W<warning> and -F<feature> flags on fs and
// returns the entries so the caller can apply them after parsing.
func (c *Config) SetupFlagGroups(fs *cli.FlagSet) ([]cli.FlagGroupEntry, []cli.FlagGroupEntry) {
	var warningFlags, featureFlags []cli.FlagGroupEntry

	for i := Warning(0); i < WarnCount; i++ {
		pEnable, pDisable := new(bool), new(bool)
		info := c.Warnings[i]
		warningFlags = append(warningFlags, cli.FlagGroupEntry{
			Name: info.Name, Prefix: "W", Usage: info.Description,
			Enabled: pEnable, Disabled: pDisable,
		})
	}

	for i := Feature(0); i < FeatCount; i++ {
		pEnable, pDisable := new(bool), new(bool)
		info := c.Features[i]
		featureFlags = append(featureFlags, cli.FlagGroupEntry{
			Name: info.Name, Prefix: "F", Usage: info.Description,
			Enabled: pEnable, Disabled: pDisable,
		})
	}

	fs.AddFlagGroup("Warning Flags", "Enable or disable specific warnings", "warning flag", "Available Warnings:", warningFlags)
	fs.AddFlagGroup("Feature Flags", "Enable or disable specific features", "feature flag", "Available Features:", featureFlags)

	return warningFlags, featureFlags
}

// ApplyFlagGroups copies parsed flag group values into the configuration.
func (c *Config) ApplyFlagGroups(warningFlags, featureFlags []cli.FlagGroupEntry) {
	for i, entry := range warningFlags {
		if entry.Enabled != nil && *entry.Enabled {
			c.SetWarning(Warning(i), true)
		}
		if entry.Disabled != nil && *entry.Disabled {
			c.SetWarning(Warning(i), false)
		}
	}
	for i, entry := range featureFlags {
		if entry.Enabled != nil && *entry.Enabled {
			c.SetFeature(Feature(i), true)
		}
		if entry.Disabled != nil && *entry.Disabled {
			c.SetFeature(Feature(i), false)
		}
	}
}
