package ast

import (
	"fmt"
	"strings"
)

// Conversions accepted by the built-in I/O functions.
const (
	PrintfVerbs = "dicfs"
	ScanfVerbs  = "dicf"
)

// FormatGroup is a slice of a printf/scanf format holding literal text and
// at most one conversion. Verb is 0 when the group has no conversion.
type FormatGroup struct {
	Text string
	Verb byte
	Spec string // the conversion as written, e.g. "%-4d"
}

// ParseFormat splits a format literal into groups, one per conversion,
// with trailing literal text attached to the last group. verbs lists the
// accepted conversion characters.
func ParseFormat(format, verbs string) ([]FormatGroup, error) {
	var groups []FormatGroup
	start := 0
	for i := 0; i < len(format); i++ {
		if format[i] != '%' {
			continue
		}
		if i+1 < len(format) && format[i+1] == '%' {
			i++
			continue
		}
		specStart := i
		j := i + 1
		for j < len(format) && isFlag(format[j]) {
			j++
		}
		for j < len(format) && isDigit(format[j]) {
			j++
		}
		if j < len(format) && format[j] == '.' {
			j++
			for j < len(format) && isDigit(format[j]) {
				j++
			}
		}
		if j >= len(format) {
			return nil, fmt.Errorf("incomplete conversion '%s' at end of format", format[specStart:])
		}
		verb := format[j]
		if strings.IndexByte(verbs, verb) < 0 {
			return nil, fmt.Errorf("unsupported conversion '%s'", format[specStart:j+1])
		}
		groups = append(groups, FormatGroup{
			Text: format[start : j+1],
			Verb: verb,
			Spec: format[specStart : j+1],
		})
		start = j + 1
		i = j
	}
	if start < len(format) || len(groups) == 0 {
		if len(groups) > 0 {
			groups[len(groups)-1].Text += format[start:]
		} else {
			groups = append(groups, FormatGroup{Text: format})
		}
	}
	return groups, nil
}

// Conversions counts the groups that consume an argument.
func Conversions(groups []FormatGroup) int {
	n := 0
	for _, g := range groups {
		if g.Verb != 0 {
			n++
		}
	}
	return n
}

func isFlag(c byte) bool { return c == '-' || c == '+' || c == ' ' || c == '0' || c == '#' }

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
