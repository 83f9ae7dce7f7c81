package walker

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

type ruleKind int

const (
	ruleInclude ruleKind = iota
	ruleExclude
)

type rule struct {
	kind    ruleKind
	pattern string
}

// Filter is a compiled, ordered list of include/exclude glob rules.
// An empty include list means "include everything" per spec.
type Filter struct {
	rules       []rule
	hasInclude  bool
}

// NewFilter compiles a Filter from separate include/exclude glob
// lists, preserving include-then-exclude evaluation order per pattern
// group (callers that need a specific interleaving should use
// ParseFilterFile instead).
func NewFilter(include, exclude []string) *Filter {
	f := &Filter{}
	for _, p := range include {
		f.rules = append(f.rules, rule{kind: ruleInclude, pattern: p})
		f.hasInclude = true
	}
	for _, p := range exclude {
		f.rules = append(f.rules, rule{kind: ruleExclude, pattern: p})
	}
	return f
}

// ParseFilterFile reads the filter-file format from spec.md §6: one
// rule per line, "+ <glob>" = include, "- <glob>" = exclude, blank
// lines and lines starting with '#' or ';' are ignored, rule order is
// preserved and the first matching rule wins.
func ParseFilterFile(path string) (*Filter, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()
	return parseFilterReader(fh)
}

func parseFilterReader(r io.Reader) (*Filter, error) {
	f := &Filter{}
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}
		if len(line) < 2 {
			return nil, fmt.Errorf("filter file line %d: malformed rule %q", lineNo, line)
		}
		switch line[0] {
		case '+':
			pat := strings.TrimSpace(line[1:])
			f.rules = append(f.rules, rule{kind: ruleInclude, pattern: pat})
			f.hasInclude = true
		case '-':
			pat := strings.TrimSpace(line[1:])
			f.rules = append(f.rules, rule{kind: ruleExclude, pattern: pat})
		default:
			return nil, fmt.Errorf("filter file line %d: rule must start with '+' or '-': %q", lineNo, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return f, nil
}

// Match reports whether relPath passes the filter: the first matching
// rule (in declared order) wins; if no include rule exists, every
// non-excluded path matches.
func (f *Filter) Match(relPath string) bool {
	if f == nil {
		return true
	}
	slashed := filepath.ToSlash(relPath)
	for _, r := range f.rules {
		if globMatch(r.pattern, slashed) {
			return r.kind == ruleInclude
		}
	}
	return !f.hasInclude
}

// globMatch matches pattern against name allowing "**" to span path
// separators, which filepath.Match alone cannot do.
func globMatch(pattern, name string) bool {
	if !strings.Contains(pattern, "**") {
		ok, err := filepath.Match(pattern, name)
		return err == nil && ok
	}
	parts := strings.Split(pattern, "**")
	pos := 0
	for i, part := range parts {
		part = strings.Trim(part, "/")
		if part == "" {
			continue
		}
		idx := strings.Index(name[pos:], part)
		if i == 0 && !strings.HasPrefix(name[pos:], part) {
			if idx < 0 {
				return false
			}
		}
		if idx < 0 {
			return false
		}
		pos += idx + len(part)
	}
	return true
}
