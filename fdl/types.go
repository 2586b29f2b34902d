// Package fdl parses FDL (Flow Definition Language), a YAML dialect,
// into the flow.Flow model. Follows the same load-path shape as
// compiler/ir.go, adapted to FDL's grammar instead of a plain YAML tree.
package fdl

import (
	"fmt"
	"strings"

	"github.com/lyzr/orchestrator/flow"
)

// parseTypeSpec parses a bare type expression (no default/description),
// e.g. "string", "map<int>", "Order[]?":
// `base := primitive | custom_type_name`, suffixes applied in order
// `map<T>` → `[]` → `?`. "[]?" is valid; "?[]" is rejected.
func parseTypeSpec(s string) (flow.TypeSpec, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return flow.TypeSpec{}, fmt.Errorf("fdl: empty type expression")
	}
	if strings.HasPrefix(s, "map<") {
		depth := 0
		end := -1
		for i, r := range s {
			switch r {
			case '<':
				depth++
			case '>':
				depth--
				if depth == 0 {
					end = i
				}
			}
			if end != -1 {
				break
			}
		}
		if end == -1 {
			return flow.TypeSpec{}, fmt.Errorf("fdl: unterminated map<...> in type %q", s)
		}
		inner, err := parseTypeSpec(s[4:end])
		if err != nil {
			return flow.TypeSpec{}, err
		}
		spec := flow.TypeSpec{Base: "map", MapValue: &inner}
		return applySuffixes(spec, s[end+1:])
	}

	i := 0
	for i < len(s) && s[i] != '[' && s[i] != '?' {
		i++
	}
	base := strings.TrimSpace(s[:i])
	if base == "" {
		return flow.TypeSpec{}, fmt.Errorf("fdl: missing base type in %q", s)
	}
	return applySuffixes(flow.TypeSpec{Base: base}, s[i:])
}

// applySuffixes consumes an optional "[]" then an optional "?", in that
// order; "?[]" is a parse error.
func applySuffixes(spec flow.TypeSpec, suffix string) (flow.TypeSpec, error) {
	suffix = strings.TrimSpace(suffix)
	if strings.HasPrefix(suffix, "?[]") {
		return flow.TypeSpec{}, fmt.Errorf("fdl: invalid type suffix order \"?[]\" — array must precede nullable")
	}
	if strings.HasPrefix(suffix, "[]") {
		spec.IsArray = true
		suffix = suffix[2:]
	}
	if strings.HasPrefix(suffix, "?") {
		spec.Nullable = true
		suffix = suffix[1:]
	}
	if strings.TrimSpace(suffix) != "" {
		return flow.TypeSpec{}, fmt.Errorf("fdl: unexpected trailing type syntax %q", suffix)
	}
	return spec, nil
}

// parseParamValue parses one `args.in`/`args.out`/`args.defs` field value:
// `type[[]][?] [= default] [# description]`.
func parseParamValue(raw string) (flow.TypeSpec, string, string, error) {
	body, desc := splitTrailingComment(raw)
	typePart, defaultPart := splitDefault(body)
	spec, err := parseTypeSpec(typePart)
	if err != nil {
		return flow.TypeSpec{}, "", "", err
	}
	return spec, strings.TrimSpace(defaultPart), strings.TrimSpace(desc), nil
}

// splitTrailingComment splits off a `# description` suffix, respecting
// that '#' may appear inside a quoted default expression.
func splitTrailingComment(s string) (string, string) {
	inQuote := rune(0)
	for i, r := range s {
		if inQuote != 0 {
			if r == inQuote {
				inQuote = 0
			}
			continue
		}
		if r == '\'' || r == '"' {
			inQuote = r
			continue
		}
		if r == '#' {
			return s[:i], s[i+1:]
		}
	}
	return s, ""
}

func splitDefault(s string) (string, string) {
	inQuote := rune(0)
	for i, r := range s {
		if inQuote != 0 {
			if r == inQuote {
				inQuote = 0
			}
			continue
		}
		if r == '\'' || r == '"' {
			inQuote = r
			continue
		}
		if r == '=' {
			return s[:i], s[i+1:]
		}
	}
	return s, ""
}

// parseNext splits a comma-separated `next` field, trimming whitespace and
// filtering empties.
func parseNext(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
