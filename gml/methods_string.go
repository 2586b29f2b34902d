package gml

import (
	"strings"

	"github.com/lyzr/orchestrator/value"
)

// callStringMethod implements the string method table.
func callStringMethod(s string, name string, args []value.Value) (value.Value, bool, error) {
	arg := func(i int) value.Value {
		if i < len(args) {
			return args[i]
		}
		return value.Undefined()
	}
	argStr := func(i int) string { return value.ToDisplayString(arg(i)) }

	switch name {
	case "length":
		return value.Number(float64(len([]rune(s)))), true, nil
	case "trim":
		return value.String(strings.TrimSpace(s)), true, nil
	case "trimStart":
		return value.String(strings.TrimLeft(s, " \t\n\r")), true, nil
	case "trimEnd":
		return value.String(strings.TrimRight(s, " \t\n\r")), true, nil
	case "toUpperCase":
		return value.String(strings.ToUpper(s)), true, nil
	case "toLowerCase":
		return value.String(strings.ToLower(s)), true, nil
	case "startsWith":
		return value.Bool(strings.HasPrefix(s, argStr(0))), true, nil
	case "endsWith":
		return value.Bool(strings.HasSuffix(s, argStr(0))), true, nil
	case "includes":
		return value.Bool(strings.Contains(s, argStr(0))), true, nil
	case "indexOf":
		idx := strings.Index(s, argStr(0))
		if idx < 0 {
			return value.Number(-1), true, nil
		}
		return value.Number(float64(len([]rune(s[:idx])))), true, nil
	case "lastIndexOf":
		idx := strings.LastIndex(s, argStr(0))
		if idx < 0 {
			return value.Number(-1), true, nil
		}
		return value.Number(float64(len([]rune(s[:idx])))), true, nil
	case "substring", "slice":
		runes := []rune(s)
		start, end := sliceBounds(len(runes), arg(0), arg(1), len(args) > 1)
		return value.String(string(runes[start:end])), true, nil
	case "split":
		sep := argStr(0)
		var parts []string
		if sep == "" {
			for _, r := range s {
				parts = append(parts, string(r))
			}
		} else {
			parts = strings.Split(s, sep)
		}
		out := make([]value.Value, len(parts))
		for i, p := range parts {
			out[i] = value.String(p)
		}
		return value.ArrayFrom(out), true, nil
	case "replace":
		return value.String(strings.Replace(s, argStr(0), argStr(1), 1)), true, nil
	case "replaceAll":
		return value.String(strings.ReplaceAll(s, argStr(0), argStr(1))), true, nil
	case "padStart":
		return value.String(padString(s, arg(0), argPadChar(args, 1), true)), true, nil
	case "padEnd":
		return value.String(padString(s, arg(0), argPadChar(args, 1), false)), true, nil
	case "charAt":
		n, _ := value.ToNumber(arg(0))
		runes := []rune(s)
		i := int(n)
		if i < 0 || i >= len(runes) {
			return value.String(""), true, nil
		}
		return value.String(string(runes[i])), true, nil
	case "charCodeAt":
		n, _ := value.ToNumber(arg(0))
		runes := []rune(s)
		i := int(n)
		if i < 0 || i >= len(runes) {
			return value.Number(nan()), true, nil
		}
		return value.Number(float64(runes[i])), true, nil
	}
	return value.Undefined(), false, nil
}

func argPadChar(args []value.Value, i int) string {
	if i < len(args) {
		s := value.ToDisplayString(args[i])
		if s != "" {
			return s
		}
	}
	return " "
}

func padString(s string, targetLenV value.Value, padChar string, start bool) string {
	n, _ := value.ToNumber(targetLenV)
	target := int(n)
	cur := len([]rune(s))
	if target <= cur || padChar == "" {
		return s
	}
	var b strings.Builder
	padRunes := []rune(padChar)
	need := target - cur
	for b.Len() < need*len(string(padRunes[0])) && len([]rune(b.String())) < need {
		b.WriteString(padChar)
	}
	pad := []rune(b.String())
	if len(pad) > need {
		pad = pad[:need]
	}
	if start {
		return string(pad) + s
	}
	return s + string(pad)
}
