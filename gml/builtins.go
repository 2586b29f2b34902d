package gml

import (
	"math"
	"regexp"
	"strconv"
	"time"

	"github.com/lyzr/orchestrator/value"
)

// BuiltinFunc is a built-in GML function: DATE/TIME/NOW,
// aggregate helpers, string/number helpers and the IF/COALESCE control
// helpers. Built-ins are resolved ahead of UDFs and context variables in
// call position.
type BuiltinFunc func(args []value.Value) (value.Value, error)

var offsetPattern = regexp.MustCompile(`^([+-])(\d+)([ymdhs]|mo|min)$`)

// Builtins returns the standard built-in function table.
func Builtins() map[string]BuiltinFunc {
	return map[string]BuiltinFunc{
		"DATE":     builtinDate,
		"TIME":     builtinTime,
		"NOW":      builtinNow,
		"COUNT":    builtinCount,
		"SUM":      builtinSum,
		"AVG":      builtinAvg,
		"MIN":      builtinMin,
		"MAX":      builtinMax,
		"LEN":      builtinLen,
		"TRIM":     builtinTrim,
		"UPPER":    builtinUpper,
		"LOWER":    builtinLower,
		"ROUND":    builtinRound,
		"FLOOR":    builtinFloor,
		"CEIL":     builtinCeil,
		"ABS":      builtinAbs,
		"IF":       builtinIf,
		"COALESCE": builtinCoalesce,
	}
}

// applyOffset shifts t by a GML offset string like "+1d", "-3h", "+30min".
// Month and year arithmetic is calendar-based, done via time.AddDate which already normalizes that way.
func applyOffset(t time.Time, offset string) time.Time {
	if offset == "" {
		return t
	}
	m := offsetPattern.FindStringSubmatch(offset)
	if m == nil {
		return t
	}
	n, _ := strconv.Atoi(m[2])
	if m[1] == "-" {
		n = -n
	}
	switch m[3] {
	case "y":
		return t.AddDate(n, 0, 0)
	case "mo":
		return t.AddDate(0, n, 0)
	case "d":
		return t.AddDate(0, 0, n)
	case "h":
		return t.Add(time.Duration(n) * time.Hour)
	case "min":
		return t.Add(time.Duration(n) * time.Minute)
	case "s":
		return t.Add(time.Duration(n) * time.Second)
	default:
		return t
	}
}

func builtinDate(args []value.Value) (value.Value, error) {
	offset := ""
	if len(args) > 0 {
		offset = args[0].Str()
	}
	return value.String(applyOffset(time.Now().UTC(), offset).Format("2006-01-02")), nil
}

func builtinTime(args []value.Value) (value.Value, error) {
	offset := ""
	if len(args) > 0 {
		offset = args[0].Str()
	}
	return value.String(applyOffset(time.Now().UTC(), offset).Format("15:04:05")), nil
}

func builtinNow(args []value.Value) (value.Value, error) {
	return value.String(time.Now().UTC().Format(time.RFC3339)), nil
}

func numericArray(args []value.Value) []value.Value {
	if len(args) == 1 && args[0].Kind() == value.KindArray {
		return args[0].Array()
	}
	return args
}

func builtinCount(args []value.Value) (value.Value, error) {
	return value.Number(float64(len(numericArray(args)))), nil
}

func builtinSum(args []value.Value) (value.Value, error) {
	total := 0.0
	for _, v := range numericArray(args) {
		n, _ := value.ToNumber(v)
		total += n
	}
	return value.Number(total), nil
}

func builtinAvg(args []value.Value) (value.Value, error) {
	items := numericArray(args)
	if len(items) == 0 {
		return value.Number(0), nil
	}
	total := 0.0
	for _, v := range items {
		n, _ := value.ToNumber(v)
		total += n
	}
	return value.Number(total / float64(len(items))), nil
}

func builtinMin(args []value.Value) (value.Value, error) {
	items := numericArray(args)
	if len(items) == 0 {
		return value.Undefined(), nil
	}
	m, _ := value.ToNumber(items[0])
	for _, v := range items[1:] {
		n, _ := value.ToNumber(v)
		if n < m {
			m = n
		}
	}
	return value.Number(m), nil
}

func builtinMax(args []value.Value) (value.Value, error) {
	items := numericArray(args)
	if len(items) == 0 {
		return value.Undefined(), nil
	}
	m, _ := value.ToNumber(items[0])
	for _, v := range items[1:] {
		n, _ := value.ToNumber(v)
		if n > m {
			m = n
		}
	}
	return value.Number(m), nil
}

func builtinLen(args []value.Value) (value.Value, error) {
	if len(args) == 0 {
		return value.Number(0), nil
	}
	v := args[0]
	switch v.Kind() {
	case value.KindString:
		return value.Number(float64(len([]rune(v.Str())))), nil
	case value.KindArray:
		return value.Number(float64(len(v.Array()))), nil
	case value.KindObject:
		return value.Number(float64(v.Object().Len())), nil
	default:
		return value.Number(0), nil
	}
}

func builtinTrim(args []value.Value) (value.Value, error) {
	if len(args) == 0 {
		return value.String(""), nil
	}
	v, _, err := callStringMethod(args[0].Str(), "trim", nil)
	return v, err
}

func builtinUpper(args []value.Value) (value.Value, error) {
	if len(args) == 0 {
		return value.String(""), nil
	}
	v, _, err := callStringMethod(args[0].Str(), "toUpperCase", nil)
	return v, err
}

func builtinLower(args []value.Value) (value.Value, error) {
	if len(args) == 0 {
		return value.String(""), nil
	}
	v, _, err := callStringMethod(args[0].Str(), "toLowerCase", nil)
	return v, err
}

func builtinRound(args []value.Value) (value.Value, error) {
	if len(args) == 0 {
		return value.Number(0), nil
	}
	n, _ := value.ToNumber(args[0])
	digits := 0
	if len(args) > 1 {
		d, _ := value.ToNumber(args[1])
		digits = int(d)
	}
	mult := math.Pow(10, float64(digits))
	return value.Number(math.Round(n*mult) / mult), nil
}

func builtinFloor(args []value.Value) (value.Value, error) {
	if len(args) == 0 {
		return value.Number(0), nil
	}
	n, _ := value.ToNumber(args[0])
	return value.Number(math.Floor(n)), nil
}

func builtinCeil(args []value.Value) (value.Value, error) {
	if len(args) == 0 {
		return value.Number(0), nil
	}
	n, _ := value.ToNumber(args[0])
	return value.Number(math.Ceil(n)), nil
}

func builtinAbs(args []value.Value) (value.Value, error) {
	if len(args) == 0 {
		return value.Number(0), nil
	}
	n, _ := value.ToNumber(args[0])
	return value.Number(math.Abs(n)), nil
}

func builtinIf(args []value.Value) (value.Value, error) {
	if len(args) < 2 {
		return value.Undefined(), nil
	}
	if args[0].Truthy() {
		return args[1], nil
	}
	if len(args) > 2 {
		return args[2], nil
	}
	return value.Undefined(), nil
}

func builtinCoalesce(args []value.Value) (value.Value, error) {
	for _, v := range args {
		if !v.IsNullish() {
			return v, nil
		}
	}
	return value.Null(), nil
}
