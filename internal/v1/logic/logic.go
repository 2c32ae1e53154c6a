// Package logic evaluates the declarative guard DSL used by game
// definitions. A node is a single-key record {op: [args...]}; a record with
// any other number of keys is an error, an array evaluates element by element,
// and any other value evaluates to itself. Views must be plain snapshots of
// {event, state, context, data}.
package logic

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/playforge/gamehost/internal/v1/statepath"
)

// Eval evaluates a logic tree against view and returns the resulting value.
func Eval(node any, view any) (any, error) {
	switch n := node.(type) {
	case map[string]any:
		if len(n) != 1 {
			return nil, fmt.Errorf("logic node must have exactly one operator, got %d", len(n))
		}
		for op, raw := range n {
			return apply(op, argList(raw), view)
		}
		return nil, nil
	case []any:
		out := make([]any, len(n))
		for i, item := range n {
			v, err := Eval(item, view)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	default:
		return node, nil
	}
}

// EvalBool evaluates a guard tree and reduces the result to a boolean.
func EvalBool(node any, view any) (bool, error) {
	v, err := Eval(node, view)
	if err != nil {
		return false, err
	}
	return Truthy(v), nil
}

func argList(raw any) []any {
	if list, ok := raw.([]any); ok {
		return list
	}
	return []any{raw}
}

func apply(op string, args []any, view any) (any, error) {
	switch op {
	case "var":
		return applyVar(args, view)
	case "!":
		v, err := evalArg(args, 0, view)
		if err != nil {
			return nil, err
		}
		return !Truthy(v), nil
	case "!!":
		v, err := evalArg(args, 0, view)
		if err != nil {
			return nil, err
		}
		return Truthy(v), nil
	case "and":
		return applyAnd(args, view)
	case "or":
		return applyOr(args, view)
	case "==", "!=", "===", "!==":
		return applyEquality(op, args, view)
	case "<", "<=", ">", ">=":
		return applyOrdering(op, args, view)
	case "+", "-", "*", "/", "%":
		return applyArithmetic(op, args, view)
	case "in":
		return applyIn(args, view)
	default:
		return nil, fmt.Errorf("unknown operator %q", op)
	}
}

func evalArg(args []any, i int, view any) (any, error) {
	if i >= len(args) {
		return nil, nil
	}
	return Eval(args[i], view)
}

func applyVar(args []any, view any) (any, error) {
	if len(args) == 0 {
		return view, nil
	}
	pathVal, err := Eval(args[0], view)
	if err != nil {
		return nil, err
	}
	path, ok := pathVal.(string)
	if !ok {
		return nil, fmt.Errorf("var path must be a string, got %T", pathVal)
	}
	if v, ok := statepath.Get(view, path); ok {
		return v, nil
	}
	// Optional second argument is the fallback for missing paths.
	if len(args) > 1 {
		return Eval(args[1], view)
	}
	return nil, nil
}

func applyAnd(args []any, view any) (any, error) {
	var last any = true
	for _, a := range args {
		v, err := Eval(a, view)
		if err != nil {
			return nil, err
		}
		if !Truthy(v) {
			return v, nil
		}
		last = v
	}
	return last, nil
}

func applyOr(args []any, view any) (any, error) {
	var last any = false
	for _, a := range args {
		v, err := Eval(a, view)
		if err != nil {
			return nil, err
		}
		if Truthy(v) {
			return v, nil
		}
		last = v
	}
	return last, nil
}

func applyEquality(op string, args []any, view any) (any, error) {
	a, err := evalArg(args, 0, view)
	if err != nil {
		return nil, err
	}
	b, err := evalArg(args, 1, view)
	if err != nil {
		return nil, err
	}

	var eq bool
	switch op {
	case "==", "!=":
		eq = looseEqual(a, b)
	default:
		eq = strictEqual(a, b)
	}
	if op == "!=" || op == "!==" {
		return !eq, nil
	}
	return eq, nil
}

func applyOrdering(op string, args []any, view any) (any, error) {
	if len(args) < 2 || len(args) > 3 {
		return nil, fmt.Errorf("%q expects 2 or 3 arguments, got %d", op, len(args))
	}
	nums := make([]float64, len(args))
	for i := range args {
		v, err := Eval(args[i], view)
		if err != nil {
			return nil, err
		}
		n, err := toNumber(v)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", op, err)
		}
		nums[i] = n
	}
	for i := 0; i < len(nums)-1; i++ {
		if !compare(op, nums[i], nums[i+1]) {
			return false, nil
		}
	}
	return true, nil
}

func compare(op string, a, b float64) bool {
	switch op {
	case "<":
		return a < b
	case "<=":
		return a <= b
	case ">":
		return a > b
	default:
		return a >= b
	}
}

func applyArithmetic(op string, args []any, view any) (any, error) {
	nums := make([]float64, 0, len(args))
	for _, a := range args {
		v, err := Eval(a, view)
		if err != nil {
			return nil, err
		}
		n, err := toNumber(v)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", op, err)
		}
		nums = append(nums, n)
	}
	if len(nums) == 0 {
		return nil, fmt.Errorf("%q expects at least one argument", op)
	}

	// Unary minus negates; every other operator folds left to right.
	if op == "-" && len(nums) == 1 {
		return -nums[0], nil
	}
	acc := nums[0]
	for _, n := range nums[1:] {
		switch op {
		case "+":
			acc += n
		case "-":
			acc -= n
		case "*":
			acc *= n
		case "/":
			if n == 0 {
				return nil, fmt.Errorf("division by zero")
			}
			acc /= n
		case "%":
			if n == 0 {
				return nil, fmt.Errorf("modulo by zero")
			}
			acc = float64(int64(acc) % int64(n))
		}
	}
	return acc, nil
}

func applyIn(args []any, view any) (any, error) {
	needle, err := evalArg(args, 0, view)
	if err != nil {
		return nil, err
	}
	haystack, err := evalArg(args, 1, view)
	if err != nil {
		return nil, err
	}

	switch h := haystack.(type) {
	case string:
		n, ok := needle.(string)
		if !ok {
			return false, nil
		}
		return strings.Contains(h, n), nil
	case []any:
		for _, item := range h {
			if looseEqual(needle, item) {
				return true, nil
			}
		}
		return false, nil
	default:
		return false, nil
	}
}

// Truthy reduces a value to a boolean: nil, false, 0, "" and empty
// collections are false.
func Truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case float64:
		return x != 0
	case float32:
		return x != 0
	case int:
		return x != 0
	case int64:
		return x != 0
	case []any:
		return len(x) > 0
	case map[string]any:
		return len(x) > 0
	default:
		return true
	}
}

func looseEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if strictEqual(a, b) {
		return true
	}
	// Mixed number/string comparisons coerce to numbers, mirroring the
	// behaviour definitions were authored against.
	na, errA := toNumber(a)
	nb, errB := toNumber(b)
	if errA == nil && errB == nil {
		return na == nb
	}
	return false
}

func strictEqual(a, b any) bool {
	switch x := a.(type) {
	case string:
		y, ok := b.(string)
		return ok && x == y
	case bool:
		y, ok := b.(bool)
		return ok && x == y
	default:
		na, errA := toNumber(a)
		nb, errB := toNumber(b)
		if errA == nil && errB == nil && isNumber(a) && isNumber(b) {
			return na == nb
		}
		return false
	}
}

func isNumber(v any) bool {
	switch v.(type) {
	case float64, float32, int, int64:
		return true
	default:
		return false
	}
}

func toNumber(v any) (float64, error) {
	switch x := v.(type) {
	case nil:
		return 0, nil
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	case string:
		n, err := strconv.ParseFloat(x, 64)
		if err != nil {
			return 0, fmt.Errorf("%q is not a number", x)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("%T is not a number", v)
	}
}
