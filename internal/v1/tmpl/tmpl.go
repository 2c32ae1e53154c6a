// Package tmpl expands ${dotted.path} placeholders in action parameters.
//
// Expansion is a pure function of the supplied view, a record shaped like
// {event, state, context, data}. A string consisting of exactly one
// placeholder yields the resolved value itself, preserving its type; embedded
// placeholders are stringified in place. Unresolved placeholders render as
// empty strings.
package tmpl

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/playforge/gamehost/internal/v1/statepath"
)

var placeholderRe = regexp.MustCompile(`\$\{([^{}]*)\}`)

// Render walks value and returns a structurally identical copy with every
// string expanded against view. Non-string leaves pass through unchanged.
func Render(value any, view any) any {
	switch v := value.(type) {
	case string:
		return renderString(v, view)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = Render(item, view)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[k] = Render(item, view)
		}
		return out
	default:
		return value
	}
}

func renderString(s string, view any) any {
	// Whole-string placeholders keep the resolved value's type so numeric
	// and boolean parameters survive templating.
	if m := placeholderRe.FindStringSubmatch(s); m != nil && m[0] == s {
		v, ok := statepath.Get(view, strings.TrimSpace(m[1]))
		if !ok || v == nil {
			return ""
		}
		return v
	}

	return placeholderRe.ReplaceAllStringFunc(s, func(ph string) string {
		expr := strings.TrimSpace(ph[2 : len(ph)-1])
		v, ok := statepath.Get(view, expr)
		if !ok {
			return ""
		}
		return Stringify(v)
	})
}

// Stringify formats a resolved value for embedding in a string parameter.
func Stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	default:
		return fmt.Sprint(x)
	}
}
