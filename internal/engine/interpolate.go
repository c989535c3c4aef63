package engine

import (
	"fmt"
	"regexp"
)

var tokenPattern = regexp.MustCompile(`\{([a-zA-Z0-9_]+)\}`)

// Interpolate substitutes {field} tokens in a response template with the
// stringified context value. Tokens naming fields absent from the context are
// left untouched so authoring gaps stay visible in the audit trail instead of
// silently vanishing.
func Interpolate(template string, ctx map[string]any) string {
	if template == "" {
		return ""
	}
	return tokenPattern.ReplaceAllStringFunc(template, func(token string) string {
		field := token[1 : len(token)-1]
		v, ok := ctx[field]
		if !ok || v == nil {
			return token
		}
		if s, isStr := v.(string); isStr {
			if s == "" {
				return token
			}
			return s
		}
		return fmt.Sprintf("%v", v)
	})
}
