package tools

import (
	"fmt"
	"sort"
	"strings"

	"github.com/itsuki0/term-assistant/internal/llm"
)

// WarnUnknownParams checks input for keys not in schema.
// Returns a warning string (with trailing newline) to attach to tool output,
// or "" if no unknown keys found.
func WarnUnknownParams(input llm.Value, schema llm.ToolSchema) string {
	if input.Kind() != llm.KindObject {
		return ""
	}
	var unknown []string
	for _, k := range input.Keys() {
		if _, ok := schema.Properties[k]; !ok {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) == 0 {
		return ""
	}
	sort.Strings(unknown)
	var sb strings.Builder
	for _, k := range unknown {
		sb.WriteString(fmt.Sprintf("Unknown parameter '%s' was ignored\n", k))
	}
	return sb.String()
}

// withWarning appends a parameter warning to a result.
func withWarning(res llm.ToolResult, warning string) llm.ToolResult {
	if warning != "" {
		res.Content = append(res.Content, llm.ToolResultContent{Text: strings.TrimSuffix(warning, "\n")})
	}
	return res
}
