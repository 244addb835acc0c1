package remote

import (
	"strings"
	"unicode/utf8"

	"github.com/bytedance/sonic"
)

const maxDetailLen = 512

// detailFromBody extracts the human readable message from an error body. The
// service answers with {"detail": ...} where detail is a string, a nested
// {"detail": ...} object when proxied through the gateway, or a list of
// field errors.
func detailFromBody(body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return ""
	}
	var env struct {
		Detail any `json:"detail"`
	}
	if err := sonic.Unmarshal(body, &env); err != nil {
		return truncate(trimmed)
	}
	return truncate(flattenDetail(env.Detail))
}

func flattenDetail(v any) string {
	switch d := v.(type) {
	case string:
		return d
	case map[string]any:
		if inner, ok := d["detail"]; ok {
			return flattenDetail(inner)
		}
		if msg, ok := d["msg"].(string); ok {
			return msg
		}
		if msg, ok := d["message"].(string); ok {
			return msg
		}
	case []any:
		parts := make([]string, 0, len(d))
		for _, item := range d {
			if s := flattenDetail(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "; ")
	}
	return ""
}

// truncate cuts s to at most maxDetailLen bytes on a rune boundary.
func truncate(s string) string {
	if len(s) <= maxDetailLen {
		return s
	}
	n := maxDetailLen
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
