// File: internal/infra/metrics/metrics.go
package metrics

import "strings"

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// Result labels an operation outcome by error kind ("ok" when err is nil).
func result(kind string, err error) string {
	if err == nil {
		return "ok"
	}
	return norm(kind)
}
