package notification

import (
	"fmt"
	"strings"
	"time"
)

// FormatMessage renders the subject and plain-text body for a trigger.
// Channels apply their own markup on top.
func FormatMessage(tc AlertTriggeredContext) (subject string, body string) {
	target := tc.Alert.Symbol()
	if target == "" {
		target = string(tc.Alert.Kind)
	}
	subject = "Alert triggered: " + target

	var b strings.Builder
	fmt.Fprintf(&b, "Condition: %s\n", tc.Condition)
	fmt.Fprintf(&b, "Current value: %s\n", tc.CurrentValue.String())
	fmt.Fprintf(&b, "Triggered at: %s\n", tc.TriggeredAt.UTC().Format(time.RFC3339))
	if e := strings.TrimSpace(tc.Explanation); e != "" {
		b.WriteString("\n")
		b.WriteString(e)
	}
	return subject, strings.TrimRight(b.String(), "\n")
}

// truncate bounds text copied from remote responses into logs.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}
