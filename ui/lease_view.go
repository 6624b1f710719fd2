package ui

import (
	"fmt"
	"strings"
	"time"
)

type LeaseView struct {
	Path      string
	Operation string
	Owner     string
	PID       int
	Host      string
	Age       time.Duration
	Stale     bool
}

// RenderLease describes the repository lease, or its absence when lease is
// nil.
func RenderLease(lease *LeaseView, styles Styles) string {
	if lease == nil {
		return styles.Secondary("No lease held.") + "\n"
	}
	var b strings.Builder
	state := "held"
	if lease.Stale {
		state = styles.Warn("stale")
	}
	fmt.Fprintf(&b, "%s %s\n", styles.Header("Lease:"), state)
	fmt.Fprintf(&b, "  operation: %s\n", formatOperation(lease.Operation))
	fmt.Fprintf(&b, "  holder:    %s\n", formatHolder(lease.PID, lease.Host))
	fmt.Fprintf(&b, "  owner:     %s\n", orDash(lease.Owner))
	fmt.Fprintf(&b, "  age:       %s\n", FormatAge(lease.Age))
	fmt.Fprintf(&b, "  file:      %s\n", styles.Secondary(lease.Path))
	return b.String()
}

func formatOperation(op string) string {
	return orDash(strings.TrimSpace(op))
}

func formatHolder(pid int, host string) string {
	host = strings.TrimSpace(host)
	switch {
	case pid <= 0 && host == "":
		return "-"
	case pid <= 0:
		return host
	case host == "":
		return fmt.Sprintf("pid %d", pid)
	default:
		return fmt.Sprintf("pid %d on %s", pid, host)
	}
}

// FormatAge renders a duration at second precision.
func FormatAge(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return d.Truncate(time.Second).String()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
