// internal/monitoring/evaluate.go
package monitoring

import (
	"fmt"
	"strings"

	"ravenwatch/internal/database"
)

const (
	DiagMissingSubstring = "missing required substring"
	DiagNoResponse       = "no response received"
)

// Verdict is the health decision for one outcome. Diagnostics is empty
// exactly when Healthy is true.
type Verdict struct {
	Healthy     bool
	Diagnostics []string
}

// Evaluate applies a monitor's expectations to an outcome. Every configured
// check runs, so an unhealthy verdict lists all mismatches at once.
func Evaluate(m database.Monitor, o Outcome) Verdict {
	if !o.Responded() {
		return Verdict{Diagnostics: []string{DiagNoResponse}}
	}

	var diags []string

	expected := m.EffectiveStatusCode()
	if got := o.StatusCodeString(); got != expected {
		diags = append(diags, fmt.Sprintf("status code mismatch: expected %q, got %q", expected, got))
	}

	if m.ExpectedLocation != "" && o.Location != m.ExpectedLocation {
		diags = append(diags, fmt.Sprintf("location mismatch: expected %q, got %q", m.ExpectedLocation, o.Location))
	}

	if m.RequiredSubstring != "" && !strings.Contains(o.Body, m.RequiredSubstring) {
		diags = append(diags, DiagMissingSubstring)
	}

	return Verdict{Healthy: len(diags) == 0, Diagnostics: diags}
}
