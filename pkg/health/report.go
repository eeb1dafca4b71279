// Package health aggregates the results of post-deploy checks into a report
package health

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// CheckStatus represents the status of a health check
type CheckStatus string

const (
	StatusHealthy  CheckStatus = "healthy"
	StatusWarning  CheckStatus = "warning"
	StatusCritical CheckStatus = "critical"
	StatusUnknown  CheckStatus = "unknown"
)

// CheckResult represents the result of a single health check
type CheckResult struct {
	Name        string        `json:"name" yaml:"name"`
	Status      CheckStatus   `json:"status" yaml:"status"`
	Message     string        `json:"message" yaml:"message"`
	Details     []string      `json:"details,omitempty" yaml:"details,omitempty"`
	Duration    time.Duration `json:"duration" yaml:"duration"`
	Remediation string        `json:"remediation,omitempty" yaml:"remediation,omitempty"`
}

// Summary provides aggregate statistics
type Summary struct {
	TotalChecks    int `json:"total" yaml:"total"`
	HealthyChecks  int `json:"healthy" yaml:"healthy"`
	WarningChecks  int `json:"warning" yaml:"warning"`
	CriticalChecks int `json:"critical" yaml:"critical"`
	UnknownChecks  int `json:"unknown" yaml:"unknown"`
}

// Report is the outcome of a set of checks against one stack
type Report struct {
	StackName       string        `json:"stack" yaml:"stack"`
	CheckedAt       time.Time     `json:"checkedAt" yaml:"checkedAt"`
	Duration        time.Duration `json:"duration" yaml:"duration"`
	OverallStatus   CheckStatus   `json:"status" yaml:"status"`
	Checks          []CheckResult `json:"checks" yaml:"checks"`
	Summary         Summary       `json:"summary" yaml:"summary"`
	Recommendations []string      `json:"recommendations,omitempty" yaml:"recommendations,omitempty"`
}

// NewReport starts an empty, healthy report
func NewReport(stackName string) *Report {
	return &Report{
		StackName:     stackName,
		CheckedAt:     time.Now(),
		OverallStatus: StatusHealthy,
		Checks:        []CheckResult{},
	}
}

// Add records a check result and updates the overall status (critical > warning > healthy)
func (r *Report) Add(result CheckResult) {
	r.Checks = append(r.Checks, result)

	switch result.Status {
	case StatusHealthy:
		r.Summary.HealthyChecks++
	case StatusWarning:
		r.Summary.WarningChecks++
		if r.OverallStatus != StatusCritical {
			r.OverallStatus = StatusWarning
		}
	case StatusCritical:
		r.Summary.CriticalChecks++
		r.OverallStatus = StatusCritical
	default:
		r.Summary.UnknownChecks++
	}
	r.Summary.TotalChecks++

	if result.Status != StatusHealthy && result.Remediation != "" {
		r.Recommendations = append(r.Recommendations, result.Remediation)
	}
}

// Finish stamps the report duration
func (r *Report) Finish() {
	r.Duration = time.Since(r.CheckedAt)
}

// Healthy reports whether no check was critical
func (r *Report) Healthy() bool {
	return r.OverallStatus != StatusCritical
}

// Print writes the report in a human readable form
func (r *Report) Print(w io.Writer) {
	line := strings.Repeat("─", 67)

	fmt.Fprintln(w)
	fmt.Fprintf(w, "  Stack Health Report: %s\n", r.StackName)
	fmt.Fprintln(w, line)
	fmt.Fprintf(w, "  Checked At:     %s\n", r.CheckedAt.Format(time.RFC3339))
	fmt.Fprintf(w, "  Duration:       %s\n", r.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "  Overall Status: %s %s\n", StatusIcon(r.OverallStatus), strings.ToUpper(string(r.OverallStatus)))
	fmt.Fprintf(w, "  Checks:         %d healthy, %d warning, %d critical, %d unknown\n",
		r.Summary.HealthyChecks, r.Summary.WarningChecks, r.Summary.CriticalChecks, r.Summary.UnknownChecks)
	fmt.Fprintln(w, line)

	for _, check := range r.Checks {
		fmt.Fprintf(w, "  %s %s: %s\n", StatusIcon(check.Status), check.Name, check.Message)
		for _, detail := range check.Details {
			fmt.Fprintf(w, "       - %s\n", detail)
		}
	}

	if len(r.Recommendations) > 0 {
		fmt.Fprintln(w, line)
		fmt.Fprintln(w, "  Recommendations")
		for i, rec := range r.Recommendations {
			fmt.Fprintf(w, "  %d. %s\n", i+1, rec)
		}
	}
	fmt.Fprintln(w)
}

// StatusIcon returns the icon printed next to a status
func StatusIcon(status CheckStatus) string {
	switch status {
	case StatusHealthy:
		return "✅"
	case StatusWarning:
		return "⚠️ "
	case StatusCritical:
		return "❌"
	default:
		return "❓"
	}
}
