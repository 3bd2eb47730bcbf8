// Package ti declares the boundary to threat-intelligence lookup providers.
// Providers classify a single observable; their parsing logic lives outside
// this module.
package ti

import (
	"context"
	"strings"
)

// Severity is the classification level of a matched observable.
type Severity int

const (
	// SeverityUnknown means the observable did not match any indicator.
	SeverityUnknown Severity = iota - 1
	// SeverityInformation is a low-confidence or informational match.
	SeverityInformation
	// SeverityWarning is a medium-confidence match.
	SeverityWarning
	// SeverityHigh is a high-confidence match.
	SeverityHigh
)

// String implements fmt.Stringer.
func (s Severity) String() string {
	switch s {
	case SeverityInformation:
		return "information"
	case SeverityWarning:
		return "warning"
	case SeverityHigh:
		return "high"
	default:
		return "unknown"
	}
}

// ParseSeverity maps a provider's textual severity onto the four-level enum:
// low, medium, high and unmatched become information, warning, high and
// unknown. Unrecognized values map to unknown.
func ParseSeverity(value string) Severity {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "low":
		return SeverityInformation
	case "medium":
		return SeverityWarning
	case "high":
		return SeverityHigh
	default:
		return SeverityUnknown
	}
}

// ObservableType identifies what kind of observable is being looked up.
type ObservableType string

const (
	ObservableIPv4     ObservableType = "ipv4"
	ObservableIPv6     ObservableType = "ipv6"
	ObservableDNS      ObservableType = "dns"
	ObservableURL      ObservableType = "url"
	ObservableFileHash ObservableType = "file_hash"
)

// Result is the outcome of one observable lookup.
type Result struct {
	IsMatch  bool
	Severity Severity
	Details  map[string]interface{}
}

// Provider submits one observable for classification.
type Provider interface {
	Lookup(ctx context.Context, observable string, observableType ObservableType) (Result, error)
}
