// Package validation provides centralized input validation for pingd.
package validation

import (
	"fmt"
	"net"
	"strings"
	"unicode"
)

// =============================================================================
// Name Validation
// =============================================================================

// NameRules defines the validation rules for names.
type NameRules struct {
	MinLength    int
	MaxLength    int
	AllowDots    bool
	AllowHyphens bool
	AllowUnders  bool
}

// HostRules returns the rules for DNS host names.
func HostRules() NameRules {
	return NameRules{
		MinLength:    1,
		MaxLength:    253,
		AllowDots:    true,
		AllowHyphens: true,
		AllowUnders:  true,
	}
}

// SeriesRules returns the rules for measurement, tag and table names.
func SeriesRules() NameRules {
	return NameRules{
		MinLength:    1,
		MaxLength:    255,
		AllowDots:    false,
		AllowHyphens: false,
		AllowUnders:  true,
	}
}

// ValidateName validates a name according to the given rules.
func ValidateName(name string, rules NameRules) error {
	if len(name) < rules.MinLength {
		return fmt.Errorf("name too short: minimum %d characters required", rules.MinLength)
	}
	if len(name) > rules.MaxLength {
		return fmt.Errorf("name too long: maximum %d characters allowed", rules.MaxLength)
	}

	if name == "." || name == ".." {
		return fmt.Errorf("name cannot be '.' or '..'")
	}

	if strings.HasPrefix(name, ".") {
		return fmt.Errorf("name cannot start with '.'")
	}

	for i, r := range name {
		if r < 32 || r == 127 {
			return fmt.Errorf("name cannot contain control characters at position %d", i)
		}
		if r == '/' || r == '\\' {
			return fmt.Errorf("name cannot contain path separators at position %d", i)
		}
		if !isAllowedNameChar(r, rules) {
			return fmt.Errorf("invalid character '%c' at position %d", r, i)
		}
	}

	return nil
}

func isAllowedNameChar(r rune, rules NameRules) bool {
	if unicode.IsLetter(r) || unicode.IsDigit(r) {
		return true
	}
	switch r {
	case '.':
		return rules.AllowDots
	case '-':
		return rules.AllowHyphens
	case '_':
		return rules.AllowUnders
	}
	return false
}

// ValidateSeriesName validates a measurement or table name.
func ValidateSeriesName(name string) error {
	return ValidateName(name, SeriesRules())
}

// =============================================================================
// Host Validation
// =============================================================================

// ValidateHost checks that host is a usable ping target: an IPv4 or IPv6
// literal, or a DNS name.
//
// A host may never start with '-' because the exec prober passes it as the
// last argument to the ping binary.
func ValidateHost(host string) error {
	if host == "" {
		return fmt.Errorf("host cannot be empty")
	}
	if strings.TrimSpace(host) != host {
		return fmt.Errorf("host %q has surrounding whitespace", host)
	}
	if strings.HasPrefix(host, "-") {
		return fmt.Errorf("host %q cannot start with '-'", host)
	}

	if net.ParseIP(host) != nil {
		return nil
	}
	// Zone-qualified IPv6 link-local addresses, e.g. fe80::1%eth0.
	if i := strings.IndexByte(host, '%'); i > 0 && net.ParseIP(host[:i]) != nil {
		return nil
	}

	if err := ValidateName(strings.TrimSuffix(host, "."), HostRules()); err != nil {
		return fmt.Errorf("host %q: %w", host, err)
	}
	for _, label := range strings.Split(strings.TrimSuffix(host, "."), ".") {
		if label == "" {
			return fmt.Errorf("host %q has an empty label", host)
		}
		if len(label) > 63 {
			return fmt.Errorf("host %q has a label longer than 63 characters", host)
		}
	}
	return nil
}

// HostError reports an invalid entry of a host list.
type HostError struct {
	Index int
	Host  string
	Err   error
}

func (e *HostError) Error() string {
	return fmt.Sprintf("ping_targets[%d]: %v", e.Index, e.Err)
}

func (e *HostError) Unwrap() error { return e.Err }

// ValidateHosts validates every entry of hosts and rejects duplicates.
// It returns one error per offending entry.
func ValidateHosts(hosts []string) []error {
	var errs []error
	seen := make(map[string]int, len(hosts))

	for i, h := range hosts {
		if err := ValidateHost(h); err != nil {
			errs = append(errs, &HostError{Index: i, Host: h, Err: err})
			continue
		}
		key := strings.ToLower(h)
		if first, dup := seen[key]; dup {
			errs = append(errs, &HostError{
				Index: i,
				Host:  h,
				Err:   fmt.Errorf("host %q duplicates ping_targets[%d]", h, first),
			})
			continue
		}
		seen[key] = i
	}

	return errs
}

// NormalizeHosts trims whitespace and drops empty entries and
// case-insensitive duplicates, keeping the first occurrence.
func NormalizeHosts(hosts []string) []string {
	out := make([]string, 0, len(hosts))
	seen := make(map[string]struct{}, len(hosts))
	for _, h := range hosts {
		h = strings.TrimSpace(h)
		if h == "" {
			continue
		}
		key := strings.ToLower(h)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, h)
	}
	return out
}
