package config

import (
	"fmt"
	"net"
	"regexp"
	"time"
)

var screenNameRE = regexp.MustCompile(`^[A-Za-z0-9_.\-]+$`)

// ValidationResult splits problems into ones that block startup and
// ones that are logged and otherwise ignored, mirroring the teacher's
// tiered Validate()/ValidateTiered() split.
type ValidationResult struct {
	Fatals   []error
	Warnings []error
}

func (r *ValidationResult) HasFatals() bool { return len(r.Fatals) > 0 }

// ValidateTiered checks a Builder's accumulated declarations before
// Build() is called, so the CLI can report every problem at once
// instead of stopping at the first Build() error.
func (b *Builder) ValidateTiered() ValidationResult {
	var result ValidationResult

	seen := make(map[string]bool, len(b.screens))
	for _, name := range b.screens {
		if !screenNameRE.MatchString(name) {
			result.Fatals = append(result.Fatals, fmt.Errorf("screen name %q contains characters outside [A-Za-z0-9_.-]", name))
		}
		if seen[name] {
			result.Fatals = append(result.Fatals, fmt.Errorf("duplicate canonical screen %q", name))
		}
		seen[name] = true
	}

	if b.serverAddr == "" {
		result.Fatals = append(result.Fatals, fmt.Errorf("server address is required"))
	} else if _, _, err := net.SplitHostPort(b.serverAddr); err != nil {
		result.Fatals = append(result.Fatals, fmt.Errorf("server address %q is invalid: %w", b.serverAddr, err))
	}

	if b.adminAddr != "" {
		if _, _, err := net.SplitHostPort(b.adminAddr); err != nil {
			result.Warnings = append(result.Warnings, fmt.Errorf("admin address %q is invalid, admin feed disabled: %w", b.adminAddr, err))
			b.adminAddr = ""
		}
	}

	// Clamp negative or too-small bind timeouts up to the minimum, and
	// too-large ones down to the maximum, rather than failing startup,
	// matching the teacher's clamp-and-warn pattern for interval fields
	// that would otherwise misbehave downstream. A zero timeout is left
	// alone here; Build replaces it with DefaultBindTimeout.
	const minBindTimeout = 5 * time.Second
	const maxBindTimeout = 30 * time.Minute
	if b.bindTimeout != 0 {
		if b.bindTimeout < minBindTimeout {
			result.Warnings = append(result.Warnings, fmt.Errorf("bind_timeout %s is below minimum %s, clamping", b.bindTimeout, minBindTimeout))
			b.bindTimeout = minBindTimeout
		} else if b.bindTimeout > maxBindTimeout {
			result.Warnings = append(result.Warnings, fmt.Errorf("bind_timeout %s exceeds maximum %s, clamping", b.bindTimeout, maxBindTimeout))
			b.bindTimeout = maxBindTimeout
		}
	}

	declared := make(map[string]bool, len(b.screens))
	for _, name := range b.screens {
		declared[name] = true
	}
	for alias, target := range b.aliases {
		if declared[alias] {
			result.Fatals = append(result.Fatals, fmt.Errorf("alias %q collides with a canonical screen name", alias))
		}
		if !declared[target] {
			result.Fatals = append(result.Fatals, fmt.Errorf("alias %q refers to undefined screen %q", alias, target))
		}
	}

	for _, link := range b.links {
		if !declared[link.Screen] {
			result.Fatals = append(result.Fatals, fmt.Errorf("link declared on undefined screen %q", link.Screen))
		}
		if !declared[link.Target] {
			result.Fatals = append(result.Fatals, fmt.Errorf("link %s/%s refers to undefined screen %q", link.Screen, link.Side, link.Target))
		}
	}

	return result
}
