package auth

import (
	"fmt"
	"strings"
)

// Policy selects how registration treats email verification.
type Policy int

const (
	// PolicyGated starts accounts unverified and refuses logins until the
	// emailed token has been consumed.
	PolicyGated Policy = iota

	// PolicyAutoVerified marks accounts verified at registration; resend
	// only re-sends the welcome email.
	PolicyAutoVerified
)

func (p Policy) String() string {
	switch p {
	case PolicyGated:
		return "gated"
	case PolicyAutoVerified:
		return "auto_verified"
	}
	return fmt.Sprintf("Policy(%d)", int(p))
}

func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "gated":
		return PolicyGated, nil
	case "auto_verified", "auto-verified", "auto":
		return PolicyAutoVerified, nil
	}
	return 0, fmt.Errorf("unknown verification policy %q", s)
}
