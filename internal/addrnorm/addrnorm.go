// Package addrnorm provides small address-shaping helpers handlers need
// when building AddRcpt/DelRcpt/SetSender responses or comparing addresses:
// angle-bracket framing and IDNA domain normalization. It does not parse or
// validate RFC 5322 mailboxes; that stays out of the core per spec.md's
// non-goals.
package addrnorm

import (
	"strings"

	"golang.org/x/net/idna"
)

// AddAngle wraps addr in angle brackets if it is not already.
func AddAngle(addr string) string {
	if strings.HasPrefix(addr, "<") && strings.HasSuffix(addr, ">") {
		return addr
	}
	return "<" + addr + ">"
}

// RemoveAngle strips one matching pair of angle brackets from addr, if
// present.
func RemoveAngle(addr string) string {
	if strings.HasPrefix(addr, "<") && strings.HasSuffix(addr, ">") {
		return addr[1 : len(addr)-1]
	}
	return addr
}

// Split breaks a bare (no angle brackets) address into its local part and
// domain. An address with no "@" returns the whole address as the local
// part and an empty domain, matching a bounce sender ("<>").
func Split(addr string) (local, domain string) {
	at := strings.LastIndex(addr, "@")
	if at < 0 {
		return addr, ""
	}
	return addr[:at], addr[at+1:]
}

// ASCIIDomain converts domain to its IDNA ASCII (punycode) form. If domain
// is not a valid internationalized domain, it is returned unchanged.
func ASCIIDomain(domain string) string {
	if domain == "" {
		return ""
	}
	ascii, err := idna.Lookup.ToASCII(domain)
	if err != nil {
		return domain
	}
	return ascii
}

// UnicodeDomain converts domain from its IDNA ASCII form back to Unicode.
// If domain is not valid punycode, it is returned unchanged.
func UnicodeDomain(domain string) string {
	if domain == "" {
		return ""
	}
	uni, err := idna.Lookup.ToUnicode(domain)
	if err != nil {
		return domain
	}
	return uni
}
