package extract

import "strings"

// MaxForwardedLen bounds the address taken from a forwarded-for header.
// It fits a dotted IPv4 literal.
const MaxForwardedLen = 15

// ResolveAddress picks the address to look up. When a non-empty forwarded-for
// value is present its first entry wins, otherwise connAddr is returned as is.
// The result is not validated.
func ResolveAddress(connAddr, forwardedFor string, hasForwarded bool) string {
	return resolve(connAddr, forwardedFor, hasForwarded, MaxForwardedLen)
}

func resolve(connAddr, forwardedFor string, hasForwarded bool, maxLen int) string {
	if !hasForwarded {
		return connAddr
	}
	first := FirstForwarded(forwardedFor, maxLen)
	if first == "" {
		return connAddr
	}
	return first
}

// FirstForwarded returns the first comma-separated entry of a forwarded-for
// value, trimmed and capped at maxLen bytes.
func FirstForwarded(forwardedFor string, maxLen int) string {
	if i := strings.IndexByte(forwardedFor, ','); i >= 0 {
		forwardedFor = forwardedFor[:i]
	}
	forwardedFor = strings.TrimSpace(forwardedFor)
	if maxLen > 0 && len(forwardedFor) > maxLen {
		forwardedFor = forwardedFor[:maxLen]
	}
	return forwardedFor
}
