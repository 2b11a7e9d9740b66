// Package restriction provides per-key network allowlist types and the pure
// admission decision over them. This package has NO dependencies on I/O.
package restriction

// Domain is an exact-match referrer-domain allowlist entry (value type).
type Domain struct {
	ID    string
	KeyID string
	Value string
}

// IP is an exact-match remote-address allowlist entry (value type).
type IP struct {
	ID    string
	KeyID string
	Value string
}

// Evaluate decides whether a request may use a key given its allowlists.
// This is a PURE function.
//
// A key with no restrictions at all admits every request. Otherwise the
// result is the union of two independent allowlist checks: the request is
// admitted if its referrer domain matches a listed domain OR its remote
// address matches a listed IP. An empty sub-list makes that sub-check false
// (it contributes nothing, not a free pass), and so does a missing signal
// such as an absent referrer header.
func Evaluate(domains []Domain, ips []IP, reqDomain, reqIP string) bool {
	if len(domains) == 0 && len(ips) == 0 {
		return true
	}
	return matchesDomain(domains, reqDomain) || matchesIP(ips, reqIP)
}

func matchesDomain(domains []Domain, reqDomain string) bool {
	if len(domains) == 0 || reqDomain == "" {
		return false
	}
	for _, d := range domains {
		if d.Value == reqDomain {
			return true
		}
	}
	return false
}

func matchesIP(ips []IP, reqIP string) bool {
	if len(ips) == 0 || reqIP == "" {
		return false
	}
	for _, entry := range ips {
		if entry.Value == reqIP {
			return true
		}
	}
	return false
}
