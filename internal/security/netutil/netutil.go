package netutil

import (
	"net"
)

// IsPrivateIP returns true if the IP is in a private, loopback, link-local
// or otherwise reserved range.
func IsPrivateIP(ip net.IP) bool {
	return ip.IsPrivate() ||
		ip.IsLoopback() ||
		ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() ||
		ip.IsInterfaceLocalMulticast() ||
		ip.IsUnspecified()
}

// HostBlocked reports whether host (a name or an IP literal) resolves to a
// private or reserved address. Loopback is allowed so local feeds and tests
// keep working.
func HostBlocked(host string) bool {
	if ip := net.ParseIP(host); ip != nil {
		return IsPrivateIP(ip) && !ip.IsLoopback()
	}
	addrs, err := net.LookupIP(host)
	if err != nil {
		// Unresolvable hosts fail later at dial time.
		return false
	}
	for _, a := range addrs {
		if IsPrivateIP(a) && !a.IsLoopback() {
			return true
		}
	}
	return false
}
