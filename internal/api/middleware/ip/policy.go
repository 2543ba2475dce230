package ip

import (
	"net/netip"

	"github.com/pointboard/forum/internal/setup/config"
	"go.uber.org/zap"
)

// reservedPrefixes are special-use ranges that netip does not classify on its own.
var reservedPrefixes = []netip.Prefix{
	netip.MustParsePrefix("0.0.0.0/8"),       // this network
	netip.MustParsePrefix("100.64.0.0/10"),   // carrier-grade NAT
	netip.MustParsePrefix("192.0.2.0/24"),    // documentation
	netip.MustParsePrefix("198.18.0.0/15"),   // benchmarking
	netip.MustParsePrefix("198.51.100.0/24"), // documentation
	netip.MustParsePrefix("203.0.113.0/24"),  // documentation
	netip.MustParsePrefix("240.0.0.0/4"),     // reserved
	netip.MustParsePrefix("2001:db8::/32"),   // documentation
}

// policy decides which addresses may identify a client and which peers may
// report one through headers.
type policy struct {
	allowLocal bool
	proxies    []netip.Prefix
}

func newPolicy(logger *zap.Logger, cfg *config.IPConfig) policy {
	p := policy{allowLocal: cfg.AllowLocalIPs}
	for _, raw := range cfg.TrustedProxies {
		prefix, err := netip.ParsePrefix(raw)
		if err != nil {
			logger.Error("Ignoring invalid trusted proxy range",
				zap.String("cidr", raw),
				zap.Error(err))
			continue
		}
		p.proxies = append(p.proxies, prefix.Masked())
	}
	return p
}

// parse returns the client address in s if the policy accepts it.
func (p policy) parse(s string) (netip.Addr, bool) {
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Addr{}, false
	}
	addr = addr.Unmap().WithZone("")
	return addr, p.accepts(addr)
}

func (p policy) accepts(addr netip.Addr) bool {
	if !addr.IsValid() {
		return false
	}
	if p.allowLocal {
		return true
	}
	if !addr.IsGlobalUnicast() || addr.IsPrivate() {
		return false
	}
	for _, prefix := range reservedPrefixes {
		if prefix.Contains(addr) {
			return false
		}
	}
	return true
}

func (p policy) trusts(addr netip.Addr) bool {
	for _, prefix := range p.proxies {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}
