package zone

import (
	"fmt"
	"net"

	"github.com/miekg/dns"

	"github.com/haukened/rr-chain/internal/dns/common/utils"
	"github.com/haukened/rr-chain/internal/dns/domain"
)

func validName(name string) bool {
	_, ok := dns.IsDomainName(name)
	return ok && name != ""
}

// validateValue checks a record value against its type: dotted-quad for A,
// an IPv6 literal for AAAA, a host name for CNAME and NS.
func validateValue(rrtype domain.RRType, v string) error {
	switch rrtype {
	case domain.RRTypeA:
		if ip := net.ParseIP(v); ip == nil || ip.To4() == nil {
			return fmt.Errorf("invalid A record IP: %s", v)
		}
	case domain.RRTypeAAAA:
		if ip := net.ParseIP(v); ip == nil || ip.To4() != nil {
			return fmt.Errorf("invalid AAAA record IP: %s", v)
		}
	case domain.RRTypeCNAME, domain.RRTypeNS:
		if !validName(utils.CanonicalDNSName(v)) {
			return fmt.Errorf("invalid target name: %s", v)
		}
	default:
		return fmt.Errorf("%w: %s", domain.ErrUnsupportedRRType, rrtype)
	}
	return nil
}

func normalizeValue(rrtype domain.RRType, v string) string {
	switch rrtype {
	case domain.RRTypeCNAME, domain.RRTypeNS:
		return utils.CanonicalDNSName(v)
	default:
		return v
	}
}
