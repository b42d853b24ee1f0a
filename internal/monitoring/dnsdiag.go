// internal/monitoring/dnsdiag.go
package monitoring

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/miekg/dns"
)

// DNSDiagnoser asks a specific resolver about a host that could not be
// reached, so a failed probe can say whether name resolution was at fault.
type DNSDiagnoser struct {
	server string
	client *dns.Client
}

func NewDNSDiagnoser(server string, timeout time.Duration) (*DNSDiagnoser, error) {
	if server == "" {
		return nil, fmt.Errorf("dns: server must not be empty")
	}
	if timeout <= 0 {
		return nil, fmt.Errorf("dns: timeout must be positive, got %v", timeout)
	}
	return &DNSDiagnoser{
		server: server,
		client: &dns.Client{Timeout: timeout},
	}, nil
}

// Diagnose returns a short classification of host's resolution state.
func (d *DNSDiagnoser) Diagnose(ctx context.Context, host string) string {
	if ip := net.ParseIP(host); ip != nil {
		return "dns: literal address"
	}

	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(host), dns.TypeA)
	msg.RecursionDesired = true

	resp, _, err := d.client.ExchangeContext(ctx, msg, d.server)
	if err != nil {
		return "dns: resolver unreachable"
	}

	switch resp.Rcode {
	case dns.RcodeSuccess:
		for _, rr := range resp.Answer {
			if a, ok := rr.(*dns.A); ok {
				return fmt.Sprintf("dns: resolves to %s", a.A)
			}
		}
		return "dns: no A record"
	case dns.RcodeNameError:
		return "dns: nxdomain"
	default:
		return fmt.Sprintf("dns: %s", dns.RcodeToString[resp.Rcode])
	}
}
