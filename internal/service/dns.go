package service

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/miekg/dns"
)

var ErrNoAddress = errors.New("no address found")

// OriginASN is the Team Cymru view of who announces an address.
type OriginASN struct {
	ASN         string `json:"asn"`
	CIDR        string `json:"asn_cidr"`
	CountryCode string `json:"asn_country_code"`
	Registry    string `json:"asn_registry"`
	Date        string `json:"asn_date"`
}

type DNSService struct {
	Resolver string
	Timeout  time.Duration
}

func NewDNSService(resolver string) *DNSService {
	if resolver == "" {
		resolver = systemResolver()
	}
	return &DNSService{
		Resolver: resolver,
		Timeout:  5 * time.Second,
	}
}

func systemResolver() string {
	conf, err := dns.ClientConfigFromFile("/etc/resolv.conf")
	if err != nil || len(conf.Servers) == 0 {
		return "8.8.8.8:53"
	}
	return net.JoinHostPort(conf.Servers[0], conf.Port)
}

// LookupIPv4 returns the first A record of domain, following whatever CNAME
// chain the resolver includes in its answer.
func (s *DNSService) LookupIPv4(ctx context.Context, domain string) (net.IP, error) {
	in, err := s.query(ctx, domain, dns.TypeA)
	if err != nil {
		return nil, err
	}
	for _, ans := range in.Answer {
		if a, ok := ans.(*dns.A); ok {
			return a.A, nil
		}
	}
	return nil, errors.Wrap(ErrNoAddress, domain)
}

// LookupOrigin asks origin.asn.cymru.com which AS announces ip.
func (s *DNSService) LookupOrigin(ctx context.Context, ip net.IP) (*OriginASN, error) {
	v4 := ip.To4()
	if v4 == nil {
		return nil, errors.Errorf("origin lookup needs an IPv4 address, got %s", ip)
	}
	name := fmt.Sprintf("%d.%d.%d.%d.origin.asn.cymru.com", v4[3], v4[2], v4[1], v4[0])

	in, err := s.query(ctx, name, dns.TypeTXT)
	if err != nil {
		return nil, err
	}
	for _, ans := range in.Answer {
		if t, ok := ans.(*dns.TXT); ok {
			return parseOrigin(strings.Join(t.Txt, ""))
		}
	}
	return nil, errors.Errorf("no origin record for %s", ip)
}

// parseOrigin reads "ASN | CIDR | CC | registry | date".
func parseOrigin(txt string) (*OriginASN, error) {
	parts := strings.Split(txt, "|")
	if len(parts) < 5 {
		return nil, errors.Errorf("malformed origin record %q", txt)
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(strings.Trim(parts[i], `"`))
	}
	return &OriginASN{
		ASN:         parts[0],
		CIDR:        parts[1],
		CountryCode: strings.ToUpper(parts[2]),
		Registry:    parts[3],
		Date:        parts[4],
	}, nil
}

func (s *DNSService) query(ctx context.Context, name string, qtype uint16) (*dns.Msg, error) {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(name), qtype)

	c := &dns.Client{Timeout: s.Timeout}
	in, _, err := c.ExchangeContext(ctx, m, s.Resolver)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve %s", name)
	}
	if in.Truncated {
		c.Net = "tcp"
		in, _, err = c.ExchangeContext(ctx, m, s.Resolver)
		if err != nil {
			return nil, errors.Wrapf(err, "resolve %s over tcp", name)
		}
	}
	if in.Rcode != dns.RcodeSuccess {
		return nil, errors.Errorf("resolve %s: %s", name, dns.RcodeToString[in.Rcode])
	}
	return in, nil
}
