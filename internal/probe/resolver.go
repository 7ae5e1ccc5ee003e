package probe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/miekg/dns"

	"github.com/hamed0406/pingmonitor/internal/domain"
)

// Resolution failure classes.
const (
	ClassNXDomain    = "NXDOMAIN"
	ClassNoAddress   = "NO_A_RECORD"
	ClassServFail    = "SERVFAIL_or_TIMEOUT"
	ClassInvalidName = "INVALID_NAME"
)

// ResolveError carries the class of a failed lookup.
type ResolveError struct {
	Host  string
	Class string
	Err   error
}

func (e *ResolveError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("resolve %s: %s: %v", e.Host, e.Class, e.Err)
	}
	return fmt.Sprintf("resolve %s: %s", e.Host, e.Class)
}

func (e *ResolveError) Unwrap() error { return e.Err }

// ClassOf returns the resolution class of err, or ClassServFail for errors
// that are not a *ResolveError.
func ClassOf(err error) string {
	var re *ResolveError
	if errors.As(err, &re) {
		return re.Class
	}
	return ClassServFail
}

type Resolver interface {
	Resolve(ctx context.Context, host string) (string, error)
}

// HostOf returns the name that must be resolved for t.
func HostOf(t domain.Target) string {
	raw := strings.TrimSpace(string(t.ID))
	if t.Kind != domain.KindHTTP {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return raw
	}
	return u.Hostname()
}

// literal handles the cases every resolver shares: invalid names and IP
// literals that need no lookup.
func literal(host string) (string, bool, error) {
	if host == "" || strings.Contains(host, "://") || strings.ContainsAny(host, " /") {
		return "", true, &ResolveError{Host: host, Class: ClassInvalidName}
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.String(), true, nil
	}
	return "", false, nil
}

// NetResolver uses the operating system resolver.
type NetResolver struct {
	Resolver *net.Resolver
}

func NewNetResolver() *NetResolver {
	return &NetResolver{Resolver: &net.Resolver{}}
}

func (r *NetResolver) Resolve(ctx context.Context, host string) (string, error) {
	if addr, done, err := literal(host); done {
		return addr, err
	}
	ips, err := r.Resolver.LookupIP(ctx, "ip", host)
	if err != nil {
		class := ClassServFail
		var de *net.DNSError
		if errors.As(err, &de) && de.IsNotFound {
			class = ClassNXDomain
		}
		return "", &ResolveError{Host: host, Class: class, Err: err}
	}
	if ip := pickIP(ips); ip != nil {
		return ip.String(), nil
	}
	return "", &ResolveError{Host: host, Class: ClassNoAddress}
}

// pickIP prefers IPv4, as the system ping commands do.
func pickIP(ips []net.IP) net.IP {
	for _, ip := range ips {
		if ip.To4() != nil {
			return ip
		}
	}
	if len(ips) > 0 {
		return ips[0]
	}
	return nil
}

// ServerResolver queries one DNS server directly instead of going through
// the system resolver, so SERVFAIL and NXDOMAIN come back as they are.
type ServerResolver struct {
	Server string // host:port
	Client *dns.Client
}

func NewServerResolver(server string, timeout time.Duration) *ServerResolver {
	if _, _, err := net.SplitHostPort(server); err != nil {
		server = net.JoinHostPort(server, "53")
	}
	return &ServerResolver{
		Server: server,
		Client: &dns.Client{Net: "udp", Timeout: timeout},
	}
}

func (r *ServerResolver) Resolve(ctx context.Context, host string) (string, error) {
	if addr, done, err := literal(host); done {
		return addr, err
	}
	for _, qtype := range []uint16{dns.TypeA, dns.TypeAAAA} {
		addr, err := r.query(ctx, host, qtype)
		if err != nil {
			return "", err
		}
		if addr != "" {
			return addr, nil
		}
	}
	return "", &ResolveError{Host: host, Class: ClassNoAddress}
}

func (r *ServerResolver) query(ctx context.Context, host string, qtype uint16) (string, error) {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(host), qtype)
	m.RecursionDesired = true

	in, _, err := r.Client.ExchangeContext(ctx, m, r.Server)
	if err != nil {
		return "", &ResolveError{Host: host, Class: ClassServFail, Err: err}
	}
	switch in.Rcode {
	case dns.RcodeSuccess:
	case dns.RcodeNameError:
		return "", &ResolveError{Host: host, Class: ClassNXDomain}
	default:
		return "", &ResolveError{Host: host, Class: ClassServFail,
			Err: fmt.Errorf("rcode %s", dns.RcodeToString[in.Rcode])}
	}
	for _, rr := range in.Answer {
		switch v := rr.(type) {
		case *dns.A:
			return v.A.String(), nil
		case *dns.AAAA:
			return v.AAAA.String(), nil
		}
	}
	return "", nil
}
