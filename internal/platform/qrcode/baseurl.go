package qrcode

import (
	"net"
	"net/url"
	"strings"

	"github.com/rs/zerolog"
)

// AddrLister lists the host's interface addresses. net.InterfaceAddrs in
// production; tests substitute fixed lists.
type AddrLister func() ([]net.Addr, error)

// LinkBuilder produces the shareable emergency URLs encoded into QR codes.
type LinkBuilder struct {
	raw    string
	addrs  AddrLister
	logger zerolog.Logger
}

func NewLinkBuilder(publicBaseURL string, logger zerolog.Logger) *LinkBuilder {
	return &LinkBuilder{
		raw:    publicBaseURL,
		addrs:  net.InterfaceAddrs,
		logger: logger.With().Str("component", "qr-links").Logger(),
	}
}

// WithAddrLister replaces the interface lookup.
func (b *LinkBuilder) WithAddrLister(fn AddrLister) *LinkBuilder {
	b.addrs = fn
	return b
}

// EmergencyURL is the link a responder's phone opens after scanning.
func (b *LinkBuilder) EmergencyURL(token string) string {
	return b.BaseURL() + "/emergency/" + token
}

// BaseURL resolves the configured base on every call. A loopback host is
// swapped for the first non-loopback IPv4 address so phones on the same
// network can open the link; scheme and port are preserved. Without such an
// address the loopback URL is kept and a warning is logged.
func (b *LinkBuilder) BaseURL() string {
	base := strings.TrimRight(b.raw, "/")
	u, err := url.Parse(base)
	if err != nil || u.Host == "" {
		return base
	}
	if !isLoopbackHost(u.Hostname()) {
		return base
	}

	ip := b.firstLANIPv4()
	if ip == "" {
		b.logger.Warn().Str("base_url", base).Msg("no non-loopback IPv4 address found; QR links will only open on this machine")
		return base
	}

	if port := u.Port(); port != "" {
		u.Host = net.JoinHostPort(ip, port)
	} else {
		u.Host = ip
	}
	return strings.TrimRight(u.String(), "/")
}

func isLoopbackHost(host string) bool {
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func (b *LinkBuilder) firstLANIPv4() string {
	if b.addrs == nil {
		return ""
	}
	addrs, err := b.addrs()
	if err != nil {
		b.logger.Warn().Err(err).Msg("list interface addresses")
		return ""
	}
	for _, addr := range addrs {
		var ip net.IP
		switch v := addr.(type) {
		case *net.IPNet:
			ip = v.IP
		case *net.IPAddr:
			ip = v.IP
		}
		if ip == nil || ip.IsLoopback() || ip.IsLinkLocalUnicast() {
			continue
		}
		if v4 := ip.To4(); v4 != nil {
			return v4.String()
		}
	}
	return ""
}
