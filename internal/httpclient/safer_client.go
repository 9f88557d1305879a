// Package httpclient builds the HTTP client used to talk to GitLab.
package httpclient

import (
	"context"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"time"

	"github.com/teranos/gitlab-ls/errors"
)

// Options customise a SaferClient. Zero values select defaults.
type Options struct {
	Timeout      time.Duration // Default: 10s
	MaxRedirects int           // Default: 5
	// BlockPrivateIPs refuses loopback, RFC 1918 and link-local destinations,
	// including ones reached through DNS or redirects. Leave off for
	// self-hosted GitLab on an internal network.
	BlockPrivateIPs bool
	UserAgent       string
}

// SaferClient is an http.Client that restricts schemes, caps redirects and
// can refuse private network destinations.
type SaferClient struct {
	*http.Client
	maxRedirects    int
	blockPrivateIPs bool
	userAgent       string
}

// New creates a SaferClient.
func New(opts Options) *SaferClient {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.MaxRedirects <= 0 {
		opts.MaxRedirects = 5
	}

	c := &SaferClient{
		Client:          &http.Client{Timeout: opts.Timeout},
		maxRedirects:    opts.MaxRedirects,
		blockPrivateIPs: opts.BlockPrivateIPs,
		userAgent:       opts.UserAgent,
	}

	c.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= c.maxRedirects {
			return errors.Newf("stopped after %d redirects", c.maxRedirects)
		}
		if err := c.validateURL(req.URL); err != nil {
			return errors.Wrap(err, "redirect blocked")
		}
		// redirects to another host must not carry the token
		if len(via) > 0 && req.URL.Host != via[0].URL.Host {
			req.Header.Del("PRIVATE-TOKEN")
			req.Header.Del("Authorization")
		}
		return nil
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if c.blockPrivateIPs {
		dialer := &net.Dialer{Timeout: 30 * time.Second, KeepAlive: 30 * time.Second}
		transport.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
			host, port, err := net.SplitHostPort(addr)
			if err != nil {
				return nil, errors.Wrap(err, "invalid address")
			}
			addrs, err := net.DefaultResolver.LookupNetIP(ctx, "ip", host)
			if err != nil {
				return nil, errors.Wrapf(err, "failed to resolve host %q", host)
			}
			for _, ip := range addrs {
				if isPrivate(ip) {
					return nil, errors.Newf("private IP address blocked: %s", ip)
				}
			}
			// dial the address we checked, not a second resolution
			return dialer.DialContext(ctx, network, net.JoinHostPort(addrs[0].String(), port))
		}
	}
	c.Transport = transport

	return c
}

// Do validates the destination, sets the User-Agent and executes req.
func (c *SaferClient) Do(req *http.Request) (*http.Response, error) {
	if err := c.validateURL(req.URL); err != nil {
		return nil, errors.Wrap(err, "request blocked")
	}
	if c.userAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	return c.Client.Do(req)
}

func (c *SaferClient) validateURL(u *url.URL) error {
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return errors.Newf("scheme %q not allowed", scheme)
	}
	if u.User != nil {
		// http://evil.com@localhost/ style confusion
		return errors.New("URL must not carry user info")
	}
	host := u.Hostname()
	if host == "" {
		return errors.New("URL missing hostname")
	}
	if !c.blockPrivateIPs {
		return nil
	}
	if isLocalhost(host) {
		return errors.New("localhost access blocked")
	}
	if ip, err := netip.ParseAddr(host); err == nil && isPrivate(ip) {
		return errors.Newf("private IP address blocked: %s", host)
	}
	return nil
}

var blockedPrefixes = []netip.Prefix{
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("100.64.0.0/10"), // carrier-grade NAT
	netip.MustParsePrefix("2001:db8::/32"), // documentation
	netip.MustParsePrefix("fec0::/10"),     // deprecated site-local
}

func isPrivate(ip netip.Addr) bool {
	ip = ip.Unmap()
	if ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() ||
		ip.IsMulticast() || ip.IsUnspecified() {
		return true
	}
	if ip.Is4() && ip.As4()[0] >= 240 {
		return true
	}
	for _, p := range blockedPrefixes {
		if p.Contains(ip) {
			return true
		}
	}
	return false
}

func isLocalhost(host string) bool {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	return host == "localhost" || host == "localhost.localdomain" || strings.HasSuffix(host, ".localhost")
}
