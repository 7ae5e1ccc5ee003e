package probe

import (
	"context"
	"io"
	"net"
	"net/http"
	"time"
)

type pinnedAddrKey struct{}

// withPinnedAddr makes the checker's transport dial addr instead of
// resolving the URL host again, so the probe hits the address the tick
// resolved. TLS verification still uses the URL host.
func withPinnedAddr(ctx context.Context, addr string) context.Context {
	return context.WithValue(ctx, pinnedAddrKey{}, addr)
}

type HTTPChecker struct {
	Client *http.Client
}

func NewHTTPChecker() *HTTPChecker {
	dialer := &net.Dialer{}
	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.DisableKeepAlives = true // every tick pays for its own connection
	// the probe measures the resolved address itself; a proxy would be
	// dialled at that address instead
	tr.Proxy = nil
	tr.DialContext = func(ctx context.Context, network, address string) (net.Conn, error) {
		if pinned, ok := ctx.Value(pinnedAddrKey{}).(string); ok && pinned != "" {
			if _, port, err := net.SplitHostPort(address); err == nil {
				address = net.JoinHostPort(pinned, port)
			}
		}
		return dialer.DialContext(ctx, network, address)
	}
	return &HTTPChecker{
		Client: &http.Client{
			Transport: tr,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// Check issues a GET to target; 2xx and 3xx count as reachable. Latency is
// measured up to the response headers.
func (h *HTTPChecker) Check(ctx context.Context, target, addr string) CheckResult {
	req, err := http.NewRequestWithContext(withPinnedAddr(ctx, addr), http.MethodGet, target, nil)
	if err != nil {
		return CheckResult{Success: false, Message: err.Error()}
	}

	start := time.Now()
	resp, err := h.Client.Do(req)
	latency := time.Since(start).Seconds() * 1000 // ms
	if err != nil {
		return CheckResult{Success: false, Message: err.Error()}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	success := resp.StatusCode >= 200 && resp.StatusCode < 400
	out := CheckResult{
		Success:    success,
		Message:    resp.Status,
		StatusCode: resp.StatusCode,
	}
	if success {
		out.LatencyMS = latency
	}
	return out
}
