package availability

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"
)

// TCPProbe returns a probe that reports healthy when a TCP connection to
// addr can be established. The dial honors the probe context's deadline.
func TCPProbe(addr string) Probe {
	return func(ctx context.Context) Result {
		var d net.Dialer
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err != nil {
			return Failed(fmt.Sprintf("dial %s failed", addr), err)
		}
		_ = conn.Close()
		return Healthy(fmt.Sprintf("tcp %s reachable", addr))
	}
}

// HTTPProbe returns a probe that issues a GET against url. A 2xx response is
// healthy, a 5xx is failed, and anything else is degraded.
func HTTPProbe(client *http.Client, url string) Probe {
	if client == nil {
		client = http.DefaultClient
	}
	return func(ctx context.Context) Result {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return Failed("building request failed", err)
		}

		resp, err := client.Do(req)
		if err != nil {
			return Failed(fmt.Sprintf("GET %s failed", url), err)
		}
		defer func() { _ = resp.Body.Close() }()

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return Healthy(fmt.Sprintf("GET %s returned %d", url, resp.StatusCode))
		case resp.StatusCode >= 500:
			return Failed(fmt.Sprintf("GET %s returned %d", url, resp.StatusCode), nil)
		default:
			return Degraded(fmt.Sprintf("GET %s returned %d", url, resp.StatusCode))
		}
	}
}

// PingProbe adapts a plain ping function into a probe. A nil error is
// healthy; any error is failed. Useful for clients that expose a Ping
// method, such as database handles.
func PingProbe(name string, ping func(ctx context.Context) error) Probe {
	return func(ctx context.Context) Result {
		start := time.Now()
		if err := ping(ctx); err != nil {
			return Failed(fmt.Sprintf("%s ping failed", name), err)
		}
		return Healthy(fmt.Sprintf("%s ping ok in %s", name, time.Since(start).Round(time.Millisecond)))
	}
}

// StaticProbe returns a probe that always reports the given result. Useful
// for wiring services whose health is toggled externally, and in tests.
func StaticProbe(res Result) Probe {
	return func(ctx context.Context) Result {
		return res
	}
}
