// Package httpc provides HTTP and WebSocket clients with sensible timeouts
// for talking to gazed.
package httpc

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// Default timeouts for client operations.
const (
	DefaultTimeout          = 10 * time.Second
	DefaultConnectTimeout   = 5 * time.Second
	DefaultKeepAlive        = 30 * time.Second
	DefaultHandshakeTimeout = 5 * time.Second
)

func netDialer() *net.Dialer {
	return &net.Dialer{
		Timeout:   DefaultConnectTimeout,
		KeepAlive: DefaultKeepAlive,
	}
}

// Client is a shared HTTP client. Use this instead of http.DefaultClient.
var Client = &http.Client{
	Timeout: DefaultTimeout,
	Transport: &http.Transport{
		DialContext:         netDialer().DialContext,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
	},
}

// Dialer returns a WebSocket dialer with the same connect limits as Client.
func Dialer() *websocket.Dialer {
	return &websocket.Dialer{
		NetDialContext:   netDialer().DialContext,
		HandshakeTimeout: DefaultHandshakeTimeout,
	}
}

// HTTPBase turns a ws:// or wss:// base URL into its http counterpart.
func HTTPBase(base string) string {
	switch {
	case strings.HasPrefix(base, "ws://"):
		return "http://" + strings.TrimPrefix(base, "ws://")
	case strings.HasPrefix(base, "wss://"):
		return "https://" + strings.TrimPrefix(base, "wss://")
	}
	return base
}

// WaitHealthy polls base/health until it answers 200 or ctx ends.
func WaitHealthy(ctx context.Context, base string, interval time.Duration) error {
	url := strings.TrimSuffix(HTTPBase(base), "/") + "/health"
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastErr error
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := Client.Do(req)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
			err = fmt.Errorf("health: status %d", resp.StatusCode)
		}
		lastErr = err

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w (last: %v)", ctx.Err(), lastErr)
		case <-ticker.C:
		}
	}
}
