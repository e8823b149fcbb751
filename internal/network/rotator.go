// internal/network/rotator.go
package network

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/elazarl/goproxy"
	"go.uber.org/zap"

	"github.com/xkilldash9x/flowpilot-cli/internal/config"
)

// RotatingProxy is a local forward proxy that spreads browser traffic over a
// pool of upstream proxies, round-robin. With an empty pool it degrades to a
// plain forward proxy, which still gives us a single choke point for
// request logging.
type RotatingProxy struct {
	proxy  *goproxy.ProxyHttpServer
	logger *zap.Logger

	listenAddr string
	upstreams  []*url.URL
	counter    atomic.Uint64

	// connectDialers caches per-upstream CONNECT dialers.
	connectDialers []func(network, addr string) (net.Conn, error)

	serverMutex sync.Mutex
	server      *http.Server
}

// NewRotatingProxy builds the proxy from configuration. Upstream entries must
// be absolute URLs (http://host:port or socks5://host:port).
func NewRotatingProxy(cfg config.ProxyConfig, logger *zap.Logger) (*RotatingProxy, error) {
	log := logger.Named("rotating_proxy")

	rp := &RotatingProxy{
		proxy:      goproxy.NewProxyHttpServer(),
		logger:     log,
		listenAddr: cfg.ListenAddr,
	}

	for _, raw := range cfg.Upstreams {
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" {
			return nil, fmt.Errorf("invalid upstream proxy URL '%s'", raw)
		}
		rp.upstreams = append(rp.upstreams, u)
		rp.connectDialers = append(rp.connectDialers, rp.proxy.NewConnectDialToProxy(u.String()))
	}

	rp.setupHandlers()

	if len(rp.upstreams) == 0 {
		log.Info("No upstream proxies configured. Operating as a direct forward proxy.")
	} else {
		log.Info("Rotating proxy configured.", zap.Int("upstreams", len(rp.upstreams)))
	}

	return rp, nil
}

// next picks the upstream for the current request, round-robin.
func (rp *RotatingProxy) next() int {
	n := len(rp.upstreams)
	if n == 0 {
		return -1
	}
	return int(rp.counter.Add(1)-1) % n
}

// setupHandlers wires the plain-HTTP transport and the CONNECT dialer.
func (rp *RotatingProxy) setupHandlers() {
	rp.proxy.Tr = &http.Transport{
		Proxy: func(req *http.Request) (*url.URL, error) {
			if i := rp.next(); i >= 0 {
				u := rp.upstreams[i]
				rp.logger.Debug("Routing request via upstream",
					zap.String("upstream", u.Host), zap.String("url", req.URL.String()))
				return u, nil
			}
			return nil, nil
		},
		TLSClientConfig:     &tls.Config{InsecureSkipVerify: true},
		TLSHandshakeTimeout: 15 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}

	// HTTPS traffic arrives as CONNECT and is tunneled, not inspected.
	rp.proxy.OnRequest().HandleConnect(goproxy.FuncHttpsHandler(func(host string, ctx *goproxy.ProxyCtx) (*goproxy.ConnectAction, string) {
		return goproxy.OkConnect, host
	}))

	rp.proxy.ConnectDial = func(network, addr string) (net.Conn, error) {
		if i := rp.next(); i >= 0 {
			rp.logger.Debug("Tunneling CONNECT via upstream",
				zap.String("upstream", rp.upstreams[i].Host), zap.String("addr", addr))
			return rp.connectDialers[i](network, addr)
		}
		return net.DialTimeout(network, addr, 30*time.Second)
	}
}

// Addr returns the local listen address.
func (rp *RotatingProxy) Addr() string {
	return rp.listenAddr
}

// Start runs the proxy server and blocks until the context is cancelled or a
// fatal error occurs.
func (rp *RotatingProxy) Start(ctx context.Context) error {
	rp.serverMutex.Lock()
	if rp.server != nil {
		rp.serverMutex.Unlock()
		return errors.New("proxy server already started")
	}

	server := &http.Server{
		Addr:         rp.listenAddr,
		Handler:      rp.proxy,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     zap.NewStdLog(rp.logger.Named("http_server")),
	}
	rp.server = server
	rp.serverMutex.Unlock()

	shutdownErr := make(chan error)
	go func() {
		<-ctx.Done()
		rp.logger.Info("Shutdown signal received, stopping rotating proxy...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		shutdownErr <- server.Shutdown(shutdownCtx)
	}()

	rp.logger.Info("Starting rotating proxy", zap.String("address", rp.listenAddr))
	err := server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		err = <-shutdownErr
	}

	rp.serverMutex.Lock()
	if rp.server == server {
		rp.server = nil
	}
	rp.serverMutex.Unlock()

	if err != nil {
		rp.logger.Error("Proxy server stopped with an error", zap.Error(err))
		return fmt.Errorf("proxy server failed: %w", err)
	}

	rp.logger.Info("Rotating proxy stopped gracefully.")
	return nil
}
