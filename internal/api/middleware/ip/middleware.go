package ip

import (
	"context"
	"net"
	"net/http"
	"net/netip"
	"strings"

	"github.com/pointboard/forum/internal/setup/config"
	"github.com/uptrace/bunrouter"
	"go.uber.org/zap"
)

type ipCtxKey struct{}

// UnknownIP is returned when no valid IP can be determined.
const UnknownIP = "unknown"

// FromContext retrieves the client IP from the context.
func FromContext(ctx context.Context) string {
	if ip, ok := ctx.Value(ipCtxKey{}).(string); ok {
		return ip
	}
	return UnknownIP
}

// WithIP returns a context carrying the client IP.
func WithIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ipCtxKey{}, ip)
}

// Middleware handles IP detection and stores it in the context.
type Middleware struct {
	policy policy
	logger *zap.Logger
	config *config.IPConfig
}

// New creates a new IP middleware.
func New(logger *zap.Logger, config *config.IPConfig) *Middleware {
	logger = logger.Named("ip_middleware")

	return &Middleware{
		policy: newPolicy(logger, config),
		logger: logger,
		config: config,
	}
}

// Middleware rejects requests without a usable client IP and stores the IP
// in the request context.
func (m *Middleware) Middleware(next bunrouter.HandlerFunc) bunrouter.HandlerFunc {
	return func(w http.ResponseWriter, req bunrouter.Request) error {
		ip := m.ClientIP(req.Request)
		if ip == UnknownIP {
			m.logger.Warn("No valid client IP found in request",
				zap.String("remoteAddr", req.RemoteAddr))
			http.Error(w, "Invalid IP address", http.StatusForbidden)
			return nil
		}

		return next(w, req.WithContext(WithIP(req.Context(), ip)))
	}
}

// ClientIP resolves the client IP for a request.
func (m *Middleware) ClientIP(req *http.Request) string {
	remoteIP, ok := m.getRemoteIP(req.RemoteAddr)
	if !ok {
		m.logger.Debug("Failed to get valid remote IP")
		return UnknownIP
	}

	if !m.config.EnableHeaderCheck {
		return m.useRemoteIP(remoteIP, "Header checking is disabled")
	}

	// Only trusted proxies may speak for the client
	if m.policy.trusts(remoteIP) {
		if ip := m.getIPFromHeaders(req.Header); ip != UnknownIP {
			m.logger.Debug("Found valid IP in headers", zap.String("ip", ip))
			return ip
		}
		m.logger.Debug("No valid IP found in headers")
	}

	return m.useRemoteIP(remoteIP, "Using remote IP")
}

// useRemoteIP validates and returns the remote IP with appropriate logging.
func (m *Middleware) useRemoteIP(remoteIP netip.Addr, reason string) string {
	if m.policy.accepts(remoteIP) {
		m.logger.Debug(reason, zap.String("ip", remoteIP.String()))
		return remoteIP.String()
	}
	m.logger.Debug("Remote IP is not a valid public IP")
	return UnknownIP
}

// getRemoteIP parses the host part of a remote address.
func (m *Middleware) getRemoteIP(remoteAddr string) (netip.Addr, bool) {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		m.logger.Debug("Failed to parse remote address",
			zap.String("addr", remoteAddr),
			zap.Error(err))
		return netip.Addr{}, false
	}

	addr, err := netip.ParseAddr(host)
	if err != nil {
		m.logger.Debug("Invalid remote IP", zap.String("ip", host))
		return netip.Addr{}, false
	}

	return addr.Unmap().WithZone(""), true
}

// getIPFromHeaders attempts to get a valid IP from the configured headers.
func (m *Middleware) getIPFromHeaders(header http.Header) string {
	for _, h := range m.config.CustomHeaders {
		value := header.Get(h)
		if value == "" {
			continue
		}

		if strings.Contains(h, "Forward") {
			if validated := m.getForwardedIP(value); validated != UnknownIP {
				return validated
			}
		} else if addr, ok := m.policy.parse(strings.TrimSpace(value)); ok {
			return addr.String()
		}

		m.logger.Debug("IP validation failed",
			zap.String("header", h),
			zap.String("ip", value))
	}
	return UnknownIP
}

// getForwardedIP picks the closest valid hop from a comma separated forwarded list.
func (m *Middleware) getForwardedIP(forwarded string) string {
	ips := strings.Split(forwarded, ",")
	for i := len(ips) - 1; i >= 0; i-- {
		if addr, ok := m.policy.parse(strings.TrimSpace(ips[i])); ok {
			return addr.String()
		}
	}
	return UnknownIP
}
