package ip_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pointboard/forum/internal/api/middleware/ip"
	"github.com/pointboard/forum/internal/setup/config"
	"github.com/stretchr/testify/assert"
	"github.com/uptrace/bunrouter"
	"go.uber.org/zap"
)

func TestClientIP(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		config     config.IPConfig
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{
			name:       "public remote address",
			remoteAddr: "8.8.8.8:1234",
			want:       "8.8.8.8",
		},
		{
			name:       "private remote address rejected",
			remoteAddr: "192.168.1.10:1234",
			want:       ip.UnknownIP,
		},
		{
			name:       "private remote address allowed locally",
			config:     config.IPConfig{AllowLocalIPs: true},
			remoteAddr: "127.0.0.1:1234",
			want:       "127.0.0.1",
		},
		{
			name:       "malformed remote address",
			remoteAddr: "not-an-address",
			want:       ip.UnknownIP,
		},
		{
			name:       "headers ignored when disabled",
			remoteAddr: "8.8.8.8:1234",
			headers:    map[string]string{"X-Real-IP": "1.1.1.1"},
			want:       "8.8.8.8",
		},
		{
			name: "trusted proxy header",
			config: config.IPConfig{
				EnableHeaderCheck: true,
				TrustedProxies:    []string{"10.0.0.0/8"},
				CustomHeaders:     []string{"X-Real-IP"},
			},
			remoteAddr: "10.1.2.3:443",
			headers:    map[string]string{"X-Real-IP": "1.1.1.1"},
			want:       "1.1.1.1",
		},
		{
			name: "untrusted proxy header ignored",
			config: config.IPConfig{
				EnableHeaderCheck: true,
				TrustedProxies:    []string{"10.0.0.0/8"},
				CustomHeaders:     []string{"X-Real-IP"},
			},
			remoteAddr: "9.9.9.9:443",
			headers:    map[string]string{"X-Real-IP": "1.1.1.1"},
			want:       "9.9.9.9",
		},
		{
			name: "forwarded chain picks closest public hop",
			config: config.IPConfig{
				EnableHeaderCheck: true,
				TrustedProxies:    []string{"10.0.0.0/8"},
				CustomHeaders:     []string{"X-Forwarded-For"},
			},
			remoteAddr: "10.1.2.3:443",
			headers:    map[string]string{"X-Forwarded-For": "1.1.1.1, 4.4.4.4, 192.168.0.2"},
			want:       "4.4.4.4",
		},
		{
			name: "trusted proxy without usable header falls back",
			config: config.IPConfig{
				EnableHeaderCheck: true,
				TrustedProxies:    []string{"10.0.0.0/8", "bogus"},
				CustomHeaders:     []string{"X-Forwarded-For"},
			},
			remoteAddr: "10.1.2.3:443",
			headers:    map[string]string{"X-Forwarded-For": "garbage"},
			want:       ip.UnknownIP,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			m := ip.New(zap.NewNop(), &tt.config)

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}

			assert.Equal(t, tt.want, m.ClientIP(req))
		})
	}
}

func TestMiddleware(t *testing.T) {
	t.Parallel()

	m := ip.New(zap.NewNop(), &config.IPConfig{})

	router := bunrouter.New()
	router.Use(m.Middleware).GET("/", func(w http.ResponseWriter, req bunrouter.Request) error {
		_, err := w.Write([]byte(ip.FromContext(req.Context())))
		return err
	})

	t.Run("stores ip", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "8.8.4.4:5555"
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "8.8.4.4", rec.Body.String())
	})

	t.Run("rejects unknown ip", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestFromContextDefault(t *testing.T) {
	t.Parallel()

	assert.Equal(t, ip.UnknownIP, ip.FromContext(t.Context()))
	assert.Equal(t, "1.2.3.4", ip.FromContext(ip.WithIP(t.Context(), "1.2.3.4")))
}
