package http_test

import (
	"net/http/httptest"
	"testing"

	pkghttp "github.com/rjmacleod/sentinel/pkg/http"
	"github.com/stretchr/testify/assert"
)

func TestExtractClientIP_RemoteAddrOnly(t *testing.T) {
	r := httptest.NewRequest("POST", "/login", nil)
	r.RemoteAddr = "203.0.113.7:51234"

	ip := pkghttp.ExtractClientIP(r, nil)

	assert.Equal(t, "203.0.113.7", ip)
}

func TestExtractClientIP_IgnoresForwardedFromUntrustedPeer(t *testing.T) {
	r := httptest.NewRequest("POST", "/login", nil)
	r.RemoteAddr = "203.0.113.7:51234"
	r.Header.Set("X-Forwarded-For", "10.0.0.1")

	ip := pkghttp.ExtractClientIP(r, &pkghttp.IPConfig{})

	// Spoofed header from a non-proxy peer must not replace the real address
	assert.Equal(t, "203.0.113.7", ip)
}

func TestExtractClientIP_HonorsForwardedFromTrustedProxy(t *testing.T) {
	r := httptest.NewRequest("POST", "/login", nil)
	r.RemoteAddr = "192.168.1.10:443"
	r.Header.Set("X-Forwarded-For", "198.51.100.20, 192.168.1.10")

	cfg := &pkghttp.IPConfig{TrustedProxies: []string{"192.168.1.0/24"}}
	ip := pkghttp.ExtractClientIP(r, cfg)

	assert.Equal(t, "198.51.100.20", ip)
}

func TestExtractClientIP_FallsBackToRealIP(t *testing.T) {
	r := httptest.NewRequest("POST", "/login", nil)
	r.RemoteAddr = "192.168.1.10:443"
	r.Header.Set("X-Real-IP", "198.51.100.33")

	cfg := &pkghttp.IPConfig{TrustedProxies: []string{"192.168.1.0/24"}}
	ip := pkghttp.ExtractClientIP(r, cfg)

	assert.Equal(t, "198.51.100.33", ip)
}

func TestExtractClientIP_SkipsInvalidForwardedEntries(t *testing.T) {
	r := httptest.NewRequest("POST", "/login", nil)
	r.RemoteAddr = "192.168.1.10:443"
	r.Header.Set("X-Forwarded-For", "not-an-ip, 198.51.100.44")

	cfg := &pkghttp.IPConfig{TrustedProxies: []string{"192.168.1.0/24"}}
	ip := pkghttp.ExtractClientIP(r, cfg)

	assert.Equal(t, "198.51.100.44", ip)
}
