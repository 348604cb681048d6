package geoip

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/TomasB/geoheader/internal/data"
	"github.com/TomasB/geoheader/internal/extract"
	"github.com/gin-gonic/gin"
)

const (
	// HeaderGeoIP carries the key-value result or the country code.
	HeaderGeoIP = "X-Geo-IP"
	// HeaderGeoIPCountry carries the country code only.
	HeaderGeoIPCountry = "X-Geo-IP-Country"
	// HeaderForwardedFor lists the client address chain, client first.
	HeaderForwardedFor = "X-Forwarded-For"

	contentTypeText = "text/plain; charset=utf-8"
	contentTypeJSON = "application/json; charset=utf-8"
)

// Handler exposes geolocation as request headers and synthetic responses.
type Handler struct {
	geo    data.Resolver
	format *extract.Formatter
}

// NewHandler creates a new geoip handler.
func NewHandler(geo data.Resolver, format *extract.Formatter) *Handler {
	if format == nil {
		format = extract.NewFormatter(data.DefaultFallbackCountry, extract.MaxLen)
	}
	return &Handler{geo: geo, format: format}
}

// forwardedFor joins repeated X-Forwarded-For headers into one chain.
func forwardedFor(r *http.Request) (string, bool) {
	values := r.Header.Values(HeaderForwardedFor)
	if len(values) == 0 {
		return "", false
	}
	return strings.Join(values, ","), true
}

// clientAddr prefers the first forwarded-for entry over the connection address.
func (h *Handler) clientAddr(c *gin.Context) string {
	xff, ok := forwardedFor(c.Request)
	return h.format.ResolveAddress(c.RemoteIP(), xff, ok)
}

// SetHeader sets X-Geo-IP to the key-value result, or to an empty value when
// the address cannot be resolved.
func (h *Handler) SetHeader() gin.HandlerFunc {
	return func(c *gin.Context) {
		addr := h.clientAddr(c)
		value := ""
		if record := h.geo.Lookup(addr); record != nil {
			value = h.format.Format(addr, record, extract.ModeKeyValue)
		}
		c.Request.Header.Set(HeaderGeoIP, value)
		c.Next()
	}
}

// SetCountryHeader sets X-Geo-IP to the country of the connection address.
func (h *Handler) SetCountryHeader() gin.HandlerFunc {
	return func(c *gin.Context) {
		addr := c.RemoteIP()
		c.Request.Header.Set(HeaderGeoIP, h.format.Format(addr, h.geo.Lookup(addr), extract.ModeCountry))
		c.Next()
	}
}

// SetCountryHeaderXFF sets X-Geo-IP to the country of the first forwarded-for
// entry. Requests without the header pass through untouched.
func (h *Handler) SetCountryHeaderXFF() gin.HandlerFunc {
	return func(c *gin.Context) {
		xff, ok := forwardedFor(c.Request)
		if !ok {
			slog.Debug("geoip: no ip from X-Forwarded-For", "path", c.Request.URL.Path)
			c.Next()
			return
		}
		addr := h.format.ResolveAddress("", xff, true)
		c.Request.Header.Set(HeaderGeoIP, h.format.Format(addr, h.geo.Lookup(addr), extract.ModeCountry))
		c.Next()
	}
}

// SetCountryOnlyHeader sets X-Geo-IP-Country to the client's country.
func (h *Handler) SetCountryOnlyHeader() gin.HandlerFunc {
	return func(c *gin.Context) {
		addr := h.clientAddr(c)
		c.Request.Header.Set(HeaderGeoIPCountry, h.format.Format(addr, h.geo.Lookup(addr), extract.ModeCountry))
		c.Next()
	}
}

// Synthetic handles GET /geoip
// The body is the key-value result, or empty when nothing matched.
func (h *Handler) Synthetic(c *gin.Context) {
	addr := h.clientAddr(c)
	body := ""
	if record := h.geo.Lookup(addr); record != nil {
		body = h.format.Format(addr, record, extract.ModeKeyValue)
	}
	c.Data(http.StatusOK, contentTypeText, []byte(body))
}

// SyntheticJSON handles GET /geoip/json
func (h *Handler) SyntheticJSON(c *gin.Context) {
	addr := h.clientAddr(c)
	c.Data(http.StatusOK, contentTypeJSON, []byte(h.format.Format(addr, h.geo.Lookup(addr), extract.ModeJSON)))
}

// SyntheticCountry handles GET /geoip/country
func (h *Handler) SyntheticCountry(c *gin.Context) {
	addr := h.clientAddr(c)
	c.Data(http.StatusOK, contentTypeText, []byte(h.format.Format(addr, h.geo.Lookup(addr), extract.ModeCountry)))
}

// Lookup handles GET /api/v1/lookup/:ip
func (h *Handler) Lookup(c *gin.Context) {
	addr := c.Param("ip")
	slog.Debug("lookup request received", "ip", addr)
	c.Data(http.StatusOK, contentTypeJSON, []byte(h.format.Format(addr, h.geo.Lookup(addr), extract.ModeJSON)))
}

// EchoHeader responds with the value the earlier middleware left in the named
// request header, i.e. what an upstream would receive.
func (h *Handler) EchoHeader(name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Data(http.StatusOK, contentTypeText, []byte(c.Request.Header.Get(name)))
	}
}
