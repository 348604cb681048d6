package extract

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/TomasB/geoheader/internal/data"
)

// MaxLen caps every formatted result, in bytes.
const MaxLen = 255

// ErrUnknownMode is returned by ParseMode for unsupported names.
var ErrUnknownMode = errors.New("unknown format mode")

// Mode selects the textual encoding of a lookup result.
type Mode int

const (
	// ModeKeyValue renders "city:.., country:.., lat:.., lon:.., ip:..".
	ModeKeyValue Mode = iota
	// ModeCountry renders the bare country code.
	ModeCountry
	// ModeCountryPrefixed renders "country:<code>".
	ModeCountryPrefixed
	// ModeJSON renders a JSON object, or {} when nothing matched.
	ModeJSON
)

var modeNames = map[Mode]string{
	ModeKeyValue:        "kv",
	ModeCountry:         "country",
	ModeCountryPrefixed: "country-prefixed",
	ModeJSON:            "json",
}

func (m Mode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode converts a mode name into a Mode.
func ParseMode(name string) (Mode, error) {
	for mode, n := range modeNames {
		if strings.EqualFold(n, name) {
			return mode, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownMode, name)
}

// Formatter renders lookup results with a fallback country and a length cap.
type Formatter struct {
	Fallback string
	MaxLen   int
	// MaxForwardedLen bounds addresses taken from forwarded-for headers.
	MaxForwardedLen int
}

// NewFormatter creates a Formatter. Non-positive caps use the defaults.
func NewFormatter(fallback string, maxLen int) *Formatter {
	if maxLen <= 0 {
		maxLen = MaxLen
	}
	return &Formatter{Fallback: fallback, MaxLen: maxLen, MaxForwardedLen: MaxForwardedLen}
}

// ResolveAddress is ResolveAddress bounded by the formatter's forwarded-for cap.
func (f *Formatter) ResolveAddress(connAddr, forwardedFor string, hasForwarded bool) string {
	maxLen := f.MaxForwardedLen
	if maxLen <= 0 {
		maxLen = MaxForwardedLen
	}
	return resolve(connAddr, forwardedFor, hasForwarded, maxLen)
}

// Format renders rec in the given mode. A nil rec renders the fallback shape
// of the mode, with addr standing in for the queried address.
func (f *Formatter) Format(addr string, rec *data.Record, mode Mode) string {
	switch mode {
	case ModeJSON:
		return f.formatJSON(addr, rec)
	case ModeCountry:
		return f.truncate(f.country(rec))
	case ModeCountryPrefixed:
		return f.truncate("country:" + f.country(rec))
	default:
		return f.truncate(f.keyValue(addr, rec))
	}
}

func (f *Formatter) country(rec *data.Record) string {
	if rec == nil || rec.CountryCode == "" {
		return f.Fallback
	}
	return rec.CountryCode
}

func (f *Formatter) keyValue(addr string, rec *data.Record) string {
	if rec == nil {
		return fmt.Sprintf("city:%s, country:%s, lat:%f, lon:%f, ip:%s", "", f.Fallback, 0.0, 0.0, addr)
	}
	return fmt.Sprintf("city:%s, country:%s, lat:%f, lon:%f, ip:%s",
		rec.City, rec.CountryCode, rec.Latitude, rec.Longitude, sourceIP(addr, rec))
}

// sourceIP prefers the address recorded by the lookup over the caller's.
func sourceIP(addr string, rec *data.Record) string {
	if rec.SourceIP != "" {
		return rec.SourceIP
	}
	return addr
}

// jsonRecord fixes the key order of the JSON encoding.
type jsonRecord struct {
	City    string `json:"city"`
	Country string `json:"country"`
	Lat     string `json:"lat"`
	Lon     string `json:"lon"`
	ClassC  string `json:"classC"`
	Netmask int    `json:"netmask"`
}

func (f *Formatter) formatJSON(addr string, rec *data.Record) string {
	const empty = "{}"
	if f.limit() < len(empty) {
		return ""
	}
	if rec == nil {
		return empty
	}

	doc := jsonRecord{
		City:    rec.City,
		Country: rec.CountryCode,
		Lat:     fmt.Sprintf("%f", rec.Latitude),
		Lon:     fmt.Sprintf("%f", rec.Longitude),
		ClassC:  sourceIP(addr, rec),
		Netmask: rec.Netmask,
	}
	for {
		out, err := encodeJSON(doc)
		if err != nil {
			return empty
		}
		if len(out) <= f.limit() {
			return out
		}
		if doc.City == "" {
			break
		}
		_, size := utf8.DecodeLastRuneInString(doc.City)
		doc.City = doc.City[:len(doc.City)-size]
	}
	return empty
}

func encodeJSON(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// truncate cuts s to MaxLen bytes without splitting a UTF-8 sequence.
func (f *Formatter) truncate(s string) string {
	limit := f.limit()
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func (f *Formatter) limit() int {
	if f.MaxLen <= 0 {
		return MaxLen
	}
	return f.MaxLen
}
