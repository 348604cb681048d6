package data

import "net"

// Edition identifies the granularity of a loaded dataset.
type Edition int

const (
	// EditionCountry datasets resolve country codes only.
	EditionCountry Edition = iota
	// EditionCity datasets additionally carry city names and coordinates.
	EditionCity
)

func (e Edition) String() string {
	if e == EditionCity {
		return "city"
	}
	return "country"
}

// Record is the result of a single lookup. Each lookup returns a freshly
// allocated Record owned by the caller.
type Record struct {
	CountryCode string
	City        string
	Latitude    float64
	Longitude   float64
	SourceIP    string
	Netmask     int
}

// Reader defines the interface for a dataset backend.
type Reader interface {
	// Lookup returns the record for the given IP address.
	// A nil record with a nil error means no match.
	Lookup(ip net.IP) (*Record, error)

	// Edition reports what kind of data Lookup can populate.
	Edition() Edition

	// Close releases any resources held by the reader.
	Close() error
}

// Opener opens a Reader. A Database invokes it at most once.
type Opener func() (Reader, error)

// Resolver answers address lookups. Database implements it.
type Resolver interface {
	// Lookup returns the record for addr, or nil when nothing matches.
	Lookup(addr string) *Record

	// LookupCountry returns the country code for addr, or a fallback code.
	LookupCountry(addr string) string
}
