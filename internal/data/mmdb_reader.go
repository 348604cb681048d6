package data

import (
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/oschwald/geoip2-golang"
	"github.com/oschwald/maxminddb-golang"
)

// MmdbReader implements Reader using a MaxMind MMDB file.
type MmdbReader struct {
	db      *maxminddb.Reader
	edition Edition
}

// NewMmdbReader opens the MMDB file at the given path. With memoryCache the
// whole file is loaded onto the heap, otherwise it is memory-mapped.
func NewMmdbReader(path string, memoryCache bool) (*MmdbReader, error) {
	var (
		db  *maxminddb.Reader
		err error
	)
	if memoryCache {
		var buf []byte
		buf, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read MMDB file: %w", err)
		}
		db, err = maxminddb.FromBytes(buf)
	} else {
		db, err = maxminddb.Open(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open MMDB file: %w", err)
	}

	edition := EditionCountry
	if strings.Contains(db.Metadata.DatabaseType, "City") {
		edition = EditionCity
	}
	return &MmdbReader{db: db, edition: edition}, nil
}

// MmdbOpener returns an Opener that opens path on first use.
func MmdbOpener(path string, memoryCache bool) Opener {
	return func() (Reader, error) {
		return NewMmdbReader(path, memoryCache)
	}
}

// Lookup returns the record of the network containing ip.
func (r *MmdbReader) Lookup(ip net.IP) (*Record, error) {
	if r.edition == EditionCity {
		return r.lookupCity(ip)
	}
	return r.lookupCountry(ip)
}

func (r *MmdbReader) lookupCity(ip net.IP) (*Record, error) {
	var city geoip2.City
	network, ok, err := r.db.LookupNetwork(ip, &city)
	if err != nil {
		return nil, fmt.Errorf("city lookup failed: %w", err)
	}
	if !ok {
		return nil, nil
	}
	return &Record{
		CountryCode: countryCode(city.Country.IsoCode, city.RegisteredCountry.IsoCode),
		City:        city.City.Names["en"],
		Latitude:    city.Location.Latitude,
		Longitude:   city.Location.Longitude,
		Netmask:     prefixLen(network),
	}, nil
}

func (r *MmdbReader) lookupCountry(ip net.IP) (*Record, error) {
	var country geoip2.Country
	network, ok, err := r.db.LookupNetwork(ip, &country)
	if err != nil {
		return nil, fmt.Errorf("country lookup failed: %w", err)
	}
	if !ok {
		return nil, nil
	}
	return &Record{
		CountryCode: countryCode(country.Country.IsoCode, country.RegisteredCountry.IsoCode),
		Netmask:     prefixLen(network),
	}, nil
}

// Edition reports whether the file is a city or a country database.
func (r *MmdbReader) Edition() Edition {
	return r.edition
}

// Close releases the MMDB reader resources.
func (r *MmdbReader) Close() error {
	return r.db.Close()
}

func countryCode(code, registered string) string {
	if code == "" {
		code = registered
	}
	return strings.ToUpper(code)
}

func prefixLen(network *net.IPNet) int {
	if network == nil {
		return 0
	}
	ones, _ := network.Mask.Size()
	return ones
}
