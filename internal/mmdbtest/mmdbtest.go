// Package mmdbtest writes small MaxMind DB files for tests.
package mmdbtest

import (
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/maxmind/mmdbwriter"
	"github.com/maxmind/mmdbwriter/mmdbtype"
)

// Network is one fixture entry.
type Network struct {
	CIDR      string
	Country   string
	City      string
	Latitude  float64
	Longitude float64
}

// Networks covers IPv4 and IPv6 entries used across the test suites.
var Networks = []Network{
	{CIDR: "8.8.8.0/24", Country: "US", City: "Mountain View", Latitude: 37.4, Longitude: -122.1},
	{CIDR: "2.125.160.0/24", Country: "GB", City: "Boxford", Latitude: 51.75, Longitude: -1.25},
	{CIDR: "81.2.69.0/24", Country: "GB", City: "London", Latitude: 51.5142, Longitude: -0.0931},
	{CIDR: "2001:218::/32", Country: "JP"},
}

// WriteCity writes a GeoIP2-City style database and returns its path.
func WriteCity(t testing.TB, networks ...Network) string {
	t.Helper()
	return write(t, "GeoIP2-City", true, networks)
}

// WriteCountry writes a GeoIP2-Country style database and returns its path.
func WriteCountry(t testing.TB, networks ...Network) string {
	t.Helper()
	return write(t, "GeoIP2-Country", false, networks)
}

func write(t testing.TB, dbType string, withCity bool, networks []Network) string {
	t.Helper()
	if len(networks) == 0 {
		networks = Networks
	}

	tree, err := mmdbwriter.New(mmdbwriter.Options{
		DatabaseType: dbType,
		RecordSize:   24,
	})
	if err != nil {
		t.Fatalf("failed to create mmdb tree: %v", err)
	}

	for _, n := range networks {
		_, network, err := net.ParseCIDR(n.CIDR)
		if err != nil {
			t.Fatalf("bad fixture network %q: %v", n.CIDR, err)
		}
		if err := tree.Insert(network, record(n, withCity)); err != nil {
			t.Fatalf("failed to insert %s: %v", n.CIDR, err)
		}
	}

	path := filepath.Join(t.TempDir(), dbType+"-Test.mmdb")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create mmdb file: %v", err)
	}
	defer f.Close()

	if _, err := tree.WriteTo(f); err != nil {
		t.Fatalf("failed to write mmdb file: %v", err)
	}
	return path
}

func record(n Network, withCity bool) mmdbtype.Map {
	m := mmdbtype.Map{
		"country": mmdbtype.Map{
			"iso_code": mmdbtype.String(n.Country),
		},
	}
	if !withCity {
		return m
	}
	if n.City != "" {
		m["city"] = mmdbtype.Map{
			"names": mmdbtype.Map{"en": mmdbtype.String(n.City)},
		}
	}
	m["location"] = mmdbtype.Map{
		"latitude":  mmdbtype.Float64(n.Latitude),
		"longitude": mmdbtype.Float64(n.Longitude),
	}
	return m
}
