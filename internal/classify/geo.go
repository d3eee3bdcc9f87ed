package classify

import (
	"fmt"
	"net"
	"strings"

	"github.com/oschwald/maxminddb-golang"
)

// Locator maps an IP address to an ISO 3166-1 alpha-2 country code, or ""
// when it has no answer. Implementations must not make network calls.
type Locator interface {
	Country(ip string) string
}

// NoLocator never knows the country.
type NoLocator struct{}

func (NoLocator) Country(string) string { return "" }

// MMDBLocator answers from an offline MaxMind (GeoLite2/GeoIP2 Country or
// City) database.
type MMDBLocator struct {
	db *maxminddb.Reader
}

type countryRecord struct {
	Country struct {
		ISOCode string `maxminddb:"iso_code"`
	} `maxminddb:"country"`
	RegisteredCountry struct {
		ISOCode string `maxminddb:"iso_code"`
	} `maxminddb:"registered_country"`
}

// OpenMMDB memory-maps the database at path.
func OpenMMDB(path string) (*MMDBLocator, error) {
	db, err := maxminddb.Open(path)
	if err != nil {
		return nil, fmt.Errorf("classify: open geo database %s: %w", path, err)
	}
	return &MMDBLocator{db: db}, nil
}

func (m *MMDBLocator) Country(ip string) string {
	addr := net.ParseIP(ip)
	if addr == nil {
		return ""
	}
	var rec countryRecord
	if err := m.db.Lookup(addr, &rec); err != nil {
		return ""
	}
	if rec.Country.ISOCode != "" {
		return rec.Country.ISOCode
	}
	return rec.RegisteredCountry.ISOCode
}

// Close unmaps the database.
func (m *MMDBLocator) Close() error { return m.db.Close() }

// CountryFromHint validates a country code supplied by a trusted proxy, such
// as Cloudflare's CF-IPCountry header. "XX" (unknown) and "T1" (Tor) are
// rejected.
func CountryFromHint(hint string) (string, bool) {
	code := strings.ToUpper(strings.TrimSpace(hint))
	if len(code) != 2 || code == "XX" || code == "T1" {
		return "", false
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return "", false
		}
	}
	return code, true
}
