// Package geo enriches report rows with the target's country, looked up in a
// local MaxMind database. Enrichment is optional; a nil *Database is a no-op.
package geo

import (
	"net"

	"github.com/oschwald/geoip2-golang"
)

type Database struct {
	reader *geoip2.Reader
}

// Open loads the mmdb file at path.
func Open(path string) (*Database, error) {
	r, err := geoip2.Open(path)
	if err != nil {
		return nil, err
	}
	return &Database{reader: r}, nil
}

// Country resolves host (a DNS name or IP literal) and returns its ISO
// country code, or "" when the database is absent or the lookup fails.
func (d *Database) Country(host string) string {
	if d == nil || d.reader == nil {
		return ""
	}

	ip := net.ParseIP(host)
	if ip == nil {
		addrs, err := net.LookupIP(host)
		if err != nil || len(addrs) == 0 {
			return ""
		}
		ip = addrs[0]
	}

	record, err := d.reader.Country(ip)
	if err != nil {
		return ""
	}
	return record.Country.IsoCode
}

func (d *Database) Close() {
	if d != nil && d.reader != nil {
		d.reader.Close()
	}
}
