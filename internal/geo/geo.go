package geo

import (
	"fmt"
	"net"
	"sync"

	"github.com/oschwald/geoip2-golang"
)

// Resolver wraps an optional MaxMind GeoIP2 database used to tag access log
// entries with a country code. A nil Resolver is valid and resolves nothing;
// a missing database file disables enrichment, it does not fail startup.
type Resolver struct {
	mu     sync.RWMutex
	reader *geoip2.Reader
}

// Open opens a GeoIP database file.
func Open(path string) (*Resolver, error) {
	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open GeoIP database: %w", err)
	}
	return &Resolver{reader: reader}, nil
}

// Close closes the database.
func (r *Resolver) Close() error {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.reader != nil {
		err := r.reader.Close()
		r.reader = nil
		return err
	}
	return nil
}

// Country returns the ISO country code for an IP, or "" when the resolver is
// disabled, the IP is unparseable, or the database has no record.
func (r *Resolver) Country(ipStr string) string {
	if r == nil {
		return ""
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.reader == nil {
		return ""
	}

	ip := net.ParseIP(ipStr)
	if ip == nil {
		return ""
	}

	record, err := r.reader.Country(ip)
	if err != nil {
		return ""
	}
	return record.Country.IsoCode
}
