package clickstream

import (
	"context"
	"net"
	"strings"

	"github.com/mileusna/useragent"
	"github.com/oschwald/geoip2-golang"
	"github.com/parthsharma2/linksight/internal/domain"
)

// ParseUserAgent derives device type, OS and browser from a raw user-agent
// string. Every field that cannot be derived comes back as Unknown; parsing
// never fails outright.
func ParseUserAgent(raw string) domain.DeviceInfo {
	info := domain.DeviceInfo{
		Type:    domain.Unknown,
		OS:      domain.Unknown,
		Browser: domain.Unknown,
	}
	if strings.TrimSpace(raw) == "" {
		return info
	}

	ua := useragent.Parse(raw)
	switch {
	case ua.Mobile:
		info.Type = "mobile"
	case ua.Tablet:
		info.Type = "tablet"
	case ua.Desktop:
		info.Type = "desktop"
	}
	if ua.OS != "" {
		info.OS = ua.OS
	}
	if ua.Name != "" {
		info.Browser = ua.Name
	}
	return info
}

// GeoResolver turns an IP address into a location. Implementations must be
// best-effort: on any failure they return UnknownLocation, never an error
// that could block click persistence.
type GeoResolver interface {
	Resolve(ctx context.Context, ipAddress string) domain.Location
	Close() error
}

// UnknownLocation is what every resolver falls back to.
func UnknownLocation() domain.Location {
	return domain.Location{Country: domain.Unknown, City: domain.Unknown}
}

// MaxMindResolver looks up city-level geo data in a local MaxMind database.
type MaxMindResolver struct {
	db *geoip2.Reader
}

func NewMaxMindResolver(dbPath string) (*MaxMindResolver, error) {
	db, err := geoip2.Open(dbPath)
	if err != nil {
		return nil, err
	}
	return &MaxMindResolver{db: db}, nil
}

func (r *MaxMindResolver) Resolve(ctx context.Context, ipAddress string) domain.Location {
	if err := ctx.Err(); err != nil {
		return UnknownLocation()
	}

	ip := net.ParseIP(ipAddress)
	if ip == nil {
		return UnknownLocation()
	}

	record, err := r.db.City(ip)
	if err != nil {
		return UnknownLocation()
	}

	loc := UnknownLocation()
	if name := record.Country.Names["en"]; name != "" {
		loc.Country = name
	}
	if name := record.City.Names["en"]; name != "" {
		loc.City = name
	}
	if record.Location.Latitude != 0 || record.Location.Longitude != 0 {
		lat, lon := record.Location.Latitude, record.Location.Longitude
		loc.Latitude = &lat
		loc.Longitude = &lon
	}
	return loc
}

func (r *MaxMindResolver) Close() error {
	return r.db.Close()
}

// NoopGeoResolver is used when no geo database is configured; every click
// carries an Unknown location.
type NoopGeoResolver struct{}

func (NoopGeoResolver) Resolve(ctx context.Context, ipAddress string) domain.Location {
	return UnknownLocation()
}

func (NoopGeoResolver) Close() error { return nil }
