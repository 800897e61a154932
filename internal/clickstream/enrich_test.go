package clickstream

import (
	"context"
	"testing"

	"github.com/parthsharma2/linksight/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestParseUserAgent(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		device  string
		os      string
		browser string
	}{
		{
			name:    "desktop chrome",
			raw:     "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			device:  "desktop",
			os:      "Windows",
			browser: "Chrome",
		},
		{
			name:    "iphone safari",
			raw:     "Mozilla/5.0 (iPhone; CPU iPhone OS 17_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Mobile/15E148 Safari/604.1",
			device:  "mobile",
			os:      "iOS",
			browser: "Safari",
		},
		{
			name:    "ipad safari",
			raw:     "Mozilla/5.0 (iPad; CPU OS 16_6 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.6 Mobile/15E148 Safari/604.1",
			device:  "tablet",
			os:      "iOS",
			browser: "Safari",
		},
		{
			name:    "empty string",
			raw:     "",
			device:  domain.Unknown,
			os:      domain.Unknown,
			browser: domain.Unknown,
		},
		{
			name:    "garbage",
			raw:     "definitely-not-a-user-agent",
			device:  domain.Unknown,
			os:      domain.Unknown,
			browser: domain.Unknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := ParseUserAgent(tt.raw)
			assert.Equal(t, tt.device, info.Type)
			assert.Equal(t, tt.os, info.OS)
			assert.Equal(t, tt.browser, info.Browser)
		})
	}
}

func TestNoopGeoResolver(t *testing.T) {
	loc := NoopGeoResolver{}.Resolve(context.Background(), "8.8.8.8")
	assert.Equal(t, domain.Unknown, loc.Country)
	assert.Equal(t, domain.Unknown, loc.City)
	assert.Nil(t, loc.Latitude)
	assert.Nil(t, loc.Longitude)
}
