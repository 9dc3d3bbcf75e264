package browser

import (
	"math/rand/v2"

	"github.com/instapipe/dm-manager/internal/config"
)

// Fingerprint is the randomized identity a stealth context presents to the
// target site: locale, user agent, viewport jitter, geolocation and an
// optional egress proxy.
type Fingerprint struct {
	Locale         string
	UserAgent      string
	ViewportWidth  int
	ViewportHeight int
	Timezone       string
	Longitude      float64
	Latitude       float64
	Proxy          *config.Proxy
}

const (
	baseViewportWidth  = 1920
	baseViewportHeight = 1080
	viewportJitter     = 50
)

// randomFingerprint draws one combination from the configured pools. The
// viewport jitters ±50px around 1920x1080 so no two contexts share exact
// dimensions.
func randomFingerprint(cfg config.Browser) Fingerprint {
	fp := Fingerprint{
		ViewportWidth:  baseViewportWidth + rand.IntN(2*viewportJitter+1) - viewportJitter,
		ViewportHeight: baseViewportHeight + rand.IntN(2*viewportJitter+1) - viewportJitter,
	}

	if len(cfg.Locales) > 0 {
		fp.Locale = cfg.Locales[rand.IntN(len(cfg.Locales))]
	}
	if len(cfg.UserAgents) > 0 {
		fp.UserAgent = cfg.UserAgents[rand.IntN(len(cfg.UserAgents))]
	}
	if len(cfg.Geolocations) > 0 {
		loc := cfg.Geolocations[rand.IntN(len(cfg.Geolocations))]
		fp.Timezone = loc.Timezone
		fp.Longitude = loc.Longitude
		fp.Latitude = loc.Latitude
	}
	if len(cfg.Proxies) > 0 {
		proxy := cfg.Proxies[rand.IntN(len(cfg.Proxies))]
		fp.Proxy = &proxy
	}

	return fp
}
