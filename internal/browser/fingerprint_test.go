package browser

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/instapipe/dm-manager/internal/config"
)

func TestRandomFingerprint(t *testing.T) {
	cfg := config.Default().Browser

	t.Run("draws from configured pools", func(t *testing.T) {
		for range 50 {
			fp := randomFingerprint(cfg)

			assert.Contains(t, cfg.Locales, fp.Locale)
			assert.Contains(t, cfg.UserAgents, fp.UserAgent)
			assert.InDelta(t, baseViewportWidth, fp.ViewportWidth, viewportJitter)
			assert.InDelta(t, baseViewportHeight, fp.ViewportHeight, viewportJitter)
			assert.NotEmpty(t, fp.Timezone)
			assert.Nil(t, fp.Proxy) // none configured by default
		}
	})

	t.Run("geolocation matches its timezone entry", func(t *testing.T) {
		fp := randomFingerprint(cfg)

		var found bool
		for _, loc := range cfg.Geolocations {
			if loc.Timezone == fp.Timezone {
				assert.Equal(t, loc.Longitude, fp.Longitude)
				assert.Equal(t, loc.Latitude, fp.Latitude)
				found = true
			}
		}
		assert.True(t, found)
	})

	t.Run("uses a proxy when one is configured", func(t *testing.T) {
		cfg := cfg
		cfg.Proxies = []config.Proxy{{Server: "http://127.0.0.1:8888"}}

		fp := randomFingerprint(cfg)
		if assert.NotNil(t, fp.Proxy) {
			assert.Equal(t, "http://127.0.0.1:8888", fp.Proxy.Server)
		}
	})

	t.Run("empty pools leave zero values", func(t *testing.T) {
		fp := randomFingerprint(config.Browser{})

		assert.Empty(t, fp.Locale)
		assert.Empty(t, fp.UserAgent)
		assert.Empty(t, fp.Timezone)
		assert.InDelta(t, baseViewportWidth, fp.ViewportWidth, viewportJitter)
	})
}

func TestJitter(t *testing.T) {
	for range 100 {
		d := jitter(50, 150)
		assert.GreaterOrEqual(t, int64(d), int64(50))
		assert.LessOrEqual(t, int64(d), int64(150))
	}

	// Degenerate range collapses to min.
	assert.Equal(t, int64(100), int64(jitter(100, 100)))
}
