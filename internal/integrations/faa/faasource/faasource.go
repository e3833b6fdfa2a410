// Package faasource selects the FAA source implementation named in config.
package faasource

import (
	"time"

	"github.com/BearBump/RIDBox/config"
	"github.com/BearBump/RIDBox/internal/integrations/faa"
	"github.com/BearBump/RIDBox/internal/integrations/faa/fake"
	"github.com/BearBump/RIDBox/internal/integrations/faa/uasdochttp"
)

// FromConfig returns the live uasdoc client unless mode is "fake". The fake
// starts empty; it exists for local demos and smoke runs without network.
func FromConfig(cfg *config.Config) faa.Source {
	if cfg.FAA.Mode == config.FAAModeFake {
		return fake.New()
	}
	return uasdochttp.New(
		cfg.FAA.BaseURL,
		time.Duration(cfg.FAA.ListTimeoutSeconds)*time.Second,
		time.Duration(cfg.FAA.LookupTimeoutSeconds)*time.Second,
	)
}
