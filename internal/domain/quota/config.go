package quota

import (
	"time"

	"github.com/genrelay/server/internal/model"
)

// PeriodLayout formats the calendar-day period key.
const PeriodLayout = "2006-01-02"

// Config holds quota tracker configuration.
type Config struct {
	// Limits maps a tier to its daily image limit. model.Unlimited disables the cap.
	Limits        map[model.PlanTier]int
	Location      *time.Location
	MaxCASRetries int
}

// DefaultConfig returns the default tier limits in UTC.
func DefaultConfig() *Config {
	return &Config{
		Limits: map[model.PlanTier]int{
			model.PlanTierFree:   10,
			model.PlanTierSilver: 30,
			model.PlanTierGold:   100,
			model.PlanTierAdmin:  model.Unlimited,
		},
		Location:      time.UTC,
		MaxCASRetries: 16,
	}
}

// LimitFor returns the daily limit of a tier. Unknown tiers get the free limit.
func (c *Config) LimitFor(tier model.PlanTier) int {
	if limit, ok := c.Limits[tier]; ok {
		return limit
	}
	return c.Limits[model.PlanTierFree]
}

func isUnlimited(limit int) bool {
	return limit < 0
}
