package model

import (
	"strings"
	"time"
)

// PlanTier represents a membership level.
type PlanTier string

const (
	PlanTierFree   PlanTier = "free"
	PlanTierSilver PlanTier = "silver"
	PlanTierGold   PlanTier = "gold"
	PlanTierAdmin  PlanTier = "admin"
)

// Unlimited is the limit sentinel for tiers without a daily cap.
const Unlimited = -1

// String returns the string representation of the tier.
func (t PlanTier) String() string {
	return string(t)
}

// IsValid checks if the tier is known.
func (t PlanTier) IsValid() bool {
	switch t {
	case PlanTierFree, PlanTierSilver, PlanTierGold, PlanTierAdmin:
		return true
	}
	return false
}

// ParsePlanTier parses a tier name, falling back to free for unknown values.
func ParsePlanTier(s string) PlanTier {
	t := PlanTier(strings.ToLower(strings.TrimSpace(s)))
	if !t.IsValid() {
		return PlanTierFree
	}
	return t
}

// UsageRecord is the per-subject counter for one quota period.
type UsageRecord struct {
	SubjectID string    `json:"subject_id" gorm:"primaryKey;size:128"`
	PeriodKey string    `json:"period_key" gorm:"size:16;not null"`
	Count     int       `json:"count" gorm:"not null;default:0"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the table name.
func (UsageRecord) TableName() string {
	return "usage_records"
}

// Same reports whether two records hold the same period and count.
func (r *UsageRecord) Same(other *UsageRecord) bool {
	if r == nil || other == nil {
		return r == nil && other == nil
	}
	return r.PeriodKey == other.PeriodKey && r.Count == other.Count
}

// UsageSnapshot is a read-only view of a subject's quota state.
type UsageSnapshot struct {
	SubjectID string   `json:"subject_id"`
	Tier      PlanTier `json:"tier"`
	PeriodKey string   `json:"period"`
	Used      int      `json:"used"`
	Limit     int      `json:"limit"`     // -1 for unlimited
	Remaining int      `json:"remaining"` // -1 for unlimited
}
