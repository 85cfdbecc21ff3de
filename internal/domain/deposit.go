package domain

import "time"

// DepositSetting maps an order total range to a deposit percentage.
type DepositSetting struct {
	ID        string
	MinTotal  int64
	MaxTotal  int64
	Percent   float64
	Active    bool
	Deleted   bool
	CreatedAt time.Time
	UpdatedAt time.Time
	UpdatedBy string
}

// Contains reports whether total falls inside the inclusive range.
func (s DepositSetting) Contains(total int64) bool {
	return s.MinTotal <= total && total <= s.MaxTotal
}

// Overlaps reports whether two inclusive ranges intersect.
func (s DepositSetting) Overlaps(other DepositSetting) bool {
	return s.MinTotal <= other.MaxTotal && other.MinTotal <= s.MaxTotal
}

// Live reports whether the setting participates in resolution.
func (s DepositSetting) Live() bool {
	return s.Active && !s.Deleted
}
