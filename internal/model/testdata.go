package model

import (
	"time"
)

// TestData is one user's daily count record for one lab test. The
// (user, date, lab test) triple is the natural key: the composite unique
// index guarantees at most one row per triple even under concurrent writers.
type TestData struct {
	ID             uint      `json:"id" gorm:"primaryKey"`
	UserID         uint      `json:"userId" gorm:"not null;uniqueIndex:idx_user_date_labtest"`
	Date           time.Time `json:"date" gorm:"not null;uniqueIndex:idx_user_date_labtest;index:idx_date_labtest"`
	LabTestID      uint      `json:"labTestId" gorm:"not null;uniqueIndex:idx_user_date_labtest;index:idx_date_labtest"`
	SampleTaken    int       `json:"sampleTaken" gorm:"not null"`
	SamplePositive int       `json:"samplePositive" gorm:"not null"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Validate checks the count invariants before any write
func (d *TestData) Validate() []string {
	var errs []string

	if d.SampleTaken < 0 {
		errs = append(errs, "Number of samples taken cannot be negative")
	}
	if d.SamplePositive < 0 {
		errs = append(errs, "Number of positive samples cannot be negative")
	}
	if d.SamplePositive >= 0 && d.SampleTaken >= 0 && d.SamplePositive > d.SampleTaken {
		errs = append(errs, "Number of positive samples cannot exceed number of samples taken")
	}

	return errs
}

// NormalizeDate truncates a timestamp to UTC midnight so every entry for a
// calendar day maps to one canonical value under the unique index
func NormalizeDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
