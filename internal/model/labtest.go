package model

import (
	"strings"
	"time"
)

// LabTest is a catalog entry naming a category of sample analysis
type LabTest struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Name      string    `json:"name" gorm:"type:varchar(100);uniqueIndex;not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks the lab test name constraints
func (t *LabTest) Validate() []string {
	var errs []string

	name := strings.TrimSpace(t.Name)
	if name == "" {
		errs = append(errs, "Lab test name is required")
	} else if len(name) < 2 || len(name) > 100 {
		errs = append(errs, "Lab test name must be between 2 and 100 characters")
	}

	return errs
}
