package model

import (
	"errors"
	"regexp"
	"strings"
	"time"
)

// User roles
const (
	RoleAdmin = "admin"
	RoleStaff = "staff"
)

var (
	mobileRegex = regexp.MustCompile(`^\d{10}$`)
	emailRegex  = regexp.MustCompile(`^\w+([.-]?\w+)*@\w+([.-]?\w+)*(\.\w{2,3})+$`)
	// Passwords need at least one lowercase letter, one uppercase letter and one digit
	passwordLower = regexp.MustCompile(`[a-z]`)
	passwordUpper = regexp.MustCompile(`[A-Z]`)
	passwordDigit = regexp.MustCompile(`\d`)
)

// User represents a staff or admin account
type User struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Username  string    `json:"username" gorm:"type:varchar(50);uniqueIndex;not null"`
	Email     *string   `json:"email,omitempty" gorm:"type:varchar(100);uniqueIndex"`
	Password  string    `json:"-" gorm:"type:varchar(255);not null"`
	Role      string    `json:"role" gorm:"type:varchar(20);not null;default:staff"`
	FirstName string    `json:"firstName" gorm:"type:varchar(100);not null"`
	LastName  string    `json:"lastName" gorm:"type:varchar(100)"`
	Mobile    string    `json:"mobile" gorm:"type:varchar(10);uniqueIndex;not null"`
	IsActive  bool      `json:"isActive" gorm:"not null;default:true"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DisplayName returns the user's name as rendered in reports
func (u *User) DisplayName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// IsAdmin reports whether the user has the admin role
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// IsValidRole reports whether role is one of the known roles
func IsValidRole(role string) bool {
	return role == RoleAdmin || role == RoleStaff
}

// Validate checks the user fields the way the persistence schema used to.
// It returns one message per violated field.
func (u *User) Validate() []string {
	var errs []string

	if len(strings.TrimSpace(u.Username)) < 3 {
		errs = append(errs, "Username must be at least 3 characters long")
	}
	if strings.TrimSpace(u.FirstName) == "" {
		errs = append(errs, "First name is required")
	}
	if !mobileRegex.MatchString(u.Mobile) {
		errs = append(errs, "Please enter a valid 10-digit mobile number")
	}
	if u.Email != nil && *u.Email != "" && !emailRegex.MatchString(*u.Email) {
		errs = append(errs, "Please enter a valid email")
	}
	if !IsValidRole(u.Role) {
		errs = append(errs, "Invalid role. Must be admin or staff")
	}

	return errs
}

// ValidatePassword checks the plaintext password policy before hashing
func ValidatePassword(password string) error {
	if len(password) < 6 {
		return errors.New("Password must be at least 6 characters long")
	}
	if !passwordLower.MatchString(password) || !passwordUpper.MatchString(password) || !passwordDigit.MatchString(password) {
		return errors.New("Password must contain at least one lowercase letter, one uppercase letter, and one number")
	}
	return nil
}

// ValidMobile reports whether mobile is a 10-digit number
func ValidMobile(mobile string) bool {
	return mobileRegex.MatchString(mobile)
}

// ValidEmail reports whether email looks like an email address
func ValidEmail(email string) bool {
	return emailRegex.MatchString(email)
}
