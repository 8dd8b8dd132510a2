package handler

import (
	"net/http"
	"time"

	"udsp-service/internal/middleware"
	"udsp-service/internal/model"
	"udsp-service/pkg/database"
	"udsp-service/pkg/logger"
	"udsp-service/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// UserRequest defines the structure for user creation/update requests
type UserRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Mobile    string `json:"mobile"`
	Role      string `json:"role"`
}

// GetProfile returns the authenticated user's profile
func GetProfile(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"user": middleware.CurrentUser(c)})
}

// UpdateProfile lets the authenticated user edit their own name and contact
// fields. Mobile and email stay unique across accounts.
func UpdateProfile(c echo.Context) error {
	log := logger.FromContext(c)
	user := middleware.CurrentUser(c)

	var req struct {
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`
		Mobile    string `json:"mobile"`
		Email     string `json:"email"`
	}

	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request data"})
	}

	db := database.GetDB()

	if req.Mobile != "" && req.Mobile != user.Mobile {
		if !model.ValidMobile(req.Mobile) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "Please enter a valid 10-digit mobile number"})
		}
		var count int64
		db.Model(&model.User{}).Where("mobile = ? AND id != ?", req.Mobile, user.ID).Count(&count)
		if count > 0 {
			log.Warn("Mobile number already exists", zap.String("mobile", req.Mobile))
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "Mobile number already exists"})
		}
		user.Mobile = req.Mobile
	}

	if req.Email != "" && (user.Email == nil || req.Email != *user.Email) {
		if !model.ValidEmail(req.Email) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "Please enter a valid email"})
		}
		var count int64
		db.Model(&model.User{}).Where("email = ? AND id != ?", req.Email, user.ID).Count(&count)
		if count > 0 {
			log.Warn("Email already exists", zap.String("email", req.Email))
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "Email already exists"})
		}
		user.Email = &req.Email
	}

	if req.FirstName != "" {
		user.FirstName = req.FirstName
	}
	if req.LastName != "" {
		user.LastName = req.LastName
	}

	if errs := user.Validate(); len(errs) > 0 {
		return validationFailed(c, errs)
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	if result := db.Save(user); result.Error != nil {
		log.Error("Failed to update profile", zap.Error(result.Error))
		return serverError(c, "Server error during profile update", result.Error)
	}

	log.Info("Profile updated", zap.Uint("user_id", user.ID))
	return c.JSON(http.StatusOK, echo.Map{
		"message": "Profile updated successfully",
		"user":    user,
	})
}

// ListUsers returns all users, newest first (admin only)
func ListUsers(c echo.Context) error {
	log := logger.FromContext(c)

	var users []model.User
	defer prometheus.TrackDBOperation("query")(time.Now())
	if result := database.GetDB().Order("created_at desc").Find(&users); result.Error != nil {
		log.Error("Failed to list users", zap.Error(result.Error))
		return serverError(c, "Failed to retrieve users", result.Error)
	}

	return c.JSON(http.StatusOK, echo.Map{"users": users})
}

// CreateUser creates a new account (admin only). Also serves the admin-only
// registration route.
func CreateUser(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RegisterCounter.Inc()

	var req UserRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request data"})
	}

	if req.Role == "" {
		req.Role = model.RoleStaff
	}

	user := model.User{
		Username:  req.Username,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Mobile:    req.Mobile,
		Role:      req.Role,
		IsActive:  true,
	}
	if req.Email != "" {
		user.Email = &req.Email
	}

	errs := user.Validate()
	if err := model.ValidatePassword(req.Password); err != nil {
		errs = append(errs, err.Error())
	}
	if len(errs) > 0 {
		return validationFailed(c, errs)
	}

	// Check if user already exists
	db := database.GetDB()
	query := db.Model(&model.User{}).Where("username = ? OR mobile = ?", req.Username, req.Mobile)
	if req.Email != "" {
		query = db.Model(&model.User{}).Where("username = ? OR mobile = ? OR email = ?", req.Username, req.Mobile, req.Email)
	}
	var count int64
	query.Count(&count)
	if count > 0 {
		log.Warn("Duplicate user", zap.String("username", req.Username), zap.String("mobile", req.Mobile))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "User with this mobile, email, or username already exists"})
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcryptCost)
	if err != nil {
		log.Error("Failed to hash password", zap.Error(err))
		return serverError(c, "Server error during user creation", err)
	}
	user.Password = string(hashed)

	defer prometheus.TrackDBOperation("insert")(time.Now())
	if result := db.Create(&user); result.Error != nil {
		log.Error("Failed to create user", zap.Error(result.Error))
		return serverError(c, "Server error during user creation", result.Error)
	}

	prometheus.RecordUserOperation("create")
	log.Info("User created",
		zap.Uint("user_id", user.ID),
		zap.String("username", user.Username),
		zap.String("role", user.Role))
	return c.JSON(http.StatusCreated, echo.Map{
		"message": "User created successfully",
		"user":    user,
	})
}

// UpdateUser edits another user's record (admin only)
func UpdateUser(c echo.Context) error {
	log := logger.FromContext(c)
	id := c.Param("id")

	var req UserRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request data"})
	}

	db := database.GetDB()
	var user model.User
	if result := db.First(&user, id); result.Error != nil {
		log.Warn("User not found for update", zap.String("user_id", id))
		return c.JSON(http.StatusNotFound, echo.Map{"error": "User not found"})
	}

	if req.Mobile != "" && req.Mobile != user.Mobile {
		var count int64
		db.Model(&model.User{}).Where("mobile = ? AND id != ?", req.Mobile, user.ID).Count(&count)
		if count > 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "Mobile number already exists"})
		}
		user.Mobile = req.Mobile
	}

	if req.Email != "" && (user.Email == nil || req.Email != *user.Email) {
		var count int64
		db.Model(&model.User{}).Where("email = ? AND id != ?", req.Email, user.ID).Count(&count)
		if count > 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "Email already exists"})
		}
		user.Email = &req.Email
	}

	if req.Role != "" {
		if !model.IsValidRole(req.Role) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid role. Must be admin or staff"})
		}
		user.Role = req.Role
	}

	if req.FirstName != "" {
		user.FirstName = req.FirstName
	}
	if req.LastName != "" {
		user.LastName = req.LastName
	}

	if errs := user.Validate(); len(errs) > 0 {
		return validationFailed(c, errs)
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	if result := db.Save(&user); result.Error != nil {
		log.Error("Failed to update user", zap.String("user_id", id), zap.Error(result.Error))
		return serverError(c, "Server error during user update", result.Error)
	}

	prometheus.RecordUserOperation("update")
	log.Info("User updated", zap.Uint("user_id", user.ID))
	return c.JSON(http.StatusOK, echo.Map{
		"message": "User updated successfully",
		"user":    user,
	})
}

// ResetUserPassword sets a new password on another account (admin only)
func ResetUserPassword(c echo.Context) error {
	log := logger.FromContext(c)
	id := c.Param("id")

	var req struct {
		NewPassword string `json:"newPassword"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request data"})
	}

	if err := model.ValidatePassword(req.NewPassword); err != nil {
		return validationFailed(c, []string{err.Error()})
	}

	db := database.GetDB()
	var user model.User
	if result := db.First(&user, id); result.Error != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "User not found"})
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcryptCost)
	if err != nil {
		log.Error("Failed to hash password", zap.Error(err))
		return serverError(c, "Server error during password change", err)
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	if err := db.Model(&user).Update("password", string(hashed)).Error; err != nil {
		log.Error("Failed to reset password", zap.String("user_id", id), zap.Error(err))
		return serverError(c, "Server error during password change", err)
	}

	prometheus.RecordUserOperation("password_reset")
	log.Info("User password reset", zap.Uint("user_id", user.ID))
	return c.JSON(http.StatusOK, echo.Map{"message": "User password changed successfully"})
}

// ToggleUserStatus flips a user's active flag (admin only). Admins cannot
// deactivate their own account.
func ToggleUserStatus(c echo.Context) error {
	log := logger.FromContext(c)
	actor := middleware.CurrentUser(c)
	id := c.Param("id")

	db := database.GetDB()
	var user model.User
	if result := db.First(&user, id); result.Error != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "User not found"})
	}

	if user.ID == actor.ID {
		log.Warn("Admin attempted to deactivate own account", zap.Uint("user_id", actor.ID))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Cannot deactivate your own account"})
	}

	user.IsActive = !user.IsActive

	defer prometheus.TrackDBOperation("update")(time.Now())
	if err := db.Model(&user).Update("is_active", user.IsActive).Error; err != nil {
		log.Error("Failed to toggle user status", zap.String("user_id", id), zap.Error(err))
		return serverError(c, "Server error during status toggle", err)
	}

	status := "deactivated"
	if user.IsActive {
		status = "activated"
	}

	prometheus.RecordUserOperation("status_toggle")
	log.Info("User status toggled",
		zap.Uint("user_id", user.ID),
		zap.Bool("is_active", user.IsActive))
	return c.JSON(http.StatusOK, echo.Map{
		"message": "User " + status + " successfully",
		"user":    user,
	})
}

// DeleteUser removes an account (admin only). Admins cannot delete their own
// account.
func DeleteUser(c echo.Context) error {
	log := logger.FromContext(c)
	actor := middleware.CurrentUser(c)
	id := c.Param("id")

	db := database.GetDB()
	var user model.User
	if result := db.First(&user, id); result.Error != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "User not found"})
	}

	if user.ID == actor.ID {
		log.Warn("Admin attempted to delete own account", zap.Uint("user_id", actor.ID))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Cannot delete your own account"})
	}

	defer prometheus.TrackDBOperation("delete")(time.Now())
	if result := db.Delete(&model.User{}, user.ID); result.Error != nil {
		log.Error("Failed to delete user", zap.String("user_id", id), zap.Error(result.Error))
		return serverError(c, "Server error during user deletion", result.Error)
	}

	prometheus.RecordUserOperation("delete")
	log.Info("User deleted", zap.Uint("user_id", user.ID), zap.String("username", user.Username))
	return c.JSON(http.StatusOK, echo.Map{"message": "User deleted successfully"})
}
