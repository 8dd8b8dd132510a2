package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"udsp-service/internal/middleware"
	"udsp-service/internal/model"
	"udsp-service/pkg/database"
	"udsp-service/pkg/logger"
	"udsp-service/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// TestDataRequest defines the structure for test data entry requests
type TestDataRequest struct {
	Date           string `json:"date"`
	LabTestID      uint   `json:"labTestId"`
	SampleTaken    int    `json:"sampleTaken"`
	SamplePositive int    `json:"samplePositive"`
}

type testDataResponse struct {
	model.TestData
	LabTestName string `json:"labTestName"`
}

// ListLabTestOptions returns the catalog for the entry-form dropdown.
// Unlike the admin catalog routes this is open to every authenticated user.
func ListLabTestOptions(c echo.Context) error {
	log := logger.FromContext(c)

	var labTests []model.LabTest
	defer prometheus.TrackDBOperation("query")(time.Now())
	if result := database.GetDB().Order("name asc").Find(&labTests); result.Error != nil {
		log.Error("Failed to list lab tests", zap.Error(result.Error))
		return serverError(c, "Server error while fetching lab tests", result.Error)
	}

	return c.JSON(http.StatusOK, echo.Map{"data": labTests})
}

// GetMyEntries returns the acting user's entries for one calendar date
func GetMyEntries(c echo.Context) error {
	log := logger.FromContext(c)
	user := middleware.CurrentUser(c)

	date, err := parseEntryDate(c.Param("date"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Valid date is required"})
	}

	db := database.GetDB()
	var entries []model.TestData
	defer prometheus.TrackDBOperation("query")(time.Now())
	if result := db.Where("user_id = ? AND date = ?", user.ID, date).Find(&entries); result.Error != nil {
		log.Error("Failed to fetch test data", zap.Error(result.Error))
		return serverError(c, "Server error while fetching test data", result.Error)
	}

	return c.JSON(http.StatusOK, echo.Map{"data": decorateEntries(db, entries)})
}

// SaveEntry creates or updates the entry for the acting user's
// (date, lab test) pair. The triple is the natural key: when a row already
// exists its counts are overwritten, and a concurrent duplicate create that
// trips the unique index is converted into an update instead of surfacing
// as an error.
func SaveEntry(c echo.Context) error {
	log := logger.FromContext(c)
	user := middleware.CurrentUser(c)

	var req TestDataRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request data"})
	}

	date, err := parseEntryDate(req.Date)
	if err != nil {
		return validationFailed(c, []string{"Date must be in valid ISO format"})
	}

	entry := model.TestData{
		UserID:         user.ID,
		Date:           date,
		LabTestID:      req.LabTestID,
		SampleTaken:    req.SampleTaken,
		SamplePositive: req.SamplePositive,
	}
	if errs := entry.Validate(); len(errs) > 0 {
		return validationFailed(c, errs)
	}

	db := database.GetDB()

	// Verify lab test exists
	var labTest model.LabTest
	if result := db.First(&labTest, req.LabTestID); result.Error != nil {
		log.Warn("Lab test not found", zap.Uint("lab_test_id", req.LabTestID))
		return c.JSON(http.StatusNotFound, echo.Map{"error": "Lab test not found"})
	}

	var existing model.TestData
	result := db.Where("user_id = ? AND date = ? AND lab_test_id = ?", user.ID, date, req.LabTestID).First(&existing)
	if result.Error == nil {
		return updateEntryCounts(c, db, &existing, req.SampleTaken, req.SamplePositive, labTest.Name)
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	if result := db.Create(&entry); result.Error != nil {
		if isDuplicateKey(result.Error) {
			// Lost a create race for the same natural key; the row now
			// exists, so fall back to updating it
			if refetch := db.Where("user_id = ? AND date = ? AND lab_test_id = ?", user.ID, date, req.LabTestID).First(&existing); refetch.Error == nil {
				return updateEntryCounts(c, db, &existing, req.SampleTaken, req.SamplePositive, labTest.Name)
			}
		}
		log.Error("Failed to create test data", zap.Error(result.Error))
		return serverError(c, "Server error while saving test data", result.Error)
	}

	prometheus.RecordTestDataOperation("create")
	log.Info("Test data created",
		zap.Uint("entry_id", entry.ID),
		zap.Uint("user_id", user.ID),
		zap.Uint("lab_test_id", entry.LabTestID))
	return c.JSON(http.StatusCreated, echo.Map{
		"message": "Test data created successfully",
		"data":    testDataResponse{TestData: entry, LabTestName: labTest.Name},
	})
}

// UpdateEntry edits one of the acting user's entries by id. The row is
// looked up scoped to the caller, so foreign rows are indistinguishable
// from absent ones.
func UpdateEntry(c echo.Context) error {
	log := logger.FromContext(c)
	user := middleware.CurrentUser(c)
	id := c.Param("id")

	var req TestDataRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request data"})
	}

	date, err := parseEntryDate(req.Date)
	if err != nil {
		return validationFailed(c, []string{"Date must be in valid ISO format"})
	}

	db := database.GetDB()

	var labTest model.LabTest
	if result := db.First(&labTest, req.LabTestID); result.Error != nil {
		log.Warn("Lab test not found", zap.Uint("lab_test_id", req.LabTestID))
		return c.JSON(http.StatusNotFound, echo.Map{"error": "Lab test not found"})
	}

	var entry model.TestData
	if result := db.Where("id = ? AND user_id = ?", id, user.ID).First(&entry); result.Error != nil {
		log.Warn("Test data entry not found", zap.String("entry_id", id), zap.Uint("user_id", user.ID))
		return c.JSON(http.StatusNotFound, echo.Map{"error": "Test data entry not found"})
	}

	entry.Date = date
	entry.LabTestID = req.LabTestID
	entry.SampleTaken = req.SampleTaken
	entry.SamplePositive = req.SamplePositive
	if errs := entry.Validate(); len(errs) > 0 {
		return validationFailed(c, errs)
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	if result := db.Save(&entry); result.Error != nil {
		if isDuplicateKey(result.Error) {
			log.Warn("Update collides with existing entry",
				zap.String("entry_id", id),
				zap.Uint("lab_test_id", req.LabTestID))
			return c.JSON(http.StatusConflict, echo.Map{"error": "An entry already exists for this date and lab test"})
		}
		log.Error("Failed to update test data", zap.String("entry_id", id), zap.Error(result.Error))
		return serverError(c, "Server error while updating test data", result.Error)
	}

	prometheus.RecordTestDataOperation("update")
	log.Info("Test data updated", zap.Uint("entry_id", entry.ID), zap.Uint("user_id", user.ID))
	return c.JSON(http.StatusOK, echo.Map{
		"message": "Test data updated successfully",
		"data":    testDataResponse{TestData: entry, LabTestName: labTest.Name},
	})
}

// DeleteEntry removes one of the acting user's entries by id
func DeleteEntry(c echo.Context) error {
	log := logger.FromContext(c)
	user := middleware.CurrentUser(c)
	id := c.Param("id")

	db := database.GetDB()
	var entry model.TestData
	if result := db.Where("id = ? AND user_id = ?", id, user.ID).First(&entry); result.Error != nil {
		log.Warn("Test data entry not found", zap.String("entry_id", id), zap.Uint("user_id", user.ID))
		return c.JSON(http.StatusNotFound, echo.Map{"error": "Test data entry not found"})
	}

	defer prometheus.TrackDBOperation("delete")(time.Now())
	if result := db.Delete(&model.TestData{}, entry.ID); result.Error != nil {
		log.Error("Failed to delete test data", zap.String("entry_id", id), zap.Error(result.Error))
		return serverError(c, "Server error while deleting test data", result.Error)
	}

	prometheus.RecordTestDataOperation("delete")
	log.Info("Test data deleted", zap.Uint("entry_id", entry.ID), zap.Uint("user_id", user.ID))
	return c.JSON(http.StatusOK, echo.Map{"message": "Test data entry deleted successfully"})
}

func updateEntryCounts(c echo.Context, db *gorm.DB, entry *model.TestData, taken, positive int, labTestName string) error {
	log := logger.FromContext(c)

	entry.SampleTaken = taken
	entry.SamplePositive = positive

	defer prometheus.TrackDBOperation("update")(time.Now())
	if result := db.Save(entry); result.Error != nil {
		log.Error("Failed to update test data", zap.Uint("entry_id", entry.ID), zap.Error(result.Error))
		return serverError(c, "Server error while saving test data", result.Error)
	}

	prometheus.RecordTestDataOperation("update")
	log.Info("Test data updated",
		zap.Uint("entry_id", entry.ID),
		zap.Uint("user_id", entry.UserID),
		zap.Uint("lab_test_id", entry.LabTestID))
	return c.JSON(http.StatusOK, echo.Map{
		"message": "Test data updated successfully",
		"data":    testDataResponse{TestData: *entry, LabTestName: labTestName},
	})
}

// parseEntryDate accepts a plain date or a full timestamp and normalizes it
// to UTC midnight
func parseEntryDate(value string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", value); err == nil {
		return model.NormalizeDate(t), nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, err
	}
	return model.NormalizeDate(t.UTC()), nil
}

func decorateEntries(db *gorm.DB, entries []model.TestData) []testDataResponse {
	names := make(map[uint]string)
	var labTests []model.LabTest
	if result := db.Find(&labTests); result.Error == nil {
		for _, t := range labTests {
			names[t.ID] = t.Name
		}
	}

	out := make([]testDataResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, testDataResponse{TestData: e, LabTestName: names[e.LabTestID]})
	}
	return out
}

// isDuplicateKey reports whether err is the store's uniqueness violation.
// The string checks cover drivers that do not translate to
// gorm.ErrDuplicatedKey.
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "UNIQUE constraint")
}
