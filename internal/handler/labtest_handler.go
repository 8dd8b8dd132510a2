package handler

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"udsp-service/internal/model"
	"udsp-service/pkg/database"
	"udsp-service/pkg/logger"
	"udsp-service/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// LabTestRequest defines the structure for lab test creation/update requests
type LabTestRequest struct {
	Name string `json:"name"`
}

// ListLabTests returns the full catalog ordered by name
func ListLabTests(c echo.Context) error {
	log := logger.FromContext(c)

	var labTests []model.LabTest
	defer prometheus.TrackDBOperation("query")(time.Now())
	if result := database.GetDB().Order("name asc").Find(&labTests); result.Error != nil {
		log.Error("Failed to list lab tests", zap.Error(result.Error))
		return serverError(c, "Failed to retrieve lab tests", result.Error)
	}

	prometheus.RecordLabTestOperation("list")
	return c.JSON(http.StatusOK, echo.Map{
		"data":  labTests,
		"count": len(labTests),
	})
}

// GetLabTest returns a single catalog entry
func GetLabTest(c echo.Context) error {
	log := logger.FromContext(c)
	id := c.Param("id")

	var labTest model.LabTest
	if result := database.GetDB().First(&labTest, id); result.Error != nil {
		log.Warn("Lab test not found", zap.String("lab_test_id", id))
		return c.JSON(http.StatusNotFound, echo.Map{"error": "Lab test not found"})
	}

	return c.JSON(http.StatusOK, echo.Map{"data": labTest})
}

// CreateLabTest adds a catalog entry. Names are unique case-insensitively.
func CreateLabTest(c echo.Context) error {
	log := logger.FromContext(c)

	var req LabTestRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request data"})
	}

	labTest := model.LabTest{Name: strings.TrimSpace(req.Name)}
	if errs := labTest.Validate(); len(errs) > 0 {
		return validationFailed(c, errs)
	}

	db := database.GetDB()
	var count int64
	db.Model(&model.LabTest{}).Where("LOWER(name) = LOWER(?)", labTest.Name).Count(&count)
	if count > 0 {
		log.Warn("Lab test name already exists", zap.String("name", labTest.Name))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Lab test with this name already exists"})
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	if result := db.Create(&labTest); result.Error != nil {
		log.Error("Failed to create lab test", zap.String("name", labTest.Name), zap.Error(result.Error))
		return serverError(c, "Server error while creating lab test", result.Error)
	}

	prometheus.RecordLabTestOperation("create")
	log.Info("Lab test created", zap.Uint("lab_test_id", labTest.ID), zap.String("name", labTest.Name))
	return c.JSON(http.StatusCreated, echo.Map{
		"message": "Lab test created successfully",
		"data":    labTest,
	})
}

// UpdateLabTest renames a catalog entry, keeping names case-insensitively
// unique
func UpdateLabTest(c echo.Context) error {
	log := logger.FromContext(c)
	id := c.Param("id")

	var req LabTestRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request data"})
	}

	db := database.GetDB()
	var labTest model.LabTest
	if result := db.First(&labTest, id); result.Error != nil {
		log.Warn("Lab test not found for update", zap.String("lab_test_id", id))
		return c.JSON(http.StatusNotFound, echo.Map{"error": "Lab test not found"})
	}

	labTest.Name = strings.TrimSpace(req.Name)
	if errs := labTest.Validate(); len(errs) > 0 {
		return validationFailed(c, errs)
	}

	var count int64
	db.Model(&model.LabTest{}).Where("LOWER(name) = LOWER(?) AND id != ?", labTest.Name, labTest.ID).Count(&count)
	if count > 0 {
		log.Warn("Lab test name already exists", zap.String("name", labTest.Name))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Lab test with this name already exists"})
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	if result := db.Save(&labTest); result.Error != nil {
		log.Error("Failed to update lab test", zap.String("lab_test_id", id), zap.Error(result.Error))
		return serverError(c, "Server error while updating lab test", result.Error)
	}

	prometheus.RecordLabTestOperation("update")
	log.Info("Lab test updated", zap.Uint("lab_test_id", labTest.ID), zap.String("name", labTest.Name))
	return c.JSON(http.StatusOK, echo.Map{
		"message": "Lab test updated successfully",
		"data":    labTest,
	})
}

// DeleteLabTest removes a catalog entry. Deletion is blocked while any test
// data row references it; the message reports the dependent count.
func DeleteLabTest(c echo.Context) error {
	log := logger.FromContext(c)
	id := c.Param("id")

	db := database.GetDB()
	var labTest model.LabTest
	if result := db.First(&labTest, id); result.Error != nil {
		log.Warn("Lab test not found for deletion", zap.String("lab_test_id", id))
		return c.JSON(http.StatusNotFound, echo.Map{"error": "Lab test not found"})
	}

	var dependents int64
	db.Model(&model.TestData{}).Where("lab_test_id = ?", labTest.ID).Count(&dependents)
	if dependents > 0 {
		log.Warn("Lab test deletion blocked by dependents",
			zap.Uint("lab_test_id", labTest.ID),
			zap.Int64("dependents", dependents))
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": fmt.Sprintf("Cannot delete lab test. It is being used in %d test data entries.", dependents),
		})
	}

	defer prometheus.TrackDBOperation("delete")(time.Now())
	if result := db.Delete(&model.LabTest{}, labTest.ID); result.Error != nil {
		log.Error("Failed to delete lab test", zap.String("lab_test_id", id), zap.Error(result.Error))
		return serverError(c, "Server error while deleting lab test", result.Error)
	}

	prometheus.RecordLabTestOperation("delete")
	log.Info("Lab test deleted", zap.Uint("lab_test_id", labTest.ID), zap.String("name", labTest.Name))
	return c.JSON(http.StatusOK, echo.Map{"message": "Lab test deleted successfully"})
}
