package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"udsp-service/internal/model"
	"udsp-service/pkg/database"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// setupHandlerDB points the package-global database handle at a fresh
// in-memory store
func setupHandlerDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(&model.User{}, &model.LabTest{}, &model.TestData{})
	require.NoError(t, err)

	database.DB = db
	return db
}

func newTestContext(t *testing.T, method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	return echo.New().NewContext(req, rec), rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func createTestUser(t *testing.T, db *gorm.DB, username, role, mobile string) *model.User {
	t.Helper()
	user := model.User{
		Username:  username,
		Password:  "$2a$12$notachecked.hash.placeholder.value.padding",
		FirstName: username,
		Mobile:    mobile,
		Role:      role,
		IsActive:  true,
	}
	require.NoError(t, db.Create(&user).Error)
	return &user
}

func createTestLabTest(t *testing.T, db *gorm.DB, name string) *model.LabTest {
	t.Helper()
	labTest := model.LabTest{Name: name}
	require.NoError(t, db.Create(&labTest).Error)
	return &labTest
}

func createTestEntry(t *testing.T, db *gorm.DB, userID, labTestID uint, date string, taken, positive int) *model.TestData {
	t.Helper()
	parsed, err := time.Parse("2006-01-02", date)
	require.NoError(t, err)
	entry := model.TestData{
		UserID:         userID,
		Date:           model.NormalizeDate(parsed),
		LabTestID:      labTestID,
		SampleTaken:    taken,
		SamplePositive: positive,
	}
	require.NoError(t, db.Create(&entry).Error)
	return &entry
}

func setParamID(c echo.Context, id uint) {
	c.SetParamNames("id")
	c.SetParamValues(strconv.FormatUint(uint64(id), 10))
}
