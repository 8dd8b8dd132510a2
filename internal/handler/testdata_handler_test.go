package handler

import (
	"fmt"
	"net/http"
	"testing"

	"udsp-service/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveEntry_CreateThenUpdate(t *testing.T) {
	db := setupHandlerDB(t)
	user := createTestUser(t, db, "staff1", model.RoleStaff, "1111111111")
	labTest := createTestLabTest(t, db, "Blood")

	body := fmt.Sprintf(`{"date":"2023-01-01","labTestId":%d,"sampleTaken":10,"samplePositive":2}`, labTest.ID)
	c, rec := newTestContext(t, http.MethodPost, "/api/testdata", body)
	c.Set("user", user)

	require.NoError(t, SaveEntry(c))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "Test data created successfully", decodeBody(t, rec)["message"])

	// Writing the same (user, date, lab test) triple again must update, not
	// duplicate
	body = fmt.Sprintf(`{"date":"2023-01-01","labTestId":%d,"sampleTaken":12,"samplePositive":3}`, labTest.ID)
	c, rec = newTestContext(t, http.MethodPost, "/api/testdata", body)
	c.Set("user", user)

	require.NoError(t, SaveEntry(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Test data updated successfully", decodeBody(t, rec)["message"])

	var count int64
	db.Model(&model.TestData{}).Count(&count)
	assert.Equal(t, int64(1), count)

	var entry model.TestData
	require.NoError(t, db.First(&entry).Error)
	assert.Equal(t, 12, entry.SampleTaken)
	assert.Equal(t, 3, entry.SamplePositive)
}

func TestSaveEntry_RejectsPositiveExceedingTaken(t *testing.T) {
	db := setupHandlerDB(t)
	user := createTestUser(t, db, "staff1", model.RoleStaff, "1111111111")
	labTest := createTestLabTest(t, db, "Blood")

	body := fmt.Sprintf(`{"date":"2023-01-01","labTestId":%d,"sampleTaken":5,"samplePositive":6}`, labTest.ID)
	c, rec := newTestContext(t, http.MethodPost, "/api/testdata", body)
	c.Set("user", user)

	require.NoError(t, SaveEntry(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	resp := decodeBody(t, rec)
	assert.Contains(t, resp["errors"], "Number of positive samples cannot exceed number of samples taken")

	// Nothing was persisted
	var count int64
	db.Model(&model.TestData{}).Count(&count)
	assert.Equal(t, int64(0), count)
}

func TestSaveEntry_RejectsNegativeCounts(t *testing.T) {
	db := setupHandlerDB(t)
	user := createTestUser(t, db, "staff1", model.RoleStaff, "1111111111")
	labTest := createTestLabTest(t, db, "Blood")

	body := fmt.Sprintf(`{"date":"2023-01-01","labTestId":%d,"sampleTaken":-1,"samplePositive":0}`, labTest.ID)
	c, rec := newTestContext(t, http.MethodPost, "/api/testdata", body)
	c.Set("user", user)

	require.NoError(t, SaveEntry(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeBody(t, rec)["errors"], "Number of samples taken cannot be negative")
}

func TestSaveEntry_UnknownLabTest(t *testing.T) {
	db := setupHandlerDB(t)
	user := createTestUser(t, db, "staff1", model.RoleStaff, "1111111111")

	c, rec := newTestContext(t, http.MethodPost, "/api/testdata",
		`{"date":"2023-01-01","labTestId":999,"sampleTaken":5,"samplePositive":1}`)
	c.Set("user", user)

	require.NoError(t, SaveEntry(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Lab test not found", decodeBody(t, rec)["error"])

	var count int64
	db.Model(&model.TestData{}).Count(&count)
	assert.Equal(t, int64(0), count)
}

func TestSaveEntry_InvalidDate(t *testing.T) {
	db := setupHandlerDB(t)
	user := createTestUser(t, db, "staff1", model.RoleStaff, "1111111111")
	labTest := createTestLabTest(t, db, "Blood")

	body := fmt.Sprintf(`{"date":"not-a-date","labTestId":%d,"sampleTaken":5,"samplePositive":1}`, labTest.ID)
	c, rec := newTestContext(t, http.MethodPost, "/api/testdata", body)
	c.Set("user", user)

	require.NoError(t, SaveEntry(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateEntry_OwnershipEnforced(t *testing.T) {
	db := setupHandlerDB(t)
	owner := createTestUser(t, db, "owner", model.RoleStaff, "1111111111")
	other := createTestUser(t, db, "other", model.RoleStaff, "2222222222")
	labTest := createTestLabTest(t, db, "Blood")
	entry := createTestEntry(t, db, owner.ID, labTest.ID, "2023-01-01", 10, 2)

	body := fmt.Sprintf(`{"date":"2023-01-01","labTestId":%d,"sampleTaken":1,"samplePositive":0}`, labTest.ID)
	c, rec := newTestContext(t, http.MethodPut, "/api/testdata/1", body)
	c.Set("user", other)
	setParamID(c, entry.ID)

	// A foreign row must look exactly like an absent one
	require.NoError(t, UpdateEntry(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Test data entry not found", decodeBody(t, rec)["error"])

	var unchanged model.TestData
	require.NoError(t, db.First(&unchanged, entry.ID).Error)
	assert.Equal(t, 10, unchanged.SampleTaken)
}

func TestUpdateEntry_Owner(t *testing.T) {
	db := setupHandlerDB(t)
	owner := createTestUser(t, db, "owner", model.RoleStaff, "1111111111")
	labTest := createTestLabTest(t, db, "Blood")
	entry := createTestEntry(t, db, owner.ID, labTest.ID, "2023-01-01", 10, 2)

	body := fmt.Sprintf(`{"date":"2023-01-03","labTestId":%d,"sampleTaken":7,"samplePositive":7}`, labTest.ID)
	c, rec := newTestContext(t, http.MethodPut, "/api/testdata/1", body)
	c.Set("user", owner)
	setParamID(c, entry.ID)

	require.NoError(t, UpdateEntry(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var updated model.TestData
	require.NoError(t, db.First(&updated, entry.ID).Error)
	assert.Equal(t, 7, updated.SampleTaken)
	assert.Equal(t, 7, updated.SamplePositive)
}

func TestUpdateEntry_ConflictOnOccupiedNaturalKey(t *testing.T) {
	db := setupHandlerDB(t)
	owner := createTestUser(t, db, "owner", model.RoleStaff, "1111111111")
	labTest := createTestLabTest(t, db, "Blood")
	createTestEntry(t, db, owner.ID, labTest.ID, "2023-01-01", 10, 2)
	second := createTestEntry(t, db, owner.ID, labTest.ID, "2023-01-02", 5, 1)

	// Moving the second entry onto the first entry's date would violate the
	// natural key
	body := fmt.Sprintf(`{"date":"2023-01-01","labTestId":%d,"sampleTaken":5,"samplePositive":1}`, labTest.ID)
	c, rec := newTestContext(t, http.MethodPut, "/api/testdata/2", body)
	c.Set("user", owner)
	setParamID(c, second.ID)

	require.NoError(t, UpdateEntry(c))
	assert.Equal(t, http.StatusConflict, rec.Code)

	var count int64
	db.Model(&model.TestData{}).Count(&count)
	assert.Equal(t, int64(2), count)
}

func TestDeleteEntry(t *testing.T) {
	db := setupHandlerDB(t)
	owner := createTestUser(t, db, "owner", model.RoleStaff, "1111111111")
	other := createTestUser(t, db, "other", model.RoleStaff, "2222222222")
	labTest := createTestLabTest(t, db, "Blood")
	entry := createTestEntry(t, db, owner.ID, labTest.ID, "2023-01-01", 10, 2)

	// Another user cannot delete the row
	c, rec := newTestContext(t, http.MethodDelete, "/api/testdata/1", "")
	c.Set("user", other)
	setParamID(c, entry.ID)
	require.NoError(t, DeleteEntry(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// The owner can
	c, rec = newTestContext(t, http.MethodDelete, "/api/testdata/1", "")
	c.Set("user", owner)
	setParamID(c, entry.ID)
	require.NoError(t, DeleteEntry(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var count int64
	db.Model(&model.TestData{}).Count(&count)
	assert.Equal(t, int64(0), count)
}

func TestGetMyEntries(t *testing.T) {
	db := setupHandlerDB(t)
	owner := createTestUser(t, db, "owner", model.RoleStaff, "1111111111")
	other := createTestUser(t, db, "other", model.RoleStaff, "2222222222")
	labTest := createTestLabTest(t, db, "Blood")
	createTestEntry(t, db, owner.ID, labTest.ID, "2023-01-01", 10, 2)
	createTestEntry(t, db, owner.ID, labTest.ID, "2023-01-02", 5, 1)
	createTestEntry(t, db, other.ID, labTest.ID, "2023-01-01", 3, 0)

	c, rec := newTestContext(t, http.MethodGet, "/api/testdata/my/2023-01-01", "")
	c.Set("user", owner)
	c.SetParamNames("date")
	c.SetParamValues("2023-01-01")

	require.NoError(t, GetMyEntries(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	data := decodeBody(t, rec)["data"].([]any)
	require.Len(t, data, 1)
	first := data[0].(map[string]any)
	assert.Equal(t, "Blood", first["labTestName"])
	assert.Equal(t, float64(10), first["sampleTaken"])
}
