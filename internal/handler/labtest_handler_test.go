package handler

import (
	"net/http"
	"testing"

	"udsp-service/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateLabTest(t *testing.T) {
	db := setupHandlerDB(t)

	c, rec := newTestContext(t, http.MethodPost, "/api/labtests", `{"name":"Blood Test"}`)
	require.NoError(t, CreateLabTest(c))
	assert.Equal(t, http.StatusCreated, rec.Code)

	var count int64
	db.Model(&model.LabTest{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestCreateLabTest_NameLength(t *testing.T) {
	setupHandlerDB(t)

	c, rec := newTestContext(t, http.MethodPost, "/api/labtests", `{"name":"X"}`)
	require.NoError(t, CreateLabTest(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeBody(t, rec)["errors"], "Lab test name must be between 2 and 100 characters")

	c, rec = newTestContext(t, http.MethodPost, "/api/labtests", `{"name":""}`)
	require.NoError(t, CreateLabTest(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeBody(t, rec)["errors"], "Lab test name is required")
}

func TestCreateLabTest_DuplicateNameCaseInsensitive(t *testing.T) {
	db := setupHandlerDB(t)
	createTestLabTest(t, db, "Blood Test")

	c, rec := newTestContext(t, http.MethodPost, "/api/labtests", `{"name":"blood test"}`)
	require.NoError(t, CreateLabTest(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Lab test with this name already exists", decodeBody(t, rec)["error"])

	var count int64
	db.Model(&model.LabTest{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestUpdateLabTest_DuplicateName(t *testing.T) {
	db := setupHandlerDB(t)
	createTestLabTest(t, db, "Blood")
	urine := createTestLabTest(t, db, "Urine")

	c, rec := newTestContext(t, http.MethodPut, "/api/labtests/2", `{"name":"BLOOD"}`)
	setParamID(c, urine.ID)
	require.NoError(t, UpdateLabTest(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Renaming to itself with different casing is allowed
	c, rec = newTestContext(t, http.MethodPut, "/api/labtests/2", `{"name":"URINE"}`)
	setParamID(c, urine.ID)
	require.NoError(t, UpdateLabTest(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var updated model.LabTest
	require.NoError(t, db.First(&updated, urine.ID).Error)
	assert.Equal(t, "URINE", updated.Name)
}

func TestDeleteLabTest_BlockedByDependents(t *testing.T) {
	db := setupHandlerDB(t)
	user := createTestUser(t, db, "staff1", model.RoleStaff, "1111111111")
	labTest := createTestLabTest(t, db, "Blood")
	entry := createTestEntry(t, db, user.ID, labTest.ID, "2023-01-01", 10, 2)

	c, rec := newTestContext(t, http.MethodDelete, "/api/labtests/1", "")
	setParamID(c, labTest.ID)
	require.NoError(t, DeleteLabTest(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Cannot delete lab test. It is being used in 1 test data entries.",
		decodeBody(t, rec)["error"])

	// Removing the dependent row unblocks the deletion
	require.NoError(t, db.Delete(&model.TestData{}, entry.ID).Error)

	c, rec = newTestContext(t, http.MethodDelete, "/api/labtests/1", "")
	setParamID(c, labTest.ID)
	require.NoError(t, DeleteLabTest(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var count int64
	db.Model(&model.LabTest{}).Count(&count)
	assert.Equal(t, int64(0), count)
}

func TestGetLabTest_NotFound(t *testing.T) {
	setupHandlerDB(t)

	c, rec := newTestContext(t, http.MethodGet, "/api/labtests/42", "")
	setParamID(c, 42)
	require.NoError(t, GetLabTest(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListLabTests_OrderedByName(t *testing.T) {
	db := setupHandlerDB(t)
	createTestLabTest(t, db, "Urine")
	createTestLabTest(t, db, "Blood")

	c, rec := newTestContext(t, http.MethodGet, "/api/labtests", "")
	require.NoError(t, ListLabTests(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, float64(2), body["count"])
	data := body["data"].([]any)
	assert.Equal(t, "Blood", data[0].(map[string]any)["name"])
	assert.Equal(t, "Urine", data[1].(map[string]any)["name"])
}
