// Package report builds the date-range reports served to administrators:
// the per-user/per-lab-test sample matrix, the summary statistics, and the
// CSV rendering of the matrix.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"time"

	"udsp-service/internal/model"

	"gorm.io/gorm"
)

// DateLayout is the wire format for report range boundaries
const DateLayout = "2006-01-02"

// Service runs reporting queries against an injected database handle
type Service struct {
	db *gorm.DB
}

// NewService returns a reporting service bound to db
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// CellStat is one (user, lab test) cell of the report matrix
type CellStat struct {
	LabTestName    string `json:"labTestName"`
	SampleTaken    int    `json:"sampleTaken"`
	SamplePositive int    `json:"samplePositive"`
}

// UserRow is one user's summed counts, dense over the whole lab-test catalog
type UserRow struct {
	UserID   uint                `json:"userId"`
	UserName string              `json:"userName"`
	LabTests map[string]CellStat `json:"labTests"`
}

// LabTestRef identifies a catalog entry in report payloads
type LabTestRef struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

// DateRange echoes the requested range back to the client
type DateRange struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

// Data is the payload of the report data endpoint
type Data struct {
	ReportData   []UserRow    `json:"reportData"`
	LabTests     []LabTestRef `json:"labTests"`
	DateRange    DateRange    `json:"dateRange"`
	TotalUsers   int          `json:"totalUsers"`
	TotalEntries int          `json:"totalEntries"`
}

// LabTestStat is the per-lab-test aggregate in the summary
type LabTestStat struct {
	LabTestID           uint    `json:"labTestId"`
	LabTestName         string  `json:"labTestName"`
	TotalSampleTaken    int     `json:"totalSampleTaken"`
	TotalSamplePositive int     `json:"totalSamplePositive"`
	EntryCount          int     `json:"entryCount"`
	PositivityRate      float64 `json:"positivityRate"`
}

// Summary is the payload of the summary endpoint
type Summary struct {
	TotalEntries        int           `json:"totalEntries"`
	UniqueUsers         int           `json:"uniqueUsers"`
	TotalSampleTaken    int           `json:"totalSampleTaken"`
	TotalSamplePositive int           `json:"totalSamplePositive"`
	PositivityRate      float64       `json:"positivityRate"`
	LabTestStats        []LabTestStat `json:"labTestStats"`
	DateRange           DateRange     `json:"dateRange"`
}

// Rate returns 100 * positive / taken rounded to two decimal places. A zero
// denominator yields 0 rather than NaN.
func Rate(positive, taken int) float64 {
	if taken == 0 {
		return 0
	}
	return math.Round(float64(positive)/float64(taken)*10000) / 100
}

// Data builds the dense per-user matrix for the closed interval
// [start, end], end inclusive through end-of-day
func (s *Service) Data(start, end time.Time) (*Data, error) {
	entries, labTests, users, err := s.load(start, end)
	if err != nil {
		return nil, err
	}

	return &Data{
		ReportData:   aggregate(entries, users, labTests),
		LabTests:     catalogRefs(labTests),
		DateRange:    rangeOf(start, end),
		TotalUsers:   countUsers(entries),
		TotalEntries: len(entries),
	}, nil
}

// Summary computes the overall and per-lab-test statistics for the range
func (s *Service) Summary(start, end time.Time) (*Summary, error) {
	entries, labTests, _, err := s.load(start, end)
	if err != nil {
		return nil, err
	}

	names := make(map[uint]string, len(labTests))
	for _, t := range labTests {
		names[t.ID] = t.Name
	}

	var totalTaken, totalPositive int
	perTest := make(map[uint]*LabTestStat)
	for _, e := range entries {
		totalTaken += e.SampleTaken
		totalPositive += e.SamplePositive

		stat, ok := perTest[e.LabTestID]
		if !ok {
			stat = &LabTestStat{LabTestID: e.LabTestID, LabTestName: names[e.LabTestID]}
			perTest[e.LabTestID] = stat
		}
		stat.TotalSampleTaken += e.SampleTaken
		stat.TotalSamplePositive += e.SamplePositive
		stat.EntryCount++
	}

	stats := make([]LabTestStat, 0, len(perTest))
	for _, stat := range perTest {
		stat.PositivityRate = Rate(stat.TotalSamplePositive, stat.TotalSampleTaken)
		stats = append(stats, *stat)
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].LabTestName < stats[j].LabTestName })

	return &Summary{
		TotalEntries:        len(entries),
		UniqueUsers:         countUsers(entries),
		TotalSampleTaken:    totalTaken,
		TotalSamplePositive: totalPositive,
		PositivityRate:      Rate(totalPositive, totalTaken),
		LabTestStats:        stats,
		DateRange:           rangeOf(start, end),
	}, nil
}

// WriteCSV renders the matrix as CSV: a "User Name" column followed by a
// taken/positive column pair per lab test, ordered by lab-test name. Fields
// are quoted per RFC 4180.
func (s *Service) WriteCSV(w io.Writer, start, end time.Time) error {
	entries, labTests, users, err := s.load(start, end)
	if err != nil {
		return err
	}

	rows := aggregate(entries, users, labTests)

	cw := csv.NewWriter(w)

	header := []string{"User Name"}
	for _, t := range labTests {
		header = append(header, t.Name+" - Samples Taken", t.Name+" - Samples Positive")
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, row := range rows {
		record := []string{row.UserName}
		for _, t := range labTests {
			cell := row.LabTests[keyOf(t.ID)]
			record = append(record,
				strconv.Itoa(cell.SampleTaken),
				strconv.Itoa(cell.SamplePositive))
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// Filename is the attachment name for a CSV export
func Filename(start, end time.Time) string {
	return fmt.Sprintf("UDSP_Report_%s_to_%s.csv",
		start.Format(DateLayout), end.Format(DateLayout))
}

// load fetches the raw rows for the range plus the full lab-test catalog
// (sorted by name) and the users the rows reference
func (s *Service) load(start, end time.Time) ([]model.TestData, []model.LabTest, map[uint]model.User, error) {
	from := model.NormalizeDate(start)
	until := model.NormalizeDate(end).Add(24 * time.Hour)

	var entries []model.TestData
	if result := s.db.Where("date >= ? AND date < ?", from, until).Find(&entries); result.Error != nil {
		return nil, nil, nil, result.Error
	}

	var labTests []model.LabTest
	if result := s.db.Order("name asc").Find(&labTests); result.Error != nil {
		return nil, nil, nil, result.Error
	}

	userIDs := make([]uint, 0, len(entries))
	seen := make(map[uint]bool)
	for _, e := range entries {
		if !seen[e.UserID] {
			seen[e.UserID] = true
			userIDs = append(userIDs, e.UserID)
		}
	}

	users := make(map[uint]model.User, len(userIDs))
	if len(userIDs) > 0 {
		var list []model.User
		if result := s.db.Where("id IN ?", userIDs).Find(&list); result.Error != nil {
			return nil, nil, nil, result.Error
		}
		for _, u := range list {
			users[u.ID] = u
		}
	}

	return entries, labTests, users, nil
}

// aggregate folds the raw rows into one dense row per user: every catalog
// entry appears in each row, with zero counts where the user recorded
// nothing. Summation is order-independent.
func aggregate(entries []model.TestData, users map[uint]model.User, labTests []model.LabTest) []UserRow {
	type totals struct{ taken, positive int }
	perUser := make(map[uint]map[uint]*totals)

	for _, e := range entries {
		cells, ok := perUser[e.UserID]
		if !ok {
			cells = make(map[uint]*totals)
			perUser[e.UserID] = cells
		}
		cell, ok := cells[e.LabTestID]
		if !ok {
			cell = &totals{}
			cells[e.LabTestID] = cell
		}
		cell.taken += e.SampleTaken
		cell.positive += e.SamplePositive
	}

	rows := make([]UserRow, 0, len(perUser))
	for userID, cells := range perUser {
		user := users[userID]
		row := UserRow{
			UserID:   userID,
			UserName: user.DisplayName(),
			LabTests: make(map[string]CellStat, len(labTests)),
		}
		for _, t := range labTests {
			cell := CellStat{LabTestName: t.Name}
			if c, ok := cells[t.ID]; ok {
				cell.SampleTaken = c.taken
				cell.SamplePositive = c.positive
			}
			row.LabTests[keyOf(t.ID)] = cell
		}
		rows = append(rows, row)
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].UserName != rows[j].UserName {
			return rows[i].UserName < rows[j].UserName
		}
		return rows[i].UserID < rows[j].UserID
	})

	return rows
}

func countUsers(entries []model.TestData) int {
	seen := make(map[uint]bool)
	for _, e := range entries {
		seen[e.UserID] = true
	}
	return len(seen)
}

func catalogRefs(labTests []model.LabTest) []LabTestRef {
	refs := make([]LabTestRef, 0, len(labTests))
	for _, t := range labTests {
		refs = append(refs, LabTestRef{ID: t.ID, Name: t.Name})
	}
	return refs
}

func rangeOf(start, end time.Time) DateRange {
	return DateRange{
		StartDate: start.Format(DateLayout),
		EndDate:   end.Format(DateLayout),
	}
}

func keyOf(labTestID uint) string {
	return strconv.FormatUint(uint64(labTestID), 10)
}
