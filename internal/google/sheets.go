package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"citaplan/internal/models"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const (
	appointmentsSheet = "Appointments"
	scheduleSheet     = "Schedule"
	timestampLayout   = "2006-01-02 15:04:05"
)

// ErrRowNotFound reports that no sheet row carries the appointment id.
var ErrRowNotFound = errors.New("appointment row not found")

// SheetsService mirrors appointments into a staff-facing spreadsheet.
// Column A of the Appointments sheet holds the appointment id; a row
// index cache avoids re-reading the whole column on every update.
type SheetsService struct {
	service       *sheets.Service
	spreadsheetID string
	rowCache      map[int64]int
	cacheMu       sync.RWMutex
}

func NewSheetsService(credentialsFile, spreadsheetID string) (*SheetsService, error) {
	ctx := context.Background()

	credentialsJSON, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %v", err)
	}

	config, err := google.JWTConfigFromJSON(credentialsJSON, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %v", err)
	}

	srv, err := sheets.NewService(ctx, option.WithHTTPClient(config.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("unable to create Sheets service: %v", err)
	}

	service := &SheetsService{
		service:       srv,
		spreadsheetID: spreadsheetID,
		rowCache:      make(map[int64]int),
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		service.WarmUpCache(ctx)
	}()

	return service, nil
}

// TestConnection reads a single cell to verify access to the sheet.
func (s *SheetsService) TestConnection(ctx context.Context) error {
	_, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, appointmentsSheet+"!A1").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("connection test failed: %v", err)
	}
	return nil
}

// GetServiceAccountEmail extracts the service account email so it can
// be shown in setup instructions.
func (s *SheetsService) GetServiceAccountEmail(credentialsFile string) (string, error) {
	file, err := os.ReadFile(credentialsFile)
	if err != nil {
		return "", err
	}

	var creds struct {
		ClientEmail string `json:"client_email"`
	}
	if err := json.Unmarshal(file, &creds); err != nil {
		return "", err
	}
	return creds.ClientEmail, nil
}

// WarmUpCache populates the row index cache by reading the id column.
func (s *SheetsService) WarmUpCache(ctx context.Context) error {
	resp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, appointmentsSheet+"!A:A").Context(ctx).Do()
	if err != nil {
		return err
	}

	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.rowCache = make(map[int64]int)

	for i, row := range resp.Values {
		if len(row) == 0 {
			continue
		}
		var id int64
		switch v := row[0].(type) {
		case float64:
			id = int64(v)
		case string:
			fmt.Sscanf(v, "%d", &id)
		}
		if id > 0 {
			s.rowCache[id] = i + 1
		}
	}
	return nil
}

func appointmentRowValues(appt *models.Appointment) []interface{} {
	return []interface{}{
		appt.ID,
		appt.UserID,
		appt.StaffID,
		appt.AppointmentTypeID,
		appt.StartAt.Format(timestampLayout),
		appt.EndAt.Format(timestampLayout),
		appt.Status,
		appt.CreatedAt.Format(timestampLayout),
		appt.UpdatedAt.Format(timestampLayout),
	}
}

// AppendAppointment adds a new appointment row.
func (s *SheetsService) AppendAppointment(ctx context.Context, appt *models.Appointment) error {
	valueRange := &sheets.ValueRange{
		Values: [][]interface{}{appointmentRowValues(appt)},
	}

	_, err := s.service.Spreadsheets.Values.Append(s.spreadsheetID, appointmentsSheet+"!A:A", valueRange).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	return err
}

// UpsertAppointment updates the row for the appointment or appends a
// new one if it is not in the sheet yet.
func (s *SheetsService) UpsertAppointment(ctx context.Context, appt *models.Appointment) error {
	if appt == nil {
		return fmt.Errorf("appointment is nil")
	}

	rowIdx, err := s.FindAppointmentRow(ctx, appt.ID)
	if err != nil {
		if errors.Is(err, ErrRowNotFound) {
			return s.AppendAppointment(ctx, appt)
		}
		return err
	}

	rangeData := fmt.Sprintf("%s!A%d:I%d", appointmentsSheet, rowIdx, rowIdx)
	valueRange := &sheets.ValueRange{
		Values: [][]interface{}{appointmentRowValues(appt)},
	}

	_, err = s.service.Spreadsheets.Values.Update(s.spreadsheetID, rangeData, valueRange).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	return err
}

// UpdateAppointmentStatus rewrites the status and updated-at cells of
// an appointment row.
func (s *SheetsService) UpdateAppointmentStatus(ctx context.Context, appointmentID int64, status string) error {
	rowIdx, err := s.FindAppointmentRow(ctx, appointmentID)
	if err != nil {
		return err
	}

	statusRange := fmt.Sprintf("%s!G%d:G%d", appointmentsSheet, rowIdx, rowIdx)
	_, err = s.service.Spreadsheets.Values.Update(s.spreadsheetID, statusRange, &sheets.ValueRange{
		Values: [][]interface{}{{status}},
	}).ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return err
	}

	updatedRange := fmt.Sprintf("%s!I%d:I%d", appointmentsSheet, rowIdx, rowIdx)
	_, err = s.service.Spreadsheets.Values.Update(s.spreadsheetID, updatedRange, &sheets.ValueRange{
		Values: [][]interface{}{{time.Now().UTC().Format(timestampLayout)}},
	}).ValueInputOption("RAW").Context(ctx).Do()
	return err
}

// FindAppointmentRow locates the 1-based row index for an appointment
// id in column A, consulting the cache first.
func (s *SheetsService) FindAppointmentRow(ctx context.Context, appointmentID int64) (int, error) {
	if appointmentID == 0 {
		return 0, fmt.Errorf("appointment id is required")
	}

	if row, ok := s.getCachedRow(appointmentID); ok {
		return row, nil
	}

	resp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, appointmentsSheet+"!A:A").Context(ctx).Do()
	if err != nil {
		return 0, err
	}

	for i, row := range resp.Values {
		if len(row) == 0 {
			continue
		}
		switch v := row[0].(type) {
		case float64:
			if int64(v) == appointmentID {
				rowIdx := i + 1
				s.setCachedRow(appointmentID, rowIdx)
				return rowIdx, nil
			}
		case string:
			if v == fmt.Sprintf("%d", appointmentID) {
				rowIdx := i + 1
				s.setCachedRow(appointmentID, rowIdx)
				return rowIdx, nil
			}
		}
	}

	return 0, ErrRowNotFound
}

func (s *SheetsService) getCachedRow(id int64) (int, bool) {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	row, ok := s.rowCache[id]
	return row, ok
}

func (s *SheetsService) setCachedRow(id int64, row int) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.rowCache[id] = row
}

// ClearCache drops the row index cache.
func (s *SheetsService) ClearCache() {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.rowCache = make(map[int64]int)
}

// UpdateScheduleSheet rewrites the Schedule sheet as a grid: one row
// per staff member, one column per day, each cell listing that day's
// booked time ranges.
func (s *SheetsService) UpdateScheduleSheet(ctx context.Context, startDate, endDate time.Time, daily map[string][]models.Appointment, staff []models.Staff) error {
	sheetID, err := s.GetSheetIDByName(ctx, scheduleSheet)
	if err != nil {
		return fmt.Errorf("unable to get sheet ID: %v", err)
	}

	_, err = s.service.Spreadsheets.Values.Clear(s.spreadsheetID, scheduleSheet+"!A:Z", &sheets.ClearValuesRequest{}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("unable to clear sheet: %v", err)
	}

	days := int(endDate.Sub(startDate).Hours()/24) + 1
	if days <= 0 {
		return fmt.Errorf("invalid date range: startDate %s, endDate %s", startDate, endDate)
	}

	var data [][]interface{}

	data = append(data, []interface{}{
		fmt.Sprintf("Schedule: %s - %s",
			startDate.Format(models.DateLayout),
			endDate.Format(models.DateLayout)),
	})
	data = append(data, []interface{}{})

	headerRow := []interface{}{""}
	dateCols := 0
	for currentDate := startDate; !currentDate.After(endDate) && dateCols < 100; currentDate = currentDate.AddDate(0, 0, 1) {
		headerRow = append(headerRow, currentDate.Format("02.01"))
		dateCols++
	}
	data = append(data, headerRow)

	for _, member := range staff {
		rowData := []interface{}{member.FullName}

		currentDate := startDate
		for colIndex := 0; colIndex < dateCols; colIndex++ {
			dateKey := currentDate.Format(models.DateLayout)

			var entries []string
			for _, appt := range daily[dateKey] {
				if appt.StaffID != member.ID || appt.Status == models.StatusCancelled {
					continue
				}
				entries = append(entries, fmt.Sprintf("[#%d] %s-%s",
					appt.ID, appt.StartAt.Format("15:04"), appt.EndAt.Format("15:04")))
			}
			sort.Strings(entries)

			cellValue := "free"
			if len(entries) > 0 {
				cellValue = ""
				for _, e := range entries {
					cellValue += e + "\n"
				}
				cellValue += fmt.Sprintf("\nbooked: %d", len(entries))
			}
			rowData = append(rowData, cellValue)
			currentDate = currentDate.AddDate(0, 0, 1)
		}
		data = append(data, rowData)
	}

	if len(staff) == 0 {
		rowData := []interface{}{"no active staff"}
		for i := 0; i < dateCols; i++ {
			rowData = append(rowData, "")
		}
		data = append(data, rowData)
	}

	_, err = s.service.Spreadsheets.Values.Update(s.spreadsheetID, scheduleSheet+"!A1", &sheets.ValueRange{
		Values: data,
	}).ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("unable to update schedule sheet: %v", err)
	}

	return s.adjustColumnWidths(sheetID, dateCols)
}

func (s *SheetsService) adjustColumnWidths(sheetID int64, dateCols int) error {
	if dateCols <= 0 {
		dateCols = 1
	}

	var requests []*sheets.Request

	// Staff name column is wider than the date columns.
	requests = append(requests, &sheets.Request{
		UpdateDimensionProperties: &sheets.UpdateDimensionPropertiesRequest{
			Range: &sheets.DimensionRange{
				SheetId:    sheetID,
				Dimension:  "COLUMNS",
				StartIndex: 0,
				EndIndex:   1,
			},
			Properties: &sheets.DimensionProperties{
				PixelSize: 200,
			},
			Fields: "pixelSize",
		},
	})

	for i := 1; i <= dateCols && i < 100; i++ {
		requests = append(requests, &sheets.Request{
			UpdateDimensionProperties: &sheets.UpdateDimensionPropertiesRequest{
				Range: &sheets.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "COLUMNS",
					StartIndex: int64(i),
					EndIndex:   int64(i + 1),
				},
				Properties: &sheets.DimensionProperties{
					PixelSize: 150,
				},
				Fields: "pixelSize",
			},
		})
	}

	_, err := s.service.Spreadsheets.BatchUpdate(s.spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: requests,
	}).Do()
	if err != nil {
		return fmt.Errorf("unable to adjust column widths: %v", err)
	}
	return nil
}

// GetSheetIDByName resolves a sheet tab name to its numeric id.
func (s *SheetsService) GetSheetIDByName(ctx context.Context, sheetName string) (int64, error) {
	spreadsheet, err := s.service.Spreadsheets.Get(s.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("unable to get spreadsheet: %v", err)
	}

	for _, sheet := range spreadsheet.Sheets {
		if sheet.Properties.Title == sheetName {
			return sheet.Properties.SheetId, nil
		}
	}
	return 0, fmt.Errorf("sheet %q not found", sheetName)
}
