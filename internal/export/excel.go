package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"citaplan/internal/database"
	"citaplan/internal/models"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

const scheduleSheetName = "Schedule"

// Exporter renders the booked schedule as an Excel grid: one row per
// staff member, one column per day.
type Exporter struct {
	db       *database.DB
	path     string
	location *time.Location
	logger   *zerolog.Logger
}

func NewExporter(db *database.DB, path string, location *time.Location, logger *zerolog.Logger) *Exporter {
	if location == nil {
		location = time.UTC
	}
	return &Exporter{
		db:       db,
		path:     path,
		location: location,
		logger:   logger,
	}
}

// ExportSchedule writes the grid for [startDate, endDate] and returns
// the path of the created file.
func (e *Exporter) ExportSchedule(ctx context.Context, startDate, endDate time.Time) (string, error) {
	if endDate.Before(startDate) {
		return "", fmt.Errorf("invalid date range: %s after %s",
			startDate.Format(models.DateLayout), endDate.Format(models.DateLayout))
	}
	if err := os.MkdirAll(e.path, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %v", err)
	}

	appts, err := e.db.ListAppointmentsByRange(ctx, startDate, endDate.AddDate(0, 0, 1))
	if err != nil {
		return "", fmt.Errorf("error getting appointments: %v", err)
	}
	staff, err := e.db.ListStaff(ctx)
	if err != nil {
		return "", fmt.Errorf("error getting staff: %v", err)
	}

	daily := make(map[string][]models.Appointment)
	for _, a := range appts {
		key := a.StartAt.In(e.location).Format(models.DateLayout)
		daily[key] = append(daily[key], a)
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(scheduleSheetName)
	if err != nil {
		return "", fmt.Errorf("error creating sheet: %v", err)
	}
	f.SetActiveSheet(index)

	_ = f.SetCellValue(scheduleSheetName, "A1", fmt.Sprintf("Schedule: %s - %s",
		startDate.Format(models.DateLayout), endDate.Format(models.DateLayout)))

	dateCols := e.writeDateHeaders(f, startDate, endDate)
	e.writeStaffHeaders(f, staff)
	e.writeScheduleCells(f, daily, staff, startDate, len(dateCols))

	_ = f.SetColWidth(scheduleSheetName, "A", "A", 25)
	for i := 'B'; i <= 'Z'; i++ {
		_ = f.SetColWidth(scheduleSheetName, string(i), string(i), 20)
	}

	lastCol, _ := excelize.ColumnNumberToName(len(dateCols) + 1)
	_ = f.MergeCell(scheduleSheetName, "A1", lastCol+"1")

	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	_ = f.SetCellStyle(scheduleSheetName, "A1", "A1", titleStyle)

	_ = f.DeleteSheet("Sheet1")

	fileName := fmt.Sprintf("schedule_%s_to_%s.xlsx",
		startDate.Format(models.DateLayout), endDate.Format(models.DateLayout))
	filePath := filepath.Join(e.path, fileName)

	if err := f.SaveAs(filePath); err != nil {
		return "", fmt.Errorf("error saving file: %v", err)
	}

	e.logger.Info().Str("file_path", filePath).Msg("schedule export created")
	return filePath, nil
}

func (e *Exporter) writeDateHeaders(f *excelize.File, startDate, endDate time.Time) map[string]int {
	col := 2
	dateCols := make(map[string]int)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})

	for currentDate := startDate; !currentDate.After(endDate); currentDate = currentDate.AddDate(0, 0, 1) {
		cell, _ := excelize.CoordinatesToCellName(col, 2)
		_ = f.SetCellValue(scheduleSheetName, cell, currentDate.Format("02.01"))
		_ = f.SetCellStyle(scheduleSheetName, cell, cell, headerStyle)
		dateCols[currentDate.Format(models.DateLayout)] = col
		col++
	}
	return dateCols
}

func (e *Exporter) writeStaffHeaders(f *excelize.File, staff []models.Staff) {
	style, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E2EFDA"}, Pattern: 1},
		Font: &excelize.Font{Bold: true},
	})

	row := 3
	for _, member := range staff {
		cell, _ := excelize.CoordinatesToCellName(1, row)
		_ = f.SetCellValue(scheduleSheetName, cell, member.FullName)
		_ = f.SetCellStyle(scheduleSheetName, cell, cell, style)
		row++
	}
}

func (e *Exporter) writeScheduleCells(f *excelize.File, daily map[string][]models.Appointment, staff []models.Staff, startDate time.Time, days int) {
	freeStyle, _ := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{Horizontal: "left", Vertical: "top", WrapText: true},
	})
	bookedStyle, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#FFC7CE"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "left", Vertical: "top", WrapText: true},
	})

	for rowIdx, member := range staff {
		currentDate := startDate
		for colIdx := 0; colIdx < days; colIdx++ {
			dateKey := currentDate.Format(models.DateLayout)
			cell, _ := excelize.CoordinatesToCellName(colIdx+2, rowIdx+3)

			var cellValue string
			count := 0
			for _, appt := range daily[dateKey] {
				if appt.StaffID != member.ID {
					continue
				}
				local := appt.StartAt.In(e.location)
				cellValue += fmt.Sprintf("[#%d] %s-%s\n", appt.ID,
					local.Format("15:04"), appt.EndAt.In(e.location).Format("15:04"))
				count++
			}

			if count > 0 {
				cellValue += fmt.Sprintf("\nbooked: %d", count)
				_ = f.SetCellStyle(scheduleSheetName, cell, cell, bookedStyle)
			} else {
				cellValue = "free"
				_ = f.SetCellStyle(scheduleSheetName, cell, cell, freeStyle)
			}
			_ = f.SetCellValue(scheduleSheetName, cell, cellValue)

			currentDate = currentDate.AddDate(0, 0, 1)
		}
	}
}
