package service

import (
	"context"
	"fmt"

	"github.com/gigfactory/designhub/internal/design/entity"
	"github.com/gigfactory/designhub/internal/design/repository"
	"github.com/xuri/excelize/v2"
)

const drawingRegisterSheet = "Drawing Register"

var drawingRegisterHeaders = []string{
	"No.", "Drawing", "Discipline", "Status", "Version", "Expert Decision", "Client Decision",
	"Created By", "Expert", "Client", "Sent To", "Updated At", "Task",
}

// ExportService renders drawing registers as xlsx.
type ExportService struct {
	repos *repository.Repositories
}

func NewExportService(repos *repository.Repositories) *ExportService {
	return &ExportService{repos: repos}
}

// ExportProjectDrawings builds the drawing register of a project.
// The caller closes the returned file.
func (s *ExportService) ExportProjectDrawings(ctx context.Context, projectID string) (*excelize.File, string, error) {
	project, err := s.repos.Project.FindByID(ctx, projectID)
	if err != nil {
		return nil, "", txErr("export drawings", lookupErr("project", projectID, err))
	}
	drawings, err := s.repos.Drawing.List(ctx, repository.DrawingFilter{ProjectID: projectID})
	if err != nil {
		return nil, "", &PersistenceError{Op: "export drawings", Err: err}
	}
	f, err := BuildDrawingRegister(drawings)
	if err != nil {
		return nil, "", &PersistenceError{Op: "export drawings", Err: err}
	}
	return f, fmt.Sprintf("drawings_%s.xlsx", project.Name), nil
}

// BuildDrawingRegister writes one row per drawing under a styled header row.
func BuildDrawingRegister(drawings []entity.Drawing) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", drawingRegisterSheet); err != nil {
		f.Close()
		return nil, err
	}
	sheet := drawingRegisterSheet

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		f.Close()
		return nil, err
	}
	for i, h := range drawingRegisterHeaders {
		col, _ := excelize.ColumnNumberToName(i + 1)
		cell := col + "1"
		f.SetCellValue(sheet, cell, h)
		f.SetCellStyle(sheet, cell, cell, headerStyle)
	}

	for i, d := range drawings {
		version := 0
		if d.LatestVersion != nil {
			version = d.LatestVersion.VersionNumber
		}
		row := []interface{}{
			i + 1,
			d.Name,
			d.Discipline,
			d.Status.Label(),
			version,
			deref(d.ExpertDecision),
			deref(d.ClientDecision),
			d.CreatedBy,
			d.ExpertID,
			deref(d.ClientID),
			d.SentTo,
			d.UpdatedAt.Format("2006-01-02 15:04"),
			deref(d.TaskID),
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			f.Close()
			return nil, err
		}
	}

	widths := []float64{6, 28, 14, 26, 8, 16, 16, 16, 16, 16, 16, 18, 34}
	for i, w := range widths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheet, col, col, w)
	}
	return f, nil
}
