package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/certhours/cert-hours-api/internal/models"
	"github.com/certhours/cert-hours-api/internal/rules"
	appErrors "github.com/certhours/cert-hours-api/pkg/errors"
	"github.com/certhours/cert-hours-api/pkg/export"
)

type approvedActivityLister interface {
	ListApprovedByStudent(ctx context.Context, studentID string) ([]models.ExtractedActivity, error)
}

// StatementService renders a student's approved-hours statement as CSV or
// PDF for the registrar.
type StatementService struct {
	students   studentReader
	activities approvedActivityLister
	table      *rules.Table
	csv        *export.CSVExporter
	pdf        *export.PDFExporter
	logger     *zap.Logger
}

// NewStatementService constructs StatementService.
func NewStatementService(
	students studentReader,
	activities approvedActivityLister,
	table *rules.Table,
	logger *zap.Logger,
) *StatementService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatementService{
		students:   students,
		activities: activities,
		table:      table,
		csv:        export.NewCSVExporter(),
		pdf:        export.NewPDFExporter(),
		logger:     logger,
	}
}

// RenderCSV produces the statement as CSV bytes.
func (s *StatementService) RenderCSV(ctx context.Context, enrollment string) ([]byte, string, error) {
	dataset, student, err := s.dataset(ctx, enrollment)
	if err != nil {
		return nil, "", err
	}
	data, err := s.csv.Render(dataset)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render statement")
	}
	return data, fmt.Sprintf("statement-%s.csv", student.EnrollmentNumber), nil
}

// RenderPDF produces the statement as PDF bytes.
func (s *StatementService) RenderPDF(ctx context.Context, enrollment string) ([]byte, string, error) {
	dataset, student, err := s.dataset(ctx, enrollment)
	if err != nil {
		return nil, "", err
	}
	data, err := s.pdf.Render(dataset, "Declaração de Horas Complementares")
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render statement")
	}
	return data, fmt.Sprintf("statement-%s.pdf", student.EnrollmentNumber), nil
}

func (s *StatementService) dataset(ctx context.Context, enrollment string) (export.Dataset, *models.Student, error) {
	student, err := s.students.FindByEnrollment(ctx, enrollment)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return export.Dataset{}, nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return export.Dataset{}, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	activities, err := s.activities.ListApprovedByStudent(ctx, student.ID)
	if err != nil {
		return export.Dataset{}, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list approved activities")
	}

	headers := []string{"Evento", "Categoria", "Data", "Horas"}
	rows := make([]map[string]string, 0, len(activities))
	total := 0
	for _, activity := range activities {
		row := map[string]string{
			"Evento":    derefOr(activity.EventName, "(não identificado)"),
			"Categoria": s.categoryName(activity),
			"Data":      derefOr(activity.EventDate, "-"),
			"Horas":     "0",
		}
		if activity.FinalHours != nil {
			row["Horas"] = fmt.Sprintf("%d", *activity.FinalHours)
			total += *activity.FinalHours
		}
		rows = append(rows, row)
	}

	dataset := export.Dataset{
		Headers:  headers,
		Rows:     rows,
		Subtitle: fmt.Sprintf("%s, matrícula %s", student.Name, student.EnrollmentNumber),
		Summary:  fmt.Sprintf("Total aprovado: %d horas", total),
	}
	return dataset, student, nil
}

func (s *StatementService) categoryName(activity models.ExtractedActivity) string {
	id := activity.CategoryID
	if activity.FinalCategoryID != nil {
		id = *activity.FinalCategoryID
	}
	if cat, ok := s.table.ByID(id); ok {
		return cat.Name
	}
	return id
}

func derefOr(s *string, fallback string) string {
	if s == nil || *s == "" {
		return fallback
	}
	return *s
}
