package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"studentpay-server-go/models"
)

var (
	// ErrInvalidWorkbook is returned when the upload is not a readable workbook.
	ErrInvalidWorkbook = errors.New("invalid excel file")
	// ErrEmptyWorkbook is returned when an uploaded workbook has no usable sheet.
	ErrEmptyWorkbook = errors.New("excel file does not contain any sheets")
)

// ImportStudentsFromExcel reads the first sheet of an Excel stream and upserts
// one student per row. Row 1 holds the field names and must contain a "code"
// column; rows without a code are skipped.
func ImportStudentsFromExcel(ctx context.Context, repo *StudentRepository, file io.Reader, logger *slog.Logger) (int, error) {
	f, err := excelize.OpenReader(file)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidWorkbook, err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			logger.Warn("error closing excel file", "error", err)
		}
	}()

	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return 0, ErrEmptyWorkbook
	}

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to get rows from sheet %s: %v", ErrInvalidWorkbook, sheetName, err)
	}
	if len(rows) == 0 {
		return 0, ErrEmptyWorkbook
	}

	header := make([]string, len(rows[0]))
	codeColumn := -1
	for i, name := range rows[0] {
		header[i] = strings.TrimSpace(name)
		if header[i] == "code" {
			codeColumn = i
		}
	}
	if codeColumn < 0 {
		return 0, fmt.Errorf("sheet %s has no %q column: %w", sheetName, "code", ErrInvalidStudentCode)
	}

	var students []models.Student
	for i, row := range rows[1:] {
		if codeColumn >= len(row) || strings.TrimSpace(row[codeColumn]) == "" {
			logger.Debug("skipping row without code", "row", i+2)
			continue
		}

		student := models.Student{}
		for col, name := range header {
			if name == "" {
				continue
			}
			value := ""
			if col < len(row) {
				value = strings.TrimSpace(row[col])
			}
			student[name] = value
		}
		students = append(students, student)
	}

	if len(students) == 0 {
		return 0, nil
	}
	if err := repo.SaveMany(ctx, students); err != nil {
		return 0, err
	}

	logger.Info("imported students from excel", "sheet", sheetName, "count", len(students))
	return len(students), nil
}

var notificationColumns = []string{"Index", "Student Code", "Message", "Timestamp", "Paid", "Response"}

// ExportNotificationsToExcel writes the inbox as a workbook with one row per
// notification, in collection order.
func ExportNotificationsToExcel(notifications []models.Notification, w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Notifications"
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	header := make([]any, len(notificationColumns))
	for i, c := range notificationColumns {
		header[i] = c
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for i, n := range notifications {
		response := ""
		if n.Response != nil {
			b, err := json.Marshal(n.Response)
			if err != nil {
				return fmt.Errorf("failed to encode response of notification %d: %w", i, err)
			}
			response = string(b)
		}
		row := []any{i, n.StudentCode, n.Message, n.Timestamp, n.IsPaid(), response}
		if err := f.SetSheetRow(sheet, "A"+strconv.Itoa(i+2), &row); err != nil {
			return fmt.Errorf("failed to write notification %d: %w", i, err)
		}
	}

	return f.Write(w)
}
