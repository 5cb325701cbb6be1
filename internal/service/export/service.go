package export

import (
	"context"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/markdave123/contexta/backend/internal/model/chat"
)

const sheetName = "Transcript"

// TranscriptSource supplies the ordered history of a session.
type TranscriptSource interface {
	Transcript(ctx context.Context, sessionID string) ([]chat.Turn, error)
}

// Service renders session transcripts as spreadsheets.
type Service struct {
	transcripts TranscriptSource
}

// NewService wires the exporter to its transcript source.
func NewService(transcripts TranscriptSource) *Service {
	return &Service{transcripts: transcripts}
}

// WriteXLSX writes the transcript of sessionID as an xlsx workbook: one
// header row, then one row per turn in chronological order.
func (s *Service) WriteXLSX(ctx context.Context, sessionID string, w io.Writer) error {
	turns, err := s.transcripts.Transcript(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to load transcript: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("failed to set sheet name: %w", err)
	}

	headers := []string{"ID", "Role", "Message", "Created At"}
	for col, header := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheetName, cell, header); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
	}

	for i, turn := range turns {
		values := []any{turn.ID, string(turn.Role), turn.Message, turn.CreatedAt.Format("2006-01-02 15:04:05")}
		for col, value := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheetName, cell, value); err != nil {
				return fmt.Errorf("failed to write row %d: %w", i+2, err)
			}
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}
