package export

import (
	"fmt"
	"strings"

	"github.com/prepdesk/examsim-backend/internal/model"
	"github.com/signintech/gopdf"
	"github.com/xuri/excelize/v2"
)

// Format enumerates the supported download formats.
type Format string

const (
	FormatTXT  Format = "txt"
	FormatPDF  Format = "pdf"
	FormatXLSX Format = "xlsx"
)

// ErrUnsupportedFormat is returned for unknown format strings.
var ErrUnsupportedFormat = fmt.Errorf("unsupported export format")

// ParseFormat validates a user-supplied format string.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case FormatTXT:
		return FormatTXT, nil
	case FormatPDF:
		return FormatPDF, nil
	case FormatXLSX:
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
}

// Artifact is a generated downloadable answer sheet.
type Artifact struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Word targets for the two writing tasks.
const (
	task1WordTarget = 150
	task2WordTarget = 250
)

// Exporter turns a SessionResult into downloadable artifacts. It is a pure
// function of the snapshot; nothing here touches live session state.
type Exporter struct {
	// FontPath is the TTF font used for PDF output.
	FontPath string
}

// NewExporter creates an exporter using the given TTF font for PDFs.
func NewExporter(fontPath string) *Exporter {
	return &Exporter{FontPath: fontPath}
}

// Generate renders the result in the requested format.
func (e *Exporter) Generate(f Format, res *model.SessionResult) (*Artifact, error) {
	base := fmt.Sprintf("%s_answers_%s", res.ExamType, res.SubmittedAt.Format("2006-01-02"))

	switch f {
	case FormatTXT:
		return &Artifact{
			Filename:    base + ".txt",
			ContentType: "text/plain; charset=utf-8",
			Data:        []byte(renderText(res)),
		}, nil
	case FormatPDF:
		data, err := e.renderPDF(res)
		if err != nil {
			return nil, fmt.Errorf("render pdf: %w", err)
		}
		return &Artifact{
			Filename:    base + ".pdf",
			ContentType: "application/pdf",
			Data:        data,
		}, nil
	case FormatXLSX:
		data, err := renderXLSX(res)
		if err != nil {
			return nil, fmt.Errorf("render xlsx: %w", err)
		}
		return &Artifact{
			Filename:    base + ".xlsx",
			ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
			Data:        data,
		}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, f)
	}
}

// ─── Shared helpers ─────────────────────────────────────────────────

func formatTimeTaken(seconds int) string {
	return fmt.Sprintf("%dm %ds", seconds/60, seconds%60)
}

func examTitle(t model.ExamType) string {
	switch t {
	case model.ExamTypeReading:
		return "Reading"
	case model.ExamTypeListening:
		return "Listening"
	case model.ExamTypeWriting:
		return "Writing"
	default:
		return string(t)
	}
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}

func writingTasks(res *model.SessionResult) (task1, task2 string) {
	for _, a := range res.Answers {
		switch a.Index {
		case 1:
			task1 = a.Text
		case 2:
			task2 = a.Text
		}
	}
	return task1, task2
}

// headerLines is the summary block shared by every format.
func headerLines(res *model.SessionResult) []string {
	lines := []string{
		fmt.Sprintf("Date: %s", res.SubmittedAt.Format("January 2, 2006 15:04")),
		fmt.Sprintf("Time Taken: %s", formatTimeTaken(res.TimeTakenSeconds)),
	}
	if res.ExamType == model.ExamTypeWriting {
		task1, task2 := writingTasks(res)
		complete := 0
		if wordCount(task1) >= task1WordTarget {
			complete++
		}
		if wordCount(task2) >= task2WordTarget {
			complete++
		}
		lines = append(lines,
			fmt.Sprintf("Total Words: %d", wordCount(task1)+wordCount(task2)),
			fmt.Sprintf("Tasks Complete: %d/2", complete),
		)
	} else {
		answered := res.AnsweredCount()
		lines = append(lines,
			fmt.Sprintf("Answered: %d/%d", answered, len(res.Answers)),
			fmt.Sprintf("Unanswered: %d", len(res.Answers)-answered),
		)
	}
	return lines
}

// ─── Plain text ─────────────────────────────────────────────────────

func renderText(res *model.SessionResult) string {
	var b strings.Builder
	rule := strings.Repeat("=", 50)

	fmt.Fprintf(&b, "IELTS %s Test - Answer Sheet\n%s\n\n", examTitle(res.ExamType), rule)
	for _, line := range headerLines(res) {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')

	if res.ExamType == model.ExamTypeWriting {
		task1, task2 := writingTasks(res)
		writeTaskSection(&b, rule, 1, task1, task1WordTarget)
		writeTaskSection(&b, rule, 2, task2, task2WordTarget)
		return b.String()
	}

	fmt.Fprintf(&b, "%s\nANSWERS\n%s\n\n", rule, rule)
	for _, a := range res.Answers {
		answer := a.Text
		if !a.Answered {
			answer = "(No Answer)"
		}
		marked := ""
		if a.Marked {
			marked = " [MARKED]"
		}
		fmt.Fprintf(&b, "%02d. %s%s\n", a.Index, answer, marked)
	}
	return b.String()
}

func writeTaskSection(b *strings.Builder, rule string, num int, text string, target int) {
	fmt.Fprintf(b, "%s\nTASK %d (%d words - Target: %d+)\n%s\n\n", rule, num, wordCount(text), target, rule)
	if strings.TrimSpace(text) == "" {
		b.WriteString("(No Response)\n\n")
		return
	}
	b.WriteString(text)
	b.WriteString("\n\n")
}

// ─── PDF ────────────────────────────────────────────────────────────

func (e *Exporter) renderPDF(res *model.SessionResult) ([]byte, error) {
	pdf := gopdf.GoPdf{}
	pdf.Start(gopdf.Config{PageSize: *gopdf.PageSizeA4})
	pdf.AddPage()

	if err := pdf.AddTTFFont("body", e.FontPath); err != nil {
		return nil, fmt.Errorf("load font %q: %w", e.FontPath, err)
	}

	const (
		left       = 40.0
		lineHeight = 18.0
		pageBottom = 800.0
	)
	y := 40.0

	writeLine := func(size float64, text string) error {
		if y > pageBottom {
			pdf.AddPage()
			y = 40.0
		}
		if err := pdf.SetFont("body", "", size); err != nil {
			return err
		}
		pdf.SetXY(left, y)
		if err := pdf.Cell(nil, text); err != nil {
			return err
		}
		y += lineHeight
		return nil
	}

	if err := writeLine(16, fmt.Sprintf("IELTS %s Test - Answer Sheet", examTitle(res.ExamType))); err != nil {
		return nil, err
	}
	y += lineHeight / 2
	for _, line := range headerLines(res) {
		if err := writeLine(10, line); err != nil {
			return nil, err
		}
	}
	y += lineHeight

	if res.ExamType == model.ExamTypeWriting {
		task1, task2 := writingTasks(res)
		targets := []int{task1WordTarget, task2WordTarget}
		for i, task := range []string{task1, task2} {
			if err := writeLine(12, fmt.Sprintf("TASK %d (%d words - Target: %d+)", i+1, wordCount(task), targets[i])); err != nil {
				return nil, err
			}
			body := task
			if strings.TrimSpace(body) == "" {
				body = "(No Response)"
			}
			for _, line := range strings.Split(body, "\n") {
				if err := writeLine(10, line); err != nil {
					return nil, err
				}
			}
			y += lineHeight
		}
	} else {
		for _, a := range res.Answers {
			answer := a.Text
			if !a.Answered {
				answer = "(No Answer)"
			}
			marked := ""
			if a.Marked {
				marked = " [MARKED]"
			}
			if err := writeLine(10, fmt.Sprintf("%02d. %s%s", a.Index, answer, marked)); err != nil {
				return nil, err
			}
		}
	}

	return pdf.GetBytesPdfReturnErr()
}

// ─── XLSX ───────────────────────────────────────────────────────────

func renderXLSX(res *model.SessionResult) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := "Answer Sheet"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}

	if err := f.SetCellValue(sheet, "A1", fmt.Sprintf("IELTS %s Test - Answer Sheet", examTitle(res.ExamType))); err != nil {
		return nil, err
	}
	row := 2
	for _, line := range headerLines(res) {
		if err := f.SetCellValue(sheet, fmt.Sprintf("A%d", row), line); err != nil {
			return nil, err
		}
		row++
	}
	row++

	if res.ExamType == model.ExamTypeWriting {
		task1, task2 := writingTasks(res)
		for num, task := range []string{task1, task2} {
			if err := f.SetCellValue(sheet, fmt.Sprintf("A%d", row), fmt.Sprintf("Task %d", num+1)); err != nil {
				return nil, err
			}
			if err := f.SetCellValue(sheet, fmt.Sprintf("B%d", row), task); err != nil {
				return nil, err
			}
			if err := f.SetCellValue(sheet, fmt.Sprintf("C%d", row), fmt.Sprintf("%d words", wordCount(task))); err != nil {
				return nil, err
			}
			row++
		}
	} else {
		headers := []string{"Question", "Answer", "Marked"}
		for i, h := range headers {
			cell := fmt.Sprintf("%c%d", 'A'+i, row)
			if err := f.SetCellValue(sheet, cell, h); err != nil {
				return nil, err
			}
		}
		row++
		for _, a := range res.Answers {
			if err := f.SetCellValue(sheet, fmt.Sprintf("A%d", row), a.Index); err != nil {
				return nil, err
			}
			if err := f.SetCellValue(sheet, fmt.Sprintf("B%d", row), a.Text); err != nil {
				return nil, err
			}
			if err := f.SetCellValue(sheet, fmt.Sprintf("C%d", row), a.Marked); err != nil {
				return nil, err
			}
			row++
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
