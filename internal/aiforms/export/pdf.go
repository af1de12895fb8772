// Экспорт ответов на шаблон в PDF и Markdown.
//
// Основные возможности:
//   - Таблица ответов (номер, респондент, ответы на вопросы) в PDF.
//   - Таблица ответов и сводная статистика по вопросам в Markdown.
package export

import (
	"fmt"
	"io"
	"time"

	"codeberg.org/go-pdf/fpdf"
	"github.com/aisa-it/aiforms/internal/aiforms/aggregation"
)

const (
	pageWidth     = 297.0 // A4 landscape
	numberWidth   = 10.0
	respondentMin = 40.0
	lineHeight    = 5.0
)

type pdfWriter struct {
	pdf *fpdf.Fpdf
	tr  func(string) string

	widths []float64
}

// ResponsesToPDF рисует таблицу ответов в PDF и пишет результат в out.
//
// Параметры:
//   - table: таблица ответов, собранная aggregation.Build
//   - generatedAt: время формирования, выводится в колонтитуле
//   - out: куда записать документ
//
// Возвращает:
//   - error: ошибка формирования или записи документа
func ResponsesToPDF(table aggregation.Table, generatedAt time.Time, out io.Writer) error {
	pdf := fpdf.New("L", "mm", "A4", "")
	w := pdfWriter{
		pdf: pdf,
		tr:  pdf.UnicodeTranslatorFromDescriptor(""),
	}

	header, rows := table.Grid()
	w.widths = columnWidths(len(header), pageWidth-20)

	pdf.SetTitle(w.tr(table.Title), false)
	pdf.SetHeaderFunc(func() {
		pdf.SetFont("Helvetica", "B", 16)
		pdf.CellFormat(0, 10, w.tr(table.Title), "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 8)
		pdf.SetTextColor(120, 120, 120)
		pdf.CellFormat(0, 5, fmt.Sprintf("%d responses, generated %s", len(rows), generatedAt.UTC().Format("2006-01-02 15:04 MST")), "", 1, "L", false, 0, "")
		pdf.SetTextColor(0, 0, 0)
		pdf.Ln(2)
		w.writeRow(header, true)
	})
	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.CellFormat(0, 8, fmt.Sprintf("%d/{nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AliasNbPages("")

	pdf.AddPage()
	pdf.SetFont("Helvetica", "", 9)
	if len(rows) == 0 {
		pdf.CellFormat(0, 10, "No responses yet", "", 1, "C", false, 0, "")
	}
	for _, r := range rows {
		w.writeRow(r, false)
	}

	if err := pdf.Error(); err != nil {
		return err
	}
	return pdf.Output(out)
}

// Делит ширину страницы: узкая колонка номера, колонка респондента и равные колонки вопросов
func columnWidths(n int, total float64) []float64 {
	if n == 0 {
		return nil
	}
	widths := make([]float64, n)
	widths[0] = numberWidth
	if n == 1 {
		return widths
	}
	rest := total - numberWidth
	each := rest / float64(n-1)
	if n > 2 && each < respondentMin {
		widths[1] = respondentMin
		each = (rest - respondentMin) / float64(n-2)
		for i := 2; i < n; i++ {
			widths[i] = each
		}
		return widths
	}
	for i := 1; i < n; i++ {
		widths[i] = each
	}
	return widths
}

func (w *pdfWriter) writeRow(cells []string, header bool) {
	if header {
		w.pdf.SetFont("Helvetica", "B", 9)
		w.pdf.SetFillColor(230, 230, 240)
	}

	lines := make([][]string, len(cells))
	height := lineHeight
	for i, c := range cells {
		lines[i] = w.pdf.SplitText(w.tr(c), w.widths[i]-2)
		if len(lines[i]) == 0 {
			lines[i] = []string{""}
		}
		height = max(height, float64(len(lines[i]))*lineHeight)
	}

	_, pageHeight := w.pdf.GetPageSize()
	_, _, _, bottom := w.pdf.GetMargins()
	if !header && w.pdf.GetY()+height > pageHeight-bottom-10 {
		w.pdf.AddPage()
		w.pdf.SetFont("Helvetica", "", 9)
	}

	x, y := w.pdf.GetXY()
	for i := range cells {
		w.pdf.Rect(x, y, w.widths[i], height, borderStyle(header))
		for j, l := range lines[i] {
			w.pdf.SetXY(x+1, y+float64(j)*lineHeight)
			w.pdf.CellFormat(w.widths[i]-2, lineHeight, l, "", 0, "L", false, 0, "")
		}
		x += w.widths[i]
	}
	w.pdf.SetXY(w.pdf.GetX(), y+height)
	l, _, _, _ := w.pdf.GetMargins()
	w.pdf.SetX(l)

	if header {
		w.pdf.SetFont("Helvetica", "", 9)
	}
}

func borderStyle(header bool) string {
	if header {
		return "FD"
	}
	return "D"
}
