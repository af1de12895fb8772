// Таблица ответов шаблона: колонки по вопросам, строки по заполненным формам, сквозная нумерация страниц.
package aggregation

import (
	"slices"
	"strconv"
	"time"

	"github.com/aisa-it/aiforms/internal/aiforms/coercion"
	"github.com/aisa-it/aiforms/internal/aiforms/dto"
	"github.com/aisa-it/aiforms/internal/aiforms/types"
)

const DefaultPageSize = 10

type Column struct {
	QuestionID string
	Title      string
	Type       types.QuestionType
	Options    []string
}

type Cell struct {
	Text string
	// Badges варианты CHECKBOX по отдельности
	Badges []string
}

type Row struct {
	Number      int
	FormID      string
	Respondent  string
	SubmittedAt time.Time
	Cells       []Cell
}

type Table struct {
	Title   string
	Columns []Column
	Rows    []Row
}

// Columns возвращает колонки таблицы в порядке order вопросов. При onlyShown пропускаются вопросы без showInTable.
func Columns(questions []dto.Question, onlyShown bool) []Column {
	sorted := slices.Clone(questions)
	slices.SortStableFunc(sorted, func(a, b dto.Question) int { return a.Order - b.Order })

	cols := make([]Column, 0, len(sorted))
	for _, q := range sorted {
		if onlyShown && !q.ShowInTable {
			continue
		}
		cols = append(cols, Column{QuestionID: q.ID, Title: q.Title, Type: q.Type, Options: q.Options})
	}
	return cols
}

// RowNumber номер строки idx на странице page с единицы, нумерация продолжается между страницами.
func RowNumber(page, pageSize, idx int) int {
	if page < 1 {
		page = 1
	}
	return (page-1)*pageSize + idx + 1
}

// BuildCell декодирует ответ для колонки. Отсутствующий ответ выводится как "-".
func BuildCell(col Column, v coercion.Value, ok bool) Cell {
	if !ok {
		return Cell{Text: coercion.Placeholder}
	}
	c := Cell{Text: coercion.Display(col.Type, v)}
	if col.Type == types.Checkbox {
		c.Badges = coercion.BadgesWithOptions(v, col.Options)
	}
	return c
}

// Build собирает таблицу страницы page из форм этой страницы.
//
// Параметры:
//   - tmpl: шаблон с вопросами
//   - forms: формы текущей страницы
//   - page, pageSize: положение страницы для нумерации строк
//   - onlyShown: выводить только вопросы с showInTable
func Build(tmpl *dto.Template, forms []dto.Form, page, pageSize int, onlyShown bool) Table {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	t := Table{
		Title:   tmpl.Title,
		Columns: Columns(tmpl.Questions, onlyShown),
		Rows:    make([]Row, 0, len(forms)),
	}
	for idx, f := range forms {
		answers := make(map[string]coercion.Value, len(f.Answers))
		for _, a := range f.Answers {
			answers[a.QuestionID] = a.Value
		}
		row := Row{
			Number:      RowNumber(page, pageSize, idx),
			FormID:      f.ID,
			SubmittedAt: f.CreatedAt,
			Cells:       make([]Cell, 0, len(t.Columns)),
		}
		if f.User != nil {
			row.Respondent = f.User.Email
		}
		for _, col := range t.Columns {
			v, ok := answers[col.QuestionID]
			row.Cells = append(row.Cells, BuildCell(col, v, ok))
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

// Grid возвращает таблицу в виде строк текста: номер, респондент, ответы.
func (t Table) Grid() (header []string, rows [][]string) {
	header = []string{"#", "Respondent"}
	for _, c := range t.Columns {
		header = append(header, c.Title)
	}
	rows = make([][]string, 0, len(t.Rows))
	for _, r := range t.Rows {
		line := make([]string, 0, len(header))
		line = append(line, strconv.Itoa(r.Number), r.Respondent)
		for _, c := range r.Cells {
			line = append(line, c.Text)
		}
		rows = append(rows, line)
	}
	return header, rows
}
