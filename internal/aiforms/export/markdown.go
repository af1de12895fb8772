package export

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/aisa-it/aiforms/internal/aiforms/aggregation"
	"github.com/aisa-it/aiforms/internal/aiforms/dto"
	md "github.com/nao1215/markdown"
)

// ResponsesToMarkdown выводит таблицу ответов в Markdown
func ResponsesToMarkdown(table aggregation.Table, out io.Writer) error {
	header, rows := table.Grid()
	for _, r := range rows {
		for i := range r {
			r[i] = escapeCell(r[i])
		}
	}

	doc := md.NewMarkdown(out).H1(table.Title)
	if len(rows) == 0 {
		return doc.PlainText(md.Italic("No responses yet")).Build()
	}
	return doc.CustomTable(md.TableSet{
		Header: header,
		Rows:   rows,
	}, md.TableOptions{
		AutoWrapText: false,
	}).Build()
}

// StatsToMarkdown выводит сводную статистику шаблона: общие счетчики и блок на каждый вопрос.
//
// Для вопросов с вариантами ответа строится таблица "вариант - количество",
// для числовых выводятся минимум, максимум и среднее, для текстовых число заполненных ответов.
func StatsToMarkdown(title string, stats *dto.TemplateStats, out io.Writer) error {
	doc := md.NewMarkdown(out).
		H1(title).
		BulletList(
			fmt.Sprintf("%s %d", md.Bold("Forms:"), stats.FormsCount),
			fmt.Sprintf("%s %d", md.Bold("Likes:"), stats.LikesCount),
		)

	for _, q := range stats.QuestionsStats {
		doc.H2(q.QuestionTitle).PlainText(md.Code(string(q.Type)))

		if options, ok := q.Stats["options"].(map[string]int64); ok {
			keys := slices.Sorted(maps.Keys(options))
			rows := make([][]string, 0, len(keys))
			for _, k := range keys {
				rows = append(rows, []string{escapeCell(k), fmt.Sprint(options[k])})
			}
			doc.CustomTable(md.TableSet{
				Header: []string{"Option", "Count"},
				Rows:   rows,
			}, md.TableOptions{AutoWrapText: false})
			continue
		}

		var items []string
		for _, k := range []string{"count", "filled", "min", "max", "average"} {
			v, ok := q.Stats[k]
			if !ok {
				continue
			}
			items = append(items, fmt.Sprintf("%s %s", md.Bold(k+":"), formatStat(v)))
		}
		doc.BulletList(items...)
	}
	return doc.Build()
}

func formatStat(v any) string {
	switch n := v.(type) {
	case nil:
		return "-"
	case float64:
		return fmt.Sprintf("%.2f", n)
	case *int64:
		if n == nil {
			return "-"
		}
		return fmt.Sprint(*n)
	default:
		return fmt.Sprint(n)
	}
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}
