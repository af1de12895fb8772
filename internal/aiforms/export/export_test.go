package export

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/aisa-it/aiforms/internal/aiforms/aggregation"
	"github.com/aisa-it/aiforms/internal/aiforms/dto"
	"github.com/aisa-it/aiforms/internal/aiforms/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTable() aggregation.Table {
	return aggregation.Table{
		Title: "Customer survey",
		Columns: []aggregation.Column{
			{QuestionID: "q1", Title: "Name", Type: types.SingleLineText},
			{QuestionID: "q2", Title: "Colors", Type: types.Checkbox},
		},
		Rows: []aggregation.Row{
			{Number: 1, Respondent: "a@example.com", Cells: []aggregation.Cell{{Text: "Ann"}, {Text: "red, blue"}}},
			{Number: 2, Respondent: "b@example.com", Cells: []aggregation.Cell{{Text: "Pipe | name"}, {Text: "-"}}},
		},
	}
}

func TestResponsesToPDF(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, ResponsesToPDF(sampleTable(), time.Now(), &buf))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))

	t.Run("пустая таблица", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, ResponsesToPDF(aggregation.Table{Title: "Empty"}, time.Now(), &buf))
		assert.NotZero(t, buf.Len())
	})
}

func TestColumnWidths(t *testing.T) {
	w := columnWidths(4, 277)
	require.Len(t, w, 4)
	assert.Equal(t, numberWidth, w[0])
	var sum float64
	for _, v := range w {
		sum += v
	}
	assert.InDelta(t, 277, sum, 0.001)

	many := columnWidths(20, 277)
	assert.Equal(t, respondentMin, many[1])
	assert.Empty(t, columnWidths(0, 277))
}

func TestResponsesToMarkdown(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, ResponsesToMarkdown(sampleTable(), &buf))
	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "# Customer survey"))
	assert.Contains(t, out, "Respondent")
	assert.Contains(t, out, "red, blue")
	assert.Contains(t, out, `Pipe \| name`)

	buf.Reset()
	require.NoError(t, ResponsesToMarkdown(aggregation.Table{Title: "Empty"}, &buf))
	assert.Contains(t, buf.String(), "No responses yet")
}

func TestStatsToMarkdown(t *testing.T) {
	stats := &dto.TemplateStats{
		FormsCount: 3,
		LikesCount: 1,
		QuestionsStats: []dto.QuestionStats{
			{QuestionTitle: "Color", Type: types.SingleChoice, Stats: map[string]any{
				"count":   int64(3),
				"options": map[string]int64{"red": 2, "blue": 1},
			}},
			{QuestionTitle: "Age", Type: types.Integer, Stats: map[string]any{
				"count": int64(2), "min": int64(20), "max": int64(30), "average": 25.0,
			}},
			{QuestionTitle: "Empty", Type: types.Integer, Stats: map[string]any{
				"count": 0, "min": nil, "max": nil, "average": nil,
			}},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, StatsToMarkdown("Survey", stats, &buf))
	out := buf.String()
	assert.Contains(t, out, "## Color")
	assert.Contains(t, out, "red")
	assert.Contains(t, out, "25.00")
	assert.Contains(t, out, "## Empty")
	assert.Less(t, strings.Index(out, "blue"), strings.Index(out, "red"))
}
