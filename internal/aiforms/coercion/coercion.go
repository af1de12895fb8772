// Преобразование ответа пользователя в типизированное значение и обратно для отображения.
//
// Ответ хранится в одном из трех слотов (text, integer, boolean), какой именно слот заполнен
// определяется только типом вопроса. Несколько отмеченных вариантов CHECKBOX хранятся одной
// строкой через ", ". Все функции пакета детерминированы и не имеют побочных эффектов.
package coercion

import (
	"math"
	"strconv"
	"strings"

	"github.com/aisa-it/aiforms/internal/aiforms/types"
)

// ChoicesSeparator разделитель вариантов CHECKBOX в textValue
const ChoicesSeparator = ", "

// Placeholder выводится вместо отсутствующего ответа
const Placeholder = "-"

type Kind int

const (
	KindAbsent Kind = iota
	KindText
	KindNumber
	KindChoices
	KindBool
)

// Raw - сырое значение ответа из поля ввода. Ровно один вариант заполнен в зависимости от Kind.
type Raw struct {
	kind    Kind
	text    string
	number  float64
	choices []string
	boolean bool
}

func Absent() Raw { return Raw{} }

func Text(s string) Raw { return Raw{kind: KindText, text: s} }

func Number(n float64) Raw { return Raw{kind: KindNumber, number: n} }

func Choices(options ...string) Raw {
	return Raw{kind: KindChoices, choices: append([]string(nil), options...)}
}

func Bool(b bool) Raw { return Raw{kind: KindBool, boolean: b} }

// FromAny разбирает значение, полученное из JSON или YAML (string, число, bool, список, nil).
func FromAny(v any) Raw {
	switch val := v.(type) {
	case nil:
		return Absent()
	case Raw:
		return val
	case string:
		return Text(val)
	case bool:
		return Bool(val)
	case int:
		return Number(float64(val))
	case int64:
		return Number(float64(val))
	case float64:
		return Number(val)
	case []string:
		return Choices(val...)
	case []any:
		opts := make([]string, 0, len(val))
		for _, o := range val {
			opts = append(opts, FromAny(o).String())
		}
		return Choices(opts...)
	}
	return Absent()
}

func (r Raw) Kind() Kind { return r.kind }

// IsEmpty сообщает, что пользователь ничего не ввел: пустая строка, пустой выбор или отсутствие значения.
func (r Raw) IsEmpty() bool {
	switch r.kind {
	case KindText:
		return strings.TrimSpace(r.text) == ""
	case KindChoices:
		for _, c := range r.choices {
			if c != "" {
				return false
			}
		}
		return true
	case KindNumber, KindBool:
		return false
	}
	return true
}

// String приводит значение к строке так, как его увидел бы пользователь в текстовом поле.
func (r Raw) String() string {
	switch r.kind {
	case KindText:
		return r.text
	case KindNumber:
		return strconv.FormatFloat(r.number, 'f', -1, 64)
	case KindChoices:
		return strings.Join(r.choices, ",")
	case KindBool:
		return strconv.FormatBool(r.boolean)
	}
	return ""
}

// Selected возвращает выбранные варианты. Текст считается единственным выбором.
func (r Raw) Selected() []string {
	switch r.kind {
	case KindChoices:
		out := make([]string, 0, len(r.choices))
		for _, c := range r.choices {
			if c != "" {
				out = append(out, c)
			}
		}
		return out
	case KindText:
		if r.text == "" {
			return nil
		}
		return []string{r.text}
	}
	return nil
}

// Int приводит значение к целому числу. Нечисловое значение дает 0.
func (r Raw) Int() int64 {
	switch r.kind {
	case KindNumber:
		return truncate(r.number)
	case KindText:
		return ParseInteger(r.text)
	case KindBool:
		if r.boolean {
			return 1
		}
		return 0
	case KindChoices:
		if len(r.choices) == 1 {
			return ParseInteger(r.choices[0])
		}
	}
	return 0
}

// IsNumber сообщает, что значение записано числом. Нечисловой текст, NaN и бесконечность числом не считаются.
func (r Raw) IsNumber() bool {
	switch r.kind {
	case KindNumber:
		return finite(r.number)
	case KindText:
		return isNumeric(r.text)
	case KindChoices:
		return len(r.choices) == 1 && isNumeric(r.choices[0])
	}
	return false
}

func isNumeric(s string) bool {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return err == nil && finite(f)
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Value - типизированное значение ответа. Заполнено не больше одного поля.
type Value struct {
	TextValue    *string `json:"textValue"`
	IntegerValue *int64  `json:"integerValue"`
	BooleanValue *bool   `json:"booleanValue"`
}

// IsNull - ни один слот не заполнен
func (v Value) IsNull() bool {
	return v.TextValue == nil && v.IntegerValue == nil && v.BooleanValue == nil
}

// Encode переводит сырое значение в типизированный ответ по типу вопроса.
//
// Параметры:
//   - qt: тип вопроса
//   - raw: значение из поля ввода
//
// Возвращает:
//   - Value: для текстовых типов и SINGLE_CHOICE заполнен textValue, для INTEGER integerValue (0 если число не разобрано),
//     для CHECKBOX textValue с вариантами через ", ". Для неизвестного типа все слоты пустые.
func Encode(qt types.QuestionType, raw Raw) Value {
	switch qt {
	case types.SingleLineText, types.MultiLineText:
		return textValue(raw.String())
	case types.SingleChoice:
		selected := raw.Selected()
		if len(selected) == 0 {
			return textValue("")
		}
		return textValue(selected[0])
	case types.Integer:
		n := raw.Int()
		return Value{IntegerValue: &n}
	case types.Checkbox:
		return textValue(strings.Join(raw.Selected(), ChoicesSeparator))
	}
	return Value{}
}

// Decode восстанавливает сырое значение из сохраненного ответа, обратная операция к Encode.
// Варианты CHECKBOX разделяются по ", " без учета вариантов вопроса, см. DecodeWithOptions.
func Decode(qt types.QuestionType, v Value) Raw {
	return DecodeWithOptions(qt, nil, v)
}

// DecodeWithOptions восстанавливает значение с учетом вариантов вопроса: вариант CHECKBOX,
// в названии которого есть ", ", распознается целиком.
func DecodeWithOptions(qt types.QuestionType, options []string, v Value) Raw {
	switch qt {
	case types.SingleLineText, types.MultiLineText, types.SingleChoice:
		if v.TextValue == nil {
			return Absent()
		}
		return Text(*v.TextValue)
	case types.Integer:
		if v.IntegerValue == nil {
			return Absent()
		}
		return Number(float64(*v.IntegerValue))
	case types.Checkbox:
		if v.TextValue == nil {
			return Absent()
		}
		return Choices(BadgesWithOptions(v, options)...)
	}
	return Absent()
}

// Display возвращает строку для ячейки таблицы ответов. Отсутствующий ответ выводится как "-".
func Display(qt types.QuestionType, v Value) string {
	switch qt {
	case types.Integer:
		if v.IntegerValue == nil {
			return Placeholder
		}
		return strconv.FormatInt(*v.IntegerValue, 10)
	case types.SingleLineText, types.MultiLineText, types.SingleChoice, types.Checkbox:
		if v.TextValue == nil || *v.TextValue == "" {
			return Placeholder
		}
		return *v.TextValue
	}
	return Placeholder
}

// Badges разбивает сохраненный ответ CHECKBOX на отдельные варианты.
func Badges(v Value) []string {
	return BadgesWithOptions(v, nil)
}

// BadgesWithOptions разбивает ответ CHECKBOX, сопоставляя текст с вариантами вопроса.
// В каждой позиции выбирается самый длинный вариант, за которым следует разделитель или конец строки.
// Текст, не совпавший ни с одним вариантом, берется до следующего разделителя.
func BadgesWithOptions(v Value, options []string) []string {
	if v.TextValue == nil || *v.TextValue == "" {
		return nil
	}
	text := *v.TextValue
	var out []string
	for len(text) > 0 {
		part := longestOptionPrefix(text, options)
		if part == "" {
			part, _, _ = strings.Cut(text, ChoicesSeparator)
		}
		if part != "" {
			out = append(out, part)
		}
		text = strings.TrimPrefix(text[len(part):], ChoicesSeparator)
	}
	return out
}

func longestOptionPrefix(text string, options []string) string {
	best := ""
	for _, o := range options {
		if len(o) <= len(best) || !strings.HasPrefix(text, o) {
			continue
		}
		if rest := text[len(o):]; rest == "" || strings.HasPrefix(rest, ChoicesSeparator) {
			best = o
		}
	}
	return best
}

// ParseInteger разбирает число как это делает поле ввода: целое, затем дробное с отбрасыванием дробной части.
// Пустая строка, мусор, NaN и бесконечность дают 0.
func ParseInteger(s string) int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return truncate(f)
}

func truncate(f float64) int64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	if f >= math.MaxInt64 || f < math.MinInt64 {
		return 0
	}
	return int64(f)
}

func textValue(s string) Value {
	return Value{TextValue: &s}
}
