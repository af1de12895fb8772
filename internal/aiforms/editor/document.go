// Модель редактируемого шаблона и операции над упорядоченным списком вопросов.
//
// Document хранит шаблон в памяти до сохранения. Порядок вопросов (Order) всегда плотный
// и начинается с нуля: он пересчитывается после каждого добавления, удаления и перемещения.
// Ошибки валидации возвращаются значениями, методы не паникуют.
package editor

import (
	"errors"
	"fmt"
	"slices"

	"github.com/aisa-it/aiforms/internal/aiforms/dto"
	"github.com/aisa-it/aiforms/internal/aiforms/types"
	"github.com/aisa-it/aiforms/internal/aiforms/utils"
	"github.com/gofrs/uuid"
)

// Topics - допустимые темы шаблона
var Topics = []string{"Education", "Quiz", "Survey", "Other"}

const DefaultOptionLabel = "Option 1"

var (
	ErrIndexOutOfRange  = errors.New("question index out of range")
	ErrOptionOutOfRange = errors.New("option index out of range")
	ErrUnknownType      = errors.New("unknown question type")
	ErrNoOptions        = errors.New("question type has no options")
	ErrLastOption       = errors.New("cannot remove the last option")
	ErrInvalidAccess    = errors.New("access must be PUBLIC or RESTRICTED")
)

type Question struct {
	ID          string
	Temporary   bool
	Title       string
	Description string
	Type        types.QuestionType
	IsRequired  bool
	ShowInTable bool
	Order       int
	Options     []string
}

type Document struct {
	ID           string
	Title        string
	Description  string
	Topic        string
	ImageURL     *string
	Access       types.Access
	AllowedUsers []string
	Tags         []string
	Questions    []Question
}

// New возвращает пустой публичный шаблон.
func New() *Document {
	return &Document{
		Access:       types.Public,
		AllowedUsers: []string{},
		Tags:         []string{},
		Questions:    []Question{},
	}
}

// FromTemplate открывает сохраненный шаблон для редактирования. Вопросы сортируются по order и перенумеровываются.
func FromTemplate(t *dto.Template) *Document {
	d := New()
	if t == nil {
		return d
	}
	d.ID = t.ID
	d.Title = t.Title
	d.Description = t.Description
	d.Topic = t.Topic
	d.ImageURL = t.ImageURL
	d.Access = t.Access
	d.Tags = utils.UniqueStrings(t.Tags)
	for _, u := range t.AllowedUsers {
		d.AllowedUsers = append(d.AllowedUsers, u.ID)
	}

	questions := slices.Clone(t.Questions)
	slices.SortStableFunc(questions, func(a, b dto.Question) int { return a.Order - b.Order })
	for _, q := range questions {
		d.Questions = append(d.Questions, Question{
			ID:          q.ID,
			Title:       q.Title,
			Description: q.Description,
			Type:        q.Type,
			IsRequired:  q.IsRequired,
			ShowInTable: q.ShowInTable,
			Options:     slices.Clone(q.Options),
		})
	}
	d.renumber()
	return d
}

// AddQuestion добавляет вопрос в конец списка: пустое название, необязательный, виден в таблице,
// для CHECKBOX и SINGLE_CHOICE один вариант "Option 1". Вопрос получает временный id до сохранения.
// Возвращает индекс нового вопроса, для изменения используется UpdateQuestion.
func (d *Document) AddQuestion(qt types.QuestionType) (int, error) {
	if !qt.Valid() {
		return -1, fmt.Errorf("%w: %s", ErrUnknownType, qt)
	}
	q := Question{
		ID:          uuid.Must(uuid.NewV4()).String(),
		Temporary:   true,
		Type:        qt,
		ShowInTable: true,
		Order:       len(d.Questions),
	}
	if qt.HasOptions() {
		q.Options = []string{DefaultOptionLabel}
	}
	d.Questions = append(d.Questions, q)
	return len(d.Questions) - 1, nil
}

// RemoveQuestion удаляет вопрос по индексу, последующие вопросы сдвигаются на одну позицию.
func (d *Document) RemoveQuestion(index int) error {
	if index < 0 || index >= len(d.Questions) {
		return ErrIndexOutOfRange
	}
	d.Questions = slices.Delete(d.Questions, index, index+1)
	d.renumber()
	return nil
}

// MoveQuestion перемещает вопрос from на позицию to и перенумеровывает весь список.
func (d *Document) MoveQuestion(from, to int) error {
	if from < 0 || from >= len(d.Questions) || to < 0 || to >= len(d.Questions) {
		return ErrIndexOutOfRange
	}
	if from == to {
		return nil
	}
	q := d.Questions[from]
	d.Questions = slices.Delete(d.Questions, from, from+1)
	d.Questions = slices.Insert(d.Questions, to, q)
	d.renumber()
	return nil
}

// UpdateQuestion изменяет вопрос через fn. Позиция и id вопроса сохраняются.
// При смене типа варианты ответа очищаются или инициализируются.
func (d *Document) UpdateQuestion(index int, fn func(q *Question)) error {
	if index < 0 || index >= len(d.Questions) {
		return ErrIndexOutOfRange
	}
	q := &d.Questions[index]
	id, temp := q.ID, q.Temporary
	fn(q)
	if !q.Type.Valid() {
		return fmt.Errorf("%w: %s", ErrUnknownType, q.Type)
	}
	q.ID, q.Temporary, q.Order = id, temp, index
	switch {
	case !q.Type.HasOptions():
		q.Options = nil
	case len(q.Options) == 0:
		q.Options = []string{DefaultOptionLabel}
	}
	return nil
}

// AddOption добавляет пустой вариант ответа
func (d *Document) AddOption(index int) error {
	if index < 0 || index >= len(d.Questions) {
		return ErrIndexOutOfRange
	}
	q := &d.Questions[index]
	if !q.Type.HasOptions() {
		return ErrNoOptions
	}
	q.Options = append(q.Options, "")
	return nil
}

// RemoveOption удаляет вариант ответа. Последний вариант удалить нельзя.
func (d *Document) RemoveOption(index, option int) error {
	if index < 0 || index >= len(d.Questions) {
		return ErrIndexOutOfRange
	}
	q := &d.Questions[index]
	if !q.Type.HasOptions() {
		return ErrNoOptions
	}
	if option < 0 || option >= len(q.Options) {
		return ErrOptionOutOfRange
	}
	if len(q.Options) <= 1 {
		return ErrLastOption
	}
	q.Options = slices.Delete(q.Options, option, option+1)
	return nil
}

// SetAccess меняет режим доступа. RESTRICTED не заполняет список допуска автоматически.
// При PUBLIC список допуска остается в памяти, но не попадает в сохраняемые данные.
// Пустой allowed не меняет текущий список, очистка через ClearAllowedUsers.
func (d *Document) SetAccess(mode types.Access, allowed ...string) error {
	if !mode.Valid() {
		return ErrInvalidAccess
	}
	d.Access = mode
	if len(allowed) > 0 {
		d.AllowedUsers = utils.UniqueStrings(allowed)
	}
	return nil
}

// ClearAllowedUsers очищает список допуска. RESTRICTED с пустым списком доступен только автору.
func (d *Document) ClearAllowedUsers() {
	d.AllowedUsers = []string{}
}

// SetTags заменяет теги. Пустые имена отбрасываются, повторы удаляются с сохранением регистра первого вхождения.
func (d *Document) SetTags(names ...string) {
	d.Tags = utils.UniqueStrings(names)
}

func (d *Document) AddTag(name string) {
	d.Tags = utils.UniqueStrings(append(d.Tags, name))
}

func (d *Document) RemoveTag(name string) {
	d.Tags = slices.DeleteFunc(d.Tags, func(t string) bool { return t == name })
}

func (d *Document) renumber() {
	for i := range d.Questions {
		d.Questions[i].Order = i
	}
}
