package dao

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aisa-it/aiforms/internal/aiforms/dto"
	policy "github.com/aisa-it/aiforms/internal/aiforms/redactor-policy"
	"github.com/aisa-it/aiforms/internal/aiforms/types"
	"github.com/aisa-it/aiforms/internal/aiforms/utils"
	"github.com/gofrs/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Template struct {
	ID        uuid.UUID `gorm:"column:id;primaryKey;type:uuid" json:"id"`
	CreatedAt time.Time `json:"created_at" gorm:"index"`
	UpdatedAt time.Time `json:"updated_at"`

	AuthorID uuid.UUID `json:"author_id" gorm:"type:uuid;index"`
	Author   *User     `json:"author" gorm:"foreignKey:AuthorID;references:ID" extensions:"x-nullable"`

	Title       string       `json:"title" gorm:"not null"`
	Description string       `json:"description"`
	Topic       string       `json:"topic" gorm:"index"`
	ImageURL    *string      `json:"image_url" extensions:"x-nullable"`
	Access      types.Access `json:"access" gorm:"index"`

	Questions    []Question `json:"questions" gorm:"foreignKey:TemplateID;constraint:OnDelete:CASCADE"`
	Tags         []Tag      `json:"tags" gorm:"many2many:template_tags;constraint:OnDelete:CASCADE"`
	AllowedUsers []User     `json:"allowed_users" gorm:"many2many:template_allowed_users;constraint:OnDelete:CASCADE"`

	FormsCount int64 `json:"forms_count" gorm:"->;-:migration"`
	LikesCount int64 `json:"likes_count" gorm:"->;-:migration"`
}

func (Template) TableName() string { return "templates" }

func (t *Template) BeforeSave(tx *gorm.DB) error {
	t.Title = policy.StripTags(t.Title)
	t.Topic = policy.StripTags(t.Topic)
	t.Description = policy.SanitizeRich(t.Description)
	if t.Access == "" {
		t.Access = types.Public
	}
	return nil
}

// CanView проверяет право пользователя открыть шаблон. RESTRICTED с пустым списком допуска доступен только автору.
func (t *Template) CanView(user *User) bool {
	if t.Access == types.Public {
		return true
	}
	if user == nil {
		return false
	}
	if user.IsAdmin() || t.AuthorID == user.ID {
		return true
	}
	for _, u := range t.AllowedUsers {
		if u.ID == user.ID {
			return true
		}
	}
	return false
}

// CanManage - автор или администратор
func (t *Template) CanManage(user *User) bool {
	return user != nil && (user.IsAdmin() || t.AuthorID == user.ID)
}

func (t *Template) TagNames() []string {
	names := make([]string, len(t.Tags))
	for i, tag := range t.Tags {
		names[i] = tag.Name
	}
	return names
}

func (t *Template) ToLightDTO() *dto.TemplateLight {
	if t == nil {
		return nil
	}
	return &dto.TemplateLight{
		ID:          t.ID.String(),
		Title:       t.Title,
		Description: t.Description,
		Topic:       t.Topic,
		ImageURL:    t.ImageURL,
		Access:      t.Access,
		Tags:        t.TagNames(),
		Author:      t.Author.ToLightDTO(),
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
		FormsCount:  t.FormsCount,
		LikesCount:  t.LikesCount,
	}
}

func (t *Template) ToDTO() *dto.Template {
	if t == nil {
		return nil
	}
	questions := t.SortedQuestions()
	allowed := make([]dto.UserLight, 0, len(t.AllowedUsers))
	for i := range t.AllowedUsers {
		allowed = append(allowed, *t.AllowedUsers[i].ToLightDTO())
	}
	return &dto.Template{
		TemplateLight: *t.ToLightDTO(),
		Questions:     utils.SliceToSlice(&questions, func(q *Question) dto.Question { return q.ToDTO() }),
		AllowedUsers:  allowed,
	}
}

// SortedQuestions возвращает вопросы по возрастанию order.
func (t *Template) SortedQuestions() []Question {
	out := append([]Question(nil), t.Questions...)
	sortQuestions(out)
	return out
}

func sortQuestions(qs []Question) {
	sort.SliceStable(qs, func(i, j int) bool { return qs[i].Order < qs[j].Order })
}

type Question struct {
	ID         uuid.UUID `gorm:"column:id;primaryKey;type:uuid" json:"id"`
	TemplateID uuid.UUID `gorm:"type:uuid;index;not null" json:"template_id"`

	Title       string             `json:"title"`
	Description string             `json:"description"`
	Type        types.QuestionType `json:"type"`
	IsRequired  bool               `json:"is_required"`
	ShowInTable bool               `json:"show_in_table"`
	Order       int                `json:"order" gorm:"column:sort_order"`
	Options     pq.StringArray     `json:"options" gorm:"type:text[]"`
}

func (Question) TableName() string { return "questions" }

func (q *Question) BeforeSave(tx *gorm.DB) error {
	q.Title = policy.StripTags(q.Title)
	q.Description = policy.StripTags(q.Description)
	if !q.Type.HasOptions() {
		q.Options = pq.StringArray{}
	} else {
		q.Options = pq.StringArray(utils.UniqueStrings(policy.StripTagsSlice(q.Options)))
	}
	return nil
}

func (q *Question) ToDTO() dto.Question {
	options := []string(q.Options)
	if options == nil {
		options = []string{}
	}
	return dto.Question{
		ID:          q.ID.String(),
		Title:       q.Title,
		Description: q.Description,
		Type:        q.Type,
		IsRequired:  q.IsRequired,
		ShowInTable: q.ShowInTable,
		Order:       q.Order,
		Options:     options,
	}
}

type Tag struct {
	ID   uuid.UUID `gorm:"column:id;primaryKey;type:uuid" json:"id"`
	Name string    `gorm:"uniqueIndex;not null" json:"name"`
}

func (Tag) TableName() string { return "tags" }

// WithCounters добавляет к выборке шаблонов вычисляемые счетчики форм и лайков.
func WithCounters(db *gorm.DB) *gorm.DB {
	return db.Select("templates.*, " +
		"(SELECT count(*) FROM forms WHERE forms.template_id = templates.id) AS forms_count, " +
		"(SELECT count(*) FROM likes WHERE likes.template_id = templates.id) AS likes_count")
}

// WithListPreloads подгружает автора и теги для карточек списка
func WithListPreloads(db *gorm.DB) *gorm.DB {
	return db.Preload("Author").Preload("Tags", func(db *gorm.DB) *gorm.DB { return db.Order("name") })
}

// VisibleTo ограничивает выборку шаблонами, которые пользователь может открыть.
// Без пользователя доступны только публичные шаблоны, администратору доступны все.
func VisibleTo(user *User) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if user == nil {
			return db.Where("templates.access = ?", types.Public)
		}
		if user.IsAdmin() {
			return db
		}
		return db.Where("templates.access = ? OR templates.author_id = ? OR EXISTS (SELECT 1 FROM template_allowed_users tau WHERE tau.template_id = templates.id AND tau.user_id = ?)",
			types.Public, user.ID, user.ID)
	}
}

// SearchScope ищет подстроку q без учета регистра в названии, описании и тегах.
func SearchScope(q string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		q = strings.TrimSpace(q)
		if q == "" {
			return db
		}
		like := "%" + escapeLike(strings.ToLower(q)) + "%"
		return db.Where("lower(templates.title) LIKE ? ESCAPE '\\' OR lower(templates.description) LIKE ? ESCAPE '\\' OR EXISTS (SELECT 1 FROM template_tags tt JOIN tags ON tags.id = tt.tag_id WHERE tt.template_id = templates.id AND lower(tags.name) LIKE ? ESCAPE '\\')",
			like, like, like)
	}
}

// TaggedWith - шаблоны с тегом name (точное совпадение)
func TaggedWith(name string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("EXISTS (SELECT 1 FROM template_tags tt JOIN tags ON tags.id = tt.tag_id WHERE tt.template_id = templates.id AND tags.name = ?)", name)
	}
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// GetTemplate загружает шаблон со всеми связями и счетчиками.
func GetTemplate(db *gorm.DB, id string) (*Template, error) {
	tid, err := uuid.FromString(id)
	if err != nil {
		return nil, gorm.ErrRecordNotFound
	}
	var t Template
	err = db.Scopes(WithCounters, WithListPreloads).
		Preload("Questions", func(db *gorm.DB) *gorm.DB { return db.Order("sort_order") }).
		Preload("AllowedUsers").
		Where("templates.id = ?", tid).
		First(&t).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// FindOrCreateTags возвращает теги с указанными именами, создавая отсутствующие.
// Имена сравниваются точно, регистр сохраняется.
func FindOrCreateTags(tx *gorm.DB, names []string) ([]Tag, error) {
	names = utils.UniqueStrings(policy.StripTagsSlice(names))
	tags := make([]Tag, 0, len(names))
	if len(names) == 0 {
		return tags, nil
	}

	var existing []Tag
	if err := tx.Where("name in (?)", names).Find(&existing).Error; err != nil {
		return nil, err
	}
	byName := make(map[string]Tag, len(existing))
	for _, t := range existing {
		byName[t.Name] = t
	}

	for _, name := range names {
		if t, ok := byName[name]; ok {
			tags = append(tags, t)
			continue
		}
		t := Tag{ID: GenUUID(), Name: name}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&t).Error; err != nil {
			return nil, err
		}
		// concurrent insert won the race
		if err := tx.Where("name = ?", name).First(&t).Error; err != nil {
			return nil, err
		}
		tags = append(tags, t)
	}
	return tags, nil
}

// ApplyTemplatePayload переносит нормализованные данные запроса в шаблон и заменяет список вопросов.
// Вопросы с известным id обновляются, новые создаются, отсутствующие в запросе удаляются вместе с ответами на них.
// Должна вызываться внутри транзакции.
func ApplyTemplatePayload(tx *gorm.DB, t *Template, payload dto.TemplatePayload) error {
	t.Title = payload.Title
	t.Description = payload.Description
	t.Topic = payload.Topic
	t.ImageURL = payload.ImageURL
	t.Access = payload.Access

	if t.ID.IsNil() {
		t.ID = GenUUID()
		if err := tx.Omit(clause.Associations).Create(t).Error; err != nil {
			return fmt.Errorf("create template: %w", err)
		}
	} else if err := tx.Omit(clause.Associations).Save(t).Error; err != nil {
		return fmt.Errorf("save template: %w", err)
	}

	tags, err := FindOrCreateTags(tx, payload.Tags)
	if err != nil {
		return fmt.Errorf("tags: %w", err)
	}
	if err := tx.Model(t).Association("Tags").Replace(tags); err != nil {
		return fmt.Errorf("replace tags: %w", err)
	}
	t.Tags = tags

	allowed := []User{}
	if t.Access == types.Restricted {
		allowed, err = GetUsersByIDs(tx, payload.AllowedUsers)
		if err != nil {
			return fmt.Errorf("allowed users: %w", err)
		}
	}
	if err := tx.Model(t).Association("AllowedUsers").Replace(allowed); err != nil {
		return fmt.Errorf("replace allowed users: %w", err)
	}
	t.AllowedUsers = allowed

	return replaceQuestions(tx, t, payload.Questions)
}

func replaceQuestions(tx *gorm.DB, t *Template, payload []dto.QuestionPayload) error {
	var current []Question
	if err := tx.Where("template_id = ?", t.ID).Find(&current).Error; err != nil {
		return err
	}
	known := make(map[uuid.UUID]struct{}, len(current))
	for _, q := range current {
		known[q.ID] = struct{}{}
	}

	questions := make([]Question, 0, len(payload))
	keep := make([]uuid.UUID, 0, len(payload))
	for i, qp := range payload {
		q := Question{
			TemplateID:  t.ID,
			Title:       qp.Title,
			Description: qp.Description,
			Type:        qp.Type,
			IsRequired:  qp.IsRequired,
			ShowInTable: qp.ShowInTable,
			Order:       i,
			Options:     pq.StringArray(qp.Options),
		}
		id, err := uuid.FromString(qp.ID)
		if _, ok := known[id]; err == nil && ok {
			q.ID = id
			if err := tx.Save(&q).Error; err != nil {
				return fmt.Errorf("update question: %w", err)
			}
		} else {
			q.ID = GenUUID()
			if err := tx.Create(&q).Error; err != nil {
				return fmt.Errorf("create question: %w", err)
			}
		}
		keep = append(keep, q.ID)
		questions = append(questions, q)
	}

	orphans := tx.Model(&Question{}).Where("template_id = ?", t.ID)
	if len(keep) > 0 {
		orphans = orphans.Where("id NOT IN (?)", keep)
	}
	var orphanIDs []uuid.UUID
	if err := orphans.Pluck("id", &orphanIDs).Error; err != nil {
		return err
	}
	if len(orphanIDs) > 0 {
		if err := tx.Where("question_id in (?)", orphanIDs).Delete(&Answer{}).Error; err != nil {
			return err
		}
		if err := tx.Where("id in (?)", orphanIDs).Delete(&Question{}).Error; err != nil {
			return err
		}
	}

	t.Questions = questions
	return nil
}

// DeleteTemplate удаляет шаблон вместе с формами, ответами, лайками, комментариями и связями.
func DeleteTemplate(tx *gorm.DB, t *Template) error {
	formIDs := tx.Model(&Form{}).Select("id").Where("template_id = ?", t.ID)
	if err := tx.Where("form_id in (?)", formIDs).Delete(&Answer{}).Error; err != nil {
		return err
	}
	for _, m := range []any{&Form{}, &Like{}, &Comment{}, &Question{}} {
		if err := tx.Where("template_id = ?", t.ID).Delete(m).Error; err != nil {
			return err
		}
	}
	if err := tx.Model(t).Association("Tags").Clear(); err != nil {
		return err
	}
	if err := tx.Model(t).Association("AllowedUsers").Clear(); err != nil {
		return err
	}
	return tx.Delete(t).Error
}

// PopularTags теги, отсортированные по числу шаблонов
func PopularTags(db *gorm.DB, limit int) ([]dto.TagCount, error) {
	type row struct {
		ID   uuid.UUID
		Name string
		Uses int64
	}
	var rows []row
	err := db.Table("tags").
		Select("tags.id, tags.name, count(tt.template_id) AS uses").
		Joins("JOIN template_tags tt ON tt.tag_id = tags.id").
		Group("tags.id, tags.name").
		Order("uses DESC, tags.name").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]dto.TagCount, len(rows))
	for i, r := range rows {
		out[i] = dto.TagCount{ID: r.ID.String(), Name: r.Name, Count: r.Uses}
	}
	return out, nil
}
