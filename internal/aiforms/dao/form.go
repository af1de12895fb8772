package dao

import (
	"time"

	"github.com/aisa-it/aiforms/internal/aiforms/coercion"
	"github.com/aisa-it/aiforms/internal/aiforms/dto"
	policy "github.com/aisa-it/aiforms/internal/aiforms/redactor-policy"
	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

type Form struct {
	ID        uuid.UUID `gorm:"column:id;primaryKey;type:uuid" json:"id"`
	CreatedAt time.Time `json:"created_at" gorm:"index"`
	UpdatedAt time.Time `json:"updated_at"`

	TemplateID uuid.UUID `json:"template_id" gorm:"type:uuid;index;not null"`
	Template   *Template `json:"template" gorm:"foreignKey:TemplateID" extensions:"x-nullable"`
	UserID     uuid.UUID `json:"user_id" gorm:"type:uuid;index;not null"`
	User       *User     `json:"user" gorm:"foreignKey:UserID" extensions:"x-nullable"`

	Answers       []Answer `json:"answers" gorm:"foreignKey:FormID;constraint:OnDelete:CASCADE"`
	SendEmailCopy bool     `json:"send_email_copy"`
}

func (Form) TableName() string { return "forms" }

func (f *Form) ToDTO() *dto.Form {
	if f == nil {
		return nil
	}
	return &dto.Form{
		ID:            f.ID.String(),
		TemplateID:    f.TemplateID.String(),
		Template:      f.Template.ToLightDTO(),
		User:          f.User.ToLightDTO(),
		Answers:       answersDTO(f.Answers),
		SendEmailCopy: f.SendEmailCopy,
		CreatedAt:     f.CreatedAt,
		UpdatedAt:     f.UpdatedAt,
	}
}

// AnswerByQuestion индексирует ответы формы по id вопроса
func (f *Form) AnswerByQuestion() map[string]coercion.Value {
	out := make(map[string]coercion.Value, len(f.Answers))
	for _, a := range f.Answers {
		out[a.QuestionID.String()] = a.Value
	}
	return out
}

func answersDTO(in []Answer) []dto.Answer {
	out := make([]dto.Answer, len(in))
	for i, a := range in {
		out[i] = dto.Answer{ID: a.ID.String(), QuestionID: a.QuestionID.String(), Value: a.Value}
	}
	return out
}

type Answer struct {
	ID         uuid.UUID `gorm:"column:id;primaryKey;type:uuid" json:"id"`
	FormID     uuid.UUID `json:"form_id" gorm:"type:uuid;index;not null"`
	QuestionID uuid.UUID `json:"question_id" gorm:"type:uuid;index;not null"`

	coercion.Value `gorm:"embedded"`
}

func (Answer) TableName() string { return "answers" }

func (a *Answer) BeforeSave(tx *gorm.DB) error {
	if a.TextValue != nil {
		clean := policy.StripTags(*a.TextValue)
		a.TextValue = &clean
	}
	return nil
}

// FormPreloads подгружает шаблон, автора формы и ответы
func FormPreloads(db *gorm.DB) *gorm.DB {
	return db.Preload("Template").Preload("User").Preload("Answers")
}

// GetForm загружает форму с ответами и шаблоном (включая вопросы).
func GetForm(db *gorm.DB, id string) (*Form, error) {
	fid, err := uuid.FromString(id)
	if err != nil {
		return nil, gorm.ErrRecordNotFound
	}
	var f Form
	err = db.Scopes(FormPreloads).
		Preload("Template.Questions").
		Preload("Template.Author").
		Where("forms.id = ?", fid).
		First(&f).Error
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// SaveFormAnswers создает форму или заменяет ответы существующей. Вызывается в транзакции.
func SaveFormAnswers(tx *gorm.DB, f *Form, answers []Answer) error {
	if f.ID.IsNil() {
		f.ID = GenUUID()
		if err := tx.Omit("Answers", "Template", "User").Create(f).Error; err != nil {
			return err
		}
	} else {
		if err := tx.Omit("Answers", "Template", "User").Save(f).Error; err != nil {
			return err
		}
		if err := tx.Where("form_id = ?", f.ID).Delete(&Answer{}).Error; err != nil {
			return err
		}
	}

	for i := range answers {
		answers[i].ID = GenUUID()
		answers[i].FormID = f.ID
	}
	if len(answers) > 0 {
		if err := tx.Create(&answers).Error; err != nil {
			return err
		}
	}
	f.Answers = answers
	return nil
}

// DeleteForm удаляет форму и ее ответы
func DeleteForm(tx *gorm.DB, f *Form) error {
	if err := tx.Where("form_id = ?", f.ID).Delete(&Answer{}).Error; err != nil {
		return err
	}
	return tx.Delete(f).Error
}
