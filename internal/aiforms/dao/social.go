package dao

import (
	"time"

	"github.com/aisa-it/aiforms/internal/aiforms/dto"
	policy "github.com/aisa-it/aiforms/internal/aiforms/redactor-policy"
	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

type Like struct {
	ID         uuid.UUID `gorm:"column:id;primaryKey;type:uuid"`
	CreatedAt  time.Time
	TemplateID uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_like_template_user;not null"`
	UserID     uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_like_template_user;not null"`
}

func (Like) TableName() string { return "likes" }

type Comment struct {
	ID        uuid.UUID `gorm:"column:id;primaryKey;type:uuid" json:"id"`
	CreatedAt time.Time `json:"created_at" gorm:"index"`
	UpdatedAt time.Time `json:"updated_at"`

	TemplateID uuid.UUID `json:"template_id" gorm:"type:uuid;index;not null"`
	UserID     uuid.UUID `json:"user_id" gorm:"type:uuid;not null"`
	User       *User     `json:"user" gorm:"foreignKey:UserID" extensions:"x-nullable"`
	Content    string    `json:"content"`
}

func (Comment) TableName() string { return "comments" }

func (c *Comment) BeforeSave(tx *gorm.DB) error {
	c.Content = policy.StripTags(c.Content)
	return nil
}

func (c *Comment) ToDTO() dto.Comment {
	return dto.Comment{
		ID:        c.ID.String(),
		Content:   c.Content,
		CreatedAt: c.CreatedAt,
		User:      c.User.ToLightDTO(),
	}
}

// IsLiked проверяет, отмечен ли шаблон пользователем
func IsLiked(db *gorm.DB, templateID, userID uuid.UUID) (bool, error) {
	var count int64
	err := db.Model(&Like{}).Where("template_id = ? AND user_id = ?", templateID, userID).Count(&count).Error
	return count > 0, err
}

// CountLikes - количество лайков шаблона
func CountLikes(db *gorm.DB, templateID uuid.UUID) (int64, error) {
	var count int64
	err := db.Model(&Like{}).Where("template_id = ?", templateID).Count(&count).Error
	return count, err
}
