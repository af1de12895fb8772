package dao

import (
	"strings"
	"time"

	"github.com/aisa-it/aiforms/internal/aiforms/dto"
	policy "github.com/aisa-it/aiforms/internal/aiforms/redactor-policy"
	"github.com/aisa-it/aiforms/internal/aiforms/types"
	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

type User struct {
	ID        uuid.UUID `gorm:"column:id;primaryKey;type:uuid" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Email    string         `json:"email" gorm:"uniqueIndex;not null"`
	Name     string         `json:"name"`
	Password string         `json:"-"`
	Role     types.Role     `json:"role" gorm:"index"`
	Blocked  bool           `json:"blocked"`
	IsActive bool           `json:"is_active"`
	Language types.Language `json:"language"`
	Theme    types.Theme    `json:"theme"`

	LoginAttempts int        `json:"-"`
	BlockedUntil  *time.Time `json:"-"`
	LastLogin     *time.Time `json:"last_login"`
}

func (User) TableName() string { return "users" }

func (u *User) IsAdmin() bool {
	return u != nil && u.Role == types.RoleAdmin
}

func (u *User) BeforeSave(tx *gorm.DB) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	u.Name = policy.StripTags(u.Name)
	if u.Role == "" {
		u.Role = types.RoleUser
	}
	if u.Language == "" {
		u.Language = types.LanguageEN
	}
	if u.Theme == "" {
		u.Theme = types.ThemeLight
	}
	return nil
}

func (u *User) ToLightDTO() *dto.UserLight {
	if u == nil {
		return nil
	}
	return &dto.UserLight{
		ID:    u.ID.String(),
		Email: u.Email,
		Name:  u.Name,
		Role:  u.Role,
	}
}

func (u *User) ToDTO() *dto.User {
	if u == nil {
		return nil
	}
	return &dto.User{
		UserLight: *u.ToLightDTO(),
		Blocked:   u.Blocked,
		IsActive:  u.IsActive,
		Language:  u.Language,
		Theme:     u.Theme,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
		LastLogin: u.LastLogin,
	}
}

type SessionsReset struct {
	ID        uuid.UUID `gorm:"column:id;primaryKey;type:uuid"`
	UserID    uuid.UUID `gorm:"type:uuid;index"`
	ResetedAt time.Time
}

func (SessionsReset) TableName() string { return "sessions_resets" }

// ResetSessions помечает все выданные пользователю токены недействительными.
func ResetSessions(db *gorm.DB, userID uuid.UUID) error {
	return db.Create(&SessionsReset{ID: GenUUID(), UserID: userID, ResetedAt: time.Now()}).Error
}

// LastSessionReset возвращает время последнего сброса сессий пользователя, нулевое время если сбросов не было.
func LastSessionReset(db *gorm.DB, userID uuid.UUID) (time.Time, error) {
	var reset SessionsReset
	err := db.Where("user_id = ?", userID).Order("reseted_at desc").Limit(1).Find(&reset).Error
	return reset.ResetedAt, err
}

// AdminEmails адреса незаблокированных администраторов, получатели обращений в поддержку
func AdminEmails(db *gorm.DB) ([]string, error) {
	emails := make([]string, 0)
	err := db.Model(&User{}).
		Where("role = ?", types.RoleAdmin).
		Where("blocked = ?", false).
		Order("email").
		Pluck("email", &emails).Error
	return emails, err
}

// GetUsersByIDs загружает пользователей списка допуска, неизвестные id пропускаются.
func GetUsersByIDs(db *gorm.DB, ids []string) ([]User, error) {
	users := make([]User, 0)
	if len(ids) == 0 {
		return users, nil
	}
	valid := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if u, err := uuid.FromString(id); err == nil {
			valid = append(valid, u)
		}
	}
	if len(valid) == 0 {
		return users, nil
	}
	err := db.Where("id in (?)", valid).Find(&users).Error
	return users, err
}

// DeleteUser удаляет пользователя вместе с его шаблонами, формами, лайками и комментариями. Вызывается в транзакции.
func DeleteUser(tx *gorm.DB, u *User) error {
	var templates []Template
	if err := tx.Where("author_id = ?", u.ID).Find(&templates).Error; err != nil {
		return err
	}
	for i := range templates {
		if err := DeleteTemplate(tx, &templates[i]); err != nil {
			return err
		}
	}

	formIDs := tx.Model(&Form{}).Select("id").Where("user_id = ?", u.ID)
	if err := tx.Where("form_id in (?)", formIDs).Delete(&Answer{}).Error; err != nil {
		return err
	}
	for _, m := range []any{&Form{}, &Like{}, &Comment{}, &SessionsReset{}} {
		if err := tx.Where("user_id = ?", u.ID).Delete(m).Error; err != nil {
			return err
		}
	}
	if err := tx.Exec("DELETE FROM template_allowed_users WHERE user_id = ?", u.ID).Error; err != nil {
		return err
	}
	return tx.Delete(u).Error
}

// ResetExpiredBlocks снимает временную блокировку входа, срок которой истек к now.
func ResetExpiredBlocks(db *gorm.DB, now time.Time) (int64, error) {
	res := db.Model(&User{}).
		Where("blocked_until IS NOT NULL AND blocked_until <= ?", now).
		Updates(map[string]any{"blocked_until": nil, "login_attempts": 0})
	return res.RowsAffected, res.Error
}
