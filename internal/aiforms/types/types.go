// Базовые перечисления предметной области: типы вопросов, режимы доступа к шаблону, роли и настройки пользователей.
//
// Все перечисления хранятся в базе строками и проверяются методом Valid при разборе входящих запросов.
package types

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"
)

type QuestionType string

const (
	SingleLineText QuestionType = "SINGLE_LINE_TEXT"
	MultiLineText  QuestionType = "MULTI_LINE_TEXT"
	Integer        QuestionType = "INTEGER"
	Checkbox       QuestionType = "CHECKBOX"
	SingleChoice   QuestionType = "SINGLE_CHOICE"
)

var QuestionTypes = []QuestionType{SingleLineText, MultiLineText, Integer, Checkbox, SingleChoice}

func (qt QuestionType) Valid() bool {
	switch qt {
	case SingleLineText, MultiLineText, Integer, Checkbox, SingleChoice:
		return true
	}
	return false
}

// HasOptions сообщает, требует ли тип вопроса список вариантов ответа.
func (qt QuestionType) HasOptions() bool {
	return qt == Checkbox || qt == SingleChoice
}

// IsText - вопрос с произвольным текстовым ответом
func (qt QuestionType) IsText() bool {
	return qt == SingleLineText || qt == MultiLineText
}

type Access string

const (
	Public     Access = "PUBLIC"
	Restricted Access = "RESTRICTED"
)

func (a Access) Valid() bool {
	return a == Public || a == Restricted
}

type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

type Language string

const (
	LanguageEN Language = "EN"
	LanguageES Language = "ES"
)

func (l Language) Valid() bool {
	return l == LanguageEN || l == LanguageES
}

type Theme string

const (
	ThemeLight Theme = "LIGHT"
	ThemeDark  Theme = "DARK"
)

func (theme Theme) Valid() bool {
	return theme == ThemeLight || theme == ThemeDark
}

func (theme Theme) Value() (driver.Value, error) {
	if theme == "" {
		return string(ThemeLight), nil
	}
	return string(theme), nil
}

func (theme *Theme) Scan(value interface{}) error {
	switch v := value.(type) {
	case string:
		*theme = Theme(v)
	case []byte:
		*theme = Theme(v)
	case nil:
		*theme = ThemeLight
	default:
		return fmt.Errorf("unsupported theme value %T", value)
	}
	return nil
}

type Priority string

const (
	PriorityHigh    Priority = "High"
	PriorityAverage Priority = "Average"
	PriorityLow     Priority = "Low"
)

// ParsePriority разбирает приоритет обращения без учета регистра. Пустая строка дает Average.
func ParsePriority(s string) (Priority, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return PriorityAverage, true
	case "high":
		return PriorityHigh, true
	case "average":
		return PriorityAverage, true
	case "low":
		return PriorityLow, true
	}
	return "", false
}

// Время жизни токенов доступа
const (
	TokenExpiresPeriod        = time.Hour
	RefreshTokenExpiresPeriod = 30 * 24 * time.Hour
)
