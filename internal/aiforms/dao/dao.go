// DAO (Data Access Object) сервиса форм: модели GORM, хуки очистки данных и запросы, общие для HTTP слоя и фоновых задач.
//
// Основные возможности:
//   - Модели пользователей, шаблонов, вопросов, тегов, заполненных форм, ответов, лайков и комментариев.
//   - Постраничная выборка с подсчетом общего количества.
//   - Генерация UUID, паролей и хэшей паролей (pbkdf2_sha256).
//   - Области видимости шаблонов (публичные, автор, список допуска) и полнотекстовый поиск по названию, описанию и тегам.
package dao

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"log/slog"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/aisa-it/aiforms/internal/aiforms/dto"
	"github.com/aisa-it/aiforms/internal/aiforms/types"
	"github.com/aisa-it/aiforms/internal/aiforms/utils"
	"github.com/gofrs/uuid"
	"github.com/sethvargo/go-password/password"
	"golang.org/x/crypto/pbkdf2"
	"gorm.io/gorm"
)

const passwordIterations = 260000

func GenUUID() uuid.UUID {
	u2, _ := uuid.NewV4()
	return u2
}

// AllModels модели для AutoMigrate в порядке зависимостей
func AllModels() []any {
	return []any{
		&User{},
		&SessionsReset{},
		&Tag{},
		&Template{},
		&Question{},
		&Form{},
		&Answer{},
		&Like{},
		&Comment{},
	}
}

// Page - страница выборки вместе с общим количеством записей
type Page[T any] struct {
	Items      []T
	Total      int64
	Page       int
	Limit      int
	TotalPages int
}

// PaginationRequest выполняет запрос количества и запрос данных для страницы page (с единицы) размером limit.
//
// Параметры:
//   - page: номер страницы, значения меньше 1 приводятся к 1
//   - limit: размер страницы
//   - query: подготовленный запрос с условиями и сортировкой
//   - dataScopes: области, применяемые только к запросу данных (вычисляемые колонки, preload)
//
// Возвращает:
//   - Page[T]: записи страницы и сведения о пагинации
//   - error: ошибка базы данных
func PaginationRequest[T any](page int, limit int, query *gorm.DB, dataScopes ...func(*gorm.DB) *gorm.DB) (res Page[T], err error) {
	if page < 1 {
		page = 1
	}
	var model T

	// Count query
	if err := query.Session(&gorm.Session{}).Model(&model).Count(&res.Total).Error; err != nil {
		return res, err
	}

	// Data query
	if err := query.Scopes(dataScopes...).Offset((page - 1) * limit).Limit(limit).Find(&res.Items).Error; err != nil {
		return res, err
	}

	if res.Items == nil {
		res.Items = make([]T, 0)
	}
	res.Page = page
	res.Limit = limit
	res.TotalPages = utils.TotalPages(res.Total, limit)
	return res, nil
}

// PageToDTO переводит страницу моделей в ответ API.
func PageToDTO[T any, U any](p Page[T], f func(*T) U) dto.PaginatedResponse[U] {
	return dto.PaginatedResponse[U]{
		Data:       utils.SliceToSlice(&p.Items, f),
		Total:      p.Total,
		Page:       p.Page,
		Limit:      p.Limit,
		TotalPages: p.TotalPages,
	}
}

func GenPassword() string {
	return password.MustGenerate(12, 6, 0, false, false)
}

// Генерация хэша пароля для базы
func GenPasswordHash(password string) string {
	letters := []rune("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ")
	salt := make([]rune, 32)
	for i := range salt {
		nBig, _ := rand.Int(rand.Reader, big.NewInt(int64(len(letters))))
		salt[i] = letters[nBig.Int64()]
	}

	return fmt.Sprintf("pbkdf2_sha256$%d$%s$%s",
		passwordIterations,
		string(salt),
		base64.StdEncoding.EncodeToString(pbkdf2.Key([]byte(password), []byte(string(salt)), passwordIterations, 32, sha256.New)),
	)
}

// CheckPassword сверяет пароль с хэшем формата alg$iter$salt$hash.
func CheckPassword(password string, hash string) bool {
	ss := strings.Split(hash, "$")
	if len(ss) != 4 {
		return false
	}
	iter, err := strconv.Atoi(ss[1])
	if err != nil || iter <= 0 {
		return false
	}
	computed := base64.StdEncoding.EncodeToString(pbkdf2.Key([]byte(password), []byte(ss[2]), iter, 32, sha256.New))
	return subtle.ConstantTimeCompare([]byte(computed), []byte(ss[3])) == 1
}

// AddDefaultUser создает администратора со случайным паролем и возвращает этот пароль.
func AddDefaultUser(db *gorm.DB, email string) (string, error) {
	pass := GenPassword()
	tm := time.Now()
	user := User{
		ID:        GenUUID(),
		Email:     strings.ToLower(email),
		Name:      "admin",
		Password:  GenPasswordHash(pass),
		Role:      types.RoleAdmin,
		IsActive:  true,
		Language:  types.LanguageEN,
		Theme:     types.ThemeLight,
		LastLogin: &tm,
	}

	if err := db.Create(&user).Error; err != nil {
		return "", err
	}
	slog.Info("Default admin created", "email", user.Email)
	return pass, nil
}
