// Пакет содержит перечень ошибок API сервиса форм. Каждая ошибка имеет числовой код, HTTP статус и текст на английском и русском языках.
//
// Группы кодов:
//   - 1*** авторизация, 11** сессии
//   - 2*** шаблоны
//   - 3*** заполненные формы
//   - 4*** комментарии и лайки
//   - 5*** валидация и общие ошибки
//   - 6*** пользователи
//   - 7*** интеграции
package apierrors

import (
	"fmt"
	"net/http"
	"strings"
)

type DefinedError struct {
	Code       int    `json:"code"`
	StatusCode int    `json:"-"`
	Err        string `json:"error"`
	RuErr      string `json:"ru_error,omitempty"`
}

func (e DefinedError) Error() string {
	return e.Err
}

var (
	// 1*** - auth errors
	ErrFailedLogin              = DefinedError{Code: 1001, StatusCode: http.StatusUnauthorized, Err: "invalid credentials", RuErr: "Неправильный email или пароль"}
	ErrCaptchaFail              = DefinedError{Code: 1002, StatusCode: http.StatusUnauthorized, Err: "invalid captcha", RuErr: "Капча введена неверно"}
	ErrLoginCredentialsRequired = DefinedError{Code: 1003, StatusCode: http.StatusUnauthorized, Err: "both email and password are required", RuErr: "Поля email и пароль не могут быть пустыми"}
	ErrLoginTriesExceed         = DefinedError{Code: 1004, StatusCode: http.StatusUnauthorized, Err: "login tries exceed, your account is blocked", RuErr: "Учетная запись заблокирована"}
	ErrUserBlocked              = DefinedError{Code: 1005, StatusCode: http.StatusForbidden, Err: "user is blocked", RuErr: "Пользователь заблокирован администратором"}
	ErrSignupDisabled           = DefinedError{Code: 1006, StatusCode: http.StatusForbidden, Err: "sign up disabled", RuErr: "Регистрация отключена администратором"}
	ErrAccessTokenRequired      = DefinedError{Code: 1007, StatusCode: http.StatusUnauthorized, Err: "access token is required", RuErr: "Требуется токен доступа"}
	ErrUserAlreadyExist         = DefinedError{Code: 1008, Err: "user already exist", RuErr: "Пользователь с указанным email уже зарегистрирован в системе"}
	ErrBlockedUntil             = DefinedError{Code: 1009, StatusCode: http.StatusUnauthorized, Err: "blocked until %s", RuErr: "Учетная запись заблокирована до %s"}
	ErrWeakPassword             = DefinedError{Code: 1010, Err: "password must be at least 8 characters", RuErr: "Пароль должен содержать не менее 8 символов"}

	// 11** - session errors
	ErrRefreshTokenRequired = DefinedError{Code: 1101, StatusCode: http.StatusUnauthorized, Err: "refresh token required", RuErr: "Требуется токен обновления"}
	ErrTokenExpired         = DefinedError{Code: 1102, StatusCode: http.StatusUnauthorized, Err: "token expired", RuErr: "Срок действия токена истек"}
	ErrTokenInvalid         = DefinedError{Code: 1103, StatusCode: http.StatusUnauthorized, Err: "invalid token", RuErr: "Недействительный токен"}
	ErrSessionReset         = DefinedError{Code: 1104, StatusCode: http.StatusUnauthorized, Err: "session reset", RuErr: "Сессия сброшена"}

	// 2*** - template errors
	ErrTemplateNotFound        = DefinedError{Code: 2001, StatusCode: http.StatusNotFound, Err: "template not found", RuErr: "Шаблон не найден"}
	ErrTemplateForbidden       = DefinedError{Code: 2002, StatusCode: http.StatusForbidden, Err: "template access denied", RuErr: "Нет доступа к шаблону"}
	ErrTemplateTitleRequired   = DefinedError{Code: 2003, Err: "template title is required", RuErr: "Название шаблона не может быть пустым"}
	ErrQuestionTitleRequired   = DefinedError{Code: 2004, Err: "question %s title is required", RuErr: "Вопрос %s должен иметь название"}
	ErrQuestionOptionsRequired = DefinedError{Code: 2005, Err: "question %s must have at least one option", RuErr: "Вопрос %s должен содержать хотя бы один вариант ответа"}
	ErrQuestionTypeUnknown     = DefinedError{Code: 2006, Err: "unknown question type %s", RuErr: "Неизвестный тип вопроса %s"}
	ErrTemplateAccessInvalid   = DefinedError{Code: 2007, Err: "access must be PUBLIC or RESTRICTED", RuErr: "Доступ должен быть PUBLIC или RESTRICTED"}
	ErrTemplateLimitReached    = DefinedError{Code: 2008, StatusCode: http.StatusPaymentRequired, Err: "templates limit reached", RuErr: "Достигнут лимит шаблонов"}
	ErrImageUnsupported        = DefinedError{Code: 2009, Err: "unsupported image type", RuErr: "Неподдерживаемый формат изображения"}
	ErrTemplateNotEditable     = DefinedError{Code: 2010, StatusCode: http.StatusForbidden, Err: "only the author can edit the template", RuErr: "Редактировать шаблон может только автор"}
	ErrTemplateTopicUnknown    = DefinedError{Code: 2011, Err: "unknown topic %s", RuErr: "Неизвестная тема %s"}

	// 3*** - form errors
	ErrFormNotFound        = DefinedError{Code: 3001, StatusCode: http.StatusNotFound, Err: "form not found", RuErr: "Форма не найдена"}
	ErrFormForbidden       = DefinedError{Code: 3002, StatusCode: http.StatusForbidden, Err: "form access denied", RuErr: "Нет доступа к форме"}
	ErrFormRequiredAnswer  = DefinedError{Code: 3003, Err: "answer for question %s is required", RuErr: "Ответ на вопрос %s обязателен"}
	ErrFormAnswersMismatch = DefinedError{Code: 3004, Err: "answers do not match template questions", RuErr: "Ответы не соответствуют вопросам шаблона"}
	ErrFormAnswerInvalid   = DefinedError{Code: 3005, Err: "invalid answer for question %s", RuErr: "Некорректный ответ на вопрос %s"}
	ErrFormEmailRequired   = DefinedError{Code: 3006, Err: "email address is required to send a copy", RuErr: "Для отправки копии нужен адрес почты"}

	// 4*** - comment and like errors
	ErrCommentEmpty    = DefinedError{Code: 4001, Err: "comment content is required", RuErr: "Комментарий не может быть пустым"}
	ErrAlreadyLiked    = DefinedError{Code: 4002, StatusCode: http.StatusConflict, Err: "template already liked", RuErr: "Шаблон уже отмечен"}
	ErrLikeNotFound    = DefinedError{Code: 4003, StatusCode: http.StatusNotFound, Err: "like not found", RuErr: "Отметка не найдена"}
	ErrCommentNotFound = DefinedError{Code: 4004, StatusCode: http.StatusNotFound, Err: "comment not found", RuErr: "Комментарий не найден"}

	// 5*** - validation and other errors
	ErrGeneric         = DefinedError{Code: 5000, Err: "bad request", RuErr: "Некорректный запрос"}
	ErrInvalidEmail    = DefinedError{Code: 5001, Err: "invalid email", RuErr: "Некорректный email"}
	ErrLimitTooHigh    = DefinedError{Code: 5002, Err: "limit too high", RuErr: "Превышен лимит выборки"}
	ErrPageOutOfRange  = DefinedError{Code: 5003, Err: "page out of range", RuErr: "Страница вне диапазона"}
	ErrInvalidPriority = DefinedError{Code: 5004, Err: "priority must be High, Average or Low", RuErr: "Приоритет должен быть High, Average или Low"}
	ErrEntityToLarge   = DefinedError{Code: 5010, StatusCode: http.StatusRequestEntityTooLarge, Err: "request entity too large", RuErr: "Превышен размер запроса"}

	// 6*** - user errors
	ErrUserNotFound       = DefinedError{Code: 6001, StatusCode: http.StatusNotFound, Err: "user not found", RuErr: "Пользователь не найден"}
	ErrNotAdmin           = DefinedError{Code: 6002, StatusCode: http.StatusForbidden, Err: "admin rights required", RuErr: "Требуются права администратора"}
	ErrCannotModifySelf   = DefinedError{Code: 6003, StatusCode: http.StatusForbidden, Err: "you cannot change your own role or block yourself", RuErr: "Нельзя изменить свою роль или заблокировать себя"}
	ErrInvalidRole        = DefinedError{Code: 6004, Err: "role must be USER or ADMIN", RuErr: "Роль должна быть USER или ADMIN"}
	ErrInvalidPreferences = DefinedError{Code: 6005, Err: "invalid language or theme", RuErr: "Некорректный язык или тема"}

	// 7*** - integration errors
	ErrCRMNotConfigured     = DefinedError{Code: 7001, StatusCode: http.StatusServiceUnavailable, Err: "CRM integration is not configured", RuErr: "Интеграция с CRM не настроена"}
	ErrCRMRequestFailed     = DefinedError{Code: 7002, StatusCode: http.StatusBadGateway, Err: "CRM request failed: %s", RuErr: "Ошибка запроса в CRM: %s"}
	ErrTabularNotConfigured = DefinedError{Code: 7003, StatusCode: http.StatusServiceUnavailable, Err: "tabular sync is not configured", RuErr: "Синхронизация таблиц не настроена"}
	ErrSupportTicketFailed  = DefinedError{Code: 7004, StatusCode: http.StatusBadGateway, Err: "failed to store support ticket", RuErr: "Не удалось сохранить обращение"}
	ErrStorageUnavailable   = DefinedError{Code: 7005, StatusCode: http.StatusServiceUnavailable, Err: "file storage unavailable", RuErr: "Файловое хранилище недоступно"}
)

func (e DefinedError) WithFormattedMessage(args ...interface{}) DefinedError {
	if len(args) > 0 {
		e.Err = fmt.Sprintf(e.Err, args...)
		e.RuErr = fmt.Sprintf(e.RuErr, args...)
	} else {
		e.Err = strings.Replace(e.Err, "%s", "", -1)
		e.RuErr = strings.Replace(e.RuErr, "%s", "", -1)
	}
	return e
}
