// Аутентификация пользователей сервиса форм.
//
// Основные возможности:
//   - Регистрация и вход по email и паролю с проверкой капчи.
//   - Пара JWT токенов (access и refresh) в заголовке Authorization или в куках.
//   - Продление просроченного access токена по refresh токену с отзывом старого refresh токена.
//   - Черный список токенов (BoltDB) и сброс всех сессий пользователя.
//   - Временная блокировка входа после пяти неудачных попыток.
package aiforms

import (
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/aisa-it/aiforms/internal/aiforms/apierrors"
	"github.com/aisa-it/aiforms/internal/aiforms/dao"
	"github.com/aisa-it/aiforms/internal/aiforms/dto"
	"github.com/aisa-it/aiforms/internal/aiforms/sessions"
	"github.com/aisa-it/aiforms/internal/aiforms/types"
	"github.com/go-playground/validator"
	"github.com/gofrs/uuid"
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"gorm.io/gorm"
)

const (
	maxLoginAttempts = 5
	loginBlockPeriod = 20 * time.Minute

	// Заголовки с новой парой токенов после продления, для клиентов без кук
	HeaderAccessToken  = "X-Access-Token"
	HeaderRefreshToken = "X-Refresh-Token"
)

type AuthContext struct {
	echo.Context
	User         *dao.User
	AccessToken  *Token
	RefreshToken *Token
}

type AuthConfig struct {
	Secret         []byte
	DB             *gorm.DB
	SessionManager *sessions.SessionsManager
	Skipper        middleware.Skipper
	// Optional пропускает анонимные запросы с User == nil
	Optional bool
}

func AuthMiddleware(config AuthConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().Method == http.MethodOptions {
				return c.NoContent(http.StatusOK)
			}

			if config.Skipper != nil && config.Skipper(c) {
				return next(c)
			}

			accessToken, refreshToken := tokensFromRequest(c)
			if accessToken == nil && refreshToken == nil {
				if config.Optional {
					return next(AuthContext{Context: c})
				}
				return EErrorDefined(c, apierrors.ErrAccessTokenRequired)
			}

			user, accessToken, err := config.authenticate(c, accessToken, refreshToken)
			if err != nil {
				if config.Optional {
					return next(AuthContext{Context: c})
				}
				return EError(c, err)
			}

			if user.Blocked {
				return EErrorDefined(c, apierrors.ErrUserBlocked)
			}

			return next(AuthContext{c, user, accessToken, refreshToken})
		}
	}
}

// Токены из заголовка Authorization: Bearer и кук access_token/refresh_token
func tokensFromRequest(c echo.Context) (accessToken, refreshToken *Token) {
	if schema, tokenString, ok := strings.Cut(c.Request().Header.Get(echo.HeaderAuthorization), " "); ok && strings.EqualFold(schema, "Bearer") {
		accessToken = &Token{SignedString: strings.TrimSpace(tokenString), Type: "access"}
	} else if accessCookie, err := c.Cookie("access_token"); err == nil && accessCookie.Value != "" {
		accessToken = &Token{SignedString: accessCookie.Value, Type: "access"}
	}

	if refreshCookie, err := c.Cookie("refresh_token"); err == nil && refreshCookie.Value != "" {
		refreshToken = &Token{SignedString: refreshCookie.Value, Type: "refresh"}
	}
	return accessToken, refreshToken
}

func (a *AuthConfig) keyFunc(token *jwt.Token) (interface{}, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return a.Secret, nil
}

// authenticate проверяет токены запроса и возвращает пользователя.
// Просроченный access токен продлевается по refresh токену, новая пара выставляется в куки и заголовки ответа.
func (a *AuthConfig) authenticate(c echo.Context, accessToken, refreshToken *Token) (*dao.User, *Token, error) {
	var accessError error
	if accessToken != nil {
		accessToken.JWT, accessError = jwt.Parse(accessToken.SignedString, a.keyFunc)
	}

	if refreshToken != nil {
		var err error
		refreshToken.JWT, err = jwt.Parse(refreshToken.SignedString, a.keyFunc)
		if err != nil && (accessToken == nil || accessError != nil) {
			if errors.Is(err, jwt.ErrTokenExpired) {
				return nil, nil, apierrors.ErrTokenExpired
			}
			return nil, nil, apierrors.ErrTokenInvalid
		}
	}

	// Prolong if expired
	if accessToken == nil || errors.Is(accessError, jwt.ErrTokenExpired) {
		return a.tokenProlong(c, refreshToken)
	}
	if accessError != nil {
		return nil, nil, apierrors.ErrTokenInvalid
	}

	blacklisted, err := a.SessionManager.IsTokenBlacklisted(accessToken.JWT.Signature)
	if err != nil {
		return nil, nil, err
	}
	if blacklisted {
		return nil, nil, apierrors.ErrTokenExpired
	}

	user, err := a.userFromToken(accessToken, "access")
	if err != nil {
		return nil, nil, err
	}
	return user, accessToken, nil
}

func (a *AuthConfig) tokenProlong(c echo.Context, token *Token) (*dao.User, *Token, error) {
	if token == nil || token.JWT == nil {
		return nil, nil, apierrors.ErrRefreshTokenRequired
	}

	// Check if token not blacklisted
	blacklisted, err := a.SessionManager.IsTokenBlacklisted(token.JWT.Signature)
	if err != nil {
		return nil, nil, err
	}
	if blacklisted {
		return nil, nil, apierrors.ErrTokenExpired
	}

	user, err := a.userFromToken(token, "refresh")
	if err != nil {
		return nil, nil, err
	}

	// Blacklist old refresh token
	if err := a.SessionManager.BlacklistToken(token.JWT.Signature); err != nil {
		return nil, nil, err
	}

	accessToken, refreshToken, err := createTokens(a.Secret, user.ID.String())
	if err != nil {
		return nil, nil, err
	}
	setAuthCookies(c, accessToken, refreshToken)
	c.Response().Header().Set(HeaderAccessToken, accessToken.SignedString)
	c.Response().Header().Set(HeaderRefreshToken, refreshToken.SignedString)

	return user, accessToken, nil
}

// userFromToken загружает пользователя из claims токена и проверяет, что токен выдан после последнего сброса сессий.
func (a *AuthConfig) userFromToken(token *Token, tokenType string) (*dao.User, error) {
	claims, ok := token.JWT.Claims.(jwt.MapClaims)
	if !ok || !token.JWT.Valid {
		return nil, apierrors.ErrTokenInvalid
	}
	if t, _ := claims["token_type"].(string); t != tokenType {
		return nil, apierrors.ErrTokenInvalid
	}

	rawID, _ := claims["user_id"].(string)
	userID, err := uuid.FromString(rawID)
	if err != nil {
		return nil, apierrors.ErrTokenInvalid
	}

	var user dao.User
	if err := a.DB.Where("id = ?", userID).First(&user).Error; err != nil {
		return nil, apierrors.ErrTokenInvalid
	}

	issued, err := claims.GetIssuedAt()
	if err != nil || issued == nil {
		return nil, apierrors.ErrTokenInvalid
	}
	reseted, err := dao.LastSessionReset(a.DB, user.ID)
	if err != nil {
		return nil, err
	}
	// iat has second precision
	if reseted.Truncate(time.Second).After(issued.Time) {
		return nil, apierrors.ErrSessionReset
	}
	return &user, nil
}

type Authentication struct {
	db       *gorm.DB
	secret   []byte
	sessions *sessions.SessionsManager
	services *Services
}

func (s *Services) AddAuthenticationServices(api *echo.Group, auth *echo.Group) *Authentication {
	ret := &Authentication{s.db, []byte(s.cfg.SecretKey), s.sessions, s}

	api.GET("captcha/", ret.requestCaptcha)
	auth.POST("register/", ret.register)
	auth.POST("login/", ret.emailLogin)
	auth.GET("me/", ret.me)
	auth.POST("logout/", ret.logout)
	return ret
}

// Пути авторизации, не требующие токена
func publicAuthPath(c echo.Context) bool {
	p := c.Path()
	return p == "/api/auth/register/" || p == "/api/auth/login/"
}

// register godoc
// @id register
// @Summary Пользователи (управление доступом): регистрация
// @Description Создает пользователя с ролью USER и сразу выдает пару токенов
// @Tags Users
// @Accept json
// @Produce json
// @Param data body dto.RegisterRequest true "Данные регистрации"
// @Success 201 {object} dto.AuthResponse "Токены и пользователь"
// @Failure 400 {object} apierrors.DefinedError "Некорректные данные"
// @Failure 403 {object} apierrors.DefinedError "Регистрация отключена"
// @Router /api/auth/register [post]
func (a *Authentication) register(c echo.Context) error {
	if !a.services.cfg.SignUpEnable {
		return EErrorDefined(c, apierrors.ErrSignupDisabled)
	}

	var req dto.RegisterRequest
	if err := c.Bind(&req); err != nil {
		return EError(c, err)
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	if !a.services.captcha.Validate(req.CaptchaPayload) {
		return EErrorDefined(c, apierrors.ErrCaptchaFail)
	}

	if err := c.Validate(&req); err != nil {
		return EErrorDefined(c, validationError(err))
	}

	var exist int64
	if err := a.db.Model(&dao.User{}).Where("email = ?", req.Email).Count(&exist).Error; err != nil {
		return EError(c, err)
	}
	if exist > 0 {
		return EErrorDefined(c, apierrors.ErrUserAlreadyExist)
	}

	tm := time.Now()
	user := dao.User{
		ID:        dao.GenUUID(),
		Email:     req.Email,
		Name:      strings.TrimSpace(req.Name),
		Password:  dao.GenPasswordHash(req.Password),
		Role:      types.RoleUser,
		IsActive:  true,
		LastLogin: &tm,
	}
	if err := a.db.Create(&user).Error; err != nil {
		return EError(c, err)
	}
	slog.Info("User registered", "email", user.Email)

	return a.issueTokens(c, http.StatusCreated, &user)
}

// Ошибка проверки тела регистрации по первому неверному полю
func validationError(err error) apierrors.DefinedError {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		switch verrs[0].Field() {
		case "Email":
			return apierrors.ErrInvalidEmail
		case "Password":
			return apierrors.ErrWeakPassword
		}
		e := apierrors.ErrGeneric
		e.Err = fmt.Sprintf("invalid %s", strings.ToLower(verrs[0].Field()))
		return e
	}
	return apierrors.ErrGeneric
}

// emailLogin godoc
// @id emailLogin
// @Summary Пользователи (управление доступом): вход пользователя
// @Description Аутентифицирует пользователя по email и паролю с проверкой капчи
// @Tags Users
// @Accept json
// @Produce json
// @Param data body dto.LoginRequest true "Данные для входа пользователя"
// @Success 200 {object} dto.AuthResponse "Токены доступа и информация о пользователе"
// @Failure 400 {object} apierrors.DefinedError "Некорректные данные запроса"
// @Failure 401 {object} apierrors.DefinedError "Неудачный вход в систему"
// @Router /api/auth/login [post]
func (a *Authentication) emailLogin(c echo.Context) error {
	var req dto.LoginRequest
	if err := c.Bind(&req); err != nil {
		return EError(c, err)
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	if !a.services.captcha.Validate(req.CaptchaPayload) {
		return EErrorDefined(c, apierrors.ErrCaptchaFail)
	}

	if req.Email == "" || req.Password == "" {
		return EErrorDefined(c, apierrors.ErrLoginCredentialsRequired)
	}

	if !ValidateEmail(req.Email) {
		return EErrorDefined(c, apierrors.ErrInvalidEmail)
	}

	var user dao.User
	if err := a.db.Where("email = ?", req.Email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return EErrorDefined(c, apierrors.ErrFailedLogin)
		}
		return EError(c, err)
	}

	if user.BlockedUntil != nil && user.BlockedUntil.After(time.Now()) {
		return EErrorDefined(c, apierrors.ErrBlockedUntil.WithFormattedMessage(user.BlockedUntil.Format("02.01.2006 15:04")))
	}

	if user.Blocked {
		return EErrorDefined(c, apierrors.ErrUserBlocked)
	}

	if !user.IsActive {
		return EErrorDefined(c, apierrors.ErrLoginTriesExceed)
	}

	if !dao.CheckPassword(req.Password, user.Password) {
		user.LoginAttempts++

		// block after 5 fails
		if user.LoginAttempts >= maxLoginAttempts {
			slog.Info("Block user for failed login attempts", "email", user.Email, "attempts", user.LoginAttempts)
			until := time.Now().Add(loginBlockPeriod)
			user.BlockedUntil = &until
			user.LoginAttempts = 0
		}

		if err := a.db.Model(&user).Select("LoginAttempts", "BlockedUntil").Updates(&user).Error; err != nil {
			return EError(c, err)
		}

		if user.BlockedUntil != nil && user.BlockedUntil.After(time.Now()) {
			if err := a.services.email.UserBlockedUntil(user.Email, *user.BlockedUntil); err != nil {
				slog.Error("Send user blocked email", "email", user.Email, "err", err)
			}
			return EErrorDefined(c, apierrors.ErrBlockedUntil.WithFormattedMessage(user.BlockedUntil.Format("02.01.2006 15:04")))
		}

		return EErrorDefined(c, apierrors.ErrFailedLogin)
	}

	tm := time.Now()
	user.LastLogin = &tm
	user.LoginAttempts = 0
	user.BlockedUntil = nil
	if err := a.db.Model(&user).Select("LastLogin", "LoginAttempts", "BlockedUntil").Updates(&user).Error; err != nil {
		return EError(c, err)
	}

	return a.issueTokens(c, http.StatusOK, &user)
}

func (a *Authentication) issueTokens(c echo.Context, status int, user *dao.User) error {
	accessToken, refreshToken, err := createTokens(a.secret, user.ID.String())
	if err != nil {
		return EError(c, err)
	}

	setAuthCookies(c, accessToken, refreshToken)

	return c.JSON(status, dto.AuthResponse{
		Token:        accessToken.SignedString,
		RefreshToken: refreshToken.SignedString,
		User:         user.ToDTO(),
	})
}

// me godoc
// @id getMe
// @Summary Пользователи: текущий пользователь
// @Tags Users
// @Security ApiKeyAuth
// @Produce json
// @Success 200 {object} dto.User "Пользователь"
// @Failure 401 {object} apierrors.DefinedError "Требуется авторизация"
// @Router /api/auth/me [get]
func (a *Authentication) me(c echo.Context) error {
	return c.JSON(http.StatusOK, c.(AuthContext).User.ToDTO())
}

// logout godoc
// @id logout
// @Summary Пользователи (управление доступом): выход
// @Description Отзывает токены текущей сессии и очищает куки
// @Tags Users
// @Security ApiKeyAuth
// @Success 200 "Выход выполнен"
// @Router /api/auth/logout [post]
func (a *Authentication) logout(c echo.Context) error {
	ctx := c.(AuthContext)
	for _, t := range []*Token{ctx.AccessToken, ctx.RefreshToken} {
		if t == nil || t.JWT == nil {
			continue
		}
		if err := a.sessions.BlacklistToken(t.JWT.Signature); err != nil {
			return EError(c, err)
		}
	}
	clearAuthCookies(c)
	return c.NoContent(http.StatusOK)
}

// requestCaptcha godoc
// @id requestCaptcha
// @Summary Пользователи (управление доступом): запрос капчи
// @Description Генерирует задачу altcha для регистрации и входа
// @Tags Users
// @Produce json
// @Success 200 {object} altcha.Challenge "Капча успешно создана"
// @Router /api/captcha [get]
func (a *Authentication) requestCaptcha(c echo.Context) error {
	challenge, err := a.services.captcha.Challenge()
	if err != nil {
		return EError(c, err)
	}
	return c.JSON(http.StatusOK, challenge)
}

// Проверка email на корректность
func ValidateEmail(email string) bool {
	_, err := mail.ParseAddress(email)
	return err == nil
}

type Token struct {
	JWT          *jwt.Token
	SignedString string
	Type         string
}

// Генерация пары токенов доступа
func createTokens(secret []byte, userID string) (*Token, *Token, error) {
	ta, err := GenJwtToken(secret, "access", userID)
	if err != nil {
		return nil, nil, err
	}

	tr, err := GenJwtToken(secret, "refresh", userID)
	if err != nil {
		return nil, nil, err
	}
	return ta, tr, nil
}

// Генерация JWT ключа
func GenJwtToken(secret []byte, tokenType string, userID string) (*Token, error) {
	u, _ := uuid.NewV4()
	claims := jwt.MapClaims{
		"exp":        jwt.NewNumericDate(time.Now().Add(types.TokenExpiresPeriod)),
		"iat":        jwt.NewNumericDate(time.Now()),
		"jti":        fmt.Sprintf("%x", u),
		"token_type": tokenType,
		"user_id":    userID,
	}
	if tokenType == "refresh" {
		claims["exp"] = jwt.NewNumericDate(time.Now().Add(types.RefreshTokenExpiresPeriod))
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedString, err := token.SignedString(secret)
	if err != nil {
		return nil, err
	}

	sigStr := signedString[strings.LastIndex(signedString, ".")+1:]
	sig, err := base64.RawURLEncoding.DecodeString(sigStr)
	if err != nil {
		return nil, err
	}
	token.Signature = sig

	return &Token{
		JWT:          token,
		SignedString: signedString,
		Type:         tokenType,
	}, nil
}

func authCookie(name, value string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		HttpOnly: true,
		Secure:   true,
		Path:     "/",
		SameSite: http.SameSiteNoneMode,
	}
}

func setAuthCookies(c echo.Context, accessToken *Token, refreshToken *Token) {
	accessCookie := authCookie("access_token", accessToken.SignedString)
	accessCookie.Expires = time.Now().Add(types.TokenExpiresPeriod)
	c.SetCookie(accessCookie)

	refreshCookie := authCookie("refresh_token", refreshToken.SignedString)
	refreshCookie.Expires = time.Now().Add(types.RefreshTokenExpiresPeriod)
	c.SetCookie(refreshCookie)
}

func clearAuthCookies(c echo.Context) {
	for _, name := range []string{"access_token", "refresh_token"} {
		cookie := authCookie(name, "")
		cookie.MaxAge = -1
		c.SetCookie(cookie)
	}
}
