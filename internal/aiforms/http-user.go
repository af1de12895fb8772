// Обработчики пользователей: профиль текущего пользователя, лимиты и управление пользователями администратором.
package aiforms

import (
	"errors"
	"net/http"
	"strings"

	"github.com/aisa-it/aiforms/internal/aiforms/apierrors"
	"github.com/aisa-it/aiforms/internal/aiforms/dao"
	"github.com/aisa-it/aiforms/internal/aiforms/dto"
	"github.com/aisa-it/aiforms/pkg/limiter"
	"github.com/gofrs/uuid"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

type UserContext struct {
	AuthContext
	Target *dao.User
}

func (s *Services) AddUserServices(g *echo.Group) {
	g.PUT("users/me/", s.updateCurrentUser)
	g.GET("users/me/limits/", s.getMyLimits)

	g.GET("users/", s.getUserList, AdminMiddleware)
	g.GET("users/:userId/", s.getUser, AdminMiddleware, s.UserMiddleware)
	g.PUT("users/:userId/", s.updateUser, AdminMiddleware, s.UserMiddleware)
	g.DELETE("users/:userId/", s.deleteUser, AdminMiddleware, s.UserMiddleware)
	g.PATCH("users/:userId/role/", s.updateUserRole, AdminMiddleware, s.UserMiddleware)
	g.PATCH("users/:userId/block/", s.updateUserBlock, AdminMiddleware, s.UserMiddleware)
}

// UserMiddleware загружает пользователя :userId
func (s *Services) UserMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.(AuthContext)
		id, err := uuid.FromString(c.Param("userId"))
		if err != nil {
			return EErrorDefined(c, apierrors.ErrUserNotFound)
		}

		var user dao.User
		if err := s.db.Where("id = ?", id).First(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return EErrorDefined(c, apierrors.ErrUserNotFound)
			}
			return EError(c, err)
		}
		return next(UserContext{ctx, &user})
	}
}

// getUserList godoc
// @id getUserList
// @Summary Пользователи (администрирование): список пользователей
// @Description Поиск по подстроке в email и имени
// @Tags Users
// @Security ApiKeyAuth
// @Produce json
// @Param q query string false "Строка поиска"
// @Param page query int false "Страница" default(1)
// @Param limit query int false "Размер страницы" default(10)
// @Success 200 {object} dto.PaginatedResponse[dto.User] "Пользователи"
// @Failure 403 {object} apierrors.DefinedError "Требуются права администратора"
// @Router /api/auth/users [get]
func (s *Services) getUserList(c echo.Context) error {
	page, limit, err := bindPagination(c, defaultPageLimit)
	if err != nil {
		return EError(c, err)
	}

	query := s.db.Model(&dao.User{}).Order("email")
	if q := strings.ToLower(strings.TrimSpace(c.QueryParam("q"))); q != "" {
		like := "%" + q + "%"
		query = query.Where("lower(email) LIKE ? OR lower(name) LIKE ?", like, like)
	}

	res, err := dao.PaginationRequest[dao.User](page, limit, query)
	if err != nil {
		return EError(c, err)
	}
	return c.JSON(http.StatusOK, dao.PageToDTO(res, func(u *dao.User) dto.User { return *u.ToDTO() }))
}

// getUser godoc
// @id getUser
// @Summary Пользователи (администрирование): получение пользователя
// @Tags Users
// @Security ApiKeyAuth
// @Produce json
// @Param userId path string true "ID пользователя"
// @Success 200 {object} dto.User "Пользователь"
// @Failure 404 {object} apierrors.DefinedError "Пользователь не найден"
// @Router /api/auth/users/{userId} [get]
func (s *Services) getUser(c echo.Context) error {
	return c.JSON(http.StatusOK, c.(UserContext).Target.ToDTO())
}

// updateUser godoc
// @id updateUser
// @Summary Пользователи (администрирование): изменение профиля пользователя
// @Tags Users
// @Security ApiKeyAuth
// @Accept json
// @Produce json
// @Param userId path string true "ID пользователя"
// @Param data body dto.UserUpdateRequest true "Изменяемые поля"
// @Success 200 {object} dto.User "Пользователь"
// @Failure 400 {object} apierrors.DefinedError "Некорректные данные"
// @Router /api/auth/users/{userId} [put]
func (s *Services) updateUser(c echo.Context) error {
	return s.updateProfile(c, c.(UserContext).Target)
}

// updateCurrentUser godoc
// @id updateCurrentUser
// @Summary Пользователи: изменение своего профиля
// @Description Меняет имя, язык и тему интерфейса
// @Tags Users
// @Security ApiKeyAuth
// @Accept json
// @Produce json
// @Param data body dto.UserUpdateRequest true "Изменяемые поля"
// @Success 200 {object} dto.User "Пользователь"
// @Failure 400 {object} apierrors.DefinedError "Некорректный язык или тема"
// @Router /api/auth/users/me [put]
func (s *Services) updateCurrentUser(c echo.Context) error {
	return s.updateProfile(c, c.(AuthContext).User)
}

func (s *Services) updateProfile(c echo.Context, user *dao.User) error {
	var req dto.UserUpdateRequest
	if err := c.Bind(&req); err != nil {
		return EError(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return EErrorDefined(c, validationError(err))
	}

	if (req.Language != nil && !req.Language.Valid()) || (req.Theme != nil && !req.Theme.Valid()) {
		return EErrorDefined(c, apierrors.ErrInvalidPreferences)
	}

	if req.Name != nil {
		user.Name = strings.TrimSpace(*req.Name)
	}
	if req.Language != nil {
		user.Language = *req.Language
	}
	if req.Theme != nil {
		user.Theme = *req.Theme
	}

	if err := s.db.Select("name", "language", "theme", "updated_at").Updates(user).Error; err != nil {
		return EError(c, err)
	}
	return c.JSON(http.StatusOK, user.ToDTO())
}

// deleteUser godoc
// @id deleteUser
// @Summary Пользователи (администрирование): удаление пользователя
// @Description Удаляет пользователя вместе с его шаблонами, формами, лайками и комментариями
// @Tags Users
// @Security ApiKeyAuth
// @Param userId path string true "ID пользователя"
// @Success 200 "Пользователь удален"
// @Failure 403 {object} apierrors.DefinedError "Нельзя удалить себя"
// @Router /api/auth/users/{userId} [delete]
func (s *Services) deleteUser(c echo.Context) error {
	ctx := c.(UserContext)
	if ctx.Target.ID == ctx.User.ID {
		return EErrorDefined(c, apierrors.ErrCannotModifySelf)
	}

	if err := s.db.Transaction(func(tx *gorm.DB) error {
		return dao.DeleteUser(tx, ctx.Target)
	}); err != nil {
		return EError(c, err)
	}
	s.cache.InvalidateListings(c.Request().Context())
	return c.NoContent(http.StatusOK)
}

// updateUserRole godoc
// @id updateUserRole
// @Summary Пользователи (администрирование): изменение роли
// @Tags Users
// @Security ApiKeyAuth
// @Accept json
// @Produce json
// @Param userId path string true "ID пользователя"
// @Param data body dto.RoleRequest true "Роль"
// @Success 200 {object} dto.User "Пользователь"
// @Failure 400 {object} apierrors.DefinedError "Некорректная роль"
// @Failure 403 {object} apierrors.DefinedError "Нельзя изменить свою роль"
// @Router /api/auth/users/{userId}/role [patch]
func (s *Services) updateUserRole(c echo.Context) error {
	ctx := c.(UserContext)
	if ctx.Target.ID == ctx.User.ID {
		return EErrorDefined(c, apierrors.ErrCannotModifySelf)
	}

	var req dto.RoleRequest
	if err := c.Bind(&req); err != nil {
		return EError(c, err)
	}
	if !req.Role.Valid() {
		return EErrorDefined(c, apierrors.ErrInvalidRole)
	}

	ctx.Target.Role = req.Role
	if err := s.db.Model(ctx.Target).Update("role", req.Role).Error; err != nil {
		return EError(c, err)
	}
	return c.JSON(http.StatusOK, ctx.Target.ToDTO())
}

// updateUserBlock godoc
// @id updateUserBlock
// @Summary Пользователи (администрирование): блокировка
// @Description Блокировка сбрасывает все сессии пользователя
// @Tags Users
// @Security ApiKeyAuth
// @Accept json
// @Produce json
// @Param userId path string true "ID пользователя"
// @Param data body dto.BlockRequest true "Состояние блокировки"
// @Success 200 {object} dto.User "Пользователь"
// @Failure 403 {object} apierrors.DefinedError "Нельзя заблокировать себя"
// @Router /api/auth/users/{userId}/block [patch]
func (s *Services) updateUserBlock(c echo.Context) error {
	ctx := c.(UserContext)
	if ctx.Target.ID == ctx.User.ID {
		return EErrorDefined(c, apierrors.ErrCannotModifySelf)
	}

	var req dto.BlockRequest
	if err := c.Bind(&req); err != nil {
		return EError(c, err)
	}

	ctx.Target.Blocked = req.Blocked
	if err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(ctx.Target).Update("blocked", req.Blocked).Error; err != nil {
			return err
		}
		if req.Blocked {
			return dao.ResetSessions(tx, ctx.Target.ID)
		}
		return nil
	}); err != nil {
		return EError(c, err)
	}
	return c.JSON(http.StatusOK, ctx.Target.ToDTO())
}

// getMyLimits godoc
// @id getMyLimits
// @Summary Пользователи: лимиты тарифа
// @Tags Users
// @Security ApiKeyAuth
// @Produce json
// @Success 200 {object} limiter.LimitsInfo "Лимиты"
// @Router /api/auth/users/me/limits [get]
func (s *Services) getMyLimits(c echo.Context) error {
	var info limiter.LimitsInfo = s.limiter.GetLimitsInfo(c.Request().Context(), c.(AuthContext).User.ID)
	return c.JSON(http.StatusOK, info)
}
