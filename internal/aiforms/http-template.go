// Обработчики шаблонов: создание и редактирование, поиск и подборки, ответы и статистика, экспорт, лайки и комментарии.
package aiforms

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aisa-it/aiforms/internal/aiforms/aggregation"
	"github.com/aisa-it/aiforms/internal/aiforms/apierrors"
	"github.com/aisa-it/aiforms/internal/aiforms/cache"
	"github.com/aisa-it/aiforms/internal/aiforms/dao"
	"github.com/aisa-it/aiforms/internal/aiforms/dto"
	"github.com/aisa-it/aiforms/internal/aiforms/export"
	"github.com/aisa-it/aiforms/internal/aiforms/search"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

const (
	homeListLimit   = 4
	popularTagLimit = 50
)

func (s *Services) AddTemplateServices(g *echo.Group) {
	g.POST("templates/", s.createTemplate)
	g.POST("templates/upload-image/", s.uploadImage)
	g.GET("user/templates/", s.getUserTemplates)

	templateGroup := g.Group("templates/:templateId/", s.TemplateMiddleware)
	templateGroup.PUT("", s.updateTemplate, TemplateManagerMiddleware)
	templateGroup.DELETE("", s.deleteTemplate, TemplateManagerMiddleware)
	templateGroup.GET("forms/", s.getTemplateForms, TemplateManagerMiddleware)
	templateGroup.GET("stats/", s.getTemplateStats, TemplateManagerMiddleware)
	templateGroup.GET("export/pdf/", s.exportTemplatePDF, TemplateManagerMiddleware)
	templateGroup.GET("export/md/", s.exportTemplateMarkdown, TemplateManagerMiddleware)

	templateGroup.GET("like/", s.getLikeStatus)
	templateGroup.POST("like/", s.likeTemplate)
	templateGroup.DELETE("like/", s.unlikeTemplate)
}

func (s *Services) AddTemplateWithoutAuthServices(g *echo.Group) {
	g.GET("templates/search/", s.searchTemplates)
	g.GET("templates/latest/", s.getLatestTemplates)
	g.GET("templates/popular/", s.getPopularTemplates)
	g.GET("templates/tags/popular/", s.getPopularTags)
	g.GET("templates/tag/:tag/", s.getTemplatesByTag)

	templateGroup := g.Group("templates/:templateId/", s.TemplateMiddleware)
	templateGroup.GET("", s.getTemplate)
	templateGroup.GET("comments/", s.getComments)
	templateGroup.POST("comments/", s.createComment)
}

// createTemplate godoc
// @id createTemplate
// @Summary Шаблоны: создание шаблона
// @Description Принимает JSON или multipart форму (questions, tags, allowedUsers JSON строками, image файлом)
// @Tags Templates
// @Security ApiKeyAuth
// @Accept json,mpfd
// @Produce json
// @Param data body dto.TemplatePayload true "Шаблон"
// @Success 201 {object} dto.Template "Созданный шаблон"
// @Failure 400 {object} apierrors.DefinedError "Некорректный шаблон"
// @Failure 402 {object} apierrors.DefinedError "Достигнут лимит шаблонов"
// @Router /api/auth/templates [post]
func (s *Services) createTemplate(c echo.Context) error {
	user := c.(AuthContext).User

	if !s.limiter.CanCreateTemplate(c.Request().Context(), user.ID) {
		return EErrorDefined(c, apierrors.ErrTemplateLimitReached)
	}

	tmpl := &dao.Template{AuthorID: user.ID}
	if err := s.saveTemplate(c, user, tmpl); err != nil {
		return EError(c, err)
	}
	return c.JSON(http.StatusCreated, tmpl.ToDTO())
}

// updateTemplate godoc
// @id updateTemplate
// @Summary Шаблоны: изменение шаблона
// @Description Заменяет поля, теги, список допуска и вопросы. Вопросы с известным id сохраняют ответы.
// @Tags Templates
// @Security ApiKeyAuth
// @Accept json,mpfd
// @Produce json
// @Param templateId path string true "ID шаблона"
// @Param data body dto.TemplatePayload true "Шаблон"
// @Success 200 {object} dto.Template "Шаблон"
// @Failure 400 {object} apierrors.DefinedError "Некорректный шаблон"
// @Failure 403 {object} apierrors.DefinedError "Нет прав"
// @Router /api/auth/templates/{templateId} [put]
func (s *Services) updateTemplate(c echo.Context) error {
	ctx := c.(TemplateContext)
	if err := s.saveTemplate(c, ctx.User, ctx.Template); err != nil {
		return EError(c, err)
	}
	return c.JSON(http.StatusOK, ctx.Template.ToDTO())
}

// saveTemplate разбирает запрос, при необходимости загружает картинку и сохраняет шаблон в транзакции
func (s *Services) saveTemplate(c echo.Context, user *dao.User, tmpl *dao.Template) error {
	payload, file, err := bindTemplatePayload(c)
	if err != nil {
		return err
	}
	if err := c.Validate(&payload); err != nil {
		return validationError(err)
	}
	if err := normalizeTemplatePayload(&payload); err != nil {
		return err
	}

	if file != nil {
		if !s.limiter.CanUploadImage(c.Request().Context(), user.ID) {
			return apierrors.ErrTemplateLimitReached
		}
		url, err := s.saveImage(c, file)
		if err != nil {
			return err
		}
		payload.ImageURL = &url
	}

	if err := s.db.Transaction(func(tx *gorm.DB) error {
		return dao.ApplyTemplatePayload(tx, tmpl, payload)
	}); err != nil {
		return err
	}

	fresh, err := dao.GetTemplate(s.db, tmpl.ID.String())
	if err != nil {
		return err
	}
	*tmpl = *fresh

	s.cache.InvalidateListings(c.Request().Context())
	return nil
}

// deleteTemplate godoc
// @id deleteTemplate
// @Summary Шаблоны: удаление шаблона
// @Description Удаляет шаблон вместе с заполненными формами, лайками и комментариями
// @Tags Templates
// @Security ApiKeyAuth
// @Param templateId path string true "ID шаблона"
// @Success 200 "Шаблон удален"
// @Failure 403 {object} apierrors.DefinedError "Нет прав"
// @Router /api/auth/templates/{templateId} [delete]
func (s *Services) deleteTemplate(c echo.Context) error {
	tmpl := c.(TemplateContext).Template
	if err := s.db.Transaction(func(tx *gorm.DB) error {
		return dao.DeleteTemplate(tx, tmpl)
	}); err != nil {
		return EError(c, err)
	}
	s.cache.InvalidateListings(c.Request().Context())
	return c.NoContent(http.StatusOK)
}

// getTemplate godoc
// @id getTemplate
// @Summary Шаблоны: получение шаблона
// @Description Публичный шаблон доступен всем, RESTRICTED только автору, списку допуска и администраторам
// @Tags Templates
// @Produce json
// @Param templateId path string true "ID шаблона"
// @Success 200 {object} dto.Template "Шаблон"
// @Failure 403 {object} apierrors.DefinedError "Нет доступа"
// @Failure 404 {object} apierrors.DefinedError "Шаблон не найден"
// @Router /api/templates/{templateId} [get]
func (s *Services) getTemplate(c echo.Context) error {
	ctx := c.(TemplateContext)
	resp := ctx.Template.ToDTO()
	if ctx.User != nil {
		liked, err := dao.IsLiked(s.db, ctx.Template.ID, ctx.User.ID)
		if err != nil {
			return EError(c, err)
		}
		resp.LikedByMe = liked
	}
	return c.JSON(http.StatusOK, resp)
}

// uploadImage godoc
// @id uploadTemplateImage
// @Summary Шаблоны: загрузка картинки
// @Description Уменьшает картинку и возвращает ее адрес для поля imageUrl
// @Tags Templates
// @Security ApiKeyAuth
// @Accept mpfd
// @Produce json
// @Param image formData file true "Картинка"
// @Success 200 {object} dto.ImageUploadResponse "Адрес картинки"
// @Failure 400 {object} apierrors.DefinedError "Неподдерживаемый формат"
// @Router /api/auth/templates/upload-image [post]
func (s *Services) uploadImage(c echo.Context) error {
	user := c.(AuthContext).User
	if !s.limiter.CanUploadImage(c.Request().Context(), user.ID) {
		return EErrorDefined(c, apierrors.ErrTemplateLimitReached)
	}

	file, err := c.FormFile("image")
	if err != nil {
		return EErrorDefined(c, apierrors.ErrImageUnsupported)
	}

	url, err := s.saveImage(c, file)
	if err != nil {
		return EError(c, err)
	}
	return c.JSON(http.StatusOK, dto.ImageUploadResponse{URL: url})
}

// searchTemplates godoc
// @id searchTemplates
// @Summary Шаблоны: поиск
// @Description Ищет подстроку в названии, описании и тегах без учета регистра среди доступных шаблонов
// @Tags Templates
// @Produce json
// @Param q query string false "Строка поиска"
// @Param page query int false "Страница" default(1)
// @Param limit query int false "Размер страницы" default(8)
// @Success 200 {object} dto.SearchResult "Найденные шаблоны"
// @Failure 400 {object} apierrors.DefinedError "Некорректные параметры"
// @Router /api/templates/search [get]
func (s *Services) searchTemplates(c echo.Context) error {
	page, limit, err := bindPagination(c, search.DefaultLimit)
	if err != nil {
		return EError(c, err)
	}
	q := c.QueryParam("q")

	query := s.db.Model(&dao.Template{}).
		Scopes(dao.VisibleTo(c.(AuthContext).User), dao.SearchScope(q)).
		Order("templates.created_at DESC")

	res, err := dao.PaginationRequest[dao.Template](page, limit, query, dao.WithCounters, dao.WithListPreloads)
	if err != nil {
		return EError(c, err)
	}

	return c.JSON(http.StatusOK, dto.SearchResult{
		Templates: lightTemplates(res.Items),
		Total:     res.Total,
	})
}

// getLatestTemplates godoc
// @id getLatestTemplates
// @Summary Шаблоны: последние публичные шаблоны
// @Tags Templates
// @Produce json
// @Success 200 {array} dto.TemplateLight "Шаблоны"
// @Router /api/templates/latest [get]
func (s *Services) getLatestTemplates(c echo.Context) error {
	templates, err := cache.Remember(c.Request().Context(), s.cache, cache.KeyLatestTemplates, func() ([]dto.TemplateLight, error) {
		return s.homeTemplates("templates.created_at DESC")
	})
	if err != nil {
		return EError(c, err)
	}
	return c.JSON(http.StatusOK, templates)
}

// getPopularTemplates godoc
// @id getPopularTemplates
// @Summary Шаблоны: популярные публичные шаблоны по числу заполненных форм
// @Tags Templates
// @Produce json
// @Success 200 {array} dto.TemplateLight "Шаблоны"
// @Router /api/templates/popular [get]
func (s *Services) getPopularTemplates(c echo.Context) error {
	templates, err := cache.Remember(c.Request().Context(), s.cache, cache.KeyPopularTemplates, func() ([]dto.TemplateLight, error) {
		return s.homeTemplates("forms_count DESC, templates.created_at DESC")
	})
	if err != nil {
		return EError(c, err)
	}
	return c.JSON(http.StatusOK, templates)
}

// Подборка публичных шаблонов для главной страницы
func (s *Services) homeTemplates(order string) ([]dto.TemplateLight, error) {
	var templates []dao.Template
	if err := s.db.
		Scopes(dao.WithCounters, dao.WithListPreloads, dao.VisibleTo(nil)).
		Order(order).
		Limit(homeListLimit).
		Find(&templates).Error; err != nil {
		return nil, err
	}
	return lightTemplates(templates), nil
}

// getPopularTags godoc
// @id getPopularTags
// @Summary Шаблоны: популярные теги
// @Tags Templates
// @Produce json
// @Success 200 {array} dto.TagCount "Теги с числом шаблонов"
// @Router /api/templates/tags/popular [get]
func (s *Services) getPopularTags(c echo.Context) error {
	tags, err := cache.Remember(c.Request().Context(), s.cache, cache.KeyPopularTags, func() ([]dto.TagCount, error) {
		return dao.PopularTags(s.db, popularTagLimit)
	})
	if err != nil {
		return EError(c, err)
	}
	return c.JSON(http.StatusOK, tags)
}

// getTemplatesByTag godoc
// @id getTemplatesByTag
// @Summary Шаблоны: шаблоны с тегом
// @Tags Templates
// @Produce json
// @Param tag path string true "Тег"
// @Param page query int false "Страница" default(1)
// @Param limit query int false "Размер страницы" default(10)
// @Success 200 {object} dto.PaginatedResponse[dto.TemplateLight] "Шаблоны"
// @Router /api/templates/tag/{tag} [get]
func (s *Services) getTemplatesByTag(c echo.Context) error {
	page, limit, err := bindPagination(c, defaultPageLimit)
	if err != nil {
		return EError(c, err)
	}

	query := s.db.Model(&dao.Template{}).
		Scopes(dao.VisibleTo(c.(AuthContext).User), dao.TaggedWith(c.Param("tag"))).
		Order("templates.created_at DESC")

	res, err := dao.PaginationRequest[dao.Template](page, limit, query, dao.WithCounters, dao.WithListPreloads)
	if err != nil {
		return EError(c, err)
	}
	return c.JSON(http.StatusOK, dao.PageToDTO(res, templateToLight))
}

// getUserTemplates godoc
// @id getUserTemplates
// @Summary Шаблоны: шаблоны текущего пользователя
// @Tags Templates
// @Security ApiKeyAuth
// @Produce json
// @Param page query int false "Страница" default(1)
// @Param limit query int false "Размер страницы" default(10)
// @Success 200 {object} dto.PaginatedResponse[dto.TemplateLight] "Шаблоны"
// @Router /api/auth/user/templates [get]
func (s *Services) getUserTemplates(c echo.Context) error {
	page, limit, err := bindPagination(c, defaultPageLimit)
	if err != nil {
		return EError(c, err)
	}

	query := s.db.Model(&dao.Template{}).
		Where("templates.author_id = ?", c.(AuthContext).User.ID).
		Order("templates.created_at DESC")

	res, err := dao.PaginationRequest[dao.Template](page, limit, query, dao.WithCounters, dao.WithListPreloads)
	if err != nil {
		return EError(c, err)
	}
	return c.JSON(http.StatusOK, dao.PageToDTO(res, templateToLight))
}

// getTemplateForms godoc
// @id getTemplateForms
// @Summary Шаблоны: заполненные формы шаблона
// @Tags Templates
// @Security ApiKeyAuth
// @Produce json
// @Param templateId path string true "ID шаблона"
// @Param page query int false "Страница" default(1)
// @Param limit query int false "Размер страницы" default(10)
// @Success 200 {object} dto.PaginatedResponse[dto.Form] "Формы"
// @Failure 403 {object} apierrors.DefinedError "Нет прав"
// @Router /api/auth/templates/{templateId}/forms [get]
func (s *Services) getTemplateForms(c echo.Context) error {
	page, limit, err := bindPagination(c, aggregation.DefaultPageSize)
	if err != nil {
		return EError(c, err)
	}

	query := s.db.Model(&dao.Form{}).
		Where("forms.template_id = ?", c.(TemplateContext).Template.ID).
		Order("forms.created_at")

	res, err := dao.PaginationRequest[dao.Form](page, limit, query, dao.FormPreloads)
	if err != nil {
		return EError(c, err)
	}
	if res.Page > 1 && res.Page > res.TotalPages {
		return EErrorDefined(c, apierrors.ErrPageOutOfRange)
	}
	return c.JSON(http.StatusOK, dao.PageToDTO(res, func(f *dao.Form) dto.Form { return *f.ToDTO() }))
}

// getTemplateStats godoc
// @id getTemplateStats
// @Summary Шаблоны: статистика ответов
// @Description С параметром format=md возвращает статистику в markdown
// @Tags Templates
// @Security ApiKeyAuth
// @Produce json,text/markdown
// @Param templateId path string true "ID шаблона"
// @Param format query string false "json или md"
// @Success 200 {object} dto.TemplateStats "Статистика"
// @Failure 403 {object} apierrors.DefinedError "Нет прав"
// @Router /api/auth/templates/{templateId}/stats [get]
func (s *Services) getTemplateStats(c echo.Context) error {
	tmpl := c.(TemplateContext).Template
	stats, err := dao.TemplateStats(s.db, tmpl)
	if err != nil {
		return EError(c, err)
	}

	if c.QueryParam("format") == "md" {
		var buf bytes.Buffer
		if err := export.StatsToMarkdown(tmpl.Title, stats, &buf); err != nil {
			return EError(c, err)
		}
		return c.Blob(http.StatusOK, "text/markdown; charset=utf-8", buf.Bytes())
	}
	return c.JSON(http.StatusOK, stats)
}

// responsesTable собирает таблицу всех ответов шаблона
func (s *Services) responsesTable(tmpl *dao.Template) (aggregation.Table, error) {
	var forms []dao.Form
	if err := s.db.Scopes(dao.FormPreloads).
		Where("template_id = ?", tmpl.ID).
		Order("created_at").
		Find(&forms).Error; err != nil {
		return aggregation.Table{}, err
	}
	formsDTO := make([]dto.Form, len(forms))
	for i := range forms {
		formsDTO[i] = *forms[i].ToDTO()
	}
	return aggregation.Build(tmpl.ToDTO(), formsDTO, 1, max(len(forms), 1), false), nil
}

// exportTemplatePDF godoc
// @id exportTemplatePDF
// @Summary Шаблоны: выгрузка ответов в PDF
// @Tags Templates
// @Security ApiKeyAuth
// @Produce application/pdf
// @Param templateId path string true "ID шаблона"
// @Success 200 {file} binary "PDF"
// @Failure 403 {object} apierrors.DefinedError "Нет прав"
// @Router /api/auth/templates/{templateId}/export/pdf [get]
func (s *Services) exportTemplatePDF(c echo.Context) error {
	table, err := s.responsesTable(c.(TemplateContext).Template)
	if err != nil {
		return EError(c, err)
	}

	var buf bytes.Buffer
	if err := export.ResponsesToPDF(table, time.Now(), &buf); err != nil {
		return EError(c, err)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="responses.pdf"`)
	return c.Blob(http.StatusOK, "application/pdf", buf.Bytes())
}

// exportTemplateMarkdown godoc
// @id exportTemplateMarkdown
// @Summary Шаблоны: выгрузка ответов в markdown
// @Tags Templates
// @Security ApiKeyAuth
// @Produce text/markdown
// @Param templateId path string true "ID шаблона"
// @Success 200 {string} string "Таблица ответов"
// @Router /api/auth/templates/{templateId}/export/md [get]
func (s *Services) exportTemplateMarkdown(c echo.Context) error {
	table, err := s.responsesTable(c.(TemplateContext).Template)
	if err != nil {
		return EError(c, err)
	}

	var buf bytes.Buffer
	if err := export.ResponsesToMarkdown(table, &buf); err != nil {
		return EError(c, err)
	}
	return c.Blob(http.StatusOK, "text/markdown; charset=utf-8", buf.Bytes())
}

// getComments godoc
// @id getTemplateComments
// @Summary Шаблоны: комментарии
// @Tags Templates
// @Produce json
// @Param templateId path string true "ID шаблона"
// @Success 200 {array} dto.Comment "Комментарии по времени создания"
// @Router /api/templates/{templateId}/comments [get]
func (s *Services) getComments(c echo.Context) error {
	var comments []dao.Comment
	if err := s.db.Preload("User").
		Where("template_id = ?", c.(TemplateContext).Template.ID).
		Order("created_at").
		Find(&comments).Error; err != nil {
		return EError(c, err)
	}
	resp := make([]dto.Comment, len(comments))
	for i := range comments {
		resp[i] = comments[i].ToDTO()
	}
	return c.JSON(http.StatusOK, resp)
}

// createComment godoc
// @id createTemplateComment
// @Summary Шаблоны: добавление комментария
// @Tags Templates
// @Security ApiKeyAuth
// @Accept json
// @Produce json
// @Param templateId path string true "ID шаблона"
// @Param data body dto.CommentRequest true "Комментарий"
// @Success 201 {object} dto.Comment "Комментарий"
// @Failure 400 {object} apierrors.DefinedError "Пустой комментарий"
// @Failure 401 {object} apierrors.DefinedError "Требуется авторизация"
// @Router /api/templates/{templateId}/comments [post]
func (s *Services) createComment(c echo.Context) error {
	ctx := c.(TemplateContext)
	if ctx.User == nil {
		return EErrorDefined(c, apierrors.ErrAccessTokenRequired)
	}

	var req dto.CommentRequest
	if err := c.Bind(&req); err != nil {
		return EError(c, err)
	}
	req.Content = strings.TrimSpace(req.Content)
	if req.Content == "" {
		return EErrorDefined(c, apierrors.ErrCommentEmpty)
	}
	if err := c.Validate(&req); err != nil {
		return EErrorDefined(c, validationError(err))
	}

	comment := dao.Comment{
		ID:         dao.GenUUID(),
		TemplateID: ctx.Template.ID,
		UserID:     ctx.User.ID,
		User:       ctx.User,
		Content:    req.Content,
	}
	if err := s.db.Omit("User").Create(&comment).Error; err != nil {
		return EError(c, err)
	}
	return c.JSON(http.StatusCreated, comment.ToDTO())
}

// getLikeStatus godoc
// @id getLikeStatus
// @Summary Шаблоны: лайк текущего пользователя
// @Tags Templates
// @Security ApiKeyAuth
// @Produce json
// @Param templateId path string true "ID шаблона"
// @Success 200 {object} dto.LikeStatus "Состояние лайка"
// @Router /api/auth/templates/{templateId}/like [get]
func (s *Services) getLikeStatus(c echo.Context) error {
	return s.likeStatus(c, http.StatusOK)
}

// likeTemplate godoc
// @id likeTemplate
// @Summary Шаблоны: поставить лайк
// @Tags Templates
// @Security ApiKeyAuth
// @Produce json
// @Param templateId path string true "ID шаблона"
// @Success 201 {object} dto.LikeStatus "Состояние лайка"
// @Failure 409 {object} apierrors.DefinedError "Лайк уже стоит"
// @Router /api/auth/templates/{templateId}/like [post]
func (s *Services) likeTemplate(c echo.Context) error {
	ctx := c.(TemplateContext)
	liked, err := dao.IsLiked(s.db, ctx.Template.ID, ctx.User.ID)
	if err != nil {
		return EError(c, err)
	}
	if liked {
		return EErrorDefined(c, apierrors.ErrAlreadyLiked)
	}

	like := dao.Like{ID: dao.GenUUID(), TemplateID: ctx.Template.ID, UserID: ctx.User.ID}
	if err := s.db.Create(&like).Error; err != nil {
		return EError(c, err)
	}
	return s.likeStatus(c, http.StatusCreated)
}

// unlikeTemplate godoc
// @id unlikeTemplate
// @Summary Шаблоны: убрать лайк
// @Tags Templates
// @Security ApiKeyAuth
// @Produce json
// @Param templateId path string true "ID шаблона"
// @Success 200 {object} dto.LikeStatus "Состояние лайка"
// @Failure 404 {object} apierrors.DefinedError "Лайка нет"
// @Router /api/auth/templates/{templateId}/like [delete]
func (s *Services) unlikeTemplate(c echo.Context) error {
	ctx := c.(TemplateContext)
	res := s.db.Where("template_id = ? AND user_id = ?", ctx.Template.ID, ctx.User.ID).Delete(&dao.Like{})
	if res.Error != nil {
		return EError(c, res.Error)
	}
	if res.RowsAffected == 0 {
		return EErrorDefined(c, apierrors.ErrLikeNotFound)
	}
	return s.likeStatus(c, http.StatusOK)
}

func (s *Services) likeStatus(c echo.Context, status int) error {
	ctx := c.(TemplateContext)
	liked, err := dao.IsLiked(s.db, ctx.Template.ID, ctx.User.ID)
	if err != nil {
		return EError(c, err)
	}
	count, err := dao.CountLikes(s.db, ctx.Template.ID)
	if err != nil {
		return EError(c, err)
	}
	return c.JSON(status, dto.LikeStatus{Liked: liked, LikesCount: count})
}

func templateToLight(t *dao.Template) dto.TemplateLight {
	return *t.ToLightDTO()
}

func lightTemplates(in []dao.Template) []dto.TemplateLight {
	out := make([]dto.TemplateLight, len(in))
	for i := range in {
		out[i] = templateToLight(&in[i])
	}
	return out
}

// Доступ к шаблону по id из тела запроса, для форм
func (s *Services) viewableTemplate(id string, user *dao.User) (*dao.Template, error) {
	tmpl, err := dao.GetTemplate(s.db, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierrors.ErrTemplateNotFound
		}
		return nil, fmt.Errorf("get template: %w", err)
	}
	if !tmpl.CanView(user) {
		return nil, apierrors.ErrTemplateForbidden
	}
	return tmpl, nil
}
