package aiforms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aisa-it/aiforms/internal/aiforms/apierrors"
	"github.com/aisa-it/aiforms/internal/aiforms/dao"
	"github.com/aisa-it/aiforms/internal/aiforms/dto"
	"github.com/aisa-it/aiforms/internal/aiforms/integrations"
	"github.com/aisa-it/aiforms/internal/aiforms/types"
	"github.com/go-playground/validator"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

func (s *Services) AddIntegrationServices(g *echo.Group) {
	g.POST("support-tickets/", s.createSupportTicket)
	g.POST("users/:userId/salesforce/", s.createCRMContact)
	g.POST("sync/templates/", s.syncTemplates)
}

// createSupportTicket godoc
// @id createSupportTicket
// @Summary Интеграции: обращение в поддержку
// @Description Сохраняет обращение JSON файлом в хранилище и уведомляет администраторов по почте и в Telegram
// @Tags Integrations
// @Security ApiKeyAuth
// @Accept json
// @Produce json
// @Param data body dto.SupportTicketRequest true "Обращение"
// @Success 201 {object} dto.SupportTicketResponse "Путь к сохраненному обращению"
// @Failure 400 {object} apierrors.DefinedError "Некорректное обращение"
// @Failure 502 {object} apierrors.DefinedError "Не удалось сохранить обращение"
// @Router /api/auth/support-tickets [post]
func (s *Services) createSupportTicket(c echo.Context) error {
	user := c.(AuthContext).User

	var req dto.SupportTicketRequest
	if err := c.Bind(&req); err != nil {
		return EError(c, err)
	}
	if err := c.Validate(&req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 && verrs[0].Field() == "Priority" {
			return EErrorDefined(c, apierrors.ErrInvalidPriority)
		}
		return EErrorDefined(c, validationError(err))
	}
	priority, ok := types.ParsePriority(req.Priority)
	if !ok {
		return EErrorDefined(c, apierrors.ErrInvalidPriority)
	}

	admins, err := dao.AdminEmails(s.db)
	if err != nil {
		return EError(c, err)
	}

	ticket := dto.SupportTicket{
		ReportedBy: user.Email,
		Template:   req.Template,
		Link:       req.Link,
		Summary:    req.Summary,
		Priority:   priority,
		Admins:     admins,
		CreatedAt:  time.Now(),
	}

	path, err := s.storeSupportTicket(c.Request().Context(), ticket)
	if err != nil {
		slog.Error("Store support ticket", "user", user.Email, "err", err)
		return EErrorDefined(c, apierrors.ErrSupportTicketFailed)
	}

	if len(admins) > 0 {
		if err := s.email.SupportTicket(ticket); err != nil {
			slog.Error("Send support ticket email", "path", path, "err", err)
		}
	}
	if err := s.telegram.SupportTicket(c.Request().Context(), ticket); err != nil {
		slog.Error("Send support ticket to telegram", "path", path, "err", err)
	}

	return c.JSON(http.StatusCreated, dto.SupportTicketResponse{Path: path})
}

// SupportTicketPath - имя объекта обращения в хранилище: <prefix>/ticket-<unix ms>.json
func SupportTicketPath(prefix string, at time.Time) string {
	return fmt.Sprintf("%s/ticket-%d.json", prefix, at.UnixMilli())
}

func (s *Services) storeSupportTicket(ctx context.Context, ticket dto.SupportTicket) (string, error) {
	data, err := json.MarshalIndent(ticket, "", "  ")
	if err != nil {
		return "", err
	}
	path := SupportTicketPath(s.cfg.SupportTicketsPrefix, ticket.CreatedAt)
	if err := s.storage.Save(ctx, path, data, "application/json"); err != nil {
		return "", err
	}
	return path, nil
}

// createCRMContact godoc
// @id createCRMContact
// @Summary Интеграции: контакт в CRM
// @Description Создает контакт пользователя в CRM. Доступно самому пользователю и администратору.
// @Tags Integrations
// @Security ApiKeyAuth
// @Accept json
// @Produce json
// @Param userId path string true "ID пользователя"
// @Param data body dto.CRMContact true "Контакт"
// @Success 201 {object} dto.CRMContactResponse "ID контакта в CRM"
// @Failure 403 {object} apierrors.DefinedError "Нет прав"
// @Failure 502 {object} apierrors.DefinedError "Ошибка CRM"
// @Failure 503 {object} apierrors.DefinedError "CRM не настроена"
// @Router /api/auth/users/{userId}/salesforce [post]
func (s *Services) createCRMContact(c echo.Context) error {
	user := c.(AuthContext).User
	userID := c.Param("userId")
	if userID != user.ID.String() && !user.IsAdmin() {
		return EErrorDefined(c, apierrors.ErrNotAdmin)
	}

	var req dto.CRMContact
	if err := c.Bind(&req); err != nil {
		return EError(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return EErrorDefined(c, validationError(err))
	}

	id, err := s.crm.CreateContact(c.Request().Context(), userID, req)
	if err != nil {
		if errors.Is(err, integrations.ErrNotConfigured) {
			return EErrorDefined(c, apierrors.ErrCRMNotConfigured)
		}
		slog.Error("Create CRM contact", "user", userID, "err", err)
		return EErrorDefined(c, apierrors.ErrCRMRequestFailed.WithFormattedMessage(err.Error()))
	}
	return c.JSON(http.StatusCreated, dto.CRMContactResponse{ID: id})
}

// syncTemplates godoc
// @id syncTemplates
// @Summary Интеграции: выгрузка шаблонов во внешнюю таблицу
// @Description Выгружает шаблоны текущего пользователя. Администратор с all=true выгружает все шаблоны. При настроенной очереди задача ставится в очередь.
// @Tags Integrations
// @Security ApiKeyAuth
// @Produce json
// @Param all query bool false "Все шаблоны (только администратор)"
// @Success 200 {object} dto.SyncResult "Результат выгрузки"
// @Success 202 {object} dto.SyncResult "Задача поставлена в очередь"
// @Failure 503 {object} apierrors.DefinedError "Выгрузка не настроена"
// @Router /api/auth/sync/templates [post]
func (s *Services) syncTemplates(c echo.Context) error {
	user := c.(AuthContext).User
	if s.syncer == nil {
		return EErrorDefined(c, apierrors.ErrTabularNotConfigured)
	}

	userID := user.ID.String()
	if c.QueryParam("all") == "true" && user.IsAdmin() {
		userID = ""
	}

	if s.queue != nil {
		if _, err := s.queue.Enqueue(c.Request().Context(), userID); err != nil {
			return EError(c, err)
		}
		return c.JSON(http.StatusAccepted, dto.SyncResult{Success: true, Queued: true, Errors: []dto.SyncError{}})
	}

	return c.JSON(http.StatusOK, s.syncer.Sync(c.Request().Context(), userID))
}

type templateSource struct {
	db *gorm.DB
}

// NewTemplateSource отдает для выгрузки шаблоны из базы, по автору или все
func NewTemplateSource(db *gorm.DB) integrations.TemplateSource {
	return templateSource{db: db}
}

func (ts templateSource) SyncTemplates(ctx context.Context, userID string) ([]dto.TemplateLight, error) {
	query := ts.db.WithContext(ctx).
		Scopes(dao.WithCounters, dao.WithListPreloads).
		Order("templates.created_at")
	if userID != "" {
		query = query.Where("templates.author_id = ?", userID)
	}

	var templates []dao.Template
	if err := query.Find(&templates).Error; err != nil {
		return nil, err
	}
	return lightTemplates(templates), nil
}
