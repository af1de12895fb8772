package aiforms

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/aisa-it/aiforms/internal/aiforms/apierrors"
	"github.com/aisa-it/aiforms/internal/aiforms/coercion"
	"github.com/aisa-it/aiforms/internal/aiforms/dao"
	"github.com/aisa-it/aiforms/internal/aiforms/dto"
	"github.com/aisa-it/aiforms/internal/aiforms/notifications"
	"github.com/aisa-it/aiforms/internal/aiforms/submission"
	"github.com/gofrs/uuid"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

func (s *Services) AddFormServices(g *echo.Group) {
	g.POST("forms/", s.createForm)
	g.GET("forms/user/", s.getUserForms)

	formGroup := g.Group("forms/:formId/", s.FormMiddleware)
	formGroup.GET("", s.getForm)
	formGroup.PUT("", s.updateForm)
	formGroup.DELETE("", s.deleteForm)
}

// createForm godoc
// @id createForm
// @Summary Формы: отправка заполненной формы
// @Description Проверяет ответы по вопросам шаблона, сохраняет форму и при запросе отправляет копию ответов на почту
// @Tags Forms
// @Security ApiKeyAuth
// @Accept json
// @Produce json
// @Param data body dto.FormPayload true "Заполненная форма"
// @Success 201 {object} dto.Form "Сохраненная форма"
// @Failure 400 {object} apierrors.DefinedError "Ошибка проверки ответов"
// @Failure 403 {object} apierrors.DefinedError "Нет доступа к шаблону"
// @Failure 404 {object} apierrors.DefinedError "Шаблон не найден"
// @Router /api/auth/forms [post]
func (s *Services) createForm(c echo.Context) error {
	user := c.(AuthContext).User

	var payload dto.FormPayload
	if err := c.Bind(&payload); err != nil {
		return EError(c, err)
	}

	tmpl, err := s.viewableTemplate(payload.TemplateID, user)
	if err != nil {
		return EError(c, err)
	}

	form := &dao.Form{TemplateID: tmpl.ID, UserID: user.ID, Template: tmpl, User: user}
	if err := s.saveForm(c, form, payload); err != nil {
		return EError(c, err)
	}
	return c.JSON(http.StatusCreated, form.ToDTO())
}

// updateForm godoc
// @id updateForm
// @Summary Формы: изменение ответов
// @Description Заменяет все ответы формы. Доступно автору ответа и администратору.
// @Tags Forms
// @Security ApiKeyAuth
// @Accept json
// @Produce json
// @Param formId path string true "ID формы"
// @Param data body dto.FormPayload true "Заполненная форма"
// @Success 200 {object} dto.Form "Форма"
// @Failure 400 {object} apierrors.DefinedError "Ошибка проверки ответов"
// @Failure 403 {object} apierrors.DefinedError "Нет прав"
// @Router /api/auth/forms/{formId} [put]
func (s *Services) updateForm(c echo.Context) error {
	ctx := c.(FormContext)
	if ctx.Form.UserID != ctx.User.ID && !ctx.User.IsAdmin() {
		return EErrorDefined(c, apierrors.ErrFormForbidden)
	}

	var payload dto.FormPayload
	if err := c.Bind(&payload); err != nil {
		return EError(c, err)
	}

	if err := s.saveForm(c, ctx.Form, payload); err != nil {
		return EError(c, err)
	}
	return c.JSON(http.StatusOK, ctx.Form.ToDTO())
}

// saveForm проверяет ответы по вопросам шаблона формы и сохраняет их в транзакции.
// Шаблон формы должен быть загружен вместе с вопросами.
func (s *Services) saveForm(c echo.Context, form *dao.Form, payload dto.FormPayload) error {
	questions := form.Template.ToDTO().Questions

	if errs := submission.ValidateAnswers(questions, payload.Answers); len(errs) > 0 {
		return answersError(questions, errs)
	}

	var address string
	if payload.EmailAddress != nil {
		address = strings.TrimSpace(*payload.EmailAddress)
	}
	switch submission.ValidateEmailCopy(payload.SendEmailCopy, address) {
	case submission.MsgRequired:
		return apierrors.ErrFormEmailRequired
	case submission.MsgInvalidEmail:
		return apierrors.ErrInvalidEmail
	}

	normalized := submission.NormalizeAnswers(questions, payload.Answers)
	answers := make([]dao.Answer, 0, len(normalized))
	for _, a := range normalized {
		qid, err := uuid.FromString(a.QuestionID)
		if err != nil {
			return apierrors.ErrFormAnswersMismatch
		}
		answers = append(answers, dao.Answer{QuestionID: qid, Value: a.Value})
	}

	form.SendEmailCopy = payload.SendEmailCopy
	if err := s.db.Transaction(func(tx *gorm.DB) error {
		return dao.SaveFormAnswers(tx, form, answers)
	}); err != nil {
		return err
	}

	s.cache.InvalidateListings(c.Request().Context())

	if payload.SendEmailCopy {
		s.sendFormCopy(address, form, questions)
	}
	return nil
}

// answersError переводит ошибки ответов в ошибку API для первого по порядку вопроса.
// Ответы на чужие вопросы и повторные ответы дают ErrFormAnswersMismatch.
func answersError(questions []dto.Question, errs submission.FieldErrors) apierrors.DefinedError {
	for _, msg := range errs {
		if msg == submission.MsgUnknownQuestion || msg == submission.MsgDuplicateAnswer {
			return apierrors.ErrFormAnswersMismatch
		}
	}
	for _, q := range questions {
		msg, ok := errs[q.ID]
		if !ok {
			continue
		}
		switch msg {
		case submission.MsgRequired, submission.MsgSelectOption, submission.MsgSelectAtLeastOne:
			return apierrors.ErrFormRequiredAnswer.WithFormattedMessage(q.Title)
		default:
			return apierrors.ErrFormAnswerInvalid.WithFormattedMessage(q.Title)
		}
	}
	return apierrors.ErrFormAnswersMismatch
}

func (s *Services) sendFormCopy(to string, form *dao.Form, questions []dto.Question) {
	byQuestion := form.AnswerByQuestion()
	lines := make([]notifications.AnswerLine, 0, len(questions))
	for _, q := range questions {
		v, ok := byQuestion[q.ID]
		answer := coercion.Placeholder
		if ok {
			answer = coercion.Display(q.Type, v)
		}
		lines = append(lines, notifications.AnswerLine{Question: q.Title, Answer: answer})
	}

	if err := s.email.FormCopy(to, form.Template.Title, lines, form.UpdatedAt, s.templateLink(form.TemplateID.String())); err != nil {
		slog.Error("Send form copy", "form", form.ID, "err", err)
	}
}

// getForm godoc
// @id getForm
// @Summary Формы: получение формы
// @Tags Forms
// @Security ApiKeyAuth
// @Produce json
// @Param formId path string true "ID формы"
// @Success 200 {object} dto.Form "Форма"
// @Failure 403 {object} apierrors.DefinedError "Нет доступа"
// @Failure 404 {object} apierrors.DefinedError "Форма не найдена"
// @Router /api/auth/forms/{formId} [get]
func (s *Services) getForm(c echo.Context) error {
	return c.JSON(http.StatusOK, c.(FormContext).Form.ToDTO())
}

// deleteForm godoc
// @id deleteForm
// @Summary Формы: удаление формы
// @Tags Forms
// @Security ApiKeyAuth
// @Param formId path string true "ID формы"
// @Success 200 "Форма удалена"
// @Failure 403 {object} apierrors.DefinedError "Нет доступа"
// @Router /api/auth/forms/{formId} [delete]
func (s *Services) deleteForm(c echo.Context) error {
	form := c.(FormContext).Form
	if err := s.db.Transaction(func(tx *gorm.DB) error {
		return dao.DeleteForm(tx, form)
	}); err != nil {
		return EError(c, err)
	}
	s.cache.InvalidateListings(c.Request().Context())
	return c.NoContent(http.StatusOK)
}

// getUserForms godoc
// @id getUserForms
// @Summary Формы: формы текущего пользователя
// @Tags Forms
// @Security ApiKeyAuth
// @Produce json
// @Param page query int false "Страница" default(1)
// @Param limit query int false "Размер страницы" default(10)
// @Success 200 {object} dto.PaginatedResponse[dto.Form] "Формы"
// @Router /api/auth/forms/user [get]
func (s *Services) getUserForms(c echo.Context) error {
	page, limit, err := bindPagination(c, defaultPageLimit)
	if err != nil {
		return EError(c, err)
	}

	query := s.db.Model(&dao.Form{}).
		Where("forms.user_id = ?", c.(AuthContext).User.ID).
		Order("forms.created_at DESC")

	res, err := dao.PaginationRequest[dao.Form](page, limit, query, dao.FormPreloads)
	if err != nil {
		return EError(c, err)
	}
	return c.JSON(http.StatusOK, dao.PageToDTO(res, func(f *dao.Form) dto.Form { return *f.ToDTO() }))
}
