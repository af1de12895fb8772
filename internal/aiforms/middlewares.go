// Промежуточные обработчики: загрузка шаблона и формы по id из пути, проверка прав администратора.
package aiforms

import (
	"errors"

	"github.com/aisa-it/aiforms/internal/aiforms/apierrors"
	"github.com/aisa-it/aiforms/internal/aiforms/dao"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

type TemplateContext struct {
	AuthContext
	Template *dao.Template
}

type FormContext struct {
	AuthContext
	Form *dao.Form
}

// TemplateMiddleware загружает шаблон :templateId и проверяет право на просмотр
func (s *Services) TemplateMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.(AuthContext)
		tmpl, err := dao.GetTemplate(s.db, c.Param("templateId"))
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return EErrorDefined(c, apierrors.ErrTemplateNotFound)
			}
			return EError(c, err)
		}

		if !tmpl.CanView(ctx.User) {
			return EErrorDefined(c, apierrors.ErrTemplateForbidden)
		}

		return next(TemplateContext{ctx, tmpl})
	}
}

// TemplateManagerMiddleware пропускает только автора шаблона и администратора
func TemplateManagerMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.(TemplateContext)
		if !ctx.Template.CanManage(ctx.User) {
			return EErrorDefined(c, apierrors.ErrTemplateForbidden)
		}
		return next(c)
	}
}

// FormMiddleware загружает форму :formId. Доступ есть у автора ответа, автора шаблона и администратора.
func (s *Services) FormMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.(AuthContext)
		form, err := dao.GetForm(s.db, c.Param("formId"))
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return EErrorDefined(c, apierrors.ErrFormNotFound)
			}
			return EError(c, err)
		}

		if form.UserID != ctx.User.ID && !ctx.User.IsAdmin() &&
			(form.Template == nil || form.Template.AuthorID != ctx.User.ID) {
			return EErrorDefined(c, apierrors.ErrFormForbidden)
		}

		return next(FormContext{ctx, form})
	}
}

func AdminMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !c.(AuthContext).User.IsAdmin() {
			return EErrorDefined(c, apierrors.ErrNotAdmin)
		}
		return next(c)
	}
}
