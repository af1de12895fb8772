package aiforms

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path"
	"slices"
	"strconv"
	"strings"

	"github.com/aisa-it/aiforms/internal/aiforms/apierrors"
	"github.com/aisa-it/aiforms/internal/aiforms/dto"
	"github.com/aisa-it/aiforms/internal/aiforms/editor"
	filestorage "github.com/aisa-it/aiforms/internal/aiforms/file-storage"
	"github.com/aisa-it/aiforms/internal/aiforms/types"
	"github.com/labstack/echo/v4"
)

const (
	defaultPageLimit = 10
	maxPageLimit     = 100
)

// bindPagination читает page и limit из query. Лимит больше maxPageLimit - ошибка, пустой - defLimit.
func bindPagination(c echo.Context, defLimit int) (page, limit int, err error) {
	page, limit = 1, defLimit
	if err := echo.QueryParamsBinder(c).
		Int("page", &page).
		Int("limit", &limit).
		BindError(); err != nil {
		return 0, 0, apierrors.ErrGeneric
	}
	if limit <= 0 {
		limit = defLimit
	}
	if limit > maxPageLimit {
		return 0, 0, apierrors.ErrLimitTooHigh
	}
	if page < 1 {
		page = 1
	}
	return page, limit, nil
}

// bindTemplatePayload читает данные шаблона из JSON или из multipart формы.
// В multipart поля questions, tags и allowedUsers передаются JSON строками, картинка - файлом image.
func bindTemplatePayload(c echo.Context) (dto.TemplatePayload, *multipart.FileHeader, error) {
	var payload dto.TemplatePayload
	if !strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		if err := c.Bind(&payload); err != nil {
			return payload, nil, err
		}
		return payload, nil, nil
	}

	payload.Title = c.FormValue("title")
	payload.Description = c.FormValue("description")
	payload.Topic = c.FormValue("topic")
	payload.Access = types.Access(c.FormValue("access"))
	if img := c.FormValue("imageUrl"); img != "" {
		payload.ImageURL = &img
	}

	for key, target := range map[string]any{
		"questions":    &payload.Questions,
		"tags":         &payload.Tags,
		"allowedUsers": &payload.AllowedUsers,
	} {
		raw := c.FormValue(key)
		if raw == "" {
			continue
		}
		if err := json.Unmarshal([]byte(raw), target); err != nil {
			return payload, nil, fmt.Errorf("failed to unmarshal data from FormValue[%s]: %w", key, err)
		}
	}

	file, err := c.FormFile("image")
	if err != nil && !errors.Is(err, http.ErrMissingFile) {
		return payload, nil, err
	}
	return payload, file, nil
}

// normalizeTemplatePayload приводит данные шаблона к виду для сохранения и проверяет их.
// Вопросы упорядочиваются по order, пустой режим доступа означает PUBLIC.
func normalizeTemplatePayload(p *dto.TemplatePayload) error {
	if p.Access == "" {
		p.Access = types.Public
	}
	if !p.Access.Valid() {
		return apierrors.ErrTemplateAccessInvalid
	}
	if p.Access == types.Public {
		p.AllowedUsers = []string{}
	}
	if p.Topic != "" && !slices.Contains(editor.Topics, p.Topic) {
		return apierrors.ErrTemplateTopicUnknown.WithFormattedMessage(p.Topic)
	}

	slices.SortStableFunc(p.Questions, func(a, b dto.QuestionPayload) int { return a.Order - b.Order })
	for i := range p.Questions {
		if p.Questions[i].Options == nil || !p.Questions[i].Type.HasOptions() {
			p.Questions[i].Options = []string{}
		}
	}

	if errs := editor.ValidatePayload(*p); len(errs) > 0 {
		return templateValidationError(errs[0], *p)
	}
	return nil
}

func templateValidationError(ve editor.ValidationError, p dto.TemplatePayload) apierrors.DefinedError {
	if ve.Question < 0 {
		return apierrors.ErrTemplateTitleRequired
	}
	n := strconv.Itoa(ve.Question + 1)
	switch ve.Field {
	case "type":
		return apierrors.ErrQuestionTypeUnknown.WithFormattedMessage(string(p.Questions[ve.Question].Type))
	case "options":
		return apierrors.ErrQuestionOptionsRequired.WithFormattedMessage(n)
	default:
		return apierrors.ErrQuestionTitleRequired.WithFormattedMessage(n)
	}
}

// saveImage уменьшает картинку и сохраняет ее в хранилище, возвращает публичный адрес.
func (s *Services) saveImage(c echo.Context, file *multipart.FileHeader) (string, error) {
	if file.Size > filestorage.MaxUploadSize {
		return "", apierrors.ErrEntityToLarge
	}
	src, err := file.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	data, contentType, err := filestorage.PrepareImage(io.LimitReader(src, filestorage.MaxUploadSize))
	if err != nil {
		if errors.Is(err, filestorage.ErrUnsupportedImage) {
			return "", apierrors.ErrImageUnsupported
		}
		return "", err
	}

	name := filestorage.ImageName(contentType)
	if err := s.storage.Save(c.Request().Context(), name, data, contentType); err != nil {
		return "", fmt.Errorf("save image: %w", err)
	}
	return s.imageURL(name), nil
}

func (s *Services) imageURL(name string) string {
	p := "/api/files/" + name + "/"
	if s.cfg.WebURL == nil {
		return p
	}
	return strings.TrimSuffix(s.cfg.WebURL.String(), "/") + p
}

// Ссылка на шаблон в веб интерфейсе
func (s *Services) templateLink(templateID string) string {
	p := "/templates/" + templateID
	if s.cfg.WebURL == nil {
		return p
	}
	return strings.TrimSuffix(s.cfg.WebURL.String(), "/") + p
}

// getImage godoc
// @id getImage
// @Summary Файлы: картинка шаблона
// @Tags Files
// @Produce image/jpeg
// @Param name path string true "Имя файла"
// @Success 200 {file} binary "Картинка"
// @Failure 404 "Файл не найден"
// @Router /api/files/images/{name} [get]
func (s *Services) getImage(c echo.Context) error {
	name := path.Base(c.Param("name"))
	if name == "." || name == "/" || name == ".." {
		return c.NoContent(http.StatusNotFound)
	}
	name = filestorage.ImagesPrefix + name

	info, err := s.storage.GetFileInfo(c.Request().Context(), name)
	if err != nil {
		if errors.Is(err, filestorage.ErrNotFound) {
			return c.NoContent(http.StatusNotFound)
		}
		return EError(c, err)
	}

	r, err := s.storage.LoadReader(c.Request().Context(), name)
	if err != nil {
		return EError(c, err)
	}
	defer r.Close()

	c.Response().Header().Set("Cache-Control", "public, max-age=86400")
	return c.Stream(http.StatusOK, info.ContentType, r)
}
