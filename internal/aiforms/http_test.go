package aiforms

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aisa-it/aiforms/internal/aiforms/apierrors"
	"github.com/aisa-it/aiforms/internal/aiforms/config"
	"github.com/aisa-it/aiforms/internal/aiforms/dao"
	"github.com/aisa-it/aiforms/internal/aiforms/dto"
	filestorage "github.com/aisa-it/aiforms/internal/aiforms/file-storage"
	"github.com/aisa-it/aiforms/internal/aiforms/notifications"
	"github.com/aisa-it/aiforms/internal/aiforms/sessions"
	"github.com/aisa-it/aiforms/internal/aiforms/types"
	"github.com/aisa-it/aiforms/pkg/limiter"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type testServer struct {
	s        *Services
	e        *echo.Echo
	filesDir string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(dao.AllModels()...))

	filesDir := t.TempDir()
	storage, err := filestorage.NewLocalStorage(filesDir)
	require.NoError(t, err)

	sm, err := sessions.NewSessionsManager(filepath.Join(t.TempDir(), "sessions.db"), types.RefreshTokenExpiresPeriod, 0)
	require.NoError(t, err)
	t.Cleanup(sm.Close)

	es, err := notifications.NewEmailServiceWithSender(nil, "noreply@example.com", 1, true)
	require.NoError(t, err)
	t.Cleanup(es.Stop)

	webURL, _ := url.Parse("https://forms.example.com")
	cfg := &config.Config{
		SecretKey:            "test-secret",
		SignUpEnable:         true,
		WebURL:               webURL,
		SupportTicketsPrefix: "support-tickets",
	}

	s := &Services{
		db:       db,
		cfg:      cfg,
		version:  "test",
		storage:  storage,
		email:    es,
		sessions: sm,
		captcha:  NewCaptchaService(cfg.SecretKey, true),
		limiter:  limiter.CommunityLimiter{},
	}
	return &testServer{s: s, e: NewEcho(s), filesDir: filesDir}
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.e.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) register(t *testing.T, email string) dto.AuthResponse {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/api/auth/register/", "", dto.RegisterRequest{
		Email:    email,
		Password: "password123",
		Name:     "Test User",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp dto.AuthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func (ts *testServer) registerAdmin(t *testing.T, email string) dto.AuthResponse {
	t.Helper()
	resp := ts.register(t, email)
	require.NoError(t, ts.s.db.Model(&dao.User{}).Where("email = ?", email).Update("role", types.RoleAdmin).Error)
	return resp
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func assertAPIError(t *testing.T, rec *httptest.ResponseRecorder, want apierrors.DefinedError) {
	t.Helper()
	got := decode[apierrors.DefinedError](t, rec)
	assert.Equal(t, want.Code, got.Code, rec.Body.String())
	if want.StatusCode != 0 {
		assert.Equal(t, want.StatusCode, rec.Code)
	} else {
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	}
}

func surveyPayload(title string, access types.Access) dto.TemplatePayload {
	return dto.TemplatePayload{
		Title:       title,
		Description: "Quarterly survey",
		Topic:       "Survey",
		Access:      access,
		Tags:        []string{"feedback", "survey"},
		Questions: []dto.QuestionPayload{
			{Title: "Age", Type: types.Integer, IsRequired: true, ShowInTable: true, Order: 0},
			{Title: "Colors", Type: types.Checkbox, Options: []string{"Red", "Blue"}, ShowInTable: true, Order: 1},
		},
	}
}

func (ts *testServer) createTemplate(t *testing.T, token string, payload dto.TemplatePayload) dto.Template {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/api/auth/templates/", token, payload)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[dto.Template](t, rec)
}

func ptr[T any](v T) *T { return &v }

func TestAuthentication(t *testing.T) {
	t.Run("регистрация, профиль и выход", func(t *testing.T) {
		ts := newTestServer(t)
		auth := ts.register(t, "Alice@Example.com")
		assert.NotEmpty(t, auth.Token)
		assert.NotEmpty(t, auth.RefreshToken)
		assert.Equal(t, "alice@example.com", auth.User.Email)
		assert.Equal(t, types.RoleUser, auth.User.Role)

		rec := ts.do(t, http.MethodGet, "/api/auth/me/", auth.Token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "alice@example.com", decode[dto.User](t, rec).Email)

		rec = ts.do(t, http.MethodPost, "/api/auth/logout/", auth.Token, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		rec = ts.do(t, http.MethodGet, "/api/auth/me/", auth.Token, nil)
		assertAPIError(t, rec, apierrors.ErrTokenExpired)
	})

	t.Run("без токена", func(t *testing.T) {
		ts := newTestServer(t)
		rec := ts.do(t, http.MethodGet, "/api/auth/me/", "", nil)
		assertAPIError(t, rec, apierrors.ErrAccessTokenRequired)
	})

	t.Run("чужая подпись", func(t *testing.T) {
		ts := newTestServer(t)
		access, err := GenJwtToken([]byte("other-secret"), "access", dao.GenUUID().String())
		require.NoError(t, err)
		rec := ts.do(t, http.MethodGet, "/api/auth/me/", access.SignedString, nil)
		assertAPIError(t, rec, apierrors.ErrTokenInvalid)
	})

	t.Run("повторная регистрация", func(t *testing.T) {
		ts := newTestServer(t)
		ts.register(t, "bob@example.com")
		rec := ts.do(t, http.MethodPost, "/api/auth/register/", "", dto.RegisterRequest{
			Email: "BOB@example.com", Password: "password123", Name: "Bob",
		})
		assertAPIError(t, rec, apierrors.ErrUserAlreadyExist)
	})

	t.Run("проверка полей регистрации", func(t *testing.T) {
		ts := newTestServer(t)
		rec := ts.do(t, http.MethodPost, "/api/auth/register/", "", dto.RegisterRequest{
			Email: "bob@example.com", Password: "short", Name: "Bob",
		})
		assertAPIError(t, rec, apierrors.ErrWeakPassword)

		rec = ts.do(t, http.MethodPost, "/api/auth/register/", "", dto.RegisterRequest{
			Email: "not-an-email", Password: "password123", Name: "Bob",
		})
		assertAPIError(t, rec, apierrors.ErrInvalidEmail)
	})

	t.Run("регистрация отключена", func(t *testing.T) {
		ts := newTestServer(t)
		ts.s.cfg.SignUpEnable = false
		rec := ts.do(t, http.MethodPost, "/api/auth/register/", "", dto.RegisterRequest{
			Email: "bob@example.com", Password: "password123", Name: "Bob",
		})
		assertAPIError(t, rec, apierrors.ErrSignupDisabled)
	})
}

func TestLoginBlock(t *testing.T) {
	ts := newTestServer(t)
	ts.register(t, "carol@example.com")

	login := func(password string) *httptest.ResponseRecorder {
		return ts.do(t, http.MethodPost, "/api/auth/login/", "", dto.LoginRequest{Email: "carol@example.com", Password: password})
	}

	for i := 1; i < maxLoginAttempts; i++ {
		assertAPIError(t, login("wrong-password"), apierrors.ErrFailedLogin)
	}

	rec := login("wrong-password")
	assert.Equal(t, apierrors.ErrBlockedUntil.Code, decode[apierrors.DefinedError](t, rec).Code)

	// correct password does not help while blocked
	rec = login("password123")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, apierrors.ErrBlockedUntil.Code, decode[apierrors.DefinedError](t, rec).Code)

	n, err := dao.ResetExpiredBlocks(ts.s.db, time.Now().Add(loginBlockPeriod+time.Minute))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	rec = login("password123")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotEmpty(t, decode[dto.AuthResponse](t, rec).Token)
}

func TestTemplates(t *testing.T) {
	t.Run("создание и просмотр", func(t *testing.T) {
		ts := newTestServer(t)
		auth := ts.register(t, "author@example.com")

		tmpl := ts.createTemplate(t, auth.Token, surveyPayload("Team survey", types.Public))
		assert.Equal(t, "Team survey", tmpl.Title)
		assert.ElementsMatch(t, []string{"feedback", "survey"}, tmpl.Tags)
		require.Len(t, tmpl.Questions, 2)

		rec := ts.do(t, http.MethodGet, "/api/templates/"+tmpl.ID+"/", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		got := decode[dto.Template](t, rec)
		assert.Equal(t, tmpl.ID, got.ID)
		assert.False(t, got.LikedByMe)
	})

	t.Run("ограниченный доступ", func(t *testing.T) {
		ts := newTestServer(t)
		author := ts.register(t, "author@example.com")
		guest := ts.register(t, "guest@example.com")
		allowed := ts.register(t, "allowed@example.com")

		payload := surveyPayload("Private", types.Restricted)
		payload.AllowedUsers = []string{allowed.User.ID}
		tmpl := ts.createTemplate(t, author.Token, payload)

		assertAPIError(t, ts.do(t, http.MethodGet, "/api/templates/"+tmpl.ID+"/", "", nil), apierrors.ErrTemplateForbidden)
		assertAPIError(t, ts.do(t, http.MethodGet, "/api/templates/"+tmpl.ID+"/", guest.Token, nil), apierrors.ErrTemplateForbidden)
		assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/templates/"+tmpl.ID+"/", allowed.Token, nil).Code)

		rec := ts.do(t, http.MethodGet, "/api/templates/search/?q=private", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Zero(t, decode[dto.SearchResult](t, rec).Total)

		rec = ts.do(t, http.MethodGet, "/api/templates/search/?q=private", allowed.Token, nil)
		assert.EqualValues(t, 1, decode[dto.SearchResult](t, rec).Total)
	})

	t.Run("ошибки шаблона", func(t *testing.T) {
		ts := newTestServer(t)
		auth := ts.register(t, "author@example.com")

		payload := surveyPayload("", types.Public)
		assertAPIError(t, ts.do(t, http.MethodPost, "/api/auth/templates/", auth.Token, payload), apierrors.ErrTemplateTitleRequired)

		payload = surveyPayload("Broken", types.Public)
		payload.Questions[1].Options = nil
		rec := ts.do(t, http.MethodPost, "/api/auth/templates/", auth.Token, payload)
		assertAPIError(t, rec, apierrors.ErrQuestionOptionsRequired)
		assert.Contains(t, decode[apierrors.DefinedError](t, rec).Err, "question 2")

		payload = surveyPayload("Broken", "HIDDEN")
		assertAPIError(t, ts.do(t, http.MethodPost, "/api/auth/templates/", auth.Token, payload), apierrors.ErrTemplateAccessInvalid)

		payload = surveyPayload("Broken", types.Public)
		payload.Topic = "Astrology"
		assertAPIError(t, ts.do(t, http.MethodPost, "/api/auth/templates/", auth.Token, payload), apierrors.ErrTemplateTopicUnknown)
	})

	t.Run("изменение и удаление только автором", func(t *testing.T) {
		ts := newTestServer(t)
		author := ts.register(t, "author@example.com")
		other := ts.register(t, "other@example.com")
		tmpl := ts.createTemplate(t, author.Token, surveyPayload("Survey", types.Public))

		payload := surveyPayload("Renamed", types.Public)
		payload.Questions[0].ID = tmpl.Questions[0].ID
		assertAPIError(t, ts.do(t, http.MethodPut, "/api/auth/templates/"+tmpl.ID+"/", other.Token, payload), apierrors.ErrTemplateForbidden)

		rec := ts.do(t, http.MethodPut, "/api/auth/templates/"+tmpl.ID+"/", author.Token, payload)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		updated := decode[dto.Template](t, rec)
		assert.Equal(t, "Renamed", updated.Title)
		assert.Equal(t, tmpl.Questions[0].ID, updated.Questions[0].ID)

		assertAPIError(t, ts.do(t, http.MethodDelete, "/api/auth/templates/"+tmpl.ID+"/", other.Token, nil), apierrors.ErrTemplateForbidden)
		assert.Equal(t, http.StatusOK, ts.do(t, http.MethodDelete, "/api/auth/templates/"+tmpl.ID+"/", author.Token, nil).Code)
		assertAPIError(t, ts.do(t, http.MethodGet, "/api/templates/"+tmpl.ID+"/", "", nil), apierrors.ErrTemplateNotFound)
	})

	t.Run("multipart с картинкой в неверном формате", func(t *testing.T) {
		ts := newTestServer(t)
		auth := ts.register(t, "author@example.com")

		var body bytes.Buffer
		w := multipart.NewWriter(&body)
		require.NoError(t, w.WriteField("title", "Multipart"))
		require.NoError(t, w.WriteField("topic", "Quiz"))
		require.NoError(t, w.WriteField("tags", `["quiz"]`))
		require.NoError(t, w.WriteField("questions", `[{"title":"Name","type":"SINGLE_LINE_TEXT","order":0}]`))
		fw, err := w.CreateFormFile("image", "image.txt")
		require.NoError(t, err)
		_, err = fw.Write([]byte("not an image"))
		require.NoError(t, err)
		require.NoError(t, w.Close())

		req := httptest.NewRequest(http.MethodPost, "/api/auth/templates/", &body)
		req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+auth.Token)
		rec := httptest.NewRecorder()
		ts.e.ServeHTTP(rec, req)
		assertAPIError(t, rec, apierrors.ErrImageUnsupported)
	})

	t.Run("multipart без картинки", func(t *testing.T) {
		ts := newTestServer(t)
		auth := ts.register(t, "author@example.com")

		var body bytes.Buffer
		w := multipart.NewWriter(&body)
		require.NoError(t, w.WriteField("title", "Multipart"))
		require.NoError(t, w.WriteField("tags", `["quiz","fun"]`))
		require.NoError(t, w.WriteField("questions", `[{"title":"Name","type":"SINGLE_LINE_TEXT","order":0}]`))
		require.NoError(t, w.Close())

		req := httptest.NewRequest(http.MethodPost, "/api/auth/templates/", &body)
		req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+auth.Token)
		rec := httptest.NewRecorder()
		ts.e.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		tmpl := decode[dto.Template](t, rec)
		assert.Equal(t, types.Public, tmpl.Access)
		assert.ElementsMatch(t, []string{"quiz", "fun"}, tmpl.Tags)
		assert.Len(t, tmpl.Questions, 1)
	})
}

func TestTemplateListings(t *testing.T) {
	ts := newTestServer(t)
	auth := ts.register(t, "author@example.com")
	for _, title := range []string{"Survey one", "Survey two", "Survey three", "Quiz", "Survey four"} {
		ts.createTemplate(t, auth.Token, surveyPayload(title, types.Public))
	}

	t.Run("поиск с пагинацией", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/api/templates/search/?q=SURVEY&page=1&limit=3", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		res := decode[dto.SearchResult](t, rec)
		assert.EqualValues(t, 5, res.Total)
		assert.Len(t, res.Templates, 3)

		rec = ts.do(t, http.MethodGet, "/api/templates/search/?q=survey&page=2&limit=3", "", nil)
		assert.Len(t, decode[dto.SearchResult](t, rec).Templates, 2)
	})

	t.Run("поиск по названию", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/api/templates/search/?q=quiz", "", nil)
		res := decode[dto.SearchResult](t, rec)
		require.EqualValues(t, 1, res.Total)
		assert.Equal(t, "Quiz", res.Templates[0].Title)
	})

	t.Run("слишком большой лимит", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/api/templates/search/?limit=101", "", nil)
		assertAPIError(t, rec, apierrors.ErrLimitTooHigh)
	})

	t.Run("последние шаблоны", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/api/templates/latest/", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, decode[[]dto.TemplateLight](t, rec), homeListLimit)
	})

	t.Run("популярные теги", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/api/templates/tags/popular/", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		tags := decode[[]dto.TagCount](t, rec)
		require.Len(t, tags, 2)
		assert.EqualValues(t, 5, tags[0].Count)
	})

	t.Run("шаблоны по тегу", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/api/templates/tag/feedback/?limit=2", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		page := decode[dto.PaginatedResponse[dto.TemplateLight]](t, rec)
		assert.EqualValues(t, 5, page.Total)
		assert.Equal(t, 3, page.TotalPages)
		assert.Len(t, page.Data, 2)
	})

	t.Run("шаблоны пользователя", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/api/auth/user/templates/", auth.Token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.EqualValues(t, 5, decode[dto.PaginatedResponse[dto.TemplateLight]](t, rec).Total)
	})
}

func TestForms(t *testing.T) {
	ts := newTestServer(t)
	author := ts.register(t, "author@example.com")
	respondent := ts.register(t, "respondent@example.com")
	stranger := ts.register(t, "stranger@example.com")
	tmpl := ts.createTemplate(t, author.Token, surveyPayload("Survey", types.Public))
	ageID, colorsID := tmpl.Questions[0].ID, tmpl.Questions[1].ID

	var formID string

	t.Run("обязательный ответ", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/api/auth/forms/", respondent.Token, dto.FormPayload{
			TemplateID: tmpl.ID,
			Answers:    []dto.Answer{{QuestionID: colorsID}},
		})
		assertAPIError(t, rec, apierrors.ErrFormRequiredAnswer)
		assert.Contains(t, decode[apierrors.DefinedError](t, rec).Err, "Age")
	})

	t.Run("ответ на чужой вопрос", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/api/auth/forms/", respondent.Token, dto.FormPayload{
			TemplateID: tmpl.ID,
			Answers: []dto.Answer{
				{QuestionID: ageID},
				{QuestionID: dao.GenUUID().String()},
			},
		})
		assertAPIError(t, rec, apierrors.ErrFormAnswersMismatch)
	})

	t.Run("копия без адреса", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/api/auth/forms/", respondent.Token, map[string]any{
			"templateId":    tmpl.ID,
			"answers":       []map[string]any{{"questionId": ageID, "integerValue": 7}},
			"sendEmailCopy": true,
		})
		assertAPIError(t, rec, apierrors.ErrFormEmailRequired)
	})

	t.Run("отправка формы", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/api/auth/forms/", respondent.Token, map[string]any{
			"templateId":    tmpl.ID,
			"answers":       []map[string]any{{"questionId": ageID, "integerValue": 7}},
			"sendEmailCopy": true,
			"emailAddress":  "copy@example.com",
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		form := decode[dto.Form](t, rec)
		formID = form.ID
		require.Len(t, form.Answers, 2)
		assert.Equal(t, ageID, form.Answers[0].QuestionID)
		require.NotNil(t, form.Answers[0].IntegerValue)
		assert.EqualValues(t, 7, *form.Answers[0].IntegerValue)
		assert.Equal(t, colorsID, form.Answers[1].QuestionID)
		assert.True(t, form.Answers[1].IsNull())
	})

	require.NotEmpty(t, formID)

	t.Run("доступ к форме", func(t *testing.T) {
		assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/auth/forms/"+formID+"/", respondent.Token, nil).Code)
		assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/auth/forms/"+formID+"/", author.Token, nil).Code)
		assertAPIError(t, ts.do(t, http.MethodGet, "/api/auth/forms/"+formID+"/", stranger.Token, nil), apierrors.ErrFormForbidden)
	})

	t.Run("изменение ответов", func(t *testing.T) {
		body := map[string]any{
			"templateId": tmpl.ID,
			"answers": []map[string]any{
				{"questionId": ageID, "integerValue": 30},
				{"questionId": colorsID, "textValue": "Red, Blue"},
			},
		}
		assertAPIError(t, ts.do(t, http.MethodPut, "/api/auth/forms/"+formID+"/", author.Token, body), apierrors.ErrFormForbidden)

		rec := ts.do(t, http.MethodPut, "/api/auth/forms/"+formID+"/", respondent.Token, body)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		form := decode[dto.Form](t, rec)
		assert.EqualValues(t, 30, *form.Answers[0].IntegerValue)
		assert.Equal(t, "Red, Blue", *form.Answers[1].TextValue)
	})

	t.Run("ответы и статистика автора", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/api/auth/templates/"+tmpl.ID+"/forms/", author.Token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.EqualValues(t, 1, decode[dto.PaginatedResponse[dto.Form]](t, rec).Total)

		assertAPIError(t, ts.do(t, http.MethodGet, "/api/auth/templates/"+tmpl.ID+"/forms/", respondent.Token, nil), apierrors.ErrTemplateForbidden)

		rec = ts.do(t, http.MethodGet, "/api/auth/templates/"+tmpl.ID+"/stats/", author.Token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.EqualValues(t, 1, decode[dto.TemplateStats](t, rec).FormsCount)

		rec = ts.do(t, http.MethodGet, "/api/auth/templates/"+tmpl.ID+"/export/md/", author.Token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "Age")

		rec = ts.do(t, http.MethodGet, "/api/auth/templates/"+tmpl.ID+"/export/pdf/", author.Token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, strings.HasPrefix(rec.Body.String(), "%PDF"))
	})

	t.Run("формы пользователя и удаление", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/api/auth/forms/user/", respondent.Token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.EqualValues(t, 1, decode[dto.PaginatedResponse[dto.Form]](t, rec).Total)

		assert.Equal(t, http.StatusOK, ts.do(t, http.MethodDelete, "/api/auth/forms/"+formID+"/", respondent.Token, nil).Code)
		assertAPIError(t, ts.do(t, http.MethodGet, "/api/auth/forms/"+formID+"/", respondent.Token, nil), apierrors.ErrFormNotFound)
	})
}

func TestLikesAndComments(t *testing.T) {
	ts := newTestServer(t)
	author := ts.register(t, "author@example.com")
	fan := ts.register(t, "fan@example.com")
	tmpl := ts.createTemplate(t, author.Token, surveyPayload("Survey", types.Public))
	base := "/api/auth/templates/" + tmpl.ID + "/like/"

	t.Run("лайки", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, base, fan.Token, nil)
		require.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, dto.LikeStatus{Liked: true, LikesCount: 1}, decode[dto.LikeStatus](t, rec))

		assertAPIError(t, ts.do(t, http.MethodPost, base, fan.Token, nil), apierrors.ErrAlreadyLiked)

		rec = ts.do(t, http.MethodGet, "/api/templates/"+tmpl.ID+"/", fan.Token, nil)
		got := decode[dto.Template](t, rec)
		assert.True(t, got.LikedByMe)
		assert.EqualValues(t, 1, got.LikesCount)

		rec = ts.do(t, http.MethodDelete, base, fan.Token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, dto.LikeStatus{Liked: false, LikesCount: 0}, decode[dto.LikeStatus](t, rec))

		assertAPIError(t, ts.do(t, http.MethodDelete, base, fan.Token, nil), apierrors.ErrLikeNotFound)
	})

	t.Run("комментарии", func(t *testing.T) {
		path := "/api/templates/" + tmpl.ID + "/comments/"
		assertAPIError(t, ts.do(t, http.MethodPost, path, "", dto.CommentRequest{Content: "hello"}), apierrors.ErrAccessTokenRequired)
		assertAPIError(t, ts.do(t, http.MethodPost, path, fan.Token, dto.CommentRequest{Content: "   "}), apierrors.ErrCommentEmpty)

		rec := ts.do(t, http.MethodPost, path, fan.Token, dto.CommentRequest{Content: "<b>Nice</b> survey"})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		comment := decode[dto.Comment](t, rec)
		assert.Equal(t, "Nice survey", comment.Content)
		require.NotNil(t, comment.User)
		assert.Equal(t, "fan@example.com", comment.User.Email)

		rec = ts.do(t, http.MethodGet, path, "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, decode[[]dto.Comment](t, rec), 1)
	})
}

func TestUserAdministration(t *testing.T) {
	ts := newTestServer(t)
	admin := ts.registerAdmin(t, "admin@example.com")
	user := ts.register(t, "user@example.com")

	t.Run("только администратор", func(t *testing.T) {
		assertAPIError(t, ts.do(t, http.MethodGet, "/api/auth/users/", user.Token, nil), apierrors.ErrNotAdmin)

		rec := ts.do(t, http.MethodGet, "/api/auth/users/?q=USER@", admin.Token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		page := decode[dto.PaginatedResponse[dto.User]](t, rec)
		require.EqualValues(t, 1, page.Total)
		assert.Equal(t, "user@example.com", page.Data[0].Email)
	})

	t.Run("роль", func(t *testing.T) {
		path := "/api/auth/users/" + user.User.ID + "/role/"
		assertAPIError(t, ts.do(t, http.MethodPatch, path, admin.Token, dto.RoleRequest{Role: "ROOT"}), apierrors.ErrInvalidRole)
		assertAPIError(t, ts.do(t, http.MethodPatch, "/api/auth/users/"+admin.User.ID+"/role/", admin.Token, dto.RoleRequest{Role: types.RoleUser}), apierrors.ErrCannotModifySelf)

		rec := ts.do(t, http.MethodPatch, path, admin.Token, dto.RoleRequest{Role: types.RoleAdmin})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, types.RoleAdmin, decode[dto.User](t, rec).Role)

		rec = ts.do(t, http.MethodPatch, path, admin.Token, dto.RoleRequest{Role: types.RoleUser})
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("профиль", func(t *testing.T) {
		rec := ts.do(t, http.MethodPut, "/api/auth/users/me/", user.Token, dto.UserUpdateRequest{Theme: ptr(types.Theme("neon"))})
		assertAPIError(t, rec, apierrors.ErrInvalidPreferences)

		rec = ts.do(t, http.MethodPut, "/api/auth/users/me/", user.Token, dto.UserUpdateRequest{Name: ptr("Jane Doe"), Language: ptr(types.LanguageES)})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		got := decode[dto.User](t, rec)
		assert.Equal(t, "Jane Doe", got.Name)
		assert.Equal(t, types.LanguageES, got.Language)
	})

	t.Run("лимиты", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/api/auth/users/me/limits/", user.Token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "community", decode[limiter.LimitsInfo](t, rec).TariffName)
	})

	t.Run("блокировка сбрасывает сессии", func(t *testing.T) {
		rec := ts.do(t, http.MethodPatch, "/api/auth/users/"+user.User.ID+"/block/", admin.Token, dto.BlockRequest{Blocked: true})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, decode[dto.User](t, rec).Blocked)

		// either the session reset or the block itself rejects the old token
		rec = ts.do(t, http.MethodGet, "/api/auth/me/", user.Token, nil)
		assert.Contains(t, []int{http.StatusUnauthorized, http.StatusForbidden}, rec.Code)
	})

	t.Run("удаление", func(t *testing.T) {
		other := ts.register(t, "other@example.com")
		ts.createTemplate(t, other.Token, surveyPayload("Doomed", types.Public))

		assertAPIError(t, ts.do(t, http.MethodDelete, "/api/auth/users/"+admin.User.ID+"/", admin.Token, nil), apierrors.ErrCannotModifySelf)
		assert.Equal(t, http.StatusOK, ts.do(t, http.MethodDelete, "/api/auth/users/"+other.User.ID+"/", admin.Token, nil).Code)
		assertAPIError(t, ts.do(t, http.MethodGet, "/api/auth/users/"+other.User.ID+"/", admin.Token, nil), apierrors.ErrUserNotFound)

		var count int64
		require.NoError(t, ts.s.db.Model(&dao.Template{}).Count(&count).Error)
		assert.Zero(t, count)
	})
}

func TestIntegrations(t *testing.T) {
	t.Run("обращение в поддержку", func(t *testing.T) {
		ts := newTestServer(t)
		ts.registerAdmin(t, "admin@example.com")
		user := ts.register(t, "user@example.com")

		rec := ts.do(t, http.MethodPost, "/api/auth/support-tickets/", user.Token, dto.SupportTicketRequest{
			Summary:  "Cannot export",
			Priority: "high",
			Link:     "https://forms.example.com/templates/1",
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		resp := decode[dto.SupportTicketResponse](t, rec)
		assert.Regexp(t, `^support-tickets/ticket-\d+\.json$`, resp.Path)

		data, err := os.ReadFile(filepath.Join(ts.filesDir, filepath.FromSlash(resp.Path)))
		require.NoError(t, err)
		var ticket dto.SupportTicket
		require.NoError(t, json.Unmarshal(data, &ticket))
		assert.Equal(t, "user@example.com", ticket.ReportedBy)
		assert.Equal(t, types.PriorityHigh, ticket.Priority)
		assert.Equal(t, []string{"admin@example.com"}, ticket.Admins)
	})

	t.Run("обращение уходит в telegram", func(t *testing.T) {
		ts := newTestServer(t)
		chat := &chatRecorder{}
		ts.s.telegram = notifications.NewTelegramServiceWithSender(chat, []int64{42})
		user := ts.register(t, "user@example.com")

		rec := ts.do(t, http.MethodPost, "/api/auth/support-tickets/", user.Token, dto.SupportTicketRequest{Summary: "Cannot export", Priority: "low"})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		require.Len(t, chat.texts, 1)
		assert.Contains(t, chat.texts[0], "[Low]")
		assert.Contains(t, chat.texts[0], "Cannot export")
	})

	t.Run("неверный приоритет", func(t *testing.T) {
		ts := newTestServer(t)
		user := ts.register(t, "user@example.com")
		rec := ts.do(t, http.MethodPost, "/api/auth/support-tickets/", user.Token, dto.SupportTicketRequest{Summary: "x", Priority: "urgent"})
		assertAPIError(t, rec, apierrors.ErrInvalidPriority)
	})

	t.Run("интеграции не настроены", func(t *testing.T) {
		ts := newTestServer(t)
		user := ts.register(t, "user@example.com")

		rec := ts.do(t, http.MethodPost, "/api/auth/users/"+user.User.ID+"/salesforce/", user.Token, dto.CRMContact{Name: "User", Email: "user@example.com"})
		assertAPIError(t, rec, apierrors.ErrCRMNotConfigured)

		rec = ts.do(t, http.MethodPost, "/api/auth/sync/templates/", user.Token, nil)
		assertAPIError(t, rec, apierrors.ErrTabularNotConfigured)
	})

	t.Run("контакт чужого пользователя", func(t *testing.T) {
		ts := newTestServer(t)
		user := ts.register(t, "user@example.com")
		other := ts.register(t, "other@example.com")
		rec := ts.do(t, http.MethodPost, "/api/auth/users/"+other.User.ID+"/salesforce/", user.Token, dto.CRMContact{Name: "Other", Email: "other@example.com"})
		assertAPIError(t, rec, apierrors.ErrNotAdmin)
	})
}

type chatRecorder struct {
	texts []string
}

func (c *chatRecorder) SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error) {
	c.texts = append(c.texts, params.Text)
	return &models.Message{}, nil
}

func TestServiceEndpoints(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/version/", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, dto.VersionResponse{Version: "test", SignUp: true, Captcha: false}, decode[dto.VersionResponse](t, rec))

	rec = ts.do(t, http.MethodGet, "/api/_health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "AIForms", rec.Header().Get(echo.HeaderServer))

	rec = ts.do(t, http.MethodGet, "/api/files/images/missing.jpg/", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
