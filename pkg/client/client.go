// Клиент REST API сервиса форм.
//
// Основные возможности:
//   - Явная сессия (Start/Close) с корневым контекстом: Close прерывает все незавершенные запросы.
//   - Пара токенов доступа, обновляемая по заголовкам X-Access-Token и X-Refresh-Token после продления на сервере.
//   - Повтор запросов при сетевых ошибках и ответах 5xx (go-retryablehttp), изменяющие запросы повторяются только при сетевой ошибке.
//   - Ошибки API декодируются в *APIError.
//
// Session реализует submission.Persister и search.Fetcher.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aisa-it/aiforms/internal/aiforms/dto"
	"github.com/aisa-it/aiforms/internal/aiforms/search"
	"github.com/aisa-it/aiforms/internal/aiforms/submission"
	"github.com/hashicorp/go-retryablehttp"
)

const (
	HeaderAccessToken  = "X-Access-Token"
	HeaderRefreshToken = "X-Refresh-Token"

	defaultTimeout = 30 * time.Second
)

var ErrSessionClosed = errors.New("client session closed")

var (
	_ submission.Persister = (*Session)(nil)
	_ search.Fetcher       = (*Session)(nil)
)

type Session struct {
	baseURL *url.URL
	http    *retryablehttp.Client

	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.RWMutex
	accessToken  string
	refreshToken string
	user         *dto.User
}

type Option func(*Session)

// WithRetryMax задает число повторов запроса
func WithRetryMax(n int) Option {
	return func(s *Session) { s.http.RetryMax = n }
}

func WithTimeout(d time.Duration) Option {
	return func(s *Session) { s.http.HTTPClient.Timeout = d }
}

// WithRetryWait задает границы паузы между повторами
func WithRetryWait(min, max time.Duration) Option {
	return func(s *Session) {
		s.http.RetryWaitMin = min
		s.http.RetryWaitMax = max
	}
}

// WithTokens восстанавливает ранее сохраненную пару токенов
func WithTokens(access, refresh string) Option {
	return func(s *Session) {
		s.accessToken = access
		s.refreshToken = refresh
	}
}

// Start открывает сессию клиента.
//
// Параметры:
//   - parent: родительский контекст, его отмена завершает сессию
//   - baseURL: адрес сервера, например https://forms.example.com
//   - opts: настройки повторов, таймаута и токенов
//
// Возвращает:
//   - *Session: сессия, которую нужно закрыть через Close
//   - error: некорректный адрес сервера
func Start(parent context.Context, baseURL string, opts ...Option) (*Session, error) {
	u, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", baseURL)
	}

	cl := retryablehttp.NewClient()
	cl.RetryMax = 3
	cl.RetryWaitMin = 200 * time.Millisecond
	cl.RetryWaitMax = 2 * time.Second
	cl.HTTPClient.Timeout = defaultTimeout
	cl.Logger = slog.Default()
	cl.CheckRetry = checkRetry
	cl.ErrorHandler = retryablehttp.PassthroughErrorHandler

	ctx, cancel := context.WithCancel(parent)
	s := &Session{baseURL: u, http: cl, ctx: ctx, cancel: cancel}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close отменяет все незавершенные запросы сессии и закрывает соединения
func (s *Session) Close() {
	s.cancel()
	s.http.HTTPClient.CloseIdleConnections()
}

// Context - корневой контекст сессии
func (s *Session) Context() context.Context {
	return s.ctx
}

func (s *Session) Tokens() (access, refresh string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken, s.refreshToken
}

// User - пользователь, полученный при входе или через Me
func (s *Session) User() *dto.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

func (s *Session) setAuth(resp *dto.AuthResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessToken = resp.Token
	s.refreshToken = resp.RefreshToken
	s.user = resp.User
}

// Изменяющие запросы повторяются только если ответа не было
func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if resp != nil && resp.Request != nil && resp.Request.Method != http.MethodGet {
		return false, nil
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}

// requestContext отменяется и при отмене ctx, и при закрытии сессии
func (s *Session) requestContext(ctx context.Context) (context.Context, context.CancelFunc, error) {
	if s.ctx.Err() != nil {
		return nil, nil, ErrSessionClosed
	}
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(s.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}, nil
}

func (s *Session) endpoint(p string, query url.Values) string {
	u := *s.baseURL
	u.Path = strings.TrimSuffix(u.Path, "/") + "/api/" + strings.Trim(p, "/") + "/"
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// do выполняет запрос к API. body сериализуется в JSON, если это не *multipartBody.
func (s *Session) do(ctx context.Context, method, p string, query url.Values, body, out any) error {
	ctx, cancel, err := s.requestContext(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	var raw []byte
	contentType := "application/json"
	switch b := body.(type) {
	case nil:
	case *multipartBody:
		raw, contentType = b.data, b.contentType
	default:
		if raw, err = json.Marshal(body); err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, s.endpoint(p, query), raw)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if raw != nil {
		req.Header.Set("Content-Type", contentType)
	}
	if access, _ := s.Tokens(); access != "" {
		req.Header.Set("Authorization", "Bearer "+access)
	}
	if _, refresh := s.Tokens(); refresh != "" {
		req.AddCookie(&http.Cookie{Name: "refresh_token", Value: refresh})
	}

	resp, err := s.http.Do(req)
	if err != nil {
		if s.ctx.Err() != nil {
			return fmt.Errorf("%s %s: %w", method, p, ErrSessionClosed)
		}
		return fmt.Errorf("%s %s: %w", method, p, err)
	}
	defer resp.Body.Close()

	s.updateTokens(resp.Header)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, p, err)
	}
	return nil
}

// Сервер продлевает просроченный access токен и возвращает новую пару в заголовках
func (s *Session) updateTokens(h http.Header) {
	access, refresh := h.Get(HeaderAccessToken), h.Get(HeaderRefreshToken)
	if access == "" || refresh == "" {
		return
	}
	s.mu.Lock()
	s.accessToken = access
	s.refreshToken = refresh
	s.mu.Unlock()
}

type multipartBody struct {
	data        []byte
	contentType string
}

// Register регистрирует пользователя и сохраняет выданные токены в сессии
func (s *Session) Register(ctx context.Context, req dto.RegisterRequest) (*dto.User, error) {
	var resp dto.AuthResponse
	if err := s.do(ctx, http.MethodPost, "auth/register", nil, req, &resp); err != nil {
		return nil, err
	}
	s.setAuth(&resp)
	return resp.User, nil
}

// Login выполняет вход и сохраняет выданные токены в сессии
func (s *Session) Login(ctx context.Context, email, password, captchaPayload string) (*dto.User, error) {
	var resp dto.AuthResponse
	if err := s.do(ctx, http.MethodPost, "auth/login", nil, dto.LoginRequest{
		Email:          email,
		Password:       password,
		CaptchaPayload: captchaPayload,
	}, &resp); err != nil {
		return nil, err
	}
	s.setAuth(&resp)
	return resp.User, nil
}

func (s *Session) Me(ctx context.Context) (*dto.User, error) {
	var user dto.User
	if err := s.do(ctx, http.MethodGet, "auth/me", nil, nil, &user); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.user = &user
	s.mu.Unlock()
	return &user, nil
}

// Logout отзывает токены на сервере и забывает их в сессии
func (s *Session) Logout(ctx context.Context) error {
	if err := s.do(ctx, http.MethodPost, "auth/logout", nil, nil, nil); err != nil {
		return err
	}
	s.setAuth(&dto.AuthResponse{})
	return nil
}

// SearchTemplates запрашивает страницу поиска шаблонов
func (s *Session) SearchTemplates(ctx context.Context, query string, page, limit int) (*dto.SearchResult, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(search.NormalizeLimit(limit)))

	var res dto.SearchResult
	if err := s.do(ctx, http.MethodGet, "templates/search", q, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (s *Session) LatestTemplates(ctx context.Context) ([]dto.TemplateLight, error) {
	var res []dto.TemplateLight
	err := s.do(ctx, http.MethodGet, "templates/latest", nil, nil, &res)
	return res, err
}

func (s *Session) PopularTemplates(ctx context.Context) ([]dto.TemplateLight, error) {
	var res []dto.TemplateLight
	err := s.do(ctx, http.MethodGet, "templates/popular", nil, nil, &res)
	return res, err
}

func (s *Session) GetTemplate(ctx context.Context, id string) (*dto.Template, error) {
	var tmpl dto.Template
	if err := s.do(ctx, http.MethodGet, "templates/"+url.PathEscape(id), nil, nil, &tmpl); err != nil {
		return nil, err
	}
	return &tmpl, nil
}

func (s *Session) CreateTemplate(ctx context.Context, payload dto.TemplatePayload) (*dto.Template, error) {
	var tmpl dto.Template
	if err := s.do(ctx, http.MethodPost, "auth/templates", nil, payload, &tmpl); err != nil {
		return nil, err
	}
	return &tmpl, nil
}

func (s *Session) UpdateTemplate(ctx context.Context, id string, payload dto.TemplatePayload) (*dto.Template, error) {
	var tmpl dto.Template
	if err := s.do(ctx, http.MethodPut, "auth/templates/"+url.PathEscape(id), nil, payload, &tmpl); err != nil {
		return nil, err
	}
	return &tmpl, nil
}

// UserTemplates - страница шаблонов текущего пользователя
func (s *Session) UserTemplates(ctx context.Context, page, limit int) (*dto.PaginatedResponse[dto.TemplateLight], error) {
	var res dto.PaginatedResponse[dto.TemplateLight]
	if err := s.do(ctx, http.MethodGet, "auth/user/templates", pageQuery(page, limit), nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// TemplateForms - страница заполненных форм шаблона, доступно автору и администратору
func (s *Session) TemplateForms(ctx context.Context, templateID string, page, limit int) (*dto.PaginatedResponse[dto.Form], error) {
	var res dto.PaginatedResponse[dto.Form]
	if err := s.do(ctx, http.MethodGet, "auth/templates/"+url.PathEscape(templateID)+"/forms", pageQuery(page, limit), nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// UploadImage загружает картинку шаблона и возвращает ее адрес
func (s *Session) UploadImage(ctx context.Context, filename string, data []byte) (string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile("image", filename)
	if err != nil {
		return "", err
	}
	if _, err := fw.Write(data); err != nil {
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	var res dto.ImageUploadResponse
	if err := s.do(ctx, http.MethodPost, "auth/templates/upload-image", nil,
		&multipartBody{data: buf.Bytes(), contentType: w.FormDataContentType()}, &res); err != nil {
		return "", err
	}
	return res.URL, nil
}

// SubmitForm сохраняет заполненную форму
func (s *Session) SubmitForm(ctx context.Context, payload dto.FormPayload) (*dto.Form, error) {
	var form dto.Form
	if err := s.do(ctx, http.MethodPost, "auth/forms", nil, payload, &form); err != nil {
		return nil, err
	}
	return &form, nil
}

func (s *Session) CreateSupportTicket(ctx context.Context, req dto.SupportTicketRequest) (string, error) {
	var res dto.SupportTicketResponse
	if err := s.do(ctx, http.MethodPost, "auth/support-tickets", nil, req, &res); err != nil {
		return "", err
	}
	return res.Path, nil
}

// CreateCRMContact создает контакт пользователя userID в CRM
func (s *Session) CreateCRMContact(ctx context.Context, userID string, contact dto.CRMContact) (string, error) {
	var res dto.CRMContactResponse
	if err := s.do(ctx, http.MethodPost, "auth/users/"+url.PathEscape(userID)+"/salesforce", nil, contact, &res); err != nil {
		return "", err
	}
	return res.ID, nil
}

// SyncTemplates запускает выгрузку шаблонов во внешнюю таблицу. all выгружает все шаблоны (только администратор).
func (s *Session) SyncTemplates(ctx context.Context, all bool) (*dto.SyncResult, error) {
	var q url.Values
	if all {
		q = url.Values{"all": {"true"}}
	}
	var res dto.SyncResult
	if err := s.do(ctx, http.MethodPost, "auth/sync/templates", q, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func pageQuery(page, limit int) url.Values {
	q := url.Values{}
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	return q
}
