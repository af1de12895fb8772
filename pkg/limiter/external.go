package limiter

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gofrs/uuid"
	"github.com/hashicorp/go-retryablehttp"
)

// ExternalLimiter спрашивает разрешения у внешнего сервиса.
// Ответ 200 разрешает действие, остаток возвращается в заголовке X-Entity-Remain.
type ExternalLimiter struct {
	host   *url.URL
	client *retryablehttp.Client
}

func NewExternalLimiter(host *url.URL) *ExternalLimiter {
	cl := retryablehttp.NewClient()
	cl.RetryMax = 2
	cl.RetryWaitMin = 200 * time.Millisecond
	cl.RetryWaitMax = time.Second
	cl.HTTPClient.Timeout = 5 * time.Second
	cl.Logger = slog.Default()
	return &ExternalLimiter{host: host, client: cl}
}

func (c ExternalLimiter) GetLimitsInfo(ctx context.Context, userId uuid.UUID) LimitsInfo {
	return LimitsInfo{
		TariffName:       "external",
		TemplatesRemains: c.GetRemainingTemplates(ctx, userId),
	}
}

func (c ExternalLimiter) CanCreateTemplate(ctx context.Context, userId uuid.UUID) bool {
	return c.doRequest(ctx, "/can/create/template/by/"+userId.String())
}

func (c ExternalLimiter) CanUploadImage(ctx context.Context, userId uuid.UUID) bool {
	return c.doRequest(ctx, "/can/upload/image/by/"+userId.String())
}

func (c ExternalLimiter) GetRemainingTemplates(ctx context.Context, userId uuid.UUID) int {
	return c.doRemainRequest(ctx, "/remain/templates/by/"+userId.String())
}

func (c ExternalLimiter) get(ctx context.Context, path string) (*http.Response, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.host.ResolveReference(&url.URL{Path: path}).String(), nil)
	if err != nil {
		return nil, err
	}
	return c.client.Do(req)
}

func (c ExternalLimiter) doRemainRequest(ctx context.Context, path string) int {
	resp, err := c.get(ctx, path)
	if err != nil {
		slog.Error("Request remains", "err", err)
		return -1
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return -1
	}

	remain, err := strconv.Atoi(resp.Header.Get("X-Entity-Remain"))
	if err != nil {
		slog.Error("Parse remain answer", "raw", resp.Header.Get("X-Entity-Remain"), "err", err)
		return -1
	}
	return remain
}

func (c ExternalLimiter) doRequest(ctx context.Context, path string) bool {
	resp, err := c.get(ctx, path)
	if err != nil {
		slog.Error("Request access rule", "err", err)
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
