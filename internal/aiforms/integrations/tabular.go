package integrations

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// TabularRecord - строка внешней таблицы шаблонов
type TabularRecord struct {
	Name        string   `json:"Name"`
	Description string   `json:"Description"`
	Category    string   `json:"Category"`
	Tags        []string `json:"Tags"`
}

type RecordCreator interface {
	CreateRecord(ctx context.Context, rec TabularRecord) (string, error)
}

// TabularClient пишет записи в таблицу вида {base}/v0/{baseID}/{table}
type TabularClient struct {
	endpoint string
	token    string
	client   *retryablehttp.Client
}

// NewTabularClient возвращает nil, если адрес или база не заданы
func NewTabularClient(baseURL, token, baseID, table string) *TabularClient {
	if baseURL == "" || baseID == "" {
		return nil
	}
	if table == "" {
		table = "Templates"
	}
	return &TabularClient{
		endpoint: strings.TrimSuffix(baseURL, "/") + "/v0/" + url.PathEscape(baseID) + "/" + url.PathEscape(table),
		token:    token,
		client:   newRetryClient(10 * time.Second),
	}
}

func (c *TabularClient) CreateRecord(ctx context.Context, rec TabularRecord) (string, error) {
	if c == nil {
		return "", ErrNotConfigured
	}
	if rec.Tags == nil {
		rec.Tags = []string{}
	}

	var resp struct {
		ID string `json:"id"`
	}
	err := doJSON(ctx, c.client, http.MethodPost, c.endpoint, c.token, struct {
		Fields TabularRecord `json:"fields"`
	}{rec}, &resp)
	return resp.ID, err
}
