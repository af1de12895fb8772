package integrations

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/aisa-it/aiforms/internal/aiforms/dto"
	"github.com/hashicorp/go-retryablehttp"
)

const crmLeadPath = "/services/data/v58.0/sobjects/Lead/"

// CRMClient создает лиды в CRM (REST API sobjects)
type CRMClient struct {
	baseURL string
	token   string
	client  *retryablehttp.Client
}

type crmLead struct {
	LastName    string `json:"LastName"`
	Email       string `json:"Email"`
	Phone       string `json:"Phone,omitempty"`
	Company     string `json:"Company"`
	Title       string `json:"Title,omitempty"`
	LeadSource  string `json:"LeadSource"`
	Description string `json:"Description,omitempty"`
}

type crmCreateResponse struct {
	ID      string `json:"id"`
	Success bool   `json:"success"`
}

// NewCRMClient возвращает nil, если адрес CRM не задан
func NewCRMClient(baseURL, token string) *CRMClient {
	if baseURL == "" {
		return nil
	}
	return &CRMClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		client:  newRetryClient(15 * time.Second),
	}
}

// CreateContact создает лид по контактным данным пользователя и возвращает его идентификатор в CRM.
// Компания обязательна для лида, при пустом значении подставляется "Individual".
func (c *CRMClient) CreateContact(ctx context.Context, userID string, contact dto.CRMContact) (string, error) {
	if c == nil {
		return "", ErrNotConfigured
	}

	company := strings.TrimSpace(contact.Company)
	if company == "" {
		company = "Individual"
	}
	lead := crmLead{
		LastName:    strings.TrimSpace(contact.Name),
		Email:       strings.TrimSpace(contact.Email),
		Phone:       strings.TrimSpace(contact.Phone),
		Company:     company,
		Title:       strings.TrimSpace(contact.JobTitle),
		LeadSource:  "Web",
		Description: "forms user " + userID,
	}

	var resp crmCreateResponse
	if err := doJSON(ctx, c.client, http.MethodPost, c.baseURL+crmLeadPath, c.token, lead, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}
