package dto

import (
	"time"

	"github.com/aisa-it/aiforms/internal/aiforms/types"
)

type SupportTicketRequest struct {
	Summary  string `json:"summary" validate:"required,max=4000"`
	Priority string `json:"priority" validate:"omitempty,priority"`
	Template string `json:"template"`
	Link     string `json:"link" validate:"omitempty,url"`
}

type SupportTicket struct {
	ReportedBy string         `json:"reportedBy"`
	Template   string         `json:"template"`
	Link       string         `json:"link"`
	Summary    string         `json:"summary"`
	Priority   types.Priority `json:"priority"`
	Admins     []string       `json:"admins"`
	CreatedAt  time.Time      `json:"createdAt"`
}

type SupportTicketResponse struct {
	Path string `json:"path"`
}

type CRMContact struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Phone    string `json:"phone"`
	Company  string `json:"company"`
	JobTitle string `json:"jobTitle"`
}

type SyncError struct {
	TemplateID string `json:"templateId"`
	Error      string `json:"error"`
}

type SyncResult struct {
	Success      bool        `json:"success"`
	SuccessCount int         `json:"successCount"`
	Errors       []SyncError `json:"errors"`
	Queued       bool        `json:"queued,omitempty"`
}

type VersionResponse struct {
	Version string `json:"version"`
	SignUp  bool   `json:"signUp"`
	Captcha bool   `json:"captcha"`
}

type CRMContactResponse struct {
	ID string `json:"id"`
}
