// Ограничения тарифа: сколько шаблонов может создать пользователь и можно ли загружать изображения.
//
// По умолчанию используется CommunityLimiter без ограничений. Если задан адрес внешнего сервиса,
// решения принимает он (см. ExternalLimiter).
package limiter

import (
	"context"
	"log/slog"
	"net/url"

	"github.com/gofrs/uuid"
)

const Unlimited = 99999999

type LimitsInfo struct {
	TariffName       string `json:"tariffName"`
	TemplatesRemains int    `json:"templatesRemains"`
}

type LimiterInt interface {
	GetLimitsInfo(ctx context.Context, userId uuid.UUID) LimitsInfo

	CanCreateTemplate(ctx context.Context, userId uuid.UUID) bool
	CanUploadImage(ctx context.Context, userId uuid.UUID) bool

	GetRemainingTemplates(ctx context.Context, userId uuid.UUID) int
}

// New возвращает внешний лимитер для непустого rawURL и CommunityLimiter иначе
func New(rawURL string) (LimiterInt, error) {
	if rawURL == "" {
		slog.Info("Using Community limiter")
		return CommunityLimiter{}, nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	slog.Info("Using external limiter", "host", u.Host)
	return NewExternalLimiter(u), nil
}

type CommunityLimiter struct{}

func (c CommunityLimiter) GetLimitsInfo(ctx context.Context, userId uuid.UUID) LimitsInfo {
	return LimitsInfo{
		TariffName:       "community",
		TemplatesRemains: Unlimited,
	}
}

func (c CommunityLimiter) CanCreateTemplate(ctx context.Context, userId uuid.UUID) bool {
	return true
}

func (c CommunityLimiter) CanUploadImage(ctx context.Context, userId uuid.UUID) bool {
	return true
}

func (c CommunityLimiter) GetRemainingTemplates(ctx context.Context, userId uuid.UUID) int {
	return Unlimited
}
