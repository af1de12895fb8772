// Капча altcha для регистрации и входа.
//
// Основные возможности:
//   - Выдача задачи (challenge) с HMAC подписью и сроком действия.
//   - Проверка решения и защита от повторного использования подписи.
//   - Счетчик повторов для обнаружения атак.
package aiforms

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/altcha-org/altcha-lib-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	altchaFallbackKey = "qwdlelqwedmkdejmi931jnfk8wedweffwe23nefdqd0-q"
	altchaMaxNumber   = 10000
)

var AltchaExpires = time.Hour

var captchaReplays = promauto.NewCounter(prometheus.CounterOpts{
	Name: "captcha_replica_attacks_total",
	Help: "Total count of duplicated signatures in requests with captcha",
})

type CaptchaService struct {
	hmacKey  string
	disabled bool

	signatures map[string]struct{}
	mu         sync.Mutex
}

// NewCaptchaService создает сервис капчи. Ключ HMAC берется из секрета сервера.
// При disabled любое решение считается верным.
func NewCaptchaService(secret string, disabled bool) *CaptchaService {
	key := secret
	if key == "" {
		key = altchaFallbackKey
	}
	return &CaptchaService{hmacKey: key, disabled: disabled, signatures: make(map[string]struct{})}
}

func (c *CaptchaService) Enabled() bool {
	return !c.disabled
}

func (c *CaptchaService) Challenge() (altcha.Challenge, error) {
	expires := time.Now().Add(AltchaExpires)
	return altcha.CreateChallenge(altcha.ChallengeOptions{
		HMACKey:   c.hmacKey,
		MaxNumber: altchaMaxNumber,
		Expires:   &expires,
		Params:    url.Values{},
	})
}

// Validate проверяет решение капчи в base64 и запоминает подпись, чтобы решение нельзя было использовать дважды.
//
// Параметры:
//   - payload: решение altcha в base64
//
// Возвращает:
//   - bool: true, если решение верное и подпись еще не использовалась
func (c *CaptchaService) Validate(payload string) bool {
	if c.disabled {
		return true
	}

	decodedPayload, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		slog.Debug("Decode altcha payload", "err", err)
		return false
	}

	var m altcha.Payload
	if err := json.Unmarshal(decodedPayload, &m); err != nil {
		slog.Debug("Unmarshal altcha payload", "err", err)
		return false
	}

	verified, err := altcha.VerifySolution(m, c.hmacKey, true)
	if err != nil || !verified {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.signatures[m.Signature]; ok {
		captchaReplays.Inc()
		return false
	}
	c.signatures[m.Signature] = struct{}{}
	return true
}

// Clear забывает использованные подписи. Запускается по расписанию, реже срока действия задачи.
func (c *CaptchaService) Clear(_ context.Context) error {
	c.mu.Lock()
	n := len(c.signatures)
	clear(c.signatures)
	c.mu.Unlock()
	slog.Info("Clear captchas signatures", "count", n)
	return nil
}
