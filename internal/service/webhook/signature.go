package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

// SignatureHeader — HTTP-заголовок с подписью тела webhook-запроса.
const SignatureHeader = "X-Webhook-Signature"

// Verifier проверяет подпись webhook-запросов платёжного провайдера.
// Подпись — HMAC-SHA256 от сырого тела запроса в hex-кодировке.
type Verifier struct {
	secret []byte
}

// NewVerifier создаёт верификатор с общим секретом провайдера.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Sign вычисляет подпись тела. Используется тестами и клиентскими утилитами.
func (v *Verifier) Sign(body []byte) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify сверяет подпись с телом запроса. Сравнение выполняется за
// постоянное время, чтобы не давать атакующему сигнал о совпавшем префиксе.
func (v *Verifier) Verify(body []byte, signature string) error {
	if signature == "" {
		return domain.ErrSignatureInvalid
	}

	provided, err := hex.DecodeString(signature)
	if err != nil {
		return domain.ErrSignatureInvalid
	}

	mac := hmac.New(sha256.New, v.secret)
	mac.Write(body)
	if !hmac.Equal(provided, mac.Sum(nil)) {
		return domain.ErrSignatureInvalid
	}
	return nil
}
