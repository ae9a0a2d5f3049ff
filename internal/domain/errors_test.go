package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrQuotaExceeded_Message(t *testing.T) {
	assert.Equal(t, "daily usage limit reached, try again later or use a paid key", ErrQuotaExceeded.Error())
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"quota wrapped", fmt.Errorf("op=generation.Generate: %w", ErrQuotaExceeded), "Günlük kullanım limitinize ulaştınız. Lütfen daha sonra tekrar deneyin veya ücretli bir API anahtarı kullanın."},
		{"not found", ErrNotFound, "İstenen kayıt bulunamadı."},
		{"blocked", fmt.Errorf("%w: waf_blocked", ErrPublishBlocked), "İçerik siteye gönderilemedi. Site güvenlik duvarı veya sunucu isteği reddetti."},
		{"unknown", errors.New("boom"), "Beklenmeyen bir hata oluştu."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, UserMessage(tt.err))
		})
	}
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "****", MaskSecret("abc"))
	assert.Equal(t, "****wxyz", MaskSecret("AIzaSy-secret-wxyz"))
	assert.Equal(t, "****1234", Credential{Secret: "sk-abcd1234"}.Masked())
}
