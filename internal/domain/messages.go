package domain

import "errors"

// UserMessage returns the Turkish message shown to end users for err.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrQuotaExceeded):
		return "Günlük kullanım limitinize ulaştınız. Lütfen daha sonra tekrar deneyin veya ücretli bir API anahtarı kullanın."
	case errors.Is(err, ErrPublishBlocked):
		return "İçerik siteye gönderilemedi. Site güvenlik duvarı veya sunucu isteği reddetti."
	case errors.Is(err, ErrPublishUnverified):
		return "İçerik gönderildi ancak sitede doğrulanamadı. Lütfen siteyi kontrol edin."
	case errors.Is(err, ErrInvalidArgument):
		return "Geçersiz istek. Lütfen girdiğiniz bilgileri kontrol edin."
	case errors.Is(err, ErrNotFound):
		return "İstenen kayıt bulunamadı."
	case errors.Is(err, ErrConflict):
		return "Kayıt zaten mevcut."
	case errors.Is(err, ErrRateLimited):
		return "Çok fazla istek gönderdiniz. Lütfen biraz bekleyin."
	case errors.Is(err, ErrUpstreamTimeout):
		return "Yapay zeka servisi zamanında yanıt vermedi. Lütfen tekrar deneyin."
	case errors.Is(err, ErrUpstream):
		return "Yapay zeka servisi bir hata döndürdü. Lütfen tekrar deneyin."
	default:
		return "Beklenmeyen bir hata oluştu."
	}
}
