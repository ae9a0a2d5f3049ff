package usecase

import (
	"fmt"
	"strings"
	"time"

	"github.com/fairyhunter13/ai-content-publisher/internal/domain"
	"github.com/fairyhunter13/ai-content-publisher/internal/keyring"
)

// KeyStatusReader is satisfied by *keyring.Selector.
type KeyStatusReader interface {
	Status(ctx domain.Context, owner, service string) (keyring.Status, error)
}

// QuotaReport combines credential availability with recent usage.
type QuotaReport struct {
	keyring.Status
	Requests24h int       `json:"requests_24h"`
	Tokens24h   int       `json:"tokens_24h"`
	Since       time.Time `json:"since"`
}

// QuotaService answers "how many keys do I have left" for one service.
type QuotaService struct {
	Keys  KeyStatusReader
	Usage domain.UsageRepository
	Now   func() time.Time
}

// NewQuotaService constructs a QuotaService. usage may be nil.
func NewQuotaService(keys KeyStatusReader, usage domain.UsageRepository) QuotaService {
	return QuotaService{Keys: keys, Usage: usage, Now: time.Now}
}

// Report returns the owner's key status and the last 24h of usage.
func (s QuotaService) Report(ctx domain.Context, owner, service string) (QuotaReport, error) {
	service = strings.ToLower(strings.TrimSpace(service))
	if service != domain.ServiceGemini && service != domain.ServiceOpenAI {
		return QuotaReport{}, fmt.Errorf("%w: unknown service %q", domain.ErrInvalidArgument, service)
	}
	st, err := s.Keys.Status(ctx, owner, service)
	if err != nil {
		return QuotaReport{}, err
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	rep := QuotaReport{Status: st, Since: now().UTC().Add(-24 * time.Hour)}
	if s.Usage != nil {
		u, err := s.Usage.SumSince(ctx, owner, service, rep.Since)
		if err != nil {
			return QuotaReport{}, err
		}
		rep.Requests24h, rep.Tokens24h = u.Requests, u.Tokens
	}
	return rep, nil
}
