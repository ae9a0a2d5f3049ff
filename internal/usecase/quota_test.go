package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ai-content-publisher/internal/domain"
	"github.com/fairyhunter13/ai-content-publisher/internal/domain/mocks"
	"github.com/fairyhunter13/ai-content-publisher/internal/keyring"
	"github.com/fairyhunter13/ai-content-publisher/internal/usecase"
)

type staticKeys struct {
	st  keyring.Status
	err error
}

func (s staticKeys) Status(_ domain.Context, _, service string) (keyring.Status, error) {
	st := s.st
	st.Service = service
	return st, s.err
}

func TestQuotaService_Report(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	usage := &mocks.MockUsageRepository{}
	usage.On("SumSince", context.Background(), "alice", domain.ServiceGemini, now.Add(-24*time.Hour)).
		Return(domain.UsageRecord{Requests: 7, Tokens: 4200}, nil).Once()

	svc := usecase.NewQuotaService(staticKeys{st: keyring.Status{Total: 3, Exhausted: 1, Available: 2}}, usage)
	svc.Now = func() time.Time { return now }

	rep, err := svc.Report(context.Background(), "alice", " Gemini ")
	require.NoError(t, err)
	assert.Equal(t, domain.ServiceGemini, rep.Service)
	assert.Equal(t, 3, rep.Total)
	assert.Equal(t, 1, rep.Exhausted)
	assert.Equal(t, 2, rep.Available)
	assert.Equal(t, 7, rep.Requests24h)
	assert.Equal(t, 4200, rep.Tokens24h)
	usage.AssertExpectations(t)
}

func TestQuotaService_Report_Errors(t *testing.T) {
	svc := usecase.NewQuotaService(staticKeys{}, nil)
	_, err := svc.Report(context.Background(), "alice", "claude")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	boom := errors.New("db down")
	svc = usecase.NewQuotaService(staticKeys{err: boom}, nil)
	_, err = svc.Report(context.Background(), "alice", domain.ServiceOpenAI)
	assert.ErrorIs(t, err, boom)

	rep, err := usecase.NewQuotaService(staticKeys{st: keyring.Status{Total: 1, Available: 1}}, nil).
		Report(context.Background(), "alice", domain.ServiceOpenAI)
	require.NoError(t, err)
	assert.Zero(t, rep.Requests24h)
}
