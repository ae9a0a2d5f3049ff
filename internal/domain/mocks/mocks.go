// Package mocks holds testify mocks for the domain ports.
package mocks

import (
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/fairyhunter13/ai-content-publisher/internal/domain"
)

// MockArticleRepository mocks domain.ArticleRepository.
type MockArticleRepository struct{ mock.Mock }

func (m *MockArticleRepository) Create(ctx domain.Context, a domain.Article) (string, error) {
	args := m.Called(ctx, a)
	return args.String(0), args.Error(1)
}

func (m *MockArticleRepository) Get(ctx domain.Context, owner, id string) (domain.Article, error) {
	args := m.Called(ctx, owner, id)
	return args.Get(0).(domain.Article), args.Error(1)
}

func (m *MockArticleRepository) UpdatePublishState(ctx domain.Context, a domain.Article) error {
	return m.Called(ctx, a).Error(0)
}

// MockSiteRepository mocks domain.SiteRepository.
type MockSiteRepository struct{ mock.Mock }

func (m *MockSiteRepository) Create(ctx domain.Context, s domain.Site) (string, error) {
	args := m.Called(ctx, s)
	return args.String(0), args.Error(1)
}

func (m *MockSiteRepository) Get(ctx domain.Context, owner, id string) (domain.Site, error) {
	args := m.Called(ctx, owner, id)
	return args.Get(0).(domain.Site), args.Error(1)
}

// MockBatchRepository mocks domain.BatchRepository.
type MockBatchRepository struct{ mock.Mock }

func (m *MockBatchRepository) Create(ctx domain.Context, b domain.Batch) (string, error) {
	args := m.Called(ctx, b)
	return args.String(0), args.Error(1)
}

func (m *MockBatchRepository) Get(ctx domain.Context, owner, id string) (domain.Batch, error) {
	args := m.Called(ctx, owner, id)
	return args.Get(0).(domain.Batch), args.Error(1)
}

func (m *MockBatchRepository) UpdateStatus(ctx domain.Context, id string, status domain.BatchStatus, report *domain.BatchReport) error {
	return m.Called(ctx, id, status, report).Error(0)
}

// MockBatchQueue mocks domain.BatchQueue.
type MockBatchQueue struct{ mock.Mock }

func (m *MockBatchQueue) EnqueueBatch(ctx domain.Context, task domain.BatchTask) error {
	return m.Called(ctx, task).Error(0)
}

// MockUsageRepository mocks domain.UsageRepository.
type MockUsageRepository struct{ mock.Mock }

func (m *MockUsageRepository) Record(ctx domain.Context, u domain.UsageRecord) error {
	return m.Called(ctx, u).Error(0)
}

func (m *MockUsageRepository) SumSince(ctx domain.Context, owner, service string, since time.Time) (domain.UsageRecord, error) {
	args := m.Called(ctx, owner, service, since)
	return args.Get(0).(domain.UsageRecord), args.Error(1)
}

// MockCredentialRepository mocks domain.CredentialRepository.
type MockCredentialRepository struct{ mock.Mock }

func (m *MockCredentialRepository) Create(ctx domain.Context, c domain.Credential) (string, error) {
	args := m.Called(ctx, c)
	return args.String(0), args.Error(1)
}

func (m *MockCredentialRepository) ListByOwnerService(ctx domain.Context, owner, service string) ([]domain.Credential, error) {
	args := m.Called(ctx, owner, service)
	creds, _ := args.Get(0).([]domain.Credential)
	return creds, args.Error(1)
}
