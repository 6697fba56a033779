// internal/service/settings/settings_service.go
package settings

import (
	"context"
	"sync"
	"time"

	"babylon-billing-service/internal/config"
	domain "babylon-billing-service/internal/domain/settings"
	xerrors "babylon-billing-service/internal/pkg/errors"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Repository loads the app_settings row.
type Repository interface {
	Get(ctx context.Context) (*domain.GatewaySettings, error)
}

// Service resolves gateway settings per request: the database row wins,
// env values fill any blank field. Keeping the row authoritative lets
// credentials rotate without a redeploy.
type Service struct {
	repo     Repository
	logger   *zap.Logger
	fallback domain.GatewaySettings

	cacheTTL time.Duration
	mu       sync.Mutex
	cached   *domain.GatewaySettings
	cachedAt time.Time
}

func NewService(repo Repository, cfg config.AppConfig, logger *zap.Logger) *Service {
	fallback := domain.GatewaySettings{
		AsaasAPIKey:      cfg.AsaasAPIKey,
		AsaasEnvironment: domain.Environment(cfg.AsaasEnvironment),
	}

	if cfg.AsaasWebhookToken != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(cfg.AsaasWebhookToken), bcrypt.DefaultCost)
		if err != nil {
			logger.Error("failed to hash fallback webhook token", zap.Error(err))
		} else {
			fallback.WebhookTokenHash = string(hash)
		}
	}

	return &Service{
		repo:     repo,
		logger:   logger,
		fallback: fallback,
		cacheTTL: 30 * time.Second,
	}
}

// Gateway returns the effective gateway settings.
func (s *Service) Gateway(ctx context.Context) (domain.GatewaySettings, error) {
	s.mu.Lock()
	if s.cached != nil && time.Since(s.cachedAt) < s.cacheTTL {
		cached := *s.cached
		s.mu.Unlock()
		return cached, nil
	}
	s.mu.Unlock()

	row, err := s.repo.Get(ctx)
	if err != nil {
		if xerrors.Is(err, xerrors.ErrNotFound) {
			return s.fallback, nil
		}
		return domain.GatewaySettings{}, err
	}

	effective := *row
	if effective.AsaasAPIKey == "" {
		effective.AsaasAPIKey = s.fallback.AsaasAPIKey
	}
	if effective.AsaasEnvironment == "" {
		effective.AsaasEnvironment = s.fallback.AsaasEnvironment
	}
	if effective.WebhookTokenHash == "" {
		effective.WebhookTokenHash = s.fallback.WebhookTokenHash
	}

	s.mu.Lock()
	s.cached = &effective
	s.cachedAt = time.Now()
	s.mu.Unlock()

	return effective, nil
}

// VerifyWebhookToken checks an incoming webhook token against the
// configured hash. It fails closed: no configured secret means every
// delivery is rejected.
func (s *Service) VerifyWebhookToken(ctx context.Context, token string) error {
	gw, err := s.Gateway(ctx)
	if err != nil {
		return err
	}

	if gw.WebhookTokenHash == "" || token == "" {
		return xerrors.ErrUnauthorized
	}

	if bcrypt.CompareHashAndPassword([]byte(gw.WebhookTokenHash), []byte(token)) != nil {
		return xerrors.ErrUnauthorized
	}

	return nil
}

// Invalidate drops the settings cache, forcing the next read to hit the
// database.
func (s *Service) Invalidate() {
	s.mu.Lock()
	s.cached = nil
	s.mu.Unlock()
}
