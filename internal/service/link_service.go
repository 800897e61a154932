package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/parthsharma2/linksight/internal/domain"
	"github.com/parthsharma2/linksight/internal/pkg/metrics"
	"go.uber.org/zap"
)

// aliases: letters, digits, hyphen, underscore, 3-50 chars
var aliasPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{3,50}$`)

// CodeGenerator produces candidate short codes for auto-allocated links.
type CodeGenerator interface {
	Generate() (string, error)
}

type LinkService struct {
	links  domain.LinkRepository
	cache  domain.LinkCache
	ledger domain.QuotaLedger
	plans  domain.PlanSource
	keyGen CodeGenerator
	logger *zap.Logger
	m      *metrics.Metrics

	baseURL       string
	maxAllocTries int
	cacheTTL      time.Duration
}

type LinkServiceConfig struct {
	BaseURL       string
	MaxAllocTries int
	CacheTTL      time.Duration
}

func NewLinkService(
	links domain.LinkRepository,
	cache domain.LinkCache,
	ledger domain.QuotaLedger,
	plans domain.PlanSource,
	keyGen CodeGenerator,
	logger *zap.Logger,
	m *metrics.Metrics,
	cfg LinkServiceConfig,
) *LinkService {
	if cfg.MaxAllocTries <= 0 {
		cfg.MaxAllocTries = 5
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = 24 * time.Hour
	}

	return &LinkService{
		links:         links,
		cache:         cache,
		ledger:        ledger,
		plans:         plans,
		keyGen:        keyGen,
		logger:        logger,
		m:             m,
		baseURL:       strings.TrimSuffix(cfg.BaseURL, "/"),
		maxAllocTries: cfg.MaxAllocTries,
		cacheTTL:      cfg.CacheTTL,
	}
}

func validateDestination(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return domain.ErrInvalidURL
	}
	if (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return domain.ErrInvalidURL
	}
	return nil
}

// Create runs the creation workflow: validate, quota-gate, allocate a code
// and write the record. The store's unique constraint is the final arbiter of
// alias collisions; a reservation is released if the write never happens.
func (s *LinkService) Create(ctx context.Context, ownerID string, req *domain.CreateLinkRequest) (*domain.CreateLinkResponse, error) {
	if err := validateDestination(req.OriginalURL); err != nil {
		return nil, err
	}

	customAlias := ""
	if req.CustomAlias != nil && *req.CustomAlias != "" {
		customAlias = *req.CustomAlias
		if !aliasPattern.MatchString(customAlias) {
			return nil, domain.ErrInvalidAlias
		}
	}

	sub, err := s.plans.CurrentSubscription(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("resolve subscription: %w", err)
	}

	if err := s.ledger.CheckAndReserveLink(ctx, sub); err != nil {
		if errors.Is(err, domain.ErrQuotaExceeded) {
			if s.m != nil {
				s.m.QuotaDeniedTotal.Inc()
			}
			s.logger.Info("link creation denied by quota",
				zap.String("owner_id", ownerID),
				zap.String("subscription_id", sub.ID),
			)
		}
		return nil, err
	}

	var expiresAt *time.Time
	if req.ExpiresIn != nil && *req.ExpiresIn > 0 {
		exp := time.Now().UTC().Add(time.Duration(*req.ExpiresIn) * time.Second)
		expiresAt = &exp
	}

	link, err := s.allocate(ctx, ownerID, req.OriginalURL, customAlias, expiresAt)
	if err != nil {
		// the reservation guarded a write that never landed
		if relErr := s.ledger.ReleaseLink(ctx, sub); relErr != nil {
			s.logger.Warn("failed to release link reservation", zap.Error(relErr))
		}
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, link, s.cacheTTL); err != nil {
			s.logger.Warn("failed to cache new link", zap.Error(err))
		}
	}

	if s.m != nil {
		s.m.LinksCreatedTotal.Inc()
	}
	s.logger.Info("link created",
		zap.String("short_id", link.ShortID),
		zap.String("owner_id", ownerID),
		zap.Bool("custom_alias", customAlias != ""),
	)

	return &domain.CreateLinkResponse{
		ShortID:     link.ShortID,
		ShortURL:    s.baseURL + "/" + link.ShortID,
		OriginalURL: link.OriginalURL,
		ExpiresAt:   link.ExpiresAt,
		CreatedAt:   link.CreatedAt,
	}, nil
}

func (s *LinkService) allocate(ctx context.Context, ownerID, originalURL, customAlias string, expiresAt *time.Time) (*domain.ShortLink, error) {
	newLink := func(shortID string) *domain.ShortLink {
		return &domain.ShortLink{
			ShortID:     shortID,
			OriginalURL: originalURL,
			OwnerID:     ownerID,
			IsActive:    true,
			ExpiresAt:   expiresAt,
		}
	}

	if customAlias != "" {
		link := newLink(customAlias)
		if err := s.links.Create(ctx, link); err != nil {
			return nil, err
		}
		return link, nil
	}

	// collisions are a defensive rarity given the code space; a handful of
	// retries is plenty
	for attempt := 0; attempt < s.maxAllocTries; attempt++ {
		code, err := s.keyGen.Generate()
		if err != nil {
			return nil, fmt.Errorf("generate short code: %w", err)
		}

		link := newLink(code)
		err = s.links.Create(ctx, link)
		if err == nil {
			return link, nil
		}
		if !errors.Is(err, domain.ErrAliasTaken) {
			return nil, err
		}
		s.logger.Warn("short code collision, retrying",
			zap.String("short_id", code),
			zap.Int("attempt", attempt+1),
		)
	}

	return nil, domain.ErrAllocationExhausted
}

// Update patches a link's mutable fields. The short code itself is immutable.
func (s *LinkService) Update(ctx context.Context, ownerID, shortID string, req *domain.UpdateLinkRequest) (*domain.ShortLink, error) {
	if req.OriginalURL != nil {
		if err := validateDestination(*req.OriginalURL); err != nil {
			return nil, err
		}
	}

	patch := domain.LinkPatch{
		OriginalURL: req.OriginalURL,
		IsActive:    req.IsActive,
		ClearExpiry: req.ClearExpiry,
	}
	if req.ExpiresIn != nil && *req.ExpiresIn > 0 {
		exp := time.Now().UTC().Add(time.Duration(*req.ExpiresIn) * time.Second)
		patch.ExpiresAt = &exp
	}

	link, err := s.links.Update(ctx, shortID, ownerID, patch)
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, shortID)
	return link, nil
}

func (s *LinkService) Delete(ctx context.Context, ownerID, shortID string) error {
	if err := s.links.Delete(ctx, shortID, ownerID); err != nil {
		return err
	}

	s.invalidate(ctx, shortID)
	s.logger.Info("link deleted",
		zap.String("short_id", shortID),
		zap.String("owner_id", ownerID),
	)
	return nil
}

// invalidate drops the cached entry so edits take effect on the next resolve.
func (s *LinkService) invalidate(ctx context.Context, shortID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, shortID); err != nil {
		s.logger.Warn("failed to invalidate link cache",
			zap.String("short_id", shortID),
			zap.Error(err),
		)
	}
}

func (s *LinkService) List(ctx context.Context, ownerID string, page, pageSize int) ([]domain.ShortLink, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return s.links.ListByOwner(ctx, ownerID, pageSize, (page-1)*pageSize)
}

// GetOwned fetches a link and enforces record-level ownership, for the
// owner-facing stats and detail endpoints.
func (s *LinkService) GetOwned(ctx context.Context, ownerID, shortID string) (*domain.ShortLink, error) {
	link, err := s.links.Get(ctx, shortID)
	if err != nil {
		return nil, err
	}
	if link.OwnerID != ownerID {
		return nil, domain.ErrForbidden
	}
	return link, nil
}

// Usage reports the owner's current quota snapshot.
func (s *LinkService) Usage(ctx context.Context, ownerID string) (*domain.Usage, error) {
	sub, err := s.plans.CurrentSubscription(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("resolve subscription: %w", err)
	}
	return s.ledger.CurrentUsage(ctx, sub)
}
