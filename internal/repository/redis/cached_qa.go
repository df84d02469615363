package redis

import (
	"context"

	"github.com/Rrens/docqa/internal/domain"
	"github.com/rs/zerolog/log"
)

// CatalogStore is the cache behind CachedQAService
type CatalogStore interface {
	Get(ctx context.Context, owner string) ([]domain.DocumentRef, bool, error)
	Set(ctx context.Context, owner string, docs []domain.DocumentRef) error
	Invalidate(ctx context.Context, owner string) error
}

// CachedQAService reads the document catalog through a cache. Uploads and
// deletes invalidate it. Cache failures fall back to the service.
type CachedQAService struct {
	domain.QAService
	store CatalogStore
	owner string
}

// NewCachedQAService decorates qa with a per-owner catalog cache
func NewCachedQAService(qa domain.QAService, store CatalogStore, owner string) *CachedQAService {
	return &CachedQAService{QAService: qa, store: store, owner: owner}
}

// Documents returns the cached catalog or loads and caches it
func (s *CachedQAService) Documents(ctx context.Context) ([]domain.DocumentRef, error) {
	docs, ok, err := s.store.Get(ctx, s.owner)
	if err != nil {
		log.Warn().Err(err).Str("owner", s.owner).Msg("catalog cache read failed")
	}
	if ok {
		return docs, nil
	}

	docs, err = s.QAService.Documents(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.store.Set(ctx, s.owner, docs); err != nil {
		log.Warn().Err(err).Str("owner", s.owner).Msg("catalog cache write failed")
	}
	return docs, nil
}

// Upload forwards the upload and drops the cached catalog
func (s *CachedQAService) Upload(ctx context.Context, upload domain.Upload) (*domain.DocumentRef, error) {
	doc, err := s.QAService.Upload(ctx, upload)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	return doc, nil
}

// DeleteDocument forwards the delete and drops the cached catalog
func (s *CachedQAService) DeleteDocument(ctx context.Context, documentID string) error {
	err := s.QAService.DeleteDocument(ctx, documentID)
	if err == nil || domain.IsKind(err, domain.KindNotFound) {
		s.invalidate(ctx)
	}
	return err
}

func (s *CachedQAService) invalidate(ctx context.Context) {
	if err := s.store.Invalidate(ctx, s.owner); err != nil {
		log.Warn().Err(err).Str("owner", s.owner).Msg("catalog cache invalidation failed")
	}
}
