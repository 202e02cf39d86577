package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/utafrali/marketsearch/internal/domain"
	"github.com/utafrali/marketsearch/internal/repository"
)

// Resolver turns source identifiers into display titles. Titles are looked
// up per response and never cached.
type Resolver struct {
	repo   repository.SourceRepository
	logger *slog.Logger
}

// NewResolver creates a resolver backed by repo. A nil repo resolves every id
// to the fallback title.
func NewResolver(repo repository.SourceRepository, logger *slog.Logger) *Resolver {
	return &Resolver{repo: repo, logger: logger}
}

// Resolve returns a title for every distinct non-empty id. At most one batch
// lookup is issued. Ids the store does not know, and every id when the
// lookup fails, map to domain.UnknownSource.
func (r *Resolver) Resolve(ctx context.Context, ids []string) domain.SourceTitleMap {
	unique := dedupe(ids)
	titles := make(domain.SourceTitleMap, len(unique))
	if len(unique) == 0 {
		return titles
	}

	var (
		found map[string]string
		err   error
	)
	if r.repo == nil {
		err = errors.New("no source repository configured")
	} else {
		found, err = r.repo.Titles(ctx, unique)
	}
	if err != nil {
		r.logger.WarnContext(ctx, "source title lookup failed, using fallback",
			slog.Int("ids", len(unique)),
			slog.String("error", errors.Join(domain.ErrReferenceResolution, err).Error()),
		)
		ResolverFallbacks.WithLabelValues("lookup_failed").Add(float64(len(unique)))
		for _, id := range unique {
			titles[id] = domain.UnknownSource
		}
		return titles
	}

	for _, id := range unique {
		if t, ok := found[id]; ok && t != "" {
			titles[id] = t
			continue
		}
		ResolverFallbacks.WithLabelValues("missing").Inc()
		titles[id] = domain.UnknownSource
	}
	return titles
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
