package content

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/keyxmakerx/nexus/internal/apperror"
	"github.com/keyxmakerx/nexus/internal/sanitize"
)

// ContentService serves the catalog and the site counters.
type ContentService interface {
	// Collection returns the stored document, or [] when none was saved.
	Collection(ctx context.Context, c Collection) (json.RawMessage, error)

	// ReplaceCollection stores raw as the new document. Article text
	// fields are sanitized on the way in.
	ReplaceCollection(ctx context.Context, c Collection, raw []byte) error

	Stats(ctx context.Context) (*SiteStats, error)

	// RecordEvent bumps the counter for eventType and, when id is set,
	// the per-item counter.
	RecordEvent(ctx context.Context, eventType, id string) error
}

type contentService struct {
	repo ContentRepository
}

// NewContentService creates the content service.
func NewContentService(repo ContentRepository) ContentService {
	return &contentService{repo: repo}
}

func (s *contentService) Collection(ctx context.Context, c Collection) (json.RawMessage, error) {
	if !c.Valid() {
		return nil, apperror.NewNotFound("unknown collection")
	}
	raw, ok, err := s.repo.GetCollection(ctx, c)
	if err != nil {
		return nil, apperror.NewInternal(err)
	}
	if !ok {
		return emptyCollection, nil
	}
	return raw, nil
}

func (s *contentService) ReplaceCollection(ctx context.Context, c Collection, raw []byte) error {
	if !c.Valid() {
		return apperror.NewNotFound("unknown collection")
	}
	if len(raw) > maxCollectionBytes {
		return apperror.NewValidation(fmt.Sprintf("%s is too large", c))
	}
	if !json.Valid(raw) {
		return apperror.NewBadRequest("body must be valid JSON")
	}

	var doc json.RawMessage
	if c == CollectionArticles {
		cleaned, err := sanitizeArticles(raw)
		if err != nil {
			return err
		}
		doc = cleaned
	} else {
		var buf bytes.Buffer
		if err := json.Compact(&buf, raw); err != nil {
			return apperror.NewBadRequest("body must be valid JSON")
		}
		doc = buf.Bytes()
	}

	if err := s.repo.PutCollection(ctx, c, doc); err != nil {
		return apperror.NewInternal(err)
	}
	slog.Info("collection replaced", slog.String("collection", string(c)), slog.Int("bytes", len(doc)))
	return nil
}

// sanitizeArticles strips markup from the plain-text fields of every
// article and runs bodies that carry raw HTML through the rich-text
// policy. Markdown without tags is stored untouched.
func sanitizeArticles(raw []byte) (json.RawMessage, error) {
	var articles []map[string]any
	if err := json.Unmarshal(raw, &articles); err != nil {
		return nil, apperror.NewValidation("articles must be a JSON array of objects")
	}
	for _, a := range articles {
		for _, field := range articleTextFields {
			if v, ok := a[field].(string); ok {
				a[field] = sanitize.Text(v)
			}
		}
		if body, ok := a["content"].(string); ok && strings.Contains(body, "<") {
			a["content"] = sanitize.HTML(body)
		}
	}
	out, err := json.Marshal(articles)
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("encoding articles: %w", err))
	}
	return out, nil
}

func (s *contentService) Stats(ctx context.Context) (*SiteStats, error) {
	stats, err := s.repo.GetStats(ctx)
	if err != nil {
		return nil, apperror.NewInternal(err)
	}
	return stats, nil
}

func (s *contentService) RecordEvent(ctx context.Context, eventType, id string) error {
	id = strings.TrimSpace(id)
	if len(id) > maxStatIDLen {
		return apperror.NewValidation("id is too long")
	}

	var bump func(st *SiteStats)
	switch eventType {
	case EventVisit:
		bump = func(st *SiteStats) { st.Visits++ }
	case EventMusicPlay:
		bump = func(st *SiteStats) {
			st.MusicPlays++
			st.TrackPlays = incr(st.TrackPlays, id)
		}
	case EventVideoPlay:
		bump = func(st *SiteStats) {
			st.VideoPlays++
			st.VideoPlayDetails = incr(st.VideoPlayDetails, id)
		}
	case EventArticleView:
		bump = func(st *SiteStats) {
			st.ArticleViews++
			st.ArticleViewDetails = incr(st.ArticleViewDetails, id)
		}
	default:
		return apperror.NewValidation("unknown stat type")
	}

	if _, err := s.repo.UpdateStats(ctx, bump); err != nil {
		return apperror.NewInternal(err)
	}
	return nil
}

// incr bumps m[id], allocating m on first use. An empty id is ignored.
func incr(m map[string]int, id string) map[string]int {
	if id == "" {
		return m
	}
	if m == nil {
		m = make(map[string]int)
	}
	m[id]++
	return m
}
