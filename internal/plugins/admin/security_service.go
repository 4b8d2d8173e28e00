package admin

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/keyxmakerx/nexus/internal/apperror"
)

// SecurityService records and reports admin-plane events.
type SecurityService interface {
	// LogEvent records an event. Fire-and-forget: failures are logged.
	LogEvent(ctx context.Context, eventType, userID, ip, userAgent string, details map[string]any)

	// ListEvents returns one page of events, optionally filtered by type,
	// and the total number of matching events.
	ListEvents(ctx context.Context, eventType string, page int) ([]SecurityEvent, int, error)

	// GetStats summarizes the last 24 hours.
	GetStats(ctx context.Context) (*SecurityStats, error)
}

type securityService struct {
	repo SecurityEventRepository
	now  func() time.Time
}

// NewSecurityService creates a new security service.
func NewSecurityService(repo SecurityEventRepository) SecurityService {
	return &securityService{repo: repo, now: time.Now}
}

func (s *securityService) LogEvent(ctx context.Context, eventType, userID, ip, userAgent string, details map[string]any) {
	if eventType == "" {
		return
	}
	event := SecurityEvent{
		ID:        uuid.NewString(),
		EventType: eventType,
		UserID:    userID,
		IPAddress: ip,
		UserAgent: userAgent,
		Details:   details,
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.Log(ctx, event); err != nil {
		slog.Error("failed to log security event",
			slog.String("event_type", eventType),
			slog.String("ip", ip),
			slog.Any("error", err),
		)
	}
}

func (s *securityService) ListEvents(ctx context.Context, eventType string, page int) ([]SecurityEvent, int, error) {
	if page < 1 {
		page = 1
	}
	all, err := s.repo.All(ctx)
	if err != nil {
		return nil, 0, apperror.NewInternal(fmt.Errorf("listing security events: %w", err))
	}

	matched := all
	if eventType != "" {
		matched = make([]SecurityEvent, 0, len(all))
		for _, e := range all {
			if e.EventType == eventType {
				matched = append(matched, e)
			}
		}
	}

	start := (page - 1) * securityPerPage
	if start >= len(matched) {
		return []SecurityEvent{}, len(matched), nil
	}
	end := min(start+securityPerPage, len(matched))
	return matched[start:end], len(matched), nil
}

func (s *securityService) GetStats(ctx context.Context) (*SecurityStats, error) {
	all, err := s.repo.All(ctx)
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("getting security stats: %w", err))
	}

	stats := &SecurityStats{TotalEvents: len(all)}
	since := s.now().Add(-24 * time.Hour)
	ips := make(map[string]struct{})
	for _, e := range all {
		if e.CreatedAt.Before(since) {
			continue
		}
		switch e.EventType {
		case EventAuthFailed:
			stats.FailedAuth24h++
		case EventAuthVerified:
			stats.SuccessfulAuth24h++
		}
		if e.IPAddress != "" {
			ips[e.IPAddress] = struct{}{}
		}
	}
	stats.UniqueIPs24h = len(ips)
	return stats, nil
}
