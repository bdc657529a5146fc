package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/campus-connect/campus-api/internal/models"
	appErrors "github.com/campus-connect/campus-api/pkg/errors"
)

type dashboardUserCounter interface {
	CountByRole(ctx context.Context, collegeID string, role models.UserRole) (int, error)
}

type dashboardClassCounter interface {
	CountByCollege(ctx context.Context, collegeID string) (int, error)
}

type dashboardRoomCounter interface {
	CountByCollege(ctx context.Context, collegeID string) (int, error)
}

type dashboardBookingCounter interface {
	CountPendingByCollege(ctx context.Context, collegeID string) (int, error)
}

type dashboardLoanCounter interface {
	CountActiveLoansByCollege(ctx context.Context, collegeID string) (int, error)
}

type dashboardEventCounter interface {
	CountUpcoming(ctx context.Context, collegeID string, asOf time.Time) (int, error)
}

// DashboardService composes per-college headline counts, cached briefly to
// keep the landing page off the hot path.
type DashboardService struct {
	users    dashboardUserCounter
	classes  dashboardClassCounter
	rooms    dashboardRoomCounter
	bookings dashboardBookingCounter
	loans    dashboardLoanCounter
	events   dashboardEventCounter
	cache    *CacheService
	cacheTTL time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// DashboardServiceParams groups constructor dependencies.
type DashboardServiceParams struct {
	Users    dashboardUserCounter
	Classes  dashboardClassCounter
	Rooms    dashboardRoomCounter
	Bookings dashboardBookingCounter
	Loans    dashboardLoanCounter
	Events   dashboardEventCounter
	Cache    *CacheService
	CacheTTL time.Duration
	Logger   *zap.Logger
}

// NewDashboardService constructs a DashboardService.
func NewDashboardService(params DashboardServiceParams) *DashboardService {
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ttl := params.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &DashboardService{
		users:    params.Users,
		classes:  params.Classes,
		rooms:    params.Rooms,
		bookings: params.Bookings,
		loans:    params.Loans,
		events:   params.Events,
		cache:    params.Cache,
		cacheTTL: ttl,
		logger:   logger,
		now:      time.Now,
	}
}

// Summary builds the headline counts for a college.
func (s *DashboardService) Summary(ctx context.Context, collegeID string) (*models.DashboardSummary, error) {
	cacheKey := fmt.Sprintf("dashboard:summary:%s", collegeID)
	var cached models.DashboardSummary
	if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
		return &cached, nil
	}

	summary := &models.DashboardSummary{CollegeID: collegeID, GeneratedAt: s.now().UTC()}

	students, err := s.users.CountByRole(ctx, collegeID, models.RoleStudent)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count students")
	}
	summary.Students = students

	faculty, err := s.users.CountByRole(ctx, collegeID, models.RoleFaculty)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count faculty")
	}
	summary.Faculty = faculty

	classes, err := s.classes.CountByCollege(ctx, collegeID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count classes")
	}
	summary.Classes = classes

	rooms, err := s.rooms.CountByCollege(ctx, collegeID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count rooms")
	}
	summary.Rooms = rooms

	pending, err := s.bookings.CountPendingByCollege(ctx, collegeID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count pending bookings")
	}
	summary.PendingBookings = pending

	loans, err := s.loans.CountActiveLoansByCollege(ctx, collegeID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count active loans")
	}
	summary.ActiveLoans = loans

	events, err := s.events.CountUpcoming(ctx, collegeID, s.now().UTC())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count upcoming events")
	}
	summary.UpcomingEvents = events

	if err := s.cache.Set(ctx, cacheKey, summary, s.cacheTTL); err != nil {
		s.logger.Warn("failed to cache dashboard summary", zap.Error(err))
	}
	return summary, nil
}

// Invalidate drops the cached summary for a college.
func (s *DashboardService) Invalidate(ctx context.Context, collegeID string) {
	if err := s.cache.Invalidate(ctx, fmt.Sprintf("dashboard:summary:%s", collegeID)); err != nil {
		s.logger.Warn("failed to invalidate dashboard cache", zap.Error(err))
	}
}
