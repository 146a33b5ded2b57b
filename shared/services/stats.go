package services

import (
	"context"

	"github.com/google/uuid"

	"nko-map-backend/shared/database/models"
	"nko-map-backend/shared/repository"
)

type NPOCounters struct {
	Total    int64 `json:"total"`
	Approved int64 `json:"approved"`
	Pending  int64 `json:"pending"`
	Rejected int64 `json:"rejected"`
}

type UserCounters struct {
	Total      int64 `json:"total"`
	Admins     int64 `json:"admins"`
	Moderators int64 `json:"moderators"`
	Regular    int64 `json:"regular"`
}

type AdminStats struct {
	NPOs  NPOCounters  `json:"npos"`
	Users UserCounters `json:"users"`
}

// ProfileStats mirrors the counters shown on a user's profile page.
type ProfileStats struct {
	TotalNPOs    int64 `json:"totalNPOs"`
	ApprovedNPOs int64 `json:"approvedNPOs"`
	PendingNPOs  int64 `json:"pendingNPOs"`
	RejectedNPOs int64 `json:"rejectedNPOs"`
}

type Stats struct {
	npos  repository.NPORepository
	users repository.UserRepository
}

func NewStats(npos repository.NPORepository, users repository.UserRepository) *Stats {
	return &Stats{npos: npos, users: users}
}

func (s *Stats) Admin(ctx context.Context) (*AdminStats, error) {
	npoCounts, err := s.npos.CountByStatus(ctx, nil)
	if err != nil {
		return nil, err
	}
	roleCounts, err := s.users.CountByRole(ctx)
	if err != nil {
		return nil, err
	}

	out := &AdminStats{NPOs: npoCounters(npoCounts)}
	out.Users.Admins = roleCounts[models.RoleAdmin]
	out.Users.Moderators = roleCounts[models.RoleModerator]
	out.Users.Regular = roleCounts[models.RoleUser]
	out.Users.Total = out.Users.Admins + out.Users.Moderators + out.Users.Regular
	return out, nil
}

func (s *Stats) ForUser(ctx context.Context, userID uuid.UUID) (*ProfileStats, error) {
	counts, err := s.npos.CountByStatus(ctx, &userID)
	if err != nil {
		return nil, err
	}
	c := npoCounters(counts)
	return &ProfileStats{
		TotalNPOs:    c.Total,
		ApprovedNPOs: c.Approved,
		PendingNPOs:  c.Pending,
		RejectedNPOs: c.Rejected,
	}, nil
}

func npoCounters(counts map[models.NPOStatus]int64) NPOCounters {
	c := NPOCounters{
		Approved: counts[models.StatusApproved],
		Pending:  counts[models.StatusPending],
		Rejected: counts[models.StatusRejected],
	}
	c.Total = c.Approved + c.Pending + c.Rejected
	return c
}
