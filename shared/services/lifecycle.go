package services

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"nko-map-backend/shared/apperr"
	"nko-map-backend/shared/database/models"
	"nko-map-backend/shared/repository"
	utils "nko-map-backend/shared/utils/auth"
)

type SubmitInput struct {
	Name                string
	Category            string
	Description         string
	VolunteerActivities string
	Phone               string
	Address             string
	City                string
	Lat                 *float64
	Lng                 *float64
	Website             string
	SocialVK            string
	SocialTelegram      string
	SocialInstagram     string
	Logo                string
}

// Lifecycle drives an NPO through pending -> approved | rejected.
type Lifecycle struct {
	npos       repository.NPORepository
	users      repository.UserRepository
	policy     *Policy
	onePerUser bool
	cache      ListingCache
	notifier   Notifier
	now        func() time.Time
	logger     *zap.Logger
}

type LifecycleOption func(*Lifecycle)

func WithListingCache(cache ListingCache) LifecycleOption {
	return func(l *Lifecycle) { l.cache = cache }
}

func WithNotifier(notifier Notifier) LifecycleOption {
	return func(l *Lifecycle) { l.notifier = notifier }
}

func WithClock(now func() time.Time) LifecycleOption {
	return func(l *Lifecycle) { l.now = now }
}

func NewLifecycle(npos repository.NPORepository, users repository.UserRepository, policy *Policy, onePerUser bool, logger *zap.Logger, opts ...LifecycleOption) *Lifecycle {
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &Lifecycle{
		npos:       npos,
		users:      users,
		policy:     policy,
		onePerUser: onePerUser,
		notifier:   noopNotifier{},
		now:        time.Now,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Submit stores a new NPO in pending status owned by actor.
func (l *Lifecycle) Submit(ctx context.Context, in SubmitInput, actor *models.User) (*models.NPO, error) {
	if actor == nil {
		return nil, apperr.Unauthenticated("Требуется аутентификация")
	}
	if !l.policy.Allows(actor.Role, OpSubmitNPO) {
		return nil, apperr.Forbidden("Недостаточно прав")
	}

	npo, err := buildNPO(in)
	if err != nil {
		return nil, err
	}
	npo.Status = models.StatusPending
	npo.CreatedBy = actor.ID

	if err := l.npos.CreateForUser(ctx, npo, l.onePerUser); err != nil {
		return nil, err
	}

	l.logger.Info("npo submitted",
		zap.String("npo_id", npo.ID.String()),
		zap.String("user_id", actor.ID.String()),
	)
	l.notifier.NPOSubmitted(ctx, *npo, *actor)
	return npo, nil
}

func (l *Lifecycle) Approve(ctx context.Context, id uuid.UUID, actor *models.User) (*models.NPO, error) {
	if err := l.authorize(actor); err != nil {
		return nil, err
	}
	return l.transition(ctx, id, actor, models.StatusApproved, "")
}

func (l *Lifecycle) Reject(ctx context.Context, id uuid.UUID, reason string, actor *models.User) (*models.NPO, error) {
	if err := l.authorize(actor); err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperr.ValidationFields("Укажите причину отклонения", map[string]string{"rejectionReason": "required"})
	}
	return l.transition(ctx, id, actor, models.StatusRejected, reason)
}

func (l *Lifecycle) authorize(actor *models.User) error {
	if actor == nil {
		return apperr.Unauthenticated("Требуется аутентификация")
	}
	if !l.policy.Allows(actor.Role, OpModerateNPO) {
		return apperr.Forbidden("Недостаточно прав для модерации организаций")
	}
	return nil
}

func (l *Lifecycle) transition(ctx context.Context, id uuid.UUID, actor *models.User, to models.NPOStatus, reason string) (*models.NPO, error) {
	npo, err := l.npos.Transition(ctx, id, models.StatusPending, repository.Moderation{
		Status:          to,
		ModeratedBy:     actor.ID,
		ModeratedAt:     l.now().UTC(),
		RejectionReason: reason,
	})
	if err != nil {
		return nil, err
	}

	l.logger.Info("npo moderated",
		zap.String("npo_id", npo.ID.String()),
		zap.String("status", string(npo.Status)),
		zap.String("moderator_id", actor.ID.String()),
	)

	if to == models.StatusApproved && l.cache != nil {
		if err := l.cache.InvalidateListings(ctx); err != nil {
			l.logger.Warn("failed to invalidate listing cache", zap.Error(err))
		}
	}

	if creator, err := l.users.FindByID(ctx, npo.CreatedBy); err == nil {
		l.notifier.NPOModerated(ctx, *npo, *creator)
	} else {
		l.logger.Warn("npo creator not found for notification", zap.String("npo_id", npo.ID.String()), zap.Error(err))
	}
	return npo, nil
}

func buildNPO(in SubmitInput) (*models.NPO, error) {
	fields := map[string]string{}
	trim := func(s string) string { return strings.TrimSpace(s) }

	npo := &models.NPO{
		Name:                trim(in.Name),
		Category:            trim(in.Category),
		Description:         trim(in.Description),
		VolunteerActivities: trim(in.VolunteerActivities),
		Phone:               trim(in.Phone),
		Address:             trim(in.Address),
		City:                trim(in.City),
		Website:             trim(in.Website),
		SocialVK:            trim(in.SocialVK),
		SocialTelegram:      trim(in.SocialTelegram),
		SocialInstagram:     trim(in.SocialInstagram),
		Logo:                trim(in.Logo),
	}

	required := []struct {
		name  string
		value string
	}{
		{"name", npo.Name},
		{"category", npo.Category},
		{"description", npo.Description},
		{"address", npo.Address},
		{"city", npo.City},
	}
	for _, r := range required {
		if r.value == "" {
			fields[r.name] = "required"
		}
	}

	if npo.Category != "" && !models.IsCategory(npo.Category) {
		fields["category"] = "unknown category"
	}
	if npo.City != "" && !models.IsCity(npo.City) {
		fields["city"] = "unknown city"
	}

	switch {
	case in.Lat == nil:
		fields["lat"] = "required"
	case *in.Lat < -90 || *in.Lat > 90:
		fields["lat"] = "must be between -90 and 90"
	default:
		npo.Lat = *in.Lat
	}
	switch {
	case in.Lng == nil:
		fields["lng"] = "required"
	case *in.Lng < -180 || *in.Lng > 180:
		fields["lng"] = "must be between -180 and 180"
	default:
		npo.Lng = *in.Lng
	}

	if err := utils.ValidatePhone(npo.Phone); err != nil {
		fields["phone"] = err.Error()
	}
	for name, link := range map[string]string{
		"website":         npo.Website,
		"socialVk":        npo.SocialVK,
		"socialTelegram":  npo.SocialTelegram,
		"socialInstagram": npo.SocialInstagram,
	} {
		if err := validateLink(link); err != nil {
			fields[name] = err.Error()
		}
	}

	limits := map[string]struct {
		value string
		max   int
	}{
		"name":    {npo.Name, 255},
		"address": {npo.Address, 500},
		"logo":    {npo.Logo, 500},
	}
	for name, limit := range limits {
		if err := utils.ValidateMaxLength(limit.value, name, limit.max); err != nil {
			fields[name] = err.Error()
		}
	}

	if len(fields) > 0 {
		return nil, apperr.ValidationFields("Проверьте правильность заполнения полей", fields)
	}
	return npo, nil
}

func validateLink(link string) error {
	if link == "" {
		return nil
	}
	if len(link) > 500 {
		return fmt.Errorf("link is too long")
	}
	u, err := url.Parse(link)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("must be an http(s) URL")
	}
	return nil
}
