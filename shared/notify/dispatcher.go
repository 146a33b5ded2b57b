package notify

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"nko-map-backend/shared/database/models"
	"nko-map-backend/shared/services"
)

const deliveryTimeout = 30 * time.Second

// Pusher delivers events to connected users.
type Pusher interface {
	SendToUser(userID uuid.UUID, event Event) bool
	SendToUsers(userIDs []uuid.UUID, event Event) int
}

type StaffFinder interface {
	ListByRoles(ctx context.Context, roles []models.Role) ([]models.User, error)
}

type DecisionMailer interface {
	SendModerationDecision(ctx context.Context, to, userName, npoName string, approved bool, reason string) error
}

// Dispatcher turns lifecycle events into websocket pushes and emails.
// Delivery happens on background goroutines; Wait blocks until they finish.
type Dispatcher struct {
	pusher     Pusher
	staff      StaffFinder
	staffRoles []models.Role
	mailer     DecisionMailer
	logger     *zap.Logger
	wg         sync.WaitGroup
}

var _ services.Notifier = (*Dispatcher)(nil)

// NewDispatcher builds a dispatcher. Submissions are announced to users
// holding one of staffRoles; mailer may be nil to skip emails.
func NewDispatcher(pusher Pusher, staff StaffFinder, staffRoles []models.Role, mailer DecisionMailer, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		pusher:     pusher,
		staff:      staff,
		staffRoles: staffRoles,
		mailer:     mailer,
		logger:     logger,
	}
}

func (d *Dispatcher) NPOSubmitted(ctx context.Context, npo models.NPO, creator models.User) {
	d.async(ctx, func(ctx context.Context) {
		staff, err := d.staff.ListByRoles(ctx, d.staffRoles)
		if err != nil {
			d.logger.Warn("failed to load moderators", zap.Error(err))
			return
		}

		ids := make([]uuid.UUID, 0, len(staff))
		for _, u := range staff {
			ids = append(ids, u.ID)
		}

		sent := d.pusher.SendToUsers(ids, Event{
			Type:    EventNPOSubmitted,
			Title:   "Новая заявка",
			Message: "Организация «" + npo.Name + "» ожидает модерации",
			Data:    npoSummary(npo, creator),
		})
		d.logger.Debug("submission announced",
			zap.String("npo_id", npo.ID.String()),
			zap.Int("recipients", sent),
		)
	})
}

func (d *Dispatcher) NPOModerated(ctx context.Context, npo models.NPO, creator models.User) {
	approved := npo.Status == models.StatusApproved

	event := Event{
		Type:    EventNPORejected,
		Title:   "Заявка отклонена",
		Message: "Заявка организации «" + npo.Name + "» отклонена",
		Data:    npoSummary(npo, creator),
	}
	if approved {
		event.Type = EventNPOApproved
		event.Title = "Заявка одобрена"
		event.Message = "Организация «" + npo.Name + "» опубликована на карте"
	}

	d.async(ctx, func(ctx context.Context) {
		d.pusher.SendToUser(creator.ID, event)

		if d.mailer == nil || creator.Email == "" {
			return
		}
		err := d.mailer.SendModerationDecision(ctx, creator.Email, creator.FullName(), npo.Name, approved, npo.RejectionReason)
		if err != nil {
			d.logger.Warn("failed to send moderation email",
				zap.String("npo_id", npo.ID.String()),
				zap.Error(err),
			)
		}
	})
}

// Wait blocks until pending deliveries complete.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) async(ctx context.Context, fn func(context.Context)) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), deliveryTimeout)
		defer cancel()
		fn(ctx)
	}()
}

func npoSummary(npo models.NPO, creator models.User) map[string]interface{} {
	data := map[string]interface{}{
		"id":        npo.ID,
		"name":      npo.Name,
		"status":    npo.Status,
		"city":      npo.City,
		"createdBy": creator.ID,
	}
	if npo.RejectionReason != "" {
		data["rejectionReason"] = npo.RejectionReason
	}
	return data
}
