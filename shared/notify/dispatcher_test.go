package notify

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"nko-map-backend/shared/database/models"
)

type sent struct {
	userID uuid.UUID
	event  Event
}

type fakePusher struct {
	mu   sync.Mutex
	sent []sent
}

func (p *fakePusher) SendToUser(userID uuid.UUID, event Event) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, sent{userID: userID, event: event})
	return true
}

func (p *fakePusher) SendToUsers(userIDs []uuid.UUID, event Event) int {
	for _, id := range userIDs {
		p.SendToUser(id, event)
	}
	return len(userIDs)
}

type fakeStaff struct {
	users []models.User
	roles []models.Role
	err   error
}

func (s *fakeStaff) ListByRoles(_ context.Context, roles []models.Role) ([]models.User, error) {
	s.roles = roles
	return s.users, s.err
}

type decision struct {
	to, name, npo, reason string
	approved              bool
}

type fakeMailer struct {
	mu        sync.Mutex
	decisions []decision
	err       error
}

func (m *fakeMailer) SendModerationDecision(_ context.Context, to, userName, npoName string, approved bool, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.decisions = append(m.decisions, decision{to: to, name: userName, npo: npoName, reason: reason, approved: approved})
	return m.err
}

func testNPO(status models.NPOStatus) models.NPO {
	return models.NPO{ID: uuid.New(), Name: "Лапа", City: "Саров", Status: status}
}

func TestSubmittedGoesToStaff(t *testing.T) {
	admin := models.User{ID: uuid.New(), Role: models.RoleAdmin}
	staff := &fakeStaff{users: []models.User{admin}}
	pusher := &fakePusher{}
	d := NewDispatcher(pusher, staff, []models.Role{models.RoleAdmin}, nil, zap.NewNop())

	creator := models.User{ID: uuid.New(), FirstName: "Alice"}
	d.NPOSubmitted(context.Background(), testNPO(models.StatusPending), creator)
	d.Wait()

	require.Equal(t, []models.Role{models.RoleAdmin}, staff.roles)
	require.Len(t, pusher.sent, 1)
	require.Equal(t, admin.ID, pusher.sent[0].userID)
	require.Equal(t, EventNPOSubmitted, pusher.sent[0].event.Type)
}

func TestSubmittedStaffLookupFailureIsSwallowed(t *testing.T) {
	pusher := &fakePusher{}
	d := NewDispatcher(pusher, &fakeStaff{err: errors.New("db down")}, nil, nil, zap.NewNop())

	d.NPOSubmitted(context.Background(), testNPO(models.StatusPending), models.User{ID: uuid.New()})
	d.Wait()
	require.Empty(t, pusher.sent)
}

func TestModeratedNotifiesCreator(t *testing.T) {
	pusher := &fakePusher{}
	mailer := &fakeMailer{}
	d := NewDispatcher(pusher, &fakeStaff{}, nil, mailer, zap.NewNop())
	creator := models.User{ID: uuid.New(), Email: "alice@example.com", FirstName: "Alice", LastName: "Smith"}

	npo := testNPO(models.StatusRejected)
	npo.RejectionReason = "Нет контактов"
	d.NPOModerated(context.Background(), npo, creator)

	d.NPOModerated(context.Background(), testNPO(models.StatusApproved), creator)
	d.Wait()

	require.Len(t, pusher.sent, 2)
	types := []string{pusher.sent[0].event.Type, pusher.sent[1].event.Type}
	require.ElementsMatch(t, []string{EventNPORejected, EventNPOApproved}, types)
	for _, s := range pusher.sent {
		require.Equal(t, creator.ID, s.userID)
	}

	require.Len(t, mailer.decisions, 2)
	for _, dec := range mailer.decisions {
		require.Equal(t, "alice@example.com", dec.to)
		require.Equal(t, "Alice Smith", dec.name)
		if !dec.approved {
			require.Equal(t, "Нет контактов", dec.reason)
		}
	}
}

func TestModeratedMailFailureIsSwallowed(t *testing.T) {
	pusher := &fakePusher{}
	d := NewDispatcher(pusher, &fakeStaff{}, nil, &fakeMailer{err: errors.New("smtp down")}, zap.NewNop())

	d.NPOModerated(context.Background(), testNPO(models.StatusApproved), models.User{ID: uuid.New(), Email: "a@b.c"})
	d.Wait()
	require.Len(t, pusher.sent, 1)
}

func TestDeliveryOutlivesRequestContext(t *testing.T) {
	pusher := &fakePusher{}
	mailer := &fakeMailer{}
	d := NewDispatcher(pusher, &fakeStaff{}, nil, mailer, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d.NPOModerated(ctx, testNPO(models.StatusApproved), models.User{ID: uuid.New(), Email: "a@b.c"})
	d.Wait()
	require.Len(t, mailer.decisions, 1)
}
