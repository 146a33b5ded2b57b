package services

import (
	"context"

	"nko-map-backend/shared/database/models"
)

// ListingCache stores rendered public listing pages. Pages are scoped to a
// generation that InvalidateListings advances, so a page rendered before an
// invalidation is never served after it.
type ListingCache interface {
	ListingGeneration(ctx context.Context) (int64, error)
	GetListing(ctx context.Context, generation int64, key string, dest interface{}) (bool, error)
	SetListing(ctx context.Context, generation int64, key string, value interface{}) error
	InvalidateListings(ctx context.Context) error
}

// Notifier fans lifecycle events out to interested parties.
// Implementations must not block the caller.
type Notifier interface {
	NPOSubmitted(ctx context.Context, npo models.NPO, creator models.User)
	NPOModerated(ctx context.Context, npo models.NPO, creator models.User)
}

// PasswordResetMailer delivers reset links.
type PasswordResetMailer interface {
	SendPasswordReset(ctx context.Context, to, userName, token string, validMinutes int) error
}

type noopNotifier struct{}

func (noopNotifier) NPOSubmitted(context.Context, models.NPO, models.User) {}
func (noopNotifier) NPOModerated(context.Context, models.NPO, models.User) {}
