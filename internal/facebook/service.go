package facebook

import (
	"context"

	"github.com/GogiGunia/Toolidol/internal/obs"
)

// Service combines the Graph API pipeline with grant persistence.
type Service struct {
	client *Client
	store  *GrantStore
}

func NewService(client *Client, store *GrantStore) *Service {
	return &Service{client: client, store: store}
}

// Connect exchanges the short-lived token, fetches the page set and
// persists it for the user. Pipeline failures leave existing grants
// untouched.
func (s *Service) Connect(ctx context.Context, userID string, shortLivedToken string) ([]Grant, error) {
	pages, err := s.client.ExchangeAndListPages(ctx, shortLivedToken)
	if err != nil {
		return nil, err
	}
	if err := s.store.SaveOrUpdate(ctx, userID, pages); err != nil {
		return nil, err
	}
	obs.LogEvent("info", "facebook.connected", map[string]any{
		"user_id": userID,
		"pages":   len(pages),
	})
	return s.store.ListForOwner(ctx, userID)
}

// Status reports the user's current grants, without token material.
func (s *Service) Status(ctx context.Context, userID string) ([]Grant, error) {
	return s.store.ListForOwner(ctx, userID)
}

// Disconnect removes all grants for the user.
func (s *Service) Disconnect(ctx context.Context, userID string) error {
	if err := s.store.DisconnectAll(ctx, userID); err != nil {
		return err
	}
	obs.LogEvent("info", "facebook.disconnected", map[string]any{"user_id": userID})
	return nil
}
