package finance

import (
	"context"

	"github.com/assistente-financeiro/assistente-financeiro/internal/partition"
	"github.com/assistente-financeiro/assistente-financeiro/internal/shared"
	"github.com/assistente-financeiro/assistente-financeiro/internal/storage"
	"github.com/assistente-financeiro/assistente-financeiro/internal/users"
)

// Service resolves the financial store of the caller.
type Service struct {
	resolver *partition.Resolver
	inval    Invalidator
}

// NewService builds a Service. inval may be nil.
func NewService(resolver *partition.Resolver, inval Invalidator) *Service {
	return &Service{resolver: resolver, inval: inval}
}

// For returns the store of userID, using profile for the guest partition.
func (s *Service) For(profile storage.Store, userID string) *Store {
	return NewStore(s.resolver.For(profile, userID), s.inval)
}

// FromContext returns the store of the signed-in user, or of the profile's guest partition.
// ok is false when the request carries neither.
func (s *Service) FromContext(ctx context.Context) (*Store, bool) {
	var profile storage.Store
	if p := shared.ProfileFromContext(ctx); p != nil {
		profile = p.Store
	}
	if u := users.UserFromContext(ctx); u != nil {
		return s.For(profile, u.ID), true
	}
	if profile == nil {
		return nil, false
	}
	return s.For(profile, partition.Guest), true
}
