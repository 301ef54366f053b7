package split

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/guildtools/guildbank/internal/ledger"
	"github.com/guildtools/guildbank/internal/storage"
)

// Payout records one participant's credit during finalize.
type Payout struct {
	UserID     string
	Name       string
	Amount     int64
	OldBalance int64
	NewBalance int64
}

// FinalizeResult summarizes a finalized split for audit rendering.
type FinalizeResult struct {
	Concept     string
	Total       int64
	Share       int64 // floor(Total / participants); the remainder stays undistributed
	EvidenceURL string
	Payouts     []Payout
	// Failed lists participants whose credit did not apply (store failure
	// mid-loop). Their shares need manual reconciliation; the session is
	// already closed, so a retry cannot double-pay the others.
	Failed []string
}

// Service drives the split-session lifecycle. All balance changes go through
// the ledger service.
type Service struct {
	registry *Registry
	ledger   *ledger.Service
}

// NewService creates a split service over the given registry and ledger.
func NewService(registry *Registry, ledger *ledger.Service) *Service {
	return &Service{registry: registry, ledger: ledger}
}

// Start opens a session for the announcement message identified by key.
// The pool must be positive and the organizer must supply evidence.
func (s *Service) Start(key, ownerID string, total int64, evidenceURL string) (*Session, error) {
	if total <= 0 {
		return nil, fmt.Errorf("split total must be positive, got %d", total)
	}
	if evidenceURL == "" {
		return nil, fmt.Errorf("split requires an evidence screenshot")
	}
	session := newSession(ownerID, total, evidenceURL)
	s.registry.put(key, session)
	slog.Info("split started", "split_id", session.ID, "owner_id", ownerID, "total", total)
	return session, nil
}

// Join adds a registered member to the roster. Unregistered members are
// rejected with storage.ErrUnknownUser, duplicates with ErrAlreadyJoined.
func (s *Service) Join(ctx context.Context, key, userID string) error {
	session, ok := s.registry.Get(key)
	if !ok {
		return ErrStaleSession
	}
	if _, err := s.ledger.Profile(ctx, userID); err != nil {
		return err
	}
	if err := session.add(userID); err != nil {
		return err
	}
	slog.Info("member joined split", "split_id", session.ID, "user_id", userID)
	return nil
}

// AddByName resolves an in-game name case-insensitively and adds that member
// to the roster. An unknown name or a duplicate is a silent no-op, matching
// the informal !add command it backs. Reports whether the roster changed.
func (s *Service) AddByName(ctx context.Context, key, name string) (bool, error) {
	session, ok := s.registry.Get(key)
	if !ok {
		return false, ErrStaleSession
	}
	user, err := s.ledger.LookupByName(ctx, name)
	if errors.Is(err, storage.ErrUnknownUser) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := session.add(user.ID); err != nil {
		if errors.Is(err, ErrAlreadyJoined) {
			return false, nil
		}
		return false, err
	}
	slog.Info("member added to split", "split_id", session.ID, "user_id", user.ID, "name", user.Name)
	return true, nil
}

// RemoveByName resolves an in-game name case-insensitively and drops that
// member from the roster. An unknown name is a silent no-op. Reports whether
// a removal may have happened.
func (s *Service) RemoveByName(ctx context.Context, key, name string) (bool, error) {
	session, ok := s.registry.Get(key)
	if !ok {
		return false, ErrStaleSession
	}
	user, err := s.ledger.LookupByName(ctx, name)
	if errors.Is(err, storage.ErrUnknownUser) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	session.remove(user.ID)
	slog.Info("member removed from split", "split_id", session.ID, "user_id", user.ID, "name", user.Name)
	return true, nil
}

// Roster projects the current roster as display names in join order, looked
// up fresh from the ledger.
func (s *Service) Roster(ctx context.Context, key string) ([]string, error) {
	session, ok := s.registry.Get(key)
	if !ok {
		return nil, ErrStaleSession
	}
	ids := session.Roster()
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		user, err := s.ledger.Profile(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("roster lookup %s: %w", id, err)
		}
		names = append(names, user.Name)
	}
	return names, nil
}

// Finalize closes the session and pays each participant an equal share of
// the pool, with the concept recorded as the reason on every credit.
//
// The share is total / n in integer division; any remainder is deliberately
// not distributed (the pool under-pays by up to n-1 silver, as the guild has
// always run it).
//
// The session is closed and removed from the registry before any credit is
// attempted, so finalize is one-shot: a retry after a partial store failure
// gets ErrStaleSession instead of double-paying participants who were
// already credited. Credits that fail are logged and listed in the result
// for manual reconciliation.
func (s *Service) Finalize(ctx context.Context, key, requesterID, concept string) (*FinalizeResult, error) {
	session, ok := s.registry.Get(key)
	if !ok {
		return nil, ErrStaleSession
	}
	if requesterID != session.OwnerID {
		return nil, ErrNotOwner
	}

	// Point of no return: close the session first so no retry or
	// concurrent finalize can credit anyone twice. close rejects an empty
	// roster under the session lock, so a remove racing this call can
	// never leave zero participants to divide by.
	participants, err := session.close()
	if err != nil {
		return nil, err
	}
	s.registry.delete(key)

	share := session.Total / int64(len(participants))
	result := &FinalizeResult{
		Concept:     concept,
		Total:       session.Total,
		Share:       share,
		EvidenceURL: session.EvidenceURL,
	}

	for _, userID := range participants {
		mv, err := s.ledger.Credit(ctx, userID, share, concept)
		if err != nil {
			slog.Error("split payout failed, needs manual reconciliation",
				"split_id", session.ID, "user_id", userID, "share", share, "error", err)
			result.Failed = append(result.Failed, userID)
			continue
		}
		name := userID
		if user, err := s.ledger.Profile(ctx, userID); err == nil {
			name = user.Name
		}
		result.Payouts = append(result.Payouts, Payout{
			UserID:     userID,
			Name:       name,
			Amount:     mv.Amount,
			OldBalance: mv.OldBalance,
			NewBalance: mv.NewBalance,
		})
	}

	slog.Info("split finalized",
		"split_id", session.ID,
		"concept", concept,
		"total", session.Total,
		"share", share,
		"participants", len(participants),
		"failed", len(result.Failed),
	)
	return result, nil
}
