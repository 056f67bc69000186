package service

import (
	"context"
	"fmt"
	"sync"

	"storefront/internal/domain"
	"storefront/internal/repository"
	"storefront/internal/session"

	"go.uber.org/zap"
)

// MigrationService moves a guest cart into a user cart at sign-in
type MigrationService struct {
	carts    repository.CartRepository
	sessions session.Store
	journal  repository.MigrationJournal
	logger   *zap.Logger

	// userLocks serializes migrations per user so no two replays for the
	// same account interleave, even across sessions. An entry lives only
	// while some migration holds or waits for it.
	locksMu   sync.Mutex
	userLocks map[string]*userLock
}

type userLock struct {
	mu      sync.Mutex
	holders int
}

// NewMigrationService creates a new MigrationService
func NewMigrationService(
	carts repository.CartRepository,
	sessions session.Store,
	journal repository.MigrationJournal,
	logger *zap.Logger,
) *MigrationService {
	return &MigrationService{
		carts:    carts,
		sessions: sessions,
		journal:   journal,
		logger:    logger,
		userLocks: make(map[string]*userLock),
	}
}

func (s *MigrationService) lockUser(userID string) func() {
	s.locksMu.Lock()
	l, ok := s.userLocks[userID]
	if !ok {
		l = &userLock{}
		s.userLocks[userID] = l
	}
	l.holders++
	s.locksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()

		s.locksMu.Lock()
		l.holders--
		if l.holders == 0 {
			delete(s.userLocks, userID)
		}
		s.locksMu.Unlock()
	}
}

// lockedUsers reports how many users currently have a lock entry
func (s *MigrationService) lockedUsers() int {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	return len(s.userLocks)
}

// Migrate replays the session's guest cart into userID's cart and returns the
// user's cart as fetched afterwards.
//
// Lines are added one at a time, each call finishing before the next starts.
// The guest cart is deleted only after every line was replayed. If any step
// fails the error is returned as-is; lines replayed before the failure stay
// in the user cart and nothing is rolled back. No dedup by product id is done
// here: merging duplicate lines is up to the API.
func (s *MigrationService) Migrate(ctx context.Context, sessionID, userID string) ([]domain.CartItem, error) {
	unlock := s.lockUser(userID)
	defer unlock()

	guestID, err := s.sessions.GuestID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to read guest id: %w", err)
	}

	if guestID == "" {
		return s.fetchUserCart(ctx, userID)
	}

	guestItems, err := s.carts.List(ctx, guestID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch guest cart: %w", err)
	}

	if len(guestItems) == 0 {
		items, err := s.fetchUserCart(ctx, userID)
		if err != nil {
			return nil, err
		}
		s.forgetGuest(ctx, sessionID)
		return items, nil
	}

	run := &domain.MigrationRun{
		UserID:    userID,
		GuestID:   guestID,
		ItemCount: len(guestItems),
	}
	if err := s.journal.Start(ctx, run); err != nil {
		s.logger.Warn("Failed to journal migration start", zap.String("user_id", userID), zap.Error(err))
	}

	s.logger.Info("Migrating guest cart",
		zap.String("run_id", run.ID.String()),
		zap.String("user_id", userID),
		zap.String("guest_id", guestID),
		zap.Int("items", len(guestItems)),
	)

	for i, item := range guestItems {
		result, err := s.carts.Add(ctx, userID, item)
		if err != nil {
			s.fail(ctx, run, i, err)
			return nil, fmt.Errorf("failed to replay guest cart item %s: %w", item.ProductID, err)
		}

		cartItemID := ""
		if result != nil {
			cartItemID = result.CartItemID
		}
		if err := s.journal.RecordReplay(ctx, run.ID, item, cartItemID); err != nil {
			s.logger.Warn("Failed to journal replay", zap.String("run_id", run.ID.String()), zap.Error(err))
		}
	}

	if err := s.carts.Clear(ctx, guestID); err != nil {
		s.fail(ctx, run, len(guestItems), err)
		return nil, fmt.Errorf("failed to delete guest cart: %w", err)
	}

	items, err := s.fetchUserCart(ctx, userID)
	if err != nil {
		s.fail(ctx, run, len(guestItems), err)
		return nil, err
	}

	s.forgetGuest(ctx, sessionID)

	if err := s.journal.Finish(ctx, run.ID, domain.MigrationCompleted, ""); err != nil {
		s.logger.Warn("Failed to journal migration finish", zap.String("run_id", run.ID.String()), zap.Error(err))
	}

	s.logger.Info("Guest cart migrated",
		zap.String("run_id", run.ID.String()),
		zap.String("user_id", userID),
		zap.Int("replayed", len(guestItems)),
	)
	return items, nil
}

func (s *MigrationService) fetchUserCart(ctx context.Context, userID string) ([]domain.CartItem, error) {
	items, err := s.carts.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user cart: %w", err)
	}
	return items, nil
}

func (s *MigrationService) forgetGuest(ctx context.Context, sessionID string) {
	if err := s.sessions.ClearGuestID(ctx, sessionID); err != nil {
		s.logger.Warn("Failed to clear guest id", zap.String("session_id", sessionID), zap.Error(err))
	}
}

func (s *MigrationService) fail(ctx context.Context, run *domain.MigrationRun, replayed int, cause error) {
	s.logger.Error("Guest cart migration failed",
		zap.String("run_id", run.ID.String()),
		zap.String("user_id", run.UserID),
		zap.Int("replayed", replayed),
		zap.Int("items", run.ItemCount),
		zap.Error(cause),
	)
	if err := s.journal.Finish(ctx, run.ID, domain.MigrationFailed, cause.Error()); err != nil {
		s.logger.Warn("Failed to journal migration failure", zap.String("run_id", run.ID.String()), zap.Error(err))
	}
}

// History returns recent migration runs for a user
func (s *MigrationService) History(ctx context.Context, userID string, limit int) ([]*domain.MigrationRun, error) {
	return s.journal.ListByUser(ctx, userID, limit)
}
