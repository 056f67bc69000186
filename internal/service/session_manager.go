package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"storefront/internal/domain"
	"storefront/internal/logger"
	"storefront/internal/notify"
	"storefront/internal/session"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Roles carried in session tokens
const (
	RoleGuest = "guest"
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Session is one shopper's live state plus their pending notifications
type Session struct {
	ID    string
	Store *Store
	Notes *notify.Buffer
}

// SessionManager owns the lifecycle of sessions: it creates a Store when a
// session starts, switches its identity at sign-in and drops it at sign-out
// or after it sits idle for the session TTL.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	state     session.Store
	catalog   *CatalogService
	carts     *CartService
	migration *MigrationService

	secret []byte
	ttl    time.Duration
	admins map[string]bool
	logger *zap.Logger
}

// NewSessionManager creates a new SessionManager
func NewSessionManager(
	state session.Store,
	catalog *CatalogService,
	carts *CartService,
	migration *MigrationService,
	secret string,
	ttl time.Duration,
	adminUserIDs []string,
	logger *zap.Logger,
) *SessionManager {
	admins := make(map[string]bool, len(adminUserIDs))
	for _, id := range adminUserIDs {
		admins[id] = true
	}

	return &SessionManager{
		sessions:  make(map[string]*Session),
		state:     state,
		catalog:   catalog,
		carts:     carts,
		migration: migration,
		secret:    []byte(secret),
		ttl:       ttl,
		admins:    admins,
		logger:    logger,
	}
}

func (m *SessionManager) newSession(id string, identity domain.Identity) *Session {
	log := logger.ForSession(m.logger, id)
	notes := notify.NewBuffer(notify.DefaultLimit, log)
	return &Session{
		ID:    id,
		Store: NewStore(id, identity, notes, log),
		Notes: notes,
	}
}

// Start opens an anonymous session with a fresh guest identifier and
// returns it with its token
func (m *SessionManager) Start(ctx context.Context) (*Session, string, error) {
	sessionID := uuid.NewString()
	guestID := "guest-" + uuid.NewString()

	if err := m.state.SetGuestID(ctx, sessionID, guestID); err != nil {
		return nil, "", fmt.Errorf("failed to start session: %w", err)
	}

	sess := m.newSession(sessionID, domain.Identity{Kind: domain.IdentityGuest, ID: guestID})

	m.mu.Lock()
	m.sessions[sessionID] = sess
	m.mu.Unlock()

	token, err := m.IssueToken(sessionID, "", RoleGuest)
	if err != nil {
		return nil, "", err
	}

	m.logger.Info("Session started", zap.String("session_id", sessionID))
	return sess, token, nil
}

// Get returns a live session. A session missing from memory (after a restart,
// or on another instance) is rebuilt from the token claims and session state.
func (m *SessionManager) Get(ctx context.Context, sessionID, userID string) (*Session, error) {
	m.mu.RLock()
	sess, ok := m.sessions[sessionID]
	m.mu.RUnlock()
	if ok {
		sess.Store.Touch()
		return sess, nil
	}

	var identity domain.Identity
	if userID != "" {
		identity = domain.Identity{Kind: domain.IdentityUser, ID: userID}
	} else {
		guestID, err := m.state.GuestID(ctx, sessionID)
		if err != nil {
			return nil, fmt.Errorf("failed to restore session: %w", err)
		}
		if guestID == "" {
			return nil, ErrSessionNotFound
		}
		identity = domain.Identity{Kind: domain.IdentityGuest, ID: guestID}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.sessions[sessionID]; ok {
		return existing, nil
	}
	sess = m.newSession(sessionID, identity)
	m.sessions[sessionID] = sess

	m.logger.Info("Session restored",
		zap.String("session_id", sessionID),
		zap.String("identity", string(identity.Kind)),
	)
	return sess, nil
}

// SignIn migrates the guest cart into userID's cart, switches the session's
// identity and returns a token for the signed-in session together with the
// merged cart. On failure the session stays a guest session.
func (m *SessionManager) SignIn(ctx context.Context, sess *Session, userID string) (string, domain.Cart, error) {
	st := sess.Store
	if st.Identity().Kind == domain.IdentityUser {
		return "", st.Cart(), ErrAlreadySignedIn
	}

	st.SetLoading(SliceSession, true)
	items, err := m.migration.Migrate(ctx, sess.ID, userID)
	st.SetLoading(SliceSession, false)
	if err != nil {
		st.SetError(SliceSession, err)
		st.Notify(ctx, notify.Error("Signed-in cart could not be merged, please try again"))
		return "", st.Cart(), err
	}
	st.SetError(SliceSession, nil)

	if _, err := m.catalog.Ensure(ctx, st); err != nil {
		m.logger.Warn("Catalog unavailable after sign-in", zap.String("session_id", sess.ID), zap.Error(err))
	}

	st.SetIdentity(domain.Identity{Kind: domain.IdentityUser, ID: userID})
	cart := st.ReplaceItems(ctx, items)

	token, err := m.IssueToken(sess.ID, userID, m.RoleFor(userID))
	if err != nil {
		return "", cart, err
	}

	m.logger.Info("Session signed in",
		zap.String("session_id", sess.ID),
		zap.String("user_id", userID),
		zap.Int("cart_items", cart.TotalItems),
	)
	return token, cart, nil
}

// SignOut ends a session and discards its state
func (m *SessionManager) SignOut(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	delete(m.sessions, sessionID)
	m.mu.Unlock()

	if err := m.state.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}

	m.logger.Info("Session ended", zap.String("session_id", sessionID))
	return nil
}

// Sweep drops sessions idle for longer than the TTL together with their
// session state, and returns how many were dropped
func (m *SessionManager) Sweep(ctx context.Context, now time.Time) int {
	var expired []string

	m.mu.Lock()
	for id, sess := range m.sessions {
		if now.Sub(sess.Store.IdleSince()) > m.ttl {
			delete(m.sessions, id)
			expired = append(expired, id)
		}
	}
	m.mu.Unlock()

	for _, id := range expired {
		if err := m.state.Delete(ctx, id); err != nil {
			m.logger.Warn("Failed to delete idle session state", zap.String("session_id", id), zap.Error(err))
		}
	}
	return len(expired)
}

// Run sweeps idle sessions every interval until ctx is done
func (m *SessionManager) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := m.Sweep(ctx, now); n > 0 {
				m.logger.Info("Idle sessions dropped", zap.Int("count", n))
			}
		}
	}
}

// Len returns the number of live sessions
func (m *SessionManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// RoleFor returns the role granted to a signed-in user
func (m *SessionManager) RoleFor(userID string) string {
	if m.admins[userID] {
		return RoleAdmin
	}
	return RoleUser
}

// IssueToken signs a session token. user_id is omitted for guests.
func (m *SessionManager) IssueToken(sessionID, userID, role string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sid":  sessionID,
		"role": role,
		"iat":  now.Unix(),
		"exp":  now.Add(m.ttl).Unix(),
	}
	if userID != "" {
		claims["user_id"] = userID
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, nil
}
