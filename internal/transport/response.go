package transport

import (
	"errors"
	"net/http"

	"storefront/internal/middleware"
	"storefront/internal/notify"
	"storefront/internal/repository"
	"storefront/internal/service"

	"go.uber.org/zap"
)

// Envelope wraps every session-scoped response. Notifications raised while
// handling the request (and any still pending) are drained into it.
type Envelope struct {
	Data          interface{}                           `json:"data"`
	Status        map[service.Slice]service.SliceStatus `json:"status,omitempty"`
	Notifications []notify.Notification                 `json:"notifications"`
}

// sessionResolver finds the live session behind a validated token
type sessionResolver struct {
	sessions *service.SessionManager
	logger   *zap.Logger
}

// resolve returns the caller's session or writes an error response
func (s sessionResolver) resolve(w http.ResponseWriter, r *http.Request) (*service.Session, bool) {
	sessionID, ok := middleware.GetSessionID(r.Context())
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "missing session")
		return nil, false
	}
	userID, _ := middleware.GetUserID(r.Context())

	sess, err := s.sessions.Get(r.Context(), sessionID, userID)
	if err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			middleware.RespondWithError(w, http.StatusUnauthorized, "session expired")
			return nil, false
		}
		s.logger.Error("Failed to resolve session", zap.String("session_id", sessionID), zap.Error(err))
		middleware.RespondWithError(w, http.StatusServiceUnavailable, "session store unavailable")
		return nil, false
	}
	return sess, true
}

func respondWithSession(w http.ResponseWriter, statusCode int, sess *service.Session, data interface{}) {
	middleware.RespondWithJSON(w, statusCode, Envelope{
		Data:          data,
		Status:        sess.Store.Status(),
		Notifications: sess.Notes.Drain(),
	})
}

// statusFor maps service and repository errors to HTTP status codes.
// Anything unrecognised is treated as a failed backend call.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrStockLimit),
		errors.Is(err, service.ErrOutOfStock),
		errors.Is(err, service.ErrEmptyCart),
		errors.Is(err, service.ErrAlreadySignedIn):
		return http.StatusConflict, err.Error()
	case errors.Is(err, service.ErrProductUnavailable),
		errors.Is(err, service.ErrItemNotInCart),
		errors.Is(err, repository.ErrProductNotFound),
		errors.Is(err, repository.ErrOrderNotFound),
		errors.Is(err, repository.ErrCartItemNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, service.ErrInvalidQuantity),
		errors.Is(err, service.ErrInvalidStatus):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, service.ErrSignInRequired),
		errors.Is(err, service.ErrSessionNotFound):
		return http.StatusUnauthorized, err.Error()
	default:
		return http.StatusBadGateway, "storefront backend unavailable"
	}
}

// respondWithServiceError writes a mapped error. Session notifications are
// carried in the error details so the shopper still sees them.
func respondWithServiceError(w http.ResponseWriter, sess *service.Session, err error) {
	statusCode, message := statusFor(err)

	var details map[string]interface{}
	if sess != nil {
		if notes := sess.Notes.Drain(); len(notes) > 0 {
			details = map[string]interface{}{"notifications": notes}
		}
	}
	middleware.RespondWithErrorDetails(w, statusCode, message, details)
}

// respondWithDecodeError answers a body that failed to decode or validate
func respondWithDecodeError(w http.ResponseWriter, err error) {
	if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
		middleware.RespondWithValidationErrors(w, validationErrors)
		return
	}
	middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
}
