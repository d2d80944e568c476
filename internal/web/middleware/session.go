package middleware

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	sessionCookieName = "site_photos_session"
	sessionDuration   = 24 * time.Hour
	cleanupInterval   = 10 * time.Minute
)

// Session represents a signed-in user working on one site.
type Session struct {
	ID        string    `json:"id"`
	Token     string    `json:"token"` // backend bearer token
	SiteID    string    `json:"site_id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// StoredSession is the persisted form of a Session.
type StoredSession struct {
	ID        string
	Token     string
	SiteID    string
	UserID    string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// SessionRepository persists sessions so they survive restarts.
type SessionRepository interface {
	Save(ctx context.Context, s StoredSession) error
	Get(ctx context.Context, sessionID string) (*StoredSession, error)
	Delete(ctx context.Context, sessionID string) error
	DeleteExpired(ctx context.Context) (int64, error)
}

// SessionManager handles session creation and validation
type SessionManager struct {
	secret   []byte
	repo     SessionRepository
	logger   *zap.Logger
	sessions map[string]*Session
	onDelete []func(sessionID string)
	mu       sync.RWMutex

	stop     chan struct{}
	stopOnce sync.Once
}

// NewSessionManager creates a session manager. repo may be nil, in which
// case sessions live in memory only. A cleanup goroutine runs until Stop.
func NewSessionManager(secret string, repo SessionRepository, logger *zap.Logger) *SessionManager {
	// Use a default secret if none provided (for development)
	if secret == "" {
		secret = "site-photos-dev-secret-change-in-production"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	sm := &SessionManager{
		secret:   []byte(secret),
		repo:     repo,
		logger:   logger,
		sessions: make(map[string]*Session),
		stop:     make(chan struct{}),
	}
	go sm.cleanupLoop()
	return sm
}

// OnDelete registers fn to run after a session is deleted or expires.
func (sm *SessionManager) OnDelete(fn func(sessionID string)) {
	sm.mu.Lock()
	sm.onDelete = append(sm.onDelete, fn)
	sm.mu.Unlock()
}

// CreateSession creates a new session for a user
func (sm *SessionManager) CreateSession(ctx context.Context, token, siteID, userID string) (*Session, error) {
	idBytes := make([]byte, 32)
	if _, err := rand.Read(idBytes); err != nil {
		return nil, err
	}

	now := time.Now()
	session := &Session{
		ID:        base64.URLEncoding.EncodeToString(idBytes),
		Token:     token,
		SiteID:    siteID,
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(sessionDuration),
	}

	sm.mu.Lock()
	sm.sessions[session.ID] = session
	sm.mu.Unlock()

	if sm.repo != nil {
		if err := sm.repo.Save(ctx, session.stored()); err != nil {
			// The in-memory session still works until restart.
			sm.logger.Warn("could not persist session", zap.Error(err))
		}
	}

	return session, nil
}

// GetSession retrieves a session by ID, falling back to the repository
// for sessions created before a restart.
func (sm *SessionManager) GetSession(ctx context.Context, sessionID string) *Session {
	sm.mu.RLock()
	session, ok := sm.sessions[sessionID]
	sm.mu.RUnlock()

	if !ok && sm.repo != nil {
		stored, err := sm.repo.Get(ctx, sessionID)
		if err != nil {
			sm.logger.Warn("could not load session", zap.Error(err))
			return nil
		}
		if stored != nil {
			session = stored.session()
			sm.mu.Lock()
			sm.sessions[sessionID] = session
			sm.mu.Unlock()
			ok = true
		}
	}
	if !ok {
		return nil
	}

	if time.Now().After(session.ExpiresAt) {
		sm.DeleteSession(ctx, sessionID)
		return nil
	}

	return session
}

// DeleteSession removes a session
func (sm *SessionManager) DeleteSession(ctx context.Context, sessionID string) {
	sm.mu.Lock()
	delete(sm.sessions, sessionID)
	hooks := append([]func(string){}, sm.onDelete...)
	sm.mu.Unlock()

	if sm.repo != nil {
		if err := sm.repo.Delete(ctx, sessionID); err != nil {
			sm.logger.Warn("could not delete stored session", zap.Error(err))
		}
	}
	for _, fn := range hooks {
		fn(sessionID)
	}
}

// Stop ends the cleanup goroutine.
func (sm *SessionManager) Stop() {
	sm.stopOnce.Do(func() { close(sm.stop) })
}

func (sm *SessionManager) cleanupLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-sm.stop:
			return
		case <-ticker.C:
			sm.cleanup(context.Background())
		}
	}
}

// cleanup drops expired sessions from memory and the repository.
func (sm *SessionManager) cleanup(ctx context.Context) {
	now := time.Now()
	var expired []string
	sm.mu.RLock()
	for id, s := range sm.sessions {
		if now.After(s.ExpiresAt) {
			expired = append(expired, id)
		}
	}
	sm.mu.RUnlock()

	for _, id := range expired {
		sm.DeleteSession(ctx, id)
	}

	if sm.repo != nil {
		n, err := sm.repo.DeleteExpired(ctx)
		if err != nil {
			sm.logger.Warn("could not delete expired sessions", zap.Error(err))
		} else if n > 0 {
			sm.logger.Info("deleted expired sessions", zap.Int64("count", n))
		}
	}
}

// SetSessionCookie sets the session cookie on the response
func (sm *SessionManager) SetSessionCookie(w http.ResponseWriter, r *http.Request, session *Session) {
	signature := sm.signData(session.ID)
	cookieValue := session.ID + "." + signature

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    cookieValue,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https",
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(sessionDuration.Seconds()),
	})
}

// ClearSessionCookie removes the session cookie
func (sm *SessionManager) ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
}

// GetSessionFromRequest extracts the session from a request
func (sm *SessionManager) GetSessionFromRequest(r *http.Request) *Session {
	// Try cookie first
	cookie, err := r.Cookie(sessionCookieName)
	if err == nil {
		sessionID, signature, found := strings.Cut(cookie.Value, ".")
		if found && sm.verifySignature(sessionID, signature) {
			if session := sm.GetSession(r.Context(), sessionID); session != nil {
				return session
			}
		}
	}

	// Try Authorization header
	authHeader := r.Header.Get("Authorization")
	if sessionID, ok := strings.CutPrefix(authHeader, "Bearer "); ok {
		if session := sm.GetSession(r.Context(), sessionID); session != nil {
			return session
		}
	}

	return nil
}

// signData creates an HMAC signature for data
func (sm *SessionManager) signData(data string) string {
	h := hmac.New(sha256.New, sm.secret)
	h.Write([]byte(data))
	return base64.URLEncoding.EncodeToString(h.Sum(nil))
}

// verifySignature verifies an HMAC signature
func (sm *SessionManager) verifySignature(data, signature string) bool {
	expected := sm.signData(data)
	return hmac.Equal([]byte(signature), []byte(expected))
}

func (s *Session) stored() StoredSession {
	return StoredSession{
		ID:        s.ID,
		Token:     s.Token,
		SiteID:    s.SiteID,
		UserID:    s.UserID,
		CreatedAt: s.CreatedAt,
		ExpiresAt: s.ExpiresAt,
	}
}

func (s *StoredSession) session() *Session {
	return &Session{
		ID:        s.ID,
		Token:     s.Token,
		SiteID:    s.SiteID,
		UserID:    s.UserID,
		CreatedAt: s.CreatedAt,
		ExpiresAt: s.ExpiresAt,
	}
}

// SessionData is a helper struct for JSON responses
type SessionData struct {
	SessionID string `json:"session_id"`
	SiteID    string `json:"site_id"`
	UserID    string `json:"user_id,omitempty"`
	ExpiresAt string `json:"expires_at"`
}

// ToJSON returns the session data for JSON response
func (s *Session) ToJSON() SessionData {
	return SessionData{
		SessionID: s.ID,
		SiteID:    s.SiteID,
		UserID:    s.UserID,
		ExpiresAt: s.ExpiresAt.Format(time.RFC3339),
	}
}

// MarshalJSON implements json.Marshaler (excludes sensitive fields)
func (s *Session) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.ToJSON())
}
