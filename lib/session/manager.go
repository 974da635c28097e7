package session

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"time"

	"github.com/TecharoHQ/codegate"
	"github.com/TecharoHQ/codegate/decaymap"
	"github.com/TecharoHQ/codegate/internal"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/net/publicsuffix"
)

var (
	ErrInvalidToken = errors.New("session: invalid token")
	ErrNoSessionID  = errors.New("session: token has no session id")
)

var domainMatchRegexp = regexp.MustCompile(`^((xn--)?[a-z0-9]+(-[a-z0-9]+)*\.)+[a-z]{2,}$`)

// Options configures a Manager. Zero values pick the defaults.
type Options struct {
	CookieName          string
	CookieDomain        string
	CookieDynamicDomain bool
	CookiePartitioned   bool
	CookieSecure        bool
	CookiePath          string

	// CookieExpiration bounds the lifetime of the signed cookie.
	CookieExpiration time.Duration

	// IdleTimeout is how long a session survives without requests.
	IdleTimeout time.Duration

	ED25519PrivateKey ed25519.PrivateKey
	HS512Secret       []byte
}

// Manager issues session cookies and holds session state.
type Manager struct {
	opts     Options
	priv     ed25519.PrivateKey
	pub      ed25519.PublicKey
	sessions *decaymap.Impl[string, Session]
	now      func() time.Time
}

// NewManager builds a Manager. Without any key material an ephemeral ed25519
// key is generated, which means cookies do not survive a restart.
func NewManager(opts Options) (*Manager, error) {
	if opts.ED25519PrivateKey == nil && len(opts.HS512Secret) == 0 {
		slog.Debug("session signing key not set, generating a new one")
		_, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("session: can't generate private key: %w", err)
		}
		opts.ED25519PrivateKey = priv
	}

	if opts.CookieName == "" {
		opts.CookieName = codegate.CookieName
		if opts.CookieDomain != "" {
			opts.CookieName = codegate.WithDomainCookieName + opts.CookieDomain
		}
	}

	if opts.CookiePath == "" {
		opts.CookiePath = "/"
	}

	if opts.CookieExpiration == 0 {
		opts.CookieExpiration = 24 * time.Hour
	}

	if opts.IdleTimeout == 0 {
		opts.IdleTimeout = codegate.SessionDefaultExpirationTime
	}

	result := &Manager{
		opts:     opts,
		sessions: decaymap.New[string, Session](),
		now:      time.Now,
	}

	if opts.ED25519PrivateKey != nil {
		result.priv = opts.ED25519PrivateKey
		result.pub = opts.ED25519PrivateKey.Public().(ed25519.PublicKey)
	}

	return result, nil
}

// CookieName is the name of the cookie this manager reads and writes.
func (m *Manager) CookieName() string {
	return m.opts.CookieName
}

// Middleware attaches a session to every request, creating one and setting the
// cookie when the caller has none or presents an invalid one.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := m.Load(r)
		if err != nil {
			lg := internal.GetRequestLogger(r)
			if !errors.Is(err, http.ErrNoCookie) {
				lg.Debug("discarding session cookie", "err", err)
			}

			sess, err = m.Create(w, r)
			if err != nil {
				lg.Error("can't create session", "err", err)
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
		}

		next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), sess)))
	})
}

// Load resolves the session referenced by the request cookie and extends its
// idle lifetime.
func (m *Manager) Load(r *http.Request) (Session, error) {
	ckie, err := r.Cookie(m.opts.CookieName)
	if err != nil {
		return nil, err
	}

	sid, err := m.parse(ckie.Value)
	if err != nil {
		return nil, err
	}

	sess, _ := m.sessions.GetOrCreate(sid, m.opts.IdleTimeout, func() Session {
		return NewMemory(sid)
	})
	return sess, nil
}

// Create starts a new session and sets its cookie on w.
func (m *Manager) Create(w http.ResponseWriter, r *http.Request) (Session, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("session: can't generate id: %w", err)
	}

	sid := id.String()
	token, err := m.sign(jwt.MapClaims{"sid": sid})
	if err != nil {
		return nil, fmt.Errorf("session: can't sign cookie: %w", err)
	}

	sess := NewMemory(sid)
	m.sessions.Set(sid, sess, m.opts.IdleTimeout)
	m.setCookie(w, r.Host, token)

	return sess, nil
}

// Destroy drops the session and clears the cookie.
func (m *Manager) Destroy(w http.ResponseWriter, r *http.Request, sess Session) {
	m.sessions.Delete(sess.ID())
	m.clearCookie(w, r.Host)
}

// Cleanup removes idle sessions.
func (m *Manager) Cleanup() {
	m.sessions.Cleanup()
}

// CleanupThread calls Cleanup every interval until ctx is done.
func (m *Manager) CleanupThread(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			m.Cleanup()
		}
	}
}

func (m *Manager) sign(claims jwt.MapClaims) (string, error) {
	now := m.now()
	claims["iat"] = now.Unix()
	claims["nbf"] = now.Add(-1 * time.Minute).Unix()
	claims["exp"] = now.Add(m.opts.CookieExpiration).Unix()

	if len(m.opts.HS512Secret) == 0 {
		return jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims).SignedString(m.priv)
	} else {
		return jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString(m.opts.HS512Secret)
	}
}

func (m *Manager) parse(value string) (string, error) {
	method := jwt.SigningMethodEdDSA.Alg()
	if len(m.opts.HS512Secret) != 0 {
		method = jwt.SigningMethodHS512.Alg()
	}

	token, err := jwt.ParseWithClaims(value, jwt.MapClaims{}, func(token *jwt.Token) (any, error) {
		if len(m.opts.HS512Secret) != 0 {
			return m.opts.HS512Secret, nil
		}
		return m.pub, nil
	},
		jwt.WithExpirationRequired(),
		jwt.WithStrictDecoding(),
		jwt.WithValidMethods([]string{method}),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil || !token.Valid {
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrInvalidToken
	}

	sid, ok := claims["sid"].(string)
	if !ok || sid == "" {
		return "", ErrNoSessionID
	}

	return sid, nil
}

func (m *Manager) cookieDomain(host string) string {
	domain := m.opts.CookieDomain
	if m.opts.CookieDynamicDomain && domainMatchRegexp.MatchString(host) {
		if etld, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil {
			domain = etld
		}
	}

	return domain
}

func (m *Manager) setCookie(w http.ResponseWriter, host, value string) {
	http.SetCookie(w, &http.Cookie{
		Name:        m.opts.CookieName,
		Value:       value,
		Expires:     m.now().Add(m.opts.CookieExpiration),
		SameSite:    http.SameSiteLaxMode,
		HttpOnly:    true,
		Domain:      m.cookieDomain(host),
		Secure:      m.opts.CookieSecure,
		Partitioned: m.opts.CookiePartitioned,
		Path:        m.opts.CookiePath,
	})
}

func (m *Manager) clearCookie(w http.ResponseWriter, host string) {
	http.SetCookie(w, &http.Cookie{
		Name:        m.opts.CookieName,
		Value:       "",
		MaxAge:      -1,
		Expires:     m.now().Add(-1 * time.Minute),
		SameSite:    http.SameSiteLaxMode,
		HttpOnly:    true,
		Partitioned: m.opts.CookiePartitioned,
		Domain:      m.cookieDomain(host),
		Secure:      m.opts.CookieSecure,
		Path:        m.opts.CookiePath,
	})
}
