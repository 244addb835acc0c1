package devserver

import (
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/golang-jwt/jwt/v4"
)

const (
	defaultTokenTTL    = 30 * time.Minute
	defaultKeyCacheTTL = 15 * time.Minute
)

var (
	errIssueUnsupported = errors.New("token issuing requires a shared secret")
	errMissingSubject   = errors.New("missing sub")
)

// Auth issues and validates bearer tokens. With a shared secret it signs HS256
// tokens itself; with a JWKS it only validates RS256 tokens minted elsewhere.
type Auth struct {
	Secret []byte
	JWKS   *keyfunc.JWKS
	Issuer string
	TTL    time.Duration

	parser      *jwt.Parser
	keyCache    sync.Map
	keyCacheTTL time.Duration
}

type cachedKey struct {
	key       any
	expiresAt time.Time
}

// NewSharedSecretAuth signs and verifies HS256 tokens with secret.
func NewSharedSecretAuth(secret []byte, ttl time.Duration) *Auth {
	if len(secret) == 0 {
		panic("devserver: shared secret must not be empty")
	}
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	return &Auth{
		Secret: secret,
		TTL:    ttl,
		parser: jwt.NewParser(jwt.WithValidMethods([]string{"HS256"})),
	}
}

// NewJWKSAuth verifies RS256 tokens against jwks. Keys resolved by kid are
// cached for cacheTTL.
func NewJWKSAuth(jwks *keyfunc.JWKS, issuer string, cacheTTL time.Duration) *Auth {
	if cacheTTL < 0 {
		cacheTTL = 0
	} else if cacheTTL == 0 {
		cacheTTL = defaultKeyCacheTTL
	}
	return &Auth{
		JWKS:        jwks,
		Issuer:      issuer,
		keyCacheTTL: cacheTTL,
		parser:      jwt.NewParser(jwt.WithValidMethods([]string{"RS256"})),
	}
}

// Issue signs a token whose subject is the user id.
func (a *Auth) Issue(userID int64, now time.Time) (string, error) {
	if len(a.Secret) == 0 {
		return "", errIssueUnsupported
	}
	claims := jwt.MapClaims{
		"sub": strconv.FormatInt(userID, 10),
		"iat": now.Unix(),
		"exp": now.Add(a.TTL).Unix(),
	}
	if a.Issuer != "" {
		claims["iss"] = a.Issuer
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.Secret)
}

// UserIDFromAuthHeader extracts the user id from an Authorization header.
func (a *Auth) UserIDFromAuthHeader(h string) (int64, error) {
	token, err := bearerToken(h)
	if err != nil {
		return 0, err
	}
	return a.UserIDFromToken(token)
}

// UserIDFromToken validates token and returns its subject as a user id.
func (a *Auth) UserIDFromToken(token string) (int64, error) {
	parsed, err := a.parser.Parse(token, func(t *jwt.Token) (any, error) {
		if len(a.Secret) > 0 {
			return a.Secret, nil
		}
		return a.keyForToken(t)
	})
	if err != nil {
		return 0, err
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return 0, errors.New("invalid claims")
	}
	now := time.Now().Unix()
	if !claims.VerifyExpiresAt(now, true) {
		return 0, errors.New("token expired")
	}
	if a.Issuer != "" && !claims.VerifyIssuer(a.Issuer, false) {
		return 0, errors.New("invalid issuer")
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return 0, errMissingSubject
	}
	id, err := strconv.ParseInt(sub, 10, 64)
	if err != nil || id <= 0 {
		return 0, errMissingSubject
	}
	return id, nil
}

func (a *Auth) keyForToken(token *jwt.Token) (any, error) {
	if a.JWKS == nil {
		return nil, errors.New("jwks not configured")
	}

	kid, _ := token.Header["kid"].(string)
	if kid != "" && a.keyCacheTTL > 0 {
		if cached, ok := a.keyCache.Load(kid); ok {
			entry := cached.(cachedKey)
			if time.Now().Before(entry.expiresAt) {
				return entry.key, nil
			}
			a.keyCache.Delete(kid)
		}
	}

	key, err := a.JWKS.Keyfunc(token)
	if err != nil {
		return nil, err
	}
	if kid != "" && a.keyCacheTTL > 0 {
		a.keyCache.Store(kid, cachedKey{key: key, expiresAt: time.Now().Add(a.keyCacheTTL)})
	}
	return key, nil
}
