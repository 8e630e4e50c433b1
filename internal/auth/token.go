package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
	TokenTypeReset   = "reset"
)

// ErrInvalidToken is the single failure a caller sees for a token that is
// forged, expired or malformed. Collapsing the causes keeps decode from
// acting as an oracle.
var ErrInvalidToken = errors.New("invalid or expired token")

// Claims is the decoded payload of a signed token. Type discrimination is the
// caller's job; the codec signs and verifies whatever it is handed.
type Claims struct {
	Subject   string
	AccountID int64
	Roles     []string
	Type      string
	JTI       string
	ExpiresAt time.Time
}

// Codec signs and verifies compact HS256 tokens with a single deployment
// secret. It is stateless and safe for concurrent use.
type Codec struct {
	secret []byte
}

func NewCodec(secret string) *Codec {
	return &Codec{secret: []byte(secret)}
}

// Issue signs cl with the given lifetime. A random hex jti is generated when
// none is supplied. The role claim is written only on access tokens.
func (c *Codec) Issue(cl Claims, ttl time.Duration, jti string) (string, error) {
	if jti == "" {
		jti = strings.ReplaceAll(uuid.New().String(), "-", "")
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": cl.Subject,
		"acc": cl.AccountID,
		"typ": cl.Type,
		"jti": jti,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	if cl.Type == TokenTypeAccess {
		roles := cl.Roles
		if roles == nil {
			roles = []string{}
		}
		claims["role"] = roles
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(c.secret)
}

// Decode verifies signature and expiry in one step and extracts the claim set.
func (c *Codec) Decode(tokenStr string) (Claims, error) {
	tok, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return c.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !tok.Valid {
		return Claims{}, ErrInvalidToken
	}
	mapc, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, ErrInvalidToken
	}
	cl := Claims{}
	cl.Subject, _ = mapc["sub"].(string)
	cl.Type, _ = mapc["typ"].(string)
	cl.JTI, _ = mapc["jti"].(string)
	if acc, ok := mapc["acc"].(float64); ok {
		cl.AccountID = int64(acc)
	}
	if exp, err := mapc.GetExpirationTime(); err == nil && exp != nil {
		cl.ExpiresAt = exp.Time
	}
	if arr, ok := mapc["role"].([]interface{}); ok {
		for _, v := range arr {
			if s, ok := v.(string); ok {
				cl.Roles = append(cl.Roles, s)
			}
		}
	}
	return cl, nil
}
