package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"motorlane/internal/models"
	"motorlane/internal/store"
)

var (
	ErrDuplicateEmail     = errors.New("email already registered")
	ErrUnknownAccount     = errors.New("invalid account")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrSamePassword       = errors.New("new password cannot be the same as current")
)

const (
	verificationTTL = 60 * time.Minute
	resetTokenTTL   = 15 * time.Minute
)

// Service orchestrates the account lifecycle: registration, verification,
// login, token refresh, logout and the password-reset flows. Every mutating
// operation runs in a single transaction so partial writes roll back together.
type Service struct {
	db         *gorm.DB
	codec      *Codec
	accessTTL  time.Duration
	refreshTTL time.Duration
	lg         *zap.SugaredLogger
}

func NewService(db *gorm.DB, codec *Codec, accessTTL, refreshTTL time.Duration, lg *zap.SugaredLogger) *Service {
	return &Service{db: db, codec: codec, accessTTL: accessTTL, refreshTTL: refreshTTL, lg: lg}
}

func newVerificationToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Register creates an unverified user under the account named by slug and
// returns the raw verification token. Delivery is the caller's problem; no
// mail is sent here.
func (s *Service) Register(email, password string, firstName, lastName *string, accountSlug string) (*models.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var user *models.User
	var token string
	err := s.db.Transaction(func(tx *gorm.DB) error {
		st := store.New(tx)
		existing, err := st.UserByEmail(email)
		if err != nil {
			return err
		}
		if existing != nil {
			return ErrDuplicateEmail
		}
		accountID, err := st.AccountIDBySlug(accountSlug)
		if err != nil {
			return err
		}
		if accountID == 0 {
			return ErrUnknownAccount
		}
		hash, err := HashPassword(password)
		if err != nil {
			return err
		}
		u := models.User{
			Email:        email,
			FirstName:    firstName,
			LastName:     lastName,
			PasswordHash: &hash,
			IsActive:     true,
			AccountID:    accountID,
		}
		if err := st.CreateUser(&u); err != nil {
			return err
		}
		token, err = newVerificationToken()
		if err != nil {
			return err
		}
		ev := models.EmailVerification{
			AccountID: accountID,
			UserID:    u.ID,
			Token:     token,
			ExpiresAt: time.Now().Add(verificationTTL),
		}
		if err := st.CreateVerification(&ev); err != nil {
			return err
		}
		user = &u
		return st.RecordAudit("register", &accountID, &u.ID, map[string]any{"email": u.Email})
	})
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// VerifyEmail consumes a verification token and flips the user's verified
// flag. Missing, used and expired tokens all report false; the caller learns
// nothing more.
func (s *Service) VerifyEmail(token string) (bool, error) {
	ok := false
	err := s.db.Transaction(func(tx *gorm.DB) error {
		st := store.New(tx)
		ev, err := st.VerificationByToken(token)
		if err != nil {
			return err
		}
		if ev == nil || ev.IsUsed || time.Now().After(ev.ExpiresAt) {
			return nil
		}
		consumed, err := st.ConsumeVerification(ev.ID)
		if err != nil || !consumed {
			return err
		}
		if err := st.MarkVerified(ev.UserID); err != nil {
			return err
		}
		ok = true
		return st.RecordAudit("email_verified", &ev.AccountID, &ev.UserID, nil)
	})
	return ok, err
}

// Authenticate checks credentials against an active user and stamps the
// last-login time. There is no lockout or attempt counting here.
func (s *Service) Authenticate(email, password string) (*models.User, error) {
	st := store.New(s.db)
	user, err := st.UserByEmail(email)
	if err != nil {
		return nil, err
	}
	if user == nil || !user.IsActive {
		return nil, ErrInvalidCredentials
	}
	if user.PasswordHash == nil || !CheckPassword(*user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		txs := store.New(tx)
		if err := txs.StampLastLogin(user.ID, time.Now()); err != nil {
			return err
		}
		return txs.RecordAudit("login", &user.AccountID, &user.ID, nil)
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// IssueTokens mints the access/refresh pair. Roles travel on the access token
// only; the refresh token carries just the subject and account.
func (s *Service) IssueTokens(user *models.User, roles []string) (access, refresh string, err error) {
	sub := strconv.FormatInt(user.ID, 10)
	access, err = s.codec.Issue(Claims{
		Subject:   sub,
		AccountID: user.AccountID,
		Roles:     roles,
		Type:      TokenTypeAccess,
	}, s.accessTTL, "")
	if err != nil {
		return "", "", err
	}
	refresh, err = s.codec.Issue(Claims{
		Subject:   sub,
		AccountID: user.AccountID,
		Type:      TokenTypeRefresh,
	}, s.refreshTTL, "")
	if err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

// Refresh mints a new access token from a refresh token, re-reading the
// user's current roles so role changes take effect. The refresh token itself
// is returned to the client unchanged; there is no rotation.
func (s *Service) Refresh(refreshToken string) (string, error) {
	claims, err := s.codec.Decode(refreshToken)
	if err != nil {
		return "", ErrInvalidToken
	}
	if claims.Type != TokenTypeRefresh {
		return "", ErrInvalidToken
	}
	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return "", ErrInvalidToken
	}
	st := store.New(s.db)
	user, err := st.UserByID(userID)
	if err != nil {
		return "", err
	}
	if user == nil {
		return "", ErrInvalidToken
	}
	roles, err := st.RoleNames(user.ID)
	if err != nil {
		return "", err
	}
	return s.codec.Issue(Claims{
		Subject:   claims.Subject,
		AccountID: user.AccountID,
		Roles:     roles,
		Type:      TokenTypeAccess,
	}, s.accessTTL, "")
}

// Logout denylists the presented access token's jti until the token would
// have expired anyway. Refresh tokens are not accepted here.
func (s *Service) Logout(accessToken string) error {
	claims, err := s.codec.Decode(accessToken)
	if err != nil {
		return ErrInvalidToken
	}
	if claims.Type == TokenTypeRefresh {
		return ErrInvalidToken
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		st := store.New(tx)
		exp := claims.ExpiresAt
		if err := st.Revoke(claims.JTI, claims.AccountID, "logout", &exp); err != nil {
			return err
		}
		var uid *int64
		if id, err := strconv.ParseInt(claims.Subject, 10, 64); err == nil {
			uid = &id
		}
		return st.RecordAudit("logout", &claims.AccountID, uid, map[string]any{"jti": claims.JTI})
	})
}

// ForgotPassword mints a short-lived reset token when the email resolves and
// returns it; the empty string means no such account. Callers must answer
// with the same generic message either way.
func (s *Service) ForgotPassword(email string) (string, error) {
	user, err := store.New(s.db).UserByEmail(email)
	if err != nil {
		return "", err
	}
	if user == nil {
		return "", nil
	}
	return s.codec.Issue(Claims{
		Subject:   strconv.FormatInt(user.ID, 10),
		AccountID: user.AccountID,
		Type:      TokenTypeReset,
	}, resetTokenTTL, "")
}

// ResetPassword consumes a reset token. The rehash and the revocation commit
// in one transaction: a changed password with a still-usable reset token (or
// the reverse) cannot be observed.
func (s *Service) ResetPassword(token, newPassword string) error {
	claims, err := s.codec.Decode(token)
	if err != nil {
		return ErrInvalidToken
	}
	if claims.Type != TokenTypeReset || claims.Subject == "" || claims.JTI == "" {
		return ErrInvalidToken
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		st := store.New(tx)
		revoked, err := st.IsRevoked(claims.JTI)
		if err != nil {
			return err
		}
		if revoked {
			return ErrInvalidToken
		}
		userID, err := strconv.ParseInt(claims.Subject, 10, 64)
		if err != nil {
			return ErrInvalidToken
		}
		user, err := st.UserByID(userID)
		if err != nil {
			return err
		}
		if user == nil {
			return ErrInvalidToken
		}
		if user.PasswordHash != nil && CheckPassword(*user.PasswordHash, newPassword) {
			return ErrSamePassword
		}
		hash, err := HashPassword(newPassword)
		if err != nil {
			return err
		}
		if err := st.UpdatePassword(user.ID, hash); err != nil {
			return err
		}
		exp := claims.ExpiresAt
		if err := st.Revoke(claims.JTI, user.AccountID, "password_reset", &exp); err != nil {
			return err
		}
		return st.RecordAudit("password_reset", &user.AccountID, &user.ID, map[string]any{"jti": claims.JTI})
	})
}

// ValidateResetToken mirrors ResetPassword's checks without consuming
// anything, so a client can pre-validate a reset link.
func (s *Service) ValidateResetToken(token string) error {
	claims, err := s.codec.Decode(token)
	if err != nil {
		return ErrInvalidToken
	}
	if claims.Type != TokenTypeReset || claims.JTI == "" {
		return ErrInvalidToken
	}
	revoked, err := store.New(s.db).IsRevoked(claims.JTI)
	if err != nil {
		return err
	}
	if revoked {
		return ErrInvalidToken
	}
	return nil
}
