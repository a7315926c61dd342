package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mssola/useragent"
	"golang.org/x/crypto/bcrypt"

	dErrors "kyc-core/pkg/domain-errors"
	"kyc-core/pkg/platform/sentinel"
)

// UserAuth is the delegated end-user token verifier. It returns the profile
// the token belongs to.
type UserAuth interface {
	CheckAuthToken(ctx context.Context, token, ip string) (*User, error)
}

type Service struct {
	sessions SessionStore
	users    UserAuth
	admins   map[string]AdminAccount
	log      *slog.Logger
}

type Option func(*Service)

func WithLogger(log *slog.Logger) Option {
	return func(s *Service) { s.log = log }
}

func NewService(sessions SessionStore, users UserAuth, admins []AdminAccount, opts ...Option) *Service {
	s := &Service{
		sessions: sessions,
		users:    users,
		admins:   make(map[string]AdminAccount, len(admins)),
		log:      slog.Default(),
	}
	for _, admin := range admins {
		s.admins[strings.ToLower(admin.Email)] = admin
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Resolve turns a credential into an identity: admin-session lookup first,
// delegated end-user verification second.
func (s *Service) Resolve(ctx context.Context, cred Credential) (*Identity, error) {
	if cred.Token == "" {
		return nil, dErrors.New(dErrors.CodeAuthTokenInvalid, "")
	}
	if cred.IP == "" {
		return nil, dErrors.New(dErrors.CodeUserIPNeeded, "")
	}

	session, err := s.sessions.ByToken(ctx, cred.Token)
	switch {
	case err == nil:
		if session.IP != cred.IP {
			s.log.Warn("admin token used from foreign ip",
				"admin", session.Email, "session_ip", session.IP, "ip", cred.IP)
			return nil, dErrors.New(dErrors.CodeAuthTokenInvalid, "ip mismatch")
		}
		return &Identity{Admin: session}, nil
	case !errors.Is(err, sentinel.ErrNotFound):
		return nil, err
	}

	user, err := s.users.CheckAuthToken(ctx, cred.Token, cred.IP)
	if err != nil {
		if dErrors.CodeOf(err) != dErrors.CodeInternal {
			return nil, err
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUserTokenInvalid, "")
	}
	if user == nil || user.ID == 0 {
		return nil, dErrors.New(dErrors.CodeUserTokenInvalid, "")
	}
	return &Identity{User: user}, nil
}

// PreAdminTokenCheck reports whether the token is a live admin session bound
// to the given ip, without failing on plain absence.
func (s *Service) PreAdminTokenCheck(ctx context.Context, cred Credential) (bool, error) {
	if cred.Token == "" {
		return false, nil
	}
	if cred.IP == "" {
		return false, dErrors.New(dErrors.CodeUserIPNeeded, "")
	}
	session, err := s.sessions.ByToken(ctx, cred.Token)
	if errors.Is(err, sentinel.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return session.IP == cred.IP, nil
}

// LoginAdmin verifies a configured admin's password and opens an IP-bound
// session. The returned token is the admin credential for every other
// operation.
func (s *Service) LoginAdmin(ctx context.Context, email, password, ip, userAgent string) (*Session, error) {
	if ip == "" {
		return nil, dErrors.New(dErrors.CodeUserIPNeeded, "")
	}
	admin, exists := s.admins[strings.ToLower(email)]
	if !exists || !admin.IsActive {
		return nil, dErrors.New(dErrors.CodeLoginInvalidCredentials, "")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(password)); err != nil {
		return nil, dErrors.New(dErrors.CodeLoginInvalidCredentials, "")
	}

	session := &Session{
		Token:     uuid.NewString(),
		Email:     admin.Email,
		Level:     admin.Level,
		IP:        ip,
		Device:    deviceLabel(userAgent),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, err
	}
	s.log.Info("admin logged in", "admin", admin.Email, "level", int(admin.Level))
	return session, nil
}

// LogoutAdmin revokes a session token.
func (s *Service) LogoutAdmin(ctx context.Context, token string) error {
	return s.sessions.Revoke(ctx, token)
}

// ActiveAdmins lists the configured active admin emails.
func (s *Service) ActiveAdmins() []string {
	var out []string
	for _, admin := range s.admins {
		if admin.IsActive {
			out = append(out, admin.Email)
		}
	}
	return out
}

// CheckAccessLevel reports whether the identity is an admin at the given
// level or more privileged.
func CheckAccessLevel(id *Identity, level AccessLevel) bool {
	return id.IsAdmin() && id.Level() <= level
}

// RequireAccessLevel is CheckAccessLevel with a RESTRICTED_ACCESS failure.
func RequireAccessLevel(id *Identity, level AccessLevel) error {
	if !CheckAccessLevel(id, level) {
		return dErrors.New(dErrors.CodeRestrictedAccess, "")
	}
	return nil
}

func deviceLabel(rawUA string) string {
	if rawUA == "" {
		return ""
	}
	ua := useragent.New(rawUA)
	name, version := ua.Browser()
	parts := make([]string, 0, 3)
	if name != "" {
		parts = append(parts, name)
	}
	if version != "" {
		parts = append(parts, version)
	}
	if os := ua.OS(); os != "" {
		parts = append(parts, os)
	}
	return strings.Join(parts, " ")
}
