package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// Role names are stored verbatim on the users table. Agents and admins form
// the "staff" class for ticket visibility; user management is admin only.
const (
	RoleEmployee = "employee"
	RoleAgent    = "agent"
	RoleAdmin    = "admin"
)

func IsValidRole(role string) bool {
	return role == RoleEmployee || role == RoleAgent || role == RoleAdmin
}

type ServiceAPI interface {
	Authenticate(dto LoginDTO) (AuthTokens, error)
	RefreshTokens(refreshToken string) (AuthTokens, error)
	ValidateAccessToken(tokenString string) (*Claims, error)
	GetSessionUser(userID int64) (*SessionUser, error)
	HashPassword(password string) (string, error)
}

type RepositoryAPI interface {
	GetCredentialsByEmail(email string) (passwordHash string, userID int64, err error)
	GetSessionUser(userID int64) (*SessionUser, error)
}

type TokenGeneratorAPI interface {
	GenerateAccessToken(userID int64, email, role string) (token string, err error)
	GenerateRefreshToken(userID int64, email, role string) (token string, err error)
	ValidateToken(tokenString string) (*Claims, error)
}

// SessionUser is the resolved caller identity passed explicitly into every
// operation. It is placed on the request context by the auth middleware and
// never read from any global.
type SessionUser struct {
	ID       int64  `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
}

func (u *SessionUser) IsStaff() bool {
	return u.Role == RoleAgent || u.Role == RoleAdmin
}

func (u *SessionUser) IsAdmin() bool {
	return u.Role == RoleAdmin
}

type AuthTokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type Claims struct {
	UserID int64  `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

type JWTTokenGenerator struct {
	AccessTokenSecret  []byte
	RefreshTokenSecret []byte
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration
}

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token expired")
)

type ctxKey string

const ContextUserKey ctxKey = "user"

func UserFromContext(ctx context.Context) (*SessionUser, bool) {
	u, ok := ctx.Value(ContextUserKey).(*SessionUser)
	return u, ok
}

func ContextWithUser(ctx context.Context, u *SessionUser) context.Context {
	return context.WithValue(ctx, ContextUserKey, u)
}

func VerifyPassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

func HashPassword(password string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
