package application

import (
	"context"
	"errors"
	"time"

	"github.com/camwatch/backend/internal/domain"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token expired")
)

const tokenIssuer = "camwatch"

// AuthService handles authentication business logic
type AuthService struct {
	userRepo          domain.UserRepository
	roles             *RoleQueries
	source            *RoleSource
	jwtSecret         []byte
	tokenExpiration   time.Duration
	refreshExpiration time.Duration
}

// TokenPair represents access and refresh tokens
type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Claims represents JWT claims. Role is the role at issue time; handlers
// resolve the live role through the role source.
type Claims struct {
	UserID uuid.UUID   `json:"user_id"`
	Email  string      `json:"email"`
	Role   domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// Principal converts the claims into the acting principal
func (c *Claims) Principal(token string) domain.Principal {
	return domain.Principal{UserID: c.UserID, Email: c.Email, Role: c.Role, Token: token}
}

// NewAuthService creates a new auth service
func NewAuthService(userRepo domain.UserRepository, roles *RoleQueries, source *RoleSource, jwtSecret string, tokenExpHours, refreshExpHours int) *AuthService {
	return &AuthService{
		userRepo:          userRepo,
		roles:             roles,
		source:            source,
		jwtSecret:         []byte(jwtSecret),
		tokenExpiration:   time.Duration(tokenExpHours) * time.Hour,
		refreshExpiration: time.Duration(refreshExpHours) * time.Hour,
	}
}

// Login authenticates a user and returns tokens
func (s *AuthService) Login(ctx context.Context, email, password string) (*TokenPair, error) {
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	role, err := s.roles.FetchRole(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	user.Role = role

	return s.generateTokenPair(user)
}

// RefreshToken validates refresh token and returns new token pair
func (s *AuthService) RefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.ValidateToken(refreshToken)
	if err != nil {
		return nil, err
	}

	user, err := s.userRepo.GetByID(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}

	role, err := s.roles.FetchRole(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	user.Role = role

	return s.generateTokenPair(user)
}

// ValidateToken validates a JWT token
func (s *AuthService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.jwtSecret, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// GetCurrentUser retrieves the user for a principal with the live role
func (s *AuthService) GetCurrentUser(ctx context.Context, principal domain.Principal) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, principal.UserID)
	if err != nil {
		return nil, err
	}

	role, err := s.source.ResolveRole(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	user.Role = role

	return user, nil
}

// CreateUser creates a new user with hashed password and its role record
func (s *AuthService) CreateUser(ctx context.Context, email, password, name string, role domain.Role) (*domain.User, error) {
	if !role.Valid() {
		return nil, domain.ErrInvalidRole
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := domain.NewUser(email, name, role)
	user.PasswordHash = string(hash)

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	if err := s.roles.InsertNewRole(ctx, user.ID, role); err != nil {
		return nil, err
	}

	return user, nil
}

// generateTokenPair creates access and refresh tokens
func (s *AuthService) generateTokenPair(user *domain.User) (*TokenPair, error) {
	now := time.Now()
	expiresAt := now.Add(s.tokenExpiration)

	accessToken, err := s.sign(user, now, expiresAt)
	if err != nil {
		return nil, err
	}

	refreshToken, err := s.sign(user, now, now.Add(s.refreshExpiration))
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *AuthService) sign(user *domain.User, now, expiresAt time.Time) (string, error) {
	claims := &Claims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
			Subject:   user.ID.String(),
			ID:        uuid.NewString(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
}
