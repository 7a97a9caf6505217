package services

import (
	"errors"
	"fmt"

	"github.com/mazeltote/mazeltote/app/models"
	"github.com/mazeltote/mazeltote/app/repositories"
	"github.com/mazeltote/mazeltote/pkg/auth"
	"gorm.io/gorm"
)

var (
	ErrEmailTaken         = errors.New("email is already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// TokenPair is what a successful register/login returns.
type TokenPair struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	User         models.User `json:"user"`
}

// AuthService registers accounts and issues JWTs.
type AuthService struct {
	users *repositories.UserRepository
}

func NewAuthService() *AuthService {
	return &AuthService{users: repositories.NewUserRepository()}
}

// Register creates a storefront account. New accounts always get the user
// role; admins are promoted by the seeder or by hand.
func (s *AuthService) Register(name, email, password string) (TokenPair, error) {
	if _, err := s.users.FindByEmail(email); err == nil {
		return TokenPair{}, ErrEmailTaken
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return TokenPair{}, fmt.Errorf("auth: lookup email: %w", err)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return TokenPair{}, fmt.Errorf("auth: hash password: %w", err)
	}

	user := models.User{Name: name, Email: email, Password: hash, Role: "user"}
	if err := s.users.Create(&user); err != nil {
		return TokenPair{}, fmt.Errorf("auth: create user: %w", err)
	}

	return s.issue(user)
}

// Login verifies credentials and issues a fresh token pair.
func (s *AuthService) Login(email, password string) (TokenPair, error) {
	user, err := s.users.FindByEmail(email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return TokenPair{}, ErrInvalidCredentials
		}
		return TokenPair{}, fmt.Errorf("auth: lookup email: %w", err)
	}

	if !auth.CheckPassword(user.Password, password) {
		return TokenPair{}, ErrInvalidCredentials
	}

	return s.issue(user)
}

func (s *AuthService) issue(user models.User) (TokenPair, error) {
	access, err := auth.GenerateToken(user.ID, user.Role)
	if err != nil {
		return TokenPair{}, fmt.Errorf("auth: sign token: %w", err)
	}
	refresh, err := auth.GenerateRefreshToken(user.ID, user.Role)
	if err != nil {
		return TokenPair{}, fmt.Errorf("auth: sign refresh token: %w", err)
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh, User: user}, nil
}
