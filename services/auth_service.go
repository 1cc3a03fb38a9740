package services

import (
	"context"
	"errors"
	"net/http"

	"usercenter/apperror"
	"usercenter/models"
	"usercenter/repositories"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// TokenIssuer signs access tokens for authenticated users.
type TokenIssuer interface {
	GenerateToken(user *models.User) (string, error)
}

type LoginInput struct {
	Username string `json:"username" validate:"required" description:"Username for login"`
	Password string `json:"password" validate:"required" description:"Password for login"`
}

type LoginResponse struct {
	Token string `json:"token"`
}

type AuthService interface {
	Login(ctx context.Context, input *LoginInput) (*LoginResponse, error)
}

type authService struct {
	users  repositories.UserRepository
	tokens TokenIssuer
}

var _ AuthService = (*authService)(nil)

func NewAuthService(users repositories.UserRepository, tokens TokenIssuer) AuthService {
	return &authService{users: users, tokens: tokens}
}

// Login checks the credentials and issues a token. Unknown users and wrong
// passwords get the same answer.
func (s *authService) Login(ctx context.Context, input *LoginInput) (*LoginResponse, error) {
	user, err := s.users.FindByUsername(ctx, input.Username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.Unauthorized("invalid credentials")
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(input.Password)); err != nil {
		return nil, apperror.Unauthorized("invalid credentials")
	}

	token, err := s.tokens.GenerateToken(user)
	if err != nil {
		return nil, apperror.New(http.StatusInternalServerError, "could not generate token", err)
	}
	return &LoginResponse{Token: token}, nil
}
