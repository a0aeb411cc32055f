package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/improvdb/improvdb-api/internal/entity"
	"github.com/improvdb/improvdb-api/internal/middleware"
	userDto "github.com/improvdb/improvdb-api/internal/modules/user/dto"
	userRepo "github.com/improvdb/improvdb-api/internal/modules/user/repository"
	"github.com/improvdb/improvdb-api/pkg/apperror"
)

type Service interface {
	Register(ctx context.Context, req userDto.RegisterRequest) (*userDto.AuthResponse, error)
	Login(ctx context.Context, req userDto.LoginRequest) (*userDto.AuthResponse, error)
	GetProfile(ctx context.Context, userID uuid.UUID) (*userDto.UserResponse, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, req userDto.UpdateProfileRequest) (*userDto.UserResponse, error)
}

type service struct {
	userRepo  userRepo.UserRepository
	jwtSecret string
	jwtExpiry time.Duration
}

func NewService(userRepo userRepo.UserRepository, jwtSecret string, jwtExpiry time.Duration) Service {
	return &service{
		userRepo:  userRepo,
		jwtSecret: jwtSecret,
		jwtExpiry: jwtExpiry,
	}
}

func (s *service) Register(ctx context.Context, req userDto.RegisterRequest) (*userDto.AuthResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	if _, err := s.userRepo.FindByEmail(ctx, email); err == nil {
		return nil, fmt.Errorf("email already registered: %w", apperror.ErrConflict)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &entity.User{
		Name:         req.Name,
		Email:        email,
		PasswordHash: string(hash),
		Role:         entity.RoleUser,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	return s.buildAuthResponse(user)
}

func (s *service) Login(ctx context.Context, req userDto.LoginRequest) (*userDto.AuthResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		// Same answer for unknown email and wrong password.
		return nil, fmt.Errorf("invalid credentials: %w", apperror.ErrUnauthorized)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, fmt.Errorf("invalid credentials: %w", apperror.ErrUnauthorized)
	}

	return s.buildAuthResponse(user)
}

func (s *service) GetProfile(ctx context.Context, userID uuid.UUID) (*userDto.UserResponse, error) {
	user, err := s.userRepo.FindByID(ctx, userID.String())
	if err != nil {
		return nil, fmt.Errorf("user not found: %w", apperror.ErrNotFound)
	}
	resp := buildUserResponse(user)
	return &resp, nil
}

func (s *service) UpdateProfile(ctx context.Context, userID uuid.UUID, req userDto.UpdateProfileRequest) (*userDto.UserResponse, error) {
	user, err := s.userRepo.FindByID(ctx, userID.String())
	if err != nil {
		return nil, fmt.Errorf("user not found: %w", apperror.ErrNotFound)
	}

	user.Name = strings.TrimSpace(req.Name)
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}

	resp := buildUserResponse(user)
	return &resp, nil
}

func (s *service) buildAuthResponse(user *entity.User) (*userDto.AuthResponse, error) {
	now := time.Now()
	claims := &middleware.Claims{
		Role: user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.jwtExpiry)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.jwtSecret))
	if err != nil {
		return nil, err
	}

	return &userDto.AuthResponse{
		Token: token,
		User:  buildUserResponse(user),
	}, nil
}

func buildUserResponse(user *entity.User) userDto.UserResponse {
	return userDto.UserResponse{
		ID:    user.ID.String(),
		Name:  user.Name,
		Email: user.Email,
		Role:  user.Role,
	}
}
