package users

import (
	"context"
	"errors"
	"strings"

	"lexportal-backend/internal/models"
	"lexportal-backend/internal/pkg/validation"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailTaken   = errors.New("a user with this email already exists")
	ErrInvalidInput = errors.New("invalid user input")
)

type Service struct {
	DB *gorm.DB
}

// CreateUserInput describes an account created by admin staff (clients
// self-serve through the separate signup flow, out of scope here).
type CreateUserInput struct {
	FirstName   string
	LastName    string
	Email       string
	PhoneNumber *string
	Password    string
	Role        string
}

func (s *Service) CreateUser(ctx context.Context, in CreateUserInput) (*models.User, error) {
	in.Email = strings.TrimSpace(strings.ToLower(in.Email))
	if !validation.IsValidEmail(in.Email) || !validation.IsValidName(in.FirstName) || !validation.IsValidName(in.LastName) {
		return nil, ErrInvalidInput
	}
	if !validation.IsValidPassword(in.Password) {
		return nil, ErrInvalidInput
	}
	role := in.Role
	if role == "" {
		role = models.RoleClient
	}
	if role != models.RoleGuest && role != models.RoleClient && role != models.RoleAdmin {
		return nil, ErrInvalidInput
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	user := &models.User{
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Email:        in.Email,
		PhoneNumber:  in.PhoneNumber,
		PasswordHash: string(hash),
		Role:         role,
	}
	if err := s.DB.WithContext(ctx).Create(user).Error; err != nil {
		if strings.Contains(err.Error(), "duplicate key") || strings.Contains(err.Error(), "UNIQUE constraint failed") || errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	return user, nil
}

func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var u models.User
	if err := s.DB.WithContext(ctx).First(&u, "user_id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (s *Service) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := s.DB.WithContext(ctx).Where("email = ?", strings.ToLower(email)).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}
