package services

import (
	"context"
	"errors"
	"net/http"

	"usercenter/apperror"
	"usercenter/events"
	"usercenter/models"
	"usercenter/repositories"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// UserService is the mutation pipeline and query entry point for the user aggregate.
type UserService interface {
	ListUsers(ctx context.Context, query repositories.UserQuery) ([]models.User, error)
	GetUser(ctx context.Context, id uint) (*models.User, error)
	GetUserWithProfile(ctx context.Context, id uint) (*models.User, error)
	GetUserWithLogs(ctx context.Context, id uint) (*models.User, error)
	CreateUser(ctx context.Context, input *CreateUserInput) (*models.User, error)
	UpdateUser(ctx context.Context, id uint, input *UpdateUserInput) (*models.User, error)
	RemoveUser(ctx context.Context, id uint) (*models.User, error)
}

// --- Structs for Input ---
type ProfileInput struct {
	Gender  int    `json:"gender" validate:"min=0"`
	Photo   string `json:"photo" validate:"max=255"`
	Address string `json:"address" validate:"max=255"`
}

type CreateUserInput struct {
	Username string        `json:"username" validate:"required,max=191"`
	Password string        `json:"password" validate:"required,max=72"` // bcrypt reads at most 72 bytes
	Profile  *ProfileInput `json:"profile" validate:"omitempty"`
	Roles    []uint        `json:"roles"`
}

// ProfileUpdate fields are merged one by one over the stored profile.
type ProfileUpdate struct {
	Gender  *int    `json:"gender" validate:"omitempty,min=0"`
	Photo   *string `json:"photo" validate:"omitempty,max=255"`
	Address *string `json:"address" validate:"omitempty,max=255"`
}

// UpdateUserInput is a partial user. Nil fields keep their stored value;
// a non-nil Roles replaces the user's roles, an empty list removes them all.
type UpdateUserInput struct {
	Username *string        `json:"username" validate:"omitnil,min=1,max=191"`
	Password *string        `json:"password" validate:"omitnil,max=72"`
	Profile  *ProfileUpdate `json:"profile" validate:"omitempty"`
	Roles    *[]uint        `json:"roles"`
}

type userService struct {
	users     repositories.UserRepository
	roles     repositories.RoleRepository
	publisher events.Publisher
	logger    *zap.Logger
}

var _ UserService = (*userService)(nil)

// NewUserService creates a new UserService instance
func NewUserService(users repositories.UserRepository, roles repositories.RoleRepository, publisher events.Publisher, logger *zap.Logger) UserService {
	return &userService{
		users:     users,
		roles:     roles,
		publisher: publisher,
		logger:    logger.Named("user_service"),
	}
}

func (s *userService) ListUsers(ctx context.Context, query repositories.UserQuery) ([]models.User, error) {
	return s.users.FindAll(ctx, query)
}

func (s *userService) GetUser(ctx context.Context, id uint) (*models.User, error) {
	return s.findUser(ctx, id, models.RelationProfile, models.RelationRoles)
}

func (s *userService) GetUserWithProfile(ctx context.Context, id uint) (*models.User, error) {
	return s.findUser(ctx, id, models.RelationProfile)
}

func (s *userService) GetUserWithLogs(ctx context.Context, id uint) (*models.User, error) {
	return s.findUser(ctx, id, models.RelationLogs)
}

// CreateUser resolves the requested role ids, hashes the password and inserts
// the user with its profile. Role ids that match no role are dropped.
func (s *userService) CreateUser(ctx context.Context, input *CreateUserInput) (*models.User, error) {
	hashedPassword, err := hashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	user := models.User{
		Username: input.Username,
		Password: hashedPassword,
	}
	if input.Profile != nil {
		user.Profile = &models.Profile{
			Gender:  input.Profile.Gender,
			Photo:   input.Profile.Photo,
			Address: input.Profile.Address,
		}
	}
	if input.Roles != nil {
		if user.Roles, err = s.roles.FindByIDs(ctx, input.Roles); err != nil {
			return nil, err
		}
		if len(user.Roles) < len(input.Roles) {
			s.logger.Warn("Unknown role ids dropped",
				zap.Uints("requested", input.Roles),
				zap.Int("resolved", len(user.Roles)),
			)
		}
	}

	if err := s.users.Create(ctx, &user); err != nil {
		return nil, err
	}

	s.publish(ctx, events.UserCreated, &user)
	return &user, nil
}

// UpdateUser merges the present fields of input over the stored user, saves
// the whole aggregate and returns it as stored, with profile and roles.
func (s *userService) UpdateUser(ctx context.Context, id uint, input *UpdateUserInput) (*models.User, error) {
	user, err := s.findUser(ctx, id, models.RelationProfile)
	if err != nil {
		return nil, err
	}

	if input.Username != nil {
		user.Username = *input.Username
	}
	if input.Password != nil {
		if user.Password, err = hashPassword(*input.Password); err != nil {
			return nil, err
		}
	}
	if input.Profile != nil {
		if user.Profile == nil {
			user.Profile = &models.Profile{UserID: user.ID}
		}
		mergeProfile(user.Profile, input.Profile)
	}
	if input.Roles != nil {
		if user.Roles, err = s.roles.FindByIDs(ctx, *input.Roles); err != nil {
			return nil, err
		}
	}

	if err := s.users.Save(ctx, user); err != nil {
		return nil, err
	}
	return s.findUser(ctx, id, models.RelationProfile, models.RelationRoles)
}

// RemoveUser deletes the user and returns the state it had before removal.
func (s *userService) RemoveUser(ctx context.Context, id uint) (*models.User, error) {
	user, err := s.findUser(ctx, id, models.RelationProfile, models.RelationRoles)
	if err != nil {
		return nil, err
	}

	if err := s.users.Delete(ctx, user); err != nil {
		return nil, err
	}

	s.publish(ctx, events.UserRemoved, user)
	return user, nil
}

func (s *userService) findUser(ctx context.Context, id uint, relations ...string) (*models.User, error) {
	user, err := s.users.FindByID(ctx, id, relations...)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("user %d not found", id)
		}
		return nil, err
	}
	return user, nil
}

// publish notifies observers once the change is committed. Failures are only logged.
func (s *userService) publish(ctx context.Context, eventType string, user *models.User) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, events.NewUserEvent(eventType, user)); err != nil {
		s.logger.Warn("Failed to publish user event",
			zap.String("type", eventType),
			zap.Uint("user_id", user.ID),
			zap.Error(err),
		)
	}
}

func mergeProfile(dst *models.Profile, src *ProfileUpdate) {
	if src.Gender != nil {
		dst.Gender = *src.Gender
	}
	if src.Photo != nil {
		dst.Photo = *src.Photo
	}
	if src.Address != nil {
		dst.Address = *src.Address
	}
}

func hashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", apperror.BadRequest("password must be at most 72 bytes")
	}
	if err != nil {
		return "", apperror.New(http.StatusInternalServerError, "could not hash password", err)
	}
	return string(hashed), nil
}
