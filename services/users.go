package services

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"Gin_postgres_tool_loans/models"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Same instance gin's binding uses underneath; here for field-level checks
// the struct tags cannot express.
var validate = validator.New()

const msgEmailTaken = "a user with that email already exists"

type UserRepository interface {
	FindUsers(ctx context.Context, f UserFilter) ([]models.User, error)
	FindUserByID(ctx context.Context, id uint) (*models.User, error)
	// FindUserByEmail matches case-insensitively, skipping excludeID when > 0.
	FindUserByEmail(ctx context.Context, email string, excludeID uint) (*models.User, error)
	InsertUser(ctx context.Context, u *models.User) error
	UpdateUser(ctx context.Context, id uint, updates map[string]any) (*models.User, error)
	DeleteUser(ctx context.Context, id uint) error
}

type UserFilter struct {
	Email  string // exact match, case-insensitive
	RoleID uint
}

func ParseUserFilter(email, roleID string) (UserFilter, error) {
	var f UserFilter
	var details []string

	if email != "" {
		if err := validate.Var(email, "email,max=150"); err != nil {
			details = append(details, "email: must be a valid email address")
		} else {
			f.Email = strings.TrimSpace(email)
		}
	}
	if roleID != "" {
		n, err := strconv.ParseUint(roleID, 10, 32)
		if err != nil || n == 0 {
			details = append(details, "role_id: must be a positive integer")
		} else {
			f.RoleID = uint(n)
		}
	}

	if len(details) > 0 {
		return UserFilter{}, NewValidation(details)
	}
	return f, nil
}

type UserCreateInput struct {
	Name      string  `json:"name"`
	Age       *int    `json:"age"`
	Phone     string  `json:"phone"`
	Address   string  `json:"address"`
	Email     string  `json:"email"`
	Password  string  `json:"password"`
	RoleID    int64   `json:"role_id"`
	AvatarURL *string `json:"avatar_url"`
}

func (in *UserCreateInput) validate() []string {
	var details []string
	if n := len(strings.TrimSpace(in.Name)); n < 2 || n > 100 {
		details = append(details, "name: must be between 2 and 100 characters")
	}
	if in.Age == nil || *in.Age < 0 || *in.Age > 120 {
		details = append(details, "age: must be between 0 and 120")
	}
	if n := len(strings.TrimSpace(in.Phone)); n < 7 || n > 20 {
		details = append(details, "phone: must be between 7 and 20 characters")
	}
	if n := len(strings.TrimSpace(in.Address)); n < 5 || n > 255 {
		details = append(details, "address: must be between 5 and 255 characters")
	}
	if err := validate.Var(in.Email, "required,email,max=150"); err != nil {
		details = append(details, "email: must be a valid email address")
	}
	if n := len(in.Password); n < 6 || n > 255 {
		details = append(details, "password: must be between 6 and 255 characters")
	}
	if in.RoleID <= 0 {
		details = append(details, "role_id: must be a positive integer")
	}
	if in.AvatarURL != nil {
		if err := validate.Var(*in.AvatarURL, "url,max=500"); err != nil {
			details = append(details, "avatar_url: must be a valid URL")
		}
	}
	return details
}

// UserPatch allows partial edits; only avatar_url may be nulled out.
type UserPatch struct {
	Name      models.Optional[string] `json:"name"`
	Age       models.Optional[int]    `json:"age"`
	Phone     models.Optional[string] `json:"phone"`
	Address   models.Optional[string] `json:"address"`
	Email     models.Optional[string] `json:"email"`
	Password  models.Optional[string] `json:"password"`
	RoleID    models.Optional[int64]  `json:"role_id"`
	AvatarURL models.Optional[string] `json:"avatar_url"`
}

func (p *UserPatch) validate() []string {
	var details []string
	if p.Name.Set {
		if n := len(strings.TrimSpace(p.Name.Value)); !p.Name.Valid || n < 2 || n > 100 {
			details = append(details, "name: must be between 2 and 100 characters")
		}
	}
	if p.Age.Set && (!p.Age.Valid || p.Age.Value < 0 || p.Age.Value > 120) {
		details = append(details, "age: must be between 0 and 120")
	}
	if p.Phone.Set {
		if n := len(strings.TrimSpace(p.Phone.Value)); !p.Phone.Valid || n < 7 || n > 20 {
			details = append(details, "phone: must be between 7 and 20 characters")
		}
	}
	if p.Address.Set {
		if n := len(strings.TrimSpace(p.Address.Value)); !p.Address.Valid || n < 5 || n > 255 {
			details = append(details, "address: must be between 5 and 255 characters")
		}
	}
	if p.Email.Set {
		if !p.Email.Valid || validate.Var(p.Email.Value, "email,max=150") != nil {
			details = append(details, "email: must be a valid email address")
		}
	}
	if p.Password.Set {
		if n := len(p.Password.Value); !p.Password.Valid || n < 6 || n > 255 {
			details = append(details, "password: must be between 6 and 255 characters")
		}
	}
	if p.RoleID.Set && (!p.RoleID.Valid || p.RoleID.Value <= 0) {
		details = append(details, "role_id: must be a positive integer")
	}
	if p.AvatarURL.Set && p.AvatarURL.Valid {
		if err := validate.Var(p.AvatarURL.Value, "url,max=500"); err != nil {
			details = append(details, "avatar_url: must be a valid URL")
		}
	}
	return details
}

type UserService struct {
	repo UserRepository
	log  zerolog.Logger
}

func NewUserService(repo UserRepository, log zerolog.Logger) *UserService {
	return &UserService{repo: repo, log: log}
}

func (s *UserService) List(ctx context.Context, f UserFilter) ([]models.User, error) {
	users, err := s.repo.FindUsers(ctx, f)
	if err != nil {
		return nil, wrap(err)
	}
	return users, nil
}

func (s *UserService) Get(ctx context.Context, id uint) (*models.User, error) {
	u, err := s.repo.FindUserByID(ctx, id)
	if err != nil {
		return nil, wrap(err)
	}
	if u == nil {
		return nil, NewNotFound("user")
	}
	return u, nil
}

func (s *UserService) Create(ctx context.Context, in UserCreateInput) (*models.User, error) {
	if details := in.validate(); len(details) > 0 {
		return nil, NewValidation(details)
	}

	email := strings.ToLower(strings.TrimSpace(in.Email))
	if existing, err := s.repo.FindUserByEmail(ctx, email, 0); err != nil {
		return nil, wrap(err)
	} else if existing != nil {
		return nil, NewConflict(msgEmailTaken)
	}

	// Never store the plaintext.
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, wrap(err)
	}

	u := &models.User{
		Name:         strings.TrimSpace(in.Name),
		Age:          *in.Age,
		Phone:        strings.TrimSpace(in.Phone),
		Address:      strings.TrimSpace(in.Address),
		Email:        email,
		PasswordHash: string(hash),
		RoleID:       uint(in.RoleID),
		AvatarURL:    in.AvatarURL,
	}
	if err := s.repo.InsertUser(ctx, u); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, NewConflict(msgEmailTaken)
		}
		return nil, wrap(err)
	}

	s.log.Info().Uint("user_id", u.ID).Msg("user created")
	return u, nil
}

func (s *UserService) Update(ctx context.Context, id uint, p UserPatch) (*models.User, error) {
	existing, err := s.repo.FindUserByID(ctx, id)
	if err != nil {
		return nil, wrap(err)
	}
	if existing == nil {
		return nil, NewNotFound("user")
	}

	if details := p.validate(); len(details) > 0 {
		return nil, NewValidation(details)
	}

	updates := map[string]any{}
	if p.Name.Set {
		updates["name"] = strings.TrimSpace(p.Name.Value)
	}
	if p.Age.Set {
		updates["age"] = p.Age.Value
	}
	if p.Phone.Set {
		updates["phone"] = strings.TrimSpace(p.Phone.Value)
	}
	if p.Address.Set {
		updates["address"] = strings.TrimSpace(p.Address.Value)
	}
	if p.Email.Set {
		email := strings.ToLower(strings.TrimSpace(p.Email.Value))
		// Duplicate check only when the email actually changes.
		if email != strings.ToLower(existing.Email) {
			other, err := s.repo.FindUserByEmail(ctx, email, id)
			if err != nil {
				return nil, wrap(err)
			}
			if other != nil {
				return nil, NewConflict(msgEmailTaken)
			}
		}
		updates["email"] = email
	}
	if p.Password.Set {
		hash, err := bcrypt.GenerateFromPassword([]byte(p.Password.Value), bcrypt.DefaultCost)
		if err != nil {
			return nil, wrap(err)
		}
		updates["password_hash"] = string(hash)
	}
	if p.RoleID.Set {
		updates["role_id"] = uint(p.RoleID.Value)
	}
	if p.AvatarURL.Set {
		updates["avatar_url"] = p.AvatarURL.Ptr()
	}

	u, err := s.repo.UpdateUser(ctx, id, updates)
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, NewConflict(msgEmailTaken)
		}
		return nil, wrap(err)
	}
	return u, nil
}

func (s *UserService) Remove(ctx context.Context, id uint) error {
	existing, err := s.repo.FindUserByID(ctx, id)
	if err != nil {
		return wrap(err)
	}
	if existing == nil {
		return NewNotFound("user")
	}
	if err := s.repo.DeleteUser(ctx, id); err != nil {
		return wrap(err)
	}
	s.log.Info().Uint("user_id", id).Msg("user deleted")
	return nil
}
