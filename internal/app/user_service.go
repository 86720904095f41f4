package app

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"library/internal/domain"
)

// UserService manages library members.
type UserService struct {
	store domain.Store
	log   *zap.Logger
}

// NewUserService creates a UserService on store.
func NewUserService(store domain.Store, log *zap.Logger) *UserService {
	if log == nil {
		log = zap.NewNop()
	}
	return &UserService{store: store, log: log.Named("users")}
}

// UserInput carries the writable fields of a user.
type UserInput struct {
	Name  string
	Email string
	Phone string
}

// normalize trims the fields and lowercases the email so uniqueness is
// case-insensitive.
func (in UserInput) normalize() (UserInput, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Phone = strings.TrimSpace(in.Phone)
	switch {
	case in.Name == "":
		return in, errors.Wrap(domain.ErrInvalid, "name is required")
	case in.Email == "":
		return in, errors.Wrap(domain.ErrInvalid, "email is required")
	case !strings.Contains(in.Email, "@"):
		return in, errors.Wrapf(domain.ErrInvalid, "email %q is not valid", in.Email)
	}
	return in, nil
}

// CreateUser registers a new user.
func (s *UserService) CreateUser(ctx context.Context, in UserInput) (*domain.User, error) {
	in, err := in.normalize()
	if err != nil {
		return nil, err
	}
	u := &domain.User{Name: in.Name, Email: in.Email, Phone: in.Phone}
	err = s.store.InTx(ctx, func(tx domain.Store) error {
		return tx.Users().Create(ctx, u)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("user created", zap.Int64("user_id", u.ID))
	return u, nil
}

// GetUser returns the user with the given id.
func (s *UserService) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	return s.store.Users().Get(ctx, id)
}

// ListUsers returns all users.
func (s *UserService) ListUsers(ctx context.Context) ([]domain.User, error) {
	return s.store.Users().List(ctx)
}

// UpdateUser replaces the writable fields of user id.
func (s *UserService) UpdateUser(ctx context.Context, id int64, in UserInput) (*domain.User, error) {
	in, err := in.normalize()
	if err != nil {
		return nil, err
	}
	var out *domain.User
	err = s.store.InTx(ctx, func(tx domain.Store) error {
		u, err := tx.Users().Get(ctx, id)
		if err != nil {
			return err
		}
		u.Name, u.Email, u.Phone = in.Name, in.Email, in.Phone
		if err := tx.Users().Update(ctx, u); err != nil {
			return err
		}
		out = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteUser removes a user that holds no reservations.
func (s *UserService) DeleteUser(ctx context.Context, id int64) error {
	return s.store.InTx(ctx, func(tx domain.Store) error {
		if _, err := tx.Users().Get(ctx, id); err != nil {
			return err
		}
		rs, err := tx.Reservations().List(ctx, domain.ReservationFilter{UserID: id})
		if err != nil {
			return err
		}
		if len(rs) > 0 {
			return errors.Wrapf(domain.ErrConflict, "user %d has %d reservations", id, len(rs))
		}
		if err := tx.Users().Delete(ctx, id); err != nil {
			return err
		}
		s.log.Info("user deleted", zap.Int64("user_id", id))
		return nil
	})
}
