package postgres

import (
	"errors"
	"time"

	"github.com/derheim/helpdesk/internal"
	"github.com/derheim/helpdesk/internal/auth"
	"github.com/derheim/helpdesk/internal/user"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// UserRepository implements the user.Repository interface using GORM
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *gorm.DB) user.Repository {
	return &UserRepository{db: db}
}

// Create saves a new account. A unique violation on the email column is
// reported as internal.ErrEmailTaken.
func (r *UserRepository) Create(u *user.User) error {
	if err := r.db.Create(u).Error; err != nil {
		if isDuplicateEmail(err) {
			return internal.ErrEmailTaken
		}
		return err
	}
	return nil
}

// GetByID retrieves an account by its ID
func (r *UserRepository) GetByID(id int64) (*user.User, error) {
	var u user.User
	err := r.db.Where("id = ?", id).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

// GetAll retrieves every account, newest first
func (r *UserRepository) GetAll() ([]*user.User, error) {
	var users []*user.User
	err := r.db.Order("created_at DESC").Find(&users).Error
	return users, err
}

// GetAgents retrieves the accounts eligible for ticket assignment
func (r *UserRepository) GetAgents() ([]*user.Agent, error) {
	var agents []*user.Agent
	err := r.db.Model(&user.User{}).
		Select("id, full_name, email, role").
		Where("role IN ?", []string{auth.RoleAgent, auth.RoleAdmin}).
		Order("full_name ASC").
		Scan(&agents).Error
	return agents, err
}

// Update updates an existing account
func (r *UserRepository) Update(u *user.User) error {
	u.UpdatedAt = time.Now()
	if err := r.db.Save(u).Error; err != nil {
		if isDuplicateEmail(err) {
			return internal.ErrEmailTaken
		}
		return err
	}
	return nil
}

// Delete removes an account
func (r *UserRepository) Delete(id int64) error {
	return r.db.Delete(&user.User{}, id).Error
}

func isDuplicateEmail(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
