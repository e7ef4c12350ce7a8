package repositories

import (
	"errors"

	"github.com/anonto42/apollo/backend/internal/models"
	"gorm.io/gorm"
)

// UserRepository defines the interface for user data operations
type UserRepository interface {
	CreateUser(user *models.User) error
	GetUserByID(id uint) (*models.User, error)
	GetUserByFirebaseUID(firebaseUID string) (*models.User, error)
	// GetUsers lists every profile except excludeUID
	GetUsers(excludeUID string) ([]models.User, error)
	UpdateUser(user *models.User) error
	SearchUsers(query, excludeUID string) ([]models.User, error)
	// SessionVersion returns the current session version of a profile
	SessionVersion(firebaseUID string) (uint, error)
	// RevokeSessions bumps the session version, invalidating every token issued before
	RevokeSessions(firebaseUID string) error
}

// PostgresUserRepository implements UserRepository for PostgreSQL
type PostgresUserRepository struct {
	db *gorm.DB
}

// NewPostgresUserRepository creates a new PostgresUserRepository
func NewPostgresUserRepository(db *gorm.DB) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

// CreateUser creates a new user in PostgreSQL
func (r *PostgresUserRepository) CreateUser(user *models.User) error {
	return translate(r.db.Create(user).Error)
}

// GetUserByID retrieves a user by ID from PostgreSQL
func (r *PostgresUserRepository) GetUserByID(id uint) (*models.User, error) {
	var user models.User
	if err := r.db.First(&user, id).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// GetUserByFirebaseUID retrieves a user by Firebase UID from PostgreSQL
func (r *PostgresUserRepository) GetUserByFirebaseUID(firebaseUID string) (*models.User, error) {
	var user models.User
	if err := r.db.Where("firebase_uid = ?", firebaseUID).First(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// GetUsers retrieves all users but one from PostgreSQL
func (r *PostgresUserRepository) GetUsers(excludeUID string) ([]models.User, error) {
	var users []models.User
	if err := r.db.Where("firebase_uid <> ?", excludeUID).Order("name").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// UpdateUser updates an existing user in PostgreSQL. The session version is
// left alone so a profile edit cannot undo a concurrent sign-out.
func (r *PostgresUserRepository) UpdateUser(user *models.User) error {
	return translate(r.db.Omit("session_version").Save(user).Error)
}

func (r *PostgresUserRepository) SessionVersion(firebaseUID string) (uint, error) {
	var user models.User
	err := r.db.Select("session_version").Where("firebase_uid = ?", firebaseUID).First(&user).Error
	if err != nil {
		return 0, translate(err)
	}
	return user.SessionVersion, nil
}

func (r *PostgresUserRepository) RevokeSessions(firebaseUID string) error {
	res := r.db.Model(&models.User{}).
		Where("firebase_uid = ?", firebaseUID).
		UpdateColumn("session_version", gorm.Expr("session_version + ?", 1))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SearchUsers searches for users by name or email
func (r *PostgresUserRepository) SearchUsers(query, excludeUID string) ([]models.User, error) {
	var users []models.User
	// Search by name or email (case-insensitive)
	err := r.db.
		Where("LOWER(name) LIKE LOWER(?) OR LOWER(email) LIKE LOWER(?)", "%"+query+"%", "%"+query+"%").
		Where("firebase_uid <> ?", excludeUID).
		Order("name").
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}

// translate maps gorm errors onto the package sentinels. The connection must
// be opened with TranslateError for duplicate keys to be recognised.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrAlreadyExists
	default:
		return err
	}
}
