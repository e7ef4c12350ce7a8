package repositories

import (
	"github.com/anonto42/apollo/backend/internal/models"
	"gorm.io/gorm"
)

// FollowRepository defines the interface for follow data operations.
// Users are identified by their Firebase UID.
type FollowRepository interface {
	CreateFollow(follow *models.Follow) error
	DeleteFollow(followerUID, followingUID string) error
	IsFollowing(followerUID, followingUID string) (bool, error)
	GetFollowing(userUID string) ([]models.Follow, error)
	GetFollowersCount(userUID string) (int64, error)
	GetFollowingUIDs(userUID string) ([]string, error)
}

// PostgresFollowRepository implements FollowRepository for PostgreSQL
type PostgresFollowRepository struct {
	db *gorm.DB
}

// NewPostgresFollowRepository creates a new PostgresFollowRepository
func NewPostgresFollowRepository(db *gorm.DB) *PostgresFollowRepository {
	return &PostgresFollowRepository{db: db}
}

func (r *PostgresFollowRepository) CreateFollow(follow *models.Follow) error {
	return translate(r.db.Create(follow).Error)
}

func (r *PostgresFollowRepository) DeleteFollow(followerUID, followingUID string) error {
	res := r.db.Where("follower_uid = ? AND following_uid = ?", followerUID, followingUID).Delete(&models.Follow{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresFollowRepository) IsFollowing(followerUID, followingUID string) (bool, error) {
	var count int64
	if err := r.db.Model(&models.Follow{}).Where("follower_uid = ? AND following_uid = ?", followerUID, followingUID).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *PostgresFollowRepository) GetFollowing(userUID string) ([]models.Follow, error) {
	var follows []models.Follow
	err := r.db.Where("follower_uid = ?", userUID).Order("created_at DESC").Find(&follows).Error
	return follows, err
}

func (r *PostgresFollowRepository) GetFollowersCount(userUID string) (int64, error) {
	var count int64
	err := r.db.Model(&models.Follow{}).Where("following_uid = ?", userUID).Count(&count).Error
	return count, err
}

func (r *PostgresFollowRepository) GetFollowingUIDs(userUID string) ([]string, error) {
	var uids []string
	err := r.db.Model(&models.Follow{}).Where("follower_uid = ?", userUID).Pluck("following_uid", &uids).Error
	return uids, err
}
