package models

import "time"

// Follow is a one-way follow relationship between two Firebase users
type Follow struct {
	ID            uint      `json:"id" gorm:"primaryKey"`
	FollowerUID   string    `json:"follower_uid" gorm:"size:128;index;uniqueIndex:idx_follower_following"`
	FollowingUID  string    `json:"following_uid" gorm:"size:128;index;uniqueIndex:idx_follower_following"`
	FollowingName string    `json:"following_name"`
	CreatedAt     time.Time `json:"created_at"`
}
