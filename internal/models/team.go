package models

import "time"

// Team is the ownership scope for tasks and tags.
type Team struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	Name        string    `gorm:"size:100;not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	CreatedBy   string    `gorm:"size:36;not null" json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
}

// TeamMember records a user's membership in a team. Only active rows grant access.
type TeamMember struct {
	ID       string    `gorm:"primaryKey;size:36" json:"id"`
	TeamID   string    `gorm:"size:36;not null;uniqueIndex:idx_team_member" json:"team_id"`
	UserID   string    `gorm:"size:36;not null;uniqueIndex:idx_team_member;index" json:"user_id"`
	Role     string    `gorm:"size:16;default:member" json:"role"`
	JoinedAt time.Time `gorm:"autoCreateTime" json:"joined_at"`
	IsActive bool      `gorm:"not null" json:"is_active"`
}

// User is an identity known to the service.
type User struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Email     string    `gorm:"size:255;uniqueIndex" json:"email"`
	Username  string    `gorm:"size:64;uniqueIndex" json:"username"`
	Role      string    `gorm:"size:16;default:user" json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Tag labels tasks within a single team. Names are unique per team.
type Tag struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Name      string    `gorm:"size:50;not null;uniqueIndex:idx_team_tag" json:"name"`
	Color     string    `gorm:"size:7;default:#007bff" json:"color"`
	TeamID    string    `gorm:"size:36;not null;uniqueIndex:idx_team_tag" json:"team_id"`
	CreatedBy string    `gorm:"size:36;not null" json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}
