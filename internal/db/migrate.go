package db

import (
	"fmt"

	"github.com/zulandar/taskyard/internal/config"
	"github.com/zulandar/taskyard/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AllModels returns every GORM model for migration.
func AllModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Team{},
		&models.TeamMember{},
		&models.Tag{},
		&models.Task{},
		&models.TaskDependency{},
		&models.TaskAssignment{},
	}
}

// AutoMigrate creates or updates all tables, including the task_tags join table.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}

// SeedCounts reports how many rows Seed wrote.
type SeedCounts struct {
	Users   int
	Teams   int
	Members int
	Tags    int
}

// Seed upserts users, teams, memberships and tags from configuration.
func Seed(db *gorm.DB, seed config.SeedConfig) (SeedCounts, error) {
	var counts SeedCounts
	err := db.Transaction(func(tx *gorm.DB) error {
		for _, u := range seed.Users {
			user := models.User{ID: u.ID, Username: u.Username, Email: seedEmail(u), Role: u.Role}
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "id"}},
				DoUpdates: clause.AssignmentColumns([]string{"username", "email", "role"}),
			}).Create(&user).Error; err != nil {
				return fmt.Errorf("db: seed user %q: %w", u.Username, err)
			}
			counts.Users++
		}

		for _, t := range seed.Teams {
			team := models.Team{ID: t.ID, Name: t.Name, CreatedBy: t.CreatedBy}
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "id"}},
				DoUpdates: clause.AssignmentColumns([]string{"name", "created_by"}),
			}).Create(&team).Error; err != nil {
				return fmt.Errorf("db: seed team %q: %w", t.Name, err)
			}
			counts.Teams++

			for _, m := range t.Members {
				member := models.TeamMember{
					ID:       memberID(t.ID, m.UserID),
					TeamID:   t.ID,
					UserID:   m.UserID,
					Role:     m.Role,
					IsActive: true,
				}
				if err := tx.Clauses(clause.OnConflict{
					Columns:   []clause.Column{{Name: "team_id"}, {Name: "user_id"}},
					DoUpdates: clause.AssignmentColumns([]string{"role", "is_active"}),
				}).Create(&member).Error; err != nil {
					return fmt.Errorf("db: seed member %s of %q: %w", m.UserID, t.Name, err)
				}
				counts.Members++
			}

			for _, tg := range t.Tags {
				tag := models.Tag{ID: tg.ID, Name: tg.Name, Color: tg.Color, TeamID: t.ID, CreatedBy: t.CreatedBy}
				if err := tx.Clauses(clause.OnConflict{
					Columns:   []clause.Column{{Name: "id"}},
					DoUpdates: clause.AssignmentColumns([]string{"name", "color"}),
				}).Create(&tag).Error; err != nil {
					return fmt.Errorf("db: seed tag %q of %q: %w", tg.Name, t.Name, err)
				}
				counts.Tags++
			}
		}
		return nil
	})
	return counts, err
}

// seedEmail defaults the email so the unique index never sees duplicate blanks.
func seedEmail(u config.SeedUser) string {
	if u.Email != "" {
		return u.Email
	}
	return u.Username + "@taskyard.local"
}

// memberID derives a stable membership id so repeated seeds hit the same row.
func memberID(teamID, userID string) string {
	return uuidFrom(teamID + "/" + userID)
}
