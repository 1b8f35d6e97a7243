package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/blockedby/teamsheet/internal/models"
)

// RosterRepository reads groups, players and users. The messaging core never
// writes these tables.
type RosterRepository struct {
	db *gorm.DB
}

// NewRosterRepository creates a new roster repository
func NewRosterRepository(db *gorm.DB) *RosterRepository {
	return &RosterRepository{db: db}
}

// GetGroup returns a group by ID
func (r *RosterRepository) GetGroup(ctx context.Context, id uuid.UUID) (*models.Group, error) {
	var g models.Group
	if err := r.db.WithContext(ctx).First(&g, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("get group: %w", translate(err))
	}
	return &g, nil
}

// FindPlayer returns a player scoped to a group
func (r *RosterRepository) FindPlayer(ctx context.Context, id, groupID uuid.UUID) (*models.Player, error) {
	var p models.Player
	err := r.db.WithContext(ctx).
		Where("id = ? AND group_id = ?", id, groupID).
		First(&p).Error
	if err != nil {
		return nil, fmt.Errorf("find player: %w", translate(err))
	}
	return &p, nil
}

// FindUser returns a user by ID
func (r *RosterRepository) FindUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var u models.User
	if err := r.db.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("find user: %w", translate(err))
	}
	return &u, nil
}

// ListPlayersWithEmail returns the group's players that have an email address,
// ordered by last and first name.
func (r *RosterRepository) ListPlayersWithEmail(ctx context.Context, groupID uuid.UUID) ([]models.Player, error) {
	var players []models.Player
	err := r.db.WithContext(ctx).
		Where("group_id = ? AND email IS NOT NULL AND email <> ''", groupID).
		Order("last_name ASC, first_name ASC").
		Find(&players).Error
	if err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}
	return players, nil
}

// ListEvaluators returns the users holding the evaluator role in a group.
func (r *RosterRepository) ListEvaluators(ctx context.Context, groupID uuid.UUID) ([]models.User, error) {
	var users []models.User
	err := r.db.WithContext(ctx).
		Joins("JOIN group_members ON group_members.user_id = users.id").
		Where("group_members.group_id = ? AND group_members.role = ?", groupID, models.MemberRoleEvaluator).
		Order("users.last_name ASC, users.first_name ASC").
		Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("list evaluators: %w", err)
	}
	return users, nil
}
