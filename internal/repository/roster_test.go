package repository

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockedby/teamsheet/internal/models"
)

func TestRosterRepository_FindPlayer_ScopedToGroup(t *testing.T) {
	db := newTestDB(t)
	repo := NewRosterRepository(db)
	ctx := context.Background()
	group := seedGroup(t, db)
	other := seedGroup(t, db)

	p := models.Player{ID: uuid.New(), GroupID: group.ID, FirstName: stringPtr("Ann"), LastName: stringPtr("Lee"), Email: stringPtr("ann@club.com")}
	require.NoError(t, db.Create(&p).Error)

	found, err := repo.FindPlayer(ctx, p.ID, group.ID)
	require.NoError(t, err)
	require.NotNil(t, found.FirstName)
	assert.Equal(t, "Ann", *found.FirstName)

	_, err = repo.FindPlayer(ctx, p.ID, other.ID)
	assert.ErrorIs(t, err, ErrNotFound, "player from another group must not resolve")
}

func TestRosterRepository_FindUser(t *testing.T) {
	db := newTestDB(t)
	repo := NewRosterRepository(db)
	ctx := context.Background()

	u := models.User{ID: uuid.New(), FirstName: stringPtr("Sam"), LastName: stringPtr("Ortiz"), Email: "sam@club.com"}
	require.NoError(t, db.Create(&u).Error)

	found, err := repo.FindUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "sam@club.com", found.Email)

	_, err = repo.FindUser(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRosterRepository_FindPlayer_NullNames(t *testing.T) {
	db := newTestDB(t)
	repo := NewRosterRepository(db)
	group := seedGroup(t, db)

	p := models.Player{ID: uuid.New(), GroupID: group.ID, Email: stringPtr("anon@club.com")}
	require.NoError(t, db.Create(&p).Error)

	found, err := repo.FindPlayer(context.Background(), p.ID, group.ID)
	require.NoError(t, err)
	assert.Nil(t, found.FirstName, "NULL column reads back as nil")
	assert.Nil(t, found.LastName)
}

func TestRosterRepository_GetGroup(t *testing.T) {
	db := newTestDB(t)
	repo := NewRosterRepository(db)
	group := seedGroup(t, db)

	g, err := repo.GetGroup(context.Background(), group.ID)
	require.NoError(t, err)
	assert.Equal(t, group.Name, g.Name)

	_, err = repo.GetGroup(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRosterRepository_ListPlayersWithEmail(t *testing.T) {
	db := newTestDB(t)
	repo := NewRosterRepository(db)
	group := seedGroup(t, db)

	players := []models.Player{
		{ID: uuid.New(), GroupID: group.ID, FirstName: stringPtr("Zed"), LastName: stringPtr("Brown"), Email: stringPtr("zed@club.com")},
		{ID: uuid.New(), GroupID: group.ID, FirstName: stringPtr("Ann"), LastName: stringPtr("Adams"), Email: stringPtr("ann@club.com")},
		{ID: uuid.New(), GroupID: group.ID, FirstName: stringPtr("No"), LastName: stringPtr("Email")},
		{ID: uuid.New(), GroupID: group.ID, FirstName: stringPtr("Blank"), LastName: stringPtr("Email"), Email: stringPtr("")},
	}
	require.NoError(t, db.Create(&players).Error)

	got, err := repo.ListPlayersWithEmail(context.Background(), group.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Adams", *got[0].LastName)
	assert.Equal(t, "Brown", *got[1].LastName)
}

func TestRosterRepository_ListEvaluators(t *testing.T) {
	db := newTestDB(t)
	repo := NewRosterRepository(db)
	group := seedGroup(t, db)

	eval := models.User{ID: uuid.New(), FirstName: stringPtr("Eve"), LastName: stringPtr("Val"), Email: "eve@club.com"}
	coach := models.User{ID: uuid.New(), FirstName: stringPtr("Cody"), LastName: stringPtr("Coach"), Email: "cody@club.com"}
	require.NoError(t, db.Create(&[]models.User{eval, coach}).Error)
	require.NoError(t, db.Create(&[]models.GroupMember{
		{GroupID: group.ID, UserID: eval.ID, Role: models.MemberRoleEvaluator},
		{GroupID: group.ID, UserID: coach.ID, Role: models.MemberRoleCoach},
	}).Error)

	got, err := repo.ListEvaluators(context.Background(), group.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, eval.ID, got[0].ID)
}
