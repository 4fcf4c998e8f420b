package repositories

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anonto42/shelflog/backend/internal/feed"
	"github.com/anonto42/shelflog/backend/internal/models"
)

func TestFriendshipRepository_AcceptedFriendIDs(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresFriendshipRepository(db)

	mock.ExpectQuery(`SELECT receiver_id FROM friend_requests WHERE sender_id = \$1 AND status = \$2 AND deleted_at IS NULL\s+UNION\s+SELECT sender_id`).
		WithArgs(1, "accepted", 1, "accepted").
		WillReturnRows(sqlmock.NewRows([]string{"receiver_id"}).AddRow(2).AddRow(5))

	ids, err := repo.AcceptedFriendIDs(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, []uint{2, 5}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFriendshipRepository_AreFriends(t *testing.T) {
	tests := []struct {
		name string
		rows *sqlmock.Rows
		want bool
	}{
		{"accepted", sqlmock.NewRows([]string{"id", "sender_id", "receiver_id", "status"}).AddRow(1, 2, 1, "accepted"), true},
		{"pending", sqlmock.NewRows([]string{"id", "sender_id", "receiver_id", "status"}).AddRow(1, 1, 2, "pending"), false},
		{"no edge", sqlmock.NewRows([]string{"id"}), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMockDB(t)
			repo := NewPostgresFriendshipRepository(db)

			mock.ExpectQuery(`FROM "friend_requests" WHERE \(\(sender_id = \$1 AND receiver_id = \$2\) OR \(sender_id = \$3 AND receiver_id = \$4\)\) AND "friend_requests"."deleted_at" IS NULL`).
				WillReturnRows(tt.rows)

			ok, err := repo.AreFriends(context.Background(), 1, 2)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestFriendshipRepository_AreFriendsWithSelf(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresFriendshipRepository(db)

	ok, err := repo.AreFriends(context.Background(), 3, 3)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFriendshipRepository_SendFriendRequest(t *testing.T) {
	t.Run("existing edge", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewPostgresFriendshipRepository(db)

		mock.ExpectQuery(`FROM "friend_requests"`).
			WillReturnRows(sqlmock.NewRows([]string{"id", "sender_id", "receiver_id", "status"}).AddRow(4, 2, 1, "accepted"))

		err := repo.SendFriendRequest(context.Background(), &models.FriendRequest{SenderID: 1, ReceiverID: 2})
		assert.Equal(t, feed.CodeValidation, feed.CodeOf(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("new edge", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewPostgresFriendshipRepository(db)

		mock.ExpectQuery(`FROM "friend_requests"`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))
		mock.ExpectQuery(`INSERT INTO "friend_requests"`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(9))

		req := &models.FriendRequest{SenderID: 1, ReceiverID: 2}
		require.NoError(t, repo.SendFriendRequest(context.Background(), req))
		assert.Equal(t, uint(9), req.ID)
		assert.Equal(t, models.FriendPending, req.Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestUserRepository_CompactUsers(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresUserRepository(db)

	mock.ExpectQuery(`SELECT "id","name","avatar_url" FROM "users" WHERE id IN \(\$1,\$2\) AND "users"."deleted_at" IS NULL`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "avatar_url"}).AddRow(1, "Ada", "a.png"))

	users, err := repo.CompactUsers(context.Background(), []uint{1, 2})
	require.NoError(t, err)
	assert.Equal(t, map[uint]models.UserCompact{1: {ID: 1, Name: "Ada", AvatarURL: "a.png"}}, users)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_GetUserByFirebaseUIDNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresUserRepository(db)

	mock.ExpectQuery(`FROM "users" WHERE firebase_uid = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.GetUserByFirebaseUID(context.Background(), "uid-1")
	assert.True(t, feed.IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}
