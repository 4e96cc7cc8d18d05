package db_test

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx/types"
	"github.com/stretchr/testify/assert"

	"castqueue/internal/db"
	"castqueue/internal/models"
	"castqueue/internal/test"
)

func TestListDuePostsQueryShape(t *testing.T) {
	_, mock := test.NewMockDB(t)
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	// Only SCHEDULED rows on integrated platforms, due at or before now,
	// oldest first, capped.
	mock.ExpectQuery(`SELECT \* FROM scheduled_posts\s+WHERE status = \$1 AND platform IN \(\$2, \$3\) AND scheduled_at <= \$4\s+ORDER BY scheduled_at ASC\s+LIMIT \$5`).
		WithArgs(db.StatusScheduled, "linkedin", "medium", now, 25).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	posts, err := db.ListDuePosts(now, []string{"linkedin", "medium"}, 25)

	assert.NoError(t, err)
	assert.Empty(t, posts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListDuePostsNoSchedulablePlatforms(t *testing.T) {
	_, mock := test.NewMockDB(t)

	posts, err := db.ListDuePosts(time.Now(), nil, 25)

	assert.NoError(t, err)
	assert.Nil(t, posts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkPublishedConditionalOnScheduled(t *testing.T) {
	_, mock := test.NewMockDB(t)

	mock.ExpectExec(`UPDATE scheduled_posts`).
		WithArgs(db.StatusPublished, "ext-1", "post-1", db.StatusScheduled).
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, db.MarkPublished("post-1", "ext-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkPublishedConflictWhenRowMoved(t *testing.T) {
	_, mock := test.NewMockDB(t)

	mock.ExpectExec(`UPDATE scheduled_posts`).
		WithArgs(db.StatusPublished, "ext-1", "post-1", db.StatusScheduled).
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, db.MarkPublished("post-1", "ext-1"), db.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkFailedConflictWhenRowMoved(t *testing.T) {
	_, mock := test.NewMockDB(t)

	mock.ExpectExec(`UPDATE scheduled_posts`).
		WithArgs(db.StatusFailed, "boom", "post-1", db.StatusScheduled).
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, db.MarkFailed("post-1", "boom"), db.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetPostNotFound(t *testing.T) {
	_, mock := test.NewMockDB(t)

	mock.ExpectQuery(`SELECT \* FROM scheduled_posts WHERE id = \$1 AND owner_id = \$2`).
		WithArgs("missing", int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := db.GetPost(7, "missing")

	assert.ErrorIs(t, err, db.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdatePostMetricsLeavesStatusAlone(t *testing.T) {
	_, mock := test.NewMockDB(t)

	mock.ExpectExec(`UPDATE scheduled_posts\s+SET metrics = \$1, updated_at = NOW\(\)`).
		WithArgs([]byte(`{"likes": 10}`), "post-1", int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := db.UpdatePostMetrics(1, "post-1", types.JSONText(`{"likes": 10}`))

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeletePostScopedToOwner(t *testing.T) {
	_, mock := test.NewMockDB(t)

	mock.ExpectExec(`DELETE FROM scheduled_posts WHERE id = \$1 AND owner_id = \$2`).
		WithArgs("post-1", int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, db.DeletePost(2, "post-1"), db.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListPostsByOwnerFilters(t *testing.T) {
	_, mock := test.NewMockDB(t)
	from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT \* FROM scheduled_posts WHERE owner_id = \$1 AND platform = \$2 AND status = \$3 AND scheduled_at >= \$4 ORDER BY scheduled_at ASC`).
		WithArgs(int64(1), models.PlatformLinkedIn, db.StatusFailed, from).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := db.ListPostsByOwner(1, db.PostFilters{
		Platform: models.PlatformLinkedIn,
		Status:   db.StatusFailed,
		From:     from,
	})

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
