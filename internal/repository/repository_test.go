package repository

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/unclebandit/practicehub-backend/internal/errors"
	"github.com/unclebandit/practicehub-backend/internal/model"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn, mock
}

func TestTransitionStatus_FirstWriterWins(t *testing.T) {
	conn, mock := newMock(t)
	repo := &CampaignRepository{DB: conn}
	query := regexp.QuoteMeta(`UPDATE campaigns SET status=$1, updated_at=$2 WHERE id=$3 AND status=$4`)

	mock.ExpectExec(query).
		WithArgs(model.CampaignInProgress, sqlmock.AnyArg(), int64(7), model.CampaignDraft).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(query).
		WithArgs(model.CampaignInProgress, sqlmock.AnyArg(), int64(7), model.CampaignDraft).
		WillReturnResult(sqlmock.NewResult(0, 0))

	won, err := repo.TransitionStatus(context.Background(), 7, model.CampaignDraft, model.CampaignInProgress)
	require.NoError(t, err)
	assert.True(t, won)

	won, err = repo.TransitionStatus(context.Background(), 7, model.CampaignDraft, model.CampaignInProgress)
	require.NoError(t, err)
	assert.False(t, won)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransitionStatus_RejectsIllegalTransition(t *testing.T) {
	conn, mock := newMock(t)
	repo := &CampaignRepository{DB: conn}

	_, err := repo.TransitionStatus(context.Background(), 7, model.CampaignCompleted, model.CampaignInProgress)
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCampaignGetByID_NotFound(t *testing.T) {
	conn, mock := newMock(t)
	repo := &CampaignRepository{DB: conn}

	mock.ExpectQuery(regexp.QuoteMeta(`FROM campaigns WHERE id=$1`)).
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.GetByID(context.Background(), 42)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.CodeNotFound))
}

func TestCampaignCreate_InsertsAggregate(t *testing.T) {
	conn, mock := newMock(t)
	repo := &CampaignRepository{DB: conn}
	now := time.Now().UTC()
	due := now.Add(time.Hour)

	c := &model.Campaign{
		Name:                 "Flu season",
		Content:              "Book your shot",
		CampaignType:         model.CampaignTypeCustom,
		DeliveryType:         model.DeliveryScheduled,
		CreatedBy:            3,
		TargetRoles:          model.Roles{model.RolePracticeUser},
		CreatedAt:            now,
		PracticeAssociations: []model.CampaignPracticeAssociation{{PracticeID: 11}},
		Schedules:            []model.CampaignSchedule{{ScheduledDate: due}},
	}

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO campaigns`)).
		WithArgs("Flu season", "Book your shot", nil, model.CampaignTypeCustom, model.DeliveryScheduled,
			model.CampaignDraft, int64(3), []byte(`["PRACTICE_USER"]`), now).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(5))
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO campaign_practice_associations`)).
		WithArgs(int64(5), int64(11), now).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO campaign_schedules`)).
		WithArgs(int64(5), due, model.SchedulePending, now).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(9))

	require.NoError(t, repo.Create(context.Background(), c))
	assert.Equal(t, int64(5), c.ID)
	assert.Equal(t, model.CampaignDraft, c.Status)
	assert.Equal(t, int64(5), c.PracticeAssociations[0].CampaignID)
	assert.Equal(t, int64(9), c.Schedules[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCampaignList_VisibleNoneRunsNoQuery(t *testing.T) {
	conn, mock := newMock(t)
	repo := &CampaignRepository{DB: conn}

	got, total, err := repo.List(context.Background(), CampaignFilter{Visibility: VisibleNone}, 0, 20)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Zero(t, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCampaignList_DefaultAndOwn(t *testing.T) {
	conn, mock := newMock(t)
	repo := &CampaignRepository{DB: conn}
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM campaigns WHERE 1=1 AND (campaign_type=$1 OR (campaign_type=$2 AND created_by=$3))`)).
		WithArgs(model.CampaignTypeDefault, model.CampaignTypeCustom, int64(4)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta(`ORDER BY created_at DESC, id DESC LIMIT $4 OFFSET $5`)).
		WithArgs(model.CampaignTypeDefault, model.CampaignTypeCustom, int64(4), 20, 0).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "name", "content", "description", "campaign_type", "delivery_type", "status",
			"created_by", "target_roles", "created_at", "updated_at",
		}).AddRow(1, "Welcome", "Hello", nil, "DEFAULT", "IMMEDIATE", "DRAFT", 1, []byte(`["ADMIN","PRACTICE_USER"]`), now, nil))

	got, total, err := repo.List(context.Background(), CampaignFilter{Visibility: VisibleDefaultAndOwn, OwnerID: 4}, 0, 20)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, got, 1)
	assert.Equal(t, model.CampaignTypeDefault, got[0].CampaignType)
	assert.Equal(t, model.Roles{model.RoleAdmin, model.RolePracticeUser}, got[0].TargetRoles)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleFindDue(t *testing.T) {
	conn, mock := newMock(t)
	repo := &ScheduleRepository{DB: conn}
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM campaign_schedules s`)).
		WithArgs(model.SchedulePending, now, model.CampaignDraft).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(3).AddRow(8))

	ids, err := repo.FindDue(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 8}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleMarkFailed_RecordsMessage(t *testing.T) {
	conn, mock := newMock(t)
	repo := &ScheduleRepository{DB: conn}
	at := time.Now().UTC()

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE campaign_schedules SET status=$1, error_message=$2, execution_time=$3 WHERE id=$4 AND status=$5`)).
		WithArgs(model.ScheduleFailed, "no recipients", at, int64(3), model.SchedulePending).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.MarkFailed(context.Background(), 3, "no recipients", at))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserMessageBulkCreate_SingleStatementPerBatch(t *testing.T) {
	conn, mock := newMock(t)
	repo := &UserMessageRepository{DB: conn}
	at := time.Now().UTC()

	msgs := []model.UserMessage{
		{UserID: 1, CampaignID: 5, Content: "hi", CreatedAt: at},
		{UserID: 2, CampaignID: 5, Content: "hi", CreatedAt: at},
	}
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO user_messages (user_id, campaign_id, content, created_at) VALUES ($1, $2, $3, $4), ($5, $6, $7, $8)`)).
		WithArgs(int64(1), int64(5), "hi", at, int64(2), int64(5), "hi", at).
		WillReturnResult(sqlmock.NewResult(0, 2))

	require.NoError(t, repo.BulkCreate(context.Background(), msgs))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserMessageMarkRead_NotOwnedIsNotFound(t *testing.T) {
	conn, mock := newMock(t)
	repo := &UserMessageRepository{DB: conn}

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE user_messages`)).
		WithArgs(sqlmock.AnyArg(), int64(10), int64(99)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.MarkRead(context.Background(), 10, 99, time.Now())
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.CodeNotFound))
}

func TestPracticeOfUser_NoAssignment(t *testing.T) {
	conn, mock := newMock(t)
	repo := &PracticeRepository{DB: conn}

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT practice_id FROM practice_user_assignments WHERE user_id=$1`)).
		WithArgs(int64(4)).
		WillReturnRows(sqlmock.NewRows([]string{"practice_id"}))

	_, ok, err := repo.PracticeOfUser(context.Background(), 4)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRequestReview_AlreadySettled(t *testing.T) {
	conn, mock := newMock(t)
	repo := &RequestRepository{DB: conn}
	reason := "not staff"

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE role_change_requests SET status=$1, reviewed_by=$2, rejection_reason=$3 WHERE id=$4 AND status=$5`)).
		WithArgs(model.RequestRejected, int64(1), &reason, int64(6), model.RequestPending).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.Review(context.Background(), model.RequestRoleChange, 6, model.RequestRejected, 1, &reason)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStoreInTx_CommitsRepositoryWrites(t *testing.T) {
	conn, mock := newMock(t)
	store := NewStore(conn)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM campaigns WHERE id=$1`)).
		WithArgs(int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.InTx(context.Background(), func(repos Repositories) error {
		return repos.Campaigns.Delete(context.Background(), 2)
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, IsUniqueViolation(fmt.Errorf("insert: %w", &pq.Error{Code: "23505"})))
	assert.False(t, IsUniqueViolation(&pq.Error{Code: "23503"}))
	assert.False(t, IsUniqueViolation(sql.ErrNoRows))
}
