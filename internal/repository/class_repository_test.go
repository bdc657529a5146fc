package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-connect/campus-api/internal/models"
)

func TestFindClassByCode(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "college_id", "name", "code", "teacher_id", "created_at", "updated_at"}).
		AddRow("cl1", "c1", "Physics 101", "PHY101", "f1", now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, college_id, name, code, teacher_id, created_at, updated_at FROM classes WHERE code = $1 LIMIT 1")).
		WithArgs("PHY101").
		WillReturnRows(rows)

	class, err := repo.FindByCode(context.Background(), "PHY101")
	require.NoError(t, err)
	assert.Equal(t, "cl1", class.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateJoinRequestTx(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO class_join_requests").
		WithArgs(sqlmock.AnyArg(), "cl1", "s1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET college_status = $2, updated_at = $3 WHERE id = $1")).
		WithArgs("s1", string(models.CollegeLinkPending), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.CreateJoinRequest(context.Background(), &models.JoinRequest{ClassID: "cl1", StudentID: "s1"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResolveJoinRequestApprove(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("DELETE FROM class_join_requests WHERE class_id = $1 AND student_id = $2 RETURNING id")).
		WithArgs("cl1", "s1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("jr1"))
	mock.ExpectExec("INSERT INTO class_members").
		WithArgs("cl1", "s1", string(models.MembershipApproved), "f1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET class_id = $2, college_status = $3, updated_at = $4 WHERE id = $1")).
		WithArgs("s1", "cl1", string(models.CollegeLinkApproved), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	member, err := repo.ResolveJoinRequest(context.Background(), "cl1", "s1", models.MembershipApproved, "f1")
	require.NoError(t, err)
	assert.Equal(t, models.MembershipApproved, member.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResolveJoinRequestNotQueued(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("DELETE FROM class_join_requests WHERE class_id = $1 AND student_id = $2 RETURNING id")).
		WithArgs("cl1", "s1").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	member, err := repo.ResolveJoinRequest(context.Background(), "cl1", "s1", models.MembershipApproved, "f1")
	require.ErrorIs(t, err, sql.ErrNoRows)
	assert.Nil(t, member)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResolveJoinRequestReject(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("DELETE FROM class_join_requests WHERE class_id = $1 AND student_id = $2 RETURNING id")).
		WithArgs("cl1", "s1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("jr1"))
	mock.ExpectExec("INSERT INTO class_members").
		WithArgs("cl1", "s1", string(models.MembershipRejected), "f1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET college_status = $2, updated_at = $3 WHERE id = $1")).
		WithArgs("s1", string(models.CollegeLinkRejected), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	member, err := repo.ResolveJoinRequest(context.Background(), "cl1", "s1", models.MembershipRejected, "f1")
	require.NoError(t, err)
	assert.Equal(t, models.MembershipRejected, member.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}
