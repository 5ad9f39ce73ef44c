package common

import (
	"errors"
	"eventverse/src/db"
	"eventverse/src/types"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type CheckinTestSuite struct {
	suite.Suite
	Mock sqlmock.Sqlmock
}

func (s *CheckinTestSuite) SetupTest() {
	d, mock := NewMockDB()
	db.NewDB(d)
	s.Mock = mock
}

func (s *CheckinTestSuite) TestScanRejectsUnrecognizedPayload() {
	result, err := ScanTicket("not a ticket token", 1)
	assert.ErrorIs(s.T(), err, ErrInvalidQRFormat)
	assert.Nil(s.T(), result)
}

func (s *CheckinTestSuite) TestScanLegacyTokenNotFound() {
	s.Mock.ExpectQuery(`SELECT \* FROM "tickets" WHERE qr_code_data`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	result, err := ScanTicket("42:deadbeefdeadbeef:7", 1)
	assert.Nil(s.T(), err)
	assert.Equal(s.T(), SCAN_NOT_FOUND, result.Outcome)
	assert.Nil(s.T(), s.Mock.ExpectationsWereMet())
}

func (s *CheckinTestSuite) TestScanByURLRequiresOrganizer() {
	s.Mock.MatchExpectationsInOrder(false)
	ticketId := uuid.New()
	s.Mock.ExpectQuery(`SELECT \* FROM "tickets" WHERE id =`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "event_id", "user_id", "status"}).
			AddRow(ticketId.String(), 42, 7, string(types.TICKET_CONFIRMED)))
	s.Mock.ExpectQuery(`SELECT \* FROM "events"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "organizer_id"}).
			AddRow(42, "Gala Night", 99))
	s.Mock.ExpectQuery(`SELECT \* FROM "users"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(7, "Attendee"))
	s.Mock.ExpectQuery(`SELECT \* FROM "check_ins"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	result, err := ScanTicket("http://localhost:3000/tickets/"+ticketId.String(), 1)
	assert.Nil(s.T(), err)
	assert.Equal(s.T(), SCAN_FORBIDDEN, result.Outcome)
	assert.Nil(s.T(), s.Mock.ExpectationsWereMet())
}

func (s *CheckinTestSuite) TestScanRejectsPendingTicket() {
	s.Mock.MatchExpectationsInOrder(false)
	ticketId := uuid.New()
	s.Mock.ExpectQuery(`SELECT \* FROM "tickets" WHERE qr_code_data`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "event_id", "user_id", "status"}).
			AddRow(ticketId.String(), 42, 7, string(types.TICKET_PENDING)))
	s.Mock.ExpectQuery(`SELECT \* FROM "events"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "organizer_id"}).
			AddRow(42, "Gala Night", 1))
	s.Mock.ExpectQuery(`SELECT \* FROM "users"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(7, "Attendee"))
	s.Mock.ExpectQuery(`SELECT \* FROM "check_ins"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	result, err := ScanTicket("42:deadbeefdeadbeef:7", 1)
	assert.Nil(s.T(), err)
	assert.Equal(s.T(), SCAN_WRONG_STATUS, result.Outcome, "an unpaid ticket must not admit")
	assert.Nil(s.T(), s.Mock.ExpectationsWereMet())
}

func (s *CheckinTestSuite) TestScanConfirmedTicketChecksIn() {
	s.Mock.MatchExpectationsInOrder(false)
	ticketId := uuid.New()
	s.Mock.ExpectQuery(`SELECT \* FROM "tickets" WHERE qr_code_data`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "event_id", "user_id", "status"}).
			AddRow(ticketId.String(), 42, 7, string(types.TICKET_CONFIRMED)))
	s.Mock.ExpectQuery(`SELECT \* FROM "events"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "organizer_id"}).
			AddRow(42, "Gala Night", 1))
	s.Mock.ExpectQuery(`SELECT \* FROM "users"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(7, "Attendee"))
	s.Mock.ExpectQuery(`SELECT \* FROM "check_ins"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	s.Mock.ExpectBegin()
	s.Mock.ExpectQuery(`INSERT INTO "check_ins"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	s.Mock.ExpectExec(`UPDATE "tickets" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	s.Mock.ExpectCommit()

	result, err := ScanTicket("42:deadbeefdeadbeef:7", 1)
	assert.Nil(s.T(), err)
	assert.Equal(s.T(), SCAN_SUCCESS, result.Outcome)
	assert.Equal(s.T(), types.TICKET_CHECKED_IN, result.Ticket.Status)
	assert.NotNil(s.T(), result.CheckedInAt)
	assert.Nil(s.T(), s.Mock.ExpectationsWereMet())
}

func (s *CheckinTestSuite) TestScanSecondTimeReportsOriginalCheckIn() {
	s.Mock.MatchExpectationsInOrder(false)
	ticketId := uuid.New()
	at := time.Date(2026, 9, 1, 18, 30, 0, 0, time.UTC)
	s.Mock.ExpectQuery(`SELECT \* FROM "tickets" WHERE qr_code_data`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "event_id", "user_id", "status"}).
			AddRow(ticketId.String(), 42, 7, string(types.TICKET_CHECKED_IN)))
	s.Mock.ExpectQuery(`SELECT \* FROM "events"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "organizer_id"}).
			AddRow(42, "Gala Night", 1))
	s.Mock.ExpectQuery(`SELECT \* FROM "users"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(7, "Attendee"))
	s.Mock.ExpectQuery(`SELECT \* FROM "check_ins"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "ticket_id", "event_id", "scanner_id", "checked_in_at"}).
			AddRow(1, ticketId.String(), 42, 1, at))

	result, err := ScanTicket("42:deadbeefdeadbeef:7", 1)
	assert.Nil(s.T(), err)
	assert.Equal(s.T(), SCAN_ALREADY_CHECKED_IN, result.Outcome)
	assert.NotNil(s.T(), result.CheckedInAt)
	assert.True(s.T(), result.CheckedInAt.Equal(at), "the first scan's timestamp must be reported")
	assert.Nil(s.T(), s.Mock.ExpectationsWereMet())
}

func (s *CheckinTestSuite) TestConcurrentScanLoserSeesAlreadyCheckedIn() {
	s.Mock.MatchExpectationsInOrder(false)
	ticketId := uuid.New()
	at := time.Date(2026, 9, 1, 18, 30, 0, 0, time.UTC)
	s.Mock.ExpectQuery(`SELECT \* FROM "tickets" WHERE qr_code_data`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "event_id", "user_id", "status"}).
			AddRow(ticketId.String(), 42, 7, string(types.TICKET_CONFIRMED)))
	s.Mock.ExpectQuery(`SELECT \* FROM "events"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "organizer_id"}).
			AddRow(42, "Gala Night", 1))
	s.Mock.ExpectQuery(`SELECT \* FROM "users"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(7, "Attendee"))
	s.Mock.ExpectQuery(`SELECT \* FROM "check_ins" WHERE "check_ins"."ticket_id"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	s.Mock.ExpectBegin()
	s.Mock.ExpectQuery(`INSERT INTO "check_ins"`).
		WillReturnError(errors.New(`ERROR: duplicate key value violates unique constraint "idx_check_ins_ticket_id" (SQLSTATE 23505)`))
	s.Mock.ExpectRollback()
	s.Mock.ExpectQuery(`SELECT \* FROM "check_ins" WHERE ticket_id`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "ticket_id", "event_id", "scanner_id", "checked_in_at"}).
			AddRow(1, ticketId.String(), 42, 1, at))

	result, err := ScanTicket("42:deadbeefdeadbeef:7", 1)
	assert.Nil(s.T(), err)
	assert.Equal(s.T(), SCAN_ALREADY_CHECKED_IN, result.Outcome, "losing the insert race is not an error")
	assert.NotNil(s.T(), result.CheckedInAt)
	assert.True(s.T(), result.CheckedInAt.Equal(at))
	assert.Nil(s.T(), s.Mock.ExpectationsWereMet())
}

func TestCheckinRunner(t *testing.T) {
	suite.Run(t, new(CheckinTestSuite))
}
