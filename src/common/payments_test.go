package common

import (
	"eventverse/src/db"
	"os"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestMpesaAmountKES(t *testing.T) {
	os.Unsetenv("USD_TO_KES_RATE")

	t.Run("converts USD at the default rate", func(t *testing.T) {
		amount := MpesaAmountKES(decimal.NewFromInt(10), "USD")
		assert.Equal(t, int64(1300), amount)
	})

	t.Run("keeps KES totals unconverted", func(t *testing.T) {
		amount := MpesaAmountKES(decimal.NewFromInt(250), "KES")
		assert.Equal(t, int64(250), amount)
	})

	t.Run("rounds fractional shillings up", func(t *testing.T) {
		amount := MpesaAmountKES(decimal.NewFromFloat(10.2), "KES")
		assert.Equal(t, int64(11), amount)
	})

	t.Run("never goes below one shilling", func(t *testing.T) {
		amount := MpesaAmountKES(decimal.NewFromFloat(0.001), "KES")
		assert.Equal(t, int64(1), amount)
	})

	t.Run("honors a configured rate", func(t *testing.T) {
		os.Setenv("USD_TO_KES_RATE", "100")
		defer os.Unsetenv("USD_TO_KES_RATE")
		amount := MpesaAmountKES(decimal.NewFromFloat(9.99), "USD")
		assert.Equal(t, int64(999), amount)
	})
}

func TestOwnsMpesaCheckout(t *testing.T) {
	t.Run("true for the purchaser's own checkout", func(t *testing.T) {
		d, mock := NewMockDB()
		db.NewDB(d)
		mock.ExpectQuery(`SELECT count\(\*\) FROM "tickets"`).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

		owned, err := OwnsMpesaCheckout(7, "ws_CO_01092026")
		assert.Nil(t, err)
		assert.True(t, owned)
	})

	t.Run("false for someone else's checkout", func(t *testing.T) {
		d, mock := NewMockDB()
		db.NewDB(d)
		mock.ExpectQuery(`SELECT count\(\*\) FROM "tickets"`).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

		owned, err := OwnsMpesaCheckout(8, "ws_CO_01092026")
		assert.Nil(t, err)
		assert.False(t, owned, "a guessed correlation id must not resolve")
	})
}

func TestLoadPendingGroup(t *testing.T) {
	t.Run("rejects malformed ticket ids", func(t *testing.T) {
		d, _ := NewMockDB()
		db.NewDB(d)
		_, err := loadPendingGroup(d, 1, []string{"not-a-uuid"})
		assert.ErrorIs(t, err, ErrInvalidTickets)
	})

	t.Run("rejects a partial match", func(t *testing.T) {
		d, mock := NewMockDB()
		db.NewDB(d)
		mock.MatchExpectationsInOrder(false)
		mock.ExpectQuery(`SELECT \* FROM "tickets"`).
			WillReturnRows(sqlmock.NewRows([]string{"id", "event_id", "user_id", "status"}).
				AddRow("5e9b1c2a-62a1-4f6b-9f1d-0f6ba7a1c001", 42, 1, "PENDING"))
		mock.ExpectQuery(`SELECT \* FROM "events"`).
			WillReturnRows(sqlmock.NewRows([]string{"id", "title"}).AddRow(42, "Gala Night"))

		_, err := loadPendingGroup(d, 1, []string{
			"5e9b1c2a-62a1-4f6b-9f1d-0f6ba7a1c001",
			"5e9b1c2a-62a1-4f6b-9f1d-0f6ba7a1c002",
		})
		assert.ErrorIs(t, err, ErrInvalidTickets, "one ticket missing must fail the whole group")
	})
}
