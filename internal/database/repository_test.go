package database

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/safarmate/transit-backend/internal/apperrors"
	"github.com/safarmate/transit-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMockDB(t *testing.T) (*PostgresDB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	cleanup := func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	}
	return &PostgresDB{DB: sqlx.NewDb(db, "postgres")}, mock, cleanup
}

func TestRouteRepository_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		db, mock, cleanup := setupMockDB(t)
		defer cleanup()
		repo := NewRouteRepository(db)

		now := time.Now()
		route := &models.Route{ID: "r1", Code: "1", Name: "City Center", Active: true,
			Stops: models.StopList{{ID: "s1", Name: "City Center", Lat: -1.283, Lng: 36.817, Sequence: 1}}}

		mock.ExpectQuery(`INSERT INTO routes`).
			WithArgs("r1", "1", "City Center", true, sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(now))

		require.NoError(t, repo.Create(ctx, route))
		assert.Equal(t, now, route.CreatedAt)
	})

	t.Run("Duplicate Code", func(t *testing.T) {
		db, mock, cleanup := setupMockDB(t)
		defer cleanup()
		repo := NewRouteRepository(db)

		mock.ExpectQuery(`INSERT INTO routes`).
			WillReturnError(&pq.Error{Code: "23505", Constraint: "routes_code_key"})

		err := repo.Create(ctx, &models.Route{ID: "r9", Code: "1", Name: "Dup"})
		require.Error(t, err)
		assert.True(t, apperrors.IsConflict(err))
		assert.Contains(t, err.Error(), "code")
	})
}

func TestRouteRepository_GetByIDSortsStops(t *testing.T) {
	db, mock, cleanup := setupMockDB(t)
	defer cleanup()
	repo := NewRouteRepository(db)

	stops := `[{"id":"s2","name":"Museum","lat":-1.291,"lng":36.815,"sequence":2},` +
		`{"id":"s1","name":"City Center","lat":-1.283,"lng":36.817,"sequence":1}]`
	mock.ExpectQuery(`SELECT (.+) FROM routes WHERE id`).
		WithArgs("r1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "code", "name", "active", "stops", "created_at"}).
			AddRow("r1", "1", "City Center - Airport", true, []byte(stops), time.Now()))

	route, err := repo.GetByID(context.Background(), "r1")
	require.NoError(t, err)
	require.NotNil(t, route)
	require.Len(t, route.Stops, 2)
	assert.Equal(t, "s1", route.Stops[0].ID)
	assert.Equal(t, "s2", route.Stops[1].ID)
}

func TestRouteRepository_FindStop(t *testing.T) {
	ctx := context.Background()

	t.Run("Found", func(t *testing.T) {
		db, mock, cleanup := setupMockDB(t)
		defer cleanup()
		repo := NewRouteRepository(db)

		mock.ExpectQuery(`jsonb_array_elements`).
			WithArgs("s21a").
			WillReturnRows(sqlmock.NewRows([]string{"stop_id", "route_id", "name", "lat", "lng", "sequence"}).
				AddRow("s21a", "r21", "North Gate", -1.25, 36.85, 1))

		stop, err := repo.FindStop(ctx, "s21a")
		require.NoError(t, err)
		require.NotNil(t, stop)
		assert.Equal(t, "r21", stop.RouteID)
	})

	t.Run("Not Found", func(t *testing.T) {
		db, mock, cleanup := setupMockDB(t)
		defer cleanup()
		repo := NewRouteRepository(db)

		mock.ExpectQuery(`jsonb_array_elements`).
			WithArgs("nope").
			WillReturnError(sql.ErrNoRows)

		stop, err := repo.FindStop(ctx, "nope")
		assert.NoError(t, err)
		assert.Nil(t, stop)
	})
}

func TestBusRepository_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		db, mock, cleanup := setupMockDB(t)
		defer cleanup()
		repo := NewBusRepository(db)

		now := time.Now()
		mock.ExpectQuery(`INSERT INTO buses`).
			WithArgs("b1", "r1", "KAA-123A", 40, models.BusStatusActive).
			WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

		bus := &models.Bus{ID: "b1", RouteID: "r1", Plate: "KAA-123A", SeatCount: 40, Status: models.BusStatusActive}
		require.NoError(t, repo.Create(ctx, bus))
		assert.Equal(t, now, bus.UpdatedAt)
	})

	t.Run("Duplicate Plate", func(t *testing.T) {
		db, mock, cleanup := setupMockDB(t)
		defer cleanup()
		repo := NewBusRepository(db)

		mock.ExpectQuery(`INSERT INTO buses`).
			WillReturnError(&pq.Error{Code: "23505", Constraint: "buses_plate_key"})

		err := repo.Create(ctx, &models.Bus{ID: "b2", RouteID: "r1", Plate: "KAA-123A", SeatCount: 40})
		assert.True(t, apperrors.IsConflict(err))
		assert.Contains(t, err.Error(), "plate")
	})

	t.Run("Database Error", func(t *testing.T) {
		db, mock, cleanup := setupMockDB(t)
		defer cleanup()
		repo := NewBusRepository(db)

		mock.ExpectQuery(`INSERT INTO buses`).
			WillReturnError(fmt.Errorf("connection reset"))

		err := repo.Create(ctx, &models.Bus{ID: "b3", RouteID: "r1", Plate: "X", SeatCount: 40})
		require.Error(t, err)
		assert.False(t, apperrors.IsConflict(err))
		assert.Contains(t, err.Error(), "failed to create bus")
	})
}

func TestBusRepository_UpdateNotFound(t *testing.T) {
	db, mock, cleanup := setupMockDB(t)
	defer cleanup()
	repo := NewBusRepository(db)

	seats := 30
	mock.ExpectQuery(`UPDATE buses`).
		WithArgs("ghost", 30, nil).
		WillReturnError(sql.ErrNoRows)

	bus, err := repo.Update(context.Background(), "ghost", &models.UpdateBusRequest{SeatCount: &seats})
	assert.NoError(t, err)
	assert.Nil(t, bus)
}

func TestSeatLedgerRepository_InsertHoldIfAvailable(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	expires := now.Add(2 * time.Minute)

	newEntry := func(seats int) *models.SeatLedgerEntry {
		return &models.SeatLedgerEntry{ID: "h1", BusID: "b1", SeatCount: seats,
			Status: models.LedgerStatusHold, HoldExpiresAt: &expires, CreatedAt: now}
	}

	t.Run("Fits", func(t *testing.T) {
		db, mock, cleanup := setupMockDB(t)
		defer cleanup()
		repo := NewSeatLedgerRepository(db)

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT seat_count FROM buses WHERE id = \$1 FOR UPDATE`).
			WithArgs("b1").
			WillReturnRows(sqlmock.NewRows([]string{"seat_count"}).AddRow(40))
		mock.ExpectQuery(`FROM seat_ledger`).
			WithArgs("b1", now).
			WillReturnRows(sqlmock.NewRows([]string{"reserved", "held"}).AddRow(30, 5))
		mock.ExpectExec(`INSERT INTO seat_ledger`).
			WithArgs("h1", "b1", 5, models.LedgerStatusHold, &expires, now).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		ok, err := repo.InsertHoldIfAvailable(ctx, newEntry(5), 40, now)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("Full", func(t *testing.T) {
		db, mock, cleanup := setupMockDB(t)
		defer cleanup()
		repo := NewSeatLedgerRepository(db)

		mock.ExpectBegin()
		mock.ExpectQuery(`FOR UPDATE`).
			WithArgs("b1").
			WillReturnRows(sqlmock.NewRows([]string{"seat_count"}).AddRow(40))
		mock.ExpectQuery(`FROM seat_ledger`).
			WithArgs("b1", now).
			WillReturnRows(sqlmock.NewRows([]string{"reserved", "held"}).AddRow(30, 5))
		mock.ExpectRollback()

		ok, err := repo.InsertHoldIfAvailable(ctx, newEntry(6), 40, now)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestSeatLedgerRepository_Transition(t *testing.T) {
	db, mock, cleanup := setupMockDB(t)
	defer cleanup()
	repo := NewSeatLedgerRepository(db)

	mock.ExpectExec(`UPDATE seat_ledger`).
		WithArgs("h1", models.LedgerStatusHold, models.LedgerStatusReserved).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE seat_ledger`).
		WithArgs("h1", models.LedgerStatusHold, models.LedgerStatusCancelled).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.Transition(context.Background(), "h1", models.LedgerStatusHold, models.LedgerStatusReserved)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Transition(context.Background(), "h1", models.LedgerStatusHold, models.LedgerStatusCancelled)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSeatLedgerRepository_ExpiredHoldKeepsReason(t *testing.T) {
	db, mock, cleanup := setupMockDB(t)
	defer cleanup()
	repo := NewSeatLedgerRepository(db)
	ctx := context.Background()
	now := time.Now()

	mock.ExpectExec(`UPDATE seat_ledger\s+SET status = 'cancelled', cancel_reason = 'expired'`).
		WithArgs("b1", now).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectQuery(`SELECT (.+)cancel_reason(.+) FROM seat_ledger`).
		WithArgs("h1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "bus_id", "seat_count", "status", "hold_expires_at", "cancel_reason", "created_at"}).
			AddRow("h1", "b1", 2, "cancelled", nil, "expired", now))
	mock.ExpectExec(`cancel_reason = CASE WHEN \$3 = 'cancelled' THEN 'released'`).
		WithArgs("h2", models.LedgerStatusHold, models.LedgerStatusCancelled).
		WillReturnResult(sqlmock.NewResult(0, 1))

	n, err := repo.ExpireHolds(ctx, "b1", now)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	entry, err := repo.GetByID(ctx, "h1")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.True(t, entry.Lapsed())
	assert.Nil(t, entry.HoldExpiresAt)

	ok, err := repo.Transition(ctx, "h2", models.LedgerStatusHold, models.LedgerStatusCancelled)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestBookingRepository_ConfirmWithHold(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	t.Run("Success", func(t *testing.T) {
		db, mock, cleanup := setupMockDB(t)
		defer cleanup()
		repo := NewBookingRepository(db)

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE seat_ledger`).
			WithArgs("h1", now).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE bookings`).
			WithArgs("bk1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		ok, err := repo.ConfirmWithHold(ctx, "bk1", "h1", now)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("Hold Gone Rolls Back", func(t *testing.T) {
		db, mock, cleanup := setupMockDB(t)
		defer cleanup()
		repo := NewBookingRepository(db)

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE seat_ledger`).
			WithArgs("h1", now).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		ok, err := repo.ConfirmWithHold(ctx, "bk1", "h1", now)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestUserRepository_GetByEmailNotFound(t *testing.T) {
	db, mock, cleanup := setupMockDB(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery(`SELECT (.+) FROM users WHERE email`).
		WithArgs("nobody@example.com").
		WillReturnError(sql.ErrNoRows)

	user, err := repo.GetByEmail(context.Background(), "nobody@example.com")
	assert.NoError(t, err)
	assert.Nil(t, user)
}

func TestRefreshTokenRepository(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	userID := uuid.New()

	t.Run("Create", func(t *testing.T) {
		db, mock, cleanup := setupMockDB(t)
		defer cleanup()
		repo := NewRefreshTokenRepository(db)

		token := &models.RefreshToken{
			UserID:     userID,
			TokenHash:  models.HashToken("refresh-token"),
			DeviceType: models.NewNullString("mobile"),
			CreatedAt:  now,
			ExpiresAt:  now.Add(time.Hour),
		}
		mock.ExpectExec(`INSERT INTO refresh_tokens`).
			WithArgs(sqlmock.AnyArg(), userID, token.TokenHash, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), now, now.Add(time.Hour)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.Create(ctx, token))
		assert.NotEqual(t, uuid.Nil, token.ID)
	})

	t.Run("GetByHash Not Found", func(t *testing.T) {
		db, mock, cleanup := setupMockDB(t)
		defer cleanup()
		repo := NewRefreshTokenRepository(db)

		mock.ExpectQuery(`SELECT (.+) FROM refresh_tokens WHERE token_hash`).
			WithArgs("missing").
			WillReturnError(sql.ErrNoRows)

		token, err := repo.GetByHash(ctx, "missing")
		assert.NoError(t, err)
		assert.Nil(t, token)
	})

	t.Run("Revoke Twice", func(t *testing.T) {
		db, mock, cleanup := setupMockDB(t)
		defer cleanup()
		repo := NewRefreshTokenRepository(db)

		mock.ExpectExec(`UPDATE refresh_tokens`).
			WithArgs(now, "abc").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE refresh_tokens`).
			WithArgs(now, "abc").
			WillReturnResult(sqlmock.NewResult(0, 0))

		ok, err := repo.Revoke(ctx, "abc", now)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = repo.Revoke(ctx, "abc", now)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("RevokeAllForUser", func(t *testing.T) {
		db, mock, cleanup := setupMockDB(t)
		defer cleanup()
		repo := NewRefreshTokenRepository(db)

		mock.ExpectExec(`UPDATE refresh_tokens (.+) WHERE user_id`).
			WithArgs(now, userID).
			WillReturnResult(sqlmock.NewResult(0, 3))

		n, err := repo.RevokeAllForUser(ctx, userID, now)
		require.NoError(t, err)
		assert.Equal(t, int64(3), n)
	})

	t.Run("DeleteExpired", func(t *testing.T) {
		db, mock, cleanup := setupMockDB(t)
		defer cleanup()
		repo := NewRefreshTokenRepository(db)

		mock.ExpectExec(`DELETE FROM refresh_tokens`).
			WithArgs(now).
			WillReturnError(fmt.Errorf("connection reset"))

		_, err := repo.DeleteExpired(ctx, now)
		assert.ErrorContains(t, err, "failed to cleanup expired tokens")
	})
}
