package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"payhook/internal/types"
)

// --- Mock DBTX ---

type mockDBTX struct {
	mock.Mock
}

func (m *mockDBTX) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	args := m.Called(ctx, sql, arguments)
	return args.Get(0).(pgconn.CommandTag), args.Error(1)
}

func (m *mockDBTX) Query(ctx context.Context, sql string, arguments ...any) (pgx.Rows, error) {
	args := m.Called(ctx, sql, arguments)
	if r := args.Get(0); r != nil {
		return r.(pgx.Rows), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockDBTX) QueryRow(ctx context.Context, sql string, arguments ...any) pgx.Row {
	args := m.Called(ctx, sql, arguments)
	return args.Get(0).(pgx.Row)
}

// --- Mock Row ---

type mockRow struct {
	scanErr error
	scanFn  func(dest ...any) error
}

func (r *mockRow) Scan(dest ...any) error {
	if r.scanFn != nil {
		return r.scanFn(dest...)
	}
	return r.scanErr
}

// --- Mock Rows ---

// eventMockRows implements pgx.Rows for the two-column history query
// (event_type string, received_at time.Time).
type eventMockRows struct {
	data    []eventRowData
	idx     int
	closed  bool
	scanErr error
	errVal  error
}

type eventRowData struct {
	eventType  string
	receivedAt time.Time
}

func newEventMockRows(data []eventRowData) *eventMockRows {
	return &eventMockRows{data: data, idx: -1}
}

func (r *eventMockRows) Next() bool {
	if r.closed {
		return false
	}
	r.idx++
	return r.idx < len(r.data)
}

func (r *eventMockRows) Scan(dest ...any) error {
	if r.scanErr != nil {
		return r.scanErr
	}
	row := r.data[r.idx]
	*dest[0].(*string) = row.eventType
	*dest[1].(*time.Time) = row.receivedAt
	return nil
}

func (r *eventMockRows) Close()                                       { r.closed = true }
func (r *eventMockRows) Err() error                                   { return r.errVal }
func (r *eventMockRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *eventMockRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *eventMockRows) RawValues() [][]byte                          { return nil }
func (r *eventMockRows) Values() ([]any, error)                       { return nil, nil }
func (r *eventMockRows) Conn() *pgx.Conn                              { return nil }

func testEvent() *types.PaymentEvent {
	return &types.PaymentEvent{
		EventID:    "evt_1",
		PaymentID:  "pay_1",
		EventType:  "payment.authorized",
		RawPayload: []byte(`{"id":"evt_1"}`),
	}
}

// --- InsertIfAbsent ---

func TestPaymentEventRepository_InsertIfAbsent_Created(t *testing.T) {
	db := new(mockDBTX)
	repo := NewPaymentEventRepository(db)

	storedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	row := &mockRow{
		scanFn: func(dest ...any) error {
			*dest[0].(*time.Time) = storedAt
			return nil
		},
	}
	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"),
		[]any{"evt_1", "pay_1", "payment.authorized", []byte(`{"id":"evt_1"}`)}).
		Return(row)

	evt := testEvent()
	created, err := repo.InsertIfAbsent(context.Background(), evt)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, storedAt, evt.ReceivedAt, "stored timestamp must be threaded back")
	db.AssertExpectations(t)
}

func TestPaymentEventRepository_InsertIfAbsent_Duplicate(t *testing.T) {
	db := new(mockDBTX)
	repo := NewPaymentEventRepository(db)

	// ON CONFLICT DO NOTHING yields no row on a duplicate, so the RETURNING
	// scan comes back with ErrNoRows. That is the duplicate signal, not an
	// error.
	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanErr: pgx.ErrNoRows})

	created, err := repo.InsertIfAbsent(context.Background(), testEvent())
	require.NoError(t, err)
	assert.False(t, created)
}

func TestPaymentEventRepository_InsertIfAbsent_DBError(t *testing.T) {
	db := new(mockDBTX)
	repo := NewPaymentEventRepository(db)

	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanErr: errors.New("connection refused")})

	created, err := repo.InsertIfAbsent(context.Background(), testEvent())
	require.Error(t, err)
	assert.False(t, created)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeStorageUnavailable, appErr.Code)
	assert.Equal(t, "Internal server error", appErr.Message)
}

// --- ListByPaymentID ---

func TestPaymentEventRepository_ListByPaymentID_Success(t *testing.T) {
	db := new(mockDBTX)
	repo := NewPaymentEventRepository(db)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rows := newEventMockRows([]eventRowData{
		{eventType: "payment.authorized", receivedAt: base},
		{eventType: "payment.captured", receivedAt: base.Add(2 * time.Second)},
	})

	db.On("Query", mock.Anything, mock.AnythingOfType("string"), []any{"pay_1"}).
		Return(rows, nil)

	summaries, err := repo.ListByPaymentID(context.Background(), "pay_1")
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, "payment.authorized", summaries[0].EventType)
	assert.Equal(t, "payment.captured", summaries[1].EventType)
	assert.True(t, summaries[0].ReceivedAt.Before(summaries[1].ReceivedAt))
	db.AssertExpectations(t)
}

func TestPaymentEventRepository_ListByPaymentID_Empty(t *testing.T) {
	db := new(mockDBTX)
	repo := NewPaymentEventRepository(db)

	db.On("Query", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(newEventMockRows(nil), nil)

	summaries, err := repo.ListByPaymentID(context.Background(), "pay_unknown")
	require.NoError(t, err)
	require.NotNil(t, summaries, "empty history must serialize as [], not null")
	assert.Len(t, summaries, 0)
}

func TestPaymentEventRepository_ListByPaymentID_TimestampsInUTC(t *testing.T) {
	db := new(mockDBTX)
	repo := NewPaymentEventRepository(db)

	loc := time.FixedZone("IST", 5*3600+1800)
	rows := newEventMockRows([]eventRowData{
		{eventType: "payment.authorized", receivedAt: time.Date(2026, 3, 1, 17, 30, 0, 0, loc)},
	})

	db.On("Query", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(rows, nil)

	summaries, err := repo.ListByPaymentID(context.Background(), "pay_1")
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, time.UTC, summaries[0].ReceivedAt.Location())
}

func TestPaymentEventRepository_ListByPaymentID_QueryError(t *testing.T) {
	db := new(mockDBTX)
	repo := NewPaymentEventRepository(db)

	db.On("Query", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(nil, errors.New("connection refused"))

	_, err := repo.ListByPaymentID(context.Background(), "pay_1")
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeStorageUnavailable, appErr.Code)
}

func TestPaymentEventRepository_ListByPaymentID_ScanError(t *testing.T) {
	db := new(mockDBTX)
	repo := NewPaymentEventRepository(db)

	rows := newEventMockRows([]eventRowData{{eventType: "payment.authorized"}})
	rows.scanErr = errors.New("type mismatch")

	db.On("Query", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(rows, nil)

	_, err := repo.ListByPaymentID(context.Background(), "pay_1")
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeStorageUnavailable, appErr.Code)
}

func TestPaymentEventRepository_ListByPaymentID_RowsErr(t *testing.T) {
	db := new(mockDBTX)
	repo := NewPaymentEventRepository(db)

	rows := newEventMockRows(nil)
	rows.errVal = errors.New("connection reset mid-stream")

	db.On("Query", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(rows, nil)

	_, err := repo.ListByPaymentID(context.Background(), "pay_1")
	require.Error(t, err)
}
