package sink

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/flowpilot-cli/api/schemas"
)

func sessionRecord() *schemas.SessionRecord {
	return &schemas.SessionRecord{
		SessionID: "sess-sink",
		Iteration: 1,
		Timestamp: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		Decision:  &schemas.Decision{Action: schemas.ActionSubmit, Confidence: 0.9},
		ActionResult: &schemas.ActionResult{
			Success:   true,
			Action:    schemas.ActionSubmit,
			Submitted: true,
		},
	}
}

func TestPostgresEmitInsertsOneRow(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s := NewPostgresSinkWithConn(mock, zaptest.NewLogger(t))

	rec := sessionRecord()
	mock.ExpectExec("INSERT INTO session_records").
		WithArgs(rec.SessionID, rec.Iteration, rec.Timestamp,
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	s.Emit(context.Background(), rec)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresEmitKeepsNilFieldsNull(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s := NewPostgresSinkWithConn(mock, zaptest.NewLogger(t))

	rec := &schemas.SessionRecord{SessionID: "sess-sink", Iteration: 2, Timestamp: time.Now()}
	mock.ExpectExec("INSERT INTO session_records").
		WithArgs(rec.SessionID, rec.Iteration, rec.Timestamp, nil, nil, nil).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	s.Emit(context.Background(), rec)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresEmitSwallowsDatabaseFailure(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s := NewPostgresSinkWithConn(mock, zaptest.NewLogger(t))

	mock.ExpectExec("INSERT INTO session_records").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(assert.AnError)

	// Must not panic or surface the error; telemetry never fails the flow.
	s.Emit(context.Background(), sessionRecord())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresEmitIgnoresNilRecord(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s := NewPostgresSinkWithConn(mock, zaptest.NewLogger(t))
	s.Emit(context.Background(), nil)

	// No Exec expected at all.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarshalNullable(t *testing.T) {
	data, err := marshalNullable((*schemas.Decision)(nil))
	require.NoError(t, err)
	assert.Nil(t, data)

	data, err = marshalNullable(&schemas.Decision{Action: schemas.ActionWait})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"WAIT"`)
}
