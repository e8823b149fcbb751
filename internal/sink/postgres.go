// internal/sink/postgres.go
package sink

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/flowpilot-cli/api/schemas"
	"github.com/xkilldash9x/flowpilot-cli/internal/config"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// emitTimeout bounds how long a single insert may hold up telemetry
// processing. Emit never blocks the control loop beyond this.
const emitTimeout = 5 * time.Second

// PgxConn is the subset of pgxpool.Pool the sink uses. Tests substitute a
// pgxmock pool.
type PgxConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Close()
}

// PostgresSink appends session records to a Postgres table, one row per
// iteration.
type PostgresSink struct {
	db     PgxConn
	logger *zap.Logger
}

var _ schemas.SessionSink = (*PostgresSink)(nil)

const sessionRecordsDDL = `
CREATE TABLE IF NOT EXISTS session_records (
	session_id    TEXT        NOT NULL,
	iteration     INT         NOT NULL,
	recorded_at   TIMESTAMPTZ NOT NULL,
	page_analysis JSONB,
	decision      JSONB,
	action_result JSONB,
	PRIMARY KEY (session_id, iteration)
);`

// NewPostgresSink connects to the database and ensures the telemetry table
// exists.
func NewPostgresSink(ctx context.Context, cfg config.PostgresConfig, logger *zap.Logger) (*PostgresSink, error) {
	pool, err := pgxpool.New(ctx, cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres sink: %w", err)
	}

	s := &PostgresSink{db: pool, logger: logger.Named("postgres_sink")}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// NewPostgresSinkWithConn wires the sink to an existing connection. Used by
// tests.
func NewPostgresSinkWithConn(db PgxConn, logger *zap.Logger) *PostgresSink {
	return &PostgresSink{db: db, logger: logger.Named("postgres_sink")}
}

func (s *PostgresSink) ensureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, sessionRecordsDDL); err != nil {
		return fmt.Errorf("failed to create session_records table: %w", err)
	}
	return nil
}

// Emit writes one record. Failures are logged and swallowed.
func (s *PostgresSink) Emit(ctx context.Context, rec *schemas.SessionRecord) {
	if rec == nil {
		return
	}

	emitCtx, cancel := context.WithTimeout(ctx, emitTimeout)
	defer cancel()

	page, err := marshalNullable(rec.PageAnalysis)
	if err != nil {
		s.logger.Warn("Failed to marshal page analysis; dropping field.", zap.Error(err))
	}
	decision, err := marshalNullable(rec.Decision)
	if err != nil {
		s.logger.Warn("Failed to marshal decision; dropping field.", zap.Error(err))
	}
	result, err := marshalNullable(rec.ActionResult)
	if err != nil {
		s.logger.Warn("Failed to marshal action result; dropping field.", zap.Error(err))
	}

	_, err = s.db.Exec(emitCtx, `
		INSERT INTO session_records (session_id, iteration, recorded_at, page_analysis, decision, action_result)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (session_id, iteration) DO UPDATE SET
			recorded_at = EXCLUDED.recorded_at,
			page_analysis = EXCLUDED.page_analysis,
			decision = EXCLUDED.decision,
			action_result = EXCLUDED.action_result;
	`, rec.SessionID, rec.Iteration, rec.Timestamp, page, decision, result)
	if err != nil {
		s.logger.Warn("Failed to persist session record.",
			zap.String("session_id", rec.SessionID),
			zap.Int("iteration", rec.Iteration),
			zap.Error(err))
	}
}

// Close releases the connection pool.
func (s *PostgresSink) Close() error {
	s.db.Close()
	return nil
}

// marshalNullable returns nil for nil input so the column stays NULL.
func marshalNullable(v interface{}) ([]byte, error) {
	switch val := v.(type) {
	case *schemas.PageAnalysis:
		if val == nil {
			return nil, nil
		}
	case *schemas.Decision:
		if val == nil {
			return nil, nil
		}
	case *schemas.ActionResult:
		if val == nil {
			return nil, nil
		}
	}
	return json.Marshal(v)
}
