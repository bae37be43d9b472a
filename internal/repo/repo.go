package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/dbpg"

	"cache2k25/internal/model"
)

var ErrDuplicateKey = errors.New("duplicate registration id")

// Repository is the Registration Store. Records are insert-only.
type Repository interface {
	Save(ctx context.Context, reg *model.Registration) error
	ListAll(ctx context.Context) ([]model.Registration, error)
	ListByEvent(ctx context.Context, eventID string) ([]model.Registration, error)
	MigrateUp(migrationsDir string) error
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type repository struct {
	db  querier
	log *zerolog.Logger
	now func() time.Time
	ids func() string
}

func NewRepository(db *dbpg.DB, log *zerolog.Logger) (Repository, error) {
	if db == nil {
		return nil, fmt.Errorf("db cannot be nil")
	}
	if err := db.Master.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping DB: %w", err)
	}
	return newRepository(db, log), nil
}

func newRepository(db querier, log *zerolog.Logger) *repository {
	return &repository{db: db, log: log, now: time.Now, ids: NewRegistrationID}
}

func (r *repository) MigrateUp(migrationsDir string) error {
	files, err := filepath.Glob(filepath.Join(migrationsDir, "*.up.sql"))
	if err != nil {
		return fmt.Errorf("failed to read migration files: %w", err)
	}

	for _, file := range files {
		sqlBytes, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read migration file %s: %w", file, err)
		}

		if _, err := r.db.ExecContext(context.Background(), string(sqlBytes)); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", file, err)
		}
	}

	r.log.Info().Msgf("Migrations applied successfully from %s", migrationsDir)
	return nil
}

const insertRegistration = `
	INSERT INTO registrations (
		registration_id, event_id, event_name, participant_name, email, phone, college, roll_number,
		team_members, game_ids, total_amount, payment_status, transaction_id, merchant_transaction_id,
		transaction_date, payment_method, created_at, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
`

const selectRegistrations = `
	SELECT registration_id, event_id, event_name, participant_name, email, phone, college, roll_number,
	       team_members, game_ids, total_amount, payment_status, transaction_id, merchant_transaction_id,
	       transaction_date, payment_method, created_at, updated_at
	FROM registrations
`

// Save assigns a registration id when absent and inserts the record.
// A colliding id is reported as ErrDuplicateKey and is not regenerated.
func (r *repository) Save(ctx context.Context, reg *model.Registration) error {
	if reg.RegistrationID == "" {
		reg.RegistrationID = r.ids()
	}
	now := r.now().UTC()
	if reg.TransactionDate.IsZero() {
		reg.TransactionDate = now
	}
	if reg.PaymentStatus == "" {
		reg.PaymentStatus = model.PaymentPending
	}
	reg.CreatedAt = now
	reg.UpdatedAt = now

	team, err := encodeList(reg.TeamMembers, len(reg.TeamMembers))
	if err != nil {
		return fmt.Errorf("failed to encode team members: %w", err)
	}
	games, err := encodeList(reg.GameIDs, len(reg.GameIDs))
	if err != nil {
		return fmt.Errorf("failed to encode game ids: %w", err)
	}

	_, err = r.db.ExecContext(ctx, insertRegistration,
		reg.RegistrationID, reg.EventID, reg.EventName, reg.ParticipantName, reg.Email, reg.Phone,
		reg.College, reg.RollNumber, team, games, reg.TotalAmount, string(reg.PaymentStatus),
		reg.TransactionID, reg.MerchantTransactionID, reg.TransactionDate.UTC(), string(reg.PaymentMethod),
		reg.CreatedAt, reg.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateKey, reg.RegistrationID)
		}
		return fmt.Errorf("failed to insert registration: %w", err)
	}
	return nil
}

func (r *repository) ListAll(ctx context.Context) ([]model.Registration, error) {
	return r.list(ctx, selectRegistrations+` ORDER BY created_at DESC, id DESC`)
}

func (r *repository) ListByEvent(ctx context.Context, eventID string) ([]model.Registration, error) {
	return r.list(ctx, selectRegistrations+` WHERE event_id = $1 ORDER BY created_at DESC, id DESC`, eventID)
}

func (r *repository) list(ctx context.Context, query string, args ...any) ([]model.Registration, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get registrations: %w", err)
	}
	defer rows.Close()

	regs := make([]model.Registration, 0)
	for rows.Next() {
		var (
			reg            model.Registration
			team, games    []byte
			status, method string
		)
		if err := rows.Scan(
			&reg.RegistrationID,
			&reg.EventID,
			&reg.EventName,
			&reg.ParticipantName,
			&reg.Email,
			&reg.Phone,
			&reg.College,
			&reg.RollNumber,
			&team,
			&games,
			&reg.TotalAmount,
			&status,
			&reg.TransactionID,
			&reg.MerchantTransactionID,
			&reg.TransactionDate,
			&method,
			&reg.CreatedAt,
			&reg.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan registration: %w", err)
		}
		reg.PaymentStatus = model.PaymentStatus(status)
		reg.PaymentMethod = model.PaymentMethod(method)
		if len(team) > 0 {
			if err := json.Unmarshal(team, &reg.TeamMembers); err != nil {
				return nil, fmt.Errorf("failed to decode team members of %s: %w", reg.RegistrationID, err)
			}
		}
		if len(games) > 0 {
			if err := json.Unmarshal(games, &reg.GameIDs); err != nil {
				return nil, fmt.Errorf("failed to decode game ids of %s: %w", reg.RegistrationID, err)
			}
		}
		regs = append(regs, reg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate registrations: %w", err)
	}
	return regs, nil
}

// encodeList stores empty lists as NULL so absent team/game data stays absent.
// JSON goes out as a string; lib/pq would send []byte as bytea.
func encodeList(v any, n int) (any, error) {
	if n == 0 {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
