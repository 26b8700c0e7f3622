package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/healthtrack/internal/model"
)

// countByUser は指定テーブルのユーザー別件数を返す。
// tableは呼び出し側の定数のみを渡すこと。
func countByUser(ctx context.Context, db *sql.DB, table, userID string) (int, error) {
	var total int
	err := db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE user_id = $1`, table),
		userID,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", table, err)
	}
	return total, nil
}

// PostgresBloodPressureRepo はPostgreSQLを使用した血圧リポジトリ。
type PostgresBloodPressureRepo struct {
	db *sql.DB
}

// NewPostgresBloodPressureRepo はPostgresBloodPressureRepoを生成する。
func NewPostgresBloodPressureRepo(db *sql.DB) *PostgresBloodPressureRepo {
	return &PostgresBloodPressureRepo{db: db}
}

// Create は血圧測定値を1件追加する。
func (r *PostgresBloodPressureRepo) Create(ctx context.Context, reading *model.BloodPressureReading) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO blood_pressure_readings (id, user_id, systolic, diastolic, "timestamp", created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		reading.ID, reading.UserID, reading.Systolic, reading.Diastolic, reading.Timestamp, reading.CreatedAt,
	)
	if err != nil {
		return wrapPQError("failed to insert blood pressure reading", err)
	}
	return nil
}

// ListByUser はユーザーの血圧測定値をtimestamp昇順でページ取得する。
func (r *PostgresBloodPressureRepo) ListByUser(ctx context.Context, userID string, page model.PageRequest) ([]model.BloodPressureReading, int, error) {
	total, err := countByUser(ctx, r.db, "blood_pressure_readings", userID)
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, systolic, diastolic, "timestamp", created_at
		 FROM blood_pressure_readings
		 WHERE user_id = $1
		 ORDER BY "timestamp" ASC, id ASC
		 LIMIT $2 OFFSET $3`,
		userID, page.Limit, page.Offset(),
	)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list blood pressure readings: %w", err)
	}
	defer rows.Close()

	readings := make([]model.BloodPressureReading, 0, page.Limit)
	for rows.Next() {
		var rd model.BloodPressureReading
		if err := rows.Scan(&rd.ID, &rd.UserID, &rd.Systolic, &rd.Diastolic, &rd.Timestamp, &rd.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan blood pressure reading: %w", err)
		}
		readings = append(readings, rd)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate blood pressure readings: %w", err)
	}

	return readings, total, nil
}

// PostgresSpO2Repo はPostgreSQLを使用したSpO2リポジトリ。
type PostgresSpO2Repo struct {
	db *sql.DB
}

// NewPostgresSpO2Repo はPostgresSpO2Repoを生成する。
func NewPostgresSpO2Repo(db *sql.DB) *PostgresSpO2Repo {
	return &PostgresSpO2Repo{db: db}
}

func (r *PostgresSpO2Repo) Create(ctx context.Context, reading *model.SpO2Reading) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO spo2_readings (id, user_id, spo2, "timestamp", created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		reading.ID, reading.UserID, reading.SpO2, reading.Timestamp, reading.CreatedAt,
	)
	if err != nil {
		return wrapPQError("failed to insert spo2 reading", err)
	}
	return nil
}

func (r *PostgresSpO2Repo) ListByUser(ctx context.Context, userID string, page model.PageRequest) ([]model.SpO2Reading, int, error) {
	total, err := countByUser(ctx, r.db, "spo2_readings", userID)
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, spo2, "timestamp", created_at
		 FROM spo2_readings
		 WHERE user_id = $1
		 ORDER BY "timestamp" ASC, id ASC
		 LIMIT $2 OFFSET $3`,
		userID, page.Limit, page.Offset(),
	)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list spo2 readings: %w", err)
	}
	defer rows.Close()

	readings := make([]model.SpO2Reading, 0, page.Limit)
	for rows.Next() {
		var rd model.SpO2Reading
		if err := rows.Scan(&rd.ID, &rd.UserID, &rd.SpO2, &rd.Timestamp, &rd.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan spo2 reading: %w", err)
		}
		readings = append(readings, rd)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate spo2 readings: %w", err)
	}

	return readings, total, nil
}

// PostgresWeightRepo はPostgreSQLを使用した体重リポジトリ。
type PostgresWeightRepo struct {
	db *sql.DB
}

// NewPostgresWeightRepo はPostgresWeightRepoを生成する。
func NewPostgresWeightRepo(db *sql.DB) *PostgresWeightRepo {
	return &PostgresWeightRepo{db: db}
}

func (r *PostgresWeightRepo) Create(ctx context.Context, reading *model.WeightReading) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO weight_readings (id, user_id, weight, day, "timestamp", created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		reading.ID, reading.UserID, reading.Weight, reading.Day, reading.Timestamp, reading.CreatedAt,
	)
	if err != nil {
		return wrapPQError("failed to insert weight reading", err)
	}
	return nil
}

func (r *PostgresWeightRepo) ListByUser(ctx context.Context, userID string, page model.PageRequest) ([]model.WeightReading, int, error) {
	total, err := countByUser(ctx, r.db, "weight_readings", userID)
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, weight, day, "timestamp", created_at
		 FROM weight_readings
		 WHERE user_id = $1
		 ORDER BY "timestamp" ASC, id ASC
		 LIMIT $2 OFFSET $3`,
		userID, page.Limit, page.Offset(),
	)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list weight readings: %w", err)
	}
	defer rows.Close()

	readings := make([]model.WeightReading, 0, page.Limit)
	for rows.Next() {
		var rd model.WeightReading
		if err := rows.Scan(&rd.ID, &rd.UserID, &rd.Weight, &rd.Day, &rd.Timestamp, &rd.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan weight reading: %w", err)
		}
		readings = append(readings, rd)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate weight readings: %w", err)
	}

	return readings, total, nil
}

// compile-time interface checks
var (
	_ BloodPressureRepository = (*PostgresBloodPressureRepo)(nil)
	_ SpO2Repository          = (*PostgresSpO2Repo)(nil)
	_ WeightRepository        = (*PostgresWeightRepo)(nil)
)
