package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/crotonn/writers-backend/internal/model"
)

// PostgresProfileRepo はPostgreSQLを使用したプロフィールリポジトリ。
type PostgresProfileRepo struct {
	db *sql.DB
}

// NewPostgresProfileRepo はPostgresProfileRepoを生成する。
func NewPostgresProfileRepo(db *sql.DB) *PostgresProfileRepo {
	return &PostgresProfileRepo{db: db}
}

// GetByID は指定IDのプロフィールを取得する。見つからない場合はnilを返す。
func (r *PostgresProfileRepo) GetByID(ctx context.Context, id string) (*model.Profile, error) {
	profile := &model.Profile{}
	var role string
	err := r.db.QueryRowContext(ctx,
		`SELECT id, email, full_name, role, created_at FROM profiles WHERE id = $1`,
		id,
	).Scan(&profile.ID, &profile.Email, &profile.FullName, &role, &profile.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find profile by ID: %w", err)
	}

	profile.Role = model.Role(role)
	return profile, nil
}

// Insert はプロフィール行を冪等に作成する。
// 初回ログインが並行した場合の二重挿入はON CONFLICT DO NOTHINGで吸収する。
func (r *PostgresProfileRepo) Insert(ctx context.Context, profile *model.Profile) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO profiles (id, email, full_name, role, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO NOTHING`,
		profile.ID, profile.Email, profile.FullName, string(profile.Role), profile.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert profile: %w", err)
	}
	return nil
}

// compile-time interface check
var _ ProfileRepository = (*PostgresProfileRepo)(nil)
