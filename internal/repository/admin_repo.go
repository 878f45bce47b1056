package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"facetrust/internal/domain"
)

// AdminRepository define el contrato de persistencia para administradores.
type AdminRepository interface {
	Create(ctx context.Context, admin domain.Admin) error
	GetByID(ctx context.Context, id string) (domain.Admin, error)
	GetByEmail(ctx context.Context, email string) (domain.Admin, error)
	Count(ctx context.Context) (int64, error)
	UpdateOTP(ctx context.Context, id, codeHash string, expiresAt time.Time) error
	VerifyEmail(ctx context.Context, id string, verifiedAt time.Time) error
}

// PgAdminRepository implementa AdminRepository usando pgxpool.
type PgAdminRepository struct {
	pool *pgxpool.Pool
}

func NewPgAdminRepository(pool *pgxpool.Pool) *PgAdminRepository {
	return &PgAdminRepository{pool: pool}
}

func (r *PgAdminRepository) Create(ctx context.Context, admin domain.Admin) error {
	const query = `
		INSERT INTO admins (id, email, display_name, password_hash, email_verified_at, otp_code_hash, otp_expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.pool.Exec(ctx, query,
		admin.ID,
		admin.Email,
		admin.DisplayName,
		admin.PasswordHash,
		admin.EmailVerifiedAt,
		admin.OtpCodeHash,
		admin.OtpExpiresAt,
		admin.CreatedAt,
	)
	return err
}

func (r *PgAdminRepository) GetByID(ctx context.Context, id string) (domain.Admin, error) {
	const query = `
		SELECT id, email, display_name, password_hash, email_verified_at, otp_code_hash, otp_expires_at, created_at
		FROM admins
		WHERE id = $1
	`
	return r.scanOne(ctx, query, id)
}

func (r *PgAdminRepository) GetByEmail(ctx context.Context, email string) (domain.Admin, error) {
	const query = `
		SELECT id, email, display_name, password_hash, email_verified_at, otp_code_hash, otp_expires_at, created_at
		FROM admins
		WHERE email = $1
	`
	return r.scanOne(ctx, query, email)
}

func (r *PgAdminRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM admins`).Scan(&n)
	return n, err
}

func (r *PgAdminRepository) UpdateOTP(ctx context.Context, id, codeHash string, expiresAt time.Time) error {
	const query = `
		UPDATE admins
		SET otp_code_hash = $2, otp_expires_at = $3
		WHERE id = $1
	`
	_, err := r.pool.Exec(ctx, query, id, codeHash, expiresAt)
	return err
}

func (r *PgAdminRepository) VerifyEmail(ctx context.Context, id string, verifiedAt time.Time) error {
	const query = `
		UPDATE admins
		SET email_verified_at = $2, otp_code_hash = '', otp_expires_at = NULL
		WHERE id = $1
	`
	_, err := r.pool.Exec(ctx, query, id, verifiedAt)
	return err
}

func (r *PgAdminRepository) scanOne(ctx context.Context, query string, arg any) (domain.Admin, error) {
	var a domain.Admin
	err := r.pool.QueryRow(ctx, query, arg).Scan(
		&a.ID,
		&a.Email,
		&a.DisplayName,
		&a.PasswordHash,
		&a.EmailVerifiedAt,
		&a.OtpCodeHash,
		&a.OtpExpiresAt,
		&a.CreatedAt,
	)
	return a, err
}
