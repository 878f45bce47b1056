package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"facetrust/internal/domain"
	"facetrust/internal/email"
	"facetrust/internal/repository"
)

// AdminService coordina reglas de negocio para cuentas de administrador:
// alta, login con password y verificacion de email por OTP.
type AdminService struct {
	logger      *zap.Logger
	admins      repository.AdminRepository
	emailSender email.Sender
	otpLimiter  OTPRateLimiter
}

func NewAdminService(logger *zap.Logger, admins repository.AdminRepository, emailSender email.Sender, otpLimiter OTPRateLimiter) *AdminService {
	if otpLimiter == nil {
		otpLimiter = NewOTPRateLimiter(otpTTL, 3)
	}
	return &AdminService{
		logger:      logger,
		admins:      admins,
		emailSender: emailSender,
		otpLimiter:  otpLimiter,
	}
}

type CreateAdminInput struct {
	Email       string
	DisplayName string
	Password    string
}

var (
	ErrAdminNotFound      = errors.New("admin not found")
	ErrOTPNotRequested    = errors.New("otp not requested")
	ErrOTPExpired         = errors.New("otp expired")
	ErrOTPInvalid         = errors.New("otp invalid")
	ErrEmailSendFailure   = errors.New("email send failed")
	ErrRateLimited        = errors.New("rate limited")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidEmail       = errors.New("invalid email")
	ErrWeakPassword       = errors.New("password too short")
)

const otpTTL = 10 * time.Minute

func (s *AdminService) CreateAdmin(ctx context.Context, input CreateAdminInput) (domain.Admin, error) {
	if s.admins == nil {
		return domain.Admin{}, errors.New("admin service not configured")
	}

	emailAddr := normalizeEmail(input.Email)
	if emailAddr == "" {
		return domain.Admin{}, ErrInvalidEmail
	}
	password := strings.TrimSpace(input.Password)
	if len(password) < 8 {
		return domain.Admin{}, ErrWeakPassword
	}

	hashBytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return domain.Admin{}, err
	}

	admin := domain.Admin{
		ID:           uuid.NewString(),
		Email:        emailAddr,
		DisplayName:  strings.TrimSpace(input.DisplayName),
		PasswordHash: string(hashBytes),
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.admins.Create(ctx, admin); err != nil {
		return domain.Admin{}, err
	}
	return admin, nil
}

// HasAdmins indica si ya existe al menos una cuenta de administrador.
func (s *AdminService) HasAdmins(ctx context.Context) (bool, error) {
	if s.admins == nil {
		return false, errors.New("admin service not configured")
	}
	n, err := s.admins.Count(ctx)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *AdminService) Authenticate(ctx context.Context, emailAddr, password string) (domain.Admin, error) {
	if s.admins == nil {
		return domain.Admin{}, errors.New("admin service not configured")
	}

	emailAddr = normalizeEmail(emailAddr)
	password = strings.TrimSpace(password)
	if emailAddr == "" || password == "" {
		return domain.Admin{}, ErrInvalidCredentials
	}
	admin, err := s.admins.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Admin{}, ErrInvalidCredentials
		}
		return domain.Admin{}, err
	}
	if admin.PasswordHash == "" {
		return domain.Admin{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(password)); err != nil {
		return domain.Admin{}, ErrInvalidCredentials
	}
	return admin, nil
}

// RequestOTP envia un codigo de verificacion de email al administrador.
func (s *AdminService) RequestOTP(ctx context.Context, emailAddr string) (domain.Admin, error) {
	if s.admins == nil {
		return domain.Admin{}, errors.New("admin service not configured")
	}

	emailAddr = normalizeEmail(emailAddr)
	if emailAddr == "" {
		return domain.Admin{}, ErrInvalidEmail
	}
	if s.otpLimiter != nil && !s.otpLimiter.Allow(emailAddr) {
		return domain.Admin{}, ErrRateLimited
	}

	admin, err := s.admins.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Admin{}, ErrAdminNotFound
		}
		return domain.Admin{}, err
	}

	code, hash, expiresAt, err := generateOTP()
	if err != nil {
		return domain.Admin{}, err
	}
	if err := s.admins.UpdateOTP(ctx, admin.ID, hash, expiresAt); err != nil {
		return domain.Admin{}, err
	}

	if s.emailSender == nil {
		return domain.Admin{}, ErrEmailSendFailure
	}
	if err := s.emailSender.SendVerificationOTP(ctx, emailAddr, code, expiresAt); err != nil {
		if s.logger != nil {
			s.logger.Warn("send verification otp failed", zap.Error(err), zap.String("email", emailAddr))
		}
		return domain.Admin{}, ErrEmailSendFailure
	}

	admin.OtpExpiresAt = &expiresAt
	return admin, nil
}

func (s *AdminService) VerifyOTP(ctx context.Context, emailAddr, code string) (domain.Admin, error) {
	if s.admins == nil {
		return domain.Admin{}, errors.New("admin service not configured")
	}

	emailAddr = normalizeEmail(emailAddr)
	code = strings.TrimSpace(code)
	if emailAddr == "" {
		return domain.Admin{}, ErrInvalidEmail
	}
	if !isValidOTPCode(code) {
		return domain.Admin{}, ErrOTPInvalid
	}

	admin, err := s.admins.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Admin{}, ErrAdminNotFound
		}
		return domain.Admin{}, err
	}

	if admin.OtpCodeHash == "" || admin.OtpExpiresAt == nil {
		return domain.Admin{}, ErrOTPNotRequested
	}
	if time.Now().UTC().After(*admin.OtpExpiresAt) {
		return domain.Admin{}, ErrOTPExpired
	}
	if !verifyOTP(code, admin.OtpCodeHash) {
		return domain.Admin{}, ErrOTPInvalid
	}

	verifiedAt := time.Now().UTC()
	if err := s.admins.VerifyEmail(ctx, admin.ID, verifiedAt); err != nil {
		return domain.Admin{}, err
	}

	admin.EmailVerifiedAt = &verifiedAt
	admin.OtpCodeHash = ""
	admin.OtpExpiresAt = nil
	return admin, nil
}

func generateOTP() (string, string, time.Time, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", "", time.Time{}, err
	}
	code := fmt.Sprintf("%06d", n.Int64())

	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return "", "", time.Time{}, err
	}
	saltStr := base64.StdEncoding.EncodeToString(salt)
	hashBytes := sha256.Sum256([]byte(saltStr + ":" + code))
	hash := base64.StdEncoding.EncodeToString(hashBytes[:])

	expiresAt := time.Now().UTC().Add(otpTTL)
	return code, saltStr + ":" + hash, expiresAt, nil
}

func verifyOTP(code, stored string) bool {
	parts := strings.Split(stored, ":")
	if len(parts) != 2 {
		return false
	}
	saltStr := parts[0]
	expectedHash := parts[1]
	hashBytes := sha256.Sum256([]byte(saltStr + ":" + code))
	hash := base64.StdEncoding.EncodeToString(hashBytes[:])
	return subtle.ConstantTimeCompare([]byte(hash), []byte(expectedHash)) == 1
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func isValidOTPCode(code string) bool {
	if len(code) != 6 {
		return false
	}
	for _, r := range code {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// OTPRateLimiter limita la frecuencia de solicitudes de OTP por clave.
type OTPRateLimiter interface {
	Allow(key string) bool
}

type otpRateLimiter struct {
	mu     sync.Mutex
	window time.Duration
	max    int
	hits   map[string][]time.Time
}

// NewOTPRateLimiter crea un rate limiter en memoria.
func NewOTPRateLimiter(window time.Duration, max int) OTPRateLimiter {
	if max <= 0 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &otpRateLimiter{
		window: window,
		max:    max,
		hits:   make(map[string][]time.Time),
	}
}

func (l *otpRateLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now().UTC()
	cutoff := now.Add(-l.window)
	entries := l.hits[key]
	kept := entries[:0]
	for _, ts := range entries {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.max {
		l.hits[key] = kept
		return false
	}
	kept = append(kept, now)
	l.hits[key] = kept
	return true
}
