package users

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/autobizz/autobet/pkg/auth"
	"github.com/autobizz/autobet/pkg/database"
)

var (
	ErrUserAlreadyExists  = errors.New("user with this email or username already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid or expired refresh token")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserSuspended      = errors.New("user account is suspended")
	ErrInvalidInput       = errors.New("invalid input")
	ErrRoleRestricted     = errors.New("role selection is restricted")
	ErrNoUpdates          = errors.New("no valid updates provided")
)

var usernameRe = regexp.MustCompile(`^[A-Za-z0-9_.-]{3,32}$`)

const minPasswordLen = 12

type Service struct {
	userRepo  UserRepository
	tokenRepo TokenRepository
	auditRepo AuditRepository
	signer    *auth.Signer
	txManager database.TransactionManager
}

func NewService(
	userRepo UserRepository,
	tokenRepo TokenRepository,
	auditRepo AuditRepository,
	signer *auth.Signer,
	txManager database.TransactionManager,
) *Service {
	return &Service{
		userRepo:  userRepo,
		tokenRepo: tokenRepo,
		auditRepo: auditRepo,
		signer:    signer,
		txManager: txManager,
	}
}

// Register creates a buyer account. Self-registration never grants any other
// role; sellers and admins are provisioned through the admin surface.
func (s *Service) Register(ctx context.Context, email, username, password, requestedRole string) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	username = strings.TrimSpace(username)

	if err := validateCredentials(email, username, password); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if requestedRole != "" && requestedRole != string(RoleBuyer) {
		return nil, ErrRoleRestricted
	}

	taken, err := s.userRepo.ExistsByEmailOrUsername(ctx, email, username)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if taken {
		return nil, ErrUserAlreadyExists
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &User{
		ID:           uuid.New(),
		Email:        email,
		Username:     username,
		PasswordHash: hash,
		Role:         RoleBuyer,
		Status:       StatusActive,
		CreatedAt:    time.Now(),
	}

	tx, err := s.txManager.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.userRepo.CreateUser(ctx, tx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return user, nil
}

// Login authenticates by username or email and returns a token pair.
func (s *Service) Login(ctx context.Context, identifier, password, userAgent, ip string) (*User, string, string, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return nil, "", "", ErrInvalidCredentials
	}

	user, err := s.userRepo.GetUserByIdentifier(ctx, identifier)
	if err != nil {
		return nil, "", "", fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, "", "", ErrInvalidCredentials
	}

	valid, err := auth.VerifyPassword(user.PasswordHash, password)
	if err != nil {
		return nil, "", "", fmt.Errorf("failed to verify password: %w", err)
	}
	if !valid {
		return nil, "", "", ErrInvalidCredentials
	}

	if !user.IsActive() {
		return nil, "", "", ErrUserSuspended
	}

	access, refresh, err := s.generateAndSaveTokens(ctx, user, userAgent, ip)
	if err != nil {
		return nil, "", "", err
	}
	return user, access, refresh, nil
}

// Refresh rotates the presented refresh token and issues a new pair.
func (s *Service) Refresh(ctx context.Context, refreshToken, userAgent, ip string) (string, string, error) {
	tokenHash := hashToken(refreshToken)

	storedToken, err := s.tokenRepo.GetRefreshToken(ctx, tokenHash)
	if err != nil {
		return "", "", fmt.Errorf("failed to get refresh token: %w", err)
	}
	if storedToken == nil || storedToken.Revoked || time.Now().After(storedToken.ExpiresAt) {
		return "", "", ErrInvalidToken
	}

	user, err := s.userRepo.GetUserByID(ctx, storedToken.UserID)
	if err != nil {
		return "", "", fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return "", "", ErrUserNotFound
	}
	if !user.IsActive() {
		return "", "", ErrUserSuspended
	}

	// Rotate: revoke the old token and persist the new hash in one transaction.
	tx, err := s.txManager.BeginTx(ctx)
	if err != nil {
		return "", "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.tokenRepo.RevokeRefreshToken(ctx, tx, tokenHash); err != nil {
		return "", "", fmt.Errorf("failed to revoke token: %w", err)
	}

	tokenPair, err := s.signer.GenerateTokens(user.ID, user.Username, string(user.Role), string(user.Status))
	if err != nil {
		return "", "", fmt.Errorf("failed to generate tokens: %w", err)
	}

	newStoredToken := &RefreshToken{
		TokenHash: hashToken(tokenPair.RefreshToken),
		UserID:    user.ID,
		ExpiresAt: time.Now().Add(auth.RefreshTokenTTL),
		CreatedAt: time.Now(),
		UserAgent: userAgent,
		IPAddress: ip,
	}

	if err := s.tokenRepo.CreateRefreshToken(ctx, tx, newStoredToken); err != nil {
		return "", "", fmt.Errorf("failed to save refresh token: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return "", "", fmt.Errorf("failed to commit transaction: %w", err)
	}

	return tokenPair.AccessToken, tokenPair.RefreshToken, nil
}

// Logout revokes the presented refresh token.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	tokenHash := hashToken(refreshToken)

	tx, err := s.txManager.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.tokenRepo.RevokeRefreshToken(ctx, tx, tokenHash); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}

	return tx.Commit(ctx)
}

func (s *Service) GetProfile(ctx context.Context, userID uuid.UUID) (*User, error) {
	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// ListUsers returns all users, newest first. Admin only; the handler gates.
func (s *Service) ListUsers(ctx context.Context) ([]*User, error) {
	return s.userRepo.ListUsers(ctx)
}

// CreateUser provisions a user with an explicit role and writes an audit entry.
func (s *Service) CreateUser(ctx context.Context, actorID uuid.UUID, email, username, password, role string) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	username = strings.TrimSpace(username)

	if err := validateCredentials(email, username, password); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if !ValidRole(role) {
		return nil, fmt.Errorf("%w: invalid role", ErrInvalidInput)
	}

	taken, err := s.userRepo.ExistsByEmailOrUsername(ctx, email, username)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if taken {
		return nil, ErrUserAlreadyExists
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &User{
		ID:           uuid.New(),
		Email:        email,
		Username:     username,
		PasswordHash: hash,
		Role:         Role(role),
		Status:       StatusActive,
		CreatedAt:    time.Now(),
	}

	tx, err := s.txManager.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.userRepo.CreateUser(ctx, tx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	audit := &AuditEntry{
		ID:         uuid.New(),
		ActorID:    actorID,
		Action:     "create_user",
		TargetType: "user",
		TargetID:   user.ID.String(),
		Meta:       map[string]any{"role": role},
		CreatedAt:  time.Now(),
	}
	if err := s.auditRepo.RecordEntry(ctx, tx, audit); err != nil {
		return nil, fmt.Errorf("failed to record audit entry: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return user, nil
}

// UserUpdates carries the optional admin-editable fields.
type UserUpdates struct {
	Status *string
	Role   *string
}

// UpdateUser applies status/role changes with one audit entry per change.
func (s *Service) UpdateUser(ctx context.Context, actorID, userID uuid.UUID, updates UserUpdates) (*User, error) {
	if updates.Status == nil && updates.Role == nil {
		return nil, ErrNoUpdates
	}
	if updates.Status != nil && !ValidStatus(*updates.Status) {
		return nil, fmt.Errorf("%w: invalid status", ErrInvalidInput)
	}
	if updates.Role != nil && !ValidRole(*updates.Role) {
		return nil, fmt.Errorf("%w: invalid role", ErrInvalidInput)
	}

	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	var auditEntries []*AuditEntry
	now := time.Now()

	if updates.Status != nil {
		user.Status = Status(*updates.Status)
		auditEntries = append(auditEntries, &AuditEntry{
			ID:         uuid.New(),
			ActorID:    actorID,
			Action:     "update_user_status",
			TargetType: "user",
			TargetID:   user.ID.String(),
			Meta:       map[string]any{"status": *updates.Status},
			CreatedAt:  now,
		})
	}
	if updates.Role != nil {
		user.Role = Role(*updates.Role)
		auditEntries = append(auditEntries, &AuditEntry{
			ID:         uuid.New(),
			ActorID:    actorID,
			Action:     "update_user_role",
			TargetType: "user",
			TargetID:   user.ID.String(),
			Meta:       map[string]any{"role": *updates.Role},
			CreatedAt:  now,
		})
	}

	tx, err := s.txManager.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.userRepo.UpdateUser(ctx, tx, user); err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	for _, entry := range auditEntries {
		if err := s.auditRepo.RecordEntry(ctx, tx, entry); err != nil {
			return nil, fmt.Errorf("failed to record audit entry: %w", err)
		}
	}

	// Suspension invalidates the user's refresh tokens immediately.
	if updates.Status != nil && user.Status == StatusSuspended {
		if err := s.tokenRepo.RevokeAllUserTokens(ctx, tx, user.ID); err != nil {
			return nil, fmt.Errorf("failed to revoke user tokens: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return user, nil
}

// RecordInvite stores an audit trail for an invitation. Actual mail delivery is
// out of band.
func (s *Service) RecordInvite(ctx context.Context, actorID uuid.UUID, email, role string) error {
	if !ValidRole(role) {
		return fmt.Errorf("%w: invalid role", ErrInvalidInput)
	}

	target := email
	if target == "" {
		target = "unknown"
	}

	tx, err := s.txManager.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	entry := &AuditEntry{
		ID:         uuid.New(),
		ActorID:    actorID,
		Action:     "invite_user",
		TargetType: "user",
		TargetID:   target,
		Meta:       map[string]any{"role": role},
		CreatedAt:  time.Now(),
	}
	if err := s.auditRepo.RecordEntry(ctx, tx, entry); err != nil {
		return fmt.Errorf("failed to record audit entry: %w", err)
	}

	return tx.Commit(ctx)
}

// RecordPasswordReset stores an audit trail for an admin-dispatched reset.
func (s *Service) RecordPasswordReset(ctx context.Context, actorID, userID uuid.UUID) error {
	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return ErrUserNotFound
	}

	tx, err := s.txManager.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	entry := &AuditEntry{
		ID:         uuid.New(),
		ActorID:    actorID,
		Action:     "reset_password",
		TargetType: "user",
		TargetID:   user.ID.String(),
		Meta:       map[string]any{},
		CreatedAt:  time.Now(),
	}
	if err := s.auditRepo.RecordEntry(ctx, tx, entry); err != nil {
		return fmt.Errorf("failed to record audit entry: %w", err)
	}

	return tx.Commit(ctx)
}

// Helpers

func (s *Service) generateAndSaveTokens(ctx context.Context, user *User, userAgent, ip string) (string, string, error) {
	tokenPair, err := s.signer.GenerateTokens(user.ID, user.Username, string(user.Role), string(user.Status))
	if err != nil {
		return "", "", fmt.Errorf("failed to generate tokens: %w", err)
	}

	refreshToken := &RefreshToken{
		TokenHash: hashToken(tokenPair.RefreshToken),
		UserID:    user.ID,
		ExpiresAt: time.Now().Add(auth.RefreshTokenTTL),
		CreatedAt: time.Now(),
		UserAgent: userAgent,
		IPAddress: ip,
	}

	tx, err := s.txManager.BeginTx(ctx)
	if err != nil {
		return "", "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.tokenRepo.CreateRefreshToken(ctx, tx, refreshToken); err != nil {
		return "", "", fmt.Errorf("failed to save refresh token: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return "", "", fmt.Errorf("failed to commit transaction: %w", err)
	}

	return tokenPair.AccessToken, tokenPair.RefreshToken, nil
}

func hashToken(token string) []byte {
	hash := sha256.Sum256([]byte(token))
	return hash[:]
}

func validateCredentials(email, username, password string) error {
	if !strings.Contains(email, "@") || len(email) < 3 {
		return errors.New("invalid email format")
	}
	if !usernameRe.MatchString(username) {
		return errors.New("username must be 3-32 characters and contain only letters, numbers, dots, underscores or hyphens")
	}
	if len(password) < minPasswordLen {
		return fmt.Errorf("password must be at least %d characters", minPasswordLen)
	}
	return nil
}
