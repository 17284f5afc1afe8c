package users

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/autobizz/autobet/pkg/auth"
)

type fakeTx struct {
	pgx.Tx
	committed  bool
	rolledBack bool
}

func (t *fakeTx) Commit(ctx context.Context) error {
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback(ctx context.Context) error {
	if !t.committed {
		t.rolledBack = true
	}
	return nil
}

type fakeTxManager struct {
	tx *fakeTx
}

func (m *fakeTxManager) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return m.tx, nil
}

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) CreateUser(ctx context.Context, tx pgx.Tx, user *User) error {
	args := m.Called(ctx, tx, user)
	return args.Error(0)
}

func (m *MockUserRepository) GetUserByID(ctx context.Context, id uuid.UUID) (*User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*User), args.Error(1)
}

func (m *MockUserRepository) GetUserByIdentifier(ctx context.Context, identifier string) (*User, error) {
	args := m.Called(ctx, identifier)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*User), args.Error(1)
}

func (m *MockUserRepository) ExistsByEmailOrUsername(ctx context.Context, email, username string) (bool, error) {
	args := m.Called(ctx, email, username)
	return args.Bool(0), args.Error(1)
}

func (m *MockUserRepository) ListUsers(ctx context.Context) ([]*User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*User), args.Error(1)
}

func (m *MockUserRepository) UpdateUser(ctx context.Context, tx pgx.Tx, user *User) error {
	args := m.Called(ctx, tx, user)
	return args.Error(0)
}

type MockTokenRepository struct {
	mock.Mock
}

func (m *MockTokenRepository) CreateRefreshToken(ctx context.Context, tx pgx.Tx, token *RefreshToken) error {
	args := m.Called(ctx, tx, token)
	return args.Error(0)
}

func (m *MockTokenRepository) GetRefreshToken(ctx context.Context, tokenHash []byte) (*RefreshToken, error) {
	args := m.Called(ctx, tokenHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*RefreshToken), args.Error(1)
}

func (m *MockTokenRepository) RevokeRefreshToken(ctx context.Context, tx pgx.Tx, tokenHash []byte) error {
	args := m.Called(ctx, tx, tokenHash)
	return args.Error(0)
}

func (m *MockTokenRepository) RevokeAllUserTokens(ctx context.Context, tx pgx.Tx, userID uuid.UUID) error {
	args := m.Called(ctx, tx, userID)
	return args.Error(0)
}

type MockAuditRepository struct {
	mock.Mock
}

func (m *MockAuditRepository) RecordEntry(ctx context.Context, tx pgx.Tx, entry *AuditEntry) error {
	args := m.Called(ctx, tx, entry)
	return args.Error(0)
}

func newTestService(t *testing.T) (*Service, *MockUserRepository, *MockTokenRepository, *MockAuditRepository, *fakeTx) {
	t.Helper()

	userRepo := new(MockUserRepository)
	tokenRepo := new(MockTokenRepository)
	auditRepo := new(MockAuditRepository)
	signer, err := auth.NewSigner([]byte("unit-test-secret"), "autobet")
	require.NoError(t, err)

	tx := &fakeTx{}
	svc := NewService(userRepo, tokenRepo, auditRepo, signer, &fakeTxManager{tx: tx})
	return svc, userRepo, tokenRepo, auditRepo, tx
}

func activeUser(t *testing.T, role Role, password string) *User {
	t.Helper()

	hash, err := auth.HashPassword(password)
	require.NoError(t, err)

	return &User{
		ID:           uuid.New(),
		Email:        "driver@example.com",
		Username:     "driver",
		PasswordHash: hash,
		Role:         role,
		Status:       StatusActive,
		CreatedAt:    time.Now(),
	}
}

func TestRegister(t *testing.T) {
	tests := []struct {
		name          string
		email         string
		username      string
		password      string
		requestedRole string
		setupMock     func(userRepo *MockUserRepository)
		wantErr       error
	}{
		{
			name:     "creates an active buyer",
			email:    "New.Buyer@Example.COM",
			username: "newbuyer",
			password: "a-long-enough-password",
			setupMock: func(userRepo *MockUserRepository) {
				userRepo.On("ExistsByEmailOrUsername", mock.Anything, "new.buyer@example.com", "newbuyer").Return(false, nil)
				userRepo.On("CreateUser", mock.Anything, mock.Anything, mock.MatchedBy(func(u *User) bool {
					return u.Email == "new.buyer@example.com" && u.Role == RoleBuyer && u.Status == StatusActive
				})).Return(nil)
			},
		},
		{
			name:     "rejects short password",
			email:    "buyer@example.com",
			username: "buyer",
			password: "short",
			wantErr:  ErrInvalidInput,
		},
		{
			name:     "rejects malformed username",
			email:    "buyer@example.com",
			username: "no spaces!",
			password: "a-long-enough-password",
			wantErr:  ErrInvalidInput,
		},
		{
			name:     "rejects invalid email",
			email:    "not-an-email",
			username: "buyer",
			password: "a-long-enough-password",
			wantErr:  ErrInvalidInput,
		},
		{
			name:          "rejects self-service seller signup",
			email:         "seller@example.com",
			username:      "wannabe_seller",
			password:      "a-long-enough-password",
			requestedRole: "seller",
			wantErr:       ErrRoleRestricted,
		},
		{
			name:     "rejects taken identity",
			email:    "taken@example.com",
			username: "taken",
			password: "a-long-enough-password",
			setupMock: func(userRepo *MockUserRepository) {
				userRepo.On("ExistsByEmailOrUsername", mock.Anything, "taken@example.com", "taken").Return(true, nil)
			},
			wantErr: ErrUserAlreadyExists,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, userRepo, _, _, tx := newTestService(t)
			if tt.setupMock != nil {
				tt.setupMock(userRepo)
			}

			user, err := svc.Register(context.Background(), tt.email, tt.username, tt.password, tt.requestedRole)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, user)
				assert.False(t, tx.committed)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, RoleBuyer, user.Role)
			assert.True(t, tx.committed)
			userRepo.AssertExpectations(t)
		})
	}
}

func TestRegister_BuyerRoleAllowedExplicitly(t *testing.T) {
	svc, userRepo, _, _, _ := newTestService(t)
	userRepo.On("ExistsByEmailOrUsername", mock.Anything, mock.Anything, mock.Anything).Return(false, nil)
	userRepo.On("CreateUser", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	user, err := svc.Register(context.Background(), "buyer@example.com", "buyer", "a-long-enough-password", "buyer")

	require.NoError(t, err)
	assert.Equal(t, RoleBuyer, user.Role)
}

func TestRegister_PasswordWhitespacePreserved(t *testing.T) {
	const password = "  padded password 123  "

	svc, userRepo, _, _, tx := newTestService(t)
	userRepo.On("ExistsByEmailOrUsername", mock.Anything, mock.Anything, mock.Anything).Return(false, nil)

	var created *User
	userRepo.On("CreateUser", mock.Anything, mock.Anything, mock.AnythingOfType("*users.User")).
		Run(func(args mock.Arguments) { created = args.Get(2).(*User) }).
		Return(nil)

	_, err := svc.Register(context.Background(), "pad@example.com", "padded_buyer", password, "")
	require.NoError(t, err)
	require.NotNil(t, created)
	assert.True(t, tx.committed)

	// The hash covers the password exactly as submitted, spaces included.
	match, err := auth.VerifyPassword(created.PasswordHash, password)
	require.NoError(t, err)
	assert.True(t, match)

	match, err = auth.VerifyPassword(created.PasswordHash, "padded password 123")
	require.NoError(t, err)
	assert.False(t, match)
}

func TestRegister_ConcurrentDuplicateInsert(t *testing.T) {
	// The existence check races with another registration; the unique
	// constraint surfaces through the repository as the conflict error.
	svc, userRepo, _, _, tx := newTestService(t)
	userRepo.On("ExistsByEmailOrUsername", mock.Anything, mock.Anything, mock.Anything).Return(false, nil)
	userRepo.On("CreateUser", mock.Anything, mock.Anything, mock.Anything).Return(ErrUserAlreadyExists)

	user, err := svc.Register(context.Background(), "taken@example.com", "taken", "a-long-enough-password", "")

	assert.ErrorIs(t, err, ErrUserAlreadyExists)
	assert.Nil(t, user)
	assert.False(t, tx.committed)
}

func TestLogin(t *testing.T) {
	const password = "correct-horse-battery"

	tests := []struct {
		name       string
		identifier string
		password   string
		setupMock  func(t *testing.T, userRepo *MockUserRepository, tokenRepo *MockTokenRepository)
		wantErr    error
	}{
		{
			name:       "succeeds with matching password",
			identifier: "driver",
			password:   password,
			setupMock: func(t *testing.T, userRepo *MockUserRepository, tokenRepo *MockTokenRepository) {
				userRepo.On("GetUserByIdentifier", mock.Anything, "driver").Return(activeUser(t, RoleBuyer, password), nil)
				tokenRepo.On("CreateRefreshToken", mock.Anything, mock.Anything, mock.MatchedBy(func(rt *RefreshToken) bool {
					return len(rt.TokenHash) == 32 && rt.UserAgent == "test-agent" && rt.IPAddress == "10.0.0.1"
				})).Return(nil)
			},
		},
		{
			name:       "rejects empty identifier",
			identifier: "   ",
			password:   password,
			wantErr:    ErrInvalidCredentials,
		},
		{
			name:       "rejects unknown user",
			identifier: "ghost",
			password:   password,
			setupMock: func(t *testing.T, userRepo *MockUserRepository, tokenRepo *MockTokenRepository) {
				userRepo.On("GetUserByIdentifier", mock.Anything, "ghost").Return(nil, nil)
			},
			wantErr: ErrInvalidCredentials,
		},
		{
			name:       "rejects wrong password",
			identifier: "driver",
			password:   "not-the-password",
			setupMock: func(t *testing.T, userRepo *MockUserRepository, tokenRepo *MockTokenRepository) {
				userRepo.On("GetUserByIdentifier", mock.Anything, "driver").Return(activeUser(t, RoleBuyer, password), nil)
			},
			wantErr: ErrInvalidCredentials,
		},
		{
			name:       "rejects suspended account",
			identifier: "driver",
			password:   password,
			setupMock: func(t *testing.T, userRepo *MockUserRepository, tokenRepo *MockTokenRepository) {
				suspended := activeUser(t, RoleBuyer, password)
				suspended.Status = StatusSuspended
				userRepo.On("GetUserByIdentifier", mock.Anything, "driver").Return(suspended, nil)
			},
			wantErr: ErrUserSuspended,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, userRepo, tokenRepo, _, _ := newTestService(t)
			if tt.setupMock != nil {
				tt.setupMock(t, userRepo, tokenRepo)
			}

			user, access, refresh, err := svc.Login(context.Background(), tt.identifier, tt.password, "test-agent", "10.0.0.1")

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, user)
				assert.Empty(t, access)
				return
			}

			require.NoError(t, err)
			assert.NotEmpty(t, access)
			assert.NotEmpty(t, refresh)
			assert.Equal(t, "driver", user.Username)
			tokenRepo.AssertExpectations(t)
		})
	}
}

func TestRefresh(t *testing.T) {
	user := &User{
		ID:       uuid.New(),
		Username: "driver",
		Role:     RoleBuyer,
		Status:   StatusActive,
	}

	validStored := func() *RefreshToken {
		return &RefreshToken{
			TokenHash: hashToken("old-refresh-token"),
			UserID:    user.ID,
			ExpiresAt: time.Now().Add(time.Hour),
			CreatedAt: time.Now().Add(-time.Hour),
		}
	}

	tests := []struct {
		name      string
		setupMock func(userRepo *MockUserRepository, tokenRepo *MockTokenRepository)
		wantErr   error
	}{
		{
			name: "rotates the token",
			setupMock: func(userRepo *MockUserRepository, tokenRepo *MockTokenRepository) {
				tokenRepo.On("GetRefreshToken", mock.Anything, hashToken("old-refresh-token")).Return(validStored(), nil)
				userRepo.On("GetUserByID", mock.Anything, user.ID).Return(user, nil)
				tokenRepo.On("RevokeRefreshToken", mock.Anything, mock.Anything, hashToken("old-refresh-token")).Return(nil)
				tokenRepo.On("CreateRefreshToken", mock.Anything, mock.Anything, mock.Anything).Return(nil)
			},
		},
		{
			name: "rejects unknown token",
			setupMock: func(userRepo *MockUserRepository, tokenRepo *MockTokenRepository) {
				tokenRepo.On("GetRefreshToken", mock.Anything, mock.Anything).Return(nil, nil)
			},
			wantErr: ErrInvalidToken,
		},
		{
			name: "rejects revoked token",
			setupMock: func(userRepo *MockUserRepository, tokenRepo *MockTokenRepository) {
				stored := validStored()
				stored.Revoked = true
				tokenRepo.On("GetRefreshToken", mock.Anything, mock.Anything).Return(stored, nil)
			},
			wantErr: ErrInvalidToken,
		},
		{
			name: "rejects expired token",
			setupMock: func(userRepo *MockUserRepository, tokenRepo *MockTokenRepository) {
				stored := validStored()
				stored.ExpiresAt = time.Now().Add(-time.Minute)
				tokenRepo.On("GetRefreshToken", mock.Anything, mock.Anything).Return(stored, nil)
			},
			wantErr: ErrInvalidToken,
		},
		{
			name: "rejects suspended user",
			setupMock: func(userRepo *MockUserRepository, tokenRepo *MockTokenRepository) {
				tokenRepo.On("GetRefreshToken", mock.Anything, mock.Anything).Return(validStored(), nil)
				suspended := *user
				suspended.Status = StatusSuspended
				userRepo.On("GetUserByID", mock.Anything, user.ID).Return(&suspended, nil)
			},
			wantErr: ErrUserSuspended,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, userRepo, tokenRepo, _, tx := newTestService(t)
			tt.setupMock(userRepo, tokenRepo)

			access, refresh, err := svc.Refresh(context.Background(), "old-refresh-token", "test-agent", "10.0.0.1")

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, access)
				assert.False(t, tx.committed)
				return
			}

			require.NoError(t, err)
			assert.NotEmpty(t, access)
			assert.NotEmpty(t, refresh)
			assert.NotEqual(t, "old-refresh-token", refresh)
			assert.True(t, tx.committed)
			tokenRepo.AssertExpectations(t)
		})
	}
}

func TestLogout_RevokesToken(t *testing.T) {
	svc, _, tokenRepo, _, tx := newTestService(t)
	tokenRepo.On("RevokeRefreshToken", mock.Anything, mock.Anything, hashToken("some-refresh-token")).Return(nil)

	err := svc.Logout(context.Background(), "some-refresh-token")

	require.NoError(t, err)
	assert.True(t, tx.committed)
	tokenRepo.AssertExpectations(t)
}

func TestCreateUser(t *testing.T) {
	actorID := uuid.New()

	tests := []struct {
		name      string
		role      string
		setupMock func(userRepo *MockUserRepository, auditRepo *MockAuditRepository)
		wantErr   error
	}{
		{
			name: "provisions a seller with an audit entry",
			role: "seller",
			setupMock: func(userRepo *MockUserRepository, auditRepo *MockAuditRepository) {
				userRepo.On("ExistsByEmailOrUsername", mock.Anything, "dealer@example.com", "dealer").Return(false, nil)
				userRepo.On("CreateUser", mock.Anything, mock.Anything, mock.MatchedBy(func(u *User) bool {
					return u.Role == RoleSeller && u.Status == StatusActive
				})).Return(nil)
				auditRepo.On("RecordEntry", mock.Anything, mock.Anything, mock.MatchedBy(func(e *AuditEntry) bool {
					return e.Action == "create_user" && e.ActorID == actorID && e.Meta["role"] == "seller"
				})).Return(nil)
			},
		},
		{
			name:    "rejects unknown role",
			role:    "superuser",
			wantErr: ErrInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, userRepo, _, auditRepo, tx := newTestService(t)
			if tt.setupMock != nil {
				tt.setupMock(userRepo, auditRepo)
			}

			user, err := svc.CreateUser(context.Background(), actorID, "dealer@example.com", "dealer", "a-long-enough-password", tt.role)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, user)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, RoleSeller, user.Role)
			assert.True(t, tx.committed)
			userRepo.AssertExpectations(t)
			auditRepo.AssertExpectations(t)
		})
	}
}

func TestUpdateUser(t *testing.T) {
	actorID := uuid.New()
	suspended := "suspended"
	active := "active"
	seller := "seller"
	bogus := "root"

	tests := []struct {
		name      string
		updates   UserUpdates
		setupMock func(target *User, userRepo *MockUserRepository, tokenRepo *MockTokenRepository, auditRepo *MockAuditRepository)
		wantErr   error
	}{
		{
			name:    "suspension revokes all refresh tokens",
			updates: UserUpdates{Status: &suspended},
			setupMock: func(target *User, userRepo *MockUserRepository, tokenRepo *MockTokenRepository, auditRepo *MockAuditRepository) {
				userRepo.On("GetUserByID", mock.Anything, target.ID).Return(target, nil)
				userRepo.On("UpdateUser", mock.Anything, mock.Anything, mock.MatchedBy(func(u *User) bool {
					return u.Status == StatusSuspended
				})).Return(nil)
				auditRepo.On("RecordEntry", mock.Anything, mock.Anything, mock.MatchedBy(func(e *AuditEntry) bool {
					return e.Action == "update_user_status" && e.Meta["status"] == "suspended"
				})).Return(nil)
				tokenRepo.On("RevokeAllUserTokens", mock.Anything, mock.Anything, target.ID).Return(nil)
			},
		},
		{
			name:    "reactivation does not touch tokens",
			updates: UserUpdates{Status: &active},
			setupMock: func(target *User, userRepo *MockUserRepository, tokenRepo *MockTokenRepository, auditRepo *MockAuditRepository) {
				target.Status = StatusSuspended
				userRepo.On("GetUserByID", mock.Anything, target.ID).Return(target, nil)
				userRepo.On("UpdateUser", mock.Anything, mock.Anything, mock.Anything).Return(nil)
				auditRepo.On("RecordEntry", mock.Anything, mock.Anything, mock.Anything).Return(nil)
			},
		},
		{
			name:    "role change writes its own audit entry",
			updates: UserUpdates{Role: &seller},
			setupMock: func(target *User, userRepo *MockUserRepository, tokenRepo *MockTokenRepository, auditRepo *MockAuditRepository) {
				userRepo.On("GetUserByID", mock.Anything, target.ID).Return(target, nil)
				userRepo.On("UpdateUser", mock.Anything, mock.Anything, mock.MatchedBy(func(u *User) bool {
					return u.Role == RoleSeller
				})).Return(nil)
				auditRepo.On("RecordEntry", mock.Anything, mock.Anything, mock.MatchedBy(func(e *AuditEntry) bool {
					return e.Action == "update_user_role" && e.Meta["role"] == "seller"
				})).Return(nil)
			},
		},
		{
			name:    "no fields",
			updates: UserUpdates{},
			wantErr: ErrNoUpdates,
		},
		{
			name:    "invalid role value",
			updates: UserUpdates{Role: &bogus},
			wantErr: ErrInvalidInput,
		},
		{
			name:    "unknown user",
			updates: UserUpdates{Status: &suspended},
			setupMock: func(target *User, userRepo *MockUserRepository, tokenRepo *MockTokenRepository, auditRepo *MockAuditRepository) {
				userRepo.On("GetUserByID", mock.Anything, target.ID).Return(nil, nil)
			},
			wantErr: ErrUserNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, userRepo, tokenRepo, auditRepo, tx := newTestService(t)
			target := &User{
				ID:       uuid.New(),
				Email:    "target@example.com",
				Username: "target",
				Role:     RoleBuyer,
				Status:   StatusActive,
			}
			if tt.setupMock != nil {
				tt.setupMock(target, userRepo, tokenRepo, auditRepo)
			}

			updated, err := svc.UpdateUser(context.Background(), actorID, target.ID, tt.updates)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, updated)
				assert.False(t, tx.committed)
				return
			}

			require.NoError(t, err)
			assert.True(t, tx.committed)
			userRepo.AssertExpectations(t)
			tokenRepo.AssertExpectations(t)
			auditRepo.AssertExpectations(t)
		})
	}
}

func TestRecordInvite(t *testing.T) {
	svc, _, _, auditRepo, tx := newTestService(t)
	actorID := uuid.New()
	auditRepo.On("RecordEntry", mock.Anything, mock.Anything, mock.MatchedBy(func(e *AuditEntry) bool {
		return e.Action == "invite_user" && e.TargetID == "invitee@example.com" && e.Meta["role"] == "seller"
	})).Return(nil)

	err := svc.RecordInvite(context.Background(), actorID, "invitee@example.com", "seller")

	require.NoError(t, err)
	assert.True(t, tx.committed)
	auditRepo.AssertExpectations(t)
}

func TestRecordInvite_InvalidRole(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)

	err := svc.RecordInvite(context.Background(), uuid.New(), "invitee@example.com", "owner")

	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestRecordPasswordReset(t *testing.T) {
	svc, userRepo, _, auditRepo, tx := newTestService(t)
	actorID := uuid.New()
	target := &User{ID: uuid.New(), Username: "target", Role: RoleBuyer, Status: StatusActive}
	userRepo.On("GetUserByID", mock.Anything, target.ID).Return(target, nil)
	auditRepo.On("RecordEntry", mock.Anything, mock.Anything, mock.MatchedBy(func(e *AuditEntry) bool {
		return e.Action == "reset_password" && e.TargetID == target.ID.String()
	})).Return(nil)

	err := svc.RecordPasswordReset(context.Background(), actorID, target.ID)

	require.NoError(t, err)
	assert.True(t, tx.committed)
	auditRepo.AssertExpectations(t)
}
