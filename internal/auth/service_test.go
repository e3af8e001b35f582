package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/inkpress/inkpress/internal/shared"
	"github.com/inkpress/inkpress/internal/token"
)

type memoryAuthRepo struct {
	mu       sync.Mutex
	users    map[int64]User
	sessions []Session
	nextID   int64
	failOn   string
}

type memoryAuthTx struct {
	repo *memoryAuthRepo
}

func newMemoryAuthRepo() *memoryAuthRepo {
	return &memoryAuthRepo{users: make(map[int64]User)}
}

func (r *memoryAuthRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	users := make(map[int64]User, len(r.users))
	for id, u := range r.users {
		users[id] = u
	}
	sessions := len(r.sessions)
	if err := fn(ctx, &memoryAuthTx{repo: r}); err != nil {
		r.users = users
		r.sessions = r.sessions[:sessions]
		return err
	}
	return nil
}

func (r *memoryAuthRepo) FindByID(ctx context.Context, id int64) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failOn == "find" {
		return nil, errors.New("connection reset")
	}
	user, ok := r.users[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &user, nil
}

func (r *memoryAuthRepo) CreateUser(ctx context.Context, in NewUser) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == in.Email {
			return nil, shared.ErrConflict
		}
	}
	r.nextID++
	user := User{
		ID:           r.nextID,
		Name:         in.Name,
		Lastname:     in.Lastname,
		Email:        in.Email,
		PasswordHash: in.PasswordHash,
		Role:         in.Role,
		IsActive:     true,
	}
	r.users[user.ID] = user
	return &user, nil
}

func (r *memoryAuthRepo) put(user User) User {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user.ID == 0 {
		r.nextID++
		user.ID = r.nextID
	}
	r.users[user.ID] = user
	return user
}

func (r *memoryAuthRepo) get(id int64) User {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.users[id]
}

func (r *memoryAuthRepo) sessionCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (tx *memoryAuthTx) LockUserByEmail(ctx context.Context, email string) (*User, error) {
	if tx.repo.failOn == "lock" {
		return nil, errors.New("connection reset")
	}
	for _, u := range tx.repo.users {
		if u.Email == email {
			user := u
			return &user, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (tx *memoryAuthTx) IncrementFailedLogins(ctx context.Context, userID int64) (int, error) {
	user := tx.repo.users[userID]
	user.FailedLoginCount++
	tx.repo.users[userID] = user
	return user.FailedLoginCount, nil
}

func (tx *memoryAuthTx) RecordSuccessfulLogin(ctx context.Context, userID int64, at time.Time) error {
	user := tx.repo.users[userID]
	user.FailedLoginCount = 0
	user.LastLoginAt = &at
	tx.repo.users[userID] = user
	return nil
}

func (tx *memoryAuthTx) CreateSession(ctx context.Context, sess Session) error {
	if tx.repo.failOn == "session" {
		return errors.New("disk full")
	}
	tx.repo.sessions = append(tx.repo.sessions, sess)
	return nil
}

type recordingNotifier struct {
	calls []int64
	err   error
}

func (n *recordingNotifier) AccountLocked(ctx context.Context, userID int64, email string) error {
	n.calls = append(n.calls, userID)
	return n.err
}

type recordingMetrics struct {
	outcomes []string
}

func (m *recordingMetrics) ObserveLogin(outcome string) {
	m.outcomes = append(m.outcomes, outcome)
}

const testPassword = "correct-horse"

var testHasher = NewBcryptHasher(bcrypt.MinCost)

func newTestCodec(t *testing.T) *token.Codec {
	t.Helper()
	codec, err := token.NewCodec(token.Config{
		AccessSecret:  []byte("test-access"),
		RefreshSecret: []byte("test-refresh"),
		Issuer:        "inkpress-test",
	})
	require.NoError(t, err)
	return codec
}

func newTestService(t *testing.T, repo *memoryAuthRepo, cfg ServiceConfig) *Service {
	t.Helper()
	return NewService(repo, newTestCodec(t), testHasher, cfg)
}

func seedUser(t *testing.T, repo *memoryAuthRepo, email string, failed int, active bool) User {
	t.Helper()
	hash, err := testHasher.Hash(testPassword)
	require.NoError(t, err)
	return repo.put(User{
		Name:             "Alice",
		Lastname:         "Liddell",
		Email:            email,
		PasswordHash:     hash,
		Role:             RoleManager,
		IsActive:         active,
		FailedLoginCount: failed,
	})
}

func TestLoginSuccessResetsCounterAndRecordsSession(t *testing.T) {
	repo := newMemoryAuthRepo()
	metrics := &recordingMetrics{}
	svc := newTestService(t, repo, ServiceConfig{Metrics: metrics})
	alice := seedUser(t, repo, "alice@example.com", 3, true)

	pair, err := svc.Login(context.Background(), "alice@example.com", testPassword, ClientInfo{})
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)

	stored := repo.get(alice.ID)
	assert.Equal(t, 0, stored.FailedLoginCount)
	require.NotNil(t, stored.LastLoginAt)
	assert.Equal(t, 1, repo.sessionCount())
	assert.Equal(t, alice.ID, repo.sessions[0].UserID)

	claims, err := svc.ValidateAccessToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, string(RoleManager), claims.Role)
	assert.Equal(t, alice.ID, claims.UserID)
	assert.Equal(t, "alice@example.com", claims.Email)
	assert.Equal(t, []string{OutcomeSuccess}, metrics.outcomes)
}

func TestLoginNormalizesEmail(t *testing.T) {
	repo := newMemoryAuthRepo()
	svc := newTestService(t, repo, ServiceConfig{})
	seedUser(t, repo, "alice@example.com", 0, true)

	_, err := svc.Login(context.Background(), "  Alice@Example.COM ", testPassword, ClientInfo{})
	require.NoError(t, err)
}

func TestLoginUnknownUser(t *testing.T) {
	repo := newMemoryAuthRepo()
	svc := newTestService(t, repo, ServiceConfig{})

	_, err := svc.Login(context.Background(), "nobody@example.com", testPassword, ClientInfo{})
	assert.ErrorIs(t, err, ErrUserNotFound)
	assert.Zero(t, repo.sessionCount())
}

func TestLoginInactiveAccount(t *testing.T) {
	repo := newMemoryAuthRepo()
	svc := newTestService(t, repo, ServiceConfig{})
	user := seedUser(t, repo, "bob@example.com", 0, false)

	_, err := svc.Login(context.Background(), "bob@example.com", testPassword, ClientInfo{})
	assert.ErrorIs(t, err, ErrAccountInactive)
	assert.Equal(t, 0, repo.get(user.ID).FailedLoginCount)
}

func TestLoginLockedAccountRejectsCorrectPassword(t *testing.T) {
	repo := newMemoryAuthRepo()
	svc := newTestService(t, repo, ServiceConfig{})
	user := seedUser(t, repo, "carol@example.com", MaxFailedLogins, true)

	for _, password := range []string{testPassword, "wrong-password"} {
		_, err := svc.Login(context.Background(), "carol@example.com", password, ClientInfo{})
		assert.ErrorIs(t, err, ErrAccountLocked)
	}
	assert.Equal(t, MaxFailedLogins, repo.get(user.ID).FailedLoginCount)
	assert.Zero(t, repo.sessionCount())
}

func TestLoginWrongPasswordCountsDownToLockout(t *testing.T) {
	repo := newMemoryAuthRepo()
	notifier := &recordingNotifier{}
	svc := newTestService(t, repo, ServiceConfig{Notifier: notifier})
	user := seedUser(t, repo, "dave@example.com", 0, true)

	for want := 4; want >= 0; want-- {
		_, err := svc.Login(context.Background(), "dave@example.com", "wrong-password", ClientInfo{})
		require.ErrorIs(t, err, ErrWrongCredentials)
		var wrong *WrongCredentialsError
		require.ErrorAs(t, err, &wrong)
		assert.Equal(t, want, wrong.AttemptsLeft)
	}
	assert.Equal(t, MaxFailedLogins, repo.get(user.ID).FailedLoginCount)
	assert.Equal(t, []int64{user.ID}, notifier.calls)

	_, err := svc.Login(context.Background(), "dave@example.com", "wrong-password", ClientInfo{})
	assert.ErrorIs(t, err, ErrAccountLocked)
	assert.Equal(t, MaxFailedLogins, repo.get(user.ID).FailedLoginCount)
	assert.Len(t, notifier.calls, 1)
}

func TestLoginNotifierFailureDoesNotFailLogin(t *testing.T) {
	repo := newMemoryAuthRepo()
	notifier := &recordingNotifier{err: errors.New("broker down")}
	svc := newTestService(t, repo, ServiceConfig{Notifier: notifier})
	seedUser(t, repo, "erin@example.com", MaxFailedLogins-1, true)

	_, err := svc.Login(context.Background(), "erin@example.com", "wrong-password", ClientInfo{})
	var wrong *WrongCredentialsError
	require.ErrorAs(t, err, &wrong)
	assert.Equal(t, 0, wrong.AttemptsLeft)
	assert.Len(t, notifier.calls, 1)
}

func TestLoginConcurrentFailuresNeverUndercount(t *testing.T) {
	repo := newMemoryAuthRepo()
	svc := newTestService(t, repo, ServiceConfig{})
	user := seedUser(t, repo, "frank@example.com", 0, true)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.Login(context.Background(), "frank@example.com", "wrong-password", ClientInfo{})
		}()
	}
	wg.Wait()
	assert.Equal(t, MaxFailedLogins, repo.get(user.ID).FailedLoginCount)
}

func TestLoginStoreFailure(t *testing.T) {
	repo := newMemoryAuthRepo()
	metrics := &recordingMetrics{}
	svc := newTestService(t, repo, ServiceConfig{Metrics: metrics})
	seedUser(t, repo, "gina@example.com", 0, true)

	repo.failOn = "lock"
	_, err := svc.Login(context.Background(), "gina@example.com", testPassword, ClientInfo{})
	require.ErrorIs(t, err, ErrStore)
	var storeErr *StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, "find user", storeErr.Op)
	assert.EqualError(t, storeErr.Err, "connection reset")

	repo.failOn = "session"
	_, err = svc.Login(context.Background(), "gina@example.com", testPassword, ClientInfo{})
	assert.ErrorIs(t, err, ErrStore)
	assert.Equal(t, []string{OutcomeStoreError, OutcomeStoreError}, metrics.outcomes)
}

func TestLoginSessionFailureRollsBackUserUpdate(t *testing.T) {
	repo := newMemoryAuthRepo()
	svc := newTestService(t, repo, ServiceConfig{})
	user := seedUser(t, repo, "ivy@example.com", 3, true)

	repo.failOn = "session"
	_, err := svc.Login(context.Background(), "ivy@example.com", testPassword, ClientInfo{})
	require.ErrorIs(t, err, ErrStore)

	stored := repo.get(user.ID)
	assert.Equal(t, 3, stored.FailedLoginCount)
	assert.Nil(t, stored.LastLoginAt)
	assert.Zero(t, repo.sessionCount())

	repo.failOn = ""
	_, err = svc.Login(context.Background(), "ivy@example.com", testPassword, ClientInfo{})
	require.NoError(t, err)
	assert.Zero(t, repo.get(user.ID).FailedLoginCount)
	assert.Equal(t, 1, repo.sessionCount())
}

func TestRefreshIssuesAccessTokenFromCurrentState(t *testing.T) {
	repo := newMemoryAuthRepo()
	svc := newTestService(t, repo, ServiceConfig{})
	user := seedUser(t, repo, "hank@example.com", 0, true)

	pair, err := svc.codec.IssuePair(user.Identity())
	require.NoError(t, err)

	user.Role = RoleRegisteredUser
	repo.put(user)

	access, err := svc.Refresh(context.Background(), pair.RefreshToken)
	require.NoError(t, err)
	claims, err := svc.ValidateAccessToken(access)
	require.NoError(t, err)
	assert.Equal(t, string(RoleRegisteredUser), claims.Role)
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	repo := newMemoryAuthRepo()
	svc := newTestService(t, repo, ServiceConfig{})
	user := seedUser(t, repo, "ivy@example.com", 0, true)

	pair, err := svc.codec.IssuePair(user.Identity())
	require.NoError(t, err)

	_, err = svc.Refresh(context.Background(), pair.AccessToken)
	assert.ErrorIs(t, err, ErrWrongTokenType)
}

func TestRefreshRejectsExpiredToken(t *testing.T) {
	repo := newMemoryAuthRepo()
	svc := newTestService(t, repo, ServiceConfig{})
	user := seedUser(t, repo, "jack@example.com", 0, true)

	past := time.Now().Add(-8 * 24 * time.Hour)
	raw, err := svc.codec.WithClock(func() time.Time { return past }).Encode(user.Identity(), token.KindRefresh, token.DefaultRefreshTTL)
	require.NoError(t, err)

	_, err = svc.Refresh(context.Background(), raw)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
	assert.ErrorIs(t, err, token.ErrExpired)

	_, err = svc.Refresh(context.Background(), "garbage")
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestRefreshRevalidatesAccount(t *testing.T) {
	repo := newMemoryAuthRepo()
	svc := newTestService(t, repo, ServiceConfig{})
	user := seedUser(t, repo, "kim@example.com", 0, true)

	pair, err := svc.codec.IssuePair(user.Identity())
	require.NoError(t, err)

	user.IsActive = false
	repo.put(user)
	_, err = svc.Refresh(context.Background(), pair.RefreshToken)
	assert.ErrorIs(t, err, ErrAccountInactive)

	ghost, err := svc.codec.IssuePair(token.Identity{UserID: 999})
	require.NoError(t, err)
	_, err = svc.Refresh(context.Background(), ghost.RefreshToken)
	assert.ErrorIs(t, err, ErrUserNotFound)

	repo.failOn = "find"
	_, err = svc.Refresh(context.Background(), pair.RefreshToken)
	assert.ErrorIs(t, err, ErrStore)
}

func TestValidateAccessToken(t *testing.T) {
	repo := newMemoryAuthRepo()
	svc := newTestService(t, repo, ServiceConfig{})
	identity := token.Identity{UserID: 5, Role: string(RoleRegisteredUser), Email: "lee@example.com"}

	pair, err := svc.codec.IssuePair(identity)
	require.NoError(t, err)

	claims, err := svc.ValidateAccessToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, identity, claims.Identity)

	_, err = svc.ValidateAccessToken(pair.RefreshToken)
	assert.ErrorIs(t, err, ErrWrongTokenType)

	_, err = svc.ValidateAccessToken("not-a-token")
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.ErrorIs(t, err, token.ErrMalformed)
}

func TestRegister(t *testing.T) {
	repo := newMemoryAuthRepo()
	svc := newTestService(t, repo, ServiceConfig{})

	user, err := svc.Register(context.Background(), RegisterInput{
		Name:     "Mona",
		Lastname: "Lisa",
		Email:    "Mona@Example.com",
		Password: testPassword,
	})
	require.NoError(t, err)
	assert.Equal(t, "mona@example.com", user.Email)
	assert.Equal(t, RoleRegisteredUser, user.Role)
	assert.True(t, user.IsActive)
	assert.Zero(t, user.FailedLoginCount)
	assert.NoError(t, testHasher.Compare(user.PasswordHash, testPassword))

	_, err = svc.Register(context.Background(), RegisterInput{Name: "Mona", Lastname: "Lisa", Email: "mona@example.com", Password: testPassword})
	assert.ErrorIs(t, err, ErrEmailTaken)

	_, err = svc.Register(context.Background(), RegisterInput{Name: "Mona", Lastname: "Lisa", Email: "x@example.com", Password: testPassword, Role: "admin"})
	assert.ErrorIs(t, err, shared.ErrValidation)
}
