package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/pribylovaa/notes-keeper/auth-service/models"
	"github.com/pribylovaa/notes-keeper/auth-service/storage"
)

// memStorage — потокобезопасное хранилище в памяти для сквозных сценариев
// жизненного цикла сессий без моков.
type memStorage struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]models.Account
	sessions map[uuid.UUID]models.RefreshSession
}

var _ storage.Storage = (*memStorage)(nil)

func newMemStorage() *memStorage {
	return &memStorage{
		accounts: make(map[uuid.UUID]models.Account),
		sessions: make(map[uuid.UUID]models.RefreshSession),
	}
}

func (m *memStorage) SaveAccount(_ context.Context, account *models.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.accounts {
		if existing.Username != "" && strings.EqualFold(existing.Username, account.Username) {
			return storage.ErrAlreadyExists
		}
		if existing.Email != "" && strings.EqualFold(existing.Email, account.Email) {
			return storage.ErrAlreadyExists
		}
	}

	m.accounts[account.ID] = *account

	return nil
}

func (m *memStorage) AccountByID(_ context.Context, id uuid.UUID) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	account, ok := m.accounts[id]
	if !ok {
		return nil, storage.ErrNotFound
	}

	return &account, nil
}

func (m *memStorage) AccountByUsername(_ context.Context, username string) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, account := range m.accounts {
		if account.Username != "" && strings.EqualFold(account.Username, username) {
			result := account
			return &result, nil
		}
	}

	return nil, storage.ErrNotFound
}

func (m *memStorage) AccountByEmail(_ context.Context, email string) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, account := range m.accounts {
		if account.Email != "" && strings.EqualFold(account.Email, email) {
			result := account
			return &result, nil
		}
	}

	return nil, storage.ErrNotFound
}

func (m *memStorage) UpdateAccount(_ context.Context, account *models.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.accounts[account.ID]; !ok {
		return storage.ErrNotFound
	}

	for id, existing := range m.accounts {
		if id == account.ID {
			continue
		}
		if existing.Email != "" && strings.EqualFold(existing.Email, account.Email) {
			return storage.ErrAlreadyExists
		}
	}

	m.accounts[account.ID] = *account

	return nil
}

func (m *memStorage) SaveSession(_ context.Context, session *models.RefreshSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions[session.ID] = *session

	return nil
}

func (m *memStorage) ActiveSessionsByAccount(_ context.Context, accountID uuid.UUID) ([]models.RefreshSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []models.RefreshSession
	for _, session := range m.sessions {
		if session.AccountID == accountID && !session.Revoked {
			result = append(result, session)
		}
	}

	return result, nil
}

func (m *memStorage) RevokeSessionIfActive(_ context.Context, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[id]
	if !ok {
		return false, storage.ErrNotFound
	}

	if session.Revoked {
		return false, nil
	}

	session.Revoked = true
	session.UpdatedAt = time.Now().UTC()
	m.sessions[id] = session

	return true, nil
}

func (m *memStorage) RevokeAllByAccount(_ context.Context, accountID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, session := range m.sessions {
		if session.AccountID == accountID && !session.Revoked {
			session.Revoked = true
			session.UpdatedAt = time.Now().UTC()
			m.sessions[id] = session
		}
	}

	return nil
}

func (m *memStorage) DeleteExpiredSessions(_ context.Context, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, session := range m.sessions {
		if session.ExpiresAt.Before(now) {
			delete(m.sessions, id)
		}
	}

	return nil
}

func (m *memStorage) Close() {}

func (m *memStorage) activeCount(accountID uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for _, session := range m.sessions {
		if session.AccountID == accountID && !session.Revoked {
			count++
		}
	}

	return count
}

func newFamilySvc(t *testing.T) (*Service, *memStorage) {
	t.Helper()

	st := newMemStorage()
	return New(st, testCfg()), st
}

// registerAndLogin регистрирует аккаунт и выполняет вход, возвращая
// идентификатор аккаунта из access-токена и выданную пару.
func registerAndLogin(t *testing.T, svc *Service, username, password string) (uuid.UUID, *models.TokenPair) {
	t.Helper()

	ctx := context.Background()

	require.NoError(t, svc.Register(ctx, username, password))

	pair, err := svc.Login(ctx, username, password)
	require.NoError(t, err)

	claims, err := svc.ParseAccessToken(pair.AccessToken)
	require.NoError(t, err)

	return uuid.MustParse(claims.AccountID), pair
}

// Полный жизненный цикл: регистрация, вход, штатные ротации цепочкой.
func TestSessionFamily_Lifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, st := newFamilySvc(t)

	accountID, pair1 := registerAndLogin(t, svc, "alice", "correct horse battery staple")
	require.Equal(t, 1, st.activeCount(accountID))

	pair2, err := svc.Rotate(ctx, accountID, pair1.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, pair1.RefreshToken, pair2.RefreshToken)
	// Ротация отзывает старую сессию и выпускает новую: ровно одна активная.
	require.Equal(t, 1, st.activeCount(accountID))

	pair3, err := svc.Rotate(ctx, accountID, pair2.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, pair2.RefreshToken, pair3.RefreshToken)
	require.Equal(t, 1, st.activeCount(accountID))

	claims, err := svc.ParseAccessToken(pair3.AccessToken)
	require.NoError(t, err)
	require.Equal(t, accountID.String(), claims.AccountID)
	require.Equal(t, "alice", claims.Username)
}

// Повтор употреблённого токена сжигает всё семейство: после него
// не работает ни старый, ни свежевыданный токен.
func TestSessionFamily_ReplayBurnsFamily(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, st := newFamilySvc(t)

	accountID, pair1 := registerAndLogin(t, svc, "alice", "correct horse battery staple")

	pair2, err := svc.Rotate(ctx, accountID, pair1.RefreshToken)
	require.NoError(t, err)

	// Повтор R1 после успешной ротации — сигнал компрометации.
	_, err = svc.Rotate(ctx, accountID, pair1.RefreshToken)
	require.ErrorIs(t, err, ErrInvalidRefreshToken)
	require.Equal(t, 0, st.activeCount(accountID))

	// R2 был легитимным, но семейство уже сожжено.
	_, err = svc.Rotate(ctx, accountID, pair2.RefreshToken)
	require.ErrorIs(t, err, ErrNoActiveSessions)

	// Новый вход восстанавливает доступ.
	pair4, err := svc.Login(ctx, "alice", "correct horse battery staple")
	require.NoError(t, err)

	_, err = svc.Rotate(ctx, accountID, pair4.RefreshToken)
	require.NoError(t, err)
}

// Несколько устройств: выход с одного не затрагивает сессии остальных.
func TestSessionFamily_MultiDeviceLogout(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, st := newFamilySvc(t)

	accountID, device1 := registerAndLogin(t, svc, "alice", "correct horse battery staple")

	device2, err := svc.Login(ctx, "alice", "correct horse battery staple")
	require.NoError(t, err)
	require.Equal(t, 2, st.activeCount(accountID))

	require.NoError(t, svc.Logout(ctx, accountID, device1.RefreshToken))
	require.Equal(t, 1, st.activeCount(accountID))

	// Повторный выход тем же токеном: активной сессии под него уже нет.
	err = svc.Logout(ctx, accountID, device1.RefreshToken)
	require.ErrorIs(t, err, ErrSessionNotFound)

	// Второе устройство продолжает штатно ротироваться.
	_, err = svc.Rotate(ctx, accountID, device2.RefreshToken)
	require.NoError(t, err)
}

// RevokeAll разлогинивает все устройства разом.
func TestSessionFamily_RevokeAllDevices(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, st := newFamilySvc(t)

	accountID, device1 := registerAndLogin(t, svc, "alice", "correct horse battery staple")

	_, err := svc.Login(ctx, "alice", "correct horse battery staple")
	require.NoError(t, err)

	require.NoError(t, svc.RevokeAll(ctx, accountID))
	require.Equal(t, 0, st.activeCount(accountID))

	_, err = svc.Rotate(ctx, accountID, device1.RefreshToken)
	require.ErrorIs(t, err, ErrNoActiveSessions)
}

// Просроченная сессия не ротируется, а её предъявление сжигает семейство.
func TestSessionFamily_ExpiredSessionBurns(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	svc, st := newFamilySvc(t)

	accountID, pair := registerAndLogin(t, svc, "alice", "correct horse battery staple")

	// Принудительно просрочить строку сессии в хранилище.
	st.mu.Lock()
	for id, session := range st.sessions {
		session.ExpiresAt = time.Now().UTC().Add(-time.Minute)
		st.sessions[id] = session
	}
	st.mu.Unlock()

	_, err := svc.Rotate(ctx, accountID, pair.RefreshToken)
	require.ErrorIs(t, err, ErrInvalidRefreshToken)
	require.Equal(t, 0, st.activeCount(accountID))
}
