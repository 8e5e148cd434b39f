package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/pribylovaa/notes-keeper/auth-service/cache"
	"github.com/pribylovaa/notes-keeper/auth-service/mocks"
	"github.com/pribylovaa/notes-keeper/auth-service/models"
)

// activeSession — строка активной сессии под заданный raw-токен.
func activeSession(t *testing.T, accountID uuid.UUID, raw string, expiresAt time.Time) models.RefreshSession {
	t.Helper()

	hash, err := hashRefreshToken(raw, bcrypt.MinCost)
	require.NoError(t, err)

	now := time.Now().UTC()
	return models.RefreshSession{
		ID:        uuid.New(),
		AccountID: accountID,
		TokenHash: hash,
		ExpiresAt: expiresAt,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestRotate_OK(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	accountID := uuid.New()
	raw := "raw-refresh-token"
	session := activeSession(t, accountID, raw, time.Now().UTC().Add(time.Hour))
	account := &models.Account{ID: accountID, Username: "alice", Role: models.RoleUser}

	st.EXPECT().ActiveSessionsByAccount(gomock.Any(), accountID).
		Return([]models.RefreshSession{session}, nil)
	st.EXPECT().RevokeSessionIfActive(gomock.Any(), session.ID).Return(true, nil)
	st.EXPECT().AccountByID(gomock.Any(), accountID).Return(account, nil)
	st.EXPECT().SaveSession(gomock.Any(), gomock.Any()).Return(nil)

	pair, err := svc.Rotate(context.Background(), accountID, raw)
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	require.NotEqual(t, raw, pair.RefreshToken)

	gotID, err := svc.ParseRefreshToken(pair.RefreshToken)
	require.NoError(t, err)
	require.Equal(t, accountID, gotID)
}

func TestRotate_NoActiveSessions(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	accountID := uuid.New()
	st.EXPECT().ActiveSessionsByAccount(gomock.Any(), accountID).Return(nil, nil)

	_, err := svc.Rotate(context.Background(), accountID, "whatever")
	require.Error(t, err)
	require.ErrorIs(t, err, ErrNoActiveSessions)
}

func TestRotate_UnknownToken_BurnsFamily(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	accountID := uuid.New()
	session := activeSession(t, accountID, "legit-token", time.Now().UTC().Add(time.Hour))

	st.EXPECT().ActiveSessionsByAccount(gomock.Any(), accountID).
		Return([]models.RefreshSession{session}, nil)
	// Чужой токен среди активных строк не найден — отзывается всё семейство.
	st.EXPECT().RevokeAllByAccount(gomock.Any(), accountID).Return(nil)

	_, err := svc.Rotate(context.Background(), accountID, "stolen-or-stale")
	require.Error(t, err)
	require.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestRotate_ExpiredMatch_BurnsFamily(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	accountID := uuid.New()
	raw := "expired-token"
	session := activeSession(t, accountID, raw, time.Now().UTC().Add(-time.Minute))

	st.EXPECT().ActiveSessionsByAccount(gomock.Any(), accountID).
		Return([]models.RefreshSession{session}, nil)
	st.EXPECT().RevokeAllByAccount(gomock.Any(), accountID).Return(nil)

	_, err := svc.Rotate(context.Background(), accountID, raw)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestRotate_LostRace_BurnsFamily(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	accountID := uuid.New()
	raw := "contended-token"
	session := activeSession(t, accountID, raw, time.Now().UTC().Add(time.Hour))

	st.EXPECT().ActiveSessionsByAccount(gomock.Any(), accountID).
		Return([]models.RefreshSession{session}, nil)
	// Конкурент успел отозвать строку первым: условный UPDATE ничего не тронул.
	st.EXPECT().RevokeSessionIfActive(gomock.Any(), session.ID).Return(false, nil)
	st.EXPECT().RevokeAllByAccount(gomock.Any(), accountID).Return(nil)

	_, err := svc.Rotate(context.Background(), accountID, raw)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestRotate_RevokeAllError_Propagated(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	accountID := uuid.New()
	session := activeSession(t, accountID, "legit-token", time.Now().UTC().Add(time.Hour))
	dbErr := errors.New("db down")

	st.EXPECT().ActiveSessionsByAccount(gomock.Any(), accountID).
		Return([]models.RefreshSession{session}, nil)
	st.EXPECT().RevokeAllByAccount(gomock.Any(), accountID).Return(dbErr)

	_, err := svc.Rotate(context.Background(), accountID, "stolen")
	require.Error(t, err)
	require.ErrorIs(t, err, dbErr)
	require.NotErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestRotate_WithSessionCache(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	sc := mocks.NewMockSessionCache(ctrl)
	svc.SetSessionCache(sc)

	accountID := uuid.New()
	raw := "cached-token"
	session := activeSession(t, accountID, raw, time.Now().UTC().Add(time.Hour))
	account := &models.Account{ID: accountID, Username: "alice", Role: models.RoleUser}

	// Попадание в кэш: выборка из хранилища не выполняется.
	sc.EXPECT().ActiveSessions(gomock.Any(), accountID).
		Return([]models.RefreshSession{session}, true, nil)
	st.EXPECT().RevokeSessionIfActive(gomock.Any(), session.ID).Return(true, nil)
	st.EXPECT().AccountByID(gomock.Any(), accountID).Return(account, nil)
	st.EXPECT().SaveSession(gomock.Any(), gomock.Any()).Return(nil)
	// Инвалидация после отзыва и после выпуска новой сессии.
	sc.EXPECT().Invalidate(gomock.Any(), accountID).Return(nil).Times(2)

	pair, err := svc.Rotate(context.Background(), accountID, raw)
	require.NoError(t, err)
	require.NotEmpty(t, pair.RefreshToken)
}

func TestRotate_CacheMiss_FallsBackToStorage(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	sc := mocks.NewMockSessionCache(ctrl)
	svc.SetSessionCache(sc)

	accountID := uuid.New()
	raw := "uncached-token"
	session := activeSession(t, accountID, raw, time.Now().UTC().Add(time.Hour))
	account := &models.Account{ID: accountID, Username: "alice", Role: models.RoleUser}

	sc.EXPECT().ActiveSessions(gomock.Any(), accountID).Return(nil, false, nil)
	st.EXPECT().ActiveSessionsByAccount(gomock.Any(), accountID).
		Return([]models.RefreshSession{session}, nil)
	sc.EXPECT().SetActiveSessions(gomock.Any(), accountID, gomock.Any(), cache.DefaultTTL).Return(nil)
	st.EXPECT().RevokeSessionIfActive(gomock.Any(), session.ID).Return(true, nil)
	st.EXPECT().AccountByID(gomock.Any(), accountID).Return(account, nil)
	st.EXPECT().SaveSession(gomock.Any(), gomock.Any()).Return(nil)
	sc.EXPECT().Invalidate(gomock.Any(), accountID).Return(nil).Times(2)

	_, err := svc.Rotate(context.Background(), accountID, raw)
	require.NoError(t, err)
}

func TestLogout_OK(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	accountID := uuid.New()
	raw := "device-1-token"
	session := activeSession(t, accountID, raw, time.Now().UTC().Add(time.Hour))
	other := activeSession(t, accountID, "device-2-token", time.Now().UTC().Add(time.Hour))

	st.EXPECT().ActiveSessionsByAccount(gomock.Any(), accountID).
		Return([]models.RefreshSession{other, session}, nil)
	// Отзывается только совпавшая сессия; чужие устройства не затрагиваются.
	st.EXPECT().RevokeSessionIfActive(gomock.Any(), session.ID).Return(true, nil)

	require.NoError(t, svc.Logout(context.Background(), accountID, raw))
}

func TestLogout_NoMatch(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	accountID := uuid.New()
	session := activeSession(t, accountID, "device-1-token", time.Now().UTC().Add(time.Hour))

	st.EXPECT().ActiveSessionsByAccount(gomock.Any(), accountID).
		Return([]models.RefreshSession{session}, nil)

	err := svc.Logout(context.Background(), accountID, "unknown-token")
	require.Error(t, err)
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestLogout_AlreadyRevoked_Race(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	accountID := uuid.New()
	raw := "device-1-token"
	session := activeSession(t, accountID, raw, time.Now().UTC().Add(time.Hour))

	st.EXPECT().ActiveSessionsByAccount(gomock.Any(), accountID).
		Return([]models.RefreshSession{session}, nil)
	st.EXPECT().RevokeSessionIfActive(gomock.Any(), session.ID).Return(false, nil)

	err := svc.Logout(context.Background(), accountID, raw)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRevokeAll_OK_EvenWhenEmpty(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	accountID := uuid.New()
	st.EXPECT().RevokeAllByAccount(gomock.Any(), accountID).Return(nil)

	require.NoError(t, svc.RevokeAll(context.Background(), accountID))
}

func TestRevokeAll_StorageError_Propagated(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	accountID := uuid.New()
	dbErr := errors.New("db down")
	st.EXPECT().RevokeAllByAccount(gomock.Any(), accountID).Return(dbErr)

	err := svc.RevokeAll(context.Background(), accountID)
	require.Error(t, err)
	require.ErrorIs(t, err, dbErr)
}
