package service

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/pribylovaa/go-session-service/internal/config"
	"github.com/pribylovaa/go-session-service/internal/models"
	"github.com/pribylovaa/go-session-service/internal/storage"
	"github.com/pribylovaa/go-session-service/mocks"
)

func testCfg() config.AuthConfig {
	return config.AuthConfig{
		AccessSecret:  "unit-access-secret",
		RefreshSecret: "unit-refresh-secret",
		AccessTTL:     config.Duration(30 * time.Second),
		RefreshTTL:    config.Duration(24 * time.Hour),
		Issuer:        "session-service",
	}
}

func newSvc(t *testing.T) (*Service, *mocks.MockStorage, *gomock.Controller) {
	t.Helper()
	ctrl := gomock.NewController(t)
	st := mocks.NewMockStorage(ctrl)
	svc := New(st, testCfg())
	return svc, st, ctrl
}

func mustHashPW(t *testing.T, pw string) string {
	t.Helper()
	h, err := hashPassword(pw)
	require.NoError(t, err)
	return h
}

func TestSignUp_OK(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	ctx := context.Background()
	email := "User@Example.com"
	norm := "user@example.com"
	pw := "pw123456"

	st.EXPECT().UserByEmail(gomock.Any(), norm).Return(nil, storage.ErrNotFound)
	st.EXPECT().SaveUser(gomock.Any(), gomock.Any()).Return(nil)

	user, err := svc.SignUp(ctx, "Alice", email, pw)
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, user.ID)
	require.Equal(t, norm, user.Email)
	require.Equal(t, "Alice", user.Name)
	require.Equal(t, models.RoleUser, user.Role)

	// Пароль хранится только хэшем, хэш сверяется с исходным паролем.
	require.NotEqual(t, pw, user.PasswordHash)
	require.True(t, checkPassword(user.PasswordHash, pw))
	require.Empty(t, user.RefreshFingerprint)
}

func TestSignUp_InvalidEmail(t *testing.T) {
	t.Parallel()

	svc, _, ctrl := newSvc(t)
	defer ctrl.Finish()

	_, err := svc.SignUp(context.Background(), "", "not-an-email", "pw123456")
	require.Error(t, err)
	require.ErrorIs(t, err, ErrInvalidEmail)
}

func TestSignUp_WeakOrEmptyPassword(t *testing.T) {
	t.Parallel()

	svc, _, ctrl := newSvc(t)
	defer ctrl.Finish()

	_, err := svc.SignUp(context.Background(), "", "u@e.com", "")
	require.Error(t, err)
	require.ErrorIs(t, err, ErrEmptyPassword)

	_, err = svc.SignUp(context.Background(), "", "u@e.com", "short")
	require.Error(t, err)
	require.ErrorIs(t, err, ErrWeakPassword)
}

func TestSignUp_EmailAlreadyExists_OnLookup(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	// Если UserByEmail вернул пользователя (err == nil) - считается занятым email.
	st.EXPECT().UserByEmail(gomock.Any(), "user@example.com").
		Return(&models.User{ID: uuid.New(), Email: "user@example.com"}, nil)

	_, err := svc.SignUp(context.Background(), "", "user@example.com", "pw123456")
	require.Error(t, err)
	require.ErrorIs(t, err, ErrEmailTaken)
}

func TestSignUp_SaveUserAlreadyExists_MapsToEmailTaken(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	st.EXPECT().UserByEmail(gomock.Any(), "user@example.com").
		Return(nil, storage.ErrNotFound)
	st.EXPECT().SaveUser(gomock.Any(), gomock.Any()).
		Return(storage.ErrAlreadyExists)

	_, err := svc.SignUp(context.Background(), "", "user@example.com", "pw123456")
	require.Error(t, err)
	require.ErrorIs(t, err, ErrEmailTaken)
}

func TestSignUp_StorageErrors_Propagated(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	st.EXPECT().UserByEmail(gomock.Any(), "user@example.com").
		Return(nil, errors.New("db down"))

	_, err := svc.SignUp(context.Background(), "", "user@example.com", "pw123456")
	require.Error(t, err)

	st.EXPECT().UserByEmail(gomock.Any(), "user@example.com").
		Return(nil, storage.ErrNotFound)
	st.EXPECT().SaveUser(gomock.Any(), gomock.Any()).
		Return(errors.New("insert failed"))

	_, err = svc.SignUp(context.Background(), "", "user@example.com", "pw123456")
	require.Error(t, err)
}

func TestSignIn_OK(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	ctx := context.Background()
	email := "user@example.com"
	pw := "pw123456"
	user := &models.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: mustHashPW(t, pw),
		Role:         models.RoleUser,
	}

	var storedFP string
	st.EXPECT().UserByEmail(gomock.Any(), email).Return(user, nil)
	st.EXPECT().UpdateRefreshFingerprint(gomock.Any(), user.ID, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ uuid.UUID, fp string) error {
			storedFP = fp
			return nil
		})

	got, pair, err := svc.SignIn(ctx, email, pw)
	require.NoError(t, err)
	require.Equal(t, user.ID, got.ID)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	require.NotEqual(t, pair.AccessToken, pair.RefreshToken)

	// В БД уходит именно отпечаток выпущенного refresh-токена, а не сам токен.
	require.Equal(t, fingerprint(pair.RefreshToken), storedFP)
	require.NotEqual(t, pair.RefreshToken, storedFP)

	require.WithinDuration(t, time.Now().Add(svc.cfg.AccessTTL.Duration()), pair.AccessExpiresAt, 2*time.Second)
	require.WithinDuration(t, time.Now().Add(svc.cfg.RefreshTTL.Duration()), pair.RefreshExpiresAt, 2*time.Second)
}

func TestSignIn_MissingCredentials(t *testing.T) {
	t.Parallel()

	svc, _, ctrl := newSvc(t)
	defer ctrl.Finish()

	_, _, err := svc.SignIn(context.Background(), "", "pw123456")
	require.Error(t, err)
	require.ErrorIs(t, err, ErrMissingCredentials)

	_, _, err = svc.SignIn(context.Background(), "user@example.com", "")
	require.Error(t, err)
	require.ErrorIs(t, err, ErrMissingCredentials)
}

// Неизвестный пользователь, кривой формат email и неверный пароль дают один
// и тот же ErrInvalidCredentials — существование учётки не раскрывается.
func TestSignIn_UnknownUser_OrWrongPassword_Indistinguishable(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	_, _, errMalformed := svc.SignIn(context.Background(), "bad", "whatever-shape-1!")
	require.ErrorIs(t, errMalformed, ErrInvalidCredentials)

	st.EXPECT().UserByEmail(gomock.Any(), "user@example.com").
		Return(nil, storage.ErrNotFound)
	_, _, errUnknown := svc.SignIn(context.Background(), "user@example.com", "pw123456")
	require.ErrorIs(t, errUnknown, ErrInvalidCredentials)

	user := &models.User{ID: uuid.New(), Email: "user@example.com", PasswordHash: mustHashPW(t, "pw123456")}
	st.EXPECT().UserByEmail(gomock.Any(), "user@example.com").Return(user, nil)
	_, _, errWrongPW := svc.SignIn(context.Background(), "user@example.com", "WRONG-pw")
	require.ErrorIs(t, errWrongPW, ErrInvalidCredentials)

	require.Equal(t, errors.Unwrap(errUnknown), errors.Unwrap(errWrongPW))
}

func TestSignIn_PersistFailure_NoTokensReturned(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	pw := "pw123456"
	user := &models.User{ID: uuid.New(), Email: "user@example.com", PasswordHash: mustHashPW(t, pw)}

	st.EXPECT().UserByEmail(gomock.Any(), user.Email).Return(user, nil)
	st.EXPECT().UpdateRefreshFingerprint(gomock.Any(), user.ID, gomock.Any()).
		Return(errors.New("db write failed"))

	got, pair, err := svc.SignIn(context.Background(), user.Email, pw)
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrInvalidCredentials)

	// Сессия не установлена — токены наружу не уходят.
	require.Nil(t, got)
	require.Nil(t, pair)
}

// Повторный вход того же пользователя: побеждает последняя завершившаяся
// запись, в БД остаётся ровно один отпечаток — отпечаток её refresh-токена.
func TestSignIn_RepeatedSignIns_LastWriteWins(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	pw := "pw123456"
	user := &models.User{ID: uuid.New(), Email: "user@example.com", PasswordHash: mustHashPW(t, pw)}

	var stored []string
	st.EXPECT().UserByEmail(gomock.Any(), user.Email).Return(user, nil).Times(2)
	st.EXPECT().UpdateRefreshFingerprint(gomock.Any(), user.ID, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ uuid.UUID, fp string) error {
			stored = append(stored, fp)
			return nil
		}).Times(2)

	_, first, err := svc.SignIn(context.Background(), user.Email, pw)
	require.NoError(t, err)

	_, second, err := svc.SignIn(context.Background(), user.Email, pw)
	require.NoError(t, err)

	require.Len(t, stored, 2)
	require.Equal(t, fingerprint(second.RefreshToken), stored[len(stored)-1])
	require.NotEqual(t, fingerprint(first.RefreshToken), stored[len(stored)-1])
}

func TestRefreshSession_OK_WithRotation(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	ctx := context.Background()
	user := &models.User{ID: uuid.New(), Email: "user@example.com", Role: models.RoleUser}

	refresh, err := svc.generateRefreshToken(ctx, user.ID, time.Now().UTC())
	require.NoError(t, err)
	user.RefreshFingerprint = fingerprint(refresh)

	var storedFP string
	st.EXPECT().UserByID(gomock.Any(), user.ID).Return(user, nil)
	st.EXPECT().UpdateRefreshFingerprint(gomock.Any(), user.ID, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ uuid.UUID, fp string) error {
			storedFP = fp
			return nil
		})

	got, pair, err := svc.RefreshSession(ctx, refresh)
	require.NoError(t, err)
	require.Equal(t, user.ID, got.ID)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)

	// Ротация: отпечаток заменён на отпечаток нового токена.
	require.Equal(t, fingerprint(pair.RefreshToken), storedFP)
	require.NotEqual(t, fingerprint(refresh), storedFP)
}

func TestRefreshSession_InvalidOrForeignToken(t *testing.T) {
	t.Parallel()

	svc, _, ctrl := newSvc(t)
	defer ctrl.Finish()

	ctx := context.Background()

	// Мусор вместо токена.
	_, _, err := svc.RefreshSession(ctx, "not-a-jwt")
	require.ErrorIs(t, err, ErrInvalidToken)

	// Access-токен, подписанный access-секретом, не принимается как refresh.
	user := &models.User{ID: uuid.New(), Email: "u@e.com", Role: models.RoleUser}
	access, err := svc.generateAccessToken(ctx, user, time.Now().UTC())
	require.NoError(t, err)

	_, _, err = svc.RefreshSession(ctx, access)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestRefreshSession_Expired(t *testing.T) {
	t.Parallel()

	svc, _, ctrl := newSvc(t)
	defer ctrl.Finish()

	// Отрицательный TTL — токен рождается уже истёкшим.
	cfg := svc.cfg
	cfg.RefreshTTL = config.Duration(-time.Hour)
	svc.cfg = cfg

	refresh, err := svc.generateRefreshToken(context.Background(), uuid.New(), time.Now().UTC())
	require.NoError(t, err)

	_, _, err = svc.RefreshSession(context.Background(), refresh)
	require.ErrorIs(t, err, ErrTokenExpired)
}

func TestRefreshSession_FingerprintMismatch_OrNoSession(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()

	refresh, err := svc.generateRefreshToken(ctx, userID, time.Now().UTC())
	require.NoError(t, err)

	// Отпечаток в БД от другого (более нового) токена — старый refresh мёртв.
	st.EXPECT().UserByID(gomock.Any(), userID).
		Return(&models.User{ID: userID, RefreshFingerprint: fingerprint("another-token")}, nil)
	_, _, err = svc.RefreshSession(ctx, refresh)
	require.ErrorIs(t, err, ErrInvalidToken)

	// Сессии нет вовсе (после sign-out).
	st.EXPECT().UserByID(gomock.Any(), userID).
		Return(&models.User{ID: userID, RefreshFingerprint: ""}, nil)
	_, _, err = svc.RefreshSession(ctx, refresh)
	require.ErrorIs(t, err, ErrInvalidToken)

	// Пользователь удалён.
	st.EXPECT().UserByID(gomock.Any(), userID).
		Return(nil, storage.ErrNotFound)
	_, _, err = svc.RefreshSession(ctx, refresh)
	require.ErrorIs(t, err, ErrInvalidToken)
}

// Устаревший кэш (неудачный Set при прошлой ротации) не должен отклонять
// действующий refresh-токен: решает БД, а ротация чинит запись в кэше.
func TestRefreshSession_StaleCache_DoesNotRejectValidToken(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	fpc := mocks.NewMockFingerprintCache(ctrl)
	svc.SetFingerprintCache(fpc)

	ctx := context.Background()
	user := &models.User{ID: uuid.New(), Email: "u@e.com", Role: models.RoleUser}

	refresh, err := svc.generateRefreshToken(ctx, user.ID, time.Now().UTC())
	require.NoError(t, err)
	user.RefreshFingerprint = fingerprint(refresh)

	// Кэш хранит чужой (устаревший) отпечаток, БД — отпечаток токена.
	fpc.EXPECT().Get(gomock.Any(), user.ID).Return(fingerprint("stale-entry"), true, nil)
	st.EXPECT().UserByID(gomock.Any(), user.ID).Return(user, nil)

	var repairedFP string
	st.EXPECT().UpdateRefreshFingerprint(gomock.Any(), user.ID, gomock.Any()).Return(nil)
	fpc.EXPECT().Set(gomock.Any(), user.ID, gomock.Any(), svc.cfg.RefreshTTL.Duration()).
		DoAndReturn(func(_ context.Context, _ uuid.UUID, fp string, _ time.Duration) error {
			repairedFP = fp
			return nil
		})

	_, pair, err := svc.RefreshSession(ctx, refresh)
	require.NoError(t, err)
	require.NotEmpty(t, pair.RefreshToken)

	// Устаревшая запись затёрта отпечатком нового токена.
	require.Equal(t, fingerprint(pair.RefreshToken), repairedFP)
}

// Расхождение и с кэшем, и с БД — отказ: токен действительно ротирован.
func TestRefreshSession_RotatedToken_RejectedByStorage(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	fpc := mocks.NewMockFingerprintCache(ctrl)
	svc.SetFingerprintCache(fpc)

	ctx := context.Background()
	userID := uuid.New()

	refresh, err := svc.generateRefreshToken(ctx, userID, time.Now().UTC())
	require.NoError(t, err)

	newerFP := fingerprint("newer-token")
	fpc.EXPECT().Get(gomock.Any(), userID).Return(newerFP, true, nil)
	st.EXPECT().UserByID(gomock.Any(), userID).
		Return(&models.User{ID: userID, RefreshFingerprint: newerFP}, nil)

	_, _, err = svc.RefreshSession(ctx, refresh)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestRefreshSession_CacheErrorFallsBackToStorage(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	fpc := mocks.NewMockFingerprintCache(ctrl)
	svc.SetFingerprintCache(fpc)

	ctx := context.Background()
	user := &models.User{ID: uuid.New(), Email: "u@e.com", Role: models.RoleUser}

	refresh, err := svc.generateRefreshToken(ctx, user.ID, time.Now().UTC())
	require.NoError(t, err)
	user.RefreshFingerprint = fingerprint(refresh)

	fpc.EXPECT().Get(gomock.Any(), user.ID).Return("", false, errors.New("redis down"))
	st.EXPECT().UserByID(gomock.Any(), user.ID).Return(user, nil)
	st.EXPECT().UpdateRefreshFingerprint(gomock.Any(), user.ID, gomock.Any()).Return(nil)
	fpc.EXPECT().Set(gomock.Any(), user.ID, gomock.Any(), svc.cfg.RefreshTTL.Duration()).Return(nil)

	_, pair, err := svc.RefreshSession(ctx, refresh)
	require.NoError(t, err)
	require.NotEmpty(t, pair.RefreshToken)
}

func TestSignOut_ClearsFingerprint(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()

	refresh, err := svc.generateRefreshToken(ctx, userID, time.Now().UTC())
	require.NoError(t, err)

	st.EXPECT().ClearRefreshFingerprint(gomock.Any(), userID).Return(nil)
	require.NoError(t, svc.SignOut(ctx, refresh))
}

func TestSignOut_Idempotent_OnInvalidOrEmptyToken(t *testing.T) {
	t.Parallel()

	svc, _, ctrl := newSvc(t)
	defer ctrl.Finish()

	// Невалидный/пустой токен — не ошибка; в хранилище не ходим.
	require.NoError(t, svc.SignOut(context.Background(), "garbage"))
	require.NoError(t, svc.SignOut(context.Background(), ""))
}

func TestSignOut_StorageError_Propagated(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()

	refresh, err := svc.generateRefreshToken(ctx, userID, time.Now().UTC())
	require.NoError(t, err)

	st.EXPECT().ClearRefreshFingerprint(gomock.Any(), userID).Return(errors.New("db down"))
	require.Error(t, svc.SignOut(ctx, refresh))
}

func TestAuthenticate_OK(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	ctx := context.Background()
	user := &models.User{ID: uuid.New(), Email: "user@example.com", Role: models.RoleAdmin}

	access, err := svc.generateAccessToken(ctx, user, time.Now().UTC())
	require.NoError(t, err)

	st.EXPECT().UserByID(gomock.Any(), user.ID).Return(user, nil)

	got, err := svc.Authenticate(ctx, access)
	require.NoError(t, err)
	require.Equal(t, user.ID, got.ID)
	require.Equal(t, user.Email, got.Email)
}

func TestAuthenticate_InvalidExpiredOrDeletedUser(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	ctx := context.Background()

	_, err := svc.Authenticate(ctx, "not-a-jwt")
	require.ErrorIs(t, err, ErrInvalidToken)

	// Просроченный: отрицательный TTL.
	cfg := svc.cfg
	cfg.AccessTTL = config.Duration(-10 * time.Second)
	svc.cfg = cfg

	user := &models.User{ID: uuid.New(), Email: "e@e.com"}
	access, err := svc.generateAccessToken(ctx, user, time.Now().UTC())
	require.NoError(t, err)

	_, err = svc.Authenticate(ctx, access)
	require.ErrorIs(t, err, ErrTokenExpired)

	// Валидный токен, но пользователя уже нет.
	cfg.AccessTTL = config.Duration(30 * time.Second)
	svc.cfg = cfg

	access, err = svc.generateAccessToken(ctx, user, time.Now().UTC())
	require.NoError(t, err)

	st.EXPECT().UserByID(gomock.Any(), user.ID).Return(nil, storage.ErrNotFound)
	_, err = svc.Authenticate(ctx, access)
	require.ErrorIs(t, err, ErrInvalidToken)
}

// Свойство bcrypt: verify(pw, hash(pw)) всегда true, verify(pw, hash(other))
// всегда false. Гоняем на ~100 случайных строках, включая юникод и пустую;
// для скорости хэшируем минимальной стоимостью — корректность от неё не зависит.
func TestPasswordHash_RoundTripProperty(t *testing.T) {
	t.Parallel()

	rnd := rand.New(rand.NewSource(42))
	alphabet := []rune("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%^&*()-_=+ пароль密码🔐")

	randString := func(n int) string {
		out := make([]rune, n)
		for i := range out {
			out[i] = alphabet[rnd.Intn(len(alphabet))]
		}
		return string(out)
	}

	cases := []string{"", "pw123456", "пароль-строка", "密码密码密码"}
	for i := 0; i < 100; i++ {
		cases = append(cases, randString(rnd.Intn(24)))
	}

	for i, pw := range cases {
		hash, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.MinCost)
		require.NoError(t, err)

		require.True(t, checkPassword(string(hash), pw), "case %d: %q", i, pw)

		other := pw + "x"
		require.False(t, checkPassword(string(hash), other), "case %d: %q", i, pw)
	}
}

func TestPasswordHash_DefaultCost(t *testing.T) {
	t.Parallel()

	hash := mustHashPW(t, "pw123456")
	cost, err := bcrypt.Cost([]byte(hash))
	require.NoError(t, err)
	require.Equal(t, bcrypt.DefaultCost, cost)

	require.True(t, checkPassword(hash, "pw123456"))
	require.False(t, checkPassword(hash, "pw1234567"))
}

func TestValidateEmail_NormalizesAndRejects(t *testing.T) {
	t.Parallel()

	norm, err := validateEmail("  User@Example.COM ")
	require.NoError(t, err)
	require.Equal(t, "user@example.com", norm)

	for _, bad := range []string{"", "   ", "no-at-sign", "a@b@c", "a b@e.com"} {
		_, err := validateEmail(bad)
		require.Error(t, err, "email %q", bad)
	}
}
