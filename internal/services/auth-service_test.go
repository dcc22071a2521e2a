package services

import (
	"context"
	"testing"
	"time"

	"lockbox/internal/dto"
	"lockbox/internal/entities"
	"lockbox/internal/repositories"
	"lockbox/pkg/config"
	apperrors "lockbox/pkg/errors"
	"lockbox/pkg/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type fakeUserRepo struct {
	repositories.UserRepositoryInterface

	users    map[string]*entities.User // по телефону
	otp      *entities.OtpRequest
	otpCount int

	createdOtp  *entities.OtpRequest
	consumedOtp string
}

func newFakeUserRepo(users ...*entities.User) *fakeUserRepo {
	m := make(map[string]*entities.User, len(users))
	for _, u := range users {
		m[u.Phone] = u
	}
	return &fakeUserRepo{users: m}
}

func (f *fakeUserRepo) FindByID(_ context.Context, id string) (*entities.User, error) {
	for _, u := range f.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, errNotFoundForTest()
}

func (f *fakeUserRepo) FindByPhone(_ context.Context, phone string) (*entities.User, error) {
	if u, ok := f.users[phone]; ok {
		return u, nil
	}
	return nil, errNotFoundForTest()
}

func (f *fakeUserRepo) UpsertByPhone(_ context.Context, id, phone string) (*entities.User, error) {
	if u, ok := f.users[phone]; ok {
		return u, nil
	}
	u := &entities.User{ID: id, Phone: phone, Role: entities.RoleUser}
	f.users[phone] = u
	return u, nil
}

func (f *fakeUserRepo) CreateOtp(_ context.Context, otp *entities.OtpRequest) error {
	f.createdOtp = otp
	return nil
}

func (f *fakeUserRepo) FindActiveOtp(_ context.Context, phone string, _ time.Time) (*entities.OtpRequest, error) {
	if f.otp == nil || f.otp.Phone != phone {
		return nil, errNotFoundForTest()
	}
	return f.otp, nil
}

func (f *fakeUserRepo) CountRecentOtp(context.Context, string, time.Time) (int, error) {
	return f.otpCount, nil
}

func (f *fakeUserRepo) IncrementOtpAttempts(_ context.Context, _ string) (int, error) {
	f.otp.Attempts++
	return f.otp.Attempts, nil
}

func (f *fakeUserRepo) ConsumeOtp(_ context.Context, id string) error {
	f.consumedOtp = id
	return nil
}

func newAuthServiceForTest(userRepo *fakeUserRepo) AuthServiceInterface {
	cfg := &config.Config{
		Auth: config.AuthConfig{
			StaticPassword:     "1234",
			OTPTTL:             5 * time.Minute,
			OTPRateLimitWindow: 10 * time.Minute,
			OTPRateLimitCount:  5,
		},
	}
	jwtSvc := service.NewJWTService("test-secret", time.Hour, 24*time.Hour, zap.NewNop())
	return NewAuthService(userRepo, jwtSvc, cfg, zap.NewNop())
}

func TestLogin_StaffUsesOwnPassword(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("admin-pass"), bcrypt.DefaultCost)
	require.NoError(t, err)
	hashStr := string(hash)
	staff := &entities.User{ID: "user-admin", Phone: "+70000000001", Role: entities.RoleAdmin, PasswordHash: &hashStr}
	svc := newAuthServiceForTest(newFakeUserRepo(staff))

	user, tokens, err := svc.Login(context.Background(), dto.LoginDTO{Phone: staff.Phone, Password: "admin-pass"})
	require.NoError(t, err)
	assert.Equal(t, entities.RoleAdmin, user.Role)
	assert.NotEmpty(t, tokens.AccessToken)
	assert.NotEmpty(t, tokens.RefreshToken)

	// Общий пароль киоска для персонала не работает.
	_, _, err = svc.Login(context.Background(), dto.LoginDTO{Phone: staff.Phone, Password: "1234"})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestLogin_KioskStaticPasswordCreatesUser(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newAuthServiceForTest(repo)

	user, tokens, err := svc.Login(context.Background(), dto.LoginDTO{Phone: "+79991234567", Password: "1234"})
	require.NoError(t, err)
	assert.Equal(t, entities.RoleUser, user.Role)
	assert.NotEmpty(t, tokens.AccessToken)
	assert.Contains(t, repo.users, "+79991234567")
}

func TestLogin_WrongStaticPassword(t *testing.T) {
	svc := newAuthServiceForTest(newFakeUserRepo())

	_, _, err := svc.Login(context.Background(), dto.LoginDTO{Phone: "+79991234567", Password: "0000"})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestStartOtp_StoresOnlyHash(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newAuthServiceForTest(repo)

	err := svc.StartOtp(context.Background(), dto.StartOtpDTO{Phone: "+79991234567"})
	require.NoError(t, err)
	require.NotNil(t, repo.createdOtp)
	// В хранилище уходит sha256-хеш, а не сам код.
	assert.Len(t, repo.createdOtp.CodeHash, 64)
	assert.WithinDuration(t, time.Now().Add(5*time.Minute), repo.createdOtp.ExpiresAt, time.Minute)
}

func TestStartOtp_RateLimited(t *testing.T) {
	repo := newFakeUserRepo()
	repo.otpCount = 5
	svc := newAuthServiceForTest(repo)

	err := svc.StartOtp(context.Background(), dto.StartOtpDTO{Phone: "+79991234567"})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrConflict)
	assert.Nil(t, repo.createdOtp)
}

func TestVerifyOtp_Success(t *testing.T) {
	repo := newFakeUserRepo()
	repo.otp = &entities.OtpRequest{
		ID:        "otp-1",
		Phone:     "+79991234567",
		CodeHash:  hashOtpCode("0420"),
		ExpiresAt: time.Now().Add(5 * time.Minute),
	}
	svc := newAuthServiceForTest(repo)

	user, tokens, err := svc.VerifyOtp(context.Background(), dto.VerifyOtpDTO{Phone: "+79991234567", Code: "0420"})
	require.NoError(t, err)
	assert.Equal(t, "+79991234567", user.Phone)
	assert.NotEmpty(t, tokens.RefreshToken)
	assert.Equal(t, "otp-1", repo.consumedOtp)
}

func TestVerifyOtp_WrongCode(t *testing.T) {
	repo := newFakeUserRepo()
	repo.otp = &entities.OtpRequest{
		ID:        "otp-1",
		Phone:     "+79991234567",
		CodeHash:  hashOtpCode("0420"),
		ExpiresAt: time.Now().Add(5 * time.Minute),
	}
	svc := newAuthServiceForTest(repo)

	_, _, err := svc.VerifyOtp(context.Background(), dto.VerifyOtpDTO{Phone: "+79991234567", Code: "1111"})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
	assert.Empty(t, repo.consumedOtp)
}

func TestVerifyOtp_TooManyAttempts(t *testing.T) {
	repo := newFakeUserRepo()
	repo.otp = &entities.OtpRequest{
		ID:        "otp-1",
		Phone:     "+79991234567",
		CodeHash:  hashOtpCode("0420"),
		Attempts:  maxOtpAttempts,
		ExpiresAt: time.Now().Add(5 * time.Minute),
	}
	svc := newAuthServiceForTest(repo)

	// Даже правильный код после перебора не принимается.
	_, _, err := svc.VerifyOtp(context.Background(), dto.VerifyOtpDTO{Phone: "+79991234567", Code: "0420"})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestVerifyOtp_NoActiveCode(t *testing.T) {
	svc := newAuthServiceForTest(newFakeUserRepo())

	_, _, err := svc.VerifyOtp(context.Background(), dto.VerifyOtpDTO{Phone: "+79991234567", Code: "0420"})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestRefresh_RejectsAccessToken(t *testing.T) {
	user := &entities.User{ID: "user-1", Phone: "+79991234567", Role: entities.RoleUser}
	repo := newFakeUserRepo(user)
	svc := newAuthServiceForTest(repo)

	_, tokens, err := svc.Login(context.Background(), dto.LoginDTO{Phone: user.Phone, Password: "1234"})
	require.NoError(t, err)

	_, _, err = svc.Refresh(context.Background(), tokens.AccessToken)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)

	refreshed, newTokens, err := svc.Refresh(context.Background(), tokens.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, refreshed.ID)
	assert.NotEmpty(t, newTokens.AccessToken)
}
