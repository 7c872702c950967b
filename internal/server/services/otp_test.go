package services

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/passlink/internal/common"
	"github.com/dmitrijs2005/passlink/internal/server/auth"
	"github.com/dmitrijs2005/passlink/internal/server/creds"
	"github.com/dmitrijs2005/passlink/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var continuationTokenRe = regexp.MustCompile(`^[0-9a-f]{32}\.\d+$`)

func newOTPService(t *testing.T, rm *fakeRepoManager, mailer *fakeMailer) *OTPService {
	t.Helper()
	cfg := testConfig()
	codec := auth.NewCodec(cfg.SecretKey, cfg.TokenValidity)
	return NewOTPService(newSQLMockDB(t), rm, cfg, codec, mailer, testLogger())
}

func emailCodeUser() *models.User {
	return &models.User{
		ID:           "u-1",
		Email:        "user@example.com",
		Name:         "Alice",
		AuthMethodID: "m-1",
	}
}

func emailCodeMethods() *fakeAuthMethodsRepo {
	return &fakeAuthMethodsRepo{byID: map[string]*models.AuthMethod{
		"m-1": {ID: "m-1", Name: common.MethodEmailCode, DisplayName: "One-time code by email"},
	}}
}

func TestOTPRequest_Success(t *testing.T) {
	user := emailCodeUser()
	rm := &fakeRepoManager{
		u: &fakeUsersRepo{byEmail: map[string]*models.User{user.Email: user}},
		m: emailCodeMethods(),
	}
	mailer := &fakeMailer{}
	s := newOTPService(t, rm, mailer)

	token, err := s.Request(context.Background(), user)
	require.NoError(t, err)

	assert.Regexp(t, continuationTokenRe, token, "continuation token is <hex>.<epochMillis>")

	millis, err := strconv.ParseInt(strings.Split(token, ".")[1], 10, 64)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), time.UnixMilli(millis), time.Minute)

	require.Equal(t, 1, rm.u.beginCalls)
	assert.Equal(t, "u-1", rm.u.lastBeginID)
	assert.True(t, strings.HasPrefix(rm.u.lastSecret, "$argon2id$"))
	assert.True(t, strings.HasPrefix(rm.u.lastToken, "$argon2id$"))

	require.Equal(t, 1, mailer.calls)
	assert.Equal(t, user.Email, mailer.lastTo)
	assert.NotContains(t, mailer.lastBody, token, "continuation token never travels by mail")
}

func TestOTPRequest_MailedCodeMatchesStoredHash(t *testing.T) {
	user := emailCodeUser()
	rm := &fakeRepoManager{
		u: &fakeUsersRepo{byEmail: map[string]*models.User{user.Email: user}},
		m: emailCodeMethods(),
	}
	mailer := &fakeMailer{}
	s := newOTPService(t, rm, mailer)

	_, err := s.Request(context.Background(), user)
	require.NoError(t, err)

	// Extract the 6-digit code from the mail body and check it against the
	// persisted hash.
	m := regexp.MustCompile(`<b>(\d{6})</b>`).FindStringSubmatch(mailer.lastBody)
	require.Len(t, m, 2, "mail body must carry the code: %q", mailer.lastBody)

	ok, err := creds.NewHasher(1).Verify(m[1], rm.u.lastSecret)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestOTPRequest_ConflictSurfacesAsNotFound(t *testing.T) {
	user := emailCodeUser()
	rm := &fakeRepoManager{
		u: &fakeUsersRepo{byEmail: map[string]*models.User{user.Email: user}, beginErr: common.ErrorNotFound},
		m: emailCodeMethods(),
	}
	s := newOTPService(t, rm, &fakeMailer{})

	_, err := s.Request(context.Background(), user)
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestOTPRequest_MailFailure(t *testing.T) {
	user := emailCodeUser()
	rm := &fakeRepoManager{
		u: &fakeUsersRepo{byEmail: map[string]*models.User{user.Email: user}},
		m: emailCodeMethods(),
	}
	mailer := &fakeMailer{sendErr: assert.AnError}
	s := newOTPService(t, rm, mailer)

	_, err := s.Request(context.Background(), user)
	assert.ErrorIs(t, err, common.ErrorInternal)
	// The pending state is deliberately not rolled back; the next request
	// overwrites it.
	assert.Equal(t, 1, rm.u.beginCalls)
}

// confirmFixture prepares a user with a real pending OTP cycle and returns
// the service plus the cleartext token and code.
func confirmFixture(t *testing.T, rm *fakeRepoManager) (*OTPService, *models.User, string, string) {
	t.Helper()

	token := "00000000000000000000000000000000." + strconv.FormatInt(time.Now().UnixMilli(), 10)
	code := "123456"

	h := creds.NewHasher(1)
	secretHash, err := h.Hash(code)
	require.NoError(t, err)
	tokenHash, err := h.Hash(token)
	require.NoError(t, err)

	user := emailCodeUser()
	user.SecretHash = &secretHash
	user.TokenHash = &tokenHash

	if rm.u == nil {
		rm.u = &fakeUsersRepo{byEmail: map[string]*models.User{user.Email: user}}
	} else {
		rm.u.byEmail = map[string]*models.User{user.Email: user}
	}
	if rm.m == nil {
		rm.m = emailCodeMethods()
	}

	return newOTPService(t, rm, &fakeMailer{}), user, token, code
}

func TestOTPConfirm_Success(t *testing.T) {
	rm := &fakeRepoManager{}
	s, user, token, code := confirmFixture(t, rm)

	ip := "203.0.113.7"
	signed, err := s.Confirm(context.Background(), user, token, code, &ip)
	require.NoError(t, err)

	claims, err := auth.NewCodec(testConfig().SecretKey, time.Hour).Verify(signed)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.UserID)
	assert.Equal(t, "user@example.com", claims.Email)
	assert.Equal(t, common.MethodEmailCode, claims.Method)

	require.Equal(t, 1, rm.u.completeCalls)
	require.NotNil(t, rm.u.lastIP)
	assert.Equal(t, ip, *rm.u.lastIP)
}

func TestOTPConfirm_WrongCode(t *testing.T) {
	rm := &fakeRepoManager{}
	s, user, token, _ := confirmFixture(t, rm)

	_, err := s.Confirm(context.Background(), user, token, "000000", nil)
	assert.ErrorIs(t, err, common.ErrorInvalidCode)
	assert.Zero(t, rm.u.completeCalls)
}

func TestOTPConfirm_WrongToken_SameError(t *testing.T) {
	rm := &fakeRepoManager{}
	s, user, _, code := confirmFixture(t, rm)

	bogus := "ffffffffffffffffffffffffffffffff." + strconv.FormatInt(time.Now().UnixMilli(), 10)
	_, err := s.Confirm(context.Background(), user, bogus, code, nil)
	assert.ErrorIs(t, err, common.ErrorInvalidCode,
		"token mismatch and code mismatch must be indistinguishable")
}

func TestOTPConfirm_Expired_RegardlessOfCode(t *testing.T) {
	rm := &fakeRepoManager{}
	s, user, token, code := confirmFixture(t, rm)

	stale := strings.Split(token, ".")[0] + "." +
		strconv.FormatInt(time.Now().Add(-3*time.Minute).UnixMilli(), 10)

	_, err := s.Confirm(context.Background(), user, stale, code, nil)
	assert.ErrorIs(t, err, common.ErrorLoginExpired)
	assert.Zero(t, rm.u.completeCalls)
}

func TestOTPConfirm_MalformedToken(t *testing.T) {
	rm := &fakeRepoManager{}
	s, user, _, code := confirmFixture(t, rm)

	for _, bad := range []string{"", "nodot", "a.b.c", ".123", "abc.notanumber"} {
		_, err := s.Confirm(context.Background(), user, bad, code, nil)
		assert.ErrorIs(t, err, common.ErrorValidation, "token %q", bad)
	}
}

func TestOTPConfirm_NoPendingLogin(t *testing.T) {
	rm := &fakeRepoManager{}
	s, user, token, code := confirmFixture(t, rm)

	// Simulate an already consumed cycle.
	user.SecretHash = nil
	user.TokenHash = nil

	_, err := s.Confirm(context.Background(), user, token, code, nil)
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestOTPConfirm_ConcurrentConsumeSurfacesAsNotFound(t *testing.T) {
	rm := &fakeRepoManager{u: &fakeUsersRepo{completeErr: common.ErrorNotFound}}
	s, user, token, code := confirmFixture(t, rm)

	_, err := s.Confirm(context.Background(), user, token, code, nil)
	assert.ErrorIs(t, err, common.ErrorNotFound)
}
