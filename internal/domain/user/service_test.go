// internal/domain/user/service_test.go
package user

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/jewelry-storefront/internal/config"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testPassword = "Str0ng!Pwd"

func testService(t *testing.T) *Service {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&User{}))

	cfg := &config.Config{}
	cfg.App.Name = "Jewelry Storefront"
	cfg.JWT.Secret = "test-secret"
	cfg.JWT.AccessTokenExpiry = 15 * time.Minute
	cfg.JWT.RefreshTokenExpiry = 24 * time.Hour
	cfg.Security.BcryptCost = bcrypt.MinCost

	return NewService(db, cfg)
}

func registerRequest() *RegisterRequest {
	return &RegisterRequest{
		Email:           "shopper@example.com",
		Password:        testPassword,
		ConfirmPassword: testPassword,
		FirstName:       "Ada",
		LastName:        "Lovelace",
	}
}

func TestRegisterAndLogin(t *testing.T) {
	svc := testService(t)

	resp, err := svc.Register(registerRequest())
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Empty(t, resp.User.Password, "password hash must not leak in responses")

	login, err := svc.Login(&LoginRequest{Email: "shopper@example.com", Password: testPassword})
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, login.User.ID)
	assert.NotNil(t, login.User.LastLoginAt)
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	svc := testService(t)

	_, err := svc.Register(registerRequest())
	require.NoError(t, err)

	_, err = svc.Register(registerRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestRegisterRejectsPasswordMismatch(t *testing.T) {
	svc := testService(t)

	req := registerRequest()
	req.ConfirmPassword = "Other1!Pwd"
	_, err := svc.Register(req)
	require.Error(t, err)
}

func TestLoginWrongPassword(t *testing.T) {
	svc := testService(t)

	_, err := svc.Register(registerRequest())
	require.NoError(t, err)

	_, err = svc.Login(&LoginRequest{Email: "shopper@example.com", Password: "Wr0ng!Pwd"})
	require.Error(t, err)
	// Wrong password and unknown email are indistinguishable to the caller.
	_, unknownErr := svc.Login(&LoginRequest{Email: "nobody@example.com", Password: testPassword})
	assert.Equal(t, err.Error(), unknownErr.Error())
}

func TestRefreshToken(t *testing.T) {
	svc := testService(t)

	resp, err := svc.Register(registerRequest())
	require.NoError(t, err)

	refreshed, err := svc.RefreshToken(resp.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, refreshed.User.ID)
	assert.NotEmpty(t, refreshed.AccessToken)

	// An access token is not accepted as a refresh token.
	_, err = svc.RefreshToken(resp.AccessToken)
	require.Error(t, err)
}

func TestChangePassword(t *testing.T) {
	svc := testService(t)

	resp, err := svc.Register(registerRequest())
	require.NoError(t, err)

	err = svc.ChangePassword(resp.User.ID, "Wr0ng!Pwd", "N3w!Passwd")
	require.Error(t, err)

	require.NoError(t, svc.ChangePassword(resp.User.ID, testPassword, "N3w!Passwd"))

	_, err = svc.Login(&LoginRequest{Email: "shopper@example.com", Password: "N3w!Passwd"})
	require.NoError(t, err)
}

func TestUpdateProfilePartialUpdate(t *testing.T) {
	svc := testService(t)

	resp, err := svc.Register(registerRequest())
	require.NoError(t, err)

	phone := "+1-555-0100"
	shipping := "12 Main St, Springfield"
	updated, err := svc.UpdateProfile(resp.User.ID, &UpdateProfileRequest{
		Phone:           &phone,
		ShippingAddress: &shipping,
	})
	require.NoError(t, err)
	assert.Equal(t, phone, updated.Phone)
	assert.Equal(t, shipping, updated.ShippingAddress)
	assert.Equal(t, "Ada", updated.FirstName, "untouched fields keep their values")
}
