package handlers

import (
	"context"
	"net/http"

	"github.com/shopfront/accounts/internal/media"
	"github.com/shopfront/accounts/internal/models"
	"github.com/shopfront/accounts/internal/services"
	"github.com/shopfront/accounts/internal/tasks"
)

type mockAuthService struct {
	registerResult *services.Session
	registerErr    error
	loginResult    *services.Session
	loginErr       error
	forgotResult   string
	forgotErr      error
	resetResult    *services.Session
	resetErr       error

	gotRegister *models.RegisterRequest
	gotAvatar   *media.Payload
	gotLogin    *models.LoginRequest
	gotBaseURL  string
	gotToken    string
	gotReset    *models.ResetPasswordRequest
	loggedOut   []string
}

func (m *mockAuthService) Register(_ context.Context, req *models.RegisterRequest, avatar *media.Payload) (*services.Session, error) {
	m.gotRegister, m.gotAvatar = req, avatar
	return m.registerResult, m.registerErr
}

func (m *mockAuthService) Login(_ context.Context, req *models.LoginRequest) (*services.Session, error) {
	m.gotLogin = req
	return m.loginResult, m.loginErr
}

func (m *mockAuthService) Logout(_ context.Context, token string) {
	m.loggedOut = append(m.loggedOut, token)
}

func (m *mockAuthService) ForgotPassword(_ context.Context, _ *models.ForgotPasswordRequest, baseURL string) (string, error) {
	m.gotBaseURL = baseURL
	return m.forgotResult, m.forgotErr
}

func (m *mockAuthService) ResetPassword(_ context.Context, token string, req *models.ResetPasswordRequest) (*services.Session, error) {
	m.gotToken, m.gotReset = token, req
	return m.resetResult, m.resetErr
}

type mockProfileService struct {
	me            *models.User
	meErr         error
	passwordSess  *services.Session
	passwordErr   error
	updateErr     error
	gotUserID     string
	gotProfile    *models.UpdateProfileRequest
	gotAvatar     *media.Payload
	gotPasswordRq *models.UpdatePasswordRequest
}

func (m *mockProfileService) GetMe(_ context.Context, userID string) (*models.User, error) {
	m.gotUserID = userID
	return m.me, m.meErr
}

func (m *mockProfileService) UpdatePassword(_ context.Context, userID string, req *models.UpdatePasswordRequest) (*services.Session, error) {
	m.gotUserID, m.gotPasswordRq = userID, req
	return m.passwordSess, m.passwordErr
}

func (m *mockProfileService) UpdateProfile(_ context.Context, userID string, req *models.UpdateProfileRequest, avatar *media.Payload) error {
	m.gotUserID, m.gotProfile, m.gotAvatar = userID, req, avatar
	return m.updateErr
}

type mockAdminService struct {
	listResult *models.UserListResponse
	listErr    error
	user       *models.User
	getErr     error
	updateErr  error
	deleteErr  error

	gotQuery models.UserListQuery
	gotID    string
	gotRole  *models.UpdateRoleRequest
}

func (m *mockAdminService) ListUsers(_ context.Context, q models.UserListQuery) (*models.UserListResponse, error) {
	m.gotQuery = q
	return m.listResult, m.listErr
}

func (m *mockAdminService) GetUser(_ context.Context, id string) (*models.User, error) {
	m.gotID = id
	return m.user, m.getErr
}

func (m *mockAdminService) UpdateRole(_ context.Context, id string, req *models.UpdateRoleRequest) error {
	m.gotID, m.gotRole = id, req
	return m.updateErr
}

func (m *mockAdminService) DeleteUser(_ context.Context, id string) error {
	m.gotID = id
	return m.deleteErr
}

type mockReconciler struct {
	result tasks.Result
	err    error
}

func (m *mockReconciler) Run(context.Context) (tasks.Result, error) {
	return m.result, m.err
}

// mockCookies records cookie writes
type mockCookies struct {
	set     []string
	cleared int
}

func (m *mockCookies) SetCookie(w http.ResponseWriter, token string) {
	m.set = append(m.set, token)
	http.SetCookie(w, &http.Cookie{Name: "token", Value: token})
}

func (m *mockCookies) ClearCookie(w http.ResponseWriter) {
	m.cleared++
	http.SetCookie(w, &http.Cookie{Name: "token", Value: "", MaxAge: -1})
}
