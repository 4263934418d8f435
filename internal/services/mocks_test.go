package services

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopfront/accounts/internal/apperr"
	"github.com/shopfront/accounts/internal/config"
	"github.com/shopfront/accounts/internal/mailer"
	"github.com/shopfront/accounts/internal/media"
	"github.com/shopfront/accounts/internal/models"
	"github.com/shopfront/accounts/internal/repositories"
	"github.com/shopfront/accounts/internal/session"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// mockUserRepository is an in-memory UserRepository
type mockUserRepository struct {
	users map[string]*models.User

	// err is returned by every method when set
	err       error
	createErr error
	updateErr error
	deleteErr error

	// afterResetLookup runs once GetByResetToken has found a user
	afterResetLookup func(u *models.User)

	calls []string
}

func newMockUserRepository() *mockUserRepository {
	return &mockUserRepository{users: map[string]*models.User{}}
}

func (m *mockUserRepository) record(name string) error {
	m.calls = append(m.calls, name)
	return m.err
}

func (m *mockUserRepository) called(name string) bool {
	for _, c := range m.calls {
		if c == name {
			return true
		}
	}
	return false
}

// add stores a user with the given password and returns it
func (m *mockUserRepository) add(t *testing.T, name, email, password string, role models.Role) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	user := &models.User{
		ID:           uuid.New().String(),
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
		Avatar:       models.Avatar{PublicID: "avatars/" + name + ".png", URL: "http://media/avatars/" + name + ".png"},
		CreatedAt:    time.Now(),
	}
	m.users[user.ID] = user
	return m.copy(user, true)
}

func (m *mockUserRepository) copy(u *models.User, withPassword bool) *models.User {
	c := *u
	if !withPassword {
		c.PasswordHash = ""
	}
	c.ResetPasswordToken = nil
	c.ResetPasswordExpire = nil
	return &c
}

func (m *mockUserRepository) byEmail(email string) *models.User {
	for _, u := range m.users {
		if u.Email == email {
			return u
		}
	}
	return nil
}

func (m *mockUserRepository) Create(_ context.Context, user *models.User) error {
	if err := m.record("Create"); err != nil {
		return err
	}
	if m.createErr != nil {
		return m.createErr
	}
	if m.byEmail(user.Email) != nil {
		return apperr.Validation("Duplicate email entered")
	}
	user.ID = uuid.New().String()
	user.CreatedAt = time.Now()
	stored := *user
	m.users[user.ID] = &stored
	return nil
}

func (m *mockUserRepository) GetByID(_ context.Context, id string) (*models.User, error) {
	if err := m.record("GetByID"); err != nil {
		return nil, err
	}
	u, ok := m.users[id]
	if !ok {
		return nil, repositories.ErrUserNotFound
	}
	return m.copy(u, false), nil
}

func (m *mockUserRepository) GetByIDWithPassword(_ context.Context, id string) (*models.User, error) {
	if err := m.record("GetByIDWithPassword"); err != nil {
		return nil, err
	}
	u, ok := m.users[id]
	if !ok {
		return nil, repositories.ErrUserNotFound
	}
	return m.copy(u, true), nil
}

func (m *mockUserRepository) GetByEmail(_ context.Context, email string) (*models.User, error) {
	if err := m.record("GetByEmail"); err != nil {
		return nil, err
	}
	u := m.byEmail(email)
	if u == nil {
		return nil, repositories.ErrUserNotFound
	}
	return m.copy(u, false), nil
}

func (m *mockUserRepository) GetByEmailWithPassword(_ context.Context, email string) (*models.User, error) {
	if err := m.record("GetByEmailWithPassword"); err != nil {
		return nil, err
	}
	u := m.byEmail(email)
	if u == nil {
		return nil, repositories.ErrUserNotFound
	}
	return m.copy(u, true), nil
}

func (m *mockUserRepository) ExistsByEmail(_ context.Context, email string) (bool, error) {
	if err := m.record("ExistsByEmail"); err != nil {
		return false, err
	}
	return m.byEmail(email) != nil, nil
}

func (m *mockUserRepository) GetByResetToken(_ context.Context, tokenHash string, now time.Time) (*models.User, error) {
	if err := m.record("GetByResetToken"); err != nil {
		return nil, err
	}
	for _, u := range m.users {
		if u.ResetPasswordToken != nil && *u.ResetPasswordToken == tokenHash && u.ResetPasswordExpire.After(now) {
			found := m.copy(u, false)
			if m.afterResetLookup != nil {
				m.afterResetLookup(u)
			}
			return found, nil
		}
	}
	return nil, repositories.ErrUserNotFound
}

func (m *mockUserRepository) SetResetToken(_ context.Context, id, tokenHash string, expire time.Time) error {
	if err := m.record("SetResetToken"); err != nil {
		return err
	}
	u, ok := m.users[id]
	if !ok {
		return repositories.ErrUserNotFound
	}
	u.ResetPasswordToken = &tokenHash
	u.ResetPasswordExpire = &expire
	return nil
}

func (m *mockUserRepository) ClearResetToken(_ context.Context, id string) error {
	if err := m.record("ClearResetToken"); err != nil {
		return err
	}
	u, ok := m.users[id]
	if !ok {
		return repositories.ErrUserNotFound
	}
	u.ResetPasswordToken = nil
	u.ResetPasswordExpire = nil
	return nil
}

func (m *mockUserRepository) ResetPassword(_ context.Context, id, tokenHash, passwordHash string) error {
	if err := m.record("ResetPassword"); err != nil {
		return err
	}
	u, ok := m.users[id]
	if !ok || u.ResetPasswordToken == nil || *u.ResetPasswordToken != tokenHash {
		return repositories.ErrUserNotFound
	}
	u.PasswordHash = passwordHash
	u.ResetPasswordToken = nil
	u.ResetPasswordExpire = nil
	return nil
}

func (m *mockUserRepository) UpdatePasswordHash(_ context.Context, id, passwordHash string) error {
	if err := m.record("UpdatePasswordHash"); err != nil {
		return err
	}
	u, ok := m.users[id]
	if !ok {
		return repositories.ErrUserNotFound
	}
	u.PasswordHash = passwordHash
	return nil
}

func (m *mockUserRepository) UpdateProfile(_ context.Context, id, name, email string, avatar *models.Avatar) error {
	if err := m.record("UpdateProfile"); err != nil {
		return err
	}
	if m.updateErr != nil {
		return m.updateErr
	}
	u := m.users[id]
	u.Name = name
	u.Email = email
	if avatar != nil {
		u.Avatar = *avatar
	}
	return nil
}

func (m *mockUserRepository) UpdateRole(_ context.Context, id, name, email string, role models.Role) error {
	if err := m.record("UpdateRole"); err != nil {
		return err
	}
	if m.updateErr != nil {
		return m.updateErr
	}
	u := m.users[id]
	u.Name = name
	u.Email = email
	u.Role = role
	return nil
}

func (m *mockUserRepository) filtered(role *models.Role, search string) []models.User {
	var users []models.User
	for _, u := range m.users {
		if role != nil && u.Role != *role {
			continue
		}
		if search != "" && !strings.Contains(u.Name, search) && !strings.Contains(u.Email, search) {
			continue
		}
		users = append(users, *m.copy(u, false))
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Email < users[j].Email })
	return users
}

func (m *mockUserRepository) GetAll(_ context.Context, q models.UserListQuery) ([]models.User, error) {
	if err := m.record("GetAll"); err != nil {
		return nil, err
	}
	users := m.filtered(q.Role, q.Search)
	start := (q.Page - 1) * q.Count
	if start >= len(users) {
		return []models.User{}, nil
	}
	end := min(start+q.Count, len(users))
	return users[start:end], nil
}

func (m *mockUserRepository) Count(_ context.Context, role *models.Role, search string) (int, error) {
	if err := m.record("Count"); err != nil {
		return 0, err
	}
	return len(m.filtered(role, search)), nil
}

func (m *mockUserRepository) Delete(_ context.Context, id string) error {
	if err := m.record("Delete"); err != nil {
		return err
	}
	if m.deleteErr != nil {
		return m.deleteErr
	}
	if _, ok := m.users[id]; !ok {
		return repositories.ErrUserNotFound
	}
	delete(m.users, id)
	return nil
}

// mockAvatarHost records uploads and destroys
type mockAvatarHost struct {
	uploaded   []string
	destroyed  []string
	uploadErr  error
	destroyErr error
	seq        int
}

func (m *mockAvatarHost) Upload(_ context.Context, p *media.Payload) (models.Avatar, error) {
	if m.uploadErr != nil {
		return models.Avatar{}, m.uploadErr
	}
	if p == nil || len(p.Data) == 0 {
		return models.Avatar{}, media.ErrInvalidPayload
	}
	m.seq++
	id := "avatars/new-" + string(rune('0'+m.seq)) + ".png"
	m.uploaded = append(m.uploaded, id)
	return models.Avatar{PublicID: id, URL: "http://media/" + id}, nil
}

func (m *mockAvatarHost) Destroy(_ context.Context, publicID string) error {
	if m.destroyErr != nil {
		return m.destroyErr
	}
	m.destroyed = append(m.destroyed, publicID)
	return nil
}

// mockCleanupQueue records enqueued ids
type mockCleanupQueue struct {
	enqueued []string
	err      error
}

func (m *mockCleanupQueue) EnqueueAvatarDestroy(_ context.Context, publicID string) error {
	if m.err != nil {
		return m.err
	}
	m.enqueued = append(m.enqueued, publicID)
	return nil
}

// mockMailer records sent messages
type mockMailer struct {
	sent []mailer.Message
	err  error
}

func (m *mockMailer) Send(_ context.Context, msg mailer.Message) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

// mockDenylist records revoked ids
type mockDenylist struct {
	revoked map[string]time.Time
	err     error
}

func (m *mockDenylist) Revoke(_ context.Context, jti string, until time.Time) error {
	if m.err != nil {
		return m.err
	}
	if m.revoked == nil {
		m.revoked = map[string]time.Time{}
	}
	m.revoked[jti] = until
	return nil
}

func (m *mockDenylist) IsRevoked(_ context.Context, jti string) (bool, error) {
	_, ok := m.revoked[jti]
	return ok, m.err
}

// failingIssuer cannot sign tokens
type failingIssuer struct {
	*session.Issuer
}

func (failingIssuer) Issue(*models.User) (string, error) {
	return "", errors.New("signing failed")
}

func newTestIssuer() *session.Issuer {
	return session.NewIssuer(config.SessionConfig{
		Secret:       "test-secret",
		TokenExpiry:  time.Hour,
		CookieExpiry: time.Hour,
	})
}

func testPayload() *media.Payload {
	return &media.Payload{Data: []byte("image"), ContentType: "image/png"}
}
