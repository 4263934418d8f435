package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/shopfront/accounts/internal/apperr"
	"github.com/shopfront/accounts/internal/models"
	"go.uber.org/zap"
)

// ErrUserNotFound is returned when no user matches the lookup
var ErrUserNotFound = errors.New("user not found")

// mysqlDuplicateEntry is the MySQL error number for unique key violations
const mysqlDuplicateEntry = 1062

// userColumns are selected by default reads. They never include the password hash.
const userColumns = `id, name, email, role, avatar_public_id, avatar_url, created_at`

// userRepository implements the credential store on MySQL
type userRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sql.DB, logger *zap.Logger) *userRepository {
	return &userRepository{
		db:     db,
		logger: logger,
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner, withPassword bool) (*models.User, error) {
	user := &models.User{}
	dest := []any{
		&user.ID,
		&user.Name,
		&user.Email,
		&user.Role,
		&user.Avatar.PublicID,
		&user.Avatar.URL,
		&user.CreatedAt,
	}
	if withPassword {
		dest = append(dest, &user.PasswordHash)
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	return user, nil
}

// isDuplicateEntry reports whether err is a MySQL unique key violation
func isDuplicateEntry(err error) bool {
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlDuplicateEntry
}

// Create inserts a new user into the database
//
// A new identifier is generated when user.ID is empty.
// A duplicate email is reported as a validation error.
func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.Role == "" {
		user.Role = models.RoleUser
	}
	user.CreatedAt = time.Now().UTC()

	query := `
		INSERT INTO users (id, name, email, password_hash, role, avatar_public_id, avatar_url, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		user.ID,
		user.Name,
		user.Email,
		user.PasswordHash,
		user.Role,
		user.Avatar.PublicID,
		user.Avatar.URL,
		user.CreatedAt,
	)
	if err != nil {
		if isDuplicateEntry(err) {
			return apperr.Validation("Duplicate email entered")
		}
		r.logger.Error("failed to create user", zap.Error(err))
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

func (r *userRepository) getOne(ctx context.Context, where string, withPassword bool, args ...any) (*models.User, error) {
	columns := userColumns
	if withPassword {
		columns += ", password_hash"
	}
	query := fmt.Sprintf("SELECT %s FROM users WHERE %s LIMIT 1", columns, where)

	user, err := scanUser(r.db.QueryRowContext(ctx, query, args...), withPassword)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// GetByID retrieves a user by ID
func (r *userRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	user, err := r.getOne(ctx, "id = ?", false, id)
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		r.logger.Error("failed to get user by id", zap.Error(err), zap.String("id", id))
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}
	return user, err
}

// GetByIDWithPassword retrieves a user by ID including the password hash
func (r *userRepository) GetByIDWithPassword(ctx context.Context, id string) (*models.User, error) {
	user, err := r.getOne(ctx, "id = ?", true, id)
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		r.logger.Error("failed to get user by id", zap.Error(err), zap.String("id", id))
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}
	return user, err
}

// GetByEmail retrieves a user by email
func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	user, err := r.getOne(ctx, "email = ?", false, email)
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		r.logger.Error("failed to get user by email", zap.Error(err), zap.String("email", email))
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return user, err
}

// GetByEmailWithPassword retrieves a user by email including the password hash
func (r *userRepository) GetByEmailWithPassword(ctx context.Context, email string) (*models.User, error) {
	user, err := r.getOne(ctx, "email = ?", true, email)
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		r.logger.Error("failed to get user by email", zap.Error(err), zap.String("email", email))
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return user, err
}

// GetByResetToken retrieves the user whose stored reset token hash matches and has not expired at now
func (r *userRepository) GetByResetToken(ctx context.Context, tokenHash string, now time.Time) (*models.User, error) {
	user, err := r.getOne(ctx, "reset_password_token = ? AND reset_password_expire > ?", false, tokenHash, now)
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		r.logger.Error("failed to get user by reset token", zap.Error(err))
		return nil, fmt.Errorf("failed to get user by reset token: %w", err)
	}
	return user, err
}

// ExistsByEmail checks if a user exists with the given email
func (r *userRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE email = ?)`

	var exists bool
	err := r.db.QueryRowContext(ctx, query, email).Scan(&exists)
	if err != nil {
		r.logger.Error("failed to check email existence", zap.Error(err), zap.String("email", email))
		return false, fmt.Errorf("failed to check email existence: %w", err)
	}

	return exists, nil
}

// exec runs an UPDATE/DELETE and reports ErrUserNotFound when no row matched
func (r *userRepository) exec(ctx context.Context, op, id, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		if isDuplicateEntry(err) {
			return apperr.Validation("Duplicate email entered")
		}
		r.logger.Error("failed to "+op, zap.Error(err), zap.String("id", id))
		return fmt.Errorf("failed to %s: %w", op, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		r.logger.Error("failed to get rows affected", zap.Error(err), zap.String("id", id))
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrUserNotFound
	}

	return nil
}

// SetResetToken stores a reset token hash and its expiry without touching other fields
func (r *userRepository) SetResetToken(ctx context.Context, id, tokenHash string, expire time.Time) error {
	query := `UPDATE users SET reset_password_token = ?, reset_password_expire = ? WHERE id = ?`
	return r.exec(ctx, "set reset token", id, query, tokenHash, expire, id)
}

// ClearResetToken removes the reset token hash and its expiry
func (r *userRepository) ClearResetToken(ctx context.Context, id string) error {
	query := `UPDATE users SET reset_password_token = NULL, reset_password_expire = NULL WHERE id = ?`
	return r.exec(ctx, "clear reset token", id, query, id)
}

// ResetPassword replaces the password hash and clears the reset token in one statement.
// It returns ErrUserNotFound when the token digest is no longer stored for the user.
func (r *userRepository) ResetPassword(ctx context.Context, id, tokenHash, passwordHash string) error {
	query := `
		UPDATE users
		SET password_hash = ?, reset_password_token = NULL, reset_password_expire = NULL
		WHERE id = ? AND reset_password_token = ?
	`
	return r.exec(ctx, "reset password", id, query, passwordHash, id, tokenHash)
}

// UpdatePasswordHash updates the password hash for a user
func (r *userRepository) UpdatePasswordHash(ctx context.Context, id, passwordHash string) error {
	query := `UPDATE users SET password_hash = ? WHERE id = ?`
	return r.exec(ctx, "update password hash", id, query, passwordHash, id)
}

// UpdateProfile updates name and email, and the avatar reference when avatar is not nil
//
// MySQL reports zero affected rows when nothing changed, so a missing user is not detected here.
func (r *userRepository) UpdateProfile(ctx context.Context, id, name, email string, avatar *models.Avatar) error {
	setParts := []string{"name = ?", "email = ?"}
	args := []any{name, email}
	if avatar != nil {
		setParts = append(setParts, "avatar_public_id = ?", "avatar_url = ?")
		args = append(args, avatar.PublicID, avatar.URL)
	}
	args = append(args, id)

	query := fmt.Sprintf("UPDATE users SET %s WHERE id = ?", strings.Join(setParts, ", "))
	err := r.exec(ctx, "update profile", id, query, args...)
	if errors.Is(err, ErrUserNotFound) {
		return nil
	}
	return err
}

// UpdateRole updates name, email and role of a user
func (r *userRepository) UpdateRole(ctx context.Context, id, name, email string, role models.Role) error {
	query := `UPDATE users SET name = ?, email = ?, role = ? WHERE id = ?`
	err := r.exec(ctx, "update role", id, query, name, email, role, id)
	if errors.Is(err, ErrUserNotFound) {
		return nil
	}
	return err
}

// likeEscaper makes LIKE wildcards in user input match literally with ESCAPE '!'
var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// listFilter renders the WHERE clause shared by GetAll and Count
func listFilter(role *models.Role, search string) (string, []any) {
	var conditions []string
	var args []any

	if role != nil {
		conditions = append(conditions, "role = ?")
		args = append(args, *role)
	}
	if search != "" {
		pattern := "%" + likeEscaper.Replace(search) + "%"
		conditions = append(conditions, "(name LIKE ? ESCAPE '!' OR email LIKE ? ESCAPE '!')")
		args = append(args, pattern, pattern)
	}

	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

// GetAll retrieves a page of users ordered by creation time, newest first
func (r *userRepository) GetAll(ctx context.Context, q models.UserListQuery) ([]models.User, error) {
	where, args := listFilter(q.Role, q.Search)
	query := "SELECT " + userColumns + " FROM users" + where + " ORDER BY created_at DESC, id LIMIT ? OFFSET ?"
	args = append(args, q.Count, (q.Page-1)*q.Count)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("failed to query users", zap.Error(err))
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	users := make([]models.User, 0, q.Count)
	for rows.Next() {
		user, err := scanUser(rows, false)
		if err != nil {
			r.logger.Error("failed to scan user", zap.Error(err))
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, *user)
	}
	if err := rows.Err(); err != nil {
		r.logger.Error("error iterating users", zap.Error(err))
		return nil, fmt.Errorf("error iterating users: %w", err)
	}

	return users, nil
}

// Count returns the number of users matching the list filters
func (r *userRepository) Count(ctx context.Context, role *models.Role, search string) (int, error) {
	where, args := listFilter(role, search)
	query := "SELECT COUNT(*) FROM users" + where

	var count int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		r.logger.Error("failed to count users", zap.Error(err))
		return 0, fmt.Errorf("failed to count users: %w", err)
	}

	return count, nil
}

// Delete deletes a user by ID
func (r *userRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM users WHERE id = ?`
	return r.exec(ctx, "delete user", id, query, id)
}

// ListAvatarPublicIDs returns every avatar object id referenced by a user
func (r *userRepository) ListAvatarPublicIDs(ctx context.Context) ([]string, error) {
	query := `SELECT avatar_public_id FROM users WHERE avatar_public_id <> ''`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		r.logger.Error("failed to query avatar ids", zap.Error(err))
		return nil, fmt.Errorf("failed to query avatar ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan avatar id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating avatar ids: %w", err)
	}

	return ids, nil
}
