package model

import (
	"database/sql"
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// bcryptCost is deliberately above bcrypt.DefaultCost; password hashing is
// not on any hot path.
const bcryptCost = 12

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrSessionNotFound = errors.New("session not found, expired, or blocked")
)

type User struct {
	ID                              int       `json:"id"`
	Username                        string    `json:"username"`
	Email                           string    `json:"email"`
	Password                        string    `json:"-"`
	AuthProvider                    string    `json:"auth_provider"`
	IsEmailVerified                 bool      `json:"is_email_verified"`
	EmailVerificationToken          string    `json:"-"`
	EmailVerificationTokenExpiresAt time.Time `json:"-"`
	PasswordResetToken              string    `json:"-"`
	PasswordResetTokenExpiresAt     time.Time `json:"-"`
	CreatedAt                       time.Time `json:"created_at"`
	UpdatedAt                       time.Time `json:"updated_at"`
}

type Session struct {
	ID           int       `json:"id"`
	UserID       int       `json:"user_id"`
	Token        string    `json:"token"`         // Access Token
	RefreshToken string    `json:"refresh_token"` // Refresh Token
	UserAgent    string    `json:"user_agent"`
	ClientIP     string    `json:"client_ip"`
	IsBlocked    bool      `json:"is_blocked"`
	ExpiresAt    time.Time `json:"expires_at"` // Expiry of the refresh token or session
	CreatedAt    time.Time `json:"created_at"`
}

// HashPassword hashes the user's password using bcrypt.
func (u *User) HashPassword(password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return err
	}
	u.Password = string(hashedPassword)
	return nil
}

// CheckPassword compares a given password with the user's hashed password.
func (u *User) CheckPassword(password string) error {
	return bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password))
}

const userColumns = `id, username, password, email, auth_provider, is_email_verified,
	email_verification_token, email_verification_token_expires_at,
	password_reset_token, password_reset_token_expires_at, created_at, updated_at`

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

func scanUser(row *sql.Row) (*User, error) {
	var user User
	var verificationToken, resetToken sql.NullString
	var verificationExpiry, resetExpiry sql.NullTime

	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Password,
		&user.Email,
		&user.AuthProvider,
		&user.IsEmailVerified,
		&verificationToken,
		&verificationExpiry,
		&resetToken,
		&resetExpiry,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	user.EmailVerificationToken = verificationToken.String
	user.EmailVerificationTokenExpiresAt = verificationExpiry.Time
	user.PasswordResetToken = resetToken.String
	user.PasswordResetTokenExpiresAt = resetExpiry.Time
	return &user, nil
}

// CreateUser inserts a new user into the database and sets u.ID.
func (u *User) CreateUser(db *sql.DB) error {
	query := `
	INSERT INTO users (username, password, email, auth_provider, is_email_verified,
		email_verification_token, email_verification_token_expires_at, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	stmt, err := db.Prepare(query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	if u.AuthProvider == "" {
		u.AuthProvider = "local"
	}
	now := time.Now()
	u.CreatedAt = now
	u.UpdatedAt = now

	res, err := stmt.Exec(
		u.Username,
		u.Password,
		u.Email,
		u.AuthProvider,
		u.IsEmailVerified,
		nullString(u.EmailVerificationToken),
		nullTime(u.EmailVerificationTokenExpiresAt),
		u.CreatedAt,
		u.UpdatedAt,
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	u.ID = int(id)
	return nil
}

// GetUserByUsername retrieves a user from the database by their username.
func GetUserByUsername(db *sql.DB, username string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = ?`
	return scanUser(db.QueryRow(query, username))
}

// GetUserByEmail retrieves a user from the database by their email address.
func GetUserByEmail(db *sql.DB, email string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = ?`
	return scanUser(db.QueryRow(query, email))
}

// GetUserByID retrieves a user from the database by their primary key.
func GetUserByID(db *sql.DB, id int) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`
	return scanUser(db.QueryRow(query, id))
}

// GetUserByVerificationToken retrieves a user by a pending email verification token.
func GetUserByVerificationToken(db *sql.DB, token string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email_verification_token = ?`
	return scanUser(db.QueryRow(query, token))
}

// GetUserByResetToken retrieves a user by a pending password reset token.
func GetUserByResetToken(db *sql.DB, token string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE password_reset_token = ?`
	return scanUser(db.QueryRow(query, token))
}

// MarkEmailVerified flags the user as verified and clears the verification token.
func MarkEmailVerified(db *sql.DB, userID int) error {
	query := `
	UPDATE users
	SET is_email_verified = TRUE,
		email_verification_token = NULL,
		email_verification_token_expires_at = NULL,
		updated_at = ?
	WHERE id = ?`
	_, err := db.Exec(query, time.Now(), userID)
	return err
}

// SetPasswordResetToken stores a reset token and its expiry for the user.
func SetPasswordResetToken(db *sql.DB, userID int, token string, expiresAt time.Time) error {
	query := `
	UPDATE users
	SET password_reset_token = ?,
		password_reset_token_expires_at = ?,
		updated_at = ?
	WHERE id = ?`
	_, err := db.Exec(query, token, expiresAt, time.Now(), userID)
	return err
}

// UpdatePassword replaces the stored hash and clears any pending reset token.
func UpdatePassword(db *sql.DB, userID int, hashedPassword string) error {
	query := `
	UPDATE users
	SET password = ?,
		password_reset_token = NULL,
		password_reset_token_expires_at = NULL,
		updated_at = ?
	WHERE id = ?`
	_, err := db.Exec(query, hashedPassword, time.Now(), userID)
	return err
}

// CreateSession inserts a new session into the database.
func CreateSession(db *sql.DB, session *Session) error {
	query := `
	INSERT INTO sessions (user_id, token, refresh_token, user_agent, client_ip, is_blocked, expires_at, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	stmt, err := db.Prepare(query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	session.CreatedAt = time.Now()
	_, err = stmt.Exec(
		session.UserID,
		session.Token,
		session.RefreshToken,
		session.UserAgent,
		session.ClientIP,
		session.IsBlocked,
		session.ExpiresAt,
		session.CreatedAt,
	)
	return err
}

func scanSession(row *sql.Row) (*Session, error) {
	var session Session
	err := row.Scan(
		&session.ID,
		&session.UserID,
		&session.Token,
		&session.RefreshToken,
		&session.UserAgent,
		&session.ClientIP,
		&session.IsBlocked,
		&session.ExpiresAt,
		&session.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return &session, nil
}

const sessionColumns = `id, user_id, token, refresh_token, user_agent, client_ip, is_blocked, expires_at, created_at`

// GetSessionByToken retrieves an active, non-blocked session by its access token.
func GetSessionByToken(db *sql.DB, token string) (*Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE token = ? AND is_blocked = FALSE AND expires_at > ?`
	return scanSession(db.QueryRow(query, token, time.Now()))
}

// GetSessionByRefreshToken retrieves an active, non-blocked session by its refresh token.
func GetSessionByRefreshToken(db *sql.DB, refreshToken string) (*Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE refresh_token = ? AND is_blocked = FALSE AND expires_at > ?`
	return scanSession(db.QueryRow(query, refreshToken, time.Now()))
}

// UpdateSessionToken swaps the access token stored for a session, used when
// refreshing without rotating the refresh token itself.
func UpdateSessionToken(db *sql.DB, sessionID int, newToken string) error {
	_, err := db.Exec(`UPDATE sessions SET token = ? WHERE id = ?`, newToken, sessionID)
	return err
}

// DeleteSessionByToken removes a session from the database based on the access token.
func DeleteSessionByToken(db *sql.DB, token string) error {
	query := `DELETE FROM sessions WHERE token = ?`
	stmt, err := db.Prepare(query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	// A zero row count is fine here; the session may have already expired.
	_, err = stmt.Exec(token)
	return err
}

// DeleteSessionsByUserID removes every session belonging to a user. Called
// after a password reset so stale sessions cannot survive it.
func DeleteSessionsByUserID(db *sql.DB, userID int) error {
	_, err := db.Exec(`DELETE FROM sessions WHERE user_id = ?`, userID)
	return err
}
