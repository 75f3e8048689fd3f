package auth

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned for an unknown user or wrong password
var ErrInvalidCredentials = errors.New("invalid username or password")

// Role represents user access level
type Role string

const (
	RoleAdmin    Role = "admin"    // may issue device commands
	RoleReadOnly Role = "readonly" // may only read entities and events
)

// User represents authenticated user
type User struct {
	Username string `json:"username"`
	Role     Role   `json:"role"`
}

// IsAdmin returns true if user has admin role
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Account is a configured API login. Either PasswordHash (bcrypt) or
// Password must be set.
type Account struct {
	Username     string
	Password     string
	PasswordHash string
	Role         Role
}

type account struct {
	hash []byte
	role Role
}

// Authenticator checks API logins against configured accounts
type Authenticator struct {
	accounts map[string]account
	dummy    []byte
}

// NewAuthenticator hashes plain passwords once so every check is a
// bcrypt comparison
func NewAuthenticator(accounts []Account) (*Authenticator, error) {
	a := &Authenticator{accounts: make(map[string]account, len(accounts))}

	for _, acc := range accounts {
		if acc.Username == "" {
			return nil, fmt.Errorf("account with empty username")
		}

		hash := []byte(acc.PasswordHash)
		if len(hash) == 0 {
			if acc.Password == "" {
				return nil, fmt.Errorf("account %s: password or password_hash required", acc.Username)
			}
			var err error
			hash, err = bcrypt.GenerateFromPassword([]byte(acc.Password), bcrypt.DefaultCost)
			if err != nil {
				return nil, fmt.Errorf("account %s: %w", acc.Username, err)
			}
		} else if _, err := bcrypt.Cost(hash); err != nil {
			return nil, fmt.Errorf("account %s: invalid password_hash: %w", acc.Username, err)
		}

		role := acc.Role
		if role == "" {
			role = RoleReadOnly
		}
		a.accounts[strings.ToLower(acc.Username)] = account{hash: hash, role: role}
	}

	// Unknown users still pay for a comparison
	dummy, err := bcrypt.GenerateFromPassword([]byte("hubitat-bridge"), bcrypt.MinCost)
	if err != nil {
		return nil, err
	}
	a.dummy = dummy

	return a, nil
}

// Authenticate verifies username and password
func (a *Authenticator) Authenticate(username, password string) (*User, error) {
	acc, ok := a.accounts[strings.ToLower(username)]
	if !ok {
		bcrypt.CompareHashAndPassword(a.dummy, []byte(password))
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword(acc.hash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return &User{Username: username, Role: acc.role}, nil
}

// Enabled reports whether any account is configured
func (a *Authenticator) Enabled() bool {
	return len(a.accounts) > 0
}
