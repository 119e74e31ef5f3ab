package authn

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"passage/internal/session/models"
	dErrors "passage/pkg/domain-errors"
)

// Directory is an in-process implementation of the external authentication
// API, used by the demo shell and tests. Real deployments point the session
// service at the platform backend instead.
type Directory struct {
	issuer *Issuer

	mu    sync.RWMutex
	users map[string]*account
}

type account struct {
	hash     []byte
	identity models.Identity
}

// NewDirectory creates an empty directory backed by the given issuer.
func NewDirectory(issuer *Issuer) *Directory {
	return &Directory{issuer: issuer, users: make(map[string]*account)}
}

// Register adds a user. The identifier is the lowercase username; the role
// string is normalized through the closed enumeration.
func (d *Directory) Register(username, email, password, role string) error {
	r, ok := models.ParseRole(role)
	if !ok {
		return dErrors.New(dErrors.CodeUnknownRole, fmt.Sprintf("unknown role %q", role))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[strings.ToLower(username)] = &account{
		hash: hash,
		identity: models.Identity{
			ID:       uuid.NewString(),
			Username: username,
			Email:    email,
			Role:     r,
		},
	}
	return nil
}

// Login verifies credentials and mints a token/identity pair.
func (d *Directory) Login(ctx context.Context, identifier, password string) (models.Credential, models.Identity, error) {
	d.mu.RLock()
	acct, ok := d.users[strings.ToLower(identifier)]
	d.mu.RUnlock()

	if !ok {
		return models.Credential{}, models.Identity{}, dErrors.New(dErrors.CodeUnauthorized, "unknown user")
	}
	if err := bcrypt.CompareHashAndPassword(acct.hash, []byte(password)); err != nil {
		return models.Credential{}, models.Identity{}, dErrors.New(dErrors.CodeUnauthorized, "wrong password")
	}

	cred, err := d.issuer.Issue(acct.identity)
	if err != nil {
		return models.Credential{}, models.Identity{}, err
	}
	return cred, acct.identity, nil
}

// Profile re-fetches the identity for a valid credential.
func (d *Directory) Profile(ctx context.Context, cred models.Credential) (models.Identity, error) {
	claims, err := d.issuer.Validate(cred.AccessToken)
	if err != nil {
		return models.Identity{}, err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, acct := range d.users {
		if acct.identity.ID == claims.Subject {
			return acct.identity, nil
		}
	}
	return models.Identity{}, dErrors.New(dErrors.CodeNotFound, "user no longer exists")
}
