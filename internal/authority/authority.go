// Package authority holds the single identity allowed to write to the registry.
//
// Writes carry an explicit Credential naming the caller instead of reading an
// ambient "current sender". The HTTP layer builds the credential from the
// authenticated bearer token; in-process callers such as the analysis service
// build it from their configured identity.
//
// With an OwnerStore the owner is shared by every instance using that store:
// the seed only applies when nothing is stored yet, Sync reloads it, and
// transfers are compare-and-swap against the stored value.
package authority

import (
	"context"
	"fmt"
	"sync"

	"autoshield/pkg/domain"
	dErrors "autoshield/pkg/domain-errors"
)

var (
	// ErrUnauthorized is returned when a credential does not name the owner.
	ErrUnauthorized = dErrors.New(dErrors.CodeForbidden, "caller is not the registry authority")
	// ErrInvalidOwner is returned for a zero owner address.
	ErrInvalidOwner = dErrors.New(dErrors.CodeInvalidInput, "authority owner must be a non-zero address")
)

// Credential is the capability a caller presents for a write.
type Credential struct {
	caller domain.Address
}

// NewCredential wraps the caller identity.
func NewCredential(caller domain.Address) Credential {
	return Credential{caller: caller}
}

// Caller returns the identity the credential was built for.
func (c Credential) Caller() domain.Address {
	return c.caller
}

// OwnerStore persists the owner.
type OwnerStore interface {
	// ClaimOwner stores owner unless an owner is already stored, and returns
	// the stored owner either way.
	ClaimOwner(ctx context.Context, owner domain.Address) (domain.Address, error)
	LoadOwner(ctx context.Context) (domain.Address, error)
	// SwapOwner replaces expected with next. It reports false, changing
	// nothing, when the stored owner is not expected.
	SwapOwner(ctx context.Context, expected, next domain.Address) (bool, error)
}

// Authority is safe for concurrent use.
type Authority struct {
	mu    sync.RWMutex
	owner domain.Address
	store OwnerStore
}

// New fixes the initial owner in process memory.
func New(owner domain.Address) (*Authority, error) {
	if owner.IsZero() {
		return nil, ErrInvalidOwner
	}
	return &Authority{owner: owner}, nil
}

// NewShared loads the owner from st, seeding it with seed on first use.
func NewShared(ctx context.Context, seed domain.Address, st OwnerStore) (*Authority, error) {
	if seed.IsZero() {
		return nil, ErrInvalidOwner
	}
	owner, err := st.ClaimOwner(ctx, seed)
	if err != nil {
		return nil, fmt.Errorf("claim registry owner: %w", err)
	}
	return &Authority{owner: owner, store: st}, nil
}

// Sync reloads the owner from the store. Without a store it does nothing.
func (a *Authority) Sync(ctx context.Context) error {
	if a.store == nil {
		return nil
	}
	owner, err := a.store.LoadOwner(ctx)
	if err != nil {
		return fmt.Errorf("load registry owner: %w", err)
	}
	a.mu.Lock()
	a.owner = owner
	a.mu.Unlock()
	return nil
}

// Owner returns the current owner.
func (a *Authority) Owner() domain.Address {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.owner
}

// IsAuthorized reports whether caller is the current owner. The zero address
// is never authorized.
func (a *Authority) IsAuthorized(caller domain.Address) bool {
	if caller.IsZero() {
		return false
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	return caller == a.owner
}

// Authorize checks a credential and returns ErrUnauthorized on mismatch.
func (a *Authority) Authorize(cred Credential) error {
	if !a.IsAuthorized(cred.caller) {
		return ErrUnauthorized
	}
	return nil
}

// TransferOwnership hands the authority to newOwner. The caller is checked
// first: only the current owner may transfer, and never to the zero address.
func (a *Authority) TransferOwnership(ctx context.Context, cred Credential, newOwner domain.Address) (previous domain.Address, err error) {
	if err := a.Sync(ctx); err != nil {
		return domain.ZeroAddress, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if cred.caller.IsZero() || cred.caller != a.owner {
		return domain.ZeroAddress, ErrUnauthorized
	}
	if newOwner.IsZero() {
		return domain.ZeroAddress, ErrInvalidOwner
	}
	if a.store != nil {
		swapped, err := a.store.SwapOwner(ctx, a.owner, newOwner)
		if err != nil {
			return domain.ZeroAddress, fmt.Errorf("store registry owner: %w", err)
		}
		if !swapped {
			// Another instance transferred first.
			if owner, err := a.store.LoadOwner(ctx); err == nil {
				a.owner = owner
			}
			return domain.ZeroAddress, ErrUnauthorized
		}
	}
	previous = a.owner
	a.owner = newOwner
	return previous, nil
}
