// Package migration moves guest-owned data to accounts and expires
// abandoned guest sessions.
package migration

import (
	"context"
	"errors"
	"fmt"

	"github.com/KaramelBytes/dataglimpse/internal/model"
	"github.com/KaramelBytes/dataglimpse/internal/store"
	"go.uber.org/zap"
)

// Migration steps reported in MigrationError.
const (
	StepLoadSession   = "load session"
	StepReassign      = "reassign datasets"
	StepDeleteSession = "delete session"
)

// MigrationError reports a store failure part way through a migration.
// Retrying the migration is safe.
type MigrationError struct {
	SessionID string
	Step      string
	Err       error
}

func (e *MigrationError) Error() string {
	return fmt.Sprintf("migrate guest session %s: %s: %v", e.SessionID, e.Step, e.Err)
}

func (e *MigrationError) Unwrap() error { return e.Err }

// Result describes a finished migration.
type Result struct {
	Migrated bool `json:"migrated"`
	Count    int  `json:"count"`
}

// Store is the persistence a Migrator needs.
type Store interface {
	store.DatasetStore
	store.SessionStore
}

// Migrator hands a guest session's datasets to an account.
type Migrator struct {
	store Store
	log   *zap.Logger
}

// NewMigrator builds a Migrator. A nil logger discards output.
func NewMigrator(s Store, log *zap.Logger) *Migrator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Migrator{store: s, log: log}
}

// Migrate reassigns every dataset of the guest session to accountID, then
// deletes the session. A session that does not exist is not an error and
// reports {false, 0}.
func (m *Migrator) Migrate(ctx context.Context, guestSessionID, accountID string) (Result, error) {
	if accountID == "" {
		return Result{}, &MigrationError{SessionID: guestSessionID, Step: StepReassign, Err: errors.New("account id is required")}
	}
	sess, err := m.store.GetSession(ctx, guestSessionID)
	if errors.Is(err, store.ErrNotFound) {
		return Result{}, nil
	}
	if err != nil {
		return Result{}, &MigrationError{SessionID: guestSessionID, Step: StepLoadSession, Err: err}
	}

	n := 0
	if len(sess.DatasetIDs) > 0 {
		n, err = m.store.ReassignDatasets(ctx, sess.DatasetIDs, model.AccountOwner(accountID))
		if err != nil {
			return Result{}, &MigrationError{SessionID: guestSessionID, Step: StepReassign, Err: err}
		}
	}
	if err := m.store.DeleteSession(ctx, guestSessionID); err != nil && !errors.Is(err, store.ErrNotFound) {
		return Result{}, &MigrationError{SessionID: guestSessionID, Step: StepDeleteSession, Err: err}
	}
	m.log.Info("guest session migrated",
		zap.String("session_id", guestSessionID),
		zap.String("account_id", accountID),
		zap.Int("datasets", n))
	return Result{Migrated: true, Count: n}, nil
}
