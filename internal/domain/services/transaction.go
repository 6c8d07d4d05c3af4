// Package services contains domain rules that do not touch external systems.
package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/ochairo/symbolpush/internal/domain/entities"
)

// EditTransition names an operation applied to an edit
type EditTransition string

// Operations that move an edit through its lifecycle
const (
	TransitionBegin  EditTransition = "begin"
	TransitionAttach EditTransition = "attach"
	TransitionCommit EditTransition = "commit"
)

// ErrInvalidTransition is returned when an operation does not fit the edit's current state
var ErrInvalidTransition = errors.New("invalid edit transition")

// allowedTransitions maps a current state to the operations it accepts and the resulting state
var allowedTransitions = map[entities.EditState]map[EditTransition]entities.EditState{
	entities.EditUninitialized: {
		TransitionBegin: entities.EditOpen,
	},
	entities.EditOpen: {
		TransitionAttach: entities.EditArtifactsAttached,
		TransitionCommit: entities.EditCommitted,
	},
	entities.EditArtifactsAttached: {
		TransitionAttach: entities.EditArtifactsAttached,
		TransitionCommit: entities.EditCommitted,
	},
}

// TransactionService enforces the edit lifecycle locally
type TransactionService struct {
	now func() time.Time
}

// NewTransactionService creates a new transaction service
func NewTransactionService() *TransactionService {
	return &TransactionService{now: time.Now}
}

// Open builds an open transaction from a service-assigned edit id
func (s *TransactionService) Open(editID, packageName string, versionCode, expirySeconds int64) (*entities.EditTransaction, error) {
	if editID == "" {
		return nil, fmt.Errorf("edit id is empty")
	}

	tx := &entities.EditTransaction{
		EditID:      editID,
		PackageName: packageName,
		VersionCode: versionCode,
		State:       entities.EditUninitialized,
	}
	if expirySeconds > 0 {
		tx.ExpiresAt = time.Unix(expirySeconds, 0).UTC()
	}

	if err := s.Apply(tx, TransitionBegin); err != nil {
		return nil, err
	}
	return tx, nil
}

// CanApply checks whether the transition is valid without changing the transaction
func (s *TransactionService) CanApply(tx *entities.EditTransaction, transition EditTransition) error {
	if tx == nil {
		return fmt.Errorf("cannot %s: no edit transaction: %w", transition, ErrInvalidTransition)
	}

	next, ok := allowedTransitions[tx.State]
	if !ok {
		return fmt.Errorf("cannot %s edit %s: edit is %s: %w", transition, tx.EditID, tx.State, ErrInvalidTransition)
	}
	if _, ok := next[transition]; !ok {
		return fmt.Errorf("cannot %s edit %s: edit is %s: %w", transition, tx.EditID, tx.State, ErrInvalidTransition)
	}
	return nil
}

// Apply moves the transaction to the state reached by the transition
func (s *TransactionService) Apply(tx *entities.EditTransaction, transition EditTransition) error {
	if err := s.CanApply(tx, transition); err != nil {
		return err
	}
	tx.State = allowedTransitions[tx.State][transition]
	return nil
}

// IsExpired reports whether the service-side expiry has passed
func (s *TransactionService) IsExpired(tx *entities.EditTransaction) bool {
	if tx.ExpiresAt.IsZero() {
		return false
	}
	return !s.now().Before(tx.ExpiresAt)
}
