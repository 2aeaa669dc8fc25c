package bolt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/bytebuddy/bytebuddy/internal/model"
	"github.com/bytebuddy/bytebuddy/internal/store"
)

// PutResetCode stores code, replacing any earlier code for the same email.
func (s *Store) PutResetCode(_ context.Context, code model.ResetCode) error {
	code.Email = model.NormalizeEmail(code.Email)
	return s.db.Update(func(tx *bolt.Tx) error {
		return putJSON(tx.Bucket(bucketResetCodes), code.Email, code)
	})
}

// GetResetCode returns the active code for email, expired or not.
func (s *Store) GetResetCode(_ context.Context, email string) (*model.ResetCode, error) {
	var code model.ResetCode
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketResetCodes).Get([]byte(model.NormalizeEmail(email)))
		if data == nil {
			return store.ErrResetCodeNotFound
		}
		if err := json.Unmarshal(data, &code); err != nil {
			return fmt.Errorf("failed to decode reset code: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &code, nil
}

// DeleteResetCode removes the code for email if present.
func (s *Store) DeleteResetCode(_ context.Context, email string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketResetCodes).Delete([]byte(model.NormalizeEmail(email)))
	})
}

// RevokeSession marks tokenID revoked until the given time. Entries whose
// window has passed are swept in the same transaction.
func (s *Store) RevokeSession(_ context.Context, tokenID string, until time.Time) error {
	now := s.now()
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRevokedSessions)

		var stale [][]byte
		err := b.ForEach(func(k, v []byte) error {
			var exp time.Time
			if err := exp.UnmarshalText(v); err != nil || !exp.After(now) {
				stale = append(stale, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return err
			}
		}

		if !until.After(now) {
			return nil
		}
		v, err := until.UTC().MarshalText()
		if err != nil {
			return err
		}
		return b.Put([]byte(tokenID), v)
	})
}

// IsSessionRevoked reports whether tokenID is inside its revocation window.
func (s *Store) IsSessionRevoked(_ context.Context, tokenID string) (bool, error) {
	var revoked bool
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketRevokedSessions).Get([]byte(tokenID))
		if v == nil {
			return nil
		}
		var exp time.Time
		if err := exp.UnmarshalText(v); err != nil {
			return fmt.Errorf("failed to decode revocation: %w", err)
		}
		revoked = exp.After(s.now())
		return nil
	})
	return revoked, err
}
