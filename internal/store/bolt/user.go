package bolt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/bytebuddy/bytebuddy/internal/model"
	"github.com/bytebuddy/bytebuddy/internal/store"
)

// CreateUser stores a new credential keyed by its normalized email.
func (s *Store) CreateUser(_ context.Context, c *model.Credential) error {
	email := model.NormalizeEmail(c.Email)

	err := s.db.Update(func(tx *bolt.Tx) error {
		users := tx.Bucket(bucketUsers)
		if users.Get([]byte(email)) != nil {
			return store.ErrEmailExists
		}
		ids := tx.Bucket(bucketUserIDs)
		if ids.Get([]byte(c.ID)) != nil {
			return fmt.Errorf("identity id %s already in use", c.ID)
		}

		rec := *c
		rec.Email = email
		if err := putJSON(users, email, rec); err != nil {
			return err
		}
		return ids.Put([]byte(c.ID), []byte(email))
	})
	if err != nil {
		if errors.Is(err, store.ErrEmailExists) {
			return err
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	c.Email = email
	return nil
}

// GetUserByEmail looks a credential up by email, case-insensitively.
func (s *Store) GetUserByEmail(_ context.Context, email string) (*model.Credential, error) {
	var c *model.Credential
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		c, err = getUser(tx, model.NormalizeEmail(email))
		return err
	})
	return c, err
}

// GetUserByID looks a credential up by identity id.
func (s *Store) GetUserByID(_ context.Context, id string) (*model.Credential, error) {
	var c *model.Credential
	err := s.db.View(func(tx *bolt.Tx) error {
		email := tx.Bucket(bucketUserIDs).Get([]byte(id))
		if email == nil {
			return store.ErrUserNotFound
		}
		var err error
		c, err = getUser(tx, string(email))
		return err
	})
	return c, err
}

// UpdatePassword replaces the stored password hash.
func (s *Store) UpdatePassword(_ context.Context, id, passwordHash string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		email := tx.Bucket(bucketUserIDs).Get([]byte(id))
		if email == nil {
			return store.ErrUserNotFound
		}
		c, err := getUser(tx, string(email))
		if err != nil {
			return err
		}
		c.PasswordHash = passwordHash
		c.UpdatedAt = time.Now().UTC()
		return putJSON(tx.Bucket(bucketUsers), c.Email, c)
	})
}

func getUser(tx *bolt.Tx, email string) (*model.Credential, error) {
	data := tx.Bucket(bucketUsers).Get([]byte(email))
	if data == nil {
		return nil, store.ErrUserNotFound
	}
	var c model.Credential
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to decode user: %w", err)
	}
	return &c, nil
}
