package session

import (
	"errors"

	"github.com/zalando/go-keyring"
)

// ErrNoToken is returned by a TokenStore holding nothing.
var ErrNoToken = errors.New("no token stored")

// TokenStore persists the session token between runs.
type TokenStore interface {
	Load() (string, error)
	Save(token string) error
	Clear() error
}

const keyringUser = "session-token"

// KeyringStore keeps the token in the OS keyring under service.
type KeyringStore struct {
	service string
}

func NewKeyringStore(service string) *KeyringStore {
	return &KeyringStore{service: service}
}

func (ks *KeyringStore) Load() (string, error) {
	token, err := keyring.Get(ks.service, keyringUser)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrNoToken
		}
		return "", errors.New("reading keyring error: " + err.Error())
	}
	return token, nil
}

func (ks *KeyringStore) Save(token string) error {
	if token == "" {
		return errors.New("token can't be empty")
	}
	if err := keyring.Set(ks.service, keyringUser, token); err != nil {
		return errors.New("writing keyring error: " + err.Error())
	}
	return nil
}

// Clear removes the token, clearing an empty store is not an error.
func (ks *KeyringStore) Clear() error {
	err := keyring.Delete(ks.service, keyringUser)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return errors.New("deleting from keyring error: " + err.Error())
	}
	return nil
}

// Available reports whether the OS keyring can be used at all.
func (ks *KeyringStore) Available() bool {
	_, err := keyring.Get(ks.service, "availability-check")
	return err == nil || errors.Is(err, keyring.ErrNotFound)
}
