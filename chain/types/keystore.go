package types

import (
	"errors"

	"github.com/filecoin-project/go-state-types/crypto"
)

var (
	// ErrKeyInfoNotFound is the error returned when the key info is not found.
	ErrKeyInfoNotFound = errors.New("key info not found")
	// ErrKeyExists is the error returned when the key already exists.
	ErrKeyExists = errors.New("key already exists")
)

// KeyType defines a type of a key
type KeyType string

const (
	KTSecp256k1 KeyType = "secp256k1"
)

func (kt KeyType) SigType() crypto.SigType {
	switch kt {
	case KTSecp256k1:
		return crypto.SigTypeSecp256k1
	default:
		return crypto.SigTypeUnknown
	}
}

// KeyInfo is used for storing keys in KeyStore
type KeyInfo struct {
	Type       KeyType
	PrivateKey []byte
}

// KeyStore is used for storing secret keys
type KeyStore interface {
	// List lists all the keys stored in the KeyStore
	List() ([]string, error)
	// Get gets a key out of keystore and returns KeyInfo corresponding to named key
	Get(string) (KeyInfo, error)
	// Put saves a key info under given name
	Put(string, KeyInfo) error
	// Delete removes a key from keystore
	Delete(string) error
}
