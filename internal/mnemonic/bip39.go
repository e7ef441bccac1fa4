package mnemonic

import (
	"fmt"
	"strings"

	bip39 "github.com/tyler-smith/go-bip39"
)

// EntropySize is the entropy length in bytes for a 12-word phrase.
const EntropySize = 16

// Codec converts entropy to a phrase and a phrase to a seed.
type Codec interface {
	FromEntropy(entropy []byte) (string, error)
	ToEntropy(mn string) ([]byte, error)
	Seed(mn, passphrase string) ([]byte, error)
}

// BIP39 is the standard English word-list codec.
type BIP39 struct{}

func (BIP39) FromEntropy(entropy []byte) (string, error) {
	if len(entropy) != EntropySize {
		return "", fmt.Errorf("entropy must be %d bytes, got %d", EntropySize, len(entropy))
	}
	return bip39.NewMnemonic(entropy)
}

func (BIP39) ToEntropy(mn string) ([]byte, error) {
	return bip39.EntropyFromMnemonic(Normalize(mn))
}

// Seed validates the phrase checksum before stretching it.
func (BIP39) Seed(mn, passphrase string) ([]byte, error) {
	return bip39.NewSeedWithErrorChecking(Normalize(mn), passphrase)
}

// Normalize collapses whitespace and lowercases a user-supplied phrase.
func Normalize(mn string) string {
	return strings.ToLower(strings.Join(strings.Fields(mn), " "))
}
