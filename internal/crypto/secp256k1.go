package crypto

import (
	"crypto/ecdsa"
	"fmt"

	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	hdwallet "github.com/miguelmota/go-ethereum-hdwallet"
)

// ICPPath is the BIP-44 path for ICP (coin type 223), first account.
const ICPPath = "m/44'/223'/0'/0/0"

// Deriver turns a seed into a private key along a derivation path.
type Deriver interface {
	Derive(seed []byte) (*ecdsa.PrivateKey, error)
}

// HDWallet derives secp256k1 keys with BIP-32 hardened/non-hardened rules.
type HDWallet struct {
	Path string
}

func NewHDWallet() HDWallet {
	return HDWallet{Path: ICPPath}
}

func (h HDWallet) Derive(seed []byte) (*ecdsa.PrivateKey, error) {
	pathStr := h.Path
	if pathStr == "" {
		pathStr = ICPPath
	}
	path, err := hdwallet.ParseDerivationPath(pathStr)
	if err != nil {
		return nil, fmt.Errorf("parse path %q: %w", pathStr, err)
	}
	w, err := hdwallet.NewFromSeed(seed)
	if err != nil {
		return nil, fmt.Errorf("master key: %w", err)
	}
	// Without this, parents whose private key starts with 0x00 derive
	// non-standard children and other BIP-32 wallets recover a different key.
	w.SetFixIssue172(true)
	acct, err := w.Derive(path, false)
	if err != nil {
		return nil, fmt.Errorf("derive %s: %w", pathStr, err)
	}
	priv, err := w.PrivateKey(acct)
	if err != nil {
		return nil, fmt.Errorf("private key %s: %w", pathStr, err)
	}
	return priv, nil
}

// PrivToBytes returns the 32-byte big-endian scalar.
func PrivToBytes(priv *ecdsa.PrivateKey) []byte {
	return gethcrypto.FromECDSA(priv)
}

// PubUncompressed returns the 65-byte SEC1 uncompressed point (0x04 || X || Y).
func PubUncompressed(priv *ecdsa.PrivateKey) []byte {
	return gethcrypto.FromECDSAPub(&priv.PublicKey)
}
