package identity

import (
	crand "crypto/rand"
	"errors"
	"fmt"
	"io"

	"ICPVanity/internal/crypto"
	"ICPVanity/internal/mnemonic"
	"ICPVanity/internal/principal"
)

var (
	// ErrEntropySource means the random source could not deliver bytes.
	ErrEntropySource = errors.New("entropy source unavailable")
	// ErrEncoding means the mnemonic codec rejected its input; this is a bug.
	ErrEncoding = errors.New("mnemonic encoding failed")
	// ErrDerivation means the HD path yielded no usable key for this attempt.
	ErrDerivation = errors.New("key derivation failed")
)

type Identity struct {
	Principal  string
	Mnemonic   string
	PrivateKey []byte // 32-byte secp256k1 scalar
	PublicKey  []byte // 65-byte uncompressed point
}

// Factory produces identities from fresh entropy. All fields are optional;
// zero values fall back to crypto/rand, BIP-39, the ICP HD path and the
// self-authenticating principal encoding. A Factory is safe for concurrent
// use when its collaborators are.
type Factory struct {
	Random     io.Reader
	Codec      mnemonic.Codec
	Deriver    crypto.Deriver
	Encoder    principal.Encoder
	Passphrase string
}

func NewFactory() *Factory {
	return &Factory{
		Random:  crand.Reader,
		Codec:   mnemonic.BIP39{},
		Deriver: crypto.NewHDWallet(),
		Encoder: principal.SelfAuthenticating{},
	}
}

// Create draws fresh entropy and derives an identity from it.
func (f *Factory) Create() (Identity, error) {
	entropy := make([]byte, mnemonic.EntropySize)
	if _, err := io.ReadFull(f.random(), entropy); err != nil {
		return Identity{}, fmt.Errorf("%w: %w", ErrEntropySource, err)
	}
	return f.FromEntropy(entropy)
}

func (f *Factory) FromEntropy(entropy []byte) (Identity, error) {
	mn, err := f.codec().FromEntropy(entropy)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %w", ErrEncoding, err)
	}
	return f.FromMnemonic(mn)
}

// FromMnemonic reproduces the identity a phrase stands for.
func (f *Factory) FromMnemonic(mn string) (Identity, error) {
	seed, err := f.codec().Seed(mn, f.Passphrase)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: seed: %w", ErrEncoding, err)
	}
	priv, err := f.deriver().Derive(seed)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %w", ErrDerivation, err)
	}
	pub := crypto.PubUncompressed(priv)
	text, err := f.encoder().Encode(pub)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: encode principal: %w", ErrDerivation, err)
	}
	return Identity{
		Principal:  text,
		Mnemonic:   mnemonic.Normalize(mn),
		PrivateKey: crypto.PrivToBytes(priv),
		PublicKey:  pub,
	}, nil
}

func (f *Factory) random() io.Reader {
	if f.Random == nil {
		return crand.Reader
	}
	return f.Random
}

func (f *Factory) codec() mnemonic.Codec {
	if f.Codec == nil {
		return mnemonic.BIP39{}
	}
	return f.Codec
}

func (f *Factory) deriver() crypto.Deriver {
	if f.Deriver == nil {
		return crypto.NewHDWallet()
	}
	return f.Deriver
}

func (f *Factory) encoder() principal.Encoder {
	if f.Encoder == nil {
		return principal.SelfAuthenticating{}
	}
	return f.Encoder
}
