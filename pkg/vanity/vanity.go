// Package vanity is the embedding API: generate ICP identities and search for
// principals that start with a chosen prefix.
//
//	res, err := vanity.Search(ctx, "aaaaa")
//	if err != nil { ... }
//	fmt.Println(res.Principal, res.Mnemonic)
package vanity

import (
	"context"
	"time"

	"ICPVanity/internal/generator"
	"ICPVanity/internal/identity"
)

// Identity is one generated key with its principal and recovery phrase.
type Identity = identity.Identity

// Result is a successful search.
type Result = generator.Result

// Progress is reported periodically while searching.
type Progress = generator.Progress

var (
	ErrEntropySource = identity.ErrEntropySource
	ErrEncoding      = identity.ErrEncoding
	ErrDerivation    = identity.ErrDerivation
	ErrExhausted     = generator.ErrExhausted
	ErrCancelled     = generator.ErrCancelled
)

// Options tunes a search. The zero value runs one worker with no bounds.
type Options struct {
	Workers       int
	ProgressEvery uint64
	MaxAttempts   uint64
	MaxDuration   time.Duration
	Passphrase    string
	OnProgress    func(Progress)
}

// NewIdentity returns a fresh identity at m/44'/223'/0'/0/0.
func NewIdentity() (Identity, error) {
	return identity.NewFactory().Create()
}

// Recover derives the identity a 12-word phrase stands for.
func Recover(mnemonic, passphrase string) (Identity, error) {
	f := identity.NewFactory()
	f.Passphrase = passphrase
	return f.FromMnemonic(mnemonic)
}

// Search runs until a principal starting with prefix is found or ctx ends.
func Search(ctx context.Context, prefix string) (*Result, error) {
	return SearchWith(ctx, prefix, Options{})
}

// SearchMultiple runs n independent searches one after another.
func SearchMultiple(ctx context.Context, prefix string, n int) ([]*Result, error) {
	return newEngine(Options{}).SearchMultiple(ctx, prefix, n, nil)
}

func SearchWith(ctx context.Context, prefix string, opt Options) (*Result, error) {
	return newEngine(opt).Search(ctx, prefix)
}

func newEngine(opt Options) *generator.Engine {
	f := identity.NewFactory()
	f.Passphrase = opt.Passphrase
	var obs generator.Observer
	if opt.OnProgress != nil {
		obs = generator.ObserverFunc(opt.OnProgress)
	}
	return generator.New(f, generator.Options{
		Workers:       opt.Workers,
		ProgressEvery: opt.ProgressEvery,
		MaxAttempts:   opt.MaxAttempts,
		MaxDuration:   opt.MaxDuration,
	}, obs)
}
