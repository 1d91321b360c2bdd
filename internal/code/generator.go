// Package code generates short human-friendly codes for company join codes
// and invitation codes.
package code

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// Alphabet excludes characters that are easy to confuse when read aloud or
// typed: 0/O, 1/I/L.
const Alphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

const (
	// CompanyLength is the length of a company join code.
	CompanyLength = 6
	// InvitationLength is the length of an invitation code; the first
	// CompanyLength characters are the company code.
	InvitationLength = 8
	// MaxAttempts bounds how many candidates are drawn before giving up.
	MaxAttempts = 10
)

// ErrTaken is returned by claim functions when the candidate is already in use.
var ErrTaken = errors.New("code already in use")

// ErrExhausted is returned when MaxAttempts candidates all collided.
var ErrExhausted = errors.New("could not generate a unique code")

// Generator draws random codes from Alphabet.
type Generator struct {
	alphabet    string
	maxAttempts int
	randIndex   func(n int) (int, error)
}

// Option configures a Generator.
type Option func(*Generator)

// WithMaxAttempts overrides MaxAttempts.
func WithMaxAttempts(n int) Option {
	return func(g *Generator) {
		g.maxAttempts = n
	}
}

// WithSource replaces crypto/rand, mainly for tests that need collisions.
func WithSource(randIndex func(n int) (int, error)) Option {
	return func(g *Generator) {
		g.randIndex = randIndex
	}
}

// NewGenerator creates a Generator over Alphabet.
func NewGenerator(opts ...Option) *Generator {
	g := &Generator{
		alphabet:    Alphabet,
		maxAttempts: MaxAttempts,
		randIndex:   cryptoIndex,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func cryptoIndex(n int) (int, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, err
	}
	return int(v.Int64()), nil
}

// Random returns a code of the given length. It does not check uniqueness.
func (g *Generator) Random(length int) (string, error) {
	var b strings.Builder
	b.Grow(length)
	for range length {
		i, err := g.randIndex(len(g.alphabet))
		if err != nil {
			return "", fmt.Errorf("reading random index: %w", err)
		}
		b.WriteByte(g.alphabet[i])
	}
	return b.String(), nil
}

// Unique draws candidates until exists reports false. This is a
// check-then-write: the caller must still tolerate a concurrent writer
// claiming the same code, which is why Claim is preferred.
func (g *Generator) Unique(ctx context.Context, length int, exists func(ctx context.Context, code string) (bool, error)) (string, error) {
	return g.unique(ctx, "", length, exists)
}

// Claim draws candidates and hands each to insert, which must write it with
// an insert-if-absent primitive and return ErrTaken on collision. The code
// that insert accepted is returned.
func (g *Generator) Claim(ctx context.Context, length int, insert func(ctx context.Context, code string) error) (string, error) {
	return g.claim(ctx, "", length, insert)
}

// ClaimWithPrefix is Claim for codes of the form prefix + random suffix,
// where the whole code is length characters long.
func (g *Generator) ClaimWithPrefix(ctx context.Context, prefix string, length int, insert func(ctx context.Context, code string) error) (string, error) {
	if len(prefix) >= length {
		return "", fmt.Errorf("prefix %q leaves no room in a %d character code", prefix, length)
	}
	return g.claim(ctx, prefix, length-len(prefix), insert)
}

func (g *Generator) unique(ctx context.Context, prefix string, n int, exists func(ctx context.Context, code string) (bool, error)) (string, error) {
	for range g.maxAttempts {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		suffix, err := g.Random(n)
		if err != nil {
			return "", err
		}
		candidate := prefix + suffix

		taken, err := exists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("checking code %s: %w", candidate, err)
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", ErrExhausted
}

func (g *Generator) claim(ctx context.Context, prefix string, n int, insert func(ctx context.Context, code string) error) (string, error) {
	for range g.maxAttempts {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		suffix, err := g.Random(n)
		if err != nil {
			return "", err
		}
		candidate := prefix + suffix

		err = insert(ctx, candidate)
		if err == nil {
			return candidate, nil
		}
		if !errors.Is(err, ErrTaken) {
			return "", err
		}
	}
	return "", ErrExhausted
}

// Normalize trims surrounding whitespace and upper-cases a user-entered code.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Valid reports whether code has the given length and only uses Alphabet.
func Valid(code string, length int) bool {
	if len(code) != length {
		return false
	}
	for i := 0; i < len(code); i++ {
		if strings.IndexByte(Alphabet, code[i]) < 0 {
			return false
		}
	}
	return true
}

// WellFormed reports whether code has the given length and is upper-case
// alphanumeric. Lookups use it instead of Valid so codes issued before the
// alphabet was restricted still resolve.
func WellFormed(code string, length int) bool {
	if len(code) != length {
		return false
	}
	for i := 0; i < len(code); i++ {
		c := code[i]
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}
