package password

import (
	"bytes"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/argon2"
)

var (
	// ErrPasswordTooShort is returned by Hash for passwords under MinPasswordBytes.
	ErrPasswordTooShort = errors.New("password: too short")
	// ErrPasswordTooLong is returned when a password exceeds the configured maximum.
	ErrPasswordTooLong = errors.New("password: too long")
	// ErrMalformedHash is returned when an encoded hash cannot be decoded.
	ErrMalformedHash = errors.New("password: malformed hash")
	// ErrUnsupportedHash is returned for a well-formed hash from another
	// algorithm or argon2 version.
	ErrUnsupportedHash = errors.New("password: unsupported hash")
)

const (
	// MinPasswordBytes is the shortest password Hash accepts.
	MinPasswordBytes = 10
	// DefaultMaxPasswordBytes bounds argon2 input when Config.MaxPasswordBytes is zero.
	DefaultMaxPasswordBytes = 1024

	floorMemoryKB uint32 = 8 * 1024
	floorBytes    uint32 = 16
	phcID                = "argon2id"
)

// Config holds argon2id cost parameters and the server-side pepper.
//
// Pepper is appended to every password before hashing and verification. It is
// never written into the encoded hash, so rotating it invalidates every stored
// hash.
type Config struct {
	Memory           uint32
	Time             uint32
	Parallelism      uint8
	SaltLength       uint32
	KeyLength        uint32
	MaxPasswordBytes int
	Pepper           []byte
}

func (c Config) validate() error {
	switch {
	case c.Memory < floorMemoryKB:
		return fmt.Errorf("password: memory %d KiB below %d", c.Memory, floorMemoryKB)
	case c.Time == 0:
		return errors.New("password: time cost must be positive")
	case c.Parallelism == 0:
		return errors.New("password: parallelism must be positive")
	case c.SaltLength < floorBytes:
		return fmt.Errorf("password: salt length %d below %d", c.SaltLength, floorBytes)
	case c.KeyLength < floorBytes:
		return fmt.Errorf("password: key length %d below %d", c.KeyLength, floorBytes)
	case c.MaxPasswordBytes < 0, c.MaxPasswordBytes > 0 && c.MaxPasswordBytes < MinPasswordBytes:
		return fmt.Errorf("password: max bytes must be zero or >= %d", MinPasswordBytes)
	}
	return nil
}

// costs are the argon2 parameters carried in the PHC parameter segment.
type costs struct {
	memory  uint32
	time    uint32
	threads uint8
}

func (c costs) String() string {
	return fmt.Sprintf("m=%d,t=%d,p=%d", c.memory, c.time, c.threads)
}

// weakerThan reports whether any cost is below other's.
func (c costs) weakerThan(other costs) bool {
	return c.memory < other.memory || c.time < other.time || c.threads < other.threads
}

// phc is a decoded argon2id PHC string. Salt and key use unpadded base64.
type phc struct {
	costs
	salt []byte
	key  []byte
}

var b64 = base64.RawStdEncoding

func (p phc) String() string {
	return "$" + phcID +
		fmt.Sprintf("$v=%d$", argon2.Version) +
		p.costs.String() +
		"$" + b64.EncodeToString(p.salt) +
		"$" + b64.EncodeToString(p.key)
}

func decodePHC(encoded string) (phc, error) {
	var out phc

	fields := strings.Split(encoded, "$")
	if len(fields) != 6 || fields[0] != "" {
		return out, ErrMalformedHash
	}
	if fields[1] != phcID {
		return out, fmt.Errorf("%w: algorithm %q", ErrUnsupportedHash, fields[1])
	}

	var version int
	if _, err := fmt.Sscanf(fields[2], "v=%d", &version); err != nil || fields[2] != fmt.Sprintf("v=%d", version) {
		return out, fmt.Errorf("%w: version segment", ErrMalformedHash)
	}
	if version != argon2.Version {
		return out, fmt.Errorf("%w: argon2 version %d", ErrUnsupportedHash, version)
	}

	if _, err := fmt.Sscanf(fields[3], "m=%d,t=%d,p=%d", &out.memory, &out.time, &out.threads); err != nil {
		return out, fmt.Errorf("%w: parameter segment", ErrMalformedHash)
	}
	// Canonical form only: no trailing input, no leading zeros.
	if out.costs.String() != fields[3] {
		return out, fmt.Errorf("%w: parameter segment", ErrMalformedHash)
	}
	if out.memory < floorMemoryKB || out.time == 0 || out.threads == 0 {
		return out, fmt.Errorf("%w: parameters below floor", ErrMalformedHash)
	}

	var err error
	if out.salt, err = b64.DecodeString(fields[4]); err != nil || len(out.salt) < int(floorBytes) {
		return out, fmt.Errorf("%w: salt", ErrMalformedHash)
	}
	if out.key, err = b64.DecodeString(fields[5]); err != nil || len(out.key) == 0 {
		return out, fmt.Errorf("%w: key", ErrMalformedHash)
	}
	return out, nil
}

// Argon2 hashes and verifies passwords in PHC string format.
type Argon2 struct {
	costs    costs
	saltLen  uint32
	keyLen   uint32
	maxBytes int
	pepper   []byte
}

// NewArgon2 validates cfg and returns a hasher. The pepper is copied.
func NewArgon2(cfg Config) (*Argon2, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	maxBytes := cfg.MaxPasswordBytes
	if maxBytes == 0 {
		maxBytes = DefaultMaxPasswordBytes
	}
	return &Argon2{
		costs:    costs{memory: cfg.Memory, time: cfg.Time, threads: cfg.Parallelism},
		saltLen:  cfg.SaltLength,
		keyLen:   cfg.KeyLength,
		maxBytes: maxBytes,
		pepper:   bytes.Clone(cfg.Pepper),
	}, nil
}

// Hash returns the PHC encoding of password+pepper under a fresh random salt.
// Passwords are hashed as raw bytes with no Unicode normalization.
func (a *Argon2) Hash(password string) (string, error) {
	if len(password) < MinPasswordBytes {
		return "", ErrPasswordTooShort
	}
	if len(password) > a.maxBytes {
		return "", ErrPasswordTooLong
	}

	salt := make([]byte, a.saltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("password: read salt: %w", err)
	}
	encoded := phc{costs: a.costs, salt: salt, key: a.derive(password, a.costs, salt, a.keyLen)}
	return encoded.String(), nil
}

// Verify reports whether password+pepper matches encodedHash in constant time.
// A malformed or foreign hash is an error, not a mismatch.
func (a *Argon2) Verify(password, encodedHash string) (bool, error) {
	if len(password) > a.maxBytes {
		return false, ErrPasswordTooLong
	}
	stored, err := decodePHC(encodedHash)
	if err != nil {
		return false, err
	}
	computed := a.derive(password, stored.costs, stored.salt, uint32(len(stored.key)))
	return subtle.ConstantTimeCompare(computed, stored.key) == 1, nil
}

// NeedsUpgrade reports whether encodedHash was produced with weaker costs or a
// different key length than the hasher's current configuration.
func (a *Argon2) NeedsUpgrade(encodedHash string) (bool, error) {
	stored, err := decodePHC(encodedHash)
	if err != nil {
		return false, err
	}
	return stored.costs.weakerThan(a.costs) || uint32(len(stored.key)) != a.keyLen, nil
}

func (a *Argon2) derive(password string, c costs, salt []byte, keyLen uint32) []byte {
	input := make([]byte, 0, len(password)+len(a.pepper))
	input = append(input, password...)
	input = append(input, a.pepper...)
	return argon2.IDKey(input, salt, c.time, c.memory, c.threads, keyLen)
}
