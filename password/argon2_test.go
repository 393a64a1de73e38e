package password

import (
	"errors"
	"strings"
	"testing"
)

func testConfig() Config {
	return Config{
		Memory:      64 * 1024,
		Time:        3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func mustHasher(t *testing.T, cfg Config) *Argon2 {
	t.Helper()
	h, err := NewArgon2(cfg)
	if err != nil {
		t.Fatalf("NewArgon2: %v", err)
	}
	return h
}

func mustHash(t *testing.T, h *Argon2, password string) string {
	t.Helper()
	encoded, err := h.Hash(password)
	if err != nil {
		t.Fatalf("Hash(%q): %v", password, err)
	}
	return encoded
}

func TestHashProducesCanonicalPHC(t *testing.T) {
	h := mustHasher(t, testConfig())
	encoded := mustHash(t, h, "correct horse battery")

	if !strings.HasPrefix(encoded, "$argon2id$v=19$m=65536,t=3,p=2$") {
		t.Fatalf("unexpected PHC prefix: %s", encoded)
	}
	if strings.Count(encoded, "=") != 4 {
		t.Fatalf("salt and key must be unpadded base64: %s", encoded)
	}

	ok, err := h.Verify("correct horse battery", encoded)
	if err != nil || !ok {
		t.Fatalf("Verify: ok=%v err=%v", ok, err)
	}
	ok, err = h.Verify("correct horse battery!", encoded)
	if err != nil || ok {
		t.Fatalf("Verify wrong password: ok=%v err=%v", ok, err)
	}
}

func TestHashSaltsEveryCall(t *testing.T) {
	h := mustHasher(t, testConfig())
	if mustHash(t, h, "same-password-twice") == mustHash(t, h, "same-password-twice") {
		t.Fatal("two hashes of the same password must differ")
	}
}

func TestHashLengthBounds(t *testing.T) {
	cfg := testConfig()
	cfg.MaxPasswordBytes = 64
	h := mustHasher(t, cfg)

	cases := []struct {
		name     string
		password string
		want     error
	}{
		{"empty", "", ErrPasswordTooShort},
		{"below minimum", "123456789", ErrPasswordTooShort},
		{"at minimum", "1234567890", nil},
		{"at maximum", strings.Repeat("b", 64), nil},
		{"over maximum", strings.Repeat("a", 65), ErrPasswordTooLong},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.Hash(tc.password)
			if !errors.Is(err, tc.want) {
				t.Fatalf("Hash: got %v, want %v", err, tc.want)
			}
		})
	}

	encoded := mustHash(t, h, "valid-password-123")
	if _, err := h.Verify(strings.Repeat("c", 65), encoded); !errors.Is(err, ErrPasswordTooLong) {
		t.Fatalf("Verify over maximum: got %v", err)
	}
}

func TestDefaultMaxPasswordBytes(t *testing.T) {
	h := mustHasher(t, testConfig())
	if _, err := h.Hash(strings.Repeat("d", DefaultMaxPasswordBytes+1)); !errors.Is(err, ErrPasswordTooLong) {
		t.Fatalf("expected ErrPasswordTooLong above %d bytes, got %v", DefaultMaxPasswordBytes, err)
	}
	mustHash(t, h, strings.Repeat("e", DefaultMaxPasswordBytes))
}

func TestNewArgon2RejectsWeakConfig(t *testing.T) {
	cases := map[string]func(*Config){
		"memory":      func(c *Config) { c.Memory = 4096 },
		"time":        func(c *Config) { c.Time = 0 },
		"parallelism": func(c *Config) { c.Parallelism = 0 },
		"salt":        func(c *Config) { c.SaltLength = 8 },
		"key":         func(c *Config) { c.KeyLength = 8 },
		"max bytes":   func(c *Config) { c.MaxPasswordBytes = 5 },
		"negative":    func(c *Config) { c.MaxPasswordBytes = -1 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := testConfig()
			mutate(&cfg)
			if _, err := NewArgon2(cfg); err == nil {
				t.Fatal("expected config error")
			}
		})
	}
}

func TestVerifyRejectsBadEncodings(t *testing.T) {
	h := mustHasher(t, testConfig())
	good := mustHash(t, h, "version-test-password")
	segments := strings.Split(good, "$")

	replace := func(i int, v string) string {
		out := append([]string(nil), segments...)
		out[i] = v
		return strings.Join(out, "$")
	}

	cases := []struct {
		name    string
		encoded string
		want    error
	}{
		{"not phc", "not-a-phc-hash", ErrMalformedHash},
		{"argon2i", replace(1, "argon2i"), ErrUnsupportedHash},
		{"old version", replace(2, "v=18"), ErrUnsupportedHash},
		{"version garbage", replace(2, "v=19x"), ErrMalformedHash},
		{"reordered params", replace(3, "t=3,m=65536,p=2"), ErrMalformedHash},
		{"trailing param", replace(3, "m=65536,t=3,p=2,k=1"), ErrMalformedHash},
		{"leading zero", replace(3, "m=065536,t=3,p=2"), ErrMalformedHash},
		{"memory below floor", replace(3, "m=1024,t=3,p=2"), ErrMalformedHash},
		{"threads overflow", replace(3, "m=65536,t=3,p=300"), ErrMalformedHash},
		{"short salt", replace(4, "c2FsdA"), ErrMalformedHash},
		{"bad key", replace(5, "!!!"), ErrMalformedHash},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ok, err := h.Verify("version-test-password", tc.encoded)
			if ok || !errors.Is(err, tc.want) {
				t.Fatalf("Verify: ok=%v err=%v, want %v", ok, err, tc.want)
			}
		})
	}
}

func TestNeedsUpgrade(t *testing.T) {
	current := mustHasher(t, testConfig())

	weaker := testConfig()
	weaker.Memory = 32 * 1024
	weaker.Time = 2
	weaker.Parallelism = 1

	longerKey := testConfig()
	longerKey.KeyLength = 64

	cases := []struct {
		name string
		cfg  Config
		want bool
	}{
		{"same parameters", testConfig(), false},
		{"weaker costs", weaker, true},
		{"different key length", longerKey, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			encoded := mustHash(t, mustHasher(t, tc.cfg), "upgrade-password")
			got, err := current.NeedsUpgrade(encoded)
			if err != nil {
				t.Fatalf("NeedsUpgrade: %v", err)
			}
			if got != tc.want {
				t.Fatalf("NeedsUpgrade = %v, want %v", got, tc.want)
			}
		})
	}

	if _, err := current.NeedsUpgrade("$bcrypt$"); err == nil {
		t.Fatal("expected error for foreign hash")
	}
}

func TestPepperBindsHash(t *testing.T) {
	cfg := testConfig()
	cfg.Pepper = []byte("pepper-one")
	peppered := mustHasher(t, cfg)

	encoded := mustHash(t, peppered, "correct-horse-battery")
	if strings.Contains(encoded, "pepper-one") {
		t.Fatal("pepper leaked into the encoded hash")
	}
	if ok, err := peppered.Verify("correct-horse-battery", encoded); err != nil || !ok {
		t.Fatalf("same pepper: ok=%v err=%v", ok, err)
	}

	cfg.Pepper = []byte("pepper-two")
	if ok, err := mustHasher(t, cfg).Verify("correct-horse-battery", encoded); err != nil || ok {
		t.Fatalf("rotated pepper: ok=%v err=%v", ok, err)
	}
	if ok, err := mustHasher(t, testConfig()).Verify("correct-horse-battery", encoded); err != nil || ok {
		t.Fatalf("missing pepper: ok=%v err=%v", ok, err)
	}
}

func TestPepperCopiedOnConstruction(t *testing.T) {
	cfg := testConfig()
	pepper := []byte("mutable-pepper")
	cfg.Pepper = pepper
	h := mustHasher(t, cfg)
	encoded := mustHash(t, h, "stable-password")

	pepper[0] = 'X'
	if ok, err := h.Verify("stable-password", encoded); err != nil || !ok {
		t.Fatalf("caller mutation leaked into hasher: ok=%v err=%v", ok, err)
	}
}
