package security

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/pbkdf2"

	"github.com/angelmondragon/storefront-backend/pkg/config"
)

// Hashes use the Django encodings so shopper accounts created by the legacy
// storefront keep working:
//
//	pbkdf2_sha256$<iterations>$<salt>$<base64 key>
//	argon2$argon2id$v=19$m=<kb>,t=<passes>,p=<lanes>$<b64 salt>$<b64 key>
const (
	algPBKDF2 = "pbkdf2_sha256"
	algArgon2 = "argon2"

	pbkdf2KeyLen      = sha256.Size
	minPBKDF2Rounds   = 10_000
	defaultSaltLength = 22
	saltCharset       = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// ErrInvalidHash signals a stored hash in an unrecognised or corrupt format.
var ErrInvalidHash = errors.New("invalid password hash")

// HashPassword encodes password as a Django pbkdf2_sha256 hash.
func HashPassword(password string, cfg config.PasswordConfig) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password cannot be empty")
	}
	rounds := cfg.Iterations
	if rounds < minPBKDF2Rounds {
		rounds = minPBKDF2Rounds
	}
	saltLen := cfg.SaltLength
	if saltLen <= 0 {
		saltLen = defaultSaltLength
	}
	salt, err := randomString(saltCharset, saltLen)
	if err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	key := pbkdf2.Key([]byte(password), []byte(salt), rounds, pbkdf2KeyLen, sha256.New)
	return strings.Join([]string{
		algPBKDF2,
		strconv.Itoa(rounds),
		salt,
		base64.StdEncoding.EncodeToString(key),
	}, "$"), nil
}

// VerifyPassword reports whether password matches encoded. Unknown
// algorithms and malformed hashes return ErrInvalidHash.
func VerifyPassword(password, encoded string) (bool, error) {
	alg, rest, ok := strings.Cut(encoded, "$")
	if !ok {
		return false, ErrInvalidHash
	}
	switch alg {
	case algPBKDF2:
		return verifyPBKDF2(password, rest)
	case algArgon2:
		return verifyArgon2(password, rest)
	default:
		return false, ErrInvalidHash
	}
}

func verifyPBKDF2(password, rest string) (bool, error) {
	fields := strings.Split(rest, "$")
	if len(fields) != 3 || fields[1] == "" {
		return false, ErrInvalidHash
	}
	rounds, err := strconv.Atoi(fields[0])
	if err != nil || rounds <= 0 {
		return false, ErrInvalidHash
	}
	want, err := base64.StdEncoding.DecodeString(fields[2])
	if err != nil || len(want) == 0 {
		return false, ErrInvalidHash
	}
	got := pbkdf2.Key([]byte(password), []byte(fields[1]), rounds, len(want), sha256.New)
	return subtle.ConstantTimeCompare(want, got) == 1, nil
}

func verifyArgon2(password, rest string) (bool, error) {
	// argon2id$v=19$m=..,t=..,p=..$salt$key
	fields := strings.Split(rest, "$")
	if len(fields) != 5 || fields[0] != "argon2id" || fields[1] != "v=19" {
		return false, ErrInvalidHash
	}
	var memory, passes, lanes uint64
	for _, pair := range strings.Split(fields[2], ",") {
		name, raw, ok := strings.Cut(pair, "=")
		if !ok {
			return false, ErrInvalidHash
		}
		v, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return false, ErrInvalidHash
		}
		switch name {
		case "m":
			memory = v
		case "t":
			passes = v
		case "p":
			lanes = v
		}
	}
	if memory == 0 || passes == 0 || lanes == 0 || lanes > 255 {
		return false, ErrInvalidHash
	}
	salt, err := base64.RawStdEncoding.DecodeString(fields[3])
	if err != nil {
		return false, ErrInvalidHash
	}
	want, err := base64.RawStdEncoding.DecodeString(fields[4])
	if err != nil || len(want) == 0 {
		return false, ErrInvalidHash
	}
	got := argon2.IDKey([]byte(password), salt, uint32(passes), uint32(memory), uint8(lanes), uint32(len(want)))
	return subtle.ConstantTimeCompare(want, got) == 1, nil
}
