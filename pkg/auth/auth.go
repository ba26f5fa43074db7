package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base32"
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
)

const (
	HeaderKeyHash   = "X-API-Key-Hash"
	HeaderSignature = "X-API-Signature"
)

// MaxClockSkew bounds how far a signature timestamp may drift from the
// server clock.
const MaxClockSkew = 2 * time.Minute

type Auth interface {
	Keys() KeyCollection
	RequireKey(c *fiber.Ctx) error
}

type auth struct {
	keys      KeyCollection
	anonymous bool
	now       func() time.Time
}

var _ Auth = &auth{}

type Signature string

func (s Signature) Parse() (nonce []byte, timestamp time.Time, hash []byte, err error) {
	components := strings.Split(string(s), ".")
	var tb []byte

	if len(components) != 3 {
		err = fmt.Errorf("invalid signature: %s", s)
		return
	} else if nonce, err = base32.StdEncoding.DecodeString(strings.ToUpper(components[0])); err != nil {
		return
	} else if tb, err = base32.StdEncoding.DecodeString(strings.ToUpper(components[1])); err != nil {
		return
	} else if hash, err = base32.StdEncoding.DecodeString(strings.ToUpper(components[2])); err != nil {
		return
	} else if t, n := binary.Varint(tb); n <= 0 || n != len(tb) {
		err = fmt.Errorf("invalid timestamp in signature: %s", s)
		return
	} else {
		timestamp = time.UnixMicro(t)
		return
	}
}

func (s Signature) String() string {
	return string(s)
}

type Key string

func (k Key) Hash() [32]byte {
	return sha256.Sum256([]byte(k))
}

func (k Key) HashString() string {
	hash := k.Hash()
	return strings.ToLower(base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(hash[:]))
}

func (k Key) String() string {
	return string(k)
}

func (k Key) digest(method string, path string, body []byte, nonce []byte, tb []byte) []byte {
	hash := sha256.New()
	hash.Write([]byte(strings.ToUpper(method) + " " + path + "\n"))
	hash.Write(body)
	hash.Write(nonce)
	hash.Write(tb)
	hash.Write([]byte(k))
	return hash.Sum(nil)
}

// Sign produces a signature over the request line and body, valid for
// MaxClockSkew either side of timestamp.
func (k Key) Sign(timestamp time.Time, method string, path string, body []byte) (Signature, error) {
	var nonce [32]byte
	tb := binary.AppendVarint(nil, timestamp.UnixMicro())

	if _, err := rand.Read(nonce[:]); err != nil {
		return "", err
	} else {
		sum := k.digest(method, path, body, nonce[:], tb)

		signature := strings.ToLower(base32.StdEncoding.EncodeToString(nonce[:])) + "." + strings.ToLower(base32.StdEncoding.EncodeToString(tb)) + "." + strings.ToLower(base32.StdEncoding.EncodeToString(sum))

		return Signature(signature), nil
	}
}

func (k Key) Verify(now time.Time, method string, path string, body []byte, signature Signature) error {
	if nonce, timestamp, signatureHash, err := signature.Parse(); err != nil {
		return err
	} else if timestamp.Compare(now.Add(-MaxClockSkew)) < 0 {
		return fmt.Errorf("signature expired timestamp: %s current time: %s", timestamp, now)
	} else if timestamp.Compare(now.Add(MaxClockSkew)) > 0 {
		return fmt.Errorf("signature not yet valid timestamp: %s current time: %s", timestamp, now)
	} else if !hmac.Equal(k.digest(method, path, body, nonce, binary.AppendVarint(nil, timestamp.UnixMicro())), signatureHash) {
		return fmt.Errorf("invalid signature for request: %s", signature)
	} else {
		return nil
	}
}

type KeyCollection []Key

func (c KeyCollection) First() (Key, error) {
	if len(c) < 1 {
		return "", fmt.Errorf("could not find an api key, have you configured the API_KEYS environment variable?")
	}
	return c[0], nil
}

func (c KeyCollection) GetKeyMatchingHash(hash string) (Key, error) {
	if b, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(strings.ToUpper(hash)); err != nil {
		return "", err
	} else if len(b) != 32 {
		return "", fmt.Errorf("invalid api key hash size: %d", len(b))
	} else {
		var h [32]byte
		copy(h[:], b)
		for _, k := range c {
			if k.Hash() == h {
				return k, nil
			}
		}
		return "", fmt.Errorf("api key for hash not configured: %s", hash)
	}
}

type Option func(*auth)

// AllowAnonymous lets every request through when no keys are configured.
func AllowAnonymous() Option {
	return func(a *auth) {
		a.anonymous = true
	}
}

func WithClock(now func() time.Time) Option {
	return func(a *auth) {
		a.now = now
	}
}

func NewAuth(keys []string, opts ...Option) (Auth, error) {
	a := auth{now: time.Now}
	for _, opt := range opts {
		opt(&a)
	}

	for _, k := range keys {
		if k = strings.TrimSpace(k); k != "" {
			a.keys = append(a.keys, Key(k))
		}
	}

	if len(a.keys) == 0 {
		if !a.anonymous {
			return nil, fmt.Errorf("no API_KEYS configured, set API_KEYS or API_ALLOW_ANONYMOUS=true")
		}
		log.Warn("no API_KEYS configured, the api accepts unauthenticated requests")
	}

	return &a, nil
}

func (a *auth) Keys() KeyCollection {
	return a.keys
}

func (a *auth) RequireKey(c *fiber.Ctx) error {
	if len(a.keys) == 0 && a.anonymous {
		return c.Next()
	}

	keyHash := c.Get(HeaderKeyHash)
	signature := c.Get(HeaderSignature)

	if keyHash == "" {
		log.Warnf("received request with missing header %s", HeaderKeyHash)
		return fiber.NewError(fiber.StatusUnauthorized, HeaderKeyHash+" header not provided")
	} else if signature == "" {
		log.Warnf("received request with missing header %s", HeaderSignature)
		return fiber.NewError(fiber.StatusUnauthorized, HeaderSignature+" header not provided")
	} else if k, err := a.keys.GetKeyMatchingHash(keyHash); err != nil {
		return fiber.NewError(fiber.StatusUnauthorized, err.Error())
	} else if err := k.Verify(a.now(), c.Method(), c.OriginalURL(), c.BodyRaw(), Signature(signature)); err != nil {
		return fiber.NewError(fiber.StatusUnauthorized, fmt.Sprintf("invalid api signature for key hash: %s, %v", keyHash, err))
	} else {
		return c.Next()
	}
}
