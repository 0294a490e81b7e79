package snapshot

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/pierrec/lz4/v4"
	"golang.org/x/crypto/scrypt"
)

// Envelope layout: version(1) flags(1) plainLen(4, big endian) payload.
const (
	version    = 1
	headerSize = 6

	flagEncrypted = 1 << 0
	// flagStored marks a payload LZ4 could not shrink; it is kept as is.
	flagStored = 1 << 1
	knownFlags = flagEncrypted | flagStored

	// maxPlainLen caps the declared length so a forged header cannot force a
	// large allocation.
	maxPlainLen = 1 << 20

	saltSize = 16
	keySize  = 32
	scryptN  = 1 << 15
	scryptR  = 8
	scryptP  = 1
)

var encoding = base64.RawURLEncoding

// Envelope is the header of a token.
type Envelope struct {
	Version   int
	Encrypted bool
	Stored    bool
	PlainLen  int
	Payload   []byte
}

// Encode serializes s, compresses it and, when passphrase is non-empty, seals
// it with AES-256-GCM under an scrypt-derived key. The token uses the
// unpadded base64url alphabet. s must have a top group and valid UTF-8 text.
func Encode(s Summary, passphrase string) (string, error) {
	if err := validate(s); err != nil {
		return "", err
	}
	plain, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("marshal summary: %w", err)
	}
	if len(plain) > maxPlainLen {
		return "", fmt.Errorf("summary too large: %d bytes", len(plain))
	}

	var flags byte
	body := compress(plain)
	if body == nil {
		body = plain
		flags |= flagStored
	}
	if passphrase != "" {
		flags |= flagEncrypted
	}
	header := make([]byte, headerSize)
	header[0] = version
	header[1] = flags
	binary.BigEndian.PutUint32(header[2:], uint32(len(plain)))

	if passphrase != "" {
		body, err = seal(body, passphrase, header)
		if err != nil {
			return "", err
		}
	}
	return encoding.EncodeToString(append(header, body...)), nil
}

// Inspect decodes the text layer and header of token without touching the
// payload.
func Inspect(token string) (Envelope, error) {
	raw, err := encoding.DecodeString(token)
	if err != nil {
		return Envelope{}, formatErr("base64", err)
	}
	if len(raw) < headerSize {
		return Envelope{}, formatErr("envelope", errors.New("token too short"))
	}
	if raw[0] != version {
		return Envelope{}, formatErr("envelope", fmt.Errorf("unsupported version %d", raw[0]))
	}
	flags := raw[1]
	if flags&^knownFlags != 0 {
		return Envelope{}, formatErr("envelope", fmt.Errorf("unknown flags %#x", flags))
	}
	n := binary.BigEndian.Uint32(raw[2:headerSize])
	if n == 0 || n > maxPlainLen {
		return Envelope{}, formatErr("envelope", fmt.Errorf("bad length %d", n))
	}
	return Envelope{
		Version:   int(raw[0]),
		Encrypted: flags&flagEncrypted != 0,
		Stored:    flags&flagStored != 0,
		PlainLen:  int(n),
		Payload:   raw[headerSize:],
	}, nil
}

// Decode reverses Encode. An encrypted token needs the passphrase it was
// sealed with; a passphrase given for a plain token is ignored.
func Decode(token, passphrase string) (Summary, error) {
	env, err := Inspect(token)
	if err != nil {
		return Summary{}, err
	}
	body := env.Payload
	if env.Encrypted {
		if passphrase == "" {
			return Summary{}, ErrPassphraseRequired
		}
		body, err = open(body, passphrase, env.header())
		if err != nil {
			return Summary{}, err
		}
	}

	plain := body
	if !env.Stored {
		plain = make([]byte, env.PlainLen)
		n, err := lz4.UncompressBlock(body, plain)
		if err != nil {
			return Summary{}, formatErr("decompress", err)
		}
		plain = plain[:n]
	}
	if len(plain) != env.PlainLen {
		return Summary{}, formatErr("decompress", fmt.Errorf("length %d, want %d", len(plain), env.PlainLen))
	}

	var s Summary
	if err := json.Unmarshal(plain, &s); err != nil {
		return Summary{}, formatErr("json", err)
	}
	if s.TopKey == "" {
		return Summary{}, formatErr("json", errors.New("missing top group"))
	}
	return s, nil
}

func validate(s Summary) error {
	if s.TopKey == "" {
		return fmt.Errorf("%w: missing top group", ErrInvalidSummary)
	}
	texts := []string{s.TopKey, s.BottomKey, s.GroupKeyColumn, s.Attribution}
	for _, e := range s.TopN {
		texts = append(texts, e.Key)
	}
	for _, t := range texts {
		if !utf8.ValidString(t) {
			return fmt.Errorf("%w: %q is not valid UTF-8", ErrInvalidSummary, t)
		}
	}
	return nil
}

func (e Envelope) header() []byte {
	h := make([]byte, headerSize)
	h[0] = byte(e.Version)
	if e.Encrypted {
		h[1] |= flagEncrypted
	}
	if e.Stored {
		h[1] |= flagStored
	}
	binary.BigEndian.PutUint32(h[2:], uint32(e.PlainLen))
	return h
}

func compress(plain []byte) []byte {
	buf := make([]byte, lz4.CompressBlockBound(len(plain)))
	n, err := lz4.CompressBlock(plain, buf, nil)
	if err != nil || n == 0 || n >= len(plain) {
		return nil
	}
	return buf[:n]
}

// seal returns salt || nonce || ciphertext. The header is authenticated as
// additional data.
func seal(body []byte, passphrase string, header []byte) ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	aead, err := newAEAD(passphrase, salt)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	out := make([]byte, 0, saltSize+len(nonce)+len(body)+aead.Overhead())
	out = append(out, salt...)
	out = append(out, nonce...)
	return aead.Seal(out, nonce, body, header), nil
}

func open(sealed []byte, passphrase string, header []byte) ([]byte, error) {
	const nonceSize = 12
	if len(sealed) < saltSize+nonceSize+16 {
		return nil, formatErr("ciphertext", errors.New("too short"))
	}
	salt := sealed[:saltSize]
	nonce := sealed[saltSize : saltSize+nonceSize]
	aead, err := newAEAD(passphrase, salt)
	if err != nil {
		return nil, err
	}
	body, err := aead.Open(nil, nonce, sealed[saltSize+nonceSize:], header)
	if err != nil {
		return nil, ErrIncorrectPassphrase
	}
	return body, nil
}

func newAEAD(passphrase string, salt []byte) (cipher.AEAD, error) {
	key, err := scrypt.Key([]byte(passphrase), salt, scryptN, scryptR, scryptP, keySize)
	if err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	return cipher.NewGCM(block)
}
