package quic

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"fmt"

	"golang.org/x/crypto/chacha20"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// initialSalt is the fixed salt used to derive Initial secrets from the
// client's destination CID (spec.md §3 "Keying material").
var initialSalt = []byte{
	0x9c, 0x10, 0x8f, 0x98, 0x52, 0x0a, 0x5c, 0x5c,
	0x32, 0x96, 0x8e, 0x95, 0x0e, 0x8a, 0x2c, 0x5f,
	0xe0, 0x6d, 0x6c, 0x38,
}

// AEADSuite identifies which cipher backs a traffic secret. ChaCha20 is
// negotiated as an alternative to AES-GCM (spec.md §4.2).
type AEADSuite int

const (
	SuiteAES128GCM AEADSuite = iota
	SuiteChaCha20Poly1305
)

// Keys holds the derived key material for one direction in one packet-
// number space: AEAD key, 12-byte IV, and 16-byte header-protection key
// (spec.md §3 "Keying material").
type Keys struct {
	Suite AEADSuite
	Key   []byte
	IV    []byte
	HPKey []byte

	aead cipher.AEAD
}

func (k *Keys) aeadCipher() (cipher.AEAD, error) {
	if k.aead != nil {
		return k.aead, nil
	}
	switch k.Suite {
	case SuiteAES128GCM:
		block, err := aes.NewCipher(k.Key)
		if err != nil {
			return nil, err
		}
		a, err := cipher.NewGCM(block)
		if err != nil {
			return nil, err
		}
		k.aead = a
	case SuiteChaCha20Poly1305:
		a, err := chacha20poly1305.New(k.Key)
		if err != nil {
			return nil, err
		}
		k.aead = a
	default:
		return nil, fmt.Errorf("quic: unknown aead suite %d", k.Suite)
	}
	return k.aead, nil
}

// nonce computes IV XOR (pkt_num big-endian in the last 8 bytes), per
// spec.md §3.
func (k *Keys) nonce(pn uint64) []byte {
	nonce := append([]byte(nil), k.IV...)
	for i := 0; i < 8; i++ {
		nonce[len(nonce)-1-i] ^= byte(pn >> (8 * i))
	}
	return nonce
}

// Seal encrypts plaintext in place (appended form) with associated data
// ad, for packet number pn.
func (k *Keys) Seal(dst, ad, plaintext []byte, pn uint64) ([]byte, error) {
	a, err := k.aeadCipher()
	if err != nil {
		return nil, err
	}
	return a.Seal(dst, k.nonce(pn), plaintext, ad), nil
}

// Open decrypts ciphertext, returning the plaintext or an error. A
// failure here is a routine "decrypt error" per spec.md §4.3 and §7, not
// a protocol violation.
func (k *Keys) Open(dst, ad, ciphertext []byte, pn uint64) ([]byte, error) {
	a, err := k.aeadCipher()
	if err != nil {
		return nil, err
	}
	return a.Open(dst, k.nonce(pn), ciphertext, ad)
}

// headerProtectionMask derives the 5-byte mask used to XOR the low header
// bits and the packet-number field, from a 16-byte ciphertext sample
// (spec.md §4.2).
func (k *Keys) headerProtectionMask(sample []byte) ([]byte, error) {
	if len(sample) != 16 {
		return nil, fmt.Errorf("quic: header protection sample must be 16 bytes")
	}
	switch k.Suite {
	case SuiteAES128GCM:
		block, err := aes.NewCipher(k.HPKey)
		if err != nil {
			return nil, err
		}
		mask := make([]byte, 16)
		block.Encrypt(mask, sample)
		return mask[:5], nil
	case SuiteChaCha20Poly1305:
		counter := uint32(sample[0]) | uint32(sample[1])<<8 | uint32(sample[2])<<16 | uint32(sample[3])<<24
		nonce := sample[4:16]
		c, err := chacha20.NewUnauthenticatedCipher(k.HPKey, nonce)
		if err != nil {
			return nil, err
		}
		c.SetCounter(counter)
		mask := make([]byte, 5)
		c.XORKeyStream(mask, mask)
		return mask, nil
	default:
		return nil, fmt.Errorf("quic: unknown aead suite %d", k.Suite)
	}
}

// TagSize returns the AEAD authentication tag size added to the payload.
func (k *Keys) TagSize() int {
	switch k.Suite {
	case SuiteChaCha20Poly1305:
		return chacha20poly1305.Overhead
	default:
		return 16
	}
}

// DirectionalKeys bundles the read (peer->us) and write (us->peer) keys
// for one packet-number space.
type DirectionalKeys struct {
	Read  *Keys
	Write *Keys
}

// hkdfExpandLabel derives length bytes of key material from secret using
// the "quic key"/"quic iv"/"quic pn" labels (spec.md §4.2). This mirrors
// TLS 1.3's HKDF-Expand-Label construction without depending on a TLS
// library for it, since it is QUIC-specific derivation run on secrets the
// TLS collaborator exports, not a TLS record-layer operation itself.
func hkdfExpandLabel(secret []byte, label string, length int) []byte {
	info := make([]byte, 0, 2+1+len("tls13 ")+len(label)+1)
	info = append(info, byte(length>>8), byte(length))
	fullLabel := "tls13 " + label
	info = append(info, byte(len(fullLabel)))
	info = append(info, fullLabel...)
	info = append(info, 0)

	out := make([]byte, length)
	r := hkdf.Expand(sha256.New, secret, info)
	if _, err := r.Read(out); err != nil {
		panic(err) // hkdf.Expand only fails if length is unreasonably large
	}
	return out
}

// DeriveKeys derives {key, iv, hp} from a traffic secret (spec.md §4.2).
func DeriveKeys(secret []byte, suite AEADSuite) *Keys {
	keyLen := 16
	if suite == SuiteChaCha20Poly1305 {
		keyLen = chacha20poly1305.KeySize
	}
	return &Keys{
		Suite: suite,
		Key:   hkdfExpandLabel(secret, "quic key", keyLen),
		IV:    hkdfExpandLabel(secret, "quic iv", 12),
		HPKey: hkdfExpandLabel(secret, "quic pn", keyLen),
	}
}

// DeriveInitialSecrets derives the client and server Initial traffic
// secrets from the client's destination CID (spec.md §3).
func DeriveInitialSecrets(destCID []byte) (clientSecret, serverSecret []byte) {
	initialSecret := hkdf.Extract(sha256.New, destCID, initialSalt)
	clientSecret = hkdfExpandLabel(initialSecret, "client in", 32)
	serverSecret = hkdfExpandLabel(initialSecret, "server in", 32)
	return
}
