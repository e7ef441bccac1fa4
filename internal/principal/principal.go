// Package principal implements the textual encoding of Internet Computer
// principals and the self-authenticating principal of a secp256k1 key.
package principal

import (
	"crypto/sha256"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/base32"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"strings"
)

// Alphabet lists every non-separator character a principal text can contain.
const Alphabet = "abcdefghijklmnopqrstuvwxyz234567"

// GroupSize is the number of characters between two dashes.
const GroupSize = 5

const selfAuthenticatingTag = 0x02

var (
	oidECPublicKey = asn1.ObjectIdentifier{1, 2, 840, 10045, 2, 1}
	oidSecp256k1   = asn1.ObjectIdentifier{1, 3, 132, 0, 10}

	encoding = base32.StdEncoding.WithPadding(base32.NoPadding)
)

type subjectPublicKeyInfo struct {
	Algorithm pkix.AlgorithmIdentifier
	PublicKey asn1.BitString
}

// Encoder turns an uncompressed secp256k1 public key into principal text.
type Encoder interface {
	Encode(pub []byte) (string, error)
}

// SelfAuthenticating is the Encoder used by ICP for key-derived principals.
type SelfAuthenticating struct{}

func (SelfAuthenticating) Encode(pub []byte) (string, error) {
	raw, err := FromPublicKey(pub)
	if err != nil {
		return "", err
	}
	return Text(raw), nil
}

// DERPublicKey wraps a 65-byte uncompressed point in a SubjectPublicKeyInfo.
func DERPublicKey(pub []byte) ([]byte, error) {
	if len(pub) != 65 || pub[0] != 0x04 {
		return nil, fmt.Errorf("public key must be 65-byte uncompressed point, got %d bytes", len(pub))
	}
	params, err := asn1.Marshal(oidSecp256k1)
	if err != nil {
		return nil, fmt.Errorf("marshal curve oid: %w", err)
	}
	spki := subjectPublicKeyInfo{
		Algorithm: pkix.AlgorithmIdentifier{
			Algorithm:  oidECPublicKey,
			Parameters: asn1.RawValue{FullBytes: params},
		},
		PublicKey: asn1.BitString{Bytes: pub, BitLength: len(pub) * 8},
	}
	return asn1.Marshal(spki)
}

// FromPublicKey returns the 29 raw principal bytes: SHA-224(DER) || 0x02.
func FromPublicKey(pub []byte) ([]byte, error) {
	der, err := DERPublicKey(pub)
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum224(der)
	raw := make([]byte, 0, len(sum)+1)
	raw = append(raw, sum[:]...)
	return append(raw, selfAuthenticatingTag), nil
}

// Text renders raw principal bytes: base32(crc32 || raw) in dash-separated groups.
func Text(raw []byte) string {
	buf := make([]byte, 4, 4+len(raw))
	binary.BigEndian.PutUint32(buf, crc32.ChecksumIEEE(raw))
	buf = append(buf, raw...)

	s := strings.ToLower(encoding.EncodeToString(buf))
	var b strings.Builder
	b.Grow(len(s) + len(s)/GroupSize)
	for i := 0; i < len(s); i += GroupSize {
		if i > 0 {
			b.WriteByte('-')
		}
		end := i + GroupSize
		if end > len(s) {
			end = len(s)
		}
		b.WriteString(s[i:end])
	}
	return b.String()
}

// Decode parses principal text and verifies its checksum.
func Decode(text string) ([]byte, error) {
	s := strings.ReplaceAll(text, "-", "")
	buf, err := encoding.DecodeString(strings.ToUpper(s))
	if err != nil {
		return nil, fmt.Errorf("decode principal %q: %w", text, err)
	}
	if len(buf) < 4 {
		return nil, errors.New("principal too short")
	}
	raw := buf[4:]
	if binary.BigEndian.Uint32(buf[:4]) != crc32.ChecksumIEEE(raw) {
		return nil, fmt.Errorf("principal %q: checksum mismatch", text)
	}
	if Text(raw) != text {
		return nil, fmt.Errorf("principal %q: not in canonical form", text)
	}
	return raw, nil
}
