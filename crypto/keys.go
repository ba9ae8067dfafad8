package crypto

import (
	"crypto/ecdsa"
	"crypto/rand"
	"fmt"

	"github.com/btcsuite/btcutil/bech32"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// AddressPrefix is the human-readable part used when rendering addresses.
type AddressPrefix string

// CredPrefix is the bech32 prefix for protocol accounts.
const CredPrefix AddressPrefix = "cred"

// AddressLength is the raw byte length of every account identifier.
const AddressLength = 20

// Address represents a 20-byte account identifier with a bech32 prefix.
type Address struct {
	prefix AddressPrefix
	bytes  [AddressLength]byte
}

// NewAddress wraps a raw 20-byte identifier with the supplied prefix.
func NewAddress(prefix AddressPrefix, raw [AddressLength]byte) Address {
	return Address{prefix: prefix, bytes: raw}
}

// MustAddressFromBytes builds an address from a byte slice, panicking when the
// slice is not exactly 20 bytes. Intended for static module addresses.
func MustAddressFromBytes(prefix AddressPrefix, b []byte) Address {
	if len(b) != AddressLength {
		panic(fmt.Sprintf("address must be %d bytes long", AddressLength))
	}
	var raw [AddressLength]byte
	copy(raw[:], b)
	return NewAddress(prefix, raw)
}

// String renders the bech32 form of the address.
func (a Address) String() string {
	conv, err := bech32.ConvertBits(a.bytes[:], 8, 5, true)
	if err != nil {
		panic(err)
	}
	encoded, err := bech32.Encode(string(a.prefix), conv)
	if err != nil {
		panic(err)
	}
	return encoded
}

// Raw returns the fixed-size byte form engines key state by.
func (a Address) Raw() [AddressLength]byte { return a.bytes }

// Bytes returns a copy of the raw identifier.
func (a Address) Bytes() []byte {
	out := make([]byte, AddressLength)
	copy(out, a.bytes[:])
	return out
}

// Prefix returns the human-readable prefix associated with the address.
func (a Address) Prefix() AddressPrefix { return a.prefix }

// DecodeAddress parses a bech32 address string.
func DecodeAddress(addrStr string) (Address, error) {
	prefix, decoded, err := bech32.Decode(addrStr)
	if err != nil {
		return Address{}, fmt.Errorf("invalid bech32 string: %w", err)
	}
	conv, err := bech32.ConvertBits(decoded, 5, 8, false)
	if err != nil {
		return Address{}, fmt.Errorf("error converting bits: %w", err)
	}
	if len(conv) != AddressLength {
		return Address{}, fmt.Errorf("address must be %d bytes long, got %d", AddressLength, len(conv))
	}
	var raw [AddressLength]byte
	copy(raw[:], conv)
	return NewAddress(AddressPrefix(prefix), raw), nil
}

// ModuleAddress derives the deterministic vault address owned by a native
// module. Vaults hold escrowed and pooled funds so conservation can be
// audited from account state alone.
func ModuleAddress(module string) [AddressLength]byte {
	digest := ethcrypto.Keccak256([]byte("credchain/module/" + module))
	var raw [AddressLength]byte
	copy(raw[:], digest[len(digest)-AddressLength:])
	return raw
}

// --- Key management ---

type PrivateKey struct {
	*ecdsa.PrivateKey
}

type PublicKey struct {
	*ecdsa.PublicKey
}

// GeneratePrivateKey produces a fresh secp256k1 key pair.
func GeneratePrivateKey() (*PrivateKey, error) {
	key, err := ecdsa.GenerateKey(ethcrypto.S256(), rand.Reader)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key}, nil
}

// Bytes returns the byte representation of the private key.
func (k *PrivateKey) Bytes() []byte {
	return ethcrypto.FromECDSA(k.PrivateKey)
}

func (k *PrivateKey) PubKey() *PublicKey {
	return &PublicKey{&k.PrivateKey.PublicKey}
}

// Address derives the account identifier controlled by this key.
func (k *PublicKey) Address() Address {
	addrBytes := ethcrypto.PubkeyToAddress(*k.PublicKey).Bytes()
	return MustAddressFromBytes(CredPrefix, addrBytes)
}

// PrivateKeyFromBytes rehydrates a key from its byte representation.
func PrivateKeyFromBytes(b []byte) (*PrivateKey, error) {
	key, err := ethcrypto.ToECDSA(b)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key}, nil
}
