package model

import (
	"fmt"

	"github.com/mr-tron/base58"

	"subs3-ledger/internal/domain"
)

// AddressLength is the byte length of every principal, program and account address.
const AddressLength = 32

// Address identifies a principal, a program or a ledger account.
// Its text form is base58, like the wallets that produce principals.
type Address [AddressLength]byte

// DefaultAddress is the all-zero address; it is never a valid authority.
var DefaultAddress Address

// ParseAddress decodes a base58 address string.
func ParseAddress(s string) (Address, error) {
	var a Address
	if s == "" {
		return a, fmt.Errorf("%w: empty string", domain.ErrInvalidAddress)
	}
	b, err := base58.Decode(s)
	if err != nil {
		return a, fmt.Errorf("%w: %q: %v", domain.ErrInvalidAddress, s, err)
	}
	if len(b) != AddressLength {
		return a, fmt.Errorf("%w: %q decodes to %d bytes", domain.ErrInvalidAddress, s, len(b))
	}
	copy(a[:], b)
	return a, nil
}

// MustParseAddress is like ParseAddress but panics on error. Use for hardcoded values.
func MustParseAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

// AddressFromBytes copies b into an Address.
func AddressFromBytes(b []byte) (Address, error) {
	var a Address
	if len(b) != AddressLength {
		return a, fmt.Errorf("%w: got %d bytes", domain.ErrInvalidAddress, len(b))
	}
	copy(a[:], b)
	return a, nil
}

func (a Address) String() string { return base58.Encode(a[:]) }

func (a Address) Bytes() []byte { return a[:] }

func (a Address) IsZero() bool { return a == DefaultAddress }

// MarshalText implements encoding.TextMarshaler.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Address) UnmarshalText(data []byte) error {
	parsed, err := ParseAddress(string(data))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
