// Package codec is the persisted layout of ledger accounts and instructions.
//
// An encoded account is an 8-byte kind discriminator, a layout version byte and
// a msgpack body. The discriminator makes a Plan record unreadable as any other
// kind; the version byte lets the layout evolve.
package codec

import (
	"bytes"
	"crypto/sha256"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"subs3-ledger/internal/domain"
	"subs3-ledger/internal/domain/model"
)

const (
	DiscriminatorSize = 8
	HeaderSize        = DiscriminatorSize + 1

	// LayoutV1 is the only layout written today.
	LayoutV1 byte = 1
)

var discriminators = map[model.AccountKind][DiscriminatorSize]byte{}

func init() {
	for _, k := range []model.AccountKind{model.KindManager, model.KindPlan, model.KindVault, model.KindSubscription} {
		discriminators[k] = Discriminator("account", k.String())
	}
}

// Discriminator is sha256("<namespace>:<name>")[:8].
func Discriminator(namespace, name string) [DiscriminatorSize]byte {
	sum := sha256.Sum256([]byte(namespace + ":" + name))
	var d [DiscriminatorSize]byte
	copy(d[:], sum[:DiscriminatorSize])
	return d
}

// KindOf reads only the header of an encoded account.
func KindOf(data []byte) (model.AccountKind, error) {
	if len(data) < HeaderSize {
		return 0, fmt.Errorf("%w: %d bytes", domain.ErrUnknownAccountKind, len(data))
	}
	for k, d := range discriminators {
		if bytes.Equal(data[:DiscriminatorSize], d[:]) {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: %x", domain.ErrUnknownAccountKind, data[:DiscriminatorSize])
}

// EncodeAccount renders acc in the current layout.
func EncodeAccount(acc model.Account) ([]byte, error) {
	if acc == nil {
		return nil, domain.ErrInvalidArgument
	}
	d, ok := discriminators[acc.Kind()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownAccountKind, acc.Kind())
	}
	var body any
	switch a := acc.(type) {
	case *model.Manager:
		body = managerToWire(a)
	case *model.SubscriptionPlan:
		body = planToWire(a)
	case *model.ProviderVault:
		body = vaultToWire(a)
	case *model.Subscription:
		body = subscriptionToWire(a)
	}
	b, err := msgpack.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", acc.Kind(), err)
	}
	out := make([]byte, 0, HeaderSize+len(b))
	out = append(out, d[:]...)
	out = append(out, LayoutV1)
	return append(out, b...), nil
}

// DecodeAccount parses any known kind.
func DecodeAccount(data []byte) (model.Account, error) {
	kind, err := KindOf(data)
	if err != nil {
		return nil, err
	}
	if v := data[DiscriminatorSize]; v != LayoutV1 {
		return nil, fmt.Errorf("%w: %s layout %d", domain.ErrUnsupportedLayout, kind, v)
	}
	body := data[HeaderSize:]
	switch kind {
	case model.KindManager:
		var w managerV1
		if err := msgpack.Unmarshal(body, &w); err != nil {
			return nil, fmt.Errorf("decode %s: %w", kind, err)
		}
		return asAccount(w.toModel())
	case model.KindPlan:
		var w planV1
		if err := msgpack.Unmarshal(body, &w); err != nil {
			return nil, fmt.Errorf("decode %s: %w", kind, err)
		}
		return asAccount(w.toModel())
	case model.KindVault:
		var w vaultV1
		if err := msgpack.Unmarshal(body, &w); err != nil {
			return nil, fmt.Errorf("decode %s: %w", kind, err)
		}
		return asAccount(w.toModel())
	case model.KindSubscription:
		var w subscriptionV1
		if err := msgpack.Unmarshal(body, &w); err != nil {
			return nil, fmt.Errorf("decode %s: %w", kind, err)
		}
		return asAccount(w.toModel())
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrUnknownAccountKind, kind)
}

func asAccount[T model.Account](acc T, err error) (model.Account, error) {
	if err != nil {
		return nil, err
	}
	return acc, nil
}

// DecodeAs parses data and requires it to be of kind T.
func DecodeAs[T model.Account](data []byte) (T, error) {
	acc, err := DecodeAccount(data)
	if err != nil {
		var zero T
		return zero, err
	}
	return model.As[T](acc)
}
