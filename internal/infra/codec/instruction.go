package codec

import (
	"bytes"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"subs3-ledger/internal/domain"
)

// InstructionDiscriminator is sha256("global:<name>")[:8].
func InstructionDiscriminator(name string) [DiscriminatorSize]byte {
	return Discriminator("global", name)
}

// EncodeInstruction prefixes the msgpack encoding of args with name's discriminator.
func EncodeInstruction(name string, args any) ([]byte, error) {
	d := InstructionDiscriminator(name)
	var buf bytes.Buffer
	buf.Write(d[:])
	if args != nil {
		if err := msgpack.NewEncoder(&buf).Encode(args); err != nil {
			return nil, fmt.Errorf("encode %s args: %w", name, err)
		}
	}
	return buf.Bytes(), nil
}

// InstructionTable resolves discriminators back to instruction names.
type InstructionTable map[[DiscriminatorSize]byte]string

func NewInstructionTable(names ...string) InstructionTable {
	t := make(InstructionTable, len(names))
	for _, n := range names {
		t[InstructionDiscriminator(n)] = n
	}
	return t
}

// Name returns the instruction encoded in data.
func (t InstructionTable) Name(data []byte) (string, error) {
	if len(data) < DiscriminatorSize {
		return "", fmt.Errorf("%w: instruction data is %d bytes", domain.ErrInvalidArgument, len(data))
	}
	var d [DiscriminatorSize]byte
	copy(d[:], data)
	name, ok := t[d]
	if !ok {
		return "", fmt.Errorf("%w: unknown instruction %x", domain.ErrInvalidArgument, d)
	}
	return name, nil
}

// DecodeInstructionArgs unmarshals the argument body of data into v.
func DecodeInstructionArgs(data []byte, v any) error {
	if len(data) < DiscriminatorSize {
		return fmt.Errorf("%w: instruction data is %d bytes", domain.ErrInvalidArgument, len(data))
	}
	if err := msgpack.Unmarshal(data[DiscriminatorSize:], v); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
	}
	return nil
}
