package token

import (
	"bytes"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

const (
	MintSize    = 82
	AccountSize = 165
)

// AccountState is the lifecycle state of a token account.
type AccountState uint8

const (
	AccountUninitialized AccountState = iota
	AccountInitialized
	AccountFrozen
)

var optionSome = [4]byte{1, 0, 0, 0}

// Mint describes a token: who may mint, how many units exist and how they
// are displayed. An NFT is a mint with zero decimals.
type Mint struct {
	MintAuthorityOption   [4]byte
	MintAuthority         solana.PublicKey
	Supply                uint64
	Decimals              uint8
	IsInitialized         bool
	FreezeAuthorityOption [4]byte
	FreezeAuthority       solana.PublicKey
}

// HasMintAuthority reports whether new supply can still be issued.
func (m *Mint) HasMintAuthority() bool { return m.MintAuthorityOption == optionSome }

func (m *Mint) MarshalWithEncoder(enc *bin.Encoder) error {
	if err := enc.WriteBytes(m.MintAuthorityOption[:], false); err != nil {
		return err
	}
	if err := enc.WriteBytes(m.MintAuthority[:], false); err != nil {
		return err
	}
	if err := enc.WriteUint64(m.Supply, bin.LE); err != nil {
		return err
	}
	if err := enc.WriteUint8(m.Decimals); err != nil {
		return err
	}
	if err := enc.WriteBool(m.IsInitialized); err != nil {
		return err
	}
	if err := enc.WriteBytes(m.FreezeAuthorityOption[:], false); err != nil {
		return err
	}
	return enc.WriteBytes(m.FreezeAuthority[:], false)
}

func (m *Mint) UnmarshalWithDecoder(dec *bin.Decoder) error {
	raw, err := dec.ReadBytes(4)
	if err != nil {
		return err
	}
	copy(m.MintAuthorityOption[:], raw)
	if raw, err = dec.ReadBytes(solana.PublicKeyLength); err != nil {
		return err
	}
	m.MintAuthority = solana.PublicKeyFromBytes(raw)
	if m.Supply, err = dec.ReadUint64(bin.LE); err != nil {
		return err
	}
	if m.Decimals, err = dec.ReadUint8(); err != nil {
		return err
	}
	if m.IsInitialized, err = dec.ReadBool(); err != nil {
		return err
	}
	if raw, err = dec.ReadBytes(4); err != nil {
		return err
	}
	copy(m.FreezeAuthorityOption[:], raw)
	if raw, err = dec.ReadBytes(solana.PublicKeyLength); err != nil {
		return err
	}
	m.FreezeAuthority = solana.PublicKeyFromBytes(raw)
	return nil
}

// TokenAccount holds a balance of one mint on behalf of an owner.
type TokenAccount struct {
	Mint                 solana.PublicKey
	Owner                solana.PublicKey
	Amount               uint64
	DelegateOption       [4]byte
	Delegate             solana.PublicKey
	State                AccountState
	IsNativeOption       [4]byte
	IsNative             uint64
	DelegatedAmount      uint64
	CloseAuthorityOption [4]byte
	CloseAuthority       solana.PublicKey
}

func (a *TokenAccount) MarshalWithEncoder(enc *bin.Encoder) error {
	for _, chunk := range [][]byte{a.Mint[:], a.Owner[:]} {
		if err := enc.WriteBytes(chunk, false); err != nil {
			return err
		}
	}
	if err := enc.WriteUint64(a.Amount, bin.LE); err != nil {
		return err
	}
	for _, chunk := range [][]byte{a.DelegateOption[:], a.Delegate[:]} {
		if err := enc.WriteBytes(chunk, false); err != nil {
			return err
		}
	}
	if err := enc.WriteUint8(uint8(a.State)); err != nil {
		return err
	}
	if err := enc.WriteBytes(a.IsNativeOption[:], false); err != nil {
		return err
	}
	if err := enc.WriteUint64(a.IsNative, bin.LE); err != nil {
		return err
	}
	if err := enc.WriteUint64(a.DelegatedAmount, bin.LE); err != nil {
		return err
	}
	if err := enc.WriteBytes(a.CloseAuthorityOption[:], false); err != nil {
		return err
	}
	return enc.WriteBytes(a.CloseAuthority[:], false)
}

func (a *TokenAccount) UnmarshalWithDecoder(dec *bin.Decoder) error {
	readKey := func(dst *solana.PublicKey) error {
		raw, err := dec.ReadBytes(solana.PublicKeyLength)
		if err != nil {
			return err
		}
		*dst = solana.PublicKeyFromBytes(raw)
		return nil
	}
	readOption := func(dst *[4]byte) error {
		raw, err := dec.ReadBytes(4)
		if err != nil {
			return err
		}
		copy(dst[:], raw)
		return nil
	}
	var err error
	if err = readKey(&a.Mint); err != nil {
		return err
	}
	if err = readKey(&a.Owner); err != nil {
		return err
	}
	if a.Amount, err = dec.ReadUint64(bin.LE); err != nil {
		return err
	}
	if err = readOption(&a.DelegateOption); err != nil {
		return err
	}
	if err = readKey(&a.Delegate); err != nil {
		return err
	}
	state, err := dec.ReadUint8()
	if err != nil {
		return err
	}
	a.State = AccountState(state)
	if err = readOption(&a.IsNativeOption); err != nil {
		return err
	}
	if a.IsNative, err = dec.ReadUint64(bin.LE); err != nil {
		return err
	}
	if a.DelegatedAmount, err = dec.ReadUint64(bin.LE); err != nil {
		return err
	}
	if err = readOption(&a.CloseAuthorityOption); err != nil {
		return err
	}
	return readKey(&a.CloseAuthority)
}

// DecodeMint parses mint account data.
func DecodeMint(data []byte) (*Mint, error) {
	if len(data) != MintSize {
		return nil, fmt.Errorf("%w: mint data is %d bytes", ErrInvalidAccountData, len(data))
	}
	mint := new(Mint)
	if err := mint.UnmarshalWithDecoder(bin.NewBinDecoder(data)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAccountData, err)
	}
	return mint, nil
}

// DecodeTokenAccount parses token account data.
func DecodeTokenAccount(data []byte) (*TokenAccount, error) {
	if len(data) != AccountSize {
		return nil, fmt.Errorf("%w: token account data is %d bytes", ErrInvalidAccountData, len(data))
	}
	account := new(TokenAccount)
	if err := account.UnmarshalWithDecoder(bin.NewBinDecoder(data)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAccountData, err)
	}
	return account, nil
}

func encode(v interface {
	MarshalWithEncoder(*bin.Encoder) error
}, size int) ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.Grow(size)
	if err := v.MarshalWithEncoder(bin.NewBinEncoder(buf)); err != nil {
		return nil, err
	}
	if buf.Len() != size {
		return nil, fmt.Errorf("%w: encoded %d bytes, want %d", ErrInvalidAccountData, buf.Len(), size)
	}
	return buf.Bytes(), nil
}

// EncodeMint serialises a mint into its fixed layout.
func EncodeMint(m *Mint) ([]byte, error) { return encode(m, MintSize) }

// EncodeTokenAccount serialises a token account into its fixed layout.
func EncodeTokenAccount(a *TokenAccount) ([]byte, error) { return encode(a, AccountSize) }
