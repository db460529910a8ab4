package staking

import (
	"bytes"
	"crypto/sha256"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

const (
	discriminatorSize = 8

	// GlobalAuthoritySize is the fixed record size of the global authority.
	GlobalAuthoritySize = discriminatorSize + 1 + 32*3 + 1 + 8*modeCount*2 + 8
	// userPoolHeaderSize covers every pool field ahead of the slot table.
	userPoolHeaderSize = discriminatorSize + 32*2 + 1*4 + 8*4
	// SlotSize is the encoded size of one stake slot.
	SlotSize = 1 + 32 + 8*3
)

var (
	globalAuthorityDiscriminator = accountDiscriminator("GlobalAuthority")
	userPoolDiscriminator        = accountDiscriminator("UserPool")
)

func accountDiscriminator(name string) [discriminatorSize]byte {
	sum := sha256.Sum256([]byte("account:" + name))
	var out [discriminatorSize]byte
	copy(out[:], sum[:discriminatorSize])
	return out
}

// UserPoolSize is the record size of a pool with the given slot capacity.
func UserPoolSize(capacity uint8) int {
	return userPoolHeaderSize + int(capacity)*SlotSize
}

// GlobalAuthority is the singleton configuration record. It is also the
// program-derived authority that owns every escrow and the reward vault.
type GlobalAuthority struct {
	Bump        uint8
	Admin       solana.PublicKey
	RewardMint  solana.PublicKey
	RewardVault solana.PublicKey
	VaultBump   uint8
	Config      RewardConfig
	TotalStaked uint64
}

// Rate returns the per-second reward rate for mode.
func (g *GlobalAuthority) Rate(mode StakeMode) uint64 { return g.Config.RewardRates[mode] }

// LockPeriod returns the minimum staking duration for mode.
func (g *GlobalAuthority) LockPeriod(mode StakeMode) int64 { return g.Config.LockPeriods[mode] }

func (g *GlobalAuthority) MarshalWithEncoder(enc *bin.Encoder) error {
	if err := enc.WriteBytes(globalAuthorityDiscriminator[:], false); err != nil {
		return err
	}
	if err := enc.WriteUint8(g.Bump); err != nil {
		return err
	}
	for _, key := range []solana.PublicKey{g.Admin, g.RewardMint, g.RewardVault} {
		if err := enc.WriteBytes(key[:], false); err != nil {
			return err
		}
	}
	if err := enc.WriteUint8(g.VaultBump); err != nil {
		return err
	}
	for _, rate := range g.Config.RewardRates {
		if err := enc.WriteUint64(rate, bin.LE); err != nil {
			return err
		}
	}
	for _, lock := range g.Config.LockPeriods {
		if err := enc.WriteInt64(lock, bin.LE); err != nil {
			return err
		}
	}
	return enc.WriteUint64(g.TotalStaked, bin.LE)
}

func (g *GlobalAuthority) UnmarshalWithDecoder(dec *bin.Decoder) error {
	if err := readDiscriminator(dec, globalAuthorityDiscriminator); err != nil {
		return err
	}
	var err error
	if g.Bump, err = dec.ReadUint8(); err != nil {
		return err
	}
	for _, dst := range []*solana.PublicKey{&g.Admin, &g.RewardMint, &g.RewardVault} {
		if err := readKey(dec, dst); err != nil {
			return err
		}
	}
	if g.VaultBump, err = dec.ReadUint8(); err != nil {
		return err
	}
	for i := range g.Config.RewardRates {
		if g.Config.RewardRates[i], err = dec.ReadUint64(bin.LE); err != nil {
			return err
		}
	}
	for i := range g.Config.LockPeriods {
		if g.Config.LockPeriods[i], err = dec.ReadInt64(bin.LE); err != nil {
			return err
		}
	}
	g.TotalStaked, err = dec.ReadUint64(bin.LE)
	return err
}

// Slot is one fixed position in a pool's slot table. It is either fully empty
// (the zero value) or occupied by exactly one staked unit.
type Slot struct {
	Occupied     bool
	Mint         solana.PublicKey
	StakedAt     int64
	AccruedFrom  int64
	// RewardAmount is the reward this slot has accrued since it was filled.
	RewardAmount uint64
}

// IsZero reports whether every field holds its zero value.
func (s Slot) IsZero() bool { return s == Slot{} }

// UserPool is a per-owner record holding a fixed-capacity slot table.
type UserPool struct {
	Owner         solana.PublicKey
	Discriminator solana.PublicKey
	Bump          uint8
	Mode          StakeMode
	Capacity      uint8
	ItemCount     uint8
	// RewardAmount is claimable reward accumulated since the last claim.
	RewardAmount  uint64
	TotalClaimed  uint64
	LastClaimedAt int64
	CreatedAt     int64
	Slots         []Slot
}

// NewUserPool returns an empty pool with capacity zero-filled slots.
func NewUserPool(owner, discriminator solana.PublicKey, bump uint8, mode StakeMode, capacity uint8, now int64) *UserPool {
	return &UserPool{
		Owner:         owner,
		Discriminator: discriminator,
		Bump:          bump,
		Mode:          mode,
		Capacity:      capacity,
		CreatedAt:     now,
		Slots:         make([]Slot, capacity),
	}
}

// FirstEmptySlot returns the lowest empty index, or -1 when the pool is full.
func (p *UserPool) FirstEmptySlot() int {
	for i, slot := range p.Slots {
		if !slot.Occupied {
			return i
		}
	}
	return -1
}

// FindMint returns the lowest occupied slot holding mint, or -1.
func (p *UserPool) FindMint(mint solana.PublicKey) int {
	for i, slot := range p.Slots {
		if slot.Occupied && slot.Mint.Equals(mint) {
			return i
		}
	}
	return -1
}

// StakedMints lists the mint of every occupied slot in slot order.
func (p *UserPool) StakedMints() []solana.PublicKey {
	out := make([]solana.PublicKey, 0, p.ItemCount)
	for _, slot := range p.Slots {
		if slot.Occupied {
			out = append(out, slot.Mint)
		}
	}
	return out
}

// Validate checks the structural invariants of the slot table.
func (p *UserPool) Validate() error {
	if p.Capacity == 0 || p.Capacity > MaxPoolCapacity {
		return fmt.Errorf("%w: capacity %d", ErrInvalidCapacity, p.Capacity)
	}
	if !p.Mode.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidStakeMode, p.Mode)
	}
	if len(p.Slots) != int(p.Capacity) {
		return fmt.Errorf("%w: %d slots for capacity %d", ErrInvalidAccountData, len(p.Slots), p.Capacity)
	}
	occupied := 0
	for i, slot := range p.Slots {
		if slot.Occupied {
			occupied++
			continue
		}
		if !slot.IsZero() {
			return fmt.Errorf("%w: empty slot %d carries data", ErrInvalidAccountData, i)
		}
	}
	if occupied != int(p.ItemCount) {
		return fmt.Errorf("%w: item count %d but %d occupied slots", ErrInvalidAccountData, p.ItemCount, occupied)
	}
	return nil
}

func (p *UserPool) MarshalWithEncoder(enc *bin.Encoder) error {
	if err := enc.WriteBytes(userPoolDiscriminator[:], false); err != nil {
		return err
	}
	for _, key := range []solana.PublicKey{p.Owner, p.Discriminator} {
		if err := enc.WriteBytes(key[:], false); err != nil {
			return err
		}
	}
	for _, b := range []uint8{p.Bump, uint8(p.Mode), p.Capacity, p.ItemCount} {
		if err := enc.WriteUint8(b); err != nil {
			return err
		}
	}
	if err := enc.WriteUint64(p.RewardAmount, bin.LE); err != nil {
		return err
	}
	if err := enc.WriteUint64(p.TotalClaimed, bin.LE); err != nil {
		return err
	}
	if err := enc.WriteInt64(p.LastClaimedAt, bin.LE); err != nil {
		return err
	}
	if err := enc.WriteInt64(p.CreatedAt, bin.LE); err != nil {
		return err
	}
	for _, slot := range p.Slots {
		if err := enc.WriteBool(slot.Occupied); err != nil {
			return err
		}
		if err := enc.WriteBytes(slot.Mint[:], false); err != nil {
			return err
		}
		if err := enc.WriteInt64(slot.StakedAt, bin.LE); err != nil {
			return err
		}
		if err := enc.WriteInt64(slot.AccruedFrom, bin.LE); err != nil {
			return err
		}
		if err := enc.WriteUint64(slot.RewardAmount, bin.LE); err != nil {
			return err
		}
	}
	return nil
}

func (p *UserPool) UnmarshalWithDecoder(dec *bin.Decoder) error {
	if err := readDiscriminator(dec, userPoolDiscriminator); err != nil {
		return err
	}
	if err := readKey(dec, &p.Owner); err != nil {
		return err
	}
	if err := readKey(dec, &p.Discriminator); err != nil {
		return err
	}
	var err error
	if p.Bump, err = dec.ReadUint8(); err != nil {
		return err
	}
	mode, err := dec.ReadUint8()
	if err != nil {
		return err
	}
	p.Mode = StakeMode(mode)
	if p.Capacity, err = dec.ReadUint8(); err != nil {
		return err
	}
	if p.ItemCount, err = dec.ReadUint8(); err != nil {
		return err
	}
	if p.RewardAmount, err = dec.ReadUint64(bin.LE); err != nil {
		return err
	}
	if p.TotalClaimed, err = dec.ReadUint64(bin.LE); err != nil {
		return err
	}
	if p.LastClaimedAt, err = dec.ReadInt64(bin.LE); err != nil {
		return err
	}
	if p.CreatedAt, err = dec.ReadInt64(bin.LE); err != nil {
		return err
	}
	p.Slots = make([]Slot, p.Capacity)
	for i := range p.Slots {
		slot := &p.Slots[i]
		if slot.Occupied, err = dec.ReadBool(); err != nil {
			return err
		}
		if err := readKey(dec, &slot.Mint); err != nil {
			return err
		}
		if slot.StakedAt, err = dec.ReadInt64(bin.LE); err != nil {
			return err
		}
		if slot.AccruedFrom, err = dec.ReadInt64(bin.LE); err != nil {
			return err
		}
		if slot.RewardAmount, err = dec.ReadUint64(bin.LE); err != nil {
			return err
		}
	}
	return nil
}

func readDiscriminator(dec *bin.Decoder, want [discriminatorSize]byte) error {
	got, err := dec.ReadBytes(discriminatorSize)
	if err != nil {
		return err
	}
	if !bytes.Equal(got, want[:]) {
		return fmt.Errorf("%w: account discriminator mismatch", ErrInvalidAccountData)
	}
	return nil
}

func readKey(dec *bin.Decoder, dst *solana.PublicKey) error {
	raw, err := dec.ReadBytes(solana.PublicKeyLength)
	if err != nil {
		return err
	}
	*dst = solana.PublicKeyFromBytes(raw)
	return nil
}

// EncodeGlobalAuthority serialises the global record.
func EncodeGlobalAuthority(g *GlobalAuthority) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := g.MarshalWithEncoder(bin.NewBorshEncoder(buf)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeGlobalAuthority parses a global record.
func DecodeGlobalAuthority(data []byte) (*GlobalAuthority, error) {
	if len(data) != GlobalAuthoritySize {
		return nil, fmt.Errorf("%w: global record is %d bytes", ErrInvalidAccountData, len(data))
	}
	g := new(GlobalAuthority)
	if err := g.UnmarshalWithDecoder(bin.NewBorshDecoder(data)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAccountData, err)
	}
	return g, nil
}

// EncodeUserPool serialises a pool; the output length is UserPoolSize(Capacity).
func EncodeUserPool(p *UserPool) ([]byte, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	buf := new(bytes.Buffer)
	buf.Grow(UserPoolSize(p.Capacity))
	if err := p.MarshalWithEncoder(bin.NewBorshEncoder(buf)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeUserPool parses and validates a pool record.
func DecodeUserPool(data []byte) (*UserPool, error) {
	if len(data) < userPoolHeaderSize {
		return nil, fmt.Errorf("%w: pool record is %d bytes", ErrInvalidAccountData, len(data))
	}
	p := new(UserPool)
	if err := p.UnmarshalWithDecoder(bin.NewBorshDecoder(data)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAccountData, err)
	}
	if len(data) != UserPoolSize(p.Capacity) {
		return nil, fmt.Errorf("%w: pool record is %d bytes for capacity %d", ErrInvalidAccountData, len(data), p.Capacity)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}
