package events

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"
)

func TestBusFanOut(t *testing.T) {
	bus := NewBus()
	a, cancelA := bus.Subscribe("a", 4)
	b, cancelB := bus.Subscribe("b", 1)
	defer cancelA()

	evt := StakePoolClosed{Pool: solana.NewWallet().PublicKey()}
	bus.Emit(evt)
	bus.Emit(evt)

	require.Equal(t, TypeStakePoolClosed, (<-a).EventType())
	require.Equal(t, TypeStakePoolClosed, (<-a).EventType())
	require.Equal(t, TypeStakePoolClosed, (<-b).EventType())
	select {
	case <-b:
		t.Fatalf("slow subscriber should have dropped the second event")
	default:
	}

	cancelB()
	cancelB()
	require.Equal(t, 1, bus.Subscribers())
	_, open := <-b
	require.False(t, open)
}

func TestToTypes(t *testing.T) {
	owner := solana.NewWallet().PublicKey()
	out := ToTypes(StakeRewardClaimed{Owner: owner, Amount: 42})
	require.Equal(t, TypeStakeRewardClaimed, out.Type)
	require.Equal(t, "42", out.Attributes["amount"])
	require.Equal(t, owner.String(), out.Attributes["owner"])
}
