package drop

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"

	"github.com/premier-io/drops-go/common"
	"github.com/premier-io/drops-go/verifier"
	"github.com/stretchr/testify/assert"
)

var errStub = errors.New("stub failure")

type transfer struct {
	to     common.Address
	amount *big.Int
}

type stubFunds struct {
	mu        sync.Mutex
	transfers []transfer
	fail      bool
	hook      func()
}

func (f *stubFunds) Transfer(_ context.Context, to common.Address, amount *big.Int) error {
	if f.hook != nil {
		f.hook()
	}
	if f.fail {
		return errStub
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transfers = append(f.transfers, transfer{to, new(big.Int).Set(amount)})
	return nil
}

func (f *stubFunds) total() *big.Int {
	f.mu.Lock()
	defer f.mu.Unlock()
	sum := big.NewInt(0)
	for _, t := range f.transfers {
		sum.Add(sum, t.amount)
	}
	return sum
}

// hookVerifier runs hook before answering, to exercise re-entrancy.
type hookVerifier struct {
	inner verifier.TokenOwnershipVerifier
	hook  func()
}

func (v *hookVerifier) OwnerOf(ctx context.Context, tokenContract common.Address, tokenId *big.Int) (common.Address, error) {
	if v.hook != nil {
		v.hook()
	}
	return v.inner.OwnerOf(ctx, tokenContract, tokenId)
}

type staticResolver struct {
	v verifier.TokenOwnershipVerifier
}

func (r *staticResolver) Resolve(_ context.Context, _ common.Address, _ common.Address) (verifier.TokenOwnershipVerifier, error) {
	return r.v, nil
}

type failingPersister struct {
	failMint bool
	failDrip bool
	failDrop bool
	failIf   bool
}

func (p *failingPersister) SaveDrop(*Record) error {
	if p.failDrop {
		return errStub
	}
	return nil
}

func (p *failingPersister) SaveMint(*Record, *Drip) error {
	if p.failMint {
		return errStub
	}
	return nil
}

func (p *failingPersister) SaveDrip(uint64, *Drip) error {
	if p.failDrip {
		return errStub
	}
	return nil
}

func (p *failingPersister) SaveInterface(uint64, common.Address, common.Address) error {
	if p.failIf {
		return errStub
	}
	return nil
}

type testEnv struct {
	owner  common.Address
	tokens *verifier.MemoryTokens
	nft    common.Address
	funds  *stubFunds
	pub    *Publisher
	events chan Event
	cfg    *Config
}

func newTestEnv() *testEnv {
	tokens := verifier.NewMemoryTokens()
	nft := common.RandEthAddress()
	tokens.Deploy(nft, true)

	pub := NewPublisher()
	events := make(chan Event, 100)
	pub.Register(events)

	funds := &stubFunds{}
	return &testEnv{
		owner:  common.RandEthAddress(),
		tokens: tokens,
		nft:    nft,
		funds:  funds,
		pub:    pub,
		events: events,
		cfg: &Config{
			Resolver: verifier.NewResolver(&verifier.ResolverConfig{
				Prober:   tokens,
				Standard: tokens,
			}),
			Funds:     funds,
			Publisher: pub,
		},
	}
}

func (env *testEnv) newDrop(t *testing.T, maxSupply uint64, price int64, versions uint64) *Drop {
	d, err := New(0, maxSupply, big.NewInt(price), versions, env.owner, env.cfg)
	assert.NoError(t, err)
	return d
}

func (env *testEnv) nextEvent(t *testing.T) Event {
	select {
	case ev := <-env.events:
		return ev
	default:
		t.Fatal("no event published")
	}
	return Event{}
}
