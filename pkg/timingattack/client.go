package timingattack

import (
	"context"
	"fmt"
)

// Client provides a high-level API for running timing attacks against
// locally simulated RSA victims.
type Client struct {
	config   AttackConfig
	clock    ClockConfig
	keys     KeyProvider
	random   RandomSource
	observer ProgressObserver
}

// AttackReport is the outcome of an attack against a known key.
type AttackReport struct {
	Key    *KeyPair
	Result *RecoveryResult
	// Correct is true when the search cracked the key and the recovered
	// exponent equals the victim's.
	Correct bool
}

// NewClient creates a new client with default settings.
func NewClient() *Client {
	return &Client{
		config:   DefaultAttackConfig(),
		clock:    DefaultClockConfig(),
		keys:     NewPrimeKeyProvider(),
		random:   CryptoRandom{},
		observer: NoopObserver{},
	}
}

// WithConfig sets the attack parameters.
func (c *Client) WithConfig(config AttackConfig) *Client {
	c.config = config
	return c
}

// WithClock sets how the simulated victim is timed.
func (c *Client) WithClock(clock ClockConfig) *Client {
	c.clock = clock
	return c
}

// WithKeyProvider sets the source of victim keys.
func (c *Client) WithKeyProvider(keys KeyProvider) *Client {
	c.keys = keys
	return c
}

// WithRandom sets the random source shared by the search, the blinding
// countermeasure and the synthetic jitter.
func (c *Client) WithRandom(random RandomSource) *Client {
	if random == nil {
		random = CryptoRandom{}
	}
	c.random = random
	return c
}

// WithObserver sets the receiver of round events.
func (c *Client) WithObserver(observer ProgressObserver) *Client {
	if observer == nil {
		observer = NoopObserver{}
	}
	c.observer = observer
	return c
}

// Config returns the attack parameters in use.
func (c *Client) Config() AttackConfig {
	return c.config
}

// Attack generates a fresh key of the given size and attacks it.
//
// Args:
//   - ctx: Context for cancellation.
//   - bits: Bit length of the victim modulus.
//
// Returns:
//   - AttackReport with the generated key and the search outcome.
func (c *Client) Attack(ctx context.Context, bits int) (*AttackReport, error) {
	if c.keys == nil {
		return nil, fmt.Errorf("%w: no key provider", ErrInvalidConfig)
	}
	pair, err := c.keys.Generate(bits)
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return c.AttackKey(ctx, pair)
}

// AttackKey attacks an oracle holding pair. The search only ever sees the
// public half; the secret is used afterwards to grade the result.
func (c *Client) AttackKey(ctx context.Context, pair *KeyPair) (*AttackReport, error) {
	oracle, err := c.NewOracle(pair)
	if err != nil {
		return nil, err
	}

	search, err := NewKeyRecoverySearch(oracle, c.config)
	if err != nil {
		return nil, err
	}
	search.WithRandom(c.random).WithObserver(c.observer)

	result, err := search.Run(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run key recovery: %w", err)
	}

	return &AttackReport{
		Key:     pair,
		Result:  result,
		Correct: result.Status == Cracked && result.Exponent.Cmp(pair.Secret.D) == 0,
	}, nil
}

// NewOracle builds the victim for pair using the client's clock and
// blinding settings.
func (c *Client) NewOracle(pair *KeyPair) (*DecryptionOracle, error) {
	if pair == nil {
		return nil, fmt.Errorf("%w: nil key pair", ErrInvalidConfig)
	}
	oracle, err := NewDecryptionOracle(pair.Secret)
	if err != nil {
		return nil, fmt.Errorf("failed to create oracle: %w", err)
	}
	oracle.WithClock(c.clock.NewClock(c.random))
	if c.config.Blinding {
		oracle.WithBlinding(NewBlinding(pair.Public, c.random))
	}
	return oracle, nil
}
