package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/dmagro/eth-block-locator/internal/chain"
	"github.com/dmagro/eth-block-locator/internal/config"
)

// DefaultMaxLag is how many blocks behind the highest reported head a
// provider may be and still be selected.
const DefaultMaxLag = 2

// Dialer returns the client for a provider.
type Dialer func(ctx context.Context, p config.Provider) (chain.Client, error)

// Candidate is one provider's answer to the head probe.
type Candidate struct {
	Provider config.Provider
	Client   chain.Client
	Head     uint64
	Latency  time.Duration
}

// ErrNoProvider is returned when no provider answered the head probe.
var ErrNoProvider = errors.New("no provider available")

// Race asks every provider for its head concurrently. Failed providers are
// logged and left out.
func Race(ctx context.Context, providers []config.Provider, dial Dialer) ([]Candidate, error) {
	results := ExecuteAll(ctx, providers, func(ctx context.Context, p config.Provider) (Candidate, error) {
		client, err := dial(ctx, p)
		if err != nil {
			return Candidate{}, err
		}
		start := time.Now()
		head, err := client.HeadNumber(ctx)
		if err != nil {
			return Candidate{}, err
		}
		return Candidate{Provider: p, Client: client, Head: head, Latency: time.Since(start)}, nil
	})

	log := zerolog.Ctx(ctx)
	var (
		candidates []Candidate
		errs       []error
	)
	for _, r := range results {
		if r.Err != nil {
			log.Warn().Err(r.Err).Str("provider", r.Provider.Name).Msg("provider failed head probe")
			errs = append(errs, fmt.Errorf("%s: %w", r.Provider.Name, r.Err))
			continue
		}
		log.Debug().
			Str("provider", r.Provider.Name).
			Uint64("head", r.Value.Head).
			Dur("latency", r.Value.Latency).
			Msg("head probe")
		candidates = append(candidates, r.Value)
	}

	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: %w", ErrNoProvider, errors.Join(errs...))
	}
	return candidates, nil
}

// Best returns the fastest candidate whose head is within maxLag blocks of
// the highest head. Ties keep configuration order.
func Best(candidates []Candidate, maxLag uint64) (Candidate, error) {
	if len(candidates) == 0 {
		return Candidate{}, ErrNoProvider
	}

	var highest uint64
	for _, c := range candidates {
		highest = max(highest, c.Head)
	}

	best := -1
	for i, c := range candidates {
		if c.Head+maxLag < highest {
			continue
		}
		if best < 0 || c.Latency < candidates[best].Latency {
			best = i
		}
	}
	return candidates[best], nil
}

// Select races providers and returns the best one.
func Select(ctx context.Context, providers []config.Provider, dial Dialer, maxLag uint64) (Candidate, error) {
	candidates, err := Race(ctx, providers, dial)
	if err != nil {
		return Candidate{}, err
	}
	best, err := Best(candidates, maxLag)
	if err != nil {
		return Candidate{}, err
	}
	zerolog.Ctx(ctx).Debug().
		Str("provider", best.Provider.Name).
		Uint64("head", best.Head).
		Dur("latency", best.Latency).
		Int("candidates", len(candidates)).
		Msg("selected provider")
	return best, nil
}
