package rpc

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dmagro/eth-block-locator/internal/chain"
)

const (
	TransportJSONRPC   = "jsonrpc"
	TransportEthClient = "ethclient"
)

var ErrUnknownTransport = errors.New("unknown transport")

// Dial builds the client for cfg.Transport. An empty transport means jsonrpc.
func Dial(ctx context.Context, cfg ClientConfig) (chain.Client, error) {
	switch cfg.Transport {
	case "", TransportJSONRPC:
		return NewClient(cfg), nil
	case TransportEthClient:
		c, err := DialEthClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("provider %s: %w %q", cfg.Name, ErrUnknownTransport, cfg.Transport)
	}
}

// ClientPool keeps one client per provider name so that a provider probed
// during selection is reused for the real work.
type ClientPool struct {
	clients map[string]chain.Client
	mu      sync.RWMutex
}

func NewClientPool() *ClientPool {
	return &ClientPool{
		clients: make(map[string]chain.Client),
	}
}

// GetOrDial returns the client for cfg.Name, dialing it on first use.
func (p *ClientPool) GetOrDial(ctx context.Context, cfg ClientConfig) (chain.Client, error) {
	p.mu.RLock()
	if client, ok := p.clients[cfg.Name]; ok {
		p.mu.RUnlock()
		return client, nil
	}
	p.mu.RUnlock()

	p.mu.Lock()
	defer p.mu.Unlock()

	// Another goroutine may have dialed while we waited for the lock.
	if client, ok := p.clients[cfg.Name]; ok {
		return client, nil
	}

	client, err := Dial(ctx, cfg)
	if err != nil {
		return nil, err
	}
	p.clients[cfg.Name] = client
	return client, nil
}

// Close closes every pooled client that holds a connection.
func (p *ClientPool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for name, client := range p.clients {
		if c, ok := client.(interface{ Close() }); ok {
			c.Close()
		}
		delete(p.clients, name)
	}
}
