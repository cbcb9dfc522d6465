package chain

import "sync"

// BlockCache maps block numbers to blocks already fetched from one client.
// Entries are never evicted or replaced: a block is immutable once fetched,
// and a cache lives exactly as long as the Reader that owns it.
type BlockCache struct {
	blocks map[uint64]Block
	mu     sync.RWMutex
}

// NewBlockCache creates an empty cache.
func NewBlockCache() *BlockCache {
	return &BlockCache{
		blocks: make(map[uint64]Block),
	}
}

// Get returns the cached block with the given number.
func (c *BlockCache) Get(number uint64) (Block, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	b, ok := c.blocks[number]
	return b, ok
}

// Put stores a block under its number. The first stored copy wins; two
// goroutines racing on the same number fetched identical data anyway.
func (c *BlockCache) Put(b Block) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.blocks[b.Number]; exists {
		return
	}
	c.blocks[b.Number] = b
}

// Len returns the number of cached blocks.
func (c *BlockCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.blocks)
}
