package layer

import "sync"

// Token identifies one in-flight request inside a single layer instance.
type Token uint64

// Contexts maps tokens to the continuation of the request that owns them.
// Each layer instance holds its own table.
type Contexts[T any] struct {
	mu      sync.Mutex
	next    Token
	entries map[Token]T
}

// Register stores value under a fresh token.
func (c *Contexts[T]) Register(value T) Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entries == nil {
		c.entries = make(map[Token]T)
	}
	c.next++
	for {
		if _, taken := c.entries[c.next]; !taken && c.next != 0 {
			break
		}
		c.next++
	}
	c.entries[c.next] = value
	return c.next
}

// Take removes and returns the value stored under token.
func (c *Contexts[T]) Take(token Token) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[token]
	if ok {
		delete(c.entries, token)
	}
	return v, ok
}

// Len returns the number of outstanding tokens.
func (c *Contexts[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Drain removes and returns every outstanding value.
func (c *Contexts[T]) Drain() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]T, 0, len(c.entries))
	for _, v := range c.entries {
		out = append(out, v)
	}
	c.entries = nil
	return out
}
