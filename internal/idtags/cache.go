// Package idtags implements IdTagsCache: per-station id-tag lists and
// issuance policy (spec.md §2).
package idtags

import (
	"bufio"
	"errors"
	"math/rand"
	"os"
	"strings"
	"sync"
)

// Distribution selects how IdTagsCache.Next picks a tag.
type Distribution string

const (
	RandomDistribution              Distribution = "random"
	RoundRobinDistribution          Distribution = "round-robin"
	ConnectorAffinityDistribution   Distribution = "connector-affinity"
)

// Cache holds the id-tag list for one station template and issues tags
// according to a Distribution policy.
type Cache struct {
	mu     sync.Mutex
	tags   []string
	cursor int
}

// Load reads one id tag per non-empty, non-comment line from path.
func Load(path string) (*Cache, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var tags []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		tags = append(tags, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(tags) == 0 {
		return nil, errors.New("idtags: file contains no tags")
	}
	return &Cache{tags: tags}, nil
}

// FromSlice builds a Cache directly from an in-memory list, used by tests
// and by templates that inline their id tags.
func FromSlice(tags []string) *Cache {
	cp := append([]string(nil), tags...)
	return &Cache{tags: cp}
}

// Next issues a tag according to policy. connectorID is only consulted for
// ConnectorAffinityDistribution.
func (c *Cache) Next(policy Distribution, connectorID int) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.tags) == 0 {
		return ""
	}

	switch policy {
	case ConnectorAffinityDistribution:
		return c.tags[connectorID%len(c.tags)]
	case RoundRobinDistribution:
		tag := c.tags[c.cursor%len(c.tags)]
		c.cursor++
		return tag
	case RandomDistribution:
		fallthrough
	default:
		return c.tags[rand.Intn(len(c.tags))]
	}
}

// Len reports the number of loaded tags.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tags)
}
