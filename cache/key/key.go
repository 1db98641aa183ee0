package key

import (
	"fmt"
	"hash/fnv"
	"net/url"
)

type Generator interface {
	Key(path string, query url.Values) string
}

// DefaultGenerator derives a cache key from the upstream path and query.
// url.Values.Encode sorts parameters by key, so two logically identical
// requests produce the same key regardless of caller insertion order.
type DefaultGenerator struct {
	PartitionKey string
}

func NewGenerator(partitionKey string) *DefaultGenerator {
	return &DefaultGenerator{
		PartitionKey: partitionKey,
	}
}

func (g *DefaultGenerator) Key(path string, query url.Values) string {
	h := fnv.New64a()
	h.Write([]byte(path))
	h.Write([]byte{'?'})
	h.Write([]byte(query.Encode()))
	return fmt.Sprintf("%s_%x", g.PartitionKey, h.Sum64())
}
