package toolchain

import (
	"context"
	"fmt"
)

const defaultCacheSize = 24

// CacheOptimizer reorders triangles greedily against a FIFO vertex cache.
// Each step emits the pending triangle with the most vertices already in the
// cache, ties broken by original position. Triangles are emitted with their
// original vertex order.
type CacheOptimizer struct {
	CacheSize int
}

func (o CacheOptimizer) Optimize(ctx context.Context, indices []uint16, triangles int) ([]uint16, error) {
	if triangles*3 != len(indices) {
		return nil, fmt.Errorf("mesh optimize: %d indices for %d triangles", len(indices), triangles)
	}
	if triangles == 0 {
		return []uint16{}, nil
	}
	cacheSize := o.CacheSize
	if cacheSize <= 0 {
		cacheSize = defaultCacheSize
	}

	adjacency := make(map[uint16][]int)
	for tri := 0; tri < triangles; tri++ {
		for _, v := range indices[tri*3 : tri*3+3] {
			adjacency[v] = append(adjacency[v], tri)
		}
	}

	emitted := make([]bool, triangles)
	cache := make([]uint16, 0, cacheSize)
	inCache := make(map[uint16]int)
	out := make([]uint16, 0, len(indices))
	next := 0

	for count := 0; count < triangles; count++ {
		if count%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		best, bestScore := -1, 0
		for _, v := range cache {
			for _, tri := range adjacency[v] {
				if emitted[tri] {
					continue
				}
				score := 0
				for _, w := range indices[tri*3 : tri*3+3] {
					if inCache[w] > 0 {
						score++
					}
				}
				if score > bestScore || (score == bestScore && tri < best) {
					best, bestScore = tri, score
				}
			}
		}
		if best < 0 {
			for emitted[next] {
				next++
			}
			best = next
		}
		emitted[best] = true
		for _, v := range indices[best*3 : best*3+3] {
			out = append(out, v)
			if inCache[v] > 0 {
				continue
			}
			if len(cache) == cacheSize {
				evicted := cache[0]
				cache = cache[1:]
				inCache[evicted]--
			}
			cache = append(cache, v)
			inCache[v]++
		}
	}
	return out, nil
}
