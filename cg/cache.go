package cg

import (
	"encoding/hex"
	"fmt"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/dianpeng/sqlvdbe/vdbe"
	"github.com/zeebo/blake3"
)

// Cache keeps compiled programs keyed by the schema version they were
// compiled against and the statement text. A schema change bumps the
// version, so stale programs are simply never asked for again and age out.
type Cache struct {
	c *ristretto.Cache[string, *vdbe.Program]
}

// NewCache returns a cache holding about size instructions worth of
// programs
func NewCache(size int64) (*Cache, error) {
	if size <= 0 {
		return nil, fmt.Errorf("cache size must be positive, got %d", size)
	}
	c, err := ristretto.NewCache(&ristretto.Config[string, *vdbe.Program]{
		NumCounters: size * 10,
		MaxCost:     size,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Cache{c: c}, nil
}

func CacheKey(version int, text string) string {
	sum := blake3.Sum256([]byte(fmt.Sprintf("%d\x00%s", version, text)))
	return hex.EncodeToString(sum[:])
}

func (self *Cache) Get(version int, text string) (*vdbe.Program, bool) {
	return self.c.Get(CacheKey(version, text))
}

// Put stores the program, its cost is the number of instructions. Put
// waits for the write to land so a following Get sees it.
func (self *Cache) Put(version int, text string, prog *vdbe.Program) {
	cost := int64(prog.Len())
	if cost == 0 {
		cost = 1
	}
	self.c.Set(CacheKey(version, text), prog, cost)
	self.c.Wait()
}

// Clear drops every program
func (self *Cache) Clear() { self.c.Clear() }

func (self *Cache) Close() { self.c.Close() }
