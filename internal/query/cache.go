package query

import (
	"strconv"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"taskboard/internal/models"
)

// Source is a revisioned task set.
type Source interface {
	Revision() uint64
	Snapshot() ([]models.Task, uint64)
}

// Cache memoizes projections per source revision. Any write to the source
// bumps its revision, so a stale projection is never served.
type Cache struct {
	projections *expirable.LRU[string, []models.Task]
}

func NewCache(size int, ttl time.Duration) *Cache {
	if size <= 0 {
		size = 128
	}
	return &Cache{
		projections: expirable.NewLRU[string, []models.Task](size, nil, ttl),
	}
}

// Project returns the projection of src for q, computing it with Apply on a
// miss. q must be normalized.
func (c *Cache) Project(src Source, q Query) []models.Task {
	if cached, ok := c.projections.Get(cacheKey(src.Revision(), q)); ok {
		return cloneAll(cached)
	}

	tasks, revision := src.Snapshot()
	projection := Apply(tasks, q)
	c.projections.Add(cacheKey(revision, q), projection)

	return cloneAll(projection)
}

func (c *Cache) Len() int {
	return c.projections.Len()
}

func cacheKey(revision uint64, q Query) string {
	return strconv.FormatUint(revision, 10) + "|" + q.Key()
}

func cloneAll(tasks []models.Task) []models.Task {
	out := make([]models.Task, len(tasks))
	for i, t := range tasks {
		out[i] = t.Clone()
	}
	return out
}
