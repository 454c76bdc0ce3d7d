package backends

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"vcshist/internal/history"
	"vcshist/internal/slogutil"
)

// TagBuilder lists the tags of a repository
type TagBuilder func(ctx context.Context, dir string) (*history.TagList, error)

// TagCache holds a repository's tag list. The list is built at most once
// unless Rebuild is called; concurrent first users share one build.
// A failed build is logged and leaves an empty list.
type TagCache struct {
	build  TagBuilder
	logger *slog.Logger

	mu    sync.RWMutex
	list  *history.TagList
	built bool

	group singleflight.Group
}

// NewTagCache creates an empty cache around build
func NewTagCache(build TagBuilder, logger *slog.Logger) *TagCache {
	return &TagCache{build: build, logger: slogutil.OrDiscard(logger)}
}

func (c *TagCache) cached() (*history.TagList, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.list, c.built
}

// Get returns the tag list, building it from dir if needed
func (c *TagCache) Get(ctx context.Context, dir string) *history.TagList {
	if list, ok := c.cached(); ok {
		return list
	}
	return c.load(ctx, dir, false)
}

// Rebuild replaces the cached list with a fresh one
func (c *TagCache) Rebuild(ctx context.Context, dir string) *history.TagList {
	return c.load(ctx, dir, true)
}

// Built reports whether a list is cached
func (c *TagCache) Built() bool {
	_, ok := c.cached()
	return ok
}

func (c *TagCache) load(ctx context.Context, dir string, force bool) *history.TagList {
	v, _, _ := c.group.Do("tags", func() (interface{}, error) {
		if !force {
			if list, ok := c.cached(); ok {
				return list, nil
			}
		}

		list, err := c.build(ctx, dir)
		if err != nil {
			c.logger.Warn("Failed to build tag list",
				"dir", dir,
				"error", err.Error(),
			)
			list = history.NewTagList(nil)
		}
		if list == nil {
			list = history.NewTagList(nil)
		}

		c.mu.Lock()
		c.list = list
		c.built = true
		c.mu.Unlock()

		c.logger.Debug("Tag list built", "dir", dir, "tags", list.Len())
		return list, nil
	})
	return v.(*history.TagList)
}
