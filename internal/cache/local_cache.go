package cache

import (
	"container/list"
	"strconv"
	"strings"
	"sync"
	"time"

	"raid-day/internal/model"
)

// CacheItem 缓存项
type CacheItem struct {
	key        string
	value      interface{}
	expiration time.Time
}

// LocalCache 本地缓存，用于顶住轮询型读请求（Boss状态、社区统计、排行榜）。
// 这些数据本身就按秒级轮询，短TTL的陈旧值完全可以接受。
type LocalCache struct {
	mu       sync.RWMutex
	items    map[string]*list.Element
	lruList  *list.List
	capacity int
	ttl      time.Duration

	// 统计信息
	hits   int64
	misses int64
}

// NewLocalCache 创建新的本地缓存
func NewLocalCache(capacity int, ttl time.Duration) *LocalCache {
	cache := &LocalCache{
		items:    make(map[string]*list.Element),
		lruList:  list.New(),
		capacity: capacity,
		ttl:      ttl,
	}

	// 启动定期清理
	cache.StartCleanup(1 * time.Minute)

	return cache
}

// SetBossState 缓存Boss状态
func (c *LocalCache) SetBossState(instanceID string, state *model.BossState) {
	c.set("boss:"+instanceID, state)
}

// GetBossState 获取缓存的Boss状态
func (c *LocalCache) GetBossState(instanceID string) (*model.BossState, bool) {
	value, ok := c.get("boss:" + instanceID)
	if !ok {
		return nil, false
	}

	if state, ok := value.(*model.BossState); ok {
		return state, true
	}

	return nil, false
}

// SetCommunityStats 缓存社区统计
func (c *LocalCache) SetCommunityStats(instanceID string, stats *model.CommunityStats) {
	c.set("community:"+instanceID, stats)
}

// GetCommunityStats 获取缓存的社区统计
func (c *LocalCache) GetCommunityStats(instanceID string) (*model.CommunityStats, bool) {
	value, ok := c.get("community:" + instanceID)
	if !ok {
		return nil, false
	}

	if stats, ok := value.(*model.CommunityStats); ok {
		return stats, true
	}

	return nil, false
}

// SetTopN 缓存排行榜前N名
func (c *LocalCache) SetTopN(instanceID, by string, n int, entries []*model.LeaderboardEntry) {
	c.set(topNKey(instanceID, by, n), entries)
}

// GetTopN 获取缓存的排行榜前N名
func (c *LocalCache) GetTopN(instanceID, by string, n int) ([]*model.LeaderboardEntry, bool) {
	value, ok := c.get(topNKey(instanceID, by, n))
	if !ok {
		return nil, false
	}

	if entries, ok := value.([]*model.LeaderboardEntry); ok {
		return entries, true
	}

	return nil, false
}

// InvalidateInstance 清除某个实例的全部缓存（攻击被接受后调用）
func (c *LocalCache) InvalidateInstance(instanceID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	keysToDelete := make([]string, 0)
	for key := range c.items {
		if strings.Contains(key, ":"+instanceID) {
			keysToDelete = append(keysToDelete, key)
		}
	}

	for _, key := range keysToDelete {
		c.delete(key)
	}
}

// Clear 清除所有缓存
func (c *LocalCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*list.Element)
	c.lruList.Init()
	c.hits = 0
	c.misses = 0
}

// GetStats 获取缓存统计信息
func (c *LocalCache) GetStats() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	total := c.hits + c.misses
	hitRate := 0.0
	if total > 0 {
		hitRate = float64(c.hits) / float64(total) * 100
	}

	return map[string]interface{}{
		"hits":     c.hits,
		"misses":   c.misses,
		"hit_rate": hitRate,
		"size":     len(c.items),
		"capacity": c.capacity,
		"usage":    float64(len(c.items)) / float64(c.capacity) * 100,
	}
}

func topNKey(instanceID, by string, n int) string {
	return "top:" + instanceID + ":" + by + ":" + strconv.Itoa(n)
}

// 内部方法
func (c *LocalCache) set(key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// 如果键已存在，更新值并移到前面
	if elem, exists := c.items[key]; exists {
		c.lruList.MoveToFront(elem)
		item := elem.Value.(*CacheItem)
		item.value = value
		item.expiration = time.Now().Add(c.ttl)
		return
	}

	// 如果缓存已满，移除最近最少使用的项
	if len(c.items) >= c.capacity {
		c.evict()
	}

	item := &CacheItem{
		key:        key,
		value:      value,
		expiration: time.Now().Add(c.ttl),
	}

	elem := c.lruList.PushFront(item)
	c.items[key] = elem
}

func (c *LocalCache) get(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, exists := c.items[key]
	if !exists {
		c.misses++
		return nil, false
	}

	item := elem.Value.(*CacheItem)

	// 检查是否过期
	if time.Now().After(item.expiration) {
		c.delete(key)
		c.misses++
		return nil, false
	}

	// 移到前面（最近使用）
	c.lruList.MoveToFront(elem)
	c.hits++

	return item.value, true
}

func (c *LocalCache) delete(key string) {
	if elem, exists := c.items[key]; exists {
		c.lruList.Remove(elem)
		delete(c.items, key)
	}
}

func (c *LocalCache) evict() {
	// 从链表尾部移除（最近最少使用）
	elem := c.lruList.Back()
	if elem != nil {
		item := elem.Value.(*CacheItem)
		c.lruList.Remove(elem)
		delete(c.items, item.key)
	}
}

// StartCleanup 启动定期清理过期缓存
func (c *LocalCache) StartCleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		for range ticker.C {
			c.cleanup()
		}
	}()
}

func (c *LocalCache) cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	keysToDelete := make([]string, 0)

	for key, elem := range c.items {
		item := elem.Value.(*CacheItem)
		if now.After(item.expiration) {
			keysToDelete = append(keysToDelete, key)
		}
	}

	for _, key := range keysToDelete {
		c.delete(key)
	}
}
