package database

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	optimizerIdleTTL       = 10 * time.Minute
	optimizerSweepInterval = 5 * time.Minute
)

// VercelOptimizer 按配置缓存网关，供无服务器环境的热启动复用
type VercelOptimizer struct {
	connections map[string]Gateway
	lastUsed    map[string]time.Time
	mu          sync.RWMutex
	open        func(DatabaseConfig) (Gateway, error)
}

var (
	vercelOptimizer *VercelOptimizer
	optimizerOnce   sync.Once
)

// NewVercelOptimizer creates an optimizer that opens gateways with open.
func NewVercelOptimizer(open func(DatabaseConfig) (Gateway, error)) *VercelOptimizer {
	return &VercelOptimizer{
		connections: make(map[string]Gateway),
		lastUsed:    make(map[string]time.Time),
		open:        open,
	}
}

// GetVercelOptimizer 获取Vercel优化器单例
func GetVercelOptimizer() *VercelOptimizer {
	optimizerOnce.Do(func() {
		vercelOptimizer = NewVercelOptimizer(NewDatabase)
		go vercelOptimizer.backgroundCleanup(context.Background())
	})
	return vercelOptimizer
}

// GetOptimizedConnection 获取优化的数据库连接
func (vo *VercelOptimizer) GetOptimizedConnection(config DatabaseConfig) (Gateway, error) {
	key := configKey(config)

	vo.mu.Lock()
	defer vo.mu.Unlock()

	if conn, ok := vo.connections[key]; ok {
		if err := conn.HealthCheck(); err == nil {
			vo.lastUsed[key] = time.Now()
			log.Debug().Str("key", key[:8]).Msg("reusing optimized database connection")
			return conn, nil
		} else {
			log.Warn().Err(err).Str("key", key[:8]).Msg("connection unhealthy, removing")
			_ = conn.Close()
			delete(vo.connections, key)
			delete(vo.lastUsed, key)
		}
	}

	log.Info().Str("key", key[:8]).Msg("creating new optimized database connection")
	conn, err := vo.open(config)
	if err != nil {
		return nil, err
	}
	vo.connections[key] = conn
	vo.lastUsed[key] = time.Now()
	return conn, nil
}

// configKey 配置指纹，避免把 DSN / key 明文作为 map key 打进日志
func configKey(config DatabaseConfig) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%t|%s|%s|%s|%s|%t",
		config.UseLocalDB, config.LocalDataDir, config.PostgresDSN,
		config.SupabaseURL, config.SupabaseKey, config.Debug)))
	return hex.EncodeToString(sum[:])
}

// backgroundCleanup 后台清理过期连接
func (vo *VercelOptimizer) backgroundCleanup(ctx context.Context) {
	ticker := time.NewTicker(optimizerSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			vo.cleanupExpiredConnections(time.Now())
		}
	}
}

// cleanupExpiredConnections 清理空闲超过 optimizerIdleTTL 的连接
func (vo *VercelOptimizer) cleanupExpiredConnections(now time.Time) int {
	vo.mu.Lock()
	defer vo.mu.Unlock()

	cleaned := 0
	for key, lastUsed := range vo.lastUsed {
		if now.Sub(lastUsed) <= optimizerIdleTTL {
			continue
		}
		if conn, ok := vo.connections[key]; ok {
			_ = conn.Close()
		}
		delete(vo.connections, key)
		delete(vo.lastUsed, key)
		cleaned++
	}

	if cleaned > 0 {
		log.Info().Int("count", cleaned).Msg("cleaned up expired connections")
	}
	return cleaned
}

// GetStats 获取优化器统计信息
func (vo *VercelOptimizer) GetStats() map[string]interface{} {
	vo.mu.RLock()
	defer vo.mu.RUnlock()

	conns := make([]map[string]interface{}, 0, len(vo.lastUsed))
	for key, lastUsed := range vo.lastUsed {
		conns = append(conns, map[string]interface{}{
			"key":       key[:8] + "...",
			"last_used": lastUsed.Format(time.RFC3339),
			"age":       time.Since(lastUsed).String(),
		})
	}
	return map[string]interface{}{
		"total_connections": len(vo.connections),
		"connections":       conns,
	}
}

// ForceCleanup 强制清理所有连接
func (vo *VercelOptimizer) ForceCleanup() {
	vo.mu.Lock()
	defer vo.mu.Unlock()

	for key, conn := range vo.connections {
		_ = conn.Close()
		delete(vo.connections, key)
		delete(vo.lastUsed, key)
	}
}

// GetOptimizedDatabase 获取网关：Vercel 环境走优化器，其余环境走简单的连接池
func GetOptimizedDatabase(config DatabaseConfig) (Gateway, error) {
	if IsVercelEnvironment() {
		return GetVercelOptimizer().GetOptimizedConnection(config)
	}
	return GetDatabase(config)
}

// ConnectionStats 连接复用情况（/api/health 使用）
func ConnectionStats() map[string]interface{} {
	if IsVercelEnvironment() {
		return GetVercelOptimizer().GetStats()
	}
	return GetConnectionStats()
}
