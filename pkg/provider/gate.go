package provider

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Gate 限制同时在途的请求数，进程内共享一个实例
type Gate struct {
	sem  *semaphore.Weighted
	size int
}

func NewGate(size int) *Gate {
	if size <= 0 {
		size = 1
	}
	return &Gate{sem: semaphore.NewWeighted(int64(size)), size: size}
}

// Acquire 阻塞直到获得名额或 ctx 结束
func (g *Gate) Acquire(ctx context.Context) error {
	return g.sem.Acquire(ctx, 1)
}

func (g *Gate) Release() {
	g.sem.Release(1)
}

func (g *Gate) Size() int {
	return g.size
}
