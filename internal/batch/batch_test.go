package batch

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func seq(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func TestChunk(t *testing.T) {
	tests := []struct {
		name  string
		n     int
		size  int
		sizes []int
	}{
		{name: "uneven tail", n: 1050, size: 500, sizes: []int{500, 500, 50}},
		{name: "exact fit", n: 40, size: 20, sizes: []int{20, 20}},
		{name: "smaller than size", n: 3, size: 20, sizes: []int{3}},
		{name: "empty", n: 0, size: 20, sizes: []int{}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			chunks := Chunk(seq(tc.n), tc.size)
			sizes := make([]int, len(chunks))
			for i, c := range chunks {
				sizes[i] = len(c)
			}
			assert.Equal(t, tc.sizes, sizes)
		})
	}
}

func TestChunk_PreservesOrder(t *testing.T) {
	chunks := Chunk(seq(1050), 500)
	require.Len(t, chunks, 3)
	assert.Equal(t, 0, chunks[0][0])
	assert.Equal(t, 500, chunks[1][0])
	assert.Equal(t, 1000, chunks[2][0])
	assert.Equal(t, 1049, chunks[2][49])
}

func TestChunk_AppendDoesNotClobberNeighbour(t *testing.T) {
	chunks := Chunk(seq(4), 2)
	_ = append(chunks[0], 99)
	assert.Equal(t, []int{2, 3}, chunks[1])
}

func TestChunk_PanicsOnBadSize(t *testing.T) {
	assert.Panics(t, func() { Chunk(seq(3), 0) })
}

func TestPlan(t *testing.T) {
	ops := Plan("extract", seq(1050), 500)
	require.Len(t, ops, 3)
	for i, op := range ops {
		assert.Equal(t, "extract", op.Name)
		assert.Equal(t, i, op.Index)
	}
}

func TestRunner_SequentialOrderAndProgress(t *testing.T) {
	var order []int
	var progress []Progress
	var finished []Summary

	sum := NewRunner[int](1, zap.NewNop()).Run(context.Background(), Plan("extract", seq(1050), 500),
		func(_ context.Context, op Operation[int]) (int, int) {
			order = append(order, op.Index)
			return len(op.Items), 0
		},
		func(p Progress) { progress = append(progress, p) },
		func(s Summary) { finished = append(finished, s) },
	)

	assert.Equal(t, []int{0, 1, 2}, order)
	assert.Equal(t, []Progress{
		{Total: 1050, Processed: 500},
		{Total: 1050, Processed: 1000},
		{Total: 1050, Processed: 1050},
	}, progress)
	require.Len(t, finished, 1)
	assert.Equal(t, 3, sum.Chunks)
	assert.Equal(t, 1050, sum.Processed)
	assert.False(t, sum.Canceled)
}

func TestRunner_ParallelCountsFailures(t *testing.T) {
	var mu sync.Mutex
	seen := map[int]bool{}

	sum := NewRunner[int](4, zap.NewNop()).Run(context.Background(), Plan("check", seq(100), 10),
		func(_ context.Context, op Operation[int]) (int, int) {
			mu.Lock()
			for _, v := range op.Items {
				seen[v] = true
			}
			mu.Unlock()
			return len(op.Items), 1
		}, nil, nil)

	assert.Len(t, seen, 100)
	assert.Equal(t, 100, sum.Processed)
	assert.Equal(t, 10, sum.Failed)
	assert.Equal(t, 10, sum.Chunks)
}

func TestRunner_CancelStopsBetweenChunks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sum := NewRunner[int](1, zap.NewNop()).Run(ctx, Plan("extract", seq(50), 10),
		func(_ context.Context, op Operation[int]) (int, int) {
			if op.Index == 1 {
				cancel()
			}
			return len(op.Items), 0
		}, nil, nil)

	assert.True(t, sum.Canceled)
	assert.Less(t, sum.Chunks, 5)
	assert.Equal(t, sum.Chunks*10, sum.Processed)
	assert.Equal(t, 5, sum.Chunks+sum.Skipped)
}

func TestRunner_Empty(t *testing.T) {
	called := false
	sum := NewRunner[int](2, zap.NewNop()).Run(context.Background(), nil,
		func(context.Context, Operation[int]) (int, int) { return 0, 0 },
		nil, func(Summary) { called = true })
	assert.True(t, called)
	assert.Zero(t, sum.Total)
}
