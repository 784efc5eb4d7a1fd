package history

import (
	"strconv"
	"testing"
)

// ============================================================================
// Setup Helpers
// ============================================================================

func setupFilledTimeline(b *testing.B, n int, opts ...Option) (*Timeline, *listTarget) {
	b.Helper()
	target := &listTarget{}
	tl, err := New(target, opts...)
	if err != nil {
		b.Fatalf("New() error = %v", err)
	}
	for i := 0; i < n; i++ {
		item := strconv.Itoa(i)
		tl.Record("push", item)
		_ = target.Apply(NewCommand("push", []Value{item}, DefaultCost))
		if err := tl.Commit(target); err != nil {
			b.Fatalf("Commit() error = %v", err)
		}
	}
	return tl, target
}

// ============================================================================
// Recording Benchmarks
// ============================================================================

func BenchmarkTimelineCommit(b *testing.B) {
	target := &listTarget{}
	tl, err := New(target)
	if err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		tl.Record("push", "x")
		_ = tl.Commit(target)
	}
}

func BenchmarkTimelineCommitCheckpointing(b *testing.B) {
	target := &listTarget{}
	tl, err := New(target, WithCheckpointThreshold(10))
	if err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		tl.Record("push", "x")
		_ = tl.Commit(target)
	}
}

// ============================================================================
// Undo/Redo Benchmarks
// ============================================================================

func BenchmarkTimelineUndo(b *testing.B) {
	for i := 0; i < b.N; i++ {
		b.StopTimer()
		tl, target := setupFilledTimeline(b, 100)
		b.StartTimer()

		for j := 0; j < 100; j++ {
			_ = tl.Undo(target, 1)
		}
	}
}

func BenchmarkTimelineUndoWithCheckpoints(b *testing.B) {
	for i := 0; i < b.N; i++ {
		b.StopTimer()
		tl, target := setupFilledTimeline(b, 100, WithCheckpointThreshold(10))
		b.StartTimer()

		for j := 0; j < 100; j++ {
			_ = tl.Undo(target, 1)
		}
	}
}

func BenchmarkTimelineRedo(b *testing.B) {
	for i := 0; i < b.N; i++ {
		b.StopTimer()
		tl, target := setupFilledTimeline(b, 100)
		_ = tl.Seek(target, 0)
		b.StartTimer()

		for j := 0; j < 100; j++ {
			_ = tl.Redo(target, 1)
		}
	}
}

func BenchmarkTimelineSeekMiddle(b *testing.B) {
	tl, target := setupFilledTimeline(b, 1000, WithCheckpointThreshold(50))
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		_ = tl.Seek(target, 500)
		_ = tl.Seek(target, 1000)
	}
}

// ============================================================================
// Codec Benchmarks
// ============================================================================

func BenchmarkTimelineEncode(b *testing.B) {
	tl, _ := setupFilledTimeline(b, 1000, WithCheckpointThreshold(50))
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if _, err := tl.Encode(); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkTimelineDecode(b *testing.B) {
	tl, _ := setupFilledTimeline(b, 1000, WithCheckpointThreshold(50))
	data, err := tl.Encode()
	if err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if _, err := Decode(data); err != nil {
			b.Fatal(err)
		}
	}
}
