package worker

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"
)

type leg struct {
	course string
	err    error
}

func TestGather_PreservesInputOrder(t *testing.T) {
	items := []int{5, 4, 3, 2, 1, 0}

	out := Gather(context.Background(), 3, items, func(ctx context.Context, n int) int {
		time.Sleep(time.Duration(rand.Intn(5)) * time.Millisecond)
		return n * 10
	}, nil)

	for i, n := range items {
		if out[i] != n*10 {
			t.Errorf("index %d: expected %d, got %d", i, n*10, out[i])
		}
	}
}

func TestGather_JoinsAllLegsIncludingFailures(t *testing.T) {
	courses := []string{"a", "b", "c", "d", "e"}
	failing := map[string]bool{"b": true, "e": true}

	out := Gather(context.Background(), 2, courses, func(ctx context.Context, c string) leg {
		if failing[c] {
			time.Sleep(2 * time.Millisecond)
			return leg{course: c, err: errors.New("boom")}
		}
		return leg{course: c}
	}, nil)

	if len(out) != len(courses) {
		t.Fatalf("expected %d legs, got %d", len(courses), len(out))
	}
	failed := 0
	for i, l := range out {
		if l.course != courses[i] {
			t.Errorf("index %d: expected %s, got %s", i, courses[i], l.course)
		}
		if l.err != nil {
			failed++
		}
	}
	if failed != 2 {
		t.Errorf("expected 2 failed legs, got %d", failed)
	}
}

func TestGather_PanicBecomesLegResult(t *testing.T) {
	out := Gather(context.Background(), 2, []string{"ok", "bad"}, func(ctx context.Context, c string) leg {
		if c == "bad" {
			panic("parser exploded")
		}
		return leg{course: c}
	}, func(c string, err error) leg {
		return leg{course: c, err: err}
	})

	if out[0].err != nil || out[0].course != "ok" {
		t.Errorf("unexpected first leg: %+v", out[0])
	}
	if out[1].err == nil || out[1].course != "bad" {
		t.Errorf("expected panic captured for second leg, got %+v", out[1])
	}
}

func TestGather_Empty(t *testing.T) {
	out := Gather(context.Background(), 4, []int{}, func(ctx context.Context, n int) int { return n }, nil)
	if out == nil || len(out) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", out)
	}
}
