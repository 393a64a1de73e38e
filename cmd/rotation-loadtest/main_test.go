package main

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"
)

func TestNearestRank(t *testing.T) {
	samples := []time.Duration{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	cases := []struct {
		q    float64
		want time.Duration
	}{
		{0, 1},
		{0.5, 5},
		{0.95, 10},
		{1, 10},
		{2, 10},
	}
	for _, tc := range cases {
		if got := nearestRank(samples, tc.q); got != tc.want {
			t.Errorf("nearestRank(q=%v) = %v, want %v", tc.q, got, tc.want)
		}
	}
	if got := nearestRank(nil, 0.99); got != 0 {
		t.Fatalf("empty sample set = %v", got)
	}
}

func TestSummarizeSortsSamples(t *testing.T) {
	s := summarize(time.Second, []time.Duration{30, 10, 20}, 1)
	if s.count != 3 || s.failures != 1 || s.p50 != 20 || s.max != 30 {
		t.Fatalf("unexpected summary: %+v", s)
	}
	if s.throughput() != 3 {
		t.Fatalf("throughput = %v, want 3", s.throughput())
	}
}

func TestRacePhaseSingleWinner(t *testing.T) {
	client, cleanup, err := connect("", io.Discard)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer cleanup()

	engine, err := newEngine(client)
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	defer engine.Close()

	ctx := context.Background()
	tokens, err := issueFamilies(ctx, engine, 3)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	got := runRacePhase(ctx, engine, tokens[:1], 6)
	if got.winners != 1 || got.multiWinner != 0 {
		t.Fatalf("unexpected race outcome: %+v", got)
	}
	if got.reuse != 5 || got.other != 0 {
		t.Fatalf("expected 5 losers classified as reuse, got %+v", got)
	}
}

func TestRotatePhaseAdvancesChains(t *testing.T) {
	client, cleanup, err := connect("", io.Discard)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer cleanup()
	engine, err := newEngine(client)
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	defer engine.Close()

	ctx := context.Background()
	tokens, err := issueFamilies(ctx, engine, 4)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	s := runRotatePhase(ctx, engine, tokens, 40, 8)
	if s.count != 40 || s.failures != 0 {
		t.Fatalf("unexpected rotate summary: %+v", s)
	}
}

func TestCommandRunsAgainstMiniredis(t *testing.T) {
	t.Setenv("REDIS_URL", "")
	var out bytes.Buffer
	cmd := newCommand()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--families", "6", "--concurrency", "2", "--ops", "12", "--races", "2", "--racers", "3"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v\n%s", err, out.String())
	}
	for _, want := range []string{"embedded miniredis", "rotate", "multi-winner", "refresh_reuse_detected"} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("output missing %q:\n%s", want, out.String())
		}
	}

	bad := newCommand()
	bad.SetOut(io.Discard)
	bad.SetArgs([]string{"--racers", "1"})
	if err := bad.Execute(); err == nil {
		t.Fatal("expected validation error for racers < 2")
	}
}
