package main

import (
	"regexp"
	"strings"
)

// ring keeps the last n items written to it.
type ring[T any] struct {
	buf  []T
	idx  int
	fill int
}

func newRing[T any](n int) *ring[T] {
	if n < 1 {
		n = 1
	}
	return &ring[T]{buf: make([]T, n)}
}

func (r *ring[T]) Push(v T) {
	r.buf[r.idx] = v
	r.idx = (r.idx + 1) % len(r.buf)
	if r.fill < len(r.buf) {
		r.fill++
	}
}

func (r *ring[T]) Len() int { return r.fill }

// Items returns the contents oldest first.
func (r *ring[T]) Items() []T {
	out := make([]T, 0, r.fill)
	start := (r.idx - r.fill + len(r.buf)) % len(r.buf)
	for j := 0; j < r.fill; j++ {
		out = append(out, r.buf[(start+j)%len(r.buf)])
	}
	return out
}

// serialLog collects serial output for pattern detection and keeps a short
// tail for failure reports.
type serialLog struct {
	all  strings.Builder
	tail *ring[byte]
}

func newSerialLog(window int) *serialLog {
	if window < 256 {
		window = 256
	}
	return &serialLog{tail: newRing[byte](window)}
}

func (s *serialLog) Write(p []byte) (int, error) {
	s.all.Write(p)
	for _, ch := range p {
		s.tail.Push(ch)
	}
	return len(p), nil
}

func (s *serialLog) String() string { return s.all.String() }
func (s *serialLog) Tail() string   { return string(s.tail.Items()) }

type verdict int

const (
	running verdict = iota
	passed
	failed
)

var (
	// "Failed <n> tests"
	failRe = regexp.MustCompile(`(?i)failed\s+(\d+)\s+tests?`)
	// test markers like "11:01"
	stageRe = regexp.MustCompile(`\b(\d{2}:\d{2})\b`)
)

// judge reads a test ROM's serial output. It returns the verdict, the
// matching text for failures and the last stage marker seen.
func judge(out string) (v verdict, detail, stage string) {
	if mm := stageRe.FindAllString(out, -1); len(mm) > 0 {
		stage = mm[len(mm)-1]
	}
	if strings.Contains(strings.ToLower(out), "passed") {
		return passed, "", stage
	}
	if m := failRe.FindString(out); m != "" {
		return failed, m, stage
	}
	return running, "", stage
}
