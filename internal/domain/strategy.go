package domain

import "fmt"

// Outcome is the tagged result of one strategy attempt: a success carrying a
// payload, a degradation carrying a reason, or a skip when the strategy does
// not apply to the input.
type Outcome[T any] struct {
	Value  T
	OK     bool
	Skip   bool
	Reason string
}

// Succeeded wraps a successful payload.
func Succeeded[T any](v T) Outcome[T] {
	return Outcome[T]{Value: v, OK: true}
}

// Degraded reports a failed attempt.
func Degraded[T any](format string, args ...interface{}) Outcome[T] {
	return Outcome[T]{Reason: fmt.Sprintf(format, args...)}
}

// Skipped reports a strategy that does not apply. The chain moves on without
// recording a degradation.
func Skipped[T any](format string, args ...interface{}) Outcome[T] {
	return Outcome[T]{Skip: true, Reason: fmt.Sprintf(format, args...)}
}

// Strategy is one named entry of an ordered fallback chain.
type Strategy[T any] struct {
	Name string
	Run  func() Outcome[T]
}

// ChainResult is what a stage learns from running its chain.
type ChainResult[T any] struct {
	Value        T
	Strategy     string // name of the strategy that fired, empty if none did
	OK           bool
	Degradations []Degradation
}

// RunChain tries strategies in order and returns the first success. Every failed
// attempt before it is recorded as a degradation of stage; skipped strategies
// are not. A panicking strategy counts as a failed attempt.
func RunChain[T any](stage string, strategies []Strategy[T]) ChainResult[T] {
	var res ChainResult[T]
	for _, s := range strategies {
		out := attempt(s)
		if out.OK {
			res.Value = out.Value
			res.Strategy = s.Name
			res.OK = true
			return res
		}
		if out.Skip {
			continue
		}
		res.Degradations = append(res.Degradations, Degradation{
			Stage:    stage,
			Strategy: s.Name,
			Reason:   out.Reason,
		})
	}
	return res
}

func attempt[T any](s Strategy[T]) (out Outcome[T]) {
	defer func() {
		if r := recover(); r != nil {
			out = Degraded[T]("panic: %v", r)
		}
	}()
	return s.Run()
}
