package usecase

import "errors"

var (
	// ErrParentChainCycle is returned when a paragraph's ancestors loop back on themselves.
	ErrParentChainCycle = errors.New("paragraph parent chain has a cycle")
	// ErrParentChainBroken is returned when a paragraph's ancestor is missing
	// or the chain is deeper than maxParentDepth.
	ErrParentChainBroken = errors.New("paragraph parent chain is broken")
	// ErrRunInProgress is returned when a run of the same kind is still going.
	ErrRunInProgress = errors.New("a run of this kind is already in progress")
)
