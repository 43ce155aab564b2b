package wizard

import "fmt"

// ExitPolicy decides what retreating from step 1 does.
type ExitPolicy string

// Exit policies
const (
	// ExitToHost invokes the host exit collaborator.
	ExitToHost ExitPolicy = "exit"
	// StayOnFirst keeps the wizard on step 1.
	StayOnFirst ExitPolicy = "stay"
)

// ParseExitPolicy parses a configured exit policy. Empty means ExitToHost.
func ParseExitPolicy(s string) (ExitPolicy, error) {
	switch ExitPolicy(s) {
	case "", ExitToHost:
		return ExitToHost, nil
	case StayOnFirst:
		return StayOnFirst, nil
	default:
		return "", fmt.Errorf("unknown exit policy %q", s)
	}
}

// Move is the outcome of a sequencer operation.
type Move int

// Move outcomes
const (
	MoveNone Move = iota
	MoveForward
	MoveBackward
	MoveJump
	MoveExit
)

// Sequencer owns the current step index of one wizard. It is not safe for
// concurrent use; the Controller serializes access.
type Sequencer struct {
	flow     Flow
	current  int
	policy   ExitPolicy
	scrollUp func()
	exit     func()
}

// NewSequencer starts at step 1 of flow. scrollUp runs after every performed
// transition; exit runs when retreating from step 1 under ExitToHost. Either
// hook may be nil.
func NewSequencer(flow Flow, policy ExitPolicy, scrollUp, exit func()) *Sequencer {
	if policy == "" {
		policy = ExitToHost
	}
	return &Sequencer{
		flow:     flow,
		current:  1,
		policy:   policy,
		scrollUp: scrollUp,
		exit:     exit,
	}
}

// Current returns the 1-based current step index.
func (s *Sequencer) Current() int {
	return s.current
}

// Total returns the number of steps in the flow.
func (s *Sequencer) Total() int {
	return s.flow.Len()
}

// Flow returns the step table in use.
func (s *Sequencer) Flow() Flow {
	return s.flow
}

// Advance moves forward one step. At the last step it does nothing.
func (s *Sequencer) Advance() Move {
	if s.current >= s.flow.Len() {
		return MoveNone
	}
	s.current++
	s.scroll()
	return MoveForward
}

// Retreat moves back one step. At step 1 it applies the exit policy.
func (s *Sequencer) Retreat() Move {
	if s.current > 1 {
		s.current--
		s.scroll()
		return MoveBackward
	}
	if s.policy == ExitToHost {
		if s.exit != nil {
			s.exit()
		}
		return MoveExit
	}
	return MoveNone
}

// JumpTo sets the current step directly, clamped to [1, N].
func (s *Sequencer) JumpTo(index int) Move {
	s.current = min(max(index, 1), s.flow.Len())
	s.scroll()
	return MoveJump
}

func (s *Sequencer) scroll() {
	if s.scrollUp != nil {
		s.scrollUp()
	}
}
