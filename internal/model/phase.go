package model

// Phase is the per-question countdown state shown by the client.
type Phase string

const (
	PhaseReady   Phase = "ready"   // question shown, countdown not started
	PhaseRunning Phase = "running" // counting down
	PhaseTimeout Phase = "timeout" // time exhausted, answer may be revealed
	PhaseAnswer  Phase = "answer"  // answer revealed; terminal
)

// PhaseEvent drives a Phase transition.
type PhaseEvent string

const (
	EventStart  PhaseEvent = "start"
	EventExpire PhaseEvent = "expire"
	EventReveal PhaseEvent = "reveal"
)
