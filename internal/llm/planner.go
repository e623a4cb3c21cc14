// Package llm exposes the planning capability used by the conversation
// engine: given the dialogue so far, the planner returns either free text for
// the user or one proposed action with arguments. The engine treats the
// planner as a suggestion source only; identity and money-relevant fields are
// always resolved from the session.
package llm

import "context"

// Chat roles shared with the dispatch loop.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleFunction  = "function"
)

// Message is one turn handed to the planner. Function-result turns carry the
// action name in Name and the serialized result in Content.
type Message struct {
	Role         string
	Content      string
	Name         string
	FunctionCall *FunctionCall
}

// FunctionCall echoes a previously proposed action back into the transcript.
type FunctionCall struct {
	Name      string
	Arguments string
}

// Action is a structured next-step suggestion.
type Action struct {
	Name      string
	Arguments map[string]any
}

// Step is the planner's verdict for one round: free text, an action, or both
// (content accompanying a call is ignored by the dispatcher).
type Step struct {
	Content string
	Action  *Action
}

// Planner proposes the next step of a conversation.
type Planner interface {
	Propose(ctx context.Context, history []Message) (Step, error)
}
