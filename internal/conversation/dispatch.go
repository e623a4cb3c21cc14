package conversation

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/saudeflow/agendabot/internal/llm"
	"github.com/saudeflow/agendabot/internal/observability/metrics"
	"github.com/saudeflow/agendabot/internal/session"
)

// dispatch runs the planner/handler loop for one turn. It is an explicit loop
// with a hop counter rather than mutual recursion: each hop is either a
// handler execution or a planner round-trip, and exceeding maxHops ends the
// turn with an apology.
func (e *Engine) dispatch(ctx context.Context, t *turn) string {
	step, err := e.propose(ctx, t)
	if err != nil {
		t.log.Error("planner call", "error", err)
		e.sendApology(ctx, t.log, t.identity, t.instance)
		return metrics.OutcomeLLMError
	}

	for hop := 0; hop < e.maxHops; hop++ {
		if step.Action == nil {
			e.deliver(ctx, t, step.Content)
			return metrics.OutcomeAnswered
		}

		name := step.Action.Name
		spec, ok := e.handlers[name]
		if !ok {
			t.log.Warn("unknown action proposed", "action", name)
			e.deliver(ctx, t, msgNotUnderstood)
			return metrics.OutcomeAnswered
		}

		t.action = name
		args := resolveArgs(step.Action.Arguments, spec.sessionFields, t.sess)
		t.log.Info("executing action", "action", name, "hop", hop)

		res, err := spec.fn(ctx, t, args)
		e.metrics.ObserveAction(name, err == nil && res.success)
		if err != nil {
			t.log.Error("action failed", "action", name, "error", err)
			e.sendApology(ctx, t.log, t.identity, t.instance)
			return metrics.OutcomeError
		}

		if len(res.patch) > 0 {
			if err := e.sessions.MergeData(ctx, t.identity, t.instance, res.patch); err != nil {
				t.log.Error("merge session data", "action", name, "error", err)
			}
			for k, v := range res.patch {
				t.sess.Data[k] = v
			}
		}

		// Auto-chain: the next action runs immediately, no planner hop.
		if res.next != nil {
			step = llm.Step{Action: res.next}
			continue
		}

		// Feed the raw result back so the planner can phrase the reply or
		// chain another action.
		if res.feed != nil {
			t.history = append(t.history,
				llm.Message{
					Role: llm.RoleAssistant,
					FunctionCall: &llm.FunctionCall{
						Name:      name,
						Arguments: mustJSON(step.Action.Arguments),
					},
				},
				llm.Message{
					Role:    llm.RoleFunction,
					Name:    name,
					Content: mustJSON(res.feed),
				},
			)
			next, err := e.propose(ctx, t)
			if err != nil {
				t.log.Error("planner continuation", "action", name, "error", err)
				e.sendApology(ctx, t.log, t.identity, t.instance)
				return metrics.OutcomeLLMError
			}
			step = next
			continue
		}

		e.deliver(ctx, t, res.message)
		return metrics.OutcomeAnswered
	}

	t.log.Error("dispatch hop limit reached", "max_hops", e.maxHops)
	e.sendApology(ctx, t.log, t.identity, t.instance)
	return metrics.OutcomeHopLimit
}

// resolveArgs copies the proposed arguments and overwrites every declared
// session-overridable field with the session's value when one is present.
// This is the trust boundary: whatever identity or money-relevant data the
// session already holds wins over what the planner proposed.
func resolveArgs(proposed map[string]any, sessionFields map[string]string, sess *session.Session) arguments {
	args := make(arguments, len(proposed))
	for k, v := range proposed {
		args[k] = v
	}
	for argKey, dataKey := range sessionFields {
		if v := sess.DataString(dataKey); v != "" {
			args[argKey] = v
		}
	}
	return args
}

// arguments is the resolved argument record handed to a handler.
type arguments map[string]any

// String reads a string-ish argument, tolerating the numeric types JSON
// decoding produces.
func (a arguments) String(key string) string {
	switch v := a[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		return ""
	}
}

// Int reads an integer argument, tolerating float64 and numeric strings.
func (a arguments) Int(key string) int {
	switch v := a[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}

// Bool reads a boolean argument.
func (a arguments) Bool(key string) bool {
	b, _ := a[key].(bool)
	return b
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}
