package core

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/kiraleos/chatterd/internal/store"
)

const commandMarker = "/"

// Ruleset holds the externally configured command and canned-response tables,
// loaded once at startup from a JSON file.
type Ruleset struct {
	Commands  map[string]string `json:"commands"`
	Responses map[string]string `json:"responses"`
}

// LoadRuleset reads the rules file. An empty path yields empty tables.
func LoadRuleset(path string) (*Ruleset, error) {
	rs := &Ruleset{
		Commands:  map[string]string{},
		Responses: map[string]string{},
	}
	if path == "" {
		return rs, nil
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open rules file %s: %w", path, err)
	}
	defer file.Close()

	if err := json.NewDecoder(file).Decode(rs); err != nil {
		return nil, fmt.Errorf("decode rules file %s: %w", path, err)
	}
	if rs.Commands == nil {
		rs.Commands = map[string]string{}
	}
	if rs.Responses == nil {
		rs.Responses = map[string]string{}
	}

	// Canned responses are matched against trimmed, case-folded input.
	normalized := make(map[string]string, len(rs.Responses))
	for phrase, reply := range rs.Responses {
		normalized[normalize(phrase)] = reply
	}
	rs.Responses = normalized

	// Command dispatch looks names up lower-cased without the marker, so the
	// configured keys get the same treatment ("Docs" and "/docs" both work).
	commands := make(map[string]string, len(rs.Commands))
	for name, reply := range rs.Commands {
		commands[strings.ToLower(strings.TrimPrefix(strings.TrimSpace(name), commandMarker))] = reply
	}
	rs.Commands = commands

	return rs, nil
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// StatusFunc reports the current gateway availability and storage mode for the
// built-in /status command.
type StatusFunc func() (aiAvailable bool, storageMode string)

// ruleOutcome is what a matcher produces: a reply when it handled the message,
// or handled=false to pass the message on to the next rule.
type ruleOutcome struct {
	reply   string
	handled bool
}

type rule struct {
	name string
	eval func(trimmed, userID string) (ruleOutcome, error)
}

// Engine is the ordered fallback chain that decides whether a message is
// answered directly or deferred to the model. It keeps no state between calls:
// the outcome is a function of the message, the caller, and the store.
type Engine struct {
	store   store.Store
	ruleset *Ruleset
	status  StatusFunc
	rules   []rule
}

func NewEngine(st store.Store, rs *Ruleset, status StatusFunc) *Engine {
	e := &Engine{store: st, ruleset: rs, status: status}
	// Fixed priority order. Command syntax is reserved: rule 1 always decides
	// before anything else runs.
	e.rules = []rule{
		{name: "command", eval: e.matchCommand},
		{name: "canned", eval: e.matchCanned},
		{name: "remember", eval: e.matchRemember},
		{name: "recall", eval: e.matchRecall},
	}
	return e
}

// Evaluate runs the rules in priority order and returns the first reply
// produced. handled=false means no rule answered and the model should.
func (e *Engine) Evaluate(message, userID string) (string, bool, error) {
	trimmed := strings.TrimSpace(message)
	for _, r := range e.rules {
		outcome, err := r.eval(trimmed, userID)
		if err != nil {
			return "", false, fmt.Errorf("rule %s: %w", r.name, err)
		}
		if outcome.handled {
			return outcome.reply, true, nil
		}
	}
	return "", false, nil
}

func (e *Engine) matchCommand(trimmed, userID string) (ruleOutcome, error) {
	if !strings.HasPrefix(trimmed, commandMarker) {
		return ruleOutcome{}, nil
	}

	fields := strings.Fields(trimmed)
	name := strings.ToLower(strings.TrimPrefix(fields[0], commandMarker))

	switch name {
	case "help":
		return ruleOutcome{reply: e.helpText(), handled: true}, nil
	case "about":
		return ruleOutcome{
			reply:   "I'm a chat assistant. I answer from my configured rules when I can and ask the AI model otherwise.",
			handled: true,
		}, nil
	case "status":
		aiAvailable, storageMode := e.status()
		ai := "available"
		if !aiAvailable {
			ai = "unavailable"
		}
		return ruleOutcome{
			reply:   fmt.Sprintf("AI model: %s. Storage: %s.", ai, storageMode),
			handled: true,
		}, nil
	case "clear":
		if userID == "" {
			return ruleOutcome{reply: "Sign in to manage remembered facts.", handled: true}, nil
		}
		n, err := e.store.ClearMemory(userID)
		if err != nil {
			return ruleOutcome{}, err
		}
		return ruleOutcome{reply: fmt.Sprintf("Forgot %d remembered fact(s).", n), handled: true}, nil
	}

	if reply, ok := e.ruleset.Commands[name]; ok {
		return ruleOutcome{reply: reply, handled: true}, nil
	}

	// An unmatched command never falls through to the model.
	return ruleOutcome{
		reply:   fmt.Sprintf("Unknown command %q. Try /help.", commandMarker+name),
		handled: true,
	}, nil
}

func (e *Engine) helpText() string {
	var b strings.Builder
	b.WriteString("Built-in commands: /help, /about, /status, /clear.")
	if len(e.ruleset.Commands) > 0 {
		names := make([]string, 0, len(e.ruleset.Commands))
		for name := range e.ruleset.Commands {
			names = append(names, commandMarker+name)
		}
		sort.Strings(names)
		b.WriteString(" Also configured: " + strings.Join(names, ", ") + ".")
	}
	b.WriteString(" You can also say \"remember <key>: <value>\" and \"what is <key>\".")
	return b.String()
}

func (e *Engine) matchCanned(trimmed, _ string) (ruleOutcome, error) {
	if reply, ok := e.ruleset.Responses[normalize(trimmed)]; ok {
		// Returned verbatim as configured.
		return ruleOutcome{reply: reply, handled: true}, nil
	}
	return ruleOutcome{}, nil
}

// matchRemember handles "remember <key>: <value>". Anonymous callers have no
// memory rows, so the message falls through toward the model instead.
func (e *Engine) matchRemember(trimmed, userID string) (ruleOutcome, error) {
	if userID == "" {
		return ruleOutcome{}, nil
	}

	rest, ok := cutPrefixFold(trimmed, "remember ")
	if !ok {
		return ruleOutcome{}, nil
	}
	key, value, found := strings.Cut(rest, ":")
	key = strings.TrimSpace(key)
	value = strings.TrimSpace(value)
	if !found || key == "" || value == "" {
		return ruleOutcome{}, nil
	}

	// Keys are case-insensitive; stored lower-cased so recall finds them.
	if _, err := e.store.UpsertMemory(userID, strings.ToLower(key), value); err != nil {
		return ruleOutcome{}, err
	}
	return ruleOutcome{reply: fmt.Sprintf("Got it, I'll remember %q.", key), handled: true}, nil
}

// matchRecall handles "what is / what's / show [my] <key>". A miss is not a
// terminal answer: the message continues to the model fallback.
func (e *Engine) matchRecall(trimmed, userID string) (ruleOutcome, error) {
	if userID == "" {
		return ruleOutcome{}, nil
	}

	var key string
	for _, prefix := range []string{"what is ", "what's ", "show my ", "show "} {
		if rest, ok := cutPrefixFold(trimmed, prefix); ok {
			key = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(rest), "?"))
			break
		}
	}
	if key == "" {
		return ruleOutcome{}, nil
	}

	entry, err := e.store.GetMemory(userID, strings.ToLower(key))
	if err != nil {
		return ruleOutcome{}, err
	}
	if entry == nil {
		return ruleOutcome{}, nil // fall through to the model
	}
	return ruleOutcome{reply: fmt.Sprintf("%s: %s", entry.Key, entry.Value), handled: true}, nil
}

// cutPrefixFold is strings.CutPrefix with ASCII case folding on the prefix.
func cutPrefixFold(s, prefix string) (string, bool) {
	if len(s) < len(prefix) || !strings.EqualFold(s[:len(prefix)], prefix) {
		return s, false
	}
	return s[len(prefix):], true
}
