package core

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kiraleos/chatterd/internal/store"
)

func TestLoadRuleset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"commands": {"docs": "See the docs."},
		"responses": {"  HeLLo ": "Hi!"}
	}`), 0o600))

	rs, err := LoadRuleset(path)
	require.NoError(t, err)
	require.Equal(t, "See the docs.", rs.Commands["docs"])
	// Phrase keys are normalized at load time.
	require.Equal(t, "Hi!", rs.Responses["hello"])
}

func TestLoadRulesetNormalizesCommandKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"commands": {"Docs": "See the docs.", "/wiki": "See the wiki."}
	}`), 0o600))

	rs, err := LoadRuleset(path)
	require.NoError(t, err)
	require.Equal(t, "See the docs.", rs.Commands["docs"])
	require.Equal(t, "See the wiki.", rs.Commands["wiki"])

	// The configured commands are reachable through dispatch.
	engine := NewEngine(store.NewMemoryStore(), rs, func() (bool, string) { return true, "memory" })
	reply, handled, err := engine.Evaluate("/docs", "")
	require.NoError(t, err)
	require.True(t, handled)
	require.Equal(t, "See the docs.", reply)
}

func TestLoadRulesetEmptyPath(t *testing.T) {
	rs, err := LoadRuleset("")
	require.NoError(t, err)
	require.Empty(t, rs.Commands)
	require.Empty(t, rs.Responses)
}

func TestLoadRulesetMissingFile(t *testing.T) {
	_, err := LoadRuleset(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
}

func testEngine(t *testing.T, rs *Ruleset) (*Engine, *store.MemoryStore) {
	t.Helper()
	if rs == nil {
		rs = &Ruleset{Commands: map[string]string{}, Responses: map[string]string{}}
	}
	st := store.NewMemoryStore()
	engine := NewEngine(st, rs, func() (bool, string) { return true, "memory" })
	return engine, st
}

func testUser(t *testing.T, st *store.MemoryStore) string {
	t.Helper()
	user, err := st.CreateUser("rules@x.com", "hash", "")
	require.NoError(t, err)
	return user.ID
}

func TestCommandDispatchBeatsCannedResponse(t *testing.T) {
	// "/help" is also configured as a canned phrase; command dispatch must win.
	engine, _ := testEngine(t, &Ruleset{
		Commands:  map[string]string{},
		Responses: map[string]string{"/help": "canned must never win"},
	})

	reply, handled, err := engine.Evaluate("/help", "")
	require.NoError(t, err)
	require.True(t, handled)
	require.NotEqual(t, "canned must never win", reply)
	require.Contains(t, reply, "/help")
}

func TestUnknownCommandDoesNotFallThrough(t *testing.T) {
	engine, _ := testEngine(t, nil)

	reply, handled, err := engine.Evaluate("/frobnicate now", "")
	require.NoError(t, err)
	require.True(t, handled, "an unmatched command must never reach the model")
	require.Contains(t, reply, `"/frobnicate"`)
}

func TestConfiguredCommandTable(t *testing.T) {
	engine, _ := testEngine(t, &Ruleset{
		Commands:  map[string]string{"docs": "See https://example.com/docs"},
		Responses: map[string]string{},
	})

	reply, handled, err := engine.Evaluate("  /DOCS please  ", "")
	require.NoError(t, err)
	require.True(t, handled)
	require.Equal(t, "See https://example.com/docs", reply)
}

func TestHelpListsConfiguredCommandsSorted(t *testing.T) {
	engine, _ := testEngine(t, &Ruleset{
		Commands:  map[string]string{"wiki": "w", "docs": "d", "faq": "f"},
		Responses: map[string]string{},
	})

	reply, handled, err := engine.Evaluate("/help", "")
	require.NoError(t, err)
	require.True(t, handled)
	// Map iteration order must not leak into the output.
	require.Contains(t, reply, "Also configured: /docs, /faq, /wiki.")
}

func TestStatusCommand(t *testing.T) {
	st := store.NewMemoryStore()
	engine := NewEngine(st, &Ruleset{Commands: map[string]string{}, Responses: map[string]string{}},
		func() (bool, string) { return false, "sqlite" })

	reply, handled, err := engine.Evaluate("/status", "")
	require.NoError(t, err)
	require.True(t, handled)
	require.Equal(t, "AI model: unavailable. Storage: sqlite.", reply)
}

func TestClearCommand(t *testing.T) {
	engine, st := testEngine(t, nil)
	userID := testUser(t, st)

	_, err := st.UpsertMemory(userID, "color", "blue")
	require.NoError(t, err)

	reply, handled, err := engine.Evaluate("/clear", userID)
	require.NoError(t, err)
	require.True(t, handled)
	require.Equal(t, "Forgot 1 remembered fact(s).", reply)

	entry, err := st.GetMemory(userID, "color")
	require.NoError(t, err)
	require.Nil(t, entry)
}

func TestClearCommandAnonymous(t *testing.T) {
	engine, _ := testEngine(t, nil)

	reply, handled, err := engine.Evaluate("/clear", "")
	require.NoError(t, err)
	require.True(t, handled)
	require.Equal(t, "Sign in to manage remembered facts.", reply)
}

func TestCannedResponseExactVerbatim(t *testing.T) {
	engine, _ := testEngine(t, &Ruleset{
		Commands:  map[string]string{},
		Responses: map[string]string{"hello": "Hi! "},
	})

	// Input is normalized (trim + case fold); the reply is returned as
	// configured, character for character.
	reply, handled, err := engine.Evaluate("  HeLLo  ", "")
	require.NoError(t, err)
	require.True(t, handled)
	require.Equal(t, "Hi! ", reply)
}

func TestCannedResponseNoPartialMatch(t *testing.T) {
	engine, _ := testEngine(t, &Ruleset{
		Commands:  map[string]string{},
		Responses: map[string]string{"hello": "Hi!"},
	})

	_, handled, err := engine.Evaluate("hello there", "")
	require.NoError(t, err)
	require.False(t, handled)
}

func TestRememberAndRecall(t *testing.T) {
	engine, st := testEngine(t, nil)
	userID := testUser(t, st)

	reply, handled, err := engine.Evaluate("remember favorite color: blue", userID)
	require.NoError(t, err)
	require.True(t, handled)
	require.Contains(t, reply, "favorite color")

	reply, handled, err = engine.Evaluate("what is favorite color?", userID)
	require.NoError(t, err)
	require.True(t, handled)
	require.Equal(t, "favorite color: blue", reply)

	reply, handled, err = engine.Evaluate("what's Favorite Color", userID)
	require.NoError(t, err)
	require.True(t, handled)
	require.Equal(t, "favorite color: blue", reply)

	reply, handled, err = engine.Evaluate("show my favorite color", userID)
	require.NoError(t, err)
	require.True(t, handled)
	require.Equal(t, "favorite color: blue", reply)
}

func TestRememberOverwritesLastWriteWins(t *testing.T) {
	engine, st := testEngine(t, nil)
	userID := testUser(t, st)

	for _, v := range []string{"red", "blue"} {
		_, handled, err := engine.Evaluate("remember color: "+v, userID)
		require.NoError(t, err)
		require.True(t, handled)
	}

	reply, handled, err := engine.Evaluate("what is color", userID)
	require.NoError(t, err)
	require.True(t, handled)
	require.Equal(t, "color: blue", reply)
}

func TestRecallMissFallsThroughToModel(t *testing.T) {
	engine, st := testEngine(t, nil)
	userID := testUser(t, st)

	_, handled, err := engine.Evaluate("what is the meaning of life", userID)
	require.NoError(t, err)
	require.False(t, handled, "a failed recall is not a terminal answer")
}

func TestMemoryRulesSkippedForAnonymous(t *testing.T) {
	engine, _ := testEngine(t, nil)

	_, handled, err := engine.Evaluate("remember color: blue", "")
	require.NoError(t, err)
	require.False(t, handled)

	_, handled, err = engine.Evaluate("what is color", "")
	require.NoError(t, err)
	require.False(t, handled)
}

func TestRememberRequiresKeyAndValue(t *testing.T) {
	engine, st := testEngine(t, nil)
	userID := testUser(t, st)

	for _, msg := range []string{"remember color", "remember : blue", "remember color:   "} {
		_, handled, err := engine.Evaluate(msg, userID)
		require.NoError(t, err)
		require.False(t, handled, "malformed remember %q should fall through", msg)
	}
}

func TestPlainMessageDefersToModel(t *testing.T) {
	engine, _ := testEngine(t, nil)

	_, handled, err := engine.Evaluate("tell me a joke", "")
	require.NoError(t, err)
	require.False(t, handled)
}
