package memory_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/vjoshi/recall/internal/memory"
)

func newTestEngine(t *testing.T, store memory.TurnStore, cfg memory.EngineConfig) *memory.Engine {
	t.Helper()
	if store == nil {
		store = memory.NewInProcessStore()
	}
	return memory.NewEngine(store, nil, nil, cfg, nil)
}

func TestEngine_Pipeline(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	engine := newTestEngine(t, nil, memory.EngineConfig{})

	if _, err := engine.AppendUser(ctx, "s1", "My name is Vikas"); err != nil {
		t.Fatalf("AppendUser: %v", err)
	}
	if _, err := engine.AppendAssistant(ctx, "s1", "Hello Vikas!"); err != nil {
		t.Fatalf("AppendAssistant: %v", err)
	}
	if _, err := engine.AppendUser(ctx, "s1", "I like LangChain and I use Python"); err != nil {
		t.Fatalf("AppendUser: %v", err)
	}

	profile, err := engine.Profile(ctx, "s1")
	if err != nil {
		t.Fatalf("Profile: %v", err)
	}
	want := memory.Profile{Name: "Vikas", Likes: []string{"LangChain"}, Tools: []string{"Python"}}
	if !profile.Equal(want) {
		t.Errorf("Profile = %+v, want %+v", profile, want)
	}

	snap, err := engine.Assemble(ctx, "s1")
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if len(snap.Window) != 3 {
		t.Errorf("Window has %d turns, want 3", len(snap.Window))
	}
	if snap.Summary.Text == "" {
		t.Error("Summary is empty after appends")
	}
	if !snap.Profile.Equal(want) {
		t.Errorf("snapshot Profile = %+v, want %+v", snap.Profile, want)
	}
}

// Incremental extraction after each append must equal a batch replay of
// the full turn history from empty state.
func TestEngine_IncrementalEqualsReplay(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.NewInProcessStore()
	engine := newTestEngine(t, store, memory.EngineConfig{})

	texts := []string{
		"hi there",
		"My name is Ada",
		"I like mathematics and I use punch cards",
		"actually my name is Ada Lovelace",
		"I love poetry. I work with engines",
	}
	for _, text := range texts {
		if _, err := engine.AppendUser(ctx, "s1", text); err != nil {
			t.Fatalf("AppendUser(%q): %v", text, err)
		}
		if _, err := engine.AppendAssistant(ctx, "s1", "noted"); err != nil {
			t.Fatalf("AppendAssistant: %v", err)
		}
	}

	incremental, err := engine.Profile(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}

	// Batch replay: a second engine over the same store rebuilds from
	// the turn log alone.
	replayed, err := newTestEngine(t, store, memory.EngineConfig{}).Profile(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}

	if !incremental.Equal(replayed) {
		t.Errorf("incremental %+v != replayed %+v", incremental, replayed)
	}
}

// Summary must also be rebuilt identically from the turn log alone —
// turns are the only durable state.
func TestEngine_SummaryRebuiltOnReplay(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.NewInProcessStore()
	engine := newTestEngine(t, store, memory.EngineConfig{})

	for i := 0; i < 12; i++ {
		if _, err := engine.AppendUser(ctx, "s1", fmt.Sprintf("message %d", i)); err != nil {
			t.Fatal(err)
		}
	}

	before, err := engine.Assemble(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}

	after, err := newTestEngine(t, store, memory.EngineConfig{}).Assemble(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}

	if before.Summary != after.Summary {
		t.Errorf("summary changed across replay:\n%q\n%q", before.Summary.Text, after.Summary.Text)
	}
}

func TestEngine_AssistantTurnsNotExtracted(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	engine := newTestEngine(t, nil, memory.EngineConfig{})

	if _, err := engine.AppendUser(ctx, "s1", "my name is Alice"); err != nil {
		t.Fatal(err)
	}
	if _, err := engine.AppendAssistant(ctx, "s1", "my name is HAL and I like chess"); err != nil {
		t.Fatal(err)
	}

	profile, err := engine.Profile(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if profile.Name != "Alice" {
		t.Errorf("Name = %q, want Alice", profile.Name)
	}
	if len(profile.Likes) != 0 {
		t.Errorf("Likes = %v, want empty", profile.Likes)
	}
}

func TestEngine_WindowModes(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	seed := func(t *testing.T, engine *memory.Engine) {
		t.Helper()
		for i := 0; i < 10; i++ {
			if _, err := engine.AppendUser(ctx, "s1", fmt.Sprintf("u%d", i)); err != nil {
				t.Fatal(err)
			}
			if _, err := engine.AppendAssistant(ctx, "s1", fmt.Sprintf("a%d", i)); err != nil {
				t.Fatal(err)
			}
		}
	}

	flat := newTestEngine(t, nil, memory.EngineConfig{WindowSize: 4})
	seed(t, flat)
	snap, err := flat.Assemble(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if len(snap.Window) != 4 {
		t.Errorf("flat window = %d turns, want 4", len(snap.Window))
	}

	paired := newTestEngine(t, nil, memory.EngineConfig{WindowSize: 4, WindowMode: memory.WindowModeExchanges})
	seed(t, paired)
	snap, err = paired.Assemble(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if len(snap.Window) != 8 {
		t.Errorf("exchange window = %d turns, want 8", len(snap.Window))
	}
}

func TestEngine_EmptySessionAssembles(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(t, nil, memory.EngineConfig{WindowSize: 4})
	snap, err := engine.Assemble(context.Background(), "fresh")
	if err != nil {
		t.Fatalf("Assemble on empty session: %v", err)
	}
	if len(snap.Window) != 0 {
		t.Errorf("Window = %d turns, want 0", len(snap.Window))
	}
	if snap.Summary.Text != "" {
		t.Errorf("Summary = %q, want empty", snap.Summary.Text)
	}
}

func TestEngine_Require(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	engine := newTestEngine(t, nil, memory.EngineConfig{})

	err := engine.Require(ctx, "ghost")
	if !errors.Is(err, memory.ErrUnknownSession) {
		t.Fatalf("Require on absent session: %v, want ErrUnknownSession", err)
	}

	if _, err := engine.AppendUser(ctx, "ghost", "hello"); err != nil {
		t.Fatal(err)
	}
	if err := engine.Require(ctx, "ghost"); err != nil {
		t.Fatalf("Require after append: %v", err)
	}
}

func TestEngine_WipeResetsSession(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	engine := newTestEngine(t, nil, memory.EngineConfig{})

	if _, err := engine.AppendUser(ctx, "s1", "my name is Carol and I like Go"); err != nil {
		t.Fatal(err)
	}
	if err := engine.Wipe(ctx, "s1"); err != nil {
		t.Fatalf("Wipe: %v", err)
	}

	profile, err := engine.Profile(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if !profile.IsZero() {
		t.Errorf("profile after wipe = %+v, want zero", profile)
	}

	// Same session ID starts fresh.
	turn, err := engine.AppendUser(ctx, "s1", "new start")
	if err != nil {
		t.Fatal(err)
	}
	if turn.Seq != 1 {
		t.Errorf("Seq after wipe = %d, want 1", turn.Seq)
	}
}

func TestEngine_SystemPromptNotATurn(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	engine := newTestEngine(t, nil, memory.EngineConfig{SystemPrompt: "You are terse."})

	if _, err := engine.AppendUser(ctx, "s1", "hello"); err != nil {
		t.Fatal(err)
	}

	turns, err := engine.History(ctx, "s1", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(turns) != 1 {
		t.Fatalf("History = %d turns, want 1 (system prompt must not be logged)", len(turns))
	}

	snap, err := engine.Assemble(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if snap.SystemPrompt != "You are terse." {
		t.Errorf("SystemPrompt = %q", snap.SystemPrompt)
	}
}

func TestEngine_ConcurrentSessionsIndependent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	engine := newTestEngine(t, nil, memory.EngineConfig{})

	var wg sync.WaitGroup
	for s := 0; s < 6; s++ {
		s := s
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := fmt.Sprintf("s%d", s)
			if _, err := engine.AppendUser(ctx, id, fmt.Sprintf("my name is User%d", s)); err != nil {
				t.Errorf("AppendUser: %v", err)
				return
			}
			for i := 0; i < 20; i++ {
				if _, err := engine.AppendAssistant(ctx, id, fmt.Sprintf("reply %d", i)); err != nil {
					t.Errorf("AppendAssistant: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	for s := 0; s < 6; s++ {
		profile, err := engine.Profile(ctx, fmt.Sprintf("s%d", s))
		if err != nil {
			t.Fatal(err)
		}
		if want := fmt.Sprintf("User%d", s); profile.Name != want {
			t.Errorf("s%d Name = %q, want %q", s, profile.Name, want)
		}
	}
}

func TestEngine_SetSummarizerWhileAppending(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	engine := newTestEngine(t, nil, memory.EngineConfig{})

	// Module startup swaps the summarizer in while earlier-started
	// surfaces may already be appending turns.
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			if _, err := engine.AppendUser(ctx, "s1", fmt.Sprintf("message %d", i)); err != nil {
				t.Errorf("AppendUser: %v", err)
				return
			}
		}
	}()
	for i := 0; i < 50; i++ {
		engine.SetSummarizer(memory.ExtractiveSummarizer{Turns: 5})
	}
	wg.Wait()

	snap, err := engine.Assemble(ctx, "s1")
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if snap.Summary.Text == "" {
		t.Error("Summary is empty after appends")
	}
}
