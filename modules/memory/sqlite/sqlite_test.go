package sqlite

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/vjoshi/recall/internal/core"
	"github.com/vjoshi/recall/internal/memory"
)

func newTestModule(t *testing.T) *Module {
	t.Helper()

	dir := t.TempDir()
	m := &Module{
		config: Config{
			Path:        filepath.Join(dir, "test.db"),
			BusyTimeout: defaultBusyTimeout,
		},
	}
	m.config.defaults()

	ctx := core.NewAppContext(slog.Default(), dir)

	if err := m.Provision(ctx); err != nil {
		t.Fatalf("provision: %v", err)
	}
	if err := m.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}

	t.Cleanup(func() {
		_ = m.Stop(context.Background())
	})

	return m
}

func TestAppendAndReadAll(t *testing.T) {
	m := newTestModule(t)
	ctx := context.Background()

	inputs := []struct {
		role memory.Role
		text string
	}{
		{memory.RoleUser, "hello"},
		{memory.RoleAssistant, "hi there"},
		{memory.RoleUser, "how are you?"},
	}

	for i, in := range inputs {
		turn, err := m.store.Append(ctx, "s1", in.role, in.text)
		if err != nil {
			t.Fatalf("append: %v", err)
		}
		if turn.Seq != int64(i+1) {
			t.Errorf("turn %d Seq = %d, want %d", i, turn.Seq, i+1)
		}
		if turn.Timestamp.IsZero() {
			t.Errorf("turn %d has zero timestamp", i)
		}
	}

	got, err := m.store.ReadAll(ctx, "s1")
	if err != nil {
		t.Fatalf("read all: %v", err)
	}
	if len(got) != len(inputs) {
		t.Fatalf("got %d turns, want %d", len(got), len(inputs))
	}
	for i, turn := range got {
		if turn.Role != inputs[i].role || turn.Text != inputs[i].text {
			t.Errorf("turn %d: got %+v, want %s/%q", i, turn, inputs[i].role, inputs[i].text)
		}
		if turn.Seq != int64(i+1) {
			t.Errorf("turn %d Seq = %d, want %d", i, turn.Seq, i+1)
		}
	}
}

func TestReadAllAbsentSession(t *testing.T) {
	m := newTestModule(t)

	got, err := m.store.ReadAll(context.Background(), "nope")
	if err != nil {
		t.Fatalf("read all: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d turns for absent session, want 0", len(got))
	}
}

func TestLastN(t *testing.T) {
	m := newTestModule(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := m.store.Append(ctx, "s1", memory.RoleUser, fmt.Sprintf("m%d", i)); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	tests := []struct {
		n    int
		want []string
	}{
		{0, []string{}},
		{-1, []string{}},
		{2, []string{"m3", "m4"}},
		{5, []string{"m0", "m1", "m2", "m3", "m4"}},
		{10, []string{"m0", "m1", "m2", "m3", "m4"}},
	}

	for _, tt := range tests {
		got, err := m.store.LastN(ctx, "s1", tt.n)
		if err != nil {
			t.Fatalf("LastN(%d): %v", tt.n, err)
		}
		if len(got) != len(tt.want) {
			t.Errorf("LastN(%d) = %d turns, want %d", tt.n, len(got), len(tt.want))
			continue
		}
		for i, turn := range got {
			if turn.Text != tt.want[i] {
				t.Errorf("LastN(%d)[%d] = %q, want %q", tt.n, i, turn.Text, tt.want[i])
			}
		}
	}
}

func TestWipe(t *testing.T) {
	m := newTestModule(t)
	ctx := context.Background()

	for _, session := range []string{"keep", "wipe"} {
		for i := 0; i < 3; i++ {
			if _, err := m.store.Append(ctx, session, memory.RoleUser, fmt.Sprintf("m%d", i)); err != nil {
				t.Fatalf("append: %v", err)
			}
		}
	}

	if err := m.store.Wipe(ctx, "wipe"); err != nil {
		t.Fatalf("wipe: %v", err)
	}

	n, err := m.store.Len(ctx, "wipe")
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("wiped session has %d turns, want 0", n)
	}

	n, err = m.store.Len(ctx, "keep")
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("untouched session has %d turns, want 3", n)
	}

	// Wiping an absent session is a no-op.
	if err := m.store.Wipe(ctx, "ghost"); err != nil {
		t.Errorf("wipe absent session: %v", err)
	}

	// Sequence restarts for a fresh append under the wiped ID.
	turn, err := m.store.Append(ctx, "wipe", memory.RoleUser, "fresh")
	if err != nil {
		t.Fatal(err)
	}
	if turn.Seq != 1 {
		t.Errorf("Seq after wipe = %d, want 1", turn.Seq)
	}
}

func TestSessions(t *testing.T) {
	m := newTestModule(t)
	ctx := context.Background()

	if _, err := m.store.Append(ctx, "beta", memory.RoleUser, "one"); err != nil {
		t.Fatal(err)
	}
	if _, err := m.store.Append(ctx, "alpha", memory.RoleUser, "one"); err != nil {
		t.Fatal(err)
	}
	if _, err := m.store.Append(ctx, "alpha", memory.RoleAssistant, "two"); err != nil {
		t.Fatal(err)
	}

	infos, err := m.store.Sessions(ctx)
	if err != nil {
		t.Fatalf("sessions: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("got %d sessions, want 2", len(infos))
	}
	if infos[0].ID != "alpha" || infos[1].ID != "beta" {
		t.Errorf("sessions not sorted by ID: %+v", infos)
	}
	if infos[0].Turns != 2 || infos[1].Turns != 1 {
		t.Errorf("turn counts = %d/%d, want 2/1", infos[0].Turns, infos[1].Turns)
	}
	if infos[0].LastActive.IsZero() {
		t.Error("LastActive not populated")
	}
	if time.Since(infos[0].LastActive) > time.Minute {
		t.Errorf("LastActive %v implausibly old", infos[0].LastActive)
	}
}

// Turns must survive a close/reopen cycle and reproduce the same log.
func TestReopenPreservesTurns(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "restart.db")
	ctx := context.Background()

	store, db, err := OpenTurnStore(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := store.Append(ctx, "s1", memory.RoleUser, "my name is Dana"); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Append(ctx, "s1", memory.RoleAssistant, "hello Dana"); err != nil {
		t.Fatal(err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	store, db, err = OpenTurnStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = db.Close() }()

	turns, err := store.ReadAll(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if len(turns) != 2 {
		t.Fatalf("got %d turns after reopen, want 2", len(turns))
	}
	if turns[0].Text != "my name is Dana" || turns[1].Text != "hello Dana" {
		t.Errorf("turns after reopen: %+v", turns)
	}

	// Seq continues from the persisted maximum.
	turn, err := store.Append(ctx, "s1", memory.RoleUser, "still here")
	if err != nil {
		t.Fatal(err)
	}
	if turn.Seq != 3 {
		t.Errorf("Seq after reopen = %d, want 3", turn.Seq)
	}
}

// A fresh engine over a reopened database must rebuild profile and
// summary from the turn log alone.
func TestReopenRebuildsDerivedState(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rebuild.db")
	ctx := context.Background()

	store, db, err := OpenTurnStore(path)
	if err != nil {
		t.Fatal(err)
	}
	engine := memory.NewEngine(store, nil, nil, memory.EngineConfig{}, nil)
	if _, err := engine.AppendUser(ctx, "s1", "my name is Dana and I like Go"); err != nil {
		t.Fatal(err)
	}
	if _, err := engine.AppendAssistant(ctx, "s1", "nice to meet you"); err != nil {
		t.Fatal(err)
	}
	want, err := engine.Profile(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if err := db.Close(); err != nil {
		t.Fatal(err)
	}

	store, db, err = OpenTurnStore(path)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = db.Close() }()

	got, err := memory.NewEngine(store, nil, nil, memory.EngineConfig{}, nil).Profile(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(want) {
		t.Errorf("rebuilt profile %+v, want %+v", got, want)
	}
	if got.Name != "Dana" {
		t.Errorf("Name = %q, want Dana", got.Name)
	}
}
