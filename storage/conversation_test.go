package storage

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/richinex/sqlagent/llm"
)

// backends runs fn against every ConversationStorage implementation.
func backends(t *testing.T, fn func(t *testing.T, store ConversationStorage)) {
	t.Run("memory", func(t *testing.T) {
		fn(t, NewInMemoryStorage())
	})
	t.Run("sqlite", func(t *testing.T) {
		store, err := NewSqliteInMemory()
		if err != nil {
			t.Fatalf("Failed to create storage: %v", err)
		}
		defer store.Close()
		fn(t, store)
	})
}

func sampleTurn() []llm.ChatMessage {
	call := llm.ToolCall{ID: "call_1", Name: "sql_db_query", Arguments: json.RawMessage(`{"query":"SELECT 1"}`)}
	return []llm.ChatMessage{
		llm.UserMessage("How many tracks are there?"),
		llm.AssistantToolCallMessage("", []llm.ToolCall{call}),
		llm.ToolResultMessage(call, "Error: no such table: Tracks", true),
		llm.AssistantMessage("There are 3503 tracks."),
	}
}

func TestStorageSaveAndLoad(t *testing.T) {
	backends(t, func(t *testing.T, store ConversationStorage) {
		ctx := context.Background()

		if err := store.Save(ctx, "test-session", sampleTurn()); err != nil {
			t.Fatalf("Save failed: %v", err)
		}

		loaded, err := store.Load(ctx, "test-session")
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if len(loaded) != 4 {
			t.Fatalf("expected 4 messages, got %d", len(loaded))
		}
		if loaded[0].Content != "How many tracks are there?" {
			t.Errorf("unexpected first message %q", loaded[0].Content)
		}
		if len(loaded[1].ToolCalls) != 1 || loaded[1].ToolCalls[0].Name != "sql_db_query" {
			t.Errorf("tool calls not restored: %+v", loaded[1].ToolCalls)
		}
		if string(loaded[1].ToolCalls[0].Arguments) != `{"query":"SELECT 1"}` {
			t.Errorf("tool arguments not restored: %s", loaded[1].ToolCalls[0].Arguments)
		}
		if loaded[2].ToolCallID != "call_1" || loaded[2].ToolName != "sql_db_query" || !loaded[2].IsError {
			t.Errorf("tool result not restored: %+v", loaded[2])
		}
		if loaded[3].Role != llm.RoleAssistant {
			t.Errorf("expected assistant, got %s", loaded[3].Role)
		}
	})
}

func TestStorageLoadNonexistentSession(t *testing.T) {
	backends(t, func(t *testing.T, store ConversationStorage) {
		loaded, err := store.Load(context.Background(), "nonexistent")
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if loaded == nil || len(loaded) != 0 {
			t.Errorf("expected empty non-nil slice, got %v", loaded)
		}
	})
}

func TestStorageAppend(t *testing.T) {
	backends(t, func(t *testing.T, store ConversationStorage) {
		ctx := context.Background()
		turn := sampleTurn()

		if err := store.Append(ctx, "s", turn[:2]...); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
		if err := store.Append(ctx, "s", turn[2:]...); err != nil {
			t.Fatalf("Append failed: %v", err)
		}

		loaded, err := store.Load(ctx, "s")
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if len(loaded) != len(turn) {
			t.Fatalf("expected %d messages, got %d", len(turn), len(loaded))
		}
		for i := range turn {
			if loaded[i].Role != turn[i].Role || loaded[i].Content != turn[i].Content {
				t.Errorf("message %d: got %+v, want %+v", i, loaded[i], turn[i])
			}
		}
	})
}

func TestStorageOverwriteSession(t *testing.T) {
	backends(t, func(t *testing.T, store ConversationStorage) {
		ctx := context.Background()

		if err := store.Save(ctx, "s", sampleTurn()); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		if err := store.Save(ctx, "s", []llm.ChatMessage{llm.UserMessage("again")}); err != nil {
			t.Fatalf("Save failed: %v", err)
		}

		loaded, err := store.Load(ctx, "s")
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if len(loaded) != 1 || loaded[0].Content != "again" {
			t.Errorf("expected overwritten history, got %+v", loaded)
		}
	})
}

func TestStorageDeleteAndExists(t *testing.T) {
	backends(t, func(t *testing.T, store ConversationStorage) {
		ctx := context.Background()

		if err := store.Save(ctx, "s", sampleTurn()); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		exists, err := store.Exists(ctx, "s")
		if err != nil || !exists {
			t.Fatalf("expected session to exist, got %v, %v", exists, err)
		}

		if err := store.Delete(ctx, "s"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		exists, err = store.Exists(ctx, "s")
		if err != nil || exists {
			t.Fatalf("expected session to be gone, got %v, %v", exists, err)
		}
		loaded, err := store.Load(ctx, "s")
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if len(loaded) != 0 {
			t.Errorf("expected messages to be deleted, got %d", len(loaded))
		}
	})
}

func TestStorageListSessions(t *testing.T) {
	backends(t, func(t *testing.T, store ConversationStorage) {
		ctx := context.Background()

		long := strings.Repeat("x", 100)
		if err := store.Save(ctx, "a", sampleTurn()); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		if err := store.Append(ctx, "b", llm.UserMessage(long)); err != nil {
			t.Fatalf("Append failed: %v", err)
		}

		sessions, err := store.ListSessions(ctx)
		if err != nil {
			t.Fatalf("ListSessions failed: %v", err)
		}
		if len(sessions) != 2 {
			t.Fatalf("expected 2 sessions, got %d", len(sessions))
		}

		byID := make(map[string]SessionInfo)
		for _, s := range sessions {
			byID[s.ID] = s
		}
		if byID["a"].Messages != 4 || byID["a"].Title != "How many tracks are there?" {
			t.Errorf("unexpected session a: %+v", byID["a"])
		}
		if byID["b"].Messages != 1 || len([]rune(byID["b"].Title)) != maxTitleLen {
			t.Errorf("unexpected session b: %+v", byID["b"])
		}
		if byID["a"].UpdatedAt.IsZero() {
			t.Errorf("expected an update time")
		}
	})
}

func TestStorageIsolation(t *testing.T) {
	backends(t, func(t *testing.T, store ConversationStorage) {
		ctx := context.Background()

		if err := store.Save(ctx, "one", []llm.ChatMessage{llm.UserMessage("first")}); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		if err := store.Save(ctx, "two", []llm.ChatMessage{llm.UserMessage("second")}); err != nil {
			t.Fatalf("Save failed: %v", err)
		}

		loaded, err := store.Load(ctx, "one")
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if len(loaded) != 1 || loaded[0].Content != "first" {
			t.Errorf("sessions leaked into each other: %+v", loaded)
		}
	})
}

func TestInMemoryStorageReturnsCopies(t *testing.T) {
	store := NewInMemoryStorage()
	ctx := context.Background()

	history := []llm.ChatMessage{llm.UserMessage("original")}
	if err := store.Save(ctx, "s", history); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	history[0].Content = "mutated"

	loaded, _ := store.Load(ctx, "s")
	loaded[0].Content = "mutated again"

	again, _ := store.Load(ctx, "s")
	if again[0].Content != "original" {
		t.Errorf("storage was mutated through a caller slice: %q", again[0].Content)
	}
}

func TestSqliteStoragePersistsToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "sessions.db")
	ctx := context.Background()

	store, err := OpenSqlite(path)
	if err != nil {
		t.Fatalf("OpenSqlite failed: %v", err)
	}
	if err := store.Save(ctx, "s", sampleTurn()); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := OpenSqlite(path)
	if err != nil {
		t.Fatalf("OpenSqlite failed: %v", err)
	}
	defer reopened.Close()

	loaded, err := reopened.Load(ctx, "s")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(loaded) != 4 {
		t.Errorf("expected 4 messages after reopening, got %d", len(loaded))
	}
}

func TestNewSessionID(t *testing.T) {
	a, b := NewSessionID(), NewSessionID()
	if a == "" || a == b {
		t.Errorf("expected distinct non-empty IDs, got %q and %q", a, b)
	}
}
