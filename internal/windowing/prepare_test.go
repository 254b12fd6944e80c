package windowing_test

import (
	"testing"

	"github.com/petasbytes/chatloop/internal/windowing"
	"github.com/petasbytes/chatloop/message"
)

func roles(msgs []message.Message) []message.Role {
	out := make([]message.Role, len(msgs))
	for i, m := range msgs {
		out[i] = m.Role
	}
	return out
}

func TestPrepareSendWindow_BudgetRespected_OrderPreserved(t *testing.T) {
	// Oldest -> newest
	msgs := []message.Message{
		User("old"),   // G0: 3 + 4 = 7
		Asst("", "a"), // G1: 4 + 4 = 8
		TR("a", "r"),  // G1: 1 + 4 = 5
		User("tail"),  // G2: 4 + 4 = 8
	}
	budget := 21 // G2(8) + G1(13) = 21

	window, stats := windowing.PrepareSendWindow(msgs, budget, windowing.HeuristicCounter{})

	if stats.Budget != budget || stats.Total != 21 || stats.IncludedGroups != 2 || stats.SkippedGroups != 1 || stats.OverBudgetNewest {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	got := roles(window)
	want := []message.Role{message.RoleAssistant, message.RoleTool, message.RoleUser}
	if len(got) != len(want) {
		t.Fatalf("unexpected window: %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("unexpected roles order in window: %v", got)
		}
	}
}

func TestPrepareSendWindow_NewestGroupOverBudget(t *testing.T) {
	msgs := []message.Message{
		User("old"),       // G0: 7
		Asst("", "a"),     // G1 part: 8
		TR("a", "xxxxxx"), // G1 part: 6 + 4 = 10 => G1 total 18 (newest)
	}
	budget := 10

	window, stats := windowing.PrepareSendWindow(msgs, budget, windowing.HeuristicCounter{})

	if len(window) != 0 {
		t.Fatalf("expected empty window; got=%d", len(window))
	}
	if !stats.OverBudgetNewest || stats.IncludedGroups != 0 || stats.SkippedGroups != 2 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestPrepareSendWindow_NoCapacityBudget_WithGroups(t *testing.T) {
	window, stats := windowing.PrepareSendWindow([]message.Message{User("x")}, 0, windowing.HeuristicCounter{})

	if len(window) != 0 || !stats.OverBudgetNewest || stats.SkippedGroups != 1 || stats.IncludedGroups != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestPrepareSendWindow_EmptyMsgs(t *testing.T) {
	window, stats := windowing.PrepareSendWindow(nil, 123, windowing.HeuristicCounter{})
	if window != nil || stats.Budget != 123 || stats.Total != 0 || stats.OverBudgetNewest {
		t.Fatalf("unexpected result: window=%v stats=%+v", window, stats)
	}
}

func TestPrepareSendWindow_AllFitIncludingOldest(t *testing.T) {
	msgs := []message.Message{
		User("oldest"), // 6 + 4 = 10
		User("mid"),    // 3 + 4 = 7
		User("new"),    // 3 + 4 = 7
	}
	window, stats := windowing.PrepareSendWindow(msgs, 24, windowing.HeuristicCounter{})

	if stats.OverBudgetNewest || stats.IncludedGroups != 3 || stats.SkippedGroups != 0 || stats.Total != 24 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if len(window) != len(msgs) {
		t.Fatalf("window size: got=%d want=%d", len(window), len(msgs))
	}
	for i := range msgs {
		if window[i].Content != msgs[i].Content {
			t.Fatalf("order mismatch at %d: got=%q want=%q", i, window[i].Content, msgs[i].Content)
		}
	}
}

func TestPrepareSendWindow_ExactlyOneOlderAlsoFits(t *testing.T) {
	msgs := []message.Message{
		User("a"),    // 1 + 4 = 5
		User("bbbb"), // 4 + 4 = 8
		User("cc"),   // 2 + 4 = 6 (newest)
	}
	counter := windowing.HeuristicCounter{}

	// newest (6) + next older (8) = 14; adding the oldest would make 19
	window, stats := windowing.PrepareSendWindow(msgs, 14, counter)

	if stats.IncludedGroups != 2 || stats.SkippedGroups != 1 || stats.OverBudgetNewest {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if len(window) != 2 || window[0].Content != "bbbb" || window[1].Content != "cc" {
		t.Fatalf("unexpected window: %+v", window)
	}
	gotCost := 0
	for _, m := range window {
		gotCost += counter.CountMessage(m)
	}
	if gotCost != 14 {
		t.Fatalf("total cost mismatch: got=%d want=14", gotCost)
	}
}

func TestPrepareSendWindow_PinsLeadingSystem(t *testing.T) {
	msgs := []message.Message{
		Sys("sys"),  // pinned: 7
		User("old"), // 7
		User("new"), // 7
	}
	window, stats := windowing.PrepareSendWindow(msgs, 14, windowing.HeuristicCounter{})

	if stats.Pinned != 1 || stats.IncludedGroups != 1 || stats.SkippedGroups != 1 || stats.Total != 14 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if len(window) != 2 || window[0].Content != "sys" || window[1].Content != "new" {
		t.Fatalf("unexpected window: %+v", window)
	}

	// The window is a fresh slice; writing to it leaves the history alone.
	window[0].Content = "changed"
	if msgs[0].Content != "sys" {
		t.Fatal("window aliases the input")
	}
}

func TestPrepareSendWindow_PinnedOverBudget(t *testing.T) {
	cases := []struct {
		name   string
		msgs   []message.Message
		budget int
	}{
		{"pinned alone", []message.Message{Sys("a long system prompt"), User("x")}, 10},
		{"pinned plus newest", []message.Message{Sys("sys"), User("newest!")}, 15},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			window, stats := windowing.PrepareSendWindow(tc.msgs, tc.budget, windowing.HeuristicCounter{})
			if window != nil || !stats.OverBudgetNewest {
				t.Fatalf("expected over budget: window=%v stats=%+v", window, stats)
			}
		})
	}
}

func TestPrepareSendWindow_OnlySystem(t *testing.T) {
	window, stats := windowing.PrepareSendWindow([]message.Message{Sys("a")}, 100, windowing.HeuristicCounter{})
	if len(window) != 1 || stats.Pinned != 1 || stats.IncludedGroups != 0 || stats.OverBudgetNewest {
		t.Fatalf("unexpected result: window=%v stats=%+v", window, stats)
	}
}
