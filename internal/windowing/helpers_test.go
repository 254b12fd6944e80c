package windowing_test

import (
	"github.com/petasbytes/chatloop/internal/windowing"
	"github.com/petasbytes/chatloop/message"
)

// User message constructor
func User(text string) message.Message {
	return message.Message{Role: message.RoleUser, Content: text}
}

// System message constructor
func Sys(text string) message.Message {
	return message.Message{Role: message.RoleSystem, Content: text}
}

// Asst builds an assistant message calling tools with the given ids; names
// and arguments are empty so only the overhead is counted for each call.
func Asst(text string, callIDs ...string) message.Message {
	m := message.Message{Role: message.RoleAssistant, Content: text}
	for _, id := range callIDs {
		m.ToolCalls = append(m.ToolCalls, message.ToolCall{ID: id, Type: "function"})
	}
	return m
}

// Tool-result constructor
func TR(id, content string) message.Message {
	return message.Message{Role: message.RoleTool, ToolCallID: id, Content: content}
}

// Tool-result flagged as a tool failure
func TRErr(id, content string) message.Message {
	m := TR(id, content)
	m.Metadata = map[string]string{message.MetaIsError: "true"}
	return m
}

// groupsEqual is a small utility used by grouping tests.
func groupsEqual(got, want []windowing.Group) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i].Kind != want[i].Kind || got[i].Start != want[i].Start || got[i].End != want[i].End {
			return false
		}
	}
	return true
}

func single(start int) windowing.Group {
	return windowing.Group{Kind: windowing.GroupSingleton, Start: start, End: start + 1}
}
