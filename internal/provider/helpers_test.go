package provider_test

import (
	"bytes"
	"io"
	"net/http"
	"sync"

	"github.com/invopop/jsonschema"

	"github.com/petasbytes/chatloop/message"
	"github.com/petasbytes/chatloop/runner"
)

type capture struct {
	mu     sync.Mutex
	method string
	url    string
	body   []byte
}

func (c *capture) Body() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.body
}

type fakeTransport struct {
	respStatus  int
	respBody    []byte
	contentType string
	captured    *capture
}

func (f *fakeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	b, _ := io.ReadAll(req.Body)
	_ = req.Body.Close()
	if f.captured != nil {
		f.captured.mu.Lock()
		f.captured.method = req.Method
		f.captured.url = req.URL.String()
		f.captured.body = b
		f.captured.mu.Unlock()
	}
	ct := f.contentType
	if ct == "" {
		ct = "application/json"
	}
	resp := &http.Response{
		StatusCode: f.respStatus,
		Body:       io.NopCloser(bytes.NewReader(f.respBody)),
		Header:     make(http.Header),
		Request:    req,
	}
	resp.Header.Set("Content-Type", ct)
	return resp, nil
}

// conversation exercises every role: a system prompt, a user turn, an
// assistant round with two tool calls and their results (one failed), and a
// follow-up user turn.
func conversation() []message.Message {
	failed := message.NewTool("call_2", "list_files", `{"code":"ERR_DENIED_READ"}`)
	failed.Metadata = map[string]string{message.MetaIsError: "true"}
	return []message.Message{
		message.NewSystem("be brief"),
		message.NewUser("look around"),
		{
			ID:      "a1",
			Role:    message.RoleAssistant,
			Content: "checking",
			ToolCalls: []message.ToolCall{
				{ID: "call_1", Type: "function", Function: message.FunctionCall{Name: "read_file", Arguments: `{"path":"a.txt"}`}},
				{ID: "call_2", Type: "function", Function: message.FunctionCall{Name: "list_files"}},
			},
		},
		message.NewTool("call_1", "read_file", "hi"),
		failed,
		message.NewUser("thanks"),
	}
}

type readInput struct {
	Path string `json:"path"`
}

func readTool() runner.Tool {
	r := jsonschema.Reflector{DoNotReference: true}
	return runner.Tool{Name: "read_file", Description: "Read a file.", Parameters: r.Reflect(readInput{})}
}

// accumulate folds streamed deltas the way the runner does.
func accumulate(deltas []message.Message) message.Message {
	if len(deltas) == 0 {
		return message.Message{}
	}
	acc := deltas[0]
	for _, d := range deltas[1:] {
		acc = acc.Apply(d)
	}
	return acc
}
