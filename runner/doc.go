// Package runner drives a conversation with a chat backend until the model
// produces a final answer.
//
// Loop:
//   - Each iteration sends the sendable history to the backend (Completion for
//     Run, CompletionStream for Stream).
//   - A forced tool choice is sent on the first iteration only.
//   - When a ToolHandler is set, every tool call in the reply is dispatched
//     concurrently (CallTools) and the results are appended to the history.
//   - The run ends when no call asks to continue, when no handler is set, or
//     when RunLoopLimit backend requests have been made (Response.Truncated).
//
// Every message produced by a run carries the run's RunID.
package runner
