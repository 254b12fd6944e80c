// Package memory persists conversations between runs.
//
// Persistence model:
//   - The whole message list is stored, tool calls, metadata and local
//     messages included; filtering for the backend happens at send time.
//   - Save replaces the stored list; there is no append log.
//   - Backends: one JSON file per conversation, or one Redis list per conversation.
package memory
