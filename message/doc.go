// Package message defines the conversation turn exchanged between the runner,
// chat backends and tool handlers.
//
// Merge model:
//   - A streamed response arrives as a series of deltas sharing one message ID.
//   - Apply folds a delta into the accumulated message: text and tool-call
//     arguments are appended, finish reason and correlation IDs are replaced.
//   - Sequences of messages are updated by ID with Upsert (last write wins).
package message
