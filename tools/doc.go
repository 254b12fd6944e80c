// Package tools defines the tools a run can call and the handler that
// dispatches model tool calls to them.
//
// Includes:
//   - ToolDefinition: name, description, JSON input schema, handler, terminal flag.
//   - GenerateSchema[T](): derive JSON Schema from Go structs.
//   - File tools: read_file, list_files (non-recursive), edit_file, all confined to the sandbox roots.
//   - finish: a terminal tool that ends the run with a summary.
//   - Handler: a runner.ToolHandler answering each call with one tool message.
package tools
