// Package output renders command results for the llmctl CLI.
//
// Supported formats:
//   - text: human-readable key-value pairs and aligned tables (default)
//   - json: pretty-printed JSON
//   - ndjson: one JSON value per line
//   - table: aligned columns for lists
//   - yaml: YAML
//
// The format and the --query/--jsonpath filters are attached to the command
// context in the root pre-run hook:
//
//	ctx := output.WithFormat(cmd.Context(), format)
//	ctx = output.WithQuery(ctx, query)
//
// Commands then print through a Printer:
//
//	printer := output.NewPrinter(os.Stdout, output.FormatFromContext(ctx))
//	return printer.Print(ctx, data)
//
// Values implementing Tabler choose their own columns for text and table
// output. Everything else is normalized through encoding/json first, so json
// tags decide the keys in every format.
package output
