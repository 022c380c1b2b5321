// Package errors provides the structured error type shared by every layer of rpg-sheet.
//
// Errors carry a Code, a user-facing Message, an optional Cause and free-form Meta.
// Wrapping keeps the code of the innermost *Error so a repository NotFound still reads
// as NotFound at the handler.
//
// # Basic Usage
//
//	err := errors.NotFound("sheet not found").WithMeta("sheet_id", id)
//
//	if err := repo.Get(ctx, id); err != nil {
//	    return errors.Wrap(err, "failed to load sheet")
//	}
//
// # Kinds
//
// Some callers need a finer split than the code. A Kind is stored in Meta under
// MetaKind, survives Wrap, and crosses gRPC inside an ErrorInfo detail:
//
//	err := errors.Parsef("unexpected %q at position %d", ")", 4)
//	if errors.IsParse(err) { ... }
//
// # Layer-Specific Guidelines
//
// Repository layer:
//   - Return NotFound / AlreadyExists with relevant IDs in metadata
//   - Wrap storage errors with context
//
// Orchestrator layer:
//   - Validate inputs and return InvalidArgument errors
//   - Return FailedPrecondition when state forbids the operation
//
// Handler layer:
//   - Convert with ToGRPCError
package errors
