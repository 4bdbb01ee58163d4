// Package errors provides the classified error primitives used across sitesmith.
//
// Every failure surfaced to the user belongs to exactly one category:
//
//   - CategoryConfig: invalid or duplicate registrations and bad configuration.
//     Always fatal and reported before any build work runs.
//   - CategoryCompile: malformed source handed to a compiler. Scoped to one file.
//   - CategoryFileSystem: unreadable sources, missing imports, unwritable outputs.
//     Scoped to one file unless the build runs in strict mode.
//
// Example usage:
//
//	err := errors.CompileError("undefined variable").
//		WithContext("file", "styles/main.scss").
//		WithContext("line", 12).
//		Build()
package errors
