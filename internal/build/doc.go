// Package build runs one site build: it wires the extension registry from
// configuration, discovers input files, and compiles, renders or copies
// each of them into the output tree.
//
// Every file is independent. A compile or I/O failure is recorded in the
// Report against that file and the rest of the site still builds, unless
// build.strict is set, in which case the first failure cancels the build.
package build
