// Package lexer provides a literal-aware view of JavaScript and TypeScript
// source text for the textual transforms applied around the bundler.
//
// The scanner does not build a syntax tree. It splits source text into
// segments (code, comments, string literals, template literal text, regular
// expression literals) so that transforms can search for trigger tokens,
// balance braces and splice replacements without ever touching the inside
// of a literal or comment. Template literal substitutions (${ ... }) are
// reported as code, including nested templates.
//
// Edits are collected with an Editor and applied in one pass, keeping every
// offset computed against the original text valid while a transform runs.
package lexer
