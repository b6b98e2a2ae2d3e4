// Package transform implements the text passes applied around the bundler.
//
// Source passes run on each module as it is loaded, before the bundler
// parses it:
//
//  1. InlineMetaResolve rewrites import.meta.resolve("<literal>") calls to
//     precomputed file:// URLs.
//  2. InjectContextConstants binds __filename and __dirname to the real
//     source location and rewrites import.meta.url, import.meta.filename
//     and import.meta.dirname to literals.
//
// Data files (.json, .jsonc, .yaml, .yml, .toml) never reach those passes.
// DataModule materializes them into JavaScript directly, and
// ResolveTypedAlias maps plain-script specifiers onto typed sources.
//
// Output passes run on the generated chunk, in the order of Output:
//
//  1. BridgeRequire replaces the bundler's throwing require helper with one
//     built on module.createRequire.
//  2. FixRequireResolve rewrites relative __require.resolve calls against
//     the entry directory.
//  3. FixRequireTypeof normalizes typeof __require to typeof require.
//  4. PromoteAsyncWrappers or UnwrapWrappers repairs CommonJS wrappers whose
//     body awaits.
//  5. CustomizeInspect attaches console formatting to namespace objects.
//
// Every pass scans its input with the lexer package so that literals and
// comments which happen to contain a trigger token are never rewritten.
// Passes return their input unchanged when nothing matched.
package transform
