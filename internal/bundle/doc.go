// Package bundle turns an entry file into one self-contained ES module using
// esbuild as the engine.
//
// A build runs four plugins in a fixed order: data materialization turns
// JSON, JSONC, YAML and TOML files into JavaScript modules, typed-source
// aliasing maps ".js" style specifiers onto ".ts" style files that exist
// only in their typed form, the external classifier decides which bare
// imports stay native imports, and the source loader applies the source
// transforms to every script before esbuild parses it. The generated chunk
// then goes through the output transforms of package transform.
package bundle
