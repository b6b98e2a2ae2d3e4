// Package config resolves caller options into the ResolvedConfig consumed
// by every pipeline stage.
//
// Values come from three layers, highest precedence first:
//
//  1. explicit Options fields,
//  2. Settings read once from UNRUN_* environment variables and an optional
//     .unrunrc.{yaml,json,toml} file (viper),
//  3. built-in defaults.
//
// Resolution is the only place configuration is read. Later stages never
// consult the environment themselves.
package config
