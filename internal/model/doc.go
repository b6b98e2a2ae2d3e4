// Package model defines the domain types and value objects shared by every
// stage of the unrun pipeline.
//
// This package contains plain data structures only: the generated artifact
// returned by the bundle step, the handle describing where that artifact was
// persisted, the two result shapes (evaluated module vs executed program),
// and the typed pipeline error that carries its failure class.
//
// The package also defines process exit codes (ExitCode) used by the CLI
// layer when translating pipeline failures into OS exit statuses.
package model
