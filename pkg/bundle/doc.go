// Package bundle turns a compiled site into deployable output: it resolves
// the asset plan against a project tree and writes the JSON artifact the
// build step consumes.
package bundle
