// Package store persists optimization cases and materials on disk. A
// case is a directory under the store root holding metadata.json, the
// structure as columnar JSON and the run history as CSV. Materials live
// in a single YAML catalog seeded with builtin entries.
package store
