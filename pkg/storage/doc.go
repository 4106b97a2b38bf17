// Package storage writes downloaded images to the local filesystem.
//
// A Store is scoped to one pipeline run. Every Save:
//   - creates the destination directory if it is missing (repeat calls are fine)
//   - streams the body into a hidden temporary file while hashing it
//   - renames the file to <seq>_<sha256 prefix><ext> once fully written
//
// A failed write never leaves a partial image behind. All failures are
// returned as storage errors from imgharvest/pkg/errors.
//
// Usage:
//
//	store := storage.NewStore()
//	ext := storage.ExtensionFor(stream.URL, stream.ContentType)
//	path, err := store.Save(stream, "images", ext)
package storage
