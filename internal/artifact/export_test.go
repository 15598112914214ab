package artifact

// Export internals for testing.
// This file is only compiled during tests (suffix _test.go).

// FileSystem exports the fileSystem interface for testing.
type FileSystem = fileSystem

// OSFileSystem exports the default implementation so mocks can embed it.
type OSFileSystem = osFileSystem

// WithFileSystem exports withFileSystem for testing.
var WithFileSystem = withFileSystem
