package cli

// Export internal functions for testing.

// RunConfigSet exports runConfigSet for testing.
var RunConfigSet = runConfigSet

// RunConfigGet exports runConfigGet for testing.
var RunConfigGet = runConfigGet

// RunConfigList exports runConfigList for testing.
var RunConfigList = runConfigList

// SplitOptions exports splitOptions for testing.
var SplitOptions = splitOptions

// ResolveOutputDir exports resolveOutputDir for testing.
var ResolveOutputDir = resolveOutputDir

// Prompt exports prompt for testing.
var Prompt = prompt

// LockFileName exports lockFileName for testing.
const LockFileName = lockFileName
