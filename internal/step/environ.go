package step

import "os"

// processEnviron is swappable in tests to keep exec environments hermetic.
var processEnviron = os.Environ
