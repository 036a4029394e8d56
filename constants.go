package pelikan

import "github.com/pelikan-go/pelikan/internal/constants"

// Re-exported constants for the public API, so callers building
// ServerParams don't need to import internal/constants directly.
const (
	DefaultHost       = constants.DefaultHost
	DefaultPort       = constants.DefaultPort
	DefaultAdminPort  = constants.DefaultAdminPort
	DefaultTimeoutMs  = constants.DefaultTimeoutMs

	DefaultSlabSize  = constants.SlabSize
	DefaultChunkSize = constants.SlabMinChunkSize
	DefaultMaxBytes  = constants.DefaultMaxBytes
	DefaultHashPower = constants.DefaultHashPower

	DefaultCuckooItems = constants.DefaultCuckooItems
)
