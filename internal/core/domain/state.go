package domain

// AssetState is the staleness state of an asset.
type AssetState int

const (
	// StateUnbuilt means the output file does not exist.
	StateUnbuilt AssetState = iota
	// StateFresh means no tracked dependency is newer than the output.
	StateFresh
	// StateStale means a tracked dependency is newer than the output.
	StateStale
	// StateUnbuildable means a build left no output; builds are skipped
	// until the next full rebuild.
	StateUnbuildable
)

// String returns the state name.
func (s AssetState) String() string {
	switch s {
	case StateUnbuilt:
		return "unbuilt"
	case StateFresh:
		return "fresh"
	case StateStale:
		return "stale"
	case StateUnbuildable:
		return "unbuildable"
	default:
		return "unknown"
	}
}
