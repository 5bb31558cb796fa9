package pipeline

// Version information (set via ldflags)
var (
	Version = "v0.1.0"
	GitSHA  = "unknown"
)

// WorkUnit is one revision awaiting analysis. Units are created once by the
// coordinator and consumed exactly once by whichever worker takes them
// first; there is no re-delivery.
type WorkUnit struct {
	// Index is the unit's position in the newest-first revision sequence.
	// Index 0 is the branch head.
	Index int

	// Hash is the resolved commit identifier. Carrying it on the unit
	// spares workers from re-enumerating the revision sequence.
	Hash string
}
