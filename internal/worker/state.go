// Package worker implements the extraction worker's per-item state
// machine (spec.md §4.7, C7): open, hash, signature-scan, and dispatch
// to ranked parsers, with a heartbeat back to the foreman and a memory
// ceiling that can abort one item without killing the worker.
package worker

// State is one step of the per-item state machine (spec.md §4.7):
//
//	IDLE -> RECEIVED -> HASHING -> SCANNING -> PARSING(k) ->
//	        (PARSING(k+1) | DONE | WARNING -> DONE)
type State string

const (
	StateIdle      State = "IDLE"
	StateReceived  State = "RECEIVED"
	StateHashing   State = "HASHING"
	StateScanning  State = "SCANNING"
	StateParsing   State = "PARSING"
	StateDone      State = "DONE"
	StateWarning   State = "WARNING"
)
