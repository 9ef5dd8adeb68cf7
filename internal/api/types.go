// Package api defines the wire contract of the daemon's command channel and
// a small client for it. The daemon serves these types; the command-line
// tools consume them.
package api

// StateRequest forces the named machines into a state, bypassing the
// decision engine.
type StateRequest struct {
	State    string   `json:"state"`
	Machines []string `json:"machines"`
}

// StateResponse carries one human-readable outcome line per requested
// machine.
type StateResponse struct {
	Results map[string]string `json:"results"`
}

type StatusRow struct {
	Name            string `json:"name"`
	State           string `json:"state"`
	Slots           int    `json:"slots"`
	Timer           *int64 `json:"timer"`
	SinceLastActive int64  `json:"since_last_active"`
}

type StatusResponse struct {
	Machines []StatusRow `json:"machines"`
}

// ReloadRequest may name a new manifest; an empty path reuses the one the
// daemon was started with.
type ReloadRequest struct {
	Manifest string `json:"manifest,omitempty"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
