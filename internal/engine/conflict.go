package engine

import "time"

// conflictWindow is the span below which near-simultaneous edits on both
// sides are indistinguishable from a genuine race (clock skew included)
// and are treated uniformly as conflicts.
const conflictWindow = 60 * time.Second

// Winner identifies which side a conflict resolution kept.
type Winner string

const (
	WinnerLocal  Winner = "local"
	WinnerRemote Winner = "remote"
)

// isConflict reports whether the two modification timestamps are close
// enough to be treated as a conflict rather than a clear ordering.
func isConflict(remoteModified, localModified time.Time) bool {
	delta := remoteModified.Sub(localModified)
	if delta < 0 {
		delta = -delta
	}
	return delta < conflictWindow
}

// resolveWinner applies last-modified-wins: the remote side wins only when
// its timestamp is strictly newer.
func resolveWinner(localModified, remoteModified time.Time) Winner {
	if remoteModified.After(localModified) {
		return WinnerRemote
	}
	return WinnerLocal
}
