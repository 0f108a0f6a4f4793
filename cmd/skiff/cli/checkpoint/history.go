package checkpoint

// History is the conversation-history collaborator consumed by restore. The
// engine never inspects entry content, only counts: Len reports the current
// number of entries, Pop discards the most recent entry and reports whether
// one existed.
type History interface {
	Len() int
	Pop() bool
}
