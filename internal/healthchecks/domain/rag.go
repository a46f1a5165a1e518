package domain

// RAGStatus is the red/amber/green severity of an inspection finding or a
// derived repair item.
type RAGStatus string

const (
	RAGGreen RAGStatus = "green"
	RAGAmber RAGStatus = "amber"
	RAGRed   RAGStatus = "red"
)

// IsValidRAG reports whether s is a known severity.
func IsValidRAG(s RAGStatus) bool {
	switch s {
	case RAGGreen, RAGAmber, RAGRed:
		return true
	}
	return false
}

// NeedsRepairItem reports whether a finding of this severity produces a
// billable repair item. Green findings never do.
func NeedsRepairItem(s RAGStatus) bool {
	return s == RAGAmber || s == RAGRed
}
