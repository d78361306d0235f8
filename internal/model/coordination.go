package model

// CoordinationRecord is the record shared by cooperating instances.
type CoordinationRecord struct {
	WinnerNode *string `json:"winnerNode"`
	Exit       bool    `json:"exit"`
}

// OtherWinner reports whether an instance other than node has won.
func (r CoordinationRecord) OtherWinner(node string) bool {
	return r.WinnerNode != nil && *r.WinnerNode != node
}
