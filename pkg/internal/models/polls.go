package models

import "time"

// Poll is replaced as a whole by updates, votes never merge option by option.
type Poll struct {
	Question  string       `json:"question"`
	Options   []PollOption `json:"options"`
	ExpiresAt *time.Time   `json:"expires_at"`
}

type PollOption struct {
	Text      string   `json:"text"`
	VoteCount int      `json:"vote_count"`
	VoterIDs  []string `json:"voter_ids"`
}
