package jsonfeed

// feedResponse is the schedule feed payload.
type feedResponse struct {
	Announcements []announcement `json:"announcements"`
}

type announcement struct {
	Candidate string   `json:"candidate"`
	StartAt   string   `json:"start_at"`
	Location  string   `json:"location"`
	Address   string   `json:"address,omitempty"`
	URL       string   `json:"url,omitempty"`
	Speakers  []string `json:"speakers,omitempty"`
}
