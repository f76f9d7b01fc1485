package models

// ChatMessage is an inbound chat event.
type ChatMessage struct {
	Text    string `json:"text"`
	Channel string `json:"channel"`
	Author  string `json:"author"`
	IsEcho  bool   `json:"is_echo"` // sent by the bot itself
}

// IngestResult describes what ingestion did with a chat message.
type IngestResult int

const (
	IngestIgnored IngestResult = iota // echo or empty after cleaning
	IngestRejectedLength
	IngestRejectedFilter
	IngestDuplicate
	IngestLearned
)

var ingestNames = map[IngestResult]string{
	IngestIgnored:        "ignored",
	IngestRejectedLength: "rejected_length",
	IngestRejectedFilter: "rejected_filter",
	IngestDuplicate:      "duplicate",
	IngestLearned:        "learned",
}

func (r IngestResult) String() string {
	if name, ok := ingestNames[r]; ok {
		return name
	}
	return "unknown"
}
