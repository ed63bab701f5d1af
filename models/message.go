package models

// Message is a chat line stored by the sample client.
type Message struct {
	Author    string `json:"author"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"`
}
