package models

import "time"

// TextDocument is a text stored by the persistence service.
type TextDocument struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// SaveTextRequest is the JSON body exchanged on /publish-text and /save-text.
type SaveTextRequest struct {
	Text string `json:"text"`
}
