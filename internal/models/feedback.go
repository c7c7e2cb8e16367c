package models

import "time"

// Feedback represents a user-submitted rating with free-text content
type Feedback struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id,omitempty"` // 0 for anonymous submissions
	Rating    int       `json:"rating"`
	Category  string    `json:"category"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Anonymous reports whether the record has no owning user.
func (f *Feedback) Anonymous() bool {
	return f.UserID == 0
}
