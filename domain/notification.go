package domain

// Notification is a message addressed to the current user. IsRead only ever
// moves from false to true.
type Notification struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	UserID    int64     `json:"user_id"`
	IsRead    bool      `json:"is_read"`
	CreatedAt Timestamp `json:"created_at"`
}

// UnreadCount counts notifications not yet marked as read.
func UnreadCount(ns []Notification) int {
	n := 0
	for _, item := range ns {
		if !item.IsRead {
			n++
		}
	}
	return n
}
