package storage

// Profile is a cached User Profile API response.
type Profile struct {
	UserID     string  `json:"user_id"`
	FirstName  string  `json:"first_name"`
	LastName   string  `json:"last_name"`
	ProfilePic string  `json:"profile_pic"`
	Locale     string  `json:"locale"`
	Timezone   float64 `json:"timezone"`
	Gender     string  `json:"gender"`
	CachedAt   int64   `json:"cached_at"`
}

// ArchivedSession is an ended conversation session.
type ArchivedSession struct {
	ID         string `json:"id"`
	UserID     string `json:"user_id"`
	State      string `json:"state"`
	Replaced   bool   `json:"replaced"`
	Snapshot   []byte `json:"-"` // JSON-encoded session snapshot
	StartedAt  int64  `json:"started_at"`
	EndedAt    int64  `json:"ended_at"`
	ArchivedAt int64  `json:"archived_at"`
}
