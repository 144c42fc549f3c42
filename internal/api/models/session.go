package models

// Affordances lists the session actions currently accepted.
type Affordances struct {
	RevealMore  bool `json:"revealMore"`
	ExportCSV   bool `json:"exportCsv"`
	ExportJSON  bool `json:"exportJson"`
	CompareHubs bool `json:"compareHubs"`
}

// SessionLinks are the action endpoints of a session.
type SessionLinks struct {
	Self        string `json:"self"`
	More        string `json:"more"`
	Export      string `json:"export"`
	CompareHubs string `json:"compareHubs,omitempty"`
	Map         string `json:"map"`
}

// Expiry describes how a session ended.
type Expiry struct {
	At Timestamp `json:"at"`
	// BackToTop is set when the first page is worth linking back to.
	BackToTop bool `json:"backToTop"`
}

// MapInfo is the state of the routes map.
type MapInfo struct {
	Status   string `json:"status"`
	Filename string `json:"filename,omitempty"`
}

// SessionView is the response of GET /v1/sessions/{id}.
type SessionView struct {
	SessionID   string       `json:"sessionId"`
	State       string       `json:"state"`
	Cursor      int          `json:"cursor"`
	Total       int          `json:"total"`
	CreatedAt   Timestamp    `json:"createdAt"`
	ExpiresAt   *Timestamp   `json:"expiresAt,omitempty"`
	Affordances Affordances  `json:"affordances"`
	Expiry      *Expiry      `json:"expiry,omitempty"`
	Map         MapInfo      `json:"map"`
	Links       SessionLinks `json:"links"`
}

// PageResponse is the response of an accepted reveal-more.
type PageResponse struct {
	Accepted    bool        `json:"accepted"`
	SessionID   string      `json:"sessionId"`
	Routes      []RouteView `json:"routes"`
	Page        PageMeta    `json:"page"`
	Affordances Affordances `json:"affordances"`
	ExpiresAt   Timestamp   `json:"expiresAt"`
}

// ActionRejected answers an action the session no longer accepts.
// It is a normal 200 response: the action is simply a no-op.
type ActionRejected struct {
	Accepted    bool        `json:"accepted"`
	State       string      `json:"state"`
	Reason      string      `json:"reason"`
	Affordances Affordances `json:"affordances"`
	Expiry      *Expiry     `json:"expiry,omitempty"`
}

// MapPending answers a map request while the map is still rendering.
type MapPending struct {
	Status string `json:"status"`
}
