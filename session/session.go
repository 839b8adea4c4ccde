package session

// Advertiser is a tenant summary the authenticated user may act as.
// The list order matters: the first advertiser is the default scope after
// login or a failed scope restore.
type Advertiser struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// User is the authenticated profile returned by the dashboard API.
type User struct {
	ID          string       `json:"id"`
	Email       string       `json:"email"`
	Name        string       `json:"name"`
	Advertisers []Advertiser `json:"advertisers"`
}

// LoginResult is the response body of a successful credential login.
type LoginResult struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}

// HasAdvertiser reports whether the user may act as the given advertiser.
func (u *User) HasAdvertiser(id int64) bool {
	if u == nil {
		return false
	}
	for _, a := range u.Advertisers {
		if a.ID == id {
			return true
		}
	}
	return false
}

// FirstAdvertiser returns the default advertiser, false when the user has none.
func (u *User) FirstAdvertiser() (int64, bool) {
	if u == nil || len(u.Advertisers) == 0 {
		return 0, false
	}
	return u.Advertisers[0].ID, true
}
