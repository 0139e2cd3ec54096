package entity

// SessionState 已认证浏览器上下文的可序列化快照.
// The JSON layout matches Playwright's storage_state document so a state file
// produced by either tool can bootstrap the other.
type SessionState struct {
	Cookies []Cookie      `json:"cookies"`
	Origins []OriginState `json:"origins"`
}

type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires"` // unix seconds, -1 for session cookies
	HTTPOnly bool    `json:"httpOnly"`
	Secure   bool    `json:"secure"`
	SameSite string  `json:"sameSite,omitempty"`
}

// IsSession reports whether the cookie lives only for the browser session.
func (c Cookie) IsSession() bool {
	return c.Expires <= 0
}

type OriginState struct {
	Origin       string      `json:"origin"`
	LocalStorage []NameValue `json:"localStorage"`
}

type NameValue struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// IsEmpty reports whether the state carries nothing worth restoring.
func (s *SessionState) IsEmpty() bool {
	if s == nil {
		return true
	}
	for _, o := range s.Origins {
		if len(o.LocalStorage) > 0 {
			return false
		}
	}
	return len(s.Cookies) == 0
}
