package model

// Client is a credentialed identity loaded from storage.
type Client struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Roles      RoleSet `json:"roles"`
	SecretHash string  `json:"secret_hash"`
}

func (c *Client) HasRole(r Role) bool {
	return c != nil && c.Roles.Has(r)
}

// Channel is the named group ("socket") a client may join.
type Channel struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	OwnerID string   `json:"owner_id"`
	Members []string `json:"members"`
}

func (c *Channel) IsMember(clientID string) bool {
	if c == nil {
		return false
	}
	for _, m := range c.Members {
		if m == clientID {
			return true
		}
	}
	return false
}

// TokenInfo is the issued token as returned to callers.
type TokenInfo struct {
	Token     string `json:"token"`
	ExpiresIn int    `json:"expires_in"`
}

// AuthContext binds a client to its channel and issued token.
type AuthContext struct {
	Channel Channel   `json:"channel"`
	Client  Client    `json:"client"`
	Token   TokenInfo `json:"token"`
}
