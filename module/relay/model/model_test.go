package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	req := require.New(t)

	r, err := ParseRole("Sender")
	req.NoError(err)
	req.Equal(RoleSender, r)

	r, err = ParseRole(" receiver ")
	req.NoError(err)
	req.Equal(RoleReceiver, r)

	_, err = ParseRole("recever")
	req.Error(err)
}

func TestRoleSet(t *testing.T) {
	req := require.New(t)

	var empty RoleSet
	req.True(empty.IsEmpty())
	req.False(empty.Has(RoleSender))

	s, unknown := ParseRoleSet([]string{"receiver", "admin", "sender", "receiver"})
	req.Equal([]string{"admin"}, unknown)
	req.True(s.Has(RoleSender))
	req.True(s.Has(RoleReceiver))
	req.Equal([]Role{RoleSender, RoleReceiver}, s.Roles())
	req.Equal([]string{"receiver", "sender"}, s.Strings())

	req.False(NewRoleSet(RoleReceiver).Has(RoleSender))
	req.False(NewRoleSet(RoleReceiver).Has(Role(0)))
}

func TestAuthContextJSON(t *testing.T) {
	req := require.New(t)

	in := AuthContext{
		Channel: Channel{ID: "chan-1", Name: "Office", OwnerID: "o", Members: []string{"a", "b"}},
		Client:  Client{ID: "a", Name: "Desk", Roles: NewRoleSet(RoleSender)},
		Token:   TokenInfo{Token: "t", ExpiresIn: 300},
	}
	b, err := json.Marshal(in)
	req.NoError(err)
	req.Contains(string(b), `"roles":["sender"]`)
	req.Contains(string(b), `"expires_in":300`)

	var out AuthContext
	req.NoError(json.Unmarshal(b, &out))
	req.Equal(in, out)

	req.Error(json.Unmarshal([]byte(`{"client":{"roles":["root"]}}`), &out))
}

func TestChannelIsMember(t *testing.T) {
	req := require.New(t)
	ch := &Channel{Members: []string{"a", "b"}}
	req.True(ch.IsMember("b"))
	req.False(ch.IsMember("c"))

	var nilCh *Channel
	req.False(nilCh.IsMember("a"))
}
