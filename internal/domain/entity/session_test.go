package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSessionStateIsEmpty(t *testing.T) {
	var nilState *SessionState
	assert.True(t, nilState.IsEmpty())
	assert.True(t, (&SessionState{}).IsEmpty())
	assert.True(t, (&SessionState{Origins: []OriginState{{Origin: "https://a.example"}}}).IsEmpty())
	assert.False(t, (&SessionState{Cookies: []Cookie{{Name: "sid", Value: "1"}}}).IsEmpty())
	assert.False(t, (&SessionState{Origins: []OriginState{{
		Origin:       "https://a.example",
		LocalStorage: []NameValue{{Name: "token", Value: "t"}},
	}}}).IsEmpty())
}

func TestCookieIsSession(t *testing.T) {
	assert.True(t, Cookie{Expires: -1}.IsSession())
	assert.True(t, Cookie{}.IsSession())
	assert.False(t, Cookie{Expires: 1767225600.5}.IsSession())
}
