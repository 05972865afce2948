package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestProjectRecord_UnmarshalAlternateKeys(t *testing.T) {
	var p ProjectRecord
	err := json.Unmarshal([]byte(`{"title":"Chatbot","description":"RAG bot","technologies":["Go"],"github_link":"https://github.com/x/y"}`), &p)
	require.NoError(t, err)
	require.Equal(t, "Chatbot", p.Name)
	require.Equal(t, "https://github.com/x/y", p.Link)
	require.Equal(t, []string{"Go"}, p.Technologies)
}

func TestProjectRecord_NamePreferredOverTitle(t *testing.T) {
	var p ProjectRecord
	err := json.Unmarshal([]byte(`{"name":"Primary","title":"Secondary","link":"a","github_link":"b"}`), &p)
	require.NoError(t, err)
	require.Equal(t, "Primary", p.Name)
	require.Equal(t, "a", p.Link)
}

func TestPersonalInfo_IsEmpty(t *testing.T) {
	require.True(t, PersonalInfo{}.IsEmpty())
	require.True(t, PersonalInfo{Contact: map[string]string{"email": "a@b.c"}}.IsEmpty())
	require.False(t, PersonalInfo{Name: "Ada"}.IsEmpty())
}
