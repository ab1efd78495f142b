package serper

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "key", r.Header.Get("X-API-KEY"))
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "langgraph", body["q"])
		assert.EqualValues(t, 2, body["num"])
		fmt.Fprint(w, `{"organic":[
			{"title":"a","link":"https://a","snippet":"LangGraph builds agent graphs."},
			{"title":"b","link":"https://b","snippet":"It supports cycles."},
			{"title":"c","link":"https://c","snippet":"Extra."}
		]}`)
	}))
	defer srv.Close()

	s, err := New(Config{APIKey: "key", BaseURL: srv.URL})
	require.NoError(t, err)
	out, err := s.Search(context.Background(), "langgraph", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"LangGraph builds agent graphs.", "It supports cycles."}, out)
}

func TestSearchEmptyOrganic(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{}`)
	}))
	defer srv.Close()

	s, err := New(Config{APIKey: "key", BaseURL: srv.URL})
	require.NoError(t, err)
	out, err := s.Search(context.Background(), "q", 5)
	require.NoError(t, err)
	assert.NotNil(t, out)
	assert.Empty(t, out)
}
