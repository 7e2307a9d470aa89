package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoutesCommand(t *testing.T) {
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"routes"})

	require.NoError(t, cmd.Execute())

	var routes []routeInfo
	require.NoError(t, json.Unmarshal(out.Bytes(), &routes))
	require.Len(t, routes, 7)
	assert.Equal(t, routeInfo{Method: "POST", Path: "/api/v1/users", Endpoint: "users.register", Schema: "register_user", Status: 201}, routes[0])
}
