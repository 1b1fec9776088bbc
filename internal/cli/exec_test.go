package cli

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const usersSeed = `[
  {"name": "ann", "age": 31, "city": "Oslo"},
  {"name": "bob", "age": 25, "city": "Bergen"},
  {"name": "cid", "age": 40, "city": "Oslo"}
]`

type execFixture struct {
	models string
	db     string
	seed   string
	dir    string
}

func newExecFixture(t *testing.T) execFixture {
	t.Helper()
	dir := t.TempDir()
	return execFixture{
		models: writeModels(t, usersModel),
		db:     filepath.Join(dir, "docq.db"),
		seed:   writeFile(t, dir, "users.json", usersSeed),
		dir:    dir,
	}
}

func TestExecSeedAndQuery(t *testing.T) {
	f := newExecFixture(t)
	queryFile := writeFile(t, f.dir, "adults.yaml", adultsQuery)

	out, err := runRoot(t, "exec", "--models", f.models, "--db", f.db, "--seed", f.seed, queryFile)
	require.NoError(t, err)
	assert.Equal(t,
		`{"age":40,"city":"Oslo","name":"cid"}`+"\n"+`{"age":31,"city":"Oslo","name":"ann"}`+"\n",
		out)
}

func TestExecReusesDatabase(t *testing.T) {
	f := newExecFixture(t)
	countFile := writeFile(t, f.dir, "count.yaml", `name: count
model: User
operation:
  aggregate: count
`)

	_, err := runRoot(t, "exec", "--models", f.models, "--db", f.db, "--seed", f.seed, countFile)
	require.NoError(t, err)

	out, err := runRoot(t, "exec", "--models", f.models, "--db", f.db, countFile)
	require.NoError(t, err)
	assert.Equal(t, `{"value":3}`+"\n", out)
}

func TestExecJSON(t *testing.T) {
	f := newExecFixture(t)
	queryFile := writeFile(t, f.dir, "oslo.yaml", `name: oslo
model: User
where:
  - { field: city, op: eq, value: Oslo }
sampling:
  - order_by: [{ field: name }]
`)

	out, err := runRoot(t, "--format", "json", "exec", "--models", f.models, "--db", f.db, "--seed", f.seed, queryFile)
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   ExecResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "User", resp.Data.Model)
	assert.Equal(t, 3, resp.Data.Seeded)
	assert.Equal(t, "name", resp.Data.Index)
	assert.NotEmpty(t, resp.Data.BuildID)
	require.Len(t, resp.Data.Documents, 2)
	assert.Equal(t, "ann", resp.Data.Documents[0].(map[string]any)["name"])
	assert.Equal(t, "cid", resp.Data.Documents[1].(map[string]any)["name"])
}

func TestExecUpdate(t *testing.T) {
	f := newExecFixture(t)
	updateFile := writeFile(t, f.dir, "relocate.yaml", `name: relocate
model: User
where:
  - { field: name, op: eq, value: bob }
operation:
  update: { city: Oslo }
`)
	osloFile := writeFile(t, f.dir, "oslo.yaml", `name: oslo
model: User
where:
  - { field: city, op: eq, value: Oslo }
operation:
  aggregate: count
`)

	out, err := runRoot(t, "exec", "--models", f.models, "--db", f.db, "--seed", f.seed, updateFile)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Update applied")

	out, err = runRoot(t, "exec", "--models", f.models, "--db", f.db, osloFile)
	require.NoError(t, err)
	assert.Equal(t, `{"value":3}`+"\n", out)
}

func TestExecEmptyResult(t *testing.T) {
	f := newExecFixture(t)
	queryFile := writeFile(t, f.dir, "none.yaml", `name: none
model: User
where:
  - { field: age, op: gt, value: 100 }
`)

	out, err := runRoot(t, "--format", "json", "exec", "--models", f.models, "--db", f.db, "--seed", f.seed, queryFile)
	require.NoError(t, err)
	assert.Contains(t, out, `"documents": []`)
}

func TestExecSeedErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantMsg string
	}{
		{"not an array", `{"name": "ann"}`, "expected a JSON array"},
		{"non-object element", `[{"name": "ann"}, 42]`, "element 1"},
		{"invalid json", `[{`, "users.json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newExecFixture(t)
			writeFile(t, f.dir, "users.json", tt.content)
			queryFile := writeFile(t, f.dir, "adults.yaml", adultsQuery)

			out, err := runRoot(t, "exec", "--models", f.models, "--db", f.db, "--seed", f.seed, queryFile)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, out, "Error ["+ErrCodeStore+"]")
			assert.Contains(t, out, tt.wantMsg)
		})
	}
}

func TestExecUnknownModel(t *testing.T) {
	f := newExecFixture(t)
	queryFile := writeFile(t, f.dir, "orders.yaml", strings.Replace(adultsQuery, "model: User", "model: Order", 1))

	out, err := runRoot(t, "exec", "--models", f.models, "--db", f.db, queryFile)
	require.Error(t, err)
	assert.Contains(t, out, `unknown model "Order"`)
}

func TestExecRequiresFlags(t *testing.T) {
	_, err := runRoot(t, "exec", "query.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
}
