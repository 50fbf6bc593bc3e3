package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitalvas/apicontract/internal/config"
)

const petsYAML = `openapi: 3.0.3
info:
  title: Pets
  version: 1.0.0
paths: {}
components:
  schemas:
    Pet:
      type: object
      properties:
        name:
          type: string
        tag:
          type: string
      required: [name]
    NamedPet:
      type: object
      properties:
        name:
          type: string
        tag:
          type: string
        age:
          type: integer
          format: int64
          minimum: 0
      required: [name, tag]
    Pets:
      type: array
      items:
        $ref: '#/components/schemas/Pet'
`

// executeCommand runs a fresh command tree and returns stdout, stderr and
// the error.
func executeCommand(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()

	root := NewRootCommand()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)

	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

// workdir switches into a temp directory holding pets.yaml.
func workdir(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pets.yaml"), []byte(petsYAML), 0o644))
	t.Chdir(dir)
	return dir
}

func writePayload(t *testing.T, dir, content string) string {
	t.Helper()

	path := filepath.Join(dir, "payload.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRootCommand(t *testing.T) {
	t.Run("help", func(t *testing.T) {
		out, _, err := executeCommand(t, "", "--help")
		require.NoError(t, err)

		assert.Contains(t, out, "apicontract")
		assert.Contains(t, out, "Available Commands")
		for _, name := range []string{"check", "validate", "compat", "version"} {
			assert.Contains(t, out, name)
		}
	})

	t.Run("global flags", func(t *testing.T) {
		out, _, err := executeCommand(t, "", "--help")
		require.NoError(t, err)

		for _, flag := range []string{"--config", "--output", "--format", "--log-level"} {
			assert.Contains(t, out, flag)
		}
	})

	t.Run("unknown command", func(t *testing.T) {
		_, _, err := executeCommand(t, "", "frobnicate")
		assert.Error(t, err)
		assert.Equal(t, ExitCodeError, ExitCode(err))
	})

	t.Run("invalid config", func(t *testing.T) {
		workdir(t)

		_, _, err := executeCommand(t, "", "--format", "xml", "check", "pets.yaml")
		require.Error(t, err)
		assert.True(t, config.IsValidationError(err))
		assert.Equal(t, ExitCodeError, ExitCode(err))
	})
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, ExitCodeOK, ExitCode(nil))
	assert.Equal(t, ExitCodeFindings, ExitCode(&ExitError{Code: ExitCodeFindings}))
	assert.Equal(t, ExitCodeError, ExitCode(errors.New("boom")))
	assert.Equal(t, "exit status 1", (&ExitError{Code: 1}).Error())
}

func TestVersionCommand(t *testing.T) {
	out, _, err := executeCommand(t, "", "version")
	require.NoError(t, err)

	assert.Contains(t, out, "apicontract dev")
	assert.Contains(t, out, "Go Version:")
	assert.Equal(t, "apicontract dev (commit: unknown, built: unknown)", VersionInfo())
}

func TestCheckCommand(t *testing.T) {
	t.Run("valid document", func(t *testing.T) {
		workdir(t)

		out, _, err := executeCommand(t, "", "check", "pets.yaml")
		require.NoError(t, err)
		assert.Equal(t, "ok: 3 schemas\n  NamedPet\n  Pet\n  Pets\n", out)
	})

	t.Run("configured document", func(t *testing.T) {
		dir := workdir(t)
		require.NoError(t, os.WriteFile(filepath.Join(dir, "apicontract.yaml"), []byte("schemas: pets.yaml\n"), 0o644))

		out, _, err := executeCommand(t, "", "check")
		require.NoError(t, err)
		assert.Contains(t, out, "ok: 3 schemas")
	})

	t.Run("missing document", func(t *testing.T) {
		workdir(t)

		_, _, err := executeCommand(t, "", "check", "missing.yaml")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read document")
	})

	t.Run("unresolved reference", func(t *testing.T) {
		dir := workdir(t)
		broken := strings.Replace(petsYAML, "'#/components/schemas/Pet'", "'#/components/schemas/Cat'", 1)
		require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte(broken), 0o644))

		_, _, err := executeCommand(t, "", "check", "broken.yaml")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "broken.yaml")
		assert.Contains(t, err.Error(), "Cat")
		assert.Equal(t, ExitCodeError, ExitCode(err))
	})

	t.Run("write json output", func(t *testing.T) {
		dir := workdir(t)

		_, _, err := executeCommand(t, "", "check", "pets.yaml", "-o", "out/pets.json", "-f", "json")
		require.NoError(t, err)

		data, err := os.ReadFile(filepath.Join(dir, "out", "pets.json"))
		require.NoError(t, err)

		var doc map[string]any
		require.NoError(t, json.Unmarshal(data, &doc))
		assert.Equal(t, "3.0.3", doc["openapi"])
		assert.Equal(t, map[string]any{"title": "Pets", "version": "1.0.0"}, doc["info"])
		assert.Contains(t, doc["components"].(map[string]any)["schemas"], "NamedPet")
	})

	t.Run("write yaml output", func(t *testing.T) {
		dir := workdir(t)

		_, stderr, err := executeCommand(t, "", "--log-level", "info", "check", "pets.yaml", "-o", "pets.out.yaml")
		require.NoError(t, err)
		assert.Contains(t, stderr, "document written")

		data, err := os.ReadFile(filepath.Join(dir, "pets.out.yaml"))
		require.NoError(t, err)
		assert.Contains(t, string(data), "openapi: 3.0.3")

		out, _, err := executeCommand(t, "", "check", "pets.out.yaml")
		require.NoError(t, err)
		assert.Contains(t, out, "ok: 3 schemas")
	})
}

func TestValidateCommand(t *testing.T) {
	t.Run("valid payload", func(t *testing.T) {
		dir := workdir(t)
		payload := writePayload(t, dir, `{"name": "Rex", "tag": "dog"}`)

		out, _, err := executeCommand(t, "", "validate", "pets.yaml", "Pet", payload)
		require.NoError(t, err)
		assert.Equal(t, "ok\n", out)
	})

	t.Run("messages", func(t *testing.T) {
		dir := workdir(t)
		payload := writePayload(t, dir, `[{"name": "Rex"}, {"name": 7}]`)

		out, _, err := executeCommand(t, "", "validate", "pets.yaml", "Pets", payload)
		require.Error(t, err)
		assert.Equal(t, ExitCodeFindings, ExitCode(err))
		assert.True(t, strings.HasPrefix(out, "/1/name: "), out)
	})

	t.Run("json output", func(t *testing.T) {
		workdir(t)

		out, _, err := executeCommand(t, `{"tag": "dog"}`, "validate", "pets.yaml", "Pet", "-", "--json")
		require.Error(t, err)
		assert.Equal(t, ExitCodeFindings, ExitCode(err))

		var body struct {
			Errors []struct {
				Path []any  `json:"path"`
				Kind string `json:"kind"`
			} `json:"errors"`
		}
		require.NoError(t, json.Unmarshal([]byte(out), &body))
		require.Len(t, body.Errors, 1)
		assert.Equal(t, "required", body.Errors[0].Kind)
		assert.Equal(t, []any{"name"}, body.Errors[0].Path)
	})

	t.Run("json output without messages", func(t *testing.T) {
		workdir(t)

		out, _, err := executeCommand(t, `{"name": "Rex"}`, "validate", "pets.yaml", "Pet", "-", "--json")
		require.NoError(t, err)
		assert.JSONEq(t, `{"errors": []}`, out)
	})

	t.Run("unknown schema", func(t *testing.T) {
		dir := workdir(t)
		payload := writePayload(t, dir, `{}`)

		_, _, err := executeCommand(t, "", "validate", "pets.yaml", "Cat", payload)
		require.Error(t, err)
		assert.Equal(t, ExitCodeError, ExitCode(err))
	})

	t.Run("malformed payload", func(t *testing.T) {
		workdir(t)

		for _, payload := range []string{`{"name":`, `{"name": "Rex"} {}`} {
			_, _, err := executeCommand(t, payload, "validate", "pets.yaml", "Pet", "-")
			require.Error(t, err)
			assert.Contains(t, err.Error(), "failed to decode payload")
		}
	})

	t.Run("wrong number of arguments", func(t *testing.T) {
		workdir(t)

		_, _, err := executeCommand(t, "", "validate", "pets.yaml", "Pet")
		assert.Error(t, err)
	})
}

func TestCompatCommand(t *testing.T) {
	tests := []struct {
		name      string
		candidate string
		target    string
		out       string
		code      int
	}{
		{"wider candidate", "NamedPet", "Pet", "NamedPet is compatible with Pet\n", ExitCodeOK},
		{"missing property", "Pet", "NamedPet", "Pet is not compatible with NamedPet\n", ExitCodeFindings},
		{"same schema", "Pet", "Pet", "Pet is compatible with Pet\n", ExitCodeOK},
		{"different shapes", "Pets", "Pet", "Pets is not compatible with Pet\n", ExitCodeFindings},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			workdir(t)

			out, _, err := executeCommand(t, "", "compat", "pets.yaml", tt.candidate, tt.target)
			assert.Equal(t, tt.out, out)
			assert.Equal(t, tt.code, ExitCode(err))
		})
	}

	t.Run("unknown schema", func(t *testing.T) {
		workdir(t)

		out, _, err := executeCommand(t, "", "compat", "pets.yaml", "Pet", "Cat")
		require.Error(t, err)
		assert.Empty(t, out)
		assert.Equal(t, ExitCodeError, ExitCode(err))
	})
}

func TestNewLogger(t *testing.T) {
	t.Run("text", func(t *testing.T) {
		var buf bytes.Buffer
		logger := newLogger(config.LogConfig{Level: "info", Format: "text"}, &buf)

		logger.Debug("hidden")
		logger.Info("shown", "key", "value")
		assert.NotContains(t, buf.String(), "hidden")
		assert.Contains(t, buf.String(), "msg=shown key=value")
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		logger := newLogger(config.LogConfig{Level: "debug", Format: "json"}, &buf)

		logger.Debug("shown")
		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "shown", entry["msg"])
		assert.Equal(t, "DEBUG", entry["level"])
	})

	t.Run("unknown level falls back to warn", func(t *testing.T) {
		var buf bytes.Buffer
		logger := newLogger(config.LogConfig{Level: "loud"}, &buf)

		logger.Info("hidden")
		logger.Warn("shown")
		assert.NotContains(t, buf.String(), "hidden")
		assert.Contains(t, buf.String(), "shown")
	})
}
