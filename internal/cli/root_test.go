package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/micro-ha/entitycache/internal/event"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "entitycache", cmd.Use)
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"serve", "tail"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()
	format := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, format)
	assert.Equal(t, "json", format.DefValue)
	require.NotNil(t, cmd.PersistentFlags().Lookup("config"))
	require.NotNil(t, cmd.PersistentFlags().Lookup("log-level"))
}

func TestServeFlags(t *testing.T) {
	cmd := NewRootCommand()
	serve, _, err := cmd.Find([]string{"serve"})
	require.NoError(t, err)
	for _, name := range []string{"addr", "db", "no-persist"} {
		assert.NotNil(t, serve.Flags().Lookup(name), name)
	}
}

func TestInvalidFormatIsRejected(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetArgs([]string{"tail", "smarthome/*", "--format", "xml"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestTailRequiresPattern(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetArgs([]string{"tail"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	require.Error(t, cmd.Execute())
}

func TestPrinterJSON(t *testing.T) {
	var buf bytes.Buffer
	printer := newPrinter(&buf, "json")
	evt := event.ParseTopic("smarthome/items/Temp/state")
	evt.Payload = json.RawMessage(`{"value":"21"}`)
	require.NoError(t, printer(evt))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "state", line["kind"])
	assert.Equal(t, "Temp", line["id"])
	assert.Equal(t, map[string]any{"value": "21"}, line["payload"])
}

func TestPrinterText(t *testing.T) {
	var buf bytes.Buffer
	printer := newPrinter(&buf, "text")
	require.NoError(t, printer(event.ParseTopic("smarthome/things/T/removed")))
	assert.Contains(t, buf.String(), "removed")
	assert.Contains(t, buf.String(), "smarthome/things/T/removed")
}
