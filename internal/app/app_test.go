package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/micro-ha/entitycache/internal/config"
	"github.com/micro-ha/entitycache/internal/event"
	"github.com/micro-ha/entitycache/internal/model"
	"github.com/micro-ha/entitycache/internal/storage"
	"github.com/micro-ha/entitycache/internal/stream"
)

type idleTransport struct{}

func (idleTransport) Dial(ctx context.Context) (stream.Conn, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

type fakeServer struct {
	*httptest.Server
	detailCalls atomic.Int32
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	f := &fakeServer{}
	mux := http.NewServeMux()
	serve := func(path, body string) {
		mux.HandleFunc(path, func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(body))
		})
	}
	serve("/rest/things", `[{"UID":"hue:bulb:1","label":"Lamp","channels":[{"uid":"hue:bulb:1:color","id":"color","linkedItems":[]}],"statusInfo":{"status":"ONLINE"}}]`)
	serve("/rest/items", `[{"name":"Temp","type":"Number","state":"21"}]`)
	serve("/rest/bindings", `[{"id":"hue","name":"Hue"}]`)
	serve("/rest/rules", `[{"uid":"r1","name":"Night","triggers":[],"conditions":[],"actions":[]}]`)
	serve("/rest/thing-types", `[{"UID":"hue:bulb","label":"Bulb"}]`)
	serve("/rest/channel-types", `[]`)
	serve("/rest/inbox", `[]`)
	serve("/rest/templates", `[]`)
	mux.HandleFunc("/rest/thing-types/hue:bulb", func(w http.ResponseWriter, _ *http.Request) {
		f.detailCalls.Add(1)
		_, _ = w.Write([]byte(`{"UID":"hue:bulb","label":"Bulb","channels":[{"id":"color","typeUID":"hue:color"}]}`))
	})
	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Close)
	return f
}

func testConfig(serverURL string) config.Config {
	return config.Config{
		Server:          model.ServerConfig{Host: serverURL},
		EventsTransport: config.TransportSSE,
		RefreshInterval: 0,
	}
}

func TestNewRegistersEveryCollection(t *testing.T) {
	a, err := New(testConfig("http://127.0.0.1:1"), nil, WithTransport(idleTransport{}))
	require.NoError(t, err)

	names := make([]string, 0)
	for _, cache := range a.Collections() {
		names = append(names, cache.Name())
	}
	assert.Equal(t, []string{"things", "items", "bindings", "rules", "thingTypes", "channelTypes", "inbox", "templates"}, names)
	assert.Equal(t, []string{"bindings", "channelTypes", "inbox", "items", "rules", "templates", "thingTypes", "things"}, a.Store().Names())

	_, ok := a.Collection("things")
	assert.True(t, ok)
	_, ok = a.Collection("widgets")
	assert.False(t, ok)
}

func TestNewRejectsUnknownTransport(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:1")
	cfg.EventsTransport = "smoke-signals"
	_, err := New(cfg, nil)
	assert.ErrorIs(t, err, config.ErrInvalidTransport)
}

func TestPrimeAndEventsFlowIntoCaches(t *testing.T) {
	srv := newFakeServer(t)
	a, err := New(testConfig(srv.URL), nil, WithTransport(idleTransport{}))
	require.NoError(t, err)

	a.Prime(context.Background())
	assert.Equal(t, 1, a.Things.Len())
	assert.Equal(t, 1, a.Items.Len())
	assert.True(t, a.Rules.InitialFetch())

	a.Stream().Dispatch(event.Event{
		Topic:   "smarthome/things/hue:bulb:1/status",
		ID:      "hue:bulb:1",
		Kind:    event.KindStatus,
		Payload: json.RawMessage(`{"status":"OFFLINE"}`),
	})
	a.Stream().HandleFrame([]byte(`{"topic":"smarthome/links/Color-hue:bulb:1:color/added","payload":"{\"channelUID\":\"hue:bulb:1:color\",\"itemName\":\"Color\"}"}`))

	thing := a.Things.Items()[0]
	a.Store().View(func() {
		assert.Equal(t, "OFFLINE", thing.StatusInfo.Status)
		assert.Equal(t, []string{"Color"}, thing.Channel("color").LinkedItems)
	})
}

func TestThingTypeDetailIsFetchedOnce(t *testing.T) {
	srv := newFakeServer(t)
	a, err := New(testConfig(srv.URL), nil, WithTransport(idleTransport{}))
	require.NoError(t, err)
	a.Prime(context.Background())

	byUID := func(tt *model.ThingType) bool { return tt.UID == "hue:bulb" }
	for range 2 {
		tt, ok, err := a.ThingTypes.GetOne(context.Background(), byUID, false)
		require.NoError(t, err)
		require.True(t, ok)
		require.Len(t, tt.Channels, 1)
	}
	assert.EqualValues(t, 1, srv.detailCalls.Load())
}

func TestReconnectMarksEverythingDirty(t *testing.T) {
	srv := newFakeServer(t)
	a, err := New(testConfig(srv.URL), nil, WithTransport(idleTransport{}))
	require.NoError(t, err)
	a.Prime(context.Background())

	a.onReconnect()
	for _, cache := range a.Collections() {
		assert.True(t, cache.Dirty(), cache.Name())
	}
	assert.Equal(t, 0, a.Poller().ReconcileOnce(context.Background(), false))
	for _, cache := range a.Collections() {
		assert.False(t, cache.Dirty(), cache.Name())
	}
}

func TestSnapshotsSurviveRestart(t *testing.T) {
	srv := newFakeServer(t)
	db, err := storage.New(context.Background(), filepath.Join(t.TempDir(), "cache.db"), nil)
	require.NoError(t, err)
	defer db.Close()

	first, err := New(testConfig(srv.URL), nil, WithTransport(idleTransport{}), WithPersister(db))
	require.NoError(t, err)
	first.Prime(context.Background())

	second, err := New(testConfig("http://127.0.0.1:1"), nil, WithTransport(idleTransport{}), WithPersister(db))
	require.NoError(t, err)
	cache, _ := second.Collection("items")
	require.NoError(t, cache.Warm(context.Background()))
	assert.Equal(t, 1, cache.Len())
	assert.False(t, second.Items.InitialFetch())
}
