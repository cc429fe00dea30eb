package topic

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchWholeTopicOnly(t *testing.T) {
	m := Compile("smarthome/things/*/status")

	assert.True(t, m.Match("smarthome/things/T1/status"))
	assert.True(t, m.Match("smarthome/things/zwave:device:ctrl:node4/status"))
	assert.False(t, m.Match("smarthome/things/T1/statuschanged"))
	assert.False(t, m.Match("smarthome/thing/T1/status"))
	assert.False(t, m.Match("prefix/smarthome/things/T1/status"))
}

func TestMatchWithoutWildcard(t *testing.T) {
	m := Compile("smarthome/items/Lamp/state")

	assert.True(t, m.Match("smarthome/items/Lamp/state"))
	assert.False(t, m.Match("smarthome/items/Lamp2/state"))
}

func TestMatchQuotesMetacharacters(t *testing.T) {
	m := Compile("smarthome/links/*/added")

	assert.True(t, m.Match("smarthome/links/Lamp-hue:0210:bridge:1:color/added"))
	assert.False(t, m.Match("smarthome/linksX/a/added"))

	dotted := Compile("a.b/*")
	assert.True(t, dotted.Match("a.b/c"))
	assert.False(t, dotted.Match("aXb/c"))
}

func TestOnlyFirstWildcardExpands(t *testing.T) {
	m := Compile("smarthome/*/x/*")

	assert.True(t, m.Match("smarthome/things/x/*"))
	assert.False(t, m.Match("smarthome/things/x/added"))
}

func TestNilMatcherNeverMatches(t *testing.T) {
	var m *Matcher
	assert.False(t, m.Match("anything"))
}
