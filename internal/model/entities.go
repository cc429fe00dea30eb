package model

// Collection names used as storage keys in the application state.
const (
	CollectionThings       = "things"
	CollectionItems        = "items"
	CollectionBindings     = "bindings"
	CollectionRules        = "rules"
	CollectionThingTypes   = "thingTypes"
	CollectionChannelTypes = "channelTypes"
	CollectionInbox        = "inbox"
	CollectionTemplates    = "templates"
)

// StatusInfo is the status sub-object of things and rules.
type StatusInfo struct {
	Status       string `json:"status"`
	StatusDetail string `json:"statusDetail,omitempty"`
	Description  string `json:"description,omitempty"`
}

type Channel struct {
	UID            string            `json:"uid"`
	ID             string            `json:"id"`
	ChannelTypeUID string            `json:"channelTypeUID,omitempty"`
	ItemType       string            `json:"itemType,omitempty"`
	Kind           string            `json:"kind,omitempty"`
	Label          string            `json:"label,omitempty"`
	Description    string            `json:"description,omitempty"`
	LinkedItems    []string          `json:"linkedItems"`
	DefaultTags    []string          `json:"defaultTags,omitempty"`
	Properties     map[string]string `json:"properties,omitempty"`
	Configuration  map[string]any    `json:"configuration,omitempty"`
}

type Thing struct {
	UID           string            `json:"UID"`
	ThingTypeUID  string            `json:"thingTypeUID"`
	BridgeUID     string            `json:"bridgeUID,omitempty"`
	Label         string            `json:"label"`
	Location      string            `json:"location,omitempty"`
	Configuration map[string]any    `json:"configuration,omitempty"`
	Properties    map[string]string `json:"properties,omitempty"`
	Channels      []Channel         `json:"channels"`
	StatusInfo    StatusInfo        `json:"statusInfo"`
	Editable      bool              `json:"editable"`
}

// ThingKey is the identity of a thing.
func ThingKey(t *Thing) string { return t.UID }

// Channel returns the thing's channel with id, or nil.
func (t *Thing) Channel(id string) *Channel {
	for i := range t.Channels {
		if t.Channels[i].ID == id {
			return &t.Channels[i]
		}
	}
	return nil
}

type Item struct {
	Name       string   `json:"name"`
	Type       string   `json:"type"`
	Label      string   `json:"label,omitempty"`
	Category   string   `json:"category,omitempty"`
	Tags       []string `json:"tags"`
	GroupNames []string `json:"groupNames"`
	State      string   `json:"state,omitempty"`
	Link       string   `json:"link,omitempty"`
	Editable   bool     `json:"editable"`
}

// ItemKey is the identity of an item.
func ItemKey(i *Item) string { return i.Name }

type Binding struct {
	ID                   string `json:"id"`
	Name                 string `json:"name"`
	Description          string `json:"description,omitempty"`
	Author               string `json:"author,omitempty"`
	ConfigDescriptionURI string `json:"configDescriptionURI,omitempty"`
}

// BindingKey is the identity of a binding.
func BindingKey(b *Binding) string { return b.ID }

// Module is one trigger, condition or action of a rule or template.
type Module struct {
	ID            string         `json:"id"`
	Label         string         `json:"label,omitempty"`
	Description   string         `json:"description,omitempty"`
	Type          string         `json:"type"`
	Configuration map[string]any `json:"configuration,omitempty"`
}

type Rule struct {
	UID           string         `json:"uid"`
	Name          string         `json:"name"`
	Description   string         `json:"description,omitempty"`
	Tags          []string       `json:"tags,omitempty"`
	Visibility    string         `json:"visibility,omitempty"`
	Enabled       bool           `json:"enabled"`
	Triggers      []Module       `json:"triggers"`
	Conditions    []Module       `json:"conditions"`
	Actions       []Module       `json:"actions"`
	Configuration map[string]any `json:"configuration,omitempty"`
	Status        *StatusInfo    `json:"status,omitempty"`
}

// RuleKey is the identity of a rule.
func RuleKey(r *Rule) string { return r.UID }

type ChannelDefinition struct {
	ID          string `json:"id"`
	TypeUID     string `json:"typeUID"`
	Label       string `json:"label,omitempty"`
	Description string `json:"description,omitempty"`
	ItemType    string `json:"itemType,omitempty"`
	Kind        string `json:"kind,omitempty"`
	Advanced    bool   `json:"advanced,omitempty"`
}

// ConfigParameter describes one configuration field of a thing type.
type ConfigParameter struct {
	Name         string `json:"name"`
	Type         string `json:"type"`
	Label        string `json:"label,omitempty"`
	Description  string `json:"description,omitempty"`
	Required     bool   `json:"required"`
	DefaultValue string `json:"defaultValue,omitempty"`
}

// ThingType is listed without channels and config parameters; the detail
// endpoint returns the full definition.
type ThingType struct {
	UID                     string              `json:"UID"`
	Label                   string              `json:"label"`
	Description             string              `json:"description,omitempty"`
	Category                string              `json:"category,omitempty"`
	Listed                  bool                `json:"listed"`
	Bridge                  bool                `json:"bridge"`
	SupportedBridgeTypeUIDs []string            `json:"supportedBridgeTypeUIDs,omitempty"`
	Channels                []ChannelDefinition `json:"channels,omitempty"`
	ConfigParameters        []ConfigParameter   `json:"configParameters,omitempty"`
	Properties              map[string]string   `json:"properties,omitempty"`
}

// ThingTypeKey is the identity of a thing type.
func ThingTypeKey(t *ThingType) string { return t.UID }

type ChannelType struct {
	UID         string   `json:"UID"`
	Label       string   `json:"label"`
	Description string   `json:"description,omitempty"`
	Category    string   `json:"category,omitempty"`
	ItemType    string   `json:"itemType,omitempty"`
	Kind        string   `json:"kind,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Advanced    bool     `json:"advanced"`
}

// ChannelTypeKey is the identity of a channel type.
func ChannelTypeKey(c *ChannelType) string { return c.UID }

// DiscoveryResult is an inbox entry proposed by a binding's discovery service.
type DiscoveryResult struct {
	ThingUID               string         `json:"thingUID"`
	ThingTypeUID           string         `json:"thingTypeUID,omitempty"`
	BridgeUID              string         `json:"bridgeUID,omitempty"`
	Flag                   string         `json:"flag"`
	Label                  string         `json:"label"`
	Properties             map[string]any `json:"properties,omitempty"`
	RepresentationProperty string         `json:"representationProperty,omitempty"`
}

// DiscoveryResultKey is the identity of an inbox entry.
func DiscoveryResultKey(d *DiscoveryResult) string { return d.ThingUID }

// Template is a rule template.
type Template struct {
	UID         string   `json:"uid"`
	Label       string   `json:"label"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Visibility  string   `json:"visibility,omitempty"`
	Triggers    []Module `json:"triggers,omitempty"`
	Conditions  []Module `json:"conditions,omitempty"`
	Actions     []Module `json:"actions,omitempty"`
}

// TemplateKey is the identity of a template.
func TemplateKey(t *Template) string { return t.UID }
