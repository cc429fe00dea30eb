// Package rest is the HTTP collaborator that loads entity collections from
// the automation server.
package rest

import (
	"context"

	"github.com/micro-ha/entitycache/internal/model"
)

const (
	PathThings       = "/things"
	PathItems        = "/items"
	PathBindings     = "/bindings"
	PathRules        = "/rules"
	PathThingTypes   = "/thing-types"
	PathChannelTypes = "/channel-types"
	PathInbox        = "/inbox"
	PathTemplates    = "/templates"
)

func (c *Client) Things(ctx context.Context) ([]model.Thing, error) {
	return FetchAll[model.Thing](ctx, c, PathThings)
}

// Items loads items without group member expansion.
func (c *Client) Items(ctx context.Context) ([]model.Item, error) {
	return FetchAll[model.Item](ctx, c, PathItems+"?recursive=false")
}

func (c *Client) Bindings(ctx context.Context) ([]model.Binding, error) {
	return FetchAll[model.Binding](ctx, c, PathBindings)
}

func (c *Client) Rules(ctx context.Context) ([]model.Rule, error) {
	return FetchAll[model.Rule](ctx, c, PathRules)
}

func (c *Client) ThingTypes(ctx context.Context) ([]model.ThingType, error) {
	return FetchAll[model.ThingType](ctx, c, PathThingTypes)
}

// ThingType loads one thing type with its channel and parameter definitions.
func (c *Client) ThingType(ctx context.Context, uid string) (model.ThingType, error) {
	return FetchOne[model.ThingType](ctx, c, PathThingTypes, uid)
}

func (c *Client) ChannelTypes(ctx context.Context) ([]model.ChannelType, error) {
	return FetchAll[model.ChannelType](ctx, c, PathChannelTypes)
}

func (c *Client) Inbox(ctx context.Context) ([]model.DiscoveryResult, error) {
	return FetchAll[model.DiscoveryResult](ctx, c, PathInbox)
}

func (c *Client) Templates(ctx context.Context) ([]model.Template, error) {
	return FetchAll[model.Template](ctx, c, PathTemplates)
}
