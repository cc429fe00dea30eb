package syncer

import (
	"fmt"
	"slices"
	"strings"

	"github.com/micro-ha/entitycache/internal/event"
	"github.com/micro-ha/entitycache/internal/model"
	"github.com/micro-ha/entitycache/internal/repository"
)

// Things keeps the things collection in step with thing and link events.
type Things struct {
	base
	repo *repository.Repository[model.Thing]
}

func NewThings(repo *repository.Repository[model.Thing], opts ...Option) *Things {
	return &Things{base: newBase(repo.Name(), opts), repo: repo}
}

// Register subscribes to thing lifecycle, status and link events.
func (s *Things) Register(sub Subscriber) {
	s.subscribe(sub, s.Handle, "things", "added", "removed", "updated", "status", "statuschanged")
	s.subscribe(sub, s.Handle, event.EntityLinks, "added", "removed")
}

// Handle applies one event.
func (s *Things) Handle(evt event.Event) error {
	var (
		applied bool
		err     error
	)
	switch evt.Kind {
	case event.KindAdded:
		applied, err = added(s.repo, evt)
	case event.KindRemoved:
		applied = removed(s.repo, evt)
	case event.KindUpdated:
		applied, err = updated(s.repo, evt, mergeThing)
	case event.KindStatus, event.KindStatusChanged:
		applied, err = s.status(evt)
	case event.KindLinkAdded:
		applied, err = s.link(evt, linkItem)
	case event.KindLinkRemoved:
		applied, err = s.link(evt, unlinkItem)
	case event.KindState, event.KindStateChanged, event.KindUnknown:
	}
	if err != nil {
		return fmt.Errorf("%s %s: %w", s.collection, evt.Kind, err)
	}
	s.record(evt, applied)
	return nil
}

func mergeThing(dst, src *model.Thing) {
	dst.Label = src.Label
	dst.Configuration = src.Configuration
	dst.Channels = mergeChannels(dst.Channels, src.Channels)
}

// mergeChannels applies the incoming channel list by UID. Update payloads
// carry no links, so known channels keep their LinkedItems. When the UID
// sequence is unchanged the existing slice is updated in place and pointers
// into it stay valid.
func mergeChannels(dst, src []model.Channel) []model.Channel {
	sameLayout := len(dst) == len(src)
	for i := 0; sameLayout && i < len(src); i++ {
		sameLayout = dst[i].UID == src[i].UID
	}
	if sameLayout {
		for i := range src {
			mergeChannel(&dst[i], src[i])
		}
		return dst
	}

	known := make(map[string]model.Channel, len(dst))
	for _, ch := range dst {
		known[ch.UID] = ch
	}
	merged := make([]model.Channel, len(src))
	for i, incoming := range src {
		existing, ok := known[incoming.UID]
		if !ok {
			existing = model.Channel{UID: incoming.UID, LinkedItems: []string{}}
		}
		mergeChannel(&existing, incoming)
		merged[i] = existing
	}
	return merged
}

func mergeChannel(dst *model.Channel, src model.Channel) {
	links := dst.LinkedItems
	if links == nil {
		links = []string{}
	}
	*dst = src
	dst.LinkedItems = links
}

func (s *Things) status(evt event.Event) (bool, error) {
	var info model.StatusInfo
	if err := evt.UnmarshalCurrent(&info); err != nil {
		return false, err
	}
	return s.repo.Patch(evt.ID, func(t *model.Thing) bool {
		t.StatusInfo = info
		return true
	}), nil
}

type linkPayload struct {
	ChannelUID string `json:"channelUID"`
	ItemName   string `json:"itemName"`
}

func (s *Things) link(evt event.Event, apply func(*model.Channel, string) bool) (bool, error) {
	var link linkPayload
	if err := evt.Unmarshal(&link); err != nil {
		return false, err
	}
	thingUID, channelID, ok := SplitChannelUID(link.ChannelUID)
	if !ok || link.ItemName == "" {
		return false, nil
	}
	return s.repo.Patch(thingUID, func(t *model.Thing) bool {
		ch := t.Channel(channelID)
		if ch == nil {
			return false
		}
		return apply(ch, link.ItemName)
	}), nil
}

func linkItem(ch *model.Channel, item string) bool {
	if ch.LinkedItems == nil {
		ch.LinkedItems = []string{}
	}
	if slices.Contains(ch.LinkedItems, item) {
		return false
	}
	ch.LinkedItems = append(ch.LinkedItems, item)
	return true
}

func unlinkItem(ch *model.Channel, item string) bool {
	before := len(ch.LinkedItems)
	ch.LinkedItems = slices.DeleteFunc(ch.LinkedItems, func(name string) bool { return name == item })
	return len(ch.LinkedItems) != before
}

// SplitChannelUID splits "binding:type:thing:channel" into the owning thing
// UID and the channel id.
func SplitChannelUID(channelUID string) (thingUID, channelID string, ok bool) {
	i := strings.LastIndex(channelUID, ":")
	if i <= 0 || i == len(channelUID)-1 {
		return "", "", false
	}
	return channelUID[:i], channelUID[i+1:], true
}
