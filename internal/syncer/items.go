package syncer

import (
	"fmt"

	"github.com/micro-ha/entitycache/internal/event"
	"github.com/micro-ha/entitycache/internal/model"
	"github.com/micro-ha/entitycache/internal/repository"
)

// Items keeps the items collection in step with item events.
type Items struct {
	base
	repo *repository.Repository[model.Item]
}

func NewItems(repo *repository.Repository[model.Item], opts ...Option) *Items {
	return &Items{base: newBase(repo.Name(), opts), repo: repo}
}

func (s *Items) Register(sub Subscriber) {
	s.subscribe(sub, s.Handle, "items", "added", "removed", "updated", "state", "statechanged")
}

func (s *Items) Handle(evt event.Event) error {
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
		applied, err = updated(s.repo, evt, mergeItem)
	case event.KindState, event.KindStateChanged:
		applied, err = s.state(evt)
	case event.KindStatus, event.KindStatusChanged, event.KindLinkAdded, event.KindLinkRemoved, event.KindUnknown:
	}
	if err != nil {
		return fmt.Errorf("%s %s: %w", s.collection, evt.Kind, err)
	}
	s.record(evt, applied)
	return nil
}

func mergeItem(dst, src *model.Item) {
	dst.Label = src.Label
	dst.Category = src.Category
	dst.Tags = src.Tags
	dst.GroupNames = src.GroupNames
}

// statePayload covers both state and statechanged events; the old value of
// the latter is not needed.
type statePayload struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

func (s *Items) state(evt event.Event) (bool, error) {
	var st statePayload
	if err := evt.Unmarshal(&st); err != nil {
		return false, err
	}
	return s.repo.Patch(evt.ID, func(item *model.Item) bool {
		if item.State == st.Value {
			return false
		}
		item.State = st.Value
		return true
	}), nil
}
