package syncer

import (
	"fmt"

	"github.com/micro-ha/entitycache/internal/event"
	"github.com/micro-ha/entitycache/internal/model"
	"github.com/micro-ha/entitycache/internal/repository"
)

// Inbox keeps discovery results in step with inbox events.
type Inbox struct {
	base
	repo *repository.Repository[model.DiscoveryResult]
}

func NewInbox(repo *repository.Repository[model.DiscoveryResult], opts ...Option) *Inbox {
	return &Inbox{base: newBase(repo.Name(), opts), repo: repo}
}

func (s *Inbox) Register(sub Subscriber) {
	s.subscribe(sub, s.Handle, "inbox", "added", "removed", "updated")
}

func (s *Inbox) Handle(evt event.Event) error {
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
		applied, err = updated(s.repo, evt, mergeDiscoveryResult)
	case event.KindStatus, event.KindStatusChanged, event.KindState, event.KindStateChanged,
		event.KindLinkAdded, event.KindLinkRemoved, event.KindUnknown:
	}
	if err != nil {
		return fmt.Errorf("%s %s: %w", s.collection, evt.Kind, err)
	}
	s.record(evt, applied)
	return nil
}

func mergeDiscoveryResult(dst, src *model.DiscoveryResult) {
	dst.Label = src.Label
	dst.Properties = src.Properties
}
