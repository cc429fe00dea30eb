package syncer

import (
	"fmt"

	"github.com/micro-ha/entitycache/internal/event"
	"github.com/micro-ha/entitycache/internal/model"
	"github.com/micro-ha/entitycache/internal/repository"
)

// Rules keeps the rules collection in step with rule events. Rule status
// arrives on the state topic.
type Rules struct {
	base
	repo *repository.Repository[model.Rule]
}

func NewRules(repo *repository.Repository[model.Rule], opts ...Option) *Rules {
	return &Rules{base: newBase(repo.Name(), opts), repo: repo}
}

func (s *Rules) Register(sub Subscriber) {
	s.subscribe(sub, s.Handle, "rules", "added", "removed", "updated", "state")
}

func (s *Rules) Handle(evt event.Event) error {
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
		applied, err = updated(s.repo, evt, mergeRule)
	case event.KindState:
		applied, err = s.status(evt)
	case event.KindStateChanged, event.KindStatus, event.KindStatusChanged,
		event.KindLinkAdded, event.KindLinkRemoved, event.KindUnknown:
	}
	if err != nil {
		return fmt.Errorf("%s %s: %w", s.collection, evt.Kind, err)
	}
	s.record(evt, applied)
	return nil
}

func mergeRule(dst, src *model.Rule) {
	dst.Name = src.Name
	dst.Description = src.Description
	dst.Triggers = src.Triggers
	dst.Conditions = src.Conditions
	dst.Actions = src.Actions
	dst.Configuration = src.Configuration
}

func (s *Rules) status(evt event.Event) (bool, error) {
	var info model.StatusInfo
	if err := evt.UnmarshalCurrent(&info); err != nil {
		return false, err
	}
	return s.repo.Patch(evt.ID, func(r *model.Rule) bool {
		if r.Status == nil {
			r.Status = &model.StatusInfo{}
		}
		*r.Status = info
		return true
	}), nil
}
