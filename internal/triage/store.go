package triage

import (
	"context"
	"errors"
)

// Store is the persistence interface for evaluations.
type Store interface {
	Get(ctx context.Context, id string) (*Evaluation, bool, error)
	Put(ctx context.Context, ev *Evaluation) error
}

// Notifier delivers evaluations to an external channel.
type Notifier interface {
	Notify(ctx context.Context, ev *Evaluation) error
}

// Notifiers delivers to every notifier in order. All are attempted; the
// returned error joins each failure.
type Notifiers []Notifier

func (ns Notifiers) Notify(ctx context.Context, ev *Evaluation) error {
	var errs []error
	for _, n := range ns {
		if err := n.Notify(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NotifyPolicy selects which evaluations are sent to the Notifier.
type NotifyPolicy string

const (
	NotifyNone         NotifyPolicy = "none"
	NotifyEmergency    NotifyPolicy = "emergency"
	NotifyDisagreement NotifyPolicy = "disagreement"
	NotifyAll          NotifyPolicy = "all"
)

// Valid reports whether p is a known policy.
func (p NotifyPolicy) Valid() bool {
	switch p {
	case NotifyNone, NotifyEmergency, NotifyDisagreement, NotifyAll:
		return true
	default:
		return false
	}
}

// Matches reports whether ev should be delivered under p. The emergency
// policy fires when any model reached emergency.
func (p NotifyPolicy) Matches(ev *Evaluation) bool {
	switch p {
	case NotifyAll:
		return true
	case NotifyEmergency:
		return ev.Highest == CategoryEmergency
	case NotifyDisagreement:
		return ev.Disagreement
	default:
		return false
	}
}
