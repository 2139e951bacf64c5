package app

import "classquiz-service/internal/domain"

type lifecycleAction string

const (
	actionStart lifecycleAction = "start"
	actionStop  lifecycleAction = "stop"
)

// transition applies a lifecycle action. Requests for the state the session is
// already in are no-ops; nothing leaves completed.
//
//	waiting --start--> in_progress --stop--> completed
//	waiting --stop---> completed
func transition(from domain.SessionStatus, action lifecycleAction) (domain.SessionStatus, bool, error) {
	switch action {
	case actionStart:
		switch from {
		case domain.StatusWaiting:
			return domain.StatusInProgress, true, nil
		case domain.StatusInProgress:
			return from, false, nil
		}
	case actionStop:
		switch from {
		case domain.StatusWaiting, domain.StatusInProgress:
			return domain.StatusCompleted, true, nil
		case domain.StatusCompleted:
			return from, false, nil
		}
	}
	return from, false, domain.ErrInvalidTransition
}
