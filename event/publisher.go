package event

import (
	log "github.com/sirupsen/logrus"
)

// Multi fans presence events out to several publishers. The first publisher
// is authoritative: its error is returned. Errors from the others are only
// logged, so an unreachable mirror never affects the parent's stream.
type Multi []Publisher

func (m Multi) Login(user int, confidence *float64) error {
	var first error
	for i, p := range m {
		if err := p.Login(user, confidence); err != nil {
			if i == 0 {
				first = err
				continue
			}
			log.Warnf("Failed to publish login for user %d: %v", user, err)
		}
	}
	return first
}

func (m Multi) Logout(user int) error {
	var first error
	for i, p := range m {
		if err := p.Logout(user); err != nil {
			if i == 0 {
				first = err
				continue
			}
			log.Warnf("Failed to publish logout for user %d: %v", user, err)
		}
	}
	return first
}
