package humanizer

import (
	"context"
	"time"

	"github.com/nullpane/reflexd/internal/domain"
)

// KeyPresser binds a Humanizer to one injector and one trigger key so
// callers that only ever press a single key get a narrower surface.
type KeyPresser struct {
	hum *Humanizer
	inj domain.KeyInjector
	key domain.Key
}

// NewKeyPresser binds hum to inj and key.
func NewKeyPresser(hum *Humanizer, inj domain.KeyInjector, key domain.Key) *KeyPresser {
	return &KeyPresser{hum: hum, inj: inj, key: key}
}

// Press performs one humanized press of the bound key and returns the
// cooldown to wait before the next action.
func (p *KeyPresser) Press(ctx context.Context) (time.Duration, error) {
	return p.hum.Press(ctx, p.inj, p.key)
}
