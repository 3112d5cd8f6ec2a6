// Package accesscontrol provides a config-seeded role store. The original
// system used a generic role registry; only two capabilities are meaningful
// here, so this adapter answers exactly those.
package accesscontrol

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

type Static struct {
	mu     sync.RWMutex
	admins map[common.Address]struct{}
	exempt map[common.Address]struct{}
}

func NewStatic(admins, exempt []common.Address) *Static {
	s := &Static{
		admins: make(map[common.Address]struct{}, len(admins)),
		exempt: make(map[common.Address]struct{}, len(exempt)),
	}
	for _, a := range admins {
		s.admins[a] = struct{}{}
	}
	for _, a := range exempt {
		s.exempt[a] = struct{}{}
	}
	return s
}

func (s *Static) IsAdministrator(ctx context.Context, addr common.Address) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.admins[addr]
	return ok, nil
}

func (s *Static) IsFeeExempt(ctx context.Context, addr common.Address) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.exempt[addr]
	return ok, nil
}

func (s *Static) GrantFeeExemption(ctx context.Context, addrs []common.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range addrs {
		s.exempt[a] = struct{}{}
	}
	return nil
}
