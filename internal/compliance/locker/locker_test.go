package locker

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"

	"credready/internal/compliance/ports"
	"credready/internal/platform/redis"
	id "credready/pkg/domain"
)

// Both implementations satisfy the port, and NewRedis takes the platform
// client wrapper the wiring hands it.
var (
	_ ports.RecomputeLocker = NewMemory()
	_ ports.RecomputeLocker = NewRedis(&redis.Client{})
)

type MemoryLockerSuite struct {
	suite.Suite
	locker *Memory
}

func TestMemoryLockerSuite(t *testing.T) {
	suite.Run(t, new(MemoryLockerSuite))
}

func (s *MemoryLockerSuite) SetupTest() {
	s.locker = NewMemory()
}

func (s *MemoryLockerSuite) TestSerializesPerClinician() {
	ctx := context.Background()
	clinicianID := id.NewClinicianID()

	const workers = 8
	var (
		wg      sync.WaitGroup
		holders int
		maxHeld int
		mu      sync.Mutex
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := s.locker.Lock(ctx, clinicianID)
			s.NoError(err)

			mu.Lock()
			holders++
			if holders > maxHeld {
				maxHeld = holders
			}
			mu.Unlock()

			mu.Lock()
			holders--
			mu.Unlock()
			release()
		}()
	}
	wg.Wait()

	s.Equal(1, maxHeld, "two workers held the same clinician's lock at once")
}

func (s *MemoryLockerSuite) TestIndependentCliniciansDoNotBlock() {
	ctx := context.Background()

	releaseA, err := s.locker.Lock(ctx, id.NewClinicianID())
	s.Require().NoError(err)
	defer releaseA()

	// A second clinician's lock must be acquirable while the first is held.
	done := make(chan struct{})
	go func() {
		releaseB, err := s.locker.Lock(ctx, id.NewClinicianID())
		s.NoError(err)
		releaseB()
		close(done)
	}()
	<-done
}

func (s *MemoryLockerSuite) TestReacquireAfterRelease() {
	ctx := context.Background()
	clinicianID := id.NewClinicianID()

	release, err := s.locker.Lock(ctx, clinicianID)
	s.Require().NoError(err)
	release()

	release, err = s.locker.Lock(ctx, clinicianID)
	s.Require().NoError(err)
	release()
}
