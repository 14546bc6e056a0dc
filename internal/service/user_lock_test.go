package service

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUserLock_SerializesSameUser(t *testing.T) {
	t.Parallel()

	locks := NewUserLock()

	const workers = 50
	counter := 0
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock("user-1")
			defer unlock()
			counter++
		}()
	}
	wg.Wait()

	assert.Equal(t, workers, counter)
}

func TestUserLock_DifferentUsersDoNotBlock(t *testing.T) {
	t.Parallel()

	locks := NewUserLock()

	unlockA := locks.Lock("user-a")
	defer unlockA()

	// Захват блокировки другого пользователя не должен ждать user-a
	done := make(chan struct{})
	go func() {
		unlockB := locks.Lock("user-b")
		unlockB()
		close(done)
	}()

	<-done
}

func TestUserLock_EntriesAreReleased(t *testing.T) {
	t.Parallel()

	locks := NewUserLock()

	unlock := locks.Lock("user-1")
	unlock()

	locks.mutex.Lock()
	defer locks.mutex.Unlock()
	assert.Empty(t, locks.locks)
}
