package service

import "sync"

// UserLock сериализует операции над подпиской одного пользователя.
// Блокировка удерживается на все время цикла чтение-вычисление-запись,
// чтобы конкурентные платежи одного пользователя применялись по очереди.
// Пользователи друг друга не блокируют.
type UserLock struct {
	mutex sync.Mutex
	locks map[string]*userLockEntry
}

type userLockEntry struct {
	mu   sync.Mutex
	refs int
}

// NewUserLock создает новый набор блокировок по пользователям
func NewUserLock() *UserLock {
	return &UserLock{
		locks: make(map[string]*userLockEntry),
	}
}

// Lock захватывает блокировку пользователя и возвращает функцию освобождения.
// Записи удаляются из набора, когда последний владелец освобождает блокировку.
func (l *UserLock) Lock(userID string) func() {
	l.mutex.Lock()
	entry, exists := l.locks[userID]
	if !exists {
		entry = &userLockEntry{}
		l.locks[userID] = entry
	}
	entry.refs++
	l.mutex.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		l.mutex.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, userID)
		}
		l.mutex.Unlock()
	}
}
