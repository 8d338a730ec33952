// Package lock реализует мьютексы по ключу для сериализации
// read-modify-write операций над одним агрегатом (занятие, кошелёк).
package lock

import "sync"

// KeyedMutex выдаёт мьютекс на каждый ключ. Мьютексы не освобождаются
// после использования: число занятий в работе ограничено, а повторное
// использование ключа дешевле гонки за удаление.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[int64]*sync.Mutex)}
}

// Lock захватывает мьютекс ключа и возвращает функцию освобождения
func (k *KeyedMutex) Lock(key int64) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}
