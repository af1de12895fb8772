// Черный список токенов сессий в BoltDB.
//
// Основные возможности:
//   - Отзыв токенов при выходе пользователя и обновлении пары токенов.
//   - Отложенное вступление отзыва в силу (freeze), чтобы параллельные запросы со старым токеном успели завершиться.
//   - Фоновая очистка записей старше времени жизни сессии.
package sessions

import (
	"encoding/binary"
	"log/slog"
	"sync"
	"time"

	"github.com/boltdb/bolt"
)

const (
	sessionsBucketName = "sessions"

	DefaultBlacklistFreeze = time.Minute
	cleanInterval          = time.Minute
)

type SessionsManager struct {
	db     *bolt.DB
	ttl    time.Duration
	freeze time.Duration

	stop chan struct{}
	wg   sync.WaitGroup
}

// NewSessionsManager открывает (или создает) файл базы сессий и запускает очистку.
//
// Параметры:
//   - path: путь к файлу BoltDB
//   - sessionTTL: время жизни refresh токена, после которого запись удаляется
//   - freeze: задержка, после которой отозванный токен считается недействительным
//
// Возвращает:
//   - *SessionsManager: менеджер, который нужно закрыть через Close
//   - error: ошибка открытия базы
func NewSessionsManager(path string, sessionTTL, freeze time.Duration) (*SessionsManager, error) {
	if path == "" {
		path = "sessions.db"
	}

	db, err := bolt.Open(path, 0644, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, err
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(sessionsBucketName))
		return err
	}); err != nil {
		db.Close()
		return nil, err
	}

	sm := &SessionsManager{db: db, ttl: sessionTTL, freeze: freeze, stop: make(chan struct{})}

	sm.wg.Add(1)
	go sm.cleanLoop()

	return sm, nil
}

// BlacklistToken отзывает токен по его подписи
func (sm *SessionsManager) BlacklistToken(signature []byte) error {
	return sm.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(sessionsBucketName))

		tm := make([]byte, 8)
		binary.LittleEndian.PutUint64(tm, uint64(time.Now().Add(sm.freeze).UnixMilli()))

		return b.Put(signature, tm)
	})
}

func (sm *SessionsManager) IsTokenBlacklisted(signature []byte) (bool, error) {
	var blacklisted bool
	err := sm.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(sessionsBucketName))

		timeRaw := b.Get(signature)
		if timeRaw == nil {
			return nil
		}

		blacklisted = !time.Now().Before(time.UnixMilli(int64(binary.LittleEndian.Uint64(timeRaw))))
		return nil
	})
	return blacklisted, err
}

func (sm *SessionsManager) Close() {
	close(sm.stop)
	sm.wg.Wait()
	sm.db.Close()
}

func (sm *SessionsManager) cleanLoop() {
	defer sm.wg.Done()
	ticker := time.NewTicker(cleanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-sm.stop:
			return
		case <-ticker.C:
			if n, err := sm.clean(time.Now()); err != nil {
				slog.Error("Clean sessions blacklist", "err", err)
			} else if n > 0 {
				slog.Debug("Sessions blacklist cleaned", "removed", n)
			}
		}
	}
}

// Удаляет записи, отозванные раньше now - ttl
func (sm *SessionsManager) clean(now time.Time) (int, error) {
	keysToRemove := [][]byte{}
	if err := sm.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket([]byte(sessionsBucketName)).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			tm := time.UnixMilli(int64(binary.LittleEndian.Uint64(v)))
			if now.Sub(tm) > sm.ttl {
				keysToRemove = append(keysToRemove, append([]byte(nil), k...))
			}
		}
		return nil
	}); err != nil {
		return 0, err
	}

	if len(keysToRemove) == 0 {
		return 0, nil
	}

	return len(keysToRemove), sm.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(sessionsBucketName))
		for _, key := range keysToRemove {
			if err := b.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
}
