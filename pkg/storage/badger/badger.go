// Package badger provides a Badger-based implementation of the storage
// interface.
package badger

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/azera-ai/azera/pkg/storage"
)

// Config holds configuration for BadgerStorage.
type Config struct {
	Path       string
	SyncWrites bool
	InMemory   bool
}

// BadgerStorage implements the Storage interface using Badger.
type BadgerStorage struct {
	db *badger.DB
}

// NewBadgerStorage opens a Badger database at the configured path.
func NewBadgerStorage(config *Config) (*BadgerStorage, error) {
	opts := badger.DefaultOptions(config.Path)
	opts.SyncWrites = config.SyncWrites
	opts.InMemory = config.InMemory
	if config.InMemory {
		opts.Dir = ""
		opts.ValueDir = ""
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, &storage.StorageUnavailableError{Cause: err}
	}

	return &BadgerStorage{db: db}, nil
}

// Key layout. Message keys embed the creation timestamp so a prefix scan
// yields chronological order.
func personaKey(id string) []byte {
	return []byte("persona:" + id)
}

func chatKey(id string) []byte {
	return []byte("chat:" + id)
}

func messageKey(m *storage.Message) []byte {
	return []byte(fmt.Sprintf("chat:%s:msg:%020d:%s", m.ChatID, m.CreatedAt.UnixNano(), m.ID))
}

func messagePrefix(chatID string) []byte {
	return []byte(fmt.Sprintf("chat:%s:msg:", chatID))
}

func serialize(v interface{}) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, &storage.SerializationError{Operation: "marshal", Cause: err}
	}
	return data, nil
}

func deserialize(data []byte, v interface{}) error {
	if err := json.Unmarshal(data, v); err != nil {
		return &storage.SerializationError{Operation: "unmarshal", Cause: err}
	}
	return nil
}

func (b *BadgerStorage) SavePersona(ctx context.Context, p *storage.Persona) error {
	data, err := serialize(p)
	if err != nil {
		return err
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(personaKey(p.ID), data)
	})
}

func (b *BadgerStorage) GetPersona(ctx context.Context, id string) (*storage.Persona, error) {
	var p storage.Persona
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(personaKey(id))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return &storage.NotFoundError{EntityType: "persona", ID: id}
			}
			return err
		}
		return item.Value(func(val []byte) error {
			return deserialize(val, &p)
		})
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (b *BadgerStorage) ListPersonas(ctx context.Context) ([]*storage.Persona, error) {
	var personas []*storage.Persona
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte("persona:")

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var p storage.Persona
			err := it.Item().Value(func(val []byte) error {
				return deserialize(val, &p)
			})
			if err != nil {
				continue
			}
			personas = append(personas, &p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(personas, func(i, j int) bool {
		return personas[i].CreatedAt.Before(personas[j].CreatedAt)
	})
	return personas, nil
}

func (b *BadgerStorage) DeletePersona(ctx context.Context, id string) error {
	return b.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(personaKey(id)); err != nil {
			if err == badger.ErrKeyNotFound {
				return &storage.NotFoundError{EntityType: "persona", ID: id}
			}
			return err
		}
		return txn.Delete(personaKey(id))
	})
}

func (b *BadgerStorage) SaveChat(ctx context.Context, c *storage.Chat) error {
	data, err := serialize(c)
	if err != nil {
		return err
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(chatKey(c.ID), data)
	})
}

func (b *BadgerStorage) GetChat(ctx context.Context, id string) (*storage.Chat, error) {
	var c storage.Chat
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(chatKey(id))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return &storage.NotFoundError{EntityType: "chat", ID: id}
			}
			return err
		}
		return item.Value(func(val []byte) error {
			return deserialize(val, &c)
		})
	})
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (b *BadgerStorage) ListChats(ctx context.Context, personaID string) ([]*storage.Chat, error) {
	var chats []*storage.Chat
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte("chat:")

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			// Skip message keys under the chat prefix.
			if strings.Contains(string(item.Key()), ":msg:") {
				continue
			}
			var c storage.Chat
			err := item.Value(func(val []byte) error {
				return deserialize(val, &c)
			})
			if err != nil {
				continue
			}
			if personaID != "" && c.PersonaID != personaID {
				continue
			}
			chats = append(chats, &c)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(chats, func(i, j int) bool {
		return chats[i].CreatedAt.Before(chats[j].CreatedAt)
	})
	return chats, nil
}

func (b *BadgerStorage) DeleteChat(ctx context.Context, id string) error {
	return b.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(chatKey(id)); err != nil {
			if err == badger.ErrKeyNotFound {
				return &storage.NotFoundError{EntityType: "chat", ID: id}
			}
			return err
		}
		if err := txn.Delete(chatKey(id)); err != nil {
			return err
		}

		opts := badger.DefaultIteratorOptions
		opts.Prefix = messagePrefix(id)
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := txn.Delete(it.Item().KeyCopy(nil)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (b *BadgerStorage) AppendMessage(ctx context.Context, m *storage.Message) error {
	data, err := serialize(m)
	if err != nil {
		return err
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(messageKey(m), data)
	})
}

func (b *BadgerStorage) ListMessages(ctx context.Context, chatID string, limit int) ([]*storage.Message, error) {
	var msgs []*storage.Message
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = messagePrefix(chatID)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var m storage.Message
			err := it.Item().Value(func(val []byte) error {
				return deserialize(val, &m)
			})
			if err != nil {
				continue
			}
			msgs = append(msgs, &m)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return msgs, nil
}

// Close closes the Badger database.
func (b *BadgerStorage) Close() error {
	return b.db.Close()
}
