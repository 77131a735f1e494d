package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gomodule/redigo/redis"
	"github.com/rs/zerolog/log"

	"github.com/jaydeep-me/algorand-carbon-bridge/types"
)

// note that multiple sets should not contain one transaction
var redisStatusSets = map[types.Status]string{
	types.StatusPending:  "bridgetx:pending",
	types.StatusLocked:   "bridgetx:locked",
	types.StatusBurned:   "bridgetx:burned",
	types.StatusMinted:   "bridgetx:minted",
	types.StatusReleased: "bridgetx:released",
	types.StatusFailed:   "bridgetx:failed",
}

// Redis persists the ledger across restarts, keyed bridgetx:{status}:{id}
// with a per-status set for scans and an id pointer key for direct lookup.
// The per-id critical section is an in-process mutex: a single
// orchestrating process owns all mutation.
type Redis struct {
	pool *redis.Pool

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func timeoutDialOptions() []redis.DialOption {
	return []redis.DialOption{
		redis.DialConnectTimeout(5 * time.Second),
		redis.DialReadTimeout(5 * time.Second),
		redis.DialWriteTimeout(5 * time.Second),
	}
}

func NewRedis(host string, port int) *Redis {
	redisAddr := fmt.Sprintf("%s:%d", host, port)
	return &Redis{
		pool: &redis.Pool{
			MaxIdle: 5,
			Dial:    func() (redis.Conn, error) { return redis.Dial("tcp", redisAddr, timeoutDialOptions()...) },
		},
		locks: make(map[string]*sync.Mutex),
	}
}

func (r *Redis) idLock(id string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.locks[id]
	if !ok {
		l = &sync.Mutex{}
		r.locks[id] = l
	}
	return l
}

func recordKey(status types.Status, id string) string {
	return fmt.Sprintf("bridgetx:%s:%s", status, id)
}

func pointerKey(id string) string {
	return fmt.Sprintf("bridgetx:id:%s", id)
}

func (r *Redis) Put(tx *types.BridgeTransaction) error {
	if tx == nil {
		return errors.New("null object to store")
	}
	if tx.ID == "" {
		return errors.New("bridge transaction cannot have empty id")
	}
	if tx.Status == "" {
		return errors.New("bridge transaction cannot have empty status")
	}

	lock := r.idLock(tx.ID)
	lock.Lock()
	defer lock.Unlock()

	conn := r.pool.Get()
	defer conn.Close()

	_, err := redis.String(conn.Do("GET", pointerKey(tx.ID)))
	if err == nil {
		return fmt.Errorf("%w: %s", ErrDuplicateTransaction, tx.ID)
	}
	if !errors.Is(err, redis.ErrNil) {
		log.Error().Err(err).Msg("error Redis GET")
		return err
	}

	return r.write(tx)
}

func (r *Redis) write(tx *types.BridgeTransaction) error {
	conn := r.pool.Get()
	defer conn.Close()

	txJSON, err := json.Marshal(tx)
	if err != nil {
		return fmt.Errorf("cannot marshal bridge transaction to JSON: %s", err.Error())
	}

	key := recordKey(tx.Status, tx.ID)
	if _, err = conn.Do("SET", key, txJSON); err != nil {
		log.Error().Err(err).Msg("error Redis SET")
		return err
	}
	if _, err = conn.Do("SET", pointerKey(tx.ID), string(tx.Status)); err != nil {
		log.Error().Err(err).Msg("error Redis SET")
		return err
	}
	// also add the key to the corresponding SET
	if _, err = conn.Do("SADD", redisStatusSets[tx.Status], key); err != nil {
		log.Error().Err(err).Msg("error Redis SADD")
		return err
	}
	return nil
}

func (r *Redis) Get(id string) (*types.BridgeTransaction, error) {
	conn := r.pool.Get()
	defer conn.Close()
	return r.get(conn, id)
}

func (r *Redis) get(conn redis.Conn, id string) (*types.BridgeTransaction, error) {
	status, err := redis.String(conn.Do("GET", pointerKey(id)))
	if errors.Is(err, redis.ErrNil) {
		return nil, nil
	}
	if err != nil {
		log.Error().Err(err).Msg("error Redis GET")
		return nil, err
	}

	raw, err := redis.Bytes(conn.Do("GET", recordKey(types.Status(status), id)))
	if errors.Is(err, redis.ErrNil) {
		return nil, nil
	}
	if err != nil {
		log.Error().Err(err).Msg("error Redis GET")
		return nil, err
	}

	var tx types.BridgeTransaction
	if err := json.Unmarshal(raw, &tx); err != nil {
		return nil, err
	}
	return &tx, nil
}

func (r *Redis) List() ([]*types.BridgeTransaction, error) {
	txs := make([]*types.BridgeTransaction, 0)
	for status := range redisStatusSets {
		byStatus, err := r.FindAllByStatus(status)
		if err != nil {
			return nil, err
		}
		txs = append(txs, byStatus...)
	}
	return txs, nil
}

// FindAllByStatus scans one status set. Older/processed records should be
// archived elsewhere eventually, otherwise performance degrades (although
// O(n) still).
func (r *Redis) FindAllByStatus(status types.Status) ([]*types.BridgeTransaction, error) {
	conn := r.pool.Get()
	defer conn.Close()

	set, ok := redisStatusSets[status]
	if !ok {
		return nil, errors.New("redis key not found for status")
	}

	txs := make([]*types.BridgeTransaction, 0)

	// scan every transaction present in Redis
	var cursor int64
	for {
		values, err := redis.Values(conn.Do("SSCAN", set, cursor))
		if err != nil {
			return nil, err
		}

		var keys []string
		values, err = redis.Scan(values, &cursor, &keys)
		if err != nil {
			return nil, err
		}

		for _, key := range keys {
			raw, err := redis.Bytes(conn.Do("GET", key))
			if errors.Is(err, redis.ErrNil) {
				continue
			}
			if err != nil {
				log.Error().Err(err).Msg("error Redis GET")
				return nil, err
			}

			var tx types.BridgeTransaction
			if err := json.Unmarshal(raw, &tx); err != nil {
				return nil, err
			}
			if tx.Status == status {
				txs = append(txs, &tx)
			}
		}

		if cursor == 0 {
			break
		}
	}

	return txs, nil
}

func (r *Redis) FindBySourceTxID(txID string) (*types.BridgeTransaction, error) {
	if txID == "" {
		return nil, errors.New("empty search value")
	}
	for status := range redisStatusSets {
		txs, err := r.FindAllByStatus(status)
		if err != nil {
			return nil, err
		}
		for _, tx := range txs {
			if tx.SourceTransactionID == txID {
				return tx, nil
			}
		}
	}
	return nil, nil
}

func (r *Redis) Update(id string, fn func(*types.BridgeTransaction) error) (*types.BridgeTransaction, error) {
	lock := r.idLock(id)
	lock.Lock()
	defer lock.Unlock()

	conn := r.pool.Get()
	defer conn.Close()

	current, err := r.get(conn, id)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTransaction, id)
	}

	prevStatus := current.Status
	if err := fn(current); err != nil {
		return nil, err
	}

	// the new record is written before the old status key is removed, so
	// a failure between the two cannot lose the record
	if err := r.write(current); err != nil {
		return nil, err
	}
	if current.Status != prevStatus {
		prevKey := recordKey(prevStatus, id)
		if _, err := conn.Do("SREM", redisStatusSets[prevStatus], prevKey); err != nil {
			log.Error().Err(err).Msg("error Redis SREM")
		}
		if _, err := conn.Do("DEL", prevKey); err != nil {
			log.Error().Err(err).Msg("error Redis DEL")
		}
	}
	return current.Clone(), nil
}
