package database

import (
	"database/sql"
	"sync"
)

// StmtCache caches prepared statements keyed by their query string.
type StmtCache struct {
	db *sql.DB
	m  sync.Map
}

func NewStmtCache(db *sql.DB) *StmtCache {
	return &StmtCache{db: db}
}

func (sc *StmtCache) Prepare(query string) (*sql.Stmt, error) {
	cached, _ := sc.m.Load(query)
	if cached == nil {
		stmt, err := sc.db.Prepare(query)
		if err != nil {
			return nil, err
		}
		actual, loaded := sc.m.LoadOrStore(query, stmt)
		if loaded {
			_ = stmt.Close()
		}
		cached = actual
	}
	return cached.(*sql.Stmt), nil
}

func (sc *StmtCache) MustPrepare(query string) *sql.Stmt {
	stmt, err := sc.Prepare(query)
	if err != nil {
		panic(err)
	}
	return stmt
}

// PrepareTx binds a cached statement to tx. A query that is not cached
// yet is prepared on the transaction's own connection and not cached, so
// it never waits for a second connection.
func (sc *StmtCache) PrepareTx(tx *sql.Tx, query string) (*sql.Stmt, error) {
	if cached, ok := sc.m.Load(query); ok {
		return tx.Stmt(cached.(*sql.Stmt)), nil
	}
	return tx.Prepare(query)
}

func (sc *StmtCache) Clear() {
	sc.m.Range(func(k, v interface{}) bool {
		_ = v.(*sql.Stmt).Close()
		sc.m.Delete(k)
		return true
	})
}
