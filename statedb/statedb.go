package statedb

import (
	"database/sql"
	"fmt"
	"math/big"
	"strconv"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/premier-io/drops-go/common"
	"github.com/premier-io/drops-go/database"
	"github.com/premier-io/drops-go/drop"
	logger "github.com/sirupsen/logrus"
)

// StateDB persists drops, drips and interface registries in sqlite.
type StateDB struct {
	db        *sql.DB
	stmtCache *database.StmtCache
}

func NewStateDB(db *sql.DB) (*StateDB, error) {
	// sqlite has a single writer and an in-memory database lives in one
	// connection
	db.SetMaxOpenConns(1)

	// 1. Create the tables.
	if _, err := db.Exec(dropTable + dripTable + interfaceTable + kvTable + balanceTable); err != nil {
		return nil, err
	}

	// 2. A stmt cache + db. Statements used inside transactions are
	// prepared up front.
	stmtCache := database.NewStmtCache(db)
	for _, q := range []string{upsertDropQuery, upsertDripQuery} {
		if _, err := stmtCache.Prepare(q); err != nil {
			return nil, err
		}
	}

	return &StateDB{
		db:        db,
		stmtCache: stmtCache,
	}, nil
}

func (st *StateDB) Close() error {
	st.stmtCache.Clear()
	return nil
}

func (st *StateDB) GetKeyedValue(key ethcommon.Hash) (ethcommon.Hash, bool, error) {
	query := `SELECT value FROM kv WHERE key = ?`
	stmt, err := st.stmtCache.Prepare(query)
	if err != nil {
		return ethcommon.Hash{}, false, err
	}

	var value string
	keyHex := key.String()[2:]
	if err := stmt.QueryRow(keyHex).Scan(&value); err != nil {
		if err == sql.ErrNoRows {
			return ethcommon.Hash{}, false, nil
		}
		return ethcommon.Hash{}, false, err
	}

	return ethcommon.HexToHash(common.Prepend0xPrefix(value)), true, nil
}

func (st *StateDB) SetKeyedValue(key, value ethcommon.Hash) error {
	query := `INSERT OR REPLACE INTO kv (key, value) VALUES (?, ?)`
	stmt, err := st.stmtCache.Prepare(query)
	if err != nil {
		return err
	}

	keyHex := key.String()[2:]
	valueHex := value.String()[2:]
	_, err = stmt.Exec(keyHex, valueHex)
	return err
}

func (st *StateDB) SetStoreOwner(owner common.Address) error {
	return st.SetKeyedValue(KeyStoreOwner, ethcommon.BytesToHash(owner.Bytes()))
}

func (st *StateDB) GetStoreOwner() (common.Address, bool, error) {
	v, ok, err := st.GetKeyedValue(KeyStoreOwner)
	if err != nil || !ok {
		return common.Address{}, ok, err
	}
	return ethcommon.BytesToAddress(v.Bytes()), true, nil
}

func (st *StateDB) SetStoreAddress(addr common.Address) error {
	return st.SetKeyedValue(KeyStoreAddr, ethcommon.BytesToHash(addr.Bytes()))
}

func (st *StateDB) GetStoreAddress() (common.Address, bool, error) {
	v, ok, err := st.GetKeyedValue(KeyStoreAddr)
	if err != nil || !ok {
		return common.Address{}, ok, err
	}
	return ethcommon.BytesToAddress(v.Bytes()), true, nil
}

const (
	upsertDropQuery = `INSERT OR REPLACE INTO drops (` + dropParamList + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	upsertDripQuery = `INSERT OR REPLACE INTO drips (` + dripParamList + `) VALUES (?, ?, ?, ?, ?, ?, ?)`
)

func dropArgs(r *drop.Record) []interface{} {
	s := (&dbDrop{}).encode(r)
	return []interface{}{
		s.Id, s.Owner, formatUint(s.MaxSupply), formatUint(s.CurrentSupply), s.Price,
		formatUint(s.Versions), s.Balance, s.DropURI, s.ContractURI, s.BaseURI,
	}
}

// go-sqlite3 rejects uint64 values with the high bit set
func formatUint(v uint64) string {
	return strconv.FormatUint(v, 10)
}

func parseUint(s string) (uint64, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrCorruptedRecord, err)
	}
	return v, nil
}

func dripArgs(dropId uint64, d *drop.Drip) []interface{} {
	s := (&dbDrip{}).encode(dropId, d)
	var tokenContract, tokenId sql.NullString
	if s.Status == drop.DripStatusMutated.String() {
		tokenContract = sql.NullString{String: s.TokenContract, Valid: true}
		tokenId = sql.NullString{String: s.TokenId, Valid: true}
	}
	return []interface{}{s.DropId, s.Id, formatUint(s.Version), s.Status, s.Owner, tokenContract, tokenId}
}

func (st *StateDB) SaveDrop(r *drop.Record) error {
	stmt, err := st.stmtCache.Prepare(upsertDropQuery)
	if err != nil {
		return err
	}
	_, err = stmt.Exec(dropArgs(r)...)
	return err
}

// SaveMint writes the drop record and the new drip in one transaction.
func (st *StateDB) SaveMint(r *drop.Record, d *drop.Drip) (err error) {
	tx, err := st.db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				logger.WithField("err", rbErr).Error("failed to roll back mint")
			}
		}
	}()

	dropStmt, err := st.stmtCache.PrepareTx(tx, upsertDropQuery)
	if err != nil {
		return err
	}
	if _, err = dropStmt.Exec(dropArgs(r)...); err != nil {
		return err
	}

	dripStmt, err := st.stmtCache.PrepareTx(tx, upsertDripQuery)
	if err != nil {
		return err
	}
	if _, err = dripStmt.Exec(dripArgs(r.Id, d)...); err != nil {
		return err
	}

	return tx.Commit()
}

func (st *StateDB) SaveDrip(dropId uint64, d *drop.Drip) error {
	stmt, err := st.stmtCache.Prepare(upsertDripQuery)
	if err != nil {
		return err
	}
	_, err = stmt.Exec(dripArgs(dropId, d)...)
	return err
}

// SaveInterface stores a registry entry; the zero verifier id deletes it.
func (st *StateDB) SaveInterface(dropId uint64, tokenContract, verifierId common.Address) error {
	var (
		stmt *sql.Stmt
		err  error
	)
	if common.IsZeroAddress(verifierId) {
		stmt, err = st.stmtCache.Prepare(`DELETE FROM interfaces WHERE dropId = ? AND tokenContract = ?`)
		if err != nil {
			return err
		}
		_, err = stmt.Exec(dropId, encodeAddress(tokenContract))
		return err
	}

	stmt, err = st.stmtCache.Prepare(`INSERT OR REPLACE INTO interfaces (dropId, tokenContract, verifierId) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	_, err = stmt.Exec(dropId, encodeAddress(tokenContract), encodeAddress(verifierId))
	return err
}

func scanDrop(row interface{ Scan(...interface{}) error }) (*drop.Record, error) {
	var (
		s                                  dbDrop
		maxSupply, currentSupply, versions string
	)
	err := row.Scan(
		&s.Id, &s.Owner, &maxSupply, &currentSupply, &s.Price,
		&versions, &s.Balance, &s.DropURI, &s.ContractURI, &s.BaseURI,
	)
	if err != nil {
		return nil, err
	}
	if s.MaxSupply, err = parseUint(maxSupply); err != nil {
		return nil, err
	}
	if s.CurrentSupply, err = parseUint(currentSupply); err != nil {
		return nil, err
	}
	if s.Versions, err = parseUint(versions); err != nil {
		return nil, err
	}
	return s.decode()
}

// GetDrop returns false if the drop has not been stored.
func (st *StateDB) GetDrop(id uint64) (*drop.Record, bool, error) {
	stmt, err := st.stmtCache.Prepare(`SELECT` + dropParamList + `FROM drops WHERE id = ?`)
	if err != nil {
		return nil, false, err
	}

	r, err := scanDrop(stmt.QueryRow(id))
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return r, true, nil
}

func (st *StateDB) ListDrops() ([]*drop.Record, error) {
	stmt, err := st.stmtCache.Prepare(`SELECT` + dropParamList + `FROM drops ORDER BY id`)
	if err != nil {
		return nil, err
	}

	rows, err := stmt.Query()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []*drop.Record{}
	for rows.Next() {
		r, err := scanDrop(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func (st *StateDB) ListDrips(dropId uint64) ([]*drop.Drip, error) {
	stmt, err := st.stmtCache.Prepare(`SELECT` + dripParamList + `FROM drips WHERE dropId = ? ORDER BY id`)
	if err != nil {
		return nil, err
	}

	rows, err := stmt.Query(dropId)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	drips := []*drop.Drip{}
	for rows.Next() {
		var (
			s                      dbDrip
			version                string
			tokenContract, tokenId sql.NullString
		)
		if err := rows.Scan(&s.DropId, &s.Id, &version, &s.Status, &s.Owner, &tokenContract, &tokenId); err != nil {
			return nil, err
		}
		v, err := parseUint(version)
		if err != nil {
			return nil, fmt.Errorf("drop=%d, drip=%d: %w", dropId, s.Id, err)
		}
		s.Version = v
		s.TokenContract = tokenContract.String
		s.TokenId = tokenId.String

		d, err := s.decode()
		if err != nil {
			return nil, fmt.Errorf("drop=%d, drip=%d: %w", dropId, s.Id, err)
		}
		drips = append(drips, d)
	}
	return drips, rows.Err()
}

func (st *StateDB) ListInterfaces(dropId uint64) (map[common.Address]common.Address, error) {
	stmt, err := st.stmtCache.Prepare(`SELECT tokenContract, verifierId FROM interfaces WHERE dropId = ?`)
	if err != nil {
		return nil, err
	}

	rows, err := stmt.Query(dropId)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make(map[common.Address]common.Address)
	for rows.Next() {
		var tokenContract, verifierId string
		if err := rows.Scan(&tokenContract, &verifierId); err != nil {
			return nil, err
		}
		entries[decodeAddress(tokenContract)] = decodeAddress(verifierId)
	}
	return entries, rows.Err()
}

// SaveBalance sets the ledger balance of account.
func (st *StateDB) SaveBalance(account common.Address, amount *big.Int) error {
	stmt, err := st.stmtCache.Prepare(`INSERT OR REPLACE INTO balances (account, amount) VALUES (?, ?)`)
	if err != nil {
		return err
	}
	_, err = stmt.Exec(encodeAddress(account), amount.String())
	return err
}

func (st *StateDB) ListBalances() (map[common.Address]*big.Int, error) {
	stmt, err := st.stmtCache.Prepare(`SELECT account, amount FROM balances`)
	if err != nil {
		return nil, err
	}

	rows, err := stmt.Query()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	balances := make(map[common.Address]*big.Int)
	for rows.Next() {
		var account, amount string
		if err := rows.Scan(&account, &amount); err != nil {
			return nil, err
		}
		v := common.DecStrToBigInt(amount)
		if v == nil {
			return nil, fmt.Errorf("%w: balance of %s", ErrCorruptedRecord, account)
		}
		balances[decodeAddress(account)] = v
	}
	return balances, rows.Err()
}
