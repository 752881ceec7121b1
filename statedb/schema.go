package statedb

import "strings"

var (
	strZeroBytes20 = strings.Repeat("0", 40)

	// amounts, maxSupply and versions are decimal strings, they do not
	// fit in an sqlite integer
	dropTable = `CREATE TABLE IF NOT EXISTS drops (
		id INTEGER PRIMARY KEY NOT NULL,
		owner CHAR(40) NOT NULL,
		maxSupply TEXT NOT NULL,
		currentSupply TEXT NOT NULL,
		price TEXT NOT NULL,
		versions TEXT NOT NULL,
		balance TEXT NOT NULL,
		dropURI TEXT NOT NULL DEFAULT '',
		contractURI TEXT NOT NULL DEFAULT '',
		baseURI TEXT NOT NULL DEFAULT '',
		CONSTRAINT chk_maxSupply CHECK (maxSupply != '0'),
		CONSTRAINT chk_versions CHECK (versions != '0'),
		CONSTRAINT chk_owner CHECK (owner != '` + strZeroBytes20 + `')
	);`

	dripTable = `CREATE TABLE IF NOT EXISTS drips (
		dropId INTEGER NOT NULL,
		id INTEGER NOT NULL,
		version TEXT NOT NULL,
		status VARCHAR(10) NOT NULL,
		owner CHAR(40) NOT NULL,
		tokenContract CHAR(40),
		tokenId TEXT,
		PRIMARY KEY (dropId, id),
		CONSTRAINT chk_status CHECK (status IN ('DEFAULT', 'MUTATED')),
		CONSTRAINT chk_mutation CHECK ((status = 'MUTATED') = (tokenContract IS NOT NULL AND tokenId IS NOT NULL)),
		CONSTRAINT chk_owner CHECK (owner != '` + strZeroBytes20 + `')
	);`

	// token contract -> verifier id, per drop
	interfaceTable = `CREATE TABLE IF NOT EXISTS interfaces (
		dropId INTEGER NOT NULL,
		tokenContract CHAR(40) NOT NULL,
		verifierId CHAR(40) NOT NULL,
		PRIMARY KEY (dropId, tokenContract)
	);`

	// table stores key-value pairs. Both key and value are a 32-byte hex string without prefix '0x'
	kvTable = `CREATE TABLE IF NOT EXISTS kv (
		key CHAR(64) PRIMARY KEY NOT NULL,
		value CHAR(64) NOT NULL
	);`

	// account -> ledger balance, decimal string
	balanceTable = `CREATE TABLE IF NOT EXISTS balances (
		account CHAR(40) PRIMARY KEY NOT NULL,
		amount TEXT NOT NULL
	);`
)

const (
	dropParamList = " id, owner, maxSupply, currentSupply, price, versions, balance, dropURI, contractURI, baseURI "
	dripParamList = " dropId, id, version, status, owner, tokenContract, tokenId "
)
