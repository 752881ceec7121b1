package etherman

type Config struct {
	// URL is the URL of the Ethereum node
	URL string

	// PayerKey is the hex private key of the account that pays out
	// withdrawals. Without it the node is only used for reads.
	PayerKey string

	// GasLimit of a payout. Defaults to DefaultTransferGas.
	GasLimit uint64
}
