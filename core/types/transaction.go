package types

// TxContext carries the confirmed-transaction fields a message handler
// needs: where the transaction sits in the chain, who signed it, and
// the embedded protocol payload.
type TxContext struct {
	TxIndex     int64
	TxHash      string
	BlockIndex  int64
	BlockTime   int64
	Source      string
	Destination string
	Data        []byte
}
