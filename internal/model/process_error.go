package model

// ProcessError records an extrinsic that could not be turned into history.
type ProcessError struct {
	BlockNumber   uint64 `json:"block_number"`
	ExtrinsicIdx  int    `json:"extrinsic_idx"`
	ExtrinsicHash string `json:"extrinsic_hash"`
	Module        string `json:"module"`
	Call          string `json:"call"`
	Error         string `json:"error"`
}
