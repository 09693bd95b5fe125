package grpcserver

type QuoteRequest struct {
	InputMint  string `json:"input_mint"`
	OutputMint string `json:"output_mint"`
	InAmount   uint64 `json:"in_amount"`
}

type QuoteReply struct {
	NotEnoughLiquidity bool   `json:"not_enough_liquidity"`
	InAmount           uint64 `json:"in_amount"`
	OutAmount          uint64 `json:"out_amount"`
	FeeAmount          uint64 `json:"fee_amount"`
	FeeMint            string `json:"fee_mint"`
	MinInAmount        uint64 `json:"min_in_amount"`
	MinOutAmount       uint64 `json:"min_out_amount"`
	OutAmountUI        string `json:"out_amount_ui"`
}

type TopOfBookRequest struct{}

type TopOfBookReply struct {
	BestBid    uint64 `json:"best_bid"`
	BestAsk    uint64 `json:"best_ask"`
	Spread     uint64 `json:"spread,omitempty"`
	Generation uint64 `json:"generation"`
	Slot       uint64 `json:"slot"`
}

type MarketRequest struct{}

type MarketReply struct {
	Key              string   `json:"key"`
	Label            string   `json:"label"`
	ProgramID        string   `json:"program_id"`
	ReserveMints     []string `json:"reserve_mints"`
	AccountsToUpdate []string `json:"accounts_to_update"`
	Ready            bool     `json:"ready"`
}
