package model

// LogFillData is the payload of a v1 exchange LogFill event.
type LogFillData struct {
	Maker                  string `json:"maker"`
	Taker                  string `json:"taker"`
	FeeRecipient           string `json:"feeRecipient"`
	MakerToken             string `json:"makerToken"`
	TakerToken             string `json:"takerToken"`
	FilledMakerTokenAmount string `json:"filledMakerTokenAmount"`
	FilledTakerTokenAmount string `json:"filledTakerTokenAmount"`
	PaidMakerFee           string `json:"paidMakerFee"`
	PaidTakerFee           string `json:"paidTakerFee"`
	Tokens                 string `json:"tokens"`
	OrderHash              string `json:"orderHash"`
}

// FillData is the payload of a v2 or v3 exchange Fill event. Fee asset data and the
// protocol fee are only present from v3 onwards.
type FillData struct {
	MakerAddress           string `json:"makerAddress"`
	TakerAddress           string `json:"takerAddress"`
	FeeRecipientAddress    string `json:"feeRecipientAddress"`
	SenderAddress          string `json:"senderAddress"`
	OrderHash              string `json:"orderHash"`
	MakerAssetData         string `json:"makerAssetData"`
	TakerAssetData         string `json:"takerAssetData"`
	MakerFeeAssetData      string `json:"makerFeeAssetData,omitempty"`
	TakerFeeAssetData      string `json:"takerFeeAssetData,omitempty"`
	MakerAssetFilledAmount string `json:"makerAssetFilledAmount"`
	TakerAssetFilledAmount string `json:"takerAssetFilledAmount"`
	MakerFeePaid           string `json:"makerFeePaid"`
	TakerFeePaid           string `json:"takerFeePaid"`
	ProtocolFeePaid        string `json:"protocolFeePaid,omitempty"`
}

// LimitOrderFilledData is the payload of an exchange proxy LimitOrderFilled event.
type LimitOrderFilledData struct {
	OrderHash                 string `json:"orderHash"`
	Maker                     string `json:"maker"`
	Taker                     string `json:"taker"`
	FeeRecipient              string `json:"feeRecipient"`
	MakerToken                string `json:"makerToken"`
	TakerToken                string `json:"takerToken"`
	TakerTokenFilledAmount    string `json:"takerTokenFilledAmount"`
	MakerTokenFilledAmount    string `json:"makerTokenFilledAmount"`
	TakerTokenFeeFilledAmount string `json:"takerTokenFeeFilledAmount"`
	ProtocolFeePaid           string `json:"protocolFeePaid"`
	Pool                      string `json:"pool"`
}

// RfqOrderFilledData is the payload of an exchange proxy RfqOrderFilled event.
type RfqOrderFilledData struct {
	OrderHash              string `json:"orderHash"`
	Maker                  string `json:"maker"`
	Taker                  string `json:"taker"`
	MakerToken             string `json:"makerToken"`
	TakerToken             string `json:"takerToken"`
	TakerTokenFilledAmount string `json:"takerTokenFilledAmount"`
	MakerTokenFilledAmount string `json:"makerTokenFilledAmount"`
	Pool                   string `json:"pool"`
}

// LiquidityProviderSwapData is the payload of a LiquidityProviderSwap event.
type LiquidityProviderSwapData struct {
	InputToken        string `json:"inputToken"`
	OutputToken       string `json:"outputToken"`
	InputTokenAmount  string `json:"inputTokenAmount"`
	OutputTokenAmount string `json:"outputTokenAmount"`
	Provider          string `json:"provider"`
	Recipient         string `json:"recipient"`
}

// SwapData is the normalized payload shared by Sushiswap, Uniswap V2 and Uniswap V3 swaps.
// Pool amounts are already resolved into input/output legs at ingestion time.
type SwapData struct {
	Sender            string `json:"sender"`
	Recipient         string `json:"recipient"`
	Pool              string `json:"pool"`
	InputToken        string `json:"inputToken"`
	OutputToken       string `json:"outputToken"`
	InputTokenAmount  string `json:"inputTokenAmount"`
	OutputTokenAmount string `json:"outputTokenAmount"`
}

// TransformedERC20Data is the payload of a TransformedERC20 event.
type TransformedERC20Data struct {
	Taker             string `json:"taker"`
	InputToken        string `json:"inputToken"`
	OutputToken       string `json:"outputToken"`
	InputTokenAmount  string `json:"inputTokenAmount"`
	OutputTokenAmount string `json:"outputTokenAmount"`
}

// BridgeFillData is emitted by the fill-quote transformer for each bridged leg.
type BridgeFillData struct {
	Source            string `json:"source"`
	InputToken        string `json:"inputToken"`
	OutputToken       string `json:"outputToken"`
	InputTokenAmount  string `json:"inputTokenAmount"`
	OutputTokenAmount string `json:"outputTokenAmount"`
}

// ERC20BridgeTransferData is emitted by legacy bridge contracts.
type ERC20BridgeTransferData struct {
	InputToken        string `json:"inputToken"`
	OutputToken       string `json:"outputToken"`
	InputTokenAmount  string `json:"inputTokenAmount"`
	OutputTokenAmount string `json:"outputTokenAmount"`
	From              string `json:"from"`
	To                string `json:"to"`
}
