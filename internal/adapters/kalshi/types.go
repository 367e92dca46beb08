package kalshi

type marketsResponse struct {
	Markets []Market `json:"markets"`
	Cursor  string   `json:"cursor"`
}

type eventsResponse struct {
	Events []struct {
		EventTicker string `json:"event_ticker"`
	} `json:"events"`
	Cursor string `json:"cursor"`
}

// Market es un mercado tal como lo devuelve GET /markets.
// Los precios en centavos son punteros: ausente no es lo mismo que 0.
type Market struct {
	Ticker      string   `json:"ticker"`
	EventTicker string   `json:"event_ticker"`
	Status      string   `json:"status"`
	StrikeType  string   `json:"strike_type"`
	FloorStrike *float64 `json:"floor_strike"`
	CapStrike   *float64 `json:"cap_strike"`

	YesBid    *int `json:"yes_bid"`
	YesAsk    *int `json:"yes_ask"`
	LastPrice *int `json:"last_price"`

	YesBidDollars    string `json:"yes_bid_dollars"`
	YesAskDollars    string `json:"yes_ask_dollars"`
	LastPriceDollars string `json:"last_price_dollars"`

	Volume       float64 `json:"volume"`
	OpenInterest float64 `json:"open_interest"`

	CloseTime      string `json:"close_time"`
	ExpirationTime string `json:"expiration_time"`
}
