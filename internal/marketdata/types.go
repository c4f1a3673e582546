package marketdata

// MarketCoin is one row of the /coins/markets listing
type MarketCoin struct {
	ID                       string   `json:"id"`
	Symbol                   string   `json:"symbol"`
	Name                     string   `json:"name"`
	Image                    string   `json:"image"`
	MarketCapRank            *int     `json:"market_cap_rank"`
	CurrentPrice             *float64 `json:"current_price"`
	MarketCap                *float64 `json:"market_cap"`
	TotalVolume              *float64 `json:"total_volume"`
	PriceChangePercentage24h *float64 `json:"price_change_percentage_24h"`
}

// CoinDetail is the /coins/{id} payload
type CoinDetail struct {
	ID            string            `json:"id"`
	Symbol        string            `json:"symbol"`
	Name          string            `json:"name"`
	MarketCapRank *int              `json:"market_cap_rank"`
	Image         CoinImage         `json:"image"`
	Description   map[string]string `json:"description"`
	Links         CoinLinks         `json:"links"`
	MarketData    *CoinMarketData   `json:"market_data"`
}

// CoinImage holds image URLs by size
type CoinImage struct {
	Thumb string `json:"thumb"`
	Small string `json:"small"`
	Large string `json:"large"`
}

// CoinLinks holds project links
type CoinLinks struct {
	Homepage []string `json:"homepage"`
}

// CoinMarketData is the nested market_data object. Per-currency values are
// keyed by lowercase currency code.
type CoinMarketData struct {
	CurrentPrice             map[string]*float64 `json:"current_price"`
	MarketCap                map[string]*float64 `json:"market_cap"`
	TotalVolume              map[string]*float64 `json:"total_volume"`
	ATH                      map[string]*float64 `json:"ath"`
	ATHDate                  map[string]*string  `json:"ath_date"`
	ATL                      map[string]*float64 `json:"atl"`
	ATLDate                  map[string]*string  `json:"atl_date"`
	PriceChangePercentage24h *float64            `json:"price_change_percentage_24h"`
	PriceChangePercentage7d  *float64            `json:"price_change_percentage_7d"`
	PriceChangePercentage30d *float64            `json:"price_change_percentage_30d"`
	PriceChangePercentage1y  *float64            `json:"price_change_percentage_1y"`
	CirculatingSupply        *float64            `json:"circulating_supply"`
	TotalSupply              *float64            `json:"total_supply"`
	MaxSupply                *float64            `json:"max_supply"`
	Sparkline7d              *Sparkline          `json:"sparkline_7d"`
}

// Sparkline is an embedded price series
type Sparkline struct {
	Price []float64 `json:"price"`
}

// marketChartResponse is the /coins/{id}/market_chart payload; prices are
// [timestamp, price] pairs
type marketChartResponse struct {
	Prices [][]float64 `json:"prices"`
}

// GlobalData is the data object of /global
type GlobalData struct {
	TotalMarketCap                  map[string]*float64 `json:"total_market_cap"`
	MarketCapChangePercentage24hUSD *float64            `json:"market_cap_change_percentage_24h_usd"`
	MarketCapATH                    *float64            `json:"market_cap_ath"`
	MarketCapATHDate                *string             `json:"market_cap_ath_date"`
	ActiveCryptocurrencies          *int                `json:"active_cryptocurrencies"`
	Markets                         *int                `json:"markets"`
}

type globalResponse struct {
	Data *GlobalData `json:"data"`
}

type exchangeRateResponse struct {
	Base  string             `json:"base"`
	Rates map[string]float64 `json:"rates"`
}
