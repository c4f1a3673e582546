package tracker

// Asset is the normalized market record served to the UI. Numeric fields are
// decimal strings and are never empty ("0" when upstream omits them).
type Asset struct {
	ID                string `json:"id"`
	Rank              string `json:"rank"`
	Symbol            string `json:"symbol"`
	Name              string `json:"name"`
	PriceUSD          string `json:"priceUsd"`
	ChangePercent24Hr string `json:"changePercent24Hr"`
	MarketCapUSD      string `json:"marketCapUsd"`
	VolumeUSD24Hr     string `json:"volumeUsd24Hr"`
	Image             string `json:"image,omitempty"`
}

// AssetDetail extends Asset with optional fields. A nil field means upstream
// did not provide it.
type AssetDetail struct {
	Asset

	Description string `json:"description,omitempty"`
	Homepage    string `json:"homepage,omitempty"`

	ATHPrice *string `json:"athPrice,omitempty"`
	ATHDate  *string `json:"athDate,omitempty"`
	ATLPrice *string `json:"atlPrice,omitempty"`
	ATLDate  *string `json:"atlDate,omitempty"`

	PriceChange7d  *string `json:"priceChange7d,omitempty"`
	PriceChange30d *string `json:"priceChange30d,omitempty"`
	PriceChange1y  *string `json:"priceChange1y,omitempty"`

	CirculatingSupply *string `json:"circulatingSupply,omitempty"`
	TotalSupply       *string `json:"totalSupply,omitempty"`
	MaxSupply         *string `json:"maxSupply,omitempty"`

	// Price series, oldest first
	Sparkline1d  []float64 `json:"sparkline1d,omitempty"`
	Sparkline    []float64 `json:"sparkline,omitempty"` // 7 days
	Sparkline30d []float64 `json:"sparkline30d,omitempty"`
	Sparkline1y  []float64 `json:"sparkline1y,omitempty"`
}

// GlobalMarketSnapshot holds market-wide aggregates in USD
type GlobalMarketSnapshot struct {
	TotalMarketCap          float64  `json:"totalMarketCap"`
	TotalMarketCapChange24h float64  `json:"totalMarketCapChange24h"`
	MarketCapATH            *float64 `json:"marketCapAth"`
	MarketCapATHDate        *string  `json:"marketCapAthDate"`
	ActiveCoins             int      `json:"activeCoins"`
	Markets                 int      `json:"markets"`
}
